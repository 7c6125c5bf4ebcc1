package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toannc04966/pastel-inbox/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPreferences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, s.SetPreference(ctx, PrefItemsPerPage, 50))

		var n int
		found, err := s.GetPreference(ctx, PrefItemsPerPage, &n)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, 50, n)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, s.SetPreference(ctx, PrefSelectedDomain, "alpha.test"))
		require.NoError(t, s.SetPreference(ctx, PrefSelectedDomain, "beta.test"))

		var domain string
		found, err := s.GetPreference(ctx, PrefSelectedDomain, &domain)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "beta.test", domain)
	})

	t.Run("missing key", func(t *testing.T) {
		var v string
		found, err := s.GetPreference(ctx, "never-written", &v)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("corrupt value reports absent", func(t *testing.T) {
		_, err := s.db.Exec(
			"INSERT INTO preferences (key, value) VALUES (?, ?)",
			"corrupt", "{not json",
		)
		require.NoError(t, err)

		var v map[string]string
		found, err := s.GetPreference(ctx, "corrupt", &v)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.SetPreference(ctx, PrefAutoRefresh, true))
		require.NoError(t, s.DeletePreference(ctx, PrefAutoRefresh))

		var enabled bool
		found, err := s.GetPreference(ctx, PrefAutoRefresh, &enabled)
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestReadState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.MarkRead(ctx, "m1", "m2"))

	// Marking again is a no-op, not an error.
	require.NoError(t, s.MarkRead(ctx, "m2", "m3"))

	set, err := s.ReadMessageIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"m1": true, "m2": true, "m3": true}, set)

	// Empty calls are tolerated.
	require.NoError(t, s.MarkRead(ctx))
}

func TestRecentEmails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	t.Run("mru ordering", func(t *testing.T) {
		for i, email := range []string{"a@x.test", "b@x.test", "c@x.test"} {
			require.NoError(t, s.RecordRecentEmail(ctx, "x.test", model.RecentEmail{
				Email:        email,
				MessageCount: i,
				LastAccessed: base.Add(time.Duration(i) * time.Minute),
			}))
		}

		recents, err := s.RecentEmails(ctx, "x.test")
		require.NoError(t, err)
		require.Len(t, recents, 3)
		assert.Equal(t, "c@x.test", recents[0].Email)
		assert.Equal(t, "a@x.test", recents[2].Email)
	})

	t.Run("case-insensitive dedupe keeps latest casing", func(t *testing.T) {
		require.NoError(t, s.RecordRecentEmail(ctx, "x.test", model.RecentEmail{
			Email:        "A@X.Test",
			MessageCount: 9,
			LastAccessed: base.Add(time.Hour),
		}))

		recents, err := s.RecentEmails(ctx, "x.test")
		require.NoError(t, err)
		require.Len(t, recents, 3)
		assert.Equal(t, "A@X.Test", recents[0].Email)
		assert.Equal(t, 9, recents[0].MessageCount)
	})

	t.Run("caps per-domain history", func(t *testing.T) {
		for i := 0; i < model.MaxRecentEmails+5; i++ {
			require.NoError(t, s.RecordRecentEmail(ctx, "cap.test", model.RecentEmail{
				Email:        fmt.Sprintf("user%02d@cap.test", i),
				LastAccessed: base.Add(time.Duration(i) * time.Minute),
			}))
		}

		recents, err := s.RecentEmails(ctx, "cap.test")
		require.NoError(t, err)
		assert.Len(t, recents, model.MaxRecentEmails)
		assert.Equal(t, "user14@cap.test", recents[0].Email)
	})

	t.Run("domains are isolated", func(t *testing.T) {
		recents, err := s.RecentEmails(ctx, "other.test")
		require.NoError(t, err)
		assert.Empty(t, recents)
	})
}

func TestDrafts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("missing draft is nil", func(t *testing.T) {
		draft, err := s.GetDraft(ctx, "user1")
		require.NoError(t, err)
		assert.Nil(t, draft)
	})

	t.Run("single slot per user", func(t *testing.T) {
		require.NoError(t, s.SaveDraft(ctx, "user1", model.ComposeDraft{
			Subject: "first",
		}))
		require.NoError(t, s.SaveDraft(ctx, "user1", model.ComposeDraft{
			Subject: "second",
			To:      []string{"a@x.test"},
		}))

		draft, err := s.GetDraft(ctx, "user1")
		require.NoError(t, err)
		require.NotNil(t, draft)
		assert.Equal(t, "second", draft.Subject)
		assert.Equal(t, []string{"a@x.test"}, draft.To)
	})

	t.Run("users are isolated", func(t *testing.T) {
		draft, err := s.GetDraft(ctx, "user2")
		require.NoError(t, err)
		assert.Nil(t, draft)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.DeleteDraft(ctx, "user1"))
		draft, err := s.GetDraft(ctx, "user1")
		require.NoError(t, err)
		assert.Nil(t, draft)
	})

	t.Run("corrupt payload is nil", func(t *testing.T) {
		_, err := s.db.Exec(
			"INSERT INTO drafts (user_id, payload, saved_at) VALUES (?, ?, ?)",
			"corrupt-user", "###", time.Now(),
		)
		require.NoError(t, err)

		draft, err := s.GetDraft(ctx, "corrupt-user")
		require.NoError(t, err)
		assert.Nil(t, draft)
	})
}

func TestRateLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("missing state is zero", func(t *testing.T) {
		state, err := s.GetRateLimit(ctx, "user1")
		require.NoError(t, err)
		assert.Zero(t, state)
	})

	t.Run("round trip", func(t *testing.T) {
		reset := time.Now().Add(time.Hour).Truncate(time.Second)
		want := model.RateLimitState{Remaining: 3, Limit: 10, ResetAt: reset}
		require.NoError(t, s.SetRateLimit(ctx, "user1", want))

		state, err := s.GetRateLimit(ctx, "user1")
		require.NoError(t, err)
		assert.Equal(t, want.Remaining, state.Remaining)
		assert.Equal(t, want.Limit, state.Limit)
		assert.True(t, want.ResetAt.Equal(state.ResetAt))
	})

	t.Run("corrupt state is zero", func(t *testing.T) {
		_, err := s.db.Exec(
			"INSERT INTO rate_limits (user_id, payload) VALUES (?, ?)",
			"corrupt-user", "nope",
		)
		require.NoError(t, err)

		state, err := s.GetRateLimit(ctx, "corrupt-user")
		require.NoError(t, err)
		assert.Zero(t, state)
	})
}
