package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toannc04966/pastel-inbox/internal/api"
	"github.com/toannc04966/pastel-inbox/internal/model"
	"github.com/toannc04966/pastel-inbox/tests/testutil"
)

func outgoing() model.OutgoingMessage {
	return model.OutgoingMessage{
		From:    "me@x.test",
		To:      []string{"you@x.test"},
		Subject: "hi",
		Text:    "body",
	}
}

func TestLoadConfigSeedsRateLimit(t *testing.T) {
	st := testutil.NewTestStore(t)
	client := &fakeClient{
		sendCfgFn: func(_ context.Context) (*model.SendConfig, error) {
			return &model.SendConfig{
				DefaultFrom: "me@x.test",
				RateLimit:   model.RateLimitState{Limit: 5},
			}, nil
		},
	}
	c := NewComposer(client, st, "user1")

	cfg, err := c.LoadConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "me@x.test", cfg.DefaultFrom)

	state, err := c.RateLimit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, state.Limit)
	assert.Equal(t, 5, state.Remaining, "fresh quota starts full")
}

func TestSendDecrementsQuota(t *testing.T) {
	st := testutil.NewTestStore(t)
	client := &fakeClient{}
	c := NewComposer(client, st, "user1")

	require.NoError(t, st.SetRateLimit(context.Background(), "user1",
		model.RateLimitState{Remaining: 2, Limit: 2}))

	require.NoError(t, c.Send(context.Background(), outgoing()))

	state, err := c.RateLimit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, state.Remaining)
	assert.False(t, state.ResetAt.IsZero(), "first consumption arms the reset window")
	assert.Len(t, client.sent, 1)
}

func TestSendBlockedWhenExhausted(t *testing.T) {
	st := testutil.NewTestStore(t)
	client := &fakeClient{}
	c := NewComposer(client, st, "user1")

	require.NoError(t, st.SetRateLimit(context.Background(), "user1",
		model.RateLimitState{
			Remaining: 0,
			Limit:     3,
			ResetAt:   time.Now().Add(30 * time.Minute),
		}))

	err := c.Send(context.Background(), outgoing())
	require.Error(t, err)

	wait, ok := api.IsRateLimited(err)
	assert.True(t, ok)
	assert.Greater(t, wait, 29*time.Minute)
	assert.Empty(t, client.sent, "a gated send must never reach the backend")
}

func TestSendAllowedAfterReset(t *testing.T) {
	st := testutil.NewTestStore(t)
	client := &fakeClient{}
	c := NewComposer(client, st, "user1")

	require.NoError(t, st.SetRateLimit(context.Background(), "user1",
		model.RateLimitState{
			Remaining: 0,
			Limit:     3,
			ResetAt:   time.Now().Add(-time.Minute),
		}))

	require.NoError(t, c.Send(context.Background(), outgoing()))

	state, err := c.RateLimit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, state.Remaining, "reset restores the full quota before consuming")
}

func TestSendFailureKeepsQuota(t *testing.T) {
	st := testutil.NewTestStore(t)
	client := &fakeClient{
		sendFn: func(_ context.Context, _ model.OutgoingMessage) error {
			return &api.Error{StatusCode: 502, Message: "relay down"}
		},
	}
	c := NewComposer(client, st, "user1")

	require.NoError(t, st.SetRateLimit(context.Background(), "user1",
		model.RateLimitState{Remaining: 3, Limit: 3}))

	require.Error(t, c.Send(context.Background(), outgoing()))

	state, err := c.RateLimit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, state.Remaining, "failed sends are free")
}

func TestSendConsumesDraft(t *testing.T) {
	st := testutil.NewTestStore(t)
	client := &fakeClient{}
	c := NewComposer(client, st, "user1")

	require.NoError(t, c.SaveDraft(context.Background(), model.ComposeDraft{
		To:      []string{"you@x.test"},
		Subject: "wip",
	}))

	require.NoError(t, c.Send(context.Background(), outgoing()))

	draft, err := c.LoadDraft(context.Background())
	require.NoError(t, err)
	assert.Nil(t, draft, "a successful send empties the draft slot")
}

func TestSaveDraftEmptyDiscardsSlot(t *testing.T) {
	st := testutil.NewTestStore(t)
	c := NewComposer(&fakeClient{}, st, "user1")
	ctx := context.Background()

	require.NoError(t, c.SaveDraft(ctx, model.ComposeDraft{Subject: "keep me"}))

	draft, err := c.LoadDraft(ctx)
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.False(t, draft.SavedAt.IsZero(), "saving stamps the draft")

	// Saving an empty draft discards instead of storing a blank row.
	require.NoError(t, c.SaveDraft(ctx, model.ComposeDraft{From: "me@x.test"}))

	draft, err = c.LoadDraft(ctx)
	require.NoError(t, err)
	assert.Nil(t, draft)
}

func TestDiscardDraft(t *testing.T) {
	st := testutil.NewTestStore(t)
	c := NewComposer(&fakeClient{}, st, "user1")
	ctx := context.Background()

	require.NoError(t, c.SaveDraft(ctx, model.ComposeDraft{Subject: "bye"}))
	require.NoError(t, c.DiscardDraft(ctx))

	draft, err := c.LoadDraft(ctx)
	require.NoError(t, err)
	assert.Nil(t, draft)
}
