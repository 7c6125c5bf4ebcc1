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

func TestSetScopeFetchesAndPopulates(t *testing.T) {
	events := make(chan Event, 16)
	client := &fakeClient{
		listFn: func(_ context.Context, q api.MessageQuery) (*api.MessagePage, error) {
			return pageOf(previews("a", 3)), nil
		},
	}
	s := NewListSynchronizer(client, nil, events, 20)

	s.SetScope(inboxScope("x.test", "", model.ModeAllInboxes))

	waitUntil(t, func() bool {
		return s.Snapshot().State == StatePopulated
	}, "list should populate")

	snap := s.Snapshot()
	assert.Len(t, snap.Messages, 3)
	assert.Equal(t, 1, snap.Pagination.CurrentPage)
}

func TestSetScopeEmptyResult(t *testing.T) {
	events := make(chan Event, 16)
	client := &fakeClient{}
	s := NewListSynchronizer(client, nil, events, 20)

	s.SetScope(inboxScope("x.test", "", model.ModeAllInboxes))

	waitUntil(t, func() bool {
		return s.Snapshot().State == StateEmpty
	}, "empty page should land in the empty state")
}

func TestSupersededFetchIsDiscarded(t *testing.T) {
	events := make(chan Event, 16)
	releaseFirst := make(chan struct{})

	client := &fakeClient{}
	client.listFn = func(_ context.Context, q api.MessageQuery) (*api.MessagePage, error) {
		if q.Domain == "slow.test" {
			// Deliberately ignore cancellation so the stale result
			// reaches applyResult and must be dropped by generation.
			<-releaseFirst
			return pageOf(previews("slow", 5)), nil
		}
		return pageOf(previews("fast", 2)), nil
	}
	s := NewListSynchronizer(client, nil, events, 20)

	s.SetScope(inboxScope("slow.test", "", model.ModeAllInboxes))
	waitUntil(t, func() bool { return client.callCount() == 1 }, "first fetch issued")

	s.SetScope(inboxScope("fast.test", "", model.ModeAllInboxes))
	waitUntil(t, func() bool {
		snap := s.Snapshot()
		return snap.State == StatePopulated && len(snap.Messages) == 2
	}, "second fetch should apply")

	close(releaseFirst)
	time.Sleep(20 * time.Millisecond)

	snap := s.Snapshot()
	assert.Len(t, snap.Messages, 2, "stale result must not overwrite the newer one")
	assert.Equal(t, "fast0", snap.Messages[0].ID)
}

func TestAddressOnlyWithoutEmailStaysIdle(t *testing.T) {
	events := make(chan Event, 16)
	client := &fakeClient{}
	s := NewListSynchronizer(client, nil, events, 20)

	s.SetScope(inboxScope("locked.test", "", model.ModeAddressOnly))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateIdle, s.Snapshot().State)
	assert.Zero(t, client.callCount(), "no listing may be issued without an address")

	// Supplying an address makes the scope fetchable.
	s.SetScope(inboxScope("locked.test", "user@locked.test", model.ModeAddressOnly))
	waitUntil(t, func() bool { return client.callCount() == 1 }, "fetch after address supplied")
}

func TestScopeEmailSelection(t *testing.T) {
	events := make(chan Event, 16)
	var got api.MessageQuery
	client := &fakeClient{}
	client.listFn = func(_ context.Context, q api.MessageQuery) (*api.MessagePage, error) {
		client.mu.Lock()
		got = q
		client.mu.Unlock()
		return pageOf(nil), nil
	}
	s := NewListSynchronizer(client, nil, events, 20)

	s.SetScope(inboxScope("x.test", "user@x.test", model.ModeAddressOnly))
	waitUntil(t, func() bool { return client.callCount() == 1 }, "fetch issued")

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, "user@x.test", got.Email)
	assert.Empty(t, got.Domain, "address-scoped queries must not carry the domain")
}

func TestBackgroundErrorKeepsPopulatedList(t *testing.T) {
	events := make(chan Event, 16)
	failing := false
	client := &fakeClient{}
	client.listFn = func(_ context.Context, q api.MessageQuery) (*api.MessagePage, error) {
		client.mu.Lock()
		defer client.mu.Unlock()
		if failing {
			return nil, &api.Error{StatusCode: 500, Message: "backend down"}
		}
		return pageOf(previews("m", 4)), nil
	}
	s := NewListSynchronizer(client, nil, events, 20)

	s.SetScope(inboxScope("x.test", "", model.ModeAllInboxes))
	waitUntil(t, func() bool { return s.Snapshot().State == StatePopulated }, "populate")

	client.mu.Lock()
	failing = true
	client.mu.Unlock()

	s.PollTick()
	waitUntil(t, func() bool { return s.Snapshot().PollErr != nil }, "poll error recorded")

	snap := s.Snapshot()
	assert.Equal(t, StatePopulated, snap.State, "poll failure must not blank the list")
	assert.Len(t, snap.Messages, 4)

	// A user-initiated refresh surfaces the error for real.
	s.Refetch()
	waitUntil(t, func() bool { return s.Snapshot().State == StateErrored }, "refetch error surfaces")
}

func TestPollTickSkippedWhileIdle(t *testing.T) {
	events := make(chan Event, 16)
	client := &fakeClient{}
	s := NewListSynchronizer(client, nil, events, 20)

	s.PollTick()
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, client.callCount(), "idle scope must not poll")
}

func TestTotalItemsEstimate(t *testing.T) {
	events := make(chan Event, 16)
	size := 0
	client := &fakeClient{}
	client.listFn = func(_ context.Context, q api.MessageQuery) (*api.MessagePage, error) {
		client.mu.Lock()
		defer client.mu.Unlock()
		return pageOf(previews("p", size)), nil
	}
	s := NewListSynchronizer(client, nil, events, 10)

	setSize := func(n int) {
		client.mu.Lock()
		size = n
		client.mu.Unlock()
	}

	// A full first page implies at least one more item exists.
	setSize(10)
	s.SetScope(inboxScope("x.test", "", model.ModeAllInboxes))
	waitUntil(t, func() bool {
		return s.Snapshot().Pagination.TotalItems == 11
	}, "full page estimates loaded+1")

	// A partial second page pins the total to everything loaded.
	setSize(4)
	s.SetPage(2)
	waitUntil(t, func() bool {
		return s.Snapshot().Pagination.TotalItems == 14
	}, "partial page estimates loaded total")

	// Going back to a full page 1 must not shrink the estimate.
	setSize(10)
	s.SetPage(1)
	waitUntil(t, func() bool { return client.callCount() == 3 }, "third fetch")
	waitUntil(t, func() bool {
		return s.Snapshot().State == StatePopulated
	}, "page 1 applied")
	assert.Equal(t, 14, s.Snapshot().Pagination.TotalItems,
		"estimate is monotonic")
}

func TestAuthoritativeTotalWins(t *testing.T) {
	events := make(chan Event, 16)
	total := 37
	client := &fakeClient{}
	client.listFn = func(_ context.Context, q api.MessageQuery) (*api.MessagePage, error) {
		return &api.MessagePage{Messages: previews("p", 10), Total: &total}, nil
	}
	s := NewListSynchronizer(client, nil, events, 10)

	s.SetScope(inboxScope("x.test", "", model.ModeAllInboxes))
	waitUntil(t, func() bool {
		return s.Snapshot().Pagination.TotalItems == 37
	}, "server total is authoritative")
}

func TestSetItemsPerPage(t *testing.T) {
	events := make(chan Event, 16)
	st := testutil.NewTestStore(t)
	client := &fakeClient{
		listFn: func(_ context.Context, q api.MessageQuery) (*api.MessagePage, error) {
			return pageOf(previews("m", 5)), nil
		},
	}
	s := NewListSynchronizer(client, st, events, 20)

	s.SetScope(inboxScope("x.test", "", model.ModeAllInboxes))
	waitUntil(t, func() bool { return s.Snapshot().State == StatePopulated }, "populate")

	s.SetPage(3)
	waitUntil(t, func() bool {
		return s.Snapshot().Pagination.CurrentPage == 3
	}, "page change")

	s.SetItemsPerPage(50)
	waitUntil(t, func() bool {
		p := s.Snapshot().Pagination
		return p.ItemsPerPage == 50 && p.CurrentPage == 1
	}, "page size change resets to page 1")

	// The preference is persisted for the next session.
	waitUntil(t, func() bool {
		var n int
		found, err := st.GetPreference(context.Background(), "items_per_page", &n)
		return err == nil && found && n == 50
	}, "preference persisted")

	// Disallowed sizes are ignored.
	s.SetItemsPerPage(33)
	assert.Equal(t, 50, s.Snapshot().Pagination.ItemsPerPage)
}

func TestSearchDebounceAndFilter(t *testing.T) {
	events := make(chan Event, 16)
	client := &fakeClient{
		listFn: func(_ context.Context, q api.MessageQuery) (*api.MessagePage, error) {
			return pageOf([]model.MessagePreview{
				{ID: "1", From: "amy@x.test", Subject: "quarterly report"},
				{ID: "2", From: "bob@x.test", Subject: "lunch?"},
				{ID: "3", From: "amy@x.test", Subject: "re: lunch?"},
			}), nil
		},
	}
	s := NewListSynchronizer(client, nil, events, 20)

	s.SetScope(inboxScope("x.test", "", model.ModeAllInboxes))
	waitUntil(t, func() bool { return s.Snapshot().State == StatePopulated }, "populate")
	calls := client.callCount()

	// Rapid keystrokes: only the final query applies.
	s.SetSearch("a")
	s.SetSearch("am")
	s.SetSearch("amy")

	assert.Empty(t, s.Snapshot().SearchQuery, "filter must wait out the debounce")

	waitUntil(t, func() bool {
		return s.Snapshot().SearchQuery == "amy"
	}, "debounced query applies")

	snap := s.Snapshot()
	assert.Len(t, snap.Messages, 2)
	assert.Equal(t, calls, client.callCount(), "search never triggers a fetch")

	// Matching is case-insensitive over subject too.
	s.SetSearch("LUNCH")
	waitUntil(t, func() bool {
		return len(s.Snapshot().Messages) == 2
	}, "subject match")

	s.SetSearch("")
	waitUntil(t, func() bool {
		return len(s.Snapshot().Messages) == 3
	}, "clearing the query restores the page")
}

func TestRemoveIDs(t *testing.T) {
	events := make(chan Event, 16)
	total := 10
	client := &fakeClient{
		listFn: func(_ context.Context, q api.MessageQuery) (*api.MessagePage, error) {
			return &api.MessagePage{Messages: previews("m", 3), Total: &total}, nil
		},
	}
	s := NewListSynchronizer(client, nil, events, 20)

	s.SetScope(inboxScope("x.test", "", model.ModeAllInboxes))
	waitUntil(t, func() bool { return s.Snapshot().State == StatePopulated }, "populate")

	s.RemoveIDs([]string{"m0", "m2", "not-present"})

	snap := s.Snapshot()
	assert.Equal(t, []string{"m1"}, s.IDs())
	assert.Equal(t, 8, snap.Pagination.TotalItems)
	assert.Equal(t, StatePopulated, snap.State)

	s.RemoveIDs([]string{"m1"})
	snap = s.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Equal(t, StateEmpty, snap.State)
	// The count can never claim fewer items than are loaded.
	assert.GreaterOrEqual(t, snap.Pagination.TotalItems, 0)
}

func TestRecentEmailRecordedOnByEmailFetch(t *testing.T) {
	events := make(chan Event, 16)
	st := testutil.NewTestStore(t)
	client := &fakeClient{
		listFn: func(_ context.Context, q api.MessageQuery) (*api.MessagePage, error) {
			return pageOf(previews("m", 2)), nil
		},
	}
	s := NewListSynchronizer(client, st, events, 20)

	s.SetScope(inboxScope("x.test", "visitor@x.test", model.ModeAddressOnly))

	waitUntil(t, func() bool {
		recents, err := st.RecentEmails(context.Background(), "x.test")
		return err == nil && len(recents) == 1 &&
			recents[0].Email == "visitor@x.test" &&
			recents[0].MessageCount == 2
	}, "successful by-email fetch goes into history")
}

func TestAuthErrorPublishesAuthExpired(t *testing.T) {
	events := make(chan Event, 16)
	client := &fakeClient{
		listFn: func(_ context.Context, q api.MessageQuery) (*api.MessagePage, error) {
			return nil, &api.AuthError{Message: "session rejected"}
		},
	}
	s := NewListSynchronizer(client, nil, events, 20)

	s.SetScope(inboxScope("x.test", "", model.ModeAllInboxes))

	require.True(t, sawEvent(events, EventAuthExpired, time.Second),
		"401 must surface as an auth-expired event")
}
