package mailbox

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/toannc04966/pastel-inbox/internal/api"
	"github.com/toannc04966/pastel-inbox/internal/model"
	"github.com/toannc04966/pastel-inbox/internal/store"
)

// ListState is the lifecycle state of the message list for the active
// scope.
type ListState int

const (
	StateIdle ListState = iota
	StateLoading
	StatePopulated
	StateEmpty
	StateErrored
)

// searchDebounce is the delay between a search keystroke and the filter
// being applied. Search never triggers a network fetch.
const searchDebounce = 150 * time.Millisecond

// fetchMode controls how a fetch affects visible state while in flight.
type fetchMode int

const (
	// fetchClear invalidates the current result set immediately:
	// scope, page, and page-size changes.
	fetchClear fetchMode = iota

	// fetchKeep moves to loading but keeps the current items visible:
	// user-initiated refresh.
	fetchKeep

	// fetchBackground is a poll tick: no loading state, and an error
	// never clears an already-populated list.
	fetchBackground
)

// ListSnapshot is a copy of the visible list state for rendering.
type ListSnapshot struct {
	State       ListState
	Scope       Scope
	Messages    []model.MessagePreview
	Pagination  model.Pagination
	SearchQuery string

	// Err is set when State is StateErrored.
	Err error

	// PollErr is the most recent background refresh failure; the list
	// contents are retained when it is set.
	PollErr error
}

// ListSynchronizer owns the message-preview collection for the active
// scope. Any change to domain, email, page, or items-per-page
// invalidates the current result set and issues a new scoped fetch;
// only the most recently issued fetch may apply its result.
type ListSynchronizer struct {
	client ListAPI
	store  store.Store
	events chan<- Event

	mu          sync.Mutex
	scope       Scope
	state       ListState
	messages    []model.MessagePreview
	page        model.Pagination
	searchQuery string
	searchTimer *time.Timer
	err         error
	pollErr     error

	// gen is the request generation token: results whose token is
	// stale are discarded, so a slow superseded response can never
	// overwrite a newer one.
	gen    uint64
	cancel context.CancelFunc
}

// NewListSynchronizer creates a list synchronizer in the idle state.
func NewListSynchronizer(
	client ListAPI,
	st store.Store,
	events chan<- Event,
	itemsPerPage int,
) *ListSynchronizer {
	if !model.ValidItemsPerPage(itemsPerPage) {
		itemsPerPage = model.DefaultItemsPerPage
	}
	return &ListSynchronizer{
		client: client,
		store:  st,
		events: events,
		state:  StateIdle,
		page: model.Pagination{
			CurrentPage:  1,
			ItemsPerPage: itemsPerPage,
		},
	}
}

// SetScope switches the active scope. The current result set is cleared
// immediately; a fetch is issued unless the scope is not yet fetchable
// (ADDRESS_ONLY with no address), in which case the list stays idle.
func (s *ListSynchronizer) SetScope(sc Scope) {
	s.mu.Lock()
	if s.scope == sc && s.state != StateIdle {
		s.mu.Unlock()
		return
	}

	s.scope = sc
	s.messages = nil
	s.page.CurrentPage = 1
	s.page.TotalItems = 0
	s.err = nil
	s.pollErr = nil

	if !sc.Fetchable() {
		// Invalidate any in-flight fetch so its result is discarded.
		s.gen++
		s.cancelLocked()
		s.state = StateIdle
		s.mu.Unlock()
		publish(s.events, Event{Kind: EventListUpdated})
		return
	}

	s.fetchLocked(fetchClear)
	s.mu.Unlock()
}

// Scope returns the active scope.
func (s *ListSynchronizer) Scope() Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// SetPage moves to the given 1-based page and refetches.
func (s *ListSynchronizer) SetPage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if page < 1 || page == s.page.CurrentPage || !s.scope.Fetchable() {
		return
	}
	s.page.CurrentPage = page
	s.messages = nil
	s.fetchLocked(fetchClear)
}

// SetItemsPerPage changes the page size, resets the current page to 1,
// persists the preference, and refetches.
func (s *ListSynchronizer) SetItemsPerPage(n int) {
	if !model.ValidItemsPerPage(n) {
		return
	}

	s.mu.Lock()
	if n == s.page.ItemsPerPage {
		s.mu.Unlock()
		return
	}
	s.page.ItemsPerPage = n
	s.page.CurrentPage = 1
	s.page.TotalItems = 0
	s.messages = nil
	if s.scope.Fetchable() {
		s.fetchLocked(fetchClear)
	}
	s.mu.Unlock()

	if s.store != nil {
		_ = s.store.SetPreference(context.Background(), store.PrefItemsPerPage, n)
	}
}

// SetSearch schedules the client-side search filter. The filter applies
// after a short debounce and never triggers a network fetch.
func (s *ListSynchronizer) SetSearch(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.searchTimer != nil {
		s.searchTimer.Stop()
	}
	s.searchTimer = time.AfterFunc(searchDebounce, func() {
		s.mu.Lock()
		s.searchQuery = query
		s.mu.Unlock()
		publish(s.events, Event{Kind: EventListUpdated})
	})
}

// Refetch issues a user-initiated refresh of the current scope, keeping
// the current items visible while the fetch is in flight.
func (s *ListSynchronizer) Refetch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.scope.Fetchable() {
		return
	}
	s.fetchLocked(fetchKeep)
}

// PollTick issues a background refresh of the current scope. Errors are
// recorded but never clear an already-populated list.
func (s *ListSynchronizer) PollTick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.scope.Fetchable() || s.state == StateIdle {
		return
	}
	s.fetchLocked(fetchBackground)
}

// RemoveIDs removes the given message ids from the local collection.
// This is the only local patching of a fetched page, used by the
// mutation coordinator for confirmed deletions.
func (s *ListSynchronizer) RemoveIDs(ids []string) {
	if len(ids) == 0 {
		return
	}

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	s.mu.Lock()
	kept := s.messages[:0]
	removed := 0
	for _, m := range s.messages {
		if drop[m.ID] {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	s.messages = kept

	if removed > 0 {
		s.page.TotalItems -= removed
		if s.page.TotalItems < len(s.messages) {
			s.page.TotalItems = len(s.messages)
		}
		if len(s.messages) == 0 && s.state == StatePopulated {
			s.state = StateEmpty
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		publish(s.events, Event{Kind: EventListUpdated})
	}
}

// IDs returns the ids of all currently loaded messages, unfiltered.
func (s *ListSynchronizer) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(s.messages))
	for i, m := range s.messages {
		ids[i] = m.ID
	}
	return ids
}

// IndexOf returns the position of a message id in the unfiltered list,
// or -1 when absent.
func (s *ListSynchronizer) IndexOf(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// At returns the message preview at the given unfiltered index.
func (s *ListSynchronizer) At(index int) (model.MessagePreview, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.messages) {
		return model.MessagePreview{}, false
	}
	return s.messages[index], true
}

// Snapshot returns a copy of the visible list state, with the search
// filter applied.
func (s *ListSynchronizer) Snapshot() ListSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ListSnapshot{
		State:       s.state,
		Scope:       s.scope,
		Messages:    filterMessages(s.messages, s.searchQuery),
		Pagination:  s.page,
		SearchQuery: s.searchQuery,
		Err:         s.err,
		PollErr:     s.pollErr,
	}
}

// fetchLocked starts a scoped fetch. The caller must hold s.mu. Any
// previous in-flight fetch for the list is superseded: its context is
// cancelled and its generation token invalidated.
func (s *ListSynchronizer) fetchLocked(mode fetchMode) {
	s.gen++
	gen := s.gen
	s.cancelLocked()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if mode != fetchBackground {
		s.state = StateLoading
	}

	sc := s.scope
	query := api.MessageQuery{
		Limit:  s.page.ItemsPerPage,
		Offset: s.page.Offset(),
	}
	switch {
	case sc.Mode == model.ModeSelfOnly, sc.Mode == model.ModeAddressOnly:
		// Domain selection is ignored; the scope carries the resolved
		// or user-supplied address.
		query.Email = sc.Email
	case sc.Email != "":
		query.Email = sc.Email
	default:
		query.Domain = sc.Domain
	}

	go func() {
		var (
			page *api.MessagePage
			err  error
		)
		if sc.Folder == FolderSent {
			page, err = s.client.ListSent(ctx, query.Limit, query.Offset)
		} else {
			page, err = s.client.ListMessages(ctx, query)
		}
		s.applyResult(gen, sc, page, err, mode)
	}()
}

// applyResult applies a fetch outcome if its generation token is still
// current; superseded results are discarded.
func (s *ListSynchronizer) applyResult(
	gen uint64,
	sc Scope,
	page *api.MessagePage,
	err error,
	mode fetchMode,
) {
	// Cancellation is not an error; the superseding fetch owns the
	// state now.
	if err != nil && api.IsCancelled(err) {
		return
	}

	if err != nil && api.IsAuthError(err) {
		publish(s.events, Event{Kind: EventAuthExpired, Err: err})
		return
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}

	if err != nil {
		if mode == fetchBackground && s.state == StatePopulated {
			// Stale-but-present beats blanking the list on a
			// transient poll failure.
			s.pollErr = err
		} else {
			s.state = StateErrored
			s.err = err
		}
		s.mu.Unlock()
		publish(s.events, Event{Kind: EventListUpdated, Err: err})
		return
	}

	s.messages = page.Messages
	s.err = nil
	s.pollErr = nil
	if len(s.messages) == 0 {
		s.state = StateEmpty
	} else {
		s.state = StatePopulated
	}
	s.updateTotalLocked(page)
	count := len(s.messages)
	s.mu.Unlock()

	// Successful by-email fetches go into the recent-address history.
	if sc.Folder == FolderInbox && sc.Email != "" &&
		sc.Mode != model.ModeSelfOnly && s.store != nil {
		_ = s.store.RecordRecentEmail(context.Background(), sc.Domain, model.RecentEmail{
			Email:        sc.Email,
			MessageCount: count,
			LastAccessed: time.Now(),
		})
	}

	publish(s.events, Event{Kind: EventListUpdated})
}

// updateTotalLocked reconciles the total-item count. An explicit server
// total is authoritative; otherwise the estimate grows monotonically: a
// full page implies at least one more page exists, a partial page means
// the total is everything loaded so far.
func (s *ListSynchronizer) updateTotalLocked(page *api.MessagePage) {
	if page.Total != nil {
		s.page.TotalItems = *page.Total
		return
	}

	loaded := s.page.Offset() + len(page.Messages)
	estimate := loaded
	if len(page.Messages) >= s.page.ItemsPerPage {
		estimate = loaded + 1
	}
	if estimate > s.page.TotalItems {
		s.page.TotalItems = estimate
	}
}

// cancelLocked aborts the in-flight fetch, if any.
func (s *ListSynchronizer) cancelLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// filterMessages applies the case-insensitive search filter over
// sender, subject, and preview text.
func filterMessages(msgs []model.MessagePreview, query string) []model.MessagePreview {
	out := make([]model.MessagePreview, 0, len(msgs))
	if query == "" {
		return append(out, msgs...)
	}

	q := strings.ToLower(query)
	for _, m := range msgs {
		if strings.Contains(strings.ToLower(m.From), q) ||
			strings.Contains(strings.ToLower(m.SenderName), q) ||
			strings.Contains(strings.ToLower(m.SenderEmail), q) ||
			strings.Contains(strings.ToLower(m.Subject), q) ||
			strings.Contains(strings.ToLower(m.Preview), q) {
			out = append(out, m)
		}
	}
	return out
}
