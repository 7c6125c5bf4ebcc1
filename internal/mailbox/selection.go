package mailbox

import (
	"context"
	"sync"

	"github.com/toannc04966/pastel-inbox/internal/api"
	"github.com/toannc04966/pastel-inbox/internal/model"
	"github.com/toannc04966/pastel-inbox/internal/store"
)

// SelectionCoordinator owns the single "currently open" full message.
// The full message is fetched lazily on selection and destroyed on
// deselect, scope change, or deletion of the underlying preview.
type SelectionCoordinator struct {
	client FetchAPI
	store  store.Store
	events chan<- Event

	mu       sync.Mutex
	selected *model.Message
	loading  bool
	loadErr  error

	gen    uint64
	cancel context.CancelFunc
}

// NewSelectionCoordinator creates a coordinator with no selection.
func NewSelectionCoordinator(
	client FetchAPI,
	st store.Store,
	events chan<- Event,
) *SelectionCoordinator {
	return &SelectionCoordinator{
		client: client,
		store:  st,
		events: events,
	}
}

// Select fetches the full message for id and marks it read. A message
// that no longer exists on the backend surfaces as a recoverable
// EventSelectionError, not a crash.
func (c *SelectionCoordinator) Select(id string, folder Folder) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.cancelLocked()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.loading = true
	c.loadErr = nil
	c.mu.Unlock()

	go func() {
		var (
			msg *model.Message
			err error
		)
		if folder == FolderSent {
			msg, err = c.client.GetSent(ctx, id)
		} else {
			msg, err = c.client.GetMessage(ctx, id)
		}
		c.applyResult(gen, id, msg, err)
	}()
}

// Clear nulls the selection and aborts any in-flight fetch.
func (c *SelectionCoordinator) Clear() {
	c.mu.Lock()
	c.gen++
	c.cancelLocked()
	changed := c.selected != nil || c.loading
	c.selected = nil
	c.loading = false
	c.loadErr = nil
	c.mu.Unlock()

	if changed {
		publish(c.events, Event{Kind: EventSelectionUpdated})
	}
}

// Selected returns the currently open message, or nil.
func (c *SelectionCoordinator) Selected() *model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// SelectedID returns the id of the currently open message, or "".
func (c *SelectionCoordinator) SelectedID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return ""
	}
	return c.selected.ID
}

// Loading reports whether a selection fetch is in flight.
func (c *SelectionCoordinator) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Err returns the most recent selection fetch failure, if any.
func (c *SelectionCoordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

func (c *SelectionCoordinator) applyResult(
	gen uint64,
	id string,
	msg *model.Message,
	err error,
) {
	if err != nil && api.IsCancelled(err) {
		return
	}
	if err != nil && api.IsAuthError(err) {
		publish(c.events, Event{Kind: EventAuthExpired, Err: err})
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.loading = false

	if err != nil {
		c.loadErr = err
		c.mu.Unlock()
		publish(c.events, Event{Kind: EventSelectionError, Err: err})
		return
	}

	c.selected = msg
	c.loadErr = nil
	c.mu.Unlock()

	// Read status is persisted independently of the message list so it
	// survives refetches.
	if c.store != nil {
		_ = c.store.MarkRead(context.Background(), id)
	}

	publish(c.events, Event{Kind: EventSelectionUpdated})
}

func (c *SelectionCoordinator) cancelLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// SuccessorIndex computes which list position becomes selected after
// the message at removedIndex was deleted: the item now occupying the
// same index, the new last item when the index ran off the end, or -1
// when the list is empty.
func SuccessorIndex(removedIndex, newLen int) int {
	if newLen == 0 {
		return -1
	}
	if removedIndex >= newLen {
		return newLen - 1
	}
	if removedIndex < 0 {
		return 0
	}
	return removedIndex
}
