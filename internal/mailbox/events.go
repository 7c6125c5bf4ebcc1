// Package mailbox holds the client-side synchronization core: the list
// synchronizer, selection coordinator, mutation coordinator, and
// composer. Coordinators own their in-memory state exclusively; other
// components request changes through their published operations and
// observe results on the shared event channel.
package mailbox

// EventKind identifies what a coordinator event describes.
type EventKind int

const (
	// EventListUpdated fires when the message list state changed:
	// new fetch results, a state transition, or a local removal.
	EventListUpdated EventKind = iota

	// EventSelectionUpdated fires when the selected message changed.
	EventSelectionUpdated

	// EventSelectionError fires when fetching the selected message
	// failed recoverably (e.g., it no longer exists on the backend).
	EventSelectionError

	// EventMutationDone fires when a delete, bulk delete, or clear
	// finished, carrying the outcome report.
	EventMutationDone

	// EventAuthExpired fires when any coordinator hit a 401; the
	// owner of the session is expected to redirect to login.
	EventAuthExpired
)

// BulkReport summarizes a settle-all bulk operation so the caller can
// render "X/Y deleted" messaging. Failed distinguishes partial failure
// (0 < Failed < Total) from total success and total failure.
type BulkReport struct {
	Total  int
	Failed int
}

// Event is published by coordinators on the shared event channel.
type Event struct {
	Kind   EventKind
	Err    error
	Report *BulkReport
}

// publish sends an event without blocking; if the consumer is behind,
// the event is dropped. Consumers re-read coordinator snapshots on
// every event, so a dropped event is only a deferred repaint.
func publish(ch chan<- Event, ev Event) {
	select {
	case ch <- ev:
	default:
	}
}
