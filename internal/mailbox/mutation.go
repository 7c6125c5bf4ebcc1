package mailbox

import (
	"context"
	"sync"

	"github.com/toannc04966/pastel-inbox/internal/api"
)

// MutationCoordinator performs deletes against the backend and applies
// confirmed results optimistically to the local list. It never writes
// the list or selection collections directly; all changes go through
// their published operations.
type MutationCoordinator struct {
	client    DeleteAPI
	list      *ListSynchronizer
	selection *SelectionCoordinator
	events    chan<- Event
}

// NewMutationCoordinator wires the mutation coordinator to the list and
// selection it reconciles.
func NewMutationCoordinator(
	client DeleteAPI,
	list *ListSynchronizer,
	selection *SelectionCoordinator,
	events chan<- Event,
) *MutationCoordinator {
	return &MutationCoordinator{
		client:    client,
		list:      list,
		selection: selection,
		events:    events,
	}
}

// DeleteOne deletes a single message. On success the message is removed
// locally and the selection moves to its successor; on failure the
// local list is left unchanged and the error is returned.
func (m *MutationCoordinator) DeleteOne(ctx context.Context, id string) error {
	folder := m.list.Scope().Folder
	index := m.list.IndexOf(id)

	if err := m.deleteByFolder(ctx, folder, id); err != nil {
		if api.IsAuthError(err) {
			publish(m.events, Event{Kind: EventAuthExpired, Err: err})
		}
		publish(m.events, Event{
			Kind:   EventMutationDone,
			Err:    err,
			Report: &BulkReport{Total: 1, Failed: 1},
		})
		return err
	}

	m.list.RemoveIDs([]string{id})

	if m.selection.SelectedID() == id {
		successor := SuccessorIndex(index, len(m.list.IDs()))
		if next, ok := m.list.At(successor); ok {
			m.selection.Select(next.ID, folder)
		} else {
			m.selection.Clear()
		}
	}

	publish(m.events, Event{
		Kind:   EventMutationDone,
		Report: &BulkReport{Total: 1},
	})
	return nil
}

// BulkDelete deletes the given messages concurrently with settle-all
// semantics: every delete is attempted regardless of earlier failures.
// Successfully deleted ids are removed from the local list in one
// batch, and the selection is cleared if it was among them.
func (m *MutationCoordinator) BulkDelete(ctx context.Context, ids []string) BulkReport {
	report, deleted := m.settleDeletes(ctx, ids)

	if len(deleted) > 0 {
		m.list.RemoveIDs(deleted)

		selectedID := m.selection.SelectedID()
		for _, id := range deleted {
			if id == selectedID {
				m.selection.Clear()
				break
			}
		}
	}

	publish(m.events, Event{Kind: EventMutationDone, Report: &report})
	return report
}

// ClearInbox deletes every currently loaded message with settle-all
// semantics. Full success clears the list and selection; partial
// success re-fetches the authoritative list from the server so no
// undead entries stay visible.
func (m *MutationCoordinator) ClearInbox(ctx context.Context) BulkReport {
	ids := m.list.IDs()
	if len(ids) == 0 {
		report := BulkReport{}
		publish(m.events, Event{Kind: EventMutationDone, Report: &report})
		return report
	}

	report, deleted := m.settleDeletes(ctx, ids)

	if report.Failed == 0 {
		m.list.RemoveIDs(deleted)
		m.selection.Clear()
	} else if len(deleted) > 0 {
		// The partial local view cannot be trusted for a "clear";
		// fetch server truth instead.
		m.selection.Clear()
		m.list.Refetch()
	}

	publish(m.events, Event{Kind: EventMutationDone, Report: &report})
	return report
}

// settleDeletes fires one delete per id concurrently and joins all
// outcomes before anything is applied, so partial-list updates never
// interleave.
func (m *MutationCoordinator) settleDeletes(
	ctx context.Context,
	ids []string,
) (BulkReport, []string) {
	folder := m.list.Scope().Folder
	errs := make([]error, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = m.deleteByFolder(ctx, folder, id)
		}(i, id)
	}
	wg.Wait()

	report := BulkReport{Total: len(ids)}
	deleted := make([]string, 0, len(ids))
	for i, err := range errs {
		if err != nil {
			report.Failed++
			if api.IsAuthError(err) {
				publish(m.events, Event{Kind: EventAuthExpired, Err: err})
			}
			continue
		}
		deleted = append(deleted, ids[i])
	}
	return report, deleted
}

func (m *MutationCoordinator) deleteByFolder(
	ctx context.Context,
	folder Folder,
	id string,
) error {
	if folder == FolderSent {
		return m.client.DeleteSent(ctx, id)
	}
	return m.client.DeleteMessage(ctx, id)
}
