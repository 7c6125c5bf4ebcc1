package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/toannc04966/pastel-inbox/internal/api"
	"github.com/toannc04966/pastel-inbox/internal/mailbox"
	"github.com/toannc04966/pastel-inbox/internal/model"
	"github.com/toannc04966/pastel-inbox/internal/store"
)

// coordinatorEventMsg wraps one event from the shared coordinator
// channel for the Bubble Tea loop.
type coordinatorEventMsg struct {
	event mailbox.Event
}

// domainsLoadedMsg carries the session's account overview.
type domainsLoadedMsg struct {
	info *api.DomainsInfo
	err  error
}

// readStateMsg carries the persisted read-message set.
type readStateMsg struct {
	readSet map[string]bool
}

// composeReadyMsg carries everything needed to open the compose form.
type composeReadyMsg struct {
	draft *model.ComposeDraft
	cfg   *model.SendConfig
	reply *model.Message
	err   error
}

// sendResultMsg reports the outcome of a send attempt.
type sendResultMsg struct {
	err error
}

// draftSavedMsg confirms the draft slot was written.
type draftSavedMsg struct {
	err error
}

// mutationFinishedMsg signals that a delete operation has settled; the
// detailed outcome arrives separately on the event channel.
type mutationFinishedMsg struct{}

// recentsLoadedMsg carries the recent-address history for the address
// prompt.
type recentsLoadedMsg struct {
	recents []model.RecentEmail
}

// waitForEvent blocks on the coordinator event channel and forwards the
// next event into the Bubble Tea loop.
func waitForEvent(events <-chan mailbox.Event) tea.Cmd {
	return func() tea.Msg {
		return coordinatorEventMsg{event: <-events}
	}
}

// loadDomains fetches the account overview that seeds the permission
// resolver and the initial scope.
func (m Model) loadDomains() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		info, err := client.Domains(context.Background())
		return domainsLoadedMsg{info: info, err: err}
	}
}

// loadReadState reloads the persisted read-message set.
func (m Model) loadReadState() tea.Cmd {
	st := m.store
	return func() tea.Msg {
		readSet, err := st.ReadMessageIDs(context.Background())
		if err != nil {
			readSet = map[string]bool{}
		}
		return readStateMsg{readSet: readSet}
	}
}

// loadRecents fetches the recent-address history for the active domain.
func (m Model) loadRecents(domain string) tea.Cmd {
	st := m.store
	return func() tea.Msg {
		recents, err := st.RecentEmails(context.Background(), domain)
		if err != nil {
			recents = nil
		}
		return recentsLoadedMsg{recents: recents}
	}
}

// prepareCompose loads the stored draft and send policy before the
// compose form opens. reply carries the original message for replies.
func (m Model) prepareCompose(reply *model.Message) tea.Cmd {
	composer := m.composer
	return func() tea.Msg {
		ctx := context.Background()

		cfg := composer.Config()
		if cfg == nil {
			var err error
			cfg, err = composer.LoadConfig(ctx)
			if err != nil {
				return composeReadyMsg{err: err}
			}
		}

		var draft *model.ComposeDraft
		if reply == nil {
			draft, _ = composer.LoadDraft(ctx)
		}

		return composeReadyMsg{draft: draft, cfg: cfg, reply: reply}
	}
}

// sendMessage submits the composed message through the rate-limit gate.
func (m Model) sendMessage(msg model.OutgoingMessage) tea.Cmd {
	composer := m.composer
	return func() tea.Msg {
		return sendResultMsg{err: composer.Send(context.Background(), msg)}
	}
}

// saveDraft persists the abandoned compose session.
func (m Model) saveDraft(draft model.ComposeDraft) tea.Cmd {
	composer := m.composer
	return func() tea.Msg {
		return draftSavedMsg{err: composer.SaveDraft(context.Background(), draft)}
	}
}

// deleteOne removes a single message; the coordinator publishes the
// outcome on the event channel.
func (m Model) deleteOne(id string) tea.Cmd {
	mutation := m.mutation
	return func() tea.Msg {
		_ = mutation.DeleteOne(context.Background(), id)
		return mutationFinishedMsg{}
	}
}

// bulkDelete removes the marked messages with settle-all semantics.
func (m Model) bulkDelete(ids []string) tea.Cmd {
	mutation := m.mutation
	return func() tea.Msg {
		mutation.BulkDelete(context.Background(), ids)
		return mutationFinishedMsg{}
	}
}

// clearInbox deletes every loaded message in the current scope.
func (m Model) clearInbox() tea.Cmd {
	mutation := m.mutation
	return func() tea.Msg {
		mutation.ClearInbox(context.Background())
		return mutationFinishedMsg{}
	}
}

// persistPreference writes a preference in the background.
func (m Model) persistPreference(key string, value interface{}) tea.Cmd {
	st := m.store
	return func() tea.Msg {
		_ = st.SetPreference(context.Background(), key, value)
		return nil
	}
}

// restorePreferences reads the persisted scope and auto-refresh state.
func restorePreferences(st store.Store) (domain, email string, autoRefresh bool) {
	ctx := context.Background()
	autoRefresh = true

	_, _ = st.GetPreference(ctx, store.PrefSelectedDomain, &domain)
	_, _ = st.GetPreference(ctx, store.PrefSelectedEmail, &email)

	var enabled bool
	if found, err := st.GetPreference(ctx, store.PrefAutoRefresh, &enabled); err == nil && found {
		autoRefresh = enabled
	}
	return domain, email, autoRefresh
}
