package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/toannc04966/pastel-inbox/internal/api"
	"github.com/toannc04966/pastel-inbox/internal/keys"
	"github.com/toannc04966/pastel-inbox/internal/mailbox"
	"github.com/toannc04966/pastel-inbox/internal/model"
	"github.com/toannc04966/pastel-inbox/internal/permission"
	"github.com/toannc04966/pastel-inbox/internal/store"
	appsync "github.com/toannc04966/pastel-inbox/internal/sync"
	"github.com/toannc04966/pastel-inbox/internal/theme"
	"github.com/toannc04966/pastel-inbox/internal/ui"
	"github.com/toannc04966/pastel-inbox/internal/ui/composeform"
	"github.com/toannc04966/pastel-inbox/internal/ui/messagelist"
	"github.com/toannc04966/pastel-inbox/internal/ui/viewer"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewMessage
	ViewCompose
	ViewHelp
	ViewDomainPicker
	ViewAddressInput
)

// eventBuffer sizes the shared coordinator event channel. Events beyond
// the buffer are dropped; consumers re-read snapshots on every event.
const eventBuffer = 64

// Model is the root Bubble Tea model that manages view routing, layout,
// and the synchronization coordinators.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	cfg          *model.AppConfig

	store  store.Store
	client *api.Client

	resolver  *permission.Resolver
	domains   []string
	scope     mailbox.Scope
	events    chan mailbox.Event
	list      *mailbox.ListSynchronizer
	selection *mailbox.SelectionCoordinator
	mutation  *mailbox.MutationCoordinator
	composer  *mailbox.Composer
	scheduler *appsync.Scheduler
	activity  *ActivityFeed

	messageList messagelist.Model
	viewerView  viewer.Model
	composeView composeform.Model
	domainPick  domainPicker
	addrInput   addressInput
	helpView    help.Model

	readSet      map[string]bool
	pendingDraft *model.ComposeDraft

	ready            bool
	pendingClear     bool
	statusMessage    string
	authErrorMessage string
}

// New creates the root application model. The coordinators share one
// event channel; the app drains it and repaints from snapshots.
func New(st store.Store, client *api.Client, cfg *model.AppConfig) Model {
	k := keys.DefaultKeyMap()
	activity := NewActivityFeed()
	events := make(chan mailbox.Event, eventBuffer)

	itemsPerPage := cfg.Display.ItemsPerPage
	var stored int
	if found, err := st.GetPreference(context.Background(), store.PrefItemsPerPage, &stored); err == nil &&
		found && model.ValidItemsPerPage(stored) {
		itemsPerPage = stored
	}

	list := mailbox.NewListSynchronizer(client, st, events, itemsPerPage)
	selection := mailbox.NewSelectionCoordinator(client, st, events)
	mutation := mailbox.NewMutationCoordinator(client, list, selection, events)

	idleTimeout := time.Duration(cfg.Refresh.IdleTimeoutSec) * time.Second
	scheduler := appsync.New(activity, idleTimeout)

	return Model{
		currentView: ViewList,
		keys:        k,
		cfg:         cfg,
		store:       st,
		client:      client,
		events:      events,
		list:        list,
		selection:   selection,
		mutation:    mutation,
		scheduler:   scheduler,
		activity:    activity,
		messageList: messagelist.New(k, 80, 24),
		viewerView:  viewer.New(80, 24),
		composeView: composeform.New(80, 24),
		domainPick:  newDomainPicker(80, 24),
		addrInput:   newAddressInput(80, 24),
		helpView:    help.New(),
		readSet:     map[string]bool{},
	}
}

// Init loads the account overview and read state and starts draining
// the coordinator event channel.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadDomains(),
		m.loadReadState(),
		waitForEvent(m.events),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.messageList.SetSize(w, h)
		m.viewerView.SetSize(w, h)
		m.composeView.SetSize(w, h)
		m.domainPick.SetSize(w, h)
		m.addrInput.SetSize(w, h)
		m.helpView.Width = w
		return m.updateActiveView(msg)

	case coordinatorEventMsg:
		return m.handleEvent(msg.event)

	case domainsLoadedMsg:
		return m.handleDomainsLoaded(msg)

	case readStateMsg:
		m.readSet = msg.readSet
		cmd := m.messageList.SetSnapshot(m.list.Snapshot(), m.readSet)
		return m, cmd

	case recentsLoadedMsg:
		return m, m.addrInput.Start(m.scope.Email, msg.recents)

	case messagelist.SelectedMessageMsg:
		m.previousView = m.currentView
		m.currentView = ViewMessage
		m.viewerView.SetLoading()
		m.selection.Select(msg.ID, m.scope.Folder)
		return m, nil

	case messagelist.SearchChangedMsg:
		m.list.SetSearch(msg.Query)
		return m, nil

	case composeReadyMsg:
		return m.handleComposeReady(msg)

	case composeform.SubmitMsg:
		draft := m.composeView.Draft()
		m.pendingDraft = &draft
		m.currentView = ViewList
		m.statusMessage = "sending..."
		return m, m.sendMessage(msg.Message)

	case composeform.CancelMsg:
		m.currentView = ViewList
		if !msg.Draft.Empty() {
			m.statusMessage = "draft saved"
		}
		return m, m.saveDraft(msg.Draft)

	case sendResultMsg:
		return m.handleSendResult(msg)

	case draftSavedMsg:
		if msg.err != nil {
			m.statusMessage = "saving draft failed: " + msg.err.Error()
		}
		return m, nil

	case domainChosenMsg:
		return m.handleDomainChosen(msg.domain)

	case addressChosenMsg:
		m.currentView = ViewList
		m.scope.Email = msg.email
		m.applyScope()
		return m, m.persistPreference(store.PrefSelectedEmail, msg.email)

	case pickerCancelMsg:
		m.currentView = ViewList
		return m, nil

	case mutationFinishedMsg:
		return m, nil

	case tea.MouseMsg:
		m.activity.Notify()
		return m.updateActiveView(msg)

	case tea.KeyMsg:
		m.activity.Notify()
		return m.handleKey(msg)
	}

	return m.updateActiveView(msg)
}

// handleKey routes global keybindings, deferring to text-entry views
// that need the raw keystrokes.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.scheduler.Stop()
		return m, tea.Quit
	}

	// Text-entry surfaces consume everything else.
	switch m.currentView {
	case ViewCompose, ViewAddressInput:
		return m.updateActiveView(msg)
	case ViewList:
		if m.messageList.Searching() {
			return m.updateActiveView(msg)
		}
	}

	// A pending clear-inbox confirmation is consumed by the next key.
	if m.pendingClear {
		m.pendingClear = false
		if key.Matches(msg, m.keys.ClearAll) {
			m.statusMessage = "clearing inbox..."
			return m, m.clearInbox()
		}
		m.statusMessage = "clear cancelled"
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.currentView == ViewList {
			m.scheduler.Stop()
			return m, tea.Quit
		}

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
		} else {
			m.previousView = m.currentView
			m.currentView = ViewHelp
		}
		return m, nil

	case key.Matches(msg, m.keys.Back):
		switch m.currentView {
		case ViewMessage:
			m.currentView = ViewList
			m.selection.Clear()
			return m, nil
		case ViewHelp, ViewDomainPicker:
			m.currentView = ViewList
			return m, nil
		}

	case key.Matches(msg, m.keys.Refresh):
		if m.currentView == ViewList {
			m.statusMessage = ""
			m.list.Refetch()
			return m, nil
		}

	case key.Matches(msg, m.keys.AutoRefresh):
		enabled := m.scheduler.Toggle()
		if enabled {
			m.statusMessage = "auto-refresh on"
		} else {
			m.statusMessage = "auto-refresh off"
		}
		return m, m.persistPreference(store.PrefAutoRefresh, enabled)

	case key.Matches(msg, m.keys.NextPage):
		if m.currentView == ViewList {
			p := m.list.Snapshot().Pagination
			if p.CurrentPage < p.TotalPages() {
				m.list.SetPage(p.CurrentPage + 1)
			}
			return m, nil
		}

	case key.Matches(msg, m.keys.PrevPage):
		if m.currentView == ViewList {
			p := m.list.Snapshot().Pagination
			if p.CurrentPage > 1 {
				m.list.SetPage(p.CurrentPage - 1)
			}
			return m, nil
		}

	case key.Matches(msg, m.keys.PageSize):
		if m.currentView == ViewList {
			next := nextPageSize(m.list.Snapshot().Pagination.ItemsPerPage)
			m.list.SetItemsPerPage(next)
			m.statusMessage = fmt.Sprintf("%d messages per page", next)
			return m, nil
		}

	case key.Matches(msg, m.keys.Inbox):
		if m.currentView == ViewList && m.scope.Folder != mailbox.FolderInbox {
			m.scope.Folder = mailbox.FolderInbox
			m.applyScope()
			return m, nil
		}

	case key.Matches(msg, m.keys.Sent):
		if m.currentView == ViewList && m.scope.Folder != mailbox.FolderSent {
			m.scope.Folder = mailbox.FolderSent
			m.applyScope()
			return m, nil
		}

	case key.Matches(msg, m.keys.Domain):
		if m.currentView == ViewList && m.canPickScope() {
			m.previousView = m.currentView
			m.currentView = ViewDomainPicker
			m.domainPick.Start(m.domains, m.scope.Domain)
			return m, nil
		}

	case key.Matches(msg, m.keys.Address):
		if m.currentView == ViewList && m.canPickScope() {
			m.previousView = m.currentView
			m.currentView = ViewAddressInput
			return m, m.loadRecents(m.scope.Domain)
		}

	case key.Matches(msg, m.keys.Delete):
		switch m.currentView {
		case ViewList:
			if id := m.messageList.SelectedID(); id != "" {
				return m, m.deleteOne(id)
			}
		case ViewMessage:
			if id := m.selection.SelectedID(); id != "" {
				m.currentView = ViewList
				return m, m.deleteOne(id)
			}
		}

	case key.Matches(msg, m.keys.BulkDelete):
		if m.currentView == ViewList {
			ids := m.messageList.MarkedIDs()
			if len(ids) == 0 {
				m.statusMessage = "nothing marked (space to mark)"
				return m, nil
			}
			m.messageList.ClearMarks()
			return m, m.bulkDelete(ids)
		}

	case key.Matches(msg, m.keys.ClearAll):
		if m.currentView == ViewList && m.scope.Folder == mailbox.FolderInbox {
			if len(m.list.IDs()) == 0 {
				return m, nil
			}
			m.pendingClear = true
			m.statusMessage = "press X again to delete every loaded message"
			return m, nil
		}

	case key.Matches(msg, m.keys.Compose):
		if m.composer == nil {
			m.statusMessage = "account still loading"
			return m, nil
		}
		switch m.currentView {
		case ViewList:
			return m, m.prepareCompose(nil)
		case ViewMessage:
			if sel := m.selection.Selected(); sel != nil {
				return m, m.prepareCompose(sel)
			}
		}
	}

	return m.updateActiveView(msg)
}

// handleEvent repaints from coordinator snapshots after each published
// event and re-arms the channel drain.
func (m Model) handleEvent(ev mailbox.Event) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{waitForEvent(m.events)}

	switch ev.Kind {
	case mailbox.EventListUpdated:
		cmds = append(cmds, m.messageList.SetSnapshot(m.list.Snapshot(), m.readSet))

	case mailbox.EventSelectionUpdated:
		m.viewerView.SetMessage(m.selection.Selected())
		// Opening a message marks it read; pick up the new read set.
		cmds = append(cmds, m.loadReadState())

	case mailbox.EventSelectionError:
		m.viewerView.SetError(ev.Err)

	case mailbox.EventMutationDone:
		if ev.Report != nil {
			m.statusMessage = mutationStatus(*ev.Report)
		}
		cmds = append(cmds, m.messageList.SetSnapshot(m.list.Snapshot(), m.readSet))
		if m.currentView == ViewMessage {
			if sel := m.selection.Selected(); sel != nil {
				m.viewerView.SetMessage(sel)
			} else if !m.selection.Loading() {
				m.currentView = ViewList
			}
		}

	case mailbox.EventAuthExpired:
		m.authErrorMessage = "session expired, run `pastel-inbox login` and restart"
		m.scheduler.Stop()
	}

	return m, tea.Batch(cmds...)
}

// handleDomainsLoaded seeds the permission resolver and restores the
// persisted scope once the account overview arrives.
func (m Model) handleDomainsLoaded(msg domainsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if api.IsAuthError(msg.err) {
			m.authErrorMessage = "session expired, run `pastel-inbox login` and restart"
		} else {
			m.statusMessage = "loading account failed: " + msg.err.Error()
		}
		return m, nil
	}

	info := msg.info
	m.resolver = permission.New(info.Permissions, info.SelfOnly, info.Email)
	m.domains = info.Domains

	userID := info.Email
	if userID == "" {
		userID = "default"
	}
	m.composer = mailbox.NewComposer(m.client, m.store, userID)

	domain, email, autoRefresh := restorePreferences(m.store)
	if !containsFold(m.domains, domain) && domain != model.DomainAll {
		domain = ""
	}
	if domain == "" {
		if len(m.domains) == 1 {
			domain = m.domains[0]
		} else {
			domain = model.DomainAll
		}
	}

	m.scope = m.buildScope(mailbox.FolderInbox, domain, email)
	m.applyScope()

	interval := time.Duration(m.cfg.Refresh.PollIntervalSec) * time.Second
	m.scheduler.Start(m.list.PollTick, interval)
	m.scheduler.SetEnabled(autoRefresh)

	return m, nil
}

// handleComposeReady opens the compose form once the draft and send
// policy are loaded.
func (m Model) handleComposeReady(msg composeReadyMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.statusMessage = "compose unavailable: " + msg.err.Error()
		return m, nil
	}

	defaultFrom := ""
	if msg.cfg != nil {
		defaultFrom = msg.cfg.DefaultFrom
	}
	if defaultFrom == "" && m.resolver != nil {
		defaultFrom = m.resolver.SelfEmail()
	}

	m.previousView = m.currentView
	m.currentView = ViewCompose
	if msg.reply != nil {
		return m, m.composeView.StartReply(msg.reply, defaultFrom)
	}
	return m, m.composeView.StartCompose(msg.draft, defaultFrom)
}

// handleSendResult reports the outcome of a send. On failure the typed
// content is put back into the draft slot so nothing is lost.
func (m Model) handleSendResult(msg sendResultMsg) (tea.Model, tea.Cmd) {
	if msg.err == nil {
		m.pendingDraft = nil
		m.statusMessage = "message sent"
		return m, nil
	}

	if wait, ok := api.IsRateLimited(msg.err); ok {
		m.statusMessage = fmt.Sprintf("send limit reached, try again in %s",
			wait.Round(time.Second))
	} else if api.IsAuthError(msg.err) {
		m.authErrorMessage = "session expired, run `pastel-inbox login` and restart"
	} else {
		m.statusMessage = "send failed: " + msg.err.Error()
	}

	if m.pendingDraft != nil {
		draft := *m.pendingDraft
		m.pendingDraft = nil
		return m, m.saveDraft(draft)
	}
	return m, nil
}

// handleDomainChosen applies a domain switch. ADDRESS_ONLY domains jump
// straight to the address prompt; the list stays idle until an address
// is supplied.
func (m Model) handleDomainChosen(domain string) (tea.Model, tea.Cmd) {
	m.currentView = ViewList
	m.scope = m.buildScope(m.scope.Folder, domain, "")

	cmds := []tea.Cmd{
		m.persistPreference(store.PrefSelectedDomain, domain),
		m.persistPreference(store.PrefSelectedEmail, ""),
	}

	m.applyScope()

	if m.scope.Mode == model.ModeAddressOnly {
		m.previousView = ViewList
		m.currentView = ViewAddressInput
		cmds = append(cmds, m.loadRecents(domain))
	}

	return m, tea.Batch(cmds...)
}

// buildScope resolves the access mode for a (folder, domain, email)
// selection. SELF_ONLY accounts are pinned to their own address.
func (m Model) buildScope(folder mailbox.Folder, domain, email string) mailbox.Scope {
	sc := mailbox.Scope{Folder: folder, Domain: domain, Email: email}

	if m.resolver == nil {
		return sc
	}
	if m.resolver.SelfOnly() {
		sc.Mode = model.ModeSelfOnly
		sc.Email = m.resolver.SelfEmail()
		return sc
	}
	if domain == model.DomainAll {
		sc.Mode = model.ModeAllInboxes
		return sc
	}
	if mode, ok := m.resolver.Resolve(domain); ok {
		sc.Mode = mode
	} else {
		// No permission entry means no listing; require an address.
		sc.Mode = model.ModeAddressOnly
	}
	return sc
}

// applyScope pushes the current scope into the list synchronizer.
func (m *Model) applyScope() {
	m.scope.Mode = m.buildScope(m.scope.Folder, m.scope.Domain, m.scope.Email).Mode
	if m.scope.Mode == model.ModeSelfOnly && m.resolver != nil {
		m.scope.Email = m.resolver.SelfEmail()
	}
	m.selection.Clear()
	m.list.SetScope(m.scope)
}

// canPickScope reports whether domain/address switching makes sense for
// the session.
func (m Model) canPickScope() bool {
	return m.resolver != nil && !m.resolver.SelfOnly() &&
		m.scope.Folder == mailbox.FolderInbox
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.messageList, cmd = m.messageList.Update(msg)
	case ViewMessage:
		m.viewerView, cmd = m.viewerView.Update(msg)
	case ViewCompose:
		m.composeView, cmd = m.composeView.Update(msg)
	case ViewDomainPicker:
		m.domainPick, cmd = m.domainPick.Update(msg)
	case ViewAddressInput:
		m.addrInput, cmd = m.addrInput.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Pastel Inbox · "+m.scopeLabel(), m.refreshStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.statusLine())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.messageList.View()
	case ViewMessage:
		return m.viewerView.View()
	case ViewCompose:
		return m.composeView.View()
	case ViewHelp:
		return lipgloss.NewStyle().Padding(1, 2).
			Render(m.helpView.FullHelpView(m.keys.FullHelp()))
	case ViewDomainPicker:
		return m.domainPick.View()
	case ViewAddressInput:
		return m.addrInput.View()
	default:
		return ""
	}
}

// scopeLabel describes the active scope for the header.
func (m Model) scopeLabel() string {
	if m.scope.Folder == mailbox.FolderSent {
		return "Sent"
	}
	if m.scope.Email != "" {
		return m.scope.Email
	}
	if m.scope.Domain == model.DomainAll {
		return "all domains"
	}
	if m.scope.Domain != "" {
		return m.scope.Domain
	}
	return "Inbox"
}

// refreshStatus summarizes the scheduler state for the header.
func (m Model) refreshStatus() string {
	st := m.scheduler.Status()
	switch {
	case !st.Enabled:
		return "auto-refresh off"
	case st.Paused:
		return "refresh paused"
	default:
		return fmt.Sprintf("refresh %ds", m.cfg.Refresh.PollIntervalSec)
	}
}

// statusLine picks what the status bar shows: auth failures beat
// transient notices beat key hints.
func (m Model) statusLine() string {
	if m.authErrorMessage != "" {
		return m.authErrorMessage
	}
	if m.statusMessage != "" {
		return m.statusMessage
	}
	return m.keyHints()
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewMessage:
		return "esc back | d delete | c reply | j/k scroll"
	case ViewCompose:
		return "tab next field | enter submit | esc save draft"
	case ViewHelp:
		return "? close help"
	case ViewDomainPicker:
		return "j/k move | enter select | esc cancel"
	case ViewAddressInput:
		return "enter open | tab recent | esc cancel"
	default:
		if m.messageList.Searching() {
			return "enter apply | esc clear search"
		}
		return "q quit | ? help | / search | enter open | space mark | d delete | c compose"
	}
}

// mutationStatus renders a bulk-operation report for the status bar.
func mutationStatus(r mailbox.BulkReport) string {
	switch {
	case r.Total == 0:
		return ""
	case r.Failed == 0 && r.Total == 1:
		return "message deleted"
	case r.Failed == 0:
		return fmt.Sprintf("%d messages deleted", r.Total)
	case r.Failed == r.Total:
		return theme.ErrorStyle.Render(
			fmt.Sprintf("delete failed (%d messages)", r.Total))
	default:
		return theme.ErrorStyle.Render(
			fmt.Sprintf("deleted %d/%d, %d failed",
				r.Total-r.Failed, r.Total, r.Failed))
	}
}

// nextPageSize cycles to the next allowed page size.
func nextPageSize(current int) int {
	for i, opt := range model.ItemsPerPageOptions {
		if opt == current {
			return model.ItemsPerPageOptions[(i+1)%len(model.ItemsPerPageOptions)]
		}
	}
	return model.DefaultItemsPerPage
}

// containsFold reports whether list contains s case-insensitively.
func containsFold(list []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
