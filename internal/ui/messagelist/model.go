package messagelist

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/toannc04966/pastel-inbox/internal/api"
	"github.com/toannc04966/pastel-inbox/internal/keys"
	"github.com/toannc04966/pastel-inbox/internal/mailbox"
	"github.com/toannc04966/pastel-inbox/internal/theme"
)

// SelectedMessageMsg is sent when a user opens a message.
type SelectedMessageMsg struct {
	ID string
}

// SearchChangedMsg is sent on every search keystroke; the synchronizer
// debounces before applying the filter.
type SearchChangedMsg struct {
	Query string
}

// Model is the message list view component. It renders snapshots owned
// by the list synchronizer; it never mutates the collection itself.
type Model struct {
	list        list.Model
	keys        *keys.KeyMap
	snapshot    mailbox.ListSnapshot
	readSet     map[string]bool
	marked      map[string]bool
	searchMode  bool
	searchInput textinput.Model
	width       int
	height      int
}

// New creates a new message list model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Inbox"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search sender, subject, preview..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		keys:        k,
		marked:      make(map[string]bool),
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// SetSnapshot replaces the rendered list contents from a synchronizer
// snapshot plus the persisted read-state set.
func (m *Model) SetSnapshot(snap mailbox.ListSnapshot, readSet map[string]bool) tea.Cmd {
	m.snapshot = snap
	m.readSet = readSet

	// Drop marks for messages that no longer exist.
	present := make(map[string]bool, len(snap.Messages))
	items := make([]list.Item, len(snap.Messages))
	for i, p := range snap.Messages {
		present[p.ID] = true
		items[i] = MessageItem{
			Preview: p,
			Read:    readSet[p.ID],
			Marked:  m.marked[p.ID],
		}
	}
	for id := range m.marked {
		if !present[id] {
			delete(m.marked, id)
		}
	}

	if snap.Scope.Folder == mailbox.FolderSent {
		m.list.Title = "Sent"
	} else {
		m.list.Title = "Inbox"
	}
	m.list.Styles.Title = theme.FolderStyle(string(snap.Scope.Folder))

	return m.list.SetItems(items)
}

// SelectedID returns the id of the focused row, or "".
func (m Model) SelectedID() string {
	item, ok := m.list.SelectedItem().(MessageItem)
	if !ok {
		return ""
	}
	return item.Preview.ID
}

// MarkedIDs returns the ids marked for bulk deletion.
func (m Model) MarkedIDs() []string {
	ids := make([]string, 0, len(m.marked))
	for _, p := range m.snapshot.Messages {
		if m.marked[p.ID] {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// ClearMarks drops all bulk-delete marks.
func (m *Model) ClearMarks() {
	m.marked = make(map[string]bool)
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

// Update handles messages for the message list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if m.searchMode {
			return m.handleSearchKeys(keyMsg)
		}
		return m.handleNormalKeys(keyMsg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys processes key input while in search mode. Each
// keystroke is forwarded so filtering feels live; the synchronizer owns
// the debounce.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		return m, nil

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		return m, func() tea.Msg {
			return SearchChangedMsg{Query: ""}
		}
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	query := m.searchInput.Value()
	return m, tea.Batch(cmd, func() tea.Msg {
		return SearchChangedMsg{Query: query}
	})
}

// handleNormalKeys processes key input in normal (non-search) mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		item, ok := m.list.SelectedItem().(MessageItem)
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return SelectedMessageMsg{ID: item.Preview.ID}
		}

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.Reset()
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.Mark):
		item, ok := m.list.SelectedItem().(MessageItem)
		if !ok {
			return m, nil
		}
		if m.marked[item.Preview.ID] {
			delete(m.marked, item.Preview.ID)
		} else {
			m.marked[item.Preview.ID] = true
		}
		return m, m.SetSnapshot(m.snapshot, m.readSet)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the message list view.
func (m Model) View() string {
	var header string
	if m.searchMode || m.snapshot.SearchQuery != "" {
		header = lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View()) + "\n"
	}

	switch m.snapshot.State {
	case mailbox.StateIdle:
		return header + m.centered("Enter a mailbox address to view messages.")
	case mailbox.StateLoading:
		if len(m.snapshot.Messages) == 0 {
			return header + m.centered("Loading messages...")
		}
	case mailbox.StateErrored:
		return header + m.centered(theme.ErrorStyle.Render(errorText(m.snapshot.Err)))
	case mailbox.StateEmpty:
		return header + m.centered("No messages.")
	}

	if len(m.snapshot.Messages) == 0 && m.snapshot.SearchQuery != "" {
		return header + m.centered("No messages match the search.")
	}

	return header + m.list.View() + "\n" + m.pageFooter()
}

// pageFooter renders the pagination line.
func (m Model) pageFooter() string {
	p := m.snapshot.Pagination
	text := fmt.Sprintf(
		"page %d/%d · %d per page · %d messages",
		p.CurrentPage, p.TotalPages(), p.ItemsPerPage, p.TotalItems,
	)
	if m.snapshot.PollErr != nil {
		text += " · " + theme.ErrorStyle.Render("refresh failed, showing cached")
	}
	return theme.HelpStyle.Render(text)
}

// centered renders guidance text in the middle of the content area.
func (m Model) centered(text string) string {
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height - 2).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray).
		Render(text)
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}

// errorText maps an error to user-facing list messaging.
func errorText(err error) string {
	if err == nil {
		return "something went wrong"
	}
	if api.IsForbidden(err) {
		return "access denied for this mailbox"
	}
	return err.Error()
}
