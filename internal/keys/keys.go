package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Selection
	Select key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Search
	Search key.Binding

	// Help toggle
	Help key.Binding

	// Manual refresh + auto-refresh toggle
	Refresh     key.Binding
	AutoRefresh key.Binding

	// Paging
	NextPage key.Binding
	PrevPage key.Binding
	PageSize key.Binding

	// Folders
	Inbox key.Binding
	Sent  key.Binding

	// Scope
	Domain  key.Binding
	Address key.Binding

	// Actions
	Delete     key.Binding
	BulkDelete key.Binding
	ClearAll   key.Binding
	Mark       key.Binding
	Compose    key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open message"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		AutoRefresh: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "toggle auto-refresh"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("]", "right"),
			key.WithHelp("]", "next page"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("[", "left"),
			key.WithHelp("[", "prev page"),
		),
		PageSize: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "page size"),
		),
		Inbox: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "inbox"),
		),
		Sent: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "sent"),
		),
		Domain: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "switch domain"),
		),
		Address: key.NewBinding(
			key.WithKeys("@"),
			key.WithHelp("@", "enter address"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		BulkDelete: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "delete marked"),
		),
		ClearAll: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "clear inbox"),
		),
		Mark: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "mark"),
		),
		Compose: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "compose"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Select, k.Back,
		k.Quit, k.Help, k.Search,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Back, k.Quit},
		{k.Search, k.Help, k.Refresh, k.AutoRefresh},
		{k.NextPage, k.PrevPage, k.PageSize, k.Inbox, k.Sent},
		{k.Delete, k.BulkDelete, k.ClearAll, k.Mark, k.Compose},
	}
}
