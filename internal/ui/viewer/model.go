package viewer

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/toannc04966/pastel-inbox/internal/model"
	"github.com/toannc04966/pastel-inbox/internal/theme"
)

// Model renders the full content of the currently selected message in a
// scrollable viewport.
type Model struct {
	viewport viewport.Model
	message  *model.Message
	loading  bool
	err      error
	width    int
	height   int
}

// New creates an empty viewer.
func New(width, height int) Model {
	vp := viewport.New(width-4, height-4)
	return Model{
		viewport: vp,
		width:    width,
		height:   height,
	}
}

// SetMessage replaces the displayed message and resets scroll position.
func (m *Model) SetMessage(msg *model.Message) {
	m.message = msg
	m.loading = false
	m.err = nil
	if msg != nil {
		m.viewport.SetContent(renderMessage(msg, m.viewport.Width))
		m.viewport.GotoTop()
	}
}

// SetLoading puts the viewer into the loading state.
func (m *Model) SetLoading() {
	m.loading = true
	m.err = nil
}

// SetError shows a fetch failure in place of the message body.
func (m *Model) SetError(err error) {
	m.loading = false
	m.err = err
}

// Message returns the currently displayed message, or nil.
func (m Model) Message() *model.Message {
	return m.message
}

// Update handles scrolling within the viewport.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the message panel.
func (m Model) View() string {
	if m.loading {
		return m.centered("Loading message...")
	}
	if m.err != nil {
		return m.centered(theme.ErrorStyle.Render(m.err.Error()))
	}
	if m.message == nil {
		return m.centered("No message selected.")
	}

	return theme.ViewerPanelStyle.
		Width(m.width - 2).
		Render(m.viewport.View())
}

// SetSize updates the viewer dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width - 4
	m.viewport.Height = height - 4
	if m.message != nil {
		m.viewport.SetContent(renderMessage(m.message, m.viewport.Width))
	}
}

// renderMessage formats the message headers, body, and attachment list.
func renderMessage(msg *model.Message, width int) string {
	var b strings.Builder

	headerLabel := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorPink)

	subject := msg.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(subject))
	b.WriteString("\n\n")

	from := msg.From
	if msg.SenderName != "" && msg.SenderEmail != "" {
		from = fmt.Sprintf("%s <%s>", msg.SenderName, msg.SenderEmail)
	}
	b.WriteString(headerLabel.Render("From: "))
	b.WriteString(from)
	b.WriteString("\n")

	if len(msg.To) > 0 {
		b.WriteString(headerLabel.Render("To:   "))
		b.WriteString(strings.Join(msg.To, ", "))
		b.WriteString("\n")
	}

	if !msg.ReceivedAt.IsZero() {
		b.WriteString(headerLabel.Render("Date: "))
		b.WriteString(msg.ReceivedAt.Local().Format("Mon, 2 Jan 2006 15:04"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", max(1, width-2)))
	b.WriteString("\n\n")

	b.WriteString(bodyText(msg))

	if len(msg.Attachments) > 0 {
		b.WriteString("\n\n")
		b.WriteString(headerLabel.Render(
			fmt.Sprintf("Attachments (%d)", len(msg.Attachments)),
		))
		b.WriteString("\n")
		for _, a := range msg.Attachments {
			b.WriteString(fmt.Sprintf("  · %s (%s, %s)\n",
				a.Filename, a.ContentType, formatSize(a.Size)))
		}
	}

	return b.String()
}

// bodyText picks the best available body representation: plain text,
// then stripped HTML, then the raw payload.
func bodyText(msg *model.Message) string {
	if msg.Content.Text != "" {
		return msg.Content.Text
	}
	if msg.Content.HTML != "" {
		return stripTags(msg.Content.HTML)
	}
	if msg.Content.Raw != "" {
		return msg.Content.Raw
	}
	return theme.HelpStyle.Render("(empty message)")
}

// stripTags removes HTML tags for a plain-text approximation of an
// HTML-only body.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	out := b.String()
	out = strings.ReplaceAll(out, "&nbsp;", " ")
	out = strings.ReplaceAll(out, "&amp;", "&")
	out = strings.ReplaceAll(out, "&lt;", "<")
	out = strings.ReplaceAll(out, "&gt;", ">")
	return strings.TrimSpace(out)
}

// formatSize renders a byte count in human units.
func formatSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}

func (m Model) centered(text string) string {
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height - 2).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray).
		Render(text)
}
