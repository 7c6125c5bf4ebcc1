package messagelist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/toannc04966/pastel-inbox/internal/model"
	"github.com/toannc04966/pastel-inbox/internal/theme"
)

// MessageItem wraps a model.MessagePreview so it can be used in a
// bubbles/list.
type MessageItem struct {
	Preview model.MessagePreview
	Read    bool
	Marked  bool
}

// FilterValue returns the string used for fuzzy filtering. Built-in
// filtering is disabled (search is handled by the synchronizer), but
// the interface requires it.
func (i MessageItem) FilterValue() string { return i.Preview.Subject }

// ItemDelegate implements list.ItemDelegate for rendering message rows.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single message row: mark, sender, subject, preview
// snippet, and relative received time.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	mi, ok := item.(MessageItem)
	if !ok {
		return
	}

	p := mi.Preview

	mark := " "
	if mi.Marked {
		mark = theme.MarkedStyle.Render("●")
	}

	sender := p.SenderName
	if sender == "" {
		sender = p.From
	}
	sender = truncate(sender, 24)

	subject := truncate(p.Subject, 48)
	if subject == "" {
		subject = "(no subject)"
	}

	snippet := truncate(strings.ReplaceAll(p.Preview, "\n", " "), 40)
	when := relativeTime(p.ReceivedAt)

	var line string
	if mi.Read {
		line = fmt.Sprintf("%s %s  %s  %s  %s",
			mark,
			theme.ReadStyle.Render(sender),
			theme.ReadStyle.Render(subject),
			theme.ReadStyle.Render(snippet),
			theme.ReadStyle.Render(when),
		)
	} else {
		line = fmt.Sprintf("%s %s  %s  %s  %s",
			mark,
			theme.UnreadStyle.Render(sender),
			theme.UnreadStyle.Render(subject),
			theme.ReadStyle.Render(snippet),
			theme.ReadStyle.Render(when),
		)
	}

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case d < 24*time.Hour:
		hrs := int(d.Hours())
		if hrs == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hrs)
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		weeks := int(d.Hours() / 24 / 7)
		if weeks == 1 {
			return "1w ago"
		}
		return fmt.Sprintf("%dw ago", weeks)
	}
}
