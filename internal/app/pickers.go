package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/toannc04966/pastel-inbox/internal/model"
	"github.com/toannc04966/pastel-inbox/internal/theme"
)

// domainChosenMsg is sent when the user confirms a domain in the picker.
type domainChosenMsg struct {
	domain string
}

// addressChosenMsg is sent when the user confirms a mailbox address.
type addressChosenMsg struct {
	email string
}

// pickerCancelMsg is sent when a picker is dismissed without choosing.
type pickerCancelMsg struct{}

// domainPicker is a minimal cursor list over the available domains.
type domainPicker struct {
	domains []string
	cursor  int
	width   int
	height  int
}

func newDomainPicker(width, height int) domainPicker {
	return domainPicker{width: width, height: height}
}

// Start loads the selectable domains. When more than one domain is
// available an aggregate "all" entry is offered first.
func (p *domainPicker) Start(domains []string, current string) {
	p.domains = p.domains[:0]
	if len(domains) > 1 {
		p.domains = append(p.domains, model.DomainAll)
	}
	p.domains = append(p.domains, domains...)

	p.cursor = 0
	for i, d := range p.domains {
		if strings.EqualFold(d, current) {
			p.cursor = i
			break
		}
	}
}

func (p domainPicker) Update(msg tea.Msg) (domainPicker, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}

	switch keyMsg.String() {
	case "j", "down":
		if p.cursor < len(p.domains)-1 {
			p.cursor++
		}
	case "k", "up":
		if p.cursor > 0 {
			p.cursor--
		}
	case "enter":
		if len(p.domains) == 0 {
			return p, nil
		}
		domain := p.domains[p.cursor]
		return p, func() tea.Msg { return domainChosenMsg{domain: domain} }
	case "esc":
		return p, func() tea.Msg { return pickerCancelMsg{} }
	}
	return p, nil
}

func (p domainPicker) View() string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Switch domain"))
	b.WriteString("\n\n")

	for i, d := range p.domains {
		label := d
		if d == model.DomainAll {
			label = "all domains"
		}
		if i == p.cursor {
			b.WriteString(theme.SelectedItemStyle.Render(label))
		} else {
			b.WriteString(theme.ListItemStyle.Render(label))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(theme.HelpStyle.Render("j/k move · enter select · esc cancel"))

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func (p *domainPicker) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// addressInput prompts for a mailbox address, offering the recent
// addresses for the domain. Tab cycles through the recents.
type addressInput struct {
	input   textinput.Model
	recents []model.RecentEmail
	recent  int
	width   int
	height  int
}

func newAddressInput(width, height int) addressInput {
	ti := textinput.New()
	ti.Placeholder = "mailbox@example.com"
	ti.Prompt = "@ "
	ti.Width = width - 8
	return addressInput{input: ti, recent: -1, width: width, height: height}
}

// Start focuses the input with the current address and recent history.
func (a *addressInput) Start(current string, recents []model.RecentEmail) tea.Cmd {
	a.recents = recents
	a.recent = -1
	a.input.SetValue(current)
	a.input.CursorEnd()
	return a.input.Focus()
}

func (a addressInput) Update(msg tea.Msg) (addressInput, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return a, nil
	}

	switch keyMsg.String() {
	case "enter":
		email := strings.TrimSpace(a.input.Value())
		if email == "" {
			return a, nil
		}
		return a, func() tea.Msg { return addressChosenMsg{email: email} }

	case "esc":
		return a, func() tea.Msg { return pickerCancelMsg{} }

	case "tab":
		if len(a.recents) == 0 {
			return a, nil
		}
		a.recent = (a.recent + 1) % len(a.recents)
		a.input.SetValue(a.recents[a.recent].Email)
		a.input.CursorEnd()
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a addressInput) View() string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Open mailbox"))
	b.WriteString("\n\n")
	b.WriteString(a.input.View())
	b.WriteString("\n")

	if len(a.recents) > 0 {
		b.WriteString("\n")
		b.WriteString(theme.HelpStyle.Render("Recent (tab to cycle):"))
		b.WriteString("\n")
		for i, r := range a.recents {
			line := fmt.Sprintf("%s (%d)", r.Email, r.MessageCount)
			if i == a.recent {
				b.WriteString(theme.SelectedItemStyle.Render(line))
			} else {
				b.WriteString(theme.ListItemStyle.Render(line))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(theme.HelpStyle.Render("enter open · tab recent · esc cancel"))

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func (a *addressInput) SetSize(width, height int) {
	a.width = width
	a.height = height
	a.input.Width = width - 8
}
