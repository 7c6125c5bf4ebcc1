package composeform

import (
	"fmt"
	"net/mail"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/toannc04966/pastel-inbox/internal/model"
	"github.com/toannc04966/pastel-inbox/internal/theme"
)

// SubmitMsg is dispatched when the compose form is submitted.
type SubmitMsg struct {
	Message model.OutgoingMessage
}

// CancelMsg is dispatched when the user abandons the form. The draft
// carries whatever was typed so it can be saved for later.
type CancelMsg struct {
	Draft model.ComposeDraft
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	from    string
	to      string
	cc      string
	bcc     string
	subject string
	body    string
}

// Model is the Bubble Tea model for the compose form.
type Model struct {
	form      *huh.Form
	fb        *formBindings
	replyMode bool
	width     int
	height    int
}

// New creates a new compose form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// StartCompose initializes the form for a fresh message. A non-nil
// draft restores a previously saved compose session; defaultFrom is
// used when the draft carries no sender.
func (m *Model) StartCompose(draft *model.ComposeDraft, defaultFrom string) tea.Cmd {
	m.replyMode = false
	m.fb.from = defaultFrom
	m.fb.to = ""
	m.fb.cc = ""
	m.fb.bcc = ""
	m.fb.subject = ""
	m.fb.body = ""

	if draft != nil {
		if draft.From != "" {
			m.fb.from = draft.From
		}
		m.fb.to = strings.Join(draft.To, ", ")
		m.fb.cc = strings.Join(draft.CC, ", ")
		m.fb.bcc = strings.Join(draft.BCC, ", ")
		m.fb.subject = draft.Subject
		m.fb.body = draft.Text
	}

	m.form = m.buildForm()
	return m.form.Init()
}

// StartReply initializes the form as a reply to an existing message:
// recipient, quoted body, and a "Re:" subject are prefilled.
func (m *Model) StartReply(original *model.Message, defaultFrom string) tea.Cmd {
	m.replyMode = true
	m.fb.from = defaultFrom
	m.fb.cc = ""
	m.fb.bcc = ""

	to := original.SenderEmail
	if to == "" {
		to = original.From
	}
	m.fb.to = to

	subject := original.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	m.fb.subject = subject
	m.fb.body = quoteBody(original)

	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the compose form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		draft := m.Draft()
		return m, func() tea.Msg { return CancelMsg{Draft: draft} }
	}

	return m, cmd
}

// Draft captures the current field values as a draft.
func (m Model) Draft() model.ComposeDraft {
	return model.ComposeDraft{
		From:    strings.TrimSpace(m.fb.from),
		To:      splitAddresses(m.fb.to),
		CC:      splitAddresses(m.fb.cc),
		BCC:     splitAddresses(m.fb.bcc),
		Subject: strings.TrimSpace(m.fb.subject),
		Text:    m.fb.body,
	}
}

// View renders the compose form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Message"
	if m.replyMode {
		titleText = "Reply"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(titleText) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("From").
				Placeholder("you@example.com").
				Value(&m.fb.from).
				Validate(validateAddress),
			huh.NewInput().
				Title("To").
				Placeholder("recipient@example.com, another@example.com").
				Value(&m.fb.to).
				Validate(validateAddressList(true)),
			huh.NewInput().
				Title("Cc").
				Placeholder("optional").
				Value(&m.fb.cc).
				Validate(validateAddressList(false)),
			huh.NewInput().
				Title("Bcc").
				Placeholder("optional").
				Value(&m.fb.bcc).
				Validate(validateAddressList(false)),
			huh.NewInput().
				Title("Subject").
				Placeholder("Subject").
				Value(&m.fb.subject),
			huh.NewText().
				Title("Body").
				Placeholder("Write your message...").
				Value(&m.fb.body),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	msg := model.OutgoingMessage{
		From:    strings.TrimSpace(m.fb.from),
		To:      splitAddresses(m.fb.to),
		CC:      splitAddresses(m.fb.cc),
		BCC:     splitAddresses(m.fb.bcc),
		Subject: strings.TrimSpace(m.fb.subject),
		Text:    m.fb.body,
	}
	return func() tea.Msg { return SubmitMsg{Message: msg} }
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

// quoteBody produces the conventional quoted reply body.
func quoteBody(original *model.Message) string {
	body := original.Content.Text
	if body == "" {
		return "\n"
	}

	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("On %s, %s wrote:\n",
		original.ReceivedAt.Local().Format("Mon, 2 Jan 2006 15:04"),
		original.From,
	))
	for _, line := range strings.Split(body, "\n") {
		b.WriteString("> ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// splitAddresses parses a comma-separated address list, dropping blanks.
func splitAddresses(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validateAddress(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("From is required")
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fmt.Errorf("invalid address")
	}
	return nil
}

func validateAddressList(required bool) func(string) error {
	return func(s string) error {
		addrs := splitAddresses(s)
		if len(addrs) == 0 {
			if required {
				return fmt.Errorf("at least one recipient is required")
			}
			return nil
		}
		for _, a := range addrs {
			if _, err := mail.ParseAddress(a); err != nil {
				return fmt.Errorf("invalid address: %s", a)
			}
		}
		return nil
	}
}
