// Package tui is the terminal review screen for bulk approve/reject batches.
// Each candidate of the batch is shown in turn with the offered templates and
// an editable feedback form.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"recruitline/internal/batch"
	"recruitline/internal/domain"
	"recruitline/internal/feedback"
)

type focus int

const (
	focusTemplates focus = iota
	focusSubject
	focusContent
	focusCount
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4D96FF"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#6BCB77"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Review walks one batch. Run it with tea.NewProgram and read Progress once
// the program exits.
type Review struct {
	ctx   context.Context
	batch *batch.Batch

	candidate  domain.Candidate
	offered    []domain.FeedbackTemplate
	templateID string
	subject    textinput.Model
	content    textarea.Model
	focus      focus

	progress batch.Progress
	busy     bool
	status   string
	err      error
	width    int
}

type loadedMsg struct {
	candidate domain.Candidate
	offered   []domain.FeedbackTemplate
	progress  batch.Progress
	err       error
}

type submittedMsg struct {
	progress batch.Progress
	err      error
}

type canceledMsg struct {
	progress batch.Progress
	err      error
}

func NewReview(ctx context.Context, b *batch.Batch) *Review {
	subject := textinput.New()
	subject.Placeholder = "Subject"
	subject.CharLimit = 200
	content := textarea.New()
	content.Placeholder = "Message to the candidate"
	content.SetHeight(8)
	content.ShowLineNumbers = false
	return &Review{
		ctx:      ctx,
		batch:    b,
		subject:  subject,
		content:  content,
		progress: b.Progress(),
	}
}

// Progress is the batch state after the last action.
func (m *Review) Progress() batch.Progress { return m.progress }

func (m *Review) Init() tea.Cmd {
	return m.load()
}

func (m *Review) load() tea.Cmd {
	b, ctx := m.batch, m.ctx
	return func() tea.Msg {
		c, err := b.Current(ctx)
		if err != nil {
			return loadedMsg{progress: b.Progress(), err: err}
		}
		offered, err := b.Offered(ctx)
		return loadedMsg{candidate: c, offered: offered, progress: b.Progress(), err: err}
	}
}

func (m *Review) submit() tea.Cmd {
	b, ctx := m.batch, m.ctx
	sub := feedback.Submission{
		TemplateID: m.templateID,
		Subject:    m.subject.Value(),
		Content:    m.content.Value(),
	}
	return func() tea.Msg {
		p, err := b.Submit(ctx, sub)
		return submittedMsg{progress: p, err: err}
	}
}

func (m *Review) cancel() tea.Cmd {
	b, ctx := m.batch, m.ctx
	return func() tea.Msg {
		p, err := b.Cancel(ctx)
		return canceledMsg{progress: p, err: err}
	}
}

func (m *Review) pick(n int) {
	if n < 0 || n >= len(m.offered) {
		return
	}
	t := m.offered[n]
	d := feedback.Draft(t, m.candidate)
	m.templateID = d.TemplateID
	m.subject.SetValue(d.Subject)
	m.content.SetValue(d.Content)
	m.status = fmt.Sprintf("Using template %q", t.Title)
	m.err = nil
}

func (m *Review) setFocus(f focus) {
	m.focus = f
	m.subject.Blur()
	m.content.Blur()
	switch f {
	case focusSubject:
		m.subject.Focus()
	case focusContent:
		m.content.Focus()
	}
}

func (m *Review) reset() {
	m.templateID = ""
	m.subject.SetValue("")
	m.content.Reset()
	m.setFocus(focusTemplates)
}

func (m *Review) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.content.SetWidth(max(20, msg.Width-4))
		return m, nil

	case loadedMsg:
		m.busy = false
		m.progress = msg.progress
		if m.progress.Done {
			return m, tea.Quit
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.candidate = msg.candidate
		m.offered = msg.offered
		m.reset()
		return m, nil

	case submittedMsg:
		m.busy = false
		m.progress = msg.progress
		if msg.err != nil {
			// The candidate stays current; keep the form for a retry.
			m.err = msg.err
			return m, nil
		}
		m.status = fmt.Sprintf("Sent to %s", m.candidate.Name)
		m.err = nil
		if m.progress.Done {
			return m, tea.Quit
		}
		m.busy = true
		return m, m.load()

	case canceledMsg:
		m.busy = false
		m.progress = msg.progress
		m.err = msg.err
		return m, tea.Quit

	case tea.KeyMsg:
		if m.busy {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		}
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			m.busy = true
			return m, m.cancel()
		case "ctrl+s":
			m.busy = true
			m.status = "Sending..."
			return m, m.submit()
		case "tab":
			m.setFocus((m.focus + 1) % focusCount)
			return m, nil
		case "shift+tab":
			m.setFocus((m.focus + focusCount - 1) % focusCount)
			return m, nil
		}
		if m.focus == focusTemplates {
			switch s := msg.String(); s {
			case "1", "2", "3":
				m.pick(int(s[0] - '1'))
			case "enter":
				m.setFocus(focusSubject)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusSubject:
		m.subject, cmd = m.subject.Update(msg)
	case focusContent:
		m.content, cmd = m.content.Update(msg)
	}
	return m, cmd
}

// position is the 1-based number of the candidate on screen.
func (m *Review) position() int {
	n := m.progress.Processed + m.progress.Skipped + 1
	if n > m.progress.Total {
		n = m.progress.Total
	}
	return n
}

func (m *Review) View() string {
	var b strings.Builder
	verb := "Approve"
	if m.batch.Summary().Action == domain.ActionReject {
		verb = "Reject"
	}
	fmt.Fprintf(&b, "%s\n", titleStyle.Render(fmt.Sprintf("%s candidates  %d/%d", verb, m.position(), m.progress.Total)))
	if m.candidate.ID != "" {
		info := fmt.Sprintf("%s <%s>\n%s  stage: %s", m.candidate.Name, m.candidate.Email, m.candidate.FormTitle, m.candidate.Stage)
		b.WriteString(boxStyle.Render(info))
		b.WriteString("\n")
	}

	b.WriteString(m.label("Templates", focusTemplates))
	if len(m.offered) == 0 {
		b.WriteString(labelStyle.Render("  none for this action, write the message below"))
		b.WriteString("\n")
	}
	for i, t := range m.offered {
		line := fmt.Sprintf("  %d. %s", i+1, t.Title)
		if t.ID == m.templateID {
			line = activeStyle.Render(line + " *")
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(m.label("Subject", focusSubject))
	b.WriteString(m.subject.View() + "\n")
	b.WriteString(m.label("Message", focusContent))
	b.WriteString(m.content.View() + "\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	} else if m.status != "" {
		b.WriteString(labelStyle.Render(m.status) + "\n")
	}
	b.WriteString(labelStyle.Render("1-3 template  tab next field  ctrl+s send  esc cancel batch"))
	return b.String()
}

func (m *Review) label(text string, f focus) string {
	if m.focus == f {
		return activeStyle.Render("> "+text) + "\n"
	}
	return labelStyle.Render("  "+text) + "\n"
}
