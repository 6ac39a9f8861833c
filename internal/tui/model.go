// Package tui is the interactive question loop.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brunobiangulo/docai"
)

// Asker is the TUI-facing subset of the engine.
type Asker interface {
	Ask(ctx context.Context, question string) (*docai.Answer, error)
	KnowledgeSummary(ctx context.Context) (string, error)
}

// summaryCommand shows what has been learned without asking the engine.
const summaryCommand = "summary"


// IsQuit reports whether input ends the session.
func IsQuit(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "q", "quit", "exit":
		return true
	}
	return false
}

type answerMsg struct {
	question string
	answer   *docai.Answer
	err      error
}

type exchange struct {
	question string
	answer   string
	detail   string
	failed   bool
}

// Model is the Bubble Tea model for the chat loop.
type Model struct {
	ctx      context.Context
	engine   Asker
	input    textinput.Model
	viewport viewport.Model
	history  []exchange
	header   string
	status   string
	busy     bool
	ready    bool
}

// New creates a model. header is shown above the transcript, typically
// the number of learned sections.
func New(ctx context.Context, engine Asker, header string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question (q to quit)"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		ctx:      ctx,
		engine:   engine,
		input:    ti,
		viewport: viewport.New(0, 0),
		header:   header,
		status:   "Ready.",
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles keys, window size and answers.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 3 + ih // title, header, status
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil

	case answerMsg:
		m.busy = false
		ex := exchange{question: msg.question}
		switch {
		case msg.err != nil:
			ex.answer = "Error: " + msg.err.Error()
			ex.failed = true
			m.status = "Failed."
		default:
			ex.answer = msg.answer.Text
			ex.detail = describe(msg.answer)
			ex.failed = msg.answer.Mode == docai.ModeGenerationFailed
			m.status = "Ready."
		}
		m.history = append(m.history, ex)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.Type {
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			if IsQuit(q) {
				return m, tea.Quit
			}
			m.input.Reset()
			m.busy = true
			if strings.EqualFold(q, summaryCommand) {
				m.status = "Summarizing..."
				return m, m.summarize(q)
			}
			m.status = "Searching..."
			return m, m.ask(q)
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		ans, err := m.engine.Ask(m.ctx, q)
		return answerMsg{question: q, answer: ans, err: err}
	}
}

func (m Model) summarize(q string) tea.Cmd {
	return func() tea.Msg {
		text, err := m.engine.KnowledgeSummary(m.ctx)
		return answerMsg{question: q, answer: &docai.Answer{Text: text, Mode: docai.ModeSummary}, err: err}
	}
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	title := titleStyle.Render("docai")
	header := mutedStyle.Render(m.header)
	body := transcriptStyle.Render(m.viewport.View())
	input := inputStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return title + "\n" + header + "\n" + body + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m Model) transcript() string {
	if len(m.history) == 0 {
		return mutedStyle.Render("Ask anything about the learned documentation.")
	}
	var sb strings.Builder
	for i, ex := range m.history {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(questionStyle.Render("Question: " + ex.question))
		sb.WriteString("\n")
		if ex.failed {
			sb.WriteString(errorStyle.Render(ex.answer))
		} else {
			sb.WriteString(ex.answer)
		}
		if ex.detail != "" {
			sb.WriteString("\n")
			sb.WriteString(mutedStyle.Render(ex.detail))
		}
	}
	return sb.String()
}

// describe lists the sources behind an answer.
func describe(a *docai.Answer) string {
	if len(a.Sources) == 0 {
		return ""
	}
	parts := make([]string, 0, len(a.Sources))
	for _, s := range a.Sources {
		parts = append(parts, fmt.Sprintf("%s > %s", s.Filename, s.Title))
	}
	return fmt.Sprintf("[%s] %s", a.Ranker, strings.Join(parts, " | "))
}

var (
	titleStyle      = lipgloss.NewStyle().Bold(true)
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	questionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
