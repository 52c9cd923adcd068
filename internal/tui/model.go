package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/answer"
	"docqa/internal/domain"
)

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	Ask(ctx context.Context, question string, k int) ([]domain.Answer, error)
	IsReady() bool
}

type answersMsg struct {
	query   string
	answers []domain.Answer
	err     error
}

// Model is the interactive question view.
type Model struct {
	ctx       context.Context
	service   RAGPort
	topK      int
	input     textinput.Model
	viewport  viewport.Model
	answers   []domain.Answer
	summary   string
	status    string
	cursor    int
	ready     bool
	busy      bool
	lastQuery string
}

// New returns a Model asking service for topK passages per question.
// Questions in flight are cancelled with ctx.
func New(ctx context.Context, service RAGPort, summary string, topK int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	status := "Loaded. Type to search."
	if !service.IsReady() {
		status = "No passages indexed. Load documents first."
	}
	return Model{ctx: ctx, service: service, topK: topK, input: ti, viewport: vp, summary: summary, status: status}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		answers, err := m.service.Ask(m.ctx, q, m.topK)
		return answersMsg{query: q, answers: answers, err: err}
	}
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// frames of both boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + summary
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := max(3, msg.Height-reserved)
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case answersMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answers = nil
		} else {
			m.status = fmt.Sprintf("%d results for %q", len(msg.answers), msg.query)
			m.answers = msg.answers
			m.cursor = 0
			m.lastQuery = msg.query
		}
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = fmt.Sprintf("Searching for %q...", q)
				return m, m.ask(q)
			}
		case "down":
			if len(m.answers) > 0 {
				m.cursor = (m.cursor + 1) % len(m.answers)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "up":
			if len(m.answers) > 0 {
				m.cursor = (m.cursor - 1 + len(m.answers)) % len(m.answers)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the whole screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("docqa")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrent() string {
	if len(m.answers) == 0 {
		return "No results yet."
	}
	a := m.answers[m.cursor]
	title := fmt.Sprintf("Result %d/%d  %s  chunk %d  distance=%.4f  similarity=%.1f%%",
		m.cursor+1, len(m.answers), a.Passage.DocumentName, a.Passage.Position,
		a.Distance, a.Similarity*100)
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	if a.Text != "" {
		b.WriteString(labelStyle.Render("Answer: "))
		b.WriteString(a.Text)
		b.WriteString("\n\n")
	}
	b.WriteString(labelStyle.Render("Quote:"))
	b.WriteString("\n")
	b.WriteString(highlightBestSentence(a.Passage.Text, m.lastQuery))
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
)

func highlightBestSentence(text, query string) string {
	sentences, best := answer.BestSentence(text, query)
	if len(sentences) == 0 {
		return text
	}
	out := make([]string, len(sentences))
	for i, s := range sentences {
		s = strings.TrimSpace(s)
		if i == best {
			s = highlightStyle.Render(s)
		}
		out[i] = s
	}
	return strings.Join(out, " ")
}
