package models

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/compozy/woodsage/cli/tui/styles"
	"github.com/compozy/woodsage/engine/answer"
)

// HistorySize is the number of exchanges the chat keeps on screen.
const HistorySize = 5

// AskFunc answers one question.
type AskFunc func(ctx context.Context, question string) (*answer.Result, error)

type Exchange struct {
	Question string
	Result   *answer.Result
	Err      error
}

// AnswerMsg carries a finished exchange back into the update loop.
type AnswerMsg Exchange

type ChatModel struct {
	BaseModel
	ask      AskFunc
	input    textinput.Model
	spinner  spinner.Model
	examples []string
	history  []Exchange
	pending  string
	asking   bool
}

func NewChatModel(ctx context.Context, ask AskFunc, examples []string) *ChatModel {
	in := textinput.New()
	in.Placeholder = "Ask a woodworking question, or pick an example by number"
	in.CharLimit = 500
	in.Width = 72
	in.Focus()
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.TitleStyle
	return &ChatModel{
		BaseModel: NewBaseModel(ctx),
		ask:       ask,
		input:     in,
		spinner:   s,
		examples:  examples,
	}
}

func (m *ChatModel) History() []Exchange {
	return m.history
}

func (m *ChatModel) Asking() bool {
	return m.asking
}

func (m *ChatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if cmd := m.BaseModel.Update(msg); cmd != nil {
		return m, cmd
	}
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.input.Width = max(msg.Width-4, 20)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyEnter {
			return m, m.submit()
		}
	case AnswerMsg:
		m.record(Exchange(msg))
		return m, nil
	case spinner.TickMsg:
		if !m.asking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	if m.asking {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *ChatModel) submit() tea.Cmd {
	if m.asking {
		return nil
	}
	question := m.resolveQuestion(m.input.Value())
	if question == "" {
		return nil
	}
	m.input.Reset()
	m.pending = question
	m.asking = true
	return tea.Batch(m.spinner.Tick, m.askCmd(question))
}

// resolveQuestion maps "1".."n" to the listed examples.
func (m *ChatModel) resolveQuestion(raw string) string {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil && n >= 1 && n <= len(m.examples) {
		return m.examples[n-1]
	}
	return raw
}

func (m *ChatModel) askCmd(question string) tea.Cmd {
	ctx := m.Context()
	ask := m.ask
	return func() tea.Msg {
		res, err := ask(ctx, question)
		return AnswerMsg{Question: question, Result: res, Err: err}
	}
}

func (m *ChatModel) record(ex Exchange) {
	m.asking = false
	m.pending = ""
	m.history = append(m.history, ex)
	if len(m.history) > HistorySize {
		m.history = m.history[len(m.history)-HistorySize:]
	}
}

func (m *ChatModel) View() string {
	if m.IsQuitting() {
		return ""
	}
	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("woodsage"))
	b.WriteString(styles.MutedStyle.Render("  ask about woodworking techniques and tools"))
	b.WriteString("\n\n")
	if len(m.history) == 0 && len(m.examples) > 0 {
		b.WriteString(styles.MutedStyle.Render("Try one of these:"))
		for i, q := range m.examples {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, q)
		}
		b.WriteString("\n\n")
	}
	for _, ex := range m.history {
		b.WriteString(styles.QuestionStyle.Render("> " + ex.Question))
		b.WriteString("\n")
		if ex.Err != nil {
			b.WriteString(styles.ErrorStyle.Render("error: " + ex.Err.Error()))
		} else {
			b.WriteString(styles.RenderAnswer(ex.Result))
		}
		b.WriteString("\n\n")
	}
	if m.asking {
		b.WriteString(styles.QuestionStyle.Render("> " + m.pending))
		fmt.Fprintf(&b, "\n%s thinking...\n\n", m.spinner.View())
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(styles.MutedStyle.Render("enter to ask • esc to quit"))
	return b.String()
}
