package models

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// BaseModel tracks what every full-screen model needs: the command context,
// the terminal size and whether the user asked to leave.
type BaseModel struct {
	ctx      context.Context
	width    int
	height   int
	quitting bool
}

func NewBaseModel(ctx context.Context) BaseModel {
	return BaseModel{ctx: ctx}
}

func (m BaseModel) Context() context.Context { return m.ctx }

func (m BaseModel) Size() (width, height int) { return m.width, m.height }

func (m BaseModel) IsQuitting() bool { return m.quitting }

// Update records resizes and turns ctrl+c or esc into tea.Quit.
func (m *BaseModel) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			m.quitting = true
			return tea.Quit
		}
	}
	return nil
}
