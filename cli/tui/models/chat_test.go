package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/compozy/woodsage/engine/answer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeText(m *ChatModel, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func TestChatModel(t *testing.T) {
	echo := func(_ context.Context, q string) (*answer.Result, error) {
		return &answer.Result{Query: q, Final: answer.StateDone, Text: "answer to " + q}, nil
	}

	t.Run("Should ask the typed question", func(t *testing.T) {
		m := NewChatModel(t.Context(), echo, nil)
		typeText(m, "How do I flatten a board?")
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		require.NotNil(t, cmd)
		assert.True(t, m.Asking())
		msg := m.askCmd("How do I flatten a board?")()
		m.Update(msg)
		assert.False(t, m.Asking())
		require.Len(t, m.History(), 1)
		assert.Equal(t, "answer to How do I flatten a board?", m.History()[0].Result.Text)
		assert.Contains(t, m.View(), "How do I flatten a board?")
	})

	t.Run("Should resolve example numbers", func(t *testing.T) {
		m := NewChatModel(t.Context(), echo, []string{"What is a dado?", "Which glue?"})
		assert.Equal(t, "Which glue?", m.resolveQuestion(" 2 "))
		assert.Equal(t, "3", m.resolveQuestion("3"))
		assert.Contains(t, m.View(), "1. What is a dado?")
	})

	t.Run("Should ignore blank input and enter while asking", func(t *testing.T) {
		m := NewChatModel(t.Context(), echo, nil)
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.Nil(t, cmd)
		typeText(m, "first")
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.Nil(t, cmd)
	})

	t.Run("Should keep only the last five exchanges", func(t *testing.T) {
		m := NewChatModel(t.Context(), echo, nil)
		for i := range 7 {
			m.Update(AnswerMsg{Question: fmt.Sprintf("q%d", i)})
		}
		require.Len(t, m.History(), HistorySize)
		assert.Equal(t, "q2", m.History()[0].Question)
		assert.Equal(t, "q6", m.History()[4].Question)
	})

	t.Run("Should show failures inline", func(t *testing.T) {
		m := NewChatModel(t.Context(), echo, nil)
		m.Update(AnswerMsg{Question: "q", Err: errors.New("completion unavailable")})
		assert.Contains(t, m.View(), "error: completion unavailable")
	})

	t.Run("Should quit on escape", func(t *testing.T) {
		m := NewChatModel(t.Context(), echo, nil)
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		require.NotNil(t, cmd)
		assert.True(t, m.IsQuitting())
		assert.Empty(t, m.View())
	})
}
