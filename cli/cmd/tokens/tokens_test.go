package tokens

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/woodsage/cli/helpers"
	"github.com/compozy/woodsage/engine/knowledge/embedder"
	"github.com/compozy/woodsage/pkg/config"
)

type wordTruncator struct{}

func (wordTruncator) Truncate(text string, _ int) string { return text }

func (wordTruncator) Count(text string) int { return len(strings.Fields(text)) }

func runTokens(t *testing.T, stdin string, args ...string) (*Report, error) {
	t.Helper()
	cfg := config.Default()
	cfg.Chunking.MaxRunes = 10
	cfg.Embedding.MaxTokens = 3
	command := NewTokensCommand()
	command.Flags().String(helpers.FlagFormat, "json", "")
	var out bytes.Buffer
	command.SetOut(&out)
	command.SetIn(strings.NewReader(stdin))
	command.SetArgs(args)
	if err := command.ExecuteContext(config.ContextWithConfig(t.Context(), cfg)); err != nil {
		return nil, err
	}
	var report Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	return &report, nil
}

func stubTruncator(t *testing.T, tr embedder.Truncator, err error) {
	t.Helper()
	original := newTruncator
	newTruncator = func(string) (embedder.Truncator, error) { return tr, err }
	t.Cleanup(func() { newTruncator = original })
}

func TestTokensCommand(t *testing.T) {
	t.Run("Should count tokens and chunks from standard input", func(t *testing.T) {
		stubTruncator(t, wordTruncator{}, nil)
		report, err := runTokens(t, "one two three four", "-")
		require.NoError(t, err)
		assert.Equal(t, "-", report.Source)
		assert.Equal(t, "tokens", report.Unit)
		assert.Equal(t, 4, report.Tokens)
		assert.Equal(t, 18, report.Runes)
		assert.Equal(t, 2, report.Chunks)
		assert.Equal(t, 3, report.MaxTokens)
		assert.True(t, report.Truncated)
	})

	t.Run("Should fall back to runes when the encoding cannot load", func(t *testing.T) {
		stubTruncator(t, embedder.RuneTruncator{}, errors.New("offline"))
		report, err := runTokens(t, "ñandú", "-")
		require.NoError(t, err)
		assert.Equal(t, "runes", report.Unit)
		assert.Equal(t, 5, report.Tokens)
		assert.Equal(t, 1, report.Chunks)
		assert.True(t, report.Truncated)
	})

	t.Run("Should reject invalid UTF-8", func(t *testing.T) {
		stubTruncator(t, wordTruncator{}, nil)
		_, err := runTokens(t, "bad \xff bytes", "-")
		var cliErr *helpers.CliError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, "INVALID_INPUT", cliErr.Code)
	})

	t.Run("Should report a missing file", func(t *testing.T) {
		stubTruncator(t, wordTruncator{}, nil)
		_, err := runTokens(t, "", "does-not-exist.txt")
		require.Error(t, err)
	})
}
