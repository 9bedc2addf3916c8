package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/woodsage/cli/cmd"
	"github.com/compozy/woodsage/cli/helpers"
	"github.com/compozy/woodsage/engine/app"
	"github.com/compozy/woodsage/engine/knowledge/embedder"
	llmadapter "github.com/compozy/woodsage/engine/llm/adapter"
	"github.com/compozy/woodsage/pkg/config"
)

const testDim = 8

type hashEmbedder struct{}

func (hashEmbedder) vector(text string) []float32 {
	v := make([]float32, testDim)
	for i, r := range text {
		h := fnv.New32a()
		h.Write([]byte(string(r)))
		v[(int(h.Sum32())+i)%testDim]++
	}
	v[0] += 0.01
	return v
}

func (e hashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e hashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

type cannedLLM struct{}

func (cannedLLM) GenerateContent(context.Context, *llmadapter.CompletionRequest) (*llmadapter.Completion, error) {
	return &llmadapter.Completion{Content: "trigger clamp, glue-ups"}, nil
}

func (cannedLLM) Close() error { return nil }

// harness runs commands against one in-memory index and catalog directory.
type harness struct {
	t       *testing.T
	cfgPath string
	fs      afero.Fs
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "woodsage.yaml")
	content := strings.Join([]string{
		"vector:",
		"  provider: filesystem",
		"  path: /index/woodsage.json",
		"catalog:",
		"  driver: sqlite",
		"  path: " + filepath.Join(dir, "catalog.db"),
		"embedding:",
		"  dimension: 8",
		"  max_attempts: 1",
		"chunking:",
		"  max_runes: 60",
		"runtime:",
		"  log_level: disabled",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))
	return &harness{t: t, cfgPath: cfgPath, fs: afero.NewMemMapFs()}
}

func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	root := RootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader(stdin))
	base := []string{"--config", h.cfgPath, "--env-file", "", "--format", "json"}
	root.SetArgs(append(base, args...))
	ctx := cmd.ContextWithRuntimeOptions(h.t.Context(),
		app.WithEmbedder(hashEmbedder{}),
		app.WithLLMClient(cannedLLM{}),
		app.WithTruncator(embedder.RuneTruncator{}),
		app.WithFs(h.fs),
	)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func decode[T any](t *testing.T, raw string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestRootCmd_Catalog(t *testing.T) {
	h := newHarness(t)

	t.Run("Should list the seeded products", func(t *testing.T) {
		out, err := h.run("", "catalog", "list")
		require.NoError(t, err)
		products := decode[[]map[string]any](t, out)
		assert.Len(t, products, 11)
	})

	t.Run("Should add, update and delete a product", func(t *testing.T) {
		out, err := h.run("", "catalog", "add", "--title", "Bench Dog", "--tags", "bench, workholding",
			"--link", "https://example.com/dog")
		require.NoError(t, err)
		added := decode[map[string]any](t, out)
		assert.InDelta(t, 12, added["id"], 0)

		out, err = h.run("", "catalog", "update", "12", "--title", "Round Bench Dog")
		require.NoError(t, err)
		updated := decode[map[string]any](t, out)
		assert.Equal(t, "Round Bench Dog", updated["title"])
		assert.Equal(t, "https://example.com/dog", updated["link"])

		_, err = h.run("", "catalog", "delete", "12")
		require.NoError(t, err)
		_, err = h.run("", "catalog", "get", "12")
		var cliErr *helpers.CliError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, "NOT_FOUND", cliErr.Code)
	})

	t.Run("Should reject invalid products", func(t *testing.T) {
		_, err := h.run("", "catalog", "add", "--title", "No Link")
		var cliErr *helpers.CliError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, "INVALID_INPUT", cliErr.Code)
	})

	t.Run("Should fuzzy-match keywords", func(t *testing.T) {
		out, err := h.run("", "catalog", "match", "trigger clamp")
		require.NoError(t, err)
		report := decode[map[string]any](t, out)
		assert.Equal(t, "matched", report["status"])
	})

	t.Run("Should keep seeding idempotent", func(t *testing.T) {
		out, err := h.run("", "catalog", "seed")
		require.NoError(t, err)
		assert.InDelta(t, 11, decode[map[string]any](t, out)["products"], 0)
		out, err = h.run("", "catalog", "list", "--all")
		require.NoError(t, err)
		assert.Len(t, decode[[]map[string]any](t, out), 11)
	})
}

func TestRootCmd_IngestAndAsk(t *testing.T) {
	h := newHarness(t)

	t.Run("Should answer without context on an empty index", func(t *testing.T) {
		out, err := h.run("", "ask", "How do I glue up a panel?")
		require.NoError(t, err)
		assert.Equal(t, "NO_CONTEXT", decode[map[string]any](t, out)["final"])
	})

	t.Run("Should ingest standard input", func(t *testing.T) {
		text := "Glue-ups go faster with one-handed clamps. Check the diagonals before the glue sets."
		out, err := h.run(text, "ingest", "-", "--title", "Basics of Cabinet Building")
		require.NoError(t, err)
		report := decode[map[string]any](t, out)
		assert.InDelta(t, 1, report["documents"], 0)
		assert.InDelta(t, 2, report["chunks"], 0)
		assert.InDelta(t, 2, report["persisted"], 0)
	})

	t.Run("Should answer from the persisted index", func(t *testing.T) {
		out, err := h.run("", "ask", "How do I glue up a panel?")
		require.NoError(t, err)
		res := decode[map[string]any](t, out)
		assert.Equal(t, "DONE", res["final"])
		video := res["related_video"].(map[string]any)
		assert.Equal(t, "Oeu7ogH2NZU", video["video_id"])
	})

	t.Run("Should answer one JSON line per chat question", func(t *testing.T) {
		out, err := h.run("Which clamp?\n\nHow long should glue cure?\n", "chat")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "}\n{")
		assert.Len(t, lines, 2)
		assert.Contains(t, out, `"question": "Which clamp?"`)
	})

	t.Run("Should report index stats and delete by title", func(t *testing.T) {
		out, err := h.run("", "index", "stats")
		require.NoError(t, err)
		stats := decode[map[string]any](t, out)
		assert.Equal(t, "filesystem", stats["provider"])
		before := stats["total_count"].(float64)
		assert.GreaterOrEqual(t, before, float64(2))

		out, err = h.run("", "index", "delete", "--title", "Basics of Cabinet Building")
		require.NoError(t, err)
		res := decode[map[string]any](t, out)
		assert.InDelta(t, before-2, res["after"], 0)
	})

	t.Run("Should refuse an unfiltered delete", func(t *testing.T) {
		_, err := h.run("", "index", "delete")
		var cliErr *helpers.CliError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, "MISSING_FLAG", cliErr.Code)
	})
}

func TestRootCmd_Offline(t *testing.T) {
	t.Run("Should report disabled models", func(t *testing.T) {
		h := newHarness(t)
		root := RootCmd()
		root.SetOut(&bytes.Buffer{})
		root.SetArgs([]string{"--config", h.cfgPath, "--env-file", "", "--format", "json", "ask", "anything"})
		ctx := cmd.ContextWithRuntimeOptions(t.Context(), app.WithFs(h.fs), app.Offline())
		err := root.ExecuteContext(ctx)
		var cliErr *helpers.CliError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, "MODELS_DISABLED", cliErr.Code)
	})
}

func TestRootCmd_ConfigAndVersion(t *testing.T) {
	h := newHarness(t)

	t.Run("Should print the merged configuration", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-secret")
		out, err := h.run("", "config", "show", "-o", "json")
		require.NoError(t, err)
		assert.NotContains(t, out, "sk-secret")
		values := decode[map[string]any](t, out)
		chunking := values["chunking"].(map[string]any)
		assert.InDelta(t, 60, chunking["max_runes"], 0)
	})

	t.Run("Should print YAML by default", func(t *testing.T) {
		out, err := h.run("", "config", "show")
		require.NoError(t, err)
		assert.Contains(t, out, "max_runes: 60")
	})

	t.Run("Should list environment overrides", func(t *testing.T) {
		out, err := h.run("", "config", "env")
		require.NoError(t, err)
		assert.Contains(t, out, `"name": "OPENAI_API_KEY"`)
	})

	t.Run("Should print build information", func(t *testing.T) {
		out, err := h.run("", "version")
		require.NoError(t, err)
		assert.Contains(t, decode[map[string]any](t, out), "go_version")
	})

	t.Run("Should fail on invalid configuration", func(t *testing.T) {
		_, err := h.run("", "ask", "x", "--top-k", "0")
		require.Error(t, err)
	})
}

func TestSetupGlobalConfig(t *testing.T) {
	t.Run("Should attach the configuration and apply flag overrides", func(t *testing.T) {
		h := newHarness(t)
		root := RootCmd()
		var got *config.Config
		inspect := &cobra.Command{
			Use: "inspect",
			RunE: func(c *cobra.Command, _ []string) error {
				got = config.FromContext(c.Context())
				return nil
			},
		}
		inspect.Flags().Int("top-k", 0, "")
		root.AddCommand(inspect)
		root.SetArgs([]string{"--config", h.cfgPath, "--env-file", "", "inspect", "--top-k", "7"})
		require.NoError(t, root.ExecuteContext(t.Context()))
		require.NotNil(t, got)
		assert.Equal(t, 7, got.Retrieval.TopK)
		assert.Equal(t, 60, got.Chunking.MaxRunes)
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("Should reject files outside the working directory", func(t *testing.T) {
		root := RootCmd()
		require.NoError(t, root.PersistentFlags().Set(helpers.FlagEnvFile, "../../outside.env"))
		_, err := loadEnvFile(root)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "outside the project directory")
	})

	t.Run("Should ignore a missing file", func(t *testing.T) {
		root := RootCmd()
		require.NoError(t, root.PersistentFlags().Set(helpers.FlagEnvFile, "missing.env"))
		_, err := loadEnvFile(root)
		assert.NoError(t, err)
	})

	t.Run("Should check directory containment", func(t *testing.T) {
		assert.True(t, withinDir("/a/b/c.env", "/a/b"))
		assert.True(t, withinDir("/a/b", "/a/b"))
		assert.True(t, withinDir("/a/b/..env", "/a/b"))
		assert.False(t, withinDir("/a/bc/d.env", "/a/b"))
		assert.False(t, withinDir("/a/d.env", "/a/b"))
	})
}
