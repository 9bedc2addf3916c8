package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/knadh/koanf/maps"
	"gopkg.in/yaml.v3"
)

type SourceType string

const (
	SourceDefault SourceType = "default"
	SourceYAML    SourceType = "yaml"
	SourceCLI     SourceType = "cli"
	SourceEnv     SourceType = "env"
)

// Source supplies a nested configuration map.
type Source interface {
	Load() (map[string]any, error)
	Type() SourceType
}

// koanfSource lets the loader merge a Source with koanf.Load.
type koanfSource struct{ Source }

func (s koanfSource) Read() (map[string]any, error) { return s.Load() }

func (s koanfSource) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("%s source does not support ReadBytes", s.Type())
}

type yamlFile string

// NewYAMLProvider reads a YAML file. A missing file yields no values.
func NewYAMLProvider(path string) Source { return yamlFile(path) }

func (path yamlFile) Type() SourceType { return SourceYAML }

func (path yamlFile) Load() (map[string]any, error) {
	raw, err := os.ReadFile(string(path))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return map[string]any{}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc := map[string]any{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	pruneNulls(doc)
	return doc, nil
}

// pruneNulls drops explicit YAML nulls, and sections left empty by them, so
// they cannot override defaults.
func pruneNulls(doc map[string]any) {
	for key, value := range doc {
		switch v := value.(type) {
		case nil:
			delete(doc, key)
		case map[string]any:
			pruneNulls(v)
			if len(v) == 0 {
				delete(doc, key)
			}
		}
	}
}

type flagValues map[string]any

// NewCLIProvider accepts dot-notation paths, e.g. "retrieval.top_k".
func NewCLIProvider(values map[string]any) Source { return flagValues(values) }

func (f flagValues) Type() SourceType { return SourceCLI }

func (f flagValues) Load() (map[string]any, error) {
	if len(f) == 0 {
		return map[string]any{}, nil
	}
	return maps.Unflatten(f, "."), nil
}
