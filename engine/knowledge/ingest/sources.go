package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gosimple/slug"
	"github.com/ledongthuc/pdf"
	"github.com/spf13/afero"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"

	"github.com/compozy/woodsage/engine/knowledge/chunk"
	"github.com/compozy/woodsage/pkg/logger"
)

// DefaultMaxFileSize caps a single source file.
const DefaultMaxFileSize = 20 * 1024 * 1024

// SourceError reports a source entry that could not be loaded.
type SourceError struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (e SourceError) Error() string {
	return fmt.Sprintf("ingest: source %q: %v", e.Path, e.Err)
}

func (e SourceError) Unwrap() error {
	return e.Err
}

// Source yields documents. Unreadable entries are reported, not fatal.
type Source interface {
	Load(ctx context.Context) ([]chunk.Document, []SourceError)
}

// TextSource wraps raw text, e.g. from stdin or an API request.
type TextSource struct {
	Title  string
	Text   string
	Origin string
}

func (s TextSource) Load(context.Context) ([]chunk.Document, []SourceError) {
	text := normalizeText(s.Text)
	if strings.TrimSpace(text) == "" {
		return nil, []SourceError{{Path: s.origin(), Err: errors.New("empty document")}}
	}
	title := strings.TrimSpace(s.Title)
	if title == "" {
		title = chunk.InferTitle(text)
	}
	return []chunk.Document{{Title: title, Text: text, Source: s.origin()}}, nil
}

func (s TextSource) origin() string {
	if s.Origin == "" {
		return "inline"
	}
	return s.Origin
}

// FileSource expands doublestar patterns over Fs and reads text, markdown and PDF files.
type FileSource struct {
	Fs          afero.Fs
	Patterns    []string
	MaxFileSize int64
	// TitleFromName uses a humanized file name instead of the first line.
	TitleFromName bool
}

func (s FileSource) Load(ctx context.Context) ([]chunk.Document, []SourceError) {
	fsys := s.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	var (
		docs     []chunk.Document
		failures []SourceError
		seen     = make(map[string]struct{})
	)
	for _, pattern := range s.Patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		matches, err := expandPattern(fsys, pattern)
		if err != nil {
			failures = append(failures, SourceError{Path: pattern, Err: err})
			continue
		}
		if len(matches) == 0 {
			logger.FromContext(ctx).Warn("Ingestion pattern matched no files", "pattern", pattern)
			continue
		}
		for _, path := range matches {
			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}
			doc, err := s.readDocument(ctx, fsys, path)
			if err != nil {
				failures = append(failures, SourceError{Path: path, Err: err})
				continue
			}
			docs = append(docs, doc)
		}
	}
	return docs, failures
}

func expandPattern(fsys afero.Fs, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
		return nil, fmt.Errorf("invalid glob pattern")
	}
	base, rel := doublestar.SplitPattern(filepath.ToSlash(pattern))
	if rel == "" || !strings.ContainsAny(rel, "*?[{") {
		if _, err := fsys.Stat(pattern); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, nil
			}
			return nil, err
		}
		return []string{pattern}, nil
	}
	matches, err := doublestar.Glob(afero.NewIOFS(afero.NewBasePathFs(fsys, base)), rel, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = filepath.Join(base, filepath.FromSlash(m))
	}
	return out, nil
}

func (s FileSource) readDocument(ctx context.Context, fsys afero.Fs, path string) (chunk.Document, error) {
	limit := s.MaxFileSize
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	info, err := fsys.Stat(path)
	if err != nil {
		return chunk.Document{}, err
	}
	if info.IsDir() {
		return chunk.Document{}, errors.New("is a directory")
	}
	if info.Size() > limit {
		return chunk.Document{}, fmt.Errorf("exceeds maximum size of %d bytes", limit)
	}
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return chunk.Document{}, err
	}
	mime := mimetype.Detect(data)
	var text string
	switch {
	case mime.Is("application/pdf"):
		text, err = extractPDF(data)
	case mime.Is("text/plain"), strings.HasPrefix(mime.String(), "text/"), isMarkdown(path):
		text, err = decodeText(data, mime.String())
	default:
		err = fmt.Errorf("unsupported content type %s", mime.String())
	}
	if err != nil {
		return chunk.Document{}, err
	}
	if strings.TrimSpace(text) == "" {
		return chunk.Document{}, errors.New("no extractable text")
	}
	title := chunk.InferTitle(text)
	if s.TitleFromName {
		title = titleFromPath(path)
	}
	logger.FromContext(ctx).Debug("Loaded source document", "path", path, "mime", mime.String(), "title", title)
	return chunk.Document{Title: title, Text: text, Source: filepath.ToSlash(path)}, nil
}

func isMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt", ".vtt", ".srt":
		return true
	}
	return false
}

// titleFromPath turns "festool-domino_joiner.txt" into "Festool Domino Joiner".
func titleFromPath(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	words := strings.FieldsFunc(slug.Make(name), func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	title := strings.TrimSpace(strings.Join(words, " "))
	if title == "" {
		return chunk.UntitledDocument
	}
	return title
}

func decodeText(data []byte, mime string) (string, error) {
	if utf8.Valid(data) {
		return normalizeText(string(data)), nil
	}
	enc, name, _ := charset.DetermineEncoding(data, mime)
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("transcode from %s: %w", name, err)
	}
	if !utf8.Valid(decoded) {
		return "", errors.New("transcoded result invalid utf-8")
	}
	return normalizeText(string(decoded)), nil
}

func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return normalizeText(string(buf)), nil
}

func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
