package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"
)

// UntitledDocument is the title given to documents without a usable first line.
const UntitledDocument = "Untitled Video"

// Document is a transcript or article prior to chunking.
type Document struct {
	Title  string
	Text   string
	Source string
}

// Chunk is a contiguous slice of a document.
type Chunk struct {
	DocumentTitle string
	Index         int
	Text          string
	Source        string
}

// ID is the stable index identity of the chunk.
func (c Chunk) ID() string {
	return fmt.Sprintf("%s_chunk_%d", c.DocumentTitle, c.Index)
}

// Hash fingerprints the chunk text.
func (c Chunk) Hash() string {
	sum := sha256.Sum256([]byte(c.Text))
	return hex.EncodeToString(sum[:])
}

// Chunker splits text into fixed-size rune windows.
type Chunker struct {
	maxRunes int
}

func New(maxRunes int) (*Chunker, error) {
	if maxRunes <= 0 {
		return nil, errors.New("chunk: max size must be greater than zero")
	}
	return &Chunker{maxRunes: maxRunes}, nil
}

func (c *Chunker) MaxRunes() int {
	return c.maxRunes
}

// Split yields the chunks of doc in order. The sequence may be iterated repeatedly.
func (c *Chunker) Split(doc Document) iter.Seq[Chunk] {
	title := doc.Title
	if strings.TrimSpace(title) == "" {
		title = InferTitle(doc.Text)
	}
	return func(yield func(Chunk) bool) {
		text := doc.Text
		for i := 0; len(text) > 0; i++ {
			end := byteOffset(text, c.maxRunes)
			if !yield(Chunk{DocumentTitle: title, Index: i, Text: text[:end], Source: doc.Source}) {
				return
			}
			text = text[end:]
		}
	}
}

// Collect materializes every chunk of doc.
func (c *Chunker) Collect(doc Document) []Chunk {
	out := make([]Chunk, 0, c.Count(doc.Text))
	for ch := range c.Split(doc) {
		out = append(out, ch)
	}
	return out
}

// Count returns ceil(runes/max) without allocating chunks.
func (c *Chunker) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + c.maxRunes - 1) / c.maxRunes
}

// byteOffset returns the byte index just past the first n runes of s.
func byteOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}

// InferTitle takes the first non-empty line of text.
func InferTitle(text string) string {
	for line := range strings.Lines(text) {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return UntitledDocument
}
