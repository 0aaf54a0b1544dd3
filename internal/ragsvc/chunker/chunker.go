// Package chunker splits documents into overlapping text chunks for
// embedding and retrieval.
//
// Splitting is separator-aware. Each chunk covers a window of at most
// the configured size, and the window end is moved back to the nearest
// paragraph boundary when one exists, then line breaks, sentences, and
// words, falling back to a hard character break only when the window
// contains no usable boundary. Every chunk after the first starts with
// the exact trailing overlap of its predecessor, so concatenating the
// chunks with the overlap removed reproduces the original text.
package chunker

import (
	"fmt"
	"unicode/utf8"
)

// defaultSeparators are tried in order, from coarsest to finest.
// The empty separator means a hard break on a character boundary.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunk is one overlapping slice of a document. Offset is the rune
// offset of the chunk start within the original text, including the
// overlap carried from the previous chunk.
type Chunk struct {
	Content string
	Index   int
	Offset  int
}

// ChunkingError reports an invalid chunker configuration or input.
type ChunkingError struct {
	Reason string
}

func (e *ChunkingError) Error() string {
	return "chunking failed: " + e.Reason
}

// Chunker splits text into chunks of at most Size runes with Overlap
// runes shared between consecutive chunks.
type Chunker struct {
	size       int
	overlap    int
	separators [][]rune
}

// New creates a Chunker. Size must be positive and the overlap must be
// smaller than the size, otherwise no forward progress is possible.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, &ChunkingError{Reason: fmt.Sprintf("size must be positive, got %d", size)}
	}
	if overlap < 0 {
		return nil, &ChunkingError{Reason: fmt.Sprintf("overlap must not be negative, got %d", overlap)}
	}
	if overlap >= size {
		return nil, &ChunkingError{Reason: fmt.Sprintf("overlap %d must be smaller than size %d", overlap, size)}
	}

	separators := make([][]rune, len(defaultSeparators))
	for i, sep := range defaultSeparators {
		separators[i] = []rune(sep)
	}

	return &Chunker{
		size:       size,
		overlap:    overlap,
		separators: separators,
	}, nil
}

// Size returns the maximum chunk size in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the overlap between consecutive chunks in runes.
func (c *Chunker) Overlap() int { return c.overlap }

// Split breaks text into overlapping chunks. An empty text yields no
// chunks. Text that is not valid UTF-8 is rejected.
func (c *Chunker) Split(text string) ([]Chunk, error) {
	if !utf8.ValidString(text) {
		return nil, &ChunkingError{Reason: "text is not valid UTF-8"}
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)

	var chunks []Chunk
	pos := 0
	for {
		if pos+c.size >= len(runes) {
			chunks = append(chunks, Chunk{
				Content: string(runes[pos:]),
				Index:   len(chunks),
				Offset:  pos,
			})
			return chunks, nil
		}

		end := c.breakPoint(runes, pos)
		chunks = append(chunks, Chunk{
			Content: string(runes[pos:end]),
			Index:   len(chunks),
			Offset:  pos,
		})

		// The next chunk re-reads the last overlap runes of this one.
		pos = end - c.overlap
	}
}

// breakPoint finds where the chunk starting at pos should end. It
// prefers the last occurrence of the coarsest separator inside the
// window, keeping the separator with the chunk it terminates. The break
// must land past the overlap region so the next chunk makes progress.
func (c *Chunker) breakPoint(runes []rune, pos int) int {
	window := runes[pos : pos+c.size]
	minEnd := c.overlap + 1

	for _, sep := range c.separators {
		if len(sep) == 0 {
			break
		}
		if end := lastBoundary(window, sep, minEnd); end >= 0 {
			return pos + end
		}
	}

	// No separator in the window, hard break at the size limit.
	return pos + c.size
}

// lastBoundary returns the end position just after the last occurrence
// of sep in window that ends at or after minEnd, or -1 if there is none.
func lastBoundary(window, sep []rune, minEnd int) int {
	for start := len(window) - len(sep); start >= 0; start-- {
		if start+len(sep) < minEnd {
			return -1
		}
		if equalRunes(window[start:start+len(sep)], sep) {
			return start + len(sep)
		}
	}
	return -1
}

func equalRunes(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
