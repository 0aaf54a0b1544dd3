package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{name: "valid", size: 500, overlap: 50},
		{name: "zero overlap", size: 100, overlap: 0},
		{name: "zero size", size: 0, overlap: 0, wantErr: true},
		{name: "negative overlap", size: 100, overlap: -1, wantErr: true},
		{name: "overlap equals size", size: 100, overlap: 100, wantErr: true},
		{name: "overlap exceeds size", size: 100, overlap: 150, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.size, tt.overlap)
			if tt.wantErr {
				var ce *ChunkingError
				require.ErrorAs(t, err, &ce)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSplitEmpty(t *testing.T) {
	c, err := New(500, 50)
	require.NoError(t, err)

	chunks, err := c.Split("")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitInvalidUTF8(t *testing.T) {
	c, err := New(500, 50)
	require.NoError(t, err)

	_, err = c.Split(string([]byte{0xff, 0xfe}))
	var ce *ChunkingError
	require.ErrorAs(t, err, &ce)
}

func TestSplitShortText(t *testing.T) {
	c, err := New(500, 50)
	require.NoError(t, err)

	chunks, err := c.Split("short document")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short document", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 0, chunks[0].Offset)
}

func TestSplitUniformText(t *testing.T) {
	c, err := New(500, 50)
	require.NoError(t, err)

	text := strings.Repeat("a", 1200)
	chunks, err := c.Split(text)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, 0, chunks[0].Offset)
	assert.Equal(t, 450, chunks[1].Offset)
	assert.Equal(t, 900, chunks[2].Offset)

	assert.Len(t, chunks[0].Content, 500)
	assert.Len(t, chunks[1].Content, 500)
	assert.Len(t, chunks[2].Content, 300)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	c, err := New(100, 10)
	require.NoError(t, err)

	para1 := strings.Repeat("x", 60)
	para2 := strings.Repeat("y", 80)
	text := para1 + "\n\n" + para2

	chunks, err := c.Split(text)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	// The first chunk ends at the paragraph break, not at the hard limit.
	assert.True(t, strings.HasSuffix(chunks[0].Content, "\n\n"))
	assert.Equal(t, para1+"\n\n", chunks[0].Content)
}

func TestSplitProperties(t *testing.T) {
	c, err := New(120, 20)
	require.NoError(t, err)

	text := "The quick brown fox jumps over the lazy dog. " +
		strings.Repeat("Structured logging keeps services observable in production. ", 12) +
		"\n\nA final paragraph closes the document with a short note.\nAnd one more line."

	chunks, err := c.Split(text)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, chunk := range chunks {
		runes := []rune(chunk.Content)
		assert.LessOrEqual(t, len(runes), 120, "chunk %d exceeds size", i)

		// Chunk content matches the original text at its offset.
		textRunes := []rune(text)
		assert.Equal(t, string(textRunes[chunk.Offset:chunk.Offset+len(runes)]), chunk.Content)

		if i > 0 {
			prev := []rune(chunks[i-1].Content)
			assert.Equal(t, string(prev[len(prev)-20:]), string(runes[:20]),
				"chunk %d does not start with the overlap of chunk %d", i, i-1)
		}
	}

	// De-overlapped concatenation reproduces the original text.
	var rebuilt strings.Builder
	for i, chunk := range chunks {
		runes := []rune(chunk.Content)
		if i == 0 {
			rebuilt.WriteString(chunk.Content)
		} else {
			rebuilt.WriteString(string(runes[20:]))
		}
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestSplitMultibyte(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)

	text := strings.Repeat("日本語のテキスト分割", 5)
	chunks, err := c.Split(text)
	require.NoError(t, err)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk.Content)), 10)
	}

	var rebuilt strings.Builder
	for i, chunk := range chunks {
		runes := []rune(chunk.Content)
		if i == 0 {
			rebuilt.WriteString(chunk.Content)
		} else {
			rebuilt.WriteString(string(runes[2:]))
		}
	}
	assert.Equal(t, text, rebuilt.String())
}
