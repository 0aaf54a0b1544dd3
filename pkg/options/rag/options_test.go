package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	opts := NewOptions()
	assert.Empty(t, opts.Validate())

	opts.ChunkOverlap = opts.ChunkSize
	errs := opts.Validate()
	assert.NotEmpty(t, errs)

	opts = NewOptions()
	opts.TopK = 0
	assert.NotEmpty(t, opts.Validate())
}

func TestDefaults(t *testing.T) {
	opts := NewOptions()
	assert.Equal(t, 500, opts.ChunkSize)
	assert.Equal(t, 50, opts.ChunkOverlap)
	assert.Equal(t, 3, opts.TopK)
	assert.Equal(t, 1536, opts.EmbeddingDim)
}
