// Package rag provides retrieval-augmented generation configuration options.
package rag

import (
	"fmt"

	"github.com/kart-io/ragsvc/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Options contains chunking and retrieval configuration.
type Options struct {
	// ChunkSize is the maximum size of a text chunk, in runes.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap carried between consecutive chunks, in runes.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the number of chunks to retrieve per query.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// DataDir is a directory ingested once at startup. Empty disables
	// startup ingestion.
	DataDir string `json:"data-dir" mapstructure:"data-dir"`

	// EmbedConcurrency is the number of chunks embedded in parallel
	// during ingestion.
	EmbedConcurrency int `json:"embed-concurrency" mapstructure:"embed-concurrency"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:        500,
		ChunkOverlap:     50,
		TopK:             3,
		EmbeddingDim:     1536, // text-embedding-3-small dimension
		DataDir:          "",
		EmbedConcurrency: 4,
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.ChunkSize, options.Join(prefixes...)+"rag.chunk-size", o.ChunkSize, "Maximum size of text chunks.")
	fs.IntVar(&o.ChunkOverlap, options.Join(prefixes...)+"rag.chunk-overlap", o.ChunkOverlap, "Overlap between consecutive chunks.")
	fs.IntVar(&o.TopK, options.Join(prefixes...)+"rag.top-k", o.TopK, "Number of chunks retrieved per query.")
	fs.IntVar(&o.EmbeddingDim, options.Join(prefixes...)+"rag.embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.StringVar(&o.DataDir, options.Join(prefixes...)+"rag.data-dir", o.DataDir, "Directory ingested at startup (empty disables).")
	fs.IntVar(&o.EmbedConcurrency, options.Join(prefixes...)+"rag.embed-concurrency", o.EmbedConcurrency, "Number of chunks embedded in parallel.")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("chunk-overlap must not be negative"))
	}
	if o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk-overlap must be smaller than chunk-size"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top-k must be positive"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding-dim must be positive"))
	}
	return errs
}

// Complete completes the RAG options with defaults.
func (o *Options) Complete() error {
	if o.EmbedConcurrency <= 0 {
		o.EmbedConcurrency = 4
	}
	return nil
}
