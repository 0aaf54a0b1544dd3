// Package store provides vector store implementations for chunk
// embeddings. Two backends are supported: MongoDB Atlas vector search
// and Redis with the RediSearch module.
package store

import (
	"context"
)

// Metric is the vector similarity metric used by an index.
type Metric string

const (
	MetricCosine     Metric = "cosine"
	MetricDotProduct Metric = "dotProduct"
	MetricEuclidean  Metric = "euclidean"
)

// IndexState describes the lifecycle of a vector index.
type IndexState int

const (
	// StateAbsent means the index does not exist.
	StateAbsent IndexState = iota
	// StateCreating means the index exists but is not yet queryable.
	StateCreating
	// StateReady means the index is queryable.
	StateReady
	// StateFailed means the index build failed.
	StateFailed
)

// String returns the state name.
func (s IndexState) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateCreating:
		return "creating"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ChunkRecord is one chunk persisted with its embedding.
type ChunkRecord struct {
	Chunk      string    `bson:"chunk"`
	Embedding  []float32 `bson:"embedding"`
	Filename   string    `bson:"filename"`
	Filepath   string    `bson:"filepath"`
	ChunkIndex int       `bson:"chunk_index"`
}

// ScoredChunk is a retrieved chunk with its similarity score.
// Higher scores mean more similar, regardless of backend.
type ScoredChunk struct {
	Chunk      string  `bson:"chunk" json:"chunk"`
	Filename   string  `bson:"filename" json:"filename"`
	Filepath   string  `bson:"filepath" json:"filepath"`
	ChunkIndex int     `bson:"chunk_index" json:"chunk_index"`
	Score      float64 `bson:"score" json:"score"`
}

// VectorStore stores chunk embeddings and serves similarity search.
type VectorStore interface {
	// Name returns the backend identifier.
	Name() string

	// EnsureIndex creates the vector index if it does not exist.
	// An existing index with a compatible definition is accepted; an
	// incompatible one yields an IndexConflictError.
	EnsureIndex(ctx context.Context) error

	// State reports the current index lifecycle state.
	State(ctx context.Context) (IndexState, error)

	// WaitReady blocks until the index is queryable, the index build
	// fails, or the context is done.
	WaitReady(ctx context.Context) error

	// Upsert writes records in order, replacing any existing record
	// with the same filename and chunk index.
	Upsert(ctx context.Context, records []ChunkRecord) error

	// Search returns the topK most similar chunks for the embedding,
	// ordered by descending score.
	Search(ctx context.Context, embedding []float32, topK int) ([]ScoredChunk, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int64, error)

	// Close releases backend resources.
	Close() error
}
