package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragsvc/internal/ragsvc/metrics"
	"github.com/kart-io/ragsvc/internal/ragsvc/store"
	"github.com/kart-io/ragsvc/pkg/llm"
)

// RetrieverConfig configures the retrieval pipeline.
type RetrieverConfig struct {
	TopK int
}

// Retriever embeds a question and finds the most similar stored chunks.
type Retriever struct {
	store    store.VectorStore
	embedder llm.EmbeddingProvider
	topK     int
	metrics  *metrics.RAGMetrics
}

// NewRetriever creates a Retriever.
func NewRetriever(vectorStore store.VectorStore, embedder llm.EmbeddingProvider, config *RetrieverConfig) *Retriever {
	return &Retriever{
		store:    vectorStore,
		embedder: embedder,
		topK:     config.TopK,
		metrics:  metrics.GetRAGMetrics(),
	}
}

// Retrieve returns the topK chunks most similar to the question,
// ordered by descending score. A topK of zero or less falls back to
// the configured default. An empty knowledge base yields
// ErrNoRelevantDocuments.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) ([]store.ScoredChunk, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if topK <= 0 {
		topK = r.topK
	}

	embedding, err := r.embedder.EmbedSingle(ctx, question)
	if err != nil {
		r.metrics.RecordRetrieval(0, err)
		return nil, err
	}

	started := time.Now()
	chunks, err := r.store.Search(ctx, embedding, topK)
	r.metrics.RecordRetrieval(time.Since(started), err)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		return nil, ErrNoRelevantDocuments
	}

	logger.Debugw("retrieved chunks", "count", len(chunks), "top_score", chunks[0].Score)
	return chunks, nil
}
