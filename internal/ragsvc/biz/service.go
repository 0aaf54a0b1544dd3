// Package biz implements the RAG service logic: ingestion, retrieval,
// and answer generation.
package biz

import (
	"context"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragsvc/internal/model"
	"github.com/kart-io/ragsvc/internal/ragsvc/metrics"
	"github.com/kart-io/ragsvc/internal/ragsvc/store"
	"github.com/kart-io/ragsvc/pkg/llm"
)

// Service is the RAG service interface.
type Service interface {
	// IngestText ingests one document given as raw text.
	IngestText(ctx context.Context, filename, path, text string) (*model.IngestResult, error)
	// IngestFile ingests a single file from disk.
	IngestFile(ctx context.Context, path string) (*model.IngestResult, error)
	// IngestDirectory ingests every supported file under dir.
	IngestDirectory(ctx context.Context, dir string) ([]*model.IngestResult, error)
	// Query answers a question from the ingested documents. A topK of
	// zero or less uses the configured default.
	Query(ctx context.Context, question string, topK int) (*model.QueryResult, error)
	// Stats reports knowledge base statistics.
	Stats(ctx context.Context) (*model.Stats, error)
}

// ServiceConfig configures the RAG service.
type ServiceConfig struct {
	IngesterConfig  *IngesterConfig
	RetrieverConfig *RetrieverConfig
	EmbeddingDim    int
}

// RAGService combines the ingester, retriever, and generator into the
// full query pipeline.
type RAGService struct {
	ingester  *Ingester
	retriever *Retriever
	generator *Generator
	cache     *QueryCache
	store     store.VectorStore
	dim       int
	metrics   *metrics.RAGMetrics
}

var _ Service = (*RAGService)(nil)

// NewRAGService creates the RAG service.
func NewRAGService(
	vectorStore store.VectorStore,
	embedder llm.EmbeddingProvider,
	chat llm.ChatProvider,
	cache *QueryCache,
	config *ServiceConfig,
) (*RAGService, error) {
	ingester, err := NewIngester(vectorStore, embedder, config.IngesterConfig)
	if err != nil {
		return nil, err
	}

	return &RAGService{
		ingester:  ingester,
		retriever: NewRetriever(vectorStore, embedder, config.RetrieverConfig),
		generator: NewGenerator(chat),
		cache:     cache,
		store:     vectorStore,
		dim:       config.EmbeddingDim,
		metrics:   metrics.GetRAGMetrics(),
	}, nil
}

// IngestText ingests one document given as raw text.
func (s *RAGService) IngestText(ctx context.Context, filename, path, text string) (*model.IngestResult, error) {
	return s.ingester.IngestText(ctx, filename, path, text)
}

// IngestFile ingests a single file from disk.
func (s *RAGService) IngestFile(ctx context.Context, path string) (*model.IngestResult, error) {
	return s.ingester.IngestFile(ctx, path)
}

// IngestDirectory ingests every supported file under dir.
func (s *RAGService) IngestDirectory(ctx context.Context, dir string) ([]*model.IngestResult, error) {
	return s.ingester.IngestDirectory(ctx, dir)
}

// Query answers a question from the ingested documents. Cached answers
// are returned directly; fresh answers are cached on the way out.
func (s *RAGService) Query(ctx context.Context, question string, topK int) (*model.QueryResult, error) {
	if topK <= 0 {
		topK = s.retriever.topK
	}

	if cached := s.cache.Get(ctx, question, topK); cached != nil {
		cached.Cached = true
		s.metrics.RecordQuery(true, nil)
		logger.Debugw("query served from cache", "question", question)
		return cached, nil
	}

	chunks, err := s.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		s.metrics.RecordQuery(false, err)
		return nil, err
	}

	answer, err := s.generator.Generate(ctx, question, chunks)
	if err != nil {
		s.metrics.RecordQuery(false, err)
		return nil, err
	}

	sources := make([]model.SourceChunk, len(chunks))
	for i, chunk := range chunks {
		sources[i] = model.SourceChunk{
			Chunk:      chunk.Chunk,
			Filename:   chunk.Filename,
			Filepath:   chunk.Filepath,
			ChunkIndex: chunk.ChunkIndex,
			Score:      chunk.Score,
		}
	}

	result := &model.QueryResult{
		Question: question,
		Answer:   answer,
		Sources:  sources,
	}

	s.cache.Set(ctx, question, topK, result)
	s.metrics.RecordQuery(false, nil)

	return result, nil
}

// Stats reports knowledge base statistics.
func (s *RAGService) Stats(ctx context.Context) (*model.Stats, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	state, err := s.store.State(ctx)
	if err != nil {
		return nil, err
	}

	return &model.Stats{
		Backend:      s.store.Name(),
		ChunkCount:   count,
		IndexState:   state.String(),
		EmbeddingDim: s.dim,
	}, nil
}
