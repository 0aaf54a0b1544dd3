package biz

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/ragsvc/internal/model"
	"github.com/kart-io/ragsvc/internal/ragsvc/chunker"
	"github.com/kart-io/ragsvc/internal/ragsvc/metrics"
	"github.com/kart-io/ragsvc/internal/ragsvc/store"
	"github.com/kart-io/ragsvc/pkg/llm"
)

// embedBatchSize is the number of chunks sent to the embedding API in
// one request. Documents above this size are embedded in parallel
// batches.
const embedBatchSize = 32

// ingestExtensions lists file extensions picked up by directory ingestion.
var ingestExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// IngesterConfig configures the ingestion pipeline.
type IngesterConfig struct {
	ChunkSize    int
	ChunkOverlap int
	Concurrency  int
}

// Ingester turns documents into embedded chunks and persists them.
// A document is ingested atomically with respect to failures: all
// chunks are embedded before anything is written, and the first error
// aborts the document.
type Ingester struct {
	store       store.VectorStore
	embedder    llm.EmbeddingProvider
	chunker     *chunker.Chunker
	concurrency int
	metrics     *metrics.RAGMetrics
}

// NewIngester creates an Ingester. Chunking parameters are validated up
// front so a misconfigured pipeline fails at startup.
func NewIngester(vectorStore store.VectorStore, embedder llm.EmbeddingProvider, config *IngesterConfig) (*Ingester, error) {
	c, err := chunker.New(config.ChunkSize, config.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Ingester{
		store:       vectorStore,
		embedder:    embedder,
		chunker:     c,
		concurrency: concurrency,
		metrics:     metrics.GetRAGMetrics(),
	}, nil
}

// IngestText chunks, embeds, and stores one document. The chunk index
// is the position of the chunk within the document, so re-ingesting a
// document overwrites its previous chunks.
func (ing *Ingester) IngestText(ctx context.Context, filename, path, text string) (*model.IngestResult, error) {
	chunks, err := ing.chunker.Split(text)
	if err != nil {
		ing.metrics.RecordIngest(0, err)
		return nil, err
	}
	if len(chunks) == 0 {
		return &model.IngestResult{Filename: filename, Filepath: path}, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	embeddings, err := ing.embedAll(ctx, texts)
	if err != nil {
		ing.metrics.RecordIngest(0, err)
		return nil, fmt.Errorf("failed to embed %s: %w", filename, err)
	}

	records := make([]store.ChunkRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = store.ChunkRecord{
			Chunk:      chunk.Content,
			Embedding:  embeddings[i],
			Filename:   filename,
			Filepath:   path,
			ChunkIndex: chunk.Index,
		}
	}

	if err := ing.store.Upsert(ctx, records); err != nil {
		ing.metrics.RecordIngest(0, err)
		return nil, fmt.Errorf("failed to store %s: %w", filename, err)
	}

	ing.metrics.RecordIngest(len(records), nil)
	logger.Infow("document ingested", "filename", filename, "chunks", len(records))

	return &model.IngestResult{
		Filename:     filename,
		Filepath:     path,
		ChunksStored: len(records),
	}, nil
}

// IngestFile reads and ingests a single file.
func (ing *Ingester) IngestFile(ctx context.Context, path string) (*model.IngestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ing.IngestText(ctx, filepath.Base(path), path, string(data))
}

// IngestDirectory ingests every supported file under dir. Failing
// documents are skipped and their errors aggregated; the rest of the
// directory is still ingested.
func (ing *Ingester) IngestDirectory(ctx context.Context, dir string) ([]*model.IngestResult, error) {
	var results []*model.IngestResult
	var errs []error

	walkErr := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !ingestExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		result, err := ing.IngestFile(ctx, path)
		if err != nil {
			logger.Warnw("failed to ingest file", "path", path, "error", err.Error())
			errs = append(errs, err)
			return nil
		}
		results = append(results, result)
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}

	return results, utilerrors.NewAggregate(errs)
}

// embedAll embeds texts in input order. Large inputs are split into
// batches and embedded concurrently on a worker pool; the results are
// reassembled positionally.
func (ing *Ingester) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) <= embedBatchSize || ing.concurrency <= 1 {
		return ing.embedder.Embed(ctx, texts)
	}

	batches := (len(texts) + embedBatchSize - 1) / embedBatchSize

	pool, err := ants.NewPool(ing.concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	results := make([][][]float32, batches)
	errs := make([]error, batches)

	var wg sync.WaitGroup
	for b := 0; b < batches; b++ {
		b := b
		start := b * embedBatchSize
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		wg.Add(1)
		if submitErr := pool.Submit(func() {
			defer wg.Done()
			results[b], errs[b] = ing.embedder.Embed(ctx, texts[start:end])
		}); submitErr != nil {
			wg.Done()
			errs[b] = submitErr
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	embeddings := make([][]float32, 0, len(texts))
	for _, batch := range results {
		embeddings = append(embeddings, batch...)
	}
	return embeddings, nil
}
