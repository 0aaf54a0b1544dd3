package biz

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragsvc/internal/ragsvc/store"
	"github.com/kart-io/ragsvc/pkg/llm"
)

// fakeStore is an in-memory VectorStore using exact cosine similarity.
type fakeStore struct {
	mu      sync.Mutex
	dim     int
	records map[string]store.ChunkRecord
	state   store.IndexState
}

func newFakeStore(dim int) *fakeStore {
	return &fakeStore{
		dim:     dim,
		records: make(map[string]store.ChunkRecord),
		state:   store.StateReady,
	}
}

func (f *fakeStore) Name() string                                 { return "fake" }
func (f *fakeStore) EnsureIndex(context.Context) error            { return nil }
func (f *fakeStore) WaitReady(context.Context) error              { return nil }
func (f *fakeStore) Close() error                                 { return nil }
func (f *fakeStore) State(context.Context) (store.IndexState, error) {
	return f.state, nil
}

func (f *fakeStore) Upsert(_ context.Context, records []store.ChunkRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range records {
		if len(rec.Embedding) != f.dim {
			return &store.DimensionMismatchError{Want: f.dim, Got: len(rec.Embedding)}
		}
		key := fmt.Sprintf("%s:%d", rec.Filename, rec.ChunkIndex)
		f.records[key] = rec
	}
	return nil
}

func (f *fakeStore) Search(_ context.Context, embedding []float32, topK int) ([]store.ScoredChunk, error) {
	if len(embedding) != f.dim {
		return nil, &store.DimensionMismatchError{Want: f.dim, Got: len(embedding)}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var results []store.ScoredChunk
	for _, rec := range f.records {
		results = append(results, store.ScoredChunk{
			Chunk:      rec.Chunk,
			Filename:   rec.Filename,
			Filepath:   rec.Filepath,
			ChunkIndex: rec.ChunkIndex,
			Score:      cosineSimilarity(embedding, rec.Embedding),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (f *fakeStore) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.records)), nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// fakeEmbedder maps text deterministically onto a small vector so that
// identical texts embed identically.
type fakeEmbedder struct {
	dim int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vector(text)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) vector(text string) []float32 {
	vec := make([]float32, f.dim)
	for i, r := range text {
		vec[i%f.dim] += float32(r % 31)
	}
	return vec
}

// fakeChat returns a canned answer and records the last prompt.
type fakeChat struct {
	lastPrompt string
	lastSystem string
	answer     string
}

func (f *fakeChat) Chat(_ context.Context, _ []llm.Message) (string, error) {
	return f.answer, nil
}

func (f *fakeChat) Generate(_ context.Context, prompt, system string) (string, error) {
	f.lastPrompt = prompt
	f.lastSystem = system
	return f.answer, nil
}

func (f *fakeChat) Name() string { return "fake" }

func newTestService(t *testing.T, dim int) (*RAGService, *fakeStore, *fakeChat) {
	t.Helper()

	fs := newFakeStore(dim)
	chat := &fakeChat{answer: "Go is a programming language."}
	svc, err := NewRAGService(fs, &fakeEmbedder{dim: dim}, chat, NewQueryCache(nil, nil), &ServiceConfig{
		IngesterConfig:  &IngesterConfig{ChunkSize: 120, ChunkOverlap: 20, Concurrency: 2},
		RetrieverConfig: &RetrieverConfig{TopK: 3},
		EmbeddingDim:    dim,
	})
	require.NoError(t, err)
	return svc, fs, chat
}

func TestQueryRoundTrip(t *testing.T) {
	svc, _, chat := newTestService(t, 8)
	ctx := context.Background()

	text := "Go is a statically typed language designed at Google. " +
		"It compiles quickly and has built-in concurrency support. " +
		"Goroutines are lightweight threads managed by the Go runtime."
	result, err := svc.IngestText(ctx, "go.txt", "/docs/go.txt", text)
	require.NoError(t, err)
	assert.Greater(t, result.ChunksStored, 0)

	answer, err := svc.Query(ctx, "What is Go?", 0)
	require.NoError(t, err)
	assert.Equal(t, "Go is a programming language.", answer.Answer)
	assert.Equal(t, "What is Go?", answer.Question)
	assert.NotEmpty(t, answer.Sources)
	assert.False(t, answer.Cached)

	// Retrieved context flows into the generation prompt.
	assert.Contains(t, chat.lastPrompt, "What is Go?")
	assert.Contains(t, chat.lastSystem, "helpful assistant")

	// Sources come back in descending score order.
	for i := 1; i < len(answer.Sources); i++ {
		assert.GreaterOrEqual(t, answer.Sources[i-1].Score, answer.Sources[i].Score)
	}
}

func TestQueryTopKOverride(t *testing.T) {
	svc, _, _ := newTestService(t, 8)
	ctx := context.Background()

	_, err := svc.IngestText(ctx, "go.txt", "/docs/go.txt", strings.Repeat("Go concurrency patterns. ", 30))
	require.NoError(t, err)

	answer, err := svc.Query(ctx, "concurrency", 1)
	require.NoError(t, err)
	assert.Len(t, answer.Sources, 1)
}

func TestQueryEmptyStore(t *testing.T) {
	svc, _, _ := newTestService(t, 8)

	_, err := svc.Query(context.Background(), "anything", 0)
	assert.ErrorIs(t, err, ErrNoRelevantDocuments)
}

func TestQueryEmptyQuestion(t *testing.T) {
	svc, _, _ := newTestService(t, 8)

	_, err := svc.Query(context.Background(), "   ", 0)
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestStats(t *testing.T) {
	svc, fs, _ := newTestService(t, 8)
	ctx := context.Background()

	_, err := svc.IngestText(ctx, "a.txt", "/a.txt", strings.Repeat("alpha beta gamma ", 30))
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fake", stats.Backend)
	assert.Equal(t, "ready", stats.IndexState)
	assert.Equal(t, 8, stats.EmbeddingDim)

	count, _ := fs.Count(ctx)
	assert.Equal(t, count, stats.ChunkCount)
}

func TestBuildPrompt(t *testing.T) {
	chunks := []store.ScoredChunk{
		{Chunk: "first chunk"},
		{Chunk: "second chunk"},
	}

	prompt := buildPrompt("what?", chunks)
	assert.Contains(t, prompt, "first chunk\n\nsecond chunk")
	assert.Contains(t, prompt, "what?")
	assert.Contains(t, prompt, "no prior knowledge")
}

func TestQueryCacheDisabled(t *testing.T) {
	cache := NewQueryCache(nil, &QueryCacheConfig{Enabled: true})
	assert.False(t, cache.Enabled())
	assert.Nil(t, cache.Get(context.Background(), "q", 3))
	// Set on a disabled cache is a no-op, not a panic.
	cache.Set(context.Background(), "q", 3, nil)
}
