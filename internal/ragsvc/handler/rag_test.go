package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragsvc/internal/model"
	"github.com/kart-io/ragsvc/internal/ragsvc/biz"
	"github.com/kart-io/ragsvc/pkg/llm"
	"github.com/kart-io/ragsvc/pkg/utils/json"
)

type stubService struct {
	queryResult  *model.QueryResult
	queryErr     error
	ingestResult *model.IngestResult
	ingestErr    error
	stats        *model.Stats
}

func (s *stubService) IngestText(_ context.Context, _, _, _ string) (*model.IngestResult, error) {
	return s.ingestResult, s.ingestErr
}

func (s *stubService) IngestFile(_ context.Context, _ string) (*model.IngestResult, error) {
	return s.ingestResult, s.ingestErr
}

func (s *stubService) IngestDirectory(_ context.Context, _ string) ([]*model.IngestResult, error) {
	if s.ingestErr != nil {
		return nil, s.ingestErr
	}
	return []*model.IngestResult{s.ingestResult}, nil
}

func (s *stubService) Query(_ context.Context, _ string, _ int) (*model.QueryResult, error) {
	return s.queryResult, s.queryErr
}

func (s *stubService) Stats(_ context.Context) (*model.Stats, error) {
	return s.stats, nil
}

func newTestRouter(service biz.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := NewRAGHandler(service)
	router := gin.New()
	router.POST("/v1/rag/ingest", h.IngestText)
	router.POST("/v1/rag/query", h.Query)
	router.GET("/v1/rag/stats", h.Stats)
	return router
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestQueryOK(t *testing.T) {
	router := newTestRouter(&stubService{
		queryResult: &model.QueryResult{
			Question: "what is kubernetes?",
			Answer:   "A container orchestrator.",
			Sources: []model.SourceChunk{
				{Chunk: "Kubernetes is...", Filename: "k8s.md", ChunkIndex: 0, Score: 0.91},
			},
		},
	})

	w := doRequest(router, http.MethodPost, "/v1/rag/query", `{"question":"what is kubernetes?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var result model.QueryResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "A container orchestrator.", result.Answer)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "k8s.md", result.Sources[0].Filename)
}

func TestQueryMissingQuestion(t *testing.T) {
	router := newTestRouter(&stubService{})

	w := doRequest(router, http.MethodPost, "/v1/rag/query", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryNoRelevantDocuments(t *testing.T) {
	router := newTestRouter(&stubService{queryErr: biz.ErrNoRelevantDocuments})

	w := doRequest(router, http.MethodPost, "/v1/rag/query", `{"question":"anything"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQueryEmptyQuestion(t *testing.T) {
	router := newTestRouter(&stubService{queryErr: biz.ErrEmptyQuestion})

	w := doRequest(router, http.MethodPost, "/v1/rag/query", `{"question":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryProviderError(t *testing.T) {
	router := newTestRouter(&stubService{
		queryErr: &llm.ProviderError{
			Provider:  "openai",
			Op:        "chat",
			Retryable: true,
			Err:       errors.New("rate limited"),
		},
	})

	w := doRequest(router, http.MethodPost, "/v1/rag/query", `{"question":"anything"}`)
	require.Equal(t, http.StatusBadGateway, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 502, resp.Code)
	assert.Contains(t, resp.Message, "openai")
}

func TestIngestTextOK(t *testing.T) {
	router := newTestRouter(&stubService{
		ingestResult: &model.IngestResult{Filename: "doc.txt", Filepath: "/doc.txt", ChunksStored: 3},
	})

	w := doRequest(router, http.MethodPost, "/v1/rag/ingest", `{"filename":"doc.txt","text":"hello world"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var result model.IngestResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 3, result.ChunksStored)
}

func TestIngestTextMissingFields(t *testing.T) {
	router := newTestRouter(&stubService{})

	w := doRequest(router, http.MethodPost, "/v1/rag/ingest", `{"filename":"doc.txt"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStats(t *testing.T) {
	router := newTestRouter(&stubService{
		stats: &model.Stats{Backend: "mongodb", ChunkCount: 42, IndexState: "READY", EmbeddingDim: 1536},
	})

	w := doRequest(router, http.MethodGet, "/v1/rag/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var stats model.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(42), stats.ChunkCount)
	assert.Equal(t, "READY", stats.IndexState)
}
