// Package handler provides the HTTP handlers for the RAG service.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/ragsvc/internal/ragsvc/biz"
	"github.com/kart-io/ragsvc/internal/ragsvc/metrics"
	"github.com/kart-io/ragsvc/internal/ragsvc/store"
	"github.com/kart-io/ragsvc/pkg/llm"
)

// queryTimeout bounds one query end to end, including the LLM call.
const queryTimeout = 60 * time.Second

// RAGHandler handles RAG HTTP requests.
type RAGHandler struct {
	service biz.Service
}

// NewRAGHandler creates a new RAGHandler.
func NewRAGHandler(service biz.Service) *RAGHandler {
	return &RAGHandler{service: service}
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// IngestTextRequest carries one document as raw text.
type IngestTextRequest struct {
	Filename string `json:"filename" binding:"required"`
	Path     string `json:"path"`
	Text     string `json:"text" binding:"required"`
}

// IngestText ingests a document given as raw text.
func (h *RAGHandler) IngestText(c *gin.Context) {
	var req IngestTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	path := req.Path
	if path == "" {
		path = req.Filename
	}

	result, err := h.service.IngestText(c.Request.Context(), req.Filename, path, req.Text)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// IngestFileRequest names a file on the server's filesystem.
type IngestFileRequest struct {
	Path string `json:"path" binding:"required"`
}

// IngestFile ingests a single file from disk.
func (h *RAGHandler) IngestFile(c *gin.Context) {
	var req IngestFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	result, err := h.service.IngestFile(c.Request.Context(), req.Path)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// IngestDirectoryRequest names a directory on the server's filesystem.
type IngestDirectoryRequest struct {
	Directory string `json:"directory" binding:"required"`
}

// IngestDirectory ingests every supported file under a directory.
func (h *RAGHandler) IngestDirectory(c *gin.Context) {
	var req IngestDirectoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	results, err := h.service.IngestDirectory(c.Request.Context(), req.Directory)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": results})
}

// QueryRequest carries one question. TopK is optional; the service
// default applies when it is omitted.
type QueryRequest struct {
	Question string `json:"question" binding:"required"`
	TopK     int    `json:"top_k" binding:"omitempty,min=1"`
}

// Query answers a question from the ingested documents.
func (h *RAGHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	result, err := h.service.Query(ctx, req.Question, req.TopK)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.JSON(http.StatusRequestTimeout, ErrorResponse{
				Code:    408,
				Message: "Query timeout: the request took too long to process.",
			})
			return
		}
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Stats reports knowledge base statistics.
func (h *RAGHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Metrics reports service counters.
func (h *RAGHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, metrics.GetRAGMetrics().Snapshot())
}

// writeError maps service errors onto HTTP status codes.
func (h *RAGHandler) writeError(c *gin.Context, err error) {
	var (
		mismatch *store.DimensionMismatchError
		conflict *store.IndexConflictError
		provider *llm.ProviderError
	)

	switch {
	case errors.Is(err, biz.ErrNoRelevantDocuments):
		c.JSON(http.StatusNotFound, ErrorResponse{Code: 404, Message: err.Error()})
	case errors.Is(err, biz.ErrEmptyQuestion):
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
	case errors.As(err, &provider):
		c.JSON(http.StatusBadGateway, ErrorResponse{Code: 502, Message: err.Error()})
	case errors.As(err, &mismatch), errors.As(err, &conflict):
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
	}
}
