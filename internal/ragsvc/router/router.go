// Package router registers the RAG service routes.
package router

import (
	"github.com/kart-io/logger"

	"github.com/kart-io/ragsvc/internal/ragsvc/handler"
	"github.com/kart-io/ragsvc/pkg/server"
)

// Register wires the RAG handlers into the HTTP server.
func Register(srv *server.HTTPServer, ragHandler *handler.RAGHandler) {
	router := srv.Router()

	v1 := router.Group("/v1")
	{
		rag := v1.Group("/rag")
		{
			rag.POST("/ingest", ragHandler.IngestText)
			rag.POST("/ingest/file", ragHandler.IngestFile)
			rag.POST("/ingest/directory", ragHandler.IngestDirectory)
			rag.POST("/query", ragHandler.Query)
			rag.GET("/stats", ragHandler.Stats)
			rag.GET("/metrics", ragHandler.Metrics)
		}
	}

	// Compatibility alias for clients using the flat query endpoint.
	router.POST("/query", ragHandler.Query)

	logger.Info("HTTP routes registered")
}
