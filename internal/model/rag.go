// Package model defines the wire types shared between the service layer
// and the HTTP API.
package model

// SourceChunk is one retrieved chunk returned alongside an answer.
type SourceChunk struct {
	Chunk      string  `json:"chunk"`
	Filename   string  `json:"filename"`
	Filepath   string  `json:"filepath"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

// QueryResult is the answer to a query together with the chunks it was
// grounded on.
type QueryResult struct {
	Question string        `json:"question"`
	Answer   string        `json:"answer"`
	Sources  []SourceChunk `json:"source_chunks"`
	Cached   bool          `json:"cached,omitempty"`
}

// IngestResult summarizes one ingested document.
type IngestResult struct {
	Filename     string `json:"filename"`
	Filepath     string `json:"filepath"`
	ChunksStored int    `json:"chunks_stored"`
}

// Stats describes the knowledge base.
type Stats struct {
	Backend      string `json:"backend"`
	ChunkCount   int64  `json:"chunk_count"`
	IndexState   string `json:"index_state"`
	EmbeddingDim int    `json:"embedding_dim"`
}
