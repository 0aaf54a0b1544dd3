// Package metrics collects service-level counters for the RAG service.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// RAGMetrics holds counters for queries, retrieval, generation, and
// ingestion. All counters are safe for concurrent use.
type RAGMetrics struct {
	queriesTotal       uint64
	queriesCacheHits   uint64
	queriesCacheMisses uint64
	queriesErrors      uint64

	retrievalTotal    uint64
	retrievalErrors   uint64
	retrievalDuration float64 // seconds

	generationTotal    uint64
	generationErrors   uint64
	generationDuration float64 // seconds

	documentsIngested uint64
	chunksStored      uint64
	ingestErrors      uint64

	startTime  time.Time
	durationMu sync.Mutex
}

var (
	globalRAGMetrics *RAGMetrics
	ragMetricsOnce   sync.Once
)

// GetRAGMetrics returns the global metrics instance.
func GetRAGMetrics() *RAGMetrics {
	ragMetricsOnce.Do(func() {
		globalRAGMetrics = &RAGMetrics{
			startTime: time.Now(),
		}
	})
	return globalRAGMetrics
}

// RecordQuery records one query and its cache outcome.
func (m *RAGMetrics) RecordQuery(cacheHit bool, err error) {
	atomic.AddUint64(&m.queriesTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.queriesErrors, 1)
		return
	}
	if cacheHit {
		atomic.AddUint64(&m.queriesCacheHits, 1)
	} else {
		atomic.AddUint64(&m.queriesCacheMisses, 1)
	}
}

// RecordRetrieval records one similarity search.
func (m *RAGMetrics) RecordRetrieval(duration time.Duration, err error) {
	atomic.AddUint64(&m.retrievalTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.retrievalErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.retrievalDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordGeneration records one LLM generation call.
func (m *RAGMetrics) RecordGeneration(duration time.Duration, err error) {
	atomic.AddUint64(&m.generationTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.generationErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.generationDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordIngest records one document ingestion.
func (m *RAGMetrics) RecordIngest(chunks int, err error) {
	if err != nil {
		atomic.AddUint64(&m.ingestErrors, 1)
		return
	}
	atomic.AddUint64(&m.documentsIngested, 1)
	atomic.AddUint64(&m.chunksStored, uint64(chunks))
}

// Snapshot returns the current counter values.
func (m *RAGMetrics) Snapshot() map[string]any {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	generationDuration := m.generationDuration
	m.durationMu.Unlock()

	return map[string]any{
		"queries_total":        atomic.LoadUint64(&m.queriesTotal),
		"queries_cache_hits":   atomic.LoadUint64(&m.queriesCacheHits),
		"queries_cache_misses": atomic.LoadUint64(&m.queriesCacheMisses),
		"queries_errors":       atomic.LoadUint64(&m.queriesErrors),
		"retrieval_total":      atomic.LoadUint64(&m.retrievalTotal),
		"retrieval_errors":     atomic.LoadUint64(&m.retrievalErrors),
		"retrieval_seconds":    retrievalDuration,
		"generation_total":     atomic.LoadUint64(&m.generationTotal),
		"generation_errors":    atomic.LoadUint64(&m.generationErrors),
		"generation_seconds":   generationDuration,
		"documents_ingested":   atomic.LoadUint64(&m.documentsIngested),
		"chunks_stored":        atomic.LoadUint64(&m.chunksStored),
		"ingest_errors":        atomic.LoadUint64(&m.ingestErrors),
		"uptime_seconds":       time.Since(m.startTime).Seconds(),
	}
}
