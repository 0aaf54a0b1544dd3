package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordQuery(t *testing.T) {
	m := &RAGMetrics{startTime: time.Now()}

	m.RecordQuery(false, nil)
	m.RecordQuery(true, nil)
	m.RecordQuery(false, errors.New("boom"))

	snap := m.Snapshot()
	assert.Equal(t, uint64(3), snap["queries_total"])
	assert.Equal(t, uint64(1), snap["queries_cache_hits"])
	assert.Equal(t, uint64(1), snap["queries_cache_misses"])
	assert.Equal(t, uint64(1), snap["queries_errors"])
}

func TestRecordIngest(t *testing.T) {
	m := &RAGMetrics{startTime: time.Now()}

	m.RecordIngest(12, nil)
	m.RecordIngest(0, errors.New("boom"))

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap["documents_ingested"])
	assert.Equal(t, uint64(12), snap["chunks_stored"])
	assert.Equal(t, uint64(1), snap["ingest_errors"])
}

func TestConcurrentRecording(t *testing.T) {
	m := &RAGMetrics{startTime: time.Now()}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordQuery(false, nil)
			m.RecordRetrieval(time.Millisecond, nil)
			m.RecordGeneration(time.Millisecond, nil)
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, uint64(50), snap["queries_total"])
	assert.Equal(t, uint64(50), snap["retrieval_total"])
	assert.Equal(t, uint64(50), snap["generation_total"])
}

func TestGetRAGMetricsSingleton(t *testing.T) {
	assert.Same(t, GetRAGMetrics(), GetRAGMetrics())
}
