package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestVectorSearchPipeline(t *testing.T) {
	embedding := []float32{0.1, 0.2, 0.3}
	pipeline := vectorSearchPipeline("vector_index", embedding, 3)
	require.Len(t, pipeline, 2)

	search := pipeline[0][0]
	require.Equal(t, "$vectorSearch", search.Key)
	stage := search.Value.(bson.D)

	fields := map[string]interface{}{}
	for _, e := range stage {
		fields[e.Key] = e.Value
	}
	assert.Equal(t, "vector_index", fields["index"])
	assert.Equal(t, "embedding", fields["path"])
	assert.Equal(t, embedding, fields["queryVector"])
	assert.Equal(t, 30, fields["numCandidates"])
	assert.Equal(t, 3, fields["limit"])

	project := pipeline[1][0]
	require.Equal(t, "$project", project.Key)
	projection := map[string]interface{}{}
	for _, e := range project.Value.(bson.D) {
		projection[e.Key] = e.Value
	}
	assert.Equal(t, 0, projection["_id"])
	assert.Equal(t, 1, projection["chunk"])
	assert.Equal(t, bson.D{{Key: "$meta", Value: "vectorSearchScore"}}, projection["score"])
}

func TestMongoStoreDimensionMismatch(t *testing.T) {
	s := &MongoStore{dim: 1536}

	_, err := s.Search(context.Background(), []float32{0.1, 0.2}, 3)
	var mismatch *DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 1536, mismatch.Want)
	assert.Equal(t, 2, mismatch.Got)

	err = s.Upsert(context.Background(), []ChunkRecord{
		{Chunk: "a", Embedding: make([]float32, 1536)},
		{Chunk: "b", Embedding: make([]float32, 8)},
	})
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 8, mismatch.Got)
}

func TestVerifyDefinition(t *testing.T) {
	s := &MongoStore{index: "vector_index", dim: 1536, metric: MetricCosine}

	compatible := bson.M{
		"latestDefinition": bson.M{
			"fields": bson.A{bson.M{
				"type":          "vector",
				"path":          "embedding",
				"numDimensions": int32(1536),
				"similarity":    "cosine",
			}},
		},
	}
	assert.NoError(t, s.verifyDefinition(compatible))

	wrongDim := bson.M{
		"latestDefinition": bson.M{
			"fields": bson.A{bson.M{
				"type":          "vector",
				"path":          "embedding",
				"numDimensions": int32(768),
				"similarity":    "cosine",
			}},
		},
	}
	var conflict *IndexConflictError
	require.ErrorAs(t, s.verifyDefinition(wrongDim), &conflict)
	assert.Equal(t, "vector_index", conflict.Index)

	wrongMetric := bson.M{
		"latestDefinition": bson.M{
			"fields": bson.A{bson.M{
				"type":          "vector",
				"path":          "embedding",
				"numDimensions": int32(1536),
				"similarity":    "euclidean",
			}},
		},
	}
	require.ErrorAs(t, s.verifyDefinition(wrongMetric), &conflict)
}

func TestIndexStateOf(t *testing.T) {
	assert.Equal(t, StateFailed, indexStateOf(bson.M{"status": "FAILED"}))
	assert.Equal(t, StateReady, indexStateOf(bson.M{"status": "READY"}))
	assert.Equal(t, StateReady, indexStateOf(bson.M{"status": "PENDING", "queryable": true}))
	assert.Equal(t, StateCreating, indexStateOf(bson.M{"status": "PENDING", "queryable": false}))
	assert.Equal(t, StateCreating, indexStateOf(bson.M{}))
}

// pollingStore builds a MongoStore whose index description is served
// from a canned sequence, the last entry repeating.
func pollingStore(waitTimeout time.Duration, docs ...bson.M) *MongoStore {
	calls := 0
	return &MongoStore{
		index:        "vector_index",
		pollInterval: 5 * time.Millisecond,
		waitTimeout:  waitTimeout,
		describe: func(context.Context) (bson.M, error) {
			if calls < len(docs)-1 {
				calls++
				return docs[calls-1], nil
			}
			return docs[len(docs)-1], nil
		},
	}
}

func TestWaitReadyCreatingThenReady(t *testing.T) {
	s := pollingStore(0,
		bson.M{"status": "PENDING", "queryable": false},
		bson.M{"status": "PENDING", "queryable": false},
		bson.M{"status": "READY", "queryable": true},
	)

	assert.NoError(t, s.WaitReady(context.Background()))
}

func TestWaitReadyFailedBuild(t *testing.T) {
	s := pollingStore(time.Second, bson.M{"status": "FAILED"})

	err := s.WaitReady(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build failed")
}

func TestWaitReadyAbsentIndex(t *testing.T) {
	s := pollingStore(time.Second, nil)

	err := s.WaitReady(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestWaitReadyTimeout(t *testing.T) {
	s := pollingStore(25*time.Millisecond, bson.M{"status": "PENDING", "queryable": false})

	err := s.WaitReady(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitReadyHonorsCallerDeadline(t *testing.T) {
	s := pollingStore(0, bson.M{"status": "PENDING", "queryable": false})

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	err := s.WaitReady(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIndexStateString(t *testing.T) {
	assert.Equal(t, "absent", StateAbsent.String())
	assert.Equal(t, "creating", StateCreating.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "failed", StateFailed.String())
}
