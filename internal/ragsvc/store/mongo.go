package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	mongodbcomp "github.com/kart-io/ragsvc/pkg/component/mongodb"
	storeopts "github.com/kart-io/ragsvc/pkg/options/store"
)

// candidateFactor is the numCandidates multiplier for $vectorSearch.
// Atlas recommends over-requesting candidates relative to the limit.
const candidateFactor = 10

// MongoStore is a VectorStore backed by a MongoDB Atlas vector search
// index. Index builds are asynchronous on Atlas, so a freshly created
// index passes through the creating state before becoming queryable.
type MongoStore struct {
	client       *mongodbcomp.Client
	coll         *mongo.Collection
	index        string
	dim          int
	metric       Metric
	pollInterval time.Duration
	waitTimeout  time.Duration

	// describe fetches the search index document. Swappable in tests.
	describe func(ctx context.Context) (bson.M, error)
}

var _ VectorStore = (*MongoStore)(nil)

// NewMongoStore creates a MongoStore on the configured collection.
func NewMongoStore(client *mongodbcomp.Client, opts *storeopts.Options, dim int) *MongoStore {
	s := &MongoStore{
		client:       client,
		coll:         client.Collection(opts.Collection),
		index:        opts.VectorIndex,
		dim:          dim,
		metric:       MetricCosine,
		pollInterval: opts.PollInterval,
		waitTimeout:  opts.WaitTimeout,
	}
	s.describe = s.describeIndex
	return s
}

// Name returns the backend identifier.
func (s *MongoStore) Name() string {
	return "mongodb"
}

// EnsureIndex creates the vector search index if it does not exist.
// An existing index is verified against the expected dimension and
// similarity metric.
func (s *MongoStore) EnsureIndex(ctx context.Context) error {
	existing, err := s.describe(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		return s.verifyDefinition(existing)
	}

	definition := bson.D{{Key: "fields", Value: bson.A{bson.D{
		{Key: "type", Value: "vector"},
		{Key: "path", Value: "embedding"},
		{Key: "numDimensions", Value: s.dim},
		{Key: "similarity", Value: string(s.metric)},
	}}}}

	model := mongo.SearchIndexModel{
		Definition: definition,
		Options:    mongoopts.SearchIndexes().SetName(s.index).SetType("vectorSearch"),
	}

	if _, err := s.coll.SearchIndexes().CreateOne(ctx, model); err != nil {
		// A concurrent creator may have won the race.
		if strings.Contains(err.Error(), "IndexAlreadyExists") || strings.Contains(err.Error(), "Duplicate Index") {
			logger.Infow("vector index already exists", "index", s.index)
			return nil
		}
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	logger.Infow("vector index creation started", "index", s.index, "dimension", s.dim)
	return nil
}

// State reports the current lifecycle state of the vector index.
func (s *MongoStore) State(ctx context.Context) (IndexState, error) {
	doc, err := s.describe(ctx)
	if err != nil {
		return StateAbsent, err
	}
	if doc == nil {
		return StateAbsent, nil
	}
	return indexStateOf(doc), nil
}

// indexStateOf maps an Atlas search index document onto the lifecycle
// state. Atlas marks a finished build with queryable=true; the status
// field reports FAILED builds.
func indexStateOf(doc bson.M) IndexState {
	status, _ := doc["status"].(string)
	queryable, _ := doc["queryable"].(bool)

	switch {
	case status == "FAILED":
		return StateFailed
	case queryable || status == "READY":
		return StateReady
	default:
		return StateCreating
	}
}

// WaitReady polls the index state until it becomes queryable. A failed
// index build and a timed out wait both return an error. A zero wait
// timeout leaves only the caller's deadline in effect.
func (s *MongoStore) WaitReady(ctx context.Context) error {
	if s.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.waitTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		state, err := s.State(ctx)
		if err != nil {
			return err
		}

		switch state {
		case StateReady:
			logger.Infow("vector index is queryable", "index", s.index)
			return nil
		case StateFailed:
			return fmt.Errorf("vector index %q build failed", s.index)
		case StateAbsent:
			return fmt.Errorf("vector index %q does not exist", s.index)
		}

		logger.Debugw("waiting for vector index", "index", s.index, "state", state.String())

		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for vector index %q: %w", s.index, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Upsert writes records in order, replacing any existing record with
// the same filename and chunk index.
func (s *MongoStore) Upsert(ctx context.Context, records []ChunkRecord) error {
	for i := range records {
		if len(records[i].Embedding) != s.dim {
			return &DimensionMismatchError{Want: s.dim, Got: len(records[i].Embedding)}
		}
	}

	for i := range records {
		filter := bson.D{
			{Key: "filename", Value: records[i].Filename},
			{Key: "chunk_index", Value: records[i].ChunkIndex},
		}
		_, err := s.coll.ReplaceOne(ctx, filter, records[i], mongoopts.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("failed to upsert chunk %d of %s: %w", records[i].ChunkIndex, records[i].Filename, err)
		}
	}
	return nil
}

// Search runs $vectorSearch and returns the topK most similar chunks.
func (s *MongoStore) Search(ctx context.Context, embedding []float32, topK int) ([]ScoredChunk, error) {
	if len(embedding) != s.dim {
		return nil, &DimensionMismatchError{Want: s.dim, Got: len(embedding)}
	}

	pipeline := vectorSearchPipeline(s.index, embedding, topK)

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var results []ScoredChunk
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.D{})
}

// Close disconnects the underlying client.
func (s *MongoStore) Close() error {
	return s.client.Close()
}

// describeIndex returns the search index document, or nil if absent.
func (s *MongoStore) describeIndex(ctx context.Context) (bson.M, error) {
	cursor, err := s.coll.SearchIndexes().List(ctx, mongoopts.SearchIndexes().SetName(s.index))
	if err != nil {
		return nil, fmt.Errorf("failed to list search indexes: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode search indexes: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

// verifyDefinition checks an existing index against the expected
// dimension and similarity metric.
func (s *MongoStore) verifyDefinition(doc bson.M) error {
	definition, ok := doc["latestDefinition"].(bson.M)
	if !ok {
		return nil
	}
	fields, ok := definition["fields"].(bson.A)
	if !ok || len(fields) == 0 {
		return &IndexConflictError{Index: s.index, Reason: "existing index has no vector field"}
	}

	field, ok := fields[0].(bson.M)
	if !ok {
		return nil
	}

	if dim, ok := toInt(field["numDimensions"]); ok && dim != s.dim {
		return &IndexConflictError{
			Index:  s.index,
			Reason: fmt.Sprintf("existing index has %d dimensions, want %d", dim, s.dim),
		}
	}
	if similarity, ok := field["similarity"].(string); ok && similarity != string(s.metric) {
		return &IndexConflictError{
			Index:  s.index,
			Reason: fmt.Sprintf("existing index uses %s similarity, want %s", similarity, s.metric),
		}
	}
	return nil
}

// vectorSearchPipeline builds the aggregation pipeline for a KNN query.
// The score is projected from the vectorSearchScore metadata and the
// Mongo object ID is dropped from the output.
func vectorSearchPipeline(index string, embedding []float32, topK int) mongo.Pipeline {
	return mongo.Pipeline{
		bson.D{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: index},
			{Key: "path", Value: "embedding"},
			{Key: "queryVector", Value: embedding},
			{Key: "numCandidates", Value: topK * candidateFactor},
			{Key: "limit", Value: topK},
		}}},
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "chunk", Value: 1},
			{Key: "filename", Value: 1},
			{Key: "filepath", Value: 1},
			{Key: "chunk_index", Value: 1},
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}
}

// toInt normalizes the numeric types BSON may decode into.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
