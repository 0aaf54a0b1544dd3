package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	rediscomp "github.com/kart-io/ragsvc/pkg/component/redis"
	storeopts "github.com/kart-io/ragsvc/pkg/options/store"
)

// RedisStore is a VectorStore backed by a RediSearch FLAT vector index
// over hash keys. Unlike Atlas, a RediSearch index is queryable as soon
// as FT.CREATE returns, so the creating state never surfaces here.
type RedisStore struct {
	client *rediscomp.Client
	rdb    *goredis.Client
	index  string
	prefix string
	dim    int
}

var _ VectorStore = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore on the configured index.
func NewRedisStore(client *rediscomp.Client, opts *storeopts.Options, dim int) *RedisStore {
	return &RedisStore{
		client: client,
		rdb:    client.Client(),
		index:  opts.RedisIndex,
		prefix: opts.RedisKeyPrefix,
		dim:    dim,
	}
}

// Name returns the backend identifier.
func (s *RedisStore) Name() string {
	return "redis"
}

// EnsureIndex creates the FLAT vector index if it does not exist. An
// existing index is verified to carry the embedding vector attribute.
func (s *RedisStore) EnsureIndex(ctx context.Context) error {
	info, err := s.rdb.FTInfo(ctx, s.index).Result()
	if err == nil {
		return s.verifyAttributes(info)
	}
	if !isUnknownIndex(err) {
		return fmt.Errorf("failed to inspect index %q: %w", s.index, err)
	}

	createOpts := &goredis.FTCreateOptions{
		OnHash: true,
		Prefix: []interface{}{s.prefix},
	}

	schema := []*goredis.FieldSchema{
		{
			FieldName: "embedding",
			FieldType: goredis.SearchFieldTypeVector,
			VectorArgs: &goredis.FTVectorArgs{
				FlatOptions: &goredis.FTFlatOptions{
					Type:           "FLOAT32",
					Dim:            s.dim,
					DistanceMetric: "COSINE",
				},
			},
		},
		{FieldName: "chunk", FieldType: goredis.SearchFieldTypeText},
		{FieldName: "filename", FieldType: goredis.SearchFieldTypeText},
		{FieldName: "filepath", FieldType: goredis.SearchFieldTypeText},
		{FieldName: "chunk_index", FieldType: goredis.SearchFieldTypeNumeric},
	}

	if err := s.rdb.FTCreate(ctx, s.index, createOpts, schema...).Err(); err != nil {
		// A concurrent creator may have won the race.
		if strings.Contains(err.Error(), "Index already exists") {
			logger.Infow("vector index already exists", "index", s.index)
			return nil
		}
		return fmt.Errorf("failed to create index %q: %w", s.index, err)
	}

	logger.Infow("vector index created", "index", s.index, "dimension", s.dim)
	return nil
}

// State reports whether the index exists. RediSearch indexes are
// queryable immediately after creation.
func (s *RedisStore) State(ctx context.Context) (IndexState, error) {
	_, err := s.rdb.FTInfo(ctx, s.index).Result()
	if err != nil {
		if isUnknownIndex(err) {
			return StateAbsent, nil
		}
		return StateAbsent, fmt.Errorf("failed to inspect index %q: %w", s.index, err)
	}
	return StateReady, nil
}

// WaitReady returns once the index exists.
func (s *RedisStore) WaitReady(ctx context.Context) error {
	state, err := s.State(ctx)
	if err != nil {
		return err
	}
	if state != StateReady {
		return fmt.Errorf("vector index %q does not exist", s.index)
	}
	return nil
}

// Upsert writes records in order as hashes under the configured key
// prefix. A record with the same filename and chunk index overwrites
// the previous one.
func (s *RedisStore) Upsert(ctx context.Context, records []ChunkRecord) error {
	for i := range records {
		if len(records[i].Embedding) != s.dim {
			return &DimensionMismatchError{Want: s.dim, Got: len(records[i].Embedding)}
		}
	}

	for i := range records {
		key := s.chunkKey(records[i].Filename, records[i].ChunkIndex)
		fields := map[string]interface{}{
			"chunk":       records[i].Chunk,
			"filename":    records[i].Filename,
			"filepath":    records[i].Filepath,
			"chunk_index": records[i].ChunkIndex,
			"embedding":   encodeVector(records[i].Embedding),
		}
		if err := s.rdb.HSet(ctx, key, fields).Err(); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", key, err)
		}
	}
	return nil
}

// Search runs a KNN query and returns the topK most similar chunks.
// RediSearch reports cosine distance, which is inverted into a
// similarity score so that higher means more similar.
func (s *RedisStore) Search(ctx context.Context, embedding []float32, topK int) ([]ScoredChunk, error) {
	if len(embedding) != s.dim {
		return nil, &DimensionMismatchError{Want: s.dim, Got: len(embedding)}
	}

	query := knnQuery(topK)
	searchOpts := &goredis.FTSearchOptions{
		Return: []goredis.FTSearchReturn{
			{FieldName: "chunk"},
			{FieldName: "filename"},
			{FieldName: "filepath"},
			{FieldName: "chunk_index"},
			{FieldName: "score"},
		},
		SortBy:         []goredis.FTSearchSortBy{{FieldName: "score", Asc: true}},
		Limit:          topK,
		DialectVersion: 2,
		Params: map[string]interface{}{
			"vec": encodeVector(embedding),
		},
	}

	result, err := s.rdb.FTSearchWithArgs(ctx, s.index, query, searchOpts).Result()
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	chunks := make([]ScoredChunk, 0, len(result.Docs))
	for _, doc := range result.Docs {
		chunk, err := docToScoredChunk(doc.Fields)
		if err != nil {
			return nil, fmt.Errorf("failed to parse document %s: %w", doc.ID, err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// Count returns the number of indexed chunks.
func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	info, err := s.rdb.FTInfo(ctx, s.index).Result()
	if err != nil {
		if isUnknownIndex(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to inspect index %q: %w", s.index, err)
	}
	return int64(info.NumDocs), nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// chunkKey builds the hash key for one chunk.
func (s *RedisStore) chunkKey(filename string, chunkIndex int) string {
	return s.prefix + filename + ":" + strconv.Itoa(chunkIndex)
}

// verifyAttributes checks that an existing index carries the embedding
// vector attribute.
func (s *RedisStore) verifyAttributes(info goredis.FTInfoResult) error {
	for _, attr := range info.Attributes {
		if attr.Attribute == "embedding" && strings.EqualFold(attr.Type, "VECTOR") {
			return nil
		}
	}
	return &IndexConflictError{Index: s.index, Reason: "existing index has no embedding vector attribute"}
}

// isUnknownIndex reports whether err is RediSearch's missing-index error.
func isUnknownIndex(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown index name") || strings.Contains(msg, "no such index")
}

// knnQuery builds the KNN query string for the given result count.
func knnQuery(topK int) string {
	return fmt.Sprintf("*=>[KNN %d @embedding $vec AS score]", topK)
}

// docToScoredChunk converts a RediSearch hash document into a
// ScoredChunk, inverting the cosine distance into a similarity score.
func docToScoredChunk(fields map[string]string) (ScoredChunk, error) {
	distance, err := strconv.ParseFloat(fields["score"], 64)
	if err != nil {
		return ScoredChunk{}, fmt.Errorf("invalid score %q: %w", fields["score"], err)
	}

	chunkIndex, err := strconv.Atoi(fields["chunk_index"])
	if err != nil {
		return ScoredChunk{}, fmt.Errorf("invalid chunk index %q: %w", fields["chunk_index"], err)
	}

	return ScoredChunk{
		Chunk:      fields["chunk"],
		Filename:   fields["filename"],
		Filepath:   fields["filepath"],
		ChunkIndex: chunkIndex,
		Score:      1 - distance,
	}, nil
}

// encodeVector serializes an embedding as little-endian float32 bytes,
// the layout RediSearch expects for vector fields.
func encodeVector(embedding []float32) []byte {
	buf := make([]byte, 4*len(embedding))
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector deserializes little-endian float32 bytes back into an
// embedding.
func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("vector byte length %d is not a multiple of 4", len(data))
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return embedding, nil
}
