// Package store provides vector store configuration options.
package store

import (
	"fmt"
	"time"

	"github.com/kart-io/ragsvc/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Supported vector store backends.
const (
	BackendMongoDB = "mongodb"
	BackendRedis   = "redis"
)

// Options selects and configures the vector store backend.
type Options struct {
	// Backend is the vector store backend (mongodb|redis).
	Backend string `json:"backend" mapstructure:"backend"`

	// Collection is the MongoDB collection holding chunk documents.
	Collection string `json:"collection" mapstructure:"collection"`

	// VectorIndex is the MongoDB Atlas vector search index name.
	VectorIndex string `json:"vector-index" mapstructure:"vector-index"`

	// RedisIndex is the RediSearch index name.
	RedisIndex string `json:"redis-index" mapstructure:"redis-index"`

	// RedisKeyPrefix is the key prefix for chunk hashes in Redis.
	RedisKeyPrefix string `json:"redis-key-prefix" mapstructure:"redis-key-prefix"`

	// WaitReady blocks startup until the vector index is queryable.
	WaitReady bool `json:"wait-ready" mapstructure:"wait-ready"`

	// WaitTimeout bounds how long startup waits for index readiness.
	// Zero waits until the caller's deadline, if any.
	WaitTimeout time.Duration `json:"wait-timeout" mapstructure:"wait-timeout"`

	// PollInterval is the index readiness polling interval.
	PollInterval time.Duration `json:"poll-interval" mapstructure:"poll-interval"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Backend:        BackendMongoDB,
		Collection:     "docs",
		VectorIndex:    "vector_index",
		RedisIndex:     "embeddings",
		RedisKeyPrefix: "doc:",
		WaitReady:      true,
		WaitTimeout:    2 * time.Minute,
		PollInterval:   2 * time.Second,
	}
}

// AddFlags adds flags for store options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Backend, options.Join(prefixes...)+"store.backend", o.Backend, "Vector store backend (mongodb|redis).")
	fs.StringVar(&o.Collection, options.Join(prefixes...)+"store.collection", o.Collection, "MongoDB collection for chunk documents.")
	fs.StringVar(&o.VectorIndex, options.Join(prefixes...)+"store.vector-index", o.VectorIndex, "MongoDB Atlas vector search index name.")
	fs.StringVar(&o.RedisIndex, options.Join(prefixes...)+"store.redis-index", o.RedisIndex, "RediSearch index name.")
	fs.StringVar(&o.RedisKeyPrefix, options.Join(prefixes...)+"store.redis-key-prefix", o.RedisKeyPrefix, "Key prefix for chunk hashes in Redis.")
	fs.BoolVar(&o.WaitReady, options.Join(prefixes...)+"store.wait-ready", o.WaitReady, "Wait for the vector index to become queryable on startup.")
	fs.DurationVar(&o.WaitTimeout, options.Join(prefixes...)+"store.wait-timeout", o.WaitTimeout, "Maximum time to wait for index readiness (0 waits indefinitely).")
	fs.DurationVar(&o.PollInterval, options.Join(prefixes...)+"store.poll-interval", o.PollInterval, "Index readiness polling interval.")
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Backend {
	case BackendMongoDB, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("backend must be one of %q or %q, got %q", BackendMongoDB, BackendRedis, o.Backend))
	}
	if o.Backend == BackendMongoDB {
		if o.Collection == "" {
			errs = append(errs, fmt.Errorf("collection is required for the mongodb backend"))
		}
		if o.VectorIndex == "" {
			errs = append(errs, fmt.Errorf("vector-index is required for the mongodb backend"))
		}
	}
	if o.Backend == BackendRedis {
		if o.RedisIndex == "" {
			errs = append(errs, fmt.Errorf("redis-index is required for the redis backend"))
		}
		if o.RedisKeyPrefix == "" {
			errs = append(errs, fmt.Errorf("redis-key-prefix is required for the redis backend"))
		}
	}
	if o.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll-interval must be positive"))
	}
	if o.WaitTimeout < 0 {
		errs = append(errs, fmt.Errorf("wait-timeout cannot be negative"))
	}
	return errs
}

// Complete completes the store options with defaults.
func (o *Options) Complete() error {
	return nil
}
