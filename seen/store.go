// Package seen records which article URLs have already been delivered so a
// run never re-delivers them. Records older than Retention are swept at the
// start of every run.
package seen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Retention is how long an article URL stays in the store.
const Retention = 7 * 24 * time.Hour

// Store is a persistent set of processed article URLs. Implementations are
// safe for concurrent use, and Record is insert-if-absent.
type Store interface {
	// Has reports whether url has been recorded.
	Has(ctx context.Context, url string) (bool, error)
	// Record adds url with the current time. Recording an existing url is a
	// no-op.
	Record(ctx context.Context, url string) error
	// Sweep deletes records first seen more than retention ago and returns
	// how many were removed.
	Sweep(ctx context.Context, retention time.Duration) (int64, error)
	// Close releases the backing connection.
	Close() error
}

// ErrUnknownType is returned by Open for an unsupported store type.
var ErrUnknownType = errors.New("store type must be sqlite, postgres, redis, or memory")

// StoreError reports that the backing store could not serve an operation.
// A run cannot continue without its dedup guarantees.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("seen store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// Config selects and configures a backend.
type Config struct {
	Type     string `yaml:"type"` // sqlite, postgres, redis, memory
	DSN      string `yaml:"dsn"`
	RedisKey string `yaml:"redis_key"`
}

// Option customizes a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for firstSeenAt and sweeps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open creates the store described by cfg.
func Open(ctx context.Context, cfg Config, opts ...Option) (Store, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "sqlite", "sqlite3":
		return NewSQLiteStore(ctx, cfg.DSN, opts...)
	case "postgres", "postgresql":
		return NewPostgresStore(ctx, cfg.DSN, opts...)
	case "redis":
		return NewRedisStoreFromURL(ctx, cfg.DSN, cfg.RedisKey, opts...)
	case "memory":
		return NewMemoryStore(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
}
