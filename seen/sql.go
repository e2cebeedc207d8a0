package seen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultSQLitePath is used when no DSN is configured for sqlite.
const DefaultSQLitePath = "seen.db"

// SQLStore keeps seen articles in a single SQL table. The same schema and
// queries serve SQLite and PostgreSQL; sqlx rebinds placeholders per driver.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) a SQLite database at path.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLStore, error) {
	if path == "" {
		path = DefaultSQLitePath
	}

	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, storeErr("open", fmt.Errorf("failed to open database: %w", err))
	}
	// SQLite allows one writer; a single connection avoids "database is
	// locked" when sites run concurrently.
	db.SetMaxOpenConns(1)

	store, err := NewSQLStore(ctx, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStore connects to PostgreSQL using dsn.
func NewPostgresStore(ctx context.Context, dsn string, opts ...Option) (*SQLStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, storeErr("open", fmt.Errorf("failed to open database: %w", err))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, storeErr("open", fmt.Errorf("failed to connect: %w", err))
	}

	store, err := NewSQLStore(ctx, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wraps an existing connection and ensures the schema exists.
func NewSQLStore(ctx context.Context, db *sqlx.DB, opts ...Option) (*SQLStore, error) {
	o := buildOptions(opts)
	store := &SQLStore{db: db, now: o.now}
	if err := store.initSchema(ctx); err != nil {
		return nil, storeErr("init", fmt.Errorf("failed to initialize schema: %w", err))
	}
	return store, nil
}

// initSchema creates the seen_articles table if it doesn't exist.
// first_seen_at holds unix milliseconds.
func (s *SQLStore) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS seen_articles (
			article_url TEXT PRIMARY KEY,
			first_seen_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS seen_articles_first_seen_at_idx
			ON seen_articles (first_seen_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether url has been recorded.
func (s *SQLStore) Has(ctx context.Context, url string) (bool, error) {
	query := s.db.Rebind("SELECT 1 FROM seen_articles WHERE article_url = ?")

	var one int
	err := s.db.GetContext(ctx, &one, query, url)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("has", fmt.Errorf("failed to query article: %w", err))
	}
	return true, nil
}

// Record inserts url unless it is already present.
func (s *SQLStore) Record(ctx context.Context, url string) error {
	query := s.db.Rebind(`
		INSERT INTO seen_articles (article_url, first_seen_at)
		VALUES (?, ?)
		ON CONFLICT (article_url) DO NOTHING
	`)

	if _, err := s.db.ExecContext(ctx, query, url, s.now().UnixMilli()); err != nil {
		return storeErr("record", fmt.Errorf("failed to insert article: %w", err))
	}
	return nil
}

// Sweep deletes records older than retention.
func (s *SQLStore) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention).UnixMilli()
	query := s.db.Rebind("DELETE FROM seen_articles WHERE first_seen_at < ?")

	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, storeErr("sweep", fmt.Errorf("failed to delete expired articles: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, storeErr("sweep", fmt.Errorf("failed to get rows affected: %w", err))
	}
	return rows, nil
}

// Count returns the number of stored records.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM seen_articles"); err != nil {
		return 0, storeErr("count", fmt.Errorf("failed to count articles: %w", err))
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
