package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"propsearch/models"
)

// PostgresStore is the shared-deployment cache store. It implements the
// same CacheStore contract as SQLiteStore; Postgres row-level locking gives
// the required last-write-wins behavior for concurrent Puts.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cached_queries (
		fingerprint TEXT PRIMARY KEY,
		criteria JSONB NOT NULL,
		listings JSONB NOT NULL,
		fetched_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cached_listings (
		id TEXT PRIMARY KEY,
		data JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_queries_fetched ON cached_queries(fetched_at);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) Lookup(ctx context.Context, fingerprint string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	var criteria, listings []byte
	err := s.pool.QueryRow(ctx, `
		SELECT fingerprint, criteria, listings, fetched_at
		FROM cached_queries WHERE fingerprint = $1`, fingerprint).Scan(
		&entry.Fingerprint, &criteria, &listings, &entry.FetchedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &models.CacheUnavailableError{Op: "lookup", Err: err}
	}
	if err := json.Unmarshal(criteria, &entry.Criteria); err != nil {
		return nil, &models.CacheUnavailableError{Op: "lookup", Err: err}
	}
	if err := json.Unmarshal(listings, &entry.Listings); err != nil {
		return nil, &models.CacheUnavailableError{Op: "lookup", Err: err}
	}
	return &entry, nil
}

func (s *PostgresStore) Put(ctx context.Context, entry *models.CacheEntry) error {
	criteria, err := json.Marshal(entry.Criteria)
	if err != nil {
		return &models.CacheUnavailableError{Op: "put", Err: err}
	}
	listings, err := json.Marshal(entry.Listings)
	if err != nil {
		return &models.CacheUnavailableError{Op: "put", Err: err}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO cached_queries (fingerprint, criteria, listings, fetched_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (fingerprint) DO UPDATE SET
			criteria = EXCLUDED.criteria,
			listings = EXCLUDED.listings,
			fetched_at = EXCLUDED.fetched_at`,
		entry.Fingerprint, criteria, listings, entry.FetchedAt)
	if err != nil {
		return &models.CacheUnavailableError{Op: "put", Err: err}
	}

	for i := range entry.Listings {
		data, err := json.Marshal(&entry.Listings[i])
		if err != nil {
			return &models.CacheUnavailableError{Op: "put", Err: err}
		}
		_, err = s.pool.Exec(ctx, `
			INSERT INTO cached_listings (id, data, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET
				data = EXCLUDED.data,
				updated_at = EXCLUDED.updated_at`,
			entry.Listings[i].ID, data, entry.FetchedAt)
		if err != nil {
			return &models.CacheUnavailableError{Op: "put", Err: err}
		}
	}
	return nil
}

func (s *PostgresStore) GetListing(ctx context.Context, id string) (*models.RawListing, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `
		SELECT data FROM cached_listings WHERE id = $1`, id).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &models.CacheUnavailableError{Op: "get_listing", Err: err}
	}

	var listing models.RawListing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, &models.CacheUnavailableError{Op: "get_listing", Err: err}
	}
	return &listing, nil
}

func (s *PostgresStore) StaleEntries(ctx context.Context, cutoff time.Time, limit int) ([]models.CacheEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT fingerprint, criteria, listings, fetched_at
		FROM cached_queries WHERE fetched_at < $1
		ORDER BY fetched_at DESC LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, &models.CacheUnavailableError{Op: "stale_entries", Err: err}
	}
	defer rows.Close()

	var entries []models.CacheEntry
	for rows.Next() {
		var entry models.CacheEntry
		var criteria, listings []byte
		if err := rows.Scan(&entry.Fingerprint, &criteria, &listings, &entry.FetchedAt); err != nil {
			return nil, &models.CacheUnavailableError{Op: "stale_entries", Err: err}
		}
		if err := json.Unmarshal(criteria, &entry.Criteria); err != nil {
			return nil, &models.CacheUnavailableError{Op: "stale_entries", Err: err}
		}
		if err := json.Unmarshal(listings, &entry.Listings); err != nil {
			return nil, &models.CacheUnavailableError{Op: "stale_entries", Err: err}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.CacheUnavailableError{Op: "stale_entries", Err: err}
	}
	return entries, nil
}

func (s *PostgresStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM cached_queries WHERE fetched_at < $1`, cutoff)
	if err != nil {
		return 0, &models.CacheUnavailableError{Op: "purge", Err: err}
	}
	return tag.RowsAffected(), nil
}
