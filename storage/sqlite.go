package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"propsearch/models"
)

// SQLiteStore is the default cache store: a single-file database with one
// row per criteria fingerprint plus a per-listing table for detail lookups.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cached_queries (
		fingerprint TEXT PRIMARY KEY,
		criteria JSON NOT NULL,
		listings JSON NOT NULL,
		fetched_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cached_listings (
		id TEXT PRIMARY KEY,
		data JSON NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_queries_fetched ON cached_queries(fetched_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Lookup(ctx context.Context, fingerprint string) (*models.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, criteria, listings, fetched_at
		FROM cached_queries WHERE fingerprint = ?`, fingerprint)

	entry, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &models.CacheUnavailableError{Op: "lookup", Err: err}
	}
	return entry, nil
}

func (s *SQLiteStore) Put(ctx context.Context, entry *models.CacheEntry) error {
	criteria, err := json.Marshal(entry.Criteria)
	if err != nil {
		return &models.CacheUnavailableError{Op: "put", Err: err}
	}
	listings, err := json.Marshal(entry.Listings)
	if err != nil {
		return &models.CacheUnavailableError{Op: "put", Err: err}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cached_queries (fingerprint, criteria, listings, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			criteria = excluded.criteria,
			listings = excluded.listings,
			fetched_at = excluded.fetched_at`,
		entry.Fingerprint, criteria, listings, entry.FetchedAt)
	if err != nil {
		return &models.CacheUnavailableError{Op: "put", Err: err}
	}

	for i := range entry.Listings {
		if err := s.upsertListing(ctx, &entry.Listings[i], entry.FetchedAt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) upsertListing(ctx context.Context, listing *models.RawListing, at time.Time) error {
	data, err := json.Marshal(listing)
	if err != nil {
		return &models.CacheUnavailableError{Op: "put", Err: err}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cached_listings (id, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at`,
		listing.ID, data, at)
	if err != nil {
		return &models.CacheUnavailableError{Op: "put", Err: err}
	}
	return nil
}

func (s *SQLiteStore) GetListing(ctx context.Context, id string) (*models.RawListing, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM cached_listings WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
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

func (s *SQLiteStore) StaleEntries(ctx context.Context, cutoff time.Time, limit int) ([]models.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fingerprint, criteria, listings, fetched_at
		FROM cached_queries WHERE fetched_at < ?
		ORDER BY fetched_at DESC LIMIT ?`, cutoff, limit)
	if err != nil {
		return nil, &models.CacheUnavailableError{Op: "stale_entries", Err: err}
	}
	defer rows.Close()

	var entries []models.CacheEntry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, &models.CacheUnavailableError{Op: "stale_entries", Err: err}
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.CacheUnavailableError{Op: "stale_entries", Err: err}
	}
	return entries, nil
}

func (s *SQLiteStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM cached_queries WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, &models.CacheUnavailableError{Op: "purge", Err: err}
	}
	return result.RowsAffected()
}

func scanEntry(scan func(dest ...any) error) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	var criteria, listings []byte
	if err := scan(&entry.Fingerprint, &criteria, &listings, &entry.FetchedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(criteria, &entry.Criteria); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(listings, &entry.Listings); err != nil {
		return nil, err
	}
	return &entry, nil
}
