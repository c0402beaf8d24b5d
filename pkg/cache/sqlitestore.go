package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists cache entries in a SQLite database so that warm
// explanation results survive process restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed store at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Open database with connection pooling parameters
	// Format: file:path?param=value
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writes are serialized by SQLite anyway, keep the pool small
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database schema if it doesn't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Get retrieves an entry by key.
func (s *SQLiteStore) Get(key string) ([]byte, time.Time, bool, error) {
	var payload []byte
	var expiresUnix int64

	query := `SELECT payload, expires_at FROM cache_entries WHERE key = ?`
	err := s.db.QueryRow(query, key).Scan(&payload, &expiresUnix)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	return payload, time.Unix(expiresUnix, 0), true, nil
}

// Set stores an entry, replacing any previous value for the key.
func (s *SQLiteStore) Set(key string, payload []byte, expiresAt time.Time) error {
	query := `
		INSERT OR REPLACE INTO cache_entries (key, payload, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, key, payload, expiresAt.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}
	return nil
}

// Delete removes an entry by key.
func (s *SQLiteStore) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// DeletePrefix removes all entries whose key starts with the prefix and
// returns the number removed.
func (s *SQLiteStore) DeletePrefix(prefix string) (int, error) {
	pattern := escapeLike(prefix) + "%"
	result, err := s.db.Exec(`DELETE FROM cache_entries WHERE key LIKE ? ESCAPE '\'`, pattern)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache entries: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return int(affected), nil
}

// Clear removes all entries and returns the number removed.
func (s *SQLiteStore) Clear() (int, error) {
	result, err := s.db.Exec(`DELETE FROM cache_entries`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return int(affected), nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// escapeLike escapes LIKE wildcards so a prefix is matched literally.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
