package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/intake-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// all metadata store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.intake/data/intake.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".intake", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "intake.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SourceStore returns a SourceStore interface backed by this store.
func (s *Store) SourceStore() driven.SourceStore {
	return &sourceStore{store: s}
}

// SourceLogStore returns a SourceLogStore interface backed by this store.
func (s *Store) SourceLogStore() driven.SourceLogStore {
	return &sourceLogStore{store: s}
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// ScheduleStore returns a ScheduleStore interface backed by this store.
func (s *Store) ScheduleStore() driven.ScheduleStore {
	return &scheduleStore{store: s}
}

// TaskQueue returns a TaskQueue interface backed by this store.
func (s *Store) TaskQueue() driven.TaskQueue {
	return &taskQueue{store: s}
}

// SharedFileStore returns a SharedUploadedFileStore interface backed by
// this store.
func (s *Store) SharedFileStore() driven.SharedUploadedFileStore {
	return &sharedFileStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Source Store ====================

// sourceStore implements driven.SourceStore.
type sourceStore struct {
	store *Store
}

var _ driven.SourceStore = (*sourceStore)(nil)

// Save stores or updates a source.
func (s *sourceStore) Save(ctx context.Context, source domain.Source) error {
	configJSON, err := json.Marshal(source.Config)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	now := time.Now().UTC()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	if source.UpdatedAt.IsZero() {
		source.UpdatedAt = now
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO sources (id, type, label, enabled, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			label = excluded.label,
			enabled = excluded.enabled,
			config = excluded.config,
			updated_at = excluded.updated_at
	`, source.ID, source.Type, source.Label, boolToInt(source.Enabled),
		string(configJSON), source.CreatedAt, source.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving source: %w", err)
	}
	return nil
}

// Get retrieves a source by ID.
func (s *sourceStore) Get(ctx context.Context, id string) (*domain.Source, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, type, label, enabled, config, created_at, updated_at
		FROM sources WHERE id = ?
	`, id)

	return scanSource(row)
}

// Delete removes a source.
func (s *sourceStore) Delete(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}
	return nil
}

// List returns all configured sources ordered by label.
func (s *sourceStore) List(ctx context.Context) ([]domain.Source, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, type, label, enabled, config, created_at, updated_at
		FROM sources ORDER BY label, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source //nolint:prealloc // size unknown from query
	for rows.Next() {
		source, err := scanSourceRows(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}

	return sources, nil
}

// scanSource scans a single source row.
func scanSource(row *sql.Row) (*domain.Source, error) {
	var source domain.Source
	var enabled int
	var configJSON string
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&source.ID, &source.Type, &source.Label, &enabled,
		&configJSON, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning source: %w", err)
	}

	if err := json.Unmarshal([]byte(configJSON), &source.Config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	source.Enabled = enabled == 1
	if createdAt.Valid {
		source.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		source.UpdatedAt = updatedAt.Time
	}

	return &source, nil
}

// scanSourceRows scans a source from *sql.Rows.
func scanSourceRows(rows *sql.Rows) (*domain.Source, error) {
	var source domain.Source
	var enabled int
	var configJSON string
	var createdAt, updatedAt sql.NullTime
	if err := rows.Scan(&source.ID, &source.Type, &source.Label, &enabled,
		&configJSON, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scanning source: %w", err)
	}

	if err := json.Unmarshal([]byte(configJSON), &source.Config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	source.Enabled = enabled == 1
	if createdAt.Valid {
		source.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		source.UpdatedAt = updatedAt.Time
	}

	return &source, nil
}

// ==================== Source Log Store ====================

// sourceLogStore implements driven.SourceLogStore.
type sourceLogStore struct {
	store *Store
}

var _ driven.SourceLogStore = (*sourceLogStore)(nil)

// Append records a diagnostic message for a source.
func (s *sourceLogStore) Append(ctx context.Context, sourceID, message string) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO source_logs (source_id, message, created_at)
		VALUES (?, ?, ?)
	`, sourceID, message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("appending source log: %w", err)
	}
	return nil
}

// List returns recent entries for a source, newest first.
func (s *sourceLogStore) List(ctx context.Context, sourceID string, limit int) ([]domain.SourceLogEntry, error) {
	query := `
		SELECT id, source_id, message, created_at
		FROM source_logs WHERE source_id = ?
		ORDER BY id DESC
	`
	args := []any{sourceID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying source logs: %w", err)
	}
	defer rows.Close()

	var entries []domain.SourceLogEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var entry domain.SourceLogEntry
		var createdAt sql.NullTime
		if err := rows.Scan(&entry.ID, &entry.SourceID, &entry.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning source log: %w", err)
		}
		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating source logs: %w", err)
	}

	return entries, nil
}

// DeleteForSource removes all entries for a source.
func (s *sourceLogStore) DeleteForSource(ctx context.Context, sourceID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM source_logs WHERE source_id = ?", sourceID)
	if err != nil {
		return fmt.Errorf("deleting source logs: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

// formatNullableTime formats a time to RFC3339 string, or returns nil for zero time.
func formatNullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// parseNullableTime parses an RFC3339 string, returning the zero time
// for NULL or unparseable values.
func parseNullableTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

// nullString converts an empty string to nil for NULL storage.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// boolToInt converts a bool to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
