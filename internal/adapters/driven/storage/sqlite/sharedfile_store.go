package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
)

// sharedFileStore implements driven.SharedUploadedFileStore. Content is
// stored as a blob next to the handle row so a handle and its bytes
// are always deleted together.
type sharedFileStore struct {
	store *Store
}

var _ driven.SharedUploadedFileStore = (*sharedFileStore)(nil)

// Create persists the content and returns its handle.
func (s *sharedFileStore) Create(ctx context.Context, filename string, content io.Reader) (*domain.SharedUploadedFile, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}

	handle := &domain.SharedUploadedFile{
		ID:        uuid.NewString(),
		Filename:  filename,
		Size:      int64(len(data)),
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO shared_uploaded_files (id, filename, size, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, handle.ID, handle.Filename, handle.Size, data, handle.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("creating shared file: %w", err)
	}
	return handle, nil
}

// Get retrieves a handle by ID.
func (s *sharedFileStore) Get(ctx context.Context, id string) (*domain.SharedUploadedFile, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, filename, size, created_at
		FROM shared_uploaded_files WHERE id = ?
	`, id)

	var handle domain.SharedUploadedFile
	var createdAt int64
	err := row.Scan(&handle.ID, &handle.Filename, &handle.Size, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning shared file: %w", err)
	}
	handle.CreatedAt = time.Unix(0, createdAt).UTC()
	return &handle, nil
}

// Open returns a reader over the persisted content.
func (s *sharedFileStore) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT content FROM shared_uploaded_files WHERE id = ?", id)

	var content []byte
	err := row.Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning shared file content: %w", err)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

// Delete removes the handle and its content.
func (s *sharedFileStore) Delete(ctx context.Context, id string) error {
	result, err := s.store.db.ExecContext(ctx,
		"DELETE FROM shared_uploaded_files WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting shared file: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if deleted == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteOlderThan prunes handles orphaned by crashed tasks.
func (s *sharedFileStore) DeleteOlderThan(ctx context.Context, ageSeconds int64) (int, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(ageSeconds) * time.Second).UnixNano()
	result, err := s.store.db.ExecContext(ctx,
		"DELETE FROM shared_uploaded_files WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning shared files: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking prune result: %w", err)
	}
	return int(deleted), nil
}
