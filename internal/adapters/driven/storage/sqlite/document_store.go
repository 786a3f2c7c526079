package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document row.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.ErrInvalidInput
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}
	tagsJSON, err := json.Marshal(doc.Tags)
	if err != nil {
		return fmt.Errorf("marshalling tags: %w", err)
	}
	cabinetsJSON, err := json.Marshal(doc.Cabinets)
	if err != nil {
		return fmt.Errorf("marshalling cabinets: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO documents
			(id, source_id, document_type, label, description, language,
			 metadata, tags, cabinets, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id,
			document_type = excluded.document_type,
			label = excluded.label,
			description = excluded.description,
			language = excluded.language,
			metadata = excluded.metadata,
			tags = excluded.tags,
			cabinets = excluded.cabinets,
			updated_at = excluded.updated_at
	`, doc.ID, doc.SourceID, doc.DocumentType, doc.Label, doc.Description, doc.Language,
		string(metadataJSON), string(tagsJSON), string(cabinetsJSON),
		doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, source_id, document_type, label, description, language,
		       metadata, tags, cabinets, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocumentColumns(row.Scan)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// DeleteDocument hard-deletes a document. Files, versions, and pages
// go with it through cascading foreign keys; events survive as audit.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// ListDocuments returns documents for a source in creation order.
func (s *documentStore) ListDocuments(ctx context.Context, sourceID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, source_id, document_type, label, description, language,
		       metadata, tags, cabinets, created_at, updated_at
		FROM documents WHERE source_id = ?
		ORDER BY created_at, id
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocumentColumns(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// SaveFile stores a file revision including its content.
func (s *documentStore) SaveFile(ctx context.Context, file *domain.DocumentFile) error {
	if file == nil || file.ID == "" || file.DocumentID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO document_files
			(id, document_id, filename, mime_type, size, checksum, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			mime_type = excluded.mime_type,
			size = excluded.size,
			checksum = excluded.checksum,
			content = excluded.content
	`, file.ID, file.DocumentID, file.Filename, file.MIMEType,
		file.Size, file.Checksum, file.Content, file.CreatedAt)

	if err != nil {
		return fmt.Errorf("saving file: %w", err)
	}
	return nil
}

// GetFile retrieves a file by ID, content included.
func (s *documentStore) GetFile(ctx context.Context, id string) (*domain.DocumentFile, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, filename, mime_type, size, checksum, content, created_at
		FROM document_files WHERE id = ?
	`, id)

	var file domain.DocumentFile
	var createdAt sql.NullTime
	err := row.Scan(&file.ID, &file.DocumentID, &file.Filename, &file.MIMEType,
		&file.Size, &file.Checksum, &file.Content, &createdAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning file: %w", err)
	}
	if createdAt.Valid {
		file.CreatedAt = createdAt.Time
	}
	return &file, nil
}

// ListFiles returns a document's files in revision order.
func (s *documentStore) ListFiles(ctx context.Context, documentID string) ([]domain.DocumentFile, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, filename, mime_type, size, checksum, content, created_at
		FROM document_files WHERE document_id = ?
		ORDER BY created_at, rowid
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer rows.Close()

	var files []domain.DocumentFile //nolint:prealloc // size unknown from query
	for rows.Next() {
		var file domain.DocumentFile
		var createdAt sql.NullTime
		if err := rows.Scan(&file.ID, &file.DocumentID, &file.Filename, &file.MIMEType,
			&file.Size, &file.Checksum, &file.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		if createdAt.Valid {
			file.CreatedAt = createdAt.Time
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating files: %w", err)
	}

	return files, nil
}

// FindByChecksum returns IDs of files sharing a checksum, excluding
// the given file.
func (s *documentStore) FindByChecksum(ctx context.Context, checksum, excludeFileID string) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id FROM document_files
		WHERE checksum = ? AND id != ?
		ORDER BY created_at, rowid
	`, checksum, excludeFileID)
	if err != nil {
		return nil, fmt.Errorf("querying by checksum: %w", err)
	}
	defer rows.Close()

	var ids []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning file id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating file ids: %w", err)
	}

	return ids, nil
}

// SaveVersion stores a version row. Saving an active version
// deactivates the document's other versions.
func (s *documentStore) SaveVersion(ctx context.Context, version *domain.DocumentVersion) error {
	if version == nil || version.ID == "" || version.DocumentID == "" {
		return domain.ErrInvalidInput
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if version.Active {
		_, err = tx.ExecContext(ctx, `
			UPDATE document_versions SET active = 0
			WHERE document_id = ? AND id != ?
		`, version.DocumentID, version.ID)
		if err != nil {
			return fmt.Errorf("deactivating versions: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO document_versions (id, document_id, file_id, active, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_id = excluded.file_id,
			active = excluded.active,
			comment = excluded.comment
	`, version.ID, version.DocumentID, version.FileID,
		boolToInt(version.Active), version.Comment, version.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ListVersions returns a document's versions in creation order.
func (s *documentStore) ListVersions(ctx context.Context, documentID string) ([]domain.DocumentVersion, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, file_id, active, comment, created_at
		FROM document_versions WHERE document_id = ?
		ORDER BY created_at, rowid
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.DocumentVersion //nolint:prealloc // size unknown from query
	for rows.Next() {
		var version domain.DocumentVersion
		var active int
		var createdAt sql.NullTime
		if err := rows.Scan(&version.ID, &version.DocumentID, &version.FileID,
			&active, &version.Comment, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning version: %w", err)
		}
		version.Active = active == 1
		if createdAt.Valid {
			version.CreatedAt = createdAt.Time
		}
		versions = append(versions, version)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating versions: %w", err)
	}

	return versions, nil
}

// SavePage stores a page row.
func (s *documentStore) SavePage(ctx context.Context, page *domain.DocumentPage) error {
	if page == nil || page.ID == "" || page.VersionID == "" {
		return domain.ErrInvalidInput
	}

	transformationsJSON, err := json.Marshal(page.Transformations)
	if err != nil {
		return fmt.Errorf("marshalling transformations: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO document_pages (id, version_id, number, transformations)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			number = excluded.number,
			transformations = excluded.transformations
	`, page.ID, page.VersionID, page.Number, string(transformationsJSON))

	if err != nil {
		return fmt.Errorf("saving page: %w", err)
	}
	return nil
}

// ListPages returns a version's pages ordered by number.
func (s *documentStore) ListPages(ctx context.Context, versionID string) ([]domain.DocumentPage, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, version_id, number, transformations
		FROM document_pages WHERE version_id = ?
		ORDER BY number
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("querying pages: %w", err)
	}
	defer rows.Close()

	var pages []domain.DocumentPage //nolint:prealloc // size unknown from query
	for rows.Next() {
		var page domain.DocumentPage
		var transformationsJSON string
		if err := rows.Scan(&page.ID, &page.VersionID, &page.Number, &transformationsJSON); err != nil {
			return nil, fmt.Errorf("scanning page: %w", err)
		}
		if err := json.Unmarshal([]byte(transformationsJSON), &page.Transformations); err != nil {
			return nil, fmt.Errorf("unmarshaling transformations: %w", err)
		}
		pages = append(pages, page)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pages: %w", err)
	}

	return pages, nil
}

// RecordEvent appends an event record.
func (s *documentStore) RecordEvent(ctx context.Context, event *domain.EventRecord) error {
	if event == nil || event.Name == "" {
		return domain.ErrInvalidInput
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO document_events (name, document_id, target_id, user_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, event.Name, event.DocumentID, event.TargetID, event.UserID, createdAt)
	if err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

// ListEvents returns a document's events in emission order.
func (s *documentStore) ListEvents(ctx context.Context, documentID string) ([]domain.EventRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, document_id, target_id, user_id, created_at
		FROM document_events WHERE document_id = ?
		ORDER BY id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []domain.EventRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		var event domain.EventRecord
		var createdAt sql.NullTime
		if err := rows.Scan(&event.ID, &event.Name, &event.DocumentID,
			&event.TargetID, &event.UserID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		if createdAt.Valid {
			event.CreatedAt = createdAt.Time
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	return events, nil
}

// TouchRecent registers a user's access to a document, evicting
// entries beyond the per-user bound.
func (s *documentStore) TouchRecent(ctx context.Context, userID, documentID string, keep int) error {
	if userID == "" || documentID == "" {
		return domain.ErrInvalidInput
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Touched entries move to the back of the eviction order.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM recent_documents WHERE user_id = ? AND document_id = ?
	`, userID, documentID)
	if err != nil {
		return fmt.Errorf("refreshing recent document: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recent_documents (user_id, document_id, accessed_at)
		VALUES (?, ?, ?)
	`, userID, documentID, time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("inserting recent document: %w", err)
	}

	if keep > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM recent_documents
			WHERE user_id = ? AND rowid NOT IN (
				SELECT rowid FROM recent_documents
				WHERE user_id = ?
				ORDER BY accessed_at DESC, rowid DESC
				LIMIT ?
			)
		`, userID, userID, keep)
		if err != nil {
			return fmt.Errorf("evicting recent documents: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ListRecent returns a user's recent documents, newest first.
func (s *documentStore) ListRecent(ctx context.Context, userID string, limit int) ([]domain.RecentDocument, error) {
	query := `
		SELECT user_id, document_id, accessed_at
		FROM recent_documents WHERE user_id = ?
		ORDER BY accessed_at DESC, rowid DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying recent documents: %w", err)
	}
	defer rows.Close()

	var recent []domain.RecentDocument //nolint:prealloc // size unknown from query
	for rows.Next() {
		var entry domain.RecentDocument
		var accessedAt int64
		if err := rows.Scan(&entry.UserID, &entry.DocumentID, &accessedAt); err != nil {
			return nil, fmt.Errorf("scanning recent document: %w", err)
		}
		entry.AccessedAt = time.Unix(0, accessedAt).UTC()
		recent = append(recent, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recent documents: %w", err)
	}

	return recent, nil
}

// scanDocumentColumns scans one document from a row or rows scanner.
func scanDocumentColumns(scan func(dest ...any) error) (*domain.Document, error) {
	var doc domain.Document
	var metadataJSON, tagsJSON, cabinetsJSON string
	var createdAt, updatedAt sql.NullTime

	err := scan(&doc.ID, &doc.SourceID, &doc.DocumentType, &doc.Label,
		&doc.Description, &doc.Language, &metadataJSON, &tagsJSON, &cabinetsJSON,
		&createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &doc.Tags); err != nil {
		return nil, fmt.Errorf("unmarshaling tags: %w", err)
	}
	if err := json.Unmarshal([]byte(cabinetsJSON), &doc.Cabinets); err != nil {
		return nil, fmt.Errorf("unmarshaling cabinets: %w", err)
	}
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}

	return &doc, nil
}
