package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
)

type documentPayload struct {
	ID           string            `json:"id"`
	SourceID     string            `json:"source_id,omitempty"`
	DocumentType string            `json:"document_type,omitempty"`
	Label        string            `json:"label"`
	Description  string            `json:"description,omitempty"`
	Language     string            `json:"language,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Cabinets     []string          `json:"cabinets,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func toDocumentPayload(doc *domain.Document) documentPayload {
	return documentPayload{
		ID:           doc.ID,
		SourceID:     doc.SourceID,
		DocumentType: doc.DocumentType,
		Label:        doc.Label,
		Description:  doc.Description,
		Language:     doc.Language,
		Metadata:     doc.Metadata,
		Tags:         doc.Tags,
		Cabinets:     doc.Cabinets,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	sourceID := r.URL.Query().Get("source_id")
	if sourceID == "" {
		respondError(w, domain.ErrInvalidInput)
		return
	}

	docs, err := s.ports.Documents.ListDocuments(r.Context(), sourceID)
	if err != nil {
		respondError(w, err)
		return
	}

	payload := make([]documentPayload, 0, len(docs))
	for i := range docs {
		payload = append(payload, toDocumentPayload(&docs[i]))
	}
	respondJSON(w, http.StatusOK, payload)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ports.Documents.GetDocument(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toDocumentPayload(doc))
}

type filePayload struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	MIMEType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleDocumentFiles(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")
	if _, err := s.ports.Documents.GetDocument(r.Context(), documentID); err != nil {
		respondError(w, err)
		return
	}

	files, err := s.ports.Documents.ListFiles(r.Context(), documentID)
	if err != nil {
		respondError(w, err)
		return
	}

	payload := make([]filePayload, 0, len(files))
	for _, file := range files {
		payload = append(payload, filePayload{
			ID:        file.ID,
			Filename:  file.Filename,
			MIMEType:  file.MIMEType,
			Size:      file.Size,
			Checksum:  file.Checksum,
			CreatedAt: file.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, payload)
}

type eventPayload struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	TargetID  string    `json:"target_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleDocumentEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.ports.Documents.ListEvents(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		respondError(w, err)
		return
	}

	payload := make([]eventPayload, 0, len(events))
	for _, event := range events {
		payload = append(payload, eventPayload{
			ID:        event.ID,
			Name:      event.Name,
			TargetID:  event.TargetID,
			UserID:    event.UserID,
			CreatedAt: event.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, payload)
}

type recentPayload struct {
	DocumentID string    `json:"document_id"`
	AccessedAt time.Time `json:"accessed_at"`
}

func (s *Server) handleRecentDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, domain.ErrInvalidInput)
			return
		}
		limit = parsed
	}

	recent, err := s.ports.Documents.ListRecent(r.Context(), userID(r), limit)
	if err != nil {
		respondError(w, err)
		return
	}

	payload := make([]recentPayload, 0, len(recent))
	for _, entry := range recent {
		payload = append(payload, recentPayload{
			DocumentID: entry.DocumentID,
			AccessedAt: entry.AccessedAt,
		})
	}
	respondJSON(w, http.StatusOK, payload)
}
