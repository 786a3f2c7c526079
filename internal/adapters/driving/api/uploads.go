package api

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driving"
)

type wizardStatePayload struct {
	SessionID   string `json:"session_id"`
	CurrentStep string `json:"current_step,omitempty"`
	Done        bool   `json:"done"`
}

func toWizardStatePayload(state *driving.WizardState) wizardStatePayload {
	return wizardStatePayload{
		SessionID:   state.SessionID,
		CurrentStep: state.CurrentStep,
		Done:        state.Done,
	}
}

func (s *Server) handleWizardBegin(w http.ResponseWriter, r *http.Request) {
	state, err := s.ports.Wizard.Begin(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toWizardStatePayload(state))
}

func (s *Server) handleWizardSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, domain.ErrInvalidInput)
		return
	}

	state, err := s.ports.Wizard.Submit(r.Context(), chi.URLParam(r, "sessionID"), r.PostForm)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toWizardStatePayload(state))
}

type uploadResultPayload struct {
	DocumentIDs []string `json:"document_ids"`
}

// handleUpload performs one interactive upload through a source. The
// multipart form carries the file plus document fields; a session_id
// references a completed wizard session whose merged result supplies
// metadata, tags and cabinets.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		respondError(w, domain.ErrInvalidInput)
		return
	}
	if err := r.ParseMultipartForm(s.maxUploadSize); err != nil {
		respondError(w, domain.ErrInvalidInput)
		return
	}

	req := driving.UploadRequest{
		SourceID:     chi.URLParam(r, "sourceID"),
		DocumentType: r.FormValue("document_type"),
		Description:  r.FormValue("description"),
		Language:     r.FormValue("language"),
		UserID:       userID(r),
		Args:         domain.ActionArgs{Values: map[string]string{}},
	}

	for key, values := range r.MultipartForm.Value {
		if len(values) > 0 {
			req.Args.Values[key] = values[0]
		}
	}

	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close() //nolint:errcheck
		content, readErr := io.ReadAll(file)
		if readErr != nil {
			respondError(w, domain.ErrInvalidInput)
			return
		}
		req.Args.File = &domain.UploadedFile{
			Filename: header.Filename,
			Content:  content,
		}
	}

	if sessionID := r.FormValue("session_id"); sessionID != "" {
		query, err := s.ports.Wizard.Result(r.Context(), sessionID)
		if err != nil {
			respondError(w, err)
			return
		}
		req.Query = query
	} else {
		req.Query = url.Values{}
	}

	ids, err := s.ports.Uploads.Upload(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, uploadResultPayload{DocumentIDs: ids})
}
