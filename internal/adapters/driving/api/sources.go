package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
)

// sourcePayload is the wire form of a source configuration.
type sourcePayload struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Label     string            `json:"label"`
	Enabled   bool              `json:"enabled"`
	Config    map[string]string `json:"config"`
	CreatedAt time.Time         `json:"created_at,omitempty"`
	UpdatedAt time.Time         `json:"updated_at,omitempty"`
}

func toSourcePayload(source domain.Source) sourcePayload {
	return sourcePayload{
		ID:        source.ID,
		Type:      source.Type,
		Label:     source.Label,
		Enabled:   source.Enabled,
		Config:    source.Config,
		CreatedAt: source.CreatedAt,
		UpdatedAt: source.UpdatedAt,
	}
}

func (p sourcePayload) toDomain() domain.Source {
	config := p.Config
	if config == nil {
		config = map[string]string{}
	}
	return domain.Source{
		ID:      p.ID,
		Type:    p.Type,
		Label:   p.Label,
		Enabled: p.Enabled,
		Config:  config,
	}
}

type backendTypePayload struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Interactive bool               `json:"interactive"`
	ConfigKeys  []configKeyPayload `json:"config_keys"`
}

type configKeyPayload struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Default     string `json:"default,omitempty"`
	Required    bool   `json:"required"`
	Secret      bool   `json:"secret"`
}

func (s *Server) handleListBackends(w http.ResponseWriter, _ *http.Request) {
	types := s.ports.Backends.List()
	payload := make([]backendTypePayload, 0, len(types))
	for _, t := range types {
		keys := make([]configKeyPayload, 0, len(t.ConfigKeys))
		for _, k := range t.ConfigKeys {
			keys = append(keys, configKeyPayload{
				Key:         k.Key,
				Label:       k.Label,
				Description: k.Description,
				Default:     k.Default,
				Required:    k.Required,
				Secret:      k.Secret,
			})
		}
		payload = append(payload, backendTypePayload{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			Interactive: t.Interactive,
			ConfigKeys:  keys,
		})
	}
	respondJSON(w, http.StatusOK, payload)
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.ports.Sources.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	payload := make([]sourcePayload, 0, len(sources))
	for _, source := range sources {
		payload = append(payload, toSourcePayload(source))
	}
	respondJSON(w, http.StatusOK, payload)
}

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var payload sourcePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, domain.ErrInvalidInput)
		return
	}

	created, err := s.ports.Sources.Add(r.Context(), payload.toDomain())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toSourcePayload(*created))
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	source, err := s.ports.Sources.Get(r.Context(), chi.URLParam(r, "sourceID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSourcePayload(*source))
}

func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	var payload sourcePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, domain.ErrInvalidInput)
		return
	}

	source := payload.toDomain()
	source.ID = chi.URLParam(r, "sourceID")
	if err := s.ports.Sources.Update(r.Context(), source); err != nil {
		respondError(w, err)
		return
	}

	updated, err := s.ports.Sources.Get(r.Context(), source.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSourcePayload(*updated))
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	if err := s.ports.Sources.Remove(r.Context(), chi.URLParam(r, "sourceID")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

type logEntryPayload struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleSourceLog(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, domain.ErrInvalidInput)
			return
		}
		limit = parsed
	}

	entries, err := s.ports.Sources.Log(r.Context(), chi.URLParam(r, "sourceID"), limit)
	if err != nil {
		respondError(w, err)
		return
	}

	payload := make([]logEntryPayload, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, logEntryPayload{
			ID:        entry.ID,
			Message:   entry.Message,
			CreatedAt: entry.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, payload)
}

type checkResultPayload struct {
	SourceID      string    `json:"source_id"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at"`
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty"`
	DryRun        bool      `json:"dry_run"`
	FilesIngested int       `json:"files_ingested"`
}

func (s *Server) handleSourceCheck(w http.ResponseWriter, r *http.Request) {
	dryRun := r.URL.Query().Get("dry_run") == "true"

	result, err := s.ports.Scheduler.RunCheck(r.Context(), chi.URLParam(r, "sourceID"), dryRun)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, checkResultPayload{
		SourceID:      result.SourceID,
		StartedAt:     result.StartedAt,
		EndedAt:       result.EndedAt,
		Success:       result.Success,
		Error:         result.Error,
		DryRun:        result.DryRun,
		FilesIngested: result.FilesIngested,
	})
}

func (s *Server) handleSourceAction(w http.ResponseWriter, r *http.Request) {
	args, err := s.decodeActionArgs(r)
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := s.ports.Sources.ExecuteAction(
		r.Context(), chi.URLParam(r, "sourceID"), chi.URLParam(r, "action"), args)
	if err != nil {
		respondError(w, err)
		return
	}

	// Actions like preview-image return raw bytes.
	if raw, ok := result.([]byte); ok {
		w.Header().Set("Content-Type", http.DetectContentType(raw))
		w.WriteHeader(http.StatusOK)
		w.Write(raw) //nolint:errcheck
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"result": result})
}

// decodeActionArgs builds backend action arguments from the request:
// multipart forms may carry a file payload; plain forms and query
// parameters supply primitive values.
func (s *Server) decodeActionArgs(r *http.Request) (domain.ActionArgs, error) {
	args := domain.ActionArgs{Values: map[string]string{}}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(s.maxUploadSize); err != nil {
			return args, domain.ErrInvalidInput
		}
		if file, header, err := r.FormFile("file"); err == nil {
			defer file.Close() //nolint:errcheck
			content, readErr := io.ReadAll(file)
			if readErr != nil {
				return args, domain.ErrInvalidInput
			}
			args.File = &domain.UploadedFile{
				Filename: header.Filename,
				Content:  content,
			}
		}
	} else if err := r.ParseForm(); err != nil {
		return args, domain.ErrInvalidInput
	}

	for key, values := range r.Form {
		if len(values) > 0 {
			args.Values[key] = values[0]
		}
	}
	return args, nil
}
