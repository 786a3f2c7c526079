// Package api exposes the ingestion pipeline as a REST surface: source
// management, backend action dispatch, the upload wizard, and document
// reads. Handlers translate HTTP to the driving ports and map domain
// errors to status codes.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driving"
)

// defaultMaxUploadSize bounds multipart parsing for upload requests.
const defaultMaxUploadSize = 64 << 20

// Ports bundles the driving services the REST surface dispatches to.
type Ports struct {
	Sources   driving.SourceService
	Backends  driving.BackendRegistry
	Uploads   driving.UploadService
	Wizard    driving.WizardService
	Scheduler driving.SourceScheduler
	Documents driven.DocumentStore
}

// Server exposes the ingestion pipeline over HTTP.
type Server struct {
	ports         *Ports
	router        chi.Router
	maxUploadSize int64
}

// NewServer creates a REST server over the given ports.
func NewServer(ports *Ports) *Server {
	s := &Server{
		ports:         ports,
		maxUploadSize: defaultMaxUploadSize,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/backends", s.handleListBackends)

		r.Route("/sources", func(r chi.Router) {
			r.Get("/", s.handleListSources)
			r.Post("/", s.handleCreateSource)
			r.Route("/{sourceID}", func(r chi.Router) {
				r.Get("/", s.handleGetSource)
				r.Put("/", s.handleUpdateSource)
				r.Delete("/", s.handleDeleteSource)
				r.Get("/logs", s.handleSourceLog)
				r.Post("/check", s.handleSourceCheck)
				r.Post("/actions/{action}", s.handleSourceAction)
			})
		})

		r.Route("/uploads", func(r chi.Router) {
			r.Post("/wizard", s.handleWizardBegin)
			r.Post("/wizard/{sessionID}", s.handleWizardSubmit)
			r.Post("/{sourceID}", s.handleUpload)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.handleListDocuments)
			r.Get("/recent", s.handleRecentDocuments)
			r.Route("/{documentID}", func(r chi.Router) {
				r.Get("/", s.handleGetDocument)
				r.Get("/files", s.handleDocumentFiles)
				r.Get("/events", s.handleDocumentEvents)
			})
		})
	})

	return r
}

// userID resolves the acting user for a request. Uploads from
// unauthenticated deployments run as the anonymous user.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}
