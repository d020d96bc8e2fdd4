// Package server exposes session controllers over HTTP. The upstream auth
// layer identifies the user with the X-User-ID header.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/vigyl/internal/cache"
	"github.com/sells-group/vigyl/internal/crm"
	"github.com/sells-group/vigyl/internal/export"
	"github.com/sells-group/vigyl/internal/generate"
	"github.com/sells-group/vigyl/internal/model"
	"github.com/sells-group/vigyl/internal/session"
)

// UserHeader carries the authenticated user id.
const UserHeader = "X-User-ID"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Server routes API requests to the caller's session controller.
type Server struct {
	registry *session.Registry
	syncer   *crm.Syncer
	origins  []string
}

// Option configures a Server.
type Option func(*Server)

// WithCRM enables POST /v1/crm/sync.
func WithCRM(s *crm.Syncer) Option {
	return func(srv *Server) { srv.syncer = s }
}

// WithAllowedOrigins sets the CORS allow list.
func WithAllowedOrigins(origins []string) Option {
	return func(srv *Server) { srv.origins = origins }
}

// New creates a Server.
func New(registry *session.Registry, opts ...Option) *Server {
	s := &Server{registry: registry, origins: []string{"*"}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", UserHeader},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.registry.Len()})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(requireUser)
		r.Post("/session", s.openSession)
		r.Delete("/session", s.closeSession)

		r.Group(func(r chi.Router) {
			r.Use(s.withController)
			r.Get("/intelligence", s.getIntelligence)
			r.Post("/intelligence/refresh", s.refresh)
			r.Post("/ai-impact", s.aiImpact)
			r.Post("/industries/{id}/expand", s.expand)
			r.Patch("/prospects/{id}/pipeline", s.updatePipeline)
			r.Post("/notice/dismiss", s.dismissNotice)
			r.Get("/prospects/export.xlsx", s.exportProspects)
			r.Post("/crm/sync", s.crmSync)
		})
	})
	return r
}

type ctxKey struct{}

func controllerFrom(ctx context.Context) *session.Controller {
	c, _ := ctx.Value(ctxKey{}).(*session.Controller)
	return c
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(UserHeader) == "" {
			writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withController(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := s.registry.Get(r.Header.Get(UserHeader))
		if !ok {
			writeError(w, http.StatusNotFound, "no open session; POST /v1/session first")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, c)))
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	var profile model.Profile
	if !decode(w, r, &profile) {
		return
	}
	profile.UserID = r.Header.Get(UserHeader)

	c, err := s.registry.Open(r.Context(), profile)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c.View())
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	if !s.registry.Close(r.Header.Get(UserHeader)) {
		writeError(w, http.StatusNotFound, "no open session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getIntelligence(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, controllerFrom(r.Context()).View())
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	task, err := controllerFrom(r.Context()).Refresh()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"task": task.Info()})
}

func (s *Server) aiImpact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Industries []string `json:"industries"`
	}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	c := controllerFrom(r.Context())
	if !c.Session().CanWrite() {
		writeErr(w, cache.ErrReadOnly)
		return
	}
	task, started := c.GenerateAIImpact(req.Industries)
	switch {
	case started:
		writeJSON(w, http.StatusAccepted, map[string]any{"task": task.Info()})
	case task != nil:
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "an AI impact run is already in progress",
			"task":  task.Info(),
		})
	default:
		writeErr(w, session.ErrClosed)
	}
}

func (s *Server) expand(w http.ResponseWriter, r *http.Request) {
	added, err := controllerFrom(r.Context()).ExpandProspects(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

func (s *Server) updatePipeline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stage model.PipelineStage `json:"stage"`
		Notes *string             `json:"notes"`
	}
	if !decode(w, r, &req) {
		return
	}
	if !req.Stage.Valid() {
		writeError(w, http.StatusBadRequest, "unknown pipeline stage "+string(req.Stage))
		return
	}

	c := controllerFrom(r.Context())
	id := chi.URLParam(r, "id")
	edit := model.PipelineEdit{ProspectID: id, Stage: req.Stage}
	if req.Notes != nil {
		edit.Notes = *req.Notes
	} else if p, ok := c.Prospect(id); ok {
		// Omitted notes keep what the user wrote before.
		edit.Notes = p.Notes
	}

	saved, err := c.UpdatePipeline(r.Context(), edit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) dismissNotice(w http.ResponseWriter, r *http.Request) {
	controllerFrom(r.Context()).DismissNotice()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) exportProspects(w http.ResponseWriter, r *http.Request) {
	v := controllerFrom(r.Context()).View()
	if !v.HasData {
		writeError(w, http.StatusNotFound, "no intelligence to export yet")
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="prospects.xlsx"`)
	if err := export.Write(w, v.Data, v.Labels); err != nil {
		zap.L().Error("export failed", zap.Error(err))
	}
}

func (s *Server) crmSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		writeError(w, http.StatusNotImplemented, "CRM sync is not configured")
		return
	}
	var req struct {
		Stages []model.PipelineStage `json:"stages"`
	}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	c := controllerFrom(r.Context())
	if !c.Session().CanWrite() {
		writeErr(w, cache.ErrReadOnly)
		return
	}
	v := c.View()
	report, err := s.syncer.Sync(r.Context(), v.Data, req.Stages)
	if err != nil {
		writeErr(w, err)
		return
	}
	for _, edit := range crm.Edits(v.Data, report) {
		if _, err := c.UpdatePipeline(r.Context(), edit); err != nil {
			zap.L().Warn("failed to record CRM id",
				zap.String("prospect_id", edit.ProspectID),
				zap.Error(err),
			)
		}
	}
	writeJSON(w, http.StatusOK, report)
}

// decode reads a JSON body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeErr maps domain errors to status codes.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cache.ErrReadOnly):
		writeError(w, http.StatusForbidden, "team members have read-only access")
	case errors.Is(err, model.ErrInvalidProfile):
		writeError(w, http.StatusUnprocessableEntity, generate.UserMessage(err))
	case errors.Is(err, session.ErrUnknownIndustry), errors.Is(err, session.ErrUnknownProspect):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrClosed):
		writeError(w, http.StatusGone, "session closed")
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, generate.UserMessage(err))
	}
}
