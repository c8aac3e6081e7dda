package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ent0n29/tasklist/internal/config"
	"github.com/ent0n29/tasklist/internal/export"
	"github.com/ent0n29/tasklist/internal/observability"
	"github.com/ent0n29/tasklist/internal/policy"
	"github.com/ent0n29/tasklist/internal/session"
	"github.com/ent0n29/tasklist/internal/tasks"
)

// PersistStatus reports the state of the collection's durable copy.
type PersistStatus interface {
	Key() string
	LastWrite() (time.Time, error)
}

type Server struct {
	cfg      config.Config
	store    *tasks.Store
	sessions *session.Manager
	exporter *export.Exporter
	persist  PersistStatus
	metrics  *observability.Metrics
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func New(cfg config.Config, store *tasks.Store, sessions *session.Manager, persist PersistStatus, metrics *observability.Metrics, log logrus.FieldLogger) *Server {
	if log == nil {
		log = observability.DiscardLogger()
	}
	if sessions == nil {
		sessions = session.NewManager(cfg.SessionInactivityTimeout)
	}
	return &Server{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		exporter: export.NewExporter(store),
		persist:  persist,
		metrics:  metrics,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				decision := policy.DecideOrigin(r.Header.Get("Origin"), r.Host, cfg.AllowAnyOrigin)
				if !decision.Allowed {
					log.WithField("origin", r.Header.Get("Origin")).WithField("reason", decision.Reason).Warn("live feed origin rejected")
				}
				return decision.Allowed
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Handler().ServeHTTP(w, r)
	})

	r.Get("/v1/tasks", s.handleListTasks)
	r.Post("/v1/tasks", s.handleAddTask)
	r.Get("/v1/tasks/remaining", s.handleRemaining)
	r.Get("/v1/tasks/export", s.handleExport)
	r.Get("/v1/tasks/ws", s.handleTasksWS)
	r.Post("/v1/tasks/clear-completed", s.handleClearCompleted)
	r.Get("/v1/tasks/{id}", s.handleGetTask)
	r.Patch("/v1/tasks/{id}", s.handleEditTask)
	r.Delete("/v1/tasks/{id}", s.handleDeleteTask)
	r.Post("/v1/tasks/{id}/toggle", s.handleToggleTask)

	r.Get("/v1/sessions", s.handleListSessions)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"status":    "ok",
		"tasks":     s.store.Snapshot().Total,
		"remaining": s.store.RemainingCount(),
		"sessions":  s.sessions.ActiveCount(),
	}
	if s.persist != nil {
		payload["storage_key"] = s.persist.Key()
		at, err := s.persist.LastWrite()
		if !at.IsZero() {
			payload["last_write_at"] = at
		}
		if err != nil {
			payload["last_write_error"] = err.Error()
		}
	}
	respondJSON(w, http.StatusOK, payload)
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": s.sessions.List(),
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
