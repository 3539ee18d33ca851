// Package httpapi serves the read-only admin surface: door snapshots,
// registry skip reasons, a live SSE event stream, and Prometheus
// metrics. Mutations happen on the bus, never here.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/doorman-io/doorman/internal/bus"
	"github.com/doorman-io/doorman/internal/model"
	"github.com/doorman-io/doorman/internal/registry"
)

// SnapshotSource is the tracker-side read model.
type SnapshotSource interface {
	Snapshots() []model.DoorSnapshot
	Snapshot(doorID string) (model.DoorSnapshot, bool)
}

// Server holds the admin API's dependencies.
type Server struct {
	snaps  SnapshotSource
	reg    *registry.Registry
	hub    *eventHub
	logger *slog.Logger
}

// New returns a server reading door state from snaps and skip reasons
// from the registry.
func New(snaps SnapshotSource, reg *registry.Registry, logger *slog.Logger) *Server {
	return &Server{
		snaps:  snaps,
		reg:    reg,
		hub:    newEventHub(),
		logger: logger,
	}
}

// NewHandler returns an http.Handler with all routes registered. When
// authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/doors", s.handleListDoors)
	mux.HandleFunc("GET /v1/doors/{id}", s.handleGetDoor)
	mux.HandleFunc("GET /v1/skipped", s.handleListSkipped)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.Handle("GET /metrics", promhttp.Handler())
	return AuthMiddleware(authToken, mux)
}

// Pump feeds the SSE hub from the bus until ctx is cancelled. Topics
// are subjects relative to the prefix, e.g. "status.garage", "alert".
func (s *Server) Pump(ctx context.Context, sub bus.Subscriber, subj bus.Subjects) error {
	var chans []<-chan bus.Msg
	for _, subject := range []string{subj.Statuses(), subj.Replies(), subj.Alert()} {
		ch, cancel, err := sub.Subscribe(subject)
		if err != nil {
			return fmt.Errorf("httpapi: subscribe %s: %w", subject, err)
		}
		defer cancel()
		chans = append(chans, ch)
	}

	s.logger.Info("httpapi: event pump started")
	strip := subj.Prefix() + "."
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("httpapi: event pump stopping")
			return nil
		case m, ok := <-chans[0]:
			if !ok {
				return nil
			}
			s.hub.broadcast(strings.TrimPrefix(m.Subject, strip), m.Data)
		case m, ok := <-chans[1]:
			if !ok {
				return nil
			}
			s.hub.broadcast(strings.TrimPrefix(m.Subject, strip), m.Data)
		case m, ok := <-chans[2]:
			if !ok {
				return nil
			}
			s.hub.broadcast(strings.TrimPrefix(m.Subject, strip), m.Data)
		}
	}
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"doors":   s.reg.Len(),
		"skipped": len(s.reg.Skipped()),
	})
}

// handleListDoors handles GET /v1/doors.
func (s *Server) handleListDoors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"doors": s.snaps.Snapshots()})
}

// handleGetDoor handles GET /v1/doors/{id}.
func (s *Server) handleGetDoor(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, ok := s.snaps.Snapshot(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no such door")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleListSkipped handles GET /v1/skipped: registry entries that
// failed validation, with their reasons.
func (s *Server) handleListSkipped(w http.ResponseWriter, _ *http.Request) {
	type skipped struct {
		ID     string `json:"id"`
		Reason string `json:"reason"`
	}
	out := make([]skipped, 0, len(s.reg.Skipped()))
	for _, sk := range s.reg.Skipped() {
		out = append(out, skipped{ID: sk.ID, Reason: sk.Reason.Error()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"skipped": out})
}

// AuthMiddleware enforces bearer-token auth when token is non-empty.
// GET /v1/health stays open for probes.
func AuthMiddleware(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/v1/health" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		if !strings.HasPrefix(auth, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "invalid authorization scheme")
			return
		}
		provided := strings.TrimPrefix(auth, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
