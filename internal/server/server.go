// Package server exposes list sessions over HTTP.
//
// Clients create a session, PUT snapshots of their list and follow the
// resulting frames as a Server-Sent Events stream. Item values are strings.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/animlist/internal/ir"
	"github.com/roach88/animlist/internal/listdiff"
	"github.com/roach88/animlist/internal/session"
)

// maxBodyBytes bounds a snapshot request body.
const maxBodyBytes = 4 << 20

// Server routes HTTP requests to sessions held by a Manager.
type Server struct {
	sessions *session.Manager[string]
	gatherer prometheus.Gatherer
	logger   *slog.Logger

	// Heartbeat is the interval of SSE keep-alive comments. Zero disables them.
	Heartbeat time.Duration
}

// New creates a server. A nil gatherer serves the default registry.
func New(sessions *session.Manager[string], gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		sessions:  sessions,
		gatherer:  gatherer,
		logger:    logger,
		Heartbeat: 15 * time.Second,
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Get("/", s.listSessions)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Put("/items", s.putItems)
			r.Get("/frames", s.streamFrames)
		})
	})
	return r
}

// ListenAndServe serves the handler on addr until ctx is done, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readHeaderTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "SESSION_CLOSED", err)
		return
	}
	w.Header().Set("Location", "/sessions/"+sess.ID())
	s.writeJSON(w, http.StatusCreated, sessionView(sess))
}

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": s.sessions.IDs()})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, sessionView(sess))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Destroy(id); err != nil {
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// putItems submits a snapshot and answers once the session handled it, with
// the frame it produced, if any.
func (s *Server) putItems(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var body itemsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", fmt.Errorf("invalid request body: %w", err))
		return
	}

	before, _ := sess.Current()
	if err := sess.Submit(body.keyedItems()); err != nil {
		switch {
		case listdiff.IsInvalidList(err):
			s.writeInvalidList(w, err)
		case errors.Is(err, session.ErrSessionClosed):
			s.writeError(w, http.StatusGone, "SESSION_CLOSED", err)
		default:
			s.writeError(w, http.StatusInternalServerError, "INTERNAL", err)
		}
		return
	}
	if err := sess.Sync(r.Context()); err != nil {
		s.syncFailed(w, sess.ID(), err)
		return
	}

	resp := updateResponse{Session: sess.ID()}
	if after, ok := sess.Current(); ok && after.Seq != before.Seq {
		fv := frameView(after)
		resp.Frame = &fv
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// syncFailed answers a PUT whose Sync did not complete. A cancelled request
// gets no body; the snapshot stays queued either way.
func (s *Server) syncFailed(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, session.ErrSessionClosed) {
		s.writeError(w, http.StatusGone, "SESSION_CLOSED", err)
		return
	}
	s.logger.Debug("sync abandoned", "session", id, "err", err)
}

// streamFrames writes the session's frames as Server-Sent Events until the
// client goes away or the session ends.
func (s *Server) streamFrames(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "INTERNAL", errors.New("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	sub := sess.Subscribe(r.Context())
	defer sub.Close()

	var heartbeat <-chan time.Time
	if s.Heartbeat > 0 {
		t := time.NewTicker(s.Heartbeat)
		defer t.Stop()
		heartbeat = t.C
	}

	s.logger.Debug("sse client connected", "session", sess.ID())
	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("sse client disconnected", "session", sess.ID())
			return
		case <-heartbeat:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case f, ok := <-sub.Frames():
			if !ok {
				fmt.Fprint(w, "event: end\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			if err := writeEvent(w, f); err != nil {
				s.logger.Warn("sse write failed", "session", sess.ID(), "err", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, f ir.Frame[string]) error {
	data, err := json.Marshal(frameView(f))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: frame\ndata: %s\n\n", f.Seq, data)
	return err
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session[string], bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", err)
		return nil, false
	}
	return sess, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code string, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "code", code, "err", err)
	}
	s.writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

func (s *Server) writeInvalidList(w http.ResponseWriter, err error) {
	resp := errorResponse{Code: "INVALID_LIST", Message: err.Error()}
	var ie *listdiff.InvalidListError
	if errors.As(err, &ie) {
		resp.Key = ie.Key
	}
	s.writeJSON(w, http.StatusUnprocessableEntity, resp)
}
