// Package api exposes sessions over HTTP and pushes snapshots to websocket
// clients.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/tatianab/lesson-game/internal/actions"
	"github.com/tatianab/lesson-game/internal/hub"
	"github.com/tatianab/lesson-game/internal/models"
	"github.com/tatianab/lesson-game/internal/runner"
)

// MaxBodyBytes caps request bodies. Specifications are the largest payload.
const MaxBodyBytes = 1 << 20

// RequestTimeout bounds every non-streaming request.
const RequestTimeout = 30 * time.Second

// EventSource reads a session's durable event log. The sqlite store
// implements it.
type EventSource interface {
	Events(ctx context.Context, id string, from int) ([]models.GameEvent, error)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithEventSource serves event history from a durable log instead of the
// in-memory state.
func WithEventSource(src EventSource) Option {
	return func(s *Server) { s.events = src }
}

// Server handles HTTP requests for a hub.
type Server struct {
	hub      *hub.Hub
	events   EventSource
	log      *log.Logger
	upgrader websocket.Upgrader
}

// NewServer returns a server for h.
func NewServer(h *hub.Hub, opts ...Option) *Server {
	s := &Server{
		hub: h,
		log: log.New(io.Discard, "", 0),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes sets up the HTTP routes.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.log, NoColor: true}))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/sessions", func(r chi.Router) {
		r.With(middleware.Timeout(RequestTimeout)).Post("/", s.handleCreate)
		r.With(middleware.Timeout(RequestTimeout)).Get("/", s.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/stream", s.handleStream)
			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(RequestTimeout))
				r.Get("/", s.handleGet)
				r.Delete("/", s.handleDelete)
				r.Get("/spec", s.handleSpec)
				r.Get("/leaderboard", s.handleLeaderboard)
				r.Get("/events", s.handleEvents)
				r.Post("/players", s.handleAddPlayer)
				r.Delete("/players/{player}", s.handleRemovePlayer)
				r.Post("/actions", s.handleAction)
				r.Post("/question", s.handleQuestion)
				r.Post("/{op}", s.handlePhase)
			})
		})
	})
	return r
}

type sessionResponse struct {
	ID      string                        `json:"id"`
	Title   string                        `json:"title"`
	State   models.GameState              `json:"state"`
	Players map[string]models.PlayerState `json:"players"`
}

func snapshotOf(sess *hub.Session) sessionResponse {
	snap := sess.Runner.Snapshot()
	return sessionResponse{
		ID:      sess.ID,
		Title:   sess.Runner.Spec().Title,
		State:   snap.State,
		Players: snap.Players,
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	spec, err := models.ParseSpecification(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess, err := s.hub.Create(r.Context(), spec)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshotOf(sess))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	sums, err := s.hub.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sums)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*hub.Session, bool) {
	sess, err := s.hub.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		writeJSON(w, http.StatusOK, snapshotOf(sess))
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.hub.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSpec(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		writeJSON(w, http.StatusOK, sess.Runner.Spec())
	}
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		writeJSON(w, http.StatusOK, sess.Runner.StateManager().Rankings())
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	from := 0
	if v := r.URL.Query().Get("from"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("from must be a non-negative integer"))
			return
		}
		from = n
	}
	if s.events != nil {
		events, err := s.events.Events(r.Context(), sess.ID, from)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, events)
		return
	}
	events := sess.Runner.State().Events
	if from > len(events) {
		from = len(events)
	}
	writeJSON(w, http.StatusOK, events[from:])
}

type addPlayerRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleAddPlayer(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req addPlayerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, errors.New("player id is required"))
		return
	}
	if req.Name == "" {
		req.Name = req.ID
	}
	p, err := sess.Runner.AddPlayer(r.Context(), req.ID, req.Name)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleRemovePlayer(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Runner.RemovePlayer(r.Context(), chi.URLParam(r, "player")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var a actions.Action
	if err := decodeJSON(w, r, &a); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Runner.ProcessAction(r.Context(), a))
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var err error
	if v := r.URL.Query().Get("index"); v != "" {
		idx, perr := strconv.Atoi(v)
		if perr != nil || idx < 0 {
			writeError(w, http.StatusBadRequest, errors.New("index must be a non-negative integer"))
			return
		}
		err = sess.Runner.TriggerQuestionAt(r.Context(), idx)
	} else {
		err = sess.Runner.TriggerQuestion(r.Context())
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(sess))
}

func (s *Server) handlePhase(w http.ResponseWriter, r *http.Request) {
	var op func(*runner.Runner, context.Context) error
	switch chi.URLParam(r, "op") {
	case "start":
		op = (*runner.Runner).Start
	case "begin":
		op = (*runner.Runner).BeginActivePlay
	case "results":
		op = (*runner.Runner).ShowResults
	case "next":
		op = (*runner.Runner).Next
	case "pause":
		op = (*runner.Runner).Pause
	case "resume":
		op = (*runner.Runner).Resume
	case "end":
		op = (*runner.Runner).EndGame
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown operation"))
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := op(sess.Runner, r.Context()); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(sess))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(v)
}

// ListenAndServe serves Routes on addr until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	s.log.Printf("listening on %s", addr)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
