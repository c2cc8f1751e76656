// Package hub keeps the live sessions of a host process and writes every
// change of a session through to storage.
package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tatianab/lesson-game/internal/models"
	"github.com/tatianab/lesson-game/internal/runner"
	"github.com/tatianab/lesson-game/internal/state"
	"github.com/tatianab/lesson-game/internal/storage"
)

// SaveTimeout bounds a single write-through save.
const SaveTimeout = 5 * time.Second

// Session is one live game.
type Session struct {
	ID      string
	Runner  *runner.Runner
	Created time.Time

	saveMu      sync.Mutex
	unsubscribe func()
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub's logger.
func WithLogger(l *log.Logger) Option {
	return func(h *Hub) { h.log = l }
}

// WithRunnerOptions passes options to every runner the hub creates.
func WithRunnerOptions(opts ...runner.Option) Option {
	return func(h *Hub) { h.runnerOpts = append(h.runnerOpts, opts...) }
}

// WithIDGenerator replaces uuid.NewString for session ids.
func WithIDGenerator(fn func() string) Option {
	return func(h *Hub) { h.newID = fn }
}

// Hub is a registry of live sessions backed by a store. A nil store keeps
// sessions in memory only.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store      storage.Store
	runnerOpts []runner.Option
	log        *log.Logger
	newID      func() string
}

// New returns an empty hub.
func New(store storage.Store, opts ...Option) *Hub {
	h := &Hub{
		sessions: make(map[string]*Session),
		store:    store,
		log:      log.New(io.Discard, "", 0),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Create starts a new session in the lobby.
func (h *Hub) Create(ctx context.Context, spec *models.GameSpecification) (*Session, error) {
	if spec == nil {
		return nil, runner.ErrNotInitialized
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid specification: %w", err)
	}
	s := &Session{
		ID:      h.newID(),
		Runner:  runner.New(spec, h.runnerOpts...),
		Created: time.Now(),
	}
	h.attach(s)
	if err := h.save(ctx, s, s.Runner.Snapshot()); err != nil {
		s.close()
		return nil, err
	}
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
	h.log.Printf("session %s created: %s", s.ID, spec.Title)
	return s, nil
}

// Get returns a live session, loading it from the store if needed.
func (h *Hub) Get(ctx context.Context, id string) (*Session, error) {
	h.mu.RLock()
	s, ok := h.sessions[id]
	h.mu.RUnlock()
	if ok {
		return s, nil
	}
	if h.store == nil {
		return nil, storage.ErrNotFound
	}

	rec, err := h.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	r := runner.New(rec.Spec, h.runnerOpts...)
	if err := r.Restore(rec.State, rec.Players); err != nil {
		r.Close()
		return nil, fmt.Errorf("restore session %s: %w", id, err)
	}
	loaded := &Session{ID: id, Runner: r, Created: rec.UpdatedAt}

	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[id]; ok {
		r.Close()
		return s, nil
	}
	h.attach(loaded)
	h.sessions[id] = loaded
	h.log.Printf("session %s restored in phase %s", id, rec.State.Phase)
	return loaded, nil
}

// List returns stored sessions, or live ones when the hub has no store.
func (h *Hub) List(ctx context.Context) ([]storage.Summary, error) {
	if h.store != nil {
		return h.store.List(ctx)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]storage.Summary, 0, len(h.sessions))
	for _, s := range h.sessions {
		st := s.Runner.State()
		out = append(out, storage.Summary{ID: s.ID, Title: s.Runner.Spec().Title, Phase: st.Phase, UpdatedAt: s.Created})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Remove stops a session and deletes it from the store.
func (h *Hub) Remove(ctx context.Context, id string) error {
	h.mu.Lock()
	s, live := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if live {
		s.close()
	}
	if h.store == nil {
		if !live {
			return storage.ErrNotFound
		}
		return nil
	}
	err := h.store.Delete(ctx, id)
	if live && errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// Close stops every live session.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.sessions {
		s.close()
		delete(h.sessions, id)
	}
}

// attach writes every change of the session through to the store.
func (h *Hub) attach(s *Session) {
	if h.store == nil {
		return
	}
	s.unsubscribe = s.Runner.StateManager().Subscribe(func(state.Snapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), SaveTimeout)
		defer cancel()
		if err := h.save(ctx, s, s.Runner.Snapshot()); err != nil {
			h.log.Printf("session %s: persist: %v", s.ID, err)
		}
	})
}

func (h *Hub) save(ctx context.Context, s *Session, snap state.Snapshot) error {
	if h.store == nil {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return h.store.Save(ctx, storage.Record{
		ID:        s.ID,
		Spec:      s.Runner.Spec(),
		State:     snap.State,
		Players:   snap.Players,
		UpdatedAt: time.Now(),
	})
}

func (s *Session) close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.Runner.Close()
}
