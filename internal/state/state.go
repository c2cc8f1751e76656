// Package state owns the in-memory mirror of one session: the confirmed
// snapshot, a short list of optimistic patches on top of it, and the
// subscribers that render it.
package state

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/tatianab/lesson-game/internal/models"
	"github.com/tatianab/lesson-game/internal/systems"
)

// StaleAfter is how long an optimistic patch survives authoritative syncs.
const StaleAfter = 2 * time.Second

// MaxPending bounds the optimistic patch list. The oldest patch is dropped
// first.
const MaxPending = 64

// Snapshot is a read-only copy of a session.
type Snapshot struct {
	State   models.GameState
	Players map[string]models.PlayerState
}

// Pending is one optimistic patch awaiting confirmation.
type Pending struct {
	Kind    string
	At      time.Time
	Updates models.StateUpdates
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager holds the confirmed state, pending optimistic patches and
// subscribers of one session. It is safe for concurrent readers; writers are
// expected to be serialized by the session owner.
type Manager struct {
	mu        sync.RWMutex
	spec      *models.GameSpecification
	confirmed models.GameState
	players   map[string]models.PlayerState
	pending   []Pending
	loaded    bool

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int

	now func() time.Time
}

// NewManager returns an empty, unloaded manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		players: make(map[string]models.PlayerState),
		subs:    make(map[int]func(Snapshot)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load installs the specification, state and players of a session and
// clears any pending patches.
func (m *Manager) Load(spec *models.GameSpecification, st models.GameState, players map[string]models.PlayerState) {
	m.mu.Lock()
	m.spec = spec
	m.confirmed = st.Clone()
	m.players = models.ClonePlayers(players)
	m.pending = nil
	m.loaded = spec != nil
	m.mu.Unlock()
	m.notify()
}

// Loaded reports whether a specification and state are present.
func (m *Manager) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// Spec returns the session specification.
func (m *Manager) Spec() *models.GameSpecification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.spec
}

// Now returns the manager clock's current time.
func (m *Manager) Now() time.Time {
	return m.now()
}

// Apply commits a patch to the confirmed state, appends events to the log
// and notifies subscribers once. Player replacements are clamped to their
// invariants.
func (m *Manager) Apply(u models.StateUpdates, events ...models.GameEvent) {
	if u.Empty() && len(events) == 0 {
		return
	}
	m.mu.Lock()
	fold(&m.confirmed, m.players, u)
	m.confirmed.Events = append(m.confirmed.Events, events...)
	m.mu.Unlock()
	m.notify()
}

// Update mutates the confirmed game state in place, appends events and
// notifies subscribers once. The event log only grows through the events
// argument; changes fn makes to it are discarded.
func (m *Manager) Update(fn func(*models.GameState), events ...models.GameEvent) {
	m.mu.Lock()
	prev := m.confirmed.Events
	fn(&m.confirmed)
	m.confirmed.Events = append(prev, events...)
	m.mu.Unlock()
	m.notify()
}

// AppendEvents adds events to the end of the log.
func (m *Manager) AppendEvents(events ...models.GameEvent) {
	if len(events) == 0 {
		return
	}
	m.mu.Lock()
	m.confirmed.Events = append(m.confirmed.Events, events...)
	m.mu.Unlock()
	m.notify()
}

// PutPlayer adds or replaces a confirmed player.
func (m *Manager) PutPlayer(p models.PlayerState) {
	m.Apply(models.StateUpdates{Players: map[string]models.PlayerState{p.ID: p}})
}

// RemovePlayer deletes a confirmed player.
func (m *Manager) RemovePlayer(id string, events ...models.GameEvent) {
	m.mu.Lock()
	delete(m.players, id)
	m.confirmed.WorldState = systems.PlaceOccupant(m.confirmed.WorldState, id, "")
	m.confirmed.Events = append(m.confirmed.Events, events...)
	m.mu.Unlock()
	m.notify()
}

// ApplyOptimistic shows a patch immediately and keeps it pending until it
// ages out on a later authoritative sync.
func (m *Manager) ApplyOptimistic(kind string, u models.StateUpdates) {
	m.mu.Lock()
	m.pending = append(m.pending, Pending{Kind: kind, At: m.now(), Updates: u})
	if over := len(m.pending) - MaxPending; over > 0 {
		m.pending = slices.Delete(m.pending, 0, over)
	}
	m.mu.Unlock()
	m.notify()
}

// SyncFromAuthority replaces the confirmed mirror wholesale and drops pending
// patches older than StaleAfter. The last sync wins: younger patches keep
// folding on top until they age out.
func (m *Manager) SyncFromAuthority(st models.GameState, players map[string]models.PlayerState) {
	m.mu.Lock()
	m.confirmed = st.Clone()
	m.players = models.ClonePlayers(players)
	cutoff := m.now().Add(-StaleAfter)
	m.pending = slices.DeleteFunc(m.pending, func(p Pending) bool {
		return p.At.Before(cutoff)
	})
	m.mu.Unlock()
	m.notify()
}

// PendingCount returns the number of optimistic patches not yet discarded.
func (m *Manager) PendingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pending)
}

// Confirmed returns a copy of the confirmed snapshot without pending patches.
func (m *Manager) Confirmed() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{State: m.confirmed.Clone(), Players: models.ClonePlayers(m.players)}
}

// Effective returns the confirmed snapshot with every pending patch folded on
// in order.
func (m *Manager) Effective() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.effectiveLocked()
}

func (m *Manager) effectiveLocked() Snapshot {
	snap := Snapshot{State: m.confirmed.Clone(), Players: models.ClonePlayers(m.players)}
	for _, p := range m.pending {
		fold(&snap.State, snap.Players, p.Updates)
	}
	return snap
}

// State returns the effective game state.
func (m *Manager) State() models.GameState {
	return m.Effective().State
}

// Player returns the effective state of one player.
func (m *Manager) Player(id string) (models.PlayerState, bool) {
	p, ok := m.Effective().Players[id]
	return p, ok
}

// Players returns the effective player map.
func (m *Manager) Players() map[string]models.PlayerState {
	return m.Effective().Players
}

// PlayerAt returns the player standing on pos.
func (m *Manager) PlayerAt(pos models.Position) (models.PlayerState, bool) {
	for _, p := range sortedPlayers(m.Players()) {
		if p.Position != nil && *p.Position == pos {
			return p, true
		}
	}
	return models.PlayerState{}, false
}

// PlayersInZone returns the occupants of a zone in occupancy order.
func (m *Manager) PlayersInZone(zoneID string) []models.PlayerState {
	snap := m.Effective()
	zone, ok := snap.State.WorldState.Zones[zoneID]
	if !ok {
		return nil
	}
	var out []models.PlayerState
	for _, id := range zone.Occupants {
		if p, ok := snap.Players[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Leaderboard returns players sorted by score descending, then id.
func (m *Manager) Leaderboard() []models.PlayerState {
	out := sortedPlayers(m.Players())
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// Rankings returns the competition-ranked standings.
func (m *Manager) Rankings() []systems.Ranking {
	return systems.CalculateRankings(m.Players())
}

// ActivePlayers returns players that are active or shielded, sorted by id.
func (m *Manager) ActivePlayers() []models.PlayerState {
	var out []models.PlayerState
	for _, p := range sortedPlayers(m.Players()) {
		if p.Status == models.StatusActive || p.Status == models.StatusShielded {
			out = append(out, p)
		}
	}
	return out
}

// Subscribe registers fn to receive the effective snapshot after every
// change. The returned function unsubscribes.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()
	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) notify() {
	m.subMu.Lock()
	if len(m.subs) == 0 {
		m.subMu.Unlock()
		return
	}
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.subs[id])
	}
	m.subMu.Unlock()

	snap := m.Effective()
	for _, fn := range fns {
		fn(snap)
	}
}

// fold writes u into st and players.
func fold(st *models.GameState, players map[string]models.PlayerState, u models.StateUpdates) {
	for id, p := range u.Players {
		p = p.Clone()
		p.Normalize()
		players[id] = p
	}
	if u.World != nil {
		st.WorldState = u.World.Clone()
	}
	if g := u.Game; g != nil {
		if g.CurrentPlayerTurn != nil {
			st.CurrentPlayerTurn = *g.CurrentPlayerTurn
		}
		if g.TurnNumber != nil {
			st.TurnNumber = *g.TurnNumber
		}
	}
}

func sortedPlayers(players map[string]models.PlayerState) []models.PlayerState {
	out := make([]models.PlayerState, 0, len(players))
	for _, p := range players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
