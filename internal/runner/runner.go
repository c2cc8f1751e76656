// Package runner drives one session through its phases: lobby, countdown,
// active play, questions, results and completion. It owns the session's
// timers and decides when the game is over.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tatianab/lesson-game/internal/actions"
	"github.com/tatianab/lesson-game/internal/models"
	"github.com/tatianab/lesson-game/internal/questions"
	"github.com/tatianab/lesson-game/internal/state"
	"github.com/tatianab/lesson-game/internal/systems"
)

var (
	ErrNotInitialized = errors.New("Game not initialized")
	ErrAlreadyStarted = errors.New("Game already started")
	ErrPlayerExists   = errors.New("player already joined")
	ErrPlayerNotFound = errors.New("player not found")
)

// PhaseError reports a transition attempted from the wrong phase.
type PhaseError struct {
	Op    string
	Phase models.Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s not allowed in phase %s", e.Op, e.Phase)
}

// DefaultTriggerInterval paces timed questions when the specification sets no
// interval.
const DefaultTriggerInterval = 30 * time.Second

const tracerName = "github.com/tatianab/lesson-game/internal/runner"

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithClock replaces time.Now for the runner and everything it creates.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithScheduler makes the runner tick itself every interval while play is
// running. Without a scheduler the host calls Tick.
func WithScheduler(s Scheduler, interval time.Duration) Option {
	return func(r *Runner) {
		r.scheduler = s
		r.tickEvery = interval
	}
}

// WithEffectCallback registers fn to be called once per applied effect.
func WithEffectCallback(fn func(models.Effect)) Option {
	return func(r *Runner) { r.onEffect = fn }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Runner) { r.tracer = tp.Tracer(tracerName) }
}

// WithCustomAction registers a handler for a custom action kind.
func WithCustomAction(name string, h actions.CustomHandler) Option {
	return func(r *Runner) { r.custom[name] = h }
}

// Runner is the phase state machine of one session. All methods are safe for
// concurrent use; calls are serialized.
type Runner struct {
	mu sync.Mutex

	spec      *models.GameSpecification
	caps      models.Capabilities
	state     *state.Manager
	questions *questions.Manager
	processor *actions.Processor
	custom    map[string]actions.CustomHandler

	timers     systems.Timers
	scheduler  Scheduler
	tickEvery  time.Duration
	stopTicks  func()
	pausedFrom models.Phase
	rearm      bool
	turnsSince int

	onEffect func(models.Effect)
	log      *log.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// New creates a runner in the lobby phase. A nil spec yields a runner whose
// operations fail with ErrNotInitialized.
func New(spec *models.GameSpecification, opts ...Option) *Runner {
	r := &Runner{
		spec:   spec,
		custom: make(map[string]actions.CustomHandler),
		log:    log.New(io.Discard, "", 0),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.state = state.NewManager(state.WithClock(r.now))
	r.processor = actions.NewProcessor(spec, actions.WithClock(r.now))
	for name, h := range r.custom {
		r.processor.Register(name, h)
	}
	if spec == nil {
		r.questions = questions.NewManager(&models.GameSpecification{})
		return r
	}
	r.caps = spec.Capabilities()
	r.questions = questions.NewManager(spec)
	r.state.Load(spec, models.GameState{
		Phase:      models.PhaseLobby,
		WorldState: systems.InitWorld(spec.World),
		Events:     []models.GameEvent{},
	}, nil)
	return r
}

// Restore replaces the session with a persisted state. A session saved
// mid-play comes back paused; Resume re-arms its timers.
func (r *Runner) Restore(st models.GameState, players map[string]models.PlayerState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.spec == nil {
		return ErrNotInitialized
	}
	r.stopAll()
	r.pausedFrom = ""
	switch st.Phase {
	case models.PhaseActive, models.PhaseQuestion, models.PhaseResults:
		r.pausedFrom = st.Phase
		st.Phase = models.PhasePaused
	}
	r.rearm = st.Phase == models.PhasePaused
	r.state.Load(r.spec, st, players)
	r.questions.Restore(st.CurrentQuestionIndex)
	if st.ActiveQuestion != nil {
		if i := slices.IndexFunc(r.spec.Questions, func(q models.Question) bool { return q.ID == st.ActiveQuestion.ID }); i >= 0 {
			r.questions.MarkAsked(i)
		}
	}
	return nil
}

// Spec returns the session specification.
func (r *Runner) Spec() *models.GameSpecification { return r.spec }

// Capabilities returns the mechanics enabled for the session.
func (r *Runner) Capabilities() models.Capabilities { return r.caps }

// StateManager exposes the session mirror for subscriptions and queries.
func (r *Runner) StateManager() *state.Manager { return r.state }

// State returns a copy of the session state.
func (r *Runner) State() models.GameState { return r.state.State() }

// Players returns a copy of every player.
func (r *Runner) Players() map[string]models.PlayerState { return r.state.Players() }

// Player returns a copy of one player.
func (r *Runner) Player(id string) (models.PlayerState, bool) { return r.state.Player(id) }

// Snapshot returns a consistent copy of state and players.
func (r *Runner) Snapshot() state.Snapshot { return r.state.Confirmed() }

// AddPlayer joins a player during the lobby.
func (r *Runner) AddPlayer(ctx context.Context, id, name string) (models.PlayerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready("AddPlayer", models.PhaseLobby); err != nil {
		return models.PlayerState{}, err
	}
	snap := r.state.Confirmed()
	if _, ok := snap.Players[id]; ok {
		return models.PlayerState{}, fmt.Errorf("%w: %s", ErrPlayerExists, id)
	}
	p := newPlayer(r.spec, id, name, snap.Players)
	u := models.StateUpdates{Players: map[string]models.PlayerState{id: p}}
	if p.Position != nil {
		if zone, ok := systems.ZoneAt(r.spec.World.Zones, *p.Position); ok {
			world := systems.PlaceOccupant(snap.State.WorldState, id, zone)
			u.World = &world
		}
	}
	r.state.Apply(u,
		r.event(models.EventPlayerJoined, id, map[string]any{"name": name}))
	r.log.Printf("player %s joined", id)
	return p, nil
}

// RemovePlayer drops a player during the lobby.
func (r *Runner) RemovePlayer(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready("RemovePlayer", models.PhaseLobby); err != nil {
		return err
	}
	if _, ok := r.state.Confirmed().Players[id]; !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	r.state.RemovePlayer(id, r.event(models.EventPlayerLeft, id, nil))
	return nil
}

func newPlayer(spec *models.GameSpecification, id, name string, existing map[string]models.PlayerState) models.PlayerState {
	p := models.PlayerState{
		ID:        id,
		Name:      name,
		Status:    models.StatusActive,
		Resources: make(map[string]int),
		Inventory: []string{},
		Cooldowns: make(map[string]int),
	}
	if econ := spec.Mechanics.Economy; econ != nil {
		for _, c := range econ.Currencies {
			p.Resources[c] = 0
		}
	}
	for k, v := range spec.Players.StartingResources {
		p.Resources[k] = max(v, 0)
	}
	for _, a := range spec.Players.Abilities {
		p.Cooldowns[a.ID] = 0
	}
	if c := spec.Mechanics.Combat; c != nil {
		p.MaxHealth = c.MaxHealth
		p.Health = c.StartingHealth
	}
	if spec.Players.StartingHealth > 0 {
		p.Health = spec.Players.StartingHealth
		p.MaxHealth = max(p.MaxHealth, p.Health)
	}
	if spec.World.Type == models.WorldGrid {
		taken := make([]models.Position, 0, len(existing))
		for _, other := range existing {
			if other.Position != nil {
				taken = append(taken, *other.Position)
			}
		}
		if pos, ok := systems.SpawnPosition(spec.World, taken); ok {
			p.Position = &pos
		}
	}
	if s := spec.Mechanics.Social; s != nil && len(s.Factions) > 0 {
		p.Faction = s.Factions[len(existing)%len(s.Factions)]
	}
	p.Normalize()
	return p
}

// Start leaves the lobby for the countdown.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.state.Loaded() {
		return ErrNotInitialized
	}
	if r.state.Confirmed().State.Phase != models.PhaseLobby {
		return ErrAlreadyStarted
	}
	r.transition(ctx, models.PhaseCountdown, func(s *models.GameState) {
		s.RoundNumber = 1
		s.TurnNumber = 0
		if d := r.gameSeconds(); d > 0 {
			s.TimeRemaining = &d
		}
	})
	return nil
}

// BeginActivePlay starts active play and the configured timers.
func (r *Runner) BeginActivePlay(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready("BeginActivePlay", models.PhaseCountdown); err != nil {
		return err
	}
	if d := r.gameSeconds(); d > 0 {
		r.timers = r.timers.Start(systems.TimerGame, seconds(d))
	}
	r.startTriggerTimer()
	r.transition(ctx, models.PhaseActive, func(s *models.GameState) {
		if r.caps.Has(models.CapTurns) {
			s.CurrentPlayerTurn = systems.NextTurn(r.state.Confirmed().Players, "")
			s.TurnNumber = 1
		}
	})
	if r.caps.Has(models.CapTurns) {
		r.timers = r.timers.Start(systems.TimerTurn, seconds(r.spec.Mechanics.Timer.TurnDuration))
	}
	r.startTicks()
	return nil
}

// TriggerQuestion asks the question at the current question index.
func (r *Runner) TriggerQuestion(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.triggerQuestion(ctx, -1, "host")
}

// TriggerQuestionAt asks the question at index.
func (r *Runner) TriggerQuestionAt(ctx context.Context, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.triggerQuestion(ctx, index, "host")
}

func (r *Runner) triggerQuestion(ctx context.Context, index int, trigger string) error {
	if err := r.ready("TriggerQuestion", models.PhaseActive, models.PhaseResults, models.PhaseCountdown); err != nil {
		return err
	}
	cur := r.state.Confirmed().State.CurrentQuestionIndex
	if index < 0 {
		index = cur
	}
	if r.questions.Asked(index) {
		index, _, _ = r.questions.NextQuestion(r.spec.QuestionIntegration.Trigger)
	}
	q, ok := r.questions.Question(index)
	if !ok {
		r.endGame(ctx, nil)
		return nil
	}
	r.questions.MarkAsked(index)
	r.turnsSince = 0
	start := r.now().UnixMilli()
	r.timers = r.timers.Stop(systems.TimerTrigger).
		Start(systems.TimerQuestion, time.Duration(r.spec.QuestionTimeLimitMs(q))*time.Millisecond)
	r.transition(ctx, models.PhaseQuestion, func(s *models.GameState) {
		s.CurrentQuestionIndex = max(s.CurrentQuestionIndex, index)
		s.ActiveQuestion = &q
		s.QuestionStartTime = &start
	}, r.event(models.EventQuestionTriggered, "", map[string]any{
		"questionId": q.ID,
		"index":      index,
		"trigger":    trigger,
	}))
	return nil
}

// ShowResults closes the active question.
func (r *Runner) ShowResults(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.showResults(ctx)
}

func (r *Runner) showResults(ctx context.Context) error {
	if err := r.ready("ShowResults", models.PhaseQuestion); err != nil {
		return err
	}
	r.timers = r.timers.Stop(systems.TimerQuestion)
	if t := r.spec.Mechanics.Timer; t != nil && t.RoundDuration > 0 {
		r.timers = r.timers.Start(systems.TimerRound, seconds(t.RoundDuration))
	}
	r.transition(ctx, models.PhaseResults, nil)
	return nil
}

// Next leaves the results screen: it ends the game when questions run out or
// a victory condition holds, returns to active play for timed questions and
// otherwise asks the next question straight away.
func (r *Runner) Next(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next(ctx)
}

func (r *Runner) next(ctx context.Context) error {
	if err := r.ready("Next", models.PhaseResults); err != nil {
		return err
	}
	r.timers = r.timers.Stop(systems.TimerRound)
	r.advanceRound()

	snap := r.state.Confirmed()
	idx := snap.State.CurrentQuestionIndex + 1
	r.state.Update(func(s *models.GameState) {
		s.CurrentQuestionIndex = idx
		s.ActiveQuestion = nil
		s.QuestionStartTime = nil
	})
	if idx >= r.questions.Count() {
		r.endGame(ctx, nil)
		return nil
	}
	if winners, done := r.checkVictory(); done {
		r.endGame(ctx, winners)
		return nil
	}
	if r.spec.QuestionIntegration.Trigger == models.TriggerTimed {
		r.startTriggerTimer()
		r.transition(ctx, models.PhaseActive, nil)
		return nil
	}
	return r.triggerQuestion(ctx, idx, string(r.spec.QuestionIntegration.Trigger))
}

// advanceRound counts the round and lets cooldowns and timed effects run
// down.
func (r *Runner) advanceRound() {
	r.tickDurations()
	r.state.Update(func(s *models.GameState) { s.RoundNumber++ })
}

// tickDurations lowers every cooldown and expires timed effects.
func (r *Runner) tickDurations() {
	snap := r.state.Confirmed()
	world, touched, expired := systems.ExpireEffects(snap.State.WorldState, snap.Players)
	u := models.StateUpdates{World: &world}
	for id, p := range snap.Players {
		if t, ok := touched[id]; ok {
			p = t
		}
		p.Cooldowns = systems.TickCooldowns(p.Cooldowns)
		u.SetPlayer(p)
	}
	var events []models.GameEvent
	for _, e := range expired {
		events = append(events, r.event(models.EventEffectExpired, e.TargetID, map[string]any{
			"effectId": e.ID,
			"type":     string(e.Type),
		}))
	}
	r.state.Apply(u, events...)
}

// ProcessAction runs a player action through the rules engine, commits its
// patch and events, and ends the game if a victory condition now holds.
func (r *Runner) ProcessAction(ctx context.Context, a actions.Action) actions.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, span := r.tracer.Start(ctx, "runner.ProcessAction", trace.WithAttributes(
		attribute.String("action.type", string(a.Type())),
		attribute.String("player.id", a.PlayerID),
	))
	defer span.End()

	snap := r.state.Confirmed()
	var res actions.Result
	if !r.state.Loaded() {
		res = r.processor.Process(nil, snap.Players, a)
	} else {
		res = r.processor.Process(&snap.State, snap.Players, a)
	}
	if !res.Success {
		span.SetStatus(codes.Error, res.Error)
		return res
	}

	r.state.Apply(res.Updates, res.Events...)
	if r.onEffect != nil {
		for _, e := range res.Effects {
			r.onEffect(e)
		}
	}
	if res.Updates.Game != nil && res.Updates.Game.CurrentPlayerTurn != nil {
		r.timers = r.timers.Start(systems.TimerTurn, seconds(r.spec.Mechanics.Timer.TurnDuration))
		r.tickDurations()
		r.turnsSince++
	}

	if winners, done := r.checkVictory(); done {
		r.endGame(ctx, winners)
		return res
	}
	r.afterAction(ctx, a.Type(), res)
	return res
}

// afterAction fires question triggers and closes a question once everyone
// still in the game has answered.
func (r *Runner) afterAction(ctx context.Context, t actions.Type, res actions.Result) {
	snap := r.state.Confirmed()
	switch snap.State.Phase {
	case models.PhaseActive:
		trigger := r.spec.QuestionIntegration.Trigger
		fire := false
		switch trigger {
		case models.TriggerAction:
			fire = true
		case models.TriggerCombat:
			fire = t == actions.TypeAttack
		case models.TriggerZone:
			fire = slices.ContainsFunc(res.Events, func(e models.GameEvent) bool {
				return e.Type == models.EventZoneEntered
			})
		case models.TriggerTurn:
			if !r.caps.Has(models.CapTurns) {
				r.turnsSince++
			}
			fire = r.turnsSince >= max(r.spec.QuestionIntegration.EveryTurns, 1)
		}
		if fire {
			if err := r.triggerQuestion(ctx, -1, string(trigger)); err != nil {
				r.log.Printf("trigger question: %v", err)
			}
		}
	case models.PhaseQuestion:
		q := snap.State.ActiveQuestion
		if q == nil {
			return
		}
		for _, p := range snap.Players {
			if p.Status != models.StatusEliminated && !p.HasAnswered(q.ID) {
				return
			}
		}
		if err := r.showResults(ctx); err != nil {
			r.log.Printf("show results: %v", err)
		}
	}
}

// EndGame finishes the session now and records the winners.
func (r *Runner) EndGame(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.state.Loaded() {
		return ErrNotInitialized
	}
	r.endGame(ctx, nil)
	return nil
}

func (r *Runner) endGame(ctx context.Context, winners []string) {
	if r.state.Confirmed().State.Phase == models.PhaseComplete {
		return
	}
	r.stopAll()
	if winners == nil {
		if w, done := r.checkVictory(); done {
			winners = w
		} else {
			winners = fallbackWinners(r.spec.Victory.Type, r.state.Confirmed().Players)
		}
	}
	winners = append([]string{}, winners...)
	r.transition(ctx, models.PhaseComplete, func(s *models.GameState) {
		s.Winners = winners
		s.ActiveQuestion = nil
		s.QuestionStartTime = nil
	}, r.event(models.EventGameComplete, "", map[string]any{
		"winners":  winners,
		"rankings": systems.CalculateRankings(r.state.Confirmed().Players),
	}))
	r.log.Printf("game complete, winners %v", winners)
}

// Pause suspends active play, a question or the results screen.
func (r *Runner) Pause(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready("Pause", models.PhaseActive, models.PhaseQuestion, models.PhaseResults); err != nil {
		return err
	}
	r.pausedFrom = r.state.Confirmed().State.Phase
	r.stopTicking()
	r.transition(ctx, models.PhasePaused, nil)
	return nil
}

// Resume returns to the phase Pause suspended. A session restored while
// paused resumes to the question phase if a question is active.
func (r *Runner) Resume(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready("Resume", models.PhasePaused); err != nil {
		return err
	}
	to := r.pausedFrom
	if to == "" {
		to = models.PhaseActive
		if r.state.Confirmed().State.ActiveQuestion != nil {
			to = models.PhaseQuestion
		}
	}
	r.pausedFrom = ""
	if r.rearm {
		r.rearmTimers(to)
		r.rearm = false
	}
	r.transition(ctx, to, nil)
	r.startTicks()
	return nil
}

// rearmTimers restarts the timers a restored session needs in phase. The game
// timer continues from the saved time remaining.
func (r *Runner) rearmTimers(phase models.Phase) {
	st := r.state.Confirmed().State
	if st.TimeRemaining != nil {
		r.timers = r.timers.Start(systems.TimerGame, seconds(*st.TimeRemaining))
	}
	if r.caps.Has(models.CapTurns) {
		r.timers = r.timers.Start(systems.TimerTurn, seconds(r.spec.Mechanics.Timer.TurnDuration))
	}
	switch phase {
	case models.PhaseActive:
		r.startTriggerTimer()
	case models.PhaseQuestion:
		if q := st.ActiveQuestion; q != nil {
			r.timers = r.timers.Start(systems.TimerQuestion, time.Duration(r.spec.QuestionTimeLimitMs(*q))*time.Millisecond)
		}
	case models.PhaseResults:
		if t := r.spec.Mechanics.Timer; t != nil && t.RoundDuration > 0 {
			r.timers = r.timers.Start(systems.TimerRound, seconds(t.RoundDuration))
		}
	}
}

// Tick advances every running timer by delta and handles expirations.
func (r *Runner) Tick(delta time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tick(context.Background(), delta)
}

func (r *Runner) tick(ctx context.Context, delta time.Duration) {
	switch r.state.Confirmed().State.Phase {
	case models.PhaseActive, models.PhaseQuestion, models.PhaseResults:
	default:
		return
	}
	var expired []systems.TimerKind
	r.timers, expired = r.timers.Tick(delta)
	if rem, ok := r.timers.Remaining(systems.TimerGame); ok {
		secs := int((rem + time.Second - 1) / time.Second)
		r.state.Update(func(s *models.GameState) { s.TimeRemaining = &secs })
	}

	for _, kind := range expired {
		phase := r.state.Confirmed().State.Phase
		if phase == models.PhaseComplete {
			return
		}
		r.log.Printf("timer %s expired in phase %s", kind, phase)
		var err error
		switch kind {
		case systems.TimerGame:
			r.endGame(ctx, nil)
			return
		case systems.TimerTurn:
			r.rotateTurn()
		case systems.TimerQuestion:
			if phase == models.PhaseQuestion {
				err = r.showResults(ctx)
			}
		case systems.TimerRound:
			if phase == models.PhaseResults {
				err = r.next(ctx)
			}
		case systems.TimerTrigger:
			if phase == models.PhaseActive {
				err = r.triggerQuestion(ctx, -1, string(models.TriggerTimed))
			}
		}
		if err != nil {
			r.log.Printf("timer %s: %v", kind, err)
		}
	}
	if winners, done := r.checkVictory(); done {
		r.endGame(ctx, winners)
	}
}

func (r *Runner) rotateTurn() {
	snap := r.state.Confirmed()
	next := systems.NextTurn(snap.Players, snap.State.CurrentPlayerTurn)
	turn := snap.State.TurnNumber + 1
	r.state.Apply(models.StateUpdates{Game: &models.GamePatch{CurrentPlayerTurn: &next, TurnNumber: &turn}},
		r.event(models.EventTurnChange, next, map[string]any{
			"turnNumber": turn,
			"previous":   snap.State.CurrentPlayerTurn,
		}))
	r.tickDurations()
	r.timers = r.timers.Start(systems.TimerTurn, seconds(r.spec.Mechanics.Timer.TurnDuration))
	r.turnsSince++
	if r.spec.QuestionIntegration.Trigger == models.TriggerTurn &&
		snap.State.Phase == models.PhaseActive &&
		r.turnsSince >= max(r.spec.QuestionIntegration.EveryTurns, 1) {
		if err := r.triggerQuestion(context.Background(), -1, string(models.TriggerTurn)); err != nil {
			r.log.Printf("trigger question: %v", err)
		}
	}
}

// Close stops the timers and the scheduler.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopAll()
}

func (r *Runner) stopAll() {
	r.stopTicking()
	r.timers = nil
}

func (r *Runner) startTicks() {
	if r.scheduler == nil || r.stopTicks != nil {
		return
	}
	every := r.tickEvery
	if every <= 0 {
		every = time.Second
	}
	r.stopTicks = r.scheduler.Every(every, func() { r.Tick(every) })
}

func (r *Runner) stopTicking() {
	if r.stopTicks != nil {
		r.stopTicks()
		r.stopTicks = nil
	}
}

func (r *Runner) startTriggerTimer() {
	if r.spec.QuestionIntegration.Trigger != models.TriggerTimed {
		return
	}
	interval := DefaultTriggerInterval
	if s := r.spec.QuestionIntegration.Interval; s > 0 {
		interval = seconds(s)
	}
	r.timers = r.timers.Start(systems.TimerTrigger, interval)
}

// ready checks the session is loaded and in one of the allowed phases.
func (r *Runner) ready(op string, allowed ...models.Phase) error {
	if !r.state.Loaded() {
		return ErrNotInitialized
	}
	phase := r.state.Confirmed().State.Phase
	if !slices.Contains(allowed, phase) {
		return &PhaseError{Op: op, Phase: phase}
	}
	return nil
}

// transition moves to phase, applies mutate and records a phase_change event
// followed by extra.
func (r *Runner) transition(ctx context.Context, to models.Phase, mutate func(*models.GameState), extra ...models.GameEvent) {
	from := r.state.Confirmed().State.Phase
	_, span := r.tracer.Start(ctx, "runner.transition", trace.WithAttributes(
		attribute.String("phase.from", string(from)),
		attribute.String("phase.to", string(to)),
	))
	defer span.End()

	events := append([]models.GameEvent{r.event(models.EventPhaseChange, "", map[string]any{
		"from": string(from),
		"to":   string(to),
	})}, extra...)
	r.state.Update(func(s *models.GameState) {
		s.Phase = to
		if mutate != nil {
			mutate(s)
		}
	}, events...)
	r.log.Printf("phase %s -> %s", from, to)
}

func (r *Runner) event(t models.EventType, playerID string, payload map[string]any) models.GameEvent {
	return models.GameEvent{
		ID:        uuid.NewString(),
		Timestamp: r.now().UnixMilli(),
		Type:      t,
		PlayerID:  playerID,
		Payload:   payload,
	}
}

func (r *Runner) gameSeconds() int {
	if r.spec.Victory.Duration > 0 {
		return r.spec.Victory.Duration
	}
	if t := r.spec.Mechanics.Timer; t != nil {
		return t.GameDuration
	}
	return 0
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
