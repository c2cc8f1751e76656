package actions

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tatianab/lesson-game/internal/models"
	"github.com/tatianab/lesson-game/internal/systems"
)

// ErrNotInitialized is returned when the specification, state or acting
// player is missing.
var ErrNotInitialized = errors.New("Game not initialized")

// Result is the uniform outcome of one action. A failed result carries no
// effects, events or updates.
type Result struct {
	Success bool                `json:"success"`
	Error   string              `json:"error,omitempty"`
	Effects []models.Effect     `json:"effects,omitempty"`
	Events  []models.GameEvent  `json:"events,omitempty"`
	Updates models.StateUpdates `json:"stateUpdates"`
}

func failure(err error) Result {
	return Result{Error: err.Error()}
}

// Context is the read-only snapshot a handler runs against.
type Context struct {
	Spec    *models.GameSpecification
	Caps    models.Capabilities
	State   models.GameState
	Player  models.PlayerState
	Players map[string]models.PlayerState
	Now     time.Time
}

// Outcome is what a handler produces on success.
type Outcome struct {
	Effects []models.Effect
	Events  []models.GameEvent
	Updates models.StateUpdates
}

// CustomHandler handles a registered Custom action.
type CustomHandler func(ctx Context, data map[string]any) (Outcome, error)

// Option configures a Processor.
type Option func(*Processor)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// Processor validates and applies player actions for one specification.
type Processor struct {
	spec   *models.GameSpecification
	caps   models.Capabilities
	custom map[string]CustomHandler
	now    func() time.Time
}

// NewProcessor derives the capability set of spec once and returns a
// processor for it. A nil spec yields a processor that rejects everything.
func NewProcessor(spec *models.GameSpecification, opts ...Option) *Processor {
	p := &Processor{
		spec:   spec,
		custom: make(map[string]CustomHandler),
		now:    time.Now,
	}
	if spec != nil {
		p.caps = spec.Capabilities()
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Capabilities returns the mechanics enabled for the session.
func (p *Processor) Capabilities() models.Capabilities {
	return p.caps
}

// Register adds a handler for Custom actions named name.
func (p *Processor) Register(name string, h CustomHandler) {
	p.custom[name] = h
}

// Allowed reports whether t may be submitted during phase.
func Allowed(t Type, phase models.Phase) bool {
	switch t {
	case TypeSkip:
		return true
	case TypeAnswerQuestion:
		return phase == models.PhaseQuestion
	default:
		return phase == models.PhaseActive
	}
}

// Process validates a against the snapshot and runs its handler. Neither st
// nor players are modified; the caller applies Result.Updates.
func (p *Processor) Process(st *models.GameState, players map[string]models.PlayerState, a Action) Result {
	if p.spec == nil || st == nil {
		return failure(ErrNotInitialized)
	}
	actor, ok := players[a.PlayerID]
	if !ok {
		return failure(ErrNotInitialized)
	}
	payload := deref(a.Payload)
	if payload == nil {
		return failure(errors.New("Unknown action type: "))
	}
	t := payload.Type()
	if !Allowed(t, st.Phase) {
		return failure(fmt.Errorf("Action %s not allowed in phase %s", t, st.Phase))
	}
	if !actor.Status.CanAct() {
		return failure(fmt.Errorf("Player is %s", actor.Status))
	}
	if c, ok := payload.(Custom); ok {
		if _, ok := p.custom[c.Name]; !ok {
			return failure(fmt.Errorf("Unknown action type: %s", c.Name))
		}
	}
	if p.caps.Has(models.CapTurns) && st.Phase == models.PhaseActive &&
		st.CurrentPlayerTurn != "" && st.CurrentPlayerTurn != a.PlayerID && t != TypeVote {
		return failure(errors.New("Not your turn"))
	}

	ctx := Context{
		Spec:    p.spec,
		Caps:    p.caps,
		State:   st.Clone(),
		Player:  actor.Clone(),
		Players: models.ClonePlayers(players),
		Now:     p.now(),
	}
	out, err := p.dispatch(ctx, payload)
	if err != nil {
		return failure(err)
	}
	return p.finish(ctx, a, t, out)
}

func (p *Processor) dispatch(ctx Context, payload Payload) (Outcome, error) {
	switch v := payload.(type) {
	case Move:
		return handleMove(ctx, v)
	case Attack:
		return handleAttack(ctx, v)
	case Defend:
		return handleDefend(ctx)
	case Trade:
		return handleTrade(ctx, v)
	case Steal:
		return handleSteal(ctx, v)
	case UseItem:
		return handleUseItem(ctx, v)
	case Gather:
		return handleGather(ctx)
	case Craft:
		return handleCraft(ctx, v)
	case UseAbility:
		return handleUseAbility(ctx, v)
	case Vote:
		return handleVote(ctx, v)
	case AnswerQuestion:
		return handleAnswer(ctx, v)
	case Skip:
		return handleSkip(ctx)
	case Custom:
		return p.custom[v.Name](ctx, v.Data)
	default:
		return Outcome{}, fmt.Errorf("Unknown action type: %s", payload.Type())
	}
}

// finish credits earn rates, stamps the actor's last action and prepends the
// generic action event.
func (p *Processor) finish(ctx Context, a Action, t Type, out Outcome) Result {
	actor := ctx.Player
	if touched, ok := out.Updates.Players[actor.ID]; ok {
		actor = touched
	}
	if econ := ctx.Spec.Mechanics.Economy; econ != nil && len(econ.Currencies) > 0 {
		var earned int
		actor.Resources, earned = systems.Earn(actor.Resources, econ.EarnRates, string(t), econ.Currencies[0])
		if earned > 0 {
			out.Effects = append(out.Effects, models.Effect{
				Type: models.EffectResource, TargetID: actor.ID, SourceID: actor.ID,
				Resource: econ.Currencies[0], Amount: earned, Reason: "earn",
			})
		}
	}
	ts := a.Timestamp
	if ts == 0 {
		ts = ctx.Now.UnixMilli()
	}
	actor.LastAction = &models.LastAction{Type: string(t), Timestamp: ts}
	out.Updates.SetPlayer(actor)

	events := make([]models.GameEvent, 0, len(out.Events)+1)
	events = append(events, newEvent(ctx, models.EventAction, actor.ID, map[string]any{
		"actionType": string(t),
		"effects":    out.Effects,
	}))
	events = append(events, out.Events...)
	return Result{
		Success: true,
		Effects: out.Effects,
		Events:  events,
		Updates: out.Updates,
	}
}

func newEvent(ctx Context, t models.EventType, playerID string, payload map[string]any) models.GameEvent {
	return models.GameEvent{
		ID:        uuid.NewString(),
		Timestamp: ctx.Now.UnixMilli(),
		Type:      t,
		PlayerID:  playerID,
		Payload:   payload,
	}
}
