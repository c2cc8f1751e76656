package systems

import (
	"maps"
	"time"
)

// TimerKind names an independent countdown.
type TimerKind string

const (
	TimerGame     TimerKind = "game"
	TimerTurn     TimerKind = "turn"
	TimerQuestion TimerKind = "question"
	TimerRound    TimerKind = "round"
	// TimerTrigger paces questions for the timed trigger.
	TimerTrigger TimerKind = "trigger"
)

// timerOrder fixes the order expirations are reported in.
var timerOrder = []TimerKind{TimerGame, TimerTurn, TimerQuestion, TimerRound, TimerTrigger}

// Countdown never goes negative and reports expiry exactly once, on the tick
// that crosses zero.
type Countdown struct {
	Kind      TimerKind
	Duration  time.Duration
	Remaining time.Duration
}

// NewCountdown starts a countdown at d.
func NewCountdown(kind TimerKind, d time.Duration) Countdown {
	return Countdown{Kind: kind, Duration: d, Remaining: max(d, 0)}
}

// Tick advances the countdown by delta.
func (c Countdown) Tick(delta time.Duration) (Countdown, bool) {
	if c.Remaining <= 0 || delta <= 0 {
		return c, false
	}
	c.Remaining -= delta
	if c.Remaining <= 0 {
		c.Remaining = 0
		return c, true
	}
	return c, false
}

// Expired reports whether the countdown has reached zero.
func (c Countdown) Expired() bool {
	return c.Remaining <= 0
}

// Timers is a set of countdowns keyed by kind. Methods return new values.
type Timers map[TimerKind]Countdown

// Start (re)starts the countdown of kind at d.
func (t Timers) Start(kind TimerKind, d time.Duration) Timers {
	out := maps.Clone(t)
	if out == nil {
		out = make(Timers)
	}
	out[kind] = NewCountdown(kind, d)
	return out
}

// Stop removes the countdown of kind.
func (t Timers) Stop(kind TimerKind) Timers {
	out := maps.Clone(t)
	delete(out, kind)
	return out
}

// Tick advances every countdown by delta and returns the kinds that expired
// on this tick.
func (t Timers) Tick(delta time.Duration) (Timers, []TimerKind) {
	out := maps.Clone(t)
	var expired []TimerKind
	for _, kind := range timerOrder {
		c, ok := out[kind]
		if !ok {
			continue
		}
		next, fired := c.Tick(delta)
		out[kind] = next
		if fired {
			expired = append(expired, kind)
		}
	}
	return out, expired
}

// Remaining returns the time left on kind, and whether it is running.
func (t Timers) Remaining(kind TimerKind) (time.Duration, bool) {
	c, ok := t[kind]
	return c.Remaining, ok
}

// TickCooldowns lowers every positive ability cooldown by one turn.
func TickCooldowns(cooldowns map[string]int) map[string]int {
	out := make(map[string]int, len(cooldowns))
	for id, v := range cooldowns {
		out[id] = max(v-1, 0)
	}
	return out
}
