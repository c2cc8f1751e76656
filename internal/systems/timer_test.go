package systems

import (
	"slices"
	"testing"
	"time"

	"github.com/tatianab/lesson-game/internal/models"
)

func TestCountdownExpiresOnce(t *testing.T) {
	c := NewCountdown(TimerQuestion, 3*time.Second)
	var fired int
	for i := 0; i < 6; i++ {
		var expired bool
		c, expired = c.Tick(time.Second)
		if expired {
			fired++
			if i != 2 {
				t.Fatalf("expired on tick %d, want 2", i)
			}
		}
		if c.Remaining < 0 {
			t.Fatalf("remaining went negative: %v", c.Remaining)
		}
	}
	if fired != 1 {
		t.Fatalf("fired %d times", fired)
	}
}

func TestCountdownOvershootClampsToZero(t *testing.T) {
	c, expired := NewCountdown(TimerGame, time.Second).Tick(5 * time.Second)
	if !expired || c.Remaining != 0 {
		t.Fatalf("got %+v expired=%v", c, expired)
	}
}

func TestTimersIndependent(t *testing.T) {
	timers := Timers{}.
		Start(TimerGame, 10*time.Second).
		Start(TimerQuestion, 2*time.Second).
		Start(TimerRound, 2*time.Second)

	timers, expired := timers.Tick(2 * time.Second)
	if !slices.Equal(expired, []TimerKind{TimerQuestion, TimerRound}) {
		t.Fatalf("expired = %v", expired)
	}
	if rem, _ := timers.Remaining(TimerGame); rem != 8*time.Second {
		t.Fatalf("game remaining = %v", rem)
	}

	timers = timers.Stop(TimerRound)
	if _, ok := timers.Remaining(TimerRound); ok {
		t.Fatal("round timer should be stopped")
	}
	_, expired = timers.Tick(time.Second)
	if len(expired) != 0 {
		t.Fatalf("expired again: %v", expired)
	}
}

func TestTickCooldowns(t *testing.T) {
	got := TickCooldowns(map[string]int{"blast": 2, "dash": 0})
	if got["blast"] != 1 || got["dash"] != 0 {
		t.Fatalf("got %v", got)
	}
}

func TestApplyEffects(t *testing.T) {
	players := map[string]models.PlayerState{
		"a": {ID: "a", Health: 50, MaxHealth: 100, Status: models.StatusActive, Resources: map[string]int{"gold": 1}},
		"b": {ID: "b", Health: 10, MaxHealth: 100, Status: models.StatusActive, Resources: map[string]int{}},
	}
	world := InitWorld(models.WorldConfig{Zones: []models.ZoneConfig{{ID: "z"}}})
	world = PlaceOccupant(world, "a", "z")

	out := ApplyEffects(EffectInput{
		Players:  players,
		World:    world,
		ActorID:  "a",
		TargetID: "b",
		Combat:   &models.CombatConfig{},
	}, []models.Effect{
		{Type: models.EffectResource, Resource: "gold", Amount: 5},
		{Type: models.EffectHeal, Amount: 10},
		{Type: models.EffectDamage, Target: models.TargetTarget, Amount: 25},
		{Type: models.EffectInfluence, Amount: 2},
		{Type: models.EffectScore, Target: models.TargetAll, Amount: 10},
	})

	a, b := out.Players["a"], out.Players["b"]
	if a.Resources["gold"] != 6 || a.Health != 60 {
		t.Errorf("a = %+v", a)
	}
	if b.Health != 0 || b.Status != models.StatusEliminated {
		t.Errorf("b = %+v", b)
	}
	if !slices.Equal(out.Eliminated, []string{"b"}) {
		t.Errorf("eliminated = %v", out.Eliminated)
	}
	if a.Score != 10 || b.Score != 0 {
		t.Errorf("scores = %d/%d; eliminated players are skipped", a.Score, b.Score)
	}
	if out.World.Zones["z"].ControllerID != "a" || !out.WorldChanged {
		t.Errorf("zone = %+v", out.World.Zones["z"])
	}
	if players["a"].Resources["gold"] != 1 {
		t.Error("input players mutated")
	}
}

func TestExpireEffects(t *testing.T) {
	players := map[string]models.PlayerState{
		"a": {ID: "a", Status: models.StatusActive, Resources: map[string]int{}},
	}
	out := ApplyEffects(EffectInput{Players: players, ActorID: "a"}, []models.Effect{
		{Type: models.EffectFreeze, Duration: 2},
	})
	frozen := map[string]models.PlayerState{"a": out.Players["a"]}
	if frozen["a"].Status != models.StatusFrozen {
		t.Fatalf("status = %s", frozen["a"].Status)
	}

	world, touched, expired := ExpireEffects(out.World, frozen)
	if len(expired) != 0 || len(world.Effects) != 1 || len(touched) != 0 {
		t.Fatalf("first round: expired=%v effects=%v", expired, world.Effects)
	}
	world, touched, expired = ExpireEffects(world, frozen)
	if len(expired) != 1 || len(world.Effects) != 0 {
		t.Fatalf("second round: expired=%v effects=%v", expired, world.Effects)
	}
	if touched["a"].Status != models.StatusActive {
		t.Fatalf("status = %s", touched["a"].Status)
	}
}

func TestNextTurn(t *testing.T) {
	players := map[string]models.PlayerState{
		"a": {ID: "a", Status: models.StatusActive},
		"b": {ID: "b", Status: models.StatusEliminated},
		"c": {ID: "c", Status: models.StatusFrozen},
	}
	tests := []struct {
		current, want string
	}{
		{"", "a"},
		{"a", "c"},
		{"b", "c"},
		{"c", "a"},
		{"zzz", "a"},
	}
	for _, tt := range tests {
		if got := NextTurn(players, tt.current); got != tt.want {
			t.Errorf("NextTurn(%q) = %q, want %q", tt.current, got, tt.want)
		}
	}
	if got := NextTurn(map[string]models.PlayerState{"b": players["b"]}, "b"); got != "" {
		t.Errorf("all eliminated: got %q", got)
	}
}
