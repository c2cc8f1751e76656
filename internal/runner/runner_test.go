package runner

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tatianab/lesson-game/internal/actions"
	"github.com/tatianab/lesson-game/internal/models"
	"github.com/tatianab/lesson-game/internal/systems"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

type fakeScheduler struct {
	every   time.Duration
	fn      func()
	stopped int
}

func (s *fakeScheduler) Every(d time.Duration, fn func()) func() {
	s.every, s.fn = d, fn
	return func() { s.stopped++ }
}

func quizSpec() *models.GameSpecification {
	spec := &models.GameSpecification{
		Title: "Planets",
		World: models.WorldConfig{Type: models.WorldGrid, Width: 4, Height: 4},
		Questions: []models.Question{
			{ID: "q1", Type: models.QuestionMultipleChoice, Prompt: "Largest planet?", Options: []string{"Mars", "Jupiter"}, CorrectAnswer: models.Single("Jupiter")},
			{ID: "q2", Type: models.QuestionTrueFalse, Prompt: "Pluto is a planet.", Options: []string{"true", "false"}, CorrectAnswer: models.Single("false")},
		},
	}
	spec.Normalize()
	return spec
}

func newRunner(t *testing.T, spec *models.GameSpecification, opts ...Option) *Runner {
	t.Helper()
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	r := New(spec, append([]Option{WithClock(clock.Now)}, opts...)...)
	t.Cleanup(r.Close)
	return r
}

func join(t *testing.T, r *Runner, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if _, err := r.AddPlayer(context.Background(), id, "player "+id); err != nil {
			t.Fatalf("AddPlayer(%s): %v", id, err)
		}
	}
}

func answer(t *testing.T, r *Runner, playerID, questionID, value string) actions.Result {
	t.Helper()
	res := r.ProcessAction(context.Background(), actions.Action{
		PlayerID: playerID,
		Payload:  actions.AnswerQuestion{QuestionID: questionID, Answer: models.Single(value)},
	})
	if !res.Success {
		t.Fatalf("answer by %s: %s", playerID, res.Error)
	}
	return res
}

func phase(r *Runner) models.Phase { return r.State().Phase }

func countEvents(st models.GameState, typ models.EventType) int {
	n := 0
	for _, e := range st.Events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func TestQuizRunsToCompletion(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t, quizSpec())
	join(t, r, "a", "b")

	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if st := r.State(); st.Phase != models.PhaseCountdown || st.RoundNumber != 1 {
		t.Fatalf("after start: phase %s round %d", st.Phase, st.RoundNumber)
	}
	if err := r.TriggerQuestion(ctx); err != nil {
		t.Fatal(err)
	}
	if st := r.State(); st.Phase != models.PhaseQuestion || st.ActiveQuestion.ID != "q1" {
		t.Fatalf("expected q1, got phase %s", st.Phase)
	}

	answer(t, r, "a", "q1", "Jupiter")
	if phase(r) != models.PhaseQuestion {
		t.Fatal("results shown before everyone answered")
	}
	answer(t, r, "b", "q1", "Mars")
	if phase(r) != models.PhaseResults {
		t.Fatalf("phase = %s, want results once all answered", phase(r))
	}

	if err := r.Next(ctx); err != nil {
		t.Fatal(err)
	}
	if st := r.State(); st.Phase != models.PhaseQuestion || st.ActiveQuestion.ID != "q2" || st.RoundNumber != 2 {
		t.Fatalf("after next: phase %s round %d", st.Phase, st.RoundNumber)
	}
	answer(t, r, "a", "q2", "false")
	answer(t, r, "b", "q2", "false")

	if err := r.Next(ctx); err != nil {
		t.Fatal(err)
	}
	st := r.State()
	if st.Phase != models.PhaseComplete {
		t.Fatalf("phase = %s, want complete", st.Phase)
	}
	if !reflect.DeepEqual(st.Winners, []string{"a"}) {
		t.Fatalf("winners = %v", st.Winners)
	}
	if got := countEvents(st, models.EventQuestionTriggered); got != 2 {
		t.Fatalf("question_triggered events = %d", got)
	}
	if last := st.Events[len(st.Events)-1]; last.Type != models.EventGameComplete {
		t.Fatalf("last event = %s", last.Type)
	}
}

func TestTriggerPastLastQuestionCompletes(t *testing.T) {
	spec := quizSpec()
	r := newRunner(t, spec)
	err := r.Restore(models.GameState{Phase: models.PhaseActive, CurrentQuestionIndex: len(spec.Questions)}, map[string]models.PlayerState{
		"a": {ID: "a", Status: models.StatusActive, Score: 10, Resources: map[string]int{}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if phase(r) != models.PhasePaused {
		t.Fatalf("restored mid-play session should be paused, got %s", phase(r))
	}
	if err := r.Resume(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := r.TriggerQuestion(context.Background()); err != nil {
		t.Fatal(err)
	}
	st := r.State()
	if st.Phase != models.PhaseComplete || st.ActiveQuestion != nil {
		t.Fatalf("phase = %s", st.Phase)
	}
	if countEvents(st, models.EventQuestionTriggered) != 0 {
		t.Fatal("no question should have been triggered")
	}
}

func TestPhaseGuards(t *testing.T) {
	ctx := context.Background()

	if err := New(nil).Start(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("nil spec start: %v", err)
	}

	r := newRunner(t, quizSpec())
	var pe *PhaseError
	if err := r.BeginActivePlay(ctx); !errors.As(err, &pe) || pe.Phase != models.PhaseLobby {
		t.Fatalf("BeginActivePlay from lobby: %v", err)
	}
	if err := r.ShowResults(ctx); !errors.As(err, &pe) {
		t.Fatalf("ShowResults from lobby: %v", err)
	}
	join(t, r, "a")
	if _, err := r.AddPlayer(ctx, "a", "again"); !errors.Is(err, ErrPlayerExists) {
		t.Fatalf("duplicate join: %v", err)
	}
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second start: %v", err)
	}
	if _, err := r.AddPlayer(ctx, "b", "late"); !errors.As(err, &pe) {
		t.Fatalf("join after start: %v", err)
	}
	if err := r.Next(ctx); !errors.As(err, &pe) || pe.Op != "Next" {
		t.Fatalf("Next from countdown: %v", err)
	}
}

func TestRemovePlayerInLobby(t *testing.T) {
	r := newRunner(t, quizSpec())
	join(t, r, "a", "b")
	if err := r.RemovePlayer(context.Background(), "b"); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Player("b"); ok {
		t.Fatal("b still present")
	}
	if err := r.RemovePlayer(context.Background(), "b"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("second remove: %v", err)
	}
	if countEvents(r.State(), models.EventPlayerLeft) != 1 {
		t.Fatal("missing player_left event")
	}
}

func TestAddPlayerDefaults(t *testing.T) {
	spec := quizSpec()
	spec.World.Obstacles = []models.Position{{X: 0, Y: 0}}
	spec.Players.StartingResources = map[string]int{"wood": 3}
	spec.Players.Abilities = []models.AbilityConfig{{ID: "dash", Cooldown: 2}}
	spec.Mechanics.Economy = &models.EconomyConfig{Currencies: []string{"gold"}}
	spec.Mechanics.Combat = &models.CombatConfig{MaxHealth: 50}
	spec.Mechanics.Social = &models.SocialConfig{Factions: []string{"red", "blue"}}
	spec.Normalize()
	r := newRunner(t, spec)
	join(t, r, "a", "b")

	a, _ := r.Player("a")
	b, _ := r.Player("b")
	if a.Resources["gold"] != 0 || a.Resources["wood"] != 3 {
		t.Fatalf("resources = %v", a.Resources)
	}
	if a.Health != 50 || a.MaxHealth != 50 {
		t.Fatalf("health = %d/%d", a.Health, a.MaxHealth)
	}
	if cd, ok := a.Cooldowns["dash"]; !ok || cd != 0 {
		t.Fatalf("cooldowns = %v", a.Cooldowns)
	}
	if *a.Position != (models.Position{X: 1, Y: 0}) || *b.Position != (models.Position{X: 2, Y: 0}) {
		t.Fatalf("spawns = %v %v", *a.Position, *b.Position)
	}
	if a.Faction != "red" || b.Faction != "blue" {
		t.Fatalf("factions = %s %s", a.Faction, b.Faction)
	}
	if countEvents(r.State(), models.EventPlayerJoined) != 2 {
		t.Fatal("missing player_joined events")
	}
}

func TestPauseResume(t *testing.T) {
	ctx := context.Background()
	sched := &fakeScheduler{}
	spec := quizSpec()
	spec.QuestionIntegration.Trigger = models.TriggerTimed
	r := newRunner(t, spec, WithScheduler(sched, 250*time.Millisecond))
	join(t, r, "a")
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.BeginActivePlay(ctx); err != nil {
		t.Fatal(err)
	}
	if sched.fn == nil || sched.every != 250*time.Millisecond {
		t.Fatal("scheduler not started")
	}
	if err := r.TriggerQuestion(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.Pause(ctx); err != nil {
		t.Fatal(err)
	}
	if phase(r) != models.PhasePaused || sched.stopped != 1 {
		t.Fatalf("phase %s stopped %d", phase(r), sched.stopped)
	}

	r.Tick(time.Hour)
	if phase(r) != models.PhasePaused {
		t.Fatal("timers ran while paused")
	}

	if err := r.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	if phase(r) != models.PhaseQuestion {
		t.Fatalf("resumed to %s", phase(r))
	}
	var pe *PhaseError
	if err := r.Resume(ctx); !errors.As(err, &pe) {
		t.Fatalf("second resume: %v", err)
	}
}

func TestTimersDriveQuestions(t *testing.T) {
	ctx := context.Background()
	spec := quizSpec()
	spec.QuestionIntegration.Trigger = models.TriggerTimed
	spec.QuestionIntegration.Interval = 20
	spec.Mechanics.Timer = &models.TimerConfig{QuestionDuration: 5, RoundDuration: 3}
	r := newRunner(t, spec)
	join(t, r, "a")
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.BeginActivePlay(ctx); err != nil {
		t.Fatal(err)
	}

	r.Tick(19 * time.Second)
	if phase(r) != models.PhaseActive {
		t.Fatalf("phase = %s before interval", phase(r))
	}
	r.Tick(time.Second)
	if st := r.State(); st.Phase != models.PhaseQuestion || st.ActiveQuestion.ID != "q1" {
		t.Fatalf("phase = %s after interval", st.Phase)
	}
	r.Tick(5 * time.Second)
	if phase(r) != models.PhaseResults {
		t.Fatalf("phase = %s after question countdown", phase(r))
	}
	r.Tick(3 * time.Second)
	if st := r.State(); st.Phase != models.PhaseActive || st.CurrentQuestionIndex != 1 {
		t.Fatalf("after round timer: phase %s index %d", st.Phase, st.CurrentQuestionIndex)
	}
	r.Tick(20 * time.Second)
	if st := r.State(); st.Phase != models.PhaseQuestion || st.ActiveQuestion.ID != "q2" {
		t.Fatalf("second timed question: phase %s", st.Phase)
	}
}

func TestSurvivalEndsOnGameTimer(t *testing.T) {
	ctx := context.Background()
	spec := quizSpec()
	spec.QuestionIntegration.Trigger = models.TriggerTimed
	spec.QuestionIntegration.Interval = 60
	spec.Victory = models.VictoryConfig{Type: models.VictorySurvival, Duration: 10}
	r := newRunner(t, spec)
	join(t, r, "a", "b")
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if st := r.State(); st.TimeRemaining == nil || *st.TimeRemaining != 10 {
		t.Fatal("time remaining not seeded")
	}
	if err := r.BeginActivePlay(ctx); err != nil {
		t.Fatal(err)
	}
	r.Tick(4 * time.Second)
	if st := r.State(); *st.TimeRemaining != 6 || st.Phase != models.PhaseActive {
		t.Fatalf("remaining %d phase %s", *st.TimeRemaining, st.Phase)
	}
	r.Tick(6 * time.Second)
	st := r.State()
	if st.Phase != models.PhaseComplete || !reflect.DeepEqual(st.Winners, []string{"a", "b"}) {
		t.Fatalf("phase %s winners %v", st.Phase, st.Winners)
	}
}

func TestTurnTimerRotates(t *testing.T) {
	ctx := context.Background()
	spec := quizSpec()
	spec.QuestionIntegration.Trigger = models.TriggerTimed
	spec.QuestionIntegration.Interval = 600
	spec.Mechanics.Timer = &models.TimerConfig{TurnDuration: 10}
	spec.Mechanics.Combat = &models.CombatConfig{}
	spec.Normalize()
	r := newRunner(t, spec)
	join(t, r, "a", "b")
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.BeginActivePlay(ctx); err != nil {
		t.Fatal(err)
	}
	if st := r.State(); st.CurrentPlayerTurn != "a" || st.TurnNumber != 1 {
		t.Fatalf("first turn = %q #%d", st.CurrentPlayerTurn, st.TurnNumber)
	}

	res := r.ProcessAction(ctx, actions.Action{PlayerID: "b", Payload: actions.Attack{TargetID: "a"}})
	if res.Success || res.Error != "Not your turn" {
		t.Fatalf("out of turn attack: %+v", res)
	}

	r.Tick(10 * time.Second)
	st := r.State()
	if st.CurrentPlayerTurn != "b" || st.TurnNumber != 2 {
		t.Fatalf("after expiry = %q #%d", st.CurrentPlayerTurn, st.TurnNumber)
	}
	if countEvents(st, models.EventTurnChange) != 1 {
		t.Fatal("missing turn_change event")
	}

	if res := r.ProcessAction(ctx, actions.Action{PlayerID: "b", Payload: actions.Skip{}}); !res.Success {
		t.Fatalf("skip: %s", res.Error)
	}
	if st := r.State(); st.CurrentPlayerTurn != "a" || st.TurnNumber != 3 {
		t.Fatalf("after skip = %q #%d", st.CurrentPlayerTurn, st.TurnNumber)
	}
}

func TestActionCanEndGame(t *testing.T) {
	ctx := context.Background()
	spec := quizSpec()
	spec.QuestionIntegration.Trigger = models.TriggerTimed
	spec.Victory.Type = models.VictoryElimination
	spec.Mechanics.Combat = &models.CombatConfig{MaxHealth: 10, DamagePerAttack: 10}
	spec.Normalize()

	var applied []models.Effect
	r := newRunner(t, spec, WithEffectCallback(func(e models.Effect) { applied = append(applied, e) }))
	join(t, r, "a", "b")
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.BeginActivePlay(ctx); err != nil {
		t.Fatal(err)
	}

	res := r.ProcessAction(ctx, actions.Action{PlayerID: "a", Payload: actions.Attack{TargetID: "b"}})
	if !res.Success {
		t.Fatal(res.Error)
	}
	if len(applied) != len(res.Effects) || len(applied) == 0 {
		t.Fatalf("callback saw %d effects, result has %d", len(applied), len(res.Effects))
	}
	st := r.State()
	if st.Phase != models.PhaseComplete || !reflect.DeepEqual(st.Winners, []string{"a"}) {
		t.Fatalf("phase %s winners %v", st.Phase, st.Winners)
	}
	if countEvents(st, models.EventElimination) != 1 {
		t.Fatal("elimination event not recorded")
	}
}

func TestActionTriggerAsksQuestion(t *testing.T) {
	ctx := context.Background()
	spec := quizSpec()
	spec.QuestionIntegration.Trigger = models.TriggerCombat
	spec.Mechanics.Combat = &models.CombatConfig{MaxHealth: 100}
	spec.Mechanics.Social = &models.SocialConfig{VotingEnabled: true}
	spec.Normalize()
	r := newRunner(t, spec)
	join(t, r, "a", "b")
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.BeginActivePlay(ctx); err != nil {
		t.Fatal(err)
	}

	if res := r.ProcessAction(ctx, actions.Action{PlayerID: "a", Payload: actions.Vote{TargetID: "b"}}); !res.Success {
		t.Fatal(res.Error)
	}
	if phase(r) != models.PhaseActive {
		t.Fatal("a vote should not trigger a combat question")
	}
	if res := r.ProcessAction(ctx, actions.Action{PlayerID: "a", Payload: actions.Attack{TargetID: "b"}}); !res.Success {
		t.Fatal(res.Error)
	}
	if st := r.State(); st.Phase != models.PhaseQuestion || st.ActiveQuestion.ID != "q1" {
		t.Fatalf("phase = %s after attack", st.Phase)
	}
}

func TestEndGameFromHost(t *testing.T) {
	ctx := context.Background()
	spec := quizSpec()
	spec.Victory.Type = models.VictoryCollective
	r := newRunner(t, spec)
	join(t, r, "a")
	if err := r.EndGame(ctx); err != nil {
		t.Fatal(err)
	}
	st := r.State()
	if st.Phase != models.PhaseComplete || len(st.Winners) != 0 {
		t.Fatalf("phase %s winners %v", st.Phase, st.Winners)
	}
	if err := r.EndGame(ctx); err != nil {
		t.Fatal(err)
	}
	if countEvents(r.State(), models.EventGameComplete) != 1 {
		t.Fatal("game completed twice")
	}
}

func TestProcessActionIsTraced(t *testing.T) {
	ctx := context.Background()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	spec := quizSpec()
	r := newRunner(t, spec, WithTracerProvider(tp))
	join(t, r, "a")
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.TriggerQuestion(ctx); err != nil {
		t.Fatal(err)
	}
	r.ProcessAction(ctx, actions.Action{PlayerID: "a", Payload: actions.Attack{TargetID: "a"}})

	var names []string
	var failed bool
	for _, s := range rec.Ended() {
		names = append(names, s.Name())
		if s.Name() == "runner.ProcessAction" {
			failed = s.Status().Code == codes.Error
		}
	}
	if !slices.Contains(names, "runner.ProcessAction") || !slices.Contains(names, "runner.transition") {
		t.Fatalf("spans = %v", names)
	}
	if !failed {
		t.Fatal("rejected action span should carry an error status")
	}
}

func TestRestoredQuestionRearmsTimer(t *testing.T) {
	ctx := context.Background()
	spec := quizSpec()
	spec.Mechanics.Timer = &models.TimerConfig{QuestionDuration: 8}
	r := newRunner(t, spec)
	q := spec.Questions[0]
	remaining := 100
	err := r.Restore(models.GameState{
		Phase:          models.PhaseQuestion,
		ActiveQuestion: &q,
		TimeRemaining:  &remaining,
	}, map[string]models.PlayerState{"a": {ID: "a", Status: models.StatusActive, Resources: map[string]int{}}})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	if phase(r) != models.PhaseQuestion {
		t.Fatalf("resumed to %s", phase(r))
	}
	r.Tick(8 * time.Second)
	st := r.State()
	if st.Phase != models.PhaseResults || *st.TimeRemaining != 92 {
		t.Fatalf("phase %s remaining %d", st.Phase, *st.TimeRemaining)
	}
}

func TestRemovePlayerVacatesZone(t *testing.T) {
	spec := quizSpec()
	spec.World.Zones = []models.ZoneConfig{{ID: "base", Bounds: models.Bounds{Width: 4, Height: 4}}}
	r := newRunner(t, spec)
	join(t, r, "a", "b")
	if occ := r.State().WorldState.Zones["base"].Occupants; len(occ) != 2 {
		t.Fatalf("occupants after join = %v", occ)
	}
	if err := r.RemovePlayer(context.Background(), "b"); err != nil {
		t.Fatal(err)
	}
	if occ := r.State().WorldState.Zones["base"].Occupants; !reflect.DeepEqual(occ, []string{"a"}) {
		t.Fatalf("occupants after remove = %v", occ)
	}
}

func TestGameCompleteCarriesRankings(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t, quizSpec())
	join(t, r, "a", "b")
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.TriggerQuestion(ctx); err != nil {
		t.Fatal(err)
	}
	answer(t, r, "a", "q1", "Mars")
	answer(t, r, "b", "q1", "Jupiter")
	if err := r.EndGame(ctx); err != nil {
		t.Fatal(err)
	}
	st := r.State()
	last := st.Events[len(st.Events)-1]
	rankings, ok := last.Payload["rankings"].([]systems.Ranking)
	if !ok || len(rankings) != 2 {
		t.Fatalf("payload = %#v", last.Payload)
	}
	if rankings[0].PlayerID != "b" || rankings[0].Rank != 1 || rankings[1].Rank != 2 {
		t.Fatalf("rankings = %+v", rankings)
	}
}
