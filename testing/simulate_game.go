package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/tatianab/lesson-game/internal/actions"
	"github.com/tatianab/lesson-game/internal/config"
	"github.com/tatianab/lesson-game/internal/generator"
	"github.com/tatianab/lesson-game/internal/models"
	"github.com/tatianab/lesson-game/internal/runner"
	"github.com/tatianab/lesson-game/internal/state"
)

const maxRounds = 50

// bot is a simulated student with its own client-side mirror of the session.
type bot struct {
	id       string
	persona  string
	accuracy float64
	mirror   *state.Manager
}

func main() {
	specPath := flag.String("spec", "", "specification file (generated from -lesson when empty)")
	lesson := flag.String("lesson", "", "lesson text file used to generate a specification")
	players := flag.Int("players", 3, "number of bot players")
	useGemini := flag.Bool("gemini", false, "let Gemini answer questions for the bots")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var gen *generator.Generator
	if *useGemini || *specPath == "" {
		if err := cfg.RequireGemini(); err != nil {
			log.Fatalf("%v", err)
		}
		gen, err = generator.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, generator.WithLogger(log.Default()))
		if err != nil {
			log.Fatalf("Failed to create generator: %v", err)
		}
		defer gen.Close()
	}

	// 1. Get a specification
	var spec *models.GameSpecification
	if *specPath != "" {
		spec, err = models.LoadSpecification(*specPath)
	} else {
		spec, err = generateSpec(ctx, gen, *lesson)
	}
	if err != nil {
		log.Fatalf("Failed to get specification: %v", err)
	}
	fmt.Printf("--- %s (%d questions, victory: %s) ---\n\n", spec.Title, len(spec.Questions), spec.Victory.Type)

	// 2. Seat the bots
	r := runner.New(spec, runner.WithLogger(log.New(os.Stdout, "[runner] ", 0)))
	defer r.Close()
	bots := make([]*bot, *players)
	personas := []string{"diligent", "distracted", "overconfident"}
	for i := range bots {
		b := &bot{
			id:       fmt.Sprintf("bot-%d", i+1),
			persona:  personas[i%len(personas)],
			accuracy: 0.9 - 0.25*float64(i%len(personas)),
			mirror:   state.NewManager(),
		}
		if _, err := r.AddPlayer(ctx, b.id, strings.ToUpper(b.persona[:1])+b.persona[1:]); err != nil {
			log.Fatalf("Failed to add %s: %v", b.id, err)
		}
		bots[i] = b
	}
	snap := r.Snapshot()
	for _, b := range bots {
		b.mirror.Load(spec, snap.State, snap.Players)
	}

	// 3. Play
	must(r.Start(ctx))
	must(r.BeginActivePlay(ctx))
	for round := 1; round <= maxRounds && r.State().Phase != models.PhaseComplete; round++ {
		switch r.State().Phase {
		case models.PhaseActive:
			for _, b := range bots {
				act(ctx, r, b, spec)
			}
			if r.State().Phase == models.PhaseActive {
				must(r.TriggerQuestion(ctx))
			}
		case models.PhaseQuestion:
			q := r.State().ActiveQuestion
			fmt.Printf("Q: %s\n", q.Prompt)
			for _, b := range bots {
				answer(ctx, r, b, gen, *q)
			}
			if r.State().Phase == models.PhaseQuestion {
				must(r.ShowResults(ctx))
			}
		case models.PhaseResults:
			must(r.Next(ctx))
		default:
			log.Fatalf("Unexpected phase %s", r.State().Phase)
		}
	}
	if r.State().Phase != models.PhaseComplete {
		must(r.EndGame(ctx))
	}

	// 4. Report
	fmt.Println("\n--- Final standings ---")
	final := r.Snapshot().Players
	for _, rk := range r.StateManager().Rankings() {
		fmt.Printf("%2d. %-12s score=%d correct=%d/%d status=%s\n", rk.Rank, rk.Name, rk.Score, rk.CorrectAnswers, rk.QuestionsAnswered, final[rk.PlayerID].Status)
	}
	fmt.Printf("Winners: %v\n", r.State().Winners)
}

func generateSpec(ctx context.Context, gen *generator.Generator, lessonPath string) (*models.GameSpecification, error) {
	text := "The water cycle: evaporation, condensation, precipitation and collection."
	if lessonPath != "" {
		data, err := os.ReadFile(lessonPath)
		if err != nil {
			return nil, err
		}
		text = string(data)
	}
	return gen.GenerateSpecification(ctx, generator.Lesson{Text: text, QuestionCount: 5})
}

func answer(ctx context.Context, r *runner.Runner, b *bot, gen *generator.Generator, q models.Question) {
	var ans models.Answer
	switch {
	case gen != nil:
		var err error
		ans, err = gen.AnswerQuestion(ctx, q, b.persona)
		if err != nil {
			fmt.Printf("  %s could not answer: %v\n", b.id, err)
			submit(ctx, r, b, actions.Skip{})
			return
		}
	case rand.Float64() < b.accuracy:
		ans = q.CorrectAnswer
	case len(q.Options) > 0:
		ans = models.Single(q.Options[rand.IntN(len(q.Options))])
	default:
		ans = models.Single("I don't know")
	}
	res := submit(ctx, r, b, actions.AnswerQuestion{QuestionID: q.ID, Answer: ans})
	fmt.Printf("  %s answered %v (%s)\n", b.id, ans.Values, outcome(res))
}

// act tries one mechanic the session has enabled.
func act(ctx context.Context, r *runner.Runner, b *bot, spec *models.GameSpecification) {
	caps := spec.Capabilities()
	me, ok := b.mirror.Effective().Players[b.id]
	if !ok || !me.Status.CanAct() {
		return
	}
	var payload actions.Payload
	switch {
	case caps.Has(models.CapCombat) && rand.IntN(2) == 0:
		if target := randomOpponent(b.mirror, b.id); target != "" {
			payload = actions.Attack{TargetID: target}
		}
	case caps.Has(models.CapGathering) && rand.IntN(2) == 0:
		payload = actions.Gather{}
	case caps.Has(models.CapMovement) && me.Position != nil:
		step := []models.Position{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}}[rand.IntN(4)]
		to := models.Position{X: me.Position.X + step.X, Y: me.Position.Y + step.Y}
		payload = actions.Move{Target: &to}
	}
	if payload == nil {
		return
	}
	res := submit(ctx, r, b, payload)
	fmt.Printf("  %s %s: %s\n", b.id, payload.Type(), outcome(res))
}

// submit shows the action's expected result in the bot's mirror right away,
// then reconciles with the authoritative snapshot.
func submit(ctx context.Context, r *runner.Runner, b *bot, payload actions.Payload) actions.Result {
	res := r.ProcessAction(ctx, actions.Action{PlayerID: b.id, Payload: payload})
	if res.Success {
		b.mirror.ApplyOptimistic(string(payload.Type()), res.Updates)
	}
	snap := r.Snapshot()
	b.mirror.SyncFromAuthority(snap.State, snap.Players)
	return res
}

func randomOpponent(mirror *state.Manager, self string) string {
	var ids []string
	for _, p := range mirror.ActivePlayers() {
		if p.ID != self {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return ""
	}
	return ids[rand.IntN(len(ids))]
}

func outcome(res actions.Result) string {
	if !res.Success {
		return "failed: " + res.Error
	}
	for _, e := range res.Effects {
		if e.Type == models.EffectScore {
			return fmt.Sprintf("+%d", e.Amount)
		}
	}
	return "ok"
}

func must(err error) {
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
}
