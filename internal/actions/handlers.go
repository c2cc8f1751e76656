package actions

import (
	"errors"
	"fmt"
	"slices"

	"github.com/tatianab/lesson-game/internal/models"
	"github.com/tatianab/lesson-game/internal/questions"
	"github.com/tatianab/lesson-game/internal/systems"
)

// ReasonFriendlyFire marks an attack that friendly-fire rules turned into a
// no-op.
const ReasonFriendlyFire = "friendly_fire"

// target resolves another player for targeted actions.
func target(ctx Context, id string) (models.PlayerState, error) {
	if id == "" {
		return models.PlayerState{}, errors.New("Target required")
	}
	if id == ctx.Player.ID {
		return models.PlayerState{}, errors.New("Cannot target yourself")
	}
	t, ok := ctx.Players[id]
	if !ok {
		return models.PlayerState{}, fmt.Errorf("Target not found: %s", id)
	}
	return t, nil
}

func handleMove(ctx Context, m Move) (Outcome, error) {
	cfg := ctx.Spec.Mechanics.Movement
	if !ctx.Caps.Has(models.CapMovement) || cfg == nil {
		return Outcome{}, errors.New("Movement not enabled")
	}
	p := ctx.Player
	var to models.Position
	switch {
	case m.ZoneID != "":
		zone, ok := ctx.Spec.Zone(m.ZoneID)
		if !ok {
			return Outcome{}, fmt.Errorf("Zone not found: %s", m.ZoneID)
		}
		to = zone.Bounds.Center()
		var err error
		if cfg.Type == models.MovementZone {
			err = systems.ValidateZoneHop(ctx.Spec.World.Zones, currentZone(ctx), m.ZoneID, *cfg)
		} else {
			err = systems.ValidateMove(p.Position, to, ctx.Spec.World, *cfg)
		}
		if err != nil {
			return Outcome{}, moveError(err)
		}
	case m.Target != nil:
		to = *m.Target
		if err := systems.ValidateMove(p.Position, to, ctx.Spec.World, *cfg); err != nil {
			return Outcome{}, moveError(err)
		}
	default:
		return Outcome{}, errors.New("Move target required")
	}

	var entered []string
	if m.ZoneID != "" {
		if cur, _ := ctx.State.WorldState.ZoneOf(p.ID); cur != m.ZoneID {
			entered = []string{m.ZoneID}
		}
	} else {
		entered, _ = systems.ZoneTransitions(ctx.Spec.World.Zones, p.Position, to)
	}

	from := p.Position
	p.Position = &to
	out := Outcome{
		Effects: []models.Effect{{Type: models.EffectMove, TargetID: p.ID, SourceID: p.ID, Amount: distance(from, to)}},
	}
	out.Updates.SetPlayer(p)

	// Occupancy follows the cell; the zone entered last wins when bounds
	// overlap.
	zoneID, _ := systems.ZoneAt(ctx.Spec.World.Zones, to)
	if m.ZoneID != "" {
		zoneID = m.ZoneID
	}
	world := systems.PlaceOccupant(ctx.State.WorldState, p.ID, zoneID)
	for _, z := range entered {
		var captured bool
		world, captured = systems.AddInfluence(world, z, p.ID, 1)
		out.Events = append(out.Events, newEvent(ctx, models.EventZoneEntered, p.ID, map[string]any{"zoneId": z}))
		if captured {
			out.Events = append(out.Events, newEvent(ctx, models.EventZoneCaptured, p.ID, map[string]any{"zoneId": z}))
		}
	}
	out.Updates.World = &world
	return out, nil
}

// currentZone is the zone the actor occupies, falling back to the zone that
// contains their cell.
func currentZone(ctx Context) string {
	if id, ok := ctx.State.WorldState.ZoneOf(ctx.Player.ID); ok {
		return id
	}
	if ctx.Player.Position != nil {
		id, _ := systems.ZoneAt(ctx.Spec.World.Zones, *ctx.Player.Position)
		return id
	}
	return ""
}

func moveError(err error) error {
	var tooFar *systems.TooFarError
	var hops *systems.HopError
	switch {
	case errors.As(err, &tooFar):
		return fmt.Errorf("Can only move %d spaces", tooFar.Max)
	case errors.As(err, &hops):
		return fmt.Errorf("Can only move %d zones", hops.Max)
	case errors.Is(err, systems.ErrUnreachable):
		return errors.New("Zone not reachable")
	case errors.Is(err, systems.ErrOutOfBounds):
		return errors.New("Position out of bounds")
	case errors.Is(err, systems.ErrBlocked):
		return errors.New("Position blocked")
	default:
		return err
	}
}

func distance(from *models.Position, to models.Position) int {
	if from == nil {
		return 0
	}
	return systems.Manhattan(*from, to)
}

func handleAttack(ctx Context, a Attack) (Outcome, error) {
	cfg := ctx.Spec.Mechanics.Combat
	if !ctx.Caps.Has(models.CapCombat) || cfg == nil {
		return Outcome{}, errors.New("Combat not enabled")
	}
	t, err := target(ctx, a.TargetID)
	if err != nil {
		return Outcome{}, err
	}
	if t.Status == models.StatusEliminated {
		return Outcome{}, errors.New("Target is eliminated")
	}

	res := systems.ProcessAttack(ctx.Player, t, cfg)
	effect := models.Effect{Type: models.EffectDamage, TargetID: t.ID, SourceID: ctx.Player.ID, Amount: res.Dealt}
	if res.Blocked {
		effect.Reason = ReasonFriendlyFire
		return Outcome{Effects: []models.Effect{effect}}, nil
	}

	out := Outcome{Effects: []models.Effect{effect}}
	if res.Absorbed > 0 {
		out.Effects = append(out.Effects, models.Effect{Type: models.EffectShield, TargetID: t.ID, SourceID: ctx.Player.ID, Amount: -res.Absorbed})
	}
	out.Updates.SetPlayer(res.Player)
	if res.Eliminated {
		out.Events = append(out.Events, newEvent(ctx, models.EventElimination, t.ID, map[string]any{
			"targetId":   t.ID,
			"attackerId": ctx.Player.ID,
		}))
	}
	if res.Respawned {
		out.Events = append(out.Events, newEvent(ctx, models.EventRespawn, t.ID, nil))
	}
	return out, nil
}

func handleDefend(ctx Context) (Outcome, error) {
	cfg := ctx.Spec.Mechanics.Combat
	if !ctx.Caps.Has(models.CapCombat) || cfg == nil {
		return Outcome{}, errors.New("Combat not enabled")
	}
	p := systems.AddShield(ctx.Player, cfg.ShieldPerDefend)
	out := Outcome{Effects: []models.Effect{{Type: models.EffectShield, TargetID: p.ID, SourceID: p.ID, Amount: cfg.ShieldPerDefend}}}
	out.Updates.SetPlayer(p)
	return out, nil
}

func handleTrade(ctx Context, tr Trade) (Outcome, error) {
	if !ctx.Caps.Has(models.CapTrading) {
		return Outcome{}, errors.New("Trading not enabled")
	}
	t, err := target(ctx, tr.TargetID)
	if err != nil {
		return Outcome{}, err
	}
	res, err := systems.Trade(ctx.Player.Resources, t.Resources, tr.Offer, tr.Request)
	switch {
	case errors.Is(err, systems.ErrInsufficientResources):
		return Outcome{}, errors.New("Insufficient resources")
	case errors.Is(err, systems.ErrCounterpartyCannotPay):
		return Outcome{}, errors.New("Target has insufficient resources")
	case errors.Is(err, systems.ErrInvalidAmount):
		return Outcome{}, errors.New("Invalid trade amounts")
	case err != nil:
		return Outcome{}, err
	}

	p := ctx.Player
	p.Resources = res.Initiator
	t.Resources = res.Counterparty
	out := Outcome{}
	out.Updates.SetPlayer(p)
	out.Updates.SetPlayer(t)
	for _, k := range sortedKeys(tr.Offer) {
		out.Effects = append(out.Effects, models.Effect{Type: models.EffectTrade, SourceID: p.ID, TargetID: t.ID, Resource: k, Amount: tr.Offer[k]})
	}
	for _, k := range sortedKeys(tr.Request) {
		out.Effects = append(out.Effects, models.Effect{Type: models.EffectTrade, SourceID: t.ID, TargetID: p.ID, Resource: k, Amount: tr.Request[k]})
	}
	return out, nil
}

func handleSteal(ctx Context, s Steal) (Outcome, error) {
	if !ctx.Caps.Has(models.CapStealing) {
		return Outcome{}, errors.New("Stealing not enabled")
	}
	t, err := target(ctx, s.TargetID)
	if err != nil {
		return Outcome{}, err
	}
	res, err := systems.Steal(ctx.Player.Resources, t.Resources, ctx.Spec.Mechanics.Economy.Currencies)
	switch {
	case errors.Is(err, systems.ErrNoCurrencies):
		return Outcome{}, errors.New("No currencies configured")
	case errors.Is(err, systems.ErrNothingToSteal):
		return Outcome{}, errors.New("Nothing to steal")
	case err != nil:
		return Outcome{}, err
	}

	p := ctx.Player
	p.Resources = res.Thief
	t.Resources = res.Victim
	out := Outcome{}
	out.Updates.SetPlayer(p)
	out.Updates.SetPlayer(t)
	for _, k := range sortedKeys(res.Stolen) {
		out.Effects = append(out.Effects, models.Effect{Type: models.EffectSteal, SourceID: t.ID, TargetID: p.ID, Resource: k, Amount: res.Stolen[k]})
	}
	return out, nil
}

func handleUseItem(ctx Context, u UseItem) (Outcome, error) {
	idx := slices.Index(ctx.Player.Inventory, u.ItemID)
	if idx < 0 {
		return Outcome{}, errors.New("Item not in inventory")
	}
	item, ok := ctx.Spec.Item(u.ItemID)
	if !ok {
		return Outcome{}, fmt.Errorf("Unknown item: %s", u.ItemID)
	}
	if u.TargetID != "" {
		if _, ok := ctx.Players[u.TargetID]; !ok {
			return Outcome{}, fmt.Errorf("Target not found: %s", u.TargetID)
		}
	}

	p := ctx.Player
	if item.Consumable {
		p.Inventory = slices.Delete(p.Inventory, idx, idx+1)
	}
	out := applyEffects(ctx, p, u.TargetID, item.Effects)
	out.Effects = append([]models.Effect{{Type: models.EffectItem, SourceID: p.ID, TargetID: p.ID, Resource: item.ID}}, out.Effects...)
	return out, nil
}

func handleGather(ctx Context) (Outcome, error) {
	if !ctx.Caps.Has(models.CapGathering) {
		return Outcome{}, errors.New("Gathering not enabled")
	}
	p := ctx.Player
	if p.Position == nil {
		return Outcome{}, errors.New("Nothing to gather here")
	}
	world := ctx.State.WorldState.Clone()
	i := slices.IndexFunc(world.Resources, func(n models.ResourceNode) bool {
		return n.Position == *p.Position && n.Remaining > 0
	})
	if i < 0 {
		return Outcome{}, errors.New("Nothing to gather here")
	}
	node := &world.Resources[i]
	amount := min(ctx.Spec.Mechanics.Resources.GatherAmount, node.Remaining)
	node.Remaining -= amount
	p.Resources = systems.AddResources(p.Resources, map[string]int{node.Type: amount})

	out := Outcome{Effects: []models.Effect{{Type: models.EffectResource, SourceID: p.ID, TargetID: p.ID, Resource: node.Type, Amount: amount, Reason: "gather"}}}
	out.Updates.SetPlayer(p)
	out.Updates.World = &world
	return out, nil
}

func handleCraft(ctx Context, c Craft) (Outcome, error) {
	if !ctx.Caps.Has(models.CapCrafting) {
		return Outcome{}, errors.New("Crafting not enabled")
	}
	recipe, ok := ctx.Spec.Recipe(c.RecipeID)
	if !ok {
		return Outcome{}, fmt.Errorf("Unknown recipe: %s", c.RecipeID)
	}
	res, err := systems.RemoveResources(ctx.Player.Resources, recipe.Inputs)
	if err != nil {
		return Outcome{}, errors.New("Insufficient resources")
	}
	p := ctx.Player
	p.Resources = res
	p.Inventory = append(p.Inventory, recipe.Output)
	out := Outcome{Effects: []models.Effect{{Type: models.EffectItem, SourceID: p.ID, TargetID: p.ID, Resource: recipe.Output, Amount: 1}}}
	out.Updates.SetPlayer(p)
	return out, nil
}

func handleUseAbility(ctx Context, u UseAbility) (Outcome, error) {
	ability, ok := ctx.Spec.Ability(u.AbilityID)
	if !ok {
		return Outcome{}, fmt.Errorf("Unknown ability: %s", u.AbilityID)
	}
	if cd := ctx.Player.Cooldowns[ability.ID]; cd > 0 {
		return Outcome{}, fmt.Errorf("Ability on cooldown (%d turns)", cd)
	}
	if u.TargetID != "" {
		if _, ok := ctx.Players[u.TargetID]; !ok {
			return Outcome{}, fmt.Errorf("Target not found: %s", u.TargetID)
		}
	}
	p := ctx.Player
	if len(ability.Cost) > 0 {
		res, err := systems.RemoveResources(p.Resources, ability.Cost)
		if err != nil {
			return Outcome{}, errors.New("Insufficient resources")
		}
		p.Resources = res
	}

	out := applyEffects(ctx, p, u.TargetID, ability.Effects)
	actor := out.Updates.Players[p.ID]
	if ability.Cooldown > 0 {
		actor.Cooldowns[ability.ID] = ability.Cooldown
	}
	out.Updates.SetPlayer(actor)
	out.Events = append(out.Events, newEvent(ctx, models.EventAbility, p.ID, map[string]any{
		"abilityId": ability.ID,
		"targetId":  u.TargetID,
	}))
	return out, nil
}

func handleVote(ctx Context, v Vote) (Outcome, error) {
	social := ctx.Spec.Mechanics.Social
	if !ctx.Caps.Has(models.CapVoting) || social == nil {
		return Outcome{}, errors.New("Voting not enabled")
	}
	if _, ok := ctx.Players[v.TargetID]; !ok {
		return Outcome{}, fmt.Errorf("Target not found: %s", v.TargetID)
	}
	category := v.Category
	if category == "" {
		category = "default"
	}
	if len(social.VoteCategories) > 0 && !slices.Contains(social.VoteCategories, category) {
		return Outcome{}, fmt.Errorf("Unknown vote category: %s", category)
	}
	p := ctx.Player
	if p.Votes == nil {
		p.Votes = make(map[string]string)
	}
	p.Votes[category] = v.TargetID
	out := Outcome{Effects: []models.Effect{{Type: models.EffectVote, SourceID: p.ID, TargetID: v.TargetID, Resource: category}}}
	out.Updates.SetPlayer(p)
	out.Events = append(out.Events, newEvent(ctx, models.EventVote, p.ID, map[string]any{
		"targetId": v.TargetID,
		"category": category,
	}))
	return out, nil
}

func handleAnswer(ctx Context, a AnswerQuestion) (Outcome, error) {
	q := ctx.State.ActiveQuestion
	if q == nil || q.ID != a.QuestionID {
		return Outcome{}, errors.New("Question not active")
	}
	if ctx.Player.HasAnswered(q.ID) {
		return Outcome{}, errors.New("Question already answered")
	}
	elapsed := a.ElapsedMs
	if elapsed <= 0 && ctx.State.QuestionStartTime != nil {
		elapsed = ctx.Now.UnixMilli() - *ctx.State.QuestionStartTime
	}

	graded := questions.Grade(ctx.Spec, *q, a.Answer, elapsed, ctx.Player.Streak)
	p := ctx.Player
	p.Score += graded.Score.Points
	p.Streak = graded.Score.NewStreak
	p.QuestionsAnswered++
	var earned []models.Effect
	if graded.Correct {
		p.CorrectAnswers++
		if econ := ctx.Spec.Mechanics.Economy; econ != nil && len(econ.Currencies) > 0 {
			var amount int
			p.Resources, amount = systems.Earn(p.Resources, econ.EarnRates, "correctAnswer", econ.Currencies[0])
			if amount > 0 {
				earned = append(earned, models.Effect{
					Type: models.EffectResource, TargetID: p.ID, SourceID: p.ID,
					Resource: econ.Currencies[0], Amount: amount, Reason: "correctAnswer",
				})
			}
		}
	}
	p.AnsweredQuestions = append(p.AnsweredQuestions, q.ID)

	out := applyEffects(ctx, p, "", graded.Effects)
	lead := append([]models.Effect{{Type: models.EffectScore, SourceID: p.ID, TargetID: p.ID, Amount: graded.Score.Points}}, earned...)
	out.Effects = append(lead, out.Effects...)
	out.Events = append(out.Events, newEvent(ctx, models.EventAnswer, p.ID, map[string]any{
		"questionId": q.ID,
		"correct":    graded.Correct,
		"points":     graded.Score.Points,
		"timeBonus":  graded.Score.TimeBonus,
		"streak":     graded.Score.NewStreak,
	}))
	return out, nil
}

func handleSkip(ctx Context) (Outcome, error) {
	p := ctx.Player
	switch ctx.State.Phase {
	case models.PhaseQuestion:
		q := ctx.State.ActiveQuestion
		if q == nil {
			return Outcome{}, nil
		}
		if p.HasAnswered(q.ID) {
			return Outcome{}, errors.New("Question already answered")
		}
		p.QuestionsAnswered++
		p.Streak = 0
		p.AnsweredQuestions = append(p.AnsweredQuestions, q.ID)
		out := applyEffects(ctx, p, "", ctx.Spec.QuestionIntegration.OnSkip)
		out.Events = append(out.Events, newEvent(ctx, models.EventAnswer, p.ID, map[string]any{
			"questionId": q.ID,
			"skipped":    true,
		}))
		return out, nil
	case models.PhaseActive:
		if !ctx.Caps.Has(models.CapTurns) {
			return Outcome{}, nil
		}
		next := systems.NextTurn(ctx.Players, ctx.State.CurrentPlayerTurn)
		turn := ctx.State.TurnNumber + 1
		out := Outcome{Updates: models.StateUpdates{Game: &models.GamePatch{CurrentPlayerTurn: &next, TurnNumber: &turn}}}
		out.Events = append(out.Events, newEvent(ctx, models.EventTurnChange, next, map[string]any{
			"turnNumber": turn,
			"previous":   ctx.State.CurrentPlayerTurn,
		}))
		return out, nil
	default:
		return Outcome{}, nil
	}
}

// applyEffects folds configured effects with actor as the source and returns
// them as an outcome. The actor is always part of the patch.
func applyEffects(ctx Context, actor models.PlayerState, targetID string, effects []models.Effect) Outcome {
	players := models.ClonePlayers(ctx.Players)
	players[actor.ID] = actor
	res := systems.ApplyEffects(systems.EffectInput{
		Players:  players,
		World:    ctx.State.WorldState,
		ActorID:  actor.ID,
		TargetID: targetID,
		Combat:   ctx.Spec.Mechanics.Combat,
	}, effects)

	out := Outcome{Effects: res.Applied}
	out.Updates.SetPlayer(actor)
	for _, p := range res.Players {
		out.Updates.SetPlayer(p)
	}
	if res.WorldChanged {
		out.Updates.World = &res.World
	}
	for _, id := range res.Eliminated {
		out.Events = append(out.Events, newEvent(ctx, models.EventElimination, id, map[string]any{
			"targetId":   id,
			"attackerId": actor.ID,
		}))
	}
	for _, id := range res.Respawned {
		out.Events = append(out.Events, newEvent(ctx, models.EventRespawn, id, nil))
	}
	for _, z := range res.Captured {
		out.Events = append(out.Events, newEvent(ctx, models.EventZoneCaptured, actor.ID, map[string]any{"zoneId": z}))
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
