package systems

import (
	"sort"

	"github.com/google/uuid"
	"github.com/tatianab/lesson-game/internal/models"
)

// EffectInput carries what configured effects are resolved against.
type EffectInput struct {
	Players  map[string]models.PlayerState
	World    models.WorldState
	ActorID  string
	TargetID string
	Combat   *models.CombatConfig
}

// EffectOutcome is the folded result of an effect list.
type EffectOutcome struct {
	// Players holds replacements for every player an effect touched.
	Players      map[string]models.PlayerState
	World        models.WorldState
	WorldChanged bool
	Applied      []models.Effect
	Eliminated   []string
	Respawned    []string
	Captured     []string
}

// ApplyEffects folds configured effects onto copies of the input players and
// world. Effects aimed at a missing or eliminated player are skipped.
func ApplyEffects(in EffectInput, effects []models.Effect) EffectOutcome {
	out := EffectOutcome{
		Players: make(map[string]models.PlayerState),
		World:   in.World.Clone(),
	}
	get := func(id string) (models.PlayerState, bool) {
		if p, ok := out.Players[id]; ok {
			return p, true
		}
		p, ok := in.Players[id]
		if !ok {
			return models.PlayerState{}, false
		}
		return p.Clone(), true
	}

	for _, e := range effects {
		for _, id := range resolveTargets(in, e.Target) {
			p, ok := get(id)
			if !ok || p.Status == models.StatusEliminated {
				continue
			}
			applied, keep := applyOne(&out, p, e, in)
			if !keep {
				continue
			}
			applied.SourceID = in.ActorID
			out.Applied = append(out.Applied, applied)
		}
	}
	return out
}

func resolveTargets(in EffectInput, target string) []string {
	switch target {
	case models.TargetTarget:
		if in.TargetID == "" {
			return nil
		}
		return []string{in.TargetID}
	case models.TargetAll:
		ids := make([]string, 0, len(in.Players))
		for id := range in.Players {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return ids
	default:
		return []string{in.ActorID}
	}
}

func applyOne(out *EffectOutcome, p models.PlayerState, e models.Effect, in EffectInput) (models.Effect, bool) {
	applied := e
	applied.Target = ""
	applied.TargetID = p.ID

	switch e.Type {
	case models.EffectResource:
		if e.Resource == "" || e.Amount == 0 {
			return applied, false
		}
		p.Resources = AddResources(p.Resources, map[string]int{e.Resource: e.Amount})
	case models.EffectScore:
		p.Score = max(p.Score+e.Amount, 0)
	case models.EffectDamage:
		res := ApplyDamage(p, e.Amount, in.Combat)
		p = res.Player
		applied.Amount = res.Dealt
		if res.Eliminated {
			out.Eliminated = append(out.Eliminated, p.ID)
		}
		if res.Respawned {
			out.Respawned = append(out.Respawned, p.ID)
		}
	case models.EffectHeal:
		res := ApplyHeal(p, e.Amount)
		p = res.Player
		applied.Amount = res.Healed
	case models.EffectShield:
		p = AddShield(p, e.Amount)
		if e.Duration > 0 {
			out.World.Effects = append(out.World.Effects, models.ActiveEffect{
				ID: uuid.NewString(), Type: models.EffectShield, TargetID: p.ID, Amount: e.Amount, Remaining: e.Duration,
			})
			out.WorldChanged = true
		}
	case models.EffectFreeze:
		p.Status = models.StatusFrozen
		out.World.Effects = append(out.World.Effects, models.ActiveEffect{
			ID: uuid.NewString(), Type: models.EffectFreeze, TargetID: p.ID, Remaining: max(e.Duration, 1),
		})
		out.WorldChanged = true
	case models.EffectInfluence:
		zoneID, ok := out.World.ZoneOf(p.ID)
		if !ok {
			return applied, false
		}
		var captured bool
		out.World, captured = AddInfluence(out.World, zoneID, p.ID, e.Amount)
		out.WorldChanged = true
		if captured {
			out.Captured = append(out.Captured, zoneID)
		}
		applied.Resource = zoneID
	case models.EffectCooldownReset:
		p.Cooldowns = map[string]int{}
	default:
		return applied, false
	}
	p.Normalize()
	out.Players[p.ID] = p
	return applied, true
}

// ExpireEffects counts every timed effect down by one round and reverts the
// ones that reach zero. It returns the new world, replacements for players
// whose status or shield changed, and the expired effects.
func ExpireEffects(world models.WorldState, players map[string]models.PlayerState) (models.WorldState, map[string]models.PlayerState, []models.ActiveEffect) {
	w := world.Clone()
	touched := make(map[string]models.PlayerState)
	var expired []models.ActiveEffect
	kept := w.Effects[:0]
	for _, e := range w.Effects {
		e.Remaining--
		if e.Remaining > 0 {
			kept = append(kept, e)
			continue
		}
		expired = append(expired, e)
		p, ok := touched[e.TargetID]
		if !ok {
			src, found := players[e.TargetID]
			if !found {
				continue
			}
			p = src.Clone()
		}
		switch e.Type {
		case models.EffectFreeze:
			if p.Status == models.StatusFrozen {
				p.Status = models.StatusActive
				if p.Shield > 0 {
					p.Status = models.StatusShielded
				}
			}
		case models.EffectShield:
			p.Shield = max(p.Shield-e.Amount, 0)
			if p.Shield == 0 && p.Status == models.StatusShielded {
				p.Status = models.StatusActive
			}
		}
		touched[p.ID] = p
	}
	w.Effects = kept
	return w, touched, expired
}
