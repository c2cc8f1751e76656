package models

import "maps"

// Clone returns a deep copy of the player.
func (p PlayerState) Clone() PlayerState {
	out := p
	if p.Position != nil {
		pos := *p.Position
		out.Position = &pos
	}
	out.Resources = maps.Clone(p.Resources)
	if out.Resources == nil {
		out.Resources = map[string]int{}
	}
	out.Cooldowns = maps.Clone(p.Cooldowns)
	if out.Cooldowns == nil {
		out.Cooldowns = map[string]int{}
	}
	out.Votes = maps.Clone(p.Votes)
	out.Inventory = append([]string(nil), p.Inventory...)
	out.AnsweredQuestions = append([]string(nil), p.AnsweredQuestions...)
	if p.LastAction != nil {
		la := *p.LastAction
		out.LastAction = &la
	}
	return out
}

// Normalize clamps resources to be non-negative and health to [0, MaxHealth].
func (p *PlayerState) Normalize() {
	for k, v := range p.Resources {
		if v < 0 {
			p.Resources[k] = 0
		}
	}
	if p.Health < 0 {
		p.Health = 0
	}
	if p.MaxHealth > 0 && p.Health > p.MaxHealth {
		p.Health = p.MaxHealth
	}
	if p.Shield < 0 {
		p.Shield = 0
	}
}

// Clone returns a deep copy of the world.
func (w WorldState) Clone() WorldState {
	out := WorldState{
		Zones:     make(map[string]ZoneState, len(w.Zones)),
		Resources: append([]ResourceNode(nil), w.Resources...),
		Effects:   append([]ActiveEffect(nil), w.Effects...),
	}
	for id, z := range w.Zones {
		out.Zones[id] = z.Clone()
	}
	for _, e := range w.Entities {
		e.Properties = maps.Clone(e.Properties)
		out.Entities = append(out.Entities, e)
	}
	return out
}

// Clone returns a deep copy of the zone.
func (z ZoneState) Clone() ZoneState {
	out := z
	out.Influence = maps.Clone(z.Influence)
	if out.Influence == nil {
		out.Influence = map[string]int{}
	}
	out.Occupants = append([]string(nil), z.Occupants...)
	return out
}

// ZoneOf returns the id of the zone whose occupant list holds playerID.
func (w WorldState) ZoneOf(playerID string) (string, bool) {
	for id, z := range w.Zones {
		for _, occ := range z.Occupants {
			if occ == playerID {
				return id, true
			}
		}
	}
	return "", false
}

// Clone returns a deep copy of the state. Events are copied by slice; the
// entries themselves are never mutated after they are appended.
func (s GameState) Clone() GameState {
	out := s
	if s.TimeRemaining != nil {
		v := *s.TimeRemaining
		out.TimeRemaining = &v
	}
	if s.ActiveQuestion != nil {
		q := *s.ActiveQuestion
		out.ActiveQuestion = &q
	}
	if s.QuestionStartTime != nil {
		v := *s.QuestionStartTime
		out.QuestionStartTime = &v
	}
	out.WorldState = s.WorldState.Clone()
	out.Events = append([]GameEvent(nil), s.Events...)
	out.Winners = append([]string(nil), s.Winners...)
	return out
}

// ClonePlayers deep-copies a player map.
func ClonePlayers(players map[string]PlayerState) map[string]PlayerState {
	out := make(map[string]PlayerState, len(players))
	for id, p := range players {
		out[id] = p.Clone()
	}
	return out
}
