package models

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scoring and combat defaults applied by Normalize.
const (
	DefaultBasePoints       = 100
	DefaultTimeBonus        = 50
	DefaultStreakMultiplier = 0.1
	DefaultMaxStreak        = 5
	DefaultQuestionSeconds  = 30
	DefaultMaxHealth        = 100
	DefaultDamagePerAttack  = 10
	DefaultGatherAmount     = 1
)

// ParseSpecification decodes a YAML (or JSON) specification and applies
// defaults.
func ParseSpecification(data []byte) (*GameSpecification, error) {
	var spec GameSpecification
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse specification: %w", err)
	}
	spec.Normalize()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// LoadSpecification reads a specification file from disk.
func LoadSpecification(path string) (*GameSpecification, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSpecification(data)
}

// Normalize fills in zero-valued tuning fields with defaults.
func (s *GameSpecification) Normalize() {
	if s.Scoring.BasePoints == 0 {
		s.Scoring.BasePoints = DefaultBasePoints
	}
	if s.Scoring.TimeBonus == 0 {
		s.Scoring.TimeBonus = DefaultTimeBonus
	}
	if s.Scoring.StreakMultiplier == 0 {
		s.Scoring.StreakMultiplier = DefaultStreakMultiplier
	}
	if s.Scoring.MaxStreak == 0 {
		s.Scoring.MaxStreak = DefaultMaxStreak
	}
	if s.World.Type == "" {
		s.World.Type = WorldGrid
	}
	if s.Victory.Type == "" {
		s.Victory.Type = VictoryScore
	}
	if s.QuestionIntegration.Trigger == "" {
		s.QuestionIntegration.Trigger = TriggerTurn
	}
	if c := s.Mechanics.Combat; c != nil {
		if c.MaxHealth == 0 {
			c.MaxHealth = DefaultMaxHealth
		}
		if c.StartingHealth == 0 {
			c.StartingHealth = c.MaxHealth
		}
		if c.DamagePerAttack == 0 {
			c.DamagePerAttack = DefaultDamagePerAttack
		}
		if c.ShieldPerDefend == 0 {
			c.ShieldPerDefend = c.DamagePerAttack
		}
	}
	if m := s.Mechanics.Movement; m != nil {
		if m.Type == "" {
			m.Type = MovementGrid
		}
		if m.MovementPerTurn == 0 {
			m.MovementPerTurn = 1
		}
	}
	if r := s.Mechanics.Resources; r != nil && r.GatherAmount == 0 {
		r.GatherAmount = DefaultGatherAmount
	}
}

// Validate checks only the structural fields the runtime depends on.
// Semantic problems such as a condition naming an unknown zone surface at
// runtime instead.
func (s *GameSpecification) Validate() error {
	var errs []error
	switch s.World.Type {
	case WorldGrid, WorldZones, WorldTrack, WorldFreeform:
	default:
		errs = append(errs, fmt.Errorf("unknown world type %q", s.World.Type))
	}
	switch s.Victory.Type {
	case VictoryScore, VictoryElimination, VictorySurvival, VictoryCollective:
	default:
		errs = append(errs, fmt.Errorf("unknown victory type %q", s.Victory.Type))
	}
	switch s.QuestionIntegration.Trigger {
	case TriggerTimed, TriggerAction, TriggerZone, TriggerCombat, TriggerTurn:
	default:
		errs = append(errs, fmt.Errorf("unknown question trigger %q", s.QuestionIntegration.Trigger))
	}
	seen := make(map[string]bool, len(s.Questions))
	for i, q := range s.Questions {
		id := strings.TrimSpace(q.ID)
		if id == "" {
			errs = append(errs, fmt.Errorf("question %d: id is required", i))
			continue
		}
		if seen[id] {
			errs = append(errs, fmt.Errorf("question %d: duplicate id %q", i, id))
		}
		seen[id] = true
	}
	return errors.Join(errs...)
}

// QuestionTimeLimitMs resolves the time limit used for time bonuses.
func (s *GameSpecification) QuestionTimeLimitMs(q Question) int64 {
	switch {
	case q.TimeLimit > 0:
		return int64(q.TimeLimit) * 1000
	case s.Mechanics.Timer != nil && s.Mechanics.Timer.QuestionDuration > 0:
		return int64(s.Mechanics.Timer.QuestionDuration) * 1000
	default:
		return DefaultQuestionSeconds * 1000
	}
}

// Ability looks up an ability definition by id.
func (s *GameSpecification) Ability(id string) (AbilityConfig, bool) {
	for _, a := range s.Players.Abilities {
		if a.ID == id {
			return a, true
		}
	}
	return AbilityConfig{}, false
}

// Item looks up an item definition by id.
func (s *GameSpecification) Item(id string) (ItemConfig, bool) {
	if s.Mechanics.Resources == nil {
		return ItemConfig{}, false
	}
	for _, it := range s.Mechanics.Resources.Items {
		if it.ID == id {
			return it, true
		}
	}
	return ItemConfig{}, false
}

// Recipe looks up a crafting recipe by id.
func (s *GameSpecification) Recipe(id string) (Recipe, bool) {
	if s.Mechanics.Resources == nil {
		return Recipe{}, false
	}
	for _, r := range s.Mechanics.Resources.Recipes {
		if r.ID == id {
			return r, true
		}
	}
	return Recipe{}, false
}

// Zone looks up a zone definition by id.
func (s *GameSpecification) Zone(id string) (ZoneConfig, bool) {
	for _, z := range s.World.Zones {
		if z.ID == id {
			return z, true
		}
	}
	return ZoneConfig{}, false
}

// IsObstacle reports whether p is a blocked cell.
func (w WorldConfig) IsObstacle(p Position) bool {
	for _, o := range w.Obstacles {
		if o == p {
			return true
		}
	}
	return false
}

// InBounds reports whether p lies inside the world. Worlds without dimensions
// are unbounded.
func (w WorldConfig) InBounds(p Position) bool {
	if w.Width <= 0 || w.Height <= 0 {
		return true
	}
	return p.X >= 0 && p.Y >= 0 && p.X < w.Width && p.Y < w.Height
}
