// Package systems holds the pure rule computations of the runtime. Every
// function takes value snapshots and returns new values; nothing here owns
// state or performs I/O.
package systems

import "github.com/tatianab/lesson-game/internal/models"

// DamageResult is the outcome of applying damage to one player.
type DamageResult struct {
	Player     models.PlayerState
	Absorbed   int
	Dealt      int
	Eliminated bool
	Respawned  bool
}

// ApplyDamage lets the shield absorb first and takes the rest from health,
// flooring at zero. A player who reaches zero health is eliminated, unless
// respawn is enabled in which case they come back at full health.
func ApplyDamage(target models.PlayerState, amount int, cfg *models.CombatConfig) DamageResult {
	p := target.Clone()
	res := DamageResult{Player: p}
	if amount <= 0 || p.Status == models.StatusEliminated {
		return res
	}

	absorbed := min(p.Shield, amount)
	p.Shield -= absorbed
	remaining := amount - absorbed
	if p.Shield == 0 && p.Status == models.StatusShielded {
		p.Status = models.StatusActive
	}

	dealt := min(p.Health, remaining)
	p.Health -= dealt
	res.Absorbed = absorbed
	res.Dealt = dealt

	// Only damage that empties a health pool eliminates.
	if dealt > 0 && p.Health <= 0 {
		p.Health = 0
		res.Eliminated = true
		if cfg != nil && cfg.Respawn {
			p.Health = p.MaxHealth
			p.Shield = 0
			p.Status = models.StatusActive
			res.Respawned = true
		} else {
			p.Status = models.StatusEliminated
		}
	}
	res.Player = p
	return res
}

// HealResult is the outcome of a heal.
type HealResult struct {
	Player   models.PlayerState
	Healed   int
	Overheal int
}

// ApplyHeal restores health up to MaxHealth and reports what did not fit.
// Eliminated players stay eliminated.
func ApplyHeal(target models.PlayerState, amount int) HealResult {
	p := target.Clone()
	if amount <= 0 || p.Status == models.StatusEliminated {
		return HealResult{Player: p}
	}
	room := max(p.MaxHealth-p.Health, 0)
	healed := min(room, amount)
	p.Health += healed
	return HealResult{Player: p, Healed: healed, Overheal: amount - healed}
}

// AttackResult is the outcome of one attack.
type AttackResult struct {
	DamageResult
	// Blocked is set when friendly fire is disabled and both players share a
	// faction. The target is returned unchanged.
	Blocked bool
}

// ProcessAttack applies the configured attack damage from attacker to target.
func ProcessAttack(attacker, target models.PlayerState, cfg *models.CombatConfig) AttackResult {
	if cfg == nil {
		return AttackResult{DamageResult: DamageResult{Player: target.Clone()}}
	}
	if SameFaction(attacker, target) && !cfg.FriendlyFire {
		return AttackResult{DamageResult: DamageResult{Player: target.Clone()}, Blocked: true}
	}
	return AttackResult{DamageResult: ApplyDamage(target, cfg.DamagePerAttack, cfg)}
}

// SameFaction reports whether both players belong to the same non-empty
// faction.
func SameFaction(a, b models.PlayerState) bool {
	return a.Faction != "" && a.Faction == b.Faction
}

// AddShield raises the shield and marks an active player as shielded.
func AddShield(target models.PlayerState, amount int) models.PlayerState {
	p := target.Clone()
	if amount <= 0 || p.Status == models.StatusEliminated {
		return p
	}
	p.Shield += amount
	if p.Status == models.StatusActive {
		p.Status = models.StatusShielded
	}
	return p
}
