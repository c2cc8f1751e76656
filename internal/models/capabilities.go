package models

// Capability is a mechanic a session has switched on.
type Capability uint16

const (
	CapMovement Capability = 1 << iota
	CapCombat
	CapEconomy
	CapTrading
	CapStealing
	CapVoting
	CapGathering
	CapCrafting
	CapTurns
)

// Capabilities is the set of enabled mechanics, derived once per session.
type Capabilities Capability

// Has reports whether c is enabled.
func (cs Capabilities) Has(c Capability) bool {
	return Capability(cs)&c != 0
}

// Capabilities derives the enabled mechanic set from the specification.
func (s *GameSpecification) Capabilities() Capabilities {
	var c Capability
	m := s.Mechanics
	if m.Movement != nil {
		c |= CapMovement
	}
	if m.Combat != nil {
		c |= CapCombat
	}
	if m.Economy != nil {
		c |= CapEconomy
		if m.Economy.TradingEnabled {
			c |= CapTrading
		}
		if m.Economy.StealingEnabled {
			c |= CapStealing
		}
	}
	if m.Social != nil && m.Social.VotingEnabled {
		c |= CapVoting
	}
	if m.Resources != nil {
		if len(m.Resources.Types) > 0 {
			c |= CapGathering
		}
		if len(m.Resources.Recipes) > 0 {
			c |= CapCrafting
		}
	}
	if m.Timer != nil && m.Timer.TurnDuration > 0 {
		c |= CapTurns
	}
	return Capabilities(c)
}
