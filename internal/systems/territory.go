package systems

import (
	"slices"
	"strconv"

	"github.com/tatianab/lesson-game/internal/models"
)

// PlaceOccupant removes playerID from every zone and, when zoneID is set,
// appends it to that zone. A player therefore occupies at most one zone.
func PlaceOccupant(world models.WorldState, playerID, zoneID string) models.WorldState {
	w := world.Clone()
	for id, z := range w.Zones {
		z.Occupants = slices.DeleteFunc(z.Occupants, func(occ string) bool { return occ == playerID })
		w.Zones[id] = z
	}
	if zoneID == "" {
		return w
	}
	z := w.Zones[zoneID].Clone()
	z.Occupants = append(z.Occupants, playerID)
	w.Zones[zoneID] = z
	return w
}

// AddInfluence credits playerID with influence in zoneID and recomputes the
// controller. It reports whether control changed hands.
func AddInfluence(world models.WorldState, zoneID, playerID string, amount int) (models.WorldState, bool) {
	w := world.Clone()
	if zoneID == "" || amount <= 0 {
		return w, false
	}
	z := w.Zones[zoneID].Clone()
	z.Influence[playerID] += amount
	prev := z.ControllerID
	if leader := Leader(z.Influence); leader != "" {
		z.ControllerID = leader
	}
	w.Zones[zoneID] = z
	return w, z.ControllerID != prev
}

// Leader returns the player holding strictly the most influence, or "" on a
// tie for first place.
func Leader(influence map[string]int) string {
	best, leader, tied := 0, "", false
	for id, v := range influence {
		switch {
		case v > best:
			best, leader, tied = v, id, false
		case v == best && v > 0:
			tied = true
		}
	}
	if tied {
		return ""
	}
	return leader
}

// ControlledZones counts the zones controlled by playerID.
func ControlledZones(world models.WorldState, playerID string) int {
	n := 0
	for _, z := range world.Zones {
		if z.ControllerID == playerID {
			n++
		}
	}
	return n
}

// InitWorld builds the initial world state from the specification.
func InitWorld(cfg models.WorldConfig) models.WorldState {
	w := models.WorldState{Zones: make(map[string]models.ZoneState, len(cfg.Zones))}
	for _, z := range cfg.Zones {
		w.Zones[z.ID] = models.ZoneState{Influence: map[string]int{}, Occupants: []string{}}
	}
	for _, r := range cfg.ResourceSpawns {
		w.Resources = append(w.Resources, models.ResourceNode{
			ID:        r.ID,
			Type:      r.Type,
			Position:  r.Position,
			Remaining: r.Amount,
		})
	}
	for i, f := range cfg.Features {
		e := models.Entity{
			ID:       f.Type + "-" + strconv.Itoa(i),
			Type:     f.Type,
			Position: f.Position,
		}
		if f.Label != "" {
			e.Properties = map[string]string{"label": f.Label}
		}
		w.Entities = append(w.Entities, e)
	}
	return w
}
