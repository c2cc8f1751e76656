package systems

import (
	"errors"
	"fmt"

	"github.com/tatianab/lesson-game/internal/models"
)

var (
	ErrOutOfBounds = errors.New("position out of bounds")
	ErrBlocked     = errors.New("position blocked by obstacle")
	ErrUnreachable = errors.New("zone not reachable")
)

// TooFarError reports a move longer than the per-turn allowance.
type TooFarError struct {
	Max      int
	Distance int
}

func (e *TooFarError) Error() string {
	return fmt.Sprintf("can only move %d spaces, requested %d", e.Max, e.Distance)
}

// HopError reports a zone move needing more hops than the per-turn allowance.
type HopError struct {
	Max  int
	Hops int
}

func (e *HopError) Error() string {
	return fmt.Sprintf("can only move %d zones, requested %d", e.Max, e.Hops)
}

// Manhattan returns the grid distance between two cells.
func Manhattan(a, b models.Position) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// ValidateMove checks a grid move. A player without a position may be placed
// on any free in-bounds cell.
func ValidateMove(from *models.Position, to models.Position, world models.WorldConfig, cfg models.MovementConfig) error {
	if !world.InBounds(to) {
		return ErrOutOfBounds
	}
	if !cfg.PassThroughObstacles && world.IsObstacle(to) {
		return ErrBlocked
	}
	if from == nil {
		return nil
	}
	if d := Manhattan(*from, to); d > cfg.MovementPerTurn {
		return &TooFarError{Max: cfg.MovementPerTurn, Distance: d}
	}
	return nil
}

// ValidateZoneHop checks a zone-to-zone move. Zones whose bounds overlap or
// share an edge are one hop apart, and a move may take at most
// MovementPerTurn hops. A player outside every zone may enter any zone.
func ValidateZoneHop(zones []models.ZoneConfig, from, to string, cfg models.MovementConfig) error {
	if from == "" || from == to {
		return nil
	}
	hops, ok := zoneHops(zones, from, to)
	if !ok {
		return ErrUnreachable
	}
	if hops > cfg.MovementPerTurn {
		return &HopError{Max: cfg.MovementPerTurn, Hops: hops}
	}
	return nil
}

// zoneHops is a breadth-first search over zone adjacency.
func zoneHops(zones []models.ZoneConfig, from, to string) (int, bool) {
	dist := map[string]int{from: 0}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			return dist[cur], true
		}
		a, ok := zoneBounds(zones, cur)
		if !ok {
			continue
		}
		for _, z := range zones {
			if _, seen := dist[z.ID]; seen || !Adjacent(a, z.Bounds) {
				continue
			}
			dist[z.ID] = dist[cur] + 1
			queue = append(queue, z.ID)
		}
	}
	return 0, false
}

func zoneBounds(zones []models.ZoneConfig, id string) (models.Bounds, bool) {
	for _, z := range zones {
		if z.ID == id {
			return z.Bounds, true
		}
	}
	return models.Bounds{}, false
}

// Adjacent reports whether two rectangles overlap or touch.
func Adjacent(a, b models.Bounds) bool {
	gapX := max(a.X-(b.X+b.Width), b.X-(a.X+a.Width), 0)
	gapY := max(a.Y-(b.Y+b.Height), b.Y-(a.Y+a.Height), 0)
	return gapX == 0 && gapY == 0
}

// ZoneAt returns the first zone containing p.
func ZoneAt(zones []models.ZoneConfig, p models.Position) (string, bool) {
	for _, z := range zones {
		if z.Bounds.Contains(p) {
			return z.ID, true
		}
	}
	return "", false
}

// ZoneTransitions compares zone containment before and after a move and
// returns the zones entered and left, in specification order.
func ZoneTransitions(zones []models.ZoneConfig, from *models.Position, to models.Position) (entered, left []string) {
	for _, z := range zones {
		wasIn := from != nil && z.Bounds.Contains(*from)
		isIn := z.Bounds.Contains(to)
		switch {
		case isIn && !wasIn:
			entered = append(entered, z.ID)
		case wasIn && !isIn:
			left = append(left, z.ID)
		}
	}
	return entered, left
}

// SpawnPosition returns the first in-bounds free cell scanning row by row,
// skipping obstacles and cells listed in taken.
func SpawnPosition(world models.WorldConfig, taken []models.Position) (models.Position, bool) {
	if world.Width <= 0 || world.Height <= 0 {
		return models.Position{}, false
	}
	occupied := make(map[models.Position]bool, len(taken))
	for _, p := range taken {
		occupied[p] = true
	}
	for y := 0; y < world.Height; y++ {
		for x := 0; x < world.Width; x++ {
			p := models.Position{X: x, Y: y}
			if !world.IsObstacle(p) && !occupied[p] {
				return p, true
			}
		}
	}
	return models.Position{}, false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
