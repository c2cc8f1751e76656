package systems

import (
	"errors"
	"slices"
	"testing"

	"github.com/tatianab/lesson-game/internal/models"
)

func TestValidateMove(t *testing.T) {
	world := models.WorldConfig{
		Width:     10,
		Height:    10,
		Obstacles: []models.Position{{X: 2, Y: 0}},
	}
	cfg := models.MovementConfig{MovementPerTurn: 3}
	origin := &models.Position{X: 0, Y: 0}

	tests := []struct {
		name string
		from *models.Position
		to   models.Position
		cfg  models.MovementConfig
		want error
	}{
		{name: "within range", from: origin, to: models.Position{X: 1, Y: 2}, cfg: cfg},
		{name: "out of bounds", from: origin, to: models.Position{X: -1, Y: 0}, cfg: cfg, want: ErrOutOfBounds},
		{name: "obstacle", from: origin, to: models.Position{X: 2, Y: 0}, cfg: cfg, want: ErrBlocked},
		{name: "pass through", from: origin, to: models.Position{X: 2, Y: 0}, cfg: models.MovementConfig{MovementPerTurn: 3, PassThroughObstacles: true}},
		{name: "first placement", from: nil, to: models.Position{X: 9, Y: 9}, cfg: cfg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMove(tt.from, tt.to, world, tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateMoveTooFar(t *testing.T) {
	err := ValidateMove(&models.Position{}, models.Position{X: 2, Y: 2}, models.WorldConfig{Width: 10, Height: 10}, models.MovementConfig{MovementPerTurn: 3})
	var tooFar *TooFarError
	if !errors.As(err, &tooFar) {
		t.Fatalf("err = %v, want TooFarError", err)
	}
	if tooFar.Max != 3 || tooFar.Distance != 4 {
		t.Fatalf("got %+v", tooFar)
	}
}

func TestZoneTransitions(t *testing.T) {
	zones := []models.ZoneConfig{
		{ID: "north", Bounds: models.Bounds{X: 0, Y: 0, Width: 5, Height: 2}},
		{ID: "south", Bounds: models.Bounds{X: 0, Y: 3, Width: 5, Height: 2}},
	}
	entered, left := ZoneTransitions(zones, &models.Position{X: 1, Y: 1}, models.Position{X: 1, Y: 3})
	if !slices.Equal(entered, []string{"south"}) || !slices.Equal(left, []string{"north"}) {
		t.Fatalf("entered=%v left=%v", entered, left)
	}

	entered, left = ZoneTransitions(zones, nil, models.Position{X: 1, Y: 0})
	if !slices.Equal(entered, []string{"north"}) || left != nil {
		t.Fatalf("entered=%v left=%v", entered, left)
	}
}

func TestSpawnPosition(t *testing.T) {
	world := models.WorldConfig{Width: 2, Height: 2, Obstacles: []models.Position{{X: 0, Y: 0}}}
	p, ok := SpawnPosition(world, []models.Position{{X: 1, Y: 0}})
	if !ok || p != (models.Position{X: 0, Y: 1}) {
		t.Fatalf("spawn = %v %v", p, ok)
	}
	if _, ok := SpawnPosition(models.WorldConfig{}, nil); ok {
		t.Fatal("unbounded world should not pick a spawn")
	}
}

func TestPlaceOccupantKeepsSingleMembership(t *testing.T) {
	w := InitWorld(models.WorldConfig{Zones: []models.ZoneConfig{{ID: "a"}, {ID: "b"}}})
	w = PlaceOccupant(w, "p1", "a")
	w = PlaceOccupant(w, "p1", "b")
	w = PlaceOccupant(w, "p1", "b")

	count := 0
	for _, z := range w.Zones {
		for _, occ := range z.Occupants {
			if occ == "p1" {
				count++
			}
		}
	}
	if count != 1 {
		t.Fatalf("p1 occupies %d zones", count)
	}
	if zone, _ := w.ZoneOf("p1"); zone != "b" {
		t.Fatalf("zone = %s", zone)
	}
}

func TestAddInfluenceControl(t *testing.T) {
	w := InitWorld(models.WorldConfig{Zones: []models.ZoneConfig{{ID: "hill"}}})

	w, captured := AddInfluence(w, "hill", "p1", 2)
	if !captured || w.Zones["hill"].ControllerID != "p1" {
		t.Fatalf("p1 should control hill: %+v", w.Zones["hill"])
	}
	w, captured = AddInfluence(w, "hill", "p2", 2)
	if captured || w.Zones["hill"].ControllerID != "p1" {
		t.Fatalf("tie should keep controller: %+v", w.Zones["hill"])
	}
	w, captured = AddInfluence(w, "hill", "p2", 1)
	if !captured || w.Zones["hill"].ControllerID != "p2" {
		t.Fatalf("p2 should take hill: %+v", w.Zones["hill"])
	}
	if ControlledZones(w, "p2") != 1 {
		t.Fatal("expected p2 to control one zone")
	}
}

func TestValidateZoneHop(t *testing.T) {
	// west | mid | east in a row, island off on its own.
	zones := []models.ZoneConfig{
		{ID: "west", Bounds: models.Bounds{X: 0, Y: 0, Width: 2, Height: 2}},
		{ID: "mid", Bounds: models.Bounds{X: 2, Y: 0, Width: 2, Height: 2}},
		{ID: "east", Bounds: models.Bounds{X: 4, Y: 0, Width: 2, Height: 2}},
		{ID: "island", Bounds: models.Bounds{X: 8, Y: 8, Width: 1, Height: 1}},
	}
	one := models.MovementConfig{Type: models.MovementZone, MovementPerTurn: 1}

	if err := ValidateZoneHop(zones, "west", "mid", one); err != nil {
		t.Errorf("adjacent hop: %v", err)
	}
	if err := ValidateZoneHop(zones, "", "east", one); err != nil {
		t.Errorf("entering from outside: %v", err)
	}
	var hops *HopError
	if err := ValidateZoneHop(zones, "west", "east", one); !errors.As(err, &hops) || hops.Hops != 2 {
		t.Errorf("two hops = %v", err)
	}
	if err := ValidateZoneHop(zones, "west", "east", models.MovementConfig{MovementPerTurn: 2}); err != nil {
		t.Errorf("two hops allowed: %v", err)
	}
	if err := ValidateZoneHop(zones, "west", "island", models.MovementConfig{MovementPerTurn: 9}); !errors.Is(err, ErrUnreachable) {
		t.Errorf("island = %v, want ErrUnreachable", err)
	}
}
