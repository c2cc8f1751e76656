package systems

import (
	"sort"

	"github.com/tatianab/lesson-game/internal/models"
)

// TurnOrder returns the ids of players that can hold the turn, sorted by id.
func TurnOrder(players map[string]models.PlayerState) []string {
	var ids []string
	for id, p := range players {
		if p.Status != models.StatusEliminated {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// NextTurn returns the player after current in turn order, wrapping around.
// An empty current yields the first player. It returns "" when
// nobody can take a turn.
func NextTurn(players map[string]models.PlayerState, current string) string {
	order := TurnOrder(players)
	if len(order) == 0 {
		return ""
	}
	for _, id := range order {
		if id > current {
			return id
		}
	}
	return order[0]
}
