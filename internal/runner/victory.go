package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dop251/goja"

	"github.com/tatianab/lesson-game/internal/models"
	"github.com/tatianab/lesson-game/internal/systems"
)

// ExpressionTimeout bounds a custom victory expression.
const ExpressionTimeout = 100 * time.Millisecond

// CheckVictoryConditions reports whether the game is won and by whom.
func (r *Runner) CheckVictoryConditions() ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checkVictory()
}

func (r *Runner) checkVictory() ([]string, bool) {
	if r.spec == nil {
		return nil, false
	}
	snap := r.state.Confirmed()
	winners, done, err := CheckVictory(r.spec, snap.State, snap.Players)
	if err != nil {
		r.log.Printf("victory: %v", err)
	}
	if done {
		r.log.Printf("victory reached, winners %v", winners)
	}
	return winners, done
}

// CheckVictory evaluates the explicit conditions in order and then the
// built-in rule for the victory type. Errors from custom expressions are
// returned alongside the verdict; a failing expression never fires.
func CheckVictory(spec *models.GameSpecification, st models.GameState, players map[string]models.PlayerState) ([]string, bool, error) {
	var errs []error
	for i, c := range spec.Victory.Conditions {
		winners, done, err := evalCondition(c, st, players)
		if err != nil {
			errs = append(errs, fmt.Errorf("condition %d (%s): %w", i, c.Type, err))
			continue
		}
		if done {
			return winners, true, errors.Join(errs...)
		}
	}
	winners, done := builtinVictory(spec, st, players)
	return winners, done, errors.Join(errs...)
}

func evalCondition(c models.Condition, st models.GameState, players map[string]models.PlayerState) ([]string, bool, error) {
	switch c.Type {
	case models.ConditionScoreThreshold:
		return matching(c.Threshold, players, func(p models.PlayerState) int { return p.Score })
	case models.ConditionResourceAmount:
		return matching(c.Threshold, players, func(p models.PlayerState) int { return p.Resources[c.Resource] })
	case models.ConditionQuestionsAnswered:
		return matching(c.Threshold, players, func(p models.PlayerState) int { return p.QuestionsAnswered })
	case models.ConditionEliminationCount:
		if c.Threshold <= 0 {
			return nil, false, nil
		}
		eliminated := 0
		for _, p := range players {
			if p.Status == models.StatusEliminated {
				eliminated++
			}
		}
		if eliminated < c.Threshold {
			return nil, false, nil
		}
		return alive(players), true, nil
	case models.ConditionZoneControl:
		if c.ZoneID != "" {
			z, ok := st.WorldState.Zones[c.ZoneID]
			if !ok {
				return nil, false, fmt.Errorf("unknown zone %q", c.ZoneID)
			}
			if z.ControllerID == "" {
				return nil, false, nil
			}
			return []string{z.ControllerID}, true, nil
		}
		return matching(c.Threshold, players, func(p models.PlayerState) int {
			return systems.ControlledZones(st.WorldState, p.ID)
		})
	case models.ConditionCustom:
		ok, err := evalExpression(c.Expression, st, players)
		if err != nil || !ok {
			return nil, false, err
		}
		return topScorers(players), true, nil
	default:
		return nil, false, fmt.Errorf("unknown condition type %q", c.Type)
	}
}

// matching fires when at least one player's metric reaches threshold. Those
// players win, best first. A non-positive threshold never fires.
func matching(threshold int, players map[string]models.PlayerState, metric func(models.PlayerState) int) ([]string, bool, error) {
	if threshold <= 0 {
		return nil, false, nil
	}
	var hits []models.PlayerState
	for _, p := range players {
		if metric(p) >= threshold {
			hits = append(hits, p)
		}
	}
	if len(hits) == 0 {
		return nil, false, nil
	}
	sort.Slice(hits, func(i, j int) bool {
		if mi, mj := metric(hits[i]), metric(hits[j]); mi != mj {
			return mi > mj
		}
		return hits[i].ID < hits[j].ID
	})
	ids := make([]string, len(hits))
	for i, p := range hits {
		ids[i] = p.ID
	}
	return ids, true, nil
}

func builtinVictory(spec *models.GameSpecification, st models.GameState, players map[string]models.PlayerState) ([]string, bool) {
	switch spec.Victory.Type {
	case models.VictoryScore:
		if len(spec.Questions) > 0 && st.CurrentQuestionIndex >= len(spec.Questions) && st.ActiveQuestion == nil {
			return topScorers(players), true
		}
	case models.VictoryElimination:
		if len(players) > 1 {
			if left := alive(players); len(left) <= 1 {
				return left, true
			}
		}
	case models.VictorySurvival:
		if st.TimeRemaining != nil && *st.TimeRemaining == 0 {
			return alive(players), true
		}
	}
	return nil, false
}

// fallbackWinners names winners when the game ends without a victory, for
// example when the host ends it or questions run out.
func fallbackWinners(t models.VictoryType, players map[string]models.PlayerState) []string {
	switch t {
	case models.VictoryElimination, models.VictorySurvival:
		return alive(players)
	case models.VictoryCollective:
		return []string{}
	default:
		return topScorers(players)
	}
}

// topScorers returns every player sharing the highest score, sorted by id.
func topScorers(players map[string]models.PlayerState) []string {
	best := 0
	var ids []string
	for _, id := range sortedIDs(players) {
		p := players[id]
		switch {
		case len(ids) == 0 || p.Score > best:
			best = p.Score
			ids = []string{id}
		case p.Score == best:
			ids = append(ids, id)
		}
	}
	if ids == nil {
		return []string{}
	}
	return ids
}

func alive(players map[string]models.PlayerState) []string {
	ids := []string{}
	for _, id := range sortedIDs(players) {
		if players[id].Status != models.StatusEliminated {
			ids = append(ids, id)
		}
	}
	return ids
}

func sortedIDs(players map[string]models.PlayerState) []string {
	ids := make([]string, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// evalExpression runs a custom condition in a fresh JavaScript runtime with
// `players` (an array sorted by id) and `state` bound as plain objects.
func evalExpression(expr string, st models.GameState, players map[string]models.PlayerState) (bool, error) {
	if expr == "" {
		return false, errors.New("empty expression")
	}
	vm := goja.New()
	list := make([]models.PlayerState, 0, len(players))
	for _, id := range sortedIDs(players) {
		list = append(list, players[id])
	}
	if err := bindJSON(vm, "players", list); err != nil {
		return false, err
	}
	if err := bindJSON(vm, "state", st); err != nil {
		return false, err
	}
	vm.Set("require", goja.Undefined())
	vm.Set("eval", goja.Undefined())
	vm.Set("Function", goja.Undefined())

	timer := time.AfterFunc(ExpressionTimeout, func() {
		vm.Interrupt("expression timed out")
	})
	defer timer.Stop()

	v, err := vm.RunString(expr)
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return false, nil
	}
	return v.ToBoolean(), nil
}

// bindJSON exposes v to scripts under its JSON field names.
func bindJSON(vm *goja.Runtime, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var plain any
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	return vm.Set(name, plain)
}
