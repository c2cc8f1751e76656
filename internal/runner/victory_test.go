package runner

import (
	"reflect"
	"testing"

	"github.com/tatianab/lesson-game/internal/models"
)

func victoryPlayers() map[string]models.PlayerState {
	return map[string]models.PlayerState{
		"a": {ID: "a", Score: 120, Status: models.StatusActive, Resources: map[string]int{"gold": 5}, QuestionsAnswered: 3},
		"b": {ID: "b", Score: 300, Status: models.StatusActive, Resources: map[string]int{"gold": 50}, QuestionsAnswered: 4},
		"c": {ID: "c", Score: 300, Status: models.StatusEliminated, Resources: map[string]int{}, QuestionsAnswered: 1},
	}
}

func TestCheckVictoryConditions(t *testing.T) {
	world := models.WorldState{Zones: map[string]models.ZoneState{
		"hill":  {ControllerID: "a"},
		"ridge": {ControllerID: "a"},
		"ford":  {},
	}}
	tests := []struct {
		name      string
		victory   models.VictoryConfig
		state     models.GameState
		wantDone  bool
		winners   []string
		wantError bool
	}{
		{
			name:     "score threshold",
			victory:  models.VictoryConfig{Type: models.VictoryCollective, Conditions: []models.Condition{{Type: models.ConditionScoreThreshold, Threshold: 200}}},
			wantDone: true,
			winners:  []string{"b", "c"},
		},
		{
			name:    "zero threshold never fires",
			victory: models.VictoryConfig{Type: models.VictoryCollective, Conditions: []models.Condition{{Type: models.ConditionScoreThreshold}}},
		},
		{
			name:     "resource amount",
			victory:  models.VictoryConfig{Type: models.VictoryCollective, Conditions: []models.Condition{{Type: models.ConditionResourceAmount, Resource: "gold", Threshold: 40}}},
			wantDone: true,
			winners:  []string{"b"},
		},
		{
			name:     "questions answered",
			victory:  models.VictoryConfig{Type: models.VictoryCollective, Conditions: []models.Condition{{Type: models.ConditionQuestionsAnswered, Threshold: 3}}},
			wantDone: true,
			winners:  []string{"b", "a"},
		},
		{
			name:     "elimination count",
			victory:  models.VictoryConfig{Type: models.VictoryCollective, Conditions: []models.Condition{{Type: models.ConditionEliminationCount, Threshold: 1}}},
			wantDone: true,
			winners:  []string{"a", "b"},
		},
		{
			name:     "named zone controlled",
			victory:  models.VictoryConfig{Type: models.VictoryCollective, Conditions: []models.Condition{{Type: models.ConditionZoneControl, ZoneID: "hill"}}},
			state:    models.GameState{WorldState: world},
			wantDone: true,
			winners:  []string{"a"},
		},
		{
			name:    "named zone uncontrolled",
			victory: models.VictoryConfig{Type: models.VictoryCollective, Conditions: []models.Condition{{Type: models.ConditionZoneControl, ZoneID: "ford"}}},
			state:   models.GameState{WorldState: world},
		},
		{
			name:      "unknown zone surfaces as error",
			victory:   models.VictoryConfig{Type: models.VictoryCollective, Conditions: []models.Condition{{Type: models.ConditionZoneControl, ZoneID: "moon"}}},
			state:     models.GameState{WorldState: world},
			wantError: true,
		},
		{
			name:     "zone count",
			victory:  models.VictoryConfig{Type: models.VictoryCollective, Conditions: []models.Condition{{Type: models.ConditionZoneControl, Threshold: 2}}},
			state:    models.GameState{WorldState: world},
			wantDone: true,
			winners:  []string{"a"},
		},
		{
			name:     "custom expression",
			victory:  models.VictoryConfig{Type: models.VictoryCollective, Conditions: []models.Condition{{Type: models.ConditionCustom, Expression: "players.filter(p => p.status === 'active').length === 2 && state.roundNumber >= 3"}}},
			state:    models.GameState{RoundNumber: 3},
			wantDone: true,
			winners:  []string{"b", "c"},
		},
		{
			name:    "custom expression false",
			victory: models.VictoryConfig{Type: models.VictoryCollective, Conditions: []models.Condition{{Type: models.ConditionCustom, Expression: "state.roundNumber > 10"}}},
			state:   models.GameState{RoundNumber: 3},
		},
		{
			name:      "custom expression runaway",
			victory:   models.VictoryConfig{Type: models.VictoryCollective, Conditions: []models.Condition{{Type: models.ConditionCustom, Expression: "while (true) {}"}}},
			wantError: true,
		},
		{
			name:      "broken condition does not hide later ones",
			victory:   models.VictoryConfig{Type: models.VictoryCollective, Conditions: []models.Condition{{Type: models.ConditionCustom, Expression: "nope("}, {Type: models.ConditionScoreThreshold, Threshold: 100}}},
			wantDone:  true,
			winners:   []string{"b", "c", "a"},
			wantError: true,
		},
		{
			name:    "score waits for questions",
			victory: models.VictoryConfig{Type: models.VictoryScore},
			state:   models.GameState{CurrentQuestionIndex: 1},
		},
		{
			name:     "score after last question",
			victory:  models.VictoryConfig{Type: models.VictoryScore},
			state:    models.GameState{CurrentQuestionIndex: 2},
			wantDone: true,
			winners:  []string{"b", "c"},
		},
		{
			name:    "elimination with two alive",
			victory: models.VictoryConfig{Type: models.VictoryElimination},
		},
		{
			name:    "collective never completes by itself",
			victory: models.VictoryConfig{Type: models.VictoryCollective},
			state:   models.GameState{CurrentQuestionIndex: 2, TimeRemaining: new(int)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := &models.GameSpecification{
				Victory:   tt.victory,
				Questions: []models.Question{{ID: "q1"}, {ID: "q2"}},
			}
			winners, done, err := CheckVictory(spec, tt.state, victoryPlayers())
			if (err != nil) != tt.wantError {
				t.Fatalf("err = %v, want error %v", err, tt.wantError)
			}
			if done != tt.wantDone {
				t.Fatalf("done = %v, want %v", done, tt.wantDone)
			}
			if done && !reflect.DeepEqual(winners, tt.winners) {
				t.Fatalf("winners = %v, want %v", winners, tt.winners)
			}
		})
	}
}

func TestFallbackWinners(t *testing.T) {
	players := victoryPlayers()
	if got := fallbackWinners(models.VictoryScore, players); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("score fallback = %v", got)
	}
	if got := fallbackWinners(models.VictorySurvival, players); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("survival fallback = %v", got)
	}
	if got := fallbackWinners(models.VictoryCollective, players); len(got) != 0 {
		t.Fatalf("collective fallback = %v", got)
	}
	if got := topScorers(nil); got == nil || len(got) != 0 {
		t.Fatalf("topScorers(nil) = %#v", got)
	}
}
