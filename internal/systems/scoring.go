package systems

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/tatianab/lesson-game/internal/models"
)

// ScoreResult is the outcome of grading one answer.
type ScoreResult struct {
	Points      int
	TimeBonus   int
	StreakBonus int
	NewStreak   int
}

// CalculateScore awards base points plus a linearly decaying time bonus, then
// a streak bonus of subtotal * min(newStreak, maxStreak) * multiplier. Wrong
// answers score nothing and reset the streak. Arithmetic is exact decimal so
// multipliers such as 0.1 floor the way they read.
func CalculateScore(cfg models.ScoringConfig, elapsedMs, timeLimitMs int64, currentStreak int, isCorrect bool) ScoreResult {
	if !isCorrect {
		return ScoreResult{}
	}

	timeBonus := 0
	if timeLimitMs > 0 && cfg.TimeBonus > 0 {
		elapsed := min(max(elapsedMs, 0), timeLimitMs)
		remaining := decimal.NewFromInt(1).Sub(decimal.NewFromInt(elapsed).Div(decimal.NewFromInt(timeLimitMs)))
		timeBonus = int(decimal.NewFromInt(int64(cfg.TimeBonus)).Mul(remaining).Floor().IntPart())
	}
	subtotal := cfg.BasePoints + timeBonus

	newStreak := currentStreak + 1
	effective := newStreak
	if cfg.MaxStreak > 0 {
		effective = min(newStreak, cfg.MaxStreak)
	}
	streakBonus := int(decimal.NewFromInt(int64(subtotal)).
		Mul(decimal.NewFromInt(int64(effective))).
		Mul(decimal.NewFromFloat(cfg.StreakMultiplier)).
		Floor().IntPart())

	return ScoreResult{
		Points:      subtotal + streakBonus,
		TimeBonus:   timeBonus,
		StreakBonus: streakBonus,
		NewStreak:   newStreak,
	}
}

// Ranking is one leaderboard row.
type Ranking struct {
	PlayerID          string `json:"playerId"`
	Name              string `json:"name"`
	Score             int    `json:"score"`
	CorrectAnswers    int    `json:"correctAnswers"`
	QuestionsAnswered int    `json:"questionsAnswered"`
	Rank              int    `json:"rank"`
}

// CalculateRankings orders players by score desc, correct answers desc, then
// questions answered asc. Equal tuples share a rank and the next distinct
// tuple takes its 1-based position (competition ranking).
func CalculateRankings(players []models.PlayerState) []Ranking {
	out := make([]Ranking, 0, len(players))
	for _, p := range players {
		out = append(out, Ranking{
			PlayerID:          p.ID,
			Name:              p.Name,
			Score:             p.Score,
			CorrectAnswers:    p.CorrectAnswers,
			QuestionsAnswered: p.QuestionsAnswered,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.CorrectAnswers != b.CorrectAnswers {
			return a.CorrectAnswers > b.CorrectAnswers
		}
		if a.QuestionsAnswered != b.QuestionsAnswered {
			return a.QuestionsAnswered < b.QuestionsAnswered
		}
		return a.PlayerID < b.PlayerID
	})
	for i := range out {
		if i > 0 && sameTuple(out[i], out[i-1]) {
			out[i].Rank = out[i-1].Rank
			continue
		}
		out[i].Rank = i + 1
	}
	return out
}

func sameTuple(a, b Ranking) bool {
	return a.Score == b.Score && a.CorrectAnswers == b.CorrectAnswers && a.QuestionsAnswered == b.QuestionsAnswered
}
