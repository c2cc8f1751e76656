// Package questions sequences, delivers and grades the questions of one
// session.
package questions

import (
	"slices"

	"github.com/tatianab/lesson-game/internal/models"
	"github.com/tatianab/lesson-game/internal/systems"
)

// Manager tracks which questions were delivered and which one is current.
type Manager struct {
	spec    *models.GameSpecification
	asked   map[int]bool
	current int
}

// NewManager creates a manager over the specification's question list.
func NewManager(spec *models.GameSpecification) *Manager {
	return &Manager{spec: spec, asked: make(map[int]bool)}
}

// Restore rebuilds progress from a persisted state: every index below
// currentIndex counts as asked.
func (m *Manager) Restore(currentIndex int) {
	m.asked = make(map[int]bool, currentIndex)
	for i := 0; i < currentIndex && i < m.Count(); i++ {
		m.asked[i] = true
	}
	m.current = min(max(currentIndex, 0), m.Count())
}

// Count returns the number of questions.
func (m *Manager) Count() int {
	return len(m.spec.Questions)
}

// Current returns the current question index.
func (m *Manager) Current() int {
	return m.current
}

// Remaining returns how many questions have not been asked.
func (m *Manager) Remaining() int {
	return m.Count() - len(m.asked)
}

// Question returns the question at index.
func (m *Manager) Question(index int) (models.Question, bool) {
	if index < 0 || index >= m.Count() {
		return models.Question{}, false
	}
	return m.spec.Questions[index], true
}

// NextQuestion returns the lowest index that has not been asked. ok is false
// once every question has been delivered. The trigger is informational.
func (m *Manager) NextQuestion(trigger models.TriggerKind) (index int, q models.Question, ok bool) {
	for i := 0; i < m.Count(); i++ {
		if !m.asked[i] {
			return i, m.spec.Questions[i], true
		}
	}
	return m.Count(), models.Question{}, false
}

// MarkAsked records index as delivered and moves the current index past it.
// The current index never moves backwards.
func (m *Manager) MarkAsked(index int) {
	if index < 0 || index >= m.Count() {
		return
	}
	m.asked[index] = true
	m.current = max(m.current, index+1)
}

// Asked reports whether index was delivered.
func (m *Manager) Asked(index int) bool {
	return m.asked[index]
}

// Outcome is the graded result of one answer.
type Outcome struct {
	Correct bool
	Score   systems.ScoreResult
	Effects []models.Effect
}

// ProcessAnswer grades answer for the question at index, marks it asked and
// advances the current index. Preventing duplicate submissions per player is
// the caller's job.
func (m *Manager) ProcessAnswer(index int, answer models.Answer, elapsedMs int64, streak int) (Outcome, bool) {
	q, ok := m.Question(index)
	if !ok {
		return Outcome{}, false
	}
	out := Grade(m.spec, q, answer, elapsedMs, streak)
	m.MarkAsked(index)
	return out, true
}

// Grade checks answer against q and computes its score and effect list.
func Grade(spec *models.GameSpecification, q models.Question, answer models.Answer, elapsedMs int64, streak int) Outcome {
	correct := CheckAnswer(q, answer)
	cfg := spec.Scoring
	if q.Points > 0 {
		cfg.BasePoints = q.Points
	}
	out := Outcome{
		Correct: correct,
		Score:   systems.CalculateScore(cfg, elapsedMs, spec.QuestionTimeLimitMs(q), streak, correct),
	}
	if correct {
		out.Effects = spec.QuestionIntegration.OnCorrect
	} else {
		out.Effects = spec.QuestionIntegration.OnIncorrect
	}
	return out
}

// CheckAnswer is exact string equality for single answers, positional
// equality for ordered list answers and multiset equality for unordered ones.
func CheckAnswer(q models.Question, answer models.Answer) bool {
	want := q.CorrectAnswer
	if !want.List {
		return !answer.List && answer.String() == want.String()
	}
	if len(answer.Values) != len(want.Values) {
		return false
	}
	if q.Ordered() {
		return slices.Equal(answer.Values, want.Values)
	}
	a := slices.Sorted(slices.Values(answer.Values))
	b := slices.Sorted(slices.Values(want.Values))
	return slices.Equal(a, b)
}
