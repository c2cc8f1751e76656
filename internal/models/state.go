package models

// Phase is the coarse stage of a session.
type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseCountdown Phase = "countdown"
	PhaseActive    Phase = "active"
	PhaseQuestion  Phase = "question"
	PhaseResults   Phase = "results"
	PhasePaused    Phase = "paused"
	PhaseComplete  Phase = "complete"
)

// GameState is the mutable state of one session.
type GameState struct {
	Phase                Phase       `yaml:"phase" json:"phase"`
	RoundNumber          int         `yaml:"roundNumber" json:"roundNumber"`
	TurnNumber           int         `yaml:"turnNumber" json:"turnNumber"`
	CurrentPlayerTurn    string      `yaml:"currentPlayerTurn,omitempty" json:"currentPlayerTurn,omitempty"`
	TimeRemaining        *int        `yaml:"timeRemaining,omitempty" json:"timeRemaining,omitempty"` // seconds
	CurrentQuestionIndex int         `yaml:"currentQuestionIndex" json:"currentQuestionIndex"`
	ActiveQuestion       *Question   `yaml:"activeQuestion,omitempty" json:"activeQuestion,omitempty"`
	QuestionStartTime    *int64      `yaml:"questionStartTime,omitempty" json:"questionStartTime,omitempty"` // unix millis
	WorldState           WorldState  `yaml:"worldState" json:"worldState"`
	Events               []GameEvent `yaml:"events" json:"events"`
	Winners              []string    `yaml:"winners,omitempty" json:"winners,omitempty"`
}

type WorldState struct {
	Zones     map[string]ZoneState `yaml:"zones" json:"zones"`
	Resources []ResourceNode       `yaml:"resources" json:"resources"`
	Entities  []Entity             `yaml:"entities" json:"entities"`
	Effects   []ActiveEffect       `yaml:"effects" json:"effects"`
}

type ZoneState struct {
	ControllerID string         `yaml:"controllerId,omitempty" json:"controllerId,omitempty"`
	Influence    map[string]int `yaml:"influence" json:"influence"`
	Occupants    []string       `yaml:"occupants" json:"occupants"`
}

// ResourceNode is a spawn point with what is left to gather.
type ResourceNode struct {
	ID        string   `yaml:"id" json:"id"`
	Type      string   `yaml:"type" json:"type"`
	Position  Position `yaml:"position" json:"position"`
	Remaining int      `yaml:"remaining" json:"remaining"`
}

type Entity struct {
	ID         string            `yaml:"id" json:"id"`
	Type       string            `yaml:"type" json:"type"`
	Position   Position          `yaml:"position" json:"position"`
	Properties map[string]string `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// ActiveEffect is a timed status effect. Remaining counts rounds.
type ActiveEffect struct {
	ID        string     `yaml:"id" json:"id"`
	Type      EffectType `yaml:"type" json:"type"`
	TargetID  string     `yaml:"targetId" json:"targetId"`
	Amount    int        `yaml:"amount,omitempty" json:"amount,omitempty"`
	Remaining int        `yaml:"remaining" json:"remaining"`
}

// EventType names an entry in the session event log.
type EventType string

const (
	EventPhaseChange       EventType = "phase_change"
	EventQuestionTriggered EventType = "question_triggered"
	EventGameComplete      EventType = "game_complete"
	EventAction            EventType = "action"
	EventElimination       EventType = "elimination"
	EventRespawn           EventType = "respawn"
	EventVote              EventType = "vote"
	EventAbility           EventType = "ability"
	EventAnswer            EventType = "answer"
	EventZoneEntered       EventType = "zone_entered"
	EventZoneCaptured      EventType = "zone_captured"
	EventPlayerJoined      EventType = "player_joined"
	EventPlayerLeft        EventType = "player_left"
	EventTurnChange        EventType = "turn_change"
	EventEffectExpired     EventType = "effect_expired"
)

type GameEvent struct {
	ID        string         `yaml:"id" json:"id"`
	Timestamp int64          `yaml:"timestamp" json:"timestamp"` // unix millis
	Type      EventType      `yaml:"type" json:"type"`
	PlayerID  string         `yaml:"playerId,omitempty" json:"playerId,omitempty"`
	Payload   map[string]any `yaml:"payload,omitempty" json:"payload,omitempty"`
}

type PlayerStatus string

const (
	StatusActive     PlayerStatus = "active"
	StatusEliminated PlayerStatus = "eliminated"
	StatusFrozen     PlayerStatus = "frozen"
	StatusShielded   PlayerStatus = "shielded"
)

// CanAct reports whether the status allows the player to take actions.
func (s PlayerStatus) CanAct() bool {
	return s != StatusEliminated && s != StatusFrozen
}

type PlayerState struct {
	ID                string            `yaml:"id" json:"id"`
	Name              string            `yaml:"name" json:"name"`
	Position          *Position         `yaml:"position,omitempty" json:"position,omitempty"`
	Resources         map[string]int    `yaml:"resources" json:"resources"`
	Health            int               `yaml:"health,omitempty" json:"health,omitempty"`
	MaxHealth         int               `yaml:"maxHealth,omitempty" json:"maxHealth,omitempty"`
	Shield            int               `yaml:"shield,omitempty" json:"shield,omitempty"`
	Status            PlayerStatus      `yaml:"status" json:"status"`
	Score             int               `yaml:"score" json:"score"`
	Streak            int               `yaml:"streak" json:"streak"`
	Role              string            `yaml:"role,omitempty" json:"role,omitempty"`
	Faction           string            `yaml:"faction,omitempty" json:"faction,omitempty"`
	Inventory         []string          `yaml:"inventory" json:"inventory"`
	Cooldowns         map[string]int    `yaml:"cooldowns" json:"cooldowns"`
	QuestionsAnswered int               `yaml:"questionsAnswered" json:"questionsAnswered"`
	CorrectAnswers    int               `yaml:"correctAnswers" json:"correctAnswers"`
	AnsweredQuestions []string          `yaml:"answeredQuestions,omitempty" json:"answeredQuestions,omitempty"`
	Votes             map[string]string `yaml:"votes,omitempty" json:"votes,omitempty"`
	LastAction        *LastAction       `yaml:"lastAction,omitempty" json:"lastAction,omitempty"`
}

type LastAction struct {
	Type      string `yaml:"type" json:"type"`
	Timestamp int64  `yaml:"timestamp" json:"timestamp"`
}

// HasAnswered reports whether the player already submitted for questionID.
func (p PlayerState) HasAnswered(questionID string) bool {
	for _, id := range p.AnsweredQuestions {
		if id == questionID {
			return true
		}
	}
	return false
}

// EffectType is the kind of a small typed state instruction.
type EffectType string

const (
	EffectResource      EffectType = "resource"
	EffectScore         EffectType = "score"
	EffectDamage        EffectType = "damage"
	EffectHeal          EffectType = "heal"
	EffectShield        EffectType = "shield"
	EffectFreeze        EffectType = "freeze"
	EffectInfluence     EffectType = "influence"
	EffectCooldownReset EffectType = "cooldown_reset"
	EffectMove          EffectType = "move"
	EffectTrade         EffectType = "trade"
	EffectSteal         EffectType = "steal"
	EffectItem          EffectType = "item"
	EffectVote          EffectType = "vote"
)

// Effect targets.
const (
	TargetSelf   = "self"
	TargetTarget = "target"
	TargetAll    = "all"
)

// Effect is both a configured instruction in the specification and a record of
// what an action did. Configured effects use Target; applied effects carry the
// resolved TargetID.
type Effect struct {
	Type     EffectType `yaml:"type" json:"type"`
	Target   string     `yaml:"target,omitempty" json:"target,omitempty"`
	TargetID string     `yaml:"targetId,omitempty" json:"targetId,omitempty"`
	SourceID string     `yaml:"sourceId,omitempty" json:"sourceId,omitempty"`
	Amount   int        `yaml:"amount,omitempty" json:"amount,omitempty"`
	Resource string     `yaml:"resource,omitempty" json:"resource,omitempty"`
	Duration int        `yaml:"duration,omitempty" json:"duration,omitempty"`
	Reason   string     `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// StateUpdates is a partial patch produced by an action. Players holds full
// replacements of the touched players only.
type StateUpdates struct {
	Players map[string]PlayerState `json:"players,omitempty"`
	World   *WorldState            `json:"world,omitempty"`
	Game    *GamePatch             `json:"game,omitempty"`
}

// GamePatch carries the few session-level fields an action may change.
type GamePatch struct {
	CurrentPlayerTurn *string `json:"currentPlayerTurn,omitempty"`
	TurnNumber        *int    `json:"turnNumber,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (u StateUpdates) Empty() bool {
	return len(u.Players) == 0 && u.World == nil && u.Game == nil
}

// SetPlayer records a replacement for p.
func (u *StateUpdates) SetPlayer(p PlayerState) {
	if u.Players == nil {
		u.Players = make(map[string]PlayerState)
	}
	u.Players[p.ID] = p
}
