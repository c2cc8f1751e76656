package models

// GameSpecification is the declarative description of one game produced by the
// generator. The runtime never mutates it.
type GameSpecification struct {
	Title               string              `yaml:"title" json:"title"`
	Narrative           string              `yaml:"narrative,omitempty" json:"narrative,omitempty"`
	Theme               string              `yaml:"theme,omitempty" json:"theme,omitempty"`
	World               WorldConfig         `yaml:"world" json:"world"`
	Players             PlayersConfig       `yaml:"players" json:"players"`
	Mechanics           Mechanics           `yaml:"mechanics" json:"mechanics"`
	Scoring             ScoringConfig       `yaml:"scoring" json:"scoring"`
	QuestionIntegration QuestionIntegration `yaml:"questionIntegration" json:"questionIntegration"`
	Victory             VictoryConfig       `yaml:"victory" json:"victory"`
	Questions           []Question          `yaml:"questions" json:"questions"`
}

// WorldType is the spatial model of the world.
type WorldType string

const (
	WorldGrid     WorldType = "grid"
	WorldZones    WorldType = "zones"
	WorldTrack    WorldType = "track"
	WorldFreeform WorldType = "freeform"
)

// Position is a grid cell.
type Position struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

// Bounds is a rectangle anchored at its top-left cell. Width and Height are
// measured in cells.
type Bounds struct {
	X      int `yaml:"x" json:"x"`
	Y      int `yaml:"y" json:"y"`
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Contains reports whether p lies inside the rectangle.
func (b Bounds) Contains(p Position) bool {
	return p.X >= b.X && p.X < b.X+b.Width && p.Y >= b.Y && p.Y < b.Y+b.Height
}

// Center returns the middle cell of the rectangle.
func (b Bounds) Center() Position {
	return Position{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

type WorldConfig struct {
	Type           WorldType       `yaml:"type" json:"type"`
	Width          int             `yaml:"width" json:"width"`
	Height         int             `yaml:"height" json:"height"`
	Features       []Feature       `yaml:"features,omitempty" json:"features,omitempty"`
	Obstacles      []Position      `yaml:"obstacles,omitempty" json:"obstacles,omitempty"`
	Zones          []ZoneConfig    `yaml:"zones,omitempty" json:"zones,omitempty"`
	ResourceSpawns []ResourceSpawn `yaml:"resourceSpawns,omitempty" json:"resourceSpawns,omitempty"`
}

// Feature is a static decoration of the world. It is only meaningful to the
// renderer.
type Feature struct {
	Type     string   `yaml:"type" json:"type"`
	Position Position `yaml:"position" json:"position"`
	Label    string   `yaml:"label,omitempty" json:"label,omitempty"`
}

type ZoneConfig struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name,omitempty" json:"name,omitempty"`
	Bounds Bounds `yaml:"bounds" json:"bounds"`
}

type ResourceSpawn struct {
	ID       string   `yaml:"id" json:"id"`
	Type     string   `yaml:"type" json:"type"`
	Position Position `yaml:"position" json:"position"`
	Amount   int      `yaml:"amount" json:"amount"`
}

type PlayersConfig struct {
	Avatar            map[string]string `yaml:"avatar,omitempty" json:"avatar,omitempty"`
	StartingResources map[string]int    `yaml:"startingResources,omitempty" json:"startingResources,omitempty"`
	StartingHealth    int               `yaml:"startingHealth,omitempty" json:"startingHealth,omitempty"`
	Abilities         []AbilityConfig   `yaml:"abilities,omitempty" json:"abilities,omitempty"`
}

type AbilityConfig struct {
	ID       string         `yaml:"id" json:"id"`
	Name     string         `yaml:"name,omitempty" json:"name,omitempty"`
	Cooldown int            `yaml:"cooldown" json:"cooldown"`
	Effects  []Effect       `yaml:"effects" json:"effects"`
	Cost     map[string]int `yaml:"cost,omitempty" json:"cost,omitempty"`
}

// Mechanics is a bag of optional sub-configurations. A nil section means the
// mechanic is disabled for the session.
type Mechanics struct {
	Economy   *EconomyConfig   `yaml:"economy,omitempty" json:"economy,omitempty"`
	Combat    *CombatConfig    `yaml:"combat,omitempty" json:"combat,omitempty"`
	Movement  *MovementConfig  `yaml:"movement,omitempty" json:"movement,omitempty"`
	Social    *SocialConfig    `yaml:"social,omitempty" json:"social,omitempty"`
	Resources *ResourcesConfig `yaml:"resources,omitempty" json:"resources,omitempty"`
	Timer     *TimerConfig     `yaml:"timer,omitempty" json:"timer,omitempty"`
}

type EconomyConfig struct {
	Currencies      []string       `yaml:"currencies" json:"currencies"`
	TradingEnabled  bool           `yaml:"tradingEnabled" json:"tradingEnabled"`
	StealingEnabled bool           `yaml:"stealingEnabled" json:"stealingEnabled"`
	EarnRates       map[string]int `yaml:"earnRates,omitempty" json:"earnRates,omitempty"`
}

type CombatConfig struct {
	MaxHealth       int  `yaml:"maxHealth" json:"maxHealth"`
	StartingHealth  int  `yaml:"startingHealth" json:"startingHealth"`
	DamagePerAttack int  `yaml:"damagePerAttack" json:"damagePerAttack"`
	ShieldPerDefend int  `yaml:"shieldPerDefend,omitempty" json:"shieldPerDefend,omitempty"`
	FriendlyFire    bool `yaml:"friendlyFire" json:"friendlyFire"`
	Respawn         bool `yaml:"respawn" json:"respawn"`
}

// MovementType selects between cell movement and zone hopping.
type MovementType string

const (
	MovementGrid MovementType = "grid"
	MovementZone MovementType = "zone"
)

type MovementConfig struct {
	Type                 MovementType `yaml:"type" json:"type"`
	MovementPerTurn      int          `yaml:"movementPerTurn" json:"movementPerTurn"`
	PassThroughObstacles bool         `yaml:"passThroughObstacles" json:"passThroughObstacles"`
}

type SocialConfig struct {
	VotingEnabled  bool     `yaml:"votingEnabled" json:"votingEnabled"`
	VoteCategories []string `yaml:"voteCategories,omitempty" json:"voteCategories,omitempty"`
	Factions       []string `yaml:"factions,omitempty" json:"factions,omitempty"`
}

type ResourcesConfig struct {
	Types        []string     `yaml:"types" json:"types"`
	GatherAmount int          `yaml:"gatherAmount,omitempty" json:"gatherAmount,omitempty"`
	Items        []ItemConfig `yaml:"items,omitempty" json:"items,omitempty"`
	Recipes      []Recipe     `yaml:"recipes,omitempty" json:"recipes,omitempty"`
}

type ItemConfig struct {
	ID         string   `yaml:"id" json:"id"`
	Name       string   `yaml:"name,omitempty" json:"name,omitempty"`
	Effects    []Effect `yaml:"effects" json:"effects"`
	Consumable bool     `yaml:"consumable" json:"consumable"`
}

type Recipe struct {
	ID     string         `yaml:"id" json:"id"`
	Inputs map[string]int `yaml:"inputs" json:"inputs"`
	Output string         `yaml:"output" json:"output"`
}

// TimerConfig durations are in seconds.
type TimerConfig struct {
	GameDuration     int `yaml:"gameDuration,omitempty" json:"gameDuration,omitempty"`
	TurnDuration     int `yaml:"turnDuration,omitempty" json:"turnDuration,omitempty"`
	QuestionDuration int `yaml:"questionDuration,omitempty" json:"questionDuration,omitempty"`
	RoundDuration    int `yaml:"roundDuration,omitempty" json:"roundDuration,omitempty"`
}

type ScoringConfig struct {
	BasePoints       int     `yaml:"basePoints" json:"basePoints"`
	TimeBonus        int     `yaml:"timeBonus" json:"timeBonus"`
	StreakMultiplier float64 `yaml:"streakMultiplier" json:"streakMultiplier"`
	MaxStreak        int     `yaml:"maxStreak" json:"maxStreak"`
}

// TriggerKind decides what brings up the next question during active play.
type TriggerKind string

const (
	TriggerTimed  TriggerKind = "timed"
	TriggerAction TriggerKind = "action"
	TriggerZone   TriggerKind = "zone"
	TriggerCombat TriggerKind = "combat"
	TriggerTurn   TriggerKind = "turn"
)

type QuestionIntegration struct {
	Trigger     TriggerKind `yaml:"trigger" json:"trigger"`
	Interval    int         `yaml:"interval,omitempty" json:"interval,omitempty"` // seconds, timed trigger
	EveryTurns  int         `yaml:"everyTurns,omitempty" json:"everyTurns,omitempty"`
	OnCorrect   []Effect    `yaml:"onCorrect,omitempty" json:"onCorrect,omitempty"`
	OnIncorrect []Effect    `yaml:"onIncorrect,omitempty" json:"onIncorrect,omitempty"`
	OnSkip      []Effect    `yaml:"onSkip,omitempty" json:"onSkip,omitempty"`
	DisplayMode string      `yaml:"displayMode,omitempty" json:"displayMode,omitempty"`
}

type VictoryType string

const (
	VictoryScore       VictoryType = "score"
	VictoryElimination VictoryType = "elimination"
	VictorySurvival    VictoryType = "survival"
	VictoryCollective  VictoryType = "collective"
)

type VictoryConfig struct {
	Type       VictoryType `yaml:"type" json:"type"`
	Conditions []Condition `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	Duration   int         `yaml:"duration,omitempty" json:"duration,omitempty"` // seconds
}

type ConditionType string

const (
	ConditionScoreThreshold    ConditionType = "score_threshold"
	ConditionEliminationCount  ConditionType = "elimination_count"
	ConditionZoneControl       ConditionType = "zone_control"
	ConditionResourceAmount    ConditionType = "resource_amount"
	ConditionQuestionsAnswered ConditionType = "questions_answered"
	ConditionCustom            ConditionType = "custom"
)

type Condition struct {
	Type       ConditionType `yaml:"type" json:"type"`
	Threshold  int           `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Resource   string        `yaml:"resource,omitempty" json:"resource,omitempty"`
	ZoneID     string        `yaml:"zoneId,omitempty" json:"zoneId,omitempty"`
	Expression string        `yaml:"expression,omitempty" json:"expression,omitempty"`
}

// QuestionType values that change grading.
const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionTrueFalse      = "true_false"
	QuestionShortAnswer    = "short_answer"
	QuestionSequencing     = "sequencing"
	QuestionMatching       = "matching"
	QuestionGrouping       = "grouping"
)

type Question struct {
	ID            string   `yaml:"id" json:"id"`
	Type          string   `yaml:"type" json:"type"`
	Prompt        string   `yaml:"prompt" json:"prompt"`
	Options       []string `yaml:"options,omitempty" json:"options,omitempty"`
	CorrectAnswer Answer   `yaml:"correctAnswer" json:"correctAnswer"`
	Explanation   string   `yaml:"explanation,omitempty" json:"explanation,omitempty"`
	Misconception string   `yaml:"misconception,omitempty" json:"misconception,omitempty"`
	Difficulty    string   `yaml:"difficulty,omitempty" json:"difficulty,omitempty"`
	Points        int      `yaml:"points,omitempty" json:"points,omitempty"`
	TimeLimit     int      `yaml:"timeLimit,omitempty" json:"timeLimit,omitempty"` // seconds
}

// Ordered reports whether a list answer must match position by position.
func (q Question) Ordered() bool {
	return q.Type == QuestionSequencing || q.Type == "ordering"
}
