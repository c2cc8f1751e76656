// Package actions is the rules engine. It turns one player action against a
// session snapshot into effects, events and a state patch.
package actions

import (
	"encoding/json"
	"fmt"

	"github.com/tatianab/lesson-game/internal/models"
)

// Type is the wire name of an action kind.
type Type string

const (
	TypeMove           Type = "move"
	TypeAttack         Type = "attack"
	TypeDefend         Type = "defend"
	TypeTrade          Type = "trade"
	TypeSteal          Type = "steal"
	TypeUseItem        Type = "use-item"
	TypeGather         Type = "gather"
	TypeCraft          Type = "craft"
	TypeUseAbility     Type = "use-ability"
	TypeVote           Type = "vote"
	TypeAnswerQuestion Type = "answer-question"
	TypeSkip           Type = "skip"
)

// Action is one player intent.
type Action struct {
	PlayerID  string
	Timestamp int64 // unix millis
	Payload   Payload
}

// Type returns the kind of the action's payload.
func (a Action) Type() Type {
	if a.Payload == nil {
		return ""
	}
	return a.Payload.Type()
}

// Payload is implemented by the payload struct of every action kind.
type Payload interface {
	Type() Type
}

type Move struct {
	Target *models.Position `json:"target,omitempty"`
	ZoneID string           `json:"zoneId,omitempty"`
}

type Attack struct {
	TargetID string `json:"targetId"`
}

type Defend struct{}

type Trade struct {
	TargetID string         `json:"targetId"`
	Offer    map[string]int `json:"offer"`
	Request  map[string]int `json:"request"`
}

type Steal struct {
	TargetID string `json:"targetId"`
}

type UseItem struct {
	ItemID   string `json:"itemId"`
	TargetID string `json:"targetId,omitempty"`
}

type Gather struct{}

type Craft struct {
	RecipeID string `json:"recipeId"`
}

type UseAbility struct {
	AbilityID string `json:"abilityId"`
	TargetID  string `json:"targetId,omitempty"`
}

type Vote struct {
	TargetID string `json:"targetId"`
	Category string `json:"category,omitempty"`
}

type AnswerQuestion struct {
	QuestionID string        `json:"questionId"`
	Answer     models.Answer `json:"answer"`
	ElapsedMs  int64         `json:"elapsedMs,omitempty"`
}

type Skip struct{}

// Custom is an action kind outside the built-in set. It is dispatched to a
// handler registered under Name.
type Custom struct {
	Name string
	Data map[string]any
}

func (Move) Type() Type { return TypeMove }
func (Attack) Type() Type { return TypeAttack }
func (Defend) Type() Type { return TypeDefend }
func (Trade) Type() Type { return TypeTrade }
func (Steal) Type() Type { return TypeSteal }
func (UseItem) Type() Type { return TypeUseItem }
func (Gather) Type() Type { return TypeGather }
func (Craft) Type() Type { return TypeCraft }
func (UseAbility) Type() Type { return TypeUseAbility }
func (Vote) Type() Type { return TypeVote }
func (AnswerQuestion) Type() Type { return TypeAnswerQuestion }
func (Skip) Type() Type { return TypeSkip }
func (c Custom) Type() Type { return Type(c.Name) }

type wireAction struct {
	Type      Type            `json:"type"`
	PlayerID  string          `json:"playerId"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ParseAction decodes the {type, playerId, timestamp, payload} wire shape.
// Unrecognized types decode as Custom.
func ParseAction(data []byte) (Action, error) {
	var w wireAction
	if err := json.Unmarshal(data, &w); err != nil {
		return Action{}, fmt.Errorf("decode action: %w", err)
	}
	if w.Type == "" {
		return Action{}, fmt.Errorf("decode action: missing type")
	}
	payload, err := decodePayload(w.Type, w.Payload)
	if err != nil {
		return Action{}, fmt.Errorf("decode %s payload: %w", w.Type, err)
	}
	return Action{PlayerID: w.PlayerID, Timestamp: w.Timestamp, Payload: payload}, nil
}

func decodePayload(t Type, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch t {
	case TypeMove:
		p = &Move{}
	case TypeAttack:
		p = &Attack{}
	case TypeDefend:
		return Defend{}, nil
	case TypeTrade:
		p = &Trade{}
	case TypeSteal:
		p = &Steal{}
	case TypeUseItem:
		p = &UseItem{}
	case TypeGather:
		return Gather{}, nil
	case TypeCraft:
		p = &Craft{}
	case TypeUseAbility:
		p = &UseAbility{}
	case TypeVote:
		p = &Vote{}
	case TypeAnswerQuestion:
		p = &AnswerQuestion{}
	case TypeSkip:
		return Skip{}, nil
	default:
		c := Custom{Name: string(t)}
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &c.Data); err != nil {
				return nil, err
			}
		}
		return c, nil
	}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, err
		}
	}
	return deref(p), nil
}

func deref(p Payload) Payload {
	switch v := p.(type) {
	case *Move:
		return *v
	case *Attack:
		return *v
	case *Trade:
		return *v
	case *Steal:
		return *v
	case *UseItem:
		return *v
	case *Craft:
		return *v
	case *UseAbility:
		return *v
	case *Vote:
		return *v
	case *AnswerQuestion:
		return *v
	}
	return p
}

// MarshalJSON encodes the wire shape read by ParseAction.
func (a Action) MarshalJSON() ([]byte, error) {
	w := wireAction{Type: a.Type(), PlayerID: a.PlayerID, Timestamp: a.Timestamp}
	var payload any = a.Payload
	if c, ok := a.Payload.(Custom); ok {
		payload = c.Data
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		w.Payload = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (a *Action) UnmarshalJSON(data []byte) error {
	parsed, err := ParseAction(data)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
