package models

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Answer is either a single string or a list of strings. List answers are
// used by sequencing (ordered) and matching or grouping (unordered) questions.
type Answer struct {
	Values []string
	List   bool
}

// Single builds a single-string answer.
func Single(v string) Answer {
	return Answer{Values: []string{v}}
}

// List builds a list answer.
func List(values ...string) Answer {
	return Answer{Values: values, List: true}
}

// String returns the single value, or the empty string for list answers.
func (a Answer) String() string {
	if a.List || len(a.Values) == 0 {
		return ""
	}
	return a.Values[0]
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.List {
		if a.Values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Values)
	}
	return json.Marshal(a.String())
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*a = Single(single)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("answer must be a string or a list of strings: %w", err)
	}
	*a = List(list...)
	return nil
}

func (a Answer) MarshalYAML() (any, error) {
	if a.List {
		return a.Values, nil
	}
	return a.String(), nil
}

func (a *Answer) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*a = Single(node.Value)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*a = List(list...)
		return nil
	default:
		return fmt.Errorf("line %d: answer must be a string or a list of strings", node.Line)
	}
}
