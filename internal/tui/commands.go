package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tatianab/lesson-game/internal/actions"
	"github.com/tatianab/lesson-game/internal/models"
	"github.com/tatianab/lesson-game/internal/runner"
)

// Command is one parsed console line.
type Command struct {
	Name   string
	Index  int // question; -1 means the next one
	ID     string
	Text   string
	Action *actions.Action
}

const helpText = "start | begin | question [n] | results | next | pause | resume | end | " +
	"add <id> [name] | remove <id> | revise <feedback> | answer <player> <text, a|b for lists> | skip <player> | act <json> | quit"

// ParseCommand reads one console line.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	name, rest, _ := strings.Cut(line, " ")
	name = strings.ToLower(strings.TrimPrefix(name, "/"))
	rest = strings.TrimSpace(rest)
	cmd := Command{Name: name, Index: -1}

	switch name {
	case "":
		return Command{}, errors.New("empty command")
	case "start", "begin", "results", "next", "pause", "resume", "end", "help", "quit":
		if rest != "" {
			return Command{}, fmt.Errorf("%s takes no arguments", name)
		}
	case "question":
		if rest != "" {
			n, err := strconv.Atoi(rest)
			if err != nil || n < 0 {
				return Command{}, fmt.Errorf("question index must be a non-negative integer")
			}
			cmd.Index = n
		}
	case "add":
		id, display, _ := strings.Cut(rest, " ")
		if id == "" {
			return Command{}, errors.New("usage: add <id> [name]")
		}
		cmd.ID = id
		cmd.Text = strings.TrimSpace(display)
		if cmd.Text == "" {
			cmd.Text = id
		}
	case "remove", "skip":
		if rest == "" || strings.Contains(rest, " ") {
			return Command{}, fmt.Errorf("usage: %s <player>", name)
		}
		cmd.ID = rest
	case "revise":
		if rest == "" {
			return Command{}, errors.New("usage: revise <feedback>")
		}
		cmd.Text = rest
	case "answer":
		id, text, _ := strings.Cut(rest, " ")
		text = strings.TrimSpace(text)
		if id == "" || text == "" {
			return Command{}, errors.New("usage: answer <player> <text>")
		}
		cmd.ID = id
		cmd.Text = text
	case "act":
		a, err := actions.ParseAction([]byte(rest))
		if err != nil {
			return Command{}, err
		}
		cmd.Action = &a
	default:
		return Command{}, fmt.Errorf("unknown command %q", name)
	}
	return cmd, nil
}

// parseAnswer splits "a|b|c" into a list answer.
func parseAnswer(text string) models.Answer {
	if !strings.Contains(text, "|") {
		return models.Single(text)
	}
	parts := strings.Split(text, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return models.List(parts...)
}

// Execute runs cmd against r and returns a line for the console log.
func Execute(ctx context.Context, r *runner.Runner, cmd Command) (string, error) {
	var err error
	switch cmd.Name {
	case "start":
		err = r.Start(ctx)
	case "begin":
		err = r.BeginActivePlay(ctx)
	case "question":
		if cmd.Index >= 0 {
			err = r.TriggerQuestionAt(ctx, cmd.Index)
		} else {
			err = r.TriggerQuestion(ctx)
		}
	case "results":
		err = r.ShowResults(ctx)
	case "next":
		err = r.Next(ctx)
	case "pause":
		err = r.Pause(ctx)
	case "resume":
		err = r.Resume(ctx)
	case "end":
		err = r.EndGame(ctx)
	case "add":
		if _, err = r.AddPlayer(ctx, cmd.ID, cmd.Text); err == nil {
			return fmt.Sprintf("%s joined", cmd.Text), nil
		}
	case "remove":
		if err = r.RemovePlayer(ctx, cmd.ID); err == nil {
			return fmt.Sprintf("%s left", cmd.ID), nil
		}
	case "answer":
		q := r.State().ActiveQuestion
		if q == nil {
			return "", errors.New("no active question")
		}
		return result(r.ProcessAction(ctx, actions.Action{
			PlayerID: cmd.ID,
			Payload:  actions.AnswerQuestion{QuestionID: q.ID, Answer: parseAnswer(cmd.Text)},
		}))
	case "skip":
		return result(r.ProcessAction(ctx, actions.Action{PlayerID: cmd.ID, Payload: actions.Skip{}}))
	case "act":
		return result(r.ProcessAction(ctx, *cmd.Action))
	case "help":
		return helpText, nil
	case "revise":
		return "", errors.New("revise replaces the session and is run by the console")
	default:
		return "", fmt.Errorf("unknown command %q", cmd.Name)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("phase: %s", r.State().Phase), nil
}

func result(res actions.Result) (string, error) {
	if !res.Success {
		return "", errors.New(res.Error)
	}
	parts := make([]string, 0, len(res.Effects))
	for _, e := range res.Effects {
		parts = append(parts, effectLine(e))
	}
	if len(parts) == 0 {
		return "ok", nil
	}
	return strings.Join(parts, "; "), nil
}

func effectLine(e models.Effect) string {
	s := string(e.Type)
	if e.Amount != 0 {
		s += fmt.Sprintf(" %+d", e.Amount)
	}
	if e.Resource != "" {
		s += " " + e.Resource
	}
	if e.TargetID != "" {
		s += " -> " + e.TargetID
	}
	return s
}
