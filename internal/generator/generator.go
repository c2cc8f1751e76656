// Package generator asks Gemini to write game specifications from lesson text.
package generator

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"text/template"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"gopkg.in/yaml.v3"

	"github.com/tatianab/lesson-game/internal/models"
)

// DefaultQuestionCount is used when a lesson does not ask for a count.
const DefaultQuestionCount = 8

//go:embed prompts/generate_spec.txt
var generateSpecPrompt string

//go:embed prompts/revise_spec.txt
var reviseSpecPrompt string

//go:embed prompts/answer_question.txt
var answerQuestionPrompt string

var (
	generateSpecTmpl   = template.Must(template.New("generate_spec").Parse(generateSpecPrompt))
	reviseSpecTmpl     = template.Must(template.New("revise_spec").Parse(reviseSpecPrompt))
	answerQuestionTmpl = template.Must(template.New("answer_question").Parse(answerQuestionPrompt))
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("no content returned from Gemini")

// contentModel is the part of *genai.GenerativeModel the generator uses.
type contentModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Lesson is the input to GenerateSpecification.
type Lesson struct {
	Text          string
	Hint          string
	QuestionCount int
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the generator's logger.
func WithLogger(l *log.Logger) Option {
	return func(g *Generator) { g.log = l }
}

type Generator struct {
	client *genai.Client
	model  contentModel
	log    *log.Logger
}

// New connects to Gemini with the given key and model name.
func New(ctx context.Context, apiKey, modelName string, opts ...Option) (*Generator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.7)
	g := newGenerator(model, opts...)
	g.client = client
	return g, nil
}

func newGenerator(model contentModel, opts ...Option) *Generator {
	g := &Generator{model: model, log: log.New(io.Discard, "", 0)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

// GenerateSpecification writes a new game for the lesson.
func (g *Generator) GenerateSpecification(ctx context.Context, lesson Lesson) (*models.GameSpecification, error) {
	if strings.TrimSpace(lesson.Text) == "" {
		return nil, errors.New("lesson text is empty")
	}
	if lesson.QuestionCount <= 0 {
		lesson.QuestionCount = DefaultQuestionCount
	}
	text, err := g.generate(ctx, generateSpecTmpl, lesson)
	if err != nil {
		return nil, err
	}
	spec, err := ParseSpecification(text)
	if err != nil {
		g.log.Printf("generator: unusable specification: %v", err)
		return nil, err
	}
	g.log.Printf("generator: %q with %d questions", spec.Title, len(spec.Questions))
	return spec, nil
}

// ReviseSpecification asks the model to change an existing game.
func (g *Generator) ReviseSpecification(ctx context.Context, spec *models.GameSpecification, feedback string) (*models.GameSpecification, error) {
	current, err := yaml.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("encode specification: %w", err)
	}
	text, err := g.generate(ctx, reviseSpecTmpl, struct{ Spec, Feedback string }{string(current), feedback})
	if err != nil {
		return nil, err
	}
	revised, err := ParseSpecification(text)
	if err != nil {
		g.log.Printf("generator: unusable revision: %v", err)
		return nil, err
	}
	return revised, nil
}

// AnswerQuestion has the model play a student. Persona shapes how careful
// the answer is, e.g. "diligent" or "distracted".
func (g *Generator) AnswerQuestion(ctx context.Context, q models.Question, persona string) (models.Answer, error) {
	if persona == "" {
		persona = "diligent"
	}
	text, err := g.generate(ctx, answerQuestionTmpl, struct {
		Persona  string
		Question models.Question
	}{persona, q})
	if err != nil {
		return models.Answer{}, err
	}
	var ans models.Answer
	if err := yaml.Unmarshal([]byte(StripCodeFence(text)), &ans); err != nil {
		return models.Answer{}, fmt.Errorf("parse answer: %w", err)
	}
	return ans, nil
}

func (g *Generator) generate(ctx context.Context, tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	resp, err := g.model.GenerateContent(ctx, genai.Text(buf.String()))
	if err != nil {
		g.log.Printf("generator: %s: %v", tmpl.Name(), err)
		return "", fmt.Errorf("gemini %s: %w", tmpl.Name(), err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, part := range content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

// StripCodeFence removes a surrounding markdown code fence, if any.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the language tag line.
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseSpecification decodes model output into a validated specification.
func ParseSpecification(text string) (*models.GameSpecification, error) {
	return models.ParseSpecification([]byte(StripCodeFence(text)))
}
