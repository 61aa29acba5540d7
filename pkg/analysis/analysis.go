// Package analysis produces the language-model judgments used in feedback:
// a persona critique, a question/engagement analysis, a holistic judge
// score and a speaker-tagged transcript.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrDisabled is returned by the Disabled generator.
var ErrDisabled = errors.New("language model is not configured")

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("empty model response")

// Request is a single text generation call.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int32
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Disabled is a Generator that always fails, so every analysis degrades.
type Disabled struct{}

// Generate returns ErrDisabled.
func (Disabled) Generate(context.Context, Request) (string, error) {
	return "", ErrDisabled
}

var _ Generator = Disabled{}

// Analyzer runs the analysis prompts against a Generator.
type Analyzer struct {
	gen     Generator
	persona Persona
}

// New creates an Analyzer. An unknown persona falls back to PersonaRoast.
func New(gen Generator, persona string) *Analyzer {
	if gen == nil {
		gen = Disabled{}
	}
	return &Analyzer{gen: gen, persona: ParsePersona(persona)}
}

// Persona returns the critique persona in use.
func (a *Analyzer) Persona() Persona { return a.persona }

// Critique returns free-text feedback in the configured persona.
func (a *Analyzer) Critique(ctx context.Context, transcript string) (string, error) {
	return a.generate(ctx, Request{
		System:      a.persona.prompt(),
		Prompt:      "Please analyze this speech transcript and provide feedback:\n\n" + transcript,
		Temperature: critiqueTemperature,
		MaxTokens:   critiqueMaxTokens,
	})
}

// ScoreQuestions returns the raw three-line question analysis text.
func (a *Analyzer) ScoreQuestions(ctx context.Context, transcript string) (string, error) {
	return a.generate(ctx, Request{
		System:      questionSystemPrompt,
		Prompt:      "Analyze the questions in this presentation transcript:\n\n" + transcript,
		Temperature: scoringTemperature,
		MaxTokens:   questionMaxTokens,
	})
}

// JudgeScore asks for a single holistic 0-100 score.
func (a *Analyzer) JudgeScore(ctx context.Context, transcript string) (int, error) {
	text, err := a.generate(ctx, Request{
		System:      judgeSystemPrompt,
		Prompt:      "Score this presentation transcript from 0-100:\n\n" + transcript,
		Temperature: scoringTemperature,
		MaxTokens:   judgeMaxTokens,
	})
	if err != nil {
		return 0, err
	}
	return ParseJudgeScore(text)
}

// Tag labels each sentence of the transcript with its speaker.
func (a *Analyzer) Tag(ctx context.Context, transcript string) (string, error) {
	return a.generate(ctx, Request{
		System:      taggingSystemPrompt,
		Prompt:      "Label the speakers in this transcript:\n\n" + transcript,
		Temperature: scoringTemperature,
		MaxTokens:   taggingMaxTokens,
	})
}

func (a *Analyzer) generate(ctx context.Context, req Request) (string, error) {
	text, err := a.gen.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Speaker labels produced by Tag.
const (
	TagPresenter = "[PRESENTER]"
	TagJudge     = "[JUDGE]"
)

// ValidTagged reports whether every non-blank line of text starts with a
// speaker label. Empty text is not valid.
func ValidTagged(text string) bool {
	seen := false
	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, TagPresenter) && !strings.HasPrefix(line, TagJudge) {
			return false
		}
		seen = true
	}
	return seen
}

// ParseJudgeScore reads the leading integer of text and clamps it to [0,100].
func ParseJudgeScore(text string) (int, error) {
	s := strings.TrimSpace(text)
	end := 0
	for end < len(s) && ((s[end] >= '0' && s[end] <= '9') || (end == 0 && s[end] == '-')) {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, fmt.Errorf("parsing judge score %q: %w", text, err)
	}
	return max(0, min(100, n)), nil
}
