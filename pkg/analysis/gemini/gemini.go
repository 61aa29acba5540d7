// Package gemini implements analysis.Generator with the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/txn2/talkback/pkg/analysis"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// ErrMissingAPIKey is returned by New without an API key.
var ErrMissingAPIKey = errors.New("gemini api key is required")

// Config configures the Gemini generator.
type Config struct {
	APIKey string
	Model  string
}

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator calls the Gemini API.
type Generator struct {
	models contentGenerator
	model  string
}

// New creates a Gemini generator backed by the Gemini Developer API.
func New(ctx context.Context, cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return newGenerator(client.Models, cfg.Model), nil
}

func newGenerator(models contentGenerator, model string) *Generator {
	if model == "" {
		model = DefaultModel
	}
	return &Generator{models: models, model: model}
}

// Model returns the configured model name.
func (g *Generator) Model() string { return g.model }

// Generate runs one generateContent call and returns the concatenated text
// of the first candidate.
func (g *Generator) Generate(ctx context.Context, req analysis.Request) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: req.MaxTokens,
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", analysis.ErrEmptyResponse
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", analysis.ErrEmptyResponse
	}
	return b.String(), nil
}

// Verify interface compliance.
var _ analysis.Generator = (*Generator)(nil)
