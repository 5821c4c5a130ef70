package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/spigell/resource-matcher/internal/ai"
)

const (
	DefaultModel = "gemini-2.5-flash"
)

// models is the part of genai.Models the generator uses.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator wraps the Google GenAI client to provide simple prompt-based interactions.
type Generator struct {
	models    models
	modelName string
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, model), nil
}

func newGenerator(m models, model string) *Generator {
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultModel
	}
	return &Generator{models: m, modelName: model}
}

// Generate sends the prompt to Gemini and returns the text of all candidate parts.
func (g *Generator) Generate(ctx context.Context, prompt string, opts ai.GenerationOptions) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}

	resp, err := g.models.GenerateContent(ctx, g.modelName, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		return "", errors.New("gemini api returned no response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}
