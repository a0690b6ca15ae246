// Package gemini implements generation.Generator on top of Google's Gemini
// API via the genai client.
package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/quillscribe/taskcore/internal/config"
	"github.com/quillscribe/taskcore/internal/generation"
)

// Generator calls the Gemini API to produce text.
type Generator struct {
	logger *slog.Logger
	client *genai.Client
	model  string
}

// NewGenerator creates a Gemini-backed Generator from the LLM configuration.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", generation.ErrInvalidConfig)
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &Generator{
		logger: logger.With("component", "gemini_generator", "model", cfg.ModelName),
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// Generate returns the complete response for the prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	g.logger.DebugContext(ctx, "calling Gemini API", "prompt_length", len(prompt))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("generation interrupted: %w", ctx.Err())
		}
		return "", fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}
	return extractText(resp)
}

// GenerateStream produces the response incrementally, invoking emit for each
// chunk, and returns the assembled full text.
func (g *Generator) GenerateStream(
	ctx context.Context,
	prompt string,
	emit func(chunk string),
) (string, error) {
	g.logger.DebugContext(ctx, "calling Gemini API (streaming)", "prompt_length", len(prompt))

	var full string
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(prompt), nil) {
		if err != nil {
			if ctx.Err() != nil {
				return full, fmt.Errorf("generation interrupted: %w", ctx.Err())
			}
			return full, fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
		}
		chunk, err := extractText(resp)
		if err != nil {
			return full, err
		}
		if chunk == "" {
			continue
		}
		emit(chunk)
		full += chunk
	}
	return full, nil
}

// extractText pulls the generated text out of a response, mapping empty and
// safety-blocked responses to the package's sentinel errors.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", generation.ErrContentBlocked
	}
	return resp.Text(), nil
}

var _ generation.Generator = (*Generator)(nil)
