package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/quillscribe/taskcore/internal/generation"
	"github.com/quillscribe/taskcore/internal/task"
)

// TypeGenerate is the task type key for AI text generation.
const TypeGenerate = "generate"

// Common constructor errors.
var (
	ErrNilGenerator = errors.New("generator cannot be nil")
	ErrNilLogger    = errors.New("logger cannot be nil")
)

// GenerateInput is the payload for a generate task.
type GenerateInput struct {
	Prompt string `json:"prompt" validate:"required,min=1"`

	// Stream requests incremental output: each model chunk is published as
	// a stream event as it arrives.
	Stream bool `json:"stream"`
}

// GenerateResult is the payload of a generate task's completed event.
type GenerateResult struct {
	Text string `json:"text"`
}

// GenerateHandler runs AI inference calls through a generation.Generator.
type GenerateHandler struct {
	generator generation.Generator
	validator *validator.Validate
	logger    *slog.Logger
}

// NewGenerateHandler creates a GenerateHandler.
func NewGenerateHandler(generator generation.Generator, logger *slog.Logger) (*GenerateHandler, error) {
	if generator == nil {
		return nil, ErrNilGenerator
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	return &GenerateHandler{
		generator: generator,
		validator: validator.New(),
		logger:    logger.With("task_type", TypeGenerate),
	}, nil
}

// Type returns the handler's registration key.
func (h *GenerateHandler) Type() string { return TypeGenerate }

// Validate checks the input synchronously at submission time.
func (h *GenerateHandler) Validate(input any) error {
	var in GenerateInput
	if err := decodeInput(input, &in); err != nil {
		return err
	}
	return h.validator.Struct(in)
}

// Execute runs the generation, streaming chunks through the reporter when
// requested.
func (h *GenerateHandler) Execute(ctx context.Context, input any, rep task.Reporter) (any, error) {
	var in GenerateInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}

	if !in.Stream {
		rep.Progress(0, "contacting model", nil)
		text, err := h.generator.Generate(ctx, in.Prompt)
		if err != nil {
			return nil, err
		}
		rep.Progress(100, "generation complete", nil)
		return GenerateResult{Text: text}, nil
	}

	text, err := h.generator.GenerateStream(ctx, in.Prompt, func(chunk string) {
		rep.Stream(chunk)
	})
	if err != nil {
		return nil, err
	}
	h.logger.DebugContext(ctx, "streamed generation finished", "text_length", len(text))
	return GenerateResult{Text: text}, nil
}
