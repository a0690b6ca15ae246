package generation

import "context"

// Generator produces text from a prompt. Implementations must honor ctx
// cancellation and return an error wrapping ctx.Err() when interrupted.
type Generator interface {
	// Generate returns the complete response for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateStream produces the response incrementally, invoking emit for
	// each chunk in order, and returns the assembled full text.
	GenerateStream(ctx context.Context, prompt string, emit func(chunk string)) (string, error)
}
