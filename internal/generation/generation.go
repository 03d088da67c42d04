// Package generation wraps the model provider behind small interfaces so
// handlers and tests never talk to the OpenAI API directly.
package generation

import (
	"context"

	"github.com/nferro/atelier/internal/models"
)

// Request describes one generation run. Count images are produced from
// the same prompt and parameters.
type Request struct {
	Prompt         string
	NegativePrompt string
	Model          string
	Count          int
	Params         models.GenerationParams
}

// Output is one generated media item.
type Output struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Generator produces media from a prompt. Implementations must honor
// context cancellation.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]Output, error)
}

// Enhancer rewrites a rough prompt into a richer one. Implementations
// must honor context cancellation so an abandoned request stops billing.
type Enhancer interface {
	Enhance(ctx context.Context, prompt string) (string, error)
}
