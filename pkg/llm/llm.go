// Package llm defines the boundary between stockbuzz and a generative model
// provider: the request and response shapes and how provider errors are
// classified for retry.
package llm

import (
	"context"

	"github.com/stockbuzz/stockbuzz/pkg/models"
)

// DefaultModel is the model used when no route overrides it.
const DefaultModel = "gemini-2.5-flash"

// Image is inline binary content sent alongside the prompt.
type Image struct {
	Data     []byte
	MIMEType string
}

// Request is a single generation call.
type Request struct {
	Model       string
	Prompt      string
	Images      []Image
	Temperature *float32
	// Search enables the provider's web search grounding tool.
	Search          bool
	MaxOutputTokens int32
}

// Response is the provider's answer.
type Response struct {
	Text    string
	Sources []models.SearchSource
	Usage   models.Usage
}

// Generator sends requests to a model provider.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (*Response, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Temp returns a pointer to t for Request.Temperature.
func Temp(t float32) *float32 {
	return &t
}
