package providers

import (
	"context"
)

// Image is an inline image payload sent to a vision model
type Image struct {
	MIMEType string
	Data     []byte
}

// Request represents one structured-extraction call to an LLM provider
type Request struct {
	Model       string
	Temperature float64
	Prompt      string
	Image       Image
	// Schema is a JSON Schema constraining the model output. Providers that
	// support structured output pass it through; others rely on the prompt.
	Schema map[string]any
}

// Provider defines the interface for a vision-capable LLM provider.
// Generate returns the raw text of the model response.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}
