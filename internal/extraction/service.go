// Package extraction turns one schedule screenshot into course records by
// calling a vision-capable LLM with a fixed prompt and response schema.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/coursesnap/coursesnap/internal/gemini"
	"github.com/coursesnap/coursesnap/internal/models"
	"github.com/coursesnap/coursesnap/internal/ollama"
	"github.com/coursesnap/coursesnap/internal/openai"
	"github.com/coursesnap/coursesnap/internal/providers"
)

// The image is always declared as JPEG; the models accept other formats
// under this label.
const inlineMIMEType = "image/jpeg"

const (
	DefaultTimeout     = 90 * time.Second
	DefaultTemperature = 0.1
)

// Config selects the provider and model used for extraction
type Config struct {
	Provider    string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// ConfigFromEnv reads EXTRACTION_PROVIDER and EXTRACTION_TIMEOUT and fills in
// the provider's default model.
func ConfigFromEnv() Config {
	cfg := Config{
		Provider:    os.Getenv("EXTRACTION_PROVIDER"),
		Temperature: DefaultTemperature,
		Timeout:     DefaultTimeout,
	}
	if cfg.Provider == "" {
		cfg.Provider = "gemini"
	}
	if v := os.Getenv("EXTRACTION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		} else if secs, err := strconv.Atoi(v); err == nil {
			cfg.Timeout = time.Duration(secs) * time.Second
		} else {
			slog.Warn("Ignoring invalid EXTRACTION_TIMEOUT", "value", v)
		}
	}
	cfg.Model = DefaultModel(cfg.Provider)
	return cfg
}

// Override applies command-line choices on top of cfg. Switching provider
// without naming a model selects that provider's default model.
func (c Config) Override(provider, model string, timeout time.Duration) Config {
	if provider != "" && provider != c.Provider {
		c.Provider = provider
		c.Model = DefaultModel(provider)
	}
	if model != "" {
		c.Model = model
	}
	if timeout > 0 {
		c.Timeout = timeout
	}
	return c
}

// DefaultModel returns the model configured for a provider, falling back to a
// built-in default.
func DefaultModel(provider string) string {
	switch provider {
	case "gemini":
		model := os.Getenv("GEMINI_MODEL")
		if model == "" {
			return "gemini-3-flash-preview"
		}
		return model
	case "openai":
		model := os.Getenv("OPENAI_MODEL")
		if model == "" {
			return "gpt-4o"
		}
		return model
	case "ollama":
		model := os.Getenv("OLLAMA_MODEL")
		if model == "" {
			return "qwen2.5vl:7b"
		}
		return model
	default:
		return ""
	}
}

// NewProvider constructs the named provider, checking its credential up front.
func NewProvider(name string) (providers.Provider, error) {
	switch name {
	case "gemini":
		if os.Getenv("GEMINI_API_KEY") == "" {
			return nil, fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingCredential)
		}
		return gemini.New(""), nil
	case "openai":
		if os.Getenv("OPENAI_API_KEY") == "" {
			return nil, fmt.Errorf("%w: set OPENAI_API_KEY", ErrMissingCredential)
		}
		return openai.New(), nil
	case "ollama":
		return ollama.New(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}

// Service is the extraction adapter
type Service struct {
	provider    providers.Provider
	model       string
	temperature float64
	timeout     time.Duration
	prompt      string
	schema      map[string]any
}

// NewService wraps a provider. A zero Timeout disables the per-call bound.
func NewService(p providers.Provider, cfg Config) *Service {
	model := cfg.Model
	if model == "" {
		model = DefaultModel(p.Name())
	}
	return &Service{
		provider:    p,
		model:       model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		prompt:      buildPrompt(),
		schema:      ResponseSchema(),
	}
}

// NewFromConfig builds the provider named in cfg and wraps it in a Service.
func NewFromConfig(cfg Config) (*Service, error) {
	p, err := NewProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}
	return NewService(p, cfg), nil
}

// Provider returns the provider name
func (s *Service) Provider() string { return s.provider.Name() }

// Model returns the model name
func (s *Service) Model() string { return s.model }

// Extract sends one image to the extraction service and returns the records
// it found. Failures are returned as *Error.
func (s *Service) Extract(ctx context.Context, img models.Image) ([]models.CourseRecord, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := s.provider.Generate(ctx, providers.Request{
		Model:       s.model,
		Temperature: s.temperature,
		Prompt:      s.prompt,
		Image:       providers.Image{MIMEType: inlineMIMEType, Data: img.Data},
		Schema:      s.schema,
	})
	if err != nil {
		slog.Debug("Extraction call failed", "image", img.Name, "provider", s.provider.Name(), "error", err)
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, newError(fmt.Sprintf("extraction timed out after %s", s.timeout), ErrTimeout)
		case errors.Is(ctx.Err(), context.Canceled):
			return nil, newError("extraction was canceled", ctx.Err())
		default:
			return nil, newError("failed to process image content, please try again", err)
		}
	}

	slog.Debug("Extraction response received",
		"image", img.Name,
		"provider", s.provider.Name(),
		"model", s.model,
		"elapsed_ms", time.Since(start).Milliseconds(),
		"response", raw)

	records, err := decodeRecords(raw)
	if err != nil {
		if errors.Is(err, ErrEmptyResponse) {
			return nil, newError("no data returned from the extraction service", err)
		}
		return nil, newError("the extraction service returned data in an unexpected format", err)
	}
	return records, nil
}
