package gemini

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/coursesnap/coursesnap/internal/providers"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini is a provider for Google Gemini
type Gemini struct {
	apiKey string
}

// New returns a new Gemini provider. An empty apiKey falls back to GEMINI_API_KEY.
func New(apiKey string) *Gemini {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	return &Gemini{apiKey: apiKey}
}

func (g *Gemini) Name() string { return "gemini" }

// Generate sends the image and prompt to Gemini and returns the JSON text of
// the response.
func (g *Gemini) Generate(ctx context.Context, req providers.Request) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(req.Model)
	model.SetTemperature(float32(req.Temperature))
	if req.Schema != nil {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = ToSchema(req.Schema)
	}

	format := strings.TrimPrefix(req.Image.MIMEType, "image/")
	resp, err := model.GenerateContent(ctx, genai.ImageData(format, req.Image.Data), genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content returned from Gemini")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("unexpected response format from Gemini")
	}
	return sb.String(), nil
}

// ToSchema converts a JSON Schema map into the Gemini schema subset.
// Keywords Gemini does not understand are ignored.
func ToSchema(m map[string]any) *genai.Schema {
	s := &genai.Schema{}

	switch t := m["type"].(type) {
	case string:
		s.Type = toType(t)
	case []string:
		s.Type, s.Nullable = typeUnion(t)
	case []any:
		names := make([]string, 0, len(t))
		for _, v := range t {
			if name, ok := v.(string); ok {
				names = append(names, name)
			}
		}
		s.Type, s.Nullable = typeUnion(names)
	}

	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = ToSchema(items)
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = ToSchema(pm)
			}
		}
	}
	switch req := m["required"].(type) {
	case []string:
		s.Required = append(s.Required, req...)
	case []any:
		for _, v := range req {
			if name, ok := v.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	return s
}

func typeUnion(names []string) (genai.Type, bool) {
	var typ genai.Type
	nullable := false
	for _, n := range names {
		if n == "null" {
			nullable = true
			continue
		}
		if typ == genai.TypeUnspecified {
			typ = toType(n)
		}
	}
	return typ, nullable
}

func toType(name string) genai.Type {
	switch name {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}
