package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/coursesnap/coursesnap/internal/providers"
)

const defaultBaseURL = "https://api.openai.com/v1"

// OpenAI is a provider for OpenAI
type OpenAI struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New returns a new OpenAI provider configured from OPENAI_API_KEY and
// OPENAI_BASE_URL.
func New() *OpenAI {
	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OpenAI{
		apiKey:     os.Getenv("OPENAI_API_KEY"),
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

func (o *OpenAI) Name() string { return "openai" }

// Generate sends the image and prompt to the chat completions API and returns
// the message content. Structured output requires an object at the top level,
// so an array schema is wrapped under "records".
func (o *OpenAI) Generate(ctx context.Context, req providers.Request) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	body := map[string]any{
		"model": req.Model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{
						"type": "text",
						"text": req.Prompt,
					},
					{
						"type": "image_url",
						"image_url": map[string]string{
							"url": "data:" + req.Image.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(req.Image.Data),
						},
					},
				},
			},
		},
		"max_tokens":  4000,
		"temperature": req.Temperature,
	}
	if req.Schema != nil {
		body["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "course_records",
				"strict": true,
				"schema": WrapSchema(req.Schema),
			},
		}
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/chat/completions", bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
				Refusal string `json:"refusal"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from OpenAI")
	}
	if r := response.Choices[0].Message.Refusal; r != "" {
		return "", fmt.Errorf("model refused request: %s", r)
	}

	return response.Choices[0].Message.Content, nil
}

// WrapSchema places an array schema under a required "records" property and
// closes every object, as strict structured output demands.
func WrapSchema(schema map[string]any) map[string]any {
	return closeObjects(map[string]any{
		"type":       "object",
		"properties": map[string]any{"records": schema},
		"required":   []string{"records"},
	})
}

func closeObjects(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	if out["type"] == "object" {
		out["additionalProperties"] = false
	}
	if items, ok := out["items"].(map[string]any); ok {
		out["items"] = closeObjects(items)
	}
	if props, ok := out["properties"].(map[string]any); ok {
		closed := make(map[string]any, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				closed[name] = closeObjects(pm)
			} else {
				closed[name] = p
			}
		}
		out["properties"] = closed
	}
	return out
}
