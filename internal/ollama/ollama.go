package ollama

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

// Ollama is a provider for a local Ollama server
type Ollama struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a new Ollama provider. OLLAMA_URL, then OLLAMA_HOST, select the
// server; the default is http://localhost:11434.
func New() *Ollama {
	ollamaURL := os.Getenv("OLLAMA_URL")
	if ollamaURL == "" {
		ollamaURL = os.Getenv("OLLAMA_HOST")
	}
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	return &Ollama{baseURL: ollamaURL, httpClient: &http.Client{}}
}

func (o *Ollama) Name() string { return "ollama" }

// Generate runs the prompt against the image with /api/generate
func (o *Ollama) Generate(ctx context.Context, req providers.Request) (string, error) {
	body := map[string]any{
		"model":  req.Model,
		"prompt": req.Prompt,
		"images": []string{base64.StdEncoding.EncodeToString(req.Image.Data)},
		"stream": false,
		"options": map[string]any{
			"temperature": req.Temperature,
		},
	}
	if req.Schema != nil {
		body["format"] = req.Schema
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/api/generate", bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	return response.Response, nil
}
