package reason

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// systemPrompt asks backends for a structured response. Backends that
// answer in prose anyway are handled by the free-text path in Normalize.
const systemPrompt = `You observe events and decide whether anything needs doing.
Respond with a JSON object: {"reasoning": "...", "decision": "act|wait|investigate", "action": "...", "confidence": 0.0-1.0}.
Use "wait" unless action is clearly warranted.`

// buildPrompt renders the observation plus any context pairs.
func buildPrompt(observation string, extra map[string]string) string {
	if len(extra) == 0 {
		return observation
	}

	var b bytes.Buffer
	b.WriteString(observation)
	b.WriteString("\n\nContext:\n")
	for k, v := range extra {
		fmt.Fprintf(&b, "- %s: %s\n", k, v)
	}
	return b.String()
}

// --- Ollama backend ---

// OllamaBackend talks to a locally running Ollama instance over HTTP.
type OllamaBackend struct {
	identifier string
	baseURL    string
	model      string
	client     *http.Client
}

// NewOllamaBackend creates a reasoning backend for an Ollama endpoint.
func NewOllamaBackend(identifier, baseURL, model string, timeout time.Duration) *OllamaBackend {
	return &OllamaBackend{
		identifier: identifier,
		baseURL:    baseURL,
		model:      model,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (b *OllamaBackend) Identifier() string { return b.identifier }

// Think posts a non-streaming chat request and returns the message content.
func (b *OllamaBackend) Think(ctx context.Context, observation string, extra map[string]string) (string, error) {
	payload := map[string]interface{}{
		"model": b.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": buildPrompt(observation, extra)},
		},
		"stream": false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debugf("Ollama think request: model=%s, prompt_len=%d", b.model, len(observation))

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(respBody))
	}

	content := gjson.GetBytes(respBody, "message.content").String()
	if content == "" {
		return "", fmt.Errorf("ollama response missing message content")
	}
	return content, nil
}

// --- OpenAI-compatible cloud backend ---

// CloudBackend talks to an OpenAI-compatible chat completions API.
type CloudBackend struct {
	identifier string
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
}

// NewCloudBackend creates a reasoning backend for an OpenAI-compatible API
// rooted at baseURL (e.g. "https://api.example.com/v1").
func NewCloudBackend(identifier, baseURL, apiKey, model string, timeout time.Duration) *CloudBackend {
	return &CloudBackend{
		identifier: identifier,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (b *CloudBackend) Identifier() string { return b.identifier }

// Think posts a chat completion request and returns the first choice content.
func (b *CloudBackend) Think(ctx context.Context, observation string, extra map[string]string) (string, error) {
	payload := map[string]interface{}{
		"model": b.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": buildPrompt(observation, extra)},
		},
		"stream": false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	log.Debugf("Cloud think request: model=%s, prompt_len=%d", b.model, len(observation))

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("cloud request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cloud API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	content := gjson.GetBytes(respBody, "choices.0.message.content").String()
	if content == "" {
		return "", fmt.Errorf("cloud response missing choice content")
	}
	return content, nil
}
