package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"time"
)

// --- Ollama prober ---

// OllamaProber checks a local Ollama endpoint by listing its models.
type OllamaProber struct {
	name    string
	baseURL string
	client  *http.Client
}

// NewOllamaProber creates a prober for an Ollama-style endpoint.
func NewOllamaProber(name, baseURL string) *OllamaProber {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProber{
		name:    name,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (p *OllamaProber) Name() string {
	return p.name
}

// Probe hits /api/tags to verify connectivity and count available models.
func (p *OllamaProber) Probe(ctx context.Context) (ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/api/tags", nil)
	if err != nil {
		return ProbeResult{}, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return ProbeResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ProbeResult{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var result struct {
		Models []interface{} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ProbeResult{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return ProbeResult{Models: len(result.Models)}, nil
}

// --- OpenAI-compatible API prober ---

// OpenAICompatProber checks an OpenAI-compatible API by listing its models.
type OpenAICompatProber struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenAICompatProber creates a prober for an OpenAI-compatible endpoint
// rooted at baseURL (e.g. "https://api.example.com/v1").
func NewOpenAICompatProber(name, baseURL, apiKey string) *OpenAICompatProber {
	return &OpenAICompatProber{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (p *OpenAICompatProber) Name() string {
	return p.name
}

// Probe hits /models with bearer auth. Auth failures count as probe
// failures since an unusable backend is as bad as an unreachable one.
func (p *OpenAICompatProber) Probe(ctx context.Context) (ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/models", nil)
	if err != nil {
		return ProbeResult{}, err
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return ProbeResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ProbeResult{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var result struct {
		Data []interface{} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ProbeResult{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return ProbeResult{Models: len(result.Data)}, nil
}

// --- CLI prober ---

// CLIProber checks a local agent CLI by running its version command.
type CLIProber struct {
	name    string
	binPath string
}

// NewCLIProber creates a prober for a local CLI tool.
func NewCLIProber(name, binPath string) *CLIProber {
	return &CLIProber{
		name:    name,
		binPath: binPath,
	}
}

func (p *CLIProber) Name() string {
	return p.name
}

// Probe runs `<bin> --version` to check the CLI is installed and responsive.
func (p *CLIProber) Probe(ctx context.Context) (ProbeResult, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "--version")
	if err := cmd.Run(); err != nil {
		return ProbeResult{}, fmt.Errorf("failed to execute %s: %w", p.binPath, err)
	}
	return ProbeResult{}, nil
}
