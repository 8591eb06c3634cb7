package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaProber(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantModels int
		wantErr    bool
	}{
		{
			name: "healthy with models",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/tags" {
					http.NotFound(w, r)
					return
				}
				w.Write([]byte(`{"models":[{"name":"llama3"},{"name":"qwen2.5"}]}`))
			},
			wantModels: 2,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: true,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			prober := NewOllamaProber("ollama", srv.URL)
			result, err := prober.Probe(context.Background())

			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Models != tt.wantModels {
				t.Errorf("got %d models, want %d", result.Models, tt.wantModels)
			}
		})
	}
}

func TestOllamaProberConnectionRefused(t *testing.T) {
	prober := NewOllamaProber("ollama", "http://127.0.0.1:1")
	if _, err := prober.Probe(context.Background()); err == nil {
		t.Error("expected connection error")
	}
}

func TestOpenAICompatProber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"object":"list","data":[{"id":"gpt-test"}]}`))
	}))
	defer srv.Close()

	prober := NewOpenAICompatProber("cloud", srv.URL, "sk-test")
	result, err := prober.Probe(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Models != 1 {
		t.Errorf("got %d models, want 1", result.Models)
	}

	// Bad key counts as a probe failure.
	badProber := NewOpenAICompatProber("cloud", srv.URL, "sk-wrong")
	if _, err := badProber.Probe(context.Background()); err == nil {
		t.Error("expected error for rejected auth")
	}
}

func TestCLIProber(t *testing.T) {
	prober := NewCLIProber("agent-cli", "true")
	if _, err := prober.Probe(context.Background()); err != nil {
		t.Errorf("unexpected error for working binary: %v", err)
	}

	missing := NewCLIProber("agent-cli", "/nonexistent/binary")
	if _, err := missing.Probe(context.Background()); err == nil {
		t.Error("expected error for missing binary")
	}
}
