package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIBackend_Chat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"1. Cook at home"}}]}`))
	}))
	defer srv.Close()

	b := NewOpenAIBackend(Config{Provider: ProviderFireworks, APIKey: "sk-test", Endpoint: srv.URL})
	text, err := b.Chat(context.Background(), "sys", "hello", Options{Temperature: Temperature(0.2), MaxTokens: 64})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if text != "1. Cook at home" {
		t.Errorf("Chat() = %q", text)
	}
	if got["temperature"] != 0.2 || got["max_tokens"] != float64(64) {
		t.Errorf("request options = %v", got)
	}
	if got["model"] != defaultModels[ProviderFireworks] {
		t.Errorf("model = %v", got["model"])
	}
	if msgs, _ := got["messages"].([]any); len(msgs) != 2 {
		t.Errorf("messages = %v", got["messages"])
	}
	if b.Name() != "fireworks:"+defaultModels[ProviderFireworks] {
		t.Errorf("Name() = %q", b.Name())
	}
}

func TestOpenAIBackend_ZeroTemperature(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	b := NewOpenAIBackend(Config{Provider: ProviderOpenAI, APIKey: "k", Endpoint: srv.URL, Temperature: Temperature(0)})
	if _, err := b.Chat(context.Background(), "s", "u", Options{}); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if v, ok := got["temperature"]; !ok || v != 0.0 {
		t.Errorf("temperature = %v (present %v), want 0", v, ok)
	}
}

func TestOpenAIBackend_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIBackend(Config{Provider: ProviderOpenAI, APIKey: "k", Endpoint: srv.URL}).
		Chat(context.Background(), "s", "u", Options{})
	if !errors.Is(err, ErrBackend) {
		t.Errorf("Chat() error = %v, want ErrBackend", err)
	}
}

func TestOpenAIBackend_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	b := NewOpenAIBackend(Config{Provider: ProviderOpenAI, APIKey: "k", Endpoint: srv.URL})
	if _, err := b.Chat(context.Background(), "s", "u", Options{}); !errors.Is(err, ErrBackend) {
		t.Errorf("Chat() error = %v, want ErrBackend", err)
	}
	if b.HealthCheck(context.Background()) {
		t.Error("HealthCheck() = true on 401")
	}
}
