package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	var gotPayload GeneratePayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s, want /api/generate", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llama3.2","response":"hi there","done":true,"eval_count":7,"total_duration":1200000}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	temp := float32(0.4)
	resp, err := client.Generate(context.Background(), NewGeneratePayload("llama3.2", "say hi", &temp, true))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if resp.Response != "hi there" {
		t.Errorf("Response = %q, want 'hi there'", resp.Response)
	}
	if resp.EvalCount != 7 {
		t.Errorf("EvalCount = %d, want 7", resp.EvalCount)
	}
	if gotPayload.Model != "llama3.2" {
		t.Errorf("request model = %q, want 'llama3.2'", gotPayload.Model)
	}
	if gotPayload.Prompt != "say hi" {
		t.Errorf("request prompt = %q, want 'say hi'", gotPayload.Prompt)
	}
	// Blocking requests always go out with stream disabled.
	if gotPayload.Stream {
		t.Error("request stream = true, want false")
	}
	got, ok := gotPayload.Options["temperature"]
	if !ok {
		t.Fatal("request options carry no temperature")
	}
	if v, _ := got.(float64); v < 0.39 || v > 0.41 {
		t.Errorf("request temperature = %v, want 0.4", got)
	}
}

func TestGenerateOmitsUnsetTemperature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if _, ok := raw["options"]; ok {
			t.Error("request carries options, want none when temperature is unset")
		}
		w.Write([]byte(`{"response":"ok","done":true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.Generate(context.Background(), NewGeneratePayload("m", "p", nil, false)); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
}

func TestGenerateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"out of memory"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Generate(context.Background(), NewGeneratePayload("m", "p", nil, false))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "out of memory") {
		t.Errorf("error = %v, want the server message quoted", err)
	}
	if IsModelNotFound(err) || IsNotRunning(err) {
		t.Errorf("error misclassified: %v", err)
	}
}

func TestGenerateModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'nope' not found, try pulling it first"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Generate(context.Background(), NewGeneratePayload("nope", "p", nil, false))
	if !IsModelNotFound(err) {
		t.Errorf("IsModelNotFound(%v) = false, want true", err)
	}
}

func TestGenerateConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listens anymore

	client := NewClient(server.URL)
	_, err := client.Generate(context.Background(), NewGeneratePayload("m", "p", nil, false))
	if !IsNotRunning(err) {
		t.Errorf("IsNotRunning(%v) = false, want true", err)
	}
}

func TestChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s, want /api/chat", r.URL.Path)
		}
		var payload ChatPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if len(payload.Messages) != 2 {
			t.Errorf("messages = %d, want 2", len(payload.Messages))
		}
		w.Write([]byte(`{"message":{"role":"assistant","content":"sure"},"done":true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	messages := []Message{
		NewSystemMessage("be brief"),
		NewUserMessage("hello"),
	}
	resp, err := client.Chat(context.Background(), NewChatPayload("m", messages, nil, false))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Message.Content != "sure" {
		t.Errorf("Message.Content = %q, want 'sure'", resp.Message.Content)
	}
	if resp.Message.Role != RoleAssistant {
		t.Errorf("Message.Role = %q, want %q", resp.Message.Role, RoleAssistant)
	}
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %s, want /api/tags", r.URL.Path)
		}
		w.Write([]byte(`{"models":[
			{"name":"llama3.2:latest","size":2019393189},
			{"name":"qwen2.5-coder:7b","size":4683087332}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("len(models) = %d, want 2", len(models))
	}
	if models[0].Name != "llama3.2:latest" {
		t.Errorf("models[0].Name = %q", models[0].Name)
	}
	if got := models[0].FormatSize(); got != "1925.8 MB" {
		t.Errorf("FormatSize() = %q, want '1925.8 MB'", got)
	}
}

func TestCheckRunning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Ollama is running"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if err := client.CheckRunning(context.Background()); err != nil {
		t.Errorf("CheckRunning() error = %v, want nil", err)
	}

	server.Close()
	if err := client.CheckRunning(context.Background()); !IsNotRunning(err) {
		t.Errorf("IsNotRunning(%v) = false, want true", err)
	}
}

func TestClientErrorUnwrap(t *testing.T) {
	cause := context.DeadlineExceeded
	err := newClientError(ErrTypeTimeout, "request timed out", cause)
	if !IsTimeout(err) {
		t.Error("IsTimeout() = false, want true")
	}
	if got := err.Unwrap(); got != cause {
		t.Errorf("Unwrap() = %v, want %v", got, cause)
	}
	if !strings.Contains(err.Error(), "request timed out") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestHostTrailingSlashTrimmed(t *testing.T) {
	client := NewClient("http://localhost:11434/")
	if client.Host() != "http://localhost:11434" {
		t.Errorf("Host() = %q", client.Host())
	}
}
