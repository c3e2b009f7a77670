package jobs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChatCompletionProvider(t *testing.T) {
	var gotAuth string
	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "generated text"}},
			},
		})
	}))
	defer srv.Close()

	p := NewChatCompletionProvider(srv.URL, "key123", "test-model", "you are a writer")
	text, err := p.Generate(context.Background(), "write about cats", "en", 50, 100)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "generated text" {
		t.Fatalf("text = %q", text)
	}
	if gotAuth != "Bearer key123" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotBody.Model != "test-model" {
		t.Fatalf("model = %q", gotBody.Model)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v", gotBody.Messages)
	}
	user := gotBody.Messages[1].Content
	for _, want := range []string{"en", "write about cats", "50", "100"} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt %q missing %q", user, want)
		}
	}
}

func TestChatCompletionProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewChatCompletionProvider(srv.URL, "k", "m", "s")
	if _, err := p.Generate(context.Background(), "x", "en", 1, 2); err == nil {
		t.Fatal("expected error from a 429 response")
	}

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer empty.Close()

	p = NewChatCompletionProvider(empty.URL, "k", "m", "s")
	if _, err := p.Generate(context.Background(), "x", "en", 1, 2); err == nil {
		t.Fatal("expected error when no choices are returned")
	}
}

func TestStaticProviderEchoesPrompt(t *testing.T) {
	text, err := StaticProvider{}.Generate(context.Background(), "hello", "en", 1, 2)
	if err != nil || text != "hello" {
		t.Fatalf("Generate = %q, %v", text, err)
	}
}
