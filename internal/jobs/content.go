package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ContentProvider generates the text of a published message. The AI backend
// is an external collaborator; this is its whole surface.
type ContentProvider interface {
	Generate(ctx context.Context, prompt, lang string, minWords, maxWords int) (string, error)
}

// ChatCompletionProvider calls an OpenAI-compatible chat-completions
// endpoint.
type ChatCompletionProvider struct {
	url          string
	apiKey       string
	model        string
	systemPrompt string
	http         *http.Client
}

func NewChatCompletionProvider(baseURL, apiKey, model, systemPrompt string) *ChatCompletionProvider {
	return &ChatCompletionProvider{
		url:          strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:       apiKey,
		model:        model,
		systemPrompt: systemPrompt,
		http:         &http.Client{Timeout: 40 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (p *ChatCompletionProvider) Generate(ctx context.Context, prompt, lang string, minWords, maxWords int) (string, error) {
	user := fmt.Sprintf("Language: %s. %s. Between %d and %d words.", lang, prompt, minWords, maxWords)

	payload, err := json.Marshal(map[string]any{
		"model": p.model,
		"messages": []chatMessage{
			{Role: "system", Content: p.systemPrompt},
			{Role: "user", Content: user},
		},
		"stream": false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	res, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", fmt.Errorf("completion status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// StaticProvider echoes the prompt; used in dry-run mode and tests when no
// API key is configured.
type StaticProvider struct{}

func (StaticProvider) Generate(ctx context.Context, prompt, lang string, minWords, maxWords int) (string, error) {
	return prompt, nil
}
