package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
)

func recordingServer(t *testing.T, body string, got *map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if got != nil {
			_ = json.Unmarshal(raw, got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAnthropicProvider_Execute(t *testing.T) {
	var req map[string]any
	server := recordingServer(t, `{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
		"content": [{"type": "text", "text": "{\"keywords\": []}"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 12, "output_tokens": 4}
	}`, &req)

	p, err := NewAnthropicProvider(ProviderConfig{APIKey: "key", BaseURL: server.URL, Model: "claude-test"})
	if err != nil {
		t.Fatalf("NewAnthropicProvider() error = %v", err)
	}

	resp, err := p.Execute(context.Background(), Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "be terse"},
			{Role: RoleUser, Content: "analyze"},
		},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if resp.Content != `{"keywords": []}` {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 4 || resp.Usage.Total() != 16 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}
	if resp.Model != "claude-test" || resp.FinishReason != "end_turn" {
		t.Errorf("unexpected metadata %+v", resp)
	}

	if msgs, _ := req["messages"].([]any); len(msgs) != 1 {
		t.Errorf("expected system message split out, got %v", req["messages"])
	}
	if req["system"] == nil {
		t.Error("expected system prompt in request")
	}
	if req["max_tokens"] != float64(defaultMaxTokens) {
		t.Errorf("expected default max tokens, got %v", req["max_tokens"])
	}
}

func TestOpenAIProvider_Execute(t *testing.T) {
	var req map[string]any
	server := recordingServer(t, `{
		"id": "c1", "object": "chat.completion", "created": 1, "model": "gpt-test",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"ok\": true}"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 7, "completion_tokens": 3, "total_tokens": 10}
	}`, &req)

	p, err := NewOpenAIProvider(ProviderConfig{APIKey: "key", BaseURL: server.URL, Model: "gpt-test"})
	if err != nil {
		t.Fatalf("NewOpenAIProvider() error = %v", err)
	}

	resp, err := p.Execute(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "analyze"}},
		JSON:     true,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if resp.Content != `{"ok": true}` || resp.Usage.InputTokens != 7 || resp.Usage.OutputTokens != 3 {
		t.Errorf("unexpected response %+v", resp)
	}
	format, _ := req["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Errorf("expected json_object response format, got %v", req["response_format"])
	}
}

func TestOpenAIProvider_EmptyChoices(t *testing.T) {
	server := recordingServer(t, `{"id": "c1", "object": "chat.completion", "created": 1, "model": "m", "choices": []}`, nil)

	p, err := NewOpenAIProvider(ProviderConfig{APIKey: "key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOpenAIProvider() error = %v", err)
	}
	if _, err := p.Execute(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}}); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestGeminiProvider_Execute(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"a\": 1}"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 5, "candidatesTokenCount": 2},
			"modelVersion": "gemini-test"
		}`)
	}))
	t.Cleanup(server.Close)

	p, err := NewGeminiProvider(ProviderConfig{APIKey: "key", BaseURL: server.URL, Model: "gemini-test"})
	if err != nil {
		t.Fatalf("NewGeminiProvider() error = %v", err)
	}

	resp, err := p.Execute(context.Background(), Request{
		Messages: []Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "analyze"}},
		JSON:     true,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasSuffix(path, "gemini-test:generateContent") {
		t.Errorf("unexpected path %q", path)
	}
	if resp.Content != `{"a": 1}` || resp.Usage.InputTokens != 5 || resp.Usage.OutputTokens != 2 || resp.FinishReason != "STOP" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestConstructors_RequireAPIKey(t *testing.T) {
	for _, name := range AvailableProviders() {
		t.Run(name, func(t *testing.T) {
			t.Setenv(APIKeyEnv(name), "")
			if _, err := NewProvider(name, ProviderConfig{}); !errors.Is(err, ErrMissingAPIKey) {
				t.Errorf("expected ErrMissingAPIKey, got %v", err)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	want := []string{"anthropic", "gemini", "openai", "openrouter"}
	for _, name := range want {
		if !slices.Contains(AvailableProviders(), name) {
			t.Errorf("expected %q registered", name)
		}
		if DefaultModel(name) == "" {
			t.Errorf("expected default model for %q", name)
		}
	}

	if _, err := NewProvider("ollama", ProviderConfig{}); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}

	t.Setenv("OPENAI_API_KEY", "from-env")
	p, err := NewProvider(" OpenAI ", ProviderConfig{})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if p.Name() != "openai" || p.Model() != "gpt-4o" {
		t.Errorf("unexpected provider %s/%s", p.Name(), p.Model())
	}
}

func TestDetectProvider(t *testing.T) {
	for _, k := range providerEnvKeys {
		t.Setenv(k.env, "")
	}
	if name, _ := DetectProvider(); name != "" {
		t.Errorf("expected no provider, got %q", name)
	}

	t.Setenv("OPENROUTER_API_KEY", "or")
	t.Setenv("GEMINI_API_KEY", "gm")
	name, key := DetectProvider()
	if name != "gemini" || key != "gm" {
		t.Errorf("expected gemini to win over openrouter, got %q", name)
	}
}

func TestNewOpenRouterProvider_Defaults(t *testing.T) {
	p, err := NewOpenRouterProvider(ProviderConfig{APIKey: "key"})
	if err != nil {
		t.Fatalf("NewOpenRouterProvider() error = %v", err)
	}
	if p.Name() != "openrouter" || p.Model() != "openrouter/auto" {
		t.Errorf("unexpected provider %s/%s", p.Name(), p.Model())
	}
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{
		{Role: RoleSystem, Content: "a"},
		{Role: RoleUser, Content: "u"},
		{Role: RoleSystem, Content: "b"},
		{Role: RoleAssistant, Content: "x"},
	})
	if system != "a\n\nb" {
		t.Errorf("unexpected system %q", system)
	}
	if len(rest) != 2 || rest[0].Role != RoleUser || rest[1].Role != RoleAssistant {
		t.Errorf("unexpected rest %+v", rest)
	}
}
