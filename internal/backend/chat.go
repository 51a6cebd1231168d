package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lucasnoah/compiletutor/internal/session"
)

// DefaultChatURL is the Groq OpenAI-compatible chat completions endpoint.
const DefaultChatURL = "https://api.groq.com/openai/v1/chat/completions"

// DefaultChatModel is used when no model is configured.
const DefaultChatModel = "llama-3.3-70b-versatile"

// ChatConfig configures an OpenAI-compatible chat completions backend.
type ChatConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Chat calls an OpenAI-compatible Chat Completions API (Groq by default).
// See: https://console.groq.com/docs/api-reference
type Chat struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
}

// NewChat creates a chat completions client.
func NewChat(cfg ChatConfig) *Chat {
	c := &Chat{
		http:    cfg.HTTPClient,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
	}
	if c.http == nil {
		// No client timeout: the caller's context carries backend.timeout.
		c.http = &http.Client{}
	}
	if c.model == "" {
		c.model = DefaultChatModel
	}
	if c.baseURL == "" {
		c.baseURL = DefaultChatURL
	}
	return c
}

func (c *Chat) Name() string { return "chat:" + c.model }

type chatReq struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatErrResp struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate posts one chat completion request and returns the first choice.
func (c *Chat) Generate(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", &AuthError{Backend: c.Name()}
	}

	body := chatReq{
		Model:       c.model,
		MaxTokens:   req.Options.MaxNewTokens,
		Temperature: req.Options.Temperature,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range messages(req) {
		role := "user"
		if m.Role == session.RoleAssistant {
			role = "assistant"
		}
		body.Messages = append(body.Messages, chatMessage{Role: role, Content: m.Content})
	}

	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(b))
	if err != nil {
		return "", unavailable(c.Name(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", unavailable(c.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", &AuthError{Backend: c.Name(), Detail: errorDetail(resp)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UnavailableError{Backend: c.Name(), Detail: fmt.Sprintf("unexpected status %s: %s", resp.Status, errorDetail(resp))}
	}

	var out chatResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &UnavailableError{Backend: c.Name(), Detail: "decode response", Err: err}
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", &UnavailableError{Backend: c.Name(), Detail: "empty response"}
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func errorDetail(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e chatErrResp
	if json.Unmarshal(raw, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
