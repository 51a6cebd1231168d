package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/lucasnoah/compiletutor/internal/session"
	genai "google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// openingRequest anchors a history that starts with the assistant's analysis,
// since the Gemini API expects a user turn first.
const openingRequest = "Please analyze my program."

// GeminiConfig configures the hosted Gemini backend.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Gemini is a thin wrapper around the official genai client.
// It makes exactly one API call per Generate and never retries.
type Gemini struct {
	cli   *genai.Client
	model string
	key   string
}

// NewGemini builds the client. An empty key is accepted here and reported as
// an AuthError on the first Generate, before any network traffic.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	g := &Gemini{model: model, key: strings.TrimSpace(cfg.APIKey)}
	if g.key == "" {
		return g, nil
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      g.key,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, err
	}
	g.cli = cli
	return g, nil
}

func (g *Gemini) Name() string { return "gemini:" + g.model }

// Generate sends the prompt, or the role-tagged history, and returns the text.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	if g.key == "" || g.cli == nil {
		return "", &AuthError{Backend: g.Name()}
	}

	var contents []*genai.Content
	for i, m := range messages(req) {
		role := genai.RoleUser
		if m.Role == session.RoleAssistant {
			role = genai.RoleModel
			if i == 0 {
				contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: openingRequest}}})
			}
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
	}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.Options.MaxNewTokens > 0 {
		cfg.MaxOutputTokens = int32(req.Options.MaxNewTokens)
	}
	if req.Options.Temperature != nil {
		t := float32(*req.Options.Temperature)
		cfg.Temperature = &t
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", g.classify(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &UnavailableError{Backend: g.Name(), Detail: "empty response"}
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", &UnavailableError{Backend: g.Name(), Detail: "empty response"}
	}
	return text, nil
}

func (g *Gemini) classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden:
			return &AuthError{Backend: g.Name(), Detail: apiErr.Message}
		case apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "API key"):
			return &AuthError{Backend: g.Name(), Detail: apiErr.Message}
		}
		return &UnavailableError{Backend: g.Name(), Detail: apiErr.Error(), Err: err}
	}
	return unavailable(g.Name(), err)
}
