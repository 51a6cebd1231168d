package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lucasnoah/compiletutor/internal/session"
)

// Options are the generation knobs a backend may honour. A backend that does
// not support an option ignores it.
type Options struct {
	MaxNewTokens      int      `json:"max_new_tokens,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty"`
}

// Request is one generation call.
type Request struct {
	// System carries standing instructions, used when Prompt is empty on follow-ups.
	System     string
	Prompt     string
	PriorTurns []session.Turn
	Options    Options
}

// Backend is an interchangeable text-generation provider.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// AuthError reports a missing or rejected credential.
type AuthError struct {
	Backend string
	Detail  string
}

func (e *AuthError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: missing credential", e.Backend)
	}
	return fmt.Sprintf("%s: authentication failed: %s", e.Backend, e.Detail)
}

// ModelNotFoundError names the model directory or artifact that is missing.
type ModelNotFoundError struct {
	Path string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model artifact not found: %s", e.Path)
}

// UnavailableError reports that a reachable backend failed to produce text.
type UnavailableError struct {
	Backend string
	Detail  string
	Err     error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil && e.Detail == "" {
		return fmt.Sprintf("%s unavailable: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("%s unavailable: %s", e.Backend, e.Detail)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func unavailable(name string, err error) error {
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return err
	}
	return &UnavailableError{Backend: name, Err: err}
}

// message is a provider-neutral chat message.
type message struct {
	Role    session.Role
	Content string
}

// messages flattens a request into ordered chat messages: prior turns first,
// then the prompt as a user message when present.
func messages(req Request) []message {
	out := make([]message, 0, len(req.PriorTurns)+1)
	for _, t := range req.PriorTurns {
		out = append(out, message{Role: t.Role, Content: t.Content})
	}
	if req.Prompt != "" {
		out = append(out, message{Role: session.RoleUser, Content: req.Prompt})
	}
	return out
}

// transcript renders a request as plain text for backends without a chat format.
func transcript(req Request) string {
	var b strings.Builder
	if req.System != "" {
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}
	msgs := messages(req)
	if len(msgs) == 1 && msgs[0].Role == session.RoleUser && req.System == "" {
		return msgs[0].Content
	}
	for _, m := range msgs {
		switch m.Role {
		case session.RoleUser:
			b.WriteString("User: ")
		default:
			b.WriteString("Assistant: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	b.WriteString("Assistant:")
	return b.String()
}
