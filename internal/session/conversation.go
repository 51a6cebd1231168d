package session

import "github.com/lucasnoah/compiletutor/internal/toolchain"

// Role tags who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Seq     int    `json:"seq"`
}

// Conversation is the ordered, append-only turn log for the current analysis.
// It is not safe for concurrent use; the diagnosis pipeline is its only writer.
type Conversation struct {
	turns   []Turn
	nextSeq int
	outcome *toolchain.Outcome
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{nextSeq: 1}
}

// Start replaces the history with a single assistant turn holding the initial analysis.
func (c *Conversation) Start(analysis string) Turn {
	c.turns = c.turns[:0]
	return c.Append(RoleAssistant, analysis)
}

// Append adds a turn. Sequence numbers keep increasing across Clear and Start.
func (c *Conversation) Append(role Role, content string) Turn {
	t := Turn{Role: role, Content: content, Seq: c.nextSeq}
	c.nextSeq++
	c.turns = append(c.turns, t)
	return t
}

// Turns returns a copy of the history in insertion order.
func (c *Conversation) Turns() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of turns.
func (c *Conversation) Len() int { return len(c.turns) }

// Active reports whether an initial analysis anchors the conversation.
func (c *Conversation) Active() bool { return len(c.turns) > 0 }

// Clear drops every turn. The last outcome is kept.
func (c *Conversation) Clear() {
	c.turns = nil
}

// SetOutcome records the most recent compile/run outcome.
func (c *Conversation) SetOutcome(o toolchain.Outcome) {
	c.outcome = &o
}

// Outcome returns the most recent compile/run outcome, if any.
func (c *Conversation) Outcome() (toolchain.Outcome, bool) {
	if c.outcome == nil {
		return toolchain.Outcome{}, false
	}
	return *c.outcome, true
}
