// Package history holds the ordered conversation log of an agent.
package history

import (
	"sync"
	"time"

	"github.com/baalimago/agentloop/internal/clock"
	"github.com/google/uuid"
)

// Role of the author of a message.
type Role string

const (
	Human Role = "human"
	Agent Role = "agent"
)

// Message is a single turn in the conversation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// KeepPolicy decides which messages survive once the log grows too long.
// When the log exceeds Max messages, only the first Start and the last End
// messages are kept. Max <= 0 disables trimming.
type KeepPolicy struct {
	Max   int
	Start int
	End   int
}

// History is an append-only log of messages. Messages are never edited after
// being appended, and timestamps never go backwards.
type History struct {
	ID string

	mu       sync.RWMutex
	messages []Message
	policy   KeepPolicy
	clock    clock.Clock
	trimmed  int
}

// New returns an empty history with a fresh ID.
func New(policy KeepPolicy, c clock.Clock) *History {
	if c == nil {
		c = clock.Real()
	}
	return &History{
		ID:     uuid.NewString(),
		policy: policy,
		clock:  c,
	}
}

// Append a message authored by role and return it.
func (h *History) Append(role Role, content string) Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	ts := h.clock.Now()
	if n := len(h.messages); n > 0 && ts.Before(h.messages[n-1].Timestamp) {
		ts = h.messages[n-1].Timestamp
	}
	msg := Message{Role: role, Content: content, Timestamp: ts}
	h.messages = append(h.messages, msg)
	h.trim()
	return msg
}

func (h *History) trim() {
	p := h.policy
	if p.Max <= 0 || len(h.messages) <= p.Max {
		return
	}
	start := max(p.Start, 0)
	end := max(p.End, 0)
	if start+end >= p.Max {
		// Misconfigured, keep the tail so the latest context survives
		start = 0
		end = p.Max
	}
	kept := make([]Message, 0, start+end)
	kept = append(kept, h.messages[:start]...)
	kept = append(kept, h.messages[len(h.messages)-end:]...)
	h.trimmed += len(h.messages) - len(kept)
	h.messages = kept
}

// Messages returns a copy of the log.
func (h *History) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make([]Message, len(h.messages))
	copy(cp, h.messages)
	return cp
}

// Len returns the amount of messages currently kept.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Trimmed returns how many messages the keep policy has dropped so far.
func (h *History) Trimmed() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.trimmed
}

// LastOfRole returns the most recent message by role.
func (h *History) LastOfRole(role Role) (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i := len(h.messages) - 1; i >= 0; i-- {
		if h.messages[i].Role == role {
			return h.messages[i], true
		}
	}
	return Message{}, false
}
