package agent

import (
	"time"

	"github.com/baalimago/agentloop/internal/history"
	"github.com/baalimago/agentloop/internal/ratelimit"
)

// Configurations of an agent, as stored in agentConfig.json. Zero valued
// fields are back-filled with the defaults when the file is loaded, set
// limits to -1 to disable them.
type Configurations struct {
	Model                 string `json:"model"`
	ModelURL              string `json:"model-url"`
	AgentNumber           int    `json:"agent-number"`
	RateLimitSeconds      int    `json:"rate-limit-seconds"`
	RateLimitRequests     int    `json:"rate-limit-requests"`
	RateLimitInputTokens  int    `json:"rate-limit-input-tokens"`
	RateLimitOutputTokens int    `json:"rate-limit-output-tokens"`
	MsgsKeepMax           int    `json:"msgs-keep-max"`
	MsgsKeepStart         int    `json:"msgs-keep-start"`
	MsgsKeepEnd           int    `json:"msgs-keep-end"`
	MaxToolResponseLength int    `json:"max-tool-response-length"`
	AutoMemoryCount       int    `json:"auto-memory-count"`
	AutoMemorySkip        int    `json:"auto-memory-skip"`
	SaveConversations     *bool  `json:"save-conversations"`
}

var saveConversations = true

var Default = Configurations{
	Model:                 "gpt-4.1-mini",
	RateLimitSeconds:      60,
	RateLimitRequests:     15,
	RateLimitInputTokens:  1_000_000,
	RateLimitOutputTokens: 0,
	MsgsKeepMax:           25,
	MsgsKeepStart:         5,
	MsgsKeepEnd:           10,
	MaxToolResponseLength: 3000,
	AutoMemoryCount:       3,
	AutoMemorySkip:        2,
	SaveConversations:     &saveConversations,
}

func (c Configurations) RateLimit() ratelimit.Config {
	return ratelimit.Config{
		Window:          time.Duration(c.RateLimitSeconds) * time.Second,
		MaxCalls:        c.RateLimitRequests,
		MaxInputTokens:  c.RateLimitInputTokens,
		MaxOutputTokens: c.RateLimitOutputTokens,
	}
}

func (c Configurations) KeepPolicy() history.KeepPolicy {
	return history.KeepPolicy{
		Max:   c.MsgsKeepMax,
		Start: c.MsgsKeepStart,
		End:   c.MsgsKeepEnd,
	}
}

// ShouldSaveConversations defaults to true if unset.
func (c Configurations) ShouldSaveConversations() bool {
	return c.SaveConversations == nil || *c.SaveConversations
}
