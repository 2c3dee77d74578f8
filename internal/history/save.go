package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
)

// Conversation is the on-disk form of a history.
type Conversation struct {
	ID       string    `json:"id"`
	Saved    time.Time `json:"saved"`
	Trimmed  int       `json:"trimmed,omitempty"`
	Messages []Message `json:"messages"`
}

// Save the history as '<dir>/<id>.json'.
func Save(dir string, h *History) error {
	conv := Conversation{
		ID:       h.ID,
		Saved:    h.clock.Now(),
		Trimmed:  h.Trimmed(),
		Messages: h.Messages(),
	}
	b, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	fileName := filepath.Join(dir, conv.ID+".json")
	if misc.Truthy(os.Getenv("DEBUG")) {
		ancli.PrintOK(fmt.Sprintf("saving conversation to: '%v'\n", fileName))
	}
	return os.WriteFile(fileName, b, 0o644)
}

// FromPath loads a previously saved conversation.
func FromPath(path string) (Conversation, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Conversation{}, fmt.Errorf("failed to read file: %w", err)
	}
	var conv Conversation
	err = json.Unmarshal(b, &conv)
	if err != nil {
		return Conversation{}, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return conv, nil
}
