// Package echo is a model which streams the latest user message back. It is
// used by tests and selected with the model name 'test'.
package echo

import (
	"context"
	"strings"

	"github.com/baalimago/agentloop/internal/models"
)

const ModelName = "test"

// Echo streams the content of the last user message, split into chunks of
// ChunkSize bytes.
type Echo struct {
	ChunkSize int
}

func (e *Echo) Setup() error {
	if e.ChunkSize <= 0 {
		e.ChunkSize = 8
	}
	return nil
}

func (e *Echo) StreamCompletions(ctx context.Context, chat models.Chat) (chan models.CompletionEvent, error) {
	msg, _, err := chat.LastOfRole("user")
	if err != nil {
		return nil, err
	}
	size := max(e.ChunkSize, 1)
	ch := make(chan models.CompletionEvent)
	go func() {
		defer close(ch)
		for _, c := range chunks(unwrap(msg.Content), size) {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// unwrap drops a leading markdown heading, such as the one the user message
// template adds, so the raw user input is echoed.
func unwrap(content string) string {
	if strings.HasPrefix(content, "# ") {
		if _, rest, found := strings.Cut(content, "\n"); found {
			return rest
		}
	}
	return content
}

func chunks(s string, size int) []string {
	ret := make([]string, 0, len(s)/size+1)
	for len(s) > size {
		ret = append(ret, s[:size])
		s = s[size:]
	}
	if s != "" {
		ret = append(ret, s)
	}
	return ret
}
