package models

import (
	"context"
	"errors"
	"fmt"
)

type Chat struct {
	ID       string    `json:"id"`
	Messages []Message `json:"messages"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionEvent is one item on a completion stream. It is either a string
// chunk, an error or a NoopEvent.
type CompletionEvent any

// NoopEvent carries nothing and may be skipped by the receiver.
type NoopEvent struct{}

// StreamCompleter is a language model which streams its reply chunk by
// chunk. The returned channel is closed once the reply is complete.
type StreamCompleter interface {
	Setup() error
	StreamCompletions(context.Context, Chat) (chan CompletionEvent, error)
}

// FirstSystemMessage returns the first encountered Message with role 'system'
func (c *Chat) FirstSystemMessage() (Message, error) {
	for _, msg := range c.Messages {
		if msg.Role == "system" {
			return msg, nil
		}
	}
	return Message{}, errors.New("failed to find any system message")
}

func (c *Chat) LastOfRole(role string) (Message, int, error) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		msg := c.Messages[i]
		if msg.Role == role {
			return msg, i, nil
		}
	}
	return Message{}, -1, fmt.Errorf("failed to find any %v message", role)
}
