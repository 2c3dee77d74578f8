package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/baalimago/agentloop/internal/history"
	"github.com/baalimago/agentloop/internal/models"
	"github.com/baalimago/agentloop/internal/prompts"
)

// buildFullPrompt is the system prompt, followed by the tool catalogue and
// the dynamic section.
func (a *Agent) buildFullPrompt() (string, error) {
	system, err := a.templates.ReadTemplate(prompts.System, map[string]string{"agent_name": a.name})
	if err != nil {
		return "", fmt.Errorf("failed to read system prompt: %w", err)
	}
	toolsPrompt, err := a.templates.ReadTemplate(prompts.Tools, map[string]string{"tools": a.registry.Catalogue()})
	if err != nil {
		return "", fmt.Errorf("failed to read tools prompt: %w", err)
	}
	dynamic, err := a.templates.ReadTemplate(prompts.Dynamic, nil)
	if err != nil && !errors.Is(err, prompts.ErrNotFound) {
		return "", fmt.Errorf("failed to read dynamic prompt: %w", err)
	}
	return system + "\n\n" + toolsPrompt + "\n\n# Dynamic Section\n" + dynamic + "\n", nil
}

// fetchMemories appended to the system prompt. An agent without memory
// recalls nothing.
func (a *Agent) fetchMemories(ctx context.Context, force bool) (string, error) {
	if a.memory == nil {
		return "", nil
	}
	memories, err := a.memory.Fetch(ctx, force, a.history.Messages())
	if err != nil {
		return "", fmt.Errorf("failed to fetch memories: %w", err)
	}
	return memories, nil
}

// toChat converts the conversation into a chat for the model.
func toChat(id, system string, msgs []history.Message) models.Chat {
	chat := models.Chat{
		ID:       id,
		Messages: make([]models.Message, 0, len(msgs)+1),
	}
	chat.Messages = append(chat.Messages, models.Message{Role: "system", Content: system})
	for _, m := range msgs {
		role := "user"
		if m.Role == history.Agent {
			role = "assistant"
		}
		chat.Messages = append(chat.Messages, models.Message{Role: role, Content: m.Content})
	}
	return chat
}

// estimateTokens of a chat, roughly four characters per token.
func estimateTokens(chat models.Chat) int {
	n := 0
	for _, m := range chat.Messages {
		n += len(m.Role) + len(m.Content)
	}
	return n / 4
}
