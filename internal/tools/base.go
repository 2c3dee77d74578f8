package tools

import (
	"context"
	"fmt"

	"github.com/baalimago/agentloop/internal/prompts"
)

const truncationNotice = "\n[response truncated]"

// Base carries what every tool invocation is bound to and implements the
// default lifecycle hooks. Tools embed it and implement Execute.
type Base struct {
	Spec    Specification
	Args    Args
	Message string
	Host    Host
}

// BeforeExecution prints the tool call and validates the arguments.
func (b *Base) BeforeExecution(ctx context.Context, args Args) error {
	b.Host.Printer().ToolUse(b.Host.Name(), b.Spec.Name, args)
	if err := b.Spec.Validate(args); err != nil {
		return fmt.Errorf("tool '%v': %w", b.Spec.Name, err)
	}
	return nil
}

// AfterExecution adds the tool response to the conversation, truncated to
// the max tool response length of the host.
func (b *Base) AfterExecution(ctx context.Context, resp Response) error {
	msg, err := b.Host.Templates().ReadTemplate(prompts.ToolResponse, map[string]string{
		"tool_name":     b.Spec.Name,
		"tool_response": truncate(resp.Message, b.Host.MaxToolResponseLength()),
	})
	if err != nil {
		return fmt.Errorf("failed to render tool response: %w", err)
	}
	b.Host.AppendHuman(msg)
	return nil
}

// truncate s to max runes. max <= 0 disables truncation.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + truncationNotice
}
