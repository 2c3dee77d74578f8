package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/baalimago/agentloop/internal/prompts"
)

var DynamicPromptSpec = Specification{
	Name: "dynamic_prompt",
	Description: "Edit the dynamic section of your system prompt. Use it to keep notes which should " +
		"persist across tasks, such as user preferences.",
	Inputs: InputSchema{
		Type: "object",
		Properties: map[string]ParameterObject{
			"text": {
				Type:        "string",
				Description: "The note to store.",
			},
			"mode": {
				Type:        "string",
				Description: "'append' to add to the current notes, 'replace' to overwrite them.",
				Enum:        []string{"append", "replace"},
			},
		},
		Required: []string{"text"},
	},
}

type dynamicPromptTool struct {
	Base
}

func NewDynamicPrompt(b Base) Tool {
	return &dynamicPromptTool{Base: b}
}

func (d *dynamicPromptTool) Execute(ctx context.Context, args Args) Response {
	text := strings.TrimSpace(args.String("text"))
	mode := args.String("mode")
	if mode == "" {
		mode = "append"
	}
	src := d.Host.Templates()
	switch mode {
	case "append":
		current, err := src.ReadTemplate(prompts.Dynamic, nil)
		if err != nil && !errors.Is(err, prompts.ErrNotFound) {
			return Response{Message: fmt.Sprintf("failed to read dynamic prompt: %v", err)}
		}
		if current = strings.TrimSpace(current); current != "" {
			text = current + "\n" + text
		}
	case "replace":
	default:
		return Response{Message: fmt.Sprintf("unknown mode '%v', use 'append' or 'replace'", mode)}
	}
	if err := src.WriteTemplate(prompts.Dynamic, text); err != nil {
		return Response{Message: fmt.Sprintf("failed to write dynamic prompt: %v", err)}
	}
	return Response{Message: "Dynamic prompt updated. It will be part of your system prompt from the next message on."}
}
