package tools

import (
	"context"
	"fmt"

	"github.com/baalimago/agentloop/internal/memory"
)

var MemorizeSpec = Specification{
	Name:        "memorize",
	Description: "Save a piece of information to your long term memory. Relevant memories are shown to you automatically.",
	Inputs: InputSchema{
		Type: "object",
		Properties: map[string]ParameterObject{
			"text": {
				Type:        "string",
				Description: "The information to remember, phrased so it makes sense on its own.",
			},
		},
		Required: []string{"text"},
	},
}

type memorizeTool struct {
	Base
	store *memory.Store
}

func NewMemorize(store *memory.Store) Factory {
	return func(b Base) Tool {
		return &memorizeTool{Base: b, store: store}
	}
}

func (m *memorizeTool) Execute(ctx context.Context, args Args) Response {
	e, err := m.store.Add(args.String("text"))
	if err != nil {
		return Response{Message: fmt.Sprintf("failed to memorize: %v", err)}
	}
	return Response{Message: fmt.Sprintf("Memory saved with id: %v", e.ID)}
}
