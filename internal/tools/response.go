package tools

import "context"

var ResponseSpec = Specification{
	Name:        "response",
	Description: "Give the final answer to the user. This ends your task, use it once you are done.",
	Inputs: InputSchema{
		Type: "object",
		Properties: map[string]ParameterObject{
			"text": {
				Type:        "string",
				Description: "The answer to show the user.",
			},
		},
		Required: []string{"text"},
	},
}

type responseTool struct {
	Base
}

func NewResponse(b Base) Tool {
	return &responseTool{Base: b}
}

func (r *responseTool) Execute(ctx context.Context, args Args) Response {
	return Response{Message: args.String("text"), BreakLoop: true}
}

// AfterExecution leaves the conversation as is, the final answer is returned
// to the caller of the loop instead.
func (r *responseTool) AfterExecution(ctx context.Context, resp Response) error {
	return nil
}
