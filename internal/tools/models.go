package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/baalimago/agentloop/internal/prompts"
	"github.com/baalimago/agentloop/internal/scratch"
	"github.com/baalimago/agentloop/internal/utils"
)

// Specification describes a tool to the model.
type Specification struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Inputs      InputSchema `json:"input_schema"`
}

type InputSchema struct {
	Type       string                     `json:"type"`
	Required   []string                   `json:"required"`
	Properties map[string]ParameterObject `json:"properties"`
}

type ParameterObject struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

// Validate that every required input is present in args.
func (s Specification) Validate(args Args) error {
	var missing []string
	for _, r := range s.Inputs.Required {
		if v, ok := args[r]; !ok || v == nil {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		return NewValidationError(missing)
	}
	return nil
}

type ValidationError struct {
	fieldsMissing []string
}

func NewValidationError(fieldsMissing []string) error {
	// Sort for deterministic error print
	slices.Sort(fieldsMissing)
	return ValidationError{fieldsMissing: fieldsMissing}
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("validation error, fields missing: %v", v.fieldsMissing)
}

// Args are the arguments of a tool invocation, as decoded from the model
// output.
type Args map[string]any

// String returns the argument as a string. Missing arguments are empty,
// other types are formatted.
func (a Args) String(key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if f, ok := v.(float64); ok && f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return fmt.Sprintf("%v", v)
}

// Int64 returns the argument as an integer. Numeric strings are accepted.
func (a Args) Int64(key string) (int64, error) {
	switch v := a[key].(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("argument '%v' must be a whole number, got: %v", key, v)
		}
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case json.Number:
		return v.Int64()
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("argument '%v' must be a whole number: %w", key, err)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("argument '%v' is missing", key)
	default:
		return 0, fmt.Errorf("argument '%v' has unsupported type %T", key, v)
	}
}

// Response is the outcome of a tool execution. A response with BreakLoop set
// ends the message loop, with Message as the final answer.
type Response struct {
	Message   string `json:"message"`
	BreakLoop bool   `json:"break_loop"`
}

// Tool is one invocation of a registered tool, bound to its arguments and
// the agent which requested it.
type Tool interface {
	BeforeExecution(ctx context.Context, args Args) error
	// Execute the tool. Failures are encoded in the returned message.
	Execute(ctx context.Context, args Args) Response
	AfterExecution(ctx context.Context, resp Response) error
}

// Host is the agent a tool runs within.
type Host interface {
	Name() string
	// AppendHuman adds a message on behalf of the user to the conversation.
	AppendHuman(content string)
	Data() *scratch.Data
	Templates() prompts.Source
	Printer() *utils.Printer
	MaxToolResponseLength() int
}
