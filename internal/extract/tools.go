// Package extract locates tool requests in free-form model output.
package extract

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
	"github.com/tidwall/jsonc"
)

// Request is a tool invocation as written by the model.
type Request struct {
	Name string         `json:"tool_name"`
	Args map[string]any `json:"tool_args"`
}

// JSON returns the canonical serialization of the request.
func (r Request) JSON() string {
	if r.Args == nil {
		r.Args = map[string]any{}
	}
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf("ERROR: failed to marshal tool request: %v", err)
	}
	return string(b)
}

// ToolRequest extracts the first parseable JSON object from text. Prose around
// the object, comments and trailing commas are tolerated. The boolean is false
// when no object could be parsed at all. A parsed object without 'tool_name'
// yields an empty name, without an object 'tool_args' an empty map.
func ToolRequest(text string) (Request, bool) {
	obj, ok := parseDirty(text)
	if !ok {
		return Request{}, false
	}
	req := Request{Args: map[string]any{}}
	if name, isStr := obj["tool_name"].(string); isStr {
		req.Name = name
	}
	if args, isMap := obj["tool_args"].(map[string]any); isMap {
		req.Args = args
	}
	return req, true
}

func parseDirty(text string) (map[string]any, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return nil, false
	}
	if obj, ok := decode(text[start : end+1]); ok {
		return obj, true
	}
	// The outermost span may include prose between two separate objects, or
	// braces inside the prose. Fall back to each balanced object in order.
	for _, candidate := range balancedObjects(text[start:]) {
		if obj, ok := decode(candidate); ok {
			return obj, true
		}
	}
	if misc.Truthy(os.Getenv("DEBUG")) {
		ancli.PrintWarn(fmt.Sprintf("failed to find any tool request in: %q\n", text))
	}
	return nil, false
}

func decode(candidate string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal(jsonc.ToJSON([]byte(candidate)), &obj); err != nil {
		return nil, false
	}
	return obj, obj != nil
}

// balancedObjects returns every top level {...} span of s, skipping braces
// inside double quoted strings.
func balancedObjects(s string) []string {
	var ret []string
	depth := 0
	begin := -1
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				begin = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				ret = append(ret, s[begin:i+1])
			}
		}
	}
	return ret
}
