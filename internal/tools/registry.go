package tools

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/baalimago/agentloop/internal/prompts"
	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
)

// Factory binds a fresh invocation of a tool.
type Factory func(Base) Tool

type entry struct {
	spec    Specification
	factory Factory
}

// Registry is a threadsafe storage of tools, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
	debug bool
}

// NewRegistry returns an empty tools registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]entry), debug: misc.Truthy(os.Getenv("DEBUG"))}
}

// Set registers a tool under spec.Name.
func (r *Registry) Set(spec Specification, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.debug {
		ancli.Okf("adding tool to registry, name: %v\n", spec.Name)
	}
	r.tools[spec.Name] = entry{spec: spec, factory: f}
}

// Get returns the specification of the tool registered under name.
func (r *Registry) Get(name string) (Specification, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	return e.spec, ok
}

// Names of all registered tools, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]string, 0, len(r.tools))
	for k := range r.tools {
		ret = append(ret, k)
	}
	slices.Sort(ret)
	return ret
}

// Resolve binds an invocation of the tool registered under name, case
// sensitive. Unknown names resolve to a tool which reports that the tool
// doesn't exist.
func (r *Registry) Resolve(name string, args Args, message string, host Host) Tool {
	if args == nil {
		args = Args{}
	}
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return &unknownTool{
			Base:      Base{Spec: Specification{Name: name}, Args: args, Message: message, Host: host},
			available: r.Names(),
		}
	}
	return e.factory(Base{Spec: e.spec, Args: args, Message: message, Host: host})
}

// Catalogue renders every tool with its description and arguments, for the
// model to choose from.
func (r *Registry) Catalogue() string {
	var sb strings.Builder
	for i, name := range r.Names() {
		spec, _ := r.Get(name)
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("## %v\n%v\n", spec.Name, spec.Description))
		props := make([]string, 0, len(spec.Inputs.Properties))
		for p := range spec.Inputs.Properties {
			props = append(props, p)
		}
		slices.Sort(props)
		if len(props) > 0 {
			sb.WriteString("Arguments:\n")
		}
		for _, p := range props {
			po := spec.Inputs.Properties[p]
			req := "optional"
			if slices.Contains(spec.Inputs.Required, p) {
				req = "required"
			}
			sb.WriteString(fmt.Sprintf("- %v (%v, %v): %v\n", p, po.Type, req, po.Description))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

type unknownTool struct {
	Base
	available []string
}

func (u *unknownTool) BeforeExecution(ctx context.Context, args Args) error {
	return nil
}

func (u *unknownTool) Execute(ctx context.Context, args Args) Response {
	vars := map[string]string{
		"tool_name": u.Spec.Name,
		"tools":     strings.Join(u.available, ", "),
	}
	msg, err := u.Host.Templates().ReadTemplate(prompts.ToolNotFound, vars)
	if err != nil {
		msg = fmt.Sprintf("Tool '%v' not found. Available tools: %v", vars["tool_name"], vars["tools"])
	}
	return Response{Message: msg}
}

// AfterExecution adds the not found message as is, it isn't a tool response.
func (u *unknownTool) AfterExecution(ctx context.Context, resp Response) error {
	u.Host.AppendHuman(resp.Message)
	return nil
}
