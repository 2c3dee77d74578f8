// Package agent runs the message loop of a single agent: it queries the
// model, streams the reply, and either dispatches the tool the reply asks for
// or folds the problem back into the conversation.
package agent

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/baalimago/agentloop/internal/clock"
	"github.com/baalimago/agentloop/internal/history"
	"github.com/baalimago/agentloop/internal/models"
	"github.com/baalimago/agentloop/internal/prompts"
	"github.com/baalimago/agentloop/internal/ratelimit"
	"github.com/baalimago/agentloop/internal/scratch"
	"github.com/baalimago/agentloop/internal/tools"
	"github.com/baalimago/agentloop/internal/utils"
)

// Memory recalls what the agent has memorized which is relevant to the
// conversation. An empty string means nothing relevant was found. Unless
// forced, implementations may reuse a previous result.
type Memory interface {
	Fetch(ctx context.Context, force bool, conversation []history.Message) (string, error)
}

type Agent struct {
	name      string
	conf      Configurations
	model     models.StreamCompleter
	templates prompts.Source
	registry  *tools.Registry
	memory    Memory
	limiter   *ratelimit.Limiter
	history   *history.History
	data      scratch.Data
	printer   *utils.Printer
	streaming *StreamingRegistry
	clock     clock.Clock

	paused       atomic.Bool
	intervention atomic.Pointer[string]
	// interventionStatus is owned by the loop, it is set once an
	// intervention has been consumed in the current iteration.
	interventionStatus bool
}

type Option func(*Agent)

func WithConfigurations(c Configurations) Option {
	return func(a *Agent) {
		a.conf = c
	}
}

func WithMemory(m Memory) Option {
	return func(a *Agent) {
		a.memory = m
	}
}

func WithClock(c clock.Clock) Option {
	return func(a *Agent) {
		a.clock = c
	}
}

func WithPrinter(p *utils.Printer) Option {
	return func(a *Agent) {
		a.printer = p
	}
}

// WithStreamingRegistry sets the registry the agent marks itself in while
// running its message loop.
func WithStreamingRegistry(s *StreamingRegistry) Option {
	return func(a *Agent) {
		a.streaming = s
	}
}

// WithLimiter shares a rate limiter between agents. By default each agent
// gets its own, configured by its Configurations.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(a *Agent) {
		a.limiter = l
	}
}

// New agent which queries model, reads its prompts from templates and may
// use the tools in registry.
func New(model models.StreamCompleter, templates prompts.Source, registry *tools.Registry, options ...Option) *Agent {
	a := &Agent{
		conf:      Default,
		model:     model,
		templates: templates,
		registry:  registry,
	}
	for _, o := range options {
		o(a)
	}
	if a.clock == nil {
		a.clock = clock.Real()
	}
	if a.printer == nil {
		a.printer = utils.NewPrinter(os.Stdout, false, utils.DefaultTheme())
	}
	if a.streaming == nil {
		a.streaming = &StreamingRegistry{}
	}
	if a.limiter == nil {
		a.limiter = ratelimit.New(a.conf.RateLimit(), a.clock)
	}
	a.name = fmt.Sprintf("Agent %d", a.conf.AgentNumber)
	a.history = history.New(a.conf.KeepPolicy(), a.clock)
	return a
}

// History of the conversation of the agent.
func (a *Agent) History() *history.History { return a.history }

func (a *Agent) Name() string { return a.name }

func (a *Agent) AppendHuman(content string) {
	a.history.Append(history.Human, content)
}

func (a *Agent) Data() *scratch.Data { return &a.data }

func (a *Agent) Templates() prompts.Source { return a.templates }

func (a *Agent) Printer() *utils.Printer { return a.printer }

func (a *Agent) MaxToolResponseLength() int { return a.conf.MaxToolResponseLength }
