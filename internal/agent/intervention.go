package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/baalimago/agentloop/internal/history"
	"github.com/baalimago/agentloop/internal/prompts"
	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
)

const pausePollInterval = 100 * time.Millisecond

// Pause the agent at its next checkpoint.
func (a *Agent) Pause() { a.paused.Store(true) }

// Resume a paused agent.
func (a *Agent) Resume() { a.paused.Store(false) }

func (a *Agent) Paused() bool { return a.paused.Load() }

// Intervene queues msg for the agent. It is added to the conversation at
// the next checkpoint, aborting whatever the agent is doing in the current
// iteration. A later call replaces a message which hasn't been consumed yet.
// Messages still pending when the next MessageLoop starts are dropped.
func (a *Agent) Intervene(msg string) {
	a.intervention.Store(&msg)
}

// handleIntervention is the checkpoint of the loop. It waits while the agent
// is paused, then consumes a pending intervention: progress, the output of
// the agent so far, is kept as an agent message followed by the
// intervention. It reports whether an intervention has been consumed during
// the current iteration.
func (a *Agent) handleIntervention(ctx context.Context, progress string) (bool, error) {
	for a.paused.Load() {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(pausePollInterval):
		}
	}
	if a.interventionStatus {
		return true, nil
	}
	msg := a.intervention.Swap(nil)
	if msg == nil {
		return false, nil
	}
	if strings.TrimSpace(progress) != "" {
		a.history.Append(history.Agent, progress)
	}
	content, err := a.templates.ReadTemplate(prompts.Intervention, map[string]string{"user_message": *msg})
	if err != nil {
		// Already consumed, keep it unrendered
		ancli.PrintWarn(fmt.Sprintf("failed to render intervention: %v\n", err))
		content = *msg
	}
	a.history.Append(history.Human, content)
	a.printer.Human("intervention", *msg)
	a.interventionStatus = true
	return true, nil
}
