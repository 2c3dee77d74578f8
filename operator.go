package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/baalimago/agentloop/internal/agent"
	"github.com/baalimago/agentloop/internal/utils"
	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
)

// operator turns interrupts into interventions. An interrupt while an agent
// works pauses it and asks the user for a message to the agent. Otherwise,
// or when there is no way to ask, the interrupt cancels.
type operator struct {
	streaming *agent.StreamingRegistry
	input     *utils.LineReader
	printer   *utils.Printer
	cancel    context.CancelFunc
}

func (a *app) newOperator(cancel context.CancelFunc) *operator {
	o := &operator{
		streaming: a.streaming,
		printer:   a.printer,
		cancel:    cancel,
	}
	if a.mode == CHAT {
		o.input = a.lineReader()
	}
	return o
}

func (o *operator) monitor(ctx context.Context, signals <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			if misc.Truthy(os.Getenv("DEBUG")) {
				ancli.PrintOK(fmt.Sprintf("received signal: %v\n", sig))
			}
			o.interrupt(ctx)
		}
	}
}

func (o *operator) interrupt(ctx context.Context) {
	a := o.streaming.Current()
	if a == nil || o.input == nil {
		o.cancel()
		return
	}
	a.Pause()
	defer a.Resume()
	o.printer.Warn(fmt.Sprintf("%v paused. Type a message to intervene, press enter to resume or 'q' to quit.", a.Name()))
	msg, err := o.input.ReadUserInput(ctx)
	if err != nil {
		if !errors.Is(err, utils.ErrUserInitiatedExit) {
			ancli.PrintWarn(fmt.Sprintf("failed to read intervention: %v\n", err))
		}
		o.cancel()
		return
	}
	if msg != "" {
		a.Intervene(msg)
	}
}
