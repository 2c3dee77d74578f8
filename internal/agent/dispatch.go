package agent

import (
	"context"
	"fmt"
	"os"

	"github.com/baalimago/agentloop/internal/extract"
	"github.com/baalimago/agentloop/internal/history"
	"github.com/baalimago/agentloop/internal/prompts"
	"github.com/baalimago/agentloop/internal/tools"
	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/debug"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
)

// processTools runs the tool requested in msg. A message without a tool
// request is answered with a format reminder.
func (a *Agent) processTools(ctx context.Context, msg string) (string, bool, error) {
	req, ok := extract.ToolRequest(msg)
	if !ok {
		warning, err := a.templates.ReadTemplate(prompts.MsgMisformat, nil)
		if err != nil {
			return "", false, fmt.Errorf("failed to read misformat warning: %w", err)
		}
		a.history.Append(history.Human, warning)
		a.printer.Warn(warning)
		return "", false, nil
	}
	if misc.Truthy(os.Getenv("DEBUG_CALL")) {
		ancli.Noticef("tool request: %v", debug.IndentedJsonFmt(req))
	}
	args := tools.Args(req.Args)
	tool := a.registry.Resolve(req.Name, args, msg, a)
	return a.runTool(ctx, req.Name, tool, args)
}

// runTool through its lifecycle, checking for interventions in between
// every step. A panicking tool is reported as an error.
func (a *Agent) runTool(ctx context.Context, name string, tool tools.Tool, args tools.Args) (result string, done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, done = "", false
			err = fmt.Errorf("tool '%v' panicked: %v", name, r)
		}
	}()
	if stop, err := a.handleIntervention(ctx, ""); stop || err != nil {
		return "", false, err
	}
	if err := tool.BeforeExecution(ctx, args); err != nil {
		return "", false, fmt.Errorf("failed to prepare tool '%v': %w", name, err)
	}
	if stop, err := a.handleIntervention(ctx, ""); stop || err != nil {
		return "", false, err
	}
	resp := tool.Execute(ctx, args)
	if stop, err := a.handleIntervention(ctx, ""); stop || err != nil {
		return "", false, err
	}
	if err := tool.AfterExecution(ctx, resp); err != nil {
		return "", false, fmt.Errorf("failed to finish tool '%v': %w", name, err)
	}
	if stop, err := a.handleIntervention(ctx, ""); stop || err != nil {
		return "", false, err
	}
	if resp.BreakLoop {
		return resp.Message, true, nil
	}
	return "", false, nil
}
