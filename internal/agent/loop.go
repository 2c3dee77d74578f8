package agent

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/baalimago/agentloop/internal/history"
	"github.com/baalimago/agentloop/internal/models"
	"github.com/baalimago/agentloop/internal/prompts"
	"github.com/baalimago/agentloop/internal/utils"
	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
)

// MessageLoop adds msg to the conversation and lets the agent iterate until
// it uses a tool which ends the loop, returning that tool's message. Errors
// along the way are added to the conversation for the agent to act upon.
// The only error returned is the one of ctx, once it's done.
func (a *Agent) MessageLoop(ctx context.Context, msg string) (string, error) {
	a.streaming.mark(a)
	defer a.streaming.unmark(a)
	// Interventions are aimed at a running task, drop any left from the last one
	if stale := a.intervention.Swap(nil); stale != nil && misc.Truthy(os.Getenv("DEBUG")) {
		ancli.PrintWarn(fmt.Sprintf("dropping intervention left from previous task: %q\n", *stale))
	}

	userMsg, err := a.templates.ReadTemplate(prompts.UserMessage, map[string]string{"message": msg})
	if err != nil {
		ancli.PrintWarn(fmt.Sprintf("failed to render user message, using it as is: %v\n", err))
		userMsg = msg
	}
	a.history.Append(history.Human, userMsg)

	forceMemories := true
	for {
		a.interventionStatus = false
		result, done, err := a.iterate(ctx, forceMemories)
		forceMemories = false
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if err != nil {
			a.recoverFrom(err)
			continue
		}
		if done {
			return result, nil
		}
	}
}

// iterate once: query the model and act upon its reply. done is set once
// the agent has given its final answer, result.
func (a *Agent) iterate(ctx context.Context, forceMemories bool) (result string, done bool, err error) {
	system, err := a.buildFullPrompt()
	if err != nil {
		return "", false, err
	}
	memories, err := a.fetchMemories(ctx, forceMemories)
	if err != nil {
		return "", false, err
	}
	if memories != "" {
		system += "\n\n" + memories
	}
	chat := toChat(a.history.ID, system, a.history.Messages())

	callID, err := a.limiter.LimitCallAndInput(ctx, estimateTokens(chat))
	if err != nil {
		return "", false, fmt.Errorf("failed to wait for rate limit: %w", err)
	}
	a.printer.Heading(a.name, "generating")
	response, intervened, err := a.stream(ctx, chat)
	a.printer.EndStream()
	a.limiter.SetOutputTokens(callID, len(response)/4)
	if err != nil {
		return "", false, err
	}
	if intervened {
		return "", false, nil
	}
	// The intervention may arrive just as the stream completes
	if intervened, err := a.handleIntervention(ctx, response); err != nil || intervened {
		return "", false, err
	}

	last, hasLast := a.history.LastOfRole(history.Agent)
	a.history.Append(history.Agent, response)
	if hasLast && last.Content == response {
		warning, err := a.templates.ReadTemplate(prompts.MsgRepeat, nil)
		if err != nil {
			return "", false, fmt.Errorf("failed to read repeat warning: %w", err)
		}
		a.history.Append(history.Human, warning)
		a.printer.Warn(warning)
		return "", false, nil
	}
	return a.processTools(ctx, response)
}

// stream the reply of the model. The stream is abandoned as soon as an
// intervention is consumed, in which case intervened is set and the partial
// reply has been added to the conversation.
func (a *Agent) stream(ctx context.Context, chat models.Chat) (response string, intervened bool, err error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	completions, err := a.model.StreamCompletions(streamCtx, chat)
	if err != nil {
		return "", false, fmt.Errorf("failed to start completion stream: %w", err)
	}
	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return sb.String(), false, ctx.Err()
		case ev, open := <-completions:
			if !open {
				return sb.String(), false, nil
			}
			switch e := ev.(type) {
			case string:
				a.printer.Chunk(e)
				sb.WriteString(e)
			case error:
				return sb.String(), false, fmt.Errorf("completion stream failed: %w", e)
			case models.NoopEvent:
			default:
				if misc.Truthy(os.Getenv("DEBUG")) {
					ancli.PrintWarn(fmt.Sprintf("unexpected completion event type: %T\n", ev))
				}
			}
			intervened, err := a.handleIntervention(ctx, sb.String())
			if err != nil {
				return sb.String(), false, err
			}
			if intervened {
				return sb.String(), true, nil
			}
		}
	}
}

// recoverFrom an error by adding it to the conversation, so that the agent
// may fix it.
func (a *Agent) recoverFrom(err error) {
	formatted := utils.FormatError(err)
	msg, tmplErr := a.templates.ReadTemplate(prompts.Error, map[string]string{"error": formatted})
	if tmplErr != nil {
		ancli.PrintWarn(fmt.Sprintf("failed to render error: %v\n", tmplErr))
		msg = "# Error\n" + formatted
	}
	a.history.Append(history.Human, msg)
	a.printer.Error(msg)
}
