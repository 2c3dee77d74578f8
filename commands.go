package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/baalimago/agentloop/internal/history"
	"github.com/baalimago/agentloop/internal/utils"
	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
)

// Set with buildflag if built in pipeline and not using go install
var (
	BuildVersion  = ""
	BuildChecksum = ""
)

func (a *app) execute(ctx context.Context) error {
	switch a.mode {
	case QUERY:
		return a.query(ctx)
	case CHAT:
		return a.chat(ctx)
	case TOOLS:
		fmt.Println(a.registry.Catalogue())
		return nil
	default:
		return fmt.Errorf("unhandled mode: %v", a.mode)
	}
}

func (a *app) query(ctx context.Context) error {
	prompt, err := readPrompt(a.stdin, a.flags.stdinReplace, a.args)
	if err != nil {
		return err
	}
	return a.solve(ctx, prompt)
}

// chat reads tasks from the user until they quit. The first task may be
// given as args.
func (a *app) chat(ctx context.Context) error {
	prompt := strings.Join(a.args[1:], " ")
	for {
		if prompt == "" {
			if !a.flags.raw && utils.IsInteractive(a.stdin) {
				fmt.Print("> ")
			}
			var err error
			prompt, err = a.lineReader().ReadUserInput(ctx)
			if err != nil {
				return err
			}
			if prompt == "" {
				continue
			}
		}
		if err := a.solve(ctx, prompt); err != nil {
			return err
		}
		prompt = ""
	}
}

// solve prompt with the agent and print its final answer.
func (a *app) solve(ctx context.Context, prompt string) error {
	result, err := a.agent.MessageLoop(ctx, prompt)
	a.saveConversation()
	if err != nil {
		return fmt.Errorf("agent stopped: %w", err)
	}
	a.printer.Result(a.agent.Name(), result)
	return nil
}

func (a *app) saveConversation() {
	if !a.conf.ShouldSaveConversations() {
		return
	}
	dir := filepath.Join(a.configDir, utils.ConversationsDir)
	err := os.MkdirAll(dir, 0o755)
	if err == nil {
		err = history.Save(dir, a.agent.History())
	}
	if err != nil {
		ancli.PrintWarn(fmt.Sprintf("failed to save conversation: %v\n", err))
	}
}

// lineReader is shared between the chat prompt and the operator, so that
// only one goroutine ever reads stdin.
func (a *app) lineReader() *utils.LineReader {
	if a.input == nil {
		a.input = utils.NewLineReader(a.stdin)
	}
	return a.input
}

// readPrompt returns the prompt by checking all the arguments and stdin.
// If there are no arguments, but data in stdin, stdin will become the
// prompt. If there are arguments and data in stdin, all stdinReplace tokens
// are substituted with the data in stdin.
func readPrompt(stdin *os.File, stdinReplace string, args []string) (string, error) {
	hasPipe := false
	if stdin != nil {
		fi, err := stdin.Stat()
		if err != nil {
			return "", fmt.Errorf("failed to stat stdin: %w", err)
		}
		hasPipe = fi.Mode()&os.ModeNamedPipe != 0
	}
	// First argument is the command, so we skip it
	args = args[1:]
	if !hasPipe {
		if len(args) == 0 {
			return "", errors.New("found no prompt, set args or pipe in some string")
		}
		return strings.Join(args, " "), nil
	}

	inputData, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	pipeIn := string(inputData)
	if len(args) == 0 {
		if strings.TrimSpace(pipeIn) == "" {
			return "", errors.New("found no prompt, set args or pipe in some string")
		}
		return pipeIn, nil
	}
	if stdinReplace == "" {
		return strings.Join(append(args, pipeIn), " "), nil
	}
	if misc.Truthy(os.Getenv("DEBUG")) {
		ancli.PrintOK(fmt.Sprintf("attempting to replace: '%v' with stdin\n", stdinReplace))
	}
	for i, arg := range args {
		args[i] = strings.ReplaceAll(arg, stdinReplace, pipeIn)
	}
	return strings.Join(args, " "), nil
}

func printVersion() error {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return errors.New("failed to read build info")
	}
	version := BuildVersion
	if version == "" {
		version = bi.Main.Version
	}
	fmt.Println("version: " + version)
	if BuildChecksum != "" {
		fmt.Println("checksum: " + BuildChecksum)
	}
	for _, dep := range bi.Deps {
		fmt.Printf("%s %s\n", dep.Path, dep.Version)
	}
	return utils.ErrUserInitiatedExit
}
