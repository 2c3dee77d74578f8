package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"

	"github.com/baalimago/agentloop/internal/utils"
	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
)

const usage = `agentloop - an autonomous agent which solves tasks step by step using tools

Prerequisites:
  - Set the OPENAI_API_KEY environment variable to your OpenAI API key
  - (Optional) Set the STRIPE_API_KEY environment variable to enable payments
  - (Optional) Set the AGENTLOOP_CONFIG_HOME environment variable to move the config dir
  - (Optional) Set the NO_COLOR environment variable to disable ansi color output

Usage: agentloop [flags] <command>

Flags:
  -m, --model string          Set the model to use. (default is found in agentConfig.json)
  -r, --raw bool              Set to true to only print the final answer, without styling. (default %v)
  -I, --replace string        Set the string to replace with stdin. (default %v)
      --config-dir string     Set the config dir. (default '%v')

Commands:
  h|help                      Display this help message
  q|query <text>              Give the agent a task, print its final answer
  c|chat [text]               Chat with the agent. Ctrl+C while it works lets you intervene
  t|tools                     List the tools available to the agent
  v|version                   Print the version and the dependencies

Examples:
  - agentloop query "Summarize the text on https://go.dev/doc/effective_go"
  - agentloop -m gpt-4.1 chat
  - cat notes.md | agentloop -I {} q "Remember the key points of: {}"
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ancli.SetupSlog()
	if misc.Truthy(os.Getenv("DEBUG_CPU")) {
		f, err := os.Create("cpu_profile.prof")
		if err != nil {
			ancli.PrintErr(fmt.Sprintf("failed to create profiler file: %v\n", err))
		} else {
			defer f.Close()
			if err := pprof.StartCPUProfile(f); err != nil {
				ancli.PrintErr(fmt.Sprintf("failed to start profiler: %v\n", err))
			}
			defer pprof.StopCPUProfile()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, err := setup(args)
	if err != nil {
		if errors.Is(err, utils.ErrUserInitiatedExit) {
			return 0
		}
		ancli.PrintErr(fmt.Sprintf("failed to setup: %v\n", err))
		return 1
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	defer signal.Stop(signals)
	go a.newOperator(cancel).monitor(ctx, signals)

	err = a.execute(ctx)
	if err != nil {
		if errors.Is(err, utils.ErrUserInitiatedExit) || errors.Is(err, context.Canceled) {
			ancli.Okf("Seems like you wanted out. Byebye!\n")
			return 0
		}
		ancli.PrintErr(fmt.Sprintf("failed to run: %v\n", err))
		return 1
	}
	if misc.Truthy(os.Getenv("DEBUG")) {
		ancli.PrintOK("things seems to have worked out. Bye bye!\n")
	}
	return 0
}
