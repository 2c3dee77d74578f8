package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/baalimago/agentloop/internal/agent"
	"github.com/baalimago/agentloop/internal/memory"
	"github.com/baalimago/agentloop/internal/models"
	"github.com/baalimago/agentloop/internal/prompts"
	"github.com/baalimago/agentloop/internal/tools"
	"github.com/baalimago/agentloop/internal/utils"
	"github.com/baalimago/agentloop/internal/vendors/echo"
	"github.com/baalimago/agentloop/internal/vendors/openai"
	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/debug"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
	"github.com/spf13/pflag"
)

type Mode int

const (
	HELP Mode = iota
	QUERY
	CHAT
	TOOLS
	VERSION
)

const (
	agentConfigFile = "agentConfig.json"
	promptsDir      = "prompts"
	memoriesFile    = "memories.yaml"
)

type flagSet struct {
	model        string
	raw          bool
	stdinReplace string
	configDir    string
}

// app is everything a command needs, wired from flags and config files.
type app struct {
	mode      Mode
	args      []string
	flags     flagSet
	configDir string
	conf      agent.Configurations
	printer   *utils.Printer
	registry  *tools.Registry
	agent     *agent.Agent
	streaming *agent.StreamingRegistry
	stdin     *os.File
	input     *utils.LineReader
}

func getModeFromArgs(cmd string) (Mode, error) {
	switch cmd {
	case "query", "q":
		return QUERY, nil
	case "chat", "c":
		return CHAT, nil
	case "tools", "t":
		return TOOLS, nil
	case "version", "v":
		return VERSION, nil
	case "help", "h":
		return HELP, nil
	default:
		return HELP, fmt.Errorf("unknown command: '%s'", cmd)
	}
}

func parseFlags(args []string) (flagSet, []string, error) {
	var f flagSet
	fs := pflag.NewFlagSet("agentloop", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVarP(&f.model, "model", "m", "", "Set the model to use.")
	fs.BoolVarP(&f.raw, "raw", "r", false, "Set to true to only print the final answer, without styling.")
	fs.StringVarP(&f.stdinReplace, "replace", "I", "", "Set the string to replace with stdin.")
	fs.StringVar(&f.configDir, "config-dir", "", "Set the config dir.")
	if err := fs.Parse(args); err != nil {
		return f, nil, err
	}
	return f, fs.Args(), nil
}

func printUsage(configDir string) {
	fmt.Printf(usage, false, "", configDir)
}

// setup parses the args and wires the agent for the command they name.
func setup(args []string) (*app, error) {
	flags, rest, err := parseFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		rest, err = []string{"help"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	configDir := flags.configDir
	if configDir == "" {
		configDir, err = utils.GetConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to find config dir: %w", err)
		}
	}
	if len(rest) == 0 {
		printUsage(configDir)
		return nil, errors.New("no command given")
	}
	mode, err := getModeFromArgs(rest[0])
	if err != nil {
		return nil, err
	}
	switch mode {
	case HELP:
		printUsage(configDir)
		return nil, utils.ErrUserInitiatedExit
	case VERSION:
		return nil, printVersion()
	}

	a := &app{
		mode:      mode,
		args:      rest,
		flags:     flags,
		configDir: configDir,
		streaming: &agent.StreamingRegistry{},
		stdin:     os.Stdin,
	}
	dflt := agent.Default
	a.conf, err = utils.LoadConfigFromFile(configDir, agentConfigFile, &dflt)
	if err != nil {
		return nil, fmt.Errorf("failed to load configs: %w", err)
	}
	if flags.model != "" {
		a.conf.Model = flags.model
	}
	if misc.Truthy(os.Getenv("DEBUG")) {
		ancli.PrintOK(fmt.Sprintf("configurations: %v\n", debug.IndentedJsonFmt(a.conf)))
	}

	theme := utils.DefaultTheme()
	if !flags.raw {
		theme, err = utils.LoadTheme(configDir)
		if err != nil {
			ancli.PrintWarn(fmt.Sprintf("failed to load theme, using default: %v\n", err))
		}
	}
	a.printer = utils.NewPrinter(os.Stdout, flags.raw, theme)

	store, err := memory.Open(filepath.Join(configDir, memoriesFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open memories: %w", err)
	}
	if misc.Truthy(os.Getenv("DEBUG")) {
		ancli.PrintOK(fmt.Sprintf("loaded %v memories\n", store.Len()))
	}
	a.registry = tools.Init(tools.Dependencies{
		StripeAPIKey: os.Getenv("STRIPE_API_KEY"),
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		Memories:     store,
	})
	if mode == TOOLS {
		return a, nil
	}

	templates, err := prompts.NewDir(filepath.Join(configDir, promptsDir))
	if err != nil {
		return nil, fmt.Errorf("failed to setup prompts: %w", err)
	}
	model := selectModel(a.conf)
	if err := model.Setup(); err != nil {
		return nil, fmt.Errorf("failed to setup model '%v': %w", a.conf.Model, err)
	}
	a.agent = agent.New(model, templates, a.registry,
		agent.WithConfigurations(a.conf),
		agent.WithMemory(memory.NewRecall(store, a.conf.AutoMemoryCount, a.conf.AutoMemorySkip)),
		agent.WithPrinter(a.printer),
		agent.WithStreamingRegistry(a.streaming),
	)
	return a, nil
}

func selectModel(conf agent.Configurations) models.StreamCompleter {
	if conf.Model == echo.ModelName {
		return &echo.Echo{}
	}
	gpt := openai.GptDefault
	gpt.Model = conf.Model
	if conf.ModelURL != "" {
		gpt.URL = conf.ModelURL
	}
	return &gpt
}
