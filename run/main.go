package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"assistant-cli/cli"
	"assistant-cli/history"
	"assistant-cli/ollama"
	"assistant-cli/option"
	"assistant-cli/task"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

type appFlags struct {
	model        string
	temperature  float32
	setDefault   string
	list         bool
	showConfig   bool
	reset        bool
	configFile   string
	noStream     bool
	chat         bool
	historyN     int
	clearHistory bool
	tasksFile    string
	watch        bool
	version      bool
	prompt       []string
}

func parseFlags() *appFlags {
	f := &appFlags{}
	pflag.StringVarP(&f.model, "model", "m", "", "model override for this invocation")
	pflag.Float32VarP(&f.temperature, "temperature", "t", -1, "temperature override for this invocation")
	pflag.StringVar(&f.setDefault, "set-default", "", "persist a new default model and exit")
	pflag.BoolVarP(&f.list, "list", "l", false, "list models available on the server and exit")
	pflag.BoolVar(&f.showConfig, "config", false, "show current configuration and exit")
	pflag.BoolVar(&f.reset, "reset", false, "reset configuration to built-in defaults and exit")
	pflag.StringVar(&f.configFile, "config-file", "", "alternate configuration file path")
	pflag.BoolVar(&f.noStream, "no-stream", false, "disable streaming for this invocation")
	pflag.BoolVar(&f.chat, "chat", false, "start an interactive chat session")
	pflag.IntVar(&f.historyN, "history", 0, "show recent exchanges and exit (--history=N, default 10)")
	pflag.Lookup("history").NoOptDefVal = "10"
	pflag.BoolVar(&f.clearHistory, "clear-history", false, "delete all stored exchanges and exit")
	pflag.StringVar(&f.tasksFile, "tasks", "", "run scheduled prompt tasks from a YAML file")
	pflag.BoolVar(&f.watch, "watch", false, "with --tasks: reload the task file when it changes")
	pflag.BoolVarP(&f.version, "version", "v", false, "print version and exit")
	pflag.Parse()
	f.prompt = pflag.Args()
	return f
}

func main() {
	os.Exit(run())
}

func run() int {
	flags := parseFlags()
	if flags.version {
		fmt.Printf("assistant-cli %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return 0
	}
	if err := validateTemperature(pflag.CommandLine.Changed("temperature"), flags.temperature); err != nil {
		cli.PrintError(err)
		return 1
	}

	cfgPath := flags.configFile
	if cfgPath == "" {
		var err error
		cfgPath, err = option.ConfigPath()
		if err != nil {
			cli.PrintError(err)
			return 1
		}
	}
	cfg, err := option.LoadConfig(cfgPath)
	if err != nil {
		cli.PrintError(err)
		return 1
	}
	cfg.ApplyEnvOverrides()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case flags.setDefault != "":
		return setDefaultModel(cfgPath, flags.setDefault)
	case flags.list:
		return listModels(ctx, cfg)
	case flags.showConfig:
		cli.PrintConfig(cfg, cfgPath)
		return 0
	case flags.reset:
		return resetConfig(cfgPath)
	case flags.clearHistory:
		return clearHistory(cfgPath)
	case pflag.CommandLine.Changed("history"):
		return showHistory(cfgPath, flags.historyN)
	case flags.chat:
		// The session handles interrupts per message; the process-wide signal
		// context would stay canceled after the first Ctrl+C.
		stop()
		return runChat(cfg, cfgPath, flags)
	case flags.tasksFile != "":
		return runTasks(ctx, cfg, cfgPath, flags)
	default:
		return runPrompt(ctx, cfg, cfgPath, flags)
	}
}

// validateTemperature rejects explicit -t values outside what the generate
// API accepts. An unchanged flag passes; its -1 default means "not set".
func validateTemperature(changed bool, temp float32) error {
	if !changed {
		return nil
	}
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature %.2f is outside [0, 2]", temp)
	}
	return nil
}

// setDefaultModel persists a new default model to the config file. The write
// starts from the file's own values; environment overrides are never saved.
func setDefaultModel(cfgPath, model string) int {
	cfg, err := option.LoadConfig(cfgPath)
	if err != nil {
		cli.PrintError(err)
		return 1
	}
	cfg.DefaultModel = model
	if err := option.SaveConfig(cfg, cfgPath); err != nil {
		cli.PrintError(err)
		return 1
	}
	cli.PrintSuccess(fmt.Sprintf("Default model set to: %s", model))
	return 0
}

func resetConfig(cfgPath string) int {
	if err := option.SaveConfig(option.Default(), cfgPath); err != nil {
		cli.PrintError(err)
		return 1
	}
	cli.PrintSuccess("Configuration reset to defaults")
	cli.PrintConfig(option.Default(), cfgPath)
	return 0
}

func listModels(ctx context.Context, cfg option.Config) int {
	client := ollama.NewClient(cfg.OllamaHost)
	models, err := client.ListModels(ctx)
	if err != nil {
		cli.PrintError(err)
		return 1
	}
	cli.PrintModelList(models, cfg.DefaultModel)
	return 0
}

func historyPath(cfgPath string) string {
	return filepath.Join(filepath.Dir(cfgPath), "history.db")
}

func clearHistory(cfgPath string) int {
	store, err := history.Open(historyPath(cfgPath))
	if err != nil {
		cli.PrintError(err)
		return 1
	}
	defer store.Close()
	n, err := store.Clear()
	if err != nil {
		cli.PrintError(err)
		return 1
	}
	cli.PrintSuccess(fmt.Sprintf("Cleared %d stored exchange(s)", n))
	return 0
}

func showHistory(cfgPath string, n int) int {
	if n <= 0 {
		cli.PrintError(fmt.Errorf("history count must be positive, got %d", n))
		return 1
	}
	store, err := history.Open(historyPath(cfgPath))
	if err != nil {
		cli.PrintError(err)
		return 1
	}
	defer store.Close()
	exchanges, err := store.Recent(n)
	if err != nil {
		cli.PrintError(err)
		return 1
	}
	cli.PrintExchanges(exchanges)
	return 0
}

// openStore returns nil when the exchange store cannot be opened; recording
// is best-effort and never blocks the request itself.
func openStore(cfgPath string) *history.Store {
	store, err := history.Open(historyPath(cfgPath))
	if err != nil {
		log.Printf("exchange store unavailable: %v", err)
		return nil
	}
	return store
}

// effectiveModel applies the flag override on top of the config default.
func effectiveModel(cfg option.Config, flags *appFlags) string {
	if flags.model != "" {
		return flags.model
	}
	return cfg.DefaultModel
}

// effectiveTemperature resolves the temperature for this invocation. The
// flag's -1 default means "not set".
func effectiveTemperature(cfg option.Config, flags *appFlags) float32 {
	if flags.temperature >= 0 {
		return flags.temperature
	}
	return cfg.Temperature
}

func runChat(cfg option.Config, cfgPath string, flags *appFlags) int {
	if !cli.IsStdinTTY() {
		cli.PrintError(fmt.Errorf("chat mode requires a terminal"))
		return 1
	}
	ctx := context.Background()
	client := ollama.NewClient(cfg.OllamaHost)
	if err := client.CheckRunning(ctx); err != nil {
		cli.PrintError(err)
		return 1
	}

	store := openStore(cfgPath)
	if store != nil {
		defer store.Close()
	}

	temp := effectiveTemperature(cfg, flags)
	session := cli.NewChatSession(client, store, effectiveModel(cfg, flags), &temp,
		filepath.Join(filepath.Dir(cfgPath), "chat_history"))
	defer session.Close()

	if err := session.Run(ctx); err != nil {
		cli.PrintError(err)
		return 1
	}
	return 0
}

func runTasks(ctx context.Context, cfg option.Config, cfgPath string, flags *appFlags) int {
	store := openStore(cfgPath)
	if store != nil {
		defer store.Close()
	}

	runner := task.NewRunner(cfg, store, flags.tasksFile)
	resident, err := runner.Start(ctx)
	if err != nil {
		cli.PrintError(err)
		return 1
	}
	if !resident {
		return 0
	}

	if flags.watch {
		go func() {
			if err := runner.Watch(ctx); err != nil {
				log.Printf("failed to watch task file: %v", err)
			}
		}()
	}

	log.Printf("scheduler running, waiting for signals")
	<-ctx.Done()
	runner.Stop()
	return 0
}

func runPrompt(ctx context.Context, cfg option.Config, cfgPath string, flags *appFlags) int {
	prompt, err := assemblePrompt(flags)
	if err != nil {
		cli.PrintError(err)
		return 1
	}
	if strings.TrimSpace(prompt) == "" {
		cli.PrintUsageHint()
		return 0
	}

	model := effectiveModel(cfg, flags)
	temp := effectiveTemperature(cfg, flags)
	stream := cfg.Stream && !flags.noStream

	client := ollama.NewClient(cfg.OllamaHost)
	store := openStore(cfgPath)
	if store != nil {
		defer store.Close()
	}

	cli.PrintThinking(model)

	if stream {
		return streamPrompt(ctx, client, store, model, temp, prompt)
	}
	return blockingPrompt(ctx, client, store, model, temp, prompt)
}

func assemblePrompt(flags *appFlags) (string, error) {
	if len(flags.prompt) > 0 {
		return strings.Join(flags.prompt, " "), nil
	}
	if cli.IsPiped() {
		return cli.ReadPiped()
	}
	return cli.ReadMultiline()
}

func streamPrompt(ctx context.Context, client *ollama.Client, store *history.Store, model string, temp float32, prompt string) int {
	payload := ollama.NewGeneratePayload(model, prompt, &temp, true)
	cli.PrintSeparator(60)
	cli.PrintAssistantPrefix()
	text, stats, err := client.GenerateStream(ctx, payload, func(chunk ollama.StreamChunk) error {
		fmt.Print(chunk.Content)
		return nil
	})
	fmt.Println()
	cli.PrintSeparator(60)
	if err != nil {
		cli.PrintError(err)
		return 1
	}
	cli.PrintStats(stats)
	recordPrompt(store, model, temp, prompt, text, stats)
	return 0
}

func blockingPrompt(ctx context.Context, client *ollama.Client, store *history.Store, model string, temp float32, prompt string) int {
	payload := ollama.NewGeneratePayload(model, prompt, &temp, false)
	resp, err := client.Generate(ctx, payload)
	if err != nil {
		cli.PrintError(err)
		return 1
	}
	cli.PrintSeparator(60)
	cli.PrintAssistantPrefix()
	fmt.Print(cli.RenderResponse(resp.Response))
	cli.PrintSeparator(60)

	if store != nil {
		ex := history.Exchange{
			Source:      history.SourcePrompt,
			Model:       model,
			Temperature: temp,
			Prompt:      prompt,
			Response:    resp.Response,
			EvalCount:   resp.EvalCount,
		}
		if resp.TotalDuration > 0 {
			ex.Duration = time.Duration(resp.TotalDuration)
		}
		if err := store.Record(ex); err != nil {
			log.Printf("failed to record exchange: %v", err)
		}
	}
	return 0
}

func recordPrompt(store *history.Store, model string, temp float32, prompt, response string, stats *ollama.StreamStats) {
	if store == nil {
		return
	}
	ex := history.Exchange{
		Source:      history.SourcePrompt,
		Model:       model,
		Temperature: temp,
		Prompt:      prompt,
		Response:    response,
	}
	if stats != nil {
		ex.EvalCount = stats.Tokens
		ex.Duration = stats.TotalTime()
	}
	if err := store.Record(ex); err != nil {
		log.Printf("failed to record exchange: %v", err)
	}
}
