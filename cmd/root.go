package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/agenticcompany/redditor/internal/config"
	"github.com/agenticcompany/redditor/internal/log"
	"github.com/agenticcompany/redditor/internal/pipeline"
	"github.com/agenticcompany/redditor/internal/pipelines"
	"github.com/agenticcompany/redditor/internal/pubsub"
	"github.com/agenticcompany/redditor/internal/tracing"
)

var version = "dev"

// errReported means the command already wrote its failure to stderr.
var errReported = errors.New("command failed")

// app is the state shared by every command of one invocation.
type app struct {
	version string
	cfgFile string
	debug   bool

	cfg     config.Config
	cfgUsed string

	registry *pipeline.Registry
	runner   *pipeline.Runner
	events   *pubsub.Broker[pipeline.RunEvent]
	tracer   *tracing.Provider

	newDeps    func(config.Config) pipelines.Deps
	logCleanup func()
}

func newApp() *app {
	return &app{version: version, newDeps: pipelines.NewDeps}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "redditor",
		Short: "AI-powered Reddit agent system",
		Long: `Redditor - AI-Powered Reddit Agent System.

Manage and run AI agent pipelines for Reddit automation tasks
including content analysis, engagement, and monitoring.`,
		Version:       a.version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "",
		"config file (default: .redditor/config.yaml, then ~/.config/redditor/config.yaml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug mode")

	root.AddCommand(newPipelineCmd(a), newConfigCmd(a), newServeCmd(a))
	return root
}

// init loads settings and wires logging, tracing and the pipeline registry.
func (a *app) init(cmd *cobra.Command) error {
	cfg, used, err := config.Load(config.LoadOptions{ConfigFile: a.cfgFile})
	if err != nil {
		return err
	}
	if a.debug {
		cfg.Debug = true
		cfg.LogLevel = "DEBUG"
	}
	a.cfg, a.cfgUsed = cfg, used

	if cfg.Debug || cfg.LogFile != "" {
		level, err := log.ParseLevel(cfg.LogLevel)
		if err != nil {
			level = log.LevelInfo
		}
		cleanup, err := log.Init(log.Options{Path: cfg.LogFile, Writer: cmd.ErrOrStderr(), Level: level})
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		a.logCleanup = cleanup
		log.Debug(log.CatCLI, "redditor starting", "version", a.version, "config", used, "command", cmd.CommandPath())
	}

	a.tracer, err = tracing.NewProvider(cfg.Tracing)
	if err != nil {
		log.ErrorErr(log.CatCLI, "tracing disabled", err)
		a.tracer = tracing.Noop()
	}

	a.events = pubsub.NewBroker[pipeline.RunEvent]()
	a.runner = pipeline.NewRunner(
		pipeline.WithTracer(a.tracer.Tracer()),
		pipeline.WithEvents(a.events),
	)
	a.registry = pipeline.NewRegistry()
	return pipelines.RegisterBuiltins(a.registry, a.newDeps(cfg))
}

func (a *app) close() {
	if a.events != nil {
		a.events.Close()
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.tracer.Shutdown(ctx); err != nil {
			log.ErrorErr(log.CatCLI, "flushing traces", err)
		}
		cancel()
	}
	if a.logCleanup != nil {
		a.logCleanup()
	}
}

// run executes args against a fresh command tree.
func run(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errReported) {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return err
}

// Execute runs the root command
func Execute() error {
	return run(context.Background(), newApp(), os.Args[1:], os.Stdout, os.Stderr)
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
}
