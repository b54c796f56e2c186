package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/gameshake/gameshake/pkg/gameshake/config"
	"github.com/gameshake/gameshake/pkg/gameshake/output"
	"github.com/gameshake/gameshake/pkg/system"
)

type Config struct {
	ConfigPath      string
	CredentialsPath string
	OutputWriter    io.Writer
	// ErrorWriter receives logs, prompts and the progress bar.
	ErrorWriter    io.Writer
	DefaultContext string
	Clock          clock.PassiveClock
}

type runtimeState struct {
	configPath           string
	credentialsPath      string
	cfg                  *config.Config
	contextOverride      string
	outputFormat         string
	serverOverride       string
	tokenOverride        string
	tokenStorageOverride string
	metricsFile          string
	traceExporter        string
	nonInteractive       bool
	noProgress           bool
	verbose              bool
	writer               io.Writer
	errWriter            io.Writer
	clock                clock.PassiveClock
	log                  *zap.SugaredLogger
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		ConfigPath:      config.DefaultConfigPath(),
		CredentialsPath: config.DefaultCredentialsPath(),
		OutputWriter:    os.Stdout,
		ErrorWriter:     os.Stderr,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		configPath:      cfg.ConfigPath,
		credentialsPath: cfg.CredentialsPath,
		contextOverride: cfg.DefaultContext,
		writer:          cfg.OutputWriter,
		errWriter:       cfg.ErrorWriter,
		clock:           cfg.Clock,
	}

	root := &cobra.Command{
		Use:          "gameshake",
		Short:        "Fetch your games, achievements and leaderboards",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.errWriter == nil {
				rt.errWriter = os.Stderr
			}
			if rt.clock == nil {
				rt.clock = clock.RealClock{}
			}
			if rt.configPath == "" {
				rt.configPath = config.DefaultConfigPath()
			}
			if rt.credentialsPath == "" {
				rt.credentialsPath = config.DefaultCredentialsPath()
			}
			if rt.contextOverride == "" {
				rt.contextOverride = os.Getenv("GAMESHAKE_CONTEXT")
			}
			if rt.outputFormat == "" {
				rt.outputFormat = os.Getenv("GAMESHAKE_OUTPUT")
			}
			if rt.serverOverride == "" {
				rt.serverOverride = os.Getenv("GAMESHAKE_SERVER")
			}
			if rt.tokenOverride == "" {
				rt.tokenOverride = os.Getenv("GAMESHAKE_TOKEN")
			}
			if rt.tokenStorageOverride == "" {
				rt.tokenStorageOverride = os.Getenv("GAMESHAKE_TOKEN_STORAGE")
			}
			if rt.metricsFile == "" {
				rt.metricsFile = os.Getenv("GAMESHAKE_METRICS_FILE")
			}
			if rt.traceExporter == "" {
				rt.traceExporter = os.Getenv("GAMESHAKE_TRACE_EXPORTER")
			}
			if !rt.nonInteractive {
				rt.nonInteractive = strings.EqualFold(os.Getenv("GAMESHAKE_NON_INTERACTIVE"), "true")
			}
			if !rt.verbose {
				rt.verbose = strings.EqualFold(os.Getenv("GAMESHAKE_VERBOSE"), "true")
			}
			rt.log = system.NewLogger(rt.verbose, rt.errWriter)

			if cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config" {
				return nil
			}
			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			// Server and token together are enough to fetch without a config file.
			if rt.serverOverride != "" && rt.tokenOverride != "" {
				if cfg, err := config.Load(rt.configPath); err == nil {
					rt.cfg = cfg
				} else {
					defaults := config.DefaultConfig()
					rt.cfg = &defaults
				}
				return nil
			}

			cfg, err := config.Load(rt.configPath)
			if err != nil {
				return err
			}
			rt.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file")
	root.PersistentFlags().StringVarP(&rt.contextOverride, "context", "c", rt.contextOverride, "Context name override")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: table, wide, json, yaml, go-template=TEMPLATE")
	root.PersistentFlags().StringVar(&rt.serverOverride, "server", "", "Server override (bypass config)")
	root.PersistentFlags().StringVar(&rt.tokenOverride, "token", "", "Static bearer token (disables refresh and re-authentication)")
	root.PersistentFlags().StringVar(&rt.tokenStorageOverride, "token-storage", "", "Token storage backend: file or keychain")
	root.PersistentFlags().StringVar(&rt.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	root.PersistentFlags().StringVar(&rt.traceExporter, "trace-exporter", "", "Export traces: otlp, stdout or none (overrides settings.tracing.exporter)")
	root.PersistentFlags().BoolVar(&rt.nonInteractive, "non-interactive", false, "Fail instead of opening a browser or prompting")
	root.PersistentFlags().BoolVar(&rt.noProgress, "no-progress", false, "Disable the progress indicator")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable debug logging with correlation IDs")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewConfigCommand(),
		NewAuthCommand(),
		NewGamesCommand(),
		NewAchievementsCommand(),
		NewLeaderboardCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) ResolveContextName() string {
	if rt.contextOverride != "" {
		return rt.contextOverride
	}
	if rt.cfg != nil {
		return rt.cfg.CurrentContextOrDefault()
	}
	return ""
}

func (rt *runtimeState) OutputFormat() string {
	if rt.outputFormat != "" {
		return rt.outputFormat
	}
	if rt.cfg != nil && rt.cfg.Settings.OutputFormat != "" {
		return rt.cfg.Settings.OutputFormat
	}
	return string(output.FormatTable)
}

func (rt *runtimeState) TokenStorage() string {
	if rt.tokenStorageOverride != "" {
		return rt.tokenStorageOverride
	}
	if rt.cfg != nil && rt.cfg.Settings.TokenStorage != "" {
		return rt.cfg.Settings.TokenStorage
	}
	return ""
}

// ProgressEnabled reports whether the progress bar should render. In auto
// mode it only does so when stderr is a terminal.
func (rt *runtimeState) ProgressEnabled() bool {
	if rt.noProgress {
		return false
	}
	mode := config.ProgressAuto
	if rt.cfg != nil && rt.cfg.Settings.Progress != "" {
		mode = rt.cfg.Settings.Progress
	}
	switch mode {
	case config.ProgressAlways:
		return true
	case config.ProgressNever:
		return false
	}
	f, ok := rt.ErrWriter().(*os.File)
	return ok && output.IsTerminal(f)
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) ErrWriter() io.Writer {
	if rt.errWriter != nil {
		return rt.errWriter
	}
	return os.Stderr
}

func (rt *runtimeState) Logger() *zap.SugaredLogger {
	return system.OrNop(rt.log)
}

func (rt *runtimeState) Clock() clock.PassiveClock {
	if rt.clock != nil {
		return rt.clock
	}
	return clock.RealClock{}
}

func (rt *runtimeState) EnsureConfigLoaded() error {
	if rt.cfg != nil {
		return nil
	}
	cfg, err := config.Load(rt.configPath)
	if err != nil {
		return err
	}
	rt.cfg = cfg
	return nil
}

func (rt *runtimeState) ResolveContext() (*config.Context, error) {
	if rt.cfg == nil {
		return nil, errors.New("config not loaded")
	}
	name := rt.ResolveContextName()
	if name == "" {
		return nil, errors.New("no context configured; run 'gameshake config init'")
	}
	return rt.cfg.FindContext(name)
}

func (rt *runtimeState) resolveServer(ctx *config.Context) string {
	if rt.serverOverride != "" {
		return rt.serverOverride
	}
	if ctx != nil {
		return ctx.Server
	}
	return ""
}

func (rt *runtimeState) configPathValue() string {
	if rt.configPath == "" {
		return config.DefaultConfigPath()
	}
	return rt.configPath
}
