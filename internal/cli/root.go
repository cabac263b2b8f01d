package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/pendergraft/contraverify/internal/config"
	"github.com/pendergraft/contraverify/internal/networks"
	"github.com/pendergraft/contraverify/internal/observability/metrics"
	"github.com/pendergraft/contraverify/internal/rpc"
)

// annotationNoConfig marks commands that run before a project file exists.
const annotationNoConfig = "contraverify/no-config"

// app carries the global flags and the state built from them before any
// subcommand runs.
type app struct {
	network     string
	configPath  string
	envFile     string
	logLevel    string
	server      string
	apiKey      string
	metricsFile string
	noColor     bool

	cfg    *config.Config
	logger *slog.Logger
}

// Execute runs the CLI until it finishes or the process is interrupted.
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCmd, a := newRootCmd(version)
	return a.execute(ctx, rootCmd)
}

// NewRootCmd builds the command tree. Tasks come from a registry created here
// and handed to the root command, so every invocation starts from a clean
// set.
func NewRootCmd(version string) *cobra.Command {
	rootCmd, _ := newRootCmd(version)
	return rootCmd
}

func newRootCmd(version string) (*cobra.Command, *app) {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "contraverify",
		Short: "Deployment verification runner for hardhat-deploy projects",
		Long: `Contraverify verifies the contracts recorded under deployments/<network>
on the network's block explorer, and runs the maintenance tasks of the
Duet hardhat project.

The target network is selected with --network (or HARDHAT_NETWORK).
Networks, explorer keys and the address book are read from contraverify.toml;
without one the built-in hardhat, bsctest, bsc and arbitrum networks are used.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.network, "network", "hardhat", "network to operate on (env HARDHAT_NETWORK)")
	pf.StringVar(&a.configPath, "config", "", "project file (default: contraverify.toml)")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before configuration")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (env CONTRAVERIFY_LOG_LEVEL)")
	pf.StringVar(&a.server, "server", "", "contraverify server URL; remote-capable commands use it instead of local state")
	pf.StringVar(&a.apiKey, "api-key", "", "API key for the server")
	pf.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	pf.BoolVar(&a.noColor, "no-color", false, "disable coloured output")

	for _, cmd := range builtinTasks().Commands(a) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newNetworksCmd(a))
	rootCmd.AddCommand(newAddressesCmd(a))
	rootCmd.AddCommand(newDeploymentsCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))
	rootCmd.AddCommand(newServeCmd(a, version))
	rootCmd.AddCommand(newKeysCmd(a))
	rootCmd.AddCommand(newAuthCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))

	return rootCmd, a
}

// execute runs the command and then writes the metrics textfile, also when
// the command fails. Cobra skips post-run hooks on error.
func (a *app) execute(ctx context.Context, rootCmd *cobra.Command) error {
	err := rootCmd.ExecuteContext(ctx)
	if ferr := a.finish(); ferr != nil {
		if err == nil {
			return ferr
		}
		return multierror.Append(err, ferr)
	}
	return err
}

func (a *app) init(cmd *cobra.Command) error {
	if err := config.LoadDotenv(a.envFile); err != nil {
		return err
	}
	if !cmd.Flags().Changed("network") {
		if env := os.Getenv("HARDHAT_NETWORK"); env != "" {
			a.network = env
		}
	}
	if a.noColor {
		color.NoColor = true
	}

	if cmd.Annotations[annotationNoConfig] == "true" {
		a.logger = setupLogger(config.LoggingConfig{Level: a.logLevel, Format: "text"}, cmd.ErrOrStderr())
		return nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg
	a.logger = setupLogger(cfg.Logging, cmd.ErrOrStderr())

	metrics.Init(cfg.Metrics.Enabled, "contraverify")
	return nil
}

func (a *app) finish() error {
	// cfg is nil when the command never got past configuration
	if a.metricsFile == "" || a.cfg == nil {
		return nil
	}
	if err := metrics.WriteTextfile(a.metricsFile); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

func (a *app) resolver() *networks.Resolver {
	return networks.NewResolver(a.cfg.Project, rpc.Prober{})
}

// serverURL returns the server from the flag or CONTRAVERIFY_SERVER. Empty
// means commands work on local state.
func (a *app) serverURL() string {
	if a.server != "" {
		return a.server
	}
	return os.Getenv("CONTRAVERIFY_SERVER")
}

// key returns the API key from flag, env, or credentials file
func (a *app) key(serverURL string) string {
	if a.apiKey != "" {
		return a.apiKey
	}
	if env := os.Getenv("CONTRAVERIFY_API_KEY"); env != "" {
		return env
	}
	return getCredential(serverURL)
}
