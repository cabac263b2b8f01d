package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/pendergraft/contraverify/internal/config"
)

// projectTemplate mirrors the networks of the built-in defaults. Secrets stay
// in the environment and are referenced as ${VAR}.
const projectTemplate = `# Contraverify project configuration
# ${VAR} references are expanded from the environment (and .env).

deployments_dir = "deployments"
address_book = "addresses.yaml"
data_file = "data.json"

[solidity]
version = "0.8.17"
via_ir = true

[solidity.optimizer]
enabled = true
runs = 200

[networks.hardhat]
url = "http://127.0.0.1:8545"
chain_id = 30097

[networks.bsctest]
url = "https://data-seed-prebsc-1-s3.binance.org:8545"
chain_id = 97
accounts = ["${KEY_BSC_TEST}"]
verify_api_key = "${BSCSCAN_TEST_KEY}"
explorer_network = "bscTestnet"

[networks.bsc]
url = "https://bsc-dataseed.binance.org/"
chain_id = 56
accounts = ["${KEY_BSC_MAINNET}"]
verify_api_key = "${BSCSCAN_KEY}"

[networks.arbitrum]
url = "https://1rpc.io/arb"
chain_id = 42161
accounts = ["${KEY_BSC_MAINNET}"]
verify_api_key = "${ARBISCAN_KEY}"

[etherscan.api_keys]
bsc = "${BSCSCAN_KEY}"
bscTestnet = "${BSCSCAN_TEST_KEY}"
arbitrumOne = "${ARBISCAN_KEY}"
mainnet = "${ETHERSCAN_API_KEY}"

# Explorers that are not built in
# [[etherscan.custom_chains]]
# network = "opbnb"
# chain_id = 204
# api_url = "https://api-opbnb.bscscan.com/api"
# browser_url = "https://opbnb.bscscan.com"
`

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the project file and inspect the effective configuration.

The project file (contraverify.toml) holds networks, explorer keys and the
compiler settings. Everything else comes from CONTRAVERIFY_* environment
variables, optionally loaded from .env.`,
	}

	cmd.AddCommand(newConfigInitCmd(a))
	cmd.AddCommand(newConfigShowCmd(a))
	cmd.AddCommand(newConfigValidateCmd(a))

	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a contraverify.toml",
		Long: `Create a project file with the Duet networks.

Private keys and explorer keys are left as ${VAR} references so the file
can be committed.

EXAMPLES:
  contraverify config init
  contraverify config init --config ./config/contraverify.toml --force
`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if path == "" {
				path = config.DefaultProjectFile
			}
			return runConfigInit(cmd.OutOrStdout(), path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")

	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the configuration after environment and project file are merged.

Secrets are never printed: keys and database URLs only show whether they
are set.

EXAMPLES:
  contraverify config show
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout(), a)
		},
	}
}

func newConfigValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and address book",
		Long: `Report every problem in the configuration, the project file and the
address book at once.

EXAMPLES:
  contraverify config validate
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(cmd.OutOrStdout(), a)
		},
	}
}

func runConfigInit(out io.Writer, path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	if err := os.WriteFile(path, []byte(projectTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(out, "%s Created %s\n", printGreen("✅"), path)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  1. Put KEY_BSC_TEST, BSCSCAN_KEY and friends in .env\n")
	fmt.Fprintln(out, "  2. Run 'contraverify config validate'")
	fmt.Fprintln(out, "  3. Run 'contraverify verify:duet --network bsctest --dry-run'")

	return nil
}

func runConfigShow(out io.Writer, a *app) error {
	cfg := a.cfg

	source := cfg.ProjectPath
	if source == "" {
		source = "(built-in defaults)"
	}

	table := newTable(out, "Setting", "Value")
	rows := [][]string{
		{"project file", source},
		{"network", a.network},
		{"deployments root", cfg.Verify.DeploymentsRoot},
		{"address book", cfg.Project.AddressBook},
		{"data file", cfg.Project.DataFile},
		{"solidity", solidityText(cfg.Project.Solidity)},
		{"explorer rate", strconv.FormatFloat(cfg.Verify.ExplorerRate, 'f', -1, 64) + "/s"},
		{"explorer timeout", cfg.Verify.ExplorerTimeout.String()},
		{"explorer retries", strconv.Itoa(cfg.Verify.ExplorerRetries)},
		{"poll", fmt.Sprintf("%d x %s", cfg.Verify.PollAttempts, cfg.Verify.PollInterval)},
		{"bytecode check", yesNo(cfg.Verify.CheckBytecode)},
		{"history", historyText(cfg.Storage)},
		{"server", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)},
		{"auth", authText(cfg.Auth)},
		{"rate limit", rateLimitText(cfg.RateLimit)},
		{"logging", cfg.Logging.Level + " (" + cfg.Logging.Format + ")"},
		{"metrics", yesNo(cfg.Metrics.Enabled)},
	}
	if remote := a.serverURL(); remote != "" {
		rows = append(rows, []string{"remote server", remote})
		rows = append(rows, []string{"remote API key", setText(a.key(remote))})
	}
	table.AppendBulk(rows)
	table.Render()

	fmt.Fprintln(out)
	keys := make([]string, 0, len(cfg.Project.Etherscan.APIKeys))
	for chain, key := range cfg.Project.Etherscan.APIKeys {
		if key != "" {
			keys = append(keys, chain)
		}
	}
	if len(keys) == 0 {
		fmt.Fprintln(out, printYellow("No explorer API keys set"))
	} else {
		sort.Strings(keys)
		fmt.Fprintf(out, "Explorer API keys set for: %s\n", strings.Join(keys, ", "))
	}
	return nil
}

func runConfigValidate(out io.Writer, a *app) error {
	var result *multierror.Error

	if err := a.cfg.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	book, err := a.addressBook()
	switch {
	case err != nil:
		result = multierror.Append(result, fmt.Errorf("address book: %w", err))
	case book != nil:
		if err := book.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("address book: %w", err))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s Configuration is valid\n", printGreen("✅"))
	if book == nil && a.cfg.Project.AddressBook != "" {
		if _, statErr := os.Stat(a.cfg.Project.AddressBook); errors.Is(statErr, fs.ErrNotExist) {
			fmt.Fprintf(out, "%s  No address book at %s\n", printYellow("⚠️"), a.cfg.Project.AddressBook)
		}
	}
	return nil
}

func solidityText(s config.SolidityConfig) string {
	if s.Version == "" {
		return "not set"
	}
	text := s.Version
	if s.ViaIR {
		text += ", viaIR"
	}
	if s.Optimizer.Enabled {
		text += fmt.Sprintf(", optimizer %d runs", s.Optimizer.Runs)
	}
	return text
}

func historyText(s config.StorageConfig) string {
	if !s.Enabled {
		return "disabled"
	}
	if s.Type == "postgres" {
		return "postgres (" + setText(s.Postgres.URL) + ")"
	}
	return "sqlite " + s.SQLite.Path
}

func authText(a config.AuthConfig) string {
	if a.Type == "none" {
		return "none"
	}
	return fmt.Sprintf("%s (%d static keys)", a.Type, len(a.Keys))
}

func rateLimitText(r config.RateLimitConfig) string {
	if !r.Enabled {
		return "disabled"
	}
	return fmt.Sprintf("%d/min, %d writes/min, burst %d", r.RequestsPerMin, r.WritesPerMin, r.BurstSize)
}

func setText(secret string) string {
	if secret == "" {
		return "not set"
	}
	return "set"
}
