package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newKeysCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage server API keys",
		Long: `Manage the API keys the server accepts for triggering verifications.

Keys are stored hashed in the history database, next to any static keys
given in CONTRAVERIFY_API_KEYS.`,
	}

	cmd.AddCommand(newKeysCreateCmd(a))
	cmd.AddCommand(newKeysListCmd(a))
	cmd.AddCommand(newKeysRevokeCmd(a))

	return cmd
}

func newKeysCreateCmd(a *app) *cobra.Command {
	var name string
	var outputFile string
	var quiet bool
	var show bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long: `Create a new API key for triggering verifications on the server.

By default, the key is written to a file in the current directory.
The key is only shown once - it cannot be retrieved later.

EXAMPLES:
  # Create key, write to file (default)
  contraverify keys create --name "ci-deploy"

  # Create key, write to specific file
  contraverify keys create --name "ci-deploy" --output /secure/path/key.txt

  # Create key, print only (for piping to secrets manager)
  contraverify keys create --name "ci-deploy" --quiet | gh secret set CONTRAVERIFY_API_KEY

  # Create key, display on screen
  contraverify keys create --name "ci-deploy" --show
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysCreate(cmd, a, name, outputFile, quiet, show)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "name/label for the key (required)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "write key to file (default: ./contraverify-key-{name}.txt)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the key (for piping)")
	cmd.Flags().BoolVar(&show, "show", false, "display key on screen")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newKeysListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysList(cmd, a)
		},
	}
}

func newKeysRevokeCmd(a *app) *cobra.Command {
	var keyID string

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke an API key",
		Long: `Revoke an API key to prevent further use.

Use 'contraverify keys list' to find the key ID. An unambiguous prefix of at
least 8 characters is enough.

EXAMPLES:
  contraverify keys revoke --id 3f1c9a2e
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysRevoke(cmd, a, keyID)
		},
	}

	cmd.Flags().StringVar(&keyID, "id", "", "key ID to revoke (required)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func runKeysCreate(cmd *cobra.Command, a *app, name, outputFile string, quiet, show bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	key, err := store.CreateAPIKey(ctx, name)
	if err != nil {
		return fmt.Errorf("creating API key: %w", err)
	}

	if quiet {
		fmt.Fprintln(out, key)
		return nil
	}

	if show {
		fmt.Fprintln(out, printYellow("⚠️  API key (save this - it cannot be retrieved later):"))
		fmt.Fprintln(out)
		fmt.Fprintln(out, "   ", key)
		fmt.Fprintln(out)
		return nil
	}

	if outputFile == "" {
		outputFile = fmt.Sprintf("./contraverify-key-%s.txt", name)
	}

	dir := filepath.Dir(outputFile)
	if dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
	}

	if err := os.WriteFile(outputFile, []byte(key+"\n"), 0600); err != nil {
		return fmt.Errorf("writing key to file: %w", err)
	}

	fmt.Fprintf(out, "%s API key created: %s\n", printGreen("✅"), name)
	fmt.Fprintf(out, "   Written to: %s (mode 0600)\n", outputFile)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "   ⚠️  This key cannot be retrieved later. Keep it safe!")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "   Usage:")
	fmt.Fprintln(out, "     export CONTRAVERIFY_API_KEY=$(cat", outputFile+")")
	fmt.Fprintln(out, "     contraverify verify:duet --network bsc --server https://verify.example.com")

	return nil
}

func runKeysList(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	keys, err := store.ListAPIKeys(ctx)
	if err != nil {
		return fmt.Errorf("listing API keys: %w", err)
	}

	if len(keys) == 0 {
		fmt.Fprintln(out, "No API keys found")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Create one with: contraverify keys create --name \"my-key\"")
		return nil
	}

	table := newTable(out, "ID", "Name", "Created", "Last Used", "Status")
	for _, k := range keys {
		lastUsed := "never"
		if k.LastUsedAt != "" {
			lastUsed = k.LastUsedAt
		}
		status := printGreen("active")
		if k.RevokedAt != "" {
			status = printRed("revoked " + k.RevokedAt)
		}
		idDisplay := k.ID
		if len(k.ID) > 8 {
			idDisplay = k.ID[:8] + "..."
		}
		table.Append([]string{idDisplay, k.Name, k.CreatedAt, lastUsed, status})
	}
	table.Render()

	return nil
}

func runKeysRevoke(cmd *cobra.Command, a *app, keyID string) error {
	ctx := cmd.Context()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	keys, err := store.ListAPIKeys(ctx)
	if err != nil {
		return fmt.Errorf("listing API keys: %w", err)
	}

	// Find the full key ID if a prefix was provided
	var matches []string
	for _, k := range keys {
		if k.ID == keyID {
			matches = []string{k.ID}
			break
		}
		if len(keyID) >= 8 && strings.HasPrefix(k.ID, keyID) {
			matches = append(matches, k.ID)
		}
	}

	switch len(matches) {
	case 0:
		return fmt.Errorf("key not found: %s", keyID)
	case 1:
	default:
		return fmt.Errorf("key ID %s is ambiguous (%d keys match)", keyID, len(matches))
	}

	if err := store.RevokeAPIKey(ctx, matches[0]); err != nil {
		return fmt.Errorf("revoking API key: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s API key revoked: %s\n", printGreen("✅"), keyID)
	return nil
}
