package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pendergraft/contraverify/pkg/client"
)

// Credentials stores API keys per server
type Credentials struct {
	Servers map[string]ServerCredential `yaml:"servers"`
}

// ServerCredential stores credentials for a single server
type ServerCredential struct {
	APIKey string `yaml:"api_key"`
	Name   string `yaml:"name,omitempty"` // key label reported by the server
}

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage credentials for contraverify servers",
	}

	cmd.AddCommand(newAuthLoginCmd(a))
	cmd.AddCommand(newAuthLogoutCmd(a))
	cmd.AddCommand(newAuthStatusCmd())

	return cmd
}

func newAuthLoginCmd(a *app) *cobra.Command {
	var apiKeyFlag string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with server",
		Long: `Save an API key for a contraverify server.

The key is checked against the server, then stored in
~/.contraverify/credentials with secure file permissions.

EXAMPLES:
  # Interactive login (prompts for API key)
  contraverify auth login --server https://verify.example.com

  # Non-interactive login (for CI)
  contraverify auth login --server https://verify.example.com --key $CONTRAVERIFY_API_KEY
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL := a.serverURL()
			if serverURL == "" {
				return errors.New("--server is required")
			}
			return runAuthLogin(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), serverURL, apiKeyFlag)
		},
	}

	cmd.Flags().StringVar(&apiKeyFlag, "key", "", "API key (prompts if not provided)")

	return cmd
}

func newAuthLogoutCmd(a *app) *cobra.Command {
	var allFlag bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Clear credentials",
		Long: `Remove saved credentials for a server.

EXAMPLES:
  # Logout from a server
  contraverify auth logout --server https://verify.example.com

  # Clear all credentials
  contraverify auth logout --all
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL := a.serverURL()
			if serverURL == "" && !allFlag {
				return errors.New("--server or --all is required")
			}
			return runAuthLogout(cmd.OutOrStdout(), serverURL, allFlag)
		},
	}

	cmd.Flags().BoolVar(&allFlag, "all", false, "clear all credentials")

	return cmd
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Long: `Show the servers credentials are saved for.

EXAMPLES:
  contraverify auth status
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthStatus(cmd.OutOrStdout())
		},
	}
}

func runAuthLogin(ctx context.Context, in io.Reader, out io.Writer, serverURL, apiKey string) error {
	if apiKey == "" {
		key, err := readSecret(in, out, fmt.Sprintf("Enter API key for %s: ", serverURL))
		if err != nil {
			return fmt.Errorf("failed to read API key: %w", err)
		}
		apiKey = key
	}

	if apiKey == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	// Validate the API key by making a request
	fmt.Fprintf(out, "Validating credentials with %s...\n", serverURL)
	name, err := client.New(serverURL, apiKey).CheckAuth(ctx)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return fmt.Errorf("invalid API key")
		}
		return fmt.Errorf("failed to validate credentials: %w", err)
	}

	if err := saveCredential(serverURL, ServerCredential{APIKey: apiKey, Name: name}); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Fprintf(out, "%s Authenticated to %s (key: %s)\n", printGreen("✅"), serverURL, maskAPIKey(apiKey))
	fmt.Fprintf(out, "   Credentials saved to %s\n", credentialsFilePath())

	return nil
}

func runAuthLogout(out io.Writer, serverURL string, all bool) error {
	if all {
		path := credentialsFilePath()
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove credentials: %w", err)
		}
		fmt.Fprintf(out, "%s All credentials cleared\n", printGreen("✅"))
		return nil
	}

	creds, err := loadCredentials()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	if creds == nil {
		fmt.Fprintf(out, "No credentials found for %s\n", serverURL)
		return nil
	}

	if _, exists := creds.Servers[serverURL]; !exists {
		fmt.Fprintf(out, "No credentials found for %s\n", serverURL)
		return nil
	}

	delete(creds.Servers, serverURL)

	if err := writeCredentials(creds); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Fprintf(out, "%s Logged out from %s\n", printGreen("✅"), serverURL)
	return nil
}

func runAuthStatus(out io.Writer) error {
	creds, err := loadCredentials()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	if creds == nil || len(creds.Servers) == 0 {
		fmt.Fprintln(out, "Not authenticated to any servers")
		fmt.Fprintln(out, "\nRun 'contraverify auth login --server <url>' to authenticate")
		return nil
	}

	servers := make([]string, 0, len(creds.Servers))
	for server := range creds.Servers {
		servers = append(servers, server)
	}
	sort.Strings(servers)

	fmt.Fprintln(out, "Authenticated servers:")
	for _, server := range servers {
		cred := creds.Servers[server]
		masked := maskAPIKey(cred.APIKey)
		if cred.Name != "" {
			fmt.Fprintf(out, "  • %s (%s, key: %s)\n", server, cred.Name, masked)
		} else {
			fmt.Fprintf(out, "  • %s (key: %s)\n", server, masked)
		}
	}

	return nil
}

// Credential file helpers

func credentialsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".contraverify"
	}
	return filepath.Join(home, ".contraverify")
}

func credentialsFilePath() string {
	return filepath.Join(credentialsDir(), "credentials")
}

func loadCredentials() (*Credentials, error) {
	data, err := os.ReadFile(credentialsFilePath())
	if err != nil {
		return nil, err
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, err
	}

	if creds.Servers == nil {
		creds.Servers = make(map[string]ServerCredential)
	}

	return &creds, nil
}

func writeCredentials(creds *Credentials) error {
	if err := os.MkdirAll(credentialsDir(), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}

	return os.WriteFile(credentialsFilePath(), data, 0600)
}

func saveCredential(serverURL string, cred ServerCredential) error {
	creds, err := loadCredentials()
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		creds = &Credentials{Servers: make(map[string]ServerCredential)}
	}

	creds.Servers[serverURL] = cred
	return writeCredentials(creds)
}

func getCredential(serverURL string) string {
	creds, err := loadCredentials()
	if err != nil {
		return ""
	}
	return creds.Servers[serverURL].APIKey
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}
