package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contraverify/internal/addressbook"
	deploymentsDomain "github.com/pendergraft/contraverify/internal/deployments/domain"
)

// addressBook loads the configured address book. It returns nil without an
// error when none is configured or the file does not exist.
func (a *app) addressBook() (*addressbook.Book, error) {
	path := a.cfg.Project.AddressBook
	if path == "" {
		return nil, nil
	}
	book, err := addressbook.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		a.logger.Debug("no address book", "path", path)
		return nil, nil
	}
	return book, err
}

func (a *app) deployments() (deploymentsDomain.Service, error) {
	book, err := a.addressBook()
	if err != nil {
		return nil, err
	}
	return deploymentsDomain.NewService(a.resolver(), book, a.cfg.Verify.DeploymentsRoot), nil
}

func newNetworksCmd(a *app) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "networks",
		Short: "List configured networks",
		Long: `List the configured networks with their chain, explorer and credentials.

RPC URLs are reduced to scheme and host; private keys and API keys are
never printed.

EXAMPLES:
  contraverify networks
  contraverify networks --json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.deployments()
			if err != nil {
				return err
			}
			list, err := svc.Networks(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, list)
			}

			table := newTable(out, "Network", "Chain ID", "RPC", "Accounts", "Explorer", "API Key")
			for _, n := range list {
				name := n.Name
				if n.Name == a.network {
					name = printCyan(name + " *")
				}
				explorerURL := n.ExplorerURL
				if explorerURL == "" {
					explorerURL = printYellow("none")
				}
				table.Append([]string{
					name,
					strconv.FormatUint(n.ChainID, 10),
					n.RPC,
					strconv.Itoa(n.Accounts),
					explorerURL,
					yesNo(n.HasAPIKey),
				})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")

	return cmd
}

func newAddressesCmd(a *app) *cobra.Command {
	var jsonOut bool
	var check bool

	cmd := &cobra.Command{
		Use:   "addresses [name]",
		Short: "Show the address book",
		Long: `Show the address book entries deployed on the selected network, or every
network entry of one name.

EXAMPLES:
  # Everything available on BSC
  contraverify addresses --network bsc

  # One name on every network
  contraverify addresses WBNB

  # Check every address and EIP-55 checksum
  contraverify addresses --check
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := a.addressBook()
			if err != nil {
				return err
			}
			if book == nil {
				return fmt.Errorf("no address book at %s", a.cfg.Project.AddressBook)
			}

			out := cmd.OutOrStdout()
			if check {
				if err := book.Validate(); err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %d names valid\n", printGreen("✓"), len(book.Names()))
				return nil
			}

			if len(args) == 1 {
				entries, err := book.Entries(args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(out, entries)
				}
				table := newTable(out, "Network", "Address")
				for _, e := range entries {
					addr := printYellow("not deployed")
					if e.Address != nil {
						addr = *e.Address
					}
					table.Append([]string{e.Network, addr})
				}
				table.Render()
				return nil
			}

			byName := book.ForNetwork(a.network)
			if jsonOut {
				return writeJSON(out, byName)
			}
			if len(byName) == 0 {
				fmt.Fprintf(out, "Nothing in the address book is deployed on %s\n", a.network)
				return nil
			}
			names := make([]string, 0, len(byName))
			for name := range byName {
				names = append(names, name)
			}
			sort.Strings(names)

			table := newTable(out, "Name", "Address")
			for _, name := range names {
				table.Append([]string{name, byName[name]})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	cmd.Flags().BoolVar(&check, "check", false, "validate every address")

	return cmd
}

func newDeploymentsCmd(a *app) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "deployments",
		Short: "List the deployments recorded for the network",
		Long: `List the hardhat-deploy artifacts under deployments/<network>.

EXAMPLES:
  contraverify deployments --network bsctest
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.deployments()
			if err != nil {
				return err
			}
			list, err := svc.Deployments(a.network)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, list)
			}
			if len(list) == 0 {
				fmt.Fprintf(out, "No deployments recorded for %s\n", a.network)
				return nil
			}

			table := newTable(out, "Name", "Address", "Contract", "Proxy")
			for _, d := range list {
				table.Append([]string{d.Name, d.Address, d.Contract, yesNo(d.Proxy)})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")

	return cmd
}
