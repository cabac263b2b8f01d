package cli

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pendergraft/contraverify/internal/rpc"
)

func accountsTask() Task {
	var balances bool

	return Task{
		Name:  "accounts",
		Short: "Print the list of accounts",
		Long: `Print the addresses of the accounts configured for the network.

Addresses are derived from the network's private keys. A network without
keys falls back to the accounts its node manages, as a local hardhat node
does.

EXAMPLES:
  contraverify accounts --network bsctest

  # With balances read from the network's RPC endpoint
  contraverify accounts --network bsc --balances
`,
		Args: cobra.NoArgs,
		Flags: func(fs *pflag.FlagSet) {
			fs.BoolVar(&balances, "balances", false, "also print each account's balance")
		},
		Run: func(cmd *cobra.Command, a *app, _ []string) error {
			return runAccounts(cmd, a, balances)
		},
	}
}

func runAccounts(cmd *cobra.Command, a *app, balances bool) error {
	ctx := cmd.Context()
	resolver := a.resolver()

	n, err := resolver.Get(a.network)
	if err != nil {
		return err
	}
	accounts, err := resolver.Accounts(a.network)
	if err != nil {
		return err
	}

	addrs := make([]common.Address, 0, len(accounts))
	for _, acc := range accounts {
		addrs = append(addrs, acc.Address)
	}

	var node *rpc.Client
	if len(addrs) == 0 || balances {
		node, err = rpc.Dial(ctx, n.URL)
		if err != nil {
			return err
		}
		defer node.Close()
	}
	if len(addrs) == 0 {
		addrs, err = node.NodeAccounts(ctx)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if !balances {
		for _, addr := range addrs {
			fmt.Fprintln(out, addr.Hex())
		}
		return nil
	}

	table := newTable(out, "Address", "Balance")
	for _, addr := range addrs {
		wei, err := node.BalanceAt(ctx, addr)
		if err != nil {
			return fmt.Errorf("fetching balance of %s: %w", addr.Hex(), err)
		}
		table.Append([]string{addr.Hex(), formatEther(wei)})
	}
	table.Render()
	return nil
}

// formatEther renders wei in whole units of the chain's native token.
func formatEther(wei *big.Int) string {
	f := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether))
	return f.Text('f', 6)
}
