package cli

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pendergraft/contraverify/internal/abiargs"
	"github.com/pendergraft/contraverify/internal/artifacts"
	"github.com/pendergraft/contraverify/internal/networks"
	"github.com/pendergraft/contraverify/internal/rpc"
)

type dataImportOptions struct {
	contract string
	method   string
	file     string
	dryRun   bool
	timeout  time.Duration
}

func dataImportTask() Task {
	var opts dataImportOptions

	return Task{
		Name:  "data:import",
		Short: "Import data.json into the deployed accident handler",
		Long: `Send the contents of data.json as the single argument of
setRecords on the deployed AccidentHandler20220715V3.

The contract address and ABI come from deployments/<network>/<contract>.json.
The transaction is signed with the network's first account; without one
the private key is prompted for.

EXAMPLES:
  contraverify data:import --network bsc

  # Show the call without sending it
  contraverify data:import --network bsc --dry-run

  # Another contract, method or file
  contraverify data:import --network bsctest --contract Registry --method setEntries --file entries.json
`,
		Args: cobra.NoArgs,
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&opts.contract, "contract", "AccidentHandler20220715V3", "deployment name of the target contract")
			fs.StringVar(&opts.method, "method", "setRecords", "method to call with the data")
			fs.StringVar(&opts.file, "file", "", "JSON data file (default: project data_file, data.json)")
			fs.BoolVar(&opts.dryRun, "dry-run", false, "encode the call without sending it")
			fs.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "how long to wait for the transaction to be mined")
		},
		Run: func(cmd *cobra.Command, a *app, _ []string) error {
			return runDataImport(cmd, a, opts)
		},
	}
}

func runDataImport(cmd *cobra.Command, a *app, opts dataImportOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if opts.file == "" {
		opts.file = a.cfg.Project.DataFile
	}
	data, err := os.ReadFile(opts.file)
	if err != nil {
		return fmt.Errorf("reading data file: %w", err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("%s is not valid JSON", opts.file)
	}

	resolver := a.resolver()
	n, err := resolver.Get(a.network)
	if err != nil {
		return err
	}

	path := filepath.Join(networks.DeploymentsDir(a.cfg.Verify.DeploymentsRoot, a.network), opts.contract+".json")
	art, err := artifacts.Parse(path)
	if err != nil {
		return fmt.Errorf("loading deployment %s: %w", opts.contract, err)
	}
	if !common.IsHexAddress(art.Address) {
		return fmt.Errorf("deployment %s has no valid address", opts.contract)
	}
	parsed, err := abi.JSON(bytes.NewReader(art.ABI))
	if err != nil {
		return fmt.Errorf("parsing %s ABI: %w", opts.contract, err)
	}
	calldata, err := abiargs.PackCall(parsed, opts.method, []json.RawMessage{data})
	if err != nil {
		return fmt.Errorf("encoding %s call: %w", opts.method, err)
	}
	to := common.HexToAddress(art.Address)

	if opts.dryRun {
		fmt.Fprintf(out, "%s.%s on %s (%s)\n", opts.contract, opts.method, printCyan(a.network), to.Hex())
		fmt.Fprintf(out, "calldata (%d bytes): 0x%s\n", len(calldata), hex.EncodeToString(calldata))
		return nil
	}

	accounts, err := resolver.Accounts(a.network)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		raw, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("Private key for %s: ", a.network))
		if err != nil {
			return fmt.Errorf("reading private key: %w", err)
		}
		accounts, err = networks.ParseAccounts([]string{raw})
		if err != nil {
			return err
		}
	}
	if len(accounts) == 0 {
		return errors.New("no account to send from")
	}
	from := accounts[0]

	node, err := rpc.Dial(ctx, n.URL)
	if err != nil {
		return err
	}
	defer node.Close()

	chainID := n.ChainID
	if chainID == 0 {
		if chainID, err = node.ChainID(ctx); err != nil {
			return err
		}
	}

	hash, err := node.Transact(ctx, from.Key, chainID, to, calldata)
	if err != nil {
		return fmt.Errorf("sending %s: %w", opts.method, err)
	}
	a.logger.Info("transaction sent", "network", a.network, "from", from.Address.Hex(), "to", to.Hex(), "tx", hash.Hex())
	fmt.Fprintf(out, "Sent %s.%s from %s: %s\n", opts.contract, opts.method, from.Address.Hex(), hash.Hex())

	waitCtx := ctx
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}
	receipt, err := node.WaitMined(waitCtx, hash, 2*time.Second)
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", hash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s reverted in block %s", hash.Hex(), receipt.BlockNumber)
	}

	fmt.Fprintf(out, "%s mined in block %s (gas used %d)\n", printGreen("✓"), receipt.BlockNumber, receipt.GasUsed)
	return nil
}
