// Package networks resolves configured network names to RPC endpoints,
// block explorers and signing accounts.
package networks

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pendergraft/contraverify/internal/config"
	"github.com/pendergraft/contraverify/internal/validation"
)

var (
	// ErrUnknownNetwork is returned for names missing from the configuration.
	ErrUnknownNetwork = errors.New("unknown network")
	// ErrNoExplorer is returned when no explorer serves the network's chain.
	ErrNoExplorer = errors.New("no block explorer for chain")
	// ErrInvalidName is returned for names that fail validation.
	ErrInvalidName = errors.New("invalid network name")
	// ErrNoChainID is returned when the chain ID is neither configured nor probeable.
	ErrNoChainID = errors.New("chain ID not configured and no RPC URL to probe")
)

// aliases maps hardhat network names to the explorer chain names
// hardhat-etherscan uses for them.
var aliases = map[string]string{
	"bsctest": "bscTestnet",
}

// ChainIDProber queries a node for its chain ID.
type ChainIDProber interface {
	ProbeChainID(ctx context.Context, url string) (uint64, error)
}

// Network is a resolved network.
type Network struct {
	Name     string
	URL      string
	ChainID  uint64
	ForkURL  string
	Accounts []string
	// ExplorerNetwork is the name used for explorer lookups.
	ExplorerNetwork string
	VerifyAPIKey    string
}

// Explorer is a resolved explorer endpoint with its API key.
type Explorer struct {
	Chain
	APIKey string
}

// Resolver resolves networks from the project configuration.
type Resolver struct {
	project *config.Project
	prober  ChainIDProber
}

// NewResolver creates a resolver. prober may be nil, in which case networks
// without a configured chain ID cannot be resolved to an explorer.
func NewResolver(project *config.Project, prober ChainIDProber) *Resolver {
	return &Resolver{project: project, prober: prober}
}

// Names returns the configured network names, sorted.
func (r *Resolver) Names() []string {
	return r.project.NetworkNames()
}

// Get returns the named network.
func (r *Resolver) Get(name string) (*Network, error) {
	if err := validation.ValidateNetworkName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	n, ok := r.project.Networks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, name)
	}

	explorerName := n.ExplorerNetwork
	if explorerName == "" {
		explorerName = ExplorerName(name)
	}
	return &Network{
		Name:            name,
		URL:             n.URL,
		ChainID:         n.ChainID,
		ForkURL:         n.ForkURL,
		Accounts:        n.Accounts,
		ExplorerNetwork: explorerName,
		VerifyAPIKey:    n.VerifyAPIKey,
	}, nil
}

// ExplorerName applies the hardhat network name aliases.
func ExplorerName(network string) string {
	if alias, ok := aliases[network]; ok {
		return alias
	}
	return network
}

// DeploymentsDir returns the artifact directory for network under root.
func DeploymentsDir(root, network string) string {
	return filepath.Join(root, network)
}

// ChainID returns the configured chain ID, probing the RPC endpoint when unset.
func (r *Resolver) ChainID(ctx context.Context, n *Network) (uint64, error) {
	if n.ChainID != 0 {
		return n.ChainID, nil
	}
	if n.URL == "" || r.prober == nil {
		return 0, fmt.Errorf("%w: %s", ErrNoChainID, n.Name)
	}
	id, err := r.prober.ProbeChainID(ctx, n.URL)
	if err != nil {
		return 0, fmt.Errorf("probing chain ID for %s: %w", n.Name, err)
	}
	return id, nil
}

// ResolveExplorer finds the explorer endpoint for the network's chain and
// the API key to use with it. Custom chains take precedence over the
// built-in table.
func (r *Resolver) ResolveExplorer(ctx context.Context, name string) (*Explorer, error) {
	n, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	chainID, err := r.ChainID(ctx, n)
	if err != nil {
		return nil, err
	}

	chain, ok := r.findChain(chainID)
	if !ok {
		return nil, fmt.Errorf("%w %d (network %s)", ErrNoExplorer, chainID, name)
	}

	return &Explorer{Chain: chain, APIKey: r.apiKey(n, chain)}, nil
}

// Chains returns custom chains followed by built-in ones not overridden.
func (r *Resolver) Chains() []Chain {
	var out []Chain
	seen := map[uint64]bool{}
	for _, c := range r.project.Etherscan.CustomChains {
		out = append(out, Chain{Network: c.Network, ChainID: c.ChainID, APIURL: c.APIURL, BrowserURL: c.BrowserURL})
		seen[c.ChainID] = true
	}
	for _, c := range builtinChains {
		if !seen[c.ChainID] {
			out = append(out, c)
		}
	}
	return out
}

func (r *Resolver) findChain(chainID uint64) (Chain, bool) {
	for _, c := range r.Chains() {
		if c.ChainID == chainID {
			return c, true
		}
	}
	return Chain{}, false
}

// apiKey looks the key up by explorer chain name, then by the (aliased)
// network name, then falls back to the network's own verify key.
func (r *Resolver) apiKey(n *Network, chain Chain) string {
	keys := r.project.Etherscan.APIKeys
	if k := keys[chain.Network]; k != "" {
		return k
	}
	if k := keys[n.ExplorerNetwork]; k != "" {
		return k
	}
	return n.VerifyAPIKey
}

// Account is a signing account derived from a configured private key.
type Account struct {
	Address common.Address
	Key     *ecdsa.PrivateKey
}

// Accounts derives the accounts for the network's private keys.
func (r *Resolver) Accounts(name string) ([]Account, error) {
	n, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return ParseAccounts(n.Accounts)
}

// ParseAccounts derives accounts from hex private keys.
func ParseAccounts(keys []string) ([]Account, error) {
	accounts := make([]Account, 0, len(keys))
	for i, raw := range keys {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
		if err != nil {
			return nil, fmt.Errorf("account %d: invalid private key", i)
		}
		accounts = append(accounts, Account{Address: crypto.PubkeyToAddress(key.PublicKey), Key: key})
	}
	return accounts, nil
}
