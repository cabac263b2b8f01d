package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultProjectFile is looked up in the working directory when no path is given.
const DefaultProjectFile = "contraverify.toml"

// Project is the project-level TOML configuration: what hardhat.config.ts
// used to hold for networks, explorers and the compiler.
type Project struct {
	DeploymentsDir string                   `toml:"deployments_dir"`
	AddressBook    string                   `toml:"address_book"`
	DataFile       string                   `toml:"data_file"`
	Solidity       SolidityConfig           `toml:"solidity"`
	Networks       map[string]NetworkConfig `toml:"networks"`
	Etherscan      EtherscanConfig          `toml:"etherscan"`
}

// SolidityConfig records the compiler settings contracts were built with.
type SolidityConfig struct {
	Version   string          `toml:"version"`
	ViaIR     bool            `toml:"via_ir"`
	Optimizer OptimizerConfig `toml:"optimizer"`
}

// OptimizerConfig holds solc optimizer settings
type OptimizerConfig struct {
	Enabled bool `toml:"enabled"`
	Runs    int  `toml:"runs"`
}

// NetworkConfig describes one named network.
type NetworkConfig struct {
	URL      string   `toml:"url"`
	ChainID  uint64   `toml:"chain_id"`
	Accounts []string `toml:"accounts"`
	// VerifyAPIKey is the per-network explorer key (hardhat-deploy's verify.etherscan.apiKey).
	VerifyAPIKey string `toml:"verify_api_key"`
	// ExplorerNetwork overrides the explorer chain name used for endpoint
	// and API key lookup, e.g. "bscTestnet" for a network called "bsctest".
	ExplorerNetwork string `toml:"explorer_network"`
	ForkURL         string `toml:"fork_url"`
}

// EtherscanConfig holds explorer API keys and extra chains.
type EtherscanConfig struct {
	APIKeys      map[string]string `toml:"api_keys"`
	CustomChains []CustomChain     `toml:"custom_chains"`
}

// CustomChain adds or overrides an explorer endpoint.
type CustomChain struct {
	Network    string `toml:"network"`
	ChainID    uint64 `toml:"chain_id"`
	APIURL     string `toml:"api_url"`
	BrowserURL string `toml:"browser_url"`
}

// NetworkNames returns the configured network names, sorted.
func (p *Project) NetworkNames() []string {
	names := make([]string, 0, len(p.Networks))
	for name := range p.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadProject loads the project file at path. With an empty path it looks for
// contraverify.toml and falls back to DefaultProject when that is missing.
// The returned path is empty when defaults were used.
func LoadProject(path string) (*Project, string, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultProjectFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return DefaultProject(), "", nil
		}
		return nil, path, fmt.Errorf("reading project config: %w", err)
	}

	project, err := ParseProject(string(data))
	if err != nil {
		return nil, path, fmt.Errorf("%s: %w", path, err)
	}
	return project, path, nil
}

// ParseProject decodes TOML after expanding ${VAR} references from the
// environment. Unset variables expand to the empty string.
func ParseProject(data string) (*Project, error) {
	expanded := os.Expand(data, os.Getenv)

	var p Project
	md, err := toml.Decode(expanded, &p)
	if err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	p.applyDefaults()
	return &p, nil
}

func (p *Project) applyDefaults() {
	if p.DeploymentsDir == "" {
		p.DeploymentsDir = "deployments"
	}
	if p.DataFile == "" {
		p.DataFile = "data.json"
	}
	if p.Networks == nil {
		p.Networks = map[string]NetworkConfig{}
	}
	if p.Etherscan.APIKeys == nil {
		p.Etherscan.APIKeys = map[string]string{}
	}
	for name, n := range p.Networks {
		n.Accounts = compact(n.Accounts)
		p.Networks[name] = n
	}
}

// DefaultProject returns the networks and explorer keys of the Duet hardhat
// setup, reading credentials from the environment.
func DefaultProject() *Project {
	hardhat := NetworkConfig{
		URL:     getEnv("HARDHAT_URL", "http://127.0.0.1:8545"),
		ChainID: 30097,
	}
	if getEnvBool("FORK_ENABLED", false) {
		hardhat.ChainID = getEnvUint("FORK_CHAIN_ID", 30097)
		hardhat.ForkURL = os.Getenv("FORK_URL")
	}

	p := &Project{
		AddressBook: "addresses.yaml",
		Solidity: SolidityConfig{
			Version:   "0.8.17",
			ViaIR:     true,
			Optimizer: OptimizerConfig{Enabled: true, Runs: 200},
		},
		Networks: map[string]NetworkConfig{
			"hardhat": hardhat,
			"bsctest": {
				URL:             "https://data-seed-prebsc-1-s3.binance.org:8545",
				ChainID:         97,
				Accounts:        []string{os.Getenv("KEY_BSC_TEST")},
				VerifyAPIKey:    os.Getenv("BSCSCAN_TEST_KEY"),
				ExplorerNetwork: "bscTestnet",
			},
			"bsc": {
				URL:          "https://bsc-dataseed.binance.org/",
				ChainID:      56,
				Accounts:     []string{os.Getenv("KEY_BSC_MAINNET")},
				VerifyAPIKey: os.Getenv("BSCSCAN_KEY"),
			},
			"arbitrum": {
				URL:          "https://1rpc.io/arb",
				ChainID:      42161,
				Accounts:     []string{os.Getenv("KEY_BSC_MAINNET")},
				VerifyAPIKey: os.Getenv("ARBISCAN_KEY"),
			},
		},
		Etherscan: EtherscanConfig{
			APIKeys: map[string]string{
				"bsc":         os.Getenv("BSCSCAN_KEY"),
				"arbitrumOne": os.Getenv("ARBISCAN_KEY"),
				"arbitrum":    os.Getenv("ARBISCAN_KEY"),
				"bscTestnet":  os.Getenv("BSCSCAN_TEST_KEY"),
				"mainnet":     os.Getenv("ETHERSCAN_API_KEY"),
			},
		},
	}
	p.applyDefaults()
	return p
}

func compact(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
