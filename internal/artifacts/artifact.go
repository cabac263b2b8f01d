// Package artifacts reads hardhat-deploy deployment artifacts.
//
// A deployment directory (deployments/<network>) holds one JSON file per
// deployed contract instance plus a solcInputs/ directory with the Standard
// JSON input of every compilation referenced by those files.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ProxyNotice is the userdoc notice hardhat-deploy writes into the EIP173
// ownership proxies it generates.
const ProxyNotice = "Proxy implementing EIP173 for ownership management"

var (
	// ErrNoMetadata is returned when an artifact carries no compiler metadata.
	ErrNoMetadata = errors.New("artifact has no metadata")
	// ErrCompilationTarget is returned when the metadata does not name exactly one target.
	ErrCompilationTarget = errors.New("metadata must have exactly one compilation target")
)

// Artifact is one deployed contract instance as recorded by hardhat-deploy.
type Artifact struct {
	// File is the artifact's base name, e.g. "Token.json".
	File            string            `json:"-"`
	Address         string            `json:"address"`
	ABI             json.RawMessage   `json:"abi"`
	TransactionHash string            `json:"transactionHash"`
	Args            []json.RawMessage `json:"args"`
	SolcInputHash   string            `json:"solcInputHash"`
	Metadata        string            `json:"metadata"`
	Bytecode        string            `json:"bytecode"`
	DeployedCode    string            `json:"deployedBytecode"`
	Userdoc         *Userdoc          `json:"userdoc,omitempty"`
}

// Userdoc is the NatSpec user documentation block.
type Userdoc struct {
	Notice string `json:"notice"`
}

// Metadata is the decoded solc metadata string.
type Metadata struct {
	Compiler struct {
		Version string `json:"version"`
	} `json:"compiler"`
	Language string           `json:"language"`
	Settings MetadataSettings `json:"settings"`
}

// MetadataSettings holds the compiler settings recorded in metadata.
type MetadataSettings struct {
	CompilationTarget map[string]string `json:"compilationTarget"`
	EVMVersion        string            `json:"evmVersion"`
	Optimizer         struct {
		Enabled bool `json:"enabled"`
		Runs    int  `json:"runs"`
	} `json:"optimizer"`
	ViaIR bool `json:"viaIR"`
}

// Name returns the deployment name (file name without extension).
func (a *Artifact) Name() string {
	return strings.TrimSuffix(a.File, ".json")
}

// IsKnownProxy reports whether the artifact is a hardhat-deploy EIP173 proxy.
func (a *Artifact) IsKnownProxy() bool {
	return a.Userdoc != nil && a.Userdoc.Notice == ProxyNotice
}

// ConstructorArguments returns the deployment arguments, never nil.
func (a *Artifact) ConstructorArguments() []json.RawMessage {
	if a.Args == nil {
		return []json.RawMessage{}
	}
	return a.Args
}

// ParseMetadata decodes the nested metadata string.
func (a *Artifact) ParseMetadata() (*Metadata, error) {
	if a.Metadata == "" {
		return nil, ErrNoMetadata
	}
	var m Metadata
	if err := json.Unmarshal([]byte(a.Metadata), &m); err != nil {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}
	return &m, nil
}

// ContractIdentifier returns the fully qualified "<source>:<Contract>" name.
func (a *Artifact) ContractIdentifier() (string, error) {
	m, err := a.ParseMetadata()
	if err != nil {
		return "", err
	}
	return m.ContractIdentifier()
}

// ContractIdentifier returns the fully qualified name of the single compilation target.
func (m *Metadata) ContractIdentifier() (string, error) {
	if len(m.Settings.CompilationTarget) != 1 {
		return "", fmt.Errorf("%w (found %d)", ErrCompilationTarget, len(m.Settings.CompilationTarget))
	}
	for source, name := range m.Settings.CompilationTarget {
		return source + ":" + name, nil
	}
	return "", ErrCompilationTarget
}

// Parse reads a single artifact file.
func Parse(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing artifact JSON: %w", err)
	}
	a.File = filepath.Base(path)
	return &a, nil
}

// LoadSolcInput returns the Standard JSON input stored under solcInputs/.
func LoadSolcInput(dir, hash string) (json.RawMessage, error) {
	if hash == "" {
		return nil, errors.New("artifact has no solcInputHash")
	}
	data, err := os.ReadFile(filepath.Join(dir, "solcInputs", hash+".json"))
	if err != nil {
		return nil, fmt.Errorf("reading solc input %s: %w", hash, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("solc input %s is not valid JSON", hash)
	}
	return data, nil
}

// DiscoverOptions narrows artifact discovery
type DiscoverOptions struct {
	// Contracts to include by deployment name (empty = all)
	Contracts []string
	// Exclude drops names matching a prefix, suffix or glob
	Exclude []string
}

// Discover lists artifact files in dir, sorted by name. Hidden files, nested
// directories and anything not ending in .json are ignored.
func Discover(dir string, opts DiscoverOptions) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading deployments directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !IsArtifactFile(name) {
			continue
		}
		if !opts.Match(name) {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}

	sort.Strings(paths)
	return paths, nil
}

// Match reports whether the artifact file name passes the include and
// exclude lists. The naming policy itself is checked by IsArtifactFile.
func (o DiscoverOptions) Match(name string) bool {
	base := strings.TrimSuffix(filepath.Base(name), ".json")
	if len(o.Contracts) > 0 && !containsFold(o.Contracts, base) {
		return false
	}
	return !excluded(base, o.Exclude)
}

// IsArtifactFile applies the artifact naming policy to a base file name.
func IsArtifactFile(name string) bool {
	return !strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".json")
}

func excluded(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if strings.HasPrefix(name, pattern) || strings.HasSuffix(name, pattern) {
			return true
		}
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

func containsFold(list []string, name string) bool {
	for _, s := range list {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}
