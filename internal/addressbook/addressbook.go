// Package addressbook reads the per-network address book of external
// contracts and tokens the deployments depend on.
//
// The file maps a name to its address on each network:
//
//	weth:
//	  bsc: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"
//	  hardhat: null
//
// A null address means the contract is not deployed on that network.
package addressbook

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/pendergraft/contraverify/internal/validation"
)

var (
	// ErrUnknownName is returned for names absent from the book.
	ErrUnknownName = errors.New("address book has no entry")
	// ErrNotDeployed is returned when the entry exists but has no address on the network.
	ErrNotDeployed = errors.New("not deployed on network")
)

// Book is an address book.
type Book struct {
	entries map[string]map[string]*string
}

// Entry is one name's address on one network.
type Entry struct {
	Name    string  `json:"name"`
	Network string  `json:"network"`
	Address *string `json:"address"`
}

// Load reads an address book file.
func Load(path string) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading address book: %w", err)
	}
	return Parse(data)
}

// Parse decodes address book YAML.
func Parse(data []byte) (*Book, error) {
	entries := map[string]map[string]*string{}
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing address book: %w", err)
	}
	return &Book{entries: entries}, nil
}

// Names returns every name in the book, sorted.
func (b *Book) Names() []string {
	names := make([]string, 0, len(b.entries))
	for name := range b.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Networks returns the networks listed for name, sorted.
func (b *Book) Networks(name string) ([]string, error) {
	byNetwork, ok := b.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w for %q", ErrUnknownName, name)
	}
	networks := make([]string, 0, len(byNetwork))
	for network := range byNetwork {
		networks = append(networks, network)
	}
	sort.Strings(networks)
	return networks, nil
}

// Lookup returns the address of name on network.
func (b *Book) Lookup(name, network string) (string, error) {
	byNetwork, ok := b.entries[name]
	if !ok {
		return "", fmt.Errorf("%w for %q", ErrUnknownName, name)
	}
	addr := byNetwork[network]
	if addr == nil || *addr == "" {
		return "", fmt.Errorf("%s: %w %s", name, ErrNotDeployed, network)
	}
	return *addr, nil
}

// Entries returns every (name, network) pair, sorted by name then network.
func (b *Book) Entries(name string) ([]Entry, error) {
	networks, err := b.Networks(name)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(networks))
	for _, network := range networks {
		out = append(out, Entry{Name: name, Network: network, Address: b.entries[name][network]})
	}
	return out, nil
}

// ForNetwork returns name → address for everything deployed on network.
func (b *Book) ForNetwork(network string) map[string]string {
	out := map[string]string{}
	for name, byNetwork := range b.entries {
		if addr := byNetwork[network]; addr != nil && *addr != "" {
			out[name] = *addr
		}
	}
	return out
}

// Validate checks every address. Mixed-case addresses must carry a correct
// EIP-55 checksum.
func (b *Book) Validate() error {
	var result *multierror.Error
	for _, name := range b.Names() {
		networks, _ := b.Networks(name)
		for _, network := range networks {
			addr := b.entries[name][network]
			if addr == nil {
				continue
			}
			if err := validation.ValidateAddress(*addr); err != nil {
				result = multierror.Append(result, fmt.Errorf("%s.%s: %w", name, network, err))
				continue
			}
			if !validation.HasValidChecksum(*addr) {
				result = multierror.Append(result, fmt.Errorf("%s.%s: bad EIP-55 checksum for %s", name, network, *addr))
			}
		}
	}
	return result.ErrorOrNil()
}
