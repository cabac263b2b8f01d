package domain

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/pendergraft/contraverify/internal/addressbook"
	"github.com/pendergraft/contraverify/internal/artifacts"
	"github.com/pendergraft/contraverify/internal/networks"
)

// Common errors returned by the deployment service.
var (
	ErrNotFound      = errors.New("not found")
	ErrNoAddressBook = errors.New("no address book configured")
)

// Service defines the deployment service interface.
type Service interface {
	// Networks lists the configured networks.
	Networks(ctx context.Context) ([]NetworkInfo, error)

	// Network describes one network.
	Network(ctx context.Context, name string) (*NetworkInfo, error)

	// Deployments lists the artifacts recorded for a network.
	Deployments(network string) ([]Deployment, error)

	// Deployment returns one artifact by deployment name.
	Deployment(network, name string) (*Deployment, error)

	// AddressNames lists the address book names.
	AddressNames() ([]string, error)

	// Addresses returns every network entry for a name.
	Addresses(name string) ([]addressbook.Entry, error)

	// Address returns the address of name on network.
	Address(name, network string) (string, error)
}

// Resolver defines the network lookups the service needs.
type Resolver interface {
	Names() []string
	Get(name string) (*networks.Network, error)
	ResolveExplorer(ctx context.Context, name string) (*networks.Explorer, error)
}

// service implements the Service interface.
type service struct {
	resolver Resolver
	book     *addressbook.Book
	root     string
}

// NewService creates a new deployment service. book may be nil.
func NewService(resolver Resolver, book *addressbook.Book, deploymentsRoot string) Service {
	return &service{resolver: resolver, book: book, root: deploymentsRoot}
}

// Networks lists the configured networks in name order.
func (s *service) Networks(ctx context.Context) ([]NetworkInfo, error) {
	names := s.resolver.Names()
	out := make([]NetworkInfo, 0, len(names))
	for _, name := range names {
		info, err := s.Network(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, *info)
	}
	return out, nil
}

// Network describes one network. Explorer details are left empty when the
// chain has no known explorer.
func (s *service) Network(ctx context.Context, name string) (*NetworkInfo, error) {
	n, err := s.resolver.Get(name)
	if err != nil {
		if errors.Is(err, networks.ErrUnknownNetwork) {
			return nil, fmt.Errorf("%w: network %s", ErrNotFound, name)
		}
		return nil, err
	}

	info := &NetworkInfo{
		Name:            n.Name,
		ChainID:         n.ChainID,
		RPC:             redactURL(n.URL),
		Forking:         n.ForkURL != "",
		Accounts:        len(n.Accounts),
		ExplorerNetwork: n.ExplorerNetwork,
	}
	if ex, err := s.resolver.ResolveExplorer(ctx, name); err == nil {
		info.ChainID = ex.ChainID
		info.ExplorerURL = ex.APIURL
		info.BrowserURL = ex.BrowserURL
		info.HasAPIKey = ex.APIKey != ""
	}
	return info, nil
}

// Deployments lists the artifacts of network. Unreadable artifacts are
// left out.
func (s *service) Deployments(network string) ([]Deployment, error) {
	if _, err := s.resolver.Get(network); err != nil {
		if errors.Is(err, networks.ErrUnknownNetwork) {
			return nil, fmt.Errorf("%w: network %s", ErrNotFound, network)
		}
		return nil, err
	}

	paths, err := artifacts.Discover(networks.DeploymentsDir(s.root, network), artifacts.DiscoverOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	out := make([]Deployment, 0, len(paths))
	for _, path := range paths {
		a, err := artifacts.Parse(path)
		if err != nil {
			continue
		}
		out = append(out, toDeployment(network, a))
	}
	return out, nil
}

// Deployment returns one artifact by name, case-insensitively.
func (s *service) Deployment(network, name string) (*Deployment, error) {
	all, err := s.Deployments(network)
	if err != nil {
		return nil, err
	}
	filter := artifacts.DiscoverOptions{Contracts: []string{name}}
	for _, d := range all {
		if filter.Match(d.Name) {
			return &d, nil
		}
	}
	return nil, fmt.Errorf("%w: deployment %s on %s", ErrNotFound, name, network)
}

// AddressNames lists the address book names.
func (s *service) AddressNames() ([]string, error) {
	if s.book == nil {
		return nil, ErrNoAddressBook
	}
	return s.book.Names(), nil
}

// Addresses returns every network entry for name.
func (s *service) Addresses(name string) ([]addressbook.Entry, error) {
	if s.book == nil {
		return nil, ErrNoAddressBook
	}
	entries, err := s.book.Entries(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return entries, nil
}

// Address returns the address of name on network.
func (s *service) Address(name, network string) (string, error) {
	if s.book == nil {
		return "", ErrNoAddressBook
	}
	addr, err := s.book.Lookup(name, network)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return addr, nil
}

func toDeployment(network string, a *artifacts.Artifact) Deployment {
	contract, _ := a.ContractIdentifier()
	return Deployment{
		Network:  network,
		Name:     a.Name(),
		Address:  a.Address,
		Contract: contract,
		TxHash:   a.TransactionHash,
		Proxy:    a.IsKnownProxy(),
	}
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host
}
