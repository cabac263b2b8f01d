package config

import (
	"fmt"
	"net/url"

	"github.com/hashicorp/go-multierror"

	"github.com/pendergraft/contraverify/internal/validation"
)

// minViaIRVersion is the first solc release where viaIR left experimental status.
const minViaIRVersion = "0.8.13"

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	switch c.Storage.Type {
	case "sqlite":
	case "postgres":
		if c.Storage.Postgres.URL == "" {
			result = multierror.Append(result, fmt.Errorf("postgres storage requires CONTRAVERIFY_DATABASE_URL"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown storage type %q", c.Storage.Type))
	}
	switch c.Auth.Type {
	case "none", "api-key":
	default:
		result = multierror.Append(result, fmt.Errorf("unknown auth type %q", c.Auth.Type))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		result = multierror.Append(result, fmt.Errorf("unknown log format %q", c.Logging.Format))
	}
	if c.Verify.ExplorerRate <= 0 {
		result = multierror.Append(result, fmt.Errorf("explorer rate must be positive"))
	}
	if c.Verify.PollAttempts <= 0 {
		result = multierror.Append(result, fmt.Errorf("poll attempts must be positive"))
	}

	if c.Project != nil {
		if err := c.Project.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// Validate checks the project file contents.
func (p *Project) Validate() error {
	var result *multierror.Error

	if p.Solidity.Version != "" {
		if err := validation.ValidateCompilerVersion(p.Solidity.Version); err != nil {
			result = multierror.Append(result, fmt.Errorf("solidity.version: %w", err))
		} else if p.Solidity.ViaIR && validation.CompareVersions(p.Solidity.Version, minViaIRVersion) < 0 {
			result = multierror.Append(result, fmt.Errorf("solidity.via_ir requires solc >= %s", minViaIRVersion))
		}
	}

	for _, name := range p.NetworkNames() {
		n := p.Networks[name]
		if err := validation.ValidateNetworkName(name); err != nil {
			result = multierror.Append(result, fmt.Errorf("networks.%s: %w", name, err))
		}
		if n.URL != "" {
			if err := validateURL(n.URL, "http", "https", "ws", "wss"); err != nil {
				result = multierror.Append(result, fmt.Errorf("networks.%s.url: %w", name, err))
			}
		}
		for i, key := range n.Accounts {
			if err := validation.ValidatePrivateKey(key); err != nil {
				result = multierror.Append(result, fmt.Errorf("networks.%s.accounts[%d]: %w", name, i, err))
			}
		}
	}

	for i, chain := range p.Etherscan.CustomChains {
		if chain.Network == "" {
			result = multierror.Append(result, fmt.Errorf("etherscan.custom_chains[%d]: network is required", i))
		}
		if err := validation.ValidateChainID(chain.ChainID); err != nil {
			result = multierror.Append(result, fmt.Errorf("etherscan.custom_chains[%d]: %w", i, err))
		}
		if err := validateURL(chain.APIURL, "http", "https"); err != nil {
			result = multierror.Append(result, fmt.Errorf("etherscan.custom_chains[%d].api_url: %w", i, err))
		}
	}

	return result.ErrorOrNil()
}

func validateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%q: unsupported scheme %q", raw, u.Scheme)
}
