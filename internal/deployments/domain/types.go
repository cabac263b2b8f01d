// Package domain contains the business logic for deployment lookups: the
// configured networks, the address book and the artifacts recorded under
// deployments/<network>.
package domain

// Deployment is one contract instance recorded by hardhat-deploy.
type Deployment struct {
	Network  string `json:"network"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Contract string `json:"contract,omitempty"`
	TxHash   string `json:"txHash,omitempty"`
	Proxy    bool   `json:"proxy,omitempty"`
}

// NetworkInfo describes a configured network. RPC URLs are reduced to
// scheme and host since providers embed API keys in the path.
type NetworkInfo struct {
	Name            string `json:"name"`
	ChainID         uint64 `json:"chainId,omitempty"`
	RPC             string `json:"rpc,omitempty"`
	Forking         bool   `json:"forking,omitempty"`
	Accounts        int    `json:"accounts"`
	ExplorerNetwork string `json:"explorerNetwork"`
	ExplorerURL     string `json:"explorerUrl,omitempty"`
	BrowserURL      string `json:"browserUrl,omitempty"`
	HasAPIKey       bool   `json:"hasApiKey"`
}
