package networks

// Chain is an explorer endpoint for one chain.
type Chain struct {
	Network    string `json:"network"`
	ChainID    uint64 `json:"chainId"`
	APIURL     string `json:"apiUrl"`
	BrowserURL string `json:"browserUrl"`
}

// builtinChains is the subset of hardhat-etherscan's chain table the Duet
// packages deploy to, plus the common Ethereum networks.
var builtinChains = []Chain{
	{Network: "mainnet", ChainID: 1, APIURL: "https://api.etherscan.io/api", BrowserURL: "https://etherscan.io"},
	{Network: "goerli", ChainID: 5, APIURL: "https://api-goerli.etherscan.io/api", BrowserURL: "https://goerli.etherscan.io"},
	{Network: "sepolia", ChainID: 11155111, APIURL: "https://api-sepolia.etherscan.io/api", BrowserURL: "https://sepolia.etherscan.io"},
	{Network: "bsc", ChainID: 56, APIURL: "https://api.bscscan.com/api", BrowserURL: "https://bscscan.com"},
	{Network: "bscTestnet", ChainID: 97, APIURL: "https://api-testnet.bscscan.com/api", BrowserURL: "https://testnet.bscscan.com"},
	{Network: "arbitrumOne", ChainID: 42161, APIURL: "https://api.arbiscan.io/api", BrowserURL: "https://arbiscan.io"},
	{Network: "arbitrumGoerli", ChainID: 421613, APIURL: "https://api-goerli.arbiscan.io/api", BrowserURL: "https://goerli.arbiscan.io"},
	{Network: "optimisticEthereum", ChainID: 10, APIURL: "https://api-optimistic.etherscan.io/api", BrowserURL: "https://optimistic.etherscan.io"},
	{Network: "polygon", ChainID: 137, APIURL: "https://api.polygonscan.com/api", BrowserURL: "https://polygonscan.com"},
}

// BuiltinChains returns a copy of the built-in chain table.
func BuiltinChains() []Chain {
	out := make([]Chain, len(builtinChains))
	copy(out, builtinChains)
	return out
}
