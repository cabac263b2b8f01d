// Package rpc wraps the JSON-RPC calls contraverify makes against a network
// node.
package rpc

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client is a thin ethclient wrapper.
type Client struct {
	eth *ethclient.Client
}

// Dial connects to an RPC endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	if url == "" {
		return nil, errors.New("no RPC URL configured")
	}
	eth, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return &Client{eth: eth}, nil
}

// Close releases the connection.
func (c *Client) Close() {
	c.eth.Close()
}

// ChainID returns the chain ID the node reports.
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("querying chain ID: %w", err)
	}
	return id.Uint64(), nil
}

// CodeAt returns the runtime code at address on the latest block.
func (c *Client) CodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	code, err := c.eth.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching code at %s: %w", address.Hex(), err)
	}
	return code, nil
}

// BalanceAt returns the latest balance of address in wei.
func (c *Client) BalanceAt(ctx context.Context, address common.Address) (*big.Int, error) {
	return c.eth.BalanceAt(ctx, address, nil)
}

// NodeAccounts returns the accounts the node itself manages (eth_accounts),
// as a hardhat or anvil node does for its funded dev accounts.
func (c *Client) NodeAccounts(ctx context.Context) ([]common.Address, error) {
	var addrs []common.Address
	if err := c.eth.Client().CallContext(ctx, &addrs, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("listing node accounts: %w", err)
	}
	return addrs, nil
}

// Transact signs and sends a legacy transaction calling to with data.
func (c *Client) Transact(ctx context.Context, key *ecdsa.PrivateKey, chainID uint64, to common.Address, data []byte) (common.Hash, error) {
	from := crypto.PubkeyToAddress(key.PublicKey)

	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetching nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggesting gas price: %w", err)
	}
	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimating gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(new(big.Int).SetUint64(chainID)), key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("signing transaction: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("sending transaction: %w", err)
	}
	return signed.Hash(), nil
}

// WaitMined polls for the receipt of hash until it appears or ctx ends.
func (c *Client) WaitMined(ctx context.Context, hash common.Hash, interval time.Duration) (*types.Receipt, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("fetching receipt: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Prober dials an endpoint just long enough to read its chain ID.
type Prober struct{}

// ProbeChainID implements networks.ChainIDProber.
func (Prober) ProbeChainID(ctx context.Context, url string) (uint64, error) {
	c, err := Dial(ctx, url)
	if err != nil {
		return 0, err
	}
	defer c.Close()
	return c.ChainID(ctx)
}
