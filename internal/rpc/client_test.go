package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeNode answers JSON-RPC calls from a method table.
type fakeNode struct {
	mu      sync.Mutex
	results map[string]any
	rawTx   []byte
}

func (f *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	result, ok := f.results[req.Method]
	if req.Method == "eth_sendRawTransaction" {
		var s string
		_ = json.Unmarshal(req.Params[0], &s)
		f.rawTx, _ = hexutil.Decode(s)
	}
	f.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if ok {
		resp["result"] = result
	} else {
		resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newFakeNode(t *testing.T, results map[string]any) (*fakeNode, *Client) {
	t.Helper()
	node := &fakeNode{results: results}
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	c, err := Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return node, c
}

func TestDialRequiresURL(t *testing.T) {
	_, err := Dial(context.Background(), "")
	assert.Error(t, err)
}

func TestChainIDAndCode(t *testing.T) {
	_, c := newFakeNode(t, map[string]any{
		"eth_chainId": "0x38",
		"eth_getCode": "0x6080",
	})

	id, err := c.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(56), id)

	code, err := c.CodeAt(context.Background(), common.HexToAddress("0x01"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x80}, code)
}

func TestTransact(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	node, c := newFakeNode(t, map[string]any{
		"eth_getTransactionCount": "0x7",
		"eth_gasPrice":            "0x3b9aca00",
		"eth_estimateGas":         "0x5208",
		"eth_sendRawTransaction":  "0x" + common.Bytes2Hex(make([]byte, 32)),
	})

	to := common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	hash, err := c.Transact(context.Background(), key, 97, to, []byte{0x01, 0x02})
	require.NoError(t, err)

	var tx types.Transaction
	require.NoError(t, tx.UnmarshalBinary(node.rawTx))
	assert.Equal(t, hash, tx.Hash())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(21000), tx.Gas())
	assert.Equal(t, &to, tx.To())

	sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), &tx)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), sender)
	assert.Equal(t, uint64(97), tx.ChainId().Uint64())
}

func TestWaitMinedHonoursContext(t *testing.T) {
	_, c := newFakeNode(t, map[string]any{
		"eth_getTransactionReceipt": nil,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.WaitMined(ctx, common.Hash{}, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProber(t *testing.T) {
	node := &fakeNode{results: map[string]any{"eth_chainId": "0xa4b1"}}
	srv := httptest.NewServer(node)
	defer srv.Close()

	id, err := Prober{}.ProbeChainID(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, uint64(42161), id)
}

func TestNodeAccounts(t *testing.T) {
	_, c := newFakeNode(t, map[string]any{
		"eth_accounts": []string{
			"0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266",
			"0x70997970c51812dc3a010c7d01b50e0d17dc79c8",
		},
	})

	addrs, err := c.NodeAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), addrs[0])
}
