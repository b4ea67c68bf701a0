// Package ethrpc is a minimal Ethereum JSON-RPC client covering the calls
// the lock verifier needs. RPC responses are duck-typed JSON, so every field
// is shape-checked at this boundary before anything downstream trusts it.
package ethrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
)

// Transaction is the subset of an eth transaction the verifier validates.
type Transaction struct {
	Hash        string
	From        string
	To          string
	ValueWei    *big.Int
	BlockNumber uint64 // 0 while pending
	Raw         json.RawMessage
}

// Receipt is the subset of a transaction receipt the verifier validates.
// Status is 1 for success, 0 for a reverted transaction.
type Receipt struct {
	TxHash      string
	Status      uint64
	BlockNumber uint64
	Raw         json.RawMessage
}

// Client talks JSON-RPC 2.0 to an Ethereum node over HTTP.
type Client struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Int64
}

// New creates a client for the given RPC endpoint.
func New(endpoint string, httpClient *http.Client) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("rpc endpoint is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{endpoint: endpoint, http: httpClient}, nil
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	result, err := c.call(ctx, "eth_blockNumber")
	if err != nil {
		return 0, err
	}
	return parseHexUint64(result)
}

// TransactionByHash fetches a transaction. The bool is false when the node
// does not know the hash yet; that is expected, not an error.
func (c *Client) TransactionByHash(ctx context.Context, hash string) (Transaction, bool, error) {
	result, err := c.call(ctx, "eth_getTransactionByHash", hash)
	if err != nil {
		return Transaction{}, false, err
	}
	if result.Type == gjson.Null {
		return Transaction{}, false, nil
	}
	if !result.IsObject() {
		return Transaction{}, false, fmt.Errorf("eth_getTransactionByHash: unexpected result shape")
	}

	tx := Transaction{
		Hash: strings.ToLower(result.Get("hash").String()),
		From: strings.ToLower(result.Get("from").String()),
		To:   strings.ToLower(result.Get("to").String()),
		Raw:  json.RawMessage(result.Raw),
	}
	if tx.Hash == "" || tx.From == "" {
		return Transaction{}, false, fmt.Errorf("eth_getTransactionByHash: missing hash or sender")
	}

	value := result.Get("value")
	if !value.Exists() {
		return Transaction{}, false, fmt.Errorf("eth_getTransactionByHash: missing value")
	}
	wei, err := parseHexBig(value)
	if err != nil {
		return Transaction{}, false, fmt.Errorf("eth_getTransactionByHash: %w", err)
	}
	tx.ValueWei = wei

	if block := result.Get("blockNumber"); block.Exists() && block.Type != gjson.Null {
		n, err := parseHexUint64(block)
		if err != nil {
			return Transaction{}, false, fmt.Errorf("eth_getTransactionByHash: %w", err)
		}
		tx.BlockNumber = n
	}

	return tx, true, nil
}

// TransactionReceipt fetches a receipt. The bool is false while the
// transaction is not yet mined.
func (c *Client) TransactionReceipt(ctx context.Context, hash string) (Receipt, bool, error) {
	result, err := c.call(ctx, "eth_getTransactionReceipt", hash)
	if err != nil {
		return Receipt{}, false, err
	}
	if result.Type == gjson.Null {
		return Receipt{}, false, nil
	}
	if !result.IsObject() {
		return Receipt{}, false, fmt.Errorf("eth_getTransactionReceipt: unexpected result shape")
	}

	receipt := Receipt{
		TxHash: strings.ToLower(result.Get("transactionHash").String()),
		Raw:    json.RawMessage(result.Raw),
	}

	status := result.Get("status")
	if !status.Exists() {
		return Receipt{}, false, fmt.Errorf("eth_getTransactionReceipt: missing status")
	}
	statusValue, err := parseHexUint64(status)
	if err != nil {
		return Receipt{}, false, fmt.Errorf("eth_getTransactionReceipt: %w", err)
	}
	receipt.Status = statusValue

	block := result.Get("blockNumber")
	if !block.Exists() || block.Type == gjson.Null {
		return Receipt{}, false, fmt.Errorf("eth_getTransactionReceipt: missing block number")
	}
	blockValue, err := parseHexUint64(block)
	if err != nil {
		return Receipt{}, false, fmt.Errorf("eth_getTransactionReceipt: %w", err)
	}
	receipt.BlockNumber = blockValue

	return receipt, true, nil
}

func (c *Client) call(ctx context.Context, method string, params ...any) (gjson.Result, error) {
	if params == nil {
		params = []any{}
	}
	payload, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      c.nextID.Add(1),
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return gjson.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("%s: rpc endpoint returned status %d", method, resp.StatusCode)
	}

	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%s: invalid JSON response", method)
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() {
		return gjson.Result{}, fmt.Errorf("%s: response is not an object", method)
	}

	if rpcErr := parsed.Get("error"); rpcErr.Exists() && rpcErr.Type != gjson.Null {
		return gjson.Result{}, fmt.Errorf("%s: rpc error %d: %s",
			method, rpcErr.Get("code").Int(), rpcErr.Get("message").String())
	}

	return parsed.Get("result"), nil
}

func parseHexUint64(v gjson.Result) (uint64, error) {
	n, err := parseHexBig(v)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("quantity %s overflows uint64", v.String())
	}
	return n.Uint64(), nil
}

func parseHexBig(v gjson.Result) (*big.Int, error) {
	if v.Type != gjson.String {
		return nil, fmt.Errorf("expected hex quantity, got %s", v.Type)
	}
	raw := strings.TrimPrefix(strings.ToLower(v.String()), "0x")
	if raw == "" {
		return nil, fmt.Errorf("empty hex quantity")
	}
	n, ok := new(big.Int).SetString(raw, 16)
	if !ok {
		return nil, fmt.Errorf("malformed hex quantity %q", v.String())
	}
	return n, nil
}
