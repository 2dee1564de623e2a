package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"solana-nft-tracker/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	// DefaultNullBatchRetries is how many extra times a batch transaction
	// fetch is repeated when the node answers with a null first entry.
	// Eventually-consistent nodes return nulls for transactions they have
	// not indexed yet; after the retries the partial response is accepted.
	DefaultNullBatchRetries = 2
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint         string
	client           *http.Client
	maxRetries       int
	retryDelay       time.Duration
	maxDelay         time.Duration
	backoffMult      float64
	nullBatchRetries int
	requestID        atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for transport failures.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithNullBatchRetries sets how many extra attempts a batch transaction
// fetch makes when the response starts with a null entry.
func WithNullBatchRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.nullBatchRetries = n
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:         endpoint,
		client:           &http.Client{Timeout: DefaultTimeout},
		maxRetries:       DefaultMaxRetries,
		retryDelay:       DefaultRetryDelay,
		maxDelay:         DefaultMaxDelay,
		backoffMult:      DefaultBackoffMult,
		nullBatchRetries: DefaultNullBatchRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// post sends a request body and returns the raw response body, retrying
// transport failures with exponential backoff.
func (c *HTTPClient) post(ctx context.Context, body []byte) ([]byte, error) {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		return respBody, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// call performs a single JSON-RPC call.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	start := time.Now()
	defer func() { observability.RecordRPCLatency(method, time.Since(start).Seconds()) }()

	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := c.post(ctx, body)
	if err != nil {
		return err
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		// RPC errors are not retried
		return rpcResp.Error
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}

	return nil
}

// callBatch performs a JSON-RPC batch call of one method with per-item
// params, returning raw results ordered like items. Items the node errored
// or omitted come back as nil.
func (c *HTTPClient) callBatch(ctx context.Context, method string, items [][]interface{}) ([]json.RawMessage, error) {
	start := time.Now()
	defer func() { observability.RecordRPCLatency(method, time.Since(start).Seconds()) }()

	reqs := make([]rpcRequest, len(items))
	ids := make(map[uint64]int, len(items))
	for i, params := range items {
		id := c.requestID.Add(1)
		reqs[i] = rpcRequest{
			JSONRPC: "2.0",
			ID:      id,
			Method:  method,
			Params:  params,
		}
		ids[id] = i
	}

	body, err := json.Marshal(reqs)
	if err != nil {
		return nil, fmt.Errorf("marshal batch request: %w", err)
	}

	respBody, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}

	var resps []rpcResponse
	if err := json.Unmarshal(respBody, &resps); err != nil {
		return nil, fmt.Errorf("unmarshal batch response: %w", err)
	}

	results := make([]json.RawMessage, len(items))
	for _, resp := range resps {
		idx, ok := ids[resp.ID]
		if !ok || resp.Error != nil {
			continue
		}
		results[idx] = resp.Result
	}

	return results, nil
}

// GetSignaturesForAddress retrieves signatures for an address with pagination.
func (c *HTTPClient) GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error) {
	config := make(map[string]interface{})
	if opts != nil {
		if opts.Before != "" {
			config["before"] = opts.Before
		}
		if opts.Until != "" {
			config["until"] = opts.Until
		}
		if opts.Limit > 0 {
			config["limit"] = opts.Limit
		}
	}

	params := []interface{}{address}
	if len(config) > 0 {
		params = append(params, config)
	}

	var result []getSignaturesResult
	if err := c.call(ctx, "getSignaturesForAddress", params, &result); err != nil {
		return nil, err
	}

	sigs := make([]SignatureInfo, len(result))
	for i, r := range result {
		sigs[i] = SignatureInfo{
			Signature: r.Signature,
			Slot:      r.Slot,
			BlockTime: r.BlockTime,
			Err:       r.Err,
		}
	}

	return sigs, nil
}

// getSignaturesResult is the raw RPC response item for getSignaturesForAddress.
type getSignaturesResult struct {
	Signature string      `json:"signature"`
	Slot      int64       `json:"slot"`
	BlockTime *int64      `json:"blockTime"`
	Err       interface{} `json:"err"`
}

// GetParsedTransactions retrieves transactions for a batch of signatures.
// A null first entry is treated as a transient node inconsistency and the
// whole batch is refetched up to nullBatchRetries extra times before the
// partial response is accepted.
func (c *HTTPClient) GetParsedTransactions(ctx context.Context, signatures []string) ([]*ParsedTransaction, error) {
	if len(signatures) == 0 {
		return nil, nil
	}

	items := make([][]interface{}, len(signatures))
	for i, sig := range signatures {
		items[i] = []interface{}{
			sig,
			map[string]interface{}{
				"encoding":                       "jsonParsed",
				"commitment":                     "confirmed",
				"maxSupportedTransactionVersion": 0,
			},
		}
	}

	var results []json.RawMessage
	for attempt := 0; ; attempt++ {
		var err error
		results, err = c.callBatch(ctx, "getTransaction", items)
		if err != nil {
			return nil, err
		}
		if attempt >= c.nullBatchRetries || len(results) == 0 || !isNullResult(results[0]) {
			break
		}
		observability.DefaultMetrics.RPCBatchRetries.Inc()
	}

	txs := make([]*ParsedTransaction, len(signatures))
	for i, raw := range results {
		if isNullResult(raw) {
			continue
		}

		var result getTransactionResult
		if err := json.Unmarshal(raw, &result); err != nil {
			continue // undecodable entries are skipped, not fatal
		}

		tx := &ParsedTransaction{
			Signature: signatures[i],
			Slot:      result.Slot,
		}
		if result.BlockTime != nil {
			tx.BlockTime = *result.BlockTime
		}
		if result.Meta != nil {
			tx.Meta = &TransactionMeta{
				Err:          result.Meta.Err,
				Fee:          result.Meta.Fee,
				PreBalances:  result.Meta.PreBalances,
				PostBalances: result.Meta.PostBalances,
			}
		}
		if result.Transaction != nil && result.Transaction.Message != nil {
			tx.Message = &TransactionMessage{
				AccountKeys:  result.Transaction.Message.AccountKeys,
				Instructions: result.Transaction.Message.Instructions,
			}
		}

		txs[i] = tx
	}

	return txs, nil
}

func isNullResult(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// getTransactionResult is the raw RPC response for getTransaction.
type getTransactionResult struct {
	Slot        int64               `json:"slot"`
	BlockTime   *int64              `json:"blockTime"`
	Meta        *getTransactionMeta `json:"meta"`
	Transaction *getTransactionTx   `json:"transaction"`
}

type getTransactionMeta struct {
	Err          interface{} `json:"err"`
	Fee          uint64      `json:"fee"`
	PreBalances  []uint64    `json:"preBalances"`
	PostBalances []uint64    `json:"postBalances"`
}

type getTransactionTx struct {
	Message *getTransactionMessage `json:"message"`
}

type getTransactionMessage struct {
	AccountKeys  []AccountKey  `json:"accountKeys"`
	Instructions []Instruction `json:"instructions"`
}

// GetParsedTokenAccountsByOwner retrieves SPL token accounts owned by a wallet.
func (c *HTTPClient) GetParsedTokenAccountsByOwner(ctx context.Context, owner string) ([]TokenAccount, error) {
	params := []interface{}{
		owner,
		map[string]interface{}{"programId": TokenProgramID},
		map[string]interface{}{"encoding": "jsonParsed"},
	}

	var result getTokenAccountsResult
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]TokenAccount, 0, len(result.Value))
	for _, v := range result.Value {
		info := v.Account.Data.Parsed.Info
		accounts = append(accounts, TokenAccount{
			Pubkey: v.Pubkey,
			Mint:   info.Mint,
			Amount: info.TokenAmount.Amount,
		})
	}

	return accounts, nil
}

// getTokenAccountsResult is the raw RPC response for getTokenAccountsByOwner.
type getTokenAccountsResult struct {
	Value []struct {
		Pubkey  string `json:"pubkey"`
		Account struct {
			Data struct {
				Parsed struct {
					Info struct {
						Mint        string `json:"mint"`
						TokenAmount struct {
							Amount string `json:"amount"`
						} `json:"tokenAmount"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"account"`
	} `json:"value"`
}
