// Package client is the HTTP client for a node's API, used by the
// wallet command line and by anything scripting against a node.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/powlabs/gochain/chain"
	"github.com/powlabs/gochain/errors"
	"github.com/powlabs/gochain/model"
	"github.com/powlabs/gochain/node"
)

// Client talks to one node.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the node at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type apiError struct {
	Error string `json:"error"`
}

// do performs the request and decodes the JSON response into out.
// Non-2xx responses come back as errors carrying the server's message.
func (c *Client) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(errors.KindUnknown, err, "encode request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(errors.KindUnknown, err, "build request %s %s", method, path)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(errors.KindUnknown, err, "node unreachable at %s", c.baseURL)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(errors.KindUnknown, err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var remote apiError
		if json.Unmarshal(data, &remote) == nil && remote.Error != "" {
			return errors.New(errors.KindUnknown, "node rejected %s %s: %s", method, path, remote.Error)
		}
		return errors.New(errors.KindUnknown, "node rejected %s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(errors.KindUnknown, err, "decode response of %s %s", method, path)
	}
	return nil
}

// Info fetches the node status.
func (c *Client) Info() (*node.Status, error) {
	var status node.Status
	if err := c.do(http.MethodGet, "/info", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Stats fetches the chain aggregates.
func (c *Client) Stats() (*chain.Stats, error) {
	var stats chain.Stats
	if err := c.do(http.MethodGet, "/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetBalance fetches the live balance of an address.
func (c *Client) GetBalance(address model.Address) (model.Amount, error) {
	var resp struct {
		Balance model.Amount `json:"balance"`
	}
	if err := c.do(http.MethodGet, "/balance/"+string(address), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// GetUTXOs fetches the live outputs destined to an address.
func (c *Client) GetUTXOs(address model.Address) ([]model.UTXO, error) {
	var utxos []model.UTXO
	if err := c.do(http.MethodGet, "/utxos/"+string(address), nil, &utxos); err != nil {
		return nil, err
	}
	return utxos, nil
}

// GetBlockByHeight fetches one block.
func (c *Client) GetBlockByHeight(height uint64) (*model.Block, error) {
	var block model.Block
	if err := c.do(http.MethodGet, fmt.Sprintf("/blocks/height/%d", height), nil, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// GetLatestBlock fetches the tip block.
func (c *Client) GetLatestBlock() (*model.Block, error) {
	var block model.Block
	if err := c.do(http.MethodGet, "/blocks/latest", nil, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// SubmitTransaction sends a signed transaction for mempool admission.
func (c *Client) SubmitTransaction(tx *model.Transaction) error {
	return c.do(http.MethodPost, "/transactions", tx, nil)
}

// SubmitBlock sends a solved block.
func (c *Client) SubmitBlock(block *model.Block) error {
	return c.do(http.MethodPost, "/blocks", block, nil)
}

// EstimateFee asks for a fee rate targeting confirmation within the
// given number of blocks.
func (c *Client) EstimateFee(targetBlocks int) (uint64, error) {
	var resp struct {
		FeeRate uint64 `json:"fee_rate"`
	}
	path := fmt.Sprintf("/fee-estimate?target=%d", targetBlocks)
	if err := c.do(http.MethodGet, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.FeeRate, nil
}

// StartMining asks the node to start its mining loop.
func (c *Client) StartMining() error {
	return c.do(http.MethodPost, "/mining/start", nil, nil)
}

// StopMining asks the node to stop mining.
func (c *Client) StopMining() error {
	return c.do(http.MethodPost, "/mining/stop", nil, nil)
}
