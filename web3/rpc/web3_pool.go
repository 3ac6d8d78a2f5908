// Package rpc contains the Web3Pool, a set of web3 endpoints of the same
// chain, and a Client that uses them for the relay gateway. Read operations
// switch to the next endpoint when one fails with a transport error, while
// transactions are sent exactly once to a single endpoint.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/vocdoni/selfpoll-relay/log"
)

const (
	// DefaultMaxWeb3ClientRetries is the default number of retries to connect
	// to a web3 provider.
	DefaultMaxWeb3ClientRetries = 5
	// checkWeb3EndpointsTimeout is the timeout to check the web3 endpoints.
	checkWeb3EndpointsTimeout = time.Second * 10
	// retryDelay is the time between connection attempts.
	retryDelay = 500 * time.Millisecond
)

// ethClient is the subset of *ethclient.Client used by the pool.
type ethClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// Web3Endpoint is a connected web3 provider.
type Web3Endpoint struct {
	ChainID uint64
	URI     string
	client  ethClient
}

// Web3Pool holds the endpoints of a single chain. Requests start at the
// current endpoint and rotate to the next one on transport errors.
type Web3Pool struct {
	mu        sync.Mutex
	chainID   uint64
	endpoints []*Web3Endpoint
	current   int
}

// NewWeb3Pool returns an empty pool.
func NewWeb3Pool() *Web3Pool {
	return &Web3Pool{}
}

// AddEndpoint connects to the web3 provider uri and adds it to the pool. All
// the endpoints must belong to the same chain. It returns the chain id.
func (p *Web3Pool) AddEndpoint(uri string) (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), checkWeb3EndpointsTimeout)
	defer cancel()
	client, err := connect(ctx, uri)
	if err != nil {
		return 0, err
	}
	return p.addClient(ctx, uri, client)
}

func (p *Web3Pool) addClient(ctx context.Context, uri string, client ethClient) (uint64, error) {
	bChainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return 0, fmt.Errorf("error getting the chainID from the web3 provider '%s': %w", uri, err)
	}
	chainID := bChainID.Uint64()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.endpoints) > 0 && p.chainID != chainID {
		client.Close()
		return 0, fmt.Errorf("web3 provider '%s' is on chain %d, expected %d", uri, chainID, p.chainID)
	}
	p.chainID = chainID
	p.endpoints = append(p.endpoints, &Web3Endpoint{ChainID: chainID, URI: uri, client: client})
	log.Debugw("web3 endpoint added", "uri", uri, "chainID", chainID)
	return chainID, nil
}

// NumberOfEndpoints returns the number of endpoints in the pool.
func (p *Web3Pool) NumberOfEndpoints() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

// Client returns a Client backed by the pool. It fails if the pool is empty.
func (p *Web3Pool) Client() (*Client, error) {
	if p.NumberOfEndpoints() == 0 {
		return nil, fmt.Errorf("no web3 endpoint available")
	}
	return &Client{pool: p}, nil
}

// Close closes every endpoint client.
func (p *Web3Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.endpoints {
		e.client.Close()
	}
	p.endpoints = nil
}

// snapshot returns the endpoints ordered starting by the current one.
func (p *Web3Pool) snapshot() []*Web3Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.endpoints)
	res := make([]*Web3Endpoint, 0, n)
	for i := 0; i < n; i++ {
		res = append(res, p.endpoints[(p.current+i)%n])
	}
	return res
}

// markFailed moves the current endpoint past the failed one.
func (p *Web3Pool) markFailed(uri string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.endpoints)
	if n == 0 || p.endpoints[p.current%n].URI != uri {
		return
	}
	p.current = (p.current + 1) % n
	log.Warnw("web3 endpoint failed, switching", "uri", uri, "next", p.endpoints[p.current].URI)
}

// isTransportError returns true if the error did not come from the node
// itself (JSON-RPC error) and the request may be sent to another endpoint.
func isTransportError(err error) bool {
	if err == nil || errors.Is(err, ethereum.NotFound) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rpcErr gethrpc.Error
	return !errors.As(err, &rpcErr)
}

// Client implements the gateway backend on top of a Web3Pool.
type Client struct {
	pool *Web3Pool
}

// read runs fn against the pool endpoints until one does not fail with a
// transport error.
func read[T any](c *Client, fn func(ethClient) (T, error)) (T, error) {
	var res T
	var err error
	for _, e := range c.pool.snapshot() {
		res, err = fn(e.client)
		if !isTransportError(err) {
			return res, err
		}
		c.pool.markFailed(e.URI)
	}
	return res, err
}

// ChainID returns the chain id of the pool.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return read(c, func(cli ethClient) (*big.Int, error) { return cli.ChainID(ctx) })
}

// PendingNonceAt returns the pending nonce of the account.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return read(c, func(cli ethClient) (uint64, error) { return cli.PendingNonceAt(ctx, account) })
}

// EstimateGas estimates the gas of the call.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return read(c, func(cli ethClient) (uint64, error) { return cli.EstimateGas(ctx, msg) })
}

// TransactionReceipt returns the receipt of the transaction.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return read(c, func(cli ethClient) (*types.Receipt, error) { return cli.TransactionReceipt(ctx, txHash) })
}

// CallContract executes a read-only call.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return read(c, func(cli ethClient) ([]byte, error) { return cli.CallContract(ctx, msg, blockNumber) })
}

// SendTransaction sends the transaction to the current endpoint only. A
// failed send is never repeated on another endpoint, the caller decides.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	endpoints := c.pool.snapshot()
	if len(endpoints) == 0 {
		return fmt.Errorf("no web3 endpoint available")
	}
	err := endpoints[0].client.SendTransaction(ctx, tx)
	if isTransportError(err) {
		c.pool.markFailed(endpoints[0].URI)
	}
	return err
}

// connect returns a new *ethclient.Client instance for the URI provided. It
// retries to connect to the web3 provider if it fails, up to the
// DefaultMaxWeb3ClientRetries times.
func connect(ctx context.Context, uri string) (client *ethclient.Client, err error) {
	for i := 0; i < DefaultMaxWeb3ClientRetries; i++ {
		if client, err = ethclient.DialContext(ctx, uri); err == nil {
			return client, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("error dialing web3 provider uri '%s': %w", uri, ctx.Err())
		case <-time.After(retryDelay):
		}
	}
	return nil, fmt.Errorf("error dialing web3 provider uri '%s': %w", uri, err)
}
