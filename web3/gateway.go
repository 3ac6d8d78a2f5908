package web3

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/vocdoni/selfpoll-relay/log"
	"github.com/vocdoni/selfpoll-relay/types"
	"github.com/vocdoni/selfpoll-relay/util"
)

const (
	// FallbackGasLimit is used when the node cannot estimate the gas of a
	// call.
	FallbackGasLimit = 12_000_000
	// gasHeadroomPercent is applied over the node estimation.
	gasHeadroomPercent = 120
	// DefaultReceiptPollInterval is the time between receipt queries while
	// waiting for a transaction to be included.
	DefaultReceiptPollInterval = 2 * time.Second
	// DefaultQueueSize is the capacity of the submission queue.
	DefaultQueueSize = 64
	// web3QueryTimeout bounds read-only queries done by the worker.
	web3QueryTimeout = 10 * time.Second
)

// DefaultGasPrice is the gas price used for relayed transactions when none is
// configured (30 gwei).
var DefaultGasPrice = new(big.Int).Mul(big.NewInt(30), big.NewInt(params.GWei))

// Backend is the subset of the ethclient API used by the gateway. Both
// *ethclient.Client and *rpc.Client satisfy it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Call is a prepared contract call.
type Call struct {
	To   common.Address
	Data []byte
}

// TxError is returned by Send when a transaction has been submitted but not
// confirmed. It wraps the classification error (ErrVerificationFailed or
// ErrIndeterminate) and keeps the transaction hash for follow-up queries.
type TxError struct {
	Hash   common.Hash
	Reason string
	Err    error
}

func (e *TxError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%v: %s (tx %s)", e.Err, e.Reason, e.Hash.Hex())
	}
	return fmt.Sprintf("%v (tx %s)", e.Err, e.Hash.Hex())
}

func (e *TxError) Unwrap() error { return e.Err }

// GatewayConfig holds the optional parameters of the gateway.
type GatewayConfig struct {
	GasPrice            *big.Int
	ReceiptPollInterval time.Duration
	QueueSize           int
}

type submission struct {
	ctx      context.Context
	call     *Call
	gasPrice *big.Int
	gasLimit uint64
	result   chan submissionResult
}

type submissionResult struct {
	hash common.Hash
	err  error
}

// Gateway signs contract calls with the relay key and submits them to the
// chain. Every state-changing call goes through a single worker goroutine, so
// nonces of the relay key are assigned in order. Calls are never retried.
type Gateway struct {
	backend      Backend
	privKey      *ecdsa.PrivateKey
	address      common.Address
	chainID      *big.Int
	gasPrice     *big.Int
	pollInterval time.Duration

	queue     chan *submission
	done      chan struct{}
	nextNonce uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewGateway creates a gateway for the given backend and hex encoded private
// key. It queries the chain id, so the backend must be reachable.
func NewGateway(ctx context.Context, backend Backend, hexPrivKey string, conf *GatewayConfig) (*Gateway, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: nil backend", types.ErrGatewayUnavailable)
	}
	privKey, err := crypto.HexToECDSA(util.TrimHex(hexPrivKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	if conf == nil {
		conf = &GatewayConfig{}
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: chain id: %v", types.ErrGatewayUnavailable, err)
	}
	g := &Gateway{
		backend:      backend,
		privKey:      privKey,
		address:      crypto.PubkeyToAddress(privKey.PublicKey),
		chainID:      chainID,
		gasPrice:     DefaultGasPrice,
		pollInterval: DefaultReceiptPollInterval,
	}
	if conf.GasPrice != nil && conf.GasPrice.Sign() > 0 {
		g.gasPrice = new(big.Int).Set(conf.GasPrice)
	}
	if conf.ReceiptPollInterval > 0 {
		g.pollInterval = conf.ReceiptPollInterval
	}
	queueSize := DefaultQueueSize
	if conf.QueueSize > 0 {
		queueSize = conf.QueueSize
	}
	g.queue = make(chan *submission, queueSize)
	return g, nil
}

// Address returns the address of the relay account.
func (g *Gateway) Address() common.Address {
	return g.address
}

// ChainID returns the chain id of the connected network.
func (g *Gateway) ChainID() uint64 {
	return g.chainID.Uint64()
}

// GasPrice returns the gas price used by Transact.
func (g *Gateway) GasPrice() *big.Int {
	return new(big.Int).Set(g.gasPrice)
}

// Start launches the submission worker. It returns an error if the gateway
// is already running.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		return fmt.Errorf("gateway already running")
	}
	ctx, g.cancel = context.WithCancel(ctx)
	g.done = make(chan struct{})
	// submissions queued after the previous worker exited were already
	// reported as failed to their callers
	g.drain()
	g.wg.Add(1)
	go g.worker(ctx, g.done)
	log.Infow("chain gateway started", "address", g.address.Hex(), "chainID", g.chainID.String())
	return nil
}

// Stop halts the submission worker. Pending submissions that were not sent
// yet fail with ErrGatewayUnavailable.
func (g *Gateway) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel == nil {
		return
	}
	g.cancel()
	g.wg.Wait()
	g.cancel = nil
}

// running returns the done channel of the current worker, or nil if the
// gateway is stopped.
func (g *Gateway) running() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel == nil {
		return nil
	}
	return g.done
}

func (g *Gateway) worker(ctx context.Context, done chan struct{}) {
	defer g.wg.Done()
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			g.drain()
			return
		case sub := <-g.queue:
			hash, err := g.submit(sub)
			sub.result <- submissionResult{hash: hash, err: err}
		}
	}
}

func (g *Gateway) drain() {
	for {
		select {
		case sub := <-g.queue:
			sub.result <- submissionResult{err: fmt.Errorf("%w: gateway stopped", types.ErrGatewayUnavailable)}
		default:
			return
		}
	}
}

// submit signs and sends one transaction. It runs only on the worker.
func (g *Gateway) submit(sub *submission) (common.Hash, error) {
	if err := sub.ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	nonceCtx, cancel := context.WithTimeout(sub.ctx, web3QueryTimeout)
	nonce, err := g.backend.PendingNonceAt(nonceCtx, g.address)
	cancel()
	if err != nil {
		return common.Hash{}, classify("get nonce", err)
	}
	if nonce < g.nextNonce {
		nonce = g.nextNonce
	}
	to := sub.call.To
	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: sub.gasPrice,
		Gas:      sub.gasLimit,
		To:       &to,
		Data:     sub.call.Data,
	})
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(g.chainID), g.privKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: sign transaction: %v", types.ErrServerError, err)
	}
	if err := g.backend.SendTransaction(sub.ctx, signed); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// the node may have accepted it before the deadline
			log.Warnw("transaction send interrupted", "hash", signed.Hash().Hex(), "nonce", nonce, "error", err)
			return signed.Hash(), &TxError{Hash: signed.Hash(), Err: types.ErrIndeterminate}
		}
		return common.Hash{}, classify("send transaction", err)
	}
	g.nextNonce = nonce + 1
	log.Debugw("transaction sent", "hash", signed.Hash().Hex(), "nonce", nonce, "to", to.Hex(), "gas", sub.gasLimit)
	return signed.Hash(), nil
}

// classify maps an error returned by the node. A JSON-RPC error means the
// node processed and rejected the request, anything else is a transport
// failure.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%w: %s: %v", types.ErrVerificationFailed, op, err)
	}
	return fmt.Errorf("%w: %s: %v", types.ErrGatewayUnavailable, op, err)
}

// EstimateGas returns the node estimation plus 20% headroom. If the node
// cannot estimate the call, FallbackGasLimit is returned instead.
func (g *Gateway) EstimateGas(ctx context.Context, call *Call) uint64 {
	to := call.To
	gas, err := g.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     g.address,
		To:       &to,
		GasPrice: g.gasPrice,
		Data:     call.Data,
	})
	if err != nil || gas == 0 {
		log.Warnw("gas estimation failed, using fallback limit", "to", to.Hex(), "limit", FallbackGasLimit, "error", err)
		return FallbackGasLimit
	}
	return gas * gasHeadroomPercent / 100
}

// Send queues the call for submission with the given gas parameters and waits
// until it is included in a block. The context bounds the whole operation; if
// it expires after the transaction was sent, a TxError wrapping
// ErrIndeterminate is returned. A reverted receipt returns a TxError wrapping
// ErrVerificationFailed with the revert reason, when the node provides it.
func (g *Gateway) Send(ctx context.Context, call *Call, gasPrice *big.Int, gasLimit uint64) (*gethtypes.Receipt, error) {
	if call == nil {
		return nil, fmt.Errorf("%w: empty call", types.ErrInvalidRequest)
	}
	done := g.running()
	if done == nil {
		return nil, fmt.Errorf("%w: gateway not started", types.ErrGatewayUnavailable)
	}
	if gasPrice == nil {
		gasPrice = g.gasPrice
	}
	sub := &submission{
		ctx:      ctx,
		call:     call,
		gasPrice: gasPrice,
		gasLimit: gasLimit,
		result:   make(chan submissionResult, 1),
	}
	select {
	case g.queue <- sub:
	case <-done:
		return nil, fmt.Errorf("%w: gateway stopped", types.ErrGatewayUnavailable)
	case <-ctx.Done():
		return nil, fmt.Errorf("queue submission: %w", ctx.Err())
	}
	var res submissionResult
	select {
	case res = <-sub.result:
	case <-done:
		// the worker answers everything queued before it exits, anything
		// left in the queue was never sent
		select {
		case res = <-sub.result:
		default:
			return nil, fmt.Errorf("%w: gateway stopped", types.ErrGatewayUnavailable)
		}
	case <-ctx.Done():
		// The worker may be sending it right now.
		select {
		case res = <-sub.result:
		case <-time.After(web3QueryTimeout):
			return nil, fmt.Errorf("%w: submission outcome unknown", types.ErrIndeterminate)
		}
	}
	if res.err != nil {
		return nil, res.err
	}
	return g.waitReceipt(ctx, res.hash, call)
}

// Transact estimates the gas of the call and sends it with the configured gas
// price.
func (g *Gateway) Transact(ctx context.Context, call *Call) (*gethtypes.Receipt, error) {
	return g.Send(ctx, call, g.gasPrice, g.EstimateGas(ctx, call))
}

func (g *Gateway) waitReceipt(ctx context.Context, hash common.Hash, call *Call) (*gethtypes.Receipt, error) {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := g.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == gethtypes.ReceiptStatusSuccessful {
				log.Debugw("transaction confirmed", "hash", hash.Hex(), "block", receipt.BlockNumber, "gasUsed", receipt.GasUsed)
				return receipt, nil
			}
			reason := g.revertReason(ctx, call, receipt.BlockNumber)
			log.Warnw("transaction reverted", "hash", hash.Hex(), "reason", reason)
			return receipt, &TxError{Hash: hash, Reason: reason, Err: types.ErrVerificationFailed}
		case err != nil && !errors.Is(err, ethereum.NotFound):
			if ctx.Err() == nil {
				log.Warnw("could not get transaction receipt", "hash", hash.Hex(), "error", err)
			}
		}
		select {
		case <-ctx.Done():
			return nil, &TxError{Hash: hash, Err: types.ErrIndeterminate}
		case <-ticker.C:
		}
	}
}

// revertReason replays the call at the block where it was included and
// decodes the revert reason returned by the node. It returns an empty string
// if the reason is not available.
func (g *Gateway) revertReason(ctx context.Context, call *Call, block *big.Int) string {
	if ctx.Err() != nil {
		return ""
	}
	to := call.To
	_, err := g.backend.CallContract(ctx, ethereum.CallMsg{
		From: g.address,
		To:   &to,
		Data: call.Data,
	}, block)
	if err == nil {
		return ""
	}
	return RevertReason(err)
}

// RevertReason extracts the revert reason from a node error. If the error
// carries revert data it is decoded as Error(string), otherwise the error
// message is returned.
func RevertReason(err error) string {
	var dataErr gethrpc.DataError
	if errors.As(err, &dataErr) {
		if s, ok := dataErr.ErrorData().(string); ok {
			if data, decErr := hexutil.Decode(s); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason
				}
			}
		}
	}
	return err.Error()
}

// Call executes a read-only call against the latest block.
func (g *Gateway) Call(ctx context.Context, call *Call) ([]byte, error) {
	to := call.To
	out, err := g.backend.CallContract(ctx, ethereum.CallMsg{
		From: g.address,
		To:   &to,
		Data: call.Data,
	}, nil)
	if err != nil {
		return nil, classify("call contract", err)
	}
	return out, nil
}
