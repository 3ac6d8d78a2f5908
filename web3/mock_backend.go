package web3

import (
	"context"
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
	"github.com/vocdoni/selfpoll-relay/nullifier"
)

// MockChainID is the chain id reported by MockBackend.
const MockChainID = 1337

var revertSelector = crypto.Keccak256([]byte("Error(string)"))[:4]

// MockRPCError is a JSON-RPC error as returned by a node. It implements the
// go-ethereum rpc.Error and rpc.DataError interfaces.
type MockRPCError struct {
	Code    int
	Message string
	Data    string
}

func (e *MockRPCError) Error() string  { return e.Message }
func (e *MockRPCError) ErrorCode() int { return e.Code }
func (e *MockRPCError) ErrorData() any { return e.Data }

func newRevertError(reason string) *MockRPCError {
	data, _ := abi.Arguments{{Type: mustType("string")}}.Pack(reason)
	return &MockRPCError{
		Code:    3,
		Message: "execution reverted: " + reason,
		Data:    hexutil.Encode(append(append([]byte{}, revertSelector...), data...)),
	}
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

type mockVoting struct {
	deadline      time.Time
	optionCount   uint64
	allowMultiple bool
	votes         []*big.Int
	voted         map[string]bool
}

// MockBackend is an in-memory implementation of Backend that emulates the
// voting factory and the voting contracts. A proof is considered valid when
// its first a coordinate is not zero. It is meant for tests and local runs.
type MockBackend struct {
	mu       sync.Mutex
	factory  common.Address
	owner    common.Address
	nonces   map[common.Address]uint64
	receipts map[common.Hash]*gethtypes.Receipt
	reverts  map[common.Hash]string
	block    int64

	verified  map[string]bool
	blacklist map[string]bool
	admins    map[common.Address]bool
	contracts []common.Address
	votings   map[common.Address]*mockVoting

	// FailEstimate makes EstimateGas fail.
	FailEstimate bool
	// SendErr is returned by SendTransaction if set.
	SendErr error
	// HoldReceipts keeps transactions pending forever.
	HoldReceipts bool
	// Estimations counts EstimateGas calls.
	Estimations int
	// GasLimits records the gas limit of every sent transaction.
	GasLimits []uint64
}

// NewMockBackend returns a mock chain with a factory deployed at factory and
// owned by owner.
func NewMockBackend(factory, owner common.Address) *MockBackend {
	return &MockBackend{
		factory:   factory,
		owner:     owner,
		nonces:    make(map[common.Address]uint64),
		receipts:  make(map[common.Hash]*gethtypes.Receipt),
		reverts:   make(map[common.Hash]string),
		verified:  make(map[string]bool),
		blacklist: make(map[string]bool),
		admins:    make(map[common.Address]bool),
		votings:   make(map[common.Address]*mockVoting),
	}
}

// MockAccount returns a new random private key in hex and its address.
func MockAccount() (string, common.Address) {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return hexutil.Encode(crypto.FromECDSA(key))[2:], crypto.PubkeyToAddress(key.PublicKey)
}

// ChainID implements Backend.
func (m *MockBackend) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(MockChainID), nil
}

// PendingNonceAt implements Backend.
func (m *MockBackend) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nonces[account], nil
}

// EstimateGas implements Backend.
func (m *MockBackend) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Estimations++
	if m.FailEstimate {
		return 0, &MockRPCError{Code: -32000, Message: "gas required exceeds allowance"}
	}
	return 100_000, nil
}

// SendTransaction implements Backend. The transaction is executed at once.
func (m *MockBackend) SendTransaction(_ context.Context, tx *gethtypes.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	from, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(big.NewInt(MockChainID)), tx)
	if err != nil {
		return &MockRPCError{Code: -32000, Message: "invalid sender"}
	}
	if tx.Nonce() != m.nonces[from] {
		return &MockRPCError{Code: -32000, Message: fmt.Sprintf("invalid nonce: have %d, want %d", tx.Nonce(), m.nonces[from])}
	}
	m.nonces[from]++
	m.GasLimits = append(m.GasLimits, tx.Gas())
	m.block++
	receipt := &gethtypes.Receipt{
		Status:      gethtypes.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(m.block),
		GasUsed:     90_000,
	}
	logs, err := m.execute(from, tx.To(), tx.Data())
	if err != nil {
		receipt.Status = gethtypes.ReceiptStatusFailed
		m.reverts[crypto.Keccak256Hash(tx.Data())] = err.Error()
	} else {
		receipt.Logs = logs
	}
	m.receipts[tx.Hash()] = receipt
	return nil
}

// TransactionReceipt implements Backend.
func (m *MockBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[hash]
	if !ok || m.HoldReceipts {
		return nil, ethereum.NotFound
	}
	return r, nil
}

// CallContract implements Backend. Calls with a block number replay a
// reverted transaction and return its revert reason.
func (m *MockBackend) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if block != nil {
		if reason, ok := m.reverts[crypto.Keccak256Hash(msg.Data)]; ok {
			return nil, newRevertError(reason)
		}
		return nil, nil
	}
	out, err := m.view(msg.From, msg.To, msg.Data)
	if err != nil {
		return nil, newRevertError(err.Error())
	}
	return out, nil
}

// IsVerified returns true if the nullifier passed UserVerification.
func (m *MockBackend) IsVerified(n *big.Int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verified[n.String()]
}

func (m *MockBackend) isAdmin(addr common.Address) bool {
	return addr == m.owner || m.admins[addr]
}

func decodeCall(to *common.Address, data []byte, factory common.Address) (*abi.Method, []any, error) {
	if to == nil || len(data) < 4 {
		return nil, nil, fmt.Errorf("invalid call")
	}
	contract := &VotingABI
	if *to == factory {
		contract = &FactoryABI
	}
	method, err := contract.MethodById(data[:4])
	if err != nil {
		return nil, nil, fmt.Errorf("unknown method")
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("invalid arguments: %v", err)
	}
	return method, args, nil
}

func (m *MockBackend) checkProof(arg any) (*big.Int, error) {
	proof, ok := abi.ConvertType(arg, nullifier.VerifierProof{}).(nullifier.VerifierProof)
	if !ok || proof.A[0] == nil || proof.A[0].Sign() == 0 {
		return nil, fmt.Errorf("invalid proof")
	}
	n := proof.PubSignals[nullifier.NullifierIndex]
	if m.blacklist[n.String()] {
		return nil, fmt.Errorf("nullifier blacklisted")
	}
	return n, nil
}

// execute runs a state-changing call and returns the emitted logs.
func (m *MockBackend) execute(from common.Address, to *common.Address, data []byte) ([]*gethtypes.Log, error) {
	method, args, err := decodeCall(to, data, m.factory)
	if err != nil {
		return nil, err
	}
	if *to != m.factory {
		v, ok := m.votings[*to]
		if !ok {
			return nil, fmt.Errorf("no contract")
		}
		if method.Name != "vote" {
			return nil, fmt.Errorf("unsupported method %s", method.Name)
		}
		n, err := m.checkProof(args[0])
		if err != nil {
			return nil, err
		}
		if !time.Now().Before(v.deadline) {
			return nil, fmt.Errorf("voting ended")
		}
		if v.voted[n.String()] {
			return nil, fmt.Errorf("already voted")
		}
		options := args[1].([]*big.Int)
		if len(options) == 0 || (!v.allowMultiple && len(options) > 1) {
			return nil, fmt.Errorf("invalid options")
		}
		for _, o := range options {
			if !o.IsUint64() || o.Uint64() >= v.optionCount {
				return nil, fmt.Errorf("invalid option")
			}
		}
		for _, o := range options {
			v.votes[o.Uint64()].Add(v.votes[o.Uint64()], big.NewInt(1))
		}
		v.voted[n.String()] = true
		return nil, nil
	}
	switch method.Name {
	case "UserVerification":
		n, err := m.checkProof(args[0])
		if err != nil {
			return nil, err
		}
		if m.verified[n.String()] {
			return nil, fmt.Errorf("nullifier already registered")
		}
		m.verified[n.String()] = true
		return nil, nil
	case "createVotingContract":
		n, err := m.checkProof(args[5])
		if err != nil {
			return nil, err
		}
		deadline := args[0].(*big.Int)
		optionCount := args[1].(*big.Int).Uint64()
		if deadline.Int64() <= time.Now().Unix() || optionCount < 2 {
			return nil, fmt.Errorf("invalid parameters")
		}
		addr := crypto.CreateAddress(m.factory, uint64(len(m.contracts)))
		m.contracts = append(m.contracts, addr)
		votes := make([]*big.Int, optionCount)
		for i := range votes {
			votes[i] = new(big.Int)
		}
		m.votings[addr] = &mockVoting{
			deadline:      time.Unix(deadline.Int64(), 0),
			optionCount:   optionCount,
			allowMultiple: args[2].(bool),
			votes:         votes,
			voted:         make(map[string]bool),
		}
		event := FactoryABI.Events["VotingContractCreated"]
		logData, err := event.Inputs.NonIndexed().Pack(n)
		if err != nil {
			return nil, err
		}
		return []*gethtypes.Log{{
			Address: m.factory,
			Topics:  []common.Hash{event.ID, common.BytesToHash(addr.Bytes())},
			Data:    logData,
		}}, nil
	case "setBlacklist":
		if !m.isAdmin(from) {
			return nil, fmt.Errorf("not an admin")
		}
		m.blacklist[args[0].(*big.Int).String()] = args[1].(bool)
		return nil, nil
	case "addAdmin":
		if !m.isAdmin(from) {
			return nil, fmt.Errorf("not an admin")
		}
		m.admins[args[0].(common.Address)] = true
		return nil, nil
	case "removeAdmin":
		if !m.isAdmin(from) {
			return nil, fmt.Errorf("not an admin")
		}
		delete(m.admins, args[0].(common.Address))
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported method %s", method.Name)
}

// view runs a read-only call and returns the packed outputs.
func (m *MockBackend) view(from common.Address, to *common.Address, data []byte) ([]byte, error) {
	method, args, err := decodeCall(to, data, m.factory)
	if err != nil {
		return nil, err
	}
	var out []any
	if *to == m.factory {
		switch method.Name {
		case "owner":
			out = []any{m.owner}
		case "admins":
			out = []any{m.admins[args[0].(common.Address)]}
		case "blacklist":
			out = []any{m.blacklist[args[0].(*big.Int).String()]}
		case "getVotingContracts":
			out = []any{append([]common.Address{}, m.contracts...)}
		case "votingContracts":
			i := args[0].(*big.Int)
			if !i.IsUint64() || i.Uint64() >= uint64(len(m.contracts)) {
				return nil, fmt.Errorf("index out of range")
			}
			out = []any{m.contracts[i.Uint64()]}
		default:
			return nil, fmt.Errorf("unsupported view %s", method.Name)
		}
		return method.Outputs.Pack(out...)
	}
	v, ok := m.votings[*to]
	if !ok {
		return nil, fmt.Errorf("no contract")
	}
	now := time.Now()
	switch method.Name {
	case "factory":
		out = []any{m.factory}
	case "deadline":
		out = []any{big.NewInt(v.deadline.Unix())}
	case "optionCount":
		out = []any{new(big.Int).SetUint64(v.optionCount)}
	case "allowMultipleChoices":
		out = []any{v.allowMultiple}
	case "voteCounts":
		i := args[0].(*big.Int)
		if !i.IsUint64() || i.Uint64() >= v.optionCount {
			return nil, fmt.Errorf("index out of range")
		}
		out = []any{new(big.Int).Set(v.votes[i.Uint64()])}
	case "hasVoted":
		out = []any{v.voted[args[0].(*big.Int).String()]}
	case "hasVotingPower":
		n, err := m.checkProof(args[0])
		if err != nil {
			return nil, err
		}
		power := big.NewInt(1)
		if v.voted[n.String()] {
			power = new(big.Int)
		}
		out = []any{power}
	case "getProposal":
		votes := make([]*big.Int, len(v.votes))
		for i, c := range v.votes {
			votes[i] = new(big.Int).Set(c)
		}
		timeLeft := new(big.Int)
		active := now.Before(v.deadline)
		if active {
			timeLeft.SetInt64(int64(v.deadline.Sub(now).Seconds()))
		}
		out = []any{votes, active, timeLeft}
	default:
		return nil, fmt.Errorf("unsupported view %s", method.Name)
	}
	return method.Outputs.Pack(out...)
}
