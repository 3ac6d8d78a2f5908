package web3

import (
	"context"
	_ "embed"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/vocdoni/selfpoll-relay/log"
	"github.com/vocdoni/selfpoll-relay/nullifier"
	"github.com/vocdoni/selfpoll-relay/types"
	"golang.org/x/sync/errgroup"
)

//go:embed abi/IVotingFactory.json
var factoryABIJSON string

//go:embed abi/IVoting.json
var votingABIJSON string

var (
	// FactoryABI is the parsed ABI of the voting factory (registry) contract.
	FactoryABI = mustParseABI(factoryABIJSON)
	// VotingABI is the parsed ABI of the per poll voting contract.
	VotingABI = mustParseABI(votingABIJSON)
)

// maxConcurrentReads bounds the parallel calls done when reading several
// voting contracts.
const maxConcurrentReads = 8

func mustParseABI(j string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(j))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded abi: %v", err))
	}
	return parsed
}

// ParseAddress validates a contract address. It returns
// ErrInvalidContractAddress if the value is empty, malformed or the zero
// address.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", types.ErrInvalidContractAddress, s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: zero address", types.ErrInvalidContractAddress)
	}
	return addr, nil
}

// VotingParams are the creation parameters of a voting contract.
type VotingParams struct {
	Deadline             time.Time
	OptionCount          uint64
	AllowMultipleChoices bool
	HasAgeConstraint     bool
	MinAge               uint64
}

// Check validates the parameters against the current time.
func (p *VotingParams) Check(now time.Time) error {
	if p == nil {
		return fmt.Errorf("%w: missing voting parameters", types.ErrInvalidRequest)
	}
	if !p.Deadline.After(now) {
		return fmt.Errorf("%w: deadline must be in the future", types.ErrInvalidRequest)
	}
	if p.OptionCount < 2 {
		return fmt.Errorf("%w: optionCount must be at least 2", types.ErrInvalidRequest)
	}
	if p.HasAgeConstraint && p.MinAge == 0 {
		return fmt.Errorf("%w: minAge is required with an age constraint", types.ErrInvalidRequest)
	}
	if !p.HasAgeConstraint && p.MinAge != 0 {
		return fmt.Errorf("%w: minAge requires an age constraint", types.ErrInvalidRequest)
	}
	return nil
}

// Proposal is the state of a voting contract as reported by the chain.
type Proposal struct {
	Address              common.Address
	Votes                []*big.Int
	IsActive             bool
	TimeLeft             *big.Int
	Deadline             *big.Int
	OptionCount          *big.Int
	AllowMultipleChoices bool
}

// Contracts binds the gateway to the deployed voting factory. Admin and
// blacklist state is always read from the chain.
type Contracts struct {
	gw      *Gateway
	factory common.Address
}

// NewContracts returns the contract bindings for the factory address. It
// fails with ErrInvalidContractAddress before any network call if the
// address is the zero address.
func NewContracts(gw *Gateway, factory common.Address) (*Contracts, error) {
	if factory == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero factory address", types.ErrInvalidContractAddress)
	}
	if gw == nil {
		return nil, fmt.Errorf("%w: nil gateway", types.ErrGatewayUnavailable)
	}
	return &Contracts{gw: gw, factory: factory}, nil
}

// FactoryAddress returns the address of the voting factory.
func (c *Contracts) FactoryAddress() common.Address {
	return c.factory
}

// AccountAddress returns the relay account address.
func (c *Contracts) AccountAddress() common.Address {
	return c.gw.Address()
}

func (c *Contracts) transact(ctx context.Context, to common.Address, contract *abi.ABI, method string, args ...any) (*gethtypes.Receipt, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: pack %s: %v", types.ErrInvalidRequest, method, err)
	}
	return c.gw.Transact(ctx, &Call{To: to, Data: data})
}

func (c *Contracts) call(ctx context.Context, to common.Address, contract *abi.ABI, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: pack %s: %v", types.ErrInvalidRequest, method, err)
	}
	out, err := c.gw.Call(ctx, &Call{To: to, Data: data})
	if err != nil {
		return nil, err
	}
	res, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %v", types.ErrGatewayUnavailable, method, err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: empty %s result", types.ErrGatewayUnavailable, method)
	}
	return res, nil
}

// UserVerification relays the proof to the factory verification entry point
// and waits for the transaction to be confirmed.
func (c *Contracts) UserVerification(ctx context.Context, proof *nullifier.VerifierProof) (*gethtypes.Receipt, error) {
	return c.transact(ctx, c.factory, &FactoryABI, "UserVerification", *proof)
}

// CreateVotingContract asks the factory to deploy a new voting contract. The
// address of the new contract is taken from the VotingContractCreated event.
func (c *Contracts) CreateVotingContract(ctx context.Context, params *VotingParams, proof *nullifier.VerifierProof) (common.Address, *gethtypes.Receipt, error) {
	receipt, err := c.transact(ctx, c.factory, &FactoryABI, "createVotingContract",
		big.NewInt(params.Deadline.Unix()),
		new(big.Int).SetUint64(params.OptionCount),
		params.AllowMultipleChoices,
		params.HasAgeConstraint,
		new(big.Int).SetUint64(params.MinAge),
		*proof,
	)
	if err != nil {
		return common.Address{}, receipt, err
	}
	addr, err := c.createdContract(receipt)
	if err != nil {
		return common.Address{}, receipt, err
	}
	log.Infow("voting contract created", "address", addr.Hex(), "tx", receipt.TxHash.Hex())
	return addr, receipt, nil
}

func (c *Contracts) createdContract(receipt *gethtypes.Receipt) (common.Address, error) {
	event := FactoryABI.Events["VotingContractCreated"]
	for _, l := range receipt.Logs {
		if l == nil || l.Address != c.factory || len(l.Topics) < 2 || l.Topics[0] != event.ID {
			continue
		}
		return common.BytesToAddress(l.Topics[1].Bytes()), nil
	}
	return common.Address{}, fmt.Errorf("%w: VotingContractCreated event not found in tx %s",
		types.ErrServerError, receipt.TxHash.Hex())
}

// SetBlacklist sets the blacklist status of a nullifier. The relay account
// must be an admin of the factory.
func (c *Contracts) SetBlacklist(ctx context.Context, n *big.Int, status bool) (*gethtypes.Receipt, error) {
	return c.transact(ctx, c.factory, &FactoryABI, "setBlacklist", n, status)
}

// AddAdmin adds an admin to the factory.
func (c *Contracts) AddAdmin(ctx context.Context, admin common.Address) (*gethtypes.Receipt, error) {
	return c.transact(ctx, c.factory, &FactoryABI, "addAdmin", admin)
}

// RemoveAdmin removes an admin from the factory.
func (c *Contracts) RemoveAdmin(ctx context.Context, admin common.Address) (*gethtypes.Receipt, error) {
	return c.transact(ctx, c.factory, &FactoryABI, "removeAdmin", admin)
}

// VotingContracts returns the addresses of every voting contract created by
// the factory.
func (c *Contracts) VotingContracts(ctx context.Context) ([]common.Address, error) {
	res, err := c.call(ctx, c.factory, &FactoryABI, "getVotingContracts")
	if err != nil {
		return nil, err
	}
	addrs, ok := res[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected getVotingContracts type %T", types.ErrGatewayUnavailable, res[0])
	}
	return addrs, nil
}

// IsBlacklisted returns the blacklist status of the nullifier.
func (c *Contracts) IsBlacklisted(ctx context.Context, n *big.Int) (bool, error) {
	return c.callBool(ctx, c.factory, &FactoryABI, "blacklist", n)
}

// IsAdmin returns true if the address is an admin of the factory.
func (c *Contracts) IsAdmin(ctx context.Context, addr common.Address) (bool, error) {
	return c.callBool(ctx, c.factory, &FactoryABI, "admins", addr)
}

// Owner returns the owner of the factory.
func (c *Contracts) Owner(ctx context.Context) (common.Address, error) {
	res, err := c.call(ctx, c.factory, &FactoryABI, "owner")
	if err != nil {
		return common.Address{}, err
	}
	owner, ok := res[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: unexpected owner type %T", types.ErrGatewayUnavailable, res[0])
	}
	return owner, nil
}

// Vote casts the options on the voting contract with the given proof.
func (c *Contracts) Vote(ctx context.Context, contract common.Address, proof *nullifier.VerifierProof, options []*big.Int) (*gethtypes.Receipt, error) {
	return c.transact(ctx, contract, &VotingABI, "vote", *proof, options)
}

// HasVotingPower simulates hasVotingPower for the proof and returns the
// result without sending a transaction.
func (c *Contracts) HasVotingPower(ctx context.Context, contract common.Address, proof *nullifier.VerifierProof) (*big.Int, error) {
	return c.callBig(ctx, contract, &VotingABI, "hasVotingPower", *proof)
}

// HasVoted returns true if the nullifier already voted on the contract.
func (c *Contracts) HasVoted(ctx context.Context, contract common.Address, n *big.Int) (bool, error) {
	return c.callBool(ctx, contract, &VotingABI, "hasVoted", n)
}

// Proposal reads the state of a voting contract. The reads are done
// concurrently.
func (c *Contracts) Proposal(ctx context.Context, contract common.Address) (*Proposal, error) {
	p := &Proposal{Address: contract}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := c.call(gctx, contract, &VotingABI, "getProposal")
		if err != nil {
			return err
		}
		if len(res) != 3 {
			return fmt.Errorf("%w: unexpected getProposal result", types.ErrGatewayUnavailable)
		}
		votes, ok1 := res[0].([]*big.Int)
		active, ok2 := res[1].(bool)
		timeLeft, ok3 := res[2].(*big.Int)
		if !ok1 || !ok2 || !ok3 {
			return fmt.Errorf("%w: unexpected getProposal types", types.ErrGatewayUnavailable)
		}
		p.Votes, p.IsActive, p.TimeLeft = votes, active, timeLeft
		return nil
	})
	g.Go(func() (err error) {
		p.Deadline, err = c.callBig(gctx, contract, &VotingABI, "deadline")
		return err
	})
	g.Go(func() (err error) {
		p.OptionCount, err = c.callBig(gctx, contract, &VotingABI, "optionCount")
		return err
	})
	g.Go(func() (err error) {
		p.AllowMultipleChoices, err = c.callBool(gctx, contract, &VotingABI, "allowMultipleChoices")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return p, nil
}

// Proposals reads the state of several voting contracts, keeping the input
// order.
func (c *Contracts) Proposals(ctx context.Context, contracts []common.Address) ([]*Proposal, error) {
	res := make([]*Proposal, len(contracts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i, addr := range contracts {
		g.Go(func() error {
			p, err := c.Proposal(gctx, addr)
			if err != nil {
				return fmt.Errorf("proposal %s: %w", addr.Hex(), err)
			}
			res[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Contracts) callBool(ctx context.Context, to common.Address, contract *abi.ABI, method string, args ...any) (bool, error) {
	res, err := c.call(ctx, to, contract, method, args...)
	if err != nil {
		return false, err
	}
	b, ok := res[0].(bool)
	if !ok {
		return false, fmt.Errorf("%w: unexpected %s type %T", types.ErrGatewayUnavailable, method, res[0])
	}
	return b, nil
}

func (c *Contracts) callBig(ctx context.Context, to common.Address, contract *abi.ABI, method string, args ...any) (*big.Int, error) {
	res, err := c.call(ctx, to, contract, method, args...)
	if err != nil {
		return nil, err
	}
	n, ok := res[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected %s type %T", types.ErrGatewayUnavailable, method, res[0])
	}
	return n, nil
}
