// Package admission relays identity disclosure proofs to the on-chain
// registry and interprets the outcome. Every attempt goes through the states
// Received, NullifierDerived, Submitted and ends as Confirmed, Rejected or
// Indeterminate. Attempts are never retried: a rejected proof must be
// resubmitted by the caller.
package admission

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/vocdoni/selfpoll-relay/log"
	"github.com/vocdoni/selfpoll-relay/nullifier"
	"github.com/vocdoni/selfpoll-relay/storage"
	"github.com/vocdoni/selfpoll-relay/types"
	"github.com/vocdoni/selfpoll-relay/web3"
)

// DefaultConfirmationTimeout bounds the wait for a relayed transaction to be
// included.
const DefaultConfirmationTimeout = 2 * time.Minute

// State is the state of an admission attempt.
type State int

const (
	StateReceived State = iota
	StateNullifierDerived
	StateSubmitted
	StateConfirmed
	StateRejected
	StateIndeterminate
)

var stateNames = map[State]string{
	StateReceived:         "received",
	StateNullifierDerived: "nullifier_derived",
	StateSubmitted:        "submitted",
	StateConfirmed:        "confirmed",
	StateRejected:         "rejected",
	StateIndeterminate:    "indeterminate",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Registry is the on-chain interface used by the controller. It is
// implemented by *web3.Contracts.
type Registry interface {
	UserVerification(ctx context.Context, proof *nullifier.VerifierProof) (*gethtypes.Receipt, error)
	CreateVotingContract(ctx context.Context, params *web3.VotingParams, proof *nullifier.VerifierProof) (common.Address, *gethtypes.Receipt, error)
	Vote(ctx context.Context, contract common.Address, proof *nullifier.VerifierProof, options []*big.Int) (*gethtypes.Receipt, error)
}

// AdmissionLog records confirmed admissions. It is audit only, the registry
// is the source of truth for uniqueness.
type AdmissionLog interface {
	AddAdmission(a *storage.Admission) error
}

// Result is the outcome of an admission attempt.
type Result struct {
	State    State
	Action   string
	Identity *nullifier.Identity
	TxHash   common.Hash
	// Contract is the voting contract created or voted on, if any.
	Contract common.Address
	// Reason is the revert reason reported by the chain, if any.
	Reason string
}

// Controller runs admission attempts against the registry.
type Controller struct {
	registry Registry
	audit    AdmissionLog
	timeout  time.Duration
}

// New returns a controller. audit may be nil. A zero timeout uses
// DefaultConfirmationTimeout.
func New(registry Registry, audit AdmissionLog, timeout time.Duration) *Controller {
	if timeout <= 0 {
		timeout = DefaultConfirmationTimeout
	}
	return &Controller{registry: registry, audit: audit, timeout: timeout}
}

type submitFunc func(ctx context.Context, vp *nullifier.VerifierProof) (common.Address, *gethtypes.Receipt, error)

// Verify relays the proof to the registry verification entry point.
func (c *Controller) Verify(ctx context.Context, proof *types.Proof, signals types.PubSignals) (*Result, error) {
	return c.run(ctx, storage.ActionVerify, proof, signals, func(ctx context.Context, vp *nullifier.VerifierProof) (common.Address, *gethtypes.Receipt, error) {
		receipt, err := c.registry.UserVerification(ctx, vp)
		return common.Address{}, receipt, err
	})
}

// CreateVotingContract asks the registry to deploy a voting contract for the
// identity disclosed by the proof.
func (c *Controller) CreateVotingContract(ctx context.Context, params *web3.VotingParams, proof *types.Proof, signals types.PubSignals) (*Result, error) {
	if err := params.Check(time.Now()); err != nil {
		return &Result{State: StateReceived, Action: storage.ActionCreateVote}, err
	}
	return c.run(ctx, storage.ActionCreateVote, proof, signals, func(ctx context.Context, vp *nullifier.VerifierProof) (common.Address, *gethtypes.Receipt, error) {
		return c.registry.CreateVotingContract(ctx, params, vp)
	})
}

// Vote casts the options on the voting contract for the identity disclosed by
// the proof.
func (c *Controller) Vote(ctx context.Context, contract common.Address, proof *types.Proof, signals types.PubSignals, options []uint64) (*Result, error) {
	if contract == (common.Address{}) {
		return &Result{State: StateReceived, Action: storage.ActionVote}, fmt.Errorf("%w: missing contract", types.ErrInvalidContractAddress)
	}
	if len(options) == 0 {
		return &Result{State: StateReceived, Action: storage.ActionVote}, fmt.Errorf("%w: options are required", types.ErrInvalidRequest)
	}
	opts := make([]*big.Int, len(options))
	for i, o := range options {
		opts[i] = new(big.Int).SetUint64(o)
	}
	return c.run(ctx, storage.ActionVote, proof, signals, func(ctx context.Context, vp *nullifier.VerifierProof) (common.Address, *gethtypes.Receipt, error) {
		receipt, err := c.registry.Vote(ctx, contract, vp, opts)
		return contract, receipt, err
	})
}

func (c *Controller) run(ctx context.Context, action string, proof *types.Proof, signals types.PubSignals, submit submitFunc) (*Result, error) {
	res := &Result{State: StateReceived, Action: action}
	if proof == nil || len(signals) == 0 {
		return res, fmt.Errorf("%w: proof and publicSignals are required", types.ErrInvalidRequest)
	}

	identity, err := nullifier.Derive(signals)
	if err != nil {
		return res, err
	}
	vp, err := nullifier.VerifierArgs(proof, signals)
	if err != nil {
		return res, err
	}
	res.Identity = identity
	res.State = StateNullifierDerived
	log.Debugw("nullifier derived", "action", action, "nullifier", identity.Hex(),
		"user", identity.UserIdentifier.Hex())

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	res.State = StateSubmitted
	contract, receipt, err := submit(ctx, vp)
	if receipt != nil {
		res.TxHash = receipt.TxHash
	}
	res.Contract = contract
	if err != nil {
		var txErr *web3.TxError
		if errors.As(err, &txErr) {
			res.TxHash = txErr.Hash
			res.Reason = txErr.Reason
		}
		switch {
		case errors.Is(err, types.ErrIndeterminate):
			res.State = StateIndeterminate
		case errors.Is(err, types.ErrVerificationFailed):
			res.State = StateRejected
		}
		log.Warnw("admission not confirmed", "action", action, "state", res.State.String(),
			"nullifier", identity.Hex(), "tx", res.TxHash.Hex(), "error", err)
		return res, err
	}

	res.State = StateConfirmed
	log.Infow("admission confirmed", "action", action, "nullifier", identity.Hex(), "tx", res.TxHash.Hex())
	c.record(res)
	return res, nil
}

// record appends the confirmed admission to the audit log. Failures are
// logged, the on-chain outcome does not change.
func (c *Controller) record(res *Result) {
	if c.audit == nil {
		return
	}
	key, err := res.Identity.Key()
	if err != nil {
		log.Errorw(err, "could not compute admission key")
		return
	}
	a := &storage.Admission{
		Key:            fmt.Sprintf("%x", key),
		Nullifier:      types.NewBigInt(res.Identity.Nullifier),
		UserIdentifier: res.Identity.UserIdentifier.Hex(),
		TxHash:         res.TxHash.Hex(),
		Action:         res.Action,
		Time:           time.Now().UTC(),
	}
	if res.Contract != (common.Address{}) {
		a.Target = res.Contract.Hex()
	}
	if err := c.audit.AddAdmission(a); err != nil {
		log.Errorw(err, "could not store admission record")
	}
}
