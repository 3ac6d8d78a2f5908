package admission

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/selfpoll-relay/nullifier"
	"github.com/vocdoni/selfpoll-relay/storage"
	"github.com/vocdoni/selfpoll-relay/types"
	"github.com/vocdoni/selfpoll-relay/web3"
)

var testFactory = common.HexToAddress("0x00000000000000000000000000000000000FAC70")

type testEnv struct {
	backend    *web3.MockBackend
	contracts  *web3.Contracts
	store      *storage.Storage
	controller *Controller
}

func newTestEnv(c *qt.C, timeout time.Duration) *testEnv {
	_, owner := web3.MockAccount()
	backend := web3.NewMockBackend(testFactory, owner)
	key, _ := web3.MockAccount()
	gw, err := web3.NewGateway(context.Background(), backend, key, &web3.GatewayConfig{
		ReceiptPollInterval: 10 * time.Millisecond,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(gw.Start(context.Background()), qt.IsNil)
	c.Cleanup(gw.Stop)
	contracts, err := web3.NewContracts(gw, testFactory)
	c.Assert(err, qt.IsNil)
	store := storage.New(memdb.New())
	return &testEnv{
		backend:    backend,
		contracts:  contracts,
		store:      store,
		controller: New(contracts, store, timeout),
	}
}

// testRequest builds a proof and public signals disclosing nullifier n.
func testRequest(n int64) (*types.Proof, types.PubSignals) {
	proof := &types.Proof{
		A: [2]*types.BigInt{types.NewBigInt(big.NewInt(1)), types.NewBigInt(big.NewInt(2))},
		B: [2][2]*types.BigInt{
			{types.NewBigInt(big.NewInt(3)), types.NewBigInt(big.NewInt(4))},
			{types.NewBigInt(big.NewInt(5)), types.NewBigInt(big.NewInt(6))},
		},
		C: [2]*types.BigInt{types.NewBigInt(big.NewInt(7)), types.NewBigInt(big.NewInt(8))},
	}
	signals := make(types.PubSignals, types.PubSignalsLen)
	for i := range signals {
		signals[i] = types.NewBigInt(big.NewInt(int64(i + 100)))
	}
	signals[nullifier.NullifierIndex] = types.NewBigInt(big.NewInt(n))
	return proof, signals
}

func TestVerifyConfirmedOnce(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, 5*time.Second)
	ctx := context.Background()

	proof, signals := testRequest(4242)
	res, err := env.controller.Verify(ctx, proof, signals)
	c.Assert(err, qt.IsNil)
	c.Assert(res.State, qt.Equals, StateConfirmed)
	c.Assert(res.Identity.Nullifier.Int64(), qt.Equals, int64(4242))
	c.Assert(res.TxHash, qt.Not(qt.Equals), common.Hash{})

	res2, err := env.controller.Verify(ctx, proof, signals)
	c.Assert(errors.Is(err, types.ErrVerificationFailed), qt.IsTrue)
	c.Assert(res2.State, qt.Equals, StateRejected)
	c.Assert(res2.Reason, qt.Equals, "nullifier already registered")
	c.Assert(res2.TxHash, qt.Not(qt.Equals), res.TxHash)

	// only the confirmed attempt is recorded
	list, err := env.store.Admissions()
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 1)
	c.Assert(list[0].Action, qt.Equals, storage.ActionVerify)
	c.Assert(list[0].Nullifier.String(), qt.Equals, "4242")
	c.Assert(list[0].TxHash, qt.Equals, res.TxHash.Hex())
	key, err := res.Identity.Key()
	c.Assert(err, qt.IsNil)
	c.Assert(list[0].Key, qt.Equals, key.Text(16))
}

func TestVerifyInvalidInput(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, 5*time.Second)
	ctx := context.Background()

	proof, signals := testRequest(1)
	res, err := env.controller.Verify(ctx, nil, signals)
	c.Assert(errors.Is(err, types.ErrInvalidRequest), qt.IsTrue)
	c.Assert(res.State, qt.Equals, StateReceived)

	_, err = env.controller.Verify(ctx, proof, nil)
	c.Assert(errors.Is(err, types.ErrInvalidRequest), qt.IsTrue)

	res, err = env.controller.Verify(ctx, proof, signals[:10])
	c.Assert(errors.Is(err, types.ErrInvalidProofShape), qt.IsTrue)
	c.Assert(res.State, qt.Equals, StateReceived)

	proof.B[1][0] = nil
	_, err = env.controller.Verify(ctx, proof, signals)
	c.Assert(errors.Is(err, types.ErrInvalidProofShape), qt.IsTrue)

	// nothing reached the chain
	nonce, err := env.backend.PendingNonceAt(ctx, env.contracts.AccountAddress())
	c.Assert(err, qt.IsNil)
	c.Assert(nonce, qt.Equals, uint64(0))
}

func TestVerifyRejectedProof(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, 5*time.Second)

	proof, signals := testRequest(7)
	proof.A[0] = types.NewBigInt(big.NewInt(0))
	res, err := env.controller.Verify(context.Background(), proof, signals)
	c.Assert(errors.Is(err, types.ErrVerificationFailed), qt.IsTrue)
	c.Assert(res.State, qt.Equals, StateRejected)
	c.Assert(err, qt.ErrorMatches, ".*proof invalid, nullifier blacklisted, or disclosure incomplete.*")
}

func TestVerifyIndeterminate(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, 100*time.Millisecond)
	env.backend.HoldReceipts = true

	proof, signals := testRequest(8)
	res, err := env.controller.Verify(context.Background(), proof, signals)
	c.Assert(errors.Is(err, types.ErrIndeterminate), qt.IsTrue)
	c.Assert(res.State, qt.Equals, StateIndeterminate)
	c.Assert(res.TxHash, qt.Not(qt.Equals), common.Hash{})

	list, err := env.store.Admissions()
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 0)
}

func TestVerifyGatewayUnavailable(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, 5*time.Second)
	env.backend.SendErr = errors.New("dial tcp: connection refused")

	proof, signals := testRequest(9)
	res, err := env.controller.Verify(context.Background(), proof, signals)
	c.Assert(errors.Is(err, types.ErrGatewayUnavailable), qt.IsTrue)
	c.Assert(res.State, qt.Equals, StateSubmitted)
}

func TestCreateAndVote(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, 5*time.Second)
	ctx := context.Background()

	proof, signals := testRequest(10)
	_, err := env.controller.CreateVotingContract(ctx, &web3.VotingParams{
		Deadline:    time.Now().Add(-time.Minute),
		OptionCount: 2,
	}, proof, signals)
	c.Assert(errors.Is(err, types.ErrInvalidRequest), qt.IsTrue)

	res, err := env.controller.CreateVotingContract(ctx, &web3.VotingParams{
		Deadline:    time.Now().Add(time.Hour),
		OptionCount: 2,
	}, proof, signals)
	c.Assert(err, qt.IsNil)
	c.Assert(res.State, qt.Equals, StateConfirmed)
	c.Assert(res.Contract, qt.Not(qt.Equals), common.Address{})

	voterProof, voterSignals := testRequest(11)
	vres, err := env.controller.Vote(ctx, res.Contract, voterProof, voterSignals, []uint64{1})
	c.Assert(err, qt.IsNil)
	c.Assert(vres.State, qt.Equals, StateConfirmed)

	// second vote of the same identity
	vres, err = env.controller.Vote(ctx, res.Contract, voterProof, voterSignals, []uint64{0})
	c.Assert(errors.Is(err, types.ErrVerificationFailed), qt.IsTrue)
	c.Assert(vres.State, qt.Equals, StateRejected)
	c.Assert(vres.Reason, qt.Equals, "already voted")

	_, err = env.controller.Vote(ctx, res.Contract, voterProof, voterSignals, nil)
	c.Assert(errors.Is(err, types.ErrInvalidRequest), qt.IsTrue)
	_, err = env.controller.Vote(ctx, common.Address{}, voterProof, voterSignals, []uint64{0})
	c.Assert(errors.Is(err, types.ErrInvalidContractAddress), qt.IsTrue)

	list, err := env.store.Admissions()
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 2)
	c.Assert(list[0].Action, qt.Equals, storage.ActionCreateVote)
	c.Assert(list[0].Target, qt.Equals, res.Contract.Hex())
	c.Assert(list[1].Action, qt.Equals, storage.ActionVote)

	p, err := env.contracts.Proposal(ctx, res.Contract)
	c.Assert(err, qt.IsNil)
	c.Assert(p.Votes[1].Int64(), qt.Equals, int64(1))
}

func TestStateNames(t *testing.T) {
	c := qt.New(t)
	c.Assert(StateConfirmed.String(), qt.Equals, "confirmed")
	c.Assert(State(42).String(), qt.Equals, "state(42)")
	text, err := StateIndeterminate.MarshalText()
	c.Assert(err, qt.IsNil)
	c.Assert(string(text), qt.Equals, "indeterminate")
}
