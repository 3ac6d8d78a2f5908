package tests

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/selfpoll-relay/admission"
	"github.com/vocdoni/selfpoll-relay/api"
	"github.com/vocdoni/selfpoll-relay/api/client"
	"github.com/vocdoni/selfpoll-relay/identity"
	"github.com/vocdoni/selfpoll-relay/nullifier"
	"github.com/vocdoni/selfpoll-relay/service"
	"github.com/vocdoni/selfpoll-relay/storage"
	"github.com/vocdoni/selfpoll-relay/types"
	"github.com/vocdoni/selfpoll-relay/web3"
)

var testFactory = common.HexToAddress("0x00000000000000000000000000000000000FAC70")

// testService groups the components started by NewTestService.
type testService struct {
	api       *service.APIService
	monitor   *service.ContractMonitor
	contracts *web3.Contracts
	backend   *web3.MockBackend
	store     *storage.Storage
	found     chan common.Address
}

// NewTestService wires the relay against a mock chain and an in-memory store,
// the same way the relay command does, and starts every service.
func NewTestService(t *testing.T, ctx context.Context) *testService {
	c := qt.New(t)

	ownerKey, owner := web3.MockAccount()
	backend := web3.NewMockBackend(testFactory, owner)
	gw, err := web3.NewGateway(ctx, backend, ownerKey, &web3.GatewayConfig{
		ReceiptPollInterval: 10 * time.Millisecond,
	})
	c.Assert(err, qt.IsNil)
	contracts, err := web3.NewContracts(gw, testFactory)
	c.Assert(err, qt.IsNil)

	verifier, err := identity.New(identity.Config{Scope: "selfpoll", Endpoint: "http://127.0.0.1/verify"})
	c.Assert(err, qt.IsNil)

	store := storage.New(memdb.New())
	ts := &testService{
		contracts: contracts,
		backend:   backend,
		store:     store,
		found:     make(chan common.Address, 16),
	}
	ts.monitor = service.NewContractMonitor(contracts, 20*time.Millisecond, func(addr common.Address) {
		ts.found <- addr
	})
	ts.api = service.NewAPI(&api.APIConfig{
		Host:      "127.0.0.1",
		Storage:   store,
		Admission: admission.New(contracts, store, 5*time.Second),
		Registry:  contracts,
		Identity:  verifier,
	})

	for _, s := range []service.Service{gw, ts.monitor, ts.api} {
		c.Assert(s.Start(ctx), qt.IsNil)
	}
	t.Cleanup(func() {
		ts.api.Stop()
		ts.monitor.Stop()
		gw.Stop()
	})
	return ts
}

// NewTestClient creates a new API client for the running service.
func NewTestClient(ts *testService) (*client.HTTPclient, error) {
	addr := ts.api.Addr()
	if addr == nil {
		return nil, fmt.Errorf("API service not running")
	}
	return client.New("http://" + addr.String())
}

// testProof builds a proof and public signals disclosing nullifier n.
func testProof(n int64) (*types.Proof, types.PubSignals) {
	bi := func(i int64) *types.BigInt { return types.NewBigInt(big.NewInt(i)) }
	proof := &types.Proof{
		A: [2]*types.BigInt{bi(1), bi(2)},
		B: [2][2]*types.BigInt{{bi(3), bi(4)}, {bi(5), bi(6)}},
		C: [2]*types.BigInt{bi(7), bi(8)},
	}
	signals := make(types.PubSignals, types.PubSignalsLen)
	for i := range signals {
		signals[i] = bi(int64(i + 1000))
	}
	signals[nullifier.NullifierIndex] = bi(n)
	return proof, signals
}
