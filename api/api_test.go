package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/selfpoll-relay/admission"
	"github.com/vocdoni/selfpoll-relay/identity"
	"github.com/vocdoni/selfpoll-relay/nullifier"
	"github.com/vocdoni/selfpoll-relay/storage"
	"github.com/vocdoni/selfpoll-relay/types"
	"github.com/vocdoni/selfpoll-relay/web3"
)

var (
	testFactory = common.HexToAddress("0x00000000000000000000000000000000000FAC70")
	testSecret  = []byte("relay-test-secret")
)

type testEnv struct {
	srv     *httptest.Server
	store   *storage.Storage
	backend *web3.MockBackend
	token   string
}

// newTestEnv starts the API backed by an in-memory store and a mock chain.
// The relay account owns the factory.
func newTestEnv(c *qt.C) *testEnv {
	ownerKey, owner := web3.MockAccount()
	backend := web3.NewMockBackend(testFactory, owner)
	gw, err := web3.NewGateway(context.Background(), backend, ownerKey, &web3.GatewayConfig{
		ReceiptPollInterval: 10 * time.Millisecond,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(gw.Start(context.Background()), qt.IsNil)
	c.Cleanup(gw.Stop)
	contracts, err := web3.NewContracts(gw, testFactory)
	c.Assert(err, qt.IsNil)

	verifier, err := identity.New(identity.Config{Scope: "selfpoll", Endpoint: "https://relay.example.org/verify"})
	c.Assert(err, qt.IsNil)

	store := storage.New(memdb.New())
	a, err := New(&APIConfig{
		Storage:       store,
		Admission:     admission.New(contracts, store, 5*time.Second),
		Registry:      contracts,
		Identity:      verifier,
		SessionSecret: testSecret,
	})
	c.Assert(err, qt.IsNil)
	srv := httptest.NewServer(a.Router())
	c.Cleanup(srv.Close)

	token, err := NewSessionToken(testSecret, "admin", time.Hour)
	c.Assert(err, qt.IsNil)
	return &testEnv{srv: srv, store: store, backend: backend, token: token}
}

// request sends a JSON request and returns the status and the raw body.
func (e *testEnv) request(c *qt.C, method, path string, body any, token string) (int, []byte) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		c.Assert(err, qt.IsNil)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	c.Assert(err, qt.IsNil)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	c.Assert(err, qt.IsNil)
	return resp.StatusCode, data
}

// errorCode decodes the code of an api.Error response.
func errorCode(c *qt.C, data []byte) int {
	var e struct {
		Code int `json:"code"`
	}
	c.Assert(json.Unmarshal(data, &e), qt.IsNil, qt.Commentf("%s", data))
	return e.Code
}

func testProofRequest(n int64) *ProofRequest {
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
	return &ProofRequest{Proof: proof, PublicSignals: signals}
}

func (e *testEnv) createUser(c *qt.C, wallet string) *types.User {
	status, data := e.request(c, http.MethodPost, UsersEndpoint, &types.NewUser{
		WalletAddress: wallet,
		PassportID:    "P" + wallet[len(wallet)-4:],
	}, "")
	c.Assert(status, qt.Equals, http.StatusCreated, qt.Commentf("%s", data))
	user := &types.User{}
	c.Assert(json.Unmarshal(data, &DataResponse{Data: user}), qt.IsNil)
	return user
}

func TestPing(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	status, _ := env.request(c, http.MethodGet, PingEndpoint, nil, "")
	c.Assert(status, qt.Equals, http.StatusOK)
}

func TestPollEndpoints(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	user := env.createUser(c, "0x71C7656EC7ab88b098defB751B7401B5f6d8976F")

	newPoll := &types.NewPoll{
		Title:       "  Lunch  ",
		Description: "Where do we eat",
		Options:     []types.Option{{Text: "pizza"}, {Text: "sushi", Description: "raw"}},
		Creator:     user.ID,
	}
	status, data := env.request(c, http.MethodPost, PollsEndpoint, newPoll, "")
	c.Assert(status, qt.Equals, http.StatusCreated, qt.Commentf("%s", data))
	poll := &types.Poll{}
	c.Assert(json.Unmarshal(data, &DataResponse{Data: poll}), qt.IsNil)
	c.Assert(poll.Title, qt.Equals, "Lunch")
	c.Assert(poll.ID, qt.Not(qt.Equals), "")
	c.Assert(poll.EndDate.After(poll.CreatedAt), qt.IsTrue)

	// unknown creator
	badCreator := *newPoll
	badCreator.Creator = uuid.NewString()
	status, data = env.request(c, http.MethodPost, PollsEndpoint, &badCreator, "")
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, data), qt.Equals, ErrCreatorNotFound.Code)

	// validation error
	oneOption := *newPoll
	oneOption.Options = oneOption.Options[:1]
	status, data = env.request(c, http.MethodPost, PollsEndpoint, &oneOption, "")
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, data), qt.Equals, ErrInvalidRequest.Code)

	// malformed body
	req, err := http.NewRequest(http.MethodPost, env.srv.URL+PollsEndpoint, strings.NewReader("{"))
	c.Assert(err, qt.IsNil)
	resp, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusBadRequest)

	status, data = env.request(c, http.MethodGet, PollsEndpoint, nil, "")
	c.Assert(status, qt.Equals, http.StatusOK)
	var polls []*types.Poll
	c.Assert(json.Unmarshal(data, &polls), qt.IsNil)
	c.Assert(polls, qt.HasLen, 1)

	status, data = env.request(c, http.MethodGet, "/poll/"+poll.ID, nil, "")
	c.Assert(status, qt.Equals, http.StatusOK)
	got := &types.Poll{}
	c.Assert(json.Unmarshal(data, got), qt.IsNil)
	c.Assert(got.ID, qt.Equals, poll.ID)

	status, data = env.request(c, http.MethodGet, "/poll/"+uuid.NewString(), nil, "")
	c.Assert(status, qt.Equals, http.StatusNotFound)
	c.Assert(errorCode(c, data), qt.Equals, ErrPollNotFound.Code)

	update := &types.PollUpdate{
		Title:       "Dinner",
		Description: "Where do we eat tonight",
		Options:     []types.Option{{Text: "pizza"}, {Text: "sushi"}, {Text: "tacos"}},
	}
	status, data = env.request(c, http.MethodPut, "/poll/"+poll.ID, update, "")
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("%s", data))
	c.Assert(json.Unmarshal(data, got), qt.IsNil)
	c.Assert(got.Title, qt.Equals, "Dinner")
	c.Assert(got.Options, qt.HasLen, 3)
	c.Assert(got.CreatedAt.Equal(poll.CreatedAt), qt.IsTrue)

	update.Options = update.Options[:1]
	status, _ = env.request(c, http.MethodPut, "/poll/"+poll.ID, update, "")
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	status, _ = env.request(c, http.MethodPut, "/poll/"+uuid.NewString(), &types.PollUpdate{
		Title: "x", Description: "y", Options: []types.Option{{Text: "a"}, {Text: "b"}},
	}, "")
	c.Assert(status, qt.Equals, http.StatusNotFound)

	status, data = env.request(c, http.MethodGet, "/poll/"+poll.ID+"/results", nil, "")
	c.Assert(status, qt.Equals, http.StatusOK)
	results := &PollResults{}
	c.Assert(json.Unmarshal(data, results), qt.IsNil)
	c.Assert(results.Results.Votes, qt.HasLen, 3)
	sum := 0
	for _, p := range results.Results.Percentages {
		sum += p
	}
	c.Assert(sum, qt.Equals, 100)

	status, _ = env.request(c, http.MethodDelete, "/poll/"+poll.ID, nil, "")
	c.Assert(status, qt.Equals, http.StatusNoContent)
	status, _ = env.request(c, http.MethodDelete, "/poll/"+poll.ID, nil, "")
	c.Assert(status, qt.Equals, http.StatusNotFound)
}

func TestUserEndpoints(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	wallet := "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"
	user := env.createUser(c, wallet)
	c.Assert(user.SelfVerified, qt.IsFalse)

	status, _ := env.request(c, http.MethodPost, UsersEndpoint, &types.NewUser{WalletAddress: wallet}, "")
	c.Assert(status, qt.Equals, http.StatusBadRequest)

	status, data := env.request(c, http.MethodGet, "/user/"+user.ID, nil, "")
	c.Assert(status, qt.Equals, http.StatusOK)
	got := &types.User{}
	c.Assert(json.Unmarshal(data, got), qt.IsNil)
	c.Assert(got.WalletAddress, qt.Equals, wallet)

	status, data = env.request(c, http.MethodGet, "/user?wallet_address="+strings.ToLower(wallet), nil, "")
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("%s", data))
	got = &types.User{}
	c.Assert(json.Unmarshal(data, &DataResponse{Data: got}), qt.IsNil)
	c.Assert(got.ID, qt.Equals, user.ID)

	status, data = env.request(c, http.MethodGet, UsersEndpoint, nil, "")
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, data), qt.Equals, ErrMissingWalletAddress.Code)

	verified := true
	status, data = env.request(c, http.MethodPut, UserVerifyEndpoint, &SetVerifiedRequest{
		WalletAddress: wallet, SelfVerified: &verified,
	}, "")
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("%s", data))
	got = &types.User{}
	c.Assert(json.Unmarshal(data, &DataResponse{Data: got}), qt.IsNil)
	c.Assert(got.SelfVerified, qt.IsTrue)

	status, _ = env.request(c, http.MethodPut, UserVerifyEndpoint, &SetVerifiedRequest{WalletAddress: wallet}, "")
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	status, _ = env.request(c, http.MethodPut, UserVerifyEndpoint, &SetVerifiedRequest{
		WalletAddress: "0x0000000000000000000000000000000000000001", SelfVerified: &verified,
	}, "")
	c.Assert(status, qt.Equals, http.StatusNotFound)

	// restricted updates
	passport := "X123"
	update := &types.UserUpdate{PassportID: &passport}
	status, data = env.request(c, http.MethodPut, "/user/"+user.ID, update, "")
	c.Assert(status, qt.Equals, http.StatusUnauthorized)
	c.Assert(errorCode(c, data), qt.Equals, ErrUnauthorized.Code)

	badToken, err := NewSessionToken([]byte("another secret"), "admin", time.Hour)
	c.Assert(err, qt.IsNil)
	status, _ = env.request(c, http.MethodPut, "/user/"+user.ID, update, badToken)
	c.Assert(status, qt.Equals, http.StatusUnauthorized)

	expired, err := NewSessionToken(testSecret, "admin", -time.Minute)
	c.Assert(err, qt.IsNil)
	status, _ = env.request(c, http.MethodPut, "/user/"+user.ID, update, expired)
	c.Assert(status, qt.Equals, http.StatusUnauthorized)

	status, data = env.request(c, http.MethodPut, "/user/"+user.ID, update, env.token)
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("%s", data))
	got = &types.User{}
	c.Assert(json.Unmarshal(data, &DataResponse{Data: got}), qt.IsNil)
	c.Assert(got.PassportID, qt.Equals, passport)

	empty := ""
	status, _ = env.request(c, http.MethodPut, "/user/"+user.ID, &types.UserUpdate{WalletAddress: &empty}, env.token)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	status, _ = env.request(c, http.MethodPut, "/user/"+uuid.NewString(), update, env.token)
	c.Assert(status, qt.Equals, http.StatusNotFound)

	status, _ = env.request(c, http.MethodDelete, "/user/"+user.ID, nil, "")
	c.Assert(status, qt.Equals, http.StatusUnauthorized)
	status, _ = env.request(c, http.MethodDelete, "/user/"+user.ID, nil, env.token)
	c.Assert(status, qt.Equals, http.StatusOK)
	status, _ = env.request(c, http.MethodGet, "/user/"+user.ID, nil, "")
	c.Assert(status, qt.Equals, http.StatusNotFound)
}

func TestVerifyEndpoint(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)

	status, data := env.request(c, http.MethodPost, VerifyEndpoint, &ProofRequest{}, "")
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, data), qt.Equals, ErrMissingProof.Code)

	short := testProofRequest(1)
	short.PublicSignals = short.PublicSignals[:5]
	status, data = env.request(c, http.MethodPost, VerifyEndpoint, short, "")
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, data), qt.Equals, ErrInvalidProofShape.Code)

	// b given as a single row
	flat := json.RawMessage(`{"proof":{"a":["1","2"],"b":[["3","4"]],"c":["7","8"]},"publicSignals":["1"]}`)
	status, data = env.request(c, http.MethodPost, VerifyEndpoint, flat, "")
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, data), qt.Equals, ErrInvalidProofShape.Code)

	status, data = env.request(c, http.MethodPost, VerifyEndpoint, "not an object", "")
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, data), qt.Equals, ErrMalformedBody.Code)

	req := testProofRequest(4242)
	status, data = env.request(c, http.MethodPost, VerifyEndpoint, req, "")
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("%s", data))
	res := &VerifyResponse{}
	c.Assert(json.Unmarshal(data, res), qt.IsNil)
	c.Assert(res.Status, qt.Equals, "success")
	c.Assert(res.Result, qt.IsTrue)
	c.Assert(res.State, qt.Equals, "confirmed")
	c.Assert(env.backend.IsVerified(big.NewInt(4242)), qt.IsTrue)

	// the registry refuses a second admission of the same nullifier
	status, data = env.request(c, http.MethodPost, VerifyEndpoint, req, "")
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, data), qt.Equals, ErrAdmissionRejected.Code)

	admissions, err := env.store.Admissions()
	c.Assert(err, qt.IsNil)
	c.Assert(admissions, qt.HasLen, 1)
}

func TestEndpointsWithoutChain(t *testing.T) {
	c := qt.New(t)
	a, err := New(&APIConfig{Storage: storage.New(memdb.New())})
	c.Assert(err, qt.IsNil)
	srv := httptest.NewServer(a.Router())
	defer srv.Close()
	env := &testEnv{srv: srv}

	status, data := env.request(c, http.MethodPost, VerifyEndpoint, testProofRequest(1), "")
	c.Assert(status, qt.Equals, http.StatusServiceUnavailable)
	c.Assert(errorCode(c, data), qt.Equals, ErrChainNotConfigured.Code)

	status, _ = env.request(c, http.MethodGet, ContractsEndpoint, nil, "")
	c.Assert(status, qt.Equals, http.StatusServiceUnavailable)

	status, data = env.request(c, http.MethodGet, "/verify/challenge/"+uuid.NewString(), nil, "")
	c.Assert(status, qt.Equals, http.StatusNotImplemented)
	c.Assert(errorCode(c, data), qt.Equals, ErrIdentityUnsupported.Code)

	// no session secret, restricted endpoints are closed
	token, err := NewSessionToken(testSecret, "admin", time.Hour)
	c.Assert(err, qt.IsNil)
	status, _ = env.request(c, http.MethodDelete, "/user/"+uuid.NewString(), nil, token)
	c.Assert(status, qt.Equals, http.StatusUnauthorized)

	_, err = New(&APIConfig{})
	c.Assert(err, qt.IsNotNil)
}

func TestChallengeEndpoint(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)

	id := uuid.NewString()
	status, data := env.request(c, http.MethodGet, "/verify/challenge/"+id, nil, "")
	c.Assert(status, qt.Equals, http.StatusOK)
	ch := &identity.Challenge{}
	c.Assert(json.Unmarshal(data, ch), qt.IsNil)
	c.Assert(ch.UserID, qt.Equals, id)
	c.Assert(ch.Scope, qt.Equals, "selfpoll")

	status, _ = env.request(c, http.MethodGet, "/verify/challenge/not-a-user", nil, "")
	c.Assert(status, qt.Equals, http.StatusBadRequest)
}

func TestContractEndpoints(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)

	create := &NewVotingContract{
		ProofRequest: *testProofRequest(10),
		Deadline:     time.Now().Add(-time.Hour),
		OptionCount:  2,
	}
	status, data := env.request(c, http.MethodPost, ContractsEndpoint, create, "")
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, data), qt.Equals, ErrInvalidVotingContract.Code)

	create.Deadline = time.Now().Add(time.Hour)
	status, data = env.request(c, http.MethodPost, ContractsEndpoint, create, "")
	c.Assert(status, qt.Equals, http.StatusCreated, qt.Commentf("%s", data))
	created := &AdmissionResponse{}
	c.Assert(json.Unmarshal(data, created), qt.IsNil)
	c.Assert(created.State, qt.Equals, "confirmed")
	c.Assert(common.IsHexAddress(created.Contract), qt.IsTrue)

	status, data = env.request(c, http.MethodGet, ContractsEndpoint, nil, "")
	c.Assert(status, qt.Equals, http.StatusOK)
	var list []*VotingContract
	c.Assert(json.Unmarshal(data, &list), qt.IsNil)
	c.Assert(list, qt.HasLen, 1)
	c.Assert(list[0].Address, qt.Equals, created.Contract)
	c.Assert(list[0].IsActive, qt.IsTrue)

	vote := &VoteRequest{ProofRequest: *testProofRequest(11), Options: []uint64{1}}
	path := "/contracts/" + created.Contract + "/vote"
	status, data = env.request(c, http.MethodPost, path, vote, "")
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("%s", data))

	status, data = env.request(c, http.MethodPost, path, vote, "")
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, data), qt.Equals, ErrAdmissionRejected.Code)

	status, _ = env.request(c, http.MethodPost, path, &VoteRequest{ProofRequest: *testProofRequest(12)}, "")
	c.Assert(status, qt.Equals, http.StatusBadRequest)

	status, data = env.request(c, http.MethodGet, "/contracts/"+created.Contract, nil, "")
	c.Assert(status, qt.Equals, http.StatusOK)
	vc := &VotingContract{}
	c.Assert(json.Unmarshal(data, vc), qt.IsNil)
	c.Assert(vc.Results.TotalVotes, qt.Equals, uint64(1))
	c.Assert(vc.Results.Votes, qt.DeepEquals, []uint64{0, 1})
	c.Assert(vc.Results.Percentages, qt.DeepEquals, []int{0, 100})
	c.Assert(vc.OptionCount.MathBigInt().Int64(), qt.Equals, int64(2))

	status, data = env.request(c, http.MethodGet, "/contracts/0x1234", nil, "")
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, data), qt.Equals, ErrMalformedAddress.Code)

	status, data = env.request(c, http.MethodGet, "/contracts/0x00000000000000000000000000000000000000AA", nil, "")
	c.Assert(status, qt.Equals, http.StatusNotFound)
	c.Assert(errorCode(c, data), qt.Equals, ErrContractNotFound.Code)
}

func TestAdminEndpoints(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	_, admin := web3.MockAccount()

	status, _ := env.request(c, http.MethodPost, AdminsEndpoint, &AdminRequest{Address: admin.Hex()}, "")
	c.Assert(status, qt.Equals, http.StatusUnauthorized)

	status, data := env.request(c, http.MethodPost, AdminsEndpoint, &AdminRequest{Address: admin.Hex()}, env.token)
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("%s", data))
	tx := &TxResponse{}
	c.Assert(json.Unmarshal(data, tx), qt.IsNil)
	c.Assert(tx.TxHash, qt.Not(qt.Equals), "")

	status, data = env.request(c, http.MethodGet, "/admin/admins/"+admin.Hex(), nil, env.token)
	c.Assert(status, qt.Equals, http.StatusOK)
	adminStatus := &AdminStatus{}
	c.Assert(json.Unmarshal(data, adminStatus), qt.IsNil)
	c.Assert(adminStatus.IsAdmin, qt.IsTrue)

	status, _ = env.request(c, http.MethodDelete, "/admin/admins/"+admin.Hex(), nil, env.token)
	c.Assert(status, qt.Equals, http.StatusOK)
	status, data = env.request(c, http.MethodGet, "/admin/admins/"+admin.Hex(), nil, env.token)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(json.Unmarshal(data, adminStatus), qt.IsNil)
	c.Assert(adminStatus.IsAdmin, qt.IsFalse)

	status, _ = env.request(c, http.MethodPost, AdminsEndpoint, &AdminRequest{Address: "nope"}, env.token)
	c.Assert(status, qt.Equals, http.StatusBadRequest)

	status, data = env.request(c, http.MethodPost, BlacklistEndpoint, &BlacklistRequest{
		Nullifier: types.NewBigInt(big.NewInt(66)), Blacklisted: true,
	}, env.token)
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("%s", data))
	status, _ = env.request(c, http.MethodPost, BlacklistEndpoint, &BlacklistRequest{}, env.token)
	c.Assert(status, qt.Equals, http.StatusBadRequest)

	status, data = env.request(c, http.MethodGet, "/admin/blacklist/66", nil, env.token)
	c.Assert(status, qt.Equals, http.StatusOK)
	listed := &BlacklistStatus{}
	c.Assert(json.Unmarshal(data, listed), qt.IsNil)
	c.Assert(listed.Blacklisted, qt.IsTrue)
	status, _ = env.request(c, http.MethodGet, "/admin/blacklist/abc", nil, env.token)
	c.Assert(status, qt.Equals, http.StatusBadRequest)

	// a blacklisted nullifier is not admitted
	status, data = env.request(c, http.MethodPost, VerifyEndpoint, testProofRequest(66), "")
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, data), qt.Equals, ErrAdmissionRejected.Code)
}
