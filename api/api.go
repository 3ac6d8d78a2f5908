package api

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vocdoni/selfpoll-relay/admission"
	"github.com/vocdoni/selfpoll-relay/identity"
	"github.com/vocdoni/selfpoll-relay/log"
	"github.com/vocdoni/selfpoll-relay/storage"
	"github.com/vocdoni/selfpoll-relay/web3"
)

// Registry is the on-chain state read and managed through the API. It is
// implemented by *web3.Contracts.
type Registry interface {
	VotingContracts(ctx context.Context) ([]common.Address, error)
	Proposal(ctx context.Context, contract common.Address) (*web3.Proposal, error)
	Proposals(ctx context.Context, contracts []common.Address) ([]*web3.Proposal, error)
	SetBlacklist(ctx context.Context, n *big.Int, status bool) (*gethtypes.Receipt, error)
	IsBlacklisted(ctx context.Context, n *big.Int) (bool, error)
	AddAdmin(ctx context.Context, admin common.Address) (*gethtypes.Receipt, error)
	RemoveAdmin(ctx context.Context, admin common.Address) (*gethtypes.Receipt, error)
	IsAdmin(ctx context.Context, addr common.Address) (bool, error)
}

// APIConfig type represents the configuration for the API HTTP server.
// Storage is mandatory. Without Admission and Registry the on-chain endpoints
// answer ErrChainNotConfigured, without Identity the challenge endpoint
// answers ErrIdentityUnsupported.
type APIConfig struct {
	Host      string
	Port      int
	Storage   storage.Store
	Admission *admission.Controller
	Registry  Registry
	Identity  identity.IdentityVerifier
	// SessionSecret signs the bearer tokens required by the restricted
	// endpoints. If empty the restricted endpoints always answer 401.
	SessionSecret []byte
}

// API type represents the API HTTP server of the relay.
type API struct {
	router    *chi.Mux
	storage   storage.Store
	admission *admission.Controller
	registry  Registry
	identity  identity.IdentityVerifier
	secret    []byte

	host string
	port int

	mu     sync.Mutex
	server *http.Server
	addr   net.Addr
}

// New creates a new API instance with the given configuration and builds its
// router. The server is started with Listen.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Storage == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	a := &API{
		storage:   conf.Storage,
		admission: conf.Admission,
		registry:  conf.Registry,
		identity:  conf.Identity,
		secret:    conf.SessionSecret,
		host:      conf.Host,
		port:      conf.Port,
	}
	a.initRouter()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// Listen binds the configured host and port and serves the API in the
// background. A zero port lets the OS choose one, see Addr.
func (a *API) Listen() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		return fmt.Errorf("API server already listening")
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(a.host, strconv.Itoa(a.port)))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	a.addr = ln.Addr()
	a.server = &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infow("starting API server", "addr", a.addr.String())
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw(err, "API server stopped")
		}
	}(a.server)
	return nil
}

// Addr returns the address the server is listening on, or nil.
func (a *API) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Shutdown gracefully stops the server.
func (a *API) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return nil
	}
	err := a.server.Shutdown(ctx)
	a.server, a.addr = nil, nil
	return err
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	register := func(r chi.Router, method, endpoint string, h http.HandlerFunc) {
		log.Infow("register handler", "endpoint", endpoint, "method", method)
		r.Method(method, endpoint, h)
	}

	register(a.router, http.MethodGet, PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})

	// identity verification
	register(a.router, http.MethodPost, VerifyEndpoint, a.verify)
	register(a.router, http.MethodGet, ChallengeEndpoint, a.challenge)

	// polls
	register(a.router, http.MethodPost, PollsEndpoint, a.newPoll)
	register(a.router, http.MethodGet, PollsEndpoint, a.listPolls)
	register(a.router, http.MethodGet, PollEndpoint, a.poll)
	register(a.router, http.MethodPut, PollEndpoint, a.updatePoll)
	register(a.router, http.MethodDelete, PollEndpoint, a.deletePoll)
	register(a.router, http.MethodGet, PollResultsEndpoint, a.pollResults)

	// users
	register(a.router, http.MethodPost, UsersEndpoint, a.newUser)
	register(a.router, http.MethodGet, UsersEndpoint, a.userByWallet)
	register(a.router, http.MethodPut, UserVerifyEndpoint, a.setUserVerified)
	register(a.router, http.MethodGet, UserEndpoint, a.user)

	// on-chain voting contracts
	register(a.router, http.MethodGet, ContractsEndpoint, a.votingContracts)
	register(a.router, http.MethodPost, ContractsEndpoint, a.newVotingContract)
	register(a.router, http.MethodGet, ContractEndpoint, a.votingContract)
	register(a.router, http.MethodPost, ContractVoteEndpoint, a.vote)

	// restricted endpoints
	a.router.Group(func(r chi.Router) {
		r.Use(bearerAuth(a.secret))
		register(r, http.MethodPut, UserEndpoint, a.updateUser)
		register(r, http.MethodDelete, UserEndpoint, a.deleteUser)
		register(r, http.MethodPost, BlacklistEndpoint, a.setBlacklist)
		register(r, http.MethodGet, BlacklistStatusEndpoint, a.blacklistStatus)
		register(r, http.MethodPost, AdminsEndpoint, a.addAdmin)
		register(r, http.MethodGet, AdminEndpoint, a.adminStatus)
		register(r, http.MethodDelete, AdminEndpoint, a.removeAdmin)
	})
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	// Create the router with a basic middleware stack
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	// the admission endpoints wait for the transaction to be mined
	a.router.Use(middleware.Timeout(3 * time.Minute))

	// Register the API handlers
	a.registerHandlers()
}
