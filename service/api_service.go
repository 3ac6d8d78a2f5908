package service

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/vocdoni/selfpoll-relay/api"
	"github.com/vocdoni/selfpoll-relay/log"
)

// shutdownTimeout bounds the wait for in-flight requests on Stop.
const shutdownTimeout = 10 * time.Second

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	conf   api.APIConfig
	api    *api.API
	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewAPI creates a new APIService instance. The storage and the chain
// components are taken from conf, host and port select the listen address.
func NewAPI(conf *api.APIConfig) *APIService {
	return &APIService{conf: *conf}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}

	a, err := api.New(&as.conf)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}
	if err := a.Listen(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	as.api = a

	ctx, as.cancel = context.WithCancel(ctx)
	go func() {
		<-ctx.Done()
		as.shutdown(a)
	}()
	return nil
}

func (as *APIService) shutdown(a *api.API) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		log.Warnw("API server shutdown", "error", err)
	}
}

// Stop halts the API server. The storage is owned by the caller and is not
// closed.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		as.cancel()
		as.cancel = nil
	}
	if as.api != nil {
		as.shutdown(as.api)
		as.api = nil
	}
}

// Addr returns the address the API server listens on, or nil if it is not
// running.
func (as *APIService) Addr() net.Addr {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.api == nil {
		return nil
	}
	return as.api.Addr()
}

// HostPort returns the configured host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.conf.Host, as.conf.Port
}
