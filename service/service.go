// Package service wraps the long running components of the relay, each one
// with a Start and Stop lifecycle.
package service

import (
	"context"

	"github.com/vocdoni/selfpoll-relay/web3"
)

// Service is a component that runs in the background until stopped.
type Service interface {
	Start(ctx context.Context) error
	Stop()
}

var (
	_ Service = (*APIService)(nil)
	_ Service = (*ContractMonitor)(nil)
	_ Service = (*web3.Gateway)(nil)
)
