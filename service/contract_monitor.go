package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/selfpoll-relay/log"
)

// DefaultMonitorInterval is the polling interval of the contract monitor.
const DefaultMonitorInterval = 30 * time.Second

// ContractsService defines the on-chain reads used by the monitor. It is
// implemented by *web3.Contracts.
type ContractsService interface {
	VotingContracts(ctx context.Context) ([]common.Address, error)
}

// ContractMonitor represents a service that polls the factory for voting
// contracts created since the last poll and reports them to the handler.
type ContractMonitor struct {
	contracts ContractsService
	interval  time.Duration
	handler   func(common.Address)

	mu     sync.Mutex
	cancel context.CancelFunc
	known  map[common.Address]struct{}
}

// NewContractMonitor creates a new ContractMonitor service. A nil handler
// only logs the new contracts.
func NewContractMonitor(contracts ContractsService, interval time.Duration, handler func(common.Address)) *ContractMonitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	if handler == nil {
		handler = func(common.Address) {}
	}
	return &ContractMonitor{
		contracts: contracts,
		interval:  interval,
		handler:   handler,
		known:     make(map[common.Address]struct{}),
	}
}

// Start begins monitoring for new voting contracts. The contracts existing
// at start are reported too. It returns an error if the service is already
// running.
func (cm *ContractMonitor) Start(ctx context.Context) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.cancel != nil {
		return fmt.Errorf("service already running")
	}
	ctx, cm.cancel = context.WithCancel(ctx)
	go cm.monitor(ctx)
	return nil
}

// Stop halts the monitoring service.
func (cm *ContractMonitor) Stop() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.cancel != nil {
		cm.cancel()
		cm.cancel = nil
	}
}

// Known returns the number of voting contracts seen so far.
func (cm *ContractMonitor) Known() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.known)
}

func (cm *ContractMonitor) monitor(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()
	for {
		cm.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (cm *ContractMonitor) poll(ctx context.Context) {
	addrs, err := cm.contracts.VotingContracts(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warnw("failed to list voting contracts", "error", err)
		}
		return
	}
	for _, addr := range addrs {
		cm.mu.Lock()
		_, seen := cm.known[addr]
		cm.known[addr] = struct{}{}
		cm.mu.Unlock()
		if seen {
			continue
		}
		log.Debugw("new voting contract found", "address", addr.Hex())
		cm.handler(addr)
	}
}
