package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MockContracts implements a mock version of the factory reads used by the
// services, for testing.
type MockContracts struct {
	mu        sync.Mutex
	contracts []common.Address
	err       error
}

// NewMockContracts returns an empty mock factory.
func NewMockContracts() *MockContracts {
	return &MockContracts{}
}

// CreateVotingContract appends a new voting contract to the factory list.
func (m *MockContracts) CreateVotingContract() common.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr := common.HexToAddress(fmt.Sprintf("0x%040x", len(m.contracts)+1))
	m.contracts = append(m.contracts, addr)
	return addr
}

// SetError makes VotingContracts fail with err until it is reset with nil.
func (m *MockContracts) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// VotingContracts implements ContractsService.
func (m *MockContracts) VotingContracts(context.Context) ([]common.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]common.Address{}, m.contracts...), nil
}
