package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vocdoni/selfpoll-relay/types"
)

// CreateUser stores a new user. self_verified defaults to false.
func (s *Storage) CreateUser(req *types.NewUser) (*types.User, error) {
	u, err := UserFromRequest(req, time.Now())
	if err != nil {
		return nil, err
	}
	u.ID = uuid.NewString()
	if err := s.setArtifact(userPrefix, []byte(u.ID), u); err != nil {
		return nil, fmt.Errorf("%w: store user: %v", types.ErrServerError, err)
	}
	return u, nil
}

// User returns the user with the given id or ErrNotFound.
func (s *Storage) User(id string) (*types.User, error) {
	u := &types.User{}
	if err := s.getArtifact(userPrefix, []byte(id), u); err != nil {
		return nil, err
	}
	return u, nil
}

// UserByWallet returns the first user registered with the given wallet
// address (case insensitive) or ErrNotFound. Wallet addresses are not
// enforced to be unique.
func (s *Storage) UserByWallet(address string) (*types.User, error) {
	var found *types.User
	var decodeErr error
	if err := s.iterateArtifacts(userPrefix, func(_, v []byte) bool {
		u := &types.User{}
		if err := decodeArtifact(v, u); err != nil {
			decodeErr = fmt.Errorf("decode user: %w", err)
			return false
		}
		if strings.EqualFold(u.WalletAddress, address) {
			if found == nil || u.CreatedAt.Before(found.CreatedAt) {
				found = u
			}
		}
		return true
	}); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// UpdateUser applies the restricted field update to the user.
func (s *Storage) UpdateUser(id string, req *types.UserUpdate) (*types.User, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	current, err := s.User(id)
	if err != nil {
		return nil, err
	}
	updated, err := ApplyUserUpdate(current, req)
	if err != nil {
		return nil, err
	}
	if err := s.setArtifact(userPrefix, []byte(id), updated); err != nil {
		return nil, fmt.Errorf("%w: store user: %v", types.ErrServerError, err)
	}
	return updated, nil
}

// SetSelfVerified sets the verification flag of the user owning the wallet.
func (s *Storage) SetSelfVerified(address string, verified bool) (*types.User, error) {
	u, err := s.UserByWallet(address)
	if err != nil {
		return nil, err
	}
	return s.UpdateUser(u.ID, &types.UserUpdate{SelfVerified: &verified})
}

// DeleteUser removes the user. It returns ErrNotFound if the user does not
// exist.
func (s *Storage) DeleteUser(id string) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	return s.deleteArtifact(userPrefix, []byte(id))
}
