package storage

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vocdoni/selfpoll-relay/log"
	"github.com/vocdoni/selfpoll-relay/types"
)

// CreatePoll validates the request, checks that the creator exists and
// stores the new poll. It returns the stored record, including the assigned
// id and creation time.
func (s *Storage) CreatePoll(req *types.NewPoll) (*types.Poll, error) {
	p, err := PollFromRequest(req, time.Now())
	if err != nil {
		return nil, err
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	if _, err := s.User(p.Creator); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", types.ErrCreatorNotFound, p.Creator)
		}
		return nil, err
	}
	p.ID = uuid.NewString()
	if err := s.setArtifact(pollPrefix, []byte(p.ID), p); err != nil {
		return nil, fmt.Errorf("%w: store poll: %v", types.ErrServerError, err)
	}
	log.Debugw("poll created", "poll", p.String())
	return p, nil
}

// Poll returns the poll with the given id or ErrNotFound.
func (s *Storage) Poll(id string) (*types.Poll, error) {
	p := &types.Poll{}
	if err := s.getArtifact(pollPrefix, []byte(id), p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPolls returns every poll, newest first.
func (s *Storage) ListPolls() ([]*types.Poll, error) {
	polls := []*types.Poll{}
	var decodeErr error
	if err := s.iterateArtifacts(pollPrefix, func(k, v []byte) bool {
		p := &types.Poll{}
		if err := decodeArtifact(v, p); err != nil {
			decodeErr = fmt.Errorf("decode poll %s: %w", k, err)
			return false
		}
		polls = append(polls, p)
		return true
	}); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	SortPolls(polls)
	return polls, nil
}

// SortPolls orders polls by creation time, newest first. Ties are broken by
// id to keep the order stable.
func SortPolls(polls []*types.Poll) {
	sort.SliceStable(polls, func(i, j int) bool {
		if polls[i].CreatedAt.Equal(polls[j].CreatedAt) {
			return polls[i].ID < polls[j].ID
		}
		return polls[i].CreatedAt.After(polls[j].CreatedAt)
	})
}

// UpdatePoll replaces title, description and options of an existing poll.
// Applying the same update twice leaves the same stored state.
func (s *Storage) UpdatePoll(id string, req *types.PollUpdate) (*types.Poll, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	current, err := s.Poll(id)
	if err != nil {
		return nil, err
	}
	updated, err := ApplyPollUpdate(current, req)
	if err != nil {
		return nil, err
	}
	if err := s.setArtifact(pollPrefix, []byte(id), updated); err != nil {
		return nil, fmt.Errorf("%w: store poll: %v", types.ErrServerError, err)
	}
	return updated, nil
}

// DeletePoll removes the poll. It returns ErrNotFound if the poll does not
// exist.
func (s *Storage) DeletePoll(id string) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	return s.deleteArtifact(pollPrefix, []byte(id))
}
