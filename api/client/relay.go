package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vocdoni/selfpoll-relay/api"
	"github.com/vocdoni/selfpoll-relay/types"
)

// decode checks the status code and decodes the response into out. Error
// responses are returned as api.Error values.
func decode(data []byte, status, expected int, out any) error {
	if status != expected {
		apiErr := struct {
			Err  string `json:"error"`
			Code int    `json:"code"`
		}{}
		if err := json.Unmarshal(data, &apiErr); err != nil || apiErr.Code == 0 {
			return fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
		}
		return api.Error{Code: apiErr.Code, HTTPstatus: status, Err: errors.New(apiErr.Err)}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// Verify relays an identity disclosure proof.
func (c *HTTPclient) Verify(proof *types.Proof, signals types.PubSignals) (*api.VerifyResponse, error) {
	data, status, err := c.Request(HTTPPOST, &api.ProofRequest{Proof: proof, PublicSignals: signals}, nil, api.VerifyEndpoint)
	if err != nil {
		return nil, err
	}
	res := &api.VerifyResponse{}
	return res, decode(data, status, http.StatusOK, res)
}

// CreateUser creates a user.
func (c *HTTPclient) CreateUser(req *types.NewUser) (*types.User, error) {
	data, status, err := c.Request(HTTPPOST, req, nil, api.UsersEndpoint)
	if err != nil {
		return nil, err
	}
	user := &types.User{}
	return user, decode(data, status, http.StatusCreated, &api.DataResponse{Data: user})
}

// CreatePoll creates a poll.
func (c *HTTPclient) CreatePoll(req *types.NewPoll) (*types.Poll, error) {
	data, status, err := c.Request(HTTPPOST, req, nil, api.PollsEndpoint)
	if err != nil {
		return nil, err
	}
	poll := &types.Poll{}
	return poll, decode(data, status, http.StatusCreated, &api.DataResponse{Data: poll})
}

// Poll returns a poll by id.
func (c *HTTPclient) Poll(id string) (*types.Poll, error) {
	data, status, err := c.Request(HTTPGET, nil, nil, api.PollsEndpoint, id)
	if err != nil {
		return nil, err
	}
	poll := &types.Poll{}
	return poll, decode(data, status, http.StatusOK, poll)
}

// Polls lists every poll, newest first.
func (c *HTTPclient) Polls() ([]*types.Poll, error) {
	data, status, err := c.Request(HTTPGET, nil, nil, api.PollsEndpoint)
	if err != nil {
		return nil, err
	}
	var polls []*types.Poll
	return polls, decode(data, status, http.StatusOK, &polls)
}

// PollResults returns the vote distribution of a poll.
func (c *HTTPclient) PollResults(id string) (*api.PollResults, error) {
	data, status, err := c.Request(HTTPGET, nil, nil, api.PollsEndpoint, id, "results")
	if err != nil {
		return nil, err
	}
	res := &api.PollResults{}
	return res, decode(data, status, http.StatusOK, res)
}

// DeletePoll removes a poll.
func (c *HTTPclient) DeletePoll(id string) error {
	data, status, err := c.Request(HTTPDELETE, nil, nil, api.PollsEndpoint, id)
	if err != nil {
		return err
	}
	return decode(data, status, http.StatusNoContent, nil)
}

// UserByWallet returns the user registered with the wallet address.
func (c *HTTPclient) UserByWallet(address string) (*types.User, error) {
	data, status, err := c.Request(HTTPGET, nil, []string{api.WalletQueryParam, address}, api.UsersEndpoint)
	if err != nil {
		return nil, err
	}
	user := &types.User{}
	return user, decode(data, status, http.StatusOK, &api.DataResponse{Data: user})
}

// UpdateUser changes the restricted user fields. It requires a session token.
func (c *HTTPclient) UpdateUser(id string, req *types.UserUpdate) (*types.User, error) {
	data, status, err := c.Request(HTTPPUT, req, nil, api.UsersEndpoint, id)
	if err != nil {
		return nil, err
	}
	user := &types.User{}
	return user, decode(data, status, http.StatusOK, &api.DataResponse{Data: user})
}

// DeleteUser removes a user. It requires a session token.
func (c *HTTPclient) DeleteUser(id string) error {
	data, status, err := c.Request(HTTPDELETE, nil, nil, api.UsersEndpoint, id)
	if err != nil {
		return err
	}
	return decode(data, status, http.StatusOK, nil)
}
