package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/selfpoll-relay/log"
	"github.com/vocdoni/selfpoll-relay/types"
)

// newUser creates a new user
// POST /user
func (a *API) newUser(w http.ResponseWriter, r *http.Request) {
	req := &types.NewUser{}
	if !decodeBody(w, r, req) {
		return
	}
	u, err := a.storage.CreateUser(req)
	if err != nil {
		storeError(err, ErrUserNotFound).Write(w)
		return
	}
	log.Infow("new user", "id", u.ID, "wallet", u.WalletAddress)
	httpWriteJSONStatus(w, http.StatusCreated, &DataResponse{Message: "User created successfully", Data: u})
}

// user returns a user by id
// GET /user/{id}
func (a *API) user(w http.ResponseWriter, r *http.Request) {
	u, err := a.storage.User(chi.URLParam(r, UserURLParam))
	if err != nil {
		storeError(err, ErrUserNotFound).Write(w)
		return
	}
	httpWriteJSON(w, u)
}

// userByWallet returns the user owning a wallet address
// GET /user?wallet_address=0x...
func (a *API) userByWallet(w http.ResponseWriter, r *http.Request) {
	wallet := strings.TrimSpace(r.URL.Query().Get(WalletQueryParam))
	if wallet == "" {
		ErrMissingWalletAddress.Write(w)
		return
	}
	u, err := a.storage.UserByWallet(wallet)
	if err != nil {
		storeError(err, ErrUserNotFound).Write(w)
		return
	}
	httpWriteJSON(w, &DataResponse{Message: "User found", Data: u})
}

// updateUser modifies the wallet address, passport id or verification flag
// of a user. Requires a session.
// PUT /user/{id}
func (a *API) updateUser(w http.ResponseWriter, r *http.Request) {
	req := &types.UserUpdate{}
	if !decodeBody(w, r, req) {
		return
	}
	u, err := a.storage.UpdateUser(chi.URLParam(r, UserURLParam), req)
	if err != nil {
		storeError(err, ErrUserNotFound).Write(w)
		return
	}
	log.Infow("user updated", "id", u.ID, "session", sessionSubject(r.Context()))
	httpWriteJSON(w, &DataResponse{Message: "Updated", Data: u})
}

// setUserVerified sets the verification flag of the user owning a wallet
// PUT /user/verify
func (a *API) setUserVerified(w http.ResponseWriter, r *http.Request) {
	req := &SetVerifiedRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	if strings.TrimSpace(req.WalletAddress) == "" {
		ErrMissingWalletAddress.Write(w)
		return
	}
	if req.SelfVerified == nil {
		ErrInvalidRequest.With("self_verified (boolean) is required").Write(w)
		return
	}
	u, err := a.storage.SetSelfVerified(req.WalletAddress, *req.SelfVerified)
	if err != nil {
		storeError(err, ErrUserNotFound).Write(w)
		return
	}
	httpWriteJSON(w, &DataResponse{Message: "Verification status updated successfully", Data: u})
}

// deleteUser removes a user. Requires a session.
// DELETE /user/{id}
func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, UserURLParam)
	if err := a.storage.DeleteUser(id); err != nil {
		storeError(err, ErrUserNotFound).Write(w)
		return
	}
	log.Infow("user deleted", "id", id, "session", sessionSubject(r.Context()))
	httpWriteJSON(w, &DataResponse{Message: "Deleted"})
}
