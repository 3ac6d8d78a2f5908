package api

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/selfpoll-relay/log"
	"github.com/vocdoni/selfpoll-relay/types"
	"github.com/vocdoni/selfpoll-relay/web3"
)

// adminParam parses the admin address of the URL.
func adminParam(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	addr, err := web3.ParseAddress(chi.URLParam(r, AdminURLParam))
	if err != nil {
		ErrMalformedAddress.WithErr(err).Write(w)
		return common.Address{}, false
	}
	return addr, true
}

// setBlacklist sets the blacklist status of a nullifier on the registry.
// Requires a session.
// POST /admin/blacklist
func (a *API) setBlacklist(w http.ResponseWriter, r *http.Request) {
	req := &BlacklistRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	if req.Nullifier == nil || req.Nullifier.MathBigInt().Sign() < 0 {
		ErrMalformedNullifier.Write(w)
		return
	}
	if a.registry == nil {
		ErrChainNotConfigured.Write(w)
		return
	}
	receipt, err := a.registry.SetBlacklist(r.Context(), req.Nullifier.MathBigInt(), req.Blacklisted)
	if err != nil {
		chainError(err).Write(w)
		return
	}
	log.Infow("blacklist updated", "nullifier", req.Nullifier.String(), "blacklisted", req.Blacklisted,
		"session", sessionSubject(r.Context()), "tx", receipt.TxHash.Hex())
	httpWriteJSON(w, &TxResponse{TxHash: receipt.TxHash.Hex()})
}

// blacklistStatus reads the blacklist status of a nullifier from the
// registry. Requires a session.
// GET /admin/blacklist/{nullifier}
func (a *API) blacklistStatus(w http.ResponseWriter, r *http.Request) {
	n, ok := new(big.Int).SetString(chi.URLParam(r, NullifierURLParam), 0)
	if !ok || n.Sign() < 0 {
		ErrMalformedNullifier.Write(w)
		return
	}
	if a.registry == nil {
		ErrChainNotConfigured.Write(w)
		return
	}
	listed, err := a.registry.IsBlacklisted(r.Context(), n)
	if err != nil {
		chainError(err).Write(w)
		return
	}
	httpWriteJSON(w, &BlacklistStatus{Nullifier: types.NewBigInt(n), Blacklisted: listed})
}

// addAdmin adds an address to the registry admins. Requires a session.
// POST /admin/admins
func (a *API) addAdmin(w http.ResponseWriter, r *http.Request) {
	req := &AdminRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	addr, err := web3.ParseAddress(req.Address)
	if err != nil {
		ErrMalformedAddress.WithErr(err).Write(w)
		return
	}
	if a.registry == nil {
		ErrChainNotConfigured.Write(w)
		return
	}
	receipt, err := a.registry.AddAdmin(r.Context(), addr)
	if err != nil {
		chainError(err).Write(w)
		return
	}
	log.Infow("admin added", "address", addr.Hex(), "session", sessionSubject(r.Context()), "tx", receipt.TxHash.Hex())
	httpWriteJSON(w, &TxResponse{TxHash: receipt.TxHash.Hex()})
}

// adminStatus reads from the registry whether the address is an admin.
// Requires a session.
// GET /admin/admins/{address}
func (a *API) adminStatus(w http.ResponseWriter, r *http.Request) {
	addr, ok := adminParam(w, r)
	if !ok {
		return
	}
	if a.registry == nil {
		ErrChainNotConfigured.Write(w)
		return
	}
	isAdmin, err := a.registry.IsAdmin(r.Context(), addr)
	if err != nil {
		chainError(err).Write(w)
		return
	}
	httpWriteJSON(w, &AdminStatus{Address: addr.Hex(), IsAdmin: isAdmin})
}

// removeAdmin removes an address from the registry admins. Requires a
// session.
// DELETE /admin/admins/{address}
func (a *API) removeAdmin(w http.ResponseWriter, r *http.Request) {
	addr, ok := adminParam(w, r)
	if !ok {
		return
	}
	if a.registry == nil {
		ErrChainNotConfigured.Write(w)
		return
	}
	receipt, err := a.registry.RemoveAdmin(r.Context(), addr)
	if err != nil {
		chainError(err).Write(w)
		return
	}
	log.Infow("admin removed", "address", addr.Hex(), "session", sessionSubject(r.Context()),
		"tx", receipt.TxHash.Hex())
	httpWriteJSON(w, &TxResponse{TxHash: receipt.TxHash.Hex()})
}
