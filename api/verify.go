package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/selfpoll-relay/admission"
	"github.com/vocdoni/selfpoll-relay/log"
)

// verify relays an identity disclosure proof to the registry and waits for
// the outcome.
// POST /verify
func (a *API) verify(w http.ResponseWriter, r *http.Request) {
	req := &ProofRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	if err := proofFromRequest(req); err != nil {
		ErrMissingProof.Write(w)
		return
	}
	if a.admission == nil {
		ErrChainNotConfigured.Write(w)
		return
	}
	res, err := a.admission.Verify(r.Context(), req.Proof, req.PublicSignals)
	if err != nil {
		admissionFailure(res, err).Write(w)
		return
	}
	httpWriteJSON(w, &VerifyResponse{
		Status:         "success",
		Result:         true,
		State:          res.State.String(),
		TxHash:         res.TxHash.Hex(),
		UserIdentifier: res.Identity.UserIdentifier.Hex(),
	})
}

// admissionFailure maps a failed admission attempt to the API error. The
// transaction hash is appended when the attempt reached the chain.
func admissionFailure(res *admission.Result, err error) Error {
	apiErr := chainError(err)
	if res != nil && res.State >= admission.StateSubmitted && res.TxHash != (common.Hash{}) {
		apiErr = apiErr.Withf("tx %s", res.TxHash.Hex())
	}
	return apiErr
}

// challenge returns the challenge the identity wallet app must answer.
// GET /verify/challenge/{userId}
func (a *API) challenge(w http.ResponseWriter, r *http.Request) {
	if a.identity == nil {
		ErrIdentityUnsupported.Write(w)
		return
	}
	ch, err := a.identity.BuildChallenge(chi.URLParam(r, UserIDURLParam))
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	log.Debugw("challenge built", "session", ch.SessionID, "user", ch.UserID)
	httpWriteJSON(w, ch)
}
