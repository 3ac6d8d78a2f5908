package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/selfpoll-relay/tally"
	"github.com/vocdoni/selfpoll-relay/types"
	"github.com/vocdoni/selfpoll-relay/web3"
)

func votingContractResponse(p *web3.Proposal) *VotingContract {
	return &VotingContract{
		Address:              p.Address.Hex(),
		IsActive:             p.IsActive,
		TimeLeft:             types.NewBigInt(p.TimeLeft),
		Deadline:             types.NewBigInt(p.Deadline),
		OptionCount:          types.NewBigInt(p.OptionCount),
		AllowMultipleChoices: p.AllowMultipleChoices,
		Results:              tally.FromCounts(p.Votes),
	}
}

// contractParam parses the voting contract address of the URL. On failure
// it writes the error response and returns false.
func contractParam(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	addr, err := web3.ParseAddress(chi.URLParam(r, ContractURLParam))
	if err != nil {
		ErrMalformedAddress.WithErr(err).Write(w)
		return common.Address{}, false
	}
	return addr, true
}

// votingContracts returns the state and results of every voting contract
// created by the factory
// GET /contracts
func (a *API) votingContracts(w http.ResponseWriter, r *http.Request) {
	if a.registry == nil {
		ErrChainNotConfigured.Write(w)
		return
	}
	addrs, err := a.registry.VotingContracts(r.Context())
	if err != nil {
		chainError(err).Write(w)
		return
	}
	proposals, err := a.registry.Proposals(r.Context(), addrs)
	if err != nil {
		chainError(err).Write(w)
		return
	}
	res := make([]*VotingContract, 0, len(proposals))
	for _, p := range proposals {
		res = append(res, votingContractResponse(p))
	}
	httpWriteJSON(w, res)
}

// votingContract returns the state and results of a voting contract
// GET /contracts/{address}
func (a *API) votingContract(w http.ResponseWriter, r *http.Request) {
	if a.registry == nil {
		ErrChainNotConfigured.Write(w)
		return
	}
	addr, ok := contractParam(w, r)
	if !ok {
		return
	}
	p, err := a.registry.Proposal(r.Context(), addr)
	if err != nil {
		if errors.Is(err, types.ErrVerificationFailed) {
			ErrContractNotFound.With(addr.Hex()).Write(w)
			return
		}
		chainError(err).Write(w)
		return
	}
	httpWriteJSON(w, votingContractResponse(p))
}

// newVotingContract asks the factory to deploy a voting contract on behalf
// of the identity disclosed by the proof
// POST /contracts
func (a *API) newVotingContract(w http.ResponseWriter, r *http.Request) {
	req := &NewVotingContract{}
	if !decodeBody(w, r, req) {
		return
	}
	if err := proofFromRequest(&req.ProofRequest); err != nil {
		ErrMissingProof.Write(w)
		return
	}
	params := &web3.VotingParams{
		Deadline:             req.Deadline,
		OptionCount:          req.OptionCount,
		AllowMultipleChoices: req.AllowMultipleChoices,
		HasAgeConstraint:     req.HasAgeConstraint,
		MinAge:               req.MinAge,
	}
	if err := params.Check(time.Now()); err != nil {
		ErrInvalidVotingContract.WithErr(err).Write(w)
		return
	}
	if a.admission == nil {
		ErrChainNotConfigured.Write(w)
		return
	}
	res, err := a.admission.CreateVotingContract(r.Context(), params, req.Proof, req.PublicSignals)
	if err != nil {
		admissionFailure(res, err).Write(w)
		return
	}
	httpWriteJSONStatus(w, http.StatusCreated, &AdmissionResponse{
		State:    res.State.String(),
		Action:   res.Action,
		TxHash:   res.TxHash.Hex(),
		Contract: res.Contract.Hex(),
	})
}

// vote casts the selected options on a voting contract for the identity
// disclosed by the proof
// POST /contracts/{address}/vote
func (a *API) vote(w http.ResponseWriter, r *http.Request) {
	addr, ok := contractParam(w, r)
	if !ok {
		return
	}
	req := &VoteRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	if err := proofFromRequest(&req.ProofRequest); err != nil {
		ErrMissingProof.Write(w)
		return
	}
	if len(req.Options) == 0 {
		ErrInvalidRequest.With("options are required").Write(w)
		return
	}
	if a.admission == nil {
		ErrChainNotConfigured.Write(w)
		return
	}
	res, err := a.admission.Vote(r.Context(), addr, req.Proof, req.PublicSignals, req.Options)
	if err != nil {
		admissionFailure(res, err).Write(w)
		return
	}
	httpWriteJSON(w, &AdmissionResponse{
		State:    res.State.String(),
		Action:   res.Action,
		TxHash:   res.TxHash.Hex(),
		Contract: res.Contract.Hex(),
	})
}
