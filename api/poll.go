package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/selfpoll-relay/log"
	"github.com/vocdoni/selfpoll-relay/tally"
	"github.com/vocdoni/selfpoll-relay/types"
)

// newPoll creates a new off-chain poll
// POST /poll
func (a *API) newPoll(w http.ResponseWriter, r *http.Request) {
	req := &types.NewPoll{}
	if !decodeBody(w, r, req) {
		return
	}
	p, err := a.storage.CreatePoll(req)
	if err != nil {
		storeError(err, ErrPollNotFound).Write(w)
		return
	}
	log.Infow("new poll", "poll", p.String(), "creator", p.Creator)
	httpWriteJSONStatus(w, http.StatusCreated, &DataResponse{Message: "Poll created successfully", Data: p})
}

// listPolls returns every poll, newest first
// GET /poll
func (a *API) listPolls(w http.ResponseWriter, r *http.Request) {
	polls, err := a.storage.ListPolls()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if polls == nil {
		polls = []*types.Poll{}
	}
	httpWriteJSON(w, polls)
}

// poll returns a poll by id
// GET /poll/{pollId}
func (a *API) poll(w http.ResponseWriter, r *http.Request) {
	p, err := a.storage.Poll(chi.URLParam(r, PollURLParam))
	if err != nil {
		storeError(err, ErrPollNotFound).Write(w)
		return
	}
	httpWriteJSON(w, p)
}

// updatePoll replaces the title, description and options of a poll
// PUT /poll/{pollId}
func (a *API) updatePoll(w http.ResponseWriter, r *http.Request) {
	req := &types.PollUpdate{}
	if !decodeBody(w, r, req) {
		return
	}
	p, err := a.storage.UpdatePoll(chi.URLParam(r, PollURLParam), req)
	if err != nil {
		storeError(err, ErrPollNotFound).Write(w)
		return
	}
	httpWriteJSON(w, p)
}

// deletePoll removes a poll
// DELETE /poll/{pollId}
func (a *API) deletePoll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, PollURLParam)
	if err := a.storage.DeletePoll(id); err != nil {
		storeError(err, ErrPollNotFound).Write(w)
		return
	}
	log.Infow("poll deleted", "id", id)
	httpWriteNoContent(w)
}

// pollResults returns the simulated vote distribution of a poll
// GET /poll/{pollId}/results
func (a *API) pollResults(w http.ResponseWriter, r *http.Request) {
	p, err := a.storage.Poll(chi.URLParam(r, PollURLParam))
	if err != nil {
		storeError(err, ErrPollNotFound).Write(w)
		return
	}
	httpWriteJSON(w, &PollResults{
		PollID:  p.ID,
		Options: p.Options,
		Results: tally.Simulate(p.ID, p.Title, len(p.Options)),
	})
}
