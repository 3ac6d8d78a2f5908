package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/selfpoll-relay/admission"
	"github.com/vocdoni/selfpoll-relay/api"
	"github.com/vocdoni/selfpoll-relay/log"
	"github.com/vocdoni/selfpoll-relay/nullifier"
	"github.com/vocdoni/selfpoll-relay/types"
	"github.com/vocdoni/selfpoll-relay/web3"
)

func init() {
	log.Init(log.LogLevelDebug, "stdout", nil)
}

func TestIntegration(t *testing.T) {
	c := qt.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ts := NewTestService(t, ctx)
	cli, err := NewTestClient(ts)
	c.Assert(err, qt.IsNil)

	var pollID string
	c.Run("create poll", func(c *qt.C) {
		user, err := cli.CreateUser(&types.NewUser{
			WalletAddress: "0x71C7656EC7ab88b098defB751B7401B5f6d8976F",
			PassportID:    "P1234567",
		})
		c.Assert(err, qt.IsNil)
		c.Assert(user.ID, qt.Not(qt.Equals), "")

		poll, err := cli.CreatePoll(&types.NewPoll{
			Title:   "Lunch",
			Options: []types.Option{{Text: "pizza"}, {Text: "sushi"}, {Text: "tacos"}},
			Creator: user.ID,
			EndDate: time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		})
		c.Assert(err, qt.IsNil)
		c.Assert(poll.Options, qt.HasLen, 3)
		pollID = poll.ID

		polls, err := cli.Polls()
		c.Assert(err, qt.IsNil)
		c.Assert(polls, qt.HasLen, 1)
	})

	c.Run("poll results", func(c *qt.C) {
		res, err := cli.PollResults(pollID)
		c.Assert(err, qt.IsNil)
		c.Assert(res.Results.Votes, qt.HasLen, 3)
		sum := 0
		for _, p := range res.Results.Percentages {
			sum += p
		}
		c.Assert(sum, qt.Equals, 100)

		again, err := cli.PollResults(pollID)
		c.Assert(err, qt.IsNil)
		c.Assert(again.Results, qt.DeepEquals, res.Results)
	})

	c.Run("verify identity", func(c *qt.C) {
		proof, signals := testProof(31337)
		res, err := cli.Verify(proof, signals)
		c.Assert(err, qt.IsNil)
		c.Assert(res.Status, qt.Equals, "success")
		c.Assert(res.Result, qt.IsTrue)
		c.Assert(ts.backend.IsVerified(signals[nullifier.NullifierIndex].MathBigInt()), qt.IsTrue)

		// the same identity cannot be admitted twice
		_, err = cli.Verify(proof, signals)
		var apiErr api.Error
		c.Assert(errors.As(err, &apiErr), qt.IsTrue, qt.Commentf("%v", err))
		c.Assert(apiErr.Code, qt.Equals, api.ErrAdmissionRejected.Code)

		list, err := ts.store.Admissions()
		c.Assert(err, qt.IsNil)
		c.Assert(list, qt.HasLen, 1)
	})

	c.Run("monitor voting contracts", func(c *qt.C) {
		proof, signals := testProof(4040)
		ctrl := admission.New(ts.contracts, ts.store, 5*time.Second)
		res, err := ctrl.CreateVotingContract(ctx, &web3.VotingParams{
			Deadline:    time.Now().Add(time.Hour),
			OptionCount: 2,
		}, proof, signals)
		c.Assert(err, qt.IsNil)

		select {
		case addr := <-ts.found:
			c.Assert(addr, qt.Equals, res.Contract)
		case <-time.After(5 * time.Second):
			c.Fatal("voting contract not reported by the monitor")
		}
	})

	c.Run("delete poll", func(c *qt.C) {
		c.Assert(cli.DeletePoll(pollID), qt.IsNil)
		_, err := cli.Poll(pollID)
		var apiErr api.Error
		c.Assert(errors.As(err, &apiErr), qt.IsTrue, qt.Commentf("%v", err))
		c.Assert(apiErr.Code, qt.Equals, api.ErrPollNotFound.Code)
	})
}
