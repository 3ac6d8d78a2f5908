package identity

import (
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"github.com/vocdoni/selfpoll-relay/types"
)

func TestNewCapabilityCheck(t *testing.T) {
	c := qt.New(t)

	_, err := New(Config{Scope: "polls"})
	c.Assert(errors.Is(err, ErrUnsupported), qt.IsTrue)
	_, err = New(Config{Endpoint: "https://relay.example.org/verify"})
	c.Assert(errors.Is(err, ErrUnsupported), qt.IsTrue)

	_, err = New(Config{Scope: "polls", Endpoint: "ftp://relay.example.org"})
	c.Assert(err, qt.IsNotNil)
	_, err = New(Config{Scope: "a-scope-that-is-way-too-long-for-the-app", Endpoint: "https://relay.example.org"})
	c.Assert(err, qt.IsNotNil)

	v, err := New(Config{Scope: "polls", Endpoint: "https://relay.example.org/verify"})
	c.Assert(err, qt.IsNil)
	c.Assert(v.conf.AppName, qt.Equals, "selfpoll")
	c.Assert(v.conf.TTL, qt.Equals, DefaultChallengeTTL)
}

func TestBuildChallenge(t *testing.T) {
	c := qt.New(t)

	v, err := New(Config{
		AppName:  "polls",
		Scope:    "selfpoll",
		Endpoint: "https://relay.example.org/verify",
		Disclosures: Disclosures{
			MinimumAge:        18,
			OFAC:              true,
			ExcludedCountries: []string{"PRK"},
		},
		TTL: time.Minute,
	})
	c.Assert(err, qt.IsNil)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return now }

	id := uuid.NewString()
	ch, err := v.BuildChallenge(id)
	c.Assert(err, qt.IsNil)
	c.Assert(ch.UserID, qt.Equals, id)
	c.Assert(ch.UserIDType, qt.Equals, "uuid")
	c.Assert(ch.Disclosures.MinimumAge, qt.Equals, 18)
	c.Assert(ch.Disclosures.ExcludedCountries, qt.DeepEquals, []string{"PRK"})
	c.Assert(ch.ExpiresAt.Equal(now.Add(time.Minute)), qt.IsTrue)
	c.Assert(ch.SessionID, qt.Not(qt.Equals), "")

	other, err := v.BuildChallenge(id)
	c.Assert(err, qt.IsNil)
	c.Assert(other.SessionID, qt.Not(qt.Equals), ch.SessionID)

	ch, err = v.BuildChallenge("0x71c7656ec7ab88b098defb751b7401b5f6d8976f")
	c.Assert(err, qt.IsNil)
	c.Assert(ch.UserIDType, qt.Equals, "hex")
	c.Assert(ch.UserID, qt.Equals, "0x71C7656EC7ab88b098defB751B7401B5f6d8976F")

	_, err = v.BuildChallenge("not-an-id")
	c.Assert(errors.Is(err, types.ErrInvalidRequest), qt.IsTrue)
}
