// Package identity builds the challenges that the identity wallet app scans to
// produce a disclosure proof for the relay.
package identity

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/vocdoni/selfpoll-relay/types"
)

const (
	// DefaultChallengeTTL is the validity of a challenge.
	DefaultChallengeTTL = 10 * time.Minute
	// maxScopeLength is the longest scope accepted by the wallet app.
	maxScopeLength = 31

	userIDTypeUUID = "uuid"
	userIDTypeHex  = "hex"
)

// ErrUnsupported is returned by New when the configuration does not allow to
// build challenges.
var ErrUnsupported = errors.New("identity verification not supported")

// IdentityVerifier builds the challenge a user must answer with a disclosure
// proof.
type IdentityVerifier interface {
	BuildChallenge(userID string) (*Challenge, error)
}

// Disclosures are the attributes the proof must disclose.
type Disclosures struct {
	MinimumAge        int      `json:"minimumAge,omitempty"`
	OFAC              bool     `json:"ofac"`
	Nationality       bool     `json:"nationality,omitempty"`
	ExcludedCountries []string `json:"excludedCountries,omitempty"`
}

// Challenge is the request rendered to the wallet app, usually as a QR code.
type Challenge struct {
	SessionID   string      `json:"sessionId"`
	AppName     string      `json:"appName"`
	Scope       string      `json:"scope"`
	Endpoint    string      `json:"endpoint"`
	UserID      string      `json:"userId"`
	UserIDType  string      `json:"userIdType"`
	Disclosures Disclosures `json:"disclosures"`
	ExpiresAt   time.Time   `json:"expiresAt"`
}

// Config holds the parameters of the Self verifier.
type Config struct {
	AppName     string
	Scope       string
	Endpoint    string
	Disclosures Disclosures
	TTL         time.Duration
}

// Self builds challenges for the Self identity wallet.
type Self struct {
	conf Config
	now  func() time.Time
}

var _ IdentityVerifier = (*Self)(nil)

// New checks the configuration and returns the verifier. It returns
// ErrUnsupported if no endpoint or scope is configured, so callers can disable
// the challenge flow at startup.
func New(conf Config) (*Self, error) {
	conf.Scope = strings.TrimSpace(conf.Scope)
	conf.Endpoint = strings.TrimSpace(conf.Endpoint)
	if conf.Endpoint == "" || conf.Scope == "" {
		return nil, fmt.Errorf("%w: endpoint and scope are required", ErrUnsupported)
	}
	if len(conf.Scope) > maxScopeLength {
		return nil, fmt.Errorf("scope must be at most %d characters", maxScopeLength)
	}
	u, err := url.Parse(conf.Endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return nil, fmt.Errorf("invalid verification endpoint %q", conf.Endpoint)
	}
	if conf.Disclosures.MinimumAge < 0 {
		return nil, fmt.Errorf("invalid minimum age %d", conf.Disclosures.MinimumAge)
	}
	if conf.AppName == "" {
		conf.AppName = "selfpoll"
	}
	if conf.TTL <= 0 {
		conf.TTL = DefaultChallengeTTL
	}
	return &Self{conf: conf, now: time.Now}, nil
}

// BuildChallenge returns a new challenge for the user. The user id is either
// a UUID or a hex wallet address.
func (s *Self) BuildChallenge(userID string) (*Challenge, error) {
	userID = strings.TrimSpace(userID)
	var idType string
	switch {
	case common.IsHexAddress(userID):
		idType = userIDTypeHex
		userID = common.HexToAddress(userID).Hex()
	default:
		id, err := uuid.Parse(userID)
		if err != nil {
			return nil, fmt.Errorf("%w: user id must be a uuid or a hex address", types.ErrInvalidRequest)
		}
		idType = userIDTypeUUID
		userID = id.String()
	}
	d := s.conf.Disclosures
	d.ExcludedCountries = append([]string(nil), d.ExcludedCountries...)
	return &Challenge{
		SessionID:   uuid.NewString(),
		AppName:     s.conf.AppName,
		Scope:       s.conf.Scope,
		Endpoint:    s.conf.Endpoint,
		UserID:      userID,
		UserIDType:  idType,
		Disclosures: d,
		ExpiresAt:   s.now().Add(s.conf.TTL).UTC(),
	}, nil
}
