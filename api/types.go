package api

import (
	"time"

	"github.com/vocdoni/selfpoll-relay/tally"
	"github.com/vocdoni/selfpoll-relay/types"
)

// ProofRequest carries an identity disclosure proof as produced by the
// wallet app.
type ProofRequest struct {
	Proof         *types.Proof     `json:"proof"`
	PublicSignals types.PubSignals `json:"publicSignals"`
}

// VerifyResponse is returned when the registry accepted the proof.
type VerifyResponse struct {
	Status         string `json:"status"`
	Result         bool   `json:"result"`
	State          string `json:"state"`
	TxHash         string `json:"txHash,omitempty"`
	UserIdentifier string `json:"userIdentifier,omitempty"`
}

// DataResponse wraps the record returned by create and update operations.
type DataResponse struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// PollResults is the vote distribution of an off-chain poll.
type PollResults struct {
	PollID  string         `json:"pollId"`
	Options []types.Option `json:"options"`
	Results *tally.Result  `json:"results"`
}

// SetVerifiedRequest updates the verification flag of the user owning the
// wallet.
type SetVerifiedRequest struct {
	WalletAddress string `json:"wallet_address"`
	SelfVerified  *bool  `json:"self_verified"`
}

// NewVotingContract asks the registry to deploy a voting contract. The proof
// identifies the creator.
type NewVotingContract struct {
	ProofRequest
	Deadline             time.Time `json:"deadline"`
	OptionCount          uint64    `json:"optionCount"`
	AllowMultipleChoices bool      `json:"allowMultipleChoices"`
	HasAgeConstraint     bool      `json:"hasAgeConstraint"`
	MinAge               uint64    `json:"minAge"`
}

// VoteRequest casts the selected options on a voting contract.
type VoteRequest struct {
	ProofRequest
	Options []uint64 `json:"options"`
}

// AdmissionResponse is the outcome of a confirmed admission on a voting
// contract.
type AdmissionResponse struct {
	State    string `json:"state"`
	Action   string `json:"action"`
	TxHash   string `json:"txHash"`
	Contract string `json:"contract,omitempty"`
}

// VotingContract is the on-chain state and results of a voting contract.
type VotingContract struct {
	Address              string        `json:"address"`
	IsActive             bool          `json:"isActive"`
	TimeLeft             *types.BigInt `json:"timeLeft"`
	Deadline             *types.BigInt `json:"deadline"`
	OptionCount          *types.BigInt `json:"optionCount"`
	AllowMultipleChoices bool          `json:"allowMultipleChoices"`
	Results              *tally.Result `json:"results"`
}

// BlacklistRequest sets the blacklist status of a nullifier.
type BlacklistRequest struct {
	Nullifier   *types.BigInt `json:"nullifier"`
	Blacklisted bool          `json:"blacklisted"`
}

// BlacklistStatus reports whether a nullifier is blacklisted.
type BlacklistStatus struct {
	Nullifier   *types.BigInt `json:"nullifier"`
	Blacklisted bool          `json:"blacklisted"`
}

// AdminRequest adds an address to the registry admins.
type AdminRequest struct {
	Address string `json:"address"`
}

// AdminStatus reports whether an address is a registry admin.
type AdminStatus struct {
	Address string `json:"address"`
	IsAdmin bool   `json:"isAdmin"`
}

// TxResponse carries the hash of a confirmed management transaction.
type TxResponse struct {
	TxHash string `json:"txHash"`
}
