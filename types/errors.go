package types

import "errors"

// Error taxonomy shared by the relay components. Callers wrap them with
// fmt.Errorf("...: %w", err) to keep the original failure detail and classify
// them with errors.Is.
var (
	// ErrInvalidRequest is returned when the input is missing or malformed.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound is returned when the referenced id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCreatorNotFound is returned when a poll references an unknown user.
	ErrCreatorNotFound = errors.New("creator not found")
	// ErrInvalidProofShape is returned when the proof or its public signals
	// are structurally wrong.
	ErrInvalidProofShape = errors.New("invalid proof shape")
	// ErrVerificationFailed is returned when the chain rejects a relayed call.
	// The registry does not tell apart an invalid proof, a blacklisted
	// nullifier or an incomplete disclosure, so neither does the relay.
	ErrVerificationFailed = errors.New("verification failed: proof invalid, nullifier blacklisted, or disclosure incomplete")
	// ErrIndeterminate is returned when a submitted transaction was not
	// confirmed before the waiting deadline. Its fate is unknown.
	ErrIndeterminate = errors.New("transaction outcome indeterminate")
	// ErrGatewayUnavailable is returned on RPC transport failures.
	ErrGatewayUnavailable = errors.New("chain gateway unavailable")
	// ErrServerError is returned on unexpected store or internal failures.
	ErrServerError = errors.New("internal server error")
	// ErrInvalidContractAddress is returned when a contract address is
	// missing or malformed.
	ErrInvalidContractAddress = errors.New("invalid contract address")
)
