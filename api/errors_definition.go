//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 401 or 404, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500, 503 or 504, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX.
// Gaps in the numbering belong to errors that are not used anymore and must not be reused.
// There's no correlation between Code and HTTP Status.
var (
	ErrResourceNotFound      = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody         = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedParam        = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrPollNotFound          = Error{Code: 40007, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("poll not found")}
	ErrUserNotFound          = Error{Code: 40008, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("user not found")}
	ErrCreatorNotFound       = Error{Code: 40009, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("creator not found")}
	ErrInvalidRequest        = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid request")}
	ErrMissingProof          = Error{Code: 40011, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("proof and publicSignals are required")}
	ErrInvalidProofShape     = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid proof shape")}
	ErrAdmissionRejected     = Error{Code: 40013, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("proof invalid, nullifier blacklisted, or disclosure incomplete")}
	ErrUnauthorized          = Error{Code: 40014, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("unauthorized")}
	ErrMalformedAddress      = Error{Code: 40015, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed address")}
	ErrContractNotFound      = Error{Code: 40016, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("voting contract not found")}
	ErrMissingWalletAddress  = Error{Code: 40017, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("missing wallet_address parameter")}
	ErrMalformedNullifier    = Error{Code: 40018, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed nullifier")}
	ErrInvalidVotingContract = Error{Code: 40019, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid voting contract parameters")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrGatewayUnavailable         = Error{Code: 50003, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("chain gateway unavailable")}
	ErrAdmissionIndeterminate     = Error{Code: 50004, HTTPstatus: http.StatusGatewayTimeout, Err: fmt.Errorf("transaction outcome indeterminate")}
	ErrIdentityUnsupported        = Error{Code: 50005, HTTPstatus: http.StatusNotImplemented, Err: fmt.Errorf("identity verification not configured")}
	ErrChainNotConfigured         = Error{Code: 50006, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("on-chain registry not configured")}
	ErrRelayMisconfigured         = Error{Code: 50007, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("relay misconfigured")}
)
