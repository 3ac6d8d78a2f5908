// Package nullifier extracts the pseudonymous identity disclosed by a proof
// and builds the argument tuple expected by the on-chain disclosure verifier.
package nullifier

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/vocdoni/selfpoll-relay/types"
	"github.com/vocdoni/selfpoll-relay/util"
)

// Positions of the disclosure circuit public signals used by the relay.
const (
	NullifierIndex      = 7
	ScopeIndex          = 19
	UserIdentifierIndex = 20
)

// Identity is what the relay learns about the prover from the public signals.
// The nullifier is stable for the same real-world identity and scope, and is
// the value the registry tracks for uniqueness and blacklisting.
type Identity struct {
	Nullifier      *big.Int
	Scope          *big.Int
	UserIdentifier common.Address
}

// Derive extracts the identity from the public signal vector. It returns
// ErrInvalidProofShape if the vector is short or has empty elements.
func Derive(signals types.PubSignals) (*Identity, error) {
	if err := signals.Check(); err != nil {
		return nil, err
	}
	return &Identity{
		Nullifier:      new(big.Int).Set(signals[NullifierIndex].MathBigInt()),
		Scope:          new(big.Int).Set(signals[ScopeIndex].MathBigInt()),
		UserIdentifier: common.BigToAddress(signals[UserIdentifierIndex].MathBigInt()),
	}, nil
}

// Key returns poseidon(nullifier, scope), with both inputs reduced to the
// BN254 scalar field. It is used as the storage key of the
// admission records, so the raw nullifier does not need to be indexed.
func (id *Identity) Key() (*big.Int, error) {
	key, err := poseidon.Hash([]*big.Int{util.BigToFF(id.Nullifier), util.BigToFF(id.Scope)})
	if err != nil {
		return nil, fmt.Errorf("poseidon hash: %w", err)
	}
	return key, nil
}

// Hex returns the nullifier as 0x-prefixed hexadecimal string.
func (id *Identity) Hex() string {
	return fmt.Sprintf("%#x", id.Nullifier)
}

// VerifierProof mirrors the VcAndDiscloseProof tuple of the verifier contract.
// Field names must match the ABI component names.
type VerifierProof struct {
	A          [2]*big.Int
	B          [2][2]*big.Int
	C          [2]*big.Int
	PubSignals [types.PubSignalsLen]*big.Int
}

// VerifierArgs maps the proof and its public signals into the verifier tuple.
// The inner pair of each b row is swapped: the prover serializes the G2
// coordinates in the opposite order of the one expected by the verifier, and
// verification fails without this transposition.
func VerifierArgs(proof *types.Proof, signals types.PubSignals) (*VerifierProof, error) {
	if proof == nil {
		return nil, fmt.Errorf("%w: missing proof", types.ErrInvalidProofShape)
	}
	if err := proof.Check(); err != nil {
		return nil, err
	}
	if err := signals.Check(); err != nil {
		return nil, err
	}
	vp := &VerifierProof{
		A: [2]*big.Int{proof.A[0].MathBigInt(), proof.A[1].MathBigInt()},
		B: [2][2]*big.Int{
			{proof.B[0][1].MathBigInt(), proof.B[0][0].MathBigInt()},
			{proof.B[1][1].MathBigInt(), proof.B[1][0].MathBigInt()},
		},
		C: [2]*big.Int{proof.C[0].MathBigInt(), proof.C[1].MathBigInt()},
	}
	copy(vp.PubSignals[:], signals.Ints())
	return vp, nil
}
