package types

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/vocdoni/circom2gnark/parser"
)

// PubSignalsLen is the number of public signals of the disclosure circuit
// accepted by the on-chain verifier (uint256[21]).
const PubSignalsLen = 21

// Proof is a groth16 disclosure proof as produced by the identity wallet app.
// It is relayed opaquely to the on-chain verifier, the relay never checks it.
type Proof struct {
	A [2]*BigInt    `json:"a"`
	B [2][2]*BigInt `json:"b"`
	C [2]*BigInt    `json:"c"`
}

// UnmarshalJSON decodes either the solidity calldata layout ({a, b, c}) or the
// snarkjs layout ({pi_a, pi_b, pi_c}). In both cases the b matrix keeps the
// order of the prover, the verifier ordering is applied when building the
// contract arguments.
func (p *Proof) UnmarshalJSON(data []byte) error {
	var raw struct {
		A []*BigInt   `json:"a"`
		B [][]*BigInt `json:"b"`
		C []*BigInt   `json:"c"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.A) == 0 && len(raw.B) == 0 && len(raw.C) == 0 {
		circom := &parser.CircomProof{}
		if err := json.Unmarshal(data, circom); err != nil {
			return err
		}
		return p.fromCircom(circom)
	}
	if len(raw.A) < 2 || len(raw.C) < 2 || len(raw.B) < 2 || len(raw.B[0]) < 2 || len(raw.B[1]) < 2 {
		return fmt.Errorf("%w: proof must have a[2], b[2][2] and c[2]", ErrInvalidProofShape)
	}
	p.A = [2]*BigInt{raw.A[0], raw.A[1]}
	p.B = [2][2]*BigInt{{raw.B[0][0], raw.B[0][1]}, {raw.B[1][0], raw.B[1][1]}}
	p.C = [2]*BigInt{raw.C[0], raw.C[1]}
	return nil
}

// fromCircom fills the proof from a snarkjs proof. The projective coordinate
// (third element) of each point is dropped.
func (p *Proof) fromCircom(cp *parser.CircomProof) error {
	if len(cp.PiA) < 2 || len(cp.PiC) < 2 || len(cp.PiB) < 2 || len(cp.PiB[0]) < 2 || len(cp.PiB[1]) < 2 {
		return fmt.Errorf("%w: snarkjs proof must have pi_a, pi_b and pi_c", ErrInvalidProofShape)
	}
	values := []string{cp.PiA[0], cp.PiA[1], cp.PiB[0][0], cp.PiB[0][1], cp.PiB[1][0], cp.PiB[1][1], cp.PiC[0], cp.PiC[1]}
	ints := make([]*BigInt, len(values))
	for i, v := range values {
		ints[i] = new(BigInt)
		if err := ints[i].UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidProofShape, err)
		}
	}
	p.A = [2]*BigInt{ints[0], ints[1]}
	p.B = [2][2]*BigInt{{ints[2], ints[3]}, {ints[4], ints[5]}}
	p.C = [2]*BigInt{ints[6], ints[7]}
	return nil
}

// Check returns ErrInvalidProofShape if any of the proof elements is missing.
func (p *Proof) Check() error {
	for _, v := range []*BigInt{p.A[0], p.A[1], p.B[0][0], p.B[0][1], p.B[1][0], p.B[1][1], p.C[0], p.C[1]} {
		if v == nil {
			return fmt.Errorf("%w: missing proof element", ErrInvalidProofShape)
		}
	}
	return nil
}

// PubSignals is the public signal vector of a disclosure proof.
type PubSignals []*BigInt

// Check returns ErrInvalidProofShape if the vector does not have the exact
// length expected by the verifier or has empty elements.
func (ps PubSignals) Check() error {
	if len(ps) != PubSignalsLen {
		return fmt.Errorf("%w: expected %d public signals, got %d", ErrInvalidProofShape, PubSignalsLen, len(ps))
	}
	for i, s := range ps {
		if s == nil {
			return fmt.Errorf("%w: public signal %d is empty", ErrInvalidProofShape, i)
		}
	}
	return nil
}

// Ints returns the public signals as big integers.
func (ps PubSignals) Ints() []*big.Int {
	ints := make([]*big.Int, len(ps))
	for i, s := range ps {
		ints[i] = s.MathBigInt()
	}
	return ints
}
