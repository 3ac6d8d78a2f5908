// Package util holds small helpers shared by the relay packages.
package util

import (
	"math/big"
	"strings"
)

// TrimHex trims the surrounding spaces and the '0x' prefix from a hex string.
func TrimHex(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// bn254ScalarField is the scalar field of the BN254 curve, the field the
// disclosure circuit public signals live in.
var bn254ScalarField, _ = new(big.Int).SetString("21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)

// BigToFF returns the representation of iv in the BN254 scalar field. Values
// already in the field are returned as they are, the rest are reduced with
// the Euclidean modulus.
func BigToFF(iv *big.Int) *big.Int {
	if iv.Sign() >= 0 && iv.Cmp(bn254ScalarField) < 0 {
		return iv
	}
	return new(big.Int).Mod(iv, bn254ScalarField)
}
