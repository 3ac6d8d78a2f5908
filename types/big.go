package types

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// BigInt is a big.Int wrapper which marshals JSON to a string representation
// of the big number. Unmarshaling accepts JSON strings or numbers, in decimal
// or 0x-prefixed hexadecimal form, since proof values coming from the identity
// wallet use both.
type BigInt big.Int

// NewBigInt returns a BigInt holding the value of the given big.Int.
func NewBigInt(i *big.Int) *BigInt {
	if i == nil {
		return nil
	}
	return (*BigInt)(new(big.Int).Set(i))
}

// MarshalText returns the decimal string representation of the big number.
func (i BigInt) MarshalText() ([]byte, error) {
	return (*big.Int)(&i).MarshalText()
}

// UnmarshalText parses the text representation into the big number.
func (i *BigInt) UnmarshalText(data []byte) error {
	if i == nil {
		return fmt.Errorf("cannot unmarshal into nil BigInt")
	}
	s := strings.TrimSpace(string(data))
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	if s == "" {
		return fmt.Errorf("empty big number")
	}
	if _, ok := (*big.Int)(i).SetString(s, base); !ok {
		return fmt.Errorf("invalid big number %q", string(data))
	}
	return nil
}

// MarshalJSON encodes the number as a JSON string.
func (i BigInt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + (*big.Int)(&i).String() + `"`), nil
}

// UnmarshalJSON decodes a JSON string or a JSON number.
func (i *BigInt) UnmarshalJSON(data []byte) error {
	return i.UnmarshalText(bytes.Trim(data, `"`))
}

// MarshalCBOR encodes the number as its decimal string.
func (i BigInt) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal((*big.Int)(&i).String())
}

// UnmarshalCBOR decodes a number encoded with MarshalCBOR.
func (i *BigInt) UnmarshalCBOR(data []byte) error {
	var s string
	if err := cbor.Unmarshal(data, &s); err != nil {
		return err
	}
	return i.UnmarshalText([]byte(s))
}

// String returns the decimal representation of the number.
func (i *BigInt) String() string {
	return (*big.Int)(i).String()
}

// MathBigInt converts i to a *big.Int.
func (i *BigInt) MathBigInt() *big.Int {
	return (*big.Int)(i)
}

// SetUint64 sets the value of x to the big number.
func (i *BigInt) SetUint64(x uint64) *BigInt {
	(*big.Int)(i).SetUint64(x)
	return i
}

// Equal helper to compare BigInt objects.
func (i *BigInt) Equal(j *BigInt) bool {
	if i == nil || j == nil {
		return i == j
	}
	return (*big.Int)(i).Cmp((*big.Int)(j)) == 0
}
