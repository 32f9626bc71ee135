// Package numeric provides the checked unsigned 256-bit integer used by all
// contract arithmetic. No operation wraps around: every overflow, underflow
// or division by zero is returned as an error.
package numeric

import (
	"encoding/json"
	"errors"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

var (
	ErrOverflow       = errors.New("numeric overflow")
	ErrUnderflow      = errors.New("numeric underflow")
	ErrDivisionByZero = errors.New("division by zero")
	ErrInvalidNumber  = errors.New("invalid number")
)

// Int is an immutable uint256 value.
type Int struct {
	v uint256.Int
}

// Zero returns a new zero value.
func Zero() *Int {
	return new(Int)
}

// NewInt returns a value holding u.
func NewInt(u uint64) *Int {
	n := new(Int)
	n.v.SetUint64(u)
	return n
}

// FromDecimal parses a base 10 string. Leading "+" and "-" signs are rejected
// along with anything that is not a plain digit string.
func FromDecimal(s string) (*Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidNumber
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return nil, ErrInvalidNumber
		}
	}
	n := new(Int)
	if err := n.v.SetFromDecimal(s); err != nil {
		if errors.Is(err, uint256.ErrBig256Range) {
			return nil, ErrOverflow
		}
		return nil, ErrInvalidNumber
	}
	return n, nil
}

// FromBig converts b, failing for negative values and values >= 2^256.
func FromBig(b *big.Int) (*Int, error) {
	if b == nil {
		return nil, ErrInvalidNumber
	}
	if b.Sign() < 0 {
		return nil, ErrUnderflow
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return nil, ErrOverflow
	}
	n := new(Int)
	n.v.Set(u)
	return n, nil
}

// MustDecimal is FromDecimal for constants, it panics on bad input.
func MustDecimal(s string) *Int {
	n, err := FromDecimal(s)
	if err != nil {
		panic(err)
	}
	return n
}

func (a *Int) Add(b *Int) (*Int, error) {
	n := new(Int)
	if _, overflow := n.v.AddOverflow(&a.v, &b.v); overflow {
		return nil, ErrOverflow
	}
	return n, nil
}

func (a *Int) Sub(b *Int) (*Int, error) {
	n := new(Int)
	if _, underflow := n.v.SubOverflow(&a.v, &b.v); underflow {
		return nil, ErrUnderflow
	}
	return n, nil
}

func (a *Int) Mul(b *Int) (*Int, error) {
	n := new(Int)
	if _, overflow := n.v.MulOverflow(&a.v, &b.v); overflow {
		return nil, ErrOverflow
	}
	return n, nil
}

func (a *Int) Div(b *Int) (*Int, error) {
	if b.v.IsZero() {
		return nil, ErrDivisionByZero
	}
	n := new(Int)
	n.v.Div(&a.v, &b.v)
	return n, nil
}

func (a *Int) Mod(b *Int) (*Int, error) {
	if b.v.IsZero() {
		return nil, ErrDivisionByZero
	}
	n := new(Int)
	n.v.Mod(&a.v, &b.v)
	return n, nil
}

// MulDiv computes a*b/c with a 512-bit intermediate product, only the
// quotient has to fit in 256 bits.
func MulDiv(a, b, c *Int) (*Int, error) {
	if c.v.IsZero() {
		return nil, ErrDivisionByZero
	}
	n := new(Int)
	if _, overflow := n.v.MulDivOverflow(&a.v, &b.v, &c.v); overflow {
		return nil, ErrOverflow
	}
	return n, nil
}

func (a *Int) Cmp(b *Int) int {
	return a.v.Cmp(&b.v)
}

func (a *Int) Lt(b *Int) bool {
	return a.v.Lt(&b.v)
}

func (a *Int) Gt(b *Int) bool {
	return a.v.Gt(&b.v)
}

func (a *Int) Eq(b *Int) bool {
	return a.v.Eq(&b.v)
}

func (a *Int) IsZero() bool {
	return a.v.IsZero()
}

// Uint64 returns the value and whether it fits in 64 bits.
func (a *Int) Uint64() (uint64, bool) {
	if !a.v.IsUint64() {
		return 0, false
	}
	return a.v.Uint64(), true
}

func (a *Int) Big() *big.Int {
	return a.v.ToBig()
}

// String renders base 10.
func (a *Int) String() string {
	return a.v.Dec()
}

// MarshalJSON encodes as a decimal string so values survive JSON
// consumers limited to float64.
func (a *Int) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Int) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// bare numbers are accepted as well
		s = string(data)
	}
	n, err := FromDecimal(s)
	if err != nil {
		return err
	}
	a.v.Set(&n.v)
	return nil
}
