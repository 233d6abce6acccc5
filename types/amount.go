package types

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Amount represents a token amount in base units (the smallest on-chain
// denomination). All arithmetic is integer-only — no floating point.
//
// Base units depend on the token's decimals:
//   - USDC (6 decimals): Amount{1_500_000} = 1.5 USDC
//   - CELO (18 decimals): Amount{10^18} = 1 CELO
//
// A zero-value Amount has a nil value and reports IsZero.
type Amount struct {
	value    *big.Int
	decimals uint8
}

// NewAmount creates an Amount from base units.
func NewAmount(baseUnits *big.Int, decimals uint8) Amount {
	if baseUnits == nil {
		return Amount{decimals: decimals}
	}
	return Amount{value: new(big.Int).Set(baseUnits), decimals: decimals}
}

// NewAmountFromInt64 creates an Amount from base units expressed as int64.
func NewAmountFromInt64(baseUnits int64, decimals uint8) Amount {
	return Amount{value: big.NewInt(baseUnits), decimals: decimals}
}

// ParseAmount parses a decimal string ("1.5") into base units using the
// token's decimals, matching the semantics of on-chain unit parsing.
// It rejects values with more fractional digits than the token supports.
func ParseAmount(s string, decimals uint8) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("types: parse amount: empty string")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > int(decimals) {
		return Amount{}, fmt.Errorf("types: parse amount %q: more than %d fractional digits", s, decimals)
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))

	v, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return Amount{}, fmt.Errorf("types: parse amount %q: not a decimal number", s)
	}
	if neg {
		v.Neg(v)
	}

	return Amount{value: v, decimals: decimals}, nil
}

// MustParseAmount is like ParseAmount but panics on error. Use for constants.
func MustParseAmount(s string, decimals uint8) Amount {
	a, err := ParseAmount(s, decimals)
	if err != nil {
		panic(err)
	}
	return a
}

// BaseUnits returns a copy of the amount in base units. Never nil.
func (a Amount) BaseUnits() *big.Int {
	if a.value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.value)
}

// Decimals returns the token decimals this amount is denominated in.
func (a Amount) Decimals() uint8 { return a.decimals }

// Sign returns -1, 0 or +1 depending on the sign of the amount.
func (a Amount) Sign() int {
	if a.value == nil {
		return 0
	}
	return a.value.Sign()
}

// IsZero returns true if the amount is zero (including the nil value).
func (a Amount) IsZero() bool { return a.Sign() == 0 }

// IsPositive returns true if the amount is greater than zero.
func (a Amount) IsPositive() bool { return a.Sign() > 0 }

// Add adds two Amounts. Panics if decimals don't match.
func (a Amount) Add(other Amount) Amount {
	a.assertSameScale(other)
	return Amount{value: new(big.Int).Add(a.BaseUnits(), other.BaseUnits()), decimals: a.decimals}
}

// Subtract subtracts another Amount. Panics if decimals don't match.
func (a Amount) Subtract(other Amount) Amount {
	a.assertSameScale(other)
	return Amount{value: new(big.Int).Sub(a.BaseUnits(), other.BaseUnits()), decimals: a.decimals}
}

// Cmp compares two Amounts: -1 if a < other, 0 if equal, +1 if a > other.
// Panics if decimals don't match.
func (a Amount) Cmp(other Amount) int {
	a.assertSameScale(other)
	return a.BaseUnits().Cmp(other.BaseUnits())
}

// Equal returns true if both Amounts have the same base units and decimals.
func (a Amount) Equal(other Amount) bool {
	return a.decimals == other.decimals && a.BaseUnits().Cmp(other.BaseUnits()) == 0
}

// Format returns the whole-token decimal string: Amount{1_500_000, 6} -> "1.5".
// Trailing fractional zeros are trimmed; "0" for the zero amount.
func (a Amount) Format() string {
	v := a.BaseUnits()

	neg := v.Sign() < 0
	abs := new(big.Int).Abs(v)

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(a.decimals)), nil)
	whole, frac := new(big.Int).QuoRem(abs, divisor, new(big.Int))

	result := whole.String()
	if frac.Sign() != 0 {
		fracStr := fmt.Sprintf("%0*s", a.decimals, frac.String())
		fracStr = strings.TrimRight(fracStr, "0")
		result += "." + fracStr
	}
	if neg {
		result = "-" + result
	}
	return result
}

// String returns the whole-token decimal representation.
func (a Amount) String() string { return a.Format() }

// MarshalJSON implements json.Marshaler. Base units serialize as a decimal
// string to survive JSON number precision limits.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		BaseUnits string `json:"base_units"`
		Decimals  uint8  `json:"decimals"`
		Display   string `json:"display"`
	}{
		BaseUnits: a.BaseUnits().String(),
		Decimals:  a.decimals,
		Display:   a.Format(),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var raw struct {
		BaseUnits string `json:"base_units"`
		Decimals  uint8  `json:"decimals"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.BaseUnits == "" {
		*a = Amount{decimals: raw.Decimals}
		return nil
	}
	v, ok := new(big.Int).SetString(raw.BaseUnits, 10)
	if !ok {
		return fmt.Errorf("types: unmarshal amount: invalid base units %q", raw.BaseUnits)
	}
	*a = Amount{value: v, decimals: raw.Decimals}
	return nil
}

func (a Amount) assertSameScale(other Amount) {
	if a.decimals != other.decimals {
		panic(fmt.Sprintf("amount: decimals mismatch: %d != %d", a.decimals, other.decimals))
	}
}
