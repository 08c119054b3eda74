// Package numeric converts between human-readable decimal amounts and the
// integer base units that contracts operate on. All arithmetic goes through
// shopspring/decimal so conversions never pick up floating-point drift.
package numeric

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

// CollateralDecimals is the decimal exponent of the wrapped collateral
// token: one whole token is 10^18 base units.
const CollateralDecimals int32 = 18

// Parse reads a decimal string. Empty or malformed input fails with
// domain.ErrInvalidAmount.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty value", domain.ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", domain.ErrInvalidAmount, s, err)
	}
	return d, nil
}

// ToBase multiplies d by 10^decimals. The result must be an integer; a
// value with more fractional digits than decimals is rejected rather than
// silently truncated.
func ToBase(d decimal.Decimal, decimals int32) (*big.Int, error) {
	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: %s has more than %d fractional digits", domain.ErrInvalidAmount, d.String(), decimals)
	}
	return scaled.BigInt(), nil
}

// FromBase divides a base-unit integer by 10^decimals.
func FromBase(base *big.Int, decimals int32) decimal.Decimal {
	if base == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(base, -decimals)
}

// ParseBase reads a base-unit integer string such as "5000000000000000000".
// A value written in decimal notation is accepted only if it is integral.
func ParseBase(s string) (*big.Int, error) {
	d, err := Parse(s)
	if err != nil {
		return nil, err
	}
	if !d.IsInteger() {
		return nil, fmt.Errorf("%w: base-unit value %q is not an integer", domain.ErrInvalidAmount, s)
	}
	return d.BigInt(), nil
}

// ParseCollateral converts a positive human collateral amount ("1.5") into
// base units of the wrapped token.
func ParseCollateral(s string) (*big.Int, error) {
	d, err := Parse(s)
	if err != nil {
		return nil, err
	}
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("%w: collateral amount must be positive, got %s", domain.ErrInvalidAmount, s)
	}
	return ToBase(d, CollateralDecimals)
}

// ParseFunding reads a non-negative base-unit funding amount.
func ParseFunding(s string) (*big.Int, error) {
	v, err := ParseBase(s)
	if err != nil {
		return nil, err
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: funding must not be negative, got %s", domain.ErrInvalidAmount, s)
	}
	return v, nil
}

// ScaleBound converts a human scalar-event bound to its on-chain integer
// value, bound × 10^decimals. Bounds may be negative.
func ScaleBound(bound string, decimals int32) (*big.Int, error) {
	d, err := Parse(bound)
	if err != nil {
		return nil, err
	}
	return ToBase(d, decimals)
}

// UnscaleBound reverses ScaleBound for display.
func UnscaleBound(base string, decimals int32) (decimal.Decimal, error) {
	v, err := ParseBase(base)
	if err != nil {
		return decimal.Zero, err
	}
	return FromBase(v, decimals), nil
}

// ToDecimals converts base-unit integer strings to decimals without
// rescaling, for feeding on-chain quantities into LMSR arithmetic.
func ToDecimals(values []string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		d, err := ParseBase(v)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		out[i] = decimal.NewFromBigInt(d, 0)
	}
	return out, nil
}
