// Package lmsr implements the Logarithmic Market Scoring Rule used by the
// on-chain LMSR market maker.
//
// The cost of a market state q is
//
//	C(q) = b * ln(sum_i exp(q_i / b))
//
// where the liquidity parameter b is derived from the market funding F and
// the number of outcomes n as b = F / ln(n), so F is the worst-case loss of
// the market maker. All quantities are base units of the collateral and
// outcome tokens; the arithmetic runs on shopspring/decimal at a fixed
// precision so repeated calls are bit-for-bit reproducible.
package lmsr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Precision is the number of fractional digits kept by every exp, ln and
// division in this package.
const Precision int32 = 40

// ErrInvalidParams is returned for parameter combinations that have no
// well-defined price.
var ErrInvalidParams = errors.New("lmsr: invalid parameters")

// Params describes the market state a computation runs against, plus the
// per-function input (Cost for OutcomeTokenCount, OutcomeTokenCount for
// Cost).
type Params struct {
	NetOutcomeTokensSold []decimal.Decimal
	Funding              decimal.Decimal
	OutcomeTokenIndex    int

	Cost              decimal.Decimal
	OutcomeTokenCount decimal.Decimal
}

// OutcomeTokenCount returns how many tokens of the selected outcome can be
// bought for p.Cost collateral. It inverts the cost function:
//
//	x = b * ln(e^(c/b) + (e^(c/b) - 1) * sum_{i!=k} e^((q_i - q_k)/b))
//
// evaluated in log space as
//
//	x = c + b * (s + ln(e^(-s) + (1 - e^(-c/b)) * sum_{i!=k} e^(d_i - s)))
//
// with d_i = (q_i - q_k)/b and s = max(0, d_i), so no exponent is positive.
// The result is non-decreasing in p.Cost.
func OutcomeTokenCount(p Params) (decimal.Decimal, error) {
	b, err := validate(p)
	if err != nil {
		return decimal.Zero, err
	}
	if p.Cost.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: cost must not be negative", ErrInvalidParams)
	}
	if p.Cost.IsZero() {
		return decimal.Zero, nil
	}

	qk := p.NetOutcomeTokensSold[p.OutcomeTokenIndex]
	offsets := make([]decimal.Decimal, 0, len(p.NetOutcomeTokensSold)-1)
	shift := decimal.Zero
	for i, q := range p.NetOutcomeTokensSold {
		if i == p.OutcomeTokenIndex {
			continue
		}
		d := q.Sub(qk).DivRound(b, Precision)
		offsets = append(offsets, d)
		if d.GreaterThan(shift) {
			shift = d
		}
	}

	eShift, err := exp(shift.Neg())
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, d := range offsets {
		e, err := exp(d.Sub(shift))
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(e)
	}
	growth, err := oneMinusExpNeg(p.Cost.DivRound(b, Precision))
	if err != nil {
		return decimal.Zero, err
	}

	inner := eShift.Add(growth.Mul(sum))
	if inner.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: cost %s is below the representable precision", ErrInvalidParams, p.Cost)
	}
	l, err := ln(inner)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Cost.Add(b.Mul(shift.Add(l))).Round(Precision), nil
}

// Cost returns the collateral needed to buy p.OutcomeTokenCount tokens of
// the selected outcome. A negative count prices a sale and yields a
// negative cost.
func Cost(p Params) (decimal.Decimal, error) {
	if _, err := validate(p); err != nil {
		return decimal.Zero, err
	}
	delta := make([]decimal.Decimal, len(p.NetOutcomeTokensSold))
	for i := range delta {
		delta[i] = decimal.Zero
	}
	delta[p.OutcomeTokenIndex] = p.OutcomeTokenCount
	return TradeCost(p.NetOutcomeTokensSold, p.Funding, delta)
}

// TradeCost returns C(q + delta) - C(q): the collateral required to move
// the market from netOutcomeTokensSold by the given trade vector.
func TradeCost(netOutcomeTokensSold []decimal.Decimal, funding decimal.Decimal, delta []decimal.Decimal) (decimal.Decimal, error) {
	b, err := liquidity(netOutcomeTokensSold, funding)
	if err != nil {
		return decimal.Zero, err
	}
	if len(delta) != len(netOutcomeTokensSold) {
		return decimal.Zero, fmt.Errorf("%w: trade vector has %d entries for %d outcomes",
			ErrInvalidParams, len(delta), len(netOutcomeTokensSold))
	}

	after := make([]decimal.Decimal, len(netOutcomeTokensSold))
	for i, q := range netOutcomeTokensSold {
		after[i] = q.Add(delta[i])
	}

	before, err := costFunction(netOutcomeTokensSold, b)
	if err != nil {
		return decimal.Zero, err
	}
	next, err := costFunction(after, b)
	if err != nil {
		return decimal.Zero, err
	}
	return next.Sub(before).Round(Precision), nil
}

// MarginalPrice returns the instantaneous price of the selected outcome,
// exp(q_k/b) / sum_i exp(q_i/b). Prices lie in [0, 1] and sum to 1 across
// outcomes.
func MarginalPrice(p Params) (decimal.Decimal, error) {
	b, err := validate(p)
	if err != nil {
		return decimal.Zero, err
	}

	scaled, m := scaledMax(p.NetOutcomeTokensSold, b)
	sum := decimal.Zero
	var num decimal.Decimal
	for i, s := range scaled {
		e, err := exp(s.Sub(m))
		if err != nil {
			return decimal.Zero, err
		}
		if i == p.OutcomeTokenIndex {
			num = e
		}
		sum = sum.Add(e)
	}
	return num.DivRound(sum, Precision), nil
}

// costFunction evaluates C(q) with the log-sum-exp shift so no exponent is
// positive.
func costFunction(q []decimal.Decimal, b decimal.Decimal) (decimal.Decimal, error) {
	scaled, m := scaledMax(q, b)
	sum := decimal.Zero
	for _, s := range scaled {
		e, err := exp(s.Sub(m))
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(e)
	}
	l, err := ln(sum)
	if err != nil {
		return decimal.Zero, err
	}
	return b.Mul(m.Add(l)), nil
}

// scaledMax returns q_i/b for every outcome and the largest of them.
func scaledMax(q []decimal.Decimal, b decimal.Decimal) ([]decimal.Decimal, decimal.Decimal) {
	scaled := make([]decimal.Decimal, len(q))
	var m decimal.Decimal
	for i, v := range q {
		scaled[i] = v.DivRound(b, Precision)
		if i == 0 || scaled[i].GreaterThan(m) {
			m = scaled[i]
		}
	}
	return scaled, m
}

func validate(p Params) (decimal.Decimal, error) {
	b, err := liquidity(p.NetOutcomeTokensSold, p.Funding)
	if err != nil {
		return decimal.Zero, err
	}
	if p.OutcomeTokenIndex < 0 || p.OutcomeTokenIndex >= len(p.NetOutcomeTokensSold) {
		return decimal.Zero, fmt.Errorf("%w: outcome index %d out of range [0, %d)",
			ErrInvalidParams, p.OutcomeTokenIndex, len(p.NetOutcomeTokensSold))
	}
	return b, nil
}

// liquidity derives b = funding / ln(n).
func liquidity(q []decimal.Decimal, funding decimal.Decimal) (decimal.Decimal, error) {
	if len(q) < 2 {
		return decimal.Zero, fmt.Errorf("%w: need at least 2 outcomes, got %d", ErrInvalidParams, len(q))
	}
	if funding.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: funding must be positive", ErrInvalidParams)
	}
	lnN, err := ln(decimal.NewFromInt(int64(len(q))))
	if err != nil {
		return decimal.Zero, err
	}
	return funding.DivRound(lnN, Precision), nil
}

// expFloor is -(Precision+1)*ln(10). exp of anything below it rounds to
// zero at Precision digits.
var expFloor = decimal.NewFromFloat(-2.302585092994046).Mul(decimal.NewFromInt32(Precision + 1))

// maxExponent bounds positive exponents. Every caller passes x <= 0; the
// bound keeps ExpTaylor's term count finite regardless.
var maxExponent = decimal.NewFromInt(64)

func exp(x decimal.Decimal) (decimal.Decimal, error) {
	if x.LessThan(expFloor) {
		return decimal.Zero, nil
	}
	if x.GreaterThan(maxExponent) {
		return decimal.Zero, fmt.Errorf("%w: exponent %s out of range", ErrInvalidParams, x.String())
	}
	e, err := x.ExpTaylor(Precision)
	if err != nil {
		return decimal.Zero, fmt.Errorf("lmsr: exp(%s): %w", x.String(), err)
	}
	return e, nil
}

// oneMinusExpNeg returns 1 - e^(-r) for r >= 0. Small r uses the series
// r - r^2/2! + r^3/3! - ... so the result keeps its relative precision.
func oneMinusExpNeg(r decimal.Decimal) (decimal.Decimal, error) {
	if r.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		e, err := exp(r.Neg())
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromInt(1).Sub(e), nil
	}
	eps := decimal.New(1, -2*Precision)
	sum := decimal.Zero
	term := r
	for k := int64(1); term.Abs().GreaterThan(eps) && k < 200; k++ {
		sum = sum.Add(term)
		term = term.Mul(r).Neg().DivRound(decimal.NewFromInt(k+1), 2*Precision)
	}
	return sum.Round(2 * Precision), nil
}

func ln(x decimal.Decimal) (decimal.Decimal, error) {
	l, err := x.Ln(Precision)
	if err != nil {
		return decimal.Zero, fmt.Errorf("lmsr: ln(%s): %w", x.String(), err)
	}
	return l, nil
}
