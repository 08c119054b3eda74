package numeric_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
	"github.com/alanyoungcy/lmsrmarket/internal/numeric"
)

func TestParseCollateral_OneToken(t *testing.T) {
	v, err := numeric.ParseCollateral("1.0")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", v.String())
}

func TestParseCollateral_Rejects(t *testing.T) {
	for _, in := range []string{"", "abc", "0", "-1", "0.0000000000000000001"} {
		_, err := numeric.ParseCollateral(in)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, "input %q", in)
	}
}

func TestScaleBound_Scalar18(t *testing.T) {
	lo, err := numeric.ScaleBound("0", 18)
	require.NoError(t, err)
	hi, err := numeric.ScaleBound("100", 18)
	require.NoError(t, err)

	assert.Equal(t, "0", lo.String())
	assert.Equal(t, "100000000000000000000", hi.String())
}

func TestScaleBound_RoundTrip(t *testing.T) {
	cases := []struct {
		bound    string
		decimals int32
	}{
		{"0", 18},
		{"100", 18},
		{"-40.5", 2},
		{"12345.678", 3},
		{"0.000001", 6},
	}
	for _, c := range cases {
		base, err := numeric.ScaleBound(c.bound, c.decimals)
		require.NoError(t, err)

		back, err := numeric.UnscaleBound(base.String(), c.decimals)
		require.NoError(t, err)
		assert.True(t, back.Equal(decimal.RequireFromString(c.bound)), "%s@%d -> %s", c.bound, c.decimals, back)
	}
}

func TestScaleBound_TooPrecise(t *testing.T) {
	_, err := numeric.ScaleBound("1.234", 2)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestParseFunding(t *testing.T) {
	v, err := numeric.ParseFunding("5000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "5", numeric.FromBase(v, numeric.CollateralDecimals).String())

	_, err = numeric.ParseFunding("-1")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = numeric.ParseFunding("1.5")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestToDecimals(t *testing.T) {
	ds, err := numeric.ToDecimals([]string{"0", "-3", "1000000000000000000"})
	require.NoError(t, err)
	require.Len(t, ds, 3)
	assert.Equal(t, "-3", ds[1].String())

	_, err = numeric.ToDecimals([]string{"1", "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}
