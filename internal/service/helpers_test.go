package service_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func mustDecimals(t *testing.T, vals []string) []decimal.Decimal {
	t.Helper()
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = mustDecimal(t, v)
	}
	return out
}
