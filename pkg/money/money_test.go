package money_test

import (
	"encoding/json"
	"testing"

	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		amount  string
		code    money.Code
		want    int64
		wantErr error
	}{
		{name: "whole reais", amount: "100", code: money.BRL, want: 10000},
		{name: "centavos", amount: "66.67", code: money.BRL, want: 6667},
		{name: "negative", amount: "-1.5", code: money.BRL, want: -150},
		{name: "yen has no decimals", amount: "1500", code: money.JPY, want: 1500},
		{name: "too many decimals", amount: "0.001", code: money.BRL, wantErr: money.ErrInvalidAmount},
		{name: "yen fraction", amount: "1.5", code: money.JPY, wantErr: money.ErrInvalidAmount},
		{name: "bad currency", amount: "1", code: "br", wantErr: money.ErrInvalidCurrency},
		{name: "overflow", amount: "100000000000000000000", code: money.BRL, wantErr: money.ErrInvalidAmount},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := money.New(decimal.RequireFromString(tc.amount), tc.code)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, m.Amount())
			assert.Equal(t, tc.code, m.Currency())
		})
	}
}

func TestArithmetic(t *testing.T) {
	t.Parallel()
	a := money.FromSmallestUnit(1050, money.BRL)
	b := money.FromSmallestUnit(250, money.BRL)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1300), sum.Amount())

	diff, err := b.Sub(a)
	require.NoError(t, err)
	assert.True(t, diff.IsNegative())

	lower, err := a.Min(b)
	require.NoError(t, err)
	assert.True(t, lower.Equals(b))

	gt, err := a.GreaterThan(b)
	require.NoError(t, err)
	assert.True(t, gt)

	_, err = a.Add(money.FromSmallestUnit(1, money.USD))
	assert.ErrorIs(t, err, money.ErrMismatchedCurrencies)
	_, err = a.Cmp(money.FromSmallestUnit(1, money.USD))
	assert.ErrorIs(t, err, money.ErrMismatchedCurrencies)
}

func TestStringAndJSON(t *testing.T) {
	t.Parallel()
	m := money.FromSmallestUnit(6667, money.BRL)
	assert.Equal(t, "66.67 BRL", m.String())
	assert.Equal(t, 66.67, m.Float())

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"66.67","currency":"BRL"}`, string(data))

	var back money.Money
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equals(m))

	var defaulted money.Money
	require.NoError(t, json.Unmarshal([]byte(`{"amount":12.5}`), &defaulted))
	assert.Equal(t, int64(1250), defaulted.Amount())
	assert.Equal(t, money.BRL, defaulted.Currency())
}
