package accounting_test

import (
	"testing"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func brl(cents int64) money.Money {
	return money.FromSmallestUnit(cents, money.BRL)
}

func TestMaxRequestable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		total     int64
		percent   int64
		want      int64
		unlimited bool
	}{
		{name: "rate 200% halves the contribution", total: 10000, percent: 200, want: 5000},
		{name: "rate 100% matches the contribution", total: 10000, percent: 100, want: 10000},
		{name: "rate 50% doubles the contribution", total: 10000, percent: 50, want: 20000},
		{name: "rate 0% is unlimited", total: 10000, percent: 0, unlimited: true},
		{name: "nothing contributed", total: 0, percent: 100, want: 0},
		{name: "floors to the cent", total: 10000, percent: 300, want: 3333},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := accounting.MaxRequestable(brl(tc.total), accounting.MustRateFromPercent(tc.percent))
			require.NoError(t, err)
			assert.Equal(t, tc.unlimited, got.Unlimited)
			if !tc.unlimited {
				assert.Equal(t, tc.want, got.Max.Amount())
			}
		})
	}
}

func TestMaxRequestableRejectsNegativeTotal(t *testing.T) {
	_, err := accounting.MaxRequestable(brl(-1), accounting.MustRateFromPercent(100))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNewRate(t *testing.T) {
	t.Run("stores four decimals", func(t *testing.T) {
		r, err := accounting.RateFromPercent(decimal.RequireFromString("33.333333"))
		require.NoError(t, err)
		assert.Equal(t, "0.3333", r.Fraction().String())
		assert.Equal(t, "33.33%", r.String())
	})
	t.Run("negative", func(t *testing.T) {
		_, err := accounting.RateFromPercent(decimal.NewFromInt(-5))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
	t.Run("below precision", func(t *testing.T) {
		_, err := accounting.NewRate(decimal.RequireFromString("0.00001"))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
	t.Run("above one hundred percent", func(t *testing.T) {
		r, err := accounting.RateFromPercent(decimal.NewFromInt(250))
		require.NoError(t, err)
		assert.Equal(t, "2.5", r.Fraction().String())
	})
}

func TestParseRate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "200", want: "200.00%"},
		{in: "33.5", want: "33.50%"},
		{in: " 50% ", want: "50.00%"},
		{in: "0", want: "0.00%"},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "-10", wantErr: true},
		{in: "0.00001", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, err := accounting.ParseRate(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.String())
		})
	}
}

func TestComputeEligibility(t *testing.T) {
	t.Parallel()
	rate := accounting.MustRateFromPercent(200)

	t.Run("limited by contributions", func(t *testing.T) {
		e, err := accounting.ComputeEligibility(accounting.Position{
			TotalContributed: brl(10000),
			CapacityCredit:   brl(0),
			Reserved:         brl(0),
		}, rate, brl(1_000_000))
		require.NoError(t, err)
		assert.Equal(t, int64(5000), e.Eligible.Amount())
		assert.False(t, e.CappedByBalance)
	})

	t.Run("limited by fund balance", func(t *testing.T) {
		e, err := accounting.ComputeEligibility(accounting.Position{
			TotalContributed: brl(10000),
			CapacityCredit:   brl(0),
			Reserved:         brl(0),
		}, rate, brl(3000))
		require.NoError(t, err)
		assert.Equal(t, int64(3000), e.Eligible.Amount())
		assert.True(t, e.CappedByBalance)
	})

	t.Run("zero rate is capped only by balance", func(t *testing.T) {
		e, err := accounting.ComputeEligibility(accounting.Position{
			TotalContributed: brl(0),
			CapacityCredit:   brl(0),
			Reserved:         brl(0),
		}, accounting.MustRateFromPercent(0), brl(777))
		require.NoError(t, err)
		assert.True(t, e.Capacity.Unlimited)
		assert.Equal(t, int64(777), e.Eligible.Amount())
	})

	t.Run("credit adds and reservations subtract", func(t *testing.T) {
		e, err := accounting.ComputeEligibility(accounting.Position{
			TotalContributed: brl(10000),
			CapacityCredit:   brl(2000),
			Reserved:         brl(4000),
		}, rate, brl(1_000_000))
		require.NoError(t, err)
		assert.Equal(t, int64(3000), e.Eligible.Amount())
	})

	t.Run("never negative", func(t *testing.T) {
		e, err := accounting.ComputeEligibility(accounting.Position{
			TotalContributed: brl(10000),
			CapacityCredit:   brl(0),
			Reserved:         brl(9000),
		}, rate, brl(-50))
		require.NoError(t, err)
		assert.True(t, e.Eligible.IsZero())
	})

	t.Run("currency mismatch", func(t *testing.T) {
		_, err := accounting.ComputeEligibility(accounting.Position{
			TotalContributed: money.FromSmallestUnit(10000, money.USD),
			CapacityCredit:   brl(0),
			Reserved:         brl(0),
		}, rate, brl(100))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestCheckRequest(t *testing.T) {
	e := accounting.Eligibility{Eligible: brl(5000)}

	assert.NoError(t, accounting.CheckRequest(brl(5000), e))
	assert.ErrorIs(t, accounting.CheckRequest(brl(0), e), domain.ErrValidation)

	err := accounting.CheckRequest(brl(5001), e)
	require.ErrorIs(t, err, domain.ErrInsufficientCapacity)
	var capErr *domain.InsufficientCapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, int64(5001), capErr.Requested.Amount())
	assert.Equal(t, int64(5000), capErr.Available.Amount())
}

// FuzzMaxRequestableInverse checks that max * rate gives back the
// contribution, up to the cent the floor dropped.
func FuzzMaxRequestableInverse(f *testing.F) {
	f.Add(int64(10000), int64(200))
	f.Add(int64(1), int64(1))
	f.Add(int64(999_999_99), int64(1000))
	f.Add(int64(12345), int64(7))
	f.Fuzz(func(t *testing.T, total, percent int64) {
		if total <= 0 || total > 1e15 || percent <= 0 || percent > 1000 {
			t.Skip()
		}
		rate := accounting.MustRateFromPercent(percent)
		c, err := accounting.MaxRequestable(brl(total), rate)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		back := decimal.NewFromInt(c.Max.Amount()).Mul(rate.Fraction())
		diff := decimal.NewFromInt(total).Sub(back)
		if diff.IsNegative() || diff.GreaterThanOrEqual(rate.Fraction()) {
			t.Errorf("max %d at %s does not invert to %d (diff %s)", c.Max.Amount(), rate, total, diff)
		}
	})
}
