package accounting_test

import (
	"testing"
	"time"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dates(items []accounting.Installment) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.DueDate.Format(time.DateOnly)
	}
	return out
}

func TestAutomaticPlanAmounts(t *testing.T) {
	t.Parallel()
	items, err := accounting.AutomaticPlan{
		Total:     brl(10000),
		StartDate: day(2026, 1, 10),
		Count:     3,
		Interval:  accounting.IntervalMonthly,
	}.Schedule()
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, int64(3333), items[0].Amount.Amount())
	assert.Equal(t, int64(3333), items[1].Amount.Amount())
	assert.Equal(t, int64(3334), items[2].Amount.Amount())
	assert.Equal(t, []int{1, 2, 3}, []int{items[0].Number, items[1].Number, items[2].Number})

	sum, err := accounting.SumInstallments(items)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), sum.Amount())
}

func TestAutomaticPlanIntervals(t *testing.T) {
	t.Parallel()
	tests := []struct {
		interval accounting.Interval
		start    time.Time
		want     []string
	}{
		{accounting.IntervalDaily, day(2026, 2, 27), []string{"2026-02-27", "2026-02-28", "2026-03-01"}},
		{accounting.IntervalWeekly, day(2026, 12, 24), []string{"2026-12-24", "2026-12-31", "2027-01-07"}},
		{accounting.IntervalMonthly, day(2027, 1, 31), []string{"2027-01-31", "2027-02-28", "2027-03-31", "2027-04-30"}},
		{accounting.IntervalMonthly, day(2028, 1, 31), []string{"2028-01-31", "2028-02-29", "2028-03-31"}},
		{accounting.IntervalBimonthly, day(2026, 12, 31), []string{"2026-12-31", "2027-02-28", "2027-04-30"}},
		{accounting.IntervalQuarterly, day(2026, 11, 30), []string{"2026-11-30", "2027-02-28", "2027-05-30"}},
		{accounting.IntervalSemiannual, day(2026, 8, 31), []string{"2026-08-31", "2027-02-28", "2027-08-31"}},
		{accounting.IntervalAnnual, day(2028, 2, 29), []string{"2028-02-29", "2029-02-28", "2030-02-28"}},
	}
	for _, tc := range tests {
		t.Run(string(tc.interval)+" from "+tc.start.Format(time.DateOnly), func(t *testing.T) {
			items, err := accounting.AutomaticPlan{
				Total:     brl(100000),
				StartDate: tc.start,
				Count:     len(tc.want),
				Interval:  tc.interval,
			}.Schedule()
			require.NoError(t, err)
			assert.Equal(t, tc.want, dates(items))
		})
	}
}

func TestAutomaticPlanValidation(t *testing.T) {
	t.Parallel()
	start := day(2026, 1, 1)
	tests := []struct {
		name string
		plan accounting.AutomaticPlan
	}{
		{"below one cent per installment", accounting.AutomaticPlan{Total: brl(5), StartDate: start, Count: 6, Interval: accounting.IntervalMonthly}},
		{"zero count", accounting.AutomaticPlan{Total: brl(500), StartDate: start, Count: 0, Interval: accounting.IntervalMonthly}},
		{"too many installments", accounting.AutomaticPlan{Total: brl(1_000_000), StartDate: start, Count: accounting.MaxInstallments + 1, Interval: accounting.IntervalDaily}},
		{"zero total", accounting.AutomaticPlan{Total: brl(0), StartDate: start, Count: 1, Interval: accounting.IntervalMonthly}},
		{"no start date", accounting.AutomaticPlan{Total: brl(500), Count: 1, Interval: accounting.IntervalMonthly}},
		{"unknown interval", accounting.AutomaticPlan{Total: brl(500), StartDate: start, Count: 1, Interval: "fortnightly"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.plan.Schedule()
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	items, err := accounting.AutomaticPlan{
		Total: brl(6), StartDate: start, Count: 6, Interval: accounting.IntervalMonthly,
	}.Schedule()
	require.NoError(t, err, "exactly one cent per installment is allowed")
	assert.Len(t, items, 6)
}

func TestParseInterval(t *testing.T) {
	for in, want := range map[string]accounting.Interval{
		"monthly":    accounting.IntervalMonthly,
		"Mensal":     accounting.IntervalMonthly,
		"biannual":   accounting.IntervalSemiannual,
		"semestral":  accounting.IntervalSemiannual,
		"trimestral": accounting.IntervalQuarterly,
		"yearly":     accounting.IntervalAnnual,
	} {
		got, err := accounting.ParseInterval(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := accounting.ParseInterval("hourly")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCustomPlanBuilder(t *testing.T) {
	today := day(2026, 10, 14)
	b, err := accounting.NewCustomPlanBuilder(brl(30000), today)
	require.NoError(t, err)

	require.NoError(t, b.Add(accounting.CustomInstallment{Amount: brl(10000), DueDate: day(2026, 12, 1)}))
	require.NoError(t, b.Add(accounting.CustomInstallment{Amount: brl(5000), DueDate: day(2026, 11, 1)}))
	assert.Equal(t, int64(15000), b.Remaining().Amount())

	err = b.Add(accounting.CustomInstallment{Amount: brl(15001), DueDate: day(2027, 1, 1)})
	assert.ErrorIs(t, err, domain.ErrValidation, "exceeding the remaining balance is rejected")
	assert.Equal(t, int64(15000), b.Remaining().Amount(), "a rejected addition changes nothing")

	err = b.Add(accounting.CustomInstallment{Amount: brl(100), DueDate: day(2026, 10, 13)})
	assert.ErrorIs(t, err, domain.ErrValidation, "past dates are rejected")

	_, err = b.Finalize()
	assert.ErrorIs(t, err, domain.ErrValidation, "cannot finalize with a balance left")

	require.NoError(t, b.Add(accounting.CustomInstallment{Amount: brl(15000), DueDate: today}))
	items, err := b.Finalize()
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-14", "2026-11-01", "2026-12-01"}, dates(items))
	assert.Equal(t, []int64{15000, 5000, 10000}, []int64{
		items[0].Amount.Amount(), items[1].Amount.Amount(), items[2].Amount.Amount(),
	})
	assert.Equal(t, 3, items[2].Number)
}

func TestCustomScheduleValidation(t *testing.T) {
	today := day(2026, 10, 14)
	_, err := accounting.CustomSchedule(brl(1000), []accounting.CustomInstallment{
		{Amount: brl(0), DueDate: today},
	}, today)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = accounting.CustomSchedule(brl(1000), nil, today)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = accounting.CustomSchedule(brl(1000), []accounting.CustomInstallment{
		{Amount: money.FromSmallestUnit(1000, money.USD), DueDate: today},
	}, today)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPlanSchedule(t *testing.T) {
	today := day(2026, 10, 14)

	items, err := accounting.Plan{
		Mode:      accounting.PlanAutomatic,
		StartDate: day(2026, 11, 1),
		Count:     2,
		Interval:  accounting.IntervalMonthly,
	}.Schedule(brl(1001), today)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-11-01", "2026-12-01"}, dates(items))
	assert.Equal(t, int64(501), items[1].Amount.Amount())

	_, err = accounting.Plan{
		Mode:      accounting.PlanAutomatic,
		StartDate: day(2026, 10, 1),
		Count:     2,
		Interval:  accounting.IntervalMonthly,
	}.Schedule(brl(1001), today)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = accounting.Plan{Mode: "lump"}.Schedule(brl(1001), today)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func FuzzAutomaticPlanSum(f *testing.F) {
	f.Add(int64(10000), 3, 2)
	f.Add(int64(1), 1, 0)
	f.Add(int64(99999999), 360, 6)
	f.Fuzz(func(t *testing.T, total int64, count int, iv int) {
		intervals := []accounting.Interval{
			accounting.IntervalDaily, accounting.IntervalWeekly, accounting.IntervalMonthly,
			accounting.IntervalBimonthly, accounting.IntervalQuarterly,
			accounting.IntervalSemiannual, accounting.IntervalAnnual,
		}
		if total <= 0 || total > 1e15 || count < 1 || count > accounting.MaxInstallments || iv < 0 || iv >= len(intervals) {
			t.Skip()
		}
		items, err := accounting.AutomaticPlan{
			Total:     brl(total),
			StartDate: day(2027, 1, 31),
			Count:     count,
			Interval:  intervals[iv],
		}.Schedule()
		if total < int64(count) {
			if err == nil {
				t.Fatalf("expected rejection for %d over %d", total, count)
			}
			return
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		sum, _ := accounting.SumInstallments(items)
		if sum.Amount() != total {
			t.Errorf("installments sum to %d, want %d", sum.Amount(), total)
		}
		for i := 1; i < len(items); i++ {
			if !items[i].DueDate.After(items[i-1].DueDate) {
				t.Errorf("installment %d is not after %d", i+1, i)
			}
		}
	})
}
