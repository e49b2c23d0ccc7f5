package preview_test

import (
	"testing"
	"time"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/service/preview"
	"github.com/coletivobank/coletivo/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_Automatic(t *testing.T) {
	t.Parallel()
	svc := preview.New(testutils.Logger())

	p, err := svc.Plan(testutils.BRL(1000), testutils.MonthlyPlan(3))
	require.NoError(t, err)
	assert.True(t, p.Complete)
	require.Len(t, p.Installments, 3)
	assert.Equal(t, int64(334), p.Installments[2].Amount.Amount())
	assert.True(t, p.Remaining.IsZero())

	past := testutils.MonthlyPlan(3)
	past.StartDate = time.Now().AddDate(0, 0, -2)
	_, err = svc.Plan(testutils.BRL(1000), past)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPlan_CustomPartialAndComplete(t *testing.T) {
	t.Parallel()
	svc := preview.New(testutils.Logger())
	due := time.Now().UTC().AddDate(0, 2, 0)
	plan := accounting.Plan{
		Mode:   accounting.PlanCustom,
		Custom: []accounting.CustomInstallment{{Amount: testutils.BRL(400), DueDate: due}},
	}

	p, err := svc.Plan(testutils.BRL(1000), plan)
	require.NoError(t, err)
	assert.False(t, p.Complete)
	assert.Empty(t, p.Installments)
	assert.Equal(t, int64(600), p.Remaining.Amount())

	plan.Custom = append(plan.Custom, accounting.CustomInstallment{Amount: testutils.BRL(600), DueDate: due.AddDate(0, -1, 0)})
	p, err = svc.Plan(testutils.BRL(1000), plan)
	require.NoError(t, err)
	assert.True(t, p.Complete)
	require.Len(t, p.Installments, 2)
	assert.Equal(t, int64(600), p.Installments[0].Amount.Amount(), "numbered by due date")

	plan.Custom = append(plan.Custom, accounting.CustomInstallment{Amount: testutils.BRL(1), DueDate: due})
	_, err = svc.Plan(testutils.BRL(1000), plan)
	assert.ErrorIs(t, err, domain.ErrValidation, "overshooting the total")
}
