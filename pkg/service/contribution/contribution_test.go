package contribution_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/domain/events"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/coletivobank/coletivo/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	testutils.Quiet()
	os.Exit(m.Run())
}

func TestContribute(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	ctx := context.Background()
	ana, bruno, caio := env.User("ana"), env.User("bruno"), env.User("caio")
	f := env.Fund(ana, 100, bruno)

	c, err := env.Contributions.Contribute(ctx, bruno.ID, f.ID, testutils.BRL(2550), "janeiro")
	require.NoError(t, err)
	assert.Equal(t, "janeiro", c.Note)

	assert.Equal(t, int64(2550), env.Reload(f).Balance.Amount())
	assert.Equal(t, int64(2550), env.Member(f, bruno).TotalContributed.Amount())

	published := env.Bus.Published()
	require.Len(t, published, 1)
	ev, ok := published[0].(*events.ContributionRecorded)
	require.True(t, ok)
	assert.Equal(t, c.ID, ev.ContributionID)
	assert.Equal(t, int64(2550), ev.FundBalance.Amount())

	_, err = env.Contributions.Contribute(ctx, caio.ID, f.ID, testutils.BRL(100), "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = env.Contributions.Contribute(ctx, bruno.ID, f.ID, testutils.BRL(0), "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.Contributions.Contribute(ctx, bruno.ID, f.ID, money.FromSmallestUnit(100, money.USD), "")
	assert.ErrorIs(t, err, domain.ErrValidation, "currency must match the fund")

	assert.Equal(t, int64(2550), env.Reload(f).Balance.Amount(), "failed contributions change nothing")
	assert.Len(t, env.Bus.Published(), 1)
}

func TestList(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	ctx := context.Background()
	ana, bruno, caio := env.User("ana"), env.User("bruno"), env.User("caio")
	f := env.Fund(ana, 100, bruno)
	env.Contribute(f, ana, 100)
	env.Contribute(f, bruno, 200)
	env.Contribute(f, ana, 300)

	all, err := env.Contributions.List(ctx, bruno.ID, f.ID, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(300), all[0].Amount.Amount(), "newest first")

	anas, err := env.Contributions.List(ctx, bruno.ID, f.ID, &ana.ID)
	require.NoError(t, err)
	assert.Len(t, anas, 2)

	_, err = env.Contributions.List(ctx, caio.ID, f.ID, nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestContribute_Concurrent(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	ana, bruno := env.User("ana"), env.User("bruno")
	f := env.Fund(ana, 100, bruno)

	var wg sync.WaitGroup
	for i := range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			who := ana
			if i%2 == 1 {
				who = bruno
			}
			_, err := env.Contributions.Contribute(context.Background(), who.ID, f.ID, testutils.BRL(125), "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5000), env.Reload(f).Balance.Amount())
	assert.Equal(t, int64(2500), env.Member(f, ana).TotalContributed.Amount())
	assert.Equal(t, int64(2500), env.Member(f, bruno).TotalContributed.Amount())
}
