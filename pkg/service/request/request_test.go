package request_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/domain/events"
	"github.com/coletivobank/coletivo/pkg/domain/fund"
	"github.com/coletivobank/coletivo/pkg/domain/request"
	"github.com/coletivobank/coletivo/pkg/domain/user"
	requestsvc "github.com/coletivobank/coletivo/pkg/service/request"
	"github.com/coletivobank/coletivo/pkg/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	testutils.Quiet()
	os.Exit(m.Run())
}

// threeMembers is a 200% fund where ana put in 10000 and the others 5000 each.
func threeMembers(t *testing.T) (env *testutils.Env, f *fund.Fund, ana, bruno, caio *user.User) {
	t.Helper()
	env = testutils.NewEnv(t)
	ana, bruno, caio = env.User("ana"), env.User("bruno"), env.User("caio")
	f = env.Fund(ana, 200, bruno, caio)
	env.Contribute(f, ana, 10000)
	env.Contribute(f, bruno, 5000)
	env.Contribute(f, caio, 5000)
	return env, f, ana, bruno, caio
}

func submit(t *testing.T, env *testutils.Env, f *fund.Fund, u *user.User, cents int64) *request.CapitalRequest {
	t.Helper()
	cr, created, err := env.Requests.Submit(context.Background(), u.ID, f.ID, requestsvc.SubmitInput{
		Amount: testutils.BRL(cents),
		Reason: "reforma do telhado",
		Plan:   testutils.MonthlyPlan(3),
	})
	require.NoError(t, err)
	require.True(t, created)
	return cr
}

func TestSubmit_ReservesCapacity(t *testing.T) {
	t.Parallel()
	env, f, ana, _, _ := threeMembers(t)
	ctx := context.Background()

	e, err := env.Requests.Eligibility(ctx, ana.ID, f.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), e.Eligible.Amount())

	_, _, err = env.Requests.Submit(ctx, ana.ID, f.ID, requestsvc.SubmitInput{
		Amount: testutils.BRL(5001), Reason: "demais", Plan: testutils.MonthlyPlan(1),
	})
	var capErr *domain.InsufficientCapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, int64(5000), capErr.Available.Amount())

	cr := submit(t, env, f, ana, 3000)
	assert.Equal(t, request.StatusPending, cr.Status)
	require.Len(t, cr.Installments, 3)
	assert.Equal(t, []int64{1000, 1000, 1000}, []int64{
		cr.Installments[0].Amount.Amount(), cr.Installments[1].Amount.Amount(), cr.Installments[2].Amount.Amount(),
	})

	e, err = env.Requests.Eligibility(ctx, ana.ID, f.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), e.Eligible.Amount(), "the pending request consumes capacity")
	assert.Equal(t, int64(3000), env.Reload(f).Reserved.Amount())
	assert.Equal(t, int64(3000), env.Member(f, ana).Reserved.Amount())

	list, err := env.Requests.List(ctx, ana.ID, f.ID, request.StatusPending)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, _, err = env.Requests.Submit(ctx, ana.ID, f.ID, requestsvc.SubmitInput{
		Amount: testutils.BRL(100), Reason: "", Plan: testutils.MonthlyPlan(1),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSubmit_Idempotent(t *testing.T) {
	t.Parallel()
	env, f, ana, _, _ := threeMembers(t)
	ctx := context.Background()
	in := requestsvc.SubmitInput{
		Amount:         testutils.BRL(1500),
		Reason:         "notebook",
		Plan:           testutils.MonthlyPlan(2),
		IdempotencyKey: "pedido-1",
	}

	first, created, err := env.Requests.Submit(ctx, ana.ID, f.ID, in)
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := env.Requests.Submit(ctx, ana.ID, f.ID, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, int64(1500), env.Reload(f).Reserved.Amount(), "a replay reserves nothing")

	in.Amount = testutils.BRL(1600)
	_, _, err = env.Requests.Submit(ctx, ana.ID, f.ID, in)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestSubmit_ConcurrentIdempotent(t *testing.T) {
	t.Parallel()
	env, f, ana, _, _ := threeMembers(t)
	in := requestsvc.SubmitInput{
		Amount:         testutils.BRL(1000),
		Reason:         "bicicleta",
		Plan:           testutils.MonthlyPlan(2),
		IdempotencyKey: "mesma-chave",
	}

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 10)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cr, _, err := env.Requests.Submit(context.Background(), ana.ID, f.ID, in)
			if assert.NoError(t, err) {
				ids[i] = cr.ID
			}
		}()
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, int64(1000), env.Reload(f).Reserved.Amount())
}

func TestSubmit_ConcurrentNeverExceedsEligibility(t *testing.T) {
	t.Parallel()
	env, f, ana, _, _ := threeMembers(t)

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := env.Requests.Submit(context.Background(), ana.ID, f.ID, requestsvc.SubmitInput{
				Amount: testutils.BRL(1000), Reason: "parcela", Plan: testutils.MonthlyPlan(1),
			})
			if err == nil {
				accepted.Add(1)
				return
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientCapacity)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(5), accepted.Load())
	assert.Equal(t, int64(5000), env.Member(f, ana).Reserved.Amount())
}

func TestVote_ApprovalDisburses(t *testing.T) {
	t.Parallel()
	env, f, ana, bruno, caio := threeMembers(t)
	ctx := context.Background()
	cr := submit(t, env, f, ana, 3000)

	_, err := env.Requests.Vote(ctx, ana.ID, f.ID, cr.ID, true, "")
	assert.ErrorIs(t, err, domain.ErrForbidden, "requesters do not vote when others can")

	res, err := env.Requests.Vote(ctx, bruno.ID, f.ID, cr.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, accounting.OutcomePending, res.Outcome)
	assert.Equal(t, 2, res.Electorate)
	assert.Equal(t, 2, res.Threshold)

	_, err = env.Requests.Vote(ctx, bruno.ID, f.ID, cr.ID, true, "")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	res, err = env.Requests.Vote(ctx, caio.ID, f.ID, cr.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, accounting.OutcomeApproved, res.Outcome)
	assert.Equal(t, request.StatusApproved, res.Request.Status)
	assert.Equal(t, int64(3000), res.Request.Outstanding.Amount())

	stored := env.Reload(f)
	assert.Equal(t, int64(17000), stored.Balance.Amount())
	assert.True(t, stored.Reserved.IsZero())
	m := env.Member(f, ana)
	assert.True(t, m.Reserved.IsZero())
	assert.Equal(t, int64(3000), m.Outstanding.Amount())

	_, err = env.Requests.Vote(ctx, caio.ID, f.ID, cr.ID, false, "tarde demais")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	var decided *events.CapitalRequestDecided
	for _, e := range env.Bus.Published() {
		if d, ok := e.(*events.CapitalRequestDecided); ok {
			decided = d
		}
	}
	require.NotNil(t, decided)
	assert.Equal(t, "approved", decided.Status)
	assert.Equal(t, ana.ID, decided.AccountID)
}

func TestVote_RejectionReleases(t *testing.T) {
	t.Parallel()
	env, f, ana, bruno, _ := threeMembers(t)
	ctx := context.Background()
	cr := submit(t, env, f, ana, 2000)

	_, err := env.Requests.Vote(ctx, bruno.ID, f.ID, cr.ID, false, "  ")
	assert.ErrorIs(t, err, domain.ErrValidation, "a rejection needs a reason")

	res, err := env.Requests.Vote(ctx, bruno.ID, f.ID, cr.ID, false, "sem garantia")
	require.NoError(t, err)
	assert.Equal(t, accounting.OutcomeRejected, res.Outcome, "the threshold can no longer be met")
	assert.Equal(t, "sem garantia", res.Request.RejectionReason)

	assert.True(t, env.Reload(f).Reserved.IsZero())
	assert.True(t, env.Member(f, ana).Reserved.IsZero())

	d, err := env.Requests.Get(ctx, ana.ID, f.ID, cr.ID)
	require.NoError(t, err)
	assert.Equal(t, request.StatusRejected, d.Request.Status)
	require.Len(t, d.Votes, 1)
	assert.Equal(t, bruno.ID, d.Votes[0].VoterID)
}

func TestVote_SoleMemberVotesOnOwnRequest(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	ana := env.User("ana")
	f := env.Fund(ana, 100)
	env.Contribute(f, ana, 1000)
	cr := submit(t, env, f, ana, 1000)

	res, err := env.Requests.Vote(context.Background(), ana.ID, f.ID, cr.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, accounting.OutcomeApproved, res.Outcome)
	assert.Equal(t, 1, res.Electorate)
}

func TestVote_AdminsOnlyScope(t *testing.T) {
	t.Parallel()
	env, f, ana, bruno, caio := threeMembers(t)
	ctx := context.Background()
	_, err := env.Funds.SetGovernance(ctx, ana.ID, f.ID, accounting.GovernanceSetting{
		QuorumPercentage: 100, VotersScope: accounting.VotersAdminsOnly,
	})
	require.NoError(t, err)
	cr := submit(t, env, f, bruno, 1000)

	_, err = env.Requests.Vote(ctx, caio.ID, f.ID, cr.ID, true, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	res, err := env.Requests.Vote(ctx, ana.ID, f.ID, cr.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, accounting.OutcomeApproved, res.Outcome)
}

func TestCancel(t *testing.T) {
	t.Parallel()
	env, f, ana, bruno, _ := threeMembers(t)
	ctx := context.Background()
	cr := submit(t, env, f, ana, 2500)

	_, err := env.Requests.Cancel(ctx, bruno.ID, f.ID, cr.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := env.Requests.Cancel(ctx, ana.ID, f.ID, cr.ID)
	require.NoError(t, err)
	assert.Equal(t, request.StatusCancelled, got.Status)
	assert.True(t, env.Reload(f).Reserved.IsZero())
	assert.True(t, env.Member(f, ana).Reserved.IsZero())

	_, err = env.Requests.Cancel(ctx, ana.ID, f.ID, cr.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = env.Requests.Get(ctx, ana.ID, uuid.New(), cr.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestElectorate(t *testing.T) {
	t.Parallel()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	members := []*fund.Member{
		{AccountID: a, IsAdmin: true},
		{AccountID: b},
		{AccountID: c, IsAdmin: true},
	}
	all := accounting.GovernanceSetting{QuorumPercentage: 51, VotersScope: accounting.VotersAllMembers}
	admins := accounting.GovernanceSetting{QuorumPercentage: 51, VotersScope: accounting.VotersAdminsOnly}

	assert.Equal(t, []uuid.UUID{b, c}, requestsvc.Electorate(members, all, a))
	assert.Equal(t, []uuid.UUID{c}, requestsvc.Electorate(members, admins, a))
	assert.Equal(t, []uuid.UUID{a, c}, requestsvc.Electorate(members, admins, b))
	assert.Equal(t, []uuid.UUID{a}, requestsvc.Electorate(members[:1], admins, a), "sole eligible voter")
}
