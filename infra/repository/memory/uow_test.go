package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/domain/fund"
	"github.com/coletivobank/coletivo/pkg/domain/request"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/coletivobank/coletivo/pkg/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedFund(t *testing.T, uow *UoW) *fund.Fund {
	t.Helper()
	f, err := fund.New().WithName("Reforma da sede").WithCreatedBy(uuid.New()).Build()
	require.NoError(t, err)
	repo, err := uow.FundRepository()
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), f))
	return f
}

func TestDo_CommitsOnSuccess(t *testing.T) {
	uow := NewUoW()
	f := seedFund(t, uow)

	err := uow.Do(context.Background(), func(tx repository.UnitOfWork) error {
		funds, err := tx.FundRepository()
		if err != nil {
			return err
		}
		got, err := funds.GetForUpdate(context.Background(), f.ID)
		if err != nil {
			return err
		}
		if err := got.Credit(money.FromSmallestUnit(5000, money.BRL)); err != nil {
			return err
		}
		return funds.Update(context.Background(), got)
	})
	require.NoError(t, err)

	funds, _ := uow.FundRepository()
	got, err := funds.Get(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), got.Balance.Amount())
}

func TestDo_RollsBackOnError(t *testing.T) {
	uow := NewUoW()
	f := seedFund(t, uow)
	boom := errors.New("boom")

	err := uow.Do(context.Background(), func(tx repository.UnitOfWork) error {
		members, _ := tx.MemberRepository()
		m := fund.NewMember(f.ID, uuid.New(), false, money.BRL, time.Now())
		require.NoError(t, members.Create(context.Background(), m))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	members, _ := uow.MemberRepository()
	list, err := members.ListByFund(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDo_NestedRollbackKeepsOuterWork(t *testing.T) {
	uow := NewUoW()
	f := seedFund(t, uow)
	a, b := uuid.New(), uuid.New()

	err := uow.Do(context.Background(), func(tx repository.UnitOfWork) error {
		members, _ := tx.MemberRepository()
		require.NoError(t, members.Create(context.Background(), fund.NewMember(f.ID, a, true, money.BRL, time.Now())))
		inner := tx.Do(context.Background(), func(inner repository.UnitOfWork) error {
			members, _ := inner.MemberRepository()
			require.NoError(t, members.Create(context.Background(), fund.NewMember(f.ID, b, false, money.BRL, time.Now())))
			return domain.ErrValidation
		})
		assert.ErrorIs(t, inner, domain.ErrValidation)
		return nil
	})
	require.NoError(t, err)

	members, _ := uow.MemberRepository()
	list, _ := members.ListByFund(context.Background(), f.ID)
	require.Len(t, list, 1)
	assert.Equal(t, a, list[0].AccountID)
}

func TestDo_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := NewUoW().Do(ctx, func(repository.UnitOfWork) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestDo_SerializesConcurrentWriters(t *testing.T) {
	uow := NewUoW()
	f := seedFund(t, uow)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = uow.Do(context.Background(), func(tx repository.UnitOfWork) error {
				funds, _ := tx.FundRepository()
				got, err := funds.GetForUpdate(context.Background(), f.ID)
				if err != nil {
					return err
				}
				if err := got.Credit(money.FromSmallestUnit(100, money.BRL)); err != nil {
					return err
				}
				return funds.Update(context.Background(), got)
			})
		}()
	}
	wg.Wait()

	funds, _ := uow.FundRepository()
	got, _ := funds.Get(context.Background(), f.ID)
	assert.Equal(t, int64(5000), got.Balance.Amount())
}

func TestRepositories_NotFoundAndConflicts(t *testing.T) {
	uow := NewUoW()
	ctx := context.Background()
	f := seedFund(t, uow)

	funds, _ := uow.FundRepository()
	_, err := funds.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, funds.Create(ctx, f), domain.ErrAlreadyExists)

	members, _ := uow.MemberRepository()
	m := fund.NewMember(f.ID, uuid.New(), true, money.BRL, time.Now())
	require.NoError(t, members.Create(ctx, m))
	assert.ErrorIs(t, members.Create(ctx, m), domain.ErrAlreadyExists)
	assert.ErrorIs(t, members.Update(ctx, fund.NewMember(f.ID, uuid.New(), false, money.BRL, time.Now())), domain.ErrNotFound)

	plan := accounting.Plan{Mode: accounting.PlanAutomatic, StartDate: time.Now().AddDate(0, 1, 0), Count: 2, Interval: accounting.IntervalMonthly}
	cr, err := request.New(f.ID, m.AccountID, money.FromSmallestUnit(1000, money.BRL), "obra", plan, time.Now())
	require.NoError(t, err)
	cr.IdempotencyKey = "chave-1"

	requests, _ := uow.RequestRepository()
	require.NoError(t, requests.Create(ctx, cr))
	dup := *cr
	dup.ID = uuid.New()
	assert.ErrorIs(t, requests.Create(ctx, &dup), domain.ErrAlreadyExists)

	got, err := requests.GetByIdempotencyKey(ctx, f.ID, m.AccountID, "chave-1")
	require.NoError(t, err)
	assert.Equal(t, cr.ID, got.ID)
	_, err = requests.GetByIdempotencyKey(ctx, f.ID, uuid.New(), "chave-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	votes, _ := uow.VoteRepository()
	v, err := request.NewVote(cr.ID, uuid.New(), true, "", time.Now())
	require.NoError(t, err)
	require.NoError(t, votes.Create(ctx, v))
	assert.ErrorIs(t, votes.Create(ctx, v), domain.ErrAlreadyExists)
}

func TestRequestRepository_ReturnsDetachedCopies(t *testing.T) {
	uow := NewUoW()
	ctx := context.Background()
	f := seedFund(t, uow)
	plan := accounting.Plan{Mode: accounting.PlanAutomatic, StartDate: time.Now().AddDate(0, 1, 0), Count: 3, Interval: accounting.IntervalMonthly}
	cr, err := request.New(f.ID, uuid.New(), money.FromSmallestUnit(900, money.BRL), "obra", plan, time.Now())
	require.NoError(t, err)

	requests, _ := uow.RequestRepository()
	require.NoError(t, requests.Create(ctx, cr))

	got, err := requests.Get(ctx, cr.ID)
	require.NoError(t, err)
	got.Installments[0].Paid = money.FromSmallestUnit(300, money.BRL)

	again, err := requests.Get(ctx, cr.ID)
	require.NoError(t, err)
	assert.True(t, again.Installments[0].Paid.IsZero())
}

func TestMemberRepository_OrdersByAccount(t *testing.T) {
	uow := NewUoW()
	ctx := context.Background()
	f := seedFund(t, uow)
	ids := []uuid.UUID{
		uuid.MustParse("cccccccc-0000-0000-0000-000000000000"),
		uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000"),
		uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000"),
	}
	members, _ := uow.MemberRepository()
	for _, id := range ids {
		require.NoError(t, members.Create(ctx, fund.NewMember(f.ID, id, false, money.BRL, time.Now())))
	}
	list, err := members.ListByFundForUpdate(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[1], list[0].AccountID)
	assert.Equal(t, ids[2], list[1].AccountID)
	assert.Equal(t, ids[0], list[2].AccountID)
}
