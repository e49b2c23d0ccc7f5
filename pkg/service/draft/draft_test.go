package draft_test

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coletivobank/coletivo/infra/cache"
	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/domain/contribution"
	"github.com/coletivobank/coletivo/pkg/domain/draft"
	"github.com/coletivobank/coletivo/pkg/domain/fund"
	"github.com/coletivobank/coletivo/pkg/domain/request"
	"github.com/coletivobank/coletivo/pkg/money"
	draftsvc "github.com/coletivobank/coletivo/pkg/service/draft"
	fundsvc "github.com/coletivobank/coletivo/pkg/service/fund"
	requestsvc "github.com/coletivobank/coletivo/pkg/service/request"
	"github.com/coletivobank/coletivo/pkg/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	testutils.Quiet()
	os.Exit(m.Run())
}

type fundsMock struct{ mock.Mock }

func (m *fundsMock) Create(ctx context.Context, creator uuid.UUID, in fundsvc.CreateInput) (*fund.Fund, error) {
	args := m.Called(ctx, creator, in)
	f, _ := args.Get(0).(*fund.Fund)
	return f, args.Error(1)
}

func (m *fundsMock) Get(ctx context.Context, actor, fundID uuid.UUID) (*fund.Fund, error) {
	args := m.Called(ctx, actor, fundID)
	f, _ := args.Get(0).(*fund.Fund)
	return f, args.Error(1)
}

type contributionsMock struct{ mock.Mock }

func (m *contributionsMock) Contribute(
	ctx context.Context,
	actor, fundID uuid.UUID,
	amount money.Money,
	note string,
) (*contribution.Contribution, error) {
	args := m.Called(ctx, actor, fundID, amount, note)
	c, _ := args.Get(0).(*contribution.Contribution)
	return c, args.Error(1)
}

type requestsMock struct{ mock.Mock }

func (m *requestsMock) Submit(
	ctx context.Context,
	actor, fundID uuid.UUID,
	in requestsvc.SubmitInput,
) (*request.CapitalRequest, bool, error) {
	args := m.Called(ctx, actor, fundID, in)
	cr, _ := args.Get(0).(*request.CapitalRequest)
	return cr, args.Bool(1), args.Error(2)
}

func newService(t *testing.T) (*draftsvc.Service, *fundsMock, *contributionsMock, *requestsMock) {
	t.Helper()
	store := cache.NewMemoryDraftStore(time.Minute)
	t.Cleanup(store.Close)
	funds, contributions, requests := &fundsMock{}, &contributionsMock{}, &requestsMock{}
	svc := draftsvc.New(store, time.Hour, funds, contributions, requests, testutils.Logger())
	return svc, funds, contributions, requests
}

func TestLifecycle(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newService(t)
	ctx := context.Background()
	owner, stranger := uuid.New(), uuid.New()

	d, err := svc.Start(ctx, owner, draft.KindFund, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(d.Payload))

	_, err = svc.Get(ctx, stranger, d.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "drafts are private")

	updated, err := svc.Update(ctx, owner, d.ID, json.RawMessage(`{"name":"Viagem"}`), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Step)

	_, err = svc.Update(ctx, owner, d.ID, json.RawMessage(`{nope`), 2)
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := svc.Get(ctx, owner, d.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Viagem"}`, string(got.Payload))

	require.NoError(t, svc.Discard(ctx, owner, d.ID))
	_, err = svc.Get(ctx, owner, d.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Start(ctx, owner, draft.Kind("loan"), nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCommit_Fund(t *testing.T) {
	t.Parallel()
	svc, funds, _, _ := newService(t)
	ctx := context.Background()
	owner := uuid.New()

	d, err := svc.Start(ctx, owner, draft.KindFund,
		json.RawMessage(`{"name":"Obra","currency":"usd","contribution_rate_percent":"150"}`))
	require.NoError(t, err)

	created := &fund.Fund{ID: uuid.New(), Name: "Obra"}
	funds.On("Create", mock.Anything, owner, mock.MatchedBy(func(in fundsvc.CreateInput) bool {
		return in.Name == "Obra" && in.Currency == money.USD &&
			in.ContributionRate != nil && in.ContributionRate.String() == "150.00%"
	})).Return(created, nil).Once()

	c, err := svc.Commit(ctx, owner, d.ID)
	require.NoError(t, err)
	assert.Equal(t, draft.KindFund, c.Kind)
	assert.Equal(t, created.ID, c.Fund.ID)
	funds.AssertExpectations(t)

	_, err = svc.Get(ctx, owner, d.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "a committed draft is gone")
}

func TestCommit_FailureKeepsDraft(t *testing.T) {
	t.Parallel()
	svc, funds, contributions, _ := newService(t)
	ctx := context.Background()
	owner, fundID := uuid.New(), uuid.New()

	payload, err := json.Marshal(draft.ContributionPayload{FundID: fundID, Amount: "12.345"})
	require.NoError(t, err)
	d, err := svc.Start(ctx, owner, draft.KindContribution, payload)
	require.NoError(t, err)

	f, err := fund.New().WithID(fundID).WithName("Caixa").WithCreatedBy(owner).Build()
	require.NoError(t, err)
	funds.On("Get", mock.Anything, owner, fundID).Return(f, nil)

	_, err = svc.Commit(ctx, owner, d.ID)
	assert.ErrorIs(t, err, domain.ErrValidation, "BRL has two decimals")
	contributions.AssertNotCalled(t, "Contribute", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	_, err = svc.Get(ctx, owner, d.ID)
	assert.NoError(t, err)
}

func TestCommit_CapitalRequestUsesDraftAsIdempotencyKey(t *testing.T) {
	t.Parallel()
	svc, funds, _, requests := newService(t)
	ctx := context.Background()
	owner, fundID := uuid.New(), uuid.New()

	payload, err := json.Marshal(draft.CapitalRequestPayload{
		FundID: fundID, Amount: "30.00", Reason: "bicicleta", Plan: testutils.MonthlyPlan(2),
	})
	require.NoError(t, err)
	d, err := svc.Start(ctx, owner, draft.KindCapitalRequest, payload)
	require.NoError(t, err)

	f, err := fund.New().WithID(fundID).WithName("Caixa").WithCreatedBy(owner).Build()
	require.NoError(t, err)
	funds.On("Get", mock.Anything, owner, fundID).Return(f, nil)
	cr := &request.CapitalRequest{ID: uuid.New()}
	requests.On("Submit", mock.Anything, owner, fundID, mock.MatchedBy(func(in requestsvc.SubmitInput) bool {
		return in.Amount.Amount() == 3000 && in.IdempotencyKey == "draft:"+d.ID.String()
	})).Return(cr, true, nil).Once()

	c, err := svc.Commit(ctx, owner, d.ID)
	require.NoError(t, err)
	assert.Equal(t, cr.ID, c.Request.ID)
	requests.AssertExpectations(t)
}

func TestCommit_AgainstRealServices(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	store := cache.NewMemoryDraftStore(time.Minute)
	t.Cleanup(store.Close)
	svc := draftsvc.New(store, time.Hour, env.Funds, env.Contributions, env.Requests, testutils.Logger())
	ctx := context.Background()
	ana := env.User("ana")
	f := env.Fund(ana, 100)

	payload, err := json.Marshal(draft.ContributionPayload{FundID: f.ID, Amount: "75.50", Note: "março"})
	require.NoError(t, err)
	d, err := svc.Start(ctx, ana.ID, draft.KindContribution, payload)
	require.NoError(t, err)

	c, err := svc.Commit(ctx, ana.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7550), c.Contribution.Amount.Amount())
	assert.Equal(t, int64(7550), env.Reload(f).Balance.Amount())
}

func TestCommit_ConcurrentCommitsApplyOnce(t *testing.T) {
	t.Parallel()
	env := testutils.NewEnv(t)
	store := cache.NewMemoryDraftStore(time.Minute)
	t.Cleanup(store.Close)
	svc := draftsvc.New(store, time.Hour, env.Funds, env.Contributions, env.Requests, testutils.Logger())
	ctx := context.Background()
	ana := env.User("ana")
	f := env.Fund(ana, 100)

	payload, err := json.Marshal(draft.ContributionPayload{FundID: f.ID, Amount: "20.00"})
	require.NoError(t, err)
	d, err := svc.Start(ctx, ana.ID, draft.KindContribution, payload)
	require.NoError(t, err)

	const commits = 8
	var wg sync.WaitGroup
	var committed atomic.Int32
	for i := 0; i < commits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Commit(ctx, ana.ID, d.ID)
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrNotFound)
				return
			}
			committed.Add(1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), committed.Load())
	assert.Equal(t, int64(2000), env.Reload(f).Balance.Amount(), "credited once")
	list, err := env.Contributions.List(ctx, ana.ID, f.ID, nil)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
