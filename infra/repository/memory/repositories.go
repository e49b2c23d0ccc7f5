package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/domain/contribution"
	"github.com/coletivobank/coletivo/pkg/domain/fund"
	"github.com/coletivobank/coletivo/pkg/domain/request"
	"github.com/coletivobank/coletivo/pkg/domain/retribution"
	"github.com/coletivobank/coletivo/pkg/domain/user"
	"github.com/google/uuid"
)

func notFound(what string, id any) error {
	return fmt.Errorf("%w: %s %v", domain.ErrNotFound, what, id)
}

func exists(what string, id any) error {
	return fmt.Errorf("%w: %s %v", domain.ErrAlreadyExists, what, id)
}

type userRepo struct{ view }

func (r *userRepo) Create(_ context.Context, u *user.User) error {
	s, done := r.open()
	defer done()
	if _, ok := s.users[u.ID]; ok {
		return exists("user", u.ID)
	}
	for _, other := range s.users {
		if other.Username == u.Username || strings.EqualFold(other.Email, u.Email) {
			return exists("user", u.Username)
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (r *userRepo) Get(_ context.Context, id uuid.UUID) (*user.User, error) {
	s, done := r.open()
	defer done()
	u, ok := s.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return &u, nil
}

func (r *userRepo) GetByUsername(_ context.Context, username string) (*user.User, error) {
	return r.find(func(u user.User) bool { return u.Username == username }, username)
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	return r.find(func(u user.User) bool { return strings.EqualFold(u.Email, email) }, email)
}

func (r *userRepo) find(match func(user.User) bool, key string) (*user.User, error) {
	s, done := r.open()
	defer done()
	for _, u := range s.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, notFound("user", key)
}

type fundRepo struct{ view }

func (r *fundRepo) Create(_ context.Context, f *fund.Fund) error {
	s, done := r.open()
	defer done()
	if _, ok := s.funds[f.ID]; ok {
		return exists("fund", f.ID)
	}
	s.funds[f.ID] = *f
	return nil
}

func (r *fundRepo) Get(_ context.Context, id uuid.UUID) (*fund.Fund, error) {
	s, done := r.open()
	defer done()
	f, ok := s.funds[id]
	if !ok {
		return nil, notFound("fund", id)
	}
	return &f, nil
}

// GetForUpdate is Get: transactions are already serialized.
func (r *fundRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*fund.Fund, error) {
	return r.Get(ctx, id)
}

func (r *fundRepo) Update(_ context.Context, f *fund.Fund) error {
	s, done := r.open()
	defer done()
	if _, ok := s.funds[f.ID]; !ok {
		return notFound("fund", f.ID)
	}
	s.funds[f.ID] = *f
	return nil
}

func (r *fundRepo) ListByMember(_ context.Context, accountID uuid.UUID) ([]*fund.Fund, error) {
	s, done := r.open()
	defer done()
	var out []*fund.Fund
	for k := range s.members {
		if k.account != accountID {
			continue
		}
		if f, ok := s.funds[k.fund]; ok {
			out = append(out, &f)
		}
	}
	slices.SortFunc(out, func(a, b *fund.Fund) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

type memberRepo struct{ view }

func (r *memberRepo) Create(_ context.Context, m *fund.Member) error {
	s, done := r.open()
	defer done()
	k := memberKey{m.FundID, m.AccountID}
	if _, ok := s.members[k]; ok {
		return exists("member", m.AccountID)
	}
	if _, ok := s.funds[m.FundID]; !ok {
		return notFound("fund", m.FundID)
	}
	s.members[k] = *m
	return nil
}

func (r *memberRepo) Get(_ context.Context, fundID, accountID uuid.UUID) (*fund.Member, error) {
	s, done := r.open()
	defer done()
	m, ok := s.members[memberKey{fundID, accountID}]
	if !ok {
		return nil, notFound("member", accountID)
	}
	return &m, nil
}

func (r *memberRepo) GetForUpdate(ctx context.Context, fundID, accountID uuid.UUID) (*fund.Member, error) {
	return r.Get(ctx, fundID, accountID)
}

func (r *memberRepo) ListByFund(_ context.Context, fundID uuid.UUID) ([]*fund.Member, error) {
	s, done := r.open()
	defer done()
	var out []*fund.Member
	for k, m := range s.members {
		if k.fund == fundID {
			out = append(out, &m)
		}
	}
	slices.SortFunc(out, func(a, b *fund.Member) int {
		return strings.Compare(a.AccountID.String(), b.AccountID.String())
	})
	return out, nil
}

func (r *memberRepo) ListByFundForUpdate(ctx context.Context, fundID uuid.UUID) ([]*fund.Member, error) {
	return r.ListByFund(ctx, fundID)
}

func (r *memberRepo) Update(_ context.Context, m *fund.Member) error {
	s, done := r.open()
	defer done()
	k := memberKey{m.FundID, m.AccountID}
	if _, ok := s.members[k]; !ok {
		return notFound("member", m.AccountID)
	}
	s.members[k] = *m
	return nil
}

type contributionRepo struct{ view }

func (r *contributionRepo) Create(_ context.Context, c *contribution.Contribution) error {
	s, done := r.open()
	defer done()
	for _, other := range s.contributions {
		if other.ID == c.ID {
			return exists("contribution", c.ID)
		}
	}
	s.contributions = append(s.contributions, *c)
	return nil
}

func (r *contributionRepo) ListByFund(
	_ context.Context,
	fundID uuid.UUID,
	accountID *uuid.UUID,
) ([]*contribution.Contribution, error) {
	s, done := r.open()
	defer done()
	var out []*contribution.Contribution
	for i := len(s.contributions) - 1; i >= 0; i-- {
		c := s.contributions[i]
		if c.FundID != fundID || (accountID != nil && c.AccountID != *accountID) {
			continue
		}
		out = append(out, &c)
	}
	slices.SortStableFunc(out, func(a, b *contribution.Contribution) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

type settingChangeRepo struct{ view }

func (r *settingChangeRepo) Append(_ context.Context, c fund.SettingChange) error {
	s, done := r.open()
	defer done()
	s.settingChanges = append(s.settingChanges, c)
	return nil
}

func (r *settingChangeRepo) ListByFund(
	_ context.Context,
	fundID uuid.UUID,
	field fund.SettingField,
) ([]fund.SettingChange, error) {
	s, done := r.open()
	defer done()
	var out []fund.SettingChange
	for _, c := range s.settingChanges {
		if c.FundID == fundID && (field == "" || c.Field == field) {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b fund.SettingChange) int { return a.ChangedAt.Compare(b.ChangedAt) })
	return out, nil
}

type requestRepo struct{ view }

func (r *requestRepo) Create(_ context.Context, cr *request.CapitalRequest) error {
	s, done := r.open()
	defer done()
	if _, ok := s.requests[cr.ID]; ok {
		return exists("capital request", cr.ID)
	}
	if cr.IdempotencyKey != "" {
		k := idempotencyKey{cr.FundID, cr.AccountID, cr.IdempotencyKey}
		if _, ok := s.idempotency[k]; ok {
			return exists("idempotency key", cr.IdempotencyKey)
		}
		s.idempotency[k] = cr.ID
	}
	s.requests[cr.ID] = copyRequest(*cr)
	return nil
}

func (r *requestRepo) Get(_ context.Context, id uuid.UUID) (*request.CapitalRequest, error) {
	s, done := r.open()
	defer done()
	return s.request(id)
}

func (r *requestRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*request.CapitalRequest, error) {
	return r.Get(ctx, id)
}

func (r *requestRepo) GetByIdempotencyKey(
	_ context.Context,
	fundID, accountID uuid.UUID,
	key string,
) (*request.CapitalRequest, error) {
	s, done := r.open()
	defer done()
	id, ok := s.idempotency[idempotencyKey{fundID, accountID, key}]
	if !ok {
		return nil, notFound("idempotency key", key)
	}
	return s.request(id)
}

func (s *state) request(id uuid.UUID) (*request.CapitalRequest, error) {
	cr, ok := s.requests[id]
	if !ok {
		return nil, notFound("capital request", id)
	}
	cr = copyRequest(cr)
	return &cr, nil
}

func (r *requestRepo) ListByFund(
	_ context.Context,
	fundID uuid.UUID,
	status request.Status,
) ([]*request.CapitalRequest, error) {
	s, done := r.open()
	defer done()
	var out []*request.CapitalRequest
	for _, cr := range s.requests {
		if cr.FundID != fundID || (status != "" && cr.Status != status) {
			continue
		}
		cr = copyRequest(cr)
		out = append(out, &cr)
	}
	slices.SortFunc(out, func(a, b *request.CapitalRequest) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), strings.Compare(a.ID.String(), b.ID.String()))
	})
	return out, nil
}

func (r *requestRepo) Update(_ context.Context, cr *request.CapitalRequest) error {
	s, done := r.open()
	defer done()
	if _, ok := s.requests[cr.ID]; !ok {
		return notFound("capital request", cr.ID)
	}
	s.requests[cr.ID] = copyRequest(*cr)
	return nil
}

type voteRepo struct{ view }

func (r *voteRepo) Create(_ context.Context, v *request.Vote) error {
	s, done := r.open()
	defer done()
	k := voteKey{v.RequestID, v.VoterID}
	if _, ok := s.votes[k]; ok {
		return exists("vote", v.VoterID)
	}
	if _, ok := s.requests[v.RequestID]; !ok {
		return notFound("capital request", v.RequestID)
	}
	s.votes[k] = *v
	return nil
}

func (r *voteRepo) ListByRequest(_ context.Context, requestID uuid.UUID) ([]*request.Vote, error) {
	s, done := r.open()
	defer done()
	var out []*request.Vote
	for k, v := range s.votes {
		if k.request == requestID {
			out = append(out, &v)
		}
	}
	slices.SortFunc(out, func(a, b *request.Vote) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(a.VoterID.String(), b.VoterID.String()))
	})
	return out, nil
}

type retributionRepo struct{ view }

func (r *retributionRepo) Create(_ context.Context, ret *retribution.Retribution) error {
	s, done := r.open()
	defer done()
	for _, other := range s.retributions {
		if other.ID == ret.ID {
			return exists("retribution", ret.ID)
		}
	}
	s.retributions = append(s.retributions, copyRetribution(*ret))
	return nil
}

func (r *retributionRepo) ListByRequest(_ context.Context, requestID uuid.UUID) ([]*retribution.Retribution, error) {
	s, done := r.open()
	defer done()
	var out []*retribution.Retribution
	for _, ret := range s.retributions {
		if ret.RequestID == requestID {
			ret = copyRetribution(ret)
			out = append(out, &ret)
		}
	}
	return out, nil
}
