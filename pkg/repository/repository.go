package repository

import (
	"context"

	"github.com/coletivobank/coletivo/pkg/domain/contribution"
	"github.com/coletivobank/coletivo/pkg/domain/fund"
	"github.com/coletivobank/coletivo/pkg/domain/request"
	"github.com/coletivobank/coletivo/pkg/domain/retribution"
	"github.com/coletivobank/coletivo/pkg/domain/user"
	"github.com/google/uuid"
)

// Every Get* method returns domain.ErrNotFound when the row does not exist
// and every Create returns domain.ErrAlreadyExists on a unique conflict.
//
// ForUpdate variants take a row lock that is held until the surrounding
// UnitOfWork.Do returns. Locks must be taken fund first, then members in
// account id order, then requests.

// UserRepository stores registered users.
type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	Get(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByUsername(ctx context.Context, username string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

// FundRepository stores fund aggregates.
type FundRepository interface {
	Create(ctx context.Context, f *fund.Fund) error
	Get(ctx context.Context, id uuid.UUID) (*fund.Fund, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*fund.Fund, error)
	Update(ctx context.Context, f *fund.Fund) error
	ListByMember(ctx context.Context, accountID uuid.UUID) ([]*fund.Fund, error)
}

// MemberRepository stores fund memberships. Lists are ordered by account id.
type MemberRepository interface {
	Create(ctx context.Context, m *fund.Member) error
	Get(ctx context.Context, fundID, accountID uuid.UUID) (*fund.Member, error)
	GetForUpdate(ctx context.Context, fundID, accountID uuid.UUID) (*fund.Member, error)
	ListByFund(ctx context.Context, fundID uuid.UUID) ([]*fund.Member, error)
	ListByFundForUpdate(ctx context.Context, fundID uuid.UUID) ([]*fund.Member, error)
	Update(ctx context.Context, m *fund.Member) error
}

// ContributionRepository is the append-only contribution ledger.
type ContributionRepository interface {
	Create(ctx context.Context, c *contribution.Contribution) error
	// ListByFund returns contributions newest first, optionally for one account.
	ListByFund(ctx context.Context, fundID uuid.UUID, accountID *uuid.UUID) ([]*contribution.Contribution, error)
}

// SettingChangeRepository is the append-only settings history.
type SettingChangeRepository interface {
	Append(ctx context.Context, c fund.SettingChange) error
	// ListByFund returns entries oldest first; an empty field lists all.
	ListByFund(ctx context.Context, fundID uuid.UUID, field fund.SettingField) ([]fund.SettingChange, error)
}

// RequestRepository stores capital requests with their installments.
type RequestRepository interface {
	Create(ctx context.Context, r *request.CapitalRequest) error
	Get(ctx context.Context, id uuid.UUID) (*request.CapitalRequest, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*request.CapitalRequest, error)
	GetByIdempotencyKey(ctx context.Context, fundID, accountID uuid.UUID, key string) (*request.CapitalRequest, error)
	// ListByFund returns requests newest first; an empty status lists all.
	ListByFund(ctx context.Context, fundID uuid.UUID, status request.Status) ([]*request.CapitalRequest, error)
	Update(ctx context.Context, r *request.CapitalRequest) error
}

// VoteRepository stores one vote per voter and request.
type VoteRepository interface {
	Create(ctx context.Context, v *request.Vote) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*request.Vote, error)
}

// RetributionRepository stores retributions with their distribution shares.
type RetributionRepository interface {
	Create(ctx context.Context, r *retribution.Retribution) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*retribution.Retribution, error)
}
