package repository

import (
	"context"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/domain/fund"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/coletivobank/coletivo/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var forUpdate = clause.Locking{Strength: "UPDATE"}

type fundRepository struct {
	db *gorm.DB
}

// NewFundRepository returns a FundRepository on db.
func NewFundRepository(db *gorm.DB) repository.FundRepository {
	return &fundRepository{db: db}
}

func (r *fundRepository) Create(ctx context.Context, f *fund.Fund) error {
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(mapFundToModel(f)).Error
	})
}

func (r *fundRepository) Get(ctx context.Context, id uuid.UUID) (*fund.Fund, error) {
	return r.get(r.db.WithContext(ctx), id)
}

func (r *fundRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*fund.Fund, error) {
	return r.get(r.db.WithContext(ctx).Clauses(forUpdate), id)
}

func (r *fundRepository) get(db *gorm.DB, id uuid.UUID) (*fund.Fund, error) {
	var m Fund
	if err := db.First(&m, "id = ?", id).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return mapFundModelToDomain(&m)
}

func (r *fundRepository) Update(ctx context.Context, f *fund.Fund) error {
	return WrapError(func() error {
		return r.db.WithContext(ctx).Save(mapFundToModel(f)).Error
	})
}

func (r *fundRepository) ListByMember(ctx context.Context, accountID uuid.UUID) ([]*fund.Fund, error) {
	var rows []Fund
	err := r.db.WithContext(ctx).
		Joins("JOIN fund_members ON fund_members.fund_id = funds.id").
		Where("fund_members.account_id = ?", accountID).
		Order("funds.created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	out := make([]*fund.Fund, 0, len(rows))
	for i := range rows {
		f, err := mapFundModelToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func mapFundToModel(f *fund.Fund) *Fund {
	s := f.Settings
	return &Fund{
		ID:               f.ID,
		Name:             f.Name,
		Objective:        f.Objective,
		Currency:         string(f.Currency()),
		Balance:          f.Balance.Amount(),
		Reserved:         f.Reserved.Amount(),
		ContributionRate: s.ContributionRate.Fraction(),
		DistributionType: string(s.Distribution.Type),
		ZeroStakePolicy:  string(s.Distribution.ZeroStake),
		QuorumPercentage: s.Governance.QuorumPercentage,
		Unanimous:        s.Governance.Unanimous,
		VotersScope:      string(s.Governance.VotersScope),
		CreatedBy:        f.CreatedBy,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}

func mapFundModelToDomain(m *Fund) (*fund.Fund, error) {
	rate, err := accounting.NewRate(m.ContributionRate)
	if err != nil {
		return nil, err
	}
	return fund.New().
		WithID(m.ID).
		WithName(m.Name).
		WithObjective(m.Objective).
		WithCurrency(money.Code(m.Currency)).
		WithBalance(m.Balance, m.Reserved).
		WithCreatedBy(m.CreatedBy).
		WithTimestamps(m.CreatedAt, m.UpdatedAt).
		WithSettings(fund.Settings{
			ContributionRate: rate,
			Distribution: accounting.DistributionSetting{
				Type:      accounting.DistributionType(m.DistributionType),
				ZeroStake: accounting.ZeroStakePolicy(m.ZeroStakePolicy),
			},
			Governance: accounting.GovernanceSetting{
				QuorumPercentage: m.QuorumPercentage,
				Unanimous:        m.Unanimous,
				VotersScope:      accounting.VotersScope(m.VotersScope),
			},
		}).
		Build()
}

type memberRepository struct {
	db *gorm.DB
}

// NewMemberRepository returns a MemberRepository on db.
func NewMemberRepository(db *gorm.DB) repository.MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) Create(ctx context.Context, m *fund.Member) error {
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(mapMemberToModel(m)).Error
	})
}

func (r *memberRepository) Get(ctx context.Context, fundID, accountID uuid.UUID) (*fund.Member, error) {
	return r.get(r.db.WithContext(ctx), fundID, accountID)
}

func (r *memberRepository) GetForUpdate(ctx context.Context, fundID, accountID uuid.UUID) (*fund.Member, error) {
	return r.get(r.db.WithContext(ctx).Clauses(forUpdate), fundID, accountID)
}

func (r *memberRepository) get(db *gorm.DB, fundID, accountID uuid.UUID) (*fund.Member, error) {
	var m FundMember
	if err := db.First(&m, "fund_id = ? AND account_id = ?", fundID, accountID).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return mapMemberModelToDomain(&m), nil
}

func (r *memberRepository) ListByFund(ctx context.Context, fundID uuid.UUID) ([]*fund.Member, error) {
	return r.list(r.db.WithContext(ctx), fundID)
}

func (r *memberRepository) ListByFundForUpdate(ctx context.Context, fundID uuid.UUID) ([]*fund.Member, error) {
	return r.list(r.db.WithContext(ctx).Clauses(forUpdate), fundID)
}

func (r *memberRepository) list(db *gorm.DB, fundID uuid.UUID) ([]*fund.Member, error) {
	var rows []FundMember
	if err := db.Where("fund_id = ?", fundID).Order("account_id").Find(&rows).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	out := make([]*fund.Member, len(rows))
	for i := range rows {
		out[i] = mapMemberModelToDomain(&rows[i])
	}
	return out, nil
}

func (r *memberRepository) Update(ctx context.Context, m *fund.Member) error {
	return WrapError(func() error {
		return r.db.WithContext(ctx).Save(mapMemberToModel(m)).Error
	})
}

func mapMemberToModel(m *fund.Member) *FundMember {
	return &FundMember{
		FundID:           m.FundID,
		AccountID:        m.AccountID,
		IsAdmin:          m.IsAdmin,
		Currency:         string(m.TotalContributed.Currency()),
		TotalContributed: m.TotalContributed.Amount(),
		CapacityCredit:   m.CapacityCredit.Amount(),
		Reserved:         m.Reserved.Amount(),
		Outstanding:      m.Outstanding.Amount(),
		JoinedAt:         m.JoinedAt,
	}
}

func mapMemberModelToDomain(m *FundMember) *fund.Member {
	code := money.Code(m.Currency)
	return &fund.Member{
		FundID:           m.FundID,
		AccountID:        m.AccountID,
		IsAdmin:          m.IsAdmin,
		JoinedAt:         m.JoinedAt,
		TotalContributed: money.FromSmallestUnit(m.TotalContributed, code),
		CapacityCredit:   money.FromSmallestUnit(m.CapacityCredit, code),
		Reserved:         money.FromSmallestUnit(m.Reserved, code),
		Outstanding:      money.FromSmallestUnit(m.Outstanding, code),
	}
}
