package repository

import (
	"context"

	"github.com/coletivobank/coletivo/pkg/domain/contribution"
	"github.com/coletivobank/coletivo/pkg/domain/fund"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/coletivobank/coletivo/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type contributionRepository struct {
	db *gorm.DB
}

// NewContributionRepository returns a ContributionRepository on db.
func NewContributionRepository(db *gorm.DB) repository.ContributionRepository {
	return &contributionRepository{db: db}
}

func (r *contributionRepository) Create(ctx context.Context, c *contribution.Contribution) error {
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(&Contribution{
			ID:        c.ID,
			FundID:    c.FundID,
			AccountID: c.AccountID,
			Amount:    c.Amount.Amount(),
			Currency:  string(c.Amount.Currency()),
			Note:      c.Note,
			CreatedAt: c.CreatedAt,
		}).Error
	})
}

func (r *contributionRepository) ListByFund(
	ctx context.Context,
	fundID uuid.UUID,
	accountID *uuid.UUID,
) ([]*contribution.Contribution, error) {
	q := r.db.WithContext(ctx).Where("fund_id = ?", fundID)
	if accountID != nil {
		q = q.Where("account_id = ?", *accountID)
	}
	var rows []Contribution
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	out := make([]*contribution.Contribution, len(rows))
	for i, m := range rows {
		out[i] = &contribution.Contribution{
			ID:        m.ID,
			FundID:    m.FundID,
			AccountID: m.AccountID,
			Amount:    money.FromSmallestUnit(m.Amount, money.Code(m.Currency)),
			Note:      m.Note,
			CreatedAt: m.CreatedAt,
		}
	}
	return out, nil
}

type settingChangeRepository struct {
	db *gorm.DB
}

// NewSettingChangeRepository returns a SettingChangeRepository on db.
func NewSettingChangeRepository(db *gorm.DB) repository.SettingChangeRepository {
	return &settingChangeRepository{db: db}
}

func (r *settingChangeRepository) Append(ctx context.Context, c fund.SettingChange) error {
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(&FundSettingChange{
			ID:        c.ID,
			FundID:    c.FundID,
			Field:     string(c.Field),
			OldValue:  c.OldValue,
			NewValue:  c.NewValue,
			ChangedBy: c.ChangedBy,
			ChangedAt: c.ChangedAt,
		}).Error
	})
}

func (r *settingChangeRepository) ListByFund(
	ctx context.Context,
	fundID uuid.UUID,
	field fund.SettingField,
) ([]fund.SettingChange, error) {
	q := r.db.WithContext(ctx).Where("fund_id = ?", fundID)
	if field != "" {
		q = q.Where("field = ?", string(field))
	}
	var rows []FundSettingChange
	if err := q.Order("changed_at, id").Find(&rows).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	out := make([]fund.SettingChange, len(rows))
	for i, m := range rows {
		out[i] = fund.SettingChange{
			ID:        m.ID,
			FundID:    m.FundID,
			Field:     fund.SettingField(m.Field),
			OldValue:  m.OldValue,
			NewValue:  m.NewValue,
			ChangedBy: m.ChangedBy,
			ChangedAt: m.ChangedAt,
		}
	}
	return out, nil
}
