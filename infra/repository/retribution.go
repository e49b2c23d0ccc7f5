package repository

import (
	"context"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/domain/retribution"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/coletivobank/coletivo/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type retributionRepository struct {
	db *gorm.DB
}

// NewRetributionRepository returns a RetributionRepository on db.
func NewRetributionRepository(db *gorm.DB) repository.RetributionRepository {
	return &retributionRepository{db: db}
}

func (r *retributionRepository) Create(ctx context.Context, ret *retribution.Retribution) error {
	m := &Retribution{
		ID:           ret.ID,
		FundID:       ret.FundID,
		RequestID:    ret.RequestID,
		PayerID:      ret.PayerID,
		Amount:       ret.Amount.Amount(),
		Currency:     string(ret.Amount.Currency()),
		Distribution: string(ret.Distribution),
		CreatedAt:    ret.CreatedAt,
		Shares:       make([]RetributionShare, len(ret.Shares)),
	}
	for i, s := range ret.Shares {
		m.Shares[i] = RetributionShare{
			RetributionID: ret.ID,
			AccountID:     s.AccountID,
			Position:      i,
			Amount:        s.Amount.Amount(),
		}
	}
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(m).Error
	})
}

func (r *retributionRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*retribution.Retribution, error) {
	var rows []Retribution
	err := r.db.WithContext(ctx).
		Preload("Shares", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("request_id = ?", requestID).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	out := make([]*retribution.Retribution, len(rows))
	for i, m := range rows {
		code := money.Code(m.Currency)
		ret := &retribution.Retribution{
			ID:           m.ID,
			FundID:       m.FundID,
			RequestID:    m.RequestID,
			PayerID:      m.PayerID,
			Amount:       money.FromSmallestUnit(m.Amount, code),
			Distribution: accounting.DistributionType(m.Distribution),
			CreatedAt:    m.CreatedAt,
			Shares:       make([]accounting.Share, len(m.Shares)),
		}
		for j, s := range m.Shares {
			ret.Shares[j] = accounting.Share{AccountID: s.AccountID, Amount: money.FromSmallestUnit(s.Amount, code)}
		}
		out[i] = ret
	}
	return out, nil
}
