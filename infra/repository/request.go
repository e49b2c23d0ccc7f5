package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/domain/request"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/coletivobank/coletivo/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository returns a RequestRepository on db.
func NewRequestRepository(db *gorm.DB) repository.RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, cr *request.CapitalRequest) error {
	m, err := mapRequestToModel(cr)
	if err != nil {
		return err
	}
	return WrapError(func() error {
		db := r.db.WithContext(ctx)
		if err := db.Create(m).Error; err != nil {
			return err
		}
		if len(cr.Installments) == 0 {
			return nil
		}
		rows := make([]Installment, len(cr.Installments))
		for i, it := range cr.Installments {
			rows[i] = Installment{
				RequestID: cr.ID,
				Number:    it.Number,
				Amount:    it.Amount.Amount(),
				Paid:      it.Paid.Amount(),
				DueDate:   it.DueDate,
			}
		}
		return db.Create(&rows).Error
	})
}

func (r *requestRepository) Get(ctx context.Context, id uuid.UUID) (*request.CapitalRequest, error) {
	return r.get(ctx, r.db.WithContext(ctx), "id = ?", id)
}

func (r *requestRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*request.CapitalRequest, error) {
	return r.get(ctx, r.db.WithContext(ctx).Clauses(forUpdate), "id = ?", id)
}

func (r *requestRepository) GetByIdempotencyKey(
	ctx context.Context,
	fundID, accountID uuid.UUID,
	key string,
) (*request.CapitalRequest, error) {
	return r.get(ctx, r.db.WithContext(ctx).Where("fund_id = ? AND account_id = ?", fundID, accountID),
		"idempotency_key = ?", key)
}

func (r *requestRepository) get(ctx context.Context, db *gorm.DB, query string, arg any) (*request.CapitalRequest, error) {
	var m CapitalRequest
	if err := db.Where(query, arg).First(&m).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	var items []Installment
	if err := r.db.WithContext(ctx).Where("request_id = ?", m.ID).Order("number").Find(&items).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return mapRequestModelToDomain(&m, items)
}

func (r *requestRepository) ListByFund(
	ctx context.Context,
	fundID uuid.UUID,
	status request.Status,
) ([]*request.CapitalRequest, error) {
	q := r.db.WithContext(ctx).Where("fund_id = ?", fundID)
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	var rows []CapitalRequest
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	if len(rows) == 0 {
		return []*request.CapitalRequest{}, nil
	}
	ids := make([]uuid.UUID, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	var items []Installment
	if err := r.db.WithContext(ctx).Where("request_id IN ?", ids).Order("request_id, number").Find(&items).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	byRequest := make(map[uuid.UUID][]Installment, len(rows))
	for _, it := range items {
		byRequest[it.RequestID] = append(byRequest[it.RequestID], it)
	}
	out := make([]*request.CapitalRequest, len(rows))
	for i := range rows {
		cr, err := mapRequestModelToDomain(&rows[i], byRequest[rows[i].ID])
		if err != nil {
			return nil, err
		}
		out[i] = cr
	}
	return out, nil
}

func (r *requestRepository) Update(ctx context.Context, cr *request.CapitalRequest) error {
	m, err := mapRequestToModel(cr)
	if err != nil {
		return err
	}
	return WrapError(func() error {
		db := r.db.WithContext(ctx)
		if err := db.Save(m).Error; err != nil {
			return err
		}
		for _, it := range cr.Installments {
			if err := db.Model(&Installment{}).
				Where("request_id = ? AND number = ?", cr.ID, it.Number).
				Update("paid", it.Paid.Amount()).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func mapRequestToModel(cr *request.CapitalRequest) (*CapitalRequest, error) {
	plan, err := json.Marshal(cr.Plan)
	if err != nil {
		return nil, fmt.Errorf("encode payment plan: %w", err)
	}
	var key *string
	if cr.IdempotencyKey != "" {
		key = &cr.IdempotencyKey
	}
	return &CapitalRequest{
		ID:              cr.ID,
		FundID:          cr.FundID,
		AccountID:       cr.AccountID,
		Amount:          cr.Amount.Amount(),
		Outstanding:     cr.Outstanding.Amount(),
		Currency:        string(cr.Amount.Currency()),
		Status:          string(cr.Status),
		Reason:          cr.Reason,
		RejectionReason: cr.RejectionReason,
		Plan:            string(plan),
		IdempotencyKey:  key,
		CreatedAt:       cr.CreatedAt,
		UpdatedAt:       cr.UpdatedAt,
		DecidedAt:       cr.DecidedAt,
	}, nil
}

func mapRequestModelToDomain(m *CapitalRequest, items []Installment) (*request.CapitalRequest, error) {
	var plan accounting.Plan
	if err := json.Unmarshal([]byte(m.Plan), &plan); err != nil {
		return nil, fmt.Errorf("decode payment plan of request %s: %w", m.ID, err)
	}
	code := money.Code(m.Currency)
	cr := &request.CapitalRequest{
		ID:              m.ID,
		FundID:          m.FundID,
		AccountID:       m.AccountID,
		Amount:          money.FromSmallestUnit(m.Amount, code),
		Outstanding:     money.FromSmallestUnit(m.Outstanding, code),
		Status:          request.Status(m.Status),
		Reason:          m.Reason,
		RejectionReason: m.RejectionReason,
		Plan:            plan,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		DecidedAt:       m.DecidedAt,
		Installments:    make([]request.Installment, len(items)),
	}
	if m.IdempotencyKey != nil {
		cr.IdempotencyKey = *m.IdempotencyKey
	}
	for i, it := range items {
		cr.Installments[i] = request.Installment{
			RequestID: it.RequestID,
			Number:    it.Number,
			Amount:    money.FromSmallestUnit(it.Amount, code),
			Paid:      money.FromSmallestUnit(it.Paid, code),
			DueDate:   it.DueDate,
		}
	}
	return cr, nil
}

type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository returns a VoteRepository on db.
func NewVoteRepository(db *gorm.DB) repository.VoteRepository {
	return &voteRepository{db: db}
}

func (r *voteRepository) Create(ctx context.Context, v *request.Vote) error {
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(&RequestVote{
			RequestID: v.RequestID,
			VoterID:   v.VoterID,
			Approve:   v.Approve,
			Reason:    v.Reason,
			CreatedAt: v.CreatedAt,
		}).Error
	})
}

func (r *voteRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*request.Vote, error) {
	var rows []RequestVote
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	out := make([]*request.Vote, len(rows))
	for i, m := range rows {
		out[i] = &request.Vote{
			RequestID: m.RequestID,
			VoterID:   m.VoterID,
			Approve:   m.Approve,
			Reason:    m.Reason,
			CreatedAt: m.CreatedAt,
		}
	}
	return out, nil
}
