// Package request models a member's capital request and its lifecycle:
//
//	draft -> pending -> approved -> settled
//	                 -> rejected
//	                 -> cancelled
//
// Transition methods return domain.ErrInvalidTransition on illegal moves.
package request

import (
	"fmt"
	"strings"
	"time"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/google/uuid"
)

// Status of a capital request.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusSettled   Status = "settled"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates a status filter.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusSettled, StatusCancelled:
		return st, nil
	}
	return "", domain.Validationf("unknown request status %q", s)
}

// Installment is one scheduled repayment of an approved request.
type Installment struct {
	RequestID uuid.UUID   `json:"-"`
	Number    int         `json:"number"`
	Amount    money.Money `json:"amount"`
	Paid      money.Money `json:"paid"`
	DueDate   time.Time   `json:"due_date"`
}

// Due is what is still owed on the installment.
func (i Installment) Due() money.Money {
	return i.Amount.WithAmount(i.Amount.Amount() - i.Paid.Amount())
}

// CapitalRequest is a member's ask to withdraw money from a fund.
type CapitalRequest struct {
	ID              uuid.UUID
	FundID          uuid.UUID
	AccountID       uuid.UUID
	Amount          money.Money
	Outstanding     money.Money
	Status          Status
	Reason          string
	RejectionReason string
	Plan            accounting.Plan
	Installments    []Installment
	IdempotencyKey  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DecidedAt       *time.Time
}

// New creates a draft request. The schedule is computed from plan against
// amount so a request never carries installments it cannot honour.
func New(
	fundID, accountID uuid.UUID,
	amount money.Money,
	reason string,
	plan accounting.Plan,
	now time.Time,
) (*CapitalRequest, error) {
	if !amount.IsPositive() {
		return nil, domain.Validationf("requested amount must be positive: %s", amount)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.Validationf("a request needs a reason")
	}
	if len(reason) > 1000 {
		return nil, domain.Validationf("request reason is too long")
	}
	schedule, err := plan.Schedule(amount, now)
	if err != nil {
		return nil, err
	}
	r := &CapitalRequest{
		ID:          uuid.New(),
		FundID:      fundID,
		AccountID:   accountID,
		Amount:      amount,
		Outstanding: money.Zero(amount.Currency()),
		Status:      StatusDraft,
		Reason:      reason,
		Plan:        plan,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.Installments = make([]Installment, len(schedule))
	for i, it := range schedule {
		r.Installments[i] = Installment{
			RequestID: r.ID,
			Number:    it.Number,
			Amount:    it.Amount,
			Paid:      money.Zero(amount.Currency()),
			DueDate:   it.DueDate,
		}
	}
	return r, nil
}

func (r *CapitalRequest) transition(to Status, now time.Time, from ...Status) error {
	for _, f := range from {
		if r.Status == f {
			r.Status = to
			r.UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("%w: request %s is %s, cannot become %s", domain.ErrInvalidTransition, r.ID, r.Status, to)
}

// Submit moves a draft to pending.
func (r *CapitalRequest) Submit(now time.Time) error {
	return r.transition(StatusPending, now, StatusDraft)
}

// Approve moves a pending request to approved; the full amount becomes outstanding.
func (r *CapitalRequest) Approve(now time.Time) error {
	if err := r.transition(StatusApproved, now, StatusPending); err != nil {
		return err
	}
	r.Outstanding = r.Amount
	r.DecidedAt = &now
	return nil
}

// Reject moves a pending request to rejected.
func (r *CapitalRequest) Reject(reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Validationf("a rejection needs a reason")
	}
	if err := r.transition(StatusRejected, now, StatusPending); err != nil {
		return err
	}
	r.RejectionReason = reason
	r.DecidedAt = &now
	return nil
}

// Cancel withdraws a pending request on behalf of its requester.
func (r *CapitalRequest) Cancel(by uuid.UUID, now time.Time) error {
	if by != r.AccountID {
		return fmt.Errorf("%w: only the requester can cancel a request", domain.ErrForbidden)
	}
	return r.transition(StatusCancelled, now, StatusDraft, StatusPending)
}

// Repay applies amount to the earliest unpaid installments. The request is
// settled when nothing is left outstanding.
func (r *CapitalRequest) Repay(amount money.Money, now time.Time) error {
	if r.Status != StatusApproved {
		return fmt.Errorf("%w: request %s is %s, only approved requests take repayments",
			domain.ErrInvalidTransition, r.ID, r.Status)
	}
	if !amount.IsPositive() || !amount.SameCurrency(r.Amount) {
		return domain.Validationf("invalid repayment amount %s", amount)
	}
	if amount.Amount() > r.Outstanding.Amount() {
		return domain.Validationf("repayment %s exceeds outstanding %s", amount, r.Outstanding)
	}
	left := amount.Amount()
	for i := range r.Installments {
		if left == 0 {
			break
		}
		due := r.Installments[i].Due().Amount()
		if due == 0 {
			continue
		}
		pay := min(due, left)
		r.Installments[i].Paid = r.Installments[i].Paid.WithAmount(r.Installments[i].Paid.Amount() + pay)
		left -= pay
	}
	r.Outstanding = r.Outstanding.WithAmount(r.Outstanding.Amount() - amount.Amount())
	r.UpdatedAt = now
	if r.Outstanding.IsZero() {
		r.Status = StatusSettled
	}
	return nil
}

// IsOpen reports whether votes can still be cast.
func (r *CapitalRequest) IsOpen() bool {
	return r.Status == StatusPending
}

// Vote is one voter's decision on a pending request.
type Vote struct {
	RequestID uuid.UUID `json:"request_id"`
	VoterID   uuid.UUID `json:"voter_id"`
	Approve   bool      `json:"approve"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewVote validates a vote. Rejections must say why.
func NewVote(requestID, voterID uuid.UUID, approve bool, reason string, now time.Time) (*Vote, error) {
	reason = strings.TrimSpace(reason)
	if !approve && reason == "" {
		return nil, domain.Validationf("a rejection vote needs a reason")
	}
	return &Vote{
		RequestID: requestID,
		VoterID:   voterID,
		Approve:   approve,
		Reason:    reason,
		CreatedAt: now,
	}, nil
}

// Count splits votes into approvals and rejections.
func Count(votes []*Vote) (approvals, rejections int) {
	for _, v := range votes {
		if v.Approve {
			approvals++
		} else {
			rejections++
		}
	}
	return approvals, rejections
}
