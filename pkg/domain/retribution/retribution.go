package retribution

import (
	"time"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/google/uuid"
)

// Retribution is a repayment into the fund on an approved request, together
// with the capacity shares it granted.
type Retribution struct {
	ID           uuid.UUID                   `json:"id"`
	FundID       uuid.UUID                   `json:"fund_id"`
	RequestID    uuid.UUID                   `json:"request_id"`
	PayerID      uuid.UUID                   `json:"payer_id"`
	Amount       money.Money                 `json:"amount"`
	Distribution accounting.DistributionType `json:"distribution"`
	Shares       []accounting.Share          `json:"shares"`
	CreatedAt    time.Time                   `json:"created_at"`
}

// New records a retribution whose shares must sum to amount.
func New(
	fundID, requestID, payerID uuid.UUID,
	amount money.Money,
	distribution accounting.DistributionType,
	shares []accounting.Share,
	now time.Time,
) (*Retribution, error) {
	if !amount.IsPositive() {
		return nil, domain.Validationf("retribution amount must be positive: %s", amount)
	}
	sum, err := accounting.SumShares(shares)
	if err != nil {
		return nil, err
	}
	if !sum.Equals(amount) {
		return nil, domain.Validationf("shares sum to %s, retribution is %s", sum, amount)
	}
	return &Retribution{
		ID:           uuid.New(),
		FundID:       fundID,
		RequestID:    requestID,
		PayerID:      payerID,
		Amount:       amount,
		Distribution: distribution,
		Shares:       shares,
		CreatedAt:    now,
	}, nil
}
