package contribution

import (
	"time"

	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/google/uuid"
)

// Contribution is an inbound payment from a member into a fund.
// It is immutable once recorded.
type Contribution struct {
	ID        uuid.UUID   `json:"id"`
	FundID    uuid.UUID   `json:"fund_id"`
	AccountID uuid.UUID   `json:"account_id"`
	Amount    money.Money `json:"amount"`
	Note      string      `json:"note,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// New validates and creates a Contribution.
func New(fundID, accountID uuid.UUID, amount money.Money, note string, now time.Time) (*Contribution, error) {
	if fundID == uuid.Nil || accountID == uuid.Nil {
		return nil, domain.Validationf("contribution needs a fund and an account")
	}
	if !amount.IsPositive() {
		return nil, domain.Validationf("contribution amount must be positive: %s", amount)
	}
	if len(note) > 500 {
		return nil, domain.Validationf("contribution note is too long")
	}
	return &Contribution{
		ID:        uuid.New(),
		FundID:    fundID,
		AccountID: accountID,
		Amount:    amount,
		Note:      note,
		CreatedAt: now,
	}, nil
}
