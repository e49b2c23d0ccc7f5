package fund

import (
	"time"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/google/uuid"
)

// Member is an account's standing in one fund.
type Member struct {
	FundID    uuid.UUID
	AccountID uuid.UUID
	IsAdmin   bool
	JoinedAt  time.Time
	// TotalContributed is the lifetime sum of contributions.
	TotalContributed money.Money
	// CapacityCredit is the capacity granted by other members' retributions.
	CapacityCredit money.Money
	// Reserved is the sum of the member's pending requests.
	Reserved money.Money
	// Outstanding is what the member still owes on approved requests.
	Outstanding money.Money
}

// NewMember creates an empty membership.
func NewMember(fundID, accountID uuid.UUID, isAdmin bool, code money.Code, now time.Time) *Member {
	zero := money.Zero(code)
	return &Member{
		FundID:           fundID,
		AccountID:        accountID,
		IsAdmin:          isAdmin,
		JoinedAt:         now,
		TotalContributed: zero,
		CapacityCredit:   zero,
		Reserved:         zero,
		Outstanding:      zero,
	}
}

// Position is the member's ledger view used by the eligibility calculation.
// Both pending and outstanding requests consume capacity.
func (m *Member) Position() accounting.Position {
	return accounting.Position{
		TotalContributed: m.TotalContributed,
		CapacityCredit:   m.CapacityCredit,
		Reserved:         m.Reserved.WithAmount(m.Reserved.Amount() + m.Outstanding.Amount()),
	}
}

// Stake is the member's weight in a proportional distribution.
func (m *Member) Stake() accounting.Stake {
	return accounting.Stake{AccountID: m.AccountID, Contributed: m.TotalContributed}
}

// Contribute records a contribution on the member's total.
func (m *Member) Contribute(amount money.Money) error {
	sum, err := m.TotalContributed.Add(amount)
	if err != nil {
		return err
	}
	m.TotalContributed = sum
	return nil
}

// GrantCredit raises the member's capacity by a distribution share.
func (m *Member) GrantCredit(amount money.Money) error {
	sum, err := m.CapacityCredit.Add(amount)
	if err != nil {
		return err
	}
	m.CapacityCredit = sum
	return nil
}

// Reserve commits capacity to a pending request.
func (m *Member) Reserve(amount money.Money) error {
	sum, err := m.Reserved.Add(amount)
	if err != nil {
		return err
	}
	m.Reserved = sum
	return nil
}

// Release frees capacity held by a pending request.
func (m *Member) Release(amount money.Money) error {
	if amount.Amount() > m.Reserved.Amount() {
		return domain.Validationf("cannot release %s, member has %s reserved", amount, m.Reserved)
	}
	m.Reserved = m.Reserved.WithAmount(m.Reserved.Amount() - amount.Amount())
	return nil
}

// Borrow moves a reservation to the outstanding debt once a request is approved.
func (m *Member) Borrow(amount money.Money) error {
	if err := m.Release(amount); err != nil {
		return err
	}
	m.Outstanding = m.Outstanding.WithAmount(m.Outstanding.Amount() + amount.Amount())
	return nil
}

// Repay lowers the outstanding debt.
func (m *Member) Repay(amount money.Money) error {
	if amount.Amount() > m.Outstanding.Amount() {
		return domain.Validationf("repayment %s exceeds outstanding %s", amount, m.Outstanding)
	}
	m.Outstanding = m.Outstanding.WithAmount(m.Outstanding.Amount() - amount.Amount())
	return nil
}

// EligibilityOf is how much m may request from f right now.
func (f *Fund) EligibilityOf(m *Member) (accounting.Eligibility, error) {
	if m.FundID != f.ID {
		return accounting.Eligibility{}, domain.Validationf("member %s belongs to another fund", m.AccountID)
	}
	return accounting.ComputeEligibility(m.Position(), f.Settings.ContributionRate, f.Available())
}
