package common

import (
	"time"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/domain/fund"
	"github.com/coletivobank/coletivo/pkg/domain/request"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/google/uuid"
)

// SettingsResponse is a fund's configuration.
type SettingsResponse struct {
	ContributionRatePercent string                         `json:"contribution_rate_percent"`
	Distribution            accounting.DistributionSetting `json:"distribution"`
	Governance              accounting.GovernanceSetting   `json:"governance"`
}

// FundResponse is the public view of a fund.
type FundResponse struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	Objective string           `json:"objective,omitempty"`
	Balance   money.Money      `json:"balance"`
	Reserved  money.Money      `json:"reserved"`
	Available money.Money      `json:"available"`
	Settings  SettingsResponse `json:"settings"`
	CreatedBy uuid.UUID        `json:"created_by"`
	CreatedAt time.Time        `json:"created_at"`
}

func ToFundResponse(f *fund.Fund) FundResponse {
	return FundResponse{
		ID:        f.ID,
		Name:      f.Name,
		Objective: f.Objective,
		Balance:   f.Balance,
		Reserved:  f.Reserved,
		Available: f.Available(),
		Settings: SettingsResponse{
			ContributionRatePercent: f.Settings.ContributionRate.Percent().StringFixed(2),
			Distribution:            f.Settings.Distribution,
			Governance:              f.Settings.Governance,
		},
		CreatedBy: f.CreatedBy,
		CreatedAt: f.CreatedAt,
	}
}

// EligibilityResponse is what a member may request right now. MaxRequestable
// is omitted when the fund asks for no contribution.
type EligibilityResponse struct {
	Eligible        money.Money  `json:"eligible"`
	MaxRequestable  *money.Money `json:"max_requestable,omitempty"`
	Unlimited       bool         `json:"unlimited"`
	CappedByBalance bool         `json:"capped_by_balance"`
}

func ToEligibilityResponse(e accounting.Eligibility) EligibilityResponse {
	out := EligibilityResponse{
		Eligible:        e.Eligible,
		Unlimited:       e.Capacity.Unlimited,
		CappedByBalance: e.CappedByBalance,
	}
	if !e.Capacity.Unlimited {
		limit := e.Capacity.Max
		out.MaxRequestable = &limit
	}
	return out
}

// MemberResponse is a member's ledger position.
type MemberResponse struct {
	AccountID        uuid.UUID            `json:"account_id"`
	IsAdmin          bool                 `json:"is_admin"`
	JoinedAt         time.Time            `json:"joined_at"`
	TotalContributed money.Money          `json:"total_contributed"`
	CapacityCredit   money.Money          `json:"capacity_credit"`
	Reserved         money.Money          `json:"reserved"`
	Outstanding      money.Money          `json:"outstanding"`
	Eligibility      *EligibilityResponse `json:"eligibility,omitempty"`
}

func ToMemberResponse(m *fund.Member, e *accounting.Eligibility) MemberResponse {
	out := MemberResponse{
		AccountID:        m.AccountID,
		IsAdmin:          m.IsAdmin,
		JoinedAt:         m.JoinedAt,
		TotalContributed: m.TotalContributed,
		CapacityCredit:   m.CapacityCredit,
		Reserved:         m.Reserved,
		Outstanding:      m.Outstanding,
	}
	if e != nil {
		er := ToEligibilityResponse(*e)
		out.Eligibility = &er
	}
	return out
}

// RequestResponse is a capital request with its schedule.
type RequestResponse struct {
	ID              uuid.UUID             `json:"id"`
	FundID          uuid.UUID             `json:"fund_id"`
	AccountID       uuid.UUID             `json:"account_id"`
	Amount          money.Money           `json:"amount"`
	Outstanding     money.Money           `json:"outstanding"`
	Status          request.Status        `json:"status"`
	Reason          string                `json:"reason"`
	RejectionReason string                `json:"rejection_reason,omitempty"`
	Plan            accounting.Plan       `json:"plan"`
	Installments    []request.Installment `json:"installments"`
	CreatedAt       time.Time             `json:"created_at"`
	DecidedAt       *time.Time            `json:"decided_at,omitempty"`
	Votes           []*request.Vote       `json:"votes,omitempty"`
}

func ToRequestResponse(cr *request.CapitalRequest) RequestResponse {
	installments := cr.Installments
	if installments == nil {
		installments = []request.Installment{}
	}
	return RequestResponse{
		ID:              cr.ID,
		FundID:          cr.FundID,
		AccountID:       cr.AccountID,
		Amount:          cr.Amount,
		Outstanding:     cr.Outstanding,
		Status:          cr.Status,
		Reason:          cr.Reason,
		RejectionReason: cr.RejectionReason,
		Plan:            cr.Plan,
		Installments:    installments,
		CreatedAt:       cr.CreatedAt,
		DecidedAt:       cr.DecidedAt,
	}
}
