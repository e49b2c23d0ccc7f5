// Package events defines the domain events emitted after a fund operation
// commits.
package events

import (
	"time"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/eventbus"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/google/uuid"
)

// FlowEvent carries the fields every fund event shares.
type FlowEvent struct {
	ID         uuid.UUID `json:"id"`
	FundID     uuid.UUID `json:"fund_id"`
	AccountID  uuid.UUID `json:"account_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newFlow(fundID, accountID uuid.UUID) FlowEvent {
	return FlowEvent{
		ID:         uuid.New(),
		FundID:     fundID,
		AccountID:  accountID,
		OccurredAt: time.Now().UTC(),
	}
}

// ContributionRecorded is emitted when a contribution is credited to a fund.
type ContributionRecorded struct {
	FlowEvent
	ContributionID uuid.UUID   `json:"contribution_id"`
	Amount         money.Money `json:"amount"`
	FundBalance    money.Money `json:"fund_balance"`
}

func (e ContributionRecorded) Type() string { return "ContributionRecorded" }

// NewContributionRecorded builds a ContributionRecorded event.
func NewContributionRecorded(fundID, accountID, contributionID uuid.UUID, amount, balance money.Money) *ContributionRecorded {
	return &ContributionRecorded{
		FlowEvent:      newFlow(fundID, accountID),
		ContributionID: contributionID,
		Amount:         amount,
		FundBalance:    balance,
	}
}

// CapitalRequestSubmitted is emitted when a request enters voting.
type CapitalRequestSubmitted struct {
	FlowEvent
	RequestID uuid.UUID   `json:"request_id"`
	Amount    money.Money `json:"amount"`
}

func (e CapitalRequestSubmitted) Type() string { return "CapitalRequestSubmitted" }

func NewCapitalRequestSubmitted(fundID, accountID, requestID uuid.UUID, amount money.Money) *CapitalRequestSubmitted {
	return &CapitalRequestSubmitted{
		FlowEvent: newFlow(fundID, accountID),
		RequestID: requestID,
		Amount:    amount,
	}
}

// CapitalRequestDecided is emitted when a request is approved, rejected or cancelled.
type CapitalRequestDecided struct {
	FlowEvent
	RequestID uuid.UUID `json:"request_id"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
}

func (e CapitalRequestDecided) Type() string { return "CapitalRequestDecided" }

func NewCapitalRequestDecided(fundID, accountID, requestID uuid.UUID, status, reason string) *CapitalRequestDecided {
	return &CapitalRequestDecided{
		FlowEvent: newFlow(fundID, accountID),
		RequestID: requestID,
		Status:    status,
		Reason:    reason,
	}
}

// RetributionDistributed is emitted when a repayment raised members' capacity.
type RetributionDistributed struct {
	FlowEvent
	RetributionID uuid.UUID                   `json:"retribution_id"`
	RequestID     uuid.UUID                   `json:"request_id"`
	Amount        money.Money                 `json:"amount"`
	Distribution  accounting.DistributionType `json:"distribution"`
	Shares        []accounting.Share          `json:"shares"`
}

func (e RetributionDistributed) Type() string { return "RetributionDistributed" }

func NewRetributionDistributed(
	fundID, payerID, retributionID, requestID uuid.UUID,
	amount money.Money,
	distribution accounting.DistributionType,
	shares []accounting.Share,
) *RetributionDistributed {
	return &RetributionDistributed{
		FlowEvent:     newFlow(fundID, payerID),
		RetributionID: retributionID,
		RequestID:     requestID,
		Amount:        amount,
		Distribution:  distribution,
		Shares:        shares,
	}
}

// FundSettingChanged is emitted for every settings history entry.
type FundSettingChanged struct {
	FlowEvent
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

func (e FundSettingChanged) Type() string { return "FundSettingChanged" }

func NewFundSettingChanged(fundID, changedBy uuid.UUID, field, oldValue, newValue string) *FundSettingChanged {
	return &FundSettingChanged{
		FlowEvent: newFlow(fundID, changedBy),
		Field:     field,
		OldValue:  oldValue,
		NewValue:  newValue,
	}
}

// EventTypes maps type names to constructors for transports that decode
// events from the wire.
var EventTypes = map[string]func() eventbus.Event{
	"ContributionRecorded":    func() eventbus.Event { return &ContributionRecorded{} },
	"CapitalRequestSubmitted": func() eventbus.Event { return &CapitalRequestSubmitted{} },
	"CapitalRequestDecided":   func() eventbus.Event { return &CapitalRequestDecided{} },
	"RetributionDistributed":  func() eventbus.Event { return &RetributionDistributed{} },
	"FundSettingChanged":      func() eventbus.Event { return &FundSettingChanged{} },
}
