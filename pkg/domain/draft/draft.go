// Package draft holds server-side wizard state. A draft is created when a
// multi-step flow starts, updated step by step, and either committed into the
// owning aggregate or discarded. Drafts expire after their TTL.
package draft

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/google/uuid"
)

// Kind selects the flow a draft belongs to.
type Kind string

const (
	KindFund           Kind = "fund"
	KindContribution   Kind = "contribution"
	KindCapitalRequest Kind = "capital_request"
)

// ParseKind validates a draft kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindFund, KindContribution, KindCapitalRequest:
		return k, nil
	}
	return "", domain.Validationf("unknown draft kind %q", s)
}

// Draft is one in-progress wizard.
type Draft struct {
	ID        uuid.UUID       `json:"id"`
	Kind      Kind            `json:"kind"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	Step      int             `json:"step"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// New starts a draft of kind for owner.
func New(kind Kind, owner uuid.UUID, payload json.RawMessage, ttl time.Duration, now time.Time) (*Draft, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	if owner == uuid.Nil {
		return nil, domain.Validationf("draft needs an owner")
	}
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	d := &Draft{
		ID:        uuid.New(),
		Kind:      kind,
		OwnerID:   owner,
		CreatedAt: now,
	}
	if err := d.Update(payload, 0, ttl, now); err != nil {
		return nil, err
	}
	return d, nil
}

// Update replaces the payload, moves to step and extends the expiry.
func (d *Draft) Update(payload json.RawMessage, step int, ttl time.Duration, now time.Time) error {
	if !json.Valid(payload) {
		return domain.Validationf("draft payload is not valid JSON")
	}
	if step < 0 {
		return domain.Validationf("draft step cannot be negative")
	}
	d.Payload = payload
	d.Step = step
	d.UpdatedAt = now
	d.ExpiresAt = now.Add(ttl)
	return nil
}

// Expired reports whether the draft outlived its TTL.
func (d *Draft) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

// Decode unmarshals the payload into v.
func (d *Draft) Decode(v any) error {
	if err := json.Unmarshal(d.Payload, v); err != nil {
		return fmt.Errorf("%w: draft %s payload: %v", domain.ErrValidation, d.ID, err)
	}
	return nil
}

// FundPayload is the fund creation wizard state.
type FundPayload struct {
	Name                    string                          `json:"name"`
	Objective               string                          `json:"objective"`
	Currency                string                          `json:"currency"`
	ContributionRatePercent string                          `json:"contribution_rate_percent"`
	Distribution            *accounting.DistributionSetting `json:"distribution,omitempty"`
	Governance              *accounting.GovernanceSetting   `json:"governance,omitempty"`
}

// ContributionPayload is the contribution wizard state.
type ContributionPayload struct {
	FundID uuid.UUID `json:"fund_id"`
	Amount string    `json:"amount"`
	Note   string    `json:"note"`
}

// CapitalRequestPayload is the capital request wizard state.
type CapitalRequestPayload struct {
	FundID uuid.UUID       `json:"fund_id"`
	Amount string          `json:"amount"`
	Reason string          `json:"reason"`
	Plan   accounting.Plan `json:"plan"`
}
