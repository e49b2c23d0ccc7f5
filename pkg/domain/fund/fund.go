package fund

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/google/uuid"
)

// Settings are the rules a fund's admins can change over time.
type Settings struct {
	ContributionRate accounting.Rate
	Distribution     accounting.DistributionSetting
	Governance       accounting.GovernanceSetting
}

// DefaultSettings is a 100% contribution rate with the default distribution
// and governance settings.
func DefaultSettings() Settings {
	return Settings{
		ContributionRate: accounting.MustRateFromPercent(100),
		Distribution:     accounting.DefaultDistributionSetting,
		Governance:       accounting.DefaultGovernanceSetting,
	}
}

// Fund is a shared pool of money and the aggregate root of its members'
// ledger.
//
// Invariants:
//   - Balance is never negative.
//   - Reserved never exceeds Balance.
//   - Balance and Reserved share the fund currency.
type Fund struct {
	ID        uuid.UUID
	Name      string
	Objective string
	Balance   money.Money
	// Reserved is the sum of pending capital requests.
	Reserved  money.Money
	Settings  Settings
	CreatedBy uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Builder provides a fluent API for constructing Fund instances.
type Builder struct {
	id        uuid.UUID
	name      string
	objective string
	currency  money.Code
	balance   int64
	reserved  int64
	settings  Settings
	createdBy uuid.UUID
	createdAt time.Time
	updatedAt time.Time
}

// New starts a Builder with a fresh id, the default currency and settings.
func New() *Builder {
	now := time.Now().UTC()
	return &Builder{
		id:        uuid.New(),
		currency:  money.DefaultCode,
		settings:  DefaultSettings(),
		createdAt: now,
		updatedAt: now,
	}
}

func (b *Builder) WithID(id uuid.UUID) *Builder {
	b.id = id
	return b
}

func (b *Builder) WithName(name string) *Builder {
	b.name = name
	return b
}

func (b *Builder) WithObjective(objective string) *Builder {
	b.objective = objective
	return b
}

func (b *Builder) WithCurrency(code money.Code) *Builder {
	b.currency = code
	return b
}

// WithBalance sets balance and reservation in the smallest unit. It should
// only be used for hydrating a fund from a data store or for test setup.
func (b *Builder) WithBalance(balance, reserved int64) *Builder {
	b.balance = balance
	b.reserved = reserved
	return b
}

func (b *Builder) WithSettings(s Settings) *Builder {
	b.settings = s
	return b
}

func (b *Builder) WithCreatedBy(userID uuid.UUID) *Builder {
	b.createdBy = userID
	return b
}

func (b *Builder) WithTimestamps(created, updated time.Time) *Builder {
	b.createdAt = created
	b.updatedAt = updated
	return b
}

// Build validates the fund invariants and returns the Fund.
func (b *Builder) Build() (*Fund, error) {
	name := strings.TrimSpace(b.name)
	if name == "" {
		return nil, domain.Validationf("fund name is required")
	}
	if len(name) > 120 {
		return nil, domain.Validationf("fund name is too long")
	}
	if !b.currency.IsValid() {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, money.ErrInvalidCurrency)
	}
	if b.createdBy == uuid.Nil {
		return nil, domain.Validationf("fund creator is required")
	}
	if b.balance < 0 || b.reserved < 0 || b.reserved > b.balance {
		return nil, domain.Validationf("inconsistent fund balance %d with %d reserved", b.balance, b.reserved)
	}
	if err := b.settings.Distribution.Validate(); err != nil {
		return nil, err
	}
	if err := b.settings.Governance.Validate(); err != nil {
		return nil, err
	}
	return &Fund{
		ID:        b.id,
		Name:      name,
		Objective: strings.TrimSpace(b.objective),
		Balance:   money.FromSmallestUnit(b.balance, b.currency),
		Reserved:  money.FromSmallestUnit(b.reserved, b.currency),
		Settings:  b.settings,
		CreatedBy: b.createdBy,
		CreatedAt: b.createdAt,
		UpdatedAt: b.updatedAt,
	}, nil
}

// Currency is the fund's currency code.
func (f *Fund) Currency() money.Code {
	return f.Balance.Currency()
}

// Available is the balance not committed to pending requests.
func (f *Fund) Available() money.Money {
	return f.Balance.WithAmount(f.Balance.Amount() - f.Reserved.Amount())
}

// Credit adds a contribution or repayment to the balance.
func (f *Fund) Credit(amount money.Money) error {
	if err := f.checkAmount(amount); err != nil {
		return err
	}
	sum, err := f.Balance.Add(amount)
	if err != nil {
		return err
	}
	f.Balance = sum
	return nil
}

// Reserve sets aside amount for a pending request.
func (f *Fund) Reserve(amount money.Money) error {
	if err := f.checkAmount(amount); err != nil {
		return err
	}
	if amount.Amount() > f.Available().Amount() {
		return &domain.InsufficientCapacityError{Requested: amount, Available: f.Available()}
	}
	f.Reserved = f.Reserved.WithAmount(f.Reserved.Amount() + amount.Amount())
	return nil
}

// Release returns a reservation to the available balance.
func (f *Fund) Release(amount money.Money) error {
	if err := f.checkAmount(amount); err != nil {
		return err
	}
	if amount.Amount() > f.Reserved.Amount() {
		return domain.Validationf("cannot release %s, only %s reserved", amount, f.Reserved)
	}
	f.Reserved = f.Reserved.WithAmount(f.Reserved.Amount() - amount.Amount())
	return nil
}

// Disburse pays out a reserved amount to the requester.
func (f *Fund) Disburse(amount money.Money) error {
	if err := f.Release(amount); err != nil {
		return err
	}
	f.Balance = f.Balance.WithAmount(f.Balance.Amount() - amount.Amount())
	return nil
}

func (f *Fund) checkAmount(amount money.Money) error {
	if !amount.SameCurrency(f.Balance) {
		return fmt.Errorf("%w: %w", domain.ErrValidation, money.ErrMismatchedCurrencies)
	}
	if !amount.IsPositive() {
		return domain.Validationf("amount must be positive: %s", amount)
	}
	return nil
}

// SettingField names a versioned fund setting.
type SettingField string

const (
	FieldContributionRate SettingField = "contribution_rate"
	FieldDistribution     SettingField = "distribution"
	FieldGovernance       SettingField = "governance"
)

// ParseSettingField validates a history filter.
func ParseSettingField(s string) (SettingField, error) {
	switch f := SettingField(s); f {
	case FieldContributionRate, FieldDistribution, FieldGovernance:
		return f, nil
	}
	return "", domain.Validationf("unknown setting %q", s)
}

// SettingChange is one append-only entry of a fund's settings history.
type SettingChange struct {
	ID        uuid.UUID    `json:"id"`
	FundID    uuid.UUID    `json:"fund_id"`
	Field     SettingField `json:"field"`
	OldValue  string       `json:"old_value"`
	NewValue  string       `json:"new_value"`
	ChangedBy uuid.UUID    `json:"changed_by"`
	ChangedAt time.Time    `json:"changed_at"`
}

// SetContributionRate changes the rate and returns the history entry.
func (f *Fund) SetContributionRate(rate accounting.Rate, by uuid.UUID, now time.Time) SettingChange {
	old := f.Settings.ContributionRate
	f.Settings.ContributionRate = rate
	f.UpdatedAt = now
	return f.change(FieldContributionRate, old.Fraction().StringFixed(accounting.RatePrecision),
		rate.Fraction().StringFixed(accounting.RatePrecision), by, now)
}

// SetDistribution changes the distribution setting and returns the history entry.
func (f *Fund) SetDistribution(s accounting.DistributionSetting, by uuid.UUID, now time.Time) (SettingChange, error) {
	if s.ZeroStake == "" {
		s.ZeroStake = accounting.ZeroStakeFallbackEqual
	}
	if err := s.Validate(); err != nil {
		return SettingChange{}, err
	}
	old := f.Settings.Distribution
	f.Settings.Distribution = s
	f.UpdatedAt = now
	return f.change(FieldDistribution, encode(old), encode(s), by, now), nil
}

// SetGovernance changes the governance setting and returns the history entry.
func (f *Fund) SetGovernance(g accounting.GovernanceSetting, by uuid.UUID, now time.Time) (SettingChange, error) {
	if err := g.Validate(); err != nil {
		return SettingChange{}, err
	}
	old := f.Settings.Governance
	f.Settings.Governance = g
	f.UpdatedAt = now
	return f.change(FieldGovernance, encode(old), encode(g), by, now), nil
}

func (f *Fund) change(field SettingField, old, updated string, by uuid.UUID, now time.Time) SettingChange {
	return SettingChange{
		ID:        uuid.New(),
		FundID:    f.ID,
		Field:     field,
		OldValue:  old,
		NewValue:  updated,
		ChangedBy: by,
		ChangedAt: now,
	}
}

func encode(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
