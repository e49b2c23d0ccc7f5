// Package accounting holds the authoritative money rules of a collective fund:
// how much a member may request, how retributions are shared among members,
// how repayment schedules are laid out, and how votes settle a request.
//
// Everything here is pure computation over money.Money values. Callers are
// responsible for reading the inputs from a consistent snapshot.
package accounting

import (
	"fmt"
	"math"
	"strings"

	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/shopspring/decimal"
)

// RatePrecision is the number of decimal places a rate fraction is stored with.
const RatePrecision = 4

var (
	hundred  = decimal.NewFromInt(100)
	maxUnits = decimal.NewFromInt(math.MaxInt64)
)

// Rate is a fund's contribution rate expressed as a fraction:
// 0.5000 means 50%, 2.0000 means 200%. A zero rate means no contribution
// is required to request capital.
type Rate struct {
	fraction decimal.Decimal
}

// NewRate builds a Rate from a fraction, rounded to RatePrecision places.
func NewRate(fraction decimal.Decimal) (Rate, error) {
	if fraction.IsNegative() {
		return Rate{}, domain.Validationf("contribution rate cannot be negative: %s", fraction)
	}
	rounded := fraction.Round(RatePrecision)
	if rounded.IsZero() && !fraction.IsZero() {
		return Rate{}, domain.Validationf("contribution rate %s is below the stored precision", fraction)
	}
	return Rate{fraction: rounded}, nil
}

// RateFromPercent builds a Rate from a percentage such as 50 or 200.
func RateFromPercent(percent decimal.Decimal) (Rate, error) {
	return NewRate(percent.Div(hundred))
}

// ParseRate parses a percentage such as "50", "200" or "33.5". Surrounding
// spaces and a trailing "%" are accepted.
func ParseRate(percent string) (Rate, error) {
	text := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(percent), "%"))
	d, err := decimal.NewFromString(text)
	if err != nil {
		return Rate{}, domain.Validationf("contribution rate %q is not a number", percent)
	}
	return RateFromPercent(d)
}

// MustRateFromPercent is RateFromPercent for constants and tests.
func MustRateFromPercent(percent int64) Rate {
	r, err := RateFromPercent(decimal.NewFromInt(percent))
	if err != nil {
		panic(err)
	}
	return r
}

// Fraction returns the stored fraction (0.5000 for 50%).
func (r Rate) Fraction() decimal.Decimal {
	return r.fraction
}

// Percent returns the rate as a percentage.
func (r Rate) Percent() decimal.Decimal {
	return r.fraction.Mul(hundred)
}

// IsZero reports the "no contribution required" rate.
func (r Rate) IsZero() bool {
	return r.fraction.IsZero()
}

// String renders the rate as a percentage, e.g. "200.00%".
func (r Rate) String() string {
	return r.Percent().StringFixed(2) + "%"
}

// Capacity is the maximum amount a member could request from contributions
// alone. Unlimited is set for a zero contribution rate, in which case Max is
// meaningless and only the fund balance caps the request.
type Capacity struct {
	Unlimited bool
	Max       money.Money
}

// MaxRequestable computes totalContributed / rate, floored to the smallest
// currency unit so a member is never granted more than the rate allows.
func MaxRequestable(totalContributed money.Money, rate Rate) (Capacity, error) {
	if totalContributed.IsNegative() {
		return Capacity{}, domain.Validationf("total contributed cannot be negative: %s", totalContributed)
	}
	if rate.IsZero() {
		return Capacity{Unlimited: true, Max: money.Zero(totalContributed.Currency())}, nil
	}
	q, _ := decimal.NewFromInt(totalContributed.Amount()).QuoRem(rate.fraction, 0)
	if q.GreaterThan(maxUnits) {
		q = maxUnits
	}
	return Capacity{Max: totalContributed.WithAmount(q.IntPart())}, nil
}

// Position is a member's standing in a fund as read from the ledger.
type Position struct {
	// TotalContributed is the lifetime sum of the member's contributions.
	TotalContributed money.Money
	// CapacityCredit is the sum of capacity increases granted by retributions.
	CapacityCredit money.Money
	// Reserved is capacity already committed to pending or unpaid requests.
	Reserved money.Money
}

// Eligibility is the result of an eligibility computation.
type Eligibility struct {
	Capacity Capacity
	// Eligible is the amount the member may request right now.
	Eligible money.Money
	// CappedByBalance is set when the fund's available balance is the binding limit.
	CappedByBalance bool
}

// ComputeEligibility returns min(maxRequestable + credit - reserved, available),
// never below zero. With no credit and no reservations this is exactly
// min(maxRequestable, available).
func ComputeEligibility(pos Position, rate Rate, available money.Money) (Eligibility, error) {
	if err := mustSameCurrency(available, pos.TotalContributed, pos.CapacityCredit, pos.Reserved); err != nil {
		return Eligibility{}, domain.Validationf("position and fund balance: %v", err)
	}
	if pos.CapacityCredit.IsNegative() || pos.Reserved.IsNegative() {
		return Eligibility{}, domain.Validationf("position amounts cannot be negative")
	}
	capacity, err := MaxRequestable(pos.TotalContributed, rate)
	if err != nil {
		return Eligibility{}, err
	}
	avail := clampZero(available)
	if capacity.Unlimited {
		return Eligibility{Capacity: capacity, Eligible: avail, CappedByBalance: true}, nil
	}
	personal := capacity.Max.WithAmount(
		saturatingAdd(capacity.Max.Amount(), pos.CapacityCredit.Amount()) - pos.Reserved.Amount(),
	)
	personal = clampZero(personal)
	if avail.Amount() < personal.Amount() {
		return Eligibility{Capacity: capacity, Eligible: avail, CappedByBalance: true}, nil
	}
	return Eligibility{Capacity: capacity, Eligible: personal}, nil
}

// CheckRequest verifies a requested amount against an eligibility result.
func CheckRequest(amount money.Money, e Eligibility) error {
	if !amount.IsPositive() {
		return domain.Validationf("requested amount must be positive: %s", amount)
	}
	if err := mustSameCurrency(e.Eligible, amount); err != nil {
		return domain.Validationf("requested amount: %v", err)
	}
	if amount.Amount() > e.Eligible.Amount() {
		return &InsufficientCapacity{Requested: amount, Available: e.Eligible}
	}
	return nil
}

// InsufficientCapacity is the domain error returned by CheckRequest.
type InsufficientCapacity = domain.InsufficientCapacityError

func clampZero(m money.Money) money.Money {
	if m.IsNegative() {
		return m.WithAmount(0)
	}
	return m
}

func saturatingAdd(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

func mustSameCurrency(base money.Money, others ...money.Money) error {
	for _, o := range others {
		if !base.SameCurrency(o) {
			return fmt.Errorf("%w: %s and %s", money.ErrMismatchedCurrencies, base.Currency(), o.Currency())
		}
	}
	return nil
}
