// Package money provides functionality for handling monetary values.
//
// It is a value object that represents a monetary value in a specific currency.
// Invariants:
//   - Amount is always stored in the smallest currency unit (e.g., centavos for BRL).
//   - Currency code must be valid ISO 4217 (3 uppercase letters).
//   - All arithmetic operations require matching currencies.
package money

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Amount represents a monetary amount as an integer in the
// smallest currency unit (e.g., centavos for BRL).
type Amount = int64

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// Money represents a monetary value in a specific currency.
type Money struct {
	amount   Amount
	currency Currency
}

// New creates Money from a decimal amount expressed in the main currency unit.
// Invariants enforced:
//   - Currency must be valid.
//   - Amount must not have more decimal places than allowed by the currency.
//   - Amount must fit in the smallest-unit representation.
func New(amount decimal.Decimal, code Code) (Money, error) {
	if !code.IsValid() {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	c := code.ToCurrency()
	units := amount.Shift(int32(c.Decimals))
	if !units.IsInteger() {
		return Money{}, fmt.Errorf(
			"%w: %s has more than %d decimal places",
			ErrInvalidAmount, amount.String(), c.Decimals,
		)
	}
	if units.Abs().GreaterThan(maxAmount) {
		return Money{}, fmt.Errorf("%w: %s overflows", ErrInvalidAmount, amount.String())
	}
	return Money{amount: units.IntPart(), currency: c}, nil
}

// Parse reads a decimal amount in the main currency unit, such as "150.25".
func Parse(amount string, code Code) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return New(d, code)
}

// NewFromFloat creates Money from a float amount in the main currency unit.
func NewFromFloat(amount float64, code Code) (Money, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Money{}, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	return New(decimal.NewFromFloat(amount), code)
}

// NewFromSmallestUnit creates Money from an amount already in the smallest unit.
func NewFromSmallestUnit(amount int64, code Code) (Money, error) {
	if !code.IsValid() {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return Money{amount: amount, currency: code.ToCurrency()}, nil
}

// FromSmallestUnit hydrates Money without validating the code.
// It is meant for repository hydration and tests.
func FromSmallestUnit(amount int64, code Code) Money {
	return Money{amount: amount, currency: code.ToCurrency()}
}

// Zero creates a Money object with zero amount in the specified currency.
func Zero(code Code) Money {
	return Money{currency: code.ToCurrency()}
}

// Amount returns the amount in the smallest currency unit.
func (m Money) Amount() Amount {
	return m.amount
}

// Currency returns the currency code of the Money object.
func (m Money) Currency() Code {
	return m.currency.Code
}

// Decimals returns the number of decimal places of the currency.
func (m Money) Decimals() int {
	return m.currency.Decimals
}

// Unit returns the minimal positive amount of the currency (one centavo for BRL).
func (m Money) Unit() Money {
	return Money{amount: 1, currency: m.currency}
}

// WithAmount returns Money in the same currency with another smallest-unit amount.
func (m Money) WithAmount(amount Amount) Money {
	return Money{amount: amount, currency: m.currency}
}

// Decimal returns the amount in the main currency unit.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.amount, -int32(m.currency.Decimals))
}

// Float returns the amount as a float64 in the main currency unit.
func (m Money) Float() float64 {
	return m.Decimal().InexactFloat64()
}

// String formats the money as "66.67 BRL".
func (m Money) String() string {
	return m.Decimal().StringFixed(int32(m.currency.Decimals)) + " " + string(m.currency.Code)
}

// SameCurrency checks whether both values share a currency.
func (m Money) SameCurrency(other Money) bool {
	return m.currency == other.currency
}

// Add returns the sum of both amounts.
func (m Money) Add(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, fmt.Errorf(
			"%w: cannot add %s and %s",
			ErrMismatchedCurrencies, m.currency.Code, other.currency.Code,
		)
	}
	return Money{amount: m.amount + other.amount, currency: m.currency}, nil
}

// Sub returns the difference of both amounts. The result may be negative.
func (m Money) Sub(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, fmt.Errorf(
			"%w: cannot subtract %s from %s",
			ErrMismatchedCurrencies, other.currency.Code, m.currency.Code,
		)
	}
	return Money{amount: m.amount - other.amount, currency: m.currency}, nil
}

// Cmp compares two amounts of the same currency and returns -1, 0 or +1.
func (m Money) Cmp(other Money) (int, error) {
	if !m.SameCurrency(other) {
		return 0, fmt.Errorf(
			"%w: cannot compare %s and %s",
			ErrMismatchedCurrencies, m.currency.Code, other.currency.Code,
		)
	}
	switch {
	case m.amount < other.amount:
		return -1, nil
	case m.amount > other.amount:
		return 1, nil
	default:
		return 0, nil
	}
}

// GreaterThan reports m > other.
func (m Money) GreaterThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c > 0, err
}

// LessThan reports m < other.
func (m Money) LessThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c < 0, err
}

// Equals checks currency and amount equality.
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount == other.amount
}

// Min returns the smaller of both amounts.
func (m Money) Min(other Money) (Money, error) {
	c, err := m.Cmp(other)
	if err != nil {
		return Money{}, err
	}
	if c <= 0 {
		return m, nil
	}
	return other, nil
}

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool {
	return m.amount > 0
}

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool {
	return m.amount < 0
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool {
	return m.amount == 0
}

type moneyJSON struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Code            `json:"currency"`
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string `json:"amount"`
		Currency Code   `json:"currency"`
	}{m.Decimal().StringFixed(int32(m.currency.Decimals)), m.currency.Code})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Money) UnmarshalJSON(data []byte) error {
	var aux moneyJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Currency == "" {
		aux.Currency = DefaultCode
	}
	v, err := New(aux.Amount, aux.Currency)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
