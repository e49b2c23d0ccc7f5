package money

// Code represents a currency code (e.g., "BRL", "USD").
type Code string

// Supported currency codes
const (
	BRL Code = "BRL" // Brazilian Real
	USD Code = "USD" // US Dollar
	EUR Code = "EUR" // Euro
	JPY Code = "JPY" // Japanese Yen
)

// DefaultCode is the currency funds use unless configured otherwise.
const DefaultCode = BRL

// IsValid checks if the currency code has the ISO 4217 shape (3 uppercase letters).
func (c Code) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	return c[0] >= 'A' && c[0] <= 'Z' &&
		c[1] >= 'A' && c[1] <= 'Z' &&
		c[2] >= 'A' && c[2] <= 'Z'
}

// String returns the string representation of the currency code.
func (c Code) String() string {
	return string(c)
}

// ToCurrency converts a Code to a Currency with its standard decimals.
func (c Code) ToCurrency() Currency {
	switch c {
	case JPY:
		return Currency{Code: c, Decimals: 0}
	default:
		return Currency{Code: c, Decimals: 2}
	}
}

// Currency represents a monetary unit with its standard decimal places.
type Currency struct {
	Code     Code // 3-letter ISO 4217 code (e.g., "BRL")
	Decimals int  // Number of decimal places (0-8)
}

// IsValid checks if the currency is valid.
func (c Currency) IsValid() bool {
	return c.Code.IsValid() && c.Decimals >= 0 && c.Decimals <= 8
}

// String returns the currency code as a string
func (c Currency) String() string { return string(c.Code) }
