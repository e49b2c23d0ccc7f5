package money

import "errors"

// Common money package errors
var (
	// ErrMismatchedCurrencies is returned when performing operations on money with
	// different currencies
	ErrMismatchedCurrencies = errors.New("mismatched currencies")

	// ErrInvalidCurrency is returned when a currency code is malformed.
	ErrInvalidCurrency = errors.New("invalid currency code")

	// ErrInvalidAmount is returned when an amount has more decimal places than
	// its currency allows or cannot be represented in the smallest unit.
	ErrInvalidAmount = errors.New("invalid amount")
)
