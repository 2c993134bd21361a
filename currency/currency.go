// Package currency holds the static currency catalog of the gateway: names,
// minor-unit exponents, home countries, clearance times, fee estimates and
// the bank details table shown per currency.
package currency

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnsupportedCurrency is returned for currency codes outside the catalog.
var ErrUnsupportedCurrency = fmt.Errorf("unsupported currency")

// Code is an ISO 4217 currency code in upper case.
type Code string

const (
	USD Code = "USD"
	EUR Code = "EUR"
	GBP Code = "GBP"
	JPY Code = "JPY"
	CAD Code = "CAD"
	AUD Code = "AUD"
	CHF Code = "CHF"
	CNY Code = "CNY"
	HKD Code = "HKD"
	SGD Code = "SGD"
)

// Bank debit rails understood by Stripe PaymentIntents.
const (
	RailACHDebit  = "ach_debit"
	RailSEPADebit = "sepa_debit"
)

const (
	clearanceFast    = "2-3 business days"
	clearanceSlow    = "3-5 business days"
	clearanceDefault = "5-7 business days"
)

// Currency describes a currency supported by the gateway.
type Currency struct {
	Code        Code   `json:"code"`
	Name        string `json:"name"`
	Exponent    int32  `json:"exponent"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	// ClearanceTime is the usual time a payment in this currency takes to
	// become available.
	ClearanceTime string `json:"clearanceTime"`
	// BankDebit is the Stripe payment method type used to debit a bank
	// account in this currency. Empty when bank debits are not offered.
	BankDebit string `json:"bankDebit,omitempty"`
}

var catalog = []Currency{
	{Code: USD, Name: "United States Dollar", Exponent: 2, Country: "United States", CountryCode: "US", ClearanceTime: clearanceFast, BankDebit: RailACHDebit},
	{Code: EUR, Name: "Euro", Exponent: 2, Country: "European Union", CountryCode: "DE", ClearanceTime: clearanceFast, BankDebit: RailSEPADebit},
	{Code: GBP, Name: "British Pound Sterling", Exponent: 2, Country: "United Kingdom", CountryCode: "GB", ClearanceTime: clearanceFast},
	{Code: JPY, Name: "Japanese Yen", Exponent: 0, Country: "Japan", CountryCode: "JP", ClearanceTime: clearanceSlow},
	{Code: CAD, Name: "Canadian Dollar", Exponent: 2, Country: "Canada", CountryCode: "CA", ClearanceTime: clearanceFast},
	{Code: AUD, Name: "Australian Dollar", Exponent: 2, Country: "Australia", CountryCode: "AU", ClearanceTime: clearanceFast},
	{Code: CHF, Name: "Swiss Franc", Exponent: 2, Country: "Switzerland", CountryCode: "CH", ClearanceTime: clearanceSlow},
	{Code: CNY, Name: "Chinese Yuan", Exponent: 2, Country: "China", CountryCode: "CN", ClearanceTime: clearanceSlow},
	{Code: HKD, Name: "Hong Kong Dollar", Exponent: 2, Country: "Hong Kong", CountryCode: "HK", ClearanceTime: clearanceSlow},
	{Code: SGD, Name: "Singapore Dollar", Exponent: 2, Country: "Singapore", CountryCode: "SG", ClearanceTime: clearanceSlow},
}

var byCode = func() map[Code]Currency {
	m := make(map[Code]Currency, len(catalog))
	for _, c := range catalog {
		m[c.Code] = c
	}
	return m
}()

// Lookup returns the currency for the given code. The code is matched case
// insensitively.
func Lookup(code string) (Currency, error) {
	c, ok := byCode[Code(strings.ToUpper(strings.TrimSpace(code)))]
	if !ok {
		return Currency{}, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, code)
	}
	return c, nil
}

// All returns every supported currency in catalog order.
func All() []Currency {
	out := make([]Currency, len(catalog))
	copy(out, catalog)
	return out
}

// Lower returns the code in the lower case form used by the Stripe API.
func (c Currency) Lower() string {
	return strings.ToLower(string(c.Code))
}

// ClearanceTime returns the estimated clearance time for a currency code.
// Unknown codes get the slowest estimate.
func ClearanceTime(code string) string {
	if c, err := Lookup(code); err == nil {
		return c.ClearanceTime
	}
	return clearanceDefault
}

// ExponentOf returns the minor-unit exponent of a currency code, falling
// back to 2 for currencies outside the catalog (Stripe may report balances
// in any currency enabled on the account).
func ExponentOf(code string) int32 {
	if c, err := Lookup(code); err == nil {
		return c.Exponent
	}
	return 2
}

// ParseAmount parses a major-unit amount such as "12.50". The amount must be
// positive and must not carry more fractional digits than the currency
// allows.
func ParseAmount(raw string, c Currency) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not parse amount %q: %w", raw, err)
	}
	return amount, ValidateAmount(amount, c)
}

// MaxMinorAmount is the largest amount, in minor units, Stripe accepts for a
// single charge.
const MaxMinorAmount = 99999999

// ValidateAmount checks that an already decoded amount is positive, fits the
// currency precision and does not exceed MaxMinorAmount.
func ValidateAmount(amount decimal.Decimal, c Currency) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	if -amount.Exponent() > c.Exponent && !amount.Equal(amount.Truncate(c.Exponent)) {
		return fmt.Errorf("amount has more than %d decimal places for %s", c.Exponent, c.Code)
	}
	if amount.Shift(c.Exponent).GreaterThan(decimal.NewFromInt(MaxMinorAmount)) {
		return fmt.Errorf("amount exceeds the maximum of %s %s",
			FromMinorUnits(MaxMinorAmount, c).StringFixed(c.Exponent), c.Code)
	}
	return nil
}

// ToMinorUnits converts a major-unit amount to the integer amount expected
// by Stripe (cents for USD, yen for JPY). The amount must have passed
// ValidateAmount.
func ToMinorUnits(amount decimal.Decimal, c Currency) int64 {
	return amount.Shift(c.Exponent).Round(0).IntPart()
}

// FromMinorUnits converts an integer Stripe amount to major units.
func FromMinorUnits(minor int64, c Currency) decimal.Decimal {
	return decimal.New(minor, -c.Exponent)
}
