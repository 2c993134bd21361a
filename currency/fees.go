package currency

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	domesticFeeRate  = decimal.RequireFromString("0.029")
	foreignFeeRate   = decimal.RequireFromString("0.039")
	fixedFeeMajor    = decimal.RequireFromString("0.30")
	feeDecimalPlaces = int32(2)
)

// FeeRate returns the percentage rate applied to payments in the currency.
// Domestic (USD) card payments pay the lower rate.
func FeeRate(c Currency) decimal.Decimal {
	if c.Code == USD {
		return domesticFeeRate
	}
	return foreignFeeRate
}

// EstimateFee returns the estimated processing fee for an amount in major
// units: rate * amount + 0.30, rounded to the currency precision. Real Stripe
// fees vary by card, country and account; this is only an estimate shown
// before paying.
func EstimateFee(amount decimal.Decimal, c Currency) decimal.Decimal {
	fee := amount.Mul(FeeRate(c)).Add(fixedFeeMajor)
	places := feeDecimalPlaces
	if c.Exponent < places {
		places = c.Exponent
	}
	return fee.Round(places)
}

// Quote summarizes what a payer should expect before sending a payment.
type Quote struct {
	Currency         Code            `json:"currency"`
	Amount           decimal.Decimal `json:"amount"`
	EstimatedFee     decimal.Decimal `json:"estimatedFee"`
	Total            decimal.Decimal `json:"total"`
	ClearanceTime    string          `json:"clearanceTime"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	ExceedsBalance   bool            `json:"exceedsBalance"`
	Warning          string          `json:"warning,omitempty"`
}

// NewQuote builds the quote for an amount given the available balance of the
// account in the same currency.
func NewQuote(amount decimal.Decimal, c Currency, available decimal.Decimal) Quote {
	fee := EstimateFee(amount, c)
	q := Quote{
		Currency:         c.Code,
		Amount:           amount,
		EstimatedFee:     fee,
		Total:            amount.Add(fee),
		ClearanceTime:    c.ClearanceTime,
		AvailableBalance: available,
	}
	if amount.GreaterThan(available) {
		q.ExceedsBalance = true
		q.Warning = fmt.Sprintf("the amount exceeds the available balance of %s %s",
			available.StringFixed(c.Exponent), c.Code)
	}
	return q
}
