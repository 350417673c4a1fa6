package domain

import "github.com/shopspring/decimal"

// MaxAmount is the largest price or total a NUMERIC(10, 2) column holds.
var MaxAmount = decimal.RequireFromString("99999999.99")

func init() {
	// Money goes over the wire as JSON numbers; storefront code formats it with toFixed.
	decimal.MarshalJSONWithoutQuotes = true
}

// AmountInRange reports whether d is positive and storable.
func AmountInRange(d decimal.Decimal) bool {
	return d.IsPositive() && d.LessThanOrEqual(MaxAmount)
}
