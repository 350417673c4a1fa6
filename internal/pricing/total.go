package pricing

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/roastdirect/internal/domain"
)

// Policy holds the ranges tax and shipping are drawn from. Totals are a
// placeholder: they do not depend on the destination address.
type Policy struct {
	ShippingMin float64
	ShippingMax float64
	TaxRateMin  float64
	TaxRateMax  float64
}

var DefaultPolicy = Policy{
	ShippingMin: 3.99,
	ShippingMax: 7.99,
	TaxRateMin:  0.05,
	TaxRateMax:  0.12,
}

// PaymentPayload is card-shaped checkout input. Pointer fields distinguish
// missing fields from invalid ones.
type PaymentPayload struct {
	CardNumber      *string         `json:"card_number"`
	CardholderName  *string         `json:"cardholder_name"`
	CVC             *string         `json:"cvc"`
	ExpMonth        *json.Number    `json:"exp_month"`
	ExpYear         *json.Number    `json:"exp_year"`
	ShippingAddress *domain.Address `json:"shipping_address"`
	BillingAddress  *domain.Address `json:"billing_address"`
}

type Totals struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	TaxRate          decimal.Decimal `json:"tax_rate_fraction"`
	TaxRatePercent   decimal.Decimal `json:"tax_rate"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	ShippingCost     decimal.Decimal `json:"shipping_cost"`
	FinalTotal       decimal.Decimal `json:"final_total"`
	ValidationPassed bool            `json:"validation_passed"`
}

type Calculator struct {
	policy Policy
	random func() float64
	now    func() time.Time
}

type Option func(*Calculator)

// WithRandom replaces the uniform [0,1) source used for tax and shipping draws.
func WithRandom(f func() float64) Option {
	return func(c *Calculator) {
		c.random = f
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		c.now = now
	}
}

func NewCalculator(policy Policy, opts ...Option) *Calculator {
	c := &Calculator{
		policy: policy,
		random: rand.Float64,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ComputeFinalTotal validates the payment payload, reporting every problem at
// once, then applies randomized tax and shipping to subtotal.
func (c *Calculator) ComputeFinalTotal(subtotal decimal.Decimal, payment PaymentPayload) (*Totals, error) {
	if !subtotal.IsPositive() {
		return nil, domain.Validation("subtotal must be positive")
	}

	if problems := c.ValidatePayment(payment); len(problems) > 0 {
		return nil, domain.ValidationDetails("payment validation failed", problems)
	}

	shipping := decimal.NewFromFloat(c.uniform(c.policy.ShippingMin, c.policy.ShippingMax)).Round(2)
	taxRate := decimal.NewFromFloat(c.uniform(c.policy.TaxRateMin, c.policy.TaxRateMax))
	taxAmount := subtotal.Mul(taxRate).Round(2)

	return &Totals{
		Subtotal:         subtotal,
		TaxRate:          taxRate,
		TaxRatePercent:   taxRate.Mul(decimal.NewFromInt(100)).Round(1),
		TaxAmount:        taxAmount,
		ShippingCost:     shipping,
		FinalTotal:       subtotal.Add(taxAmount).Add(shipping).Round(2),
		ValidationPassed: true,
	}, nil
}

// ValidatePayment returns all violations found in the payload.
func (c *Calculator) ValidatePayment(p PaymentPayload) []string {
	var problems []string

	for _, f := range []struct {
		name    string
		missing bool
	}{
		{"card_number", p.CardNumber == nil},
		{"cardholder_name", p.CardholderName == nil},
		{"cvc", p.CVC == nil},
		{"exp_month", p.ExpMonth == nil},
		{"exp_year", p.ExpYear == nil},
		{"shipping_address", p.ShippingAddress == nil},
		{"billing_address", p.BillingAddress == nil},
	} {
		if f.missing {
			problems = append(problems, "missing required field: "+f.name)
		}
	}

	if p.CardNumber != nil {
		digits := strings.NewReplacer(" ", "", "-", "").Replace(*p.CardNumber)
		if !allDigits(digits) || len(digits) < 13 || len(digits) > 19 {
			problems = append(problems, "invalid card number format")
		}
	}

	if p.CardholderName != nil {
		name := strings.TrimSpace(*p.CardholderName)
		if n := len([]rune(name)); n < 3 || n > 100 {
			problems = append(problems, "invalid cardholder name")
		}
	}

	if p.CVC != nil {
		if !allDigits(*p.CVC) || len(*p.CVC) < 3 || len(*p.CVC) > 4 {
			problems = append(problems, "invalid CVC format")
		}
	}

	problems = append(problems, c.validateExpiry(p.ExpMonth, p.ExpYear)...)

	if p.ShippingAddress != nil {
		for _, field := range p.ShippingAddress.MissingFields() {
			problems = append(problems, "shipping address missing: "+field)
		}
	}
	if p.BillingAddress != nil {
		for _, field := range p.BillingAddress.MissingFields() {
			problems = append(problems, "billing address missing: "+field)
		}
	}

	return problems
}

func (c *Calculator) validateExpiry(month, year *json.Number) []string {
	var problems []string
	if month != nil {
		m, err := month.Int64()
		switch {
		case err != nil:
			problems = append(problems, "invalid expiration month format")
		case m < 1 || m > 12:
			problems = append(problems, "invalid expiration month (must be 1-12)")
		}
	}
	if year != nil {
		y, err := year.Int64()
		current := int64(c.now().Year())
		switch {
		case err != nil:
			problems = append(problems, "invalid expiration year format")
		case y < current || y > current+20:
			problems = append(problems, fmt.Sprintf("invalid expiration year (must be %d-%d)", current, current+20))
		}
	}
	return problems
}

func (c *Calculator) uniform(lo, hi float64) float64 {
	return lo + c.random()*(hi-lo)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
