package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyMarshalsAsNumber(t *testing.T) {
	data, err := json.Marshal(LineItem{Quantity: 3, PriceAtTime: decimal.RequireFromString("12.50")})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"price_at_time":12.5`)

	var item LineItem
	require.NoError(t, json.Unmarshal([]byte(`{"price_at_time":"17.48"}`), &item))
	assert.True(t, decimal.RequireFromString("17.48").Equal(item.PriceAtTime))
}

func TestAmountInRange(t *testing.T) {
	tests := []struct {
		amount string
		want   bool
	}{
		{"0.01", true},
		{"99999999.99", true},
		{"100000000", false},
		{"1e9", false},
		{"0", false},
		{"-5", false},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, AmountInRange(decimal.RequireFromString(tt.amount)))
		})
	}
}
