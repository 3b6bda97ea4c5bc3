package risk

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	e := NewEngine()
	need := big.NewInt(1_000_000_000)
	rich := big.NewInt(5_000_000_000)
	poor := big.NewInt(999_999_999)
	three := decimal.NewFromInt(3)

	cases := []struct {
		name     string
		hasQuote bool
		profit   string
		balance  *big.Int
		want     Reason
	}{
		{"eligible", true, "4.5", rich, OK},
		{"exactly at threshold", true, "3", need, OK},
		{"no quotes", false, "100", rich, NoQuotes},
		{"poor but profitable", true, "100", poor, InsufficientBalance},
		{"rich but unprofitable", true, "2.99", rich, BelowThreshold},
		{"nil balance", true, "100", nil, InsufficientBalance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := e.Check(tc.hasQuote, decimal.RequireFromString(tc.profit), three, tc.balance, need)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestReason_String(t *testing.T) {
	assert.Equal(t, "below_profit_threshold", BelowThreshold.String())
	assert.Equal(t, "ok", OK.String())
}
