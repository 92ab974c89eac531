package risk

import (
	"testing"

	"github.com/rustyeddy/tradelab/broker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSizeByRisk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       Inputs
		wantQty  string
		wantDist string
		wantRisk string
	}{
		{
			name:     "long",
			in:       Inputs{Balance: d("10000"), RiskPct: d("0.01"), Entry: d("200"), Stop: d("195")},
			wantQty:  "20",
			wantDist: "5",
			wantRisk: "100",
		},
		{
			name:     "short_stop_above",
			in:       Inputs{Balance: d("10000"), RiskPct: d("0.01"), Entry: d("200"), Stop: d("203")},
			wantQty:  "33",
			wantDist: "3",
			wantRisk: "100",
		},
		{
			name:     "lot_step",
			in:       Inputs{Balance: d("10000"), RiskPct: d("0.01"), Entry: d("200"), Stop: d("199"), Step: d("25")},
			wantQty:  "100",
			wantDist: "1",
			wantRisk: "100",
		},
		{
			name:     "fractional_step",
			in:       Inputs{Balance: d("500"), RiskPct: d("0.02"), Entry: d("30000"), Stop: d("29000"), Step: d("0.001")},
			wantQty:  "0.01",
			wantDist: "1000",
			wantRisk: "10",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := SizeByRisk(tt.in)
			require.NoError(t, err)
			assert.True(t, d(tt.wantQty).Equal(got.Quantity), "qty %s", got.Quantity)
			assert.True(t, d(tt.wantDist).Equal(got.StopDistance))
			assert.True(t, d(tt.wantRisk).Equal(got.RiskAmount))
		})
	}

	_, err := SizeByRisk(Inputs{Balance: d("1"), RiskPct: d("0.01"), Entry: d("5"), Stop: d("5")})
	assert.ErrorIs(t, err, ErrNoStopDistance)
}

func TestRR(t *testing.T) {
	t.Parallel()

	assert.True(t, d("2").Equal(RR(d("100"), d("95"), d("110"))))
	assert.True(t, d("2").Equal(RR(d("100"), d("105"), d("90"))))
	assert.True(t, RR(d("100"), d("100"), d("110")).IsZero())

	_, ok := RiskPct(d("10"), d("0"))
	assert.False(t, ok)
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	acct := broker.Account{Balance: d("10000"), AvailableMargin: d("10000")}

	tests := []struct {
		name      string
		intent    TradeIntent
		open      int
		wantCodes []string
	}{
		{
			name:   "allowed",
			intent: TradeIntent{Quantity: d("20"), Entry: d("200"), Stop: d("195"), TakeProfit: d("210"), Margin: d("4000")},
		},
		{
			name:      "risk_too_high",
			intent:    TradeIntent{Quantity: d("100"), Entry: d("200"), Stop: d("195"), Margin: d("4000")},
			wantCodes: []string{"RISK_TOO_HIGH"},
		},
		{
			name:      "rr_too_low",
			intent:    TradeIntent{Quantity: d("10"), Entry: d("200"), Stop: d("195"), TakeProfit: d("205")},
			wantCodes: []string{"RR_TOO_LOW"},
		},
		{
			name:      "too_many_positions_and_margin",
			intent:    TradeIntent{Quantity: d("10"), Entry: d("200"), Stop: d("195"), Margin: d("6000")},
			open:      3,
			wantCodes: []string{"TOO_MANY_OPEN_POSITIONS", "MARGIN_TOO_HIGH"},
		},
		{
			name:      "no_stop",
			intent:    TradeIntent{Quantity: d("10"), Entry: d("200")},
			wantCodes: []string{"NO_STOP_OR_ENTRY"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dec := Evaluate(DefaultPolicy(), tt.intent, acct, tt.open)

			var codes []string
			for _, v := range dec.Violations {
				codes = append(codes, v.Code)
			}
			assert.Equal(t, tt.wantCodes, codes)
			assert.Equal(t, len(tt.wantCodes) == 0, dec.Allowed)
		})
	}
}
