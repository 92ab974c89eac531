package broker

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "want %s, got %s", want, got)
}

type tickCase struct {
	name      string
	side      Side
	prev      string
	price     string
	wantFill  bool
	wantPrice string
}

func runTickCases(t *testing.T, et ExecutionType, tests []tickCase) {
	t.Helper()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := et.Clone().TryExecute(tt.side, d(tt.prev), d(tt.price))
			require.Equal(t, tt.wantFill, ok)
			if tt.wantFill {
				assertDec(t, tt.wantPrice, got)
			}
		})
	}
}

func TestMarketAlwaysFillsAtNewPrice(t *testing.T) {
	t.Parallel()

	runTickCases(t, Market{}, []tickCase{
		{name: "buy", side: Buy, prev: "100", price: "101", wantFill: true, wantPrice: "101"},
		{name: "sell", side: Sell, prev: "100", price: "99", wantFill: true, wantPrice: "99"},
	})

	_, ok := Market{}.ReferencePrice()
	assert.False(t, ok)
}

func TestLimit(t *testing.T) {
	t.Parallel()

	buy, err := NewLimit(d("200"))
	require.NoError(t, err)
	runTickCases(t, buy, []tickCase{
		{name: "buy_crossing_fills_at_limit", side: Buy, prev: "205", price: "195", wantFill: true, wantPrice: "200"},
		{name: "buy_touch_fills_at_limit", side: Buy, prev: "205", price: "200", wantFill: true, wantPrice: "200"},
		{name: "buy_above_limit", side: Buy, prev: "205", price: "201"},
		{name: "buy_already_below_fills_at_prev", side: Buy, prev: "199", price: "210", wantFill: true, wantPrice: "199"},
	})

	sell, err := NewLimit(d("210"))
	require.NoError(t, err)
	runTickCases(t, sell, []tickCase{
		{name: "sell_crossing_fills_at_limit", side: Sell, prev: "205", price: "215", wantFill: true, wantPrice: "210"},
		{name: "sell_below_limit", side: Sell, prev: "205", price: "209"},
		{name: "sell_already_above_fills_at_prev", side: Sell, prev: "212", price: "200", wantFill: true, wantPrice: "212"},
	})

	_, err = NewLimit(d("0"))
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestStopMarket(t *testing.T) {
	t.Parallel()

	buy, err := NewStopMarket(d("110"))
	require.NoError(t, err)
	runTickCases(t, buy, []tickCase{
		{name: "buy_rising_through_fills_at_price", side: Buy, prev: "100", price: "112", wantFill: true, wantPrice: "112"},
		{name: "buy_below_trigger", side: Buy, prev: "100", price: "109"},
		{name: "buy_already_above_fills_at_prev", side: Buy, prev: "111", price: "105", wantFill: true, wantPrice: "111"},
	})

	sell, err := NewStopMarket(d("90"))
	require.NoError(t, err)
	runTickCases(t, sell, []tickCase{
		{name: "sell_falling_through_fills_at_price", side: Sell, prev: "100", price: "88", wantFill: true, wantPrice: "88"},
		{name: "sell_above_trigger", side: Sell, prev: "100", price: "91"},
		{name: "sell_already_below_fills_at_prev", side: Sell, prev: "89", price: "95", wantFill: true, wantPrice: "89"},
	})

	ref, ok := sell.ReferencePrice()
	assert.True(t, ok)
	assertDec(t, "90", ref)
}

func TestStopLimit(t *testing.T) {
	t.Parallel()

	buy, err := NewStopLimit(Buy, d("100"), d("105"))
	require.NoError(t, err)
	runTickCases(t, buy, []tickCase{
		{name: "buy_not_triggered", side: Buy, prev: "95", price: "98"},
		{name: "buy_triggered_inside_limit", side: Buy, prev: "95", price: "102", wantFill: true, wantPrice: "102"},
		{name: "buy_jumps_past_both", side: Buy, prev: "95", price: "110", wantFill: true, wantPrice: "105"},
		{name: "buy_already_triggered_fills_at_prev", side: Buy, prev: "101", price: "120", wantFill: true, wantPrice: "101"},
		{name: "buy_past_limit_is_void", side: Buy, prev: "110", price: "112"},
		{name: "buy_back_through_limit", side: Buy, prev: "110", price: "104", wantFill: true, wantPrice: "105"},
	})

	sell, err := NewStopLimit(Sell, d("100"), d("95"))
	require.NoError(t, err)
	runTickCases(t, sell, []tickCase{
		{name: "sell_not_triggered", side: Sell, prev: "105", price: "102"},
		{name: "sell_triggered_inside_limit", side: Sell, prev: "105", price: "98", wantFill: true, wantPrice: "98"},
		{name: "sell_jumps_past_both", side: Sell, prev: "105", price: "90", wantFill: true, wantPrice: "95"},
		{name: "sell_already_triggered_fills_at_prev", side: Sell, prev: "99", price: "80", wantFill: true, wantPrice: "99"},
		{name: "sell_past_limit_is_void", side: Sell, prev: "90", price: "88"},
		{name: "sell_back_through_limit", side: Sell, prev: "90", price: "96", wantFill: true, wantPrice: "95"},
	})
}

func TestStopLimitValidation(t *testing.T) {
	t.Parallel()

	_, err := NewStopLimit(Buy, d("105"), d("100"))
	assert.ErrorIs(t, err, ErrInvalidStopLimit)

	_, err = NewStopLimit(Sell, d("95"), d("100"))
	assert.ErrorIs(t, err, ErrInvalidStopLimit)

	sl := StopLimit{Trigger: d("100"), Limit: d("105")}
	assert.NoError(t, sl.ValidateFor(Buy))
	assert.ErrorIs(t, sl.ValidateFor(Sell), ErrInvalidStopLimit)
}

type step struct {
	prev, price string
	fill        bool
	fillPrice   string
}

func walk(t *testing.T, ts *TrailingStop, side Side, steps []step) {
	t.Helper()
	for i, s := range steps {
		got, ok := ts.TryExecute(side, d(s.prev), d(s.price))
		require.Equalf(t, s.fill, ok, "step %d (%s -> %s)", i, s.prev, s.price)
		if s.fill {
			assertDec(t, s.fillPrice, got)
		}
	}
}

func TestTrailingStopSell(t *testing.T) {
	t.Parallel()

	ts, err := NewTrailingStop(d("0.1"), d("100"))
	require.NoError(t, err)

	walk(t, ts, Sell, []step{
		{prev: "90", price: "95"},
		{prev: "95", price: "100"},
	})
	assert.True(t, ts.Active())
	lvl, _ := ts.Level()
	assertDec(t, "90", lvl)

	walk(t, ts, Sell, []step{
		{prev: "100", price: "120"},
		{prev: "120", price: "110"},
	})
	lvl, _ = ts.Level()
	assertDec(t, "108", lvl)

	walk(t, ts, Sell, []step{
		{prev: "110", price: "107", fill: true, fillPrice: "107"},
	})
}

func TestTrailingStopBuy(t *testing.T) {
	t.Parallel()

	ts, err := NewTrailingStop(d("0.1"), d("100"))
	require.NoError(t, err)

	walk(t, ts, Buy, []step{
		{prev: "110", price: "105"},
		{prev: "105", price: "100"},
		{prev: "100", price: "80"},
		{prev: "80", price: "85"},
	})
	lvl, ok := ts.Level()
	require.True(t, ok)
	assertDec(t, "88", lvl)

	walk(t, ts, Buy, []step{
		{prev: "85", price: "90", fill: true, fillPrice: "90"},
	})
}

func TestTrailingStopReferenceAndClone(t *testing.T) {
	t.Parallel()

	ts, err := NewTrailingStop(d("0.05"), d("200"))
	require.NoError(t, err)

	ref, ok := ts.ReferencePrice()
	require.True(t, ok)
	assertDec(t, "200", ref)

	clone := ts.Clone().(*TrailingStop)
	_, _ = ts.TryExecute(Sell, d("195"), d("210"))

	assert.True(t, ts.Active())
	assert.False(t, clone.Active(), "clone must not share trailing state")

	ref, _ = ts.ReferencePrice()
	assertDec(t, "199.5", ref)
}

func TestTrailingStopValidation(t *testing.T) {
	t.Parallel()

	_, err := NewTrailingStop(d("0"), d("100"))
	assert.ErrorIs(t, err, ErrInvalidCallback)
	_, err = NewTrailingStop(d("1"), d("100"))
	assert.ErrorIs(t, err, ErrInvalidCallback)
	_, err = NewTrailingStop(d("0.1"), d("-1"))
	assert.ErrorIs(t, err, ErrInvalidPrice)
}
