package pricing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tick is one last-traded price.
type Tick struct {
	Symbol string
	Time   time.Time
	Price  decimal.Decimal
}

// ExtremeOrder decides whether a candle's high or low is visited first when
// it is replayed as ticks. Candles do not record that, so every policy is an
// approximation.
type ExtremeOrder int

const (
	// Direction visits low first on bullish candles and high first on
	// bearish ones.
	Direction ExtremeOrder = iota
	// Nearest visits whichever extreme is closer to the open first.
	Nearest
	HighFirst
	LowFirst
)

var extremeOrderNames = map[ExtremeOrder]string{
	Direction: "direction",
	Nearest:   "nearest",
	HighFirst: "high-first",
	LowFirst:  "low-first",
}

func (o ExtremeOrder) String() string {
	if s, ok := extremeOrderNames[o]; ok {
		return s
	}
	return fmt.Sprintf("ExtremeOrder(%d)", int(o))
}

// ParseExtremeOrder accepts the String form; empty means Direction.
func ParseExtremeOrder(s string) (ExtremeOrder, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Direction, nil
	}
	for o, name := range extremeOrderNames {
		if name == s {
			return o, nil
		}
	}
	return Direction, fmt.Errorf("unknown extreme order %q (want direction, nearest, high-first or low-first)", s)
}

func (o ExtremeOrder) highFirst(c Candle) bool {
	switch o {
	case HighFirst:
		return true
	case LowFirst:
		return false
	case Nearest:
		up := c.High.Sub(c.Open)
		down := c.Open.Sub(c.Low)
		return up.LessThanOrEqual(down)
	default:
		return !c.Bullish()
	}
}

// Expand turns a candle into four ticks: open, first extreme, second extreme,
// close. Ticks are spaced step/4 apart starting at the candle time, so a
// replay stays monotonic as long as step does not exceed the candle
// interval. A zero step puts all four ticks on the candle time.
func Expand(c Candle, order ExtremeOrder, step time.Duration) []Tick {
	first, second := c.Low, c.High
	if order.highFirst(c) {
		first, second = c.High, c.Low
	}

	prices := [4]decimal.Decimal{c.Open, first, second, c.Close}
	gap := step / 4

	ticks := make([]Tick, len(prices))
	for i, p := range prices {
		ticks[i] = Tick{
			Symbol: c.Symbol,
			Time:   c.Time.Add(time.Duration(i) * gap),
			Price:  p,
		}
	}
	return ticks
}

// ExpandGroup expands candles that share an open time, usually one per
// symbol, and interleaves their ticks by time. Ticks at the same instant keep
// the order of the candles.
func ExpandGroup(candles []Candle, order ExtremeOrder, step time.Duration) []Tick {
	ticks := make([]Tick, 0, 4*len(candles))
	for _, c := range candles {
		ticks = append(ticks, Expand(c, order, step)...)
	}
	sort.SliceStable(ticks, func(i, j int) bool { return ticks[i].Time.Before(ticks[j].Time) })
	return ticks
}
