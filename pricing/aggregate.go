package pricing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Aggregator folds ticks into fixed-width candles, one open bucket per
// symbol. Buckets are aligned with time.Truncate.
type Aggregator struct {
	Step time.Duration

	open map[string]*Candle
}

func NewAggregator(step time.Duration) *Aggregator {
	if step <= 0 {
		step = time.Minute
	}
	return &Aggregator{Step: step, open: map[string]*Candle{}}
}

// Add folds t into its symbol's bucket. When t starts a new bucket the
// previous one is returned closed.
func (a *Aggregator) Add(t Tick) (Candle, bool) {
	start := t.Time.Truncate(a.Step)
	cur, ok := a.open[t.Symbol]
	if ok && cur.Time.Equal(start) {
		cur.High = decimal.Max(cur.High, t.Price)
		cur.Low = decimal.Min(cur.Low, t.Price)
		cur.Close = t.Price
		cur.Volume = cur.Volume.Add(decimal.NewFromInt(1))
		return Candle{}, false
	}

	a.open[t.Symbol] = &Candle{
		Symbol: t.Symbol,
		Time:   start,
		Open:   t.Price,
		High:   t.Price,
		Low:    t.Price,
		Close:  t.Price,
		Volume: decimal.NewFromInt(1),
	}
	if !ok {
		return Candle{}, false
	}
	return *cur, true
}

// Flush closes every open bucket, oldest first.
func (a *Aggregator) Flush() []Candle {
	out := make([]Candle, 0, len(a.open))
	for _, c := range a.open {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Time.Equal(out[j].Time) {
			return out[i].Time.Before(out[j].Time)
		}
		return out[i].Symbol < out[j].Symbol
	})
	a.open = map[string]*Candle{}
	return out
}
