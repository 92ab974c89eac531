package pricing

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TickSource yields ticks in time order until ok is false.
type TickSource interface {
	Next() (t Tick, ok bool, err error)
}

// CSVTickFeed reads tick CSV rows:
//
//	time,symbol,price
//	time,symbol,bid,ask
//
// where time is RFC3339 or RFC3339Nano. Quote rows are traded at the mid.
//
// It optionally filters ticks to [From, To) if provided.
// Header row ("time,...") is allowed.
// Empty/short rows are skipped.
type CSVTickFeed struct {
	c    io.Closer
	r    *csv.Reader
	from time.Time
	to   time.Time

	line     int
	sawFirst bool
	last     map[string]time.Time
}

var _ TickSource = (*CSVTickFeed)(nil)

func OpenCSVTickFeed(path string, from, to time.Time) (*CSVTickFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	feed := NewCSVTickFeed(f, from, to)
	feed.c = f
	return feed, nil
}

func NewCSVTickFeed(r io.Reader, from, to time.Time) *CSVTickFeed {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return &CSVTickFeed{r: cr, from: from, to: to, last: map[string]time.Time{}}
}

func (f *CSVTickFeed) Close() error {
	if f.c != nil {
		return f.c.Close()
	}
	return nil
}

func (f *CSVTickFeed) Next() (Tick, bool, error) {
	for {
		row, err := f.r.Read()
		if err == io.EOF {
			return Tick{}, false, nil
		}
		if err != nil {
			return Tick{}, false, err
		}
		f.line++
		if len(row) == 0 {
			continue
		}

		// Allow a single header row
		if !f.sawFirst {
			f.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		tk, ok, err := parseTickRow(row)
		if err != nil {
			return Tick{}, false, fmt.Errorf("tick line %d: %w", f.line, err)
		}
		if !ok || !inRange(tk.Time, f.from, f.to) {
			continue
		}
		if prev, seen := f.last[tk.Symbol]; seen && tk.Time.Before(prev) {
			return Tick{}, false, fmt.Errorf("tick line %d: %s at %s is before %s", f.line, tk.Symbol,
				tk.Time.Format(time.RFC3339Nano), prev.Format(time.RFC3339Nano))
		}
		f.last[tk.Symbol] = tk.Time
		return tk, true, nil
	}
}

func parseTickRow(row []string) (Tick, bool, error) {
	// Need at least: time,symbol,price
	if len(row) < 3 {
		return Tick{}, false, nil
	}

	ts := strings.TrimSpace(row[0])
	if ts == "" {
		return Tick{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Tick{}, false, fmt.Errorf("bad time %q: %w", ts, err)
	}

	sym := strings.TrimSpace(row[1])
	if sym == "" {
		return Tick{}, false, nil
	}

	price, err := decimal.NewFromString(strings.TrimSpace(row[2]))
	if err != nil {
		return Tick{}, false, fmt.Errorf("bad price %q: %w", row[2], err)
	}
	if len(row) >= 4 && strings.TrimSpace(row[3]) != "" {
		ask, err := decimal.NewFromString(strings.TrimSpace(row[3]))
		if err != nil {
			return Tick{}, false, fmt.Errorf("bad ask %q: %w", row[3], err)
		}
		price = price.Add(ask).Div(decimal.NewFromInt(2))
	}
	if !price.IsPositive() {
		return Tick{}, false, fmt.Errorf("price %s must be positive", price)
	}

	return Tick{Symbol: sym, Time: t.UTC(), Price: price}, true, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

// SliceTicks replays an in-memory tick list.
type SliceTicks struct {
	Ticks []Tick
	i     int
}

func (s *SliceTicks) Next() (Tick, bool, error) {
	if s.i >= len(s.Ticks) {
		return Tick{}, false, nil
	}
	s.i++
	return s.Ticks[s.i-1], true, nil
}
