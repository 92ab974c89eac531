package pricing

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

// candleRow is the on-disk shape:
//
//	time,symbol,open,high,low,close,volume
//
// Times are RFC3339. Prices stay strings until parsed so decimals are exact.
type candleRow struct {
	Time   string `csv:"time"`
	Symbol string `csv:"symbol"`
	Open   string `csv:"open"`
	High   string `csv:"high"`
	Low    string `csv:"low"`
	Close  string `csv:"close"`
	Volume string `csv:"volume"`
}

func (r candleRow) toCandle() (Candle, error) {
	at, err := time.Parse(time.RFC3339, strings.TrimSpace(r.Time))
	if err != nil {
		return Candle{}, fmt.Errorf("time %q: %w", r.Time, err)
	}

	c := Candle{Symbol: strings.TrimSpace(r.Symbol), Time: at.UTC()}
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"open", r.Open, &c.Open},
		{"high", r.High, &c.High},
		{"low", r.Low, &c.Low},
		{"close", r.Close, &c.Close},
		{"volume", r.Volume, &c.Volume},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(f.raw)
		if raw == "" && f.name == "volume" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return Candle{}, fmt.Errorf("%s %q: %w", f.name, f.raw, err)
		}
		*f.dst = v
	}
	return c, c.Validate()
}

// ReadCandlesCSV parses candles and checks that times never go backwards
// within a symbol.
func ReadCandlesCSV(r io.Reader) ([]Candle, error) {
	var rows []candleRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("read candles: %w", err)
	}

	candles := make([]Candle, 0, len(rows))
	last := make(map[string]time.Time)
	for i, row := range rows {
		c, err := row.toCandle()
		if err != nil {
			// +2: header plus 1-based lines
			return nil, fmt.Errorf("read candles: line %d: %w", i+2, err)
		}
		if prev, ok := last[c.Symbol]; ok && c.Time.Before(prev) {
			return nil, fmt.Errorf("read candles: line %d: %s at %s is before %s",
				i+2, c.Symbol, c.Time.Format(time.RFC3339), prev.Format(time.RFC3339))
		}
		last[c.Symbol] = c.Time
		candles = append(candles, c)
	}
	return candles, nil
}

func LoadCandlesCSV(path string) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	candles, err := ReadCandlesCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return candles, nil
}

// WriteCandlesCSV writes candles in the format ReadCandlesCSV reads.
func WriteCandlesCSV(w io.Writer, candles []Candle) error {
	rows := make([]candleRow, len(candles))
	for i, c := range candles {
		rows[i] = candleRow{
			Time:   c.Time.UTC().Format(time.RFC3339),
			Symbol: c.Symbol,
			Open:   c.Open.String(),
			High:   c.High.String(),
			Low:    c.Low.String(),
			Close:  c.Close.String(),
			Volume: c.Volume.String(),
		}
	}
	return gocsv.Marshal(&rows, w)
}
