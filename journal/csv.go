package journal

import (
	"fmt"
	"os"
	"time"

	"github.com/gocarina/gocsv"
)

type executionRow struct {
	RunID       string `csv:"run_id"`
	ExecutionID int64  `csv:"execution_id"`
	OrderID     int64  `csv:"order_id"`
	Broker      string `csv:"broker"`
	Instrument  string `csv:"instrument"`
	Symbol      string `csv:"symbol"`
	Side        string `csv:"side"`
	Quantity    string `csv:"quantity"`
	Price       string `csv:"price"`
	Time        string `csv:"time"`
}

type equityRow struct {
	RunID           string `csv:"run_id"`
	Time            string `csv:"time"`
	Balance         string `csv:"balance"`
	UsedMargin      string `csv:"used_margin"`
	AvailableMargin string `csv:"available_margin"`
	UnrealizedPnL   string `csv:"unrealized_pnl"`
	Equity          string `csv:"equity"`
}

// CSV appends executions and equity snapshots to two files. Run summaries
// have no file of their own; RecordRun only flushes.
type CSV struct {
	ef, qf *os.File
}

var _ Journal = (*CSV)(nil)

func NewCSV(executionsPath, equityPath string) (*CSV, error) {
	ef, err := os.Create(executionsPath)
	if err != nil {
		return nil, err
	}
	qf, err := os.Create(equityPath)
	if err != nil {
		_ = ef.Close()
		return nil, err
	}

	// Marshal of an empty slice writes just the header.
	if err := gocsv.Marshal(&[]executionRow{}, ef); err != nil {
		return nil, closeBoth(ef, qf, err)
	}
	if err := gocsv.Marshal(&[]equityRow{}, qf); err != nil {
		return nil, closeBoth(ef, qf, err)
	}

	return &CSV{ef: ef, qf: qf}, nil
}

func closeBoth(a, b *os.File, err error) error {
	_ = a.Close()
	_ = b.Close()
	return err
}

func (j *CSV) RecordExecution(e ExecutionRecord) error {
	row := executionRow{
		RunID:       e.RunID,
		ExecutionID: e.ExecutionID,
		OrderID:     e.OrderID,
		Broker:      e.Broker,
		Instrument:  string(e.Instrument),
		Symbol:      e.Symbol,
		Side:        e.Side.String(),
		Quantity:    e.Quantity.String(),
		Price:       e.Price.String(),
		Time:        e.Time.UTC().Format(time.RFC3339Nano),
	}
	if err := gocsv.MarshalWithoutHeaders(&[]executionRow{row}, j.ef); err != nil {
		return fmt.Errorf("write execution %d: %w", e.ExecutionID, err)
	}
	return nil
}

func (j *CSV) RecordEquity(e EquitySnapshot) error {
	row := equityRow{
		RunID:           e.RunID,
		Time:            e.Time.UTC().Format(time.RFC3339Nano),
		Balance:         e.Balance.String(),
		UsedMargin:      e.UsedMargin.String(),
		AvailableMargin: e.AvailableMargin.String(),
		UnrealizedPnL:   e.UnrealizedPnL.String(),
		Equity:          e.Equity().String(),
	}
	if err := gocsv.MarshalWithoutHeaders(&[]equityRow{row}, j.qf); err != nil {
		return fmt.Errorf("write equity at %s: %w", e.Time, err)
	}
	return nil
}

func (j *CSV) RecordRun(BacktestRun) error {
	if err := j.ef.Sync(); err != nil {
		return err
	}
	return j.qf.Sync()
}

func (j *CSV) Close() error {
	if err := j.ef.Close(); err != nil {
		_ = j.qf.Close()
		return err
	}
	return j.qf.Close()
}
