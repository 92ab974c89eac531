package journal

import (
	"errors"
	"time"

	"github.com/rustyeddy/tradelab/broker"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("journal: not found")

// ExecutionRecord is one broker fill tagged with the run that produced it.
type ExecutionRecord struct {
	RunID       string
	ExecutionID int64
	OrderID     int64
	Broker      string
	Instrument  broker.InstrumentKind
	Symbol      string
	Side        broker.Side
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Time        time.Time
}

func NewExecutionRecord(runID string, ex broker.Execution) ExecutionRecord {
	return ExecutionRecord{
		RunID:       runID,
		ExecutionID: ex.ID,
		OrderID:     ex.OrderID,
		Broker:      ex.Broker,
		Instrument:  ex.Instrument,
		Symbol:      ex.Symbol,
		Side:        ex.Side,
		Quantity:    ex.Quantity,
		Price:       ex.Price,
		Time:        ex.Time,
	}
}

type EquitySnapshot struct {
	RunID           string
	Time            time.Time
	Balance         decimal.Decimal
	UsedMargin      decimal.Decimal
	AvailableMargin decimal.Decimal
	UnrealizedPnL   decimal.Decimal
}

func NewEquitySnapshot(runID string, at time.Time, acct broker.Account) EquitySnapshot {
	return EquitySnapshot{
		RunID:           runID,
		Time:            at,
		Balance:         acct.Balance,
		UsedMargin:      acct.UsedMargin,
		AvailableMargin: acct.AvailableMargin,
		UnrealizedPnL:   acct.UnrealizedPnL,
	}
}

// Equity is balance plus unrealized P/L.
func (e EquitySnapshot) Equity() decimal.Decimal {
	return e.Balance.Add(e.UnrealizedPnL)
}

type Journal interface {
	RecordExecution(ExecutionRecord) error
	RecordEquity(EquitySnapshot) error
	RecordRun(BacktestRun) error
	Close() error
}
