package journal

import "fmt"

// Memory keeps everything in slices. Used for dry runs and tests.
type Memory struct {
	Executions []ExecutionRecord
	Equity     []EquitySnapshot
	Runs       []BacktestRun

	closed bool
}

var _ Journal = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) RecordExecution(e ExecutionRecord) error {
	if m.closed {
		return fmt.Errorf("record execution %d: journal closed", e.ExecutionID)
	}
	m.Executions = append(m.Executions, e)
	return nil
}

func (m *Memory) RecordEquity(e EquitySnapshot) error {
	if m.closed {
		return fmt.Errorf("record equity: journal closed")
	}
	m.Equity = append(m.Equity, e)
	return nil
}

func (m *Memory) RecordRun(r BacktestRun) error {
	if m.closed {
		return fmt.Errorf("record run %s: journal closed", r.RunID)
	}
	m.Runs = append(m.Runs, r)
	return nil
}

func (m *Memory) Close() error {
	m.closed = true
	return nil
}

// Discard drops everything.
type Discard struct{}

func (Discard) RecordExecution(ExecutionRecord) error { return nil }
func (Discard) RecordEquity(EquitySnapshot) error     { return nil }
func (Discard) RecordRun(BacktestRun) error           { return nil }
func (Discard) Close() error                          { return nil }
