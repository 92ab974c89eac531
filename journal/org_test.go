package journal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyeddy/tradelab/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatExecutionOrg(t *testing.T) {
	t.Parallel()

	e := sampleExecution("01HX3ABCDEFGHJKMNPQRSTVWXY", 7, broker.Sell, "210.5")
	result := FormatExecutionOrg(e)

	assert.Contains(t, result, "** Execution: ACME sell 10 @ 210.5 (#7)")
	assert.Contains(t, result, ":PROPERTIES:")
	assert.Contains(t, result, ":RUN_ID: 01HX3ABC")
	assert.Contains(t, result, ":ORDER_ID: 17")
	assert.Contains(t, result, ":INSTRUMENT: equity")
	assert.Contains(t, result, ":TIME: 2024-01-02T03:11:05Z")
	assert.Contains(t, result, ":END:")
	assert.Contains(t, result, "*** Notes")

	both := FormatExecutionsOrg([]ExecutionRecord{e, sampleExecution("r", 8, broker.Buy, "1")})
	assert.Contains(t, both, "(#7)")
	assert.Contains(t, both, ":RUN_ID: r\n")
}

func TestBacktestRunOrg(t *testing.T) {
	t.Parallel()

	run := BacktestRun{
		RunID:        "01HX3ABCDEFGHJKMNPQRSTVWXY",
		Created:      t0,
		Symbol:       "ACME",
		Strategy:     "ema-cross",
		Config:       []byte(`{"fast":5}`),
		Start:        t0,
		End:          t0.Add(48 * time.Hour),
		RoundTrips:   4,
		Wins:         3,
		Losses:       1,
		StartBalance: d("10000"),
		EndBalance:   d("10098.77"),
		NetPL:        d("98.77"),
		ReturnPct:    0.9877,
		WinRate:      0.75,
		Notes:        []string{"trailing stop too tight"},
	}

	var buf bytes.Buffer
	require.NoError(t, run.WriteOrg(&buf))
	out := buf.String()

	assert.Contains(t, out, "* BACKTEST: ema-cross ACME")
	assert.Contains(t, out, ":END_DATE:    2024-01-04")
	assert.Contains(t, out, ":END_BAL:     10098.77")
	assert.Contains(t, out, ":WIN_RATE:    75.00")
	assert.Contains(t, out, ":PROFIT_FAC:  (profit-factor?)")
	assert.Contains(t, out, ":MARGIN_CALL: no")
	assert.Contains(t, out, `{"fast":5}`)
	assert.Contains(t, out, "- trailing stop too tight")

	path := filepath.Join(t.TempDir(), "run.org")
	require.NoError(t, run.WriteOrgFile(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, out, string(raw))
}

func TestMemoryJournal(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	require.NoError(t, m.RecordExecution(sampleExecution("r", 1, broker.Buy, "1")))
	require.NoError(t, m.RecordEquity(EquitySnapshot{RunID: "r"}))
	require.NoError(t, m.RecordRun(BacktestRun{RunID: "r"}))
	assert.Len(t, m.Executions, 1)
	assert.Len(t, m.Equity, 1)
	assert.Len(t, m.Runs, 1)

	require.NoError(t, m.Close())
	assert.Error(t, m.RecordExecution(sampleExecution("r", 2, broker.Buy, "1")))

	var j Journal = Discard{}
	assert.NoError(t, j.RecordRun(BacktestRun{}))
}
