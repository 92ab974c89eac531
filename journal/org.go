package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatExecutionOrg renders a fill as an Org-mode block. Structured facts go
// in the PROPERTIES drawer; the Notes heading is left for the reader.
func FormatExecutionOrg(e ExecutionRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Execution: %s %s %s @ %s (#%d)\n", e.Symbol, e.Side, e.Quantity, e.Price, e.ExecutionID)
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":RUN_ID: %s\n", shortID(e.RunID))
	fmt.Fprintf(&b, ":EXECUTION_ID: %d\n", e.ExecutionID)
	fmt.Fprintf(&b, ":ORDER_ID: %d\n", e.OrderID)
	fmt.Fprintf(&b, ":BROKER: %s\n", e.Broker)
	fmt.Fprintf(&b, ":INSTRUMENT: %s\n", e.Instrument)
	fmt.Fprintf(&b, ":SYMBOL: %s\n", e.Symbol)
	fmt.Fprintf(&b, ":SIDE: %s\n", e.Side)
	fmt.Fprintf(&b, ":QUANTITY: %s\n", e.Quantity)
	fmt.Fprintf(&b, ":PRICE: %s\n", e.Price)
	fmt.Fprintf(&b, ":TIME: %s\n", e.Time.UTC().Format(time.RFC3339))
	b.WriteString(":END:\n")
	b.WriteString("\n*** Notes\n- \n")
	return b.String()
}

// FormatExecutionsOrg renders fills separated by blank lines.
func FormatExecutionsOrg(execs []ExecutionRecord) string {
	var b strings.Builder
	for i, e := range execs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatExecutionOrg(e))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
