package sim

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one signed cash movement.
type Transaction struct {
	Time   time.Time
	Amount decimal.Decimal
}

// Ledger is the account's cash record. The balance is the running sum of its
// transactions, the opening balance being the first one.
type Ledger struct {
	balance decimal.Decimal
	txs     []Transaction
}

func NewLedger(opening decimal.Decimal) *Ledger {
	l := &Ledger{}
	l.Apply(time.Time{}, opening)
	return l
}

func (l *Ledger) Apply(at time.Time, amount decimal.Decimal) {
	l.txs = append(l.txs, Transaction{Time: at, Amount: amount})
	l.balance = l.balance.Add(amount)
}

func (l *Ledger) Balance() decimal.Decimal {
	return l.balance
}

// Transactions returns a copy of the transaction list.
func (l *Ledger) Transactions() []Transaction {
	out := make([]Transaction, len(l.txs))
	copy(out, l.txs)
	return out
}
