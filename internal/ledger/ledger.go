// Package ledger tracks realized profit and loss across a trading session.
package ledger

import "github.com/shopspring/decimal"

// Ledger is an immutable session accumulator. Apply returns a new value.
type Ledger struct {
	StartingBalance decimal.Decimal `json:"starting_balance"`
	SessionProfit   decimal.Decimal `json:"session_profit"`
}

// New starts a session at the given balance with zero profit.
func New(startingBalance decimal.Decimal) Ledger {
	return Ledger{StartingBalance: startingBalance, SessionProfit: decimal.Zero}
}

// Apply adds the signed outcome of a completed round.
func (l Ledger) Apply(profit decimal.Decimal) Ledger {
	l.SessionProfit = l.SessionProfit.Add(profit)
	return l
}

// CurrentBalance is StartingBalance + SessionProfit. It is not clamped at
// zero; the remote platform owns balance floors.
func (l Ledger) CurrentBalance() decimal.Decimal {
	return l.StartingBalance.Add(l.SessionProfit)
}
