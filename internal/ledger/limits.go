package ledger

import "github.com/shopspring/decimal"

// Verdict is the outcome of checking session profit against Limits.
type Verdict int

const (
	Continue Verdict = iota
	TargetReached
	StopLossReached
)

func (v Verdict) String() string {
	switch v {
	case TargetReached:
		return "target_reached"
	case StopLossReached:
		return "stop_loss"
	default:
		return "continue"
	}
}

// Limits are the user's session thresholds. A zero value disables a check.
type Limits struct {
	TargetProfit decimal.Decimal `json:"target_profit"`
	StopLoss     decimal.Decimal `json:"stop_loss"`
}

// Check compares sessionProfit against the limits. The target is checked
// before the stop loss.
func (lim Limits) Check(sessionProfit decimal.Decimal) Verdict {
	if lim.TargetProfit.IsPositive() && sessionProfit.GreaterThanOrEqual(lim.TargetProfit) {
		return TargetReached
	}
	if lim.StopLoss.IsPositive() && sessionProfit.LessThanOrEqual(lim.StopLoss.Neg()) {
		return StopLossReached
	}
	return Continue
}

// Evaluate is a convenience for lim.Check(l.SessionProfit).
func (lim Limits) Evaluate(l Ledger) Verdict {
	return lim.Check(l.SessionProfit)
}
