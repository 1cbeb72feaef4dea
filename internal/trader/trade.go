package trader

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"traderiser-client/internal/config"
	"traderiser-client/internal/ledger"
)

// ErrInvalidRequest is wrapped by every validation failure of a TradeRequest.
var ErrInvalidRequest = errors.New("invalid trade request")

// Direction is the side of a trade. Rise/fall is the vocabulary of the
// "rise/fall" trade type; on the wire they map to buy/sell.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
	DirectionRise Direction = "rise"
	DirectionFall Direction = "fall"
)

// ParseDirection accepts buy, sell, rise or fall in any case.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case DirectionBuy, DirectionSell, DirectionRise, DirectionFall:
		return d, nil
	}
	return "", fmt.Errorf("%w: unknown direction %q", ErrInvalidRequest, s)
}

// Wire returns the two-valued direction the platform settles with.
func (d Direction) Wire() string {
	switch d {
	case DirectionRise:
		return string(DirectionBuy)
	case DirectionFall:
		return string(DirectionSell)
	}
	return string(d)
}

// TradeRequest is the user's per-round trade template. It is immutable once
// queued; only the martingale level differs between rounds.
type TradeRequest struct {
	MarketID        uint            `json:"market_id"`
	Market          string          `json:"market,omitempty"`
	TradeTypeID     uint            `json:"trade_type_id"`
	Direction       Direction       `json:"direction"`
	BaseAmount      decimal.Decimal `json:"base_amount"`
	UseMartingale   bool            `json:"use_martingale"`
	MartingaleLevel int             `json:"martingale_level"`
	TargetProfit    decimal.Decimal `json:"target_profit"`
	StopLoss        decimal.Decimal `json:"stop_loss"`
	RobotID         uint            `json:"robot_id,omitempty"`
}

// RequestFromConfig builds the session template from the trading section of
// the configuration.
func RequestFromConfig(cfg config.Trading) (TradeRequest, error) {
	direction, err := ParseDirection(cfg.Direction)
	if err != nil {
		return TradeRequest{}, err
	}
	return TradeRequest{
		MarketID:      cfg.MarketID,
		Market:        cfg.MarketName,
		TradeTypeID:   cfg.TradeTypeID,
		Direction:     direction,
		BaseAmount:    decimal.NewFromFloat(cfg.Amount),
		UseMartingale: cfg.UseMartingale,
		TargetProfit:  decimal.NewFromFloat(cfg.TargetProfit),
		StopLoss:      decimal.NewFromFloat(cfg.StopLoss),
		RobotID:       cfg.RobotID,
	}, nil
}

// Limits returns the session thresholds of the request.
func (r TradeRequest) Limits() ledger.Limits {
	return ledger.Limits{TargetProfit: r.TargetProfit, StopLoss: r.StopLoss}
}

// Validate rejects requests that must never reach the platform. stake is the
// amount the first round will settle at; balance is the available balance.
func (r TradeRequest) Validate(stake, balance decimal.Decimal) error {
	if err := r.validateFields(); err != nil {
		return err
	}
	return checkStake(stake, balance)
}

func (r TradeRequest) validateFields() error {
	switch {
	case r.MarketID == 0:
		return fmt.Errorf("%w: market is required", ErrInvalidRequest)
	case r.TradeTypeID == 0:
		return fmt.Errorf("%w: trade type is required", ErrInvalidRequest)
	}
	if _, err := ParseDirection(string(r.Direction)); err != nil {
		return err
	}
	switch {
	case !r.BaseAmount.IsPositive():
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	case r.MartingaleLevel < 0:
		return fmt.Errorf("%w: martingale level must not be negative", ErrInvalidRequest)
	case r.TargetProfit.IsNegative():
		return fmt.Errorf("%w: target profit must not be negative", ErrInvalidRequest)
	case r.StopLoss.IsNegative():
		return fmt.Errorf("%w: stop loss must not be negative", ErrInvalidRequest)
	}
	return nil
}

func checkStake(stake, balance decimal.Decimal) error {
	if stake.GreaterThan(balance) {
		return fmt.Errorf("%w: insufficient balance: stake %s exceeds balance %s", ErrInvalidRequest, stake.StringFixed(2), balance.StringFixed(2))
	}
	return nil
}

// Status is the lifecycle state of an ExecutingTrade. It only moves forward.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
)

// ExecutingTrade is one round of a session. Every round, including a
// martingale continuation, is a new ExecutingTrade with a new ID.
type ExecutingTrade struct {
	TradeRequest

	ID     string `json:"id"`
	Status Status `json:"status"`
	// ComputedAmount is the locally computed stake until the platform
	// reports the settled stake, which then replaces it.
	ComputedAmount decimal.Decimal     `json:"computed_amount"`
	IsWin          *bool               `json:"is_win,omitempty"`
	Profit         decimal.NullDecimal `json:"profit"`
	EntrySpot      decimal.NullDecimal `json:"entry_spot"`
	ExitSpot       decimal.NullDecimal `json:"exit_spot"`
	CurrentSpot    decimal.NullDecimal `json:"current_spot"`
	IsDemo         bool                `json:"is_demo"`
	Error          string              `json:"error,omitempty"`

	QueuedAt    time.Time `json:"queued_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// Won reports whether the round completed as a win.
func (t *ExecutingTrade) Won() bool {
	return t.IsWin != nil && *t.IsWin
}
