package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TradeRecord is a completed round of a trading session, kept as local
// history. The remote platform remains the authority on balances.
type TradeRecord struct {
	gorm.Model
	SessionID       string              `gorm:"index;not null" json:"session_id"`
	RoundID         string              `gorm:"uniqueIndex;not null" json:"round_id"`
	MarketID        uint                `json:"market_id"`
	Market          string              `json:"market"`
	TradeTypeID     uint                `json:"trade_type_id"`
	Direction       string              `json:"direction"`
	AccountType     string              `json:"account_type"`
	RobotID         uint                `json:"robot_id,omitempty"`
	MartingaleLevel int                 `json:"martingale_level"`
	BaseAmount      decimal.Decimal     `gorm:"type:decimal(12,2)" json:"base_amount"`
	Amount          decimal.Decimal     `gorm:"type:decimal(12,2)" json:"amount"`
	Profit          decimal.Decimal     `gorm:"type:decimal(12,2)" json:"profit"`
	IsWin           bool                `json:"is_win"`
	IsDemo          bool                `json:"is_demo"`
	EntrySpot       decimal.NullDecimal `gorm:"type:decimal(18,8)" json:"entry_spot"`
	ExitSpot        decimal.NullDecimal `gorm:"type:decimal(18,8)" json:"exit_spot"`
	Error           string              `json:"error,omitempty"`
	CompletedAt     time.Time           `gorm:"index" json:"completed_at"`
}

// TradingSession summarizes one run of the execution queue.
type TradingSession struct {
	gorm.Model
	SessionID       string          `gorm:"uniqueIndex;not null" json:"session_id"`
	AccountType     string          `json:"account_type"`
	StartingBalance decimal.Decimal `gorm:"type:decimal(12,2)" json:"starting_balance"`
	SessionProfit   decimal.Decimal `gorm:"type:decimal(12,2)" json:"session_profit"`
	StopReason      string          `json:"stop_reason"`
	StartedAt       time.Time       `json:"started_at"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`
}
