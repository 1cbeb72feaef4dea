// Package history persists completed trading rounds and session summaries.
package history

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"traderiser-client/internal/models"
)

// Repository stores trade history in the local database.
type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRepository creates a Repository.
func NewRepository(db *gorm.DB, logger *zap.Logger) *Repository {
	return &Repository{db: db, logger: logger.Named("history")}
}

// SaveTrade inserts a completed round.
func (r *Repository) SaveTrade(rec *models.TradeRecord) error {
	if err := r.db.Create(rec).Error; err != nil {
		return fmt.Errorf("failed to save trade %s: %w", rec.RoundID, err)
	}
	r.logger.Debug("Saved trade record", zap.String("round_id", rec.RoundID), zap.Uint("id", rec.ID))
	return nil
}

// SaveSession inserts a session summary or updates the existing row with
// the same session id.
func (r *Repository) SaveSession(s *models.TradingSession) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"session_profit", "stop_reason", "ended_at", "updated_at"}),
	}).Create(s).Error
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", s.SessionID, err)
	}
	return nil
}

// GetSession returns the summary of one session.
func (r *Repository) GetSession(sessionID string) (*models.TradingSession, error) {
	var s models.TradingSession
	if err := r.db.Where("session_id = ?", sessionID).First(&s).Error; err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return &s, nil
}

// ListRecent returns up to limit trades, most recent first.
func (r *Repository) ListRecent(limit int) ([]models.TradeRecord, error) {
	var trades []models.TradeRecord
	q := r.db.Order("completed_at desc").Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}

// ListSession returns the trades of one session in execution order.
func (r *Repository) ListSession(sessionID string) ([]models.TradeRecord, error) {
	var trades []models.TradeRecord
	if err := r.db.Where("session_id = ?", sessionID).Order("completed_at asc").Order("id asc").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to list trades of session %s: %w", sessionID, err)
	}
	return trades, nil
}

// Stats holds aggregated results for a period.
type Stats struct {
	TotalTrades      int64           `json:"total_trades"`
	ProfitableTrades int64           `json:"profitable_trades"`
	WinRate          float64         `json:"win_rate"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
}

// Statistics aggregates trades completed at or after since. A zero since
// covers all history.
func (r *Repository) Statistics(since time.Time) (Stats, error) {
	var trades []models.TradeRecord
	q := r.db.Model(&models.TradeRecord{})
	if !since.IsZero() {
		q = q.Where("completed_at >= ?", since)
	}
	if err := q.Find(&trades).Error; err != nil {
		return Stats{}, fmt.Errorf("failed to get trades for statistics: %w", err)
	}

	stats := Stats{TotalProfit: decimal.Zero}
	for _, t := range trades {
		stats.TotalTrades++
		if t.IsWin {
			stats.ProfitableTrades++
		}
		stats.TotalProfit = stats.TotalProfit.Add(t.Profit)
	}
	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.ProfitableTrades) / float64(stats.TotalTrades)
	}
	return stats, nil
}
