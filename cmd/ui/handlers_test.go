package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"traderiser-client/internal/database"
	"traderiser-client/internal/history"
	"traderiser-client/internal/models"
)

func setupTest(t *testing.T) (*history.Repository, http.Handler) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	repo := history.NewRepository(db, zap.NewNop())
	return repo, NewAPIHandler(zap.NewNop(), repo).Routes()
}

func seedTrades(t *testing.T, repo *history.Repository) {
	now := time.Now()
	for i, tc := range []struct {
		profit string
		win    bool
		at     time.Time
	}{
		{"-10", false, now.Add(-48 * time.Hour)},
		{"-20", false, now.Add(-time.Hour)},
		{"34", true, now.Add(-time.Minute)},
	} {
		require.NoError(t, repo.SaveTrade(&models.TradeRecord{
			SessionID:       "s1",
			RoundID:         fmt.Sprintf("r%d", i),
			MarketID:        1,
			Market:          "EURUSD",
			MartingaleLevel: i,
			BaseAmount:      decimal.NewFromInt(10),
			Amount:          decimal.NewFromInt(int64(10) << i),
			Profit:          decimal.RequireFromString(tc.profit),
			IsWin:           tc.win,
			CompletedAt:     tc.at,
		}))
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthHandler(t *testing.T) {
	_, h := setupTest(t)
	rec := get(t, h, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestTradesHandler(t *testing.T) {
	repo, h := setupTest(t)
	seedTrades(t, repo)

	rec := get(t, h, "/api/trades?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var trades []models.TradeRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trades))
	require.Len(t, trades, 2)
	assert.Equal(t, "r2", trades[0].RoundID)
	assert.Equal(t, "r1", trades[1].RoundID)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/trades?limit=zero").Code)
}

func TestStatisticsHandler(t *testing.T) {
	repo, h := setupTest(t)
	seedTrades(t, repo)

	rec := get(t, h, "/api/statistics")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatisticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, int64(3), resp.AllTime.TotalTrades)
	assert.Equal(t, int64(1), resp.AllTime.ProfitableTrades)
	assert.InDelta(t, 1.0/3.0, resp.AllTime.WinRate, 1e-9)
	assert.True(t, decimal.NewFromInt(4).Equal(resp.AllTime.TotalProfit))

	assert.Equal(t, int64(2), resp.Since24h.TotalTrades)
	assert.InDelta(t, 0.5, resp.Since24h.WinRate, 1e-9)
	assert.True(t, decimal.NewFromInt(14).Equal(resp.Since24h.TotalProfit))
}

func TestSessionHandlers(t *testing.T) {
	repo, h := setupTest(t)
	seedTrades(t, repo)
	require.NoError(t, repo.SaveSession(&models.TradingSession{
		SessionID:       "s1",
		AccountType:     "demo",
		StartingBalance: decimal.NewFromInt(100),
		SessionProfit:   decimal.NewFromInt(4),
		StopReason:      "user",
		StartedAt:       time.Now().Add(-49 * time.Hour),
	}))

	rec := get(t, h, "/api/sessions/s1")
	require.Equal(t, http.StatusOK, rec.Code)
	var session models.TradingSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, "user", session.StopReason)

	rec = get(t, h, "/api/sessions/s1/trades")
	require.Equal(t, http.StatusOK, rec.Code)
	var trades []models.TradeRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trades))
	require.Len(t, trades, 3)
	assert.Equal(t, "r0", trades[0].RoundID)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/sessions/missing").Code)
}
