package traderiser

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"traderiser-client/internal/config"
)

// setupTestServer creates a new test server and a RestClient configured to use it.
func setupTestServer(handler http.Handler) (*RestClient, *httptest.Server) {
	server := httptest.NewServer(handler)

	client := resty.New().
		SetBaseURL(server.URL).
		SetHeader("Content-Type", "application/json").
		SetAuthToken("test_token")

	rc := &RestClient{
		client:  client,
		logger:  zap.NewNop(),
		limiter: rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
	}

	return rc, server
}

func TestPlaceTrade(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/trading/trades/place/", r.URL.Path)
			assert.Equal(t, "Bearer test_token", r.Header.Get("Authorization"))

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, float64(3), body["market_id"])
			assert.Equal(t, "buy", body["direction"])
			assert.Equal(t, "10", body["amount"])
			assert.Equal(t, float64(2), body["martingale_level"])
			assert.Equal(t, true, body["use_martingale"])
			_, hasRobot := body["robot_id"]
			assert.False(t, hasRobot, "zero robot id must be omitted")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{
				"trades": [{"id": 91, "amount": "40.00", "profit": "34.00", "is_win": true,
				            "martingale_level": 2, "entry_spot": "12.34", "exit_spot": "12.40", "current_spot": null}],
				"total_profit": "34.00",
				"message": "Trade completed.",
				"is_demo": true
			}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		resp, err := rc.PlaceTrade(context.Background(), PlaceTradeRequest{
			MarketID:        3,
			TradeTypeID:     1,
			Direction:       "buy",
			Amount:          decimal.NewFromInt(10),
			AccountType:     "demo",
			UseMartingale:   true,
			MartingaleLevel: 2,
		})

		require.NoError(t, err)
		require.Len(t, resp.Trades, 1)
		trade := resp.Trades[0]
		assert.True(t, trade.IsWin)
		assert.Equal(t, "34", trade.Profit.String())
		assert.True(t, trade.Amount.Valid)
		assert.Equal(t, "40", trade.Amount.Decimal.String())
		assert.True(t, trade.EntrySpot.Valid)
		assert.Equal(t, "12.34", trade.EntrySpot.Decimal.String())
		assert.False(t, trade.CurrentSpot.Valid)
		assert.True(t, resp.IsDemo)
	})

	t.Run("InsufficientBalance", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": "Insufficient balance for this trade"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		resp, err := rc.PlaceTrade(context.Background(), PlaceTradeRequest{Amount: decimal.NewFromInt(10)})

		assert.Nil(t, resp)
		require.Error(t, err)
		assert.True(t, IsInsufficientBalance(err))
		assert.Equal(t, "Insufficient balance for this trade", ErrorMessage(err))

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("ServerErrorIsNotRetried", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail": "boom"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		_, err := rc.PlaceTrade(context.Background(), PlaceTradeRequest{Amount: decimal.NewFromInt(1)})

		require.Error(t, err)
		assert.False(t, IsInsufficientBalance(err))
		assert.Equal(t, "boom", ErrorMessage(err))
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("NetworkError", func(t *testing.T) {
		rc, server := setupTestServer(http.NotFoundHandler())
		server.Close()

		_, err := rc.PlaceTrade(context.Background(), PlaceTradeRequest{Amount: decimal.NewFromInt(1)})

		require.Error(t, err)
		assert.False(t, IsInsufficientBalance(err))
		assert.Equal(t, "Failed to execute trade", ErrorMessage(err))
	})
}

func TestGetDashboard(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/dashboard/", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"user": {"username": "amina", "email": "amina@example.com"},
				"accounts": [{"account_type": "standard", "balance": "250.50"}, {"account_type": "demo", "balance": 10000}],
				"session_active": true
			}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		dash, err := rc.GetDashboard(context.Background())
		require.NoError(t, err)

		bal, ok := dash.Balance("demo")
		assert.True(t, ok)
		assert.Equal(t, "10000", bal.String())

		bal, ok = dash.Balance("standard")
		assert.True(t, ok)
		assert.Equal(t, "250.5", bal.String())

		_, ok = dash.Balance("islamic")
		assert.False(t, ok)
	})

	t.Run("RetriesServerErrors", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"error": "try later"}`))
				return
			}
			_, _ = w.Write([]byte(`{"accounts": []}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		_, err := rc.GetDashboard(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("Unauthorized", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail": "Authentication credentials were not provided."}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		_, err := rc.GetDashboard(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get dashboard")
		assert.Contains(t, err.Error(), "Authentication credentials")
	})
}

func TestGetMarketsAndRobots(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/trading/markets/":
			_, _ = w.Write([]byte(`[{"id": 1, "name": "EURUSD", "profit_multiplier": "1.85"}]`))
		case "/trading/trade-types/":
			_, _ = w.Write([]byte(`[{"id": 1, "name": "buy/sell"}, {"id": 2, "name": "rise/fall"}]`))
		case "/trading/user-robots/":
			_, _ = w.Write([]byte(`[{"id": 4, "robot": {"id": 7, "name": "Sashi", "win_rate": 90}, "purchased_at": "2026-01-02T10:00:00Z"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	markets, err := rc.GetMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, "EURUSD", markets[0].Name)
	assert.Equal(t, "1.85", markets[0].ProfitMultiplier.String())

	tradeTypes, err := rc.GetTradeTypes(context.Background())
	require.NoError(t, err)
	assert.Len(t, tradeTypes, 2)

	robots, err := rc.GetUserRobots(context.Background())
	require.NoError(t, err)
	require.Len(t, robots, 1)
	assert.Equal(t, uint(7), robots[0].Robot.ID)
	assert.Equal(t, "Sashi", robots[0].Robot.Name)
}

func TestIsInsufficientBalance(t *testing.T) {
	assert.True(t, IsInsufficientBalance(&APIError{Message: "Insufficient balance for this trade"}))
	assert.True(t, IsInsufficientBalance(&APIError{Code: CodeInsufficientBalance, Message: "not enough funds"}))
	assert.False(t, IsInsufficientBalance(&APIError{Code: "market_closed", Message: "Insufficient balance"}))
	assert.False(t, IsInsufficientBalance(&APIError{Message: "Robot not available for demo"}))
	assert.False(t, IsInsufficientBalance(errors.New("Insufficient balance")))
	assert.False(t, IsInsufficientBalance(nil))
}

func TestNewRestClient(t *testing.T) {
	cfg := &config.API{BaseURL: "http://localhost:8000/api/", Token: "abc", RateLimit: 5, RateLimitBurst: 1}
	rc := NewRestClient(cfg, zap.NewNop())
	assert.NotNil(t, rc)
	assert.Equal(t, "http://localhost:8000/api", rc.client.BaseURL)
	assert.Equal(t, "abc", rc.client.Token)
	assert.Equal(t, rate.Limit(5), rc.limiter.Limit())
}
