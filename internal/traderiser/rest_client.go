package traderiser

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"traderiser-client/internal/config"
)

const (
	pathDashboard  = "/dashboard/"
	pathMarkets    = "/trading/markets/"
	pathTradeTypes = "/trading/trade-types/"
	pathUserRobots = "/trading/user-robots/"
	pathPlaceTrade = "/trading/trades/place/"

	maxReadAttempts = 3
)

// RestClientInterface defines the interface for the Traderiser REST API client.
type RestClientInterface interface {
	GetDashboard(ctx context.Context) (*Dashboard, error)
	GetMarkets(ctx context.Context) ([]Market, error)
	GetTradeTypes(ctx context.Context) ([]TradeType, error)
	GetUserRobots(ctx context.Context) ([]UserRobot, error)
	PlaceTrade(ctx context.Context, req PlaceTradeRequest) (*PlaceTradeResponse, error)
}

// RestClient is a client for the Traderiser REST API.
// It implements the RestClientInterface.
type RestClient struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

// ensure RestClient implements the interface
var _ RestClientInterface = (*RestClient)(nil)

// NewRestClient creates a new Traderiser REST API client.
func NewRestClient(cfg *config.API, logger *zap.Logger) *RestClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	} else {
		logger.Warn("No API token configured, requests will be anonymous")
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}

	return &RestClient{
		client:  client,
		logger:  logger.Named("traderiser"),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// doRequest executes req with rate limiting. When retry is set, throttling,
// server errors and network errors are retried with backoff; otherwise the
// first failure is returned.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request, retry bool) (*resty.Response, error) {
	attempts := 1
	if retry {
		attempts = maxReadAttempts
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err := req.SetContext(ctx).Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err != nil {
			// Network failure or an undecodable body.
			lastErr = fmt.Errorf("request %s %s failed: %w", method, url, err)
			shouldRetry = ctx.Err() == nil
		} else {
			lastErr = toAPIError(resp)
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode == 418 {
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
		}

		if !shouldRetry || i == attempts-1 {
			break
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(lastErr),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

func toAPIError(resp *resty.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode()}
	if body, ok := resp.Error().(*errorBody); ok && body != nil {
		apiErr.Code = body.Code
		apiErr.Message = body.text()
	}
	if apiErr.Message == "" {
		apiErr.Message = "An error occurred"
	}
	return apiErr
}

// GetDashboard fetches the user summary including account balances.
// It doubles as a connectivity and credentials check.
func (c *RestClient) GetDashboard(ctx context.Context) (*Dashboard, error) {
	req := c.client.R().
		SetResult(&Dashboard{}).
		SetError(&errorBody{})

	resp, err := c.doRequest(ctx, http.MethodGet, pathDashboard, req, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get dashboard: %w", err)
	}
	return resp.Result().(*Dashboard), nil
}

// GetMarkets fetches all tradable markets.
func (c *RestClient) GetMarkets(ctx context.Context) ([]Market, error) {
	var markets []Market
	req := c.client.R().
		SetResult(&markets).
		SetError(&errorBody{})

	if _, err := c.doRequest(ctx, http.MethodGet, pathMarkets, req, true); err != nil {
		return nil, fmt.Errorf("failed to get markets: %w", err)
	}
	return markets, nil
}

// GetTradeTypes fetches the available contract types.
func (c *RestClient) GetTradeTypes(ctx context.Context) ([]TradeType, error) {
	var tradeTypes []TradeType
	req := c.client.R().
		SetResult(&tradeTypes).
		SetError(&errorBody{})

	if _, err := c.doRequest(ctx, http.MethodGet, pathTradeTypes, req, true); err != nil {
		return nil, fmt.Errorf("failed to get trade types: %w", err)
	}
	return tradeTypes, nil
}

// GetUserRobots fetches the robots owned by the current user.
func (c *RestClient) GetUserRobots(ctx context.Context) ([]UserRobot, error) {
	var robots []UserRobot
	req := c.client.R().
		SetResult(&robots).
		SetError(&errorBody{})

	if _, err := c.doRequest(ctx, http.MethodGet, pathUserRobots, req, true); err != nil {
		return nil, fmt.Errorf("failed to get user robots: %w", err)
	}
	return robots, nil
}

// PlaceTrade submits exactly one trade. It is never retried: a repeated
// placement would stake the account twice.
func (c *RestClient) PlaceTrade(ctx context.Context, trade PlaceTradeRequest) (*PlaceTradeResponse, error) {
	l := c.logger.With(
		zap.Uint("market_id", trade.MarketID),
		zap.String("direction", trade.Direction),
		zap.String("amount", trade.Amount.String()),
		zap.Int("martingale_level", trade.MartingaleLevel),
	)

	req := c.client.R().
		SetBody(trade).
		SetResult(&PlaceTradeResponse{}).
		SetError(&errorBody{})

	resp, err := c.doRequest(ctx, http.MethodPost, pathPlaceTrade, req, false)
	if err != nil {
		l.Error("Failed to place trade", zap.Error(err))
		return nil, fmt.Errorf("failed to place trade: %w", err)
	}

	result := resp.Result().(*PlaceTradeResponse)
	l.Info("Trade placed", zap.String("total_profit", result.TotalProfit.String()), zap.Bool("is_demo", result.IsDemo))
	return result, nil
}
