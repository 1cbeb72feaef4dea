package trader

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traderiser-client/internal/config"
)

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{
		"buy":   DirectionBuy,
		"SELL":  DirectionSell,
		" Rise": DirectionRise,
		"fall":  DirectionFall,
	} {
		got, err := ParseDirection(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseDirection("touch")
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestDirection_Wire(t *testing.T) {
	assert.Equal(t, "buy", DirectionBuy.Wire())
	assert.Equal(t, "sell", DirectionSell.Wire())
	assert.Equal(t, "buy", DirectionRise.Wire())
	assert.Equal(t, "sell", DirectionFall.Wire())
}

func TestTradeRequest_Validate(t *testing.T) {
	valid := TradeRequest{
		MarketID:    1,
		TradeTypeID: 1,
		Direction:   DirectionBuy,
		BaseAmount:  decimal.NewFromInt(10),
	}
	balance := decimal.NewFromInt(100)

	require.NoError(t, valid.Validate(valid.BaseAmount, balance))

	tests := []struct {
		name   string
		mutate func(r *TradeRequest)
		stake  decimal.Decimal
		want   string
	}{
		{"MissingMarket", func(r *TradeRequest) { r.MarketID = 0 }, decimal.NewFromInt(10), "market is required"},
		{"MissingTradeType", func(r *TradeRequest) { r.TradeTypeID = 0 }, decimal.NewFromInt(10), "trade type is required"},
		{"BadDirection", func(r *TradeRequest) { r.Direction = "up" }, decimal.NewFromInt(10), "unknown direction"},
		{"ZeroAmount", func(r *TradeRequest) { r.BaseAmount = decimal.Zero }, decimal.Zero, "amount must be positive"},
		{"NegativeAmount", func(r *TradeRequest) { r.BaseAmount = decimal.NewFromInt(-1) }, decimal.NewFromInt(-1), "amount must be positive"},
		{"NegativeLevel", func(r *TradeRequest) { r.MartingaleLevel = -1 }, decimal.NewFromInt(10), "martingale level"},
		{"NegativeTarget", func(r *TradeRequest) { r.TargetProfit = decimal.NewFromInt(-5) }, decimal.NewFromInt(10), "target profit"},
		{"NegativeStopLoss", func(r *TradeRequest) { r.StopLoss = decimal.NewFromInt(-5) }, decimal.NewFromInt(10), "stop loss"},
		{"OverBalance", func(r *TradeRequest) {}, decimal.RequireFromString("100.01"), "insufficient balance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := req.Validate(tt.stake, balance)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTradeRequest_Limits(t *testing.T) {
	req := TradeRequest{TargetProfit: decimal.NewFromInt(15), StopLoss: decimal.NewFromInt(30)}
	lim := req.Limits()
	assert.Equal(t, "15", lim.TargetProfit.String())
	assert.Equal(t, "30", lim.StopLoss.String())
}

func TestRequestFromConfig(t *testing.T) {
	req, err := RequestFromConfig(config.Trading{
		MarketID:      3,
		MarketName:    "EURUSD",
		TradeTypeID:   2,
		Direction:     "Rise",
		Amount:        0.35,
		UseMartingale: true,
		TargetProfit:  15,
		StopLoss:      25.5,
		RobotID:       7,
	})
	require.NoError(t, err)
	assert.Equal(t, uint(3), req.MarketID)
	assert.Equal(t, "EURUSD", req.Market)
	assert.Equal(t, DirectionRise, req.Direction)
	assert.Equal(t, "0.35", req.BaseAmount.String())
	assert.Equal(t, "15", req.TargetProfit.String())
	assert.Equal(t, "25.5", req.StopLoss.String())
	assert.Equal(t, uint(7), req.RobotID)
	assert.True(t, req.UseMartingale)

	_, err = RequestFromConfig(config.Trading{Direction: "sideways"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
