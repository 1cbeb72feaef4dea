package notify

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestEvent_Message(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"Win", Event{Kind: KindWin, Profit: d("8.5"), SessionProfit: d("18.5")}, "WIN +$8.50 (Profit/Loss: $18.50)"},
		{"Loss", Event{Kind: KindLoss, Profit: d("-20"), SessionProfit: d("-30")}, "LOSS -$20.00 (Profit/Loss: $-30.00)"},
		{"TargetManual", Event{Kind: KindTargetReached, TargetProfit: d("15"), SessionProfit: d("18")},
			"Congratulations, target profit of $15.00 attained! Profit: $18.00"},
		{"TargetRobot", Event{Kind: KindTargetReached, TargetProfit: d("15"), SessionProfit: d("18"), RobotName: "Sashi"},
			"Congratulations, Sashi has printed $18.00 successfully."},
		{"StopLoss", Event{Kind: KindStopLoss, SessionProfit: d("-30")}, "Stop loss reached. Loss: $30.00. Try again next round!"},
		{"InsufficientBalance", Event{Kind: KindInsufficientBalance}, "Insufficient balance. Trading stopped."},
		{"Stopped", Event{Kind: KindStopped}, "Trading stopped"},
		{"StoppedWithReason", Event{Kind: KindStopped, Reason: "market closed"}, "Trading stopped: market closed"},
		{"TradeError", Event{Kind: KindTradeError, Reason: "Robot not available for demo"}, "Error: Robot not available for demo"},
		{"TradeErrorGeneric", Event{Kind: KindTradeError}, "Error: Failed to execute trade"},
		{"MartingaleExhausted", Event{Kind: KindMartingaleExhausted, SessionProfit: d("-310")},
			"Martingale limit reached. Loss: $310.00. Trading stopped."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.Message())
		})
	}
}

func TestKind_Terminal(t *testing.T) {
	assert.False(t, KindWin.Terminal())
	assert.False(t, KindLoss.Terminal())
	assert.False(t, KindTradeError.Terminal())
	assert.True(t, KindTargetReached.Terminal())
	assert.True(t, KindStopLoss.Terminal())
	assert.True(t, KindInsufficientBalance.Terminal())
	assert.True(t, KindMartingaleExhausted.Terminal())
	assert.True(t, KindStopped.Terminal())
}

func TestChannelSink_DropsWhenFull(t *testing.T) {
	s := NewChannelSink(1)
	s.Notify(Event{Kind: KindWin})
	s.Notify(Event{Kind: KindLoss})

	assert.Equal(t, 1, s.Dropped())
	e := <-s.Events()
	assert.Equal(t, KindWin, e.Kind)
}

func TestMulti(t *testing.T) {
	var got []Kind
	a := SinkFunc(func(e Event) { got = append(got, e.Kind) })
	b := NewChannelSink(4)

	Multi{a, nil, b}.Notify(Event{Kind: KindStopped})

	assert.Equal(t, []Kind{KindStopped}, got)
	assert.Len(t, b.Events(), 1)
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := NewLogSink(zap.New(core))

	s.Notify(Event{Kind: KindWin, Profit: d("5"), SessionProfit: d("5"), TradeID: "t-1"})
	s.Notify(Event{Kind: KindTradeError, Err: errors.New("boom"), Reason: "boom"})

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "WIN +$5.00 (Profit/Loss: $5.00)", entries[0].Message)
		assert.Equal(t, "t-1", entries[0].ContextMap()["trade_id"])
		assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0.00", FormatMoney(decimal.Zero))
	assert.Equal(t, "999.99", FormatMoney(d("999.994")))
	assert.Equal(t, "1,000.00", FormatMoney(d("999.999")))
	assert.Equal(t, "1,234,567.89", FormatMoney(d("1234567.891")))
	assert.Equal(t, "-12,345.60", FormatMoney(d("-12345.6")))
	assert.Equal(t, "1,234.568", FormatDecimal(d("1234.5678"), 3))

	assert.Equal(t, "$10.00", FormatWithSymbol(d("10"), "USD"))
	assert.Equal(t, "KSh1,500.00", FormatWithSymbol(d("1500"), "kes"))
	assert.Equal(t, "JPY5.00", FormatWithSymbol(d("5"), "JPY"))
}
