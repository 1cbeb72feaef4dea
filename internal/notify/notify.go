// Package notify turns execution-queue events into user-visible messages.
package notify

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Kind identifies a queue event.
type Kind string

const (
	KindWin                 Kind = "win"
	KindLoss                Kind = "loss"
	KindTradeError          Kind = "trade_error"
	KindTargetReached       Kind = "target_reached"
	KindStopLoss            Kind = "stop_loss"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindMartingaleExhausted Kind = "martingale_exhausted"
	KindStopped             Kind = "stopped"
)

// Terminal reports whether the event ends a trading session.
func (k Kind) Terminal() bool {
	switch k {
	case KindTargetReached, KindStopLoss, KindInsufficientBalance, KindMartingaleExhausted, KindStopped:
		return true
	}
	return false
}

// Event is a single notification. Fields irrelevant to the Kind are zero.
type Event struct {
	Kind          Kind
	TradeID       string
	Amount        decimal.Decimal
	Profit        decimal.Decimal
	SessionProfit decimal.Decimal
	TargetProfit  decimal.Decimal
	RobotName     string
	Err           error
	// Reason carries free text for KindStopped and KindTradeError.
	Reason string
}

// Message renders the text shown to the user.
func (e Event) Message() string {
	switch e.Kind {
	case KindWin:
		return fmt.Sprintf("WIN +$%s (Profit/Loss: $%s)", FormatMoney(e.Profit), FormatMoney(e.SessionProfit))
	case KindLoss:
		return fmt.Sprintf("LOSS -$%s (Profit/Loss: $%s)", FormatMoney(e.Profit.Abs()), FormatMoney(e.SessionProfit))
	case KindTradeError:
		if e.Reason != "" {
			return "Error: " + e.Reason
		}
		return "Error: Failed to execute trade"
	case KindTargetReached:
		if e.RobotName != "" {
			return fmt.Sprintf("Congratulations, %s has printed $%s successfully.", e.RobotName, FormatMoney(e.SessionProfit))
		}
		return fmt.Sprintf("Congratulations, target profit of $%s attained! Profit: $%s",
			FormatMoney(e.TargetProfit), FormatMoney(e.SessionProfit))
	case KindStopLoss:
		return fmt.Sprintf("Stop loss reached. Loss: $%s. Try again next round!", FormatMoney(e.SessionProfit.Abs()))
	case KindInsufficientBalance:
		return "Insufficient balance. Trading stopped."
	case KindMartingaleExhausted:
		return fmt.Sprintf("Martingale limit reached. Loss: $%s. Trading stopped.", FormatMoney(e.SessionProfit.Abs()))
	case KindStopped:
		if e.Reason != "" {
			return "Trading stopped: " + e.Reason
		}
		return "Trading stopped"
	}
	return string(e.Kind)
}

// Positive reports whether the message should be shown as good news.
func (e Event) Positive() bool {
	return e.Kind == KindWin || e.Kind == KindTargetReached
}

// Sink receives events. Implementations must not block the caller for long.
type Sink interface {
	Notify(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

// Notify calls f(e).
func (f SinkFunc) Notify(e Event) { f(e) }

// Nop discards every event.
var Nop Sink = SinkFunc(func(Event) {})

// LogSink writes events to a zap logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("notify")}
}

// Notify logs the event at a level matching its severity.
func (s *LogSink) Notify(e Event) {
	fields := []zap.Field{
		zap.String("kind", string(e.Kind)),
		zap.String("session_profit", e.SessionProfit.StringFixed(2)),
	}
	if e.TradeID != "" {
		fields = append(fields, zap.String("trade_id", e.TradeID))
	}
	if e.Err != nil {
		fields = append(fields, zap.Error(e.Err))
	}

	switch e.Kind {
	case KindTradeError, KindInsufficientBalance:
		s.logger.Error(e.Message(), fields...)
	case KindLoss, KindStopLoss, KindMartingaleExhausted:
		s.logger.Warn(e.Message(), fields...)
	default:
		s.logger.Info(e.Message(), fields...)
	}
}

// ChannelSink buffers events on a channel. When the buffer is full new
// events are dropped rather than blocking the queue.
type ChannelSink struct {
	ch      chan Event
	mu      sync.Mutex
	dropped int
}

// NewChannelSink creates a ChannelSink with the given buffer size.
func NewChannelSink(size int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, size)}
}

// Notify enqueues e or drops it when the buffer is full.
func (s *ChannelSink) Notify(e Event) {
	select {
	case s.ch <- e:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
	}
}

// Events returns the receive side of the buffer.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Dropped returns the number of events dropped because the buffer was full.
func (s *ChannelSink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Multi fans an event out to several sinks in order.
type Multi []Sink

// Notify delivers e to each sink.
func (m Multi) Notify(e Event) {
	for _, s := range m {
		if s != nil {
			s.Notify(e)
		}
	}
}
