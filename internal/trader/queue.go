package trader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"traderiser-client/internal/ledger"
	"traderiser-client/internal/martingale"
	"traderiser-client/internal/metrics"
	"traderiser-client/internal/models"
	"traderiser-client/internal/notify"
	"traderiser-client/internal/traderiser"
)

var (
	// ErrQueueActive is returned by Start while a session is running or a
	// round of the previous session is still in flight.
	ErrQueueActive = errors.New("trading session already active")
	// ErrNotStarted is returned by Run before any session was started.
	ErrNotStarted = errors.New("trading session not started")
	// errNoTradeData marks a success response without a settled trade.
	errNoTradeData = errors.New("no trade data returned in response")
)

// StopReason explains why a session ended.
type StopReason string

const (
	StopReasonNone                StopReason = ""
	StopReasonUser                StopReason = "user"
	StopReasonTargetReached       StopReason = "target_reached"
	StopReasonStopLoss            StopReason = "stop_loss"
	StopReasonInsufficientBalance StopReason = "insufficient_balance"
	StopReasonError               StopReason = "error"
	StopReasonMartingaleExhausted StopReason = "martingale_exhausted"
	StopReasonShutdown            StopReason = "shutdown"
)

// TradePlacer places a single trade on the platform.
type TradePlacer interface {
	PlaceTrade(ctx context.Context, req traderiser.PlaceTradeRequest) (*traderiser.PlaceTradeResponse, error)
}

// Recorder persists completed rounds and session summaries.
type Recorder interface {
	SaveTrade(rec *models.TradeRecord) error
	SaveSession(s *models.TradingSession) error
}

// QueueOptions configures a Queue. Client is required.
type QueueOptions struct {
	Client      TradePlacer
	Policy      martingale.Policy
	Sink        notify.Sink
	Recorder    Recorder
	Logger      *zap.Logger
	AccountType string
	// RobotName is used in the target-reached message when the session
	// trades with a robot.
	RobotName string
	// CallTimeout bounds one placement call. Zero means no bound.
	CallTimeout time.Duration
	// RoundInterval is a pause between rounds. Zero runs rounds back to back.
	RoundInterval time.Duration
}

// Snapshot is a consistent copy of the queue state.
type Snapshot struct {
	SessionID      string           `json:"session_id"`
	Active         bool             `json:"active"`
	StopReason     StopReason       `json:"stop_reason,omitempty"`
	Ledger         ledger.Ledger    `json:"ledger"`
	CurrentBalance decimal.Decimal  `json:"current_balance"`
	Trades         []ExecutingTrade `json:"trades"`
	Contracts      int              `json:"contracts"`
	Wins           int              `json:"wins"`
	Losses         int              `json:"losses"`
	StartedAt      time.Time        `json:"started_at"`
}

// Queue executes trade rounds strictly one at a time. Between rounds it
// applies the martingale policy and the session's target profit and stop
// loss. All methods are safe for concurrent use; Stop may be called while a
// round is in flight.
type Queue struct {
	client        TradePlacer
	policy        martingale.Policy
	sink          notify.Sink
	recorder      Recorder
	logger        *zap.Logger
	accountType   string
	robotName     string
	callTimeout   time.Duration
	roundInterval time.Duration
	now           func() time.Time

	mu         sync.Mutex
	sessionID  string
	base       TradeRequest
	trades     []*ExecutingTrade
	ledger     ledger.Ledger
	active     bool
	stopReason StopReason
	startedAt  time.Time

	// outbox collects side effects produced under mu; they are delivered
	// after mu is released.
	outbox []func()
}

// NewQueue creates an idle queue.
func NewQueue(opts QueueOptions) *Queue {
	policy := opts.Policy
	if policy.Multiplier == 0 || policy.MaxLevel == 0 {
		policy = martingale.DefaultPolicy()
	}
	sink := opts.Sink
	if sink == nil {
		sink = notify.Nop
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Queue{
		client:        opts.Client,
		policy:        policy,
		sink:          sink,
		recorder:      opts.Recorder,
		logger:        logger.Named("queue"),
		accountType:   opts.AccountType,
		robotName:     opts.RobotName,
		callTimeout:   opts.CallTimeout,
		roundInterval: opts.RoundInterval,
		now:           time.Now,
	}
}

// Start begins a session: the ledger is reset at startingBalance and the
// first round is queued.
func (q *Queue) Start(req TradeRequest, startingBalance decimal.Decimal) error {
	q.mu.Lock()
	defer q.unlockAndFlush()

	// A round of the previous session may still be in flight after Stop.
	if q.active || q.inFlightLocked() {
		return ErrQueueActive
	}
	if err := req.validateFields(); err != nil {
		return err
	}
	if req.MartingaleLevel >= q.policy.MaxLevel {
		return fmt.Errorf("%w: martingale level %d exceeds maximum %d", ErrInvalidRequest, req.MartingaleLevel, q.policy.MaxLevel-1)
	}
	if err := checkStake(q.policy.Stake(req.BaseAmount, req.MartingaleLevel), startingBalance); err != nil {
		return err
	}

	q.sessionID = uuid.NewString()
	q.base = req
	q.trades = nil
	q.ledger = ledger.New(startingBalance)
	q.active = true
	q.stopReason = StopReasonNone
	q.startedAt = q.now()

	q.enqueueLocked(req.MartingaleLevel)
	q.saveSessionLocked()
	metrics.SetSessionProfit(decimal.Zero)

	q.logger.Info("Trading session started",
		zap.String("session_id", q.sessionID),
		zap.Uint("market_id", req.MarketID),
		zap.String("direction", string(req.Direction)),
		zap.String("base_amount", req.BaseAmount.String()),
		zap.Bool("use_martingale", req.UseMartingale),
		zap.String("target_profit", req.TargetProfit.String()),
		zap.String("stop_loss", req.StopLoss.String()),
		zap.String("starting_balance", startingBalance.String()),
	)
	return nil
}

// Run executes rounds until the session stops or ctx is done. Cancelling ctx
// stops the session with StopReasonShutdown once the round in flight, if any,
// has been applied.
func (q *Queue) Run(ctx context.Context) (Snapshot, error) {
	q.mu.Lock()
	started := q.sessionID != ""
	q.mu.Unlock()
	if !started {
		return Snapshot{}, ErrNotStarted
	}

	for {
		if err := ctx.Err(); err != nil {
			q.halt(StopReasonShutdown, "")
			return q.Snapshot(), err
		}
		if !q.Step(ctx) {
			return q.Snapshot(), nil
		}
		if q.roundInterval > 0 {
			select {
			case <-time.After(q.roundInterval):
			case <-ctx.Done():
			}
		}
	}
}

// Step executes the oldest pending round. It reports whether another round
// is queued afterwards.
func (q *Queue) Step(ctx context.Context) bool {
	q.mu.Lock()
	if !q.active {
		q.unlockAndFlush()
		return false
	}

	if q.checkLimitsLocked() {
		q.unlockAndFlush()
		return false
	}

	trade := q.nextPendingLocked()
	if trade == nil {
		q.logger.Warn("Session active without a pending round", zap.String("session_id", q.sessionID))
		q.unlockAndFlush()
		return false
	}

	trade.Status = StatusExecuting
	trade.StartedAt = q.now()
	trade.ComputedAmount = q.policy.Stake(trade.BaseAmount, trade.MartingaleLevel)
	req := q.wireRequestLocked(trade)
	level := trade.MartingaleLevel
	l := q.logger.With(
		zap.String("trade_id", trade.ID),
		zap.Int("martingale_level", trade.MartingaleLevel),
		zap.String("stake", trade.ComputedAmount.String()),
	)
	q.mu.Unlock()

	metrics.SetMartingaleLevel(level)
	l.Info("Executing round")

	resp, err := q.place(ctx, req)

	q.mu.Lock()
	defer q.unlockAndFlush()

	if err == nil {
		var result traderiser.TradeResult
		if result, err = firstResult(resp); err == nil {
			return q.completeLocked(trade, result, resp.IsDemo || result.IsDemo)
		}
	}
	return q.failLocked(trade, err)
}

// Stop ends the session on user request. Pending rounds are discarded; a
// round already in flight is still applied when it resolves.
func (q *Queue) Stop() {
	q.halt(StopReasonUser, "")
}

// Active reports whether a session is running.
func (q *Queue) Active() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Snapshot returns a copy of the current state.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Snapshot{
		SessionID:      q.sessionID,
		Active:         q.active,
		StopReason:     q.stopReason,
		Ledger:         q.ledger,
		CurrentBalance: q.ledger.CurrentBalance(),
		Trades:         make([]ExecutingTrade, 0, len(q.trades)),
		StartedAt:      q.startedAt,
	}
	for _, t := range q.trades {
		s.Trades = append(s.Trades, *t)
		if t.Status != StatusCompleted {
			continue
		}
		s.Contracts++
		if t.Won() {
			s.Wins++
		} else {
			s.Losses++
		}
	}
	return s
}

// place calls the platform. The call is detached from ctx cancellation so
// a round that was sent is always settled and applied.
func (q *Queue) place(ctx context.Context, req traderiser.PlaceTradeRequest) (*traderiser.PlaceTradeResponse, error) {
	callCtx := context.WithoutCancel(ctx)
	if q.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, q.callTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := q.client.PlaceTrade(callCtx, req)
	metrics.ObservePlaceLatency(time.Since(start))
	return resp, err
}

func firstResult(resp *traderiser.PlaceTradeResponse) (traderiser.TradeResult, error) {
	if resp == nil || len(resp.Trades) == 0 {
		return traderiser.TradeResult{}, errNoTradeData
	}
	return resp.Trades[0], nil
}

// completeLocked applies a settled round and decides whether to continue.
func (q *Queue) completeLocked(trade *ExecutingTrade, result traderiser.TradeResult, isDemo bool) bool {
	l := q.logger.With(zap.String("trade_id", trade.ID))

	if result.Amount.Valid && !result.Amount.Decimal.Equal(trade.ComputedAmount) {
		l.Warn("Settled stake differs from computed stake",
			zap.String("computed", trade.ComputedAmount.String()),
			zap.String("settled", result.Amount.Decimal.String()),
		)
		metrics.ObserveStakeMismatch()
		trade.ComputedAmount = result.Amount.Decimal
	}

	isWin := result.IsWin
	trade.Status = StatusCompleted
	trade.CompletedAt = q.now()
	trade.IsWin = &isWin
	trade.Profit = decimal.NewNullDecimal(result.Profit)
	trade.EntrySpot = result.EntrySpot
	trade.ExitSpot = result.ExitSpot
	trade.CurrentSpot = result.CurrentSpot
	trade.IsDemo = isDemo

	q.ledger = q.ledger.Apply(result.Profit)
	metrics.SetSessionProfit(q.ledger.SessionProfit)

	kind, outcome := notify.KindLoss, metrics.ResultLoss
	if isWin {
		kind, outcome = notify.KindWin, metrics.ResultWin
	}
	metrics.ObserveRound(outcome, trade.ComputedAmount)
	q.saveTradeLocked(trade)
	q.emitLocked(notify.Event{
		Kind:          kind,
		TradeID:       trade.ID,
		Amount:        trade.ComputedAmount,
		Profit:        result.Profit,
		SessionProfit: q.ledger.SessionProfit,
	})

	l.Info("Round completed",
		zap.Bool("is_win", isWin),
		zap.String("profit", result.Profit.String()),
		zap.String("session_profit", q.ledger.SessionProfit.String()),
	)

	if !q.active {
		// Stopped while the round was in flight.
		q.saveSessionLocked()
		return false
	}
	if q.checkLimitsLocked() {
		return false
	}

	level := 0
	if trade.UseMartingale {
		next, ok := q.policy.NextLevel(trade.MartingaleLevel, isWin)
		if !ok {
			q.haltLocked(StopReasonMartingaleExhausted, "")
			return false
		}
		level = next
	}

	q.enqueueLocked(level)
	return true
}

// failLocked records a failed round as a full loss and stops the session.
func (q *Queue) failLocked(trade *ExecutingTrade, err error) bool {
	msg := traderiser.ErrorMessage(err)
	if errors.Is(err, errNoTradeData) {
		msg = errNoTradeData.Error()
	}
	loss := trade.ComputedAmount.Neg()
	isWin := false

	trade.Status = StatusCompleted
	trade.CompletedAt = q.now()
	trade.IsWin = &isWin
	trade.Profit = decimal.NewNullDecimal(loss)
	trade.Error = msg

	q.ledger = q.ledger.Apply(loss)
	metrics.SetSessionProfit(q.ledger.SessionProfit)
	metrics.ObserveRound(metrics.ResultError, trade.ComputedAmount)
	q.saveTradeLocked(trade)

	q.logger.Error("Round failed",
		zap.String("trade_id", trade.ID),
		zap.String("stake", trade.ComputedAmount.String()),
		zap.Error(err),
	)

	q.emitLocked(notify.Event{Kind: notify.KindTradeError, TradeID: trade.ID, Reason: msg, Err: err, SessionProfit: q.ledger.SessionProfit})
	q.emitLocked(notify.Event{
		Kind:          notify.KindLoss,
		TradeID:       trade.ID,
		Amount:        trade.ComputedAmount,
		Profit:        loss,
		SessionProfit: q.ledger.SessionProfit,
	})

	switch {
	case !q.active:
		q.saveSessionLocked()
	case traderiser.IsInsufficientBalance(err):
		q.haltLocked(StopReasonInsufficientBalance, msg)
	default:
		q.haltLocked(StopReasonError, msg)
	}
	return false
}

// checkLimitsLocked stops the session when target profit or stop loss has
// been reached and reports whether it did.
func (q *Queue) checkLimitsLocked() bool {
	switch q.base.Limits().Evaluate(q.ledger) {
	case ledger.TargetReached:
		q.haltLocked(StopReasonTargetReached, "")
		return true
	case ledger.StopLossReached:
		q.haltLocked(StopReasonStopLoss, "")
		return true
	}
	return false
}

func (q *Queue) halt(reason StopReason, detail string) {
	q.mu.Lock()
	defer q.unlockAndFlush()
	q.haltLocked(reason, detail)
}

// haltLocked deactivates the session, discards pending rounds and emits the
// terminal notification for reason.
func (q *Queue) haltLocked(reason StopReason, detail string) {
	if !q.active {
		return
	}
	q.active = false
	q.stopReason = reason

	kept := q.trades[:0]
	discarded := 0
	for _, t := range q.trades {
		if t.Status == StatusPending {
			discarded++
			continue
		}
		kept = append(kept, t)
	}
	q.trades = kept

	metrics.ObserveStop(string(reason))

	event := notify.Event{SessionProfit: q.ledger.SessionProfit, Reason: detail}
	switch reason {
	case StopReasonTargetReached:
		event.Kind = notify.KindTargetReached
		event.TargetProfit = q.base.TargetProfit
		if q.base.RobotID != 0 {
			event.RobotName = q.robotName
			if event.RobotName == "" {
				event.RobotName = "Robot"
			}
		}
	case StopReasonStopLoss:
		event.Kind = notify.KindStopLoss
	case StopReasonInsufficientBalance:
		event.Kind = notify.KindInsufficientBalance
	case StopReasonMartingaleExhausted:
		event.Kind = notify.KindMartingaleExhausted
	case StopReasonShutdown:
		event.Kind = notify.KindStopped
		event.Reason = "shutting down"
	default:
		event.Kind = notify.KindStopped
	}
	q.emitLocked(event)
	q.saveSessionLocked()

	q.logger.Info("Trading session stopped",
		zap.String("session_id", q.sessionID),
		zap.String("reason", string(reason)),
		zap.Int("discarded_rounds", discarded),
		zap.String("session_profit", q.ledger.SessionProfit.String()),
	)
}

func (q *Queue) enqueueLocked(level int) {
	req := q.base
	req.MartingaleLevel = level
	q.trades = append(q.trades, &ExecutingTrade{
		TradeRequest:   req,
		ID:             uuid.NewString(),
		Status:         StatusPending,
		ComputedAmount: q.policy.Stake(req.BaseAmount, level),
		QueuedAt:       q.now(),
	})
}

func (q *Queue) inFlightLocked() bool {
	for _, t := range q.trades {
		if t.Status == StatusExecuting {
			return true
		}
	}
	return false
}

func (q *Queue) nextPendingLocked() *ExecutingTrade {
	for _, t := range q.trades {
		if t.Status == StatusPending {
			return t
		}
	}
	return nil
}

// wireRequestLocked builds the placement call. The base amount is sent with
// the level; the platform applies the multiplier itself.
func (q *Queue) wireRequestLocked(t *ExecutingTrade) traderiser.PlaceTradeRequest {
	return traderiser.PlaceTradeRequest{
		MarketID:        t.MarketID,
		TradeTypeID:     t.TradeTypeID,
		Direction:       t.Direction.Wire(),
		Amount:          t.BaseAmount,
		AccountType:     q.accountType,
		UseMartingale:   t.UseMartingale,
		MartingaleLevel: t.MartingaleLevel,
		RobotID:         t.RobotID,
		TargetProfit:    t.TargetProfit,
		StopLoss:        t.StopLoss,
	}
}

func (q *Queue) emitLocked(e notify.Event) {
	q.outbox = append(q.outbox, func() { q.sink.Notify(e) })
}

func (q *Queue) saveTradeLocked(t *ExecutingTrade) {
	if q.recorder == nil {
		return
	}
	rec := &models.TradeRecord{
		SessionID:       q.sessionID,
		RoundID:         t.ID,
		MarketID:        t.MarketID,
		Market:          t.Market,
		TradeTypeID:     t.TradeTypeID,
		Direction:       string(t.Direction),
		AccountType:     q.accountType,
		RobotID:         t.RobotID,
		MartingaleLevel: t.MartingaleLevel,
		BaseAmount:      t.BaseAmount,
		Amount:          t.ComputedAmount,
		Profit:          t.Profit.Decimal,
		IsWin:           t.Won(),
		IsDemo:          t.IsDemo,
		EntrySpot:       t.EntrySpot,
		ExitSpot:        t.ExitSpot,
		Error:           t.Error,
		CompletedAt:     t.CompletedAt,
	}
	q.outbox = append(q.outbox, func() {
		if err := q.recorder.SaveTrade(rec); err != nil {
			q.logger.Error("Failed to record trade", zap.String("trade_id", rec.RoundID), zap.Error(err))
		}
	})
}

// saveSessionLocked records the session summary, marking it ended when the
// session is no longer active.
func (q *Queue) saveSessionLocked() {
	if q.recorder == nil {
		return
	}
	var endedAt *time.Time
	if !q.active {
		now := q.now()
		endedAt = &now
	}
	s := &models.TradingSession{
		SessionID:       q.sessionID,
		AccountType:     q.accountType,
		StartingBalance: q.ledger.StartingBalance,
		SessionProfit:   q.ledger.SessionProfit,
		StopReason:      string(q.stopReason),
		StartedAt:       q.startedAt,
		EndedAt:         endedAt,
	}
	q.outbox = append(q.outbox, func() {
		if err := q.recorder.SaveSession(s); err != nil {
			q.logger.Error("Failed to record session", zap.String("session_id", s.SessionID), zap.Error(err))
		}
	})
}

// unlockAndFlush releases mu and then delivers the collected side effects.
func (q *Queue) unlockAndFlush() {
	pending := q.outbox
	q.outbox = nil
	q.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}
