package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	"traderiser-client/internal/config"
	"traderiser-client/internal/database"
	"traderiser-client/internal/history"
	"traderiser-client/internal/logger"
	"traderiser-client/internal/martingale"
	"traderiser-client/internal/notify"
	"traderiser-client/internal/trader"
	"traderiser-client/internal/traderiser"
)

func runAction(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.GlobalString("config"))
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	applyRunFlags(c, &cfg)

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return err
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Error("Failed to open database", zap.Error(err))
		return err
	}
	log.Info("Database connection successful and schema migrated.")
	repo := history.NewRepository(db, log)

	policy, err := martingale.NewPolicy(cfg.Trading.MartingaleMultiplier, cfg.Trading.MaxMartingaleLevel)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, stopping after the round in flight...")
		cancel()
	}()

	client := traderiser.NewRestClient(&cfg.API, log)

	if err := resolveMarket(ctx, client, &cfg.Trading); err != nil {
		log.Error("Failed to resolve market", zap.Error(err))
		return err
	}
	req, err := trader.RequestFromConfig(cfg.Trading)
	if err != nil {
		return err
	}

	dashboard, err := client.GetDashboard(ctx)
	if err != nil {
		log.Error("Failed to connect to Traderiser API", zap.Error(err))
		return err
	}
	balance, ok := dashboard.Balance(cfg.API.AccountType)
	if !ok {
		return fmt.Errorf("no %s account found", cfg.API.AccountType)
	}
	log.Info("Successfully connected to Traderiser API.",
		zap.String("account_type", cfg.API.AccountType),
		zap.String("balance", notify.FormatWithSymbol(balance, "USD")),
	)

	events := notify.NewChannelSink(64)
	printed := make(chan struct{})
	go printEvents(ctx, events, printed)

	q := trader.NewQueue(trader.QueueOptions{
		Client:        client,
		Policy:        policy,
		Sink:          notify.Multi{notify.NewLogSink(log), events},
		Recorder:      repo,
		Logger:        log,
		AccountType:   cfg.API.AccountType,
		RobotName:     robotName(ctx, client, cfg.Trading.RobotID, log),
		CallTimeout:   cfg.Trading.CallTimeout,
		RoundInterval: cfg.Trading.RoundInterval,
	})

	if cfg.Server.StatusPort > 0 {
		api := trader.NewAPIServer(q, cfg.Server.StatusPort, log)
		api.Start()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := api.Stop(shutdownCtx); err != nil {
				log.Error("API server shutdown failed", zap.Error(err))
			}
		}()
	}

	if err := q.Start(req, balance); err != nil {
		log.Error("Failed to start trading session", zap.Error(err))
		return err
	}

	snap, err := q.Run(ctx)
	cancel()
	<-printed

	log.Info("Trading session finished",
		zap.String("session_id", snap.SessionID),
		zap.String("reason", string(snap.StopReason)),
		zap.Int("contracts", snap.Contracts),
		zap.Int("wins", snap.Wins),
		zap.Int("losses", snap.Losses),
		zap.String("session_profit", snap.Ledger.SessionProfit.StringFixed(2)),
		zap.String("balance", snap.CurrentBalance.StringFixed(2)),
	)
	if dropped := events.Dropped(); dropped > 0 {
		log.Warn("Notifications dropped", zap.Int("count", dropped))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// applyRunFlags lets command-line flags override the trading configuration.
func applyRunFlags(c *cli.Context, cfg *config.Config) {
	t := &cfg.Trading
	if c.IsSet("market-id") {
		t.MarketID = c.Uint("market-id")
	}
	if c.IsSet("market") {
		t.MarketName = c.String("market")
	}
	if c.IsSet("trade-type-id") {
		t.TradeTypeID = c.Uint("trade-type-id")
	}
	if c.IsSet("direction") {
		t.Direction = c.String("direction")
	}
	if c.IsSet("amount") {
		t.Amount = c.Float64("amount")
	}
	if c.IsSet("martingale") {
		t.UseMartingale = c.Bool("martingale")
	}
	if c.IsSet("target-profit") {
		t.TargetProfit = c.Float64("target-profit")
	}
	if c.IsSet("stop-loss") {
		t.StopLoss = c.Float64("stop-loss")
	}
	if c.IsSet("robot-id") {
		t.RobotID = c.Uint("robot-id")
	}
	if c.IsSet("account-type") {
		cfg.API.AccountType = c.String("account-type")
	}
}

// resolveMarket fills in whichever of market id and name is missing.
func resolveMarket(ctx context.Context, client traderiser.RestClientInterface, t *config.Trading) error {
	if t.MarketID != 0 && t.MarketName != "" {
		return nil
	}
	markets, err := client.GetMarkets(ctx)
	if err != nil {
		return err
	}
	for _, m := range markets {
		if (t.MarketID != 0 && m.ID == t.MarketID) || (t.MarketID == 0 && strings.EqualFold(m.Name, t.MarketName)) {
			t.MarketID, t.MarketName = m.ID, m.Name
			return nil
		}
	}
	if t.MarketID == 0 && t.MarketName == "" {
		return errors.New("no market configured")
	}
	return fmt.Errorf("market %q (id %d) not found", t.MarketName, t.MarketID)
}

// robotName looks up the display name of a purchased robot. Failures only
// affect the wording of the target-reached message.
func robotName(ctx context.Context, client traderiser.RestClientInterface, robotID uint, log *zap.Logger) string {
	if robotID == 0 {
		return ""
	}
	robots, err := client.GetUserRobots(ctx)
	if err != nil {
		log.Warn("Failed to fetch robots", zap.Error(err))
		return ""
	}
	for _, ur := range robots {
		if ur.Robot.ID == robotID {
			return ur.Robot.Name
		}
	}
	log.Warn("Robot not found among purchased robots", zap.Uint("robot_id", robotID))
	return ""
}

// printEvents writes notifications to standard output until ctx is done and
// the buffer is drained.
func printEvents(ctx context.Context, sink *notify.ChannelSink, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case e := <-sink.Events():
			printEvent(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-sink.Events():
					printEvent(e)
				default:
					return
				}
			}
		}
	}
}

func printEvent(e notify.Event) {
	prefix := "  "
	switch {
	case e.Positive():
		prefix = "+ "
	case e.Kind == notify.KindLoss || e.Kind == notify.KindTradeError:
		prefix = "- "
	}
	fmt.Println(prefix + e.Message())
	if e.Kind.Terminal() {
		fmt.Printf("  Profit/Loss: %s\n", notify.FormatWithSymbol(e.SessionProfit, "USD"))
	}
}
