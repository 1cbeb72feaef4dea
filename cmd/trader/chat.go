package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	"traderiser-client/internal/chat"
	"traderiser-client/internal/config"
	"traderiser-client/internal/logger"
)

func chatAction(c *cli.Context) error {
	market := c.Args().First()
	if market == "" {
		return errors.New("market is required")
	}

	cfg, err := config.LoadConfig(c.GlobalString("config"))
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := chat.NewClient(cfg.API.WSURL, cfg.API.Token, market, chat.DefaultBudget(), log)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if err := client.Send(text); err != nil {
				log.Warn("Message not sent", zap.Error(err))
			}
		}
	}()

	err = client.Run(ctx, printChatMessage)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printChatMessage(m chat.Message) {
	for _, h := range m.Messages {
		fmt.Printf("[%s] %s: %s\n", h.Timestamp, h.Username, h.Message)
	}
	if m.Message != "" {
		fmt.Printf("[%s] %s: %s\n", m.Timestamp, m.Username, m.Message)
	}
}
