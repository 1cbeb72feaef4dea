package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "traderiser"
	app.Usage = "Martingale trade execution client for the Traderiser platform"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: "./configs",
			Usage: "directory containing config.yml",
		},
	}

	app.Commands = []cli.Command{
		runCMD,
		chatCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	runCMD = cli.Command{
		Name:   "run",
		Usage:  "run a trading session",
		Action: runAction,
		Flags: []cli.Flag{
			cli.UintFlag{Name: "market-id", Usage: "market to trade"},
			cli.StringFlag{Name: "market", Usage: "market name, resolved to an id when market-id is not set"},
			cli.UintFlag{Name: "trade-type-id", Usage: "trade type"},
			cli.StringFlag{Name: "direction", Usage: "buy, sell, rise or fall"},
			cli.Float64Flag{Name: "amount", Usage: "base stake"},
			cli.BoolFlag{Name: "martingale", Usage: "double the stake after each loss"},
			cli.Float64Flag{Name: "target-profit", Usage: "stop once session profit reaches this value, 0 disables"},
			cli.Float64Flag{Name: "stop-loss", Usage: "stop once session loss reaches this value, 0 disables"},
			cli.UintFlag{Name: "robot-id", Usage: "robot to trade with"},
			cli.StringFlag{Name: "account-type", Usage: "account to trade on, e.g. demo or standard"},
		},
		Description: `Runs rounds one at a time until the target profit, the stop loss or the
   martingale limit is reached, an error occurs, or the process is interrupted.`,
	}
	chatCMD = cli.Command{
		Name:      "chat",
		Usage:     "join a market chat room",
		Action:    chatAction,
		ArgsUsage: "<market>",
		Description: `Prints messages of the room and sends every line read from standard
   input.`,
	}
)
