// relayctl drives an MT5 WebSocket relay from the command line.
package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/WolfMoss/atas-mt5/cmd/relayctl/command"
)

func main() {
	lc := zap.NewDevelopmentConfig()
	lc.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger, _ := lc.Build()
	defer logger.Sync()

	undo := zap.ReplaceGlobals(logger)
	defer undo()

	app := &cli.Command{
		Name:  "relayctl",
		Usage: "query and trade through an MT5 WebSocket relay",
	}

	for _, command := range command.Commands {
		app.Commands = append(app.Commands, command.Command())
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		zap.L().Fatal(err.Error())
	}
}
