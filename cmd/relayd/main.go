// relayd serves MT5 trading operations over WebSocket, backed by a paper
// trading engine and a persistent symbol mapping table.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/WolfMoss/atas-mt5/config"
	"github.com/WolfMoss/atas-mt5/paper"
	"github.com/WolfMoss/atas-mt5/relay"
	"github.com/WolfMoss/atas-mt5/symbolmap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	lc := zap.NewDevelopmentConfig()
	lc.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger, _ := lc.Build()
	defer logger.Sync()

	undo := zap.ReplaceGlobals(logger)
	defer undo()

	app := &cli.Command{
		Name:  "relayd",
		Usage: "serve MT5 trading operations over WebSocket",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to the TOML config file",
				Value: "relayd.toml",
			},
		},
		Action: run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		zap.L().Fatal(err.Error())
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	mapper, err := symbolmap.New(cfg.MappingFile, logger)
	if err != nil {
		return err
	}

	trader := paper.New(paperSettings(cfg.Paper), logger)
	server := relay.New(cfg.Listen, trader, mapper, logger)

	errs := make(chan error, 1)
	go func() { errs <- server.ListenAndServe() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return <-errs
}

// loadConfig falls back to defaults when the file does not exist, so a bare
// `relayd` starts a local paper server with no setup.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Parse(path)
	if err == nil {
		return cfg, nil
	}
	if os.IsNotExist(err) {
		zap.L().Warn("config file missing, using defaults", zap.String("path", path))
		return config.Default(), nil
	}
	return nil, err
}

// newLogger builds the daemon logger: console on stderr, plus a rotating
// JSON file when log.path is configured.
func newLogger(cfg config.Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), zap.NewAtomicLevelAt(level)),
	}

	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}

		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSize, // megabytes
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge, // days
			Compress:   cfg.Compress,
		})
		fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEncoder, fileWriter, zap.NewAtomicLevelAt(level)))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

func paperSettings(cfg config.Paper) paper.Settings {
	quotes := make(map[string]paper.Quote, len(cfg.Quotes))
	for symbol, quote := range cfg.Quotes {
		quotes[symbol] = paper.Quote{
			Bid:       quote.Bid,
			Ask:       quote.Ask,
			TickSize:  quote.TickSize,
			TickValue: quote.TickValue,
			Digits:    quote.Digits,
		}
	}

	return paper.Settings{
		Balance:  cfg.Balance,
		Currency: cfg.Currency,
		Leverage: cfg.Leverage,
		Login:    cfg.Login,
		Server:   cfg.Server,
		Name:     cfg.Name,
		Quotes:   quotes,
	}
}
