// Command dexsim runs the toy DEX simulator: a random-walk price oracle,
// two constant-product pools against the USDA stable unit and a web
// dashboard with live price and trade streams.
//
// Usage:
//
//	dexsim --config config.yaml
//	dexsim --setup          (interactive wizard, writes config.gen.yaml)
//	dexsim --addr :9090 --interval 1s
//
// Environment:
//
//	DEXSIM_STATE_DIR overrides where balances, pools and price history are kept.
//
// Set log_file in the YAML config to write rotated JSON logs instead of stderr.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vadiminshakov/dexsim/config"
	"github.com/vadiminshakov/dexsim/internal"
	"github.com/vadiminshakov/dexsim/internal/logging"
	"github.com/vadiminshakov/dexsim/internal/setup"
	"go.uber.org/zap"
)

func main() {
	cfg, runSetup, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if runSetup {
		path, err := setup.RunTUI(cfg)
		if err != nil {
			if errors.Is(err, setup.ErrCancelled) {
				os.Exit(0)
			}
			log.Fatal(err)
		}
		cfg, _, err = config.Load([]string{"--config", path})
		if err != nil {
			log.Fatal(err)
		}
	}

	logger, closeLog, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatal(err)
	}
	defer closeLog()

	session, err := internal.NewSession(cfg, logger)
	if err != nil {
		logger.Fatal("failed to start session", zap.Error(err))
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("failed to close session", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.Run(ctx); err != nil {
		logger.Error("session stopped", zap.Error(err))
		return
	}
	logger.Info("session stopped")
}
