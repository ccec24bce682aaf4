package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("mode", a.cfg.ExecutionMode),
		zap.Float64("min-profit-threshold-pct", a.cfg.MinProfitThresholdPct),
		zap.String("log-level", a.cfg.LogLevel))

	err := a.startComponents()
	if err != nil {
		return err
	}

	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.Bool("paper", a.trader != nil),
		zap.Bool("mirror", a.mirrorBot != nil),
		zap.Bool("datafeed", a.datafeedBot != nil),
		zap.Bool("crypto-arb", a.cryptoScanner != nil))

	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	// Start HTTP server
	a.wg.Add(1)
	go a.runHTTPServer()

	// Give HTTP server a moment to start
	time.Sleep(100 * time.Millisecond)

	err := a.marketMonitor.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start market monitor: %w", err)
	}

	if a.mirrorBot != nil {
		a.mirrorBot.Start(a.ctx)
	}

	if a.datafeedBot != nil {
		a.datafeedBot.Start(a.ctx)
	}

	if a.cryptoScanner != nil {
		a.cryptoScanner.Start(a.ctx)
	}

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
