package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application: bots first, then shared
// infrastructure, in reverse startup order.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	// Cancel context to signal all components
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if a.cryptoScanner != nil {
		a.cryptoScanner.Close()
	}

	if a.datafeedBot != nil {
		a.datafeedBot.Close()
	}

	if a.mirrorBot != nil {
		a.mirrorBot.Close()
	}

	err := a.marketMonitor.Close()
	if err != nil {
		a.logger.Error("market-monitor-close-error", zap.Error(err))
	}

	err = a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	err = a.store.Close()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	a.appCache.Close()
	a.eventBus.Close()

	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")

	return nil
}
