// Package app wires configuration, shared infrastructure and the enabled
// strategy bots into one process.
package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/arb"
	"github.com/edgefeed/signal-engine/internal/bus"
	"github.com/edgefeed/signal-engine/internal/cryptoarb"
	"github.com/edgefeed/signal-engine/internal/datafeed"
	"github.com/edgefeed/signal-engine/internal/fetch"
	"github.com/edgefeed/signal-engine/internal/mirror"
	"github.com/edgefeed/signal-engine/internal/paper"
	"github.com/edgefeed/signal-engine/internal/storage"
	"github.com/edgefeed/signal-engine/pkg/cache"
	"github.com/edgefeed/signal-engine/pkg/config"
	"github.com/edgefeed/signal-engine/pkg/healthprobe"
	"github.com/edgefeed/signal-engine/pkg/httpserver"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	eventBus      *bus.Bus
	fetcher       *fetch.Client
	appCache      cache.Cache
	store         storage.Storage
	httpServer    *httpserver.Server

	marketMonitor *arb.Monitor
	trader        *paper.Trader
	mirrorBot     *mirror.Bot
	datafeedBot   *datafeed.Bot
	cryptoScanner *cryptoarb.Scanner

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}
