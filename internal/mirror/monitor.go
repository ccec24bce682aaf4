// Package mirror tracks external wallets' active-position sets and mirrors
// their changes into a paper portfolio. The address monitor polls the
// positions endpoint per address, diffs snapshots by token id and fires
// opened/closed callbacks; the first successful poll only establishes a
// baseline.
package mirror

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/bus"
	"github.com/edgefeed/signal-engine/internal/fetch"
	"github.com/edgefeed/signal-engine/internal/portfolio"
	"github.com/edgefeed/signal-engine/pkg/config"
	"github.com/edgefeed/signal-engine/pkg/types"
)

const (
	// rateLimitPause is the per-address cooldown after an HTTP 429.
	rateLimitPause = 60 * time.Second
	// staleAfter is the consecutive non-429 failure count that marks an
	// address stale.
	staleAfter = 5
	// maxJitter is added to each address's next due time.
	maxJitter = 5 * time.Second

	schedulerTick = 1 * time.Second
)

// PositionCallback receives one changed position for a watched address.
type PositionCallback func(address, nickname string, pos types.DataPosition)

// MonitorConfig holds address monitor configuration.
type MonitorConfig struct {
	Logger       *zap.Logger
	Fetcher      *fetch.Client
	Bus          *bus.Bus
	DataAPIURL   string
	PollInterval time.Duration
	// RosterPath is the JSON file the roster is persisted to.
	RosterPath string
	// Watched seeds the roster; persisted entries take precedence.
	Watched  []config.WatchedAddress
	OnOpened PositionCallback
	OnClosed PositionCallback
}

// Monitor polls watched addresses and emits position-change callbacks.
type Monitor struct {
	cfg    MonitorConfig
	logger *zap.Logger

	mu        sync.Mutex
	addresses map[string]*watchedAddress

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

var _ portfolio.StatsSink = (*Monitor)(nil)

// NewMonitor creates an address monitor, loading any persisted roster and
// merging in the configured seed addresses.
func NewMonitor(cfg *MonitorConfig) (*Monitor, error) {
	m := &Monitor{
		cfg:       *cfg,
		logger:    cfg.Logger,
		addresses: make(map[string]*watchedAddress),
	}

	entries, err := loadRoster(cfg.RosterPath)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		m.addresses[e.Address] = &watchedAddress{
			Address:  e.Address,
			Nickname: e.Nickname,
			Enabled:  e.Enabled,
			health:   HealthNew,
		}
	}

	for _, w := range cfg.Watched {
		addr, err := normalizeAddress(w.Address)
		if err != nil {
			m.logger.Warn("skipping-invalid-watched-address",
				zap.String("address", w.Address), zap.Error(err))
			continue
		}
		if _, ok := m.addresses[addr]; ok {
			continue
		}
		m.addresses[addr] = &watchedAddress{
			Address:  addr,
			Nickname: w.Nickname,
			Enabled:  true,
			health:   HealthNew,
		}
	}

	AddressesWatched.Set(float64(len(m.addresses)))

	return m, nil
}

// Start runs the 1s scheduler until the context is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.logger.Info("address-monitor-starting",
		zap.Int("addresses", m.addressCount()),
		zap.Duration("poll-interval", m.cfg.PollInterval))
	m.emitAddresses()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(schedulerTick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.pollDue(ctx)
			}
		}
	}()
}

// Close stops the scheduler and waits for an in-flight poll to finish.
func (m *Monitor) Close() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("address-monitor-stopped")
}

// AddAddress adds or renames a watched address and persists the roster.
func (m *Monitor) AddAddress(address, nickname string) error {
	addr, err := normalizeAddress(address)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if wa, ok := m.addresses[addr]; ok {
		wa.Nickname = nickname
		wa.Enabled = true
	} else {
		m.addresses[addr] = &watchedAddress{
			Address:  addr,
			Nickname: nickname,
			Enabled:  true,
			health:   HealthNew,
		}
	}
	AddressesWatched.Set(float64(len(m.addresses)))
	m.mu.Unlock()

	m.logger.Info("address-added", zap.String("address", addr), zap.String("nickname", nickname))
	m.persistRoster()
	m.emitAddresses()

	return nil
}

// RemoveAddress drops a watched address and persists the roster.
func (m *Monitor) RemoveAddress(address string) error {
	addr, err := normalizeAddress(address)
	if err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.addresses, addr)
	AddressesWatched.Set(float64(len(m.addresses)))
	m.mu.Unlock()

	m.logger.Info("address-removed", zap.String("address", addr))
	m.persistRoster()
	m.emitAddresses()

	return nil
}

// SetEnabled toggles polling for an address and persists the roster.
func (m *Monitor) SetEnabled(address string, enabled bool) error {
	addr, err := normalizeAddress(address)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if wa, ok := m.addresses[addr]; ok {
		wa.Enabled = enabled
	}
	m.mu.Unlock()

	m.persistRoster()
	m.emitAddresses()

	return nil
}

// Addresses returns a snapshot of the roster, sorted by address.
func (m *Monitor) Addresses() []AddressView {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]AddressView, 0, len(m.addresses))
	for _, wa := range m.addresses {
		out = append(out, wa.view())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })

	return out
}

// TradeMirrored records an open mirrored from an address.
func (m *Monitor) TradeMirrored(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if wa, ok := m.addresses[address]; ok {
		wa.stats.TradesMirrored++
	}
}

// TradeClosed records a close result for an address.
func (m *Monitor) TradeClosed(address string, result portfolio.Result, pnlUSDC float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wa, ok := m.addresses[address]
	if !ok {
		return
	}

	switch result {
	case portfolio.Win:
		wa.stats.Wins++
	case portfolio.Loss:
		wa.stats.Losses++
	}
	wa.stats.TotalPnLUSDC += pnlUSDC
}

// pollDue polls every enabled address whose due time has passed. Polls run
// sequentially so no address is ever polled concurrently with itself.
func (m *Monitor) pollDue(ctx context.Context) {
	now := time.Now()

	m.mu.Lock()
	due := make([]*watchedAddress, 0)
	for _, wa := range m.addresses {
		if wa.Enabled && now.After(wa.nextDue) && now.After(wa.pausedUntil) {
			due = append(due, wa)
		}
	}
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].Address < due[j].Address })

	for _, wa := range due {
		if ctx.Err() != nil {
			return
		}
		m.poll(ctx, wa)
	}
}

// poll fetches one address's positions and diffs against the previous
// snapshot. The first successful poll sets the baseline and fires no
// callbacks.
func (m *Monitor) poll(ctx context.Context, wa *watchedAddress) {
	start := time.Now()

	m.mu.Lock()
	if wa.health == HealthNew {
		wa.health = HealthInitializing
		m.emitStatusLocked(wa)
	}
	address, nickname := wa.Address, wa.Nickname
	m.mu.Unlock()

	resp, err := m.cfg.Fetcher.Get(ctx, m.cfg.DataAPIURL+"/positions", map[string]string{
		"user":          address,
		"sizeThreshold": "0.01",
		"redeemable":    "false",
		"limit":         "500",
	}, nil)
	if err != nil {
		m.handlePollError(wa, err)
		return
	}

	positions, err := types.DecodePositions(resp.Body)
	if err != nil {
		m.handlePollError(wa, err)
		return
	}

	current := make(map[string]types.DataPosition, len(positions))
	for _, pos := range positions {
		if pos.Asset == "" {
			continue
		}
		current[pos.Asset] = pos
	}

	var opened []types.DataPosition
	var closed []types.DataPosition

	m.mu.Lock()
	recovered := wa.consecutiveFailures > 0 || wa.health == HealthRateLimited || wa.health == HealthStale
	wa.consecutiveFailures = 0
	wa.health = HealthHealthy

	if !wa.baselined {
		wa.baselined = true
		m.logger.Info("address-baseline-established",
			zap.String("nickname", nickname),
			zap.Int("positions", len(current)))
	} else {
		for _, pos := range positions {
			if pos.Asset == "" {
				continue
			}
			if _, known := wa.positions[pos.Asset]; !known {
				opened = append(opened, pos)
			}
		}
		for asset, pos := range wa.positions {
			if _, still := current[asset]; !still {
				closed = append(closed, pos)
			}
		}
		sort.Slice(closed, func(i, j int) bool { return closed[i].Asset < closed[j].Asset })
	}

	wa.positions = current
	wa.lastPoll = time.Now()
	wa.nextDue = wa.lastPoll.Add(m.cfg.PollInterval + jitter())
	m.emitStatusLocked(wa)
	m.mu.Unlock()

	PollsTotal.WithLabelValues("ok").Inc()
	if recovered {
		m.publish("mirror_api_event", map[string]interface{}{
			"event":   "retry",
			"address": address,
		})
	}

	// Opens before closes; callback panics must not kill the monitor.
	for _, pos := range opened {
		CallbacksTotal.WithLabelValues("opened").Inc()
		m.safeCallback(m.cfg.OnOpened, address, nickname, pos)
	}
	for _, pos := range closed {
		CallbacksTotal.WithLabelValues("closed").Inc()
		m.safeCallback(m.cfg.OnClosed, address, nickname, pos)
	}

	m.publish("mirror_poll_debug", map[string]interface{}{
		"address":     address,
		"nickname":    nickname,
		"positions":   len(current),
		"opened":      len(opened),
		"closed":      len(closed),
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

func (m *Monitor) handlePollError(wa *watchedAddress, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if types.IsRateLimited(err) {
		wa.health = HealthRateLimited
		wa.pausedUntil = time.Now().Add(rateLimitPause)
		wa.nextDue = time.Now()
		m.emitStatusLocked(wa)

		PollsTotal.WithLabelValues("rate_limited").Inc()
		m.logger.Warn("address-poll-rate-limited",
			zap.String("nickname", wa.Nickname),
			zap.Duration("pause", rateLimitPause))
		m.publish("mirror_api_event", map[string]interface{}{
			"event":      "rate_limited",
			"address":    wa.Address,
			"retry_in_s": rateLimitPause.Seconds(),
		})
		return
	}

	wa.consecutiveFailures++
	if wa.consecutiveFailures >= staleAfter {
		wa.health = HealthStale
	}
	wa.nextDue = time.Now().Add(m.cfg.PollInterval + jitter())
	m.emitStatusLocked(wa)

	PollsTotal.WithLabelValues("error").Inc()
	m.logger.Warn("address-poll-failed",
		zap.String("nickname", wa.Nickname),
		zap.Int("consecutive-failures", wa.consecutiveFailures),
		zap.Error(err))
	m.publish("mirror_api_event", map[string]interface{}{
		"event":   "poll_error",
		"address": wa.Address,
		"detail":  err.Error(),
	})
}

func (m *Monitor) safeCallback(cb PositionCallback, address, nickname string, pos types.DataPosition) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("position-callback-panicked",
				zap.String("address", address),
				zap.Any("panic", r))
		}
	}()
	cb(address, nickname, pos)
}

func (m *Monitor) persistRoster() {
	m.mu.Lock()
	entries := make([]RosterEntry, 0, len(m.addresses))
	for _, wa := range m.addresses {
		entries = append(entries, RosterEntry{
			Address:  wa.Address,
			Nickname: wa.Nickname,
			Enabled:  wa.Enabled,
		})
	}
	m.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Address < entries[j].Address })

	if err := saveRoster(m.cfg.RosterPath, entries); err != nil {
		m.logger.Error("roster-persist-failed", zap.Error(err))
	}
}

func (m *Monitor) emitAddresses() {
	m.publish("mirror_addresses", map[string]interface{}{"addresses": m.Addresses()})
}

// emitStatusLocked publishes one address's status. Caller holds m.mu.
func (m *Monitor) emitStatusLocked(wa *watchedAddress) {
	m.publish("mirror_address_status", wa.view())
}

func (m *Monitor) publish(topic string, payload interface{}) {
	if m.cfg.Bus == nil {
		return
	}
	m.cfg.Bus.Publish(topic, payload)
}

func (m *Monitor) addressCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.addresses)
}

func jitter() time.Duration {
	return time.Duration(rand.Int63n(int64(maxJitter)))
}
