package mirror

import (
	"time"

	"github.com/edgefeed/signal-engine/pkg/types"
)

// Health is the per-address poll health state.
type Health string

const (
	HealthNew          Health = "new"
	HealthInitializing Health = "initializing"
	HealthHealthy      Health = "healthy"
	HealthRateLimited  Health = "rate_limited"
	HealthStale        Health = "stale"
)

// AddressStats accumulates mirrored-trade counters for one watched address.
type AddressStats struct {
	TradesMirrored int     `json:"trades_mirrored"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	TotalPnLUSDC   float64 `json:"total_pnl_usdc"`
}

// watchedAddress is the monitor's runtime state for one wallet. Mutated only
// by the address's own poll step and roster operations, under the monitor
// mutex.
type watchedAddress struct {
	Address  string
	Nickname string
	Enabled  bool

	health              Health
	baselined           bool
	positions           map[string]types.DataPosition // by asset (token id)
	consecutiveFailures int
	lastPoll            time.Time
	nextDue             time.Time
	pausedUntil         time.Time
	stats               AddressStats
}

// AddressView is the wire shape for roster events and state snapshots.
type AddressView struct {
	Address             string  `json:"address"`
	Nickname            string  `json:"nickname"`
	Enabled             bool    `json:"enabled"`
	Health              Health  `json:"health"`
	Positions           int     `json:"positions"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	TradesMirrored      int     `json:"trades_mirrored"`
	Wins                int     `json:"wins"`
	Losses              int     `json:"losses"`
	TotalPnLUSDC        float64 `json:"total_pnl_usdc"`
}

func (wa *watchedAddress) view() AddressView {
	return AddressView{
		Address:             wa.Address,
		Nickname:            wa.Nickname,
		Enabled:             wa.Enabled,
		Health:              wa.health,
		Positions:           len(wa.positions),
		ConsecutiveFailures: wa.consecutiveFailures,
		TradesMirrored:      wa.stats.TradesMirrored,
		Wins:                wa.stats.Wins,
		Losses:              wa.stats.Losses,
		TotalPnLUSDC:        wa.stats.TotalPnLUSDC,
	}
}
