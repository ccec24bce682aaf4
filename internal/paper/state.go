package paper

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// State is the persisted virtual account.
type State struct {
	BalanceUSDC       float64 `json:"balance_usdc"`
	TotalProfitUSDC   float64 `json:"total_profit_usdc"`
	TradesExecuted    int     `json:"trades_executed"`
	TradesAborted     int     `json:"trades_aborted"`
	OpportunitiesSeen int     `json:"opportunities_seen"`
}

// loadState reads the state file, falling back to a fresh account when it
// does not exist. resumed reports whether a file was found.
func loadState(path string, startingBalance float64) (State, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{BalanceUSDC: startingBalance}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, false, err
	}

	return state, true, nil
}

// saveState rewrites the state file via temp-file rename. Disk failures are
// logged and do not roll back in-memory state; updates are at-least-once.
func (t *Trader) saveState() {
	data, err := json.MarshalIndent(t.state, "", "  ")
	if err != nil {
		t.logger.Error("paper-state-marshal-failed", zap.Error(err))
		return
	}

	if err := os.MkdirAll(filepath.Dir(t.cfg.StatePath), 0o755); err != nil {
		t.logger.Error("paper-state-dir-failed", zap.Error(err))
		return
	}

	tmp := t.cfg.StatePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		t.logger.Error("paper-state-write-failed", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, t.cfg.StatePath); err != nil {
		t.logger.Error("paper-state-rename-failed", zap.Error(err))
	}
}
