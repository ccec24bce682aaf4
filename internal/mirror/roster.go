package mirror

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	json "github.com/goccy/go-json"
)

// RosterEntry is the persisted form of a watched address.
type RosterEntry struct {
	Address  string `json:"address"`
	Nickname string `json:"nickname"`
	Enabled  bool   `json:"enabled"`
}

// normalizeAddress validates and lowercases a wallet address.
func normalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid address %q", address)
	}
	return strings.ToLower(address), nil
}

// loadRoster reads the persisted roster. A missing file is not an error.
func loadRoster(path string) ([]RosterEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}

	var entries []RosterEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode roster %s: %w", path, err)
	}

	for i := range entries {
		entries[i].Address = strings.ToLower(entries[i].Address)
	}

	return entries, nil
}

// saveRoster writes the roster atomically via a temp file.
func saveRoster(path string, entries []RosterEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create roster dir: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode roster: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write roster: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace roster: %w", err)
	}

	return nil
}
