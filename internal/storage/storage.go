package storage

import (
	"context"

	"github.com/edgefeed/signal-engine/internal/arb"
)

// Storage records confirmed arbitrage opportunities.
type Storage interface {
	// StoreOpportunity persists a confirmed opportunity.
	StoreOpportunity(ctx context.Context, opp *arb.Opportunity) error

	// Close closes the storage backend.
	Close() error
}
