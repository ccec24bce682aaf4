package storage

import (
	"context"
	"database/sql"
	"fmt"

	json "github.com/goccy/go-json"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/arb"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// StoreOpportunity inserts a confirmed opportunity. The full payload also
// lands in a jsonb column so schema changes don't lose fields.
func (p *PostgresStorage) StoreOpportunity(ctx context.Context, opp *arb.Opportunity) error {
	details, err := json.Marshal(opp)
	if err != nil {
		return fmt.Errorf("marshal opportunity: %w", err)
	}

	query := `
		INSERT INTO signal_opportunities (
			id, market_id, question, yes_token_id, no_token_id,
			yes_ask, no_ask, combined_pct, expected_profit_pct,
			shares, yes_cost_usdc, no_cost_usdc, estimated_profit_usdc,
			detected_at, details
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`

	_, err = p.db.ExecContext(ctx, query,
		opp.ID,
		opp.MarketID,
		opp.Question,
		opp.YesTokenID,
		opp.NoTokenID,
		opp.YesAsk,
		opp.NoAsk,
		opp.CombinedPct,
		opp.ExpectedProfitPct,
		opp.Shares,
		opp.YesCostUSDC,
		opp.NoCostUSDC,
		opp.EstimatedProfitUSD,
		opp.DetectedAt,
		details,
	)

	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}

	p.logger.Debug("opportunity-stored",
		zap.String("opportunity-id", opp.ID),
		zap.String("market-id", opp.MarketID))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
