package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/arb"
)

func testOpportunity() *arb.Opportunity {
	return &arb.Opportunity{
		ID:                 "deadbeef",
		MarketID:           "0xcondition",
		Question:           "Will it rain tomorrow?",
		YesTokenID:         "tok-yes",
		NoTokenID:          "tok-no",
		YesAsk:             0.48,
		NoAsk:              0.49,
		CombinedPct:        97.0,
		ExpectedProfitPct:  3.09,
		Shares:             100,
		YesCostUSDC:        48,
		NoCostUSDC:         49,
		EstimatedProfitUSD: 3,
		DetectedAt:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestConsoleStorage_StoreOpportunity(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	store := NewConsoleStorage(logger)

	opp := testOpportunity()

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := store.StoreOpportunity(context.Background(), opp)

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	io.Copy(&buf, r)
	output := buf.String()

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if !bytes.Contains([]byte(output), []byte("ARBITRAGE OPPORTUNITY DETECTED")) {
		t.Error("expected output to contain 'ARBITRAGE OPPORTUNITY DETECTED'")
	}
	if !bytes.Contains([]byte(output), []byte(opp.Question)) {
		t.Errorf("expected output to contain question %s", opp.Question)
	}
	if !bytes.Contains([]byte(output), []byte(opp.MarketID)) {
		t.Errorf("expected output to contain market id %s", opp.MarketID)
	}
}

func TestConsoleStorage_Close(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	store := NewConsoleStorage(logger)

	if err := store.Close(); err != nil {
		t.Errorf("expected no error on close, got %v", err)
	}
}

func TestPostgresStorage_StoreOpportunity(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	store := &PostgresStorage{db: db, logger: logger}
	opp := testOpportunity()

	mock.ExpectExec("INSERT INTO signal_opportunities").
		WithArgs(
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
			sqlmock.AnyArg(), // detected_at
			sqlmock.AnyArg(), // details jsonb
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.StoreOpportunity(context.Background(), opp); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorage_StoreOpportunity_Error(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	store := &PostgresStorage{db: db, logger: logger}

	mock.ExpectExec("INSERT INTO signal_opportunities").
		WillReturnError(sqlmock.ErrCancelled)

	if err := store.StoreOpportunity(context.Background(), testOpportunity()); err == nil {
		t.Error("expected error, got nil")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorage_Close(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	store := &PostgresStorage{db: db, logger: logger}

	mock.ExpectClose()

	if err := store.Close(); err != nil {
		t.Errorf("expected no error on close, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestStorage_Interface(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	var _ Storage = NewConsoleStorage(logger)

	db, _, _ := sqlmock.New()
	defer db.Close()

	var _ Storage = &PostgresStorage{db: db, logger: logger}
}
