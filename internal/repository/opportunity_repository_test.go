package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"arbscan/internal/models"
)

// ============================================================
// OpportunityRepository Tests
// ============================================================

func TestNewOpportunityRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewOpportunityRepository(db)
	if repo == nil {
		t.Fatal("NewOpportunityRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestOpportunityRepositorySaveCycle(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name        string
		opp         *models.CycleOpportunity
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "success",
			opp: &models.CycleOpportunity{
				ScanID: "scan-1",
				Venue:  "binance",
				Cycle:  []string{"BTC", "ETH", "USDT", "BTC"},
				Profit: 1.015,
				Ledger: []models.TradeLeg{
					{Market: "ETH/BTC", Venue: "binance", Side: models.SideBuy, Rate: 0.05, Fee: 0.001},
				},
				CreatedAt: now,
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO cycle_opportunities`).
					WithArgs("scan-1", "binance", sqlmock.AnyArg(), 1.015, float64(0), sqlmock.AnyArg(), now).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
			},
			expectError: false,
		},
		{
			name: "database error",
			opp: &models.CycleOpportunity{
				ScanID: "scan-1",
				Venue:  "kraken",
				Cycle:  []string{"BTC", "ETH", "BTC"},
				Profit: 1.002,
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO cycle_opportunities`).
					WithArgs("scan-1", "kraken", sqlmock.AnyArg(), 1.002, float64(0), sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnError(errors.New("database error"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewOpportunityRepository(db)
			err = repo.SaveCycle(context.Background(), tt.opp)

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if tt.opp.ID != 7 {
					t.Errorf("expected ID=7, got %d", tt.opp.ID)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestOpportunityRepositoryGetCycleByID(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name        string
		id          int
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name: "found",
			id:   3,
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "scan_id", "venue", "cycle", "profit", "max_volume", "ledger", "created_at"}).
					AddRow(3, "scan-9", "okx", []byte(`["BTC","ETH","BTC"]`), 1.01, 0.5,
						[]byte(`[{"market":"ETH/BTC","venue":"okx","side":"SELL","rate":0.05,"fee":0.001}]`), now)
				mock.ExpectQuery(`SELECT (.+) FROM cycle_opportunities`).
					WithArgs(3).
					WillReturnRows(rows)
			},
		},
		{
			name: "not found",
			id:   99,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM cycle_opportunities`).
					WithArgs(99).
					WillReturnRows(sqlmock.NewRows([]string{"id", "scan_id", "venue", "cycle", "profit", "max_volume", "ledger", "created_at"}))
			},
			expectError: ErrOpportunityNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewOpportunityRepository(db)
			opp, err := repo.GetCycleByID(context.Background(), tt.id)

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected %v, got %v", tt.expectError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if opp.Venue != "okx" {
				t.Errorf("venue = %s, want okx", opp.Venue)
			}
			if len(opp.Cycle) != 3 || opp.Cycle[0] != "BTC" {
				t.Errorf("cycle = %v", opp.Cycle)
			}
			if len(opp.Ledger) != 1 || opp.Ledger[0].Side != models.SideSell {
				t.Errorf("ledger = %v", opp.Ledger)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestOpportunityRepositoryGetRecentCycles(t *testing.T) {
	now := time.Now().UTC()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "scan_id", "venue", "cycle", "profit", "max_volume", "ledger", "created_at"}).
		AddRow(2, "scan-2", "binance", []byte(`["BTC","ETH","USDT","BTC"]`), 1.02, float64(0), []byte(`[]`), now).
		AddRow(1, "scan-1", "kraken", []byte(`["BTC","XRP","BTC"]`), 1.005, float64(0), nil, now.Add(-time.Minute))
	mock.ExpectQuery(`SELECT (.+) FROM cycle_opportunities`).
		WithArgs(10).
		WillReturnRows(rows)

	repo := NewOpportunityRepository(db)
	opps, err := repo.GetRecentCycles(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(opps) != 2 {
		t.Fatalf("got %d cycles, want 2", len(opps))
	}
	if opps[0].ID != 2 || opps[1].Venue != "kraken" {
		t.Errorf("unexpected order: %+v", opps)
	}
	if len(opps[1].Cycle) != 3 {
		t.Errorf("cycle = %v", opps[1].Cycle)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestOpportunityRepositorySaveSpread(t *testing.T) {
	now := time.Now().UTC()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	opp := &models.SpreadOpportunity{
		ScanID:     "scan-5",
		Symbol:     "BTC/USDT",
		HighestBid: models.Quote{Venue: "kraken", Price: 50100, Volume: 0.4},
		LowestAsk:  models.Quote{Venue: "binance", Price: 50000, Volume: 1.1},
		Timestamp:  now,
		CreatedAt:  now,
	}

	mock.ExpectQuery(`INSERT INTO spread_opportunities`).
		WithArgs("scan-5", "BTC/USDT", "kraken", 50100.0, 0.4, "binance", 50000.0, 1.1, now, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	repo := NewOpportunityRepository(db)
	if err := repo.SaveSpread(context.Background(), opp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opp.ID != 11 {
		t.Errorf("expected ID=11, got %d", opp.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestOpportunityRepositoryGetSpreadsBySymbol(t *testing.T) {
	now := time.Now().UTC()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "scan_id", "symbol", "bid_venue", "bid_price", "bid_volume", "ask_venue", "ask_price", "ask_volume", "ts", "created_at"}).
		AddRow(4, "scan-5", "BTC/USDT", "kraken", 50100.0, 0.4, "binance", 50000.0, 1.1, now, now)
	mock.ExpectQuery(`SELECT (.+) FROM spread_opportunities`).
		WithArgs("BTC/USDT", 5).
		WillReturnRows(rows)

	repo := NewOpportunityRepository(db)
	opps, err := repo.GetSpreadsBySymbol(context.Background(), "BTC/USDT", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(opps) != 1 {
		t.Fatalf("got %d spreads, want 1", len(opps))
	}
	if opps[0].HighestBid.Venue != "kraken" || opps[0].LowestAsk.Price != 50000 {
		t.Errorf("unexpected spread: %+v", opps[0])
	}
	if !opps[0].Valuable() {
		t.Error("stored spread must stay valuable after scan")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestOpportunityRepositoryPruneBefore(t *testing.T) {
	cutoff := time.Now().UTC().Add(-24 * time.Hour)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM cycle_opportunities`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectExec(`DELETE FROM spread_opportunities`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	repo := NewOpportunityRepository(db)
	removed, err := repo.PruneBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 15 {
		t.Errorf("removed = %d, want 15", removed)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestOpportunityRepositoryCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM cycle_opportunities`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM spread_opportunities`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(8))

	repo := NewOpportunityRepository(db)

	cycles, err := repo.CountCycles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cycles != 42 {
		t.Errorf("cycles = %d, want 42", cycles)
	}

	spreads, err := repo.CountSpreads(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spreads != 8 {
		t.Errorf("spreads = %d, want 8", spreads)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
