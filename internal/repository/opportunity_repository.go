package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"

	"arbscan/internal/models"
)

var repoJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Ошибки репозитория возможностей
var (
	ErrOpportunityNotFound = errors.New("opportunity not found")
)

// OpportunityRepository - работа с таблицами cycle_opportunities
// и spread_opportunities
//
// Цикл и леджер хранятся jsonb-колонками: состав цикла меняется от
// скана к скану и реляционной схеме не поддаётся.
type OpportunityRepository struct {
	db *sql.DB
}

// NewOpportunityRepository создает новый экземпляр репозитория
func NewOpportunityRepository(db *sql.DB) *OpportunityRepository {
	return &OpportunityRepository{db: db}
}

// ============================================================
// Циклы
// ============================================================

// SaveCycle сохраняет найденный цикл
func (r *OpportunityRepository) SaveCycle(ctx context.Context, opp *models.CycleOpportunity) error {
	query := `
		INSERT INTO cycle_opportunities (scan_id, venue, cycle, profit, max_volume, ledger, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	cycle, err := repoJSON.Marshal(opp.Cycle)
	if err != nil {
		return err
	}
	ledger, err := repoJSON.Marshal(opp.Ledger)
	if err != nil {
		return err
	}

	if opp.CreatedAt.IsZero() {
		opp.CreatedAt = time.Now().UTC()
	}

	return r.db.QueryRowContext(
		ctx,
		query,
		opp.ScanID,
		opp.Venue,
		cycle,
		opp.Profit,
		opp.MaxVolume,
		ledger,
		opp.CreatedAt,
	).Scan(&opp.ID)
}

// GetCycleByID возвращает цикл по ID
func (r *OpportunityRepository) GetCycleByID(ctx context.Context, id int) (*models.CycleOpportunity, error) {
	query := `
		SELECT id, scan_id, venue, cycle, profit, max_volume, ledger, created_at
		FROM cycle_opportunities
		WHERE id = $1`

	opp, err := scanCycle(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOpportunityNotFound
		}
		return nil, err
	}

	return opp, nil
}

// GetRecentCycles возвращает последние N циклов
func (r *OpportunityRepository) GetRecentCycles(ctx context.Context, limit int) ([]*models.CycleOpportunity, error) {
	query := `
		SELECT id, scan_id, venue, cycle, profit, max_volume, ledger, created_at
		FROM cycle_opportunities
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectCycles(rows)
}

// GetCyclesByVenue возвращает циклы конкретной биржи
func (r *OpportunityRepository) GetCyclesByVenue(ctx context.Context, venue string, limit int) ([]*models.CycleOpportunity, error) {
	query := `
		SELECT id, scan_id, venue, cycle, profit, max_volume, ledger, created_at
		FROM cycle_opportunities
		WHERE venue = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, venue, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectCycles(rows)
}

// GetTopCycles возвращает самые прибыльные циклы за период
func (r *OpportunityRepository) GetTopCycles(ctx context.Context, since time.Time, limit int) ([]*models.CycleOpportunity, error) {
	query := `
		SELECT id, scan_id, venue, cycle, profit, max_volume, ledger, created_at
		FROM cycle_opportunities
		WHERE created_at >= $1
		ORDER BY profit DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectCycles(rows)
}

// CountCycles возвращает общее количество сохраненных циклов
func (r *OpportunityRepository) CountCycles(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM cycle_opportunities`

	var count int
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// ============================================================
// Спреды
// ============================================================

// SaveSpread сохраняет межбиржевой спред
func (r *OpportunityRepository) SaveSpread(ctx context.Context, opp *models.SpreadOpportunity) error {
	query := `
		INSERT INTO spread_opportunities (scan_id, symbol, bid_venue, bid_price, bid_volume, ask_venue, ask_price, ask_volume, ts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	if opp.CreatedAt.IsZero() {
		opp.CreatedAt = time.Now().UTC()
	}

	return r.db.QueryRowContext(
		ctx,
		query,
		opp.ScanID,
		opp.Symbol,
		opp.HighestBid.Venue,
		opp.HighestBid.Price,
		opp.HighestBid.Volume,
		opp.LowestAsk.Venue,
		opp.LowestAsk.Price,
		opp.LowestAsk.Volume,
		opp.Timestamp,
		opp.CreatedAt,
	).Scan(&opp.ID)
}

// GetRecentSpreads возвращает последние N спредов
func (r *OpportunityRepository) GetRecentSpreads(ctx context.Context, limit int) ([]*models.SpreadOpportunity, error) {
	query := `
		SELECT id, scan_id, symbol, bid_venue, bid_price, bid_volume, ask_venue, ask_price, ask_volume, ts, created_at
		FROM spread_opportunities
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSpreads(rows)
}

// GetSpreadsBySymbol возвращает спреды конкретного символа
func (r *OpportunityRepository) GetSpreadsBySymbol(ctx context.Context, symbol string, limit int) ([]*models.SpreadOpportunity, error) {
	query := `
		SELECT id, scan_id, symbol, bid_venue, bid_price, bid_volume, ask_venue, ask_price, ask_volume, ts, created_at
		FROM spread_opportunities
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSpreads(rows)
}

// CountSpreads возвращает общее количество сохраненных спредов
func (r *OpportunityRepository) CountSpreads(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM spread_opportunities`

	var count int
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// PruneBefore удаляет возможности старше указанной даты из обеих таблиц
func (r *OpportunityRepository) PruneBefore(ctx context.Context, timestamp time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cycle_opportunities WHERE created_at < $1`, timestamp)
	if err != nil {
		return 0, err
	}
	cycles, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	result, err = r.db.ExecContext(ctx, `DELETE FROM spread_opportunities WHERE created_at < $1`, timestamp)
	if err != nil {
		return cycles, err
	}
	spreads, err := result.RowsAffected()
	if err != nil {
		return cycles, err
	}

	return cycles + spreads, nil
}

// ============================================================
// Сканирование строк
// ============================================================

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCycle(row rowScanner) (*models.CycleOpportunity, error) {
	opp := &models.CycleOpportunity{}
	var cycle, ledger []byte

	err := row.Scan(
		&opp.ID,
		&opp.ScanID,
		&opp.Venue,
		&cycle,
		&opp.Profit,
		&opp.MaxVolume,
		&ledger,
		&opp.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := repoJSON.Unmarshal(cycle, &opp.Cycle); err != nil {
		return nil, err
	}
	if len(ledger) > 0 {
		if err := repoJSON.Unmarshal(ledger, &opp.Ledger); err != nil {
			return nil, err
		}
	}

	return opp, nil
}

func collectCycles(rows *sql.Rows) ([]*models.CycleOpportunity, error) {
	var opps []*models.CycleOpportunity
	for rows.Next() {
		opp, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		opps = append(opps, opp)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return opps, nil
}

func collectSpreads(rows *sql.Rows) ([]*models.SpreadOpportunity, error) {
	var opps []*models.SpreadOpportunity
	for rows.Next() {
		opp := &models.SpreadOpportunity{}
		err := rows.Scan(
			&opp.ID,
			&opp.ScanID,
			&opp.Symbol,
			&opp.HighestBid.Venue,
			&opp.HighestBid.Price,
			&opp.HighestBid.Volume,
			&opp.LowestAsk.Venue,
			&opp.LowestAsk.Price,
			&opp.LowestAsk.Volume,
			&opp.Timestamp,
			&opp.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		opps = append(opps, opp)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return opps, nil
}
