package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"PolyLedger/internal/replay"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ResolutionStore keeps the known resolution state and last marks per
// market. Rows are written by whatever market-data poller feeds the
// system; replay only reads them.
type ResolutionStore struct {
	db *sql.DB
}

func NewResolutionStore(db *sql.DB) *ResolutionStore {
	return &ResolutionStore{db: db}
}

// Upsert records the current resolution state for a market.
func (s *ResolutionStore) Upsert(ctx context.Context, marketID string, resolved bool, winningOutcome string, marks map[string]decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO market_resolutions (market_id, resolved, winning_outcome, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (market_id) DO UPDATE
		SET resolved = EXCLUDED.resolved,
		    winning_outcome = EXCLUDED.winning_outcome,
		    updated_at = NOW()`,
		marketID, resolved, winningOutcome)
	if err != nil {
		return fmt.Errorf("upsert resolution: %w", err)
	}
	for outcome, mark := range marks {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO market_marks (market_id, outcome, mark_price, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (market_id, outcome) DO UPDATE
			SET mark_price = EXCLUDED.mark_price, updated_at = NOW()`,
			marketID, outcome, mark.String())
		if err != nil {
			return fmt.Errorf("upsert mark: %w", err)
		}
	}
	return nil
}

// LoadOracle materializes an in-memory oracle for one replay pass over
// the given markets. Passing nil loads every known market.
func (s *ResolutionStore) LoadOracle(ctx context.Context, marketIDs []string) (replay.StaticOracle, error) {
	oracle := make(replay.StaticOracle)

	query := `SELECT market_id, resolved, COALESCE(winning_outcome, '') FROM market_resolutions`
	var args []interface{}
	if marketIDs != nil {
		query += ` WHERE market_id = ANY($1)`
		args = append(args, pq.Array(marketIDs))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load resolutions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id  string
			res replay.Resolution
		)
		if err := rows.Scan(&id, &res.Resolved, &res.WinningOutcome); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		oracle[id] = res
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	mquery := `SELECT market_id, outcome, mark_price FROM market_marks`
	var margs []interface{}
	if marketIDs != nil {
		mquery += ` WHERE market_id = ANY($1)`
		margs = append(margs, pq.Array(marketIDs))
	}
	mrows, err := s.db.QueryContext(ctx, mquery, margs...)
	if err != nil {
		return nil, fmt.Errorf("load marks: %w", err)
	}
	defer mrows.Close()
	for mrows.Next() {
		var id, outcome, mark string
		if err := mrows.Scan(&id, &outcome, &mark); err != nil {
			return nil, fmt.Errorf("scan mark: %w", err)
		}
		res := oracle[id]
		if res.Marks == nil {
			res.Marks = make(map[string]decimal.Decimal)
		}
		res.Marks[outcome] = mustDecimal(mark)
		oracle[id] = res
	}
	if err := mrows.Err(); err != nil {
		return nil, err
	}

	return oracle, nil
}
