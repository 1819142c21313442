package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("record not found")

// StrategyRecordRow is the latest serialized record for a symbol.
type StrategyRecordRow struct {
	Symbol    string
	Record    string
	UpdatedAt time.Time
}

// OptimizationRun is one timestamped optimizer result.
type OptimizationRun struct {
	ID        string
	Symbol    string
	Method    string
	Fitness   float64
	Record    string
	CreatedAt time.Time
}

// LiveSignal is a signal forwarded by a live trader.
type LiveSignal struct {
	ID       int64
	Symbol   string
	Account  string
	Action   string
	Price    float64
	Quantity float64
	Reason   string
	Time     time.Time
}

// UpsertStrategyRecord stores the latest record for a symbol.
func (d *Database) UpsertStrategyRecord(ctx context.Context, symbol, record string) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO strategy_records (symbol, record, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			record = excluded.record,
			updated_at = excluded.updated_at
	`, symbol, record, nowUTC())
	return err
}

// GetStrategyRecord loads the record for symbol.
func (d *Database) GetStrategyRecord(ctx context.Context, symbol string) (*StrategyRecordRow, error) {
	var r StrategyRecordRow
	err := d.DB.QueryRowContext(ctx, `
		SELECT symbol, record, updated_at FROM strategy_records WHERE symbol = ?
	`, symbol).Scan(&r.Symbol, &r.Record, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query strategy record: %w", err)
	}
	return &r, nil
}

// ListStrategyRecords returns every stored record ordered by symbol.
func (d *Database) ListStrategyRecords(ctx context.Context) ([]StrategyRecordRow, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT symbol, record, updated_at FROM strategy_records ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query strategy records: %w", err)
	}
	defer rows.Close()

	var res []StrategyRecordRow
	for rows.Next() {
		var r StrategyRecordRow
		if err := rows.Scan(&r.Symbol, &r.Record, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan strategy record: %w", err)
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// DeleteStrategyRecord removes the record for symbol.
func (d *Database) DeleteStrategyRecord(ctx context.Context, symbol string) error {
	res, err := d.DB.ExecContext(ctx, `DELETE FROM strategy_records WHERE symbol = ?`, symbol)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertOptimizationRun appends a run to the history.
func (d *Database) InsertOptimizationRun(ctx context.Context, r OptimizationRun) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = nowUTC()
	}
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO optimization_runs (id, symbol, method, fitness, record, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.Symbol, r.Method, r.Fitness, r.Record, r.CreatedAt)
	return err
}

// ListOptimizationRuns returns the newest runs for symbol first.
func (d *Database) ListOptimizationRuns(ctx context.Context, symbol string, limit int) ([]OptimizationRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, symbol, method, COALESCE(fitness, 0), record, created_at
		FROM optimization_runs
		WHERE symbol = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query optimization runs: %w", err)
	}
	defer rows.Close()

	var res []OptimizationRun
	for rows.Next() {
		var r OptimizationRun
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Method, &r.Fitness, &r.Record, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan optimization run: %w", err)
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// InsertLiveSignal records a forwarded live signal.
func (d *Database) InsertLiveSignal(ctx context.Context, s LiveSignal) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO live_signals (symbol, account, action, price, quantity, reason, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.Symbol, s.Account, s.Action, s.Price, s.Quantity, s.Reason, s.Time.UTC())
	return err
}

// InsertLiveSignals records a batch of live signals in one transaction.
func (d *Database) InsertLiveSignals(ctx context.Context, signals []LiveSignal) error {
	if len(signals) == 0 {
		return nil
	}
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin live signal batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO live_signals (symbol, account, action, price, quantity, reason, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare live signal batch: %w", err)
	}
	defer stmt.Close()

	for _, s := range signals {
		if _, err := stmt.ExecContext(ctx, s.Symbol, s.Account, s.Action, s.Price, s.Quantity, s.Reason, s.Time.UTC()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert live signal: %w", err)
		}
	}
	return tx.Commit()
}

// ListLiveSignals returns the newest signals for symbol and account first.
func (d *Database) ListLiveSignals(ctx context.Context, symbol, account string, limit int) ([]LiveSignal, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, symbol, account, action, price, COALESCE(quantity, 0), COALESCE(reason, ''), ts
		FROM live_signals
		WHERE symbol = ? AND account = ?
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`, symbol, account, limit)
	if err != nil {
		return nil, fmt.Errorf("query live signals: %w", err)
	}
	defer rows.Close()

	var res []LiveSignal
	for rows.Next() {
		var s LiveSignal
		if err := rows.Scan(&s.ID, &s.Symbol, &s.Account, &s.Action, &s.Price, &s.Quantity, &s.Reason, &s.Time); err != nil {
			return nil, fmt.Errorf("scan live signal: %w", err)
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
