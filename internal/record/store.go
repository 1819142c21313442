package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"strategy-lab/pkg/db"
)

// ErrNotFound is returned when no record exists for an instrument.
var ErrNotFound = errors.New("strategy record not found")

// Run is one archived optimization result.
type Run struct {
	ID        string         `json:"id"`
	Method    string         `json:"method"`
	Record    StrategyRecord `json:"record"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store persists strategy records as JSON flat records in SQLite.
type Store struct {
	db *db.Database
}

// NewStore wraps an opened database.
func NewStore(database *db.Database) *Store {
	return &Store{db: database}
}

// Save replaces the latest record for r.Instrument.
func (s *Store) Save(ctx context.Context, r StrategyRecord) error {
	data, err := EncodeJSON(r)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", r.Instrument, err)
	}
	return s.db.UpsertStrategyRecord(ctx, r.Instrument, string(data))
}

// Archive appends r to the run history and returns the run ID.
func (s *Store) Archive(ctx context.Context, r StrategyRecord) (string, error) {
	data, err := EncodeJSON(r)
	if err != nil {
		return "", fmt.Errorf("encode record %s: %w", r.Instrument, err)
	}
	id := uuid.NewString()
	err = s.db.InsertOptimizationRun(ctx, db.OptimizationRun{
		ID:        id,
		Symbol:    r.Instrument,
		Method:    r.Optimized.Method,
		Fitness:   r.Optimized.Fitness,
		Record:    string(data),
		CreatedAt: r.LastRetrain,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Get loads the latest record for instrument.
func (s *Store) Get(ctx context.Context, instrument string) (StrategyRecord, error) {
	row, err := s.db.GetStrategyRecord(ctx, instrument)
	if errors.Is(err, db.ErrNotFound) {
		return StrategyRecord{}, fmt.Errorf("%w: %s", ErrNotFound, instrument)
	}
	if err != nil {
		return StrategyRecord{}, err
	}
	return DecodeJSON([]byte(row.Record))
}

// List returns every stored record. Rows that fail to decode are skipped and
// reported in the returned error.
func (s *Store) List(ctx context.Context) ([]StrategyRecord, error) {
	rows, err := s.db.ListStrategyRecords(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]StrategyRecord, 0, len(rows))
	var errs []error
	for _, row := range rows {
		r, err := DecodeJSON([]byte(row.Record))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", row.Symbol, err))
			continue
		}
		out = append(out, r)
	}
	return out, errors.Join(errs...)
}

// Delete removes the latest record for instrument. Run history is kept.
func (s *Store) Delete(ctx context.Context, instrument string) error {
	err := s.db.DeleteStrategyRecord(ctx, instrument)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, instrument)
	}
	return err
}

// Runs returns archived runs for instrument, newest first.
func (s *Store) Runs(ctx context.Context, instrument string, limit int) ([]Run, error) {
	rows, err := s.db.ListOptimizationRuns(ctx, instrument, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Run, 0, len(rows))
	for _, row := range rows {
		r, err := DecodeJSON([]byte(row.Record))
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", row.ID, err)
		}
		out = append(out, Run{ID: row.ID, Method: row.Method, Record: r, CreatedAt: row.CreatedAt})
	}
	return out, nil
}
