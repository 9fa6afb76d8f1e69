package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spidersync/ledgerlink/internal/model"
)

// SaveRawRecords inserts raw records, silently skipping natural keys already
// present. Re-importing overlapping date windows is therefore idempotent.
func (s *SQLiteStorage) SaveRawRecords(ctx context.Context, records []model.RawRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRawRecords(records); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO raw_records (
			natural_key, as_of_date, amount, direction,
			raw_description, source_tag, applied_flag
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, record := range records {
		if _, err := stmt.ExecContext(ctx,
			record.NaturalKey,
			record.AsOfDate,
			record.Amount.String(),
			string(record.Direction),
			record.RawDescription,
			record.SourceTag,
			record.AppliedFlag,
		); err != nil {
			return classifyErr(fmt.Errorf("failed to save record %s: %w", record.NaturalKey, err))
		}
	}

	return tx.Commit()
}

// GetPendingRecords returns the pending (flag 0) records for a source tag in
// ascending as-of date order. An empty source tag selects all sources.
// Records carrying other sentinel flag values are never selected, so
// source-specific exclusions stay excluded.
func (s *SQLiteStorage) GetPendingRecords(ctx context.Context, sourceTag string) ([]model.RawRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT natural_key, as_of_date, amount, direction,
		       raw_description, source_tag, applied_flag
		FROM raw_records
		WHERE applied_flag = ?`
	args := []any{model.FlagPending}

	if sourceTag != "" {
		query += ` AND source_tag = ?`
		args = append(args, sourceTag)
	}
	query += ` ORDER BY as_of_date ASC, natural_key ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyErr(fmt.Errorf("failed to query pending records: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var records []model.RawRecord
	for rows.Next() {
		record, err := scanRawRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// GetRawRecord returns one record by natural key, or nil when absent.
func (s *SQLiteStorage) GetRawRecord(ctx context.Context, naturalKey string) (*model.RawRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(naturalKey, "naturalKey"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT natural_key, as_of_date, amount, direction,
		       raw_description, source_tag, applied_flag
		FROM raw_records
		WHERE natural_key = ?
	`, naturalKey)

	record, err := scanRawRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarkApplied transitions a record's applied flag from pending to applied.
// The guard in the WHERE clause makes the transition one-way: applied records
// and sentinel-flagged records are never touched, so re-running over the same
// window is a no-op.
func (s *SQLiteStorage) MarkApplied(ctx context.Context, naturalKey string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(naturalKey, "naturalKey"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE raw_records
		SET applied_flag = ?
		WHERE natural_key = ? AND applied_flag = ?
	`, model.FlagApplied, naturalKey, model.FlagPending)
	if err != nil {
		return classifyErr(fmt.Errorf("failed to mark %s applied: %w", naturalKey, err))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRawRecord(row rowScanner) (model.RawRecord, error) {
	var (
		record    model.RawRecord
		asOfDate  time.Time
		amount    string
		direction string
	)
	if err := row.Scan(
		&record.NaturalKey,
		&asOfDate,
		&amount,
		&direction,
		&record.RawDescription,
		&record.SourceTag,
		&record.AppliedFlag,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RawRecord{}, err
		}
		return model.RawRecord{}, fmt.Errorf("failed to scan raw record: %w", err)
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return model.RawRecord{}, fmt.Errorf("record %s has malformed amount %q: %w", record.NaturalKey, amount, err)
	}
	record.AsOfDate = asOfDate
	record.Amount = parsed
	record.Direction = model.Direction(direction)
	return record, nil
}
