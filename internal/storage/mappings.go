package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spidersync/ledgerlink/internal/model"
	"github.com/spidersync/ledgerlink/internal/service"
)

// InsertMappingIfAbsent inserts an uncurated mapping unless the fingerprint
// already exists. INSERT OR IGNORE against the primary key is the atomic
// insert-if-absent: under concurrent upserts of the same fingerprint exactly
// one insert wins and the rest observe created=false.
func (s *SQLiteStorage) InsertMappingIfAbsent(ctx context.Context, mapping *model.CanonicalMapping) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if mapping == nil {
		return false, fmt.Errorf("%w: mapping", ErrNilParameter)
	}
	if err := validateString(mapping.Fingerprint, "fingerprint"); err != nil {
		return false, err
	}

	createdAt := mapping.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO canonical_mappings (
			fingerprint, company_id, company_name,
			customer_id, customer_name, curated, created_at
		) VALUES (?, ?, ?, ?, ?, 0, ?)
	`,
		mapping.Fingerprint,
		mapping.CompanyID,
		mapping.CompanyName,
		mapping.CustomerID,
		mapping.CustomerName,
		createdAt,
	)
	if err != nil {
		return false, classifyErr(fmt.Errorf("failed to insert mapping: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetMapping returns the mapping for a fingerprint, or nil when unknown.
func (s *SQLiteStorage) GetMapping(ctx context.Context, fingerprint string) (*model.CanonicalMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(fingerprint, "fingerprint"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, client_id, company_id, company_name,
		       customer_id, customer_name, curated, created_at, curated_at
		FROM canonical_mappings
		WHERE fingerprint = ?
	`, fingerprint)

	mapping, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return mapping, nil
}

// CurateMapping records the authoritative client assignment for a
// fingerprint. The resolver owns the business rules around re-curation; this
// is the raw write.
func (s *SQLiteStorage) CurateMapping(ctx context.Context, fingerprint string, clientID int64, curatedAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(fingerprint, "fingerprint"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE canonical_mappings
		SET client_id = ?, curated = 1, curated_at = ?
		WHERE fingerprint = ?
	`, clientID, curatedAt, fingerprint)
	if err != nil {
		return classifyErr(fmt.Errorf("failed to curate mapping: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListMappings returns mappings matching the filter, newest first.
func (s *SQLiteStorage) ListMappings(ctx context.Context, filter service.MappingFilter) ([]model.CanonicalMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT fingerprint, client_id, company_id, company_name,
		       customer_id, customer_name, curated, created_at, curated_at
		FROM canonical_mappings`
	var args []any

	if filter.Curated != nil {
		query += ` WHERE curated = ?`
		if *filter.Curated {
			args = append(args, 1)
		} else {
			args = append(args, 0)
		}
	}
	query += ` ORDER BY created_at DESC, fingerprint ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyErr(fmt.Errorf("failed to list mappings: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var mappings []model.CanonicalMapping
	for rows.Next() {
		mapping, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, *mapping)
	}
	return mappings, rows.Err()
}

func scanMapping(row rowScanner) (*model.CanonicalMapping, error) {
	var (
		mapping   model.CanonicalMapping
		clientID  sql.NullInt64
		curated   int
		curatedAt sql.NullTime
	)
	if err := row.Scan(
		&mapping.Fingerprint,
		&clientID,
		&mapping.CompanyID,
		&mapping.CompanyName,
		&mapping.CustomerID,
		&mapping.CustomerName,
		&curated,
		&mapping.CreatedAt,
		&curatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan mapping: %w", err)
	}

	if clientID.Valid {
		mapping.ClientID = &clientID.Int64
	}
	if curatedAt.Valid {
		mapping.CuratedAt = &curatedAt.Time
	}
	mapping.Curated = curated != 0
	return &mapping, nil
}
