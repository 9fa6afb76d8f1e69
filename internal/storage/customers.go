package storage

import (
	"context"
	"fmt"

	"github.com/spidersync/ledgerlink/internal/model"
)

// SaveCustomers replaces-or-inserts rows in the customer master table.
// Client ids are authoritative upstream, so a re-import may legitimately
// refresh names.
func (s *SQLiteStorage) SaveCustomers(ctx context.Context, customers []model.Customer) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(customers) == 0 {
		return fmt.Errorf("%w: customers", ErrEmptySlice)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO customers (client_id, customer_id, name, company_name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			customer_id = excluded.customer_id,
			name = excluded.name,
			company_name = excluded.company_name
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, customer := range customers {
		if _, err := stmt.ExecContext(ctx,
			customer.ClientID,
			customer.CustomerID,
			customer.Name,
			customer.CompanyName,
		); err != nil {
			return classifyErr(fmt.Errorf("failed to save customer %d: %w", customer.ClientID, err))
		}
	}

	return tx.Commit()
}

// ListCustomers returns the full customer master table.
func (s *SQLiteStorage) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT client_id, customer_id, name, company_name
		FROM customers
		ORDER BY client_id ASC
	`)
	if err != nil {
		return nil, classifyErr(fmt.Errorf("failed to list customers: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var customers []model.Customer
	for rows.Next() {
		var customer model.Customer
		if err := rows.Scan(
			&customer.ClientID,
			&customer.CustomerID,
			&customer.Name,
			&customer.CompanyName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, customer)
	}
	return customers, rows.Err()
}
