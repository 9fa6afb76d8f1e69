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

// InsertPostingIfAbsent creates a ledger posting unless one already exists
// for the natural key. The conditional insert, not a caller-side presence
// check, is what guarantees at-most-once posting under concurrent runs.
func (s *SQLiteStorage) InsertPostingIfAbsent(ctx context.Context, posting *model.LedgerPosting) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if posting == nil {
		return false, fmt.Errorf("%w: posting", ErrNilParameter)
	}
	if err := validateString(posting.NaturalKey, "naturalKey"); err != nil {
		return false, err
	}

	postedAt := posting.PostedAt
	if postedAt.IsZero() {
		postedAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO ledger_postings (
			natural_key, client_id, posted_amount, memo, source_tag, posted_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`,
		posting.NaturalKey,
		posting.ClientID,
		posting.PostedAmount.String(),
		posting.Memo,
		posting.SourceTag,
		postedAt,
	)
	if err != nil {
		return false, classifyErr(fmt.Errorf("failed to insert posting: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetPosting returns the posting for a natural key, or nil when absent.
func (s *SQLiteStorage) GetPosting(ctx context.Context, naturalKey string) (*model.LedgerPosting, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(naturalKey, "naturalKey"); err != nil {
		return nil, err
	}

	var (
		posting model.LedgerPosting
		amount  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT natural_key, client_id, posted_amount, memo, source_tag, posted_at
		FROM ledger_postings
		WHERE natural_key = ?
	`, naturalKey).Scan(
		&posting.NaturalKey,
		&posting.ClientID,
		&amount,
		&posting.Memo,
		&posting.SourceTag,
		&posting.PostedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get posting: %w", err)
	}

	posting.PostedAmount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("posting %s has malformed amount %q: %w", naturalKey, amount, err)
	}
	return &posting, nil
}
