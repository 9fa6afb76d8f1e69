// Package model defines the core data structures for the ledgerlink engine.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Direction indicates whether a raw record moves money toward or away from us.
type Direction string

// Direction constants.
const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Applied-flag states. The flag transitions FlagPending -> FlagApplied exactly
// once, when the record has been posted to the ledger. Any other value is a
// source-specific exclusion sentinel and must never be reset.
const (
	FlagPending = 0
	FlagApplied = 2
)

// RawRecord is one bank or report line as supplied by an ingestion
// collaborator. NaturalKey is unique within a source (e.g., a bank reference
// number) and is what prevents duplicate ledger postings.
type RawRecord struct {
	AsOfDate       time.Time
	NaturalKey     string
	RawDescription string
	SourceTag      string
	Amount         decimal.Decimal
	Direction      Direction
	AppliedFlag    int
}

// PostedAmount returns the ledger-facing amount, sign-adjusted by direction:
// credits post positive, debits negative.
func (r *RawRecord) PostedAmount() decimal.Decimal {
	if r.Direction == DirectionDebit {
		return r.Amount.Neg()
	}
	return r.Amount
}

// Pending reports whether the record is still eligible for propagation.
func (r *RawRecord) Pending() bool {
	return r.AppliedFlag == FlagPending
}

// Validate ensures the record carries the minimum required fields.
func (r *RawRecord) Validate() error {
	if r.NaturalKey == "" {
		return fmt.Errorf("raw record missing natural key")
	}
	if r.AsOfDate.IsZero() {
		return fmt.Errorf("raw record %s missing as-of date", r.NaturalKey)
	}
	if r.SourceTag == "" {
		return fmt.Errorf("raw record %s missing source tag", r.NaturalKey)
	}
	switch r.Direction {
	case DirectionCredit, DirectionDebit:
	default:
		return fmt.Errorf("raw record %s has invalid direction %q", r.NaturalKey, r.Direction)
	}
	return nil
}
