package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerPosting is a single posted ledger entry, created at most once per
// natural key via a conditional insert at the storage boundary.
type LedgerPosting struct {
	PostedAt     time.Time
	NaturalKey   string
	Memo         string
	SourceTag    string
	PostedAmount decimal.Decimal
	ClientID     int64
}
