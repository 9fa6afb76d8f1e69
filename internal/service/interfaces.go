// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/spidersync/ledgerlink/internal/model"
)

// MappingFilter defines filtering options for canonical mapping queries.
type MappingFilter struct {
	Curated *bool
	Limit   int
}

// Storage defines the contract for our persistence layer. The conditional
// inserts (if-absent) are the engine's only synchronization points and must
// be atomic at the storage boundary, not read-then-write from the caller.
type Storage interface {
	// Raw record operations
	SaveRawRecords(ctx context.Context, records []model.RawRecord) error
	GetPendingRecords(ctx context.Context, sourceTag string) ([]model.RawRecord, error)
	GetRawRecord(ctx context.Context, naturalKey string) (*model.RawRecord, error)
	MarkApplied(ctx context.Context, naturalKey string) error

	// Canonical mapping operations
	InsertMappingIfAbsent(ctx context.Context, mapping *model.CanonicalMapping) (bool, error)
	GetMapping(ctx context.Context, fingerprint string) (*model.CanonicalMapping, error)
	CurateMapping(ctx context.Context, fingerprint string, clientID int64, curatedAt time.Time) error
	ListMappings(ctx context.Context, filter MappingFilter) ([]model.CanonicalMapping, error)

	// Ledger posting operations
	InsertPostingIfAbsent(ctx context.Context, posting *model.LedgerPosting) (bool, error)
	GetPosting(ctx context.Context, naturalKey string) (*model.LedgerPosting, error)

	// Customer master operations
	SaveCustomers(ctx context.Context, customers []model.Customer) error
	ListCustomers(ctx context.Context) ([]model.Customer, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
