// Package resolver maintains the canonical mapping table: fingerprint-keyed
// identity dedup and the curation entry point.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spidersync/ledgerlink/internal/common"
	"github.com/spidersync/ledgerlink/internal/model"
	"github.com/spidersync/ledgerlink/internal/service"
)

// Resolver owns all writes to the canonical mapping table.
type Resolver struct {
	storage service.Storage
	now     func() time.Time
}

// New creates a resolver backed by the given storage.
func New(storage service.Storage) *Resolver {
	return &Resolver{storage: storage, now: time.Now}
}

// UpsertIfAbsent records a freshly extracted identity under its fingerprint.
// If the fingerprint is new, an uncurated mapping is created and created is
// true. If it already exists the stored mapping is returned unchanged:
// re-parsing never overwrites curated data, whatever the new extraction's
// confidence. The insert is conditional at the storage boundary, so two
// concurrent upserts for the same fingerprint cannot both win.
func (r *Resolver) UpsertIfAbsent(ctx context.Context, identity model.ExtractedIdentity) (bool, *model.CanonicalMapping, error) {
	mapping := model.NewMapping(identity)
	mapping.CreatedAt = r.now()

	created, err := r.storage.InsertMappingIfAbsent(ctx, mapping)
	if err != nil {
		return false, nil, fmt.Errorf("failed to upsert mapping: %w", err)
	}

	stored, err := r.storage.GetMapping(ctx, mapping.Fingerprint)
	if err != nil {
		return false, nil, fmt.Errorf("failed to load mapping %s: %w", mapping.Fingerprint, err)
	}
	if stored == nil {
		return false, nil, fmt.Errorf("mapping %s missing after upsert: %w", mapping.Fingerprint, common.ErrNotFound)
	}

	if created {
		slog.Debug("New identity fingerprint recorded",
			"fingerprint", mapping.Fingerprint,
			"company_name", mapping.CompanyName,
			"customer_name", mapping.CustomerName)
	}

	return created, stored, nil
}

// Curate assigns a client id to a known fingerprint. Re-curation with a
// different client id is rejected unless force is set, preventing silent
// identity reassignment. Re-curation with the same client id is a no-op.
func (r *Resolver) Curate(ctx context.Context, fingerprint string, clientID int64, force bool) (*model.CanonicalMapping, error) {
	mapping, err := r.storage.GetMapping(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping %s: %w", fingerprint, err)
	}
	if mapping == nil {
		return nil, fmt.Errorf("fingerprint %s: %w", fingerprint, common.ErrNotFound)
	}

	if mapping.Curated && mapping.ClientID != nil {
		if *mapping.ClientID == clientID {
			return mapping, nil
		}
		if !force {
			return nil, fmt.Errorf("fingerprint %s is curated to client %d: %w",
				fingerprint, *mapping.ClientID, common.ErrAlreadyCurated)
		}
		slog.Warn("Overriding existing curation",
			"fingerprint", fingerprint,
			"old_client_id", *mapping.ClientID,
			"new_client_id", clientID)
	}

	if err := r.storage.CurateMapping(ctx, fingerprint, clientID, r.now()); err != nil {
		return nil, fmt.Errorf("failed to curate mapping %s: %w", fingerprint, err)
	}

	return r.storage.GetMapping(ctx, fingerprint)
}

// Resolved returns the curated mapping for a fingerprint, or nil when the
// fingerprint is unknown or not yet curated. Pure lookup used by the
// propagation pipeline.
func (r *Resolver) Resolved(ctx context.Context, fingerprint string) (*model.CanonicalMapping, error) {
	mapping, err := r.storage.GetMapping(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	if mapping == nil || !mapping.Resolved() {
		return nil, nil
	}
	return mapping, nil
}
