// Package engine implements the propagation pipeline: turning resolved
// identities plus pending raw records into ledger postings, exactly once per
// natural key.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/spidersync/ledgerlink/internal/common"
	"github.com/spidersync/ledgerlink/internal/model"
	"github.com/spidersync/ledgerlink/internal/pattern"
	"github.com/spidersync/ledgerlink/internal/resolver"
	"github.com/spidersync/ledgerlink/internal/service"
)

// Result summarizes one propagation batch. Zero errored records and zero
// unresolved-after-curation is the success criterion for a fully clean run.
type Result struct {
	Posted               int
	SkippedUnresolved    int
	SkippedAlreadyPosted int
	Errored              int
	UnresolvedKeys       []string
	ErroredKeys          []string
}

// Clean reports whether the batch finished with nothing left to investigate.
func (r *Result) Clean() bool {
	return r.Errored == 0 && r.SkippedUnresolved == 0
}

// Engine wires the extractor, resolver, and storage into the propagation
// pipeline.
type Engine struct {
	storage   service.Storage
	extractor *pattern.Extractor
	resolver  *resolver.Resolver
	retry     service.RetryOptions
	progress  func(processed, total int)
}

// Option configures an Engine.
type Option func(*Engine)

// WithRetryOptions overrides the bounded-retry policy used around storage
// writes.
func WithRetryOptions(opts service.RetryOptions) Option {
	return func(e *Engine) { e.retry = opts }
}

// WithProgress installs a callback invoked after each processed record.
func WithProgress(fn func(processed, total int)) Option {
	return func(e *Engine) { e.progress = fn }
}

// New creates a propagation engine.
func New(storage service.Storage, extractor *pattern.Extractor, res *resolver.Resolver, opts ...Option) *Engine {
	e := &Engine{
		storage:   storage,
		extractor: extractor,
		resolver:  res,
		retry:     service.RetryOptions{MaxAttempts: 3},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PropagateSource loads the pending records for one source tag and
// propagates them.
func (e *Engine) PropagateSource(ctx context.Context, sourceTag string) (Result, error) {
	records, err := e.storage.GetPendingRecords(ctx, sourceTag)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load pending records for %s: %w", sourceTag, err)
	}
	return e.Propagate(ctx, records)
}

// Propagate runs the pipeline over a batch of raw records. Records are
// processed in ascending as-of date so postings land in chronological order
// for a given client. A single record's failure never aborts the batch: it is
// counted, logged with its natural key, and left untouched for safe retry.
// Propagate returns an error only when the batch as a whole cannot proceed
// (context cancellation).
func (e *Engine) Propagate(ctx context.Context, records []model.RawRecord) (Result, error) {
	pending := make([]model.RawRecord, 0, len(records))
	for _, record := range records {
		if record.Pending() {
			pending = append(pending, record)
		}
	}
	sort.SliceStable(pending, func(a, b int) bool {
		return pending[a].AsOfDate.Before(pending[b].AsOfDate)
	})

	slog.Info("Starting propagation", "pending", len(pending), "supplied", len(records))

	var result Result
	for i, record := range pending {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if err := e.propagateRecord(ctx, record, &result); err != nil {
			result.Errored++
			result.ErroredKeys = append(result.ErroredKeys, record.NaturalKey)
			common.LogError(err, "Record propagation failed", common.Fields{
				"natural_key": record.NaturalKey,
				"source_tag":  record.SourceTag,
			})
		}

		if e.progress != nil {
			e.progress(i+1, len(pending))
		}
	}

	common.LogInfo("Propagation finished", common.Fields{
		"posted":                 result.Posted,
		"skipped_unresolved":     result.SkippedUnresolved,
		"skipped_already_posted": result.SkippedAlreadyPosted,
		"errored":                result.Errored,
	})

	return result, nil
}

// propagateRecord handles one record: extract, fingerprint, resolve, post,
// mark applied. The resolve -> post -> mark-applied sequence re-derives the
// identical outcome if interrupted partway, so a crash before mark-applied
// can never double-post.
func (e *Engine) propagateRecord(ctx context.Context, record model.RawRecord, result *Result) error {
	identity := e.extractor.Extract(record.RawDescription, record.SourceTag)

	if !identity.HasIdentity() {
		result.SkippedUnresolved++
		result.UnresolvedKeys = append(result.UnresolvedKeys, record.NaturalKey)
		return nil
	}

	// Record the fingerprint even before curation so the mapping table
	// accumulates every identity seen.
	if _, _, err := e.resolver.UpsertIfAbsent(ctx, identity); err != nil {
		return common.NewRecordError(record.NaturalKey, err)
	}

	mapping, err := e.resolver.Resolved(ctx, identity.Fingerprint())
	if err != nil {
		return common.NewRecordError(record.NaturalKey, err)
	}
	if mapping == nil {
		result.SkippedUnresolved++
		result.UnresolvedKeys = append(result.UnresolvedKeys, record.NaturalKey)
		return nil
	}

	posting := &model.LedgerPosting{
		NaturalKey:   record.NaturalKey,
		ClientID:     *mapping.ClientID,
		PostedAmount: record.PostedAmount(),
		Memo:         record.RawDescription,
		SourceTag:    record.SourceTag,
	}

	var created bool
	err = common.WithRetry(ctx, func() error {
		var insertErr error
		created, insertErr = e.storage.InsertPostingIfAbsent(ctx, posting)
		return insertErr
	}, e.retry)
	if err != nil {
		return common.NewRecordError(record.NaturalKey, err)
	}

	if err := common.WithRetry(ctx, func() error {
		return e.storage.MarkApplied(ctx, record.NaturalKey)
	}, e.retry); err != nil {
		return common.NewRecordError(record.NaturalKey, err)
	}

	if created {
		result.Posted++
	} else {
		// Idempotent close-out: the posting already exists, so only the
		// applied flag needed to catch up.
		result.SkippedAlreadyPosted++
	}
	return nil
}
