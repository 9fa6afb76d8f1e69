package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spidersync/ledgerlink/internal/model"
	"github.com/spidersync/ledgerlink/internal/pattern"
	"github.com/spidersync/ledgerlink/internal/resolver"
	"github.com/spidersync/ledgerlink/internal/storage"
)

func newTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func newTestExtractor(t *testing.T) *pattern.Extractor {
	t.Helper()
	registry, err := pattern.Load([]model.PatternRule{{
		Name:           "pnc-payroll",
		SourceTag:      "PNC_ACH",
		Pattern:        `^(?P<company>\S+) PAYROLL (?P<id>\d{10}) (?P<customer>.+)$`,
		BaseConfidence: 0.9,
		FieldMap: []model.FieldMapping{
			{Group: "company", Field: model.FieldCompanyName, Required: true},
			{Group: "id", Field: model.FieldCompanyID, Required: true},
			{Group: "customer", Field: model.FieldCustomerName},
		},
	}})
	require.NoError(t, err)
	return pattern.NewExtractor(registry)
}

func payrollRecord(key string, day int, amount string) model.RawRecord {
	return model.RawRecord{
		NaturalKey:     key,
		AsOfDate:       time.Date(2025, 6, day, 0, 0, 0, 0, time.UTC),
		Amount:         decimal.RequireFromString(amount),
		Direction:      model.DirectionCredit,
		RawDescription: "UPRR PAYROLL 2946001323 CHRISTOPHER LEE STELL",
		SourceTag:      "PNC_ACH",
	}
}

func stellFingerprint() string {
	id := model.ExtractedIdentity{
		CompanyID:    "2946001323",
		CompanyName:  "UPRR",
		CustomerName: "CHRISTOPHER LEE STELL",
	}
	return id.Fingerprint()
}

func TestEngine_Propagate_UnresolvedThenCurated(t *testing.T) {
	store := newTestStorage(t)
	res := resolver.New(store)
	eng := New(store, newTestExtractor(t), res)
	ctx := context.Background()

	records := []model.RawRecord{payrollRecord("ref-001", 2, "1250.00")}
	require.NoError(t, store.SaveRawRecords(ctx, records))

	// Run 1: identity extracted but not yet curated — nothing posts.
	result, err := eng.PropagateSource(ctx, "PNC_ACH")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Posted)
	assert.Equal(t, 1, result.SkippedUnresolved)
	assert.Equal(t, []string{"ref-001"}, result.UnresolvedKeys)
	assert.False(t, result.Clean())

	record, err := store.GetRawRecord(ctx, "ref-001")
	require.NoError(t, err)
	assert.Equal(t, model.FlagPending, record.AppliedFlag)

	// The fingerprint was still recorded for the curation worklist.
	mapping, err := store.GetMapping(ctx, stellFingerprint())
	require.NoError(t, err)
	require.NotNil(t, mapping)
	assert.False(t, mapping.Curated)

	// Curate, then run 2: posts exactly once.
	_, err = res.Curate(ctx, stellFingerprint(), 1071, false)
	require.NoError(t, err)

	result, err = eng.PropagateSource(ctx, "PNC_ACH")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Posted)
	assert.Equal(t, 0, result.SkippedUnresolved)
	assert.True(t, result.Clean())

	record, err = store.GetRawRecord(ctx, "ref-001")
	require.NoError(t, err)
	assert.Equal(t, model.FlagApplied, record.AppliedFlag)

	posting, err := store.GetPosting(ctx, "ref-001")
	require.NoError(t, err)
	require.NotNil(t, posting)
	assert.Equal(t, int64(1071), posting.ClientID)
	assert.True(t, posting.PostedAmount.Equal(decimal.RequireFromString("1250.00")))

	// Run 3 over the same window: nothing pending, nothing doubled.
	result, err = eng.PropagateSource(ctx, "PNC_ACH")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Posted)
	assert.Equal(t, 0, result.SkippedAlreadyPosted)
}

func TestEngine_Propagate_AtMostOncePosting(t *testing.T) {
	store := newTestStorage(t)
	res := resolver.New(store)
	eng := New(store, newTestExtractor(t), res)
	ctx := context.Background()

	records := []model.RawRecord{payrollRecord("ref-002", 3, "900.00")}
	require.NoError(t, store.SaveRawRecords(ctx, records))

	_, _, err := res.UpsertIfAbsent(ctx, model.ExtractedIdentity{
		CompanyID: "2946001323", CompanyName: "UPRR", CustomerName: "CHRISTOPHER LEE STELL",
	})
	require.NoError(t, err)
	_, err = res.Curate(ctx, stellFingerprint(), 1071, false)
	require.NoError(t, err)

	// Propagate the same in-memory batch twice: the second pass sees a
	// pending flag (simulating a crash before mark-applied) but the
	// conditional insert refuses a duplicate posting.
	result, err := eng.Propagate(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Posted)

	result, err = eng.Propagate(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Posted)
	assert.Equal(t, 1, result.SkippedAlreadyPosted)

	posting, err := store.GetPosting(ctx, "ref-002")
	require.NoError(t, err)
	require.NotNil(t, posting)
}

func TestEngine_Propagate_DebitPostsNegative(t *testing.T) {
	store := newTestStorage(t)
	res := resolver.New(store)
	eng := New(store, newTestExtractor(t), res)
	ctx := context.Background()

	record := payrollRecord("ref-003", 4, "55.10")
	record.Direction = model.DirectionDebit
	require.NoError(t, store.SaveRawRecords(ctx, []model.RawRecord{record}))

	_, _, err := res.UpsertIfAbsent(ctx, model.ExtractedIdentity{
		CompanyID: "2946001323", CompanyName: "UPRR", CustomerName: "CHRISTOPHER LEE STELL",
	})
	require.NoError(t, err)
	_, err = res.Curate(ctx, stellFingerprint(), 1071, false)
	require.NoError(t, err)

	_, err = eng.PropagateSource(ctx, "PNC_ACH")
	require.NoError(t, err)

	posting, err := store.GetPosting(ctx, "ref-003")
	require.NoError(t, err)
	require.NotNil(t, posting)
	assert.True(t, posting.PostedAmount.Equal(decimal.RequireFromString("-55.10")))
}

func TestEngine_Propagate_ChronologicalOrder(t *testing.T) {
	store := newTestStorage(t)
	res := resolver.New(store)

	var processed []string
	eng := New(store, newTestExtractor(t), res)

	records := []model.RawRecord{
		payrollRecord("ref-late", 20, "10.00"),
		payrollRecord("ref-early", 1, "10.00"),
		payrollRecord("ref-mid", 10, "10.00"),
	}
	ctx := context.Background()
	require.NoError(t, store.SaveRawRecords(ctx, records))

	_, _, err := res.UpsertIfAbsent(ctx, model.ExtractedIdentity{
		CompanyID: "2946001323", CompanyName: "UPRR", CustomerName: "CHRISTOPHER LEE STELL",
	})
	require.NoError(t, err)
	_, err = res.Curate(ctx, stellFingerprint(), 1071, false)
	require.NoError(t, err)

	pending, err := store.GetPendingRecords(ctx, "PNC_ACH")
	require.NoError(t, err)
	for _, r := range pending {
		processed = append(processed, r.NaturalKey)
	}
	assert.Equal(t, []string{"ref-early", "ref-mid", "ref-late"}, processed)

	result, err := eng.Propagate(ctx, pending)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Posted)
}

// failingStorage wraps the real store and fails posting inserts for one
// natural key, proving a single record's failure cannot abort the batch.
type failingStorage struct {
	*storage.SQLiteStorage
	failKey string
}

func (f *failingStorage) InsertPostingIfAbsent(ctx context.Context, posting *model.LedgerPosting) (bool, error) {
	if posting.NaturalKey == f.failKey {
		return false, errors.New("disk on fire")
	}
	return f.SQLiteStorage.InsertPostingIfAbsent(ctx, posting)
}

func TestEngine_Propagate_PerRecordErrorIsolation(t *testing.T) {
	store := newTestStorage(t)
	res := resolver.New(store)
	flaky := &failingStorage{SQLiteStorage: store, failKey: "ref-bad"}
	eng := New(flaky, newTestExtractor(t), res)
	ctx := context.Background()

	records := []model.RawRecord{
		payrollRecord("ref-bad", 1, "10.00"),
		payrollRecord("ref-good", 2, "20.00"),
	}
	require.NoError(t, store.SaveRawRecords(ctx, records))

	_, _, err := res.UpsertIfAbsent(ctx, model.ExtractedIdentity{
		CompanyID: "2946001323", CompanyName: "UPRR", CustomerName: "CHRISTOPHER LEE STELL",
	})
	require.NoError(t, err)
	_, err = res.Curate(ctx, stellFingerprint(), 1071, false)
	require.NoError(t, err)

	result, err := eng.PropagateSource(ctx, "PNC_ACH")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Posted)
	assert.Equal(t, 1, result.Errored)
	assert.Equal(t, []string{"ref-bad"}, result.ErroredKeys)

	// The failed record is untouched and eligible for retry.
	record, err := store.GetRawRecord(ctx, "ref-bad")
	require.NoError(t, err)
	assert.Equal(t, model.FlagPending, record.AppliedFlag)
}

func TestEngine_Propagate_SentinelFlagsExcluded(t *testing.T) {
	store := newTestStorage(t)
	res := resolver.New(store)
	eng := New(store, newTestExtractor(t), res)
	ctx := context.Background()

	excluded := payrollRecord("ref-excluded", 5, "10.00")
	excluded.AppliedFlag = 9 // source-specific exclusion sentinel
	require.NoError(t, store.SaveRawRecords(ctx, []model.RawRecord{excluded}))

	result, err := eng.PropagateSource(ctx, "PNC_ACH")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Posted)
	assert.Equal(t, 0, result.SkippedUnresolved)
	assert.Equal(t, 0, result.Errored)

	record, err := store.GetRawRecord(ctx, "ref-excluded")
	require.NoError(t, err)
	assert.Equal(t, 9, record.AppliedFlag)
}

func TestEngine_Propagate_ProgressCallback(t *testing.T) {
	store := newTestStorage(t)
	res := resolver.New(store)

	var calls []int
	eng := New(store, newTestExtractor(t), res, WithProgress(func(processed, total int) {
		assert.Equal(t, 2, total)
		calls = append(calls, processed)
	}))
	ctx := context.Background()

	records := []model.RawRecord{
		payrollRecord("ref-a", 1, "10.00"),
		payrollRecord("ref-b", 2, "20.00"),
	}
	require.NoError(t, store.SaveRawRecords(ctx, records))

	_, err := eng.PropagateSource(ctx, "PNC_ACH")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, calls)
}
