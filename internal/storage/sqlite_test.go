package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spidersync/ledgerlink/internal/model"
	"github.com/spidersync/ledgerlink/internal/service"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func testRecord(key string, day int) model.RawRecord {
	return model.RawRecord{
		NaturalKey:     key,
		AsOfDate:       time.Date(2025, 6, day, 0, 0, 0, 0, time.UTC),
		Amount:         decimal.RequireFromString("1250.00"),
		Direction:      model.DirectionCredit,
		RawDescription: "UPRR PAYROLL 2946001323 CHRISTOPHER LEE STELL",
		SourceTag:      "PNC_ACH",
	}
}

func TestMigrate(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	// Re-running is a no-op, not an error.
	require.NoError(t, store.Migrate(ctx))

	version, err = store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestSaveRawRecords(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	records := []model.RawRecord{testRecord("ref-001", 2), testRecord("ref-002", 3)}
	require.NoError(t, store.SaveRawRecords(ctx, records))

	// Re-importing an overlapping window keeps the original rows.
	overlap := testRecord("ref-002", 3)
	overlap.RawDescription = "CHANGED DESCRIPTION"
	require.NoError(t, store.SaveRawRecords(ctx, []model.RawRecord{overlap, testRecord("ref-003", 4)}))

	pending, err := store.GetPendingRecords(ctx, "PNC_ACH")
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "UPRR PAYROLL 2946001323 CHRISTOPHER LEE STELL", pending[1].RawDescription)

	t.Run("validation", func(t *testing.T) {
		assert.ErrorIs(t, store.SaveRawRecords(ctx, nil), ErrNilParameter)
		assert.ErrorIs(t, store.SaveRawRecords(ctx, []model.RawRecord{}), ErrEmptySlice)

		bad := testRecord("", 5)
		assert.ErrorIs(t, store.SaveRawRecords(ctx, []model.RawRecord{bad}), ErrInvalidRecord)
	})
}

func TestGetPendingRecords(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	applied := testRecord("ref-applied", 1)
	applied.AppliedFlag = model.FlagApplied
	excluded := testRecord("ref-excluded", 1)
	excluded.AppliedFlag = 9
	other := testRecord("ref-other-bank", 1)
	other.SourceTag = "WF_DDA"

	records := []model.RawRecord{
		testRecord("ref-late", 20),
		testRecord("ref-early", 1),
		applied,
		excluded,
		other,
	}
	require.NoError(t, store.SaveRawRecords(ctx, records))

	t.Run("filters and orders by source", func(t *testing.T) {
		pending, err := store.GetPendingRecords(ctx, "PNC_ACH")
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "ref-early", pending[0].NaturalKey)
		assert.Equal(t, "ref-late", pending[1].NaturalKey)
	})

	t.Run("empty tag selects all sources", func(t *testing.T) {
		pending, err := store.GetPendingRecords(ctx, "")
		require.NoError(t, err)
		assert.Len(t, pending, 3)
	})

	t.Run("sentinel flags stay excluded", func(t *testing.T) {
		pending, err := store.GetPendingRecords(ctx, "PNC_ACH")
		require.NoError(t, err)
		for _, record := range pending {
			assert.Equal(t, model.FlagPending, record.AppliedFlag)
		}
	})
}

func TestMarkApplied(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	excluded := testRecord("ref-excluded", 1)
	excluded.AppliedFlag = 9
	require.NoError(t, store.SaveRawRecords(ctx, []model.RawRecord{
		testRecord("ref-001", 1),
		excluded,
	}))

	require.NoError(t, store.MarkApplied(ctx, "ref-001"))

	record, err := store.GetRawRecord(ctx, "ref-001")
	require.NoError(t, err)
	assert.Equal(t, model.FlagApplied, record.AppliedFlag)

	// Applying twice is harmless.
	require.NoError(t, store.MarkApplied(ctx, "ref-001"))

	// Sentinel flags are never reset to applied.
	require.NoError(t, store.MarkApplied(ctx, "ref-excluded"))
	record, err = store.GetRawRecord(ctx, "ref-excluded")
	require.NoError(t, err)
	assert.Equal(t, 9, record.AppliedFlag)
}

func TestGetRawRecord(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRawRecords(ctx, []model.RawRecord{testRecord("ref-001", 2)}))

	record, err := store.GetRawRecord(ctx, "ref-001")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, record.Amount.Equal(decimal.RequireFromString("1250.00")))
	assert.Equal(t, model.DirectionCredit, record.Direction)

	missing, err := store.GetRawRecord(ctx, "ref-missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInsertMappingIfAbsent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	identity := model.ExtractedIdentity{
		CompanyID:    "2946001323",
		CompanyName:  "UPRR",
		CustomerName: "CHRISTOPHER LEE STELL",
	}
	mapping := model.NewMapping(identity)

	created, err := store.InsertMappingIfAbsent(ctx, mapping)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.InsertMappingIfAbsent(ctx, mapping)
	require.NoError(t, err)
	assert.False(t, created)

	// The insert path never creates a curated row, whatever the caller set.
	tainted := model.NewMapping(model.ExtractedIdentity{CompanyName: "ACME"})
	tainted.Curated = true
	clientID := int64(99)
	tainted.ClientID = &clientID

	created, err = store.InsertMappingIfAbsent(ctx, tainted)
	require.NoError(t, err)
	assert.True(t, created)

	stored, err := store.GetMapping(ctx, tainted.Fingerprint)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.Curated)
	assert.Nil(t, stored.ClientID)
}

func TestCurateMapping(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	mapping := model.NewMapping(model.ExtractedIdentity{CompanyName: "UPRR"})
	_, err := store.InsertMappingIfAbsent(ctx, mapping)
	require.NoError(t, err)

	curatedAt := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.CurateMapping(ctx, mapping.Fingerprint, 1071, curatedAt))

	stored, err := store.GetMapping(ctx, mapping.Fingerprint)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Curated)
	require.NotNil(t, stored.ClientID)
	assert.Equal(t, int64(1071), *stored.ClientID)
	require.NotNil(t, stored.CuratedAt)

	err = store.CurateMapping(ctx, "no-such-fingerprint", 1071, curatedAt)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListMappings(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	fingerprints := make([]string, 0, 3)
	for _, name := range []string{"UPRR", "ACME", "GLOBEX"} {
		mapping := model.NewMapping(model.ExtractedIdentity{CompanyName: name})
		_, err := store.InsertMappingIfAbsent(ctx, mapping)
		require.NoError(t, err)
		fingerprints = append(fingerprints, mapping.Fingerprint)
	}
	require.NoError(t, store.CurateMapping(ctx, fingerprints[0], 1071, time.Now()))

	t.Run("uncurated worklist", func(t *testing.T) {
		curated := false
		mappings, err := store.ListMappings(ctx, service.MappingFilter{Curated: &curated})
		require.NoError(t, err)
		assert.Len(t, mappings, 2)
	})

	t.Run("curated only", func(t *testing.T) {
		curated := true
		mappings, err := store.ListMappings(ctx, service.MappingFilter{Curated: &curated})
		require.NoError(t, err)
		require.Len(t, mappings, 1)
		assert.Equal(t, fingerprints[0], mappings[0].Fingerprint)
	})

	t.Run("limit", func(t *testing.T) {
		mappings, err := store.ListMappings(ctx, service.MappingFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, mappings, 2)
	})
}

func TestInsertPostingIfAbsent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	posting := &model.LedgerPosting{
		NaturalKey:   "ref-001",
		ClientID:     1071,
		PostedAmount: decimal.RequireFromString("1250.00"),
		Memo:         "UPRR PAYROLL 2946001323 CHRISTOPHER LEE STELL",
		SourceTag:    "PNC_ACH",
	}

	created, err := store.InsertPostingIfAbsent(ctx, posting)
	require.NoError(t, err)
	assert.True(t, created)

	// A second attempt, even with a different amount, never overwrites.
	dup := *posting
	dup.PostedAmount = decimal.RequireFromString("9999.99")
	created, err = store.InsertPostingIfAbsent(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := store.GetPosting(ctx, "ref-001")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.PostedAmount.Equal(decimal.RequireFromString("1250.00")))
	assert.Equal(t, int64(1071), stored.ClientID)
	assert.False(t, stored.PostedAt.IsZero())

	missing, err := store.GetPosting(ctx, "ref-missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSaveCustomers(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	customers := []model.Customer{
		{ClientID: 1071, CustomerID: "052-25-1342", Name: "Christopher Stell", CompanyName: "UPRR"},
		{ClientID: 1002, CustomerID: "123-45-6789", Name: "Jane Doe", CompanyName: "ACME"},
	}
	require.NoError(t, store.SaveCustomers(ctx, customers))

	// Re-import refreshes names under the same client id.
	require.NoError(t, store.SaveCustomers(ctx, []model.Customer{
		{ClientID: 1071, CustomerID: "052-25-1342", Name: "Christopher L. Stell", CompanyName: "UPRR"},
	}))

	listed, err := store.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, int64(1002), listed[0].ClientID)
	assert.Equal(t, "Christopher L. Stell", listed[1].Name)

	assert.ErrorIs(t, store.SaveCustomers(ctx, nil), ErrEmptySlice)
}
