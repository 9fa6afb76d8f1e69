package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawRecord_PostedAmount(t *testing.T) {
	record := RawRecord{
		Amount:    decimal.RequireFromString("125.37"),
		Direction: DirectionCredit,
	}
	assert.True(t, record.PostedAmount().Equal(decimal.RequireFromString("125.37")))

	record.Direction = DirectionDebit
	assert.True(t, record.PostedAmount().Equal(decimal.RequireFromString("-125.37")))
}

func TestRawRecord_Pending(t *testing.T) {
	record := RawRecord{AppliedFlag: FlagPending}
	assert.True(t, record.Pending())

	record.AppliedFlag = FlagApplied
	assert.False(t, record.Pending())

	// Source-specific exclusion sentinels are not pending either.
	record.AppliedFlag = 9
	assert.False(t, record.Pending())
}

func TestRawRecord_Validate(t *testing.T) {
	valid := RawRecord{
		NaturalKey: "ref-001",
		AsOfDate:   time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		SourceTag:  "PNC_ACH",
		Direction:  DirectionCredit,
		Amount:     decimal.NewFromInt(10),
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		mutate func(*RawRecord)
		name   string
	}{
		{name: "missing natural key", mutate: func(r *RawRecord) { r.NaturalKey = "" }},
		{name: "missing as-of date", mutate: func(r *RawRecord) { r.AsOfDate = time.Time{} }},
		{name: "missing source tag", mutate: func(r *RawRecord) { r.SourceTag = "" }},
		{name: "invalid direction", mutate: func(r *RawRecord) { r.Direction = "sideways" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := valid
			tt.mutate(&record)
			assert.Error(t, record.Validate())
		})
	}
}
