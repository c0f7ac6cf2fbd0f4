package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/hsbc-statement-converter/internal/models"
)

func datedRecords(dates ...string) []models.Record {
	recs := make([]models.Record, len(dates))
	for i, d := range dates {
		recs[i] = models.Record{Date: d, Line: i + 1}
	}
	return recs
}

func recordDates(recs []models.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Date
	}
	return out
}

func TestPropagateDates(t *testing.T) {
	tests := []struct {
		name     string
		dates    []string
		expected []string
	}{
		{
			name:     "carry forward",
			dates:    []string{"01 Jan 24", "", "", "03 Jan 24", ""},
			expected: []string{"01 Jan 24", "01 Jan 24", "01 Jan 24", "03 Jan 24", "03 Jan 24"},
		},
		{
			name:     "dated records are kept",
			dates:    []string{"05 Jan 24", "06 Jan 24", ""},
			expected: []string{"05 Jan 24", "06 Jan 24", "06 Jan 24"},
		},
		{
			name:     "empty",
			dates:    []string{},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := datedRecords(tt.dates...)
			require.NoError(t, propagateDates(recs))
			assert.Equal(t, tt.expected, recordDates(recs))
		})
	}
}

func TestPropagateDates_Idempotent(t *testing.T) {
	recs := datedRecords("01 Jan 24", "", "02 Jan 24", "")
	require.NoError(t, propagateDates(recs))
	once := recordDates(recs)

	require.NoError(t, propagateDates(recs))
	assert.Equal(t, once, recordDates(recs))
}

func TestPropagateDates_MissingOpeningDate(t *testing.T) {
	recs := datedRecords("", "02 Jan 24")
	err := propagateDates(recs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingOpeningDate))
	assert.Contains(t, err.Error(), "line 1")
}
