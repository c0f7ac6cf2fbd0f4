package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_SignedAmount(t *testing.T) {
	out := decimal.NewNullDecimal(decimal.RequireFromString("25.99"))
	in := decimal.NewNullDecimal(decimal.RequireFromString("100"))

	tests := []struct {
		name     string
		rec      Record
		expected string
	}{
		{"paid out", Record{PaidOut: out}, "-25.99"},
		{"paid in", Record{PaidIn: in}, "100"},
		{"neither", Record{}, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.rec.SignedAmount().String())
		})
	}
}

func TestFieldSet_Has(t *testing.T) {
	var f FieldSet
	assert.False(t, f.HasType())
	assert.False(t, f.HasAmount())

	f.Type = TypeDD
	f.Amount2 = decimal.NewNullDecimal(decimal.NewFromInt(1))
	assert.True(t, f.HasType())
	assert.True(t, f.HasAmount())
}

func TestStatementInfo_CountDiagnostics(t *testing.T) {
	info := &StatementInfo{Diagnostics: []Diagnostic{
		{Kind: KindIncompleteTransaction},
		{Kind: KindAmbiguousColumn},
		{Kind: KindIncompleteTransaction},
	}}
	assert.Equal(t, 2, info.CountDiagnostics(KindIncompleteTransaction))
	assert.Equal(t, 0, info.CountDiagnostics(KindMissingOpeningDate))
}

func TestRecord_JSON(t *testing.T) {
	rec := Record{
		Date:    "15 Jan 24",
		Type:    TypeVIS,
		Detail:  "TESCO",
		PaidOut: decimal.NewNullDecimal(decimal.RequireFromString("25.99")),
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "25.99", got["paidOut"])
	assert.Nil(t, got["paidIn"])
	assert.Equal(t, "VIS", got["type"])
}

func TestDefaultTypeTags(t *testing.T) {
	tags := DefaultTypeTags()
	assert.Len(t, tags, 8)
	assert.Contains(t, tags, TypeContactless)
}
