package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/insightdelivered/hsbc-statement-converter/internal/models"
)

func amountText(f models.FieldSet, n int) string {
	amt := f.Amount1
	switch n {
	case 2:
		amt = f.Amount2
	case 3:
		amt = f.Amount3
	}
	if !amt.Valid {
		return ""
	}
	return amt.Decimal.StringFixed(2)
}

func TestSegmenter_Segment(t *testing.T) {
	seg := NewSegmenter(models.DefaultTypeTags())

	tests := []struct {
		name    string
		line    string
		date    string
		typ     models.TypeTag
		detail  string
		amounts [3]string
		gap1    int
		matched bool
	}{
		{
			name:    "dated line with amount and balance",
			line:    "15 Jan 24 DD SKY DIGITAL      45.00     1,189.56",
			date:    "15 Jan 24",
			typ:     models.TypeDD,
			detail:  "SKY DIGITAL",
			amounts: [3]string{"45.00", "1189.56", ""},
			gap1:    6,
			matched: true,
		},
		{
			name:    "single spaced round trip line",
			line:    "01 JAN 24 DD SUPERMARKET 12.34 100.00",
			date:    "01 JAN 24",
			typ:     models.TypeDD,
			detail:  "SUPERMARKET",
			amounts: [3]string{"12.34", "100.00", ""},
			gap1:    1,
			matched: true,
		},
		{
			name:    "undated typed opener",
			line:    "          VIS TESCO STORES 3264",
			typ:     models.TypeVIS,
			detail:  "TESCO STORES 3264",
			matched: true,
		},
		{
			name:    "continuation line",
			line:    "              LONDON",
			detail:  "LONDON",
			matched: true,
		},
		{
			name:    "continuation with amounts",
			line:    "  LONDON 12.34 100.00",
			detail:  "LONDON",
			amounts: [3]string{"12.34", "100.00", ""},
			gap1:    1,
			matched: true,
		},
		{
			name:    "amount only",
			line:    "                         25.99",
			amounts: [3]string{"25.99", "", ""},
			gap1:    25,
			matched: true,
		},
		{
			name:    "reference number stays in details",
			line:    "SO JOHN SMITH REF 123456",
			typ:     models.TypeSO,
			detail:  "JOHN SMITH REF 123456",
			matched: true,
		},
		{
			name:    "distant bare integer is an amount",
			line:    "DD PURE GYM          30",
			typ:     models.TypeDD,
			detail:  "PURE GYM",
			amounts: [3]string{"30.00", "", ""},
			gap1:    10,
			matched: true,
		},
		{
			name:    "contactless marker",
			line:    "02 Feb 24 ))) COSTA COFFEE    3.50",
			date:    "02 Feb 24",
			typ:     models.TypeContactless,
			detail:  "COSTA COFFEE",
			amounts: [3]string{"3.50", "", ""},
			gap1:    4,
			matched: true,
		},
		{
			name:    "four letter month",
			line:    "01 Sept 23 CR SALARY    2,500.00",
			date:    "01 Sept 23",
			typ:     models.TypeCR,
			detail:  "SALARY",
			amounts: [3]string{"2500.00", "", ""},
			gap1:    4,
			matched: true,
		},
		{
			name:    "three amounts",
			line:    "ATM CASH   10.00   20.00   30.00",
			typ:     models.TypeATM,
			detail:  "CASH",
			amounts: [3]string{"10.00", "20.00", "30.00"},
			gap1:    3,
			matched: true,
		},
		{
			name:    "trailing full stop",
			line:    "BP RENT    12.",
			typ:     models.TypeBP,
			detail:  "RENT",
			amounts: [3]string{"12.00", "", ""},
			gap1:    4,
			matched: true,
		},
		{
			name:    "wrapped store number stays in details",
			line:    "          3264",
			detail:  "3264",
			matched: true,
		},
		{
			name:    "bare integer after type stays in details",
			line:    "01 JAN 24 DD 12345",
			date:    "01 JAN 24",
			typ:     models.TypeDD,
			detail:  "12345",
			matched: true,
		},
		{
			name:    "bare integer before amount stays in details",
			line:    "          12          25.99",
			detail:  "12",
			amounts: [3]string{"25.99", "", ""},
			gap1:    10,
			matched: true,
		},
		{
			name:   "date on its own",
			line:   "15 Jan 24",
			detail: "15 Jan 24",
		},
		{
			name:   "nothing recognisable",
			line:   "~~~~ ####",
			detail: "~~~~ ####",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := seg.Segment(tt.line, 7)

			assert.Equal(t, 7, got.Line)
			assert.Equal(t, tt.matched, got.Matched)
			assert.Equal(t, tt.date, got.Date)
			assert.Equal(t, tt.typ, got.Type)
			assert.Equal(t, tt.detail, got.Detail)
			for i, want := range tt.amounts {
				assert.Equal(t, want, amountText(got, i+1), "amount%d", i+1)
			}
			assert.Equal(t, tt.gap1, width(got.SpaceBeforeAmount1))
		})
	}
}

func TestSegmenter_NeverDropsText(t *testing.T) {
	seg := NewSegmenter(models.DefaultTypeTags())

	for _, line := range []string{
		"%%%%",
		"15 Jan 24",
		"VIS",
		"  ---- ",
	} {
		got := seg.Segment(line, 1)
		if got.Detail == "" && got.Date == "" && !got.HasType() && !got.HasAmount() {
			t.Errorf("Segment(%q) lost the line: %+v", line, got)
		}
	}
}

func TestSegmenter_CustomTags(t *testing.T) {
	seg := NewSegmenter([]models.TypeTag{"TFR"})

	got := seg.Segment("TFR SAVINGS   50.00", 1)
	assert.Equal(t, models.TypeTag("TFR"), got.Type)

	got = seg.Segment("DD SKY   45.00", 1)
	assert.False(t, got.HasType())
	assert.True(t, strings.HasPrefix(got.Detail, "DD"))
}
