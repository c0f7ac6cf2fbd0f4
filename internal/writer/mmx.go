package writer

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/insightdelivered/hsbc-statement-converter/internal/models"
)

// MMXWriter writes the tab separated CSV that MoneyManagerEx imports.
//
// Import settings in MoneyManagerEx: date format "DD Mon YY", delimiter
// tab, "Positive values are deposits", decimal char ".", and one row to
// ignore at the start when the header is written. Columns map to Date,
// Notes, Payee and Amount.
type MMXWriter struct {
	IncludeHeader bool
}

func (w *MMXWriter) Write(out io.Writer, info *models.StatementInfo) error {
	writer := csv.NewWriter(out)
	writer.Comma = '\t'

	if w.IncludeHeader {
		if err := writer.Write([]string{"Date", "Notes", "Payee", "Amount"}); err != nil {
			return fmt.Errorf("failed to write MMX header: %w", err)
		}
	}

	for _, rec := range info.Records {
		row := []string{
			rec.Date,
			string(rec.Type),
			rec.Detail,
			rec.SignedAmount().StringFixed(2),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write MMX row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
