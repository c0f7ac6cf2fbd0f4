package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/insightdelivered/hsbc-statement-converter/internal/models"
)

// CSVWriter writes the generic CSV, tab separated unless told otherwise.
type CSVWriter struct {
	Delimiter       rune
	IncludeHeader   bool
	IncludeMetadata bool
	SpacingColumns  bool
}

// WriteToFile writes the records to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, info *models.StatementInfo) error {
	return WriteToFile(path, w, info)
}

// Write writes the records in CSV format to the given writer.
func (w *CSVWriter) Write(out io.Writer, info *models.StatementInfo) error {
	writer := csv.NewWriter(out)
	if w.Delimiter != 0 {
		writer.Comma = w.Delimiter
	} else {
		writer.Comma = '\t'
	}

	if w.IncludeMetadata {
		for _, kv := range [][2]string{
			{"# Account Holder", info.AccountHolder},
			{"# Account Number", info.AccountNumber},
			{"# Sort Code", info.SortCode},
			{"# Statement Period", info.StatementPeriod},
		} {
			if kv[1] == "" {
				continue
			}
			if err := writer.Write(kv[:]); err != nil {
				return fmt.Errorf("failed to write CSV metadata: %w", err)
			}
		}
	}

	if w.IncludeHeader {
		header := []string{"Date", "Transaction Type", "Transaction Detail", "Paid Out", "Paid In", "Balance"}
		if w.SpacingColumns {
			header = append(header, "space1", "space2", "space3")
		}
		if err := writer.Write(header); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	for _, rec := range info.Records {
		row := []string{
			rec.Date,
			string(rec.Type),
			rec.Detail,
			formatAmount(rec.PaidOut),
			formatAmount(rec.PaidIn),
			formatAmount(rec.Balance),
		}
		if w.SpacingColumns {
			row = append(row,
				spaceWidth(rec.Spacing.BeforeAmount1),
				spaceWidth(rec.Spacing.BeforeAmount2),
				spaceWidth(rec.Spacing.BeforeAmount3),
			)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func spaceWidth(s string) string {
	if s == "" {
		return ""
	}
	return strconv.Itoa(utf8.RuneCountInString(s))
}
