package parser

import (
	"fmt"

	"github.com/insightdelivered/hsbc-statement-converter/internal/models"
)

// propagateDates fills in the date of every undated record from the record
// before it. HSBC prints the date only on the first transaction of each
// day. The first record of a section must be dated; the date printed on
// the opening balance line does not count.
//
// Running it on an already dated sequence changes nothing.
func propagateDates(records []models.Record) error {
	last := ""
	for i := range records {
		if records[i].Date == "" {
			if last == "" {
				return fmt.Errorf("line %d: %w", records[i].Line, ErrMissingOpeningDate)
			}
			records[i].Date = last
		}
		last = records[i].Date
	}
	return nil
}
