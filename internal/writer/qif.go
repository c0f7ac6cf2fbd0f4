package writer

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/insightdelivered/hsbc-statement-converter/internal/models"
)

// QIFWriter writes a Quicken interchange file for a bank account. The
// HSBC type code goes in the memo line.
type QIFWriter struct {
	IncludeHeader bool
}

func (w *QIFWriter) Write(out io.Writer, info *models.StatementInfo) error {
	bw := bufio.NewWriter(out)

	if w.IncludeHeader {
		fmt.Fprintln(bw, "!Type:Bank")
	}
	for _, rec := range info.Records {
		date, err := qifDate(rec.Date)
		if err != nil {
			return fmt.Errorf("page %d line %d: %w", rec.Page, rec.Line, err)
		}
		fmt.Fprintf(bw, "D%s\n", date)
		fmt.Fprintf(bw, "M%s\n", rec.Type)
		fmt.Fprintf(bw, "T%s\n", rec.SignedAmount().StringFixed(2))
		fmt.Fprintf(bw, "P%s\n", rec.Detail)
		fmt.Fprintln(bw, "^")
	}

	return bw.Flush()
}

// qifDate turns "15 Jan 24" into "15/01/24". A four letter month such as
// "Sept" is cut to three letters first.
func qifDate(date string) (string, error) {
	parts := strings.Fields(date)
	if len(parts) == 3 && len(parts[1]) > 3 {
		parts[1] = parts[1][:3]
	}
	t, err := time.Parse("02 Jan 06", strings.Join(parts, " "))
	if err != nil {
		return "", fmt.Errorf("invalid statement date %q: %w", date, err)
	}
	return t.Format("02/01/06"), nil
}
