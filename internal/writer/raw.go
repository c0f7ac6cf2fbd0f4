package writer

import (
	"bufio"
	"fmt"
	"io"

	"github.com/insightdelivered/hsbc-statement-converter/internal/models"
)

// RawWriter writes the transaction-section lines exactly as extracted, one
// per line. It is meant for checking what the engine was given.
type RawWriter struct{}

func (w *RawWriter) Write(out io.Writer, info *models.StatementInfo) error {
	bw := bufio.NewWriter(out)
	for _, page := range info.SectionLines {
		for _, line := range page {
			fmt.Fprintln(bw, line)
		}
	}
	return bw.Flush()
}
