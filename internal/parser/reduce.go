package parser

import (
	"strings"

	"github.com/insightdelivered/hsbc-statement-converter/internal/models"
)

// incomplete is a typed line whose amounts were never found.
type incomplete struct {
	opener models.FieldSet
	reason string
}

// reduceSplitLines rejoins transactions the statement printed over several
// lines. The opening line carries the date and type, the last one the
// amounts, and any lines between them more details text:
//
//	VIS TESCO STORES 3264      <- opener: type, no amount
//	    LONDON                 <- details only
//	    GB          25.99      <- closes the transaction
//
// A line with amounts is complete by itself. Details-only lines with no
// open transaction are dropped. An opener is abandoned when another typed
// line or the end of the section comes before its amounts. It is also
// abandoned after more than maxContinuation details-only lines (when
// positive), and then its remaining lines up to and including the amount
// line go with it.
func reduceSplitLines(fields []models.FieldSet, maxContinuation int) ([]models.FieldSet, []incomplete) {
	var (
		merged  []models.FieldSet
		dropped []incomplete
	)

	for i := 0; i < len(fields); {
		f := fields[i]
		switch {
		case f.HasAmount():
			merged = append(merged, f)
			i++
		case f.HasType():
			rec, next, reason := mergePending(fields, i, maxContinuation)
			if reason != "" {
				dropped = append(dropped, incomplete{opener: f, reason: reason})
			} else {
				merged = append(merged, rec)
			}
			i = next
		default:
			i++
		}
	}

	return merged, dropped
}

// mergePending scans forward from the opener at fields[start]. It returns
// the merged FieldSet, the index to resume at, and a non-empty reason when
// the opener had to be abandoned.
func mergePending(fields []models.FieldSet, start, maxContinuation int) (models.FieldSet, int, string) {
	opener := fields[start]
	details := []string{opener.Detail}

	for j := start + 1; j < len(fields); j++ {
		next := fields[j]
		switch {
		case next.HasType():
			return models.FieldSet{}, j, "next transaction started before any amount"
		case next.HasAmount():
			merged := next
			merged.Date = opener.Date
			merged.Type = opener.Type
			merged.Line = opener.Line
			merged.Matched = true
			merged.Detail = joinDetails(append(details, next.Detail))
			return merged, j + 1, ""
		}

		details = append(details, next.Detail)
		if maxContinuation > 0 && j-start > maxContinuation {
			return models.FieldSet{}, skipRemainder(fields, j+1), "too many continuation lines"
		}
	}

	return models.FieldSet{}, len(fields), "section ended before any amount"
}

// skipRemainder returns the index after the rest of an abandoned
// transaction: its remaining details lines and the amount line closing it.
// It stops before the next typed line.
func skipRemainder(fields []models.FieldSet, from int) int {
	for j := from; j < len(fields); j++ {
		switch {
		case fields[j].HasType():
			return j
		case fields[j].HasAmount():
			return j + 1
		}
	}
	return len(fields)
}

func joinDetails(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
