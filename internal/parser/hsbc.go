package parser

import (
	"strings"

	"github.com/insightdelivered/hsbc-statement-converter/internal/models"
)

// Segmenter splits a transaction-section line into its fields.
//
// HSBC statement lines look like this once extracted with layout:
//
//	15 Jan 24 DD SKY DIGITAL                           45.00               1,189.56
//	          VIS TESCO STORES 3264
//	              LONDON                               25.99
//
// Column positions move with the length of the details text, so only the
// order of the parts is relied upon: date, type, details, then up to three
// amounts. The whitespace run before each amount is kept verbatim; the
// column resolver uses its width.
type Segmenter struct {
	types map[string]models.TypeTag
}

const (
	maxAmounts = 3
	// Words inside the details column are at most this far apart. A plain
	// integer further away than that is read as an amount.
	maxDetailGap = 5
)

// NewSegmenter returns a segmenter recognising the given type codes.
func NewSegmenter(tags []models.TypeTag) *Segmenter {
	types := make(map[string]models.TypeTag, len(tags))
	for _, t := range tags {
		types[string(t)] = t
	}
	return &Segmenter{types: types}
}

// Segment produces exactly one FieldSet for the line. A line that fits no
// part of the grammar comes back unmatched with the raw text as Detail.
func (s *Segmenter) Segment(line string, lineNo int) models.FieldSet {
	fs := models.FieldSet{Line: lineNo, Matched: true}

	rest := line
	if m := datePrefixPattern.FindStringSubmatchIndex(rest); m != nil {
		fs.Date = rest[m[2]:m[3]]
		rest = rest[m[3]:]
	}

	toks := tokenize(rest)
	if len(toks) > 0 {
		if tag, ok := s.types[toks[0].text]; ok {
			fs.Type = tag
			toks = toks[1:]
		}
	}

	n := trailingAmounts(toks)
	// Details are required. A bare integer with nothing before it is a
	// wrapped store or reference number, not an amount.
	if n > 0 && n == len(toks) && !strings.Contains(toks[0].text, ".") {
		n--
	}
	details, amounts := toks[:len(toks)-n], toks[len(toks)-n:]

	words := make([]string, 0, len(details))
	for _, t := range details {
		words = append(words, t.text)
	}
	fs.Detail = strings.Join(words, " ")

	// Nothing recognisable at all: no date, type, amount or details text.
	if fs.Date == "" && !fs.HasType() && n == 0 && !detailCharPattern.MatchString(fs.Detail) {
		return unmatched(line, lineNo)
	}
	// A date on its own line carries no transaction.
	if fs.Date != "" && !fs.HasType() && n == 0 && fs.Detail == "" {
		return unmatched(line, lineNo)
	}

	for i, t := range amounts {
		amt, err := parseAmount(t.text)
		if err != nil {
			return unmatched(line, lineNo)
		}
		switch i {
		case 0:
			fs.SpaceBeforeAmount1 = t.space
			fs.Amount1.Decimal, fs.Amount1.Valid = amt, true
		case 1:
			fs.SpaceBeforeAmount2 = t.space
			fs.Amount2.Decimal, fs.Amount2.Valid = amt, true
		case 2:
			fs.SpaceBeforeAmount3 = t.space
			fs.Amount3.Decimal, fs.Amount3.Valid = amt, true
		}
	}

	return fs
}

// trailingAmounts counts the amount tokens at the end of toks, at most
// maxAmounts. Scanning stops at the first token that is not an amount.
func trailingAmounts(toks []token) int {
	n := 0
	for n < maxAmounts && n < len(toks) {
		i := len(toks) - 1 - n
		if !isAmountToken(toks[i]) {
			break
		}
		n++
	}
	return n
}

// isAmountToken decides whether a token is an amount. Tokens with a
// decimal point always are; a bare integer only when it sits further from
// the previous word than details words ever do, so that reference numbers
// at the end of a description stay in the description.
func isAmountToken(t token) bool {
	if !amountTokenPattern.MatchString(t.text) {
		return false
	}
	if strings.Contains(t.text, ".") {
		return true
	}
	return width(t.space) > maxDetailGap
}

func unmatched(line string, lineNo int) models.FieldSet {
	return models.FieldSet{Detail: line, Line: lineNo}
}
