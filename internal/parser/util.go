package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	// DD Mon YY as HSBC prints it at the start of a line, e.g. "15 Jan 24".
	// The month may be four letters ("Sept") on some statements.
	datePrefixPattern = regexp.MustCompile(`^\s*(\d{2} \w{3,4} \d{2})(?:\s|$)`)

	// Amount-shaped token: 1,234.56 or 25.9 or 100 or 12.
	amountTokenPattern = regexp.MustCompile(`^(?:\d+,)*\d+(?:\.\d{0,2})?$`)

	// Characters a details column is made of.
	detailCharPattern = regexp.MustCompile(`[A-Za-z0-9/.*\-@:]`)

	// Whitespace run followed by a token.
	tokenPattern = regexp.MustCompile(`(\s*)(\S+)`)
)

// parseAmount converts "1,234.56" to a decimal. A trailing full stop left
// by the extractor ("12.") is tolerated.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, ".")
	return decimal.NewFromString(s)
}

// width is the number of characters in a whitespace run; tabs count as one.
func width(s string) int {
	return utf8.RuneCountInString(s)
}

type token struct {
	space string // whitespace run preceding the token
	text  string
}

func tokenize(s string) []token {
	matches := tokenPattern.FindAllStringSubmatch(s, -1)
	toks := make([]token, 0, len(matches))
	for _, m := range matches {
		toks = append(toks, token{space: m[1], text: m[2]})
	}
	return toks
}

// UK account numbers are eight digits, sort codes XX-XX-XX.
var (
	accountNumberPattern = regexp.MustCompile(`\b(\d{8})\b`)
	sortCodePattern      = regexp.MustCompile(`\b(\d{2}-\d{2}-\d{2})\b`)
	// "12 December 2023 to 11 January 2024"; the first year is optional.
	periodPattern = regexp.MustCompile(`(?i)\b(\d{1,2}\s+[a-z]{3,9}(?:\s+\d{4})?)\s+to\s+(\d{1,2}\s+[a-z]{3,9}\s+\d{4})\b`)
)

func findAccountNumber(text string) string {
	return accountNumberPattern.FindString(text)
}

func findSortCode(text string) string {
	return sortCodePattern.FindString(text)
}

func findPeriod(text string) string {
	m := periodPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1] + " to " + m[2]
}

// findNameNearLabel returns the text following the first label found on a
// line, cut at the next wide gap.
func findNameNearLabel(lines []string, labels []string) string {
	for _, line := range lines {
		for _, label := range labels {
			idx := strings.Index(line, label)
			if idx < 0 {
				continue
			}
			rest := strings.TrimSpace(line[idx+len(label):])
			rest = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
			if rest == "" {
				continue
			}
			return strings.TrimSpace(strings.SplitN(rest, "  ", 2)[0])
		}
	}
	return ""
}
