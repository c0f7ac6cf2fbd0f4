package parser

import "strings"

// Section is one run of transaction lines found between the opening and
// closing balance markers of a page.
type Section struct {
	Page  int
	Lines []string
	// LineNumbers holds the 1-based page line number of each entry in Lines.
	LineNumbers []int
}

// FilterSections returns the transaction sections of one page and every
// line outside them, marker lines included. Together the two partition the
// page. Matching starts outside a section on every page. A section missing
// its closing marker runs to the end of the page; a page without an
// opening marker has no sections.
func FilterSections(page int, lines []string, opening, closing string) ([]Section, []string) {
	var (
		sections []Section
		outside  []string
		current  *Section
	)

	for i, line := range lines {
		if current != nil {
			if strings.Contains(line, closing) {
				sections = appendSection(sections, current)
				current = nil
				outside = append(outside, line)
				continue
			}
			current.Lines = append(current.Lines, line)
			current.LineNumbers = append(current.LineNumbers, i+1)
			continue
		}

		outside = append(outside, line)
		if strings.Contains(line, opening) {
			current = &Section{Page: page}
		}
	}

	if current != nil {
		sections = appendSection(sections, current)
	}
	return sections, outside
}

func appendSection(sections []Section, s *Section) []Section {
	if len(s.Lines) == 0 {
		return sections
	}
	return append(sections, *s)
}
