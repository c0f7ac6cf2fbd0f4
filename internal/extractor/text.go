package extractor

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// PageBreak separates pages in text pasted or uploaded by API clients.
const PageBreak = "\n---PAGE_BREAK---\n"

// TextSource serves pages from text that was extracted elsewhere.
type TextSource struct {
	Text string
	// Separator splits Text into pages. Empty means form feed, the way
	// pdftotext separates pages.
	Separator string
}

func (s TextSource) Pages(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sep := s.Separator
	if sep == "" {
		sep = "\f"
	}
	return SplitPages(s.Text, sep), nil
}

// ReadTextFile returns a source for a text file written by pdftotext
// -layout or a previous raw export.
func ReadTextFile(path string) (TextSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TextSource{}, fmt.Errorf("read text file: %w", err)
	}
	text := string(data)
	sep := "\f"
	if strings.Contains(text, PageBreak) {
		sep = PageBreak
	}
	return TextSource{Text: text, Separator: sep}, nil
}

// SplitPages splits text into pages on sep and each page into lines.
// Leading whitespace is kept. Pages holding only whitespace are dropped,
// which removes the empty page pdftotext leaves after the last form feed.
func SplitPages(text, sep string) [][]string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var pages [][]string
	for _, chunk := range strings.Split(text, sep) {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		lines := strings.Split(strings.TrimRight(chunk, "\n"), "\n")
		pages = append(pages, lines)
	}
	return pages
}

// JoinPages is the inverse of SplitPages.
func JoinPages(pages [][]string, sep string) string {
	chunks := make([]string, len(pages))
	for i, p := range pages {
		chunks[i] = strings.Join(p, "\n")
	}
	return strings.Join(chunks, sep)
}
