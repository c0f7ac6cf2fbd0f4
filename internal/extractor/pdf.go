package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
)

// Extraction methods for PDFSource.
const (
	MethodAuto      = "auto"
	MethodPdftotext = "pdftotext"
	MethodLibrary   = "library"
)

// DefaultCharWidth is the width in PDF points that one character column
// stands for when a layout is rebuilt from glyph positions. HSBC statements
// are set at about this pitch, which keeps rebuilt gaps close to the ones
// pdftotext -layout prints.
const DefaultCharWidth = 4.0

// ErrUnreadable is returned when no method produced text that looks like a
// bank statement.
var ErrUnreadable = errors.New("no readable text could be extracted from PDF; the file may be image-based or use custom font encodings")

// Source produces the text lines of each page of a statement, in order,
// with the horizontal layout kept as runs of spaces.
type Source interface {
	Pages(ctx context.Context) ([][]string, error)
}

// PDFSource reads a statement PDF.
//
// pdftotext -layout is preferred since the engine's VIS threshold was
// fitted against its output. Without poppler-utils the layout is rebuilt
// from glyph positions reported by ledongthuc/pdf.
type PDFSource struct {
	Path      string
	Method    string
	CharWidth float64
	Log       zerolog.Logger
}

// NewPDFSource returns a source for path using the automatic method.
func NewPDFSource(path string, log zerolog.Logger) *PDFSource {
	return &PDFSource{Path: path, Method: MethodAuto, CharWidth: DefaultCharWidth, Log: log}
}

func (s *PDFSource) Pages(ctx context.Context) ([][]string, error) {
	switch s.Method {
	case MethodPdftotext:
		pages, err := extractWithPdftotext(ctx, s.Path)
		if err != nil {
			return nil, err
		}
		return checkReadable(pages)
	case MethodLibrary:
		pages, err := extractWithLibrary(s.Path, s.charWidth())
		if err != nil {
			return nil, err
		}
		return checkReadable(pages)
	case MethodAuto, "":
	default:
		return nil, fmt.Errorf("unknown extraction method %q", s.Method)
	}

	pages, popplerErr := extractWithPdftotext(ctx, s.Path)
	if popplerErr == nil && isReadableText(pages) {
		s.Log.Debug().Str("file", s.Path).Int("pages", len(pages)).Msg("extracted with pdftotext")
		return pages, nil
	}
	if popplerErr != nil {
		s.Log.Debug().Err(popplerErr).Msg("pdftotext unavailable, rebuilding layout from glyph positions")
	}

	pages, libErr := extractWithLibrary(s.Path, s.charWidth())
	if libErr == nil && isReadableText(pages) {
		s.Log.Debug().Str("file", s.Path).Int("pages", len(pages)).Msg("extracted with pdf library")
		return pages, nil
	}

	if libErr != nil {
		return nil, fmt.Errorf("PDF text extraction failed: %w", libErr)
	}
	return nil, ErrUnreadable
}

func (s *PDFSource) charWidth() float64 {
	if s.CharWidth <= 0 {
		return DefaultCharWidth
	}
	return s.CharWidth
}

func checkReadable(pages [][]string) ([][]string, error) {
	if !isReadableText(pages) {
		return nil, ErrUnreadable
	}
	return pages, nil
}

// extractWithPdftotext runs poppler's pdftotext in layout mode over the
// whole document. Pages come back separated by form feeds.
func extractWithPdftotext(ctx context.Context, filePath string) ([][]string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return nil, fmt.Errorf("pdftotext not available: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "pdftotext", "-layout", filePath, "-")
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	pages := SplitPages(string(out), "\f")
	if len(pages) == 0 {
		return nil, errors.New("pdftotext produced no output")
	}
	return pages, nil
}

// extractWithLibrary rebuilds each page's layout from the position of
// every glyph.
func extractWithLibrary(filePath string, charWidth float64) (pages [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	f, r, openErr := pdf.Open(filePath)
	if openErr != nil {
		return nil, openErr
	}
	defer f.Close()

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, errors.New("PDF has no pages")
	}

	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, nil)
			continue
		}
		pages = append(pages, layoutLines(page.Content().Text, charWidth))
	}
	return pages, nil
}

// layoutLines groups glyphs into rows by Y and lays each row out left to
// right, turning the horizontal distance between glyphs into spaces at
// charWidth points per space.
func layoutLines(texts []pdf.Text, charWidth float64) []string {
	rowMap := make(map[int][]pdf.Text)
	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		yKey := int(math.Round(t.Y))
		rowMap[yKey] = append(rowMap[yKey], t)
	}

	// PDF Y grows upwards.
	yKeys := make([]int, 0, len(rowMap))
	for y := range rowMap {
		yKeys = append(yKeys, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(yKeys)))

	lines := make([]string, 0, len(yKeys))
	for _, y := range yKeys {
		items := rowMap[y]
		sort.SliceStable(items, func(a, b int) bool {
			return items[a].X < items[b].X
		})

		var sb strings.Builder
		end := 0.0
		for _, item := range items {
			if gap := int(math.Round((item.X - end) / charWidth)); gap > 0 {
				sb.WriteString(strings.Repeat(" ", gap))
			}
			sb.WriteString(item.S)
			end = item.X + item.W
		}
		lines = append(lines, strings.TrimRight(sb.String(), " "))
	}
	return lines
}

// textQuality returns the ratio of basic ASCII readable characters (a-z, A-Z,
// 0-9, common punctuation, whitespace) to total characters. Returns 0.0-1.0.
// unicode.IsLetter is too broad: it matches the accented characters that
// identity-encoded fonts decode into.
func textQuality(text string) float64 {
	total := 0
	readable := 0
	for _, r := range text {
		total++
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || unicode.IsSpace(r) ||
			strings.ContainsRune(".,-/:;()'\"£$€%&@#!?+=*", r) {
			readable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// commonWords appear in virtually all bank statements. Text containing
// none of them is likely garbage.
var commonWords = []string{
	"bank", "account", "balance", "date", "payment", "statement",
	"total", "amount", "credit", "debit", "transaction", "sort code",
	"money", "paid", "opening", "closing", "transfer", "direct",
	"number", "page", "period",
}

func containsCommonWords(text string) bool {
	lower := strings.ToLower(text)
	for _, word := range commonWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// isReadableText requires more than 50 non-space characters, over 60%
// readable ASCII and at least one common statement word.
func isReadableText(pages [][]string) bool {
	text := JoinPages(pages, "\n")
	if len(strings.Join(strings.Fields(text), "")) <= 50 {
		return false
	}
	if textQuality(text) <= 0.6 {
		return false
	}
	return containsCommonWords(text)
}

// IsReadableText is the exported version for use by other packages.
func IsReadableText(pages [][]string) bool {
	return isReadableText(pages)
}
