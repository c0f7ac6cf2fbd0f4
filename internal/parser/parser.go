package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/insightdelivered/hsbc-statement-converter/internal/models"
)

const (
	DefaultOpeningMarker = "BALANCE BROUGHT FORWARD"
	DefaultClosingMarker = "BALANCE CARRIED FORWARD"

	// DefaultVISThreshold is the gap width, in characters, at which a VIS
	// amount moves from the paid out to the paid in column. It was fitted
	// against layout text produced by pdftotext and is specific to the
	// extractor: rebuilt layouts with a different character width need a
	// different value.
	DefaultVISThreshold  = 103
	DefaultAmbiguityBand = 3
	DefaultWorkers       = 4
)

// ErrMissingOpeningDate is returned for a page whose transaction section
// starts with an undated record and no date on the opening marker.
var ErrMissingOpeningDate = errors.New("transaction section has no opening date")

// PageError reports a page whose records were discarded.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// Options configures the engine. Build it once and pass it to NewEngine.
type Options struct {
	VISThreshold int
	// AmbiguityBand is how close to VISThreshold a gap may be before the
	// placement is flagged for review.
	AmbiguityBand int
	TypeTags      []models.TypeTag
	OpeningMarker string
	ClosingMarker string
	// MaxContinuationLines caps the details-only lines between a typed line
	// and its amounts. Zero means no cap.
	MaxContinuationLines int
	// Workers is the number of pages processed in parallel.
	Workers int
}

// DefaultOptions returns the settings that match HSBC UK statements
// extracted with pdftotext -layout.
func DefaultOptions() Options {
	return Options{
		VISThreshold:  DefaultVISThreshold,
		AmbiguityBand: DefaultAmbiguityBand,
		TypeTags:      models.DefaultTypeTags(),
		OpeningMarker: DefaultOpeningMarker,
		ClosingMarker: DefaultClosingMarker,
		Workers:       DefaultWorkers,
	}
}

// Validate checks the options for values the engine cannot work with.
func (o Options) Validate() error {
	switch {
	case o.VISThreshold <= 0:
		return fmt.Errorf("VIS threshold must be positive, got %d", o.VISThreshold)
	case o.AmbiguityBand < 0:
		return fmt.Errorf("ambiguity band must not be negative, got %d", o.AmbiguityBand)
	case len(o.TypeTags) == 0:
		return errors.New("at least one type tag is required")
	case strings.TrimSpace(o.OpeningMarker) == "" || strings.TrimSpace(o.ClosingMarker) == "":
		return errors.New("section markers must not be empty")
	case o.MaxContinuationLines < 0:
		return fmt.Errorf("max continuation lines must not be negative, got %d", o.MaxContinuationLines)
	case o.Workers <= 0:
		return fmt.Errorf("workers must be positive, got %d", o.Workers)
	}
	for _, t := range o.TypeTags {
		if strings.TrimSpace(string(t)) == "" || strings.ContainsAny(string(t), " \t") {
			return fmt.Errorf("invalid type tag %q", t)
		}
	}
	return nil
}

// Engine rebuilds the transaction ledger from the text lines of HSBC
// statement pages. It holds no per-document state and is safe for
// concurrent use.
type Engine struct {
	opts      Options
	segmenter *Segmenter
	columns   columnResolver
	log       zerolog.Logger
}

// NewEngine validates opts and returns an engine logging to log.
func NewEngine(opts Options, log zerolog.Logger) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine options: %w", err)
	}
	return &Engine{
		opts:      opts,
		segmenter: NewSegmenter(opts.TypeTags),
		columns:   columnResolver{threshold: opts.VISThreshold, band: opts.AmbiguityBand},
		log:       log,
	}, nil
}

// Options returns the settings the engine was built with.
func (e *Engine) Options() Options {
	return e.opts
}

// PageResult is the outcome of one page.
type PageResult struct {
	Page        int
	Records     []models.Record
	Diagnostics []models.Diagnostic
	// SectionLines are the raw lines inside the page's transaction sections.
	SectionLines []string
	// Outside are the lines outside any section, markers included.
	Outside []string
	// Err is a *PageError when the page's records were discarded.
	Err error
}

// ProcessPage runs one page through the whole pipeline. page is 1-based.
func (e *Engine) ProcessPage(page int, lines []string) PageResult {
	normalized := make([]string, len(lines))
	for i, l := range lines {
		normalized[i] = normalizeLine(l)
	}

	sections, outside := FilterSections(page, normalized, e.opts.OpeningMarker, e.opts.ClosingMarker)
	res := PageResult{Page: page, Outside: outside}

	for _, sec := range sections {
		res.SectionLines = append(res.SectionLines, sec.Lines...)

		records, diags, err := e.processSection(sec)
		res.Diagnostics = append(res.Diagnostics, diags...)
		if err != nil {
			e.log.Error().Err(err).Int("page", page).Msg("page discarded")
			res.Records = nil
			res.Diagnostics = []models.Diagnostic{{
				Kind:    models.KindMissingOpeningDate,
				Page:    page,
				Line:    firstLine(sec),
				Message: err.Error(),
			}}
			res.Err = &PageError{Page: page, Err: err}
			return res
		}
		res.Records = append(res.Records, records...)
	}

	for _, d := range res.Diagnostics {
		if d.Kind == models.KindStructuralMismatch {
			continue
		}
		e.log.Warn().Str("kind", string(d.Kind)).Int("page", d.Page).Int("line", d.Line).Msg(d.Message)
	}
	e.log.Debug().
		Int("page", page).
		Int("sections", len(sections)).
		Int("lines", len(res.SectionLines)).
		Int("records", len(res.Records)).
		Msg("page processed")

	return res
}

// processSection segments, merges, places and dates the lines of one
// section. Nothing is carried between sections.
func (e *Engine) processSection(sec Section) ([]models.Record, []models.Diagnostic, error) {
	var diags []models.Diagnostic

	fields := make([]models.FieldSet, 0, len(sec.Lines))
	for i, line := range sec.Lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fs := e.segmenter.Segment(line, sec.LineNumbers[i])
		if !fs.Matched {
			diags = append(diags, models.Diagnostic{
				Kind:    models.KindStructuralMismatch,
				Page:    sec.Page,
				Line:    fs.Line,
				Message: fmt.Sprintf("line matched no transaction structure: %q", strings.TrimSpace(line)),
			})
		}
		fields = append(fields, fs)
	}

	merged, dropped := reduceSplitLines(fields, e.opts.MaxContinuationLines)
	for _, d := range dropped {
		diags = append(diags, models.Diagnostic{
			Kind:    models.KindIncompleteTransaction,
			Page:    sec.Page,
			Line:    d.opener.Line,
			Message: fmt.Sprintf("dropped %s %q: %s", d.opener.Type, d.opener.Detail, d.reason),
		})
	}

	records := make([]models.Record, 0, len(merged))
	for _, f := range merged {
		rec, ds := e.columns.resolve(f, sec.Page)
		records = append(records, rec)
		diags = append(diags, ds...)
	}

	if err := propagateDates(records); err != nil {
		return nil, diags, err
	}
	return records, diags, nil
}

// Result is the outcome of a whole document.
type Result struct {
	Statement *models.StatementInfo
	// PageErrors lists the pages whose records were discarded.
	PageErrors []*PageError
}

// Err joins the page errors, or returns nil when every page succeeded.
func (r *Result) Err() error {
	errs := make([]error, 0, len(r.PageErrors))
	for _, pe := range r.PageErrors {
		errs = append(errs, pe)
	}
	return errors.Join(errs...)
}

// Parse processes every page, up to Options.Workers at a time, and
// reassembles the results in page order. A failed page never stops the
// others; the returned error is only set when ctx is cancelled.
func (e *Engine) Parse(ctx context.Context, pages [][]string) (*Result, error) {
	results := make([]PageResult, len(pages))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, lines := range pages {
		i, lines := i, lines
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = e.ProcessPage(i+1, lines)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parse statement: %w", err)
	}

	info := &models.StatementInfo{}
	res := &Result{Statement: info}
	var outside []string
	for _, pr := range results {
		info.Records = append(info.Records, pr.Records...)
		info.Diagnostics = append(info.Diagnostics, pr.Diagnostics...)
		info.SectionLines = append(info.SectionLines, pr.SectionLines)
		outside = append(outside, pr.Outside...)
		if pr.Err != nil {
			var pe *PageError
			if errors.As(pr.Err, &pe) {
				res.PageErrors = append(res.PageErrors, pe)
			}
			info.FailedPages = append(info.FailedPages, models.PageFailure{Page: pr.Page, Reason: pr.Err.Error()})
		}
	}
	fillMetadata(info, outside)

	e.log.Info().
		Int("pages", len(pages)).
		Int("records", len(info.Records)).
		Int("incomplete", info.CountDiagnostics(models.KindIncompleteTransaction)).
		Int("ambiguous", info.CountDiagnostics(models.KindAmbiguousColumn)).
		Int("failed_pages", len(info.FailedPages)).
		Msg("statement parsed")

	return res, nil
}

// fillMetadata reads the account details from the lines around the
// transaction sections.
func fillMetadata(info *models.StatementInfo, outside []string) {
	text := strings.Join(outside, "\n")
	info.AccountNumber = findAccountNumber(text)
	info.SortCode = findSortCode(text)
	info.StatementPeriod = findPeriod(text)
	info.AccountHolder = findNameNearLabel(outside, []string{"Account Name", "Account name", "Account holder"})
}

// LooksLikeHSBC reports whether the pages carry an HSBC identifier or a
// transaction section marker. It is a hint for callers to warn on, not a
// reason to refuse a document.
func LooksLikeHSBC(pages [][]string, opts Options) bool {
	needles := []string{"HSBC", "HSBC.CO.UK", strings.ToUpper(opts.OpeningMarker)}
	for _, page := range pages {
		for _, line := range page {
			upper := strings.ToUpper(line)
			for _, n := range needles {
				if n != "" && strings.Contains(upper, n) {
					return true
				}
			}
		}
	}
	return false
}

// normalizeLine cleans up common PDF extraction artifacts. Leading
// whitespace is kept since amount placement depends on it.
func normalizeLine(line string) string {
	line = strings.ReplaceAll(line, "\u200B", "")
	line = strings.ReplaceAll(line, "\u00A0", " ")
	line = strings.ReplaceAll(line, "\r", "")
	return strings.TrimRight(line, " \t")
}

func firstLine(sec Section) int {
	if len(sec.LineNumbers) == 0 {
		return 0
	}
	return sec.LineNumbers[0]
}
