package writer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/hsbc-statement-converter/internal/models"
)

// Writer serializes the records of a parsed statement.
type Writer interface {
	Write(out io.Writer, info *models.StatementInfo) error
}

// Format names an output format.
type Format string

const (
	FormatCSV Format = "csv"
	FormatMMX Format = "mmx"
	FormatQIF Format = "qif"
	FormatRaw Format = "raw"
)

type formatLayout struct {
	dir      string
	ext      string
	combined string
}

var layouts = map[Format]formatLayout{
	FormatCSV: {dir: "CSV", ext: ".csv", combined: "HSBC_transactions_combined.csv"},
	FormatMMX: {dir: "MMX_CSV", ext: "-mmx.csv", combined: "HSBC_transactions_combined.mmx"},
	FormatQIF: {dir: "QIF", ext: ".qif", combined: "HSBC_transactions_combined.qif"},
	FormatRaw: {dir: "RAW", ext: ".txt", combined: "HSBC_raw_transactions_combined.txt"},
}

// AllFormats returns every supported format in output order.
func AllFormats() []Format {
	return []Format{FormatRaw, FormatCSV, FormatMMX, FormatQIF}
}

// ParseFormat accepts a format name in any case.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := layouts[f]; !ok {
		return "", fmt.Errorf("unsupported output format %q (supported: csv, mmx, qif, raw)", s)
	}
	return f, nil
}

// Dir is the sub folder of the output directory the format is written to.
func (f Format) Dir() string { return layouts[f].dir }

// Ext is appended to the input's base name.
func (f Format) Ext() string { return layouts[f].ext }

// CombinedName is the file all inputs are appended to in combine mode.
func (f Format) CombinedName() string { return layouts[f].combined }

// Options controls the output variants.
type Options struct {
	// Delimiter separates CSV fields. Zero means tab.
	Delimiter rune
	// IncludeHeader writes the column header row of the generic CSV.
	IncludeHeader bool
	// IncludeMetadata writes "# Account Number" style rows above it.
	IncludeMetadata bool
	// MMXHeader writes the column header row of the MoneyManagerEx CSV.
	MMXHeader bool
	// SpacingColumns adds the width of the gap before each amount to the
	// generic CSV, for tuning the VIS threshold.
	SpacingColumns bool

	appending bool
}

// DefaultOptions matches the files the converter has always produced.
func DefaultOptions() Options {
	return Options{Delimiter: '\t', IncludeHeader: true, MMXHeader: true}
}

func (o Options) delimiter() rune {
	if o.Delimiter == 0 {
		return '\t'
	}
	return o.Delimiter
}

// ParseDelimiter maps a config value to a delimiter rune.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tab", `\t`:
		return '\t', nil
	case "comma", ",":
		return ',', nil
	case "semicolon", ";":
		return ';', nil
	}
	return 0, fmt.Errorf("unsupported delimiter %q (supported: tab, comma, semicolon)", s)
}

// withoutHeaders returns options for appending to a file that already has
// its headers.
func (o Options) withoutHeaders() Options {
	o.IncludeHeader = false
	o.IncludeMetadata = false
	o.MMXHeader = false
	o.appending = true
	return o
}

// New returns the writer for format.
func New(format Format, opts Options) (Writer, error) {
	switch format {
	case FormatCSV:
		return &CSVWriter{
			Delimiter:       opts.delimiter(),
			IncludeHeader:   opts.IncludeHeader,
			IncludeMetadata: opts.IncludeMetadata,
			SpacingColumns:  opts.SpacingColumns,
		}, nil
	case FormatMMX:
		return &MMXWriter{IncludeHeader: opts.MMXHeader}, nil
	case FormatQIF:
		return &QIFWriter{IncludeHeader: !opts.appending}, nil
	case FormatRaw:
		return &RawWriter{}, nil
	}
	return nil, fmt.Errorf("unsupported output format %q", format)
}

// OutputPath is where the file for one input goes:
// <dir>/<format dir>/<base><format ext>.
func OutputPath(dir string, format Format, inputPath string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(dir, format.Dir(), base+format.Ext())
}

// WriteToFile writes info to path, creating parent folders as needed.
func WriteToFile(path string, w Writer, info *models.StatementInfo) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output folder for %q: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	if err := w.Write(f, info); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Combiner appends every statement of a batch to one file per format.
// Headers are written once, with the first statement.
type Combiner struct {
	dir     string
	opts    Options
	started map[Format]bool
}

// NewCombiner removes combined files left by an earlier run so that a
// batch never appends to stale data. Combined files mix accounts, so they
// carry no metadata rows.
func NewCombiner(dir string, formats []Format, opts Options) (*Combiner, error) {
	opts.IncludeMetadata = false
	for _, f := range formats {
		path := CombinedPath(dir, f)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove old combined file %q: %w", path, err)
		}
	}
	return &Combiner{dir: dir, opts: opts, started: make(map[Format]bool)}, nil
}

// CombinedPath is <dir>/<format dir>/<combined name>.
func CombinedPath(dir string, format Format) string {
	return filepath.Join(dir, format.Dir(), format.CombinedName())
}

// Append adds info to the combined file of format and returns its path.
func (c *Combiner) Append(format Format, info *models.StatementInfo) (string, error) {
	opts := c.opts
	if c.started[format] {
		opts = opts.withoutHeaders()
	}
	w, err := New(format, opts)
	if err != nil {
		return "", err
	}

	path := CombinedPath(c.dir, format)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output folder for %q: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to open combined file %q: %w", path, err)
	}
	if err := w.Write(f, info); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	c.started[format] = true
	return path, nil
}

func formatAmount(amount decimal.NullDecimal) string {
	if !amount.Valid {
		return ""
	}
	return amount.Decimal.StringFixed(2)
}
