package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/insightdelivered/hsbc-statement-converter/internal/config"
	"github.com/insightdelivered/hsbc-statement-converter/internal/extractor"
	"github.com/insightdelivered/hsbc-statement-converter/internal/models"
	"github.com/insightdelivered/hsbc-statement-converter/internal/parser"
	"github.com/insightdelivered/hsbc-statement-converter/internal/writer"
)

var convertFlags struct {
	outDir        string
	formats       []string
	combine       bool
	visThreshold  int
	workers       int
	method        string
	delimiter     string
	noHeader      bool
	metadata      bool
	spacing       bool
	maxContinuing int
}

var convertCmd = &cobra.Command{
	Use:   "convert [flags] <input.pdf|input.txt|dir> ...",
	Short: "Convert statements into CSV, MMX and QIF files",
	Long: `Convert reads each HSBC statement PDF (or the text pdftotext -layout
made of it) and writes one file per output format under the output
directory. Directories are searched for .pdf and .txt files. With no
arguments the current directory is converted.`,
	Example: `  # Convert every statement in the current directory
  hsbc-statement-converter convert

  # Convert two statements to QIF only, plus a combined file
  hsbc-statement-converter convert --formats qif --combine jan.pdf feb.pdf

  # Show the gap before each amount to tune the VIS threshold
  hsbc-statement-converter convert --formats csv --spacing statement.pdf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		applyConvertFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		if len(args) == 0 {
			args = []string{"."}
		}
		inputs, err := collectInputs(args)
		if err != nil {
			return err
		}
		if len(inputs) == 0 {
			return errors.New("no .pdf or .txt statements found")
		}

		return runConvert(cmd.Context(), cmd.OutOrStdout(), cfg, log, inputs)
	},
}

func init() {
	f := convertCmd.Flags()
	f.StringVarP(&convertFlags.outDir, "out-dir", "o", "", "output directory (default from config: Converted_Files)")
	f.StringSliceVarP(&convertFlags.formats, "formats", "f", nil, "output formats: csv, mmx, qif, raw")
	f.BoolVar(&convertFlags.combine, "combine", false, "also append every statement to one combined file per format")
	f.IntVar(&convertFlags.visThreshold, "vis-threshold", 0, "gap width separating VIS paid out from paid in")
	f.IntVar(&convertFlags.workers, "workers", 0, "pages processed concurrently")
	f.StringVar(&convertFlags.method, "method", "", "PDF text extraction: auto, pdftotext or library")
	f.StringVar(&convertFlags.delimiter, "delimiter", "", "CSV delimiter: tab, comma or semicolon")
	f.BoolVar(&convertFlags.noHeader, "no-header", false, "omit the CSV column header row")
	f.BoolVar(&convertFlags.metadata, "metadata", false, "write account metadata rows above the CSV header")
	f.BoolVar(&convertFlags.spacing, "spacing", false, "add space1..space3 gap widths to the CSV")
	f.IntVar(&convertFlags.maxContinuing, "max-continuation-lines", 0, "drop a transaction after this many detail lines without an amount (0 = unlimited)")
}

// applyConvertFlags lets flags given on the command line win over the config.
func applyConvertFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("out-dir") {
		cfg.Output.Dir = convertFlags.outDir
	}
	if f.Changed("formats") {
		cfg.Output.Formats = convertFlags.formats
	}
	if f.Changed("combine") {
		cfg.Output.Combine = convertFlags.combine
	}
	if f.Changed("vis-threshold") {
		cfg.Engine.VISThreshold = convertFlags.visThreshold
	}
	if f.Changed("workers") {
		cfg.Engine.Workers = convertFlags.workers
	}
	if f.Changed("method") {
		cfg.Extract.Method = convertFlags.method
	}
	if f.Changed("delimiter") {
		cfg.Output.Delimiter = convertFlags.delimiter
	}
	if f.Changed("no-header") {
		cfg.Output.IncludeHeader = !convertFlags.noHeader
	}
	if f.Changed("metadata") {
		cfg.Output.IncludeMetadata = convertFlags.metadata
	}
	if f.Changed("spacing") {
		cfg.Output.SpacingColumns = convertFlags.spacing
	}
	if f.Changed("max-continuation-lines") {
		cfg.Engine.MaxContinuationLines = convertFlags.maxContinuing
	}
}

// collectInputs expands directories into the statements they hold, sorted
// by name. Files named explicitly are kept whatever their extension.
func collectInputs(args []string) ([]string, error) {
	var inputs []string
	for _, arg := range args {
		fi, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("input not found: %s", arg)
		}
		if !fi.IsDir() {
			inputs = append(inputs, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", arg, err)
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(e.Name())) {
			case ".pdf", ".txt":
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(found)
		inputs = append(inputs, found...)
	}
	return inputs, nil
}

// runConvert converts every input and reports how many failed. One bad
// statement does not stop the batch.
func runConvert(ctx context.Context, out io.Writer, cfg *config.Config, log zerolog.Logger, inputs []string) error {
	engine, err := parser.NewEngine(cfg.Engine.Options(), log)
	if err != nil {
		return err
	}
	formats, err := cfg.Output.ParsedFormats()
	if err != nil {
		return err
	}
	wopts, err := cfg.Output.WriterOptions()
	if err != nil {
		return err
	}

	var combiner *writer.Combiner
	if cfg.Output.Combine {
		if combiner, err = writer.NewCombiner(cfg.Output.Dir, formats, wopts); err != nil {
			return err
		}
	}

	var failed []string
	total := 0
	for _, input := range inputs {
		n, err := processFile(ctx, out, cfg, engine, formats, wopts, combiner, input, log)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "  Error: %v\n", err)
			log.Error().Err(err).Str("file", input).Msg("conversion failed")
			failed = append(failed, input)
			continue
		}
		total += n
	}

	if combiner != nil {
		for _, f := range formats {
			fmt.Fprintf(out, "Combined: %s\n", writer.CombinedPath(cfg.Output.Dir, f))
		}
	}
	fmt.Fprintf(out, "Converted %d of %d statement(s), %d transaction(s).\n", len(inputs)-len(failed), len(inputs), total)

	if len(failed) > 0 {
		return fmt.Errorf("%d statement(s) failed: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

func processFile(
	ctx context.Context,
	out io.Writer,
	cfg *config.Config,
	engine *parser.Engine,
	formats []writer.Format,
	wopts writer.Options,
	combiner *writer.Combiner,
	inputPath string,
	log zerolog.Logger,
) (int, error) {
	fmt.Fprintf(out, "Processing: %s\n", inputPath)

	src, err := sourceFor(inputPath, cfg, log)
	if err != nil {
		return 0, err
	}
	pages, err := src.Pages(ctx)
	if err != nil {
		return 0, fmt.Errorf("text extraction failed: %w", err)
	}
	fmt.Fprintf(out, "  Extracted text from %d page(s)\n", len(pages))

	if !parser.LooksLikeHSBC(pages, engine.Options()) {
		fmt.Fprintln(out, "  Warning: this does not look like an HSBC statement.")
	}

	res, err := engine.Parse(ctx, pages)
	if err != nil {
		return 0, err
	}
	info := res.Statement

	fmt.Fprintf(out, "  Found %d transaction(s)\n", len(info.Records))
	printDiagnostics(out, info)
	if pageErr := res.Err(); pageErr != nil {
		log.Warn().Err(pageErr).Str("file", inputPath).Msg("pages skipped")
	}
	if len(info.Records) == 0 {
		fmt.Fprintln(out, "  Warning: No transactions found. The text may not match the expected layout.")
	}

	for _, f := range formats {
		w, err := writer.New(f, wopts)
		if err != nil {
			return 0, err
		}
		path := writer.OutputPath(cfg.Output.Dir, f, inputPath)
		if err := writer.WriteToFile(path, w, info); err != nil {
			return 0, fmt.Errorf("%s write failed: %w", f, err)
		}
		fmt.Fprintf(out, "  Output: %s\n", path)

		if combiner != nil {
			if _, err := combiner.Append(f, info); err != nil {
				return 0, fmt.Errorf("%s combine failed: %w", f, err)
			}
		}
	}

	if info.AccountHolder != "" {
		fmt.Fprintf(out, "  Account holder: %s\n", info.AccountHolder)
	}
	if info.AccountNumber != "" {
		fmt.Fprintf(out, "  Account number: %s\n", info.AccountNumber)
	}
	if info.SortCode != "" {
		fmt.Fprintf(out, "  Sort code: %s\n", info.SortCode)
	}
	if info.StatementPeriod != "" {
		fmt.Fprintf(out, "  Period: %s\n", info.StatementPeriod)
	}

	fmt.Fprintln(out, "  Done.")
	return len(info.Records), nil
}

func sourceFor(path string, cfg *config.Config, log zerolog.Logger) (extractor.Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		src := extractor.NewPDFSource(path, log)
		src.Method = cfg.Extract.Method
		src.CharWidth = cfg.Extract.CharWidth
		return src, nil
	case ".txt":
		src, err := extractor.ReadTextFile(path)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return nil, fmt.Errorf("expected .pdf or .txt file, got %q", filepath.Ext(path))
}

func printDiagnostics(out io.Writer, info *models.StatementInfo) {
	for _, kind := range []models.DiagnosticKind{
		models.KindIncompleteTransaction,
		models.KindAmbiguousColumn,
		models.KindStructuralMismatch,
	} {
		if n := info.CountDiagnostics(kind); n > 0 {
			fmt.Fprintf(out, "  %s: %d\n", kind, n)
		}
	}
	for _, fp := range info.FailedPages {
		fmt.Fprintf(out, "  Page %d skipped: %s\n", fp.Page, fp.Reason)
	}
}
