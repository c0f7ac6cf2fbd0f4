package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/hsbc-statement-converter/internal/cache"
	"github.com/insightdelivered/hsbc-statement-converter/internal/config"
)

const statementText = "HSBC UK Bank plc\n" +
	"Account Name: MR JOHN SMITH\n" +
	"BALANCE BROUGHT FORWARD\n" +
	"01 JAN 24 DD SUPERMARKET LTD\n" +
	"  LONDON 12.34 100.00\n" +
	"02 JAN 24 CR SALARY 1500.00 1600.00\n" +
	"BALANCE CARRIED FORWARD\n" +
	"\f" +
	"BALANCE BROUGHT FORWARD\n" +
	"03 JAN 24 DD ELECTRIC CO 40.00 1560.00\n" +
	"BALANCE CARRIED FORWARD\n"

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd, "rootCmd should be defined")
	assert.Equal(t, "hsbc-statement-converter", rootCmd.Use)
	assert.Contains(t, rootCmd.Short, "HSBC UK statement")
	assert.Contains(t, rootCmd.Long, "HSBC Statement Converter")

	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"convert", "serve", "version"})
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "hsbc-statement-converter v"+version+"\n", out.String())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Output.Dir = t.TempDir()
	return cfg
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCollectInputs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.pdf", "")
	writeFile(t, dir, "a.txt", "")
	writeFile(t, dir, "notes.md", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	explicit := writeFile(t, t.TempDir(), "other.PDF", "")

	inputs, err := collectInputs([]string{dir, explicit})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.pdf"),
		explicit,
	}, inputs)

	_, err = collectInputs([]string{filepath.Join(dir, "missing.pdf")})
	assert.Error(t, err)
}

func TestRunConvert_WritesEveryFormat(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Formats = []string{"csv", "mmx", "qif", "raw"}
	cfg.Output.Combine = true
	input := writeFile(t, t.TempDir(), "jan.txt", statementText)

	var out bytes.Buffer
	require.NoError(t, runConvert(context.Background(), &out, cfg, zerolog.Nop(), []string{input}))

	csvData, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "CSV", "jan.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "01 JAN 24\tDD\tSUPERMARKET LTD LONDON\t12.34\t\t100.00", lines[1])
	assert.Equal(t, "02 JAN 24\tCR\tSALARY\t\t1500.00\t1600.00", lines[2])

	mmx, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "MMX_CSV", "jan-mmx.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(mmx), "-12.34")

	qif, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "QIF", "jan.qif"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(qif), "!Type:Bank"))

	_, err = os.Stat(filepath.Join(cfg.Output.Dir, "RAW", "jan.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.Output.Dir, "CSV", "HSBC_transactions_combined.csv"))
	assert.NoError(t, err)

	assert.Contains(t, out.String(), "Processing: "+input)
	assert.Contains(t, out.String(), "Extracted text from 2 page(s)")
	assert.Contains(t, out.String(), "Found 3 transaction(s)")
	assert.Contains(t, out.String(), "Account holder: MR JOHN SMITH")
	assert.Contains(t, out.String(), "Converted 1 of 1 statement(s), 3 transaction(s).")
}

func TestRunConvert_ContinuesAfterFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Formats = []string{"csv"}
	dir := t.TempDir()
	bad := writeFile(t, dir, "statement.docx", "not a statement")
	good := writeFile(t, dir, "good.txt", statementText)

	var out bytes.Buffer
	err := runConvert(context.Background(), &out, cfg, zerolog.Nop(), []string{bad, good})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 statement(s) failed")
	assert.Contains(t, out.String(), "Converted 1 of 2 statement(s)")

	_, statErr := os.Stat(filepath.Join(cfg.Output.Dir, "CSV", "good.csv"))
	assert.NoError(t, statErr)
}

func TestRunConvert_WarnsOnForeignDocument(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Formats = []string{"csv"}
	input := writeFile(t, t.TempDir(), "letter.txt", "Dear customer,\nthank you for banking with us.\n")

	var out bytes.Buffer
	require.NoError(t, runConvert(context.Background(), &out, cfg, zerolog.Nop(), []string{input}))
	assert.Contains(t, out.String(), "does not look like an HSBC statement")
	assert.Contains(t, out.String(), "No transactions found")
}

func TestApplyConvertFlags(t *testing.T) {
	cfg := testConfig(t)
	cmd := convertCmd
	require.NoError(t, cmd.Flags().Parse([]string{"--vis-threshold", "90", "--formats", "qif,raw", "--no-header"}))
	t.Cleanup(func() {
		cmd.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	})

	applyConvertFlags(cmd, cfg)
	assert.Equal(t, 90, cfg.Engine.VISThreshold)
	assert.Equal(t, []string{"qif", "raw"}, cfg.Output.Formats)
	assert.False(t, cfg.Output.IncludeHeader)
	assert.Equal(t, 4, cfg.Engine.Workers, "unchanged flags keep the config value")
}

func TestSourceForRejectsUnknownExtension(t *testing.T) {
	_, err := sourceFor("statement.xlsx", testConfig(t), zerolog.Nop())
	assert.Error(t, err)
}

func TestNewCacheWithoutRedis(t *testing.T) {
	c, closeFn, err := newCache(context.Background(), config.ServerConfig{CacheTTL: cache.DefaultTTL}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryCache{}, c)
	assert.NoError(t, closeFn())
}
