package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/insightdelivered/hsbc-statement-converter/internal/extractor"
	"github.com/insightdelivered/hsbc-statement-converter/internal/logger"
	"github.com/insightdelivered/hsbc-statement-converter/internal/models"
	"github.com/insightdelivered/hsbc-statement-converter/internal/parser"
	"github.com/insightdelivered/hsbc-statement-converter/internal/writer"
)

// EnvPrefix prefixes environment overrides, e.g. HSBC_ENGINE_VIS_THRESHOLD.
const EnvPrefix = "HSBC"

// Config represents the application configuration
type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"`
	Extract ExtractConfig `mapstructure:"extract"`
	Output  OutputConfig  `mapstructure:"output"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
}

// EngineConfig tunes the transaction line reconstruction.
type EngineConfig struct {
	VISThreshold         int      `mapstructure:"vis_threshold"`
	AmbiguityBand        int      `mapstructure:"ambiguity_band"`
	TypeTags             []string `mapstructure:"type_tags"`
	OpeningMarker        string   `mapstructure:"opening_marker"`
	ClosingMarker        string   `mapstructure:"closing_marker"`
	MaxContinuationLines int      `mapstructure:"max_continuation_lines"`
	Workers              int      `mapstructure:"workers"`
}

// ExtractConfig selects how page text is read from PDFs.
type ExtractConfig struct {
	Method    string  `mapstructure:"method"` // "auto", "pdftotext" or "library"
	CharWidth float64 `mapstructure:"char_width"`
}

// OutputConfig controls which files the converter writes.
type OutputConfig struct {
	Dir             string   `mapstructure:"dir"`
	Formats         []string `mapstructure:"formats"`
	Delimiter       string   `mapstructure:"delimiter"`
	IncludeHeader   bool     `mapstructure:"include_header"`
	IncludeMetadata bool     `mapstructure:"include_metadata"`
	MMXHeader       bool     `mapstructure:"mmx_header"`
	SpacingColumns  bool     `mapstructure:"spacing_columns"`
	Combine         bool     `mapstructure:"combine"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string        `mapstructure:"addr"`
	RedisURL    string        `mapstructure:"redis_url"` // empty means in-memory cache
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	BodyLimitMB int           `mapstructure:"body_limit_mb"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

func setDefaults(v *viper.Viper) {
	tags := make([]string, 0, len(models.DefaultTypeTags()))
	for _, t := range models.DefaultTypeTags() {
		tags = append(tags, string(t))
	}

	v.SetDefault("engine.vis_threshold", parser.DefaultVISThreshold)
	v.SetDefault("engine.ambiguity_band", parser.DefaultAmbiguityBand)
	v.SetDefault("engine.type_tags", tags)
	v.SetDefault("engine.opening_marker", parser.DefaultOpeningMarker)
	v.SetDefault("engine.closing_marker", parser.DefaultClosingMarker)
	v.SetDefault("engine.max_continuation_lines", 0)
	v.SetDefault("engine.workers", parser.DefaultWorkers)

	v.SetDefault("extract.method", extractor.MethodAuto)
	v.SetDefault("extract.char_width", extractor.DefaultCharWidth)

	v.SetDefault("output.dir", "Converted_Files")
	v.SetDefault("output.formats", []string{"csv", "mmx", "qif"})
	v.SetDefault("output.delimiter", "tab")
	v.SetDefault("output.include_header", true)
	v.SetDefault("output.include_metadata", false)
	v.SetDefault("output.mmx_header", true)
	v.SetDefault("output.spacing_columns", false)
	v.SetDefault("output.combine", false)

	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.redis_url", "")
	v.SetDefault("server.cache_ttl", time.Hour)
	v.SetDefault("server.body_limit_mb", 20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logger.FormatConsole)
}

// LoadConfig loads configuration from file and environment variables. An
// empty path loads the defaults and environment only.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate reports every setting the converter cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Engine.Options().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("engine: %w", err))
	}

	switch c.Extract.Method {
	case extractor.MethodAuto, extractor.MethodPdftotext, extractor.MethodLibrary:
	default:
		errs = append(errs, fmt.Errorf("extract: unknown method %q", c.Extract.Method))
	}
	if c.Extract.CharWidth <= 0 {
		errs = append(errs, fmt.Errorf("extract: char_width must be positive, got %v", c.Extract.CharWidth))
	}

	if _, err := c.Output.ParsedFormats(); err != nil {
		errs = append(errs, fmt.Errorf("output: %w", err))
	}
	if _, err := writer.ParseDelimiter(c.Output.Delimiter); err != nil {
		errs = append(errs, fmt.Errorf("output: %w", err))
	}

	if c.Server.BodyLimitMB <= 0 {
		errs = append(errs, fmt.Errorf("server: body_limit_mb must be positive, got %d", c.Server.BodyLimitMB))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

// Options builds the engine options.
func (e EngineConfig) Options() parser.Options {
	tags := make([]models.TypeTag, 0, len(e.TypeTags))
	for _, t := range e.TypeTags {
		tags = append(tags, models.TypeTag(strings.TrimSpace(t)))
	}
	return parser.Options{
		VISThreshold:         e.VISThreshold,
		AmbiguityBand:        e.AmbiguityBand,
		TypeTags:             tags,
		OpeningMarker:        e.OpeningMarker,
		ClosingMarker:        e.ClosingMarker,
		MaxContinuationLines: e.MaxContinuationLines,
		Workers:              e.Workers,
	}
}

// ParsedFormats returns the requested output formats, at least one.
func (o OutputConfig) ParsedFormats() ([]writer.Format, error) {
	if len(o.Formats) == 0 {
		return nil, errors.New("at least one output format is required")
	}
	seen := make(map[writer.Format]bool)
	var formats []writer.Format
	for _, s := range o.Formats {
		f, err := writer.ParseFormat(s)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	return formats, nil
}

// WriterOptions builds the serializer options.
func (o OutputConfig) WriterOptions() (writer.Options, error) {
	delim, err := writer.ParseDelimiter(o.Delimiter)
	if err != nil {
		return writer.Options{}, err
	}
	return writer.Options{
		Delimiter:       delim,
		IncludeHeader:   o.IncludeHeader,
		IncludeMetadata: o.IncludeMetadata,
		MMXHeader:       o.MMXHeader,
		SpacingColumns:  o.SpacingColumns,
	}, nil
}
