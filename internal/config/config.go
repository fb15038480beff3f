package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	domainerrors "github.com/rohit/csv2jsonl/internal/domain/errors"
	"github.com/rohit/csv2jsonl/internal/domain/models"
	"github.com/rohit/csv2jsonl/internal/service/convert/parsers"
	"github.com/rohit/csv2jsonl/pkg/logger"
)

// Config holds all configuration for a conversion run
type Config struct {
	Convert ConvertConfig `yaml:"convert"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ConvertConfig holds conversion settings
type ConvertConfig struct {
	Encoding    string `yaml:"encoding"`
	Dialect     string `yaml:"dialect"`
	Delimiter   string `yaml:"delimiter"`
	Quoting     string `yaml:"quoting"`
	Overflow    string `yaml:"overflow"`
	OverflowKey string `yaml:"overflow_key"`
	Compact     bool   `yaml:"compact"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	File string `yaml:"file"` // textfile collector output, empty to disable
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Convert: ConvertConfig{
			Encoding:    parsers.DefaultEncoding,
			Overflow:    string(models.OverflowDrop),
			OverflowKey: models.DefaultOverflowKey,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: logger.FormatConsole,
		},
	}
}

// LoadFile loads a YAML profile on top of the defaults.
// Keys missing from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domainerrors.ErrConfig(path, err)
	}
	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.DisallowUnknownField()); err != nil {
		return nil, domainerrors.ErrConfig(path, fmt.Errorf("invalid YAML: %w", err))
	}

	return cfg, nil
}

// Validate checks option values before a run starts
func (c *Config) Validate() error {
	if _, _, err := parsers.LookupEncoding(c.Convert.Encoding); err != nil {
		return domainerrors.ErrInvalidOption(err.Error())
	}
	if c.Convert.Delimiter != "" {
		if _, err := parsers.ParseDelimiter(c.Convert.Delimiter); err != nil {
			return domainerrors.ErrInvalidOption(err.Error())
		}
	}
	if c.Convert.Quoting != "" {
		if _, err := models.ParseQuoting(c.Convert.Quoting); err != nil {
			return domainerrors.ErrInvalidOption(err.Error())
		}
	}
	if !models.OverflowPolicy(c.Convert.Overflow).Valid() {
		return domainerrors.ErrInvalidOption(
			fmt.Sprintf("unknown overflow policy %q (want drop, keep or error)", c.Convert.Overflow))
	}
	if c.Convert.OverflowKey == "" {
		return domainerrors.ErrInvalidOption("overflow key must not be empty")
	}
	if !logger.ValidLevel(c.Log.Level) {
		return domainerrors.ErrInvalidOption(fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case logger.FormatConsole, logger.FormatJSON:
	default:
		return domainerrors.ErrInvalidOption(
			fmt.Sprintf("unknown log format %q (want console or json)", c.Log.Format))
	}
	return nil
}

// FormatOptions returns the format overrides for the sniffer
func (c *ConvertConfig) FormatOptions() parsers.FormatOptions {
	return parsers.FormatOptions{
		Delimiter: c.Delimiter,
		Dialect:   c.Dialect,
		Quoting:   models.Quoting(c.Quoting),
	}
}

// ParserOptions returns the row reader settings
func (c *ConvertConfig) ParserOptions() parsers.ParserOptions {
	return parsers.ParserOptions{
		Overflow:    models.OverflowPolicy(c.Overflow),
		OverflowKey: c.OverflowKey,
	}
}
