package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rohit/csv2jsonl/internal/config"
	domainerrors "github.com/rohit/csv2jsonl/internal/domain/errors"
	"github.com/rohit/csv2jsonl/internal/metrics"
	convertservice "github.com/rohit/csv2jsonl/internal/service/convert"
	"github.com/rohit/csv2jsonl/internal/service/convert/parsers"
	"github.com/rohit/csv2jsonl/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// flagValues mirrors the command line. Only flags the user set are applied
// over the defaults and the --config profile.
type flagValues struct {
	configPath  string
	encoding    string
	dialect     string
	delimiter   string
	quoting     string
	overflow    string
	overflowKey string
	compact     bool
	logLevel    string
	logFormat   string
	metricsFile string
}

// run executes the command and returns the process exit code
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCommand(stdin, stdout, stderr)
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", errorMessage(err))
		return 1
	}
	return 0
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	defaults := config.Default()
	fv := &flagValues{}

	cmd := &cobra.Command{
		Use:   "csv2jsonl [flags] <input> <output>",
		Short: "Convert delimited text files to JSON Lines",
		Long: "Convert a CSV (or other delimited) file to JSON Lines, one object per data row,\n" +
			"keyed by the header row. The delimiter is detected from the first 64KB of input\n" +
			"unless --delimiter or --dialect is given. Use - for stdin or stdout.\n\n" +
			"Dialects: " + strings.Join(parsers.DialectNames(), ", "),
		Example: "  csv2jsonl data.csv data.jsonl\n" +
			"  csv2jsonl -e latin1 --delimiter ';' export.csv out.jsonl\n" +
			"  csv2jsonl -d excel-tab report.tsv - | jq .",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return convert(cmd.Flags(), fv, args[0], args[1], stdin, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVar(&fv.configPath, "config", "", "YAML profile with default options")
	flags.StringVarP(&fv.encoding, "encoding", "e", defaults.Convert.Encoding, "input text encoding")
	flags.StringVarP(&fv.dialect, "dialect", "d", "", "named dialect ("+strings.Join(parsers.DialectNames(), ", ")+")")
	flags.StringVar(&fv.delimiter, "delimiter", "", "field delimiter, a single character or 'tab'")
	flags.StringVar(&fv.quoting, "quoting", "", "quoting style: minimal, all or none")
	flags.StringVar(&fv.overflow, "overflow", defaults.Convert.Overflow, "extra fields policy: drop, keep or error")
	flags.StringVar(&fv.overflowKey, "overflow-key", defaults.Convert.OverflowKey, "key holding extra fields with --overflow keep")
	flags.BoolVar(&fv.compact, "compact", false, "write objects without spaces after separators")
	flags.StringVar(&fv.logLevel, "log-level", defaults.Log.Level, "log level: debug, info, warn, error or off")
	flags.StringVar(&fv.logFormat, "log-format", defaults.Log.Format, "log format: console or json")
	flags.StringVar(&fv.metricsFile, "metrics-file", "", "write run metrics in Prometheus text format to this file")

	return cmd
}

func convert(
	flags *pflag.FlagSet,
	fv *flagValues,
	inputPath, outputPath string,
	stdin io.Reader,
	stdout, stderr io.Writer,
) error {
	cfg, err := loadConfig(flags, fv)
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Out:    stderr,
	})
	collector := metrics.NewCollector()

	svc := convertservice.NewService(collector, log, cfg.Convert)
	svc.SetStdio(stdin, stdout)

	result, convErr := svc.ConvertFile(inputPath, outputPath)

	if cfg.Metrics.File != "" {
		if err := collector.WriteTextfile(cfg.Metrics.File); err != nil {
			log.Warn().Err(err).Str("path", cfg.Metrics.File).Msg("Failed to write metrics file")
		}
	}

	if convErr != nil {
		return convErr
	}

	// Keep stdout clean when it carries the converted data
	summary := stdout
	if outputPath == convertservice.StdioPath {
		summary = stderr
	}
	fmt.Fprintf(summary, "Wrote %d records to %s\n", result.Records, outputPath)
	return nil
}

// loadConfig layers defaults, the optional profile and explicitly set flags
func loadConfig(flags *pflag.FlagSet, fv *flagValues) (*config.Config, error) {
	cfg := config.Default()
	if fv.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(fv.configPath); err != nil {
			return nil, err
		}
	}

	if flags.Changed("encoding") {
		cfg.Convert.Encoding = fv.encoding
	}
	if flags.Changed("dialect") {
		cfg.Convert.Dialect = fv.dialect
	}
	if flags.Changed("delimiter") {
		if fv.delimiter == "" {
			return nil, domainerrors.ErrInvalidOption("delimiter must not be empty")
		}
		cfg.Convert.Delimiter = fv.delimiter
	}
	if flags.Changed("quoting") {
		cfg.Convert.Quoting = fv.quoting
	}
	if flags.Changed("overflow") {
		cfg.Convert.Overflow = fv.overflow
	}
	if flags.Changed("overflow-key") {
		cfg.Convert.OverflowKey = fv.overflowKey
	}
	if flags.Changed("compact") {
		cfg.Convert.Compact = fv.compact
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = fv.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = fv.logFormat
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.File = fv.metricsFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// errorMessage renders err for the terminal without the internal error code
func errorMessage(err error) string {
	var ce *domainerrors.ConvertError
	if !errors.As(err, &ce) {
		return err.Error()
	}
	if ce.Code == domainerrors.ErrCodeInputNotFound {
		return ce.Message
	}

	msg := ce.Message
	if ce.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", ce.Line, msg)
	}
	if ce.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, ce.Err)
	}
	return msg
}
