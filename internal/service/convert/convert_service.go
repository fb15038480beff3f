package convertservice

import (
	"bufio"
	"errors"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rohit/csv2jsonl/internal/config"
	domainerrors "github.com/rohit/csv2jsonl/internal/domain/errors"
	"github.com/rohit/csv2jsonl/internal/domain/models"
	"github.com/rohit/csv2jsonl/internal/metrics"
	"github.com/rohit/csv2jsonl/internal/service/convert/parsers"
	"github.com/rohit/csv2jsonl/pkg/logger"
)

// StdioPath names stdin as an input path and stdout as an output path
const StdioPath = "-"

// Service handles conversion runs
type Service struct {
	metrics *metrics.Collector
	logger  zerolog.Logger
	config  config.ConvertConfig
	stdin   io.Reader
	stdout  io.Writer
}

// NewService creates a new conversion service
func NewService(
	metrics *metrics.Collector,
	logger zerolog.Logger,
	cfg config.ConvertConfig,
) *Service {
	if cfg.Overflow == "" {
		cfg.Overflow = string(models.OverflowDrop)
	}
	return &Service{
		metrics: metrics,
		logger:  logger,
		config:  cfg,
		stdin:   os.Stdin,
		stdout:  os.Stdout,
	}
}

// SetStdio replaces the streams used for the "-" paths
func (s *Service) SetStdio(stdin io.Reader, stdout io.Writer) {
	s.stdin = stdin
	s.stdout = stdout
}

// ConvertFile converts the delimited file at inputPath into JSON Lines at outputPath.
// The output file is only created once the input has been opened and its header read.
func (s *Service) ConvertFile(inputPath, outputPath string) (*models.Result, error) {
	result, log := s.newRun(inputPath, outputPath)

	err := s.convertFile(log, result)
	s.finish(log, result, err)
	return result, err
}

// ConvertStream converts delimited text from r into JSON Lines on w
func (s *Service) ConvertStream(r io.Reader, w io.Writer) (*models.Result, error) {
	result, log := s.newRun(StdioPath, StdioPath)

	err := s.convert(log, r, func() (io.WriteCloser, error) {
		return nopWriteCloser{w}, nil
	}, result)
	s.finish(log, result, err)
	return result, err
}

func (s *Service) newRun(inputPath, outputPath string) (*models.Result, zerolog.Logger) {
	result := &models.Result{
		RunID:      uuid.New(),
		InputPath:  inputPath,
		OutputPath: outputPath,
		StartedAt:  time.Now(),
	}
	log := logger.WithRunID(logger.WithInput(s.logger, inputPath), result.RunID.String())
	return result, log
}

func (s *Service) convertFile(log zerolog.Logger, result *models.Result) error {
	in, err := s.openInput(result.InputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	return s.convert(log, in, func() (io.WriteCloser, error) {
		return s.openOutput(result.OutputPath)
	}, result)
}

// convert runs sniffer, row reader, normalizer and emitter over r.
// openOutput is called after the header row has been read.
func (s *Service) convert(
	log zerolog.Logger,
	r io.Reader,
	openOutput func() (io.WriteCloser, error),
	result *models.Result,
) (err error) {
	counter := parsers.NewCountingReader(r)
	defer func() { result.BytesRead = counter.BytesRead }()

	decoded, err := parsers.NewDecodingReader(counter, s.config.Encoding)
	if err != nil {
		return domainerrors.ErrInvalidOption(err.Error())
	}

	// Sniff from the same buffer the row reader consumes, so input is read once
	br := bufio.NewReaderSize(decoded, parsers.SampleSize)
	sample, err := br.Peek(parsers.SampleSize)
	if err != nil && err != io.EOF {
		return classifyReadError(result.InputPath, err)
	}

	format, err := parsers.ResolveFormat(sample, s.config.FormatOptions())
	if err != nil {
		return domainerrors.ErrInvalidOption(err.Error())
	}
	result.Format = format
	s.logFormat(log, format)
	s.metrics.RecordFormat(string(format.Source), format.DelimiterName())

	parserOpts := s.config.ParserOptions()
	parserOpts.Logger = log
	parser, err := parsers.NewCSVParser(br, format, parserOpts)
	if err != nil {
		return err
	}
	result.Header = parser.Header()

	out, err := openOutput()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = domainerrors.ErrOutput(result.OutputPath, cerr)
		}
	}()

	writer := NewJSONLWriter(out, s.config.Compact)
	err = parser.ParseRecords(func(line int, record *models.Record) error {
		if err := writer.Write(Normalize(record)); err != nil {
			return domainerrors.ErrOutput(result.OutputPath, err).WithLine(line)
		}
		return nil
	})
	result.Records = writer.Count()
	result.OverflowRows = parser.OverflowRows()
	if err != nil {
		// Keep what was converted; the output is left partially written
		_ = writer.Flush()
		return err
	}

	if err := writer.Flush(); err != nil {
		return domainerrors.ErrOutput(result.OutputPath, err)
	}
	return nil
}

func (s *Service) openInput(path string) (io.ReadCloser, error) {
	if path == StdioPath {
		return io.NopCloser(s.stdin), nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domainerrors.ErrInputNotFound(path, err)
		}
		return nil, domainerrors.ErrInputRead(path, err)
	}
	return f, nil
}

func (s *Service) openOutput(path string) (io.WriteCloser, error) {
	if path == StdioPath {
		return nopWriteCloser{s.stdout}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, domainerrors.ErrOutput(path, err)
	}
	return f, nil
}

func (s *Service) logFormat(log zerolog.Logger, format models.Format) {
	switch {
	case format.Source == models.FormatSourceDefault && s.config.Dialect != "":
		log.Warn().
			Str("dialect", s.config.Dialect).
			Strs("known", parsers.DialectNames()).
			Msg("Unknown dialect, using default")
	case format.Source == models.FormatSourceDefault:
		log.Debug().Msg("Could not detect delimiter, using default")
	default:
		log.Debug().
			Str("format", format.Name).
			Str("delimiter", format.DelimiterName()).
			Str("quoting", string(format.Quoting)).
			Str("source", string(format.Source)).
			Msg("Format resolved")
	}
}

func (s *Service) finish(log zerolog.Logger, result *models.Result, err error) {
	result.Duration = time.Since(result.StartedAt)
	result.Status = models.RunStatusCompleted
	if err != nil {
		result.Status = models.RunStatusFailed
	}

	s.metrics.RecordConversionCompleted(string(result.Status), result.Duration.Seconds())
	s.metrics.RecordRecords("written", result.Records)
	s.metrics.RecordOverflowRows(s.config.Overflow, result.OverflowRows)
	s.metrics.RecordInputBytes(result.BytesRead)

	if err != nil {
		s.metrics.RecordConversionError(domainerrors.CodeOf(err))
		// Callers report the error itself; keep it out of the default warn output
		log.Info().
			Err(err).
			Int("records", result.Records).
			Msg("Conversion failed")
		return
	}

	log.Info().
		Int("records", result.Records).
		Int("overflow_rows", result.OverflowRows).
		Int64("bytes_read", result.BytesRead).
		Str("output", result.OutputPath).
		Dur("duration", result.Duration).
		Msg("Conversion completed")
}

// classifyReadError maps a failure while sampling the input onto a domain error
func classifyReadError(path string, err error) error {
	var decodeErr *parsers.DecodeError
	if errors.As(err, &decodeErr) {
		return domainerrors.ErrEncoding(decodeErr.Encoding, err)
	}
	return domainerrors.ErrInputRead(path, err)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
