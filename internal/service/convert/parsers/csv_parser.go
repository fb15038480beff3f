package parsers

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	domainerrors "github.com/rohit/csv2jsonl/internal/domain/errors"
	"github.com/rohit/csv2jsonl/internal/domain/models"
)

// ParserOptions configures how a CSVParser treats rows wider than the header
type ParserOptions struct {
	Overflow    models.OverflowPolicy
	OverflowKey string
	Logger      zerolog.Logger
}

// rowSource yields raw rows and the input line each one started on
type rowSource interface {
	Read() ([]string, error)
	Line() int
}

// CSVParser streams records from delimited text keyed by its header row
type CSVParser struct {
	source       rowSource
	format       models.Format
	header       []string
	fields       []string // header plus overflow key, used for rows under OverflowKeep
	options      ParserOptions
	overflowRows int
}

// NewCSVParser creates a new parser and reads the header row.
// Input without a header row yields a parser with no records.
func NewCSVParser(r io.Reader, format models.Format, opts ParserOptions) (*CSVParser, error) {
	if opts.Overflow == "" {
		opts.Overflow = models.OverflowDrop
	}
	if !opts.Overflow.Valid() {
		return nil, domainerrors.ErrInvalidOption(fmt.Sprintf("unknown overflow policy %q", opts.Overflow))
	}
	if opts.OverflowKey == "" {
		opts.OverflowKey = models.DefaultOverflowKey
	}

	// Wrap in buffered reader for efficiency
	br := bufio.NewReaderSize(r, 64*1024) // 64KB buffer

	var source rowSource
	if format.Quoting == models.QuoteNone {
		source = &splitSource{reader: br, delimiter: string(format.Delimiter)}
	} else {
		csvReader := csv.NewReader(br)
		csvReader.Comma = format.Delimiter
		csvReader.FieldsPerRecord = -1 // Allow variable number of fields
		csvReader.LazyQuotes = true
		source = &csvSource{reader: csvReader}
	}

	p := &CSVParser{
		source:  source,
		format:  format,
		options: opts,
	}

	header, err := source.Read()
	if err == io.EOF {
		return p, nil
	}
	if err != nil {
		return nil, p.wrapReadError(err)
	}

	seen := make(map[string]struct{}, len(header))
	for _, h := range header {
		if _, dup := seen[h]; dup {
			return nil, domainerrors.ErrDuplicateHeader(h)
		}
		seen[h] = struct{}{}
	}
	if opts.Overflow == models.OverflowKeep {
		if _, clash := seen[opts.OverflowKey]; clash {
			return nil, domainerrors.ErrInvalidOption(
				fmt.Sprintf("overflow key %q collides with a header field", opts.OverflowKey))
		}
	}

	p.header = header
	p.fields = append(append([]string(nil), header...), opts.OverflowKey)
	return p, nil
}

// Header returns the header row, or nil for empty input
func (p *CSVParser) Header() []string {
	return p.header
}

// OverflowRows returns the number of rows that had more fields than the header
func (p *CSVParser) OverflowRows() int {
	return p.overflowRows
}

// ParseRecords streams records from the input, one callback per data row.
// Reading stops at the first error; nothing is skipped.
func (p *CSVParser) ParseRecords(callback func(line int, record *models.Record) error) error {
	if p.header == nil {
		return nil
	}

	for {
		values, err := p.source.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return p.wrapReadError(err)
		}

		line := p.source.Line()
		record, err := p.buildRecord(line, values)
		if err != nil {
			return err
		}

		if err := callback(line, record); err != nil {
			return err
		}
	}
}

// buildRecord keys raw values by header. Missing trailing values stay nil.
func (p *CSVParser) buildRecord(line int, values []string) (*models.Record, error) {
	width := len(p.header)
	record := &models.Record{
		Fields: p.header,
		Values: make([]*string, width),
	}
	for i := 0; i < width && i < len(values); i++ {
		record.Values[i] = &values[i]
	}

	if len(values) <= width {
		return record, nil
	}

	p.overflowRows++
	switch p.options.Overflow {
	case models.OverflowError:
		return nil, domainerrors.ErrRowOverflow(line, len(values), width)
	case models.OverflowKeep:
		extra := strings.Join(values[width:], string(p.format.Delimiter))
		record.Fields = p.fields
		record.Values = append(record.Values, &extra)
	default:
		p.options.Logger.Warn().
			Int("line", line).
			Int("fields", len(values)).
			Int("header_fields", width).
			Int("dropped", len(values)-width).
			Msg("Dropping values beyond header width")
	}
	return record, nil
}

// wrapReadError maps reader failures onto domain errors
func (p *CSVParser) wrapReadError(err error) error {
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return domainerrors.ErrEncoding(decodeErr.Encoding, err)
	}
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return domainerrors.ErrParse(parseErr.Line, parseErr.Err)
	}
	return domainerrors.ErrInputRead("", err)
}

// csvSource reads quoted delimited text with encoding/csv
type csvSource struct {
	reader *csv.Reader
	line   int
}

func (s *csvSource) Read() ([]string, error) {
	record, err := s.reader.Read()
	if err != nil {
		return nil, err
	}
	s.line, _ = s.reader.FieldPos(0)
	return record, nil
}

func (s *csvSource) Line() int {
	return s.line
}

// splitSource reads text without quoting: every delimiter separates fields
// and every line break ends a row
type splitSource struct {
	reader    *bufio.Reader
	delimiter string
	lineNo    int
	line      int
}

func (s *splitSource) Read() ([]string, error) {
	for {
		text, err := s.reader.ReadString('\n')
		if len(text) == 0 && err != nil {
			return nil, err
		}
		if err != nil && err != io.EOF {
			return nil, err
		}
		s.lineNo++

		text = strings.TrimSuffix(text, "\n")
		text = strings.TrimSuffix(text, "\r")
		if text == "" {
			continue // Skip empty lines
		}
		s.line = s.lineNo
		return strings.Split(text, s.delimiter), nil
	}
}

func (s *splitSource) Line() int {
	return s.line
}
