package convertservice

import (
	"bufio"
	"bytes"
	"io"

	"github.com/goccy/go-json"

	"github.com/rohit/csv2jsonl/internal/domain/models"
)

// JSONLWriter writes normalized records as JSON Lines, one object per line,
// keys in header order. Output is buffered until Flush.
type JSONLWriter struct {
	writer  *bufio.Writer
	compact bool
	count   int
	line    []byte
}

// NewJSONLWriter creates a JSON Lines writer. Unless compact is set objects
// are laid out as {"key": "value", "key2": "value2"}.
func NewJSONLWriter(w io.Writer, compact bool) *JSONLWriter {
	return &JSONLWriter{
		writer:  bufio.NewWriterSize(w, 64*1024),
		compact: compact,
	}
}

// Write writes one record as a single line
func (j *JSONLWriter) Write(record models.NormalizedRecord) error {
	fieldSep, keySep := ", ", ": "
	if j.compact {
		fieldSep, keySep = ",", ":"
	}

	line := append(j.line[:0], '{')
	for i, field := range record.Fields {
		if i > 0 {
			line = append(line, fieldSep...)
		}
		var err error
		if line, err = appendString(line, field); err != nil {
			return err
		}
		line = append(line, keySep...)
		if line, err = appendString(line, record.Values[i]); err != nil {
			return err
		}
	}
	line = append(line, '}', '\n')
	j.line = line

	if _, err := j.writer.Write(line); err != nil {
		return err
	}
	j.count++
	return nil
}

// Flush writes any buffered data to the underlying writer
func (j *JSONLWriter) Flush() error {
	return j.writer.Flush()
}

// Count returns the number of records written so far
func (j *JSONLWriter) Count() int {
	return j.count
}

// appendString appends s as a JSON string. Non-ASCII text is kept literal
// and HTML characters are not escaped.
func appendString(dst []byte, s string) ([]byte, error) {
	encoded, err := json.MarshalWithOption(s, json.DisableHTMLEscape())
	if err != nil {
		return dst, err
	}
	if bytes.Contains(encoded, lineSeparatorEscape) {
		return appendUnescapedSeparators(dst, encoded), nil
	}
	return append(dst, encoded...), nil
}

var lineSeparatorEscape = []byte(`\u202`)

// appendUnescapedSeparators copies an encoded JSON string, turning the
// \u2028 and \u2029 escapes the encoder always emits back into literal runes.
func appendUnescapedSeparators(dst, encoded []byte) []byte {
	for i := 0; i < len(encoded); i++ {
		if encoded[i] != '\\' || i+1 == len(encoded) {
			dst = append(dst, encoded[i])
			continue
		}
		if rest := encoded[i+1:]; len(rest) >= 5 && rest[0] == 'u' {
			switch string(rest[1:5]) {
			case "2028":
				dst = append(dst, "\u2028"...)
				i += 5
				continue
			case "2029":
				dst = append(dst, "\u2029"...)
				i += 5
				continue
			}
		}
		// Any other escape is two bytes or more; copy the pair untouched.
		dst = append(dst, encoded[i], encoded[i+1])
		i++
	}
	return dst
}
