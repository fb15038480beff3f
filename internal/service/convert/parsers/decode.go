package parsers

// decode.go turns raw input bytes into UTF-8 text for the row reader.
//
// UTF-8 input is validated strictly: the first invalid byte sequence stops
// the stream with a *DecodeError instead of being replaced. Other encodings
// are decoded through golang.org/x/text. A leading byte order mark is
// dropped in every case.

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultEncoding is used when no encoding is configured
const DefaultEncoding = "utf-8"

const decodeChunkSize = 32 * 1024

// DecodeError reports input bytes that are not valid in the configured encoding
type DecodeError struct {
	Encoding string
	Offset   int64
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid %s byte sequence at offset %d", e.Encoding, e.Offset)
}

// isUTF8 reports whether name is one of the spellings of UTF-8, with or without BOM
func isUTF8(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8", "utf_8", "utf-8-sig", "utf_8_sig", "unicode-1-1-utf-8":
		return true
	}
	return false
}

// LookupEncoding resolves an encoding name using the WHATWG index first and
// the IANA registry second. It returns the canonical name of the encoding.
func LookupEncoding(name string) (encoding.Encoding, string, error) {
	if isUTF8(name) {
		return unicode.UTF8BOM, DefaultEncoding, nil
	}

	if enc, err := htmlindex.Get(name); err == nil {
		canonical, err := htmlindex.Name(enc)
		if err != nil {
			canonical = strings.ToLower(name)
		}
		return enc, canonical, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, "", fmt.Errorf("unsupported encoding %q", name)
	}
	canonical, err := ianaindex.IANA.Name(enc)
	if err != nil {
		canonical = strings.ToLower(name)
	}
	return enc, canonical, nil
}

// NewDecodingReader wraps r so that reads return UTF-8 text decoded from the named encoding
func NewDecodingReader(r io.Reader, name string) (io.Reader, error) {
	enc, _, err := LookupEncoding(name)
	if err != nil {
		return nil, err
	}

	if isUTF8(name) {
		// The validator runs on raw bytes, so the BOM decoder only ever sees valid input.
		return transform.NewReader(newUTF8Validator(r), enc.NewDecoder()), nil
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}

// utf8Validator passes bytes through unchanged until it meets an invalid
// UTF-8 sequence. Incomplete sequences at a chunk boundary are held back
// until the next read completes them.
type utf8Validator struct {
	reader io.Reader
	chunk  []byte
	tail   []byte
	out    []byte
	offset int64
	err    error
}

func newUTF8Validator(r io.Reader) *utf8Validator {
	return &utf8Validator{
		reader: r,
		chunk:  make([]byte, decodeChunkSize),
	}
}

// Read implements io.Reader.
func (v *utf8Validator) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(v.out) == 0 {
		if v.err != nil {
			return 0, v.err
		}
		v.fill()
	}
	n := copy(p, v.out)
	v.out = v.out[n:]
	return n, nil
}

func (v *utf8Validator) fill() {
	m, err := v.reader.Read(v.chunk)

	data := make([]byte, 0, len(v.tail)+m)
	data = append(data, v.tail...)
	data = append(data, v.chunk[:m]...)
	v.tail = nil

	valid := validPrefix(data)
	rest := data[valid:]
	v.out = data[:valid]

	switch {
	case err != nil && err != io.EOF:
		v.err = err
	case len(rest) == 0:
		v.err = err
	case err == nil && !utf8.FullRune(rest):
		v.tail = rest
	default:
		v.err = &DecodeError{Encoding: DefaultEncoding, Offset: v.offset + int64(valid)}
	}
	v.offset += int64(valid)
}

// validPrefix returns the length of the longest valid UTF-8 prefix of data
func validPrefix(data []byte) int {
	if utf8.Valid(data) {
		return len(data)
	}
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return len(data)
}

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader creates a counting reader.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}
