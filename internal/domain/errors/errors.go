package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes for conversion failures
const (
	// Input errors
	ErrCodeInputNotFound  = "INPUT_NOT_FOUND"
	ErrCodeInputReadError = "INPUT_READ_ERROR"
	ErrCodeEncodingError  = "ENCODING_ERROR"

	// Parse errors
	ErrCodeParseError      = "PARSE_ERROR"
	ErrCodeDuplicateHeader = "DUPLICATE_HEADER"
	ErrCodeRowOverflow     = "ROW_OVERFLOW"

	// Output errors
	ErrCodeOutputError = "OUTPUT_ERROR"

	// Option and configuration errors
	ErrCodeInvalidOption = "INVALID_OPTION"
	ErrCodeConfigError   = "CONFIG_ERROR"
)

// ConvertError represents a fatal error raised during a conversion run
type ConvertError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
	Line    int    `json:"line,omitempty"`
	Err     error  `json:"-"`
}

func (e *ConvertError) Error() string {
	msg := e.Message
	if e.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

func (e *ConvertError) Unwrap() error {
	return e.Err
}

// NewConvertError creates a new conversion error
func NewConvertError(code, message string, err error) *ConvertError {
	return &ConvertError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithPath returns the error annotated with a file path
func (e *ConvertError) WithPath(path string) *ConvertError {
	e.Path = path
	return e
}

// WithLine returns the error annotated with a source line number
func (e *ConvertError) WithLine(line int) *ConvertError {
	e.Line = line
	return e
}

// CodeOf returns the code of the first ConvertError in err's chain, or "" if none.
func CodeOf(err error) string {
	var ce *ConvertError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// Error factory functions
func ErrInputNotFound(path string, err error) *ConvertError {
	return NewConvertError(ErrCodeInputNotFound, fmt.Sprintf("input file '%s' not found", path), err).WithPath(path)
}

func ErrInputRead(path string, err error) *ConvertError {
	return NewConvertError(ErrCodeInputReadError, "failed to read input", err).WithPath(path)
}

func ErrEncoding(encoding string, err error) *ConvertError {
	return NewConvertError(ErrCodeEncodingError, fmt.Sprintf("input is not valid %s", encoding), err)
}

func ErrParse(line int, err error) *ConvertError {
	return NewConvertError(ErrCodeParseError, "malformed delimited input", err).WithLine(line)
}

func ErrDuplicateHeader(name string) *ConvertError {
	return NewConvertError(ErrCodeDuplicateHeader, fmt.Sprintf("duplicate header field %q", name), nil).WithLine(1)
}

func ErrRowOverflow(line, fields, headers int) *ConvertError {
	return NewConvertError(ErrCodeRowOverflow,
		fmt.Sprintf("row has %d fields but header has %d", fields, headers), nil).WithLine(line)
}

func ErrOutput(path string, err error) *ConvertError {
	return NewConvertError(ErrCodeOutputError, "failed to write output", err).WithPath(path)
}

func ErrInvalidOption(message string) *ConvertError {
	return NewConvertError(ErrCodeInvalidOption, message, nil)
}

func ErrConfig(path string, err error) *ConvertError {
	return NewConvertError(ErrCodeConfigError, "failed to load config", err).WithPath(path)
}
