package models

import "fmt"

// Quoting represents the quoting convention of a delimited file
type Quoting string

const (
	// QuoteMinimal quotes only fields that contain special characters (RFC 4180)
	QuoteMinimal Quoting = "minimal"
	// QuoteAll quotes every field; reads the same as QuoteMinimal
	QuoteAll Quoting = "all"
	// QuoteNone treats quote characters as ordinary data
	QuoteNone Quoting = "none"
)

// ParseQuoting converts a quoting name to a Quoting value
func ParseQuoting(s string) (Quoting, error) {
	switch Quoting(s) {
	case QuoteMinimal, QuoteAll, QuoteNone:
		return Quoting(s), nil
	default:
		return "", fmt.Errorf("unknown quoting %q (want minimal, all or none)", s)
	}
}

// FormatSource records how a Format was chosen
type FormatSource string

const (
	FormatSourceOverride FormatSource = "override"
	FormatSourcePreset   FormatSource = "preset"
	FormatSourceSniffed  FormatSource = "sniffed"
	FormatSourceDefault  FormatSource = "default"
)

// Format describes the dialect used to read an input file.
// It is chosen once per run and never changed afterwards.
type Format struct {
	Name           string       `json:"name"`
	Delimiter      rune         `json:"delimiter"`
	QuoteChar      rune         `json:"quote_char"`
	Quoting        Quoting      `json:"quoting"`
	LineTerminator string       `json:"line_terminator"`
	Source         FormatSource `json:"source"`
}

// DelimiterName returns a printable name for the delimiter
func (f Format) DelimiterName() string {
	switch f.Delimiter {
	case '\t':
		return `\t`
	case ' ':
		return "space"
	default:
		return string(f.Delimiter)
	}
}
