package parsers

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rohit/csv2jsonl/internal/domain/models"
)

// Dialect preset names
const (
	DialectExcel    = "excel"
	DialectExcelTab = "excel-tab"
	DialectUnix     = "unix"

	DefaultDialect = DialectExcel
)

var presets = map[string]models.Format{
	DialectExcel: {
		Name:           DialectExcel,
		Delimiter:      ',',
		QuoteChar:      '"',
		Quoting:        models.QuoteMinimal,
		LineTerminator: "\r\n",
		Source:         models.FormatSourcePreset,
	},
	DialectExcelTab: {
		Name:           DialectExcelTab,
		Delimiter:      '\t',
		QuoteChar:      '"',
		Quoting:        models.QuoteMinimal,
		LineTerminator: "\r\n",
		Source:         models.FormatSourcePreset,
	},
	DialectUnix: {
		Name:           DialectUnix,
		Delimiter:      ',',
		QuoteChar:      '"',
		Quoting:        models.QuoteAll,
		LineTerminator: "\n",
		Source:         models.FormatSourcePreset,
	},
}

// DefaultFormat returns the comma-delimited, double-quote-escaped fallback format
func DefaultFormat() models.Format {
	f := presets[DefaultDialect]
	f.Source = models.FormatSourceDefault
	return f
}

// ResolveDialect looks up a preset by name (case-insensitive).
// Unknown names resolve to the default format and ok=false.
func ResolveDialect(name string) (f models.Format, ok bool) {
	if f, ok := presets[strings.ToLower(strings.TrimSpace(name))]; ok {
		return f, true
	}
	return DefaultFormat(), false
}

// DialectNames returns the preset names in sorted order
func DialectNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseDelimiter validates an explicit delimiter option.
// "tab" and the two-character escape `\t` both mean a tab.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "tab", `\t`:
		return '\t', nil
	}

	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	switch r {
	case '"', '\r', '\n', utf8.RuneError:
		return 0, fmt.Errorf("delimiter %q is not allowed", s)
	}
	return r, nil
}

// OverrideFormat builds the format used when a delimiter is given explicitly
func OverrideFormat(delimiter rune) models.Format {
	return models.Format{
		Name:           "custom",
		Delimiter:      delimiter,
		QuoteChar:      '"',
		Quoting:        models.QuoteMinimal,
		LineTerminator: "\r\n",
		Source:         models.FormatSourceOverride,
	}
}
