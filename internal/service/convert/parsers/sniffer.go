package parsers

import (
	"bytes"

	"github.com/rohit/csv2jsonl/internal/domain/models"
)

// SampleSize is the number of leading input bytes inspected when sniffing
const SampleSize = 64 * 1024

// delimiterCandidates lists the sniffable delimiters in preference order
var delimiterCandidates = []rune{',', '\t', ';', '|'}

// consistencyThreshold is the minimum share of rows that must fit a
// candidate's modal per-row count for it to be accepted
const consistencyThreshold = 0.9

// FormatOptions holds the explicit overrides given for a run
type FormatOptions struct {
	Delimiter string
	Dialect   string
	Quoting   models.Quoting
}

// ResolveFormat decides the format for a run: an explicit delimiter wins,
// then a named dialect, then sniffing the sample, then the default format.
func ResolveFormat(sample []byte, opts FormatOptions) (models.Format, error) {
	var f models.Format

	switch {
	case opts.Delimiter != "":
		d, err := ParseDelimiter(opts.Delimiter)
		if err != nil {
			return models.Format{}, err
		}
		f = OverrideFormat(d)
	case opts.Dialect != "":
		f, _ = ResolveDialect(opts.Dialect)
	default:
		f, _ = Sniff(sample)
	}

	if opts.Quoting != "" {
		f.Quoting = opts.Quoting
	}
	return f, nil
}

// Sniff infers the format of a sample. When no candidate delimiter is
// plausible it returns the default format and ok=false.
func Sniff(sample []byte) (f models.Format, ok bool) {
	truncated := len(sample) >= SampleSize
	counts := countDelimiters(sample, truncated)
	if len(counts) == 0 {
		return DefaultFormat(), false
	}

	best := -1
	var bestConsistency float64
	var bestMode int
	for i := range delimiterCandidates {
		mode, consistency := modeOf(counts, i)
		if mode == 0 || consistency < consistencyThreshold {
			continue
		}
		if best == -1 || consistency > bestConsistency ||
			(consistency == bestConsistency && mode > bestMode) {
			best, bestConsistency, bestMode = i, consistency, mode
		}
	}
	if best == -1 {
		return DefaultFormat(), false
	}

	terminator := "\n"
	if bytes.Contains(sample, []byte("\r\n")) {
		terminator = "\r\n"
	}

	return models.Format{
		Name:           "sniffed",
		Delimiter:      delimiterCandidates[best],
		QuoteChar:      '"',
		Quoting:        models.QuoteMinimal,
		LineTerminator: terminator,
		Source:         models.FormatSourceSniffed,
	}, true
}

// countDelimiters splits the sample into logical rows, honouring double
// quotes, and counts each candidate outside quotes. Blank rows are skipped.
// When the sample was cut short its last unterminated row is discarded.
func countDelimiters(sample []byte, truncated bool) [][]int {
	var rows [][]int
	current := make([]int, len(delimiterCandidates))
	inQuotes := false
	empty := true

	flush := func() {
		if !empty {
			rows = append(rows, current)
		}
		current = make([]int, len(delimiterCandidates))
		empty = true
	}

	for _, r := range string(sample) {
		if r == '"' {
			inQuotes = !inQuotes
			empty = false
			continue
		}
		if inQuotes {
			continue
		}
		switch r {
		case '\n':
			flush()
			continue
		case '\r':
			continue
		}
		empty = false
		for i, c := range delimiterCandidates {
			if r == c {
				current[i]++
			}
		}
	}

	if !empty && (!truncated || len(rows) == 0) {
		rows = append(rows, current)
	}
	return rows
}

// modeOf returns the most common per-row count of candidate i (larger count
// wins ties) and the share of rows that fit it. A row fits when it has at
// least one occurrence and no more than the mode, so rows with missing
// trailing fields still count.
func modeOf(rows [][]int, i int) (mode int, consistency float64) {
	freq := make(map[int]int)
	for _, row := range rows {
		freq[row[i]]++
	}

	bestRows := 0
	for count, n := range freq {
		if n > bestRows || (n == bestRows && count > mode) {
			mode, bestRows = count, n
		}
	}

	fitting := 0
	for count, n := range freq {
		if count > 0 && count <= mode {
			fitting += n
		}
	}
	return mode, float64(fitting) / float64(len(rows))
}
