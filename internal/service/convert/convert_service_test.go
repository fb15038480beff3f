package convertservice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohit/csv2jsonl/internal/config"
	domainerrors "github.com/rohit/csv2jsonl/internal/domain/errors"
	"github.com/rohit/csv2jsonl/internal/domain/models"
	"github.com/rohit/csv2jsonl/internal/metrics"
)

func newTestService(t *testing.T, mutate func(c *config.ConvertConfig)) (*Service, *metrics.Collector) {
	t.Helper()
	cfg := config.Default().Convert
	if mutate != nil {
		mutate(&cfg)
	}
	collector := metrics.NewCollector()
	return NewService(collector, zerolog.Nop(), cfg), collector
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func convertFile(t *testing.T, svc *Service, input string) (string, *models.Result) {
	t.Helper()
	output := filepath.Join(t.TempDir(), "output.jsonl")
	result, err := svc.ConvertFile(writeInput(t, input), output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	return string(data), result
}

func TestConvertFile_DefaultSettings(t *testing.T) {
	svc, _ := newTestService(t, nil)

	out, result := convertFile(t, svc, "name,age\nAda,36\nGrace,")

	assert.Equal(t, "{\"name\": \"Ada\", \"age\": \"36\"}\n{\"name\": \"Grace\", \"age\": \"\"}\n", out)
	assert.Equal(t, 2, result.Records)
	assert.Equal(t, models.RunStatusCompleted, result.Status)
	assert.Equal(t, []string{"name", "age"}, result.Header)
	assert.Equal(t, int64(len("name,age\nAda,36\nGrace,")), result.BytesRead)
}

func TestConvertFile_SniffsSemicolon(t *testing.T) {
	svc, _ := newTestService(t, nil)

	out, result := convertFile(t, svc, "a;b\n1;2")

	assert.Equal(t, "{\"a\": \"1\", \"b\": \"2\"}\n", out)
	assert.Equal(t, ';', result.Format.Delimiter)
	assert.Equal(t, models.FormatSourceSniffed, result.Format.Source)
}

func TestConvertFile_DelimiterOverride(t *testing.T) {
	svc, _ := newTestService(t, func(c *config.ConvertConfig) { c.Delimiter = "," })

	out, result := convertFile(t, svc, "a;b;c\n1;2;3\n4;5;6\n")

	assert.Equal(t, "{\"a;b;c\": \"1;2;3\"}\n{\"a;b;c\": \"4;5;6\"}\n", out)
	assert.Equal(t, models.FormatSourceOverride, result.Format.Source)
}

func TestConvertFile_Dialect(t *testing.T) {
	svc, _ := newTestService(t, func(c *config.ConvertConfig) { c.Dialect = "excel-tab" })

	out, _ := convertFile(t, svc, "a\tb\n1,5\t2\n")

	assert.Equal(t, "{\"a\": \"1,5\", \"b\": \"2\"}\n", out)
}

func TestConvertFile_QuotedDelimiterRoundTrip(t *testing.T) {
	svc, _ := newTestService(t, nil)

	out, _ := convertFile(t, svc, "id,title\n1,\"Hello, world\"\n2,\"semi; colon, and \"\"quotes\"\"\"\n")

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]string
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "Hello, world", first["title"])
	assert.Equal(t, `semi; colon, and "quotes"`, second["title"])
}

func TestConvertFile_LineAndKeyCounts(t *testing.T) {
	svc, _ := newTestService(t, nil)

	header := []string{"c1", "c2", "c3", "c4", "c5"}
	var b strings.Builder
	b.WriteString(strings.Join(header, "|") + "\n")
	const rows = 250
	for i := 0; i < rows; i++ {
		switch i % 3 {
		case 0:
			fmt.Fprintf(&b, "%d|a|b|c|d\n", i)
		case 1:
			fmt.Fprintf(&b, "%d|\"x|y\"|z\n", i) // short row
		default:
			fmt.Fprintf(&b, "%d||||\n", i)
		}
	}

	out, result := convertFile(t, svc, b.String())

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, rows)
	assert.Equal(t, rows, result.Records)
	for i, line := range lines {
		var obj map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &obj), "line %d", i)
		assert.Len(t, obj, len(header), "line %d", i)
		for _, v := range obj {
			assert.IsType(t, "", v, "values must be strings, never null")
		}
	}
}

func TestConvertFile_Idempotent(t *testing.T) {
	input := writeInput(t, "name,city\nZoë,東京\n\"a\nb\",<x>\n")
	dir := t.TempDir()

	svc, _ := newTestService(t, nil)
	first := filepath.Join(dir, "first.jsonl")
	second := filepath.Join(dir, "second.jsonl")
	_, err := svc.ConvertFile(input, first)
	require.NoError(t, err)
	_, err = svc.ConvertFile(input, second)
	require.NoError(t, err)

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b))
	assert.Contains(t, string(a), `"東京"`)
}

func TestConvertFile_StripsBOM(t *testing.T) {
	svc, _ := newTestService(t, nil)

	out, _ := convertFile(t, svc, "\ufeffname\nAda\n")

	assert.Equal(t, "{\"name\": \"Ada\"}\n", out)
}

func TestConvertFile_Latin1(t *testing.T) {
	svc, _ := newTestService(t, func(c *config.ConvertConfig) { c.Encoding = "latin1" })

	out, _ := convertFile(t, svc, "drink\ncaf\xe9\n")

	assert.Equal(t, "{\"drink\": \"café\"}\n", out)
}

func TestConvertFile_EmptyInput(t *testing.T) {
	svc, _ := newTestService(t, nil)

	out, result := convertFile(t, svc, "")

	assert.Empty(t, out)
	assert.Equal(t, 0, result.Records)
}

func TestConvertFile_OverflowKeep(t *testing.T) {
	svc, collector := newTestService(t, func(c *config.ConvertConfig) { c.Overflow = "keep" })

	out, result := convertFile(t, svc, "a,b\n1,2,3\n4,5\n")

	assert.Equal(t, "{\"a\": \"1\", \"b\": \"2\", \"_overflow\": \"3\"}\n{\"a\": \"4\", \"b\": \"5\"}\n", out)
	assert.Equal(t, 1, result.OverflowRows)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.OverflowRowsTotal.WithLabelValues("keep")))
}

func TestConvertFile_Compact(t *testing.T) {
	svc, _ := newTestService(t, func(c *config.ConvertConfig) { c.Compact = true })

	out, _ := convertFile(t, svc, "a,b\n1,2\n")

	assert.Equal(t, "{\"a\":\"1\",\"b\":\"2\"}\n", out)
}

func TestConvertFile_Errors(t *testing.T) {
	tests := []struct {
		name         string
		input        *string
		mutate       func(c *config.ConvertConfig)
		outputInDir  string
		wantCode     string
		outputExists bool
	}{
		{
			name:     "input not found",
			wantCode: domainerrors.ErrCodeInputNotFound,
		},
		{
			name:     "invalid utf-8 in sample",
			input:    strPtr("name\nbad\xff\n"),
			wantCode: domainerrors.ErrCodeEncodingError,
		},
		{
			name:     "duplicate header",
			input:    strPtr("id,id\n1,2\n"),
			wantCode: domainerrors.ErrCodeDuplicateHeader,
		},
		{
			name:     "invalid delimiter",
			input:    strPtr("a,b\n1,2\n"),
			mutate:   func(c *config.ConvertConfig) { c.Delimiter = "::" },
			wantCode: domainerrors.ErrCodeInvalidOption,
		},
		{
			name:     "unknown encoding",
			input:    strPtr("a,b\n1,2\n"),
			mutate:   func(c *config.ConvertConfig) { c.Encoding = "klingon" },
			wantCode: domainerrors.ErrCodeInvalidOption,
		},
		{
			name:        "output directory missing",
			input:       strPtr("a,b\n1,2\n"),
			outputInDir: "missing",
			wantCode:    domainerrors.ErrCodeOutputError,
		},
		{
			name:         "overflow error policy",
			input:        strPtr("a,b\n1,2\n3,4,5\n"),
			mutate:       func(c *config.ConvertConfig) { c.Overflow = "error" },
			wantCode:     domainerrors.ErrCodeRowOverflow,
			outputExists: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, collector := newTestService(t, tt.mutate)

			input := filepath.Join(t.TempDir(), "does-not-exist.csv")
			if tt.input != nil {
				input = writeInput(t, *tt.input)
			}
			output := filepath.Join(t.TempDir(), tt.outputInDir, "out.jsonl")

			result, err := svc.ConvertFile(input, output)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, domainerrors.CodeOf(err))
			assert.Equal(t, models.RunStatusFailed, result.Status)
			assert.Equal(t, 1.0, testutil.ToFloat64(collector.ConversionErrorsTotal.WithLabelValues(tt.wantCode)))

			_, statErr := os.Stat(output)
			assert.Equal(t, tt.outputExists, statErr == nil, "output file existence")
		})
	}
}

func TestConvertFile_FailureLogLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default().Convert
	log := zerolog.New(&buf).Level(zerolog.WarnLevel)
	svc := NewService(metrics.NewCollector(), log, cfg)

	_, err := svc.ConvertFile(filepath.Join(t.TempDir(), "nope.csv"), filepath.Join(t.TempDir(), "out.jsonl"))
	require.Error(t, err)
	assert.Empty(t, buf.String(), "failures are not logged at warn or above")

	buf.Reset()
	svc = NewService(metrics.NewCollector(), zerolog.New(&buf).Level(zerolog.InfoLevel), cfg)
	_, err = svc.ConvertFile(filepath.Join(t.TempDir(), "nope.csv"), filepath.Join(t.TempDir(), "out.jsonl"))
	require.Error(t, err)
	assert.Contains(t, buf.String(), `"message":"Conversion failed"`)
	assert.Contains(t, buf.String(), `"level":"info"`)
}

func TestConvertFile_HTMLNotEscaped(t *testing.T) {
	svc, _ := newTestService(t, nil)

	out, _ := convertFile(t, svc, "a,b\n\"x y\",<&>\n")

	assert.Equal(t, "{\"a\": \"x y\", \"b\": \"<&>\"}\n", out)
}

func TestConvertFile_PartialOutputOnLateError(t *testing.T) {
	svc, _ := newTestService(t, func(c *config.ConvertConfig) { c.Overflow = "error" })

	output := filepath.Join(t.TempDir(), "out.jsonl")
	_, err := svc.ConvertFile(writeInput(t, "a,b\n1,2\n3,4,5\n"), output)
	require.Error(t, err)

	data, readErr := os.ReadFile(output)
	require.NoError(t, readErr)
	assert.Equal(t, "{\"a\": \"1\", \"b\": \"2\"}\n", string(data))
}

func TestConvertStream(t *testing.T) {
	svc, collector := newTestService(t, nil)

	var out bytes.Buffer
	result, err := svc.ConvertStream(strings.NewReader("x|y\n1|2\n3|4\n"), &out)
	require.NoError(t, err)

	assert.Equal(t, "{\"x\": \"1\", \"y\": \"2\"}\n{\"x\": \"3\", \"y\": \"4\"}\n", out.String())
	assert.Equal(t, 2, result.Records)
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.RecordsTotal.WithLabelValues("written")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.FormatResolutionsTotal.WithLabelValues("sniffed", "|")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.ConversionsTotal.WithLabelValues("completed")))
}

func TestConvertFile_Stdio(t *testing.T) {
	svc, _ := newTestService(t, nil)

	var out bytes.Buffer
	svc.SetStdio(strings.NewReader("k\nv\n"), &out)

	result, err := svc.ConvertFile(StdioPath, StdioPath)
	require.NoError(t, err)
	assert.Equal(t, "{\"k\": \"v\"}\n", out.String())
	assert.Equal(t, 1, result.Records)
}
