// Package rows parses uploaded spreadsheets into headers and rows keyed by
// header.
package rows

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxSize is the largest input Parse accepts.
const MaxSize = 32 << 20

// ErrEmpty is returned for input without a header row.
var ErrEmpty = errors.New("empty file: no header row found")

// Warning is a non-fatal problem with one line of input.
type Warning struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// Table is a parsed file. Headers are unique and in file order; each row
// holds one value per header.
type Table struct {
	Headers  []string            `json:"headers"`
	Rows     []map[string]string `json:"rows"`
	Encoding string              `json:"encoding"`
	Warnings []Warning           `json:"warnings,omitempty"`
}

// ParseReader reads at most MaxSize bytes from r and parses them.
func ParseReader(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if len(data) > MaxSize {
		return nil, fmt.Errorf("input too large: more than %d bytes", MaxSize)
	}
	return Parse(data)
}

// Parse decodes data and reads it as delimited text. The delimiter is the
// one of comma, semicolon or tab that occurs most often in the header line.
// Blank headers become "Column N" and repeated headers get a " (2)", " (3)"
// suffix. Short rows are padded, long rows truncated, and rows with only
// empty cells dropped.
func Parse(data []byte) (*Table, error) {
	decoded, enc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("encoding detection failed: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = sniffDelimiter(decoded)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	raw, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	t := &Table{Headers: uniqueHeaders(raw), Encoding: enc}
	width := len(t.Headers)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			line := 0
			if errors.As(err, &pe) {
				line = pe.Line
			}
			t.Warnings = append(t.Warnings, Warning{Line: line, Message: fmt.Sprintf("parse error: %v", err)})
			continue
		}
		line, _ := reader.FieldPos(0)
		if blankRecord(record) {
			continue
		}
		if len(record) > width {
			t.Warnings = append(t.Warnings, Warning{
				Line:    line,
				Message: fmt.Sprintf("row has %d columns, expected %d; truncating extra columns", len(record), width),
			})
		}

		row := make(map[string]string, width)
		for i, h := range t.Headers {
			if i < len(record) {
				row[h] = record[i]
			} else {
				row[h] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func uniqueHeaders(raw []string) []string {
	out := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	for i, h := range raw {
		base := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if base == "" {
			base = fmt.Sprintf("Column %d", i+1)
		}
		name := base
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s (%d)", base, n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
