// Package csvread reads delimited claims and claim-details files into
// validated, normalized records. A file with a missing or malformed header
// fails at Open; a bad individual row is surfaced as a RowError from Next
// and never aborts the stream.
package csvread

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// RowError describes a single row that failed validation.
type RowError struct {
	File string
	Line int
	Msg  string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("Error in %s at row %d: %s", e.File, e.Line, e.Msg)
}

// header maps column names to their position in the file.
type header map[string]int

// readHeader consumes the first row and checks that every required column
// is present. Column order is irrelevant and extra columns are ignored.
func readHeader(c *csv.Reader, file string, required []string) (header, error) {
	rec, err := c.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: missing header row", file)
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", file, err)
	}
	h := make(header, len(rec))
	for i, name := range rec {
		h[strings.TrimSpace(name)] = i
	}
	for _, name := range required {
		if _, ok := h[name]; !ok {
			return nil, fmt.Errorf("%s: missing required column %q", file, name)
		}
	}
	return h, nil
}

// field returns the trimmed value of the named column, or "" when the row
// is too short to contain it.
func (h header) field(rec []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// newReader builds a csv.Reader with the given delimiter. Field-count
// mismatches are handled per row, not as stream failures.
func newReader(r io.Reader, delim rune) *csv.Reader {
	c := csv.NewReader(r)
	c.Comma = delim
	c.FieldsPerRecord = -1
	return c
}

// parseCents parses a non-negative decimal amount with at most two
// fractional digits into integer cents.
func parseCents(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("not a decimal: %q", s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative amount %s", s)
	}
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("amount %s has more than two decimal places", s)
	}
	return cents.IntPart(), nil
}

// splitCodes splits a comma-separated code field, trimming each element and
// dropping empties. An empty field yields an empty list.
func splitCodes(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			codes = append(codes, p)
		}
	}
	return codes
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
