package csvread

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gyeh/claimboard/internal/model"
)

// detailColumns are the required header columns of a details file.
// denial_reason may be blank per row but the column must exist.
var detailColumns = []string{
	"id",
	"claim_id",
	"cpt_codes",
	"denial_reason",
}

// DetailReader streams validated claim-detail records from a delimited file.
type DetailReader struct {
	file   string
	c      *csv.Reader
	hdr    header
	line   int
	closer io.Closer
}

// OpenDetails opens a details file and validates its header.
func OpenDetails(path string, delim rune) (*DetailReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open details file: %w", err)
	}
	r, err := NewDetailReader(f, filepath.Base(path), delim)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewDetailReader reads detail rows from r. name labels row errors.
func NewDetailReader(r io.Reader, name string, delim rune) (*DetailReader, error) {
	c := newReader(r, delim)
	hdr, err := readHeader(c, name, detailColumns)
	if err != nil {
		return nil, err
	}
	return &DetailReader{file: name, c: c, hdr: hdr, line: 1}, nil
}

// Next returns the next detail record. A row that fails validation comes
// back as a *RowError with a nil record; io.EOF ends the stream.
// Whether the referenced claim exists is the caller's concern.
func (r *DetailReader) Next() (*model.DetailRecord, *RowError, error) {
	rec, err := r.c.Read()
	if err == io.EOF {
		return nil, nil, io.EOF
	}
	r.line++
	if err != nil {
		return nil, r.rowErr(fmt.Sprintf("malformed row: %v", err)), nil
	}

	claimID, err := strconv.ParseInt(r.hdr.field(rec, "claim_id"), 10, 64)
	if err != nil {
		return nil, r.rowErr(fmt.Sprintf("invalid claim_id %q", r.hdr.field(rec, "claim_id"))), nil
	}

	return &model.DetailRecord{
		ClaimID:      claimID,
		CPTCodes:     splitCodes(r.hdr.field(rec, "cpt_codes")),
		DenialReason: optStr(r.hdr.field(rec, "denial_reason")),
	}, nil, nil
}

func (r *DetailReader) rowErr(msg string) *RowError {
	return &RowError{File: r.file, Line: r.line, Msg: msg}
}

// Name returns the file label used in row errors.
func (r *DetailReader) Name() string { return r.file }

// Line returns the row number of the most recently read row.
func (r *DetailReader) Line() int { return r.line }

// Close releases the underlying file, if any.
func (r *DetailReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
