package csvread

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gyeh/claimboard/internal/model"
)

// claimColumns are the required header columns of a claims file.
var claimColumns = []string{
	"id",
	"patient_name",
	"billed_amount",
	"paid_amount",
	"status",
	"insurer_name",
	"discharge_date",
}

// ClaimReader streams validated claim records from a delimited file.
type ClaimReader struct {
	file   string
	c      *csv.Reader
	hdr    header
	line   int
	closer io.Closer
}

// OpenClaims opens a claims file and validates its header.
func OpenClaims(path string, delim rune) (*ClaimReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open claims file: %w", err)
	}
	r, err := NewClaimReader(f, filepath.Base(path), delim)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewClaimReader reads claim rows from r. name labels row errors.
func NewClaimReader(r io.Reader, name string, delim rune) (*ClaimReader, error) {
	c := newReader(r, delim)
	hdr, err := readHeader(c, name, claimColumns)
	if err != nil {
		return nil, err
	}
	// The header is row 1; data rows are numbered from 2.
	return &ClaimReader{file: name, c: c, hdr: hdr, line: 1}, nil
}

// Next returns the next claim record. A row that fails validation comes
// back as a *RowError with a nil record; io.EOF ends the stream.
func (r *ClaimReader) Next() (*model.ClaimRecord, *RowError, error) {
	rec, err := r.c.Read()
	if err == io.EOF {
		return nil, nil, io.EOF
	}
	r.line++
	if err != nil {
		return nil, r.rowErr(fmt.Sprintf("malformed row: %v", err)), nil
	}

	id, err := strconv.ParseInt(r.hdr.field(rec, "id"), 10, 64)
	if err != nil {
		return nil, r.rowErr(fmt.Sprintf("invalid id %q", r.hdr.field(rec, "id"))), nil
	}
	billed, err := parseCents(r.hdr.field(rec, "billed_amount"))
	if err != nil {
		return nil, r.rowErr(fmt.Sprintf("invalid billed_amount: %v", err)), nil
	}
	paid, err := parseCents(r.hdr.field(rec, "paid_amount"))
	if err != nil {
		return nil, r.rowErr(fmt.Sprintf("invalid paid_amount: %v", err)), nil
	}
	status, err := model.ParseStatus(r.hdr.field(rec, "status"))
	if err != nil {
		return nil, r.rowErr(err.Error()), nil
	}
	patient := r.hdr.field(rec, "patient_name")
	if patient == "" {
		return nil, r.rowErr("empty patient_name"), nil
	}
	insurer := r.hdr.field(rec, "insurer_name")
	if insurer == "" {
		return nil, r.rowErr("empty insurer_name"), nil
	}

	var discharge *time.Time
	if raw := r.hdr.field(rec, "discharge_date"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, r.rowErr(fmt.Sprintf("invalid discharge_date %q", raw)), nil
		}
		discharge = &t
	}

	return &model.ClaimRecord{
		ID:                id,
		PatientName:       patient,
		BilledAmountCents: billed,
		PaidAmountCents:   paid,
		Status:            status,
		InsurerName:       insurer,
		DischargeDate:     discharge,
	}, nil, nil
}

func (r *ClaimReader) rowErr(msg string) *RowError {
	return &RowError{File: r.file, Line: r.line, Msg: msg}
}

// Close releases the underlying file, if any.
func (r *ClaimReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
