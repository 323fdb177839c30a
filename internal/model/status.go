package model

import (
	"fmt"
	"strings"
)

// Status is the processing state of a claim.
type Status string

const (
	StatusPaid        Status = "PAID"
	StatusDenied      Status = "DENIED"
	StatusUnderReview Status = "UNDER REVIEW"
)

// AllStatuses lists the valid claim statuses in canonical order.
var AllStatuses = []Status{StatusPaid, StatusDenied, StatusUnderReview}

// ParseStatus upper-cases a raw status value and checks it against the
// fixed set. Unknown values are an error, never a silent default.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	for _, v := range AllStatuses {
		if s == v {
			return s, nil
		}
	}
	return "", fmt.Errorf("invalid status %q", raw)
}

// Mode selects the ingestion merge policy.
type Mode string

const (
	// ModeAppend inserts new claims only; existing ids are skipped untouched.
	ModeAppend Mode = "append"
	// ModeOverwrite replaces the entire dataset: delete all, then insert.
	ModeOverwrite Mode = "overwrite"
)

// ParseMode validates an ingestion mode string.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeAppend:
		return ModeAppend, nil
	case ModeOverwrite:
		return ModeOverwrite, nil
	}
	return "", fmt.Errorf("invalid mode %q (want append or overwrite)", raw)
}
