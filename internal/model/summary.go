package model

import (
	"time"

	"github.com/google/uuid"
)

// EntityCounts tallies the outcome of one entity type during an ingest run.
type EntityCounts struct {
	Inserted int64
	Skipped  int64
	Errored  int64
}

// Summary captures the outcome of a single ingest run.
type Summary struct {
	IngestRunID uuid.UUID
	Mode        Mode
	ClaimsFile  string
	DetailsFile string
	Delimiter   string
	DryRun      bool

	Claims  EntityCounts
	Details EntityCounts

	// Errors holds the row-level error messages in input order.
	Errors []string

	StartedAt     time.Time
	DurationTotal time.Duration
}
