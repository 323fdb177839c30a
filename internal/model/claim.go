package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Claim is one insurance claim row. Money values are stored as int64 cents;
// decimal accessors rehydrate them for display.
type Claim struct {
	ID                int64
	PatientName       string
	BilledAmountCents int64
	PaidAmountCents   int64
	Status            Status
	InsurerName       string
	DischargeDate     *time.Time

	IsFlagged bool
	FlaggedBy *string
	FlaggedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BilledAmount returns the billed amount in dollars.
func (c *Claim) BilledAmount() decimal.Decimal {
	return decimal.New(c.BilledAmountCents, -2)
}

// PaidAmount returns the paid amount in dollars.
func (c *Claim) PaidAmount() decimal.Decimal {
	return decimal.New(c.PaidAmountCents, -2)
}

// Underpayment is the difference between the billed and paid amounts.
func (c *Claim) Underpayment() decimal.Decimal {
	return c.BilledAmount().Sub(c.PaidAmount())
}

// ClaimDetail holds the procedure codes and denial reasoning for a claim.
// At most one exists per claim.
type ClaimDetail struct {
	ID           int64
	ClaimID      int64
	CPTCodes     []string
	DenialReason *string
}

// Note is a user-authored annotation on a claim. Notes are append-only.
type Note struct {
	ID        int64
	ClaimID   int64
	Author    *string
	Body      string
	CreatedAt time.Time
}
