package model

import "time"

// ClaimRecord is a validated, normalized claims-file row ready for loading.
type ClaimRecord struct {
	ID                int64
	PatientName       string
	BilledAmountCents int64
	PaidAmountCents   int64
	Status            Status
	InsurerName       string
	DischargeDate     *time.Time
}

// ClaimColumns returns the ordered column names for COPY into claim.
// Flag and timestamp columns are left to their defaults.
func ClaimColumns() []string {
	return []string{
		"claim_id",
		"patient_name",
		"billed_amount_cents",
		"paid_amount_cents",
		"status",
		"insurer_name",
		"discharge_date",
	}
}

// CopyValues returns the row values in ClaimColumns() order,
// suitable for pgx CopyFromSource.
func (r *ClaimRecord) CopyValues() []any {
	return []any{
		r.ID,
		r.PatientName,
		r.BilledAmountCents,
		r.PaidAmountCents,
		string(r.Status),
		r.InsurerName,
		r.DischargeDate,
	}
}

// DetailRecord is a validated details-file row ready for loading.
type DetailRecord struct {
	ClaimID      int64
	CPTCodes     []string
	DenialReason *string
}

// DetailColumns returns the ordered column names for COPY into claim_detail.
func DetailColumns() []string {
	return []string{
		"claim_id",
		"cpt_codes",
		"denial_reason",
	}
}

// CopyValues returns the row values in DetailColumns() order.
// An absent code list is written as an empty array, not NULL.
func (r *DetailRecord) CopyValues() []any {
	codes := r.CPTCodes
	if codes == nil {
		codes = []string{}
	}
	return []any{
		r.ClaimID,
		codes,
		r.DenialReason,
	}
}
