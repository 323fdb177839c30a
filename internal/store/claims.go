package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gyeh/claimboard/internal/model"
	"github.com/gyeh/claimboard/internal/query"
)

// ClaimWithDetail pairs a claim with its detail record, when one exists.
type ClaimWithDetail struct {
	Claim  model.Claim
	Detail *model.ClaimDetail
}

// ClaimPage is one page of a claim listing.
type ClaimPage struct {
	Claims  []ClaimWithDetail
	Total   int64
	HasNext bool
}

// ClaimBundle is a single claim with its detail and all of its notes.
type ClaimBundle struct {
	ClaimWithDetail
	Notes []model.Note
}

const detailCols = `d.claim_detail_id, d.cpt_codes, d.denial_reason`

const claimJoin = `SELECT ` + claimCols + `, ` + detailCols + `
	FROM claim c
	LEFT JOIN claim_detail d ON d.claim_id = c.claim_id`

func scanClaimWithDetail(sc scanner) (*ClaimWithDetail, error) {
	var c model.Claim
	var status string
	var detailID *int64
	var codes []string
	var reason *string
	err := sc.Scan(
		&c.ID, &c.PatientName, &c.BilledAmountCents, &c.PaidAmountCents,
		&status, &c.InsurerName, &c.DischargeDate, &c.IsFlagged, &c.FlaggedBy, &c.FlaggedAt,
		&c.CreatedAt, &c.UpdatedAt,
		&detailID, &codes, &reason,
	)
	if err != nil {
		return nil, err
	}
	c.Status = model.Status(status)
	cwd := &ClaimWithDetail{Claim: c}
	if detailID != nil {
		cwd.Detail = &model.ClaimDetail{
			ID:           *detailID,
			ClaimID:      c.ID,
			CPTCodes:     codes,
			DenialReason: reason,
		}
	}
	return cwd, nil
}

// QueryClaims returns one page of claims matching the given parameters,
// joined with their details, plus the total match count.
func (s *Store) QueryClaims(ctx context.Context, p query.Params) (*ClaimPage, error) {
	q, err := p.Build()
	if err != nil {
		return nil, err
	}

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM claim c`+q.Where, q.Args...).
		Scan(&total); err != nil {
		return nil, fmt.Errorf("count claims: %w", err)
	}

	sql := claimJoin + q.Where + q.OrderBy +
		fmt.Sprintf(" LIMIT %d OFFSET %d", q.Limit, q.Offset)
	rows, err := s.pool.Query(ctx, sql, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	defer rows.Close()

	page := &ClaimPage{Total: total}
	for rows.Next() {
		cwd, err := scanClaimWithDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		page.Claims = append(page.Claims, *cwd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read claims: %w", err)
	}

	page.HasNext = int64(q.Offset+len(page.Claims)) < total
	return page, nil
}

// GetClaim returns a single claim with its detail and notes in creation
// order. Returns ErrNotFound for an unknown id.
func (s *Store) GetClaim(ctx context.Context, claimID int64) (*ClaimBundle, error) {
	row := s.pool.QueryRow(ctx, claimJoin+` WHERE c.claim_id = $1`, claimID)
	cwd, err := scanClaimWithDetail(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get claim %d: %w", claimID, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT note_id, claim_id, author, body, created_at
		 FROM note WHERE claim_id = $1
		 ORDER BY created_at, note_id`, claimID)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	bundle := &ClaimBundle{ClaimWithDetail: *cwd}
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.ClaimID, &n.Author, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		bundle.Notes = append(bundle.Notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read notes: %w", err)
	}
	return bundle, nil
}
