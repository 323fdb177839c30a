package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gyeh/claimboard/internal/model"
)

// ToggleFlag flips a claim's review flag in a single atomic update.
// Entering the flagged state stamps the actor and time; leaving it clears
// both. Returns the updated claim, or ErrNotFound.
func (s *Store) ToggleFlag(ctx context.Context, claimID int64, actor string) (*model.Claim, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, &model.ValidationError{Msg: "actor must not be empty"}
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE claim c SET
			is_flagged = NOT c.is_flagged,
			flagged_by = CASE WHEN c.is_flagged THEN NULL ELSE $2 END,
			flagged_at = CASE WHEN c.is_flagged THEN NULL ELSE now() END,
			updated_at = now()
		WHERE c.claim_id = $1
		RETURNING `+claimCols,
		claimID, actor)

	claim, err := scanClaim(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("toggle flag on claim %d: %w", claimID, err)
	}
	return claim, nil
}

// AddNote appends an immutable note to a claim. Empty or whitespace-only
// text is a ValidationError; an unknown claim id is ErrNotFound.
func (s *Store) AddNote(ctx context.Context, claimID int64, author, text string) (*model.Note, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &model.ValidationError{Msg: "note text must not be empty"}
	}
	var authorArg *string
	if author = strings.TrimSpace(author); author != "" {
		authorArg = &author
	}

	var n model.Note
	err := s.pool.QueryRow(ctx, `
		INSERT INTO note (claim_id, author, body)
		VALUES ($1, $2, $3)
		RETURNING note_id, claim_id, author, body, created_at`,
		claimID, authorArg, text).
		Scan(&n.ID, &n.ClaimID, &n.Author, &n.Body, &n.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("add note to claim %d: %w", claimID, err)
	}
	return &n, nil
}
