package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ataa-platform/be-aid-ledger/internal/apperr"
	"github.com/ataa-platform/be-aid-ledger/internal/repository"
)

// txStore implements repository.Tx over one pgx transaction.
type txStore struct {
	tx pgx.Tx
}

func (t *txStore) AssociationForUpdate(ctx context.Context, id string) (*repository.Association, error) {
	query := `SELECT ` + associationColumns + ` FROM associations WHERE id = $1 FOR UPDATE`

	a, err := scanAssociation(t.tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("association", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to lock association")
	}
	return a, nil
}

func (t *txStore) ContributionForUpdate(ctx context.Context, id string) (*repository.Contribution, error) {
	query := `SELECT ` + contributionColumns + ` FROM contributions WHERE id = $1 FOR UPDATE`

	c, err := scanContribution(t.tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("contribution", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to lock contribution")
	}
	return c, nil
}

func (t *txStore) Beneficiary(ctx context.Context, id string) (*repository.Beneficiary, error) {
	query := `SELECT ` + beneficiaryColumns + ` FROM beneficiaries WHERE id = $1`

	b, err := scanBeneficiary(t.tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("beneficiary", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to get beneficiary")
	}
	return b, nil
}

func (t *txStore) FamilyForUpdate(ctx context.Context, id string) (*repository.Family, error) {
	query := `SELECT ` + familyColumns + ` FROM families WHERE id = $1 FOR UPDATE`

	f, err := scanFamily(t.tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("family", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to lock family")
	}
	return f, nil
}

func (t *txStore) ActiveRules(ctx context.Context, associationID string) ([]*repository.DonationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM donation_rules
		WHERE association_id = $1 AND is_active = TRUE
		ORDER BY created_at`
	return queryRules(ctx, t.tx, query, associationID)
}

func (t *txStore) InsertDispatch(ctx context.Context, d *repository.Dispatch) error {
	query := `
		INSERT INTO dispatches (association_id, beneficiary_id, family_id, amount,
		                        aid_type, status, notes, processed_by_id, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	err := t.tx.QueryRow(ctx, query,
		d.AssociationID,
		d.BeneficiaryID,
		d.FamilyID,
		d.Amount,
		d.AidType,
		d.Status,
		d.Notes,
		d.ProcessedByID,
		d.CompletedAt,
	).Scan(&d.ID, &d.CreatedAt)

	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to insert dispatch")
	}
	return nil
}

func (t *txStore) AddAssociationBalance(ctx context.Context, id string, delta int64) error {
	query := `
		UPDATE associations
		SET balance = balance + $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := t.tx.QueryRow(ctx, query, id, delta).Scan(&returnedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("association", id)
	}
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to update association balance")
	}
	return nil
}

func (t *txStore) ApplyDispatchToBeneficiary(ctx context.Context, id string, amount int64, at time.Time) error {
	query := `
		UPDATE beneficiaries
		SET total_received = total_received + $2,
		    last_donation_date = $3,
		    updated_at = $3
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := t.tx.QueryRow(ctx, query, id, amount, at).Scan(&returnedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("beneficiary", id)
	}
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to update beneficiary totals")
	}
	return nil
}

func (t *txStore) ApplyDispatchToFamily(ctx context.Context, id string, amount int64, at time.Time) error {
	query := `
		UPDATE families
		SET total_received = total_received + $2,
		    last_donation_date = $3,
		    status = 'COOLDOWN',
		    updated_at = $3
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := t.tx.QueryRow(ctx, query, id, amount, at).Scan(&returnedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("family", id)
	}
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to update family cooldown state")
	}
	return nil
}

func (t *txStore) SetContributionStatus(ctx context.Context, id string, status repository.ContributionStatus, approvedAt *time.Time, notes *string) error {
	query := `
		UPDATE contributions
		SET status = $2,
		    approved_at = $3,
		    notes = COALESCE($4, notes)
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := t.tx.QueryRow(ctx, query, id, status, approvedAt, notes).Scan(&returnedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("contribution", id)
	}
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to update contribution status")
	}
	return nil
}

// ── pg error helpers ─────────────────────────────────────────────────────────

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
