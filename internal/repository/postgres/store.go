package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ataa-platform/be-aid-ledger/internal/apperr"
	"github.com/ataa-platform/be-aid-ledger/internal/repository"
)

// Store implements repository.Store on PostgreSQL.
type Store struct {
	db *DB
}

// NewStore creates a new postgres-backed store.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

// ── snapshot reads ───────────────────────────────────────────────────────────

const associationColumns = `id, name, status, balance, currency, created_at, updated_at`

func scanAssociation(row scanner) (*repository.Association, error) {
	a := &repository.Association{}
	err := row.Scan(&a.ID, &a.Name, &a.Status, &a.Balance, &a.Currency, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) Association(ctx context.Context, id string) (*repository.Association, error) {
	query := `SELECT ` + associationColumns + ` FROM associations WHERE id = $1`

	a, err := scanAssociation(s.db.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("association", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to get association")
	}
	return a, nil
}

const contributionColumns = `id, association_id, amount, currency, status, donor_id, donor_name,
       donor_email, type, method, notes, created_at, approved_at`

func scanContribution(row scanner) (*repository.Contribution, error) {
	c := &repository.Contribution{}
	err := row.Scan(&c.ID, &c.AssociationID, &c.Amount, &c.Currency, &c.Status,
		&c.DonorID, &c.DonorName, &c.DonorEmail, &c.Type, &c.Method, &c.Notes,
		&c.CreatedAt, &c.ApprovedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) Contribution(ctx context.Context, id string) (*repository.Contribution, error) {
	query := `SELECT ` + contributionColumns + ` FROM contributions WHERE id = $1`

	c, err := scanContribution(s.db.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("contribution", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to get contribution")
	}
	return c, nil
}

const familyColumns = `id, association_id, name, member_count, status, total_received,
       last_donation_date, created_at, updated_at`

func scanFamily(row scanner) (*repository.Family, error) {
	f := &repository.Family{}
	err := row.Scan(&f.ID, &f.AssociationID, &f.Name, &f.MemberCount, &f.Status,
		&f.TotalReceived, &f.LastDonationDate, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Store) Family(ctx context.Context, id string) (*repository.Family, error) {
	query := `SELECT ` + familyColumns + ` FROM families WHERE id = $1`

	f, err := scanFamily(s.db.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("family", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to get family")
	}
	return f, nil
}

const ruleColumns = `id, association_id, rule_type, value, unit, is_active, created_at, updated_at`

func scanRule(row scanner) (*repository.DonationRule, error) {
	r := &repository.DonationRule{}
	err := row.Scan(&r.ID, &r.AssociationID, &r.Type, &r.Value, &r.Unit,
		&r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func queryRules(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, query string, args ...any) ([]*repository.DonationRule, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to list rules")
	}
	defer rows.Close()

	var rules []*repository.DonationRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan rule")
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (s *Store) ActiveRules(ctx context.Context, associationID string) ([]*repository.DonationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM donation_rules
		WHERE association_id = $1 AND is_active = TRUE
		ORDER BY created_at`
	return queryRules(ctx, s.db.pool, query, associationID)
}

func (s *Store) Rules(ctx context.Context, associationID string) ([]*repository.DonationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM donation_rules
		WHERE association_id = $1
		ORDER BY created_at`
	return queryRules(ctx, s.db.pool, query, associationID)
}

const beneficiaryColumns = `id, association_id, family_id, full_name, status, total_received,
       last_donation_date, created_at, updated_at`

func scanBeneficiary(row scanner) (*repository.Beneficiary, error) {
	b := &repository.Beneficiary{}
	err := row.Scan(&b.ID, &b.AssociationID, &b.FamilyID, &b.FullName, &b.Status,
		&b.TotalReceived, &b.LastDonationDate, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) EligibleBeneficiaries(ctx context.Context, associationID string) ([]*repository.Beneficiary, error) {
	query := `SELECT ` + beneficiaryColumns + ` FROM beneficiaries
		WHERE association_id = $1 AND status = 'ELIGIBLE'
		ORDER BY full_name`

	rows, err := s.db.pool.Query(ctx, query, associationID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to list eligible beneficiaries")
	}
	defer rows.Close()

	var bens []*repository.Beneficiary
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan beneficiary")
		}
		bens = append(bens, b)
	}
	return bens, rows.Err()
}

func (s *Store) Contributions(ctx context.Context, associationID string, filter repository.ContributionFilter) ([]*repository.Contribution, int64, error) {
	query := `SELECT ` + contributionColumns + ` FROM contributions WHERE association_id = $1`
	countQuery := `SELECT COUNT(*) FROM contributions WHERE association_id = $1`

	args := []any{associationID}
	if filter.Status != nil {
		query += ` AND status = $2`
		countQuery += ` AND status = $2`
		args = append(args, *filter.Status)
	}
	query += ` ORDER BY created_at DESC`

	var total int64
	if err := s.db.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(err, apperr.CodeInternal, "failed to count contributions")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Wrap(err, apperr.CodeInternal, "failed to list contributions")
	}
	defer rows.Close()

	contributions := make([]*repository.Contribution, 0)
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, 0, apperr.Wrap(err, apperr.CodeInternal, "failed to scan contribution")
		}
		contributions = append(contributions, c)
	}
	return contributions, total, rows.Err()
}

func (s *Store) DispatchStats(ctx context.Context, associationID string) (*repository.DispatchStats, error) {
	query := `
		SELECT aid_type, COUNT(*), COALESCE(SUM(amount), 0)
		FROM dispatches
		WHERE association_id = $1
		GROUP BY aid_type
		ORDER BY aid_type
	`

	rows, err := s.db.pool.Query(ctx, query, associationID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to aggregate dispatches")
	}
	defer rows.Close()

	stats := &repository.DispatchStats{}
	for rows.Next() {
		var st repository.AidTypeStat
		if err := rows.Scan(&st.AidType, &st.Count, &st.Amount); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan dispatch stats")
		}
		stats.ByAidType = append(stats.ByAidType, st)
		stats.TotalCount += st.Count
		stats.TotalAmount += st.Amount
	}
	return stats, rows.Err()
}

func (s *Store) VerifyLedger(ctx context.Context, associationID string) (*repository.LedgerReport, error) {
	query := `
		SELECT a.balance,
		       COALESCE((SELECT SUM(c.amount) FROM contributions c
		                 WHERE c.association_id = a.id AND c.status = 'APPROVED'), 0),
		       COALESCE((SELECT SUM(d.amount) FROM dispatches d
		                 WHERE d.association_id = a.id), 0)
		FROM associations a
		WHERE a.id = $1
	`

	report := &repository.LedgerReport{}
	err := s.db.pool.QueryRow(ctx, query, associationID).Scan(
		&report.Balance, &report.ApprovedContributions, &report.CompletedDispatches)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("association", associationID)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to verify ledger")
	}
	return report, nil
}

// ── direct writes ────────────────────────────────────────────────────────────

func (s *Store) CreateContribution(ctx context.Context, c *repository.Contribution) error {
	query := `
		INSERT INTO contributions (association_id, amount, currency, status,
		                           donor_id, donor_name, donor_email, type, method, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`

	err := s.db.pool.QueryRow(ctx, query,
		c.AssociationID,
		c.Amount,
		c.Currency,
		c.Status,
		c.DonorID,
		c.DonorName,
		c.DonorEmail,
		c.Type,
		c.Method,
		c.Notes,
	).Scan(&c.ID, &c.CreatedAt)

	if err != nil {
		if isForeignKey(err) {
			return apperr.NotFound("association", c.AssociationID)
		}
		return apperr.Wrap(err, apperr.CodeInternal, "failed to create contribution")
	}
	return nil
}

func (s *Store) CreateRule(ctx context.Context, r *repository.DonationRule) error {
	query := `
		INSERT INTO donation_rules (association_id, rule_type, value, unit, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := s.db.pool.QueryRow(ctx, query,
		r.AssociationID,
		r.Type,
		r.Value,
		r.Unit,
		r.IsActive,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return apperr.InvalidState("an active " + string(r.Type) + " rule already exists for this association")
		}
		if isForeignKey(err) {
			return apperr.NotFound("association", r.AssociationID)
		}
		return apperr.Wrap(err, apperr.CodeInternal, "failed to create rule")
	}
	return nil
}

func (s *Store) SetRuleActive(ctx context.Context, id string, active bool) (*repository.DonationRule, error) {
	query := `
		UPDATE donation_rules
		SET is_active = $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + ruleColumns

	r, err := scanRule(s.db.pool.QueryRow(ctx, query, id, active))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("rule", id)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.InvalidState("an active rule of this type already exists for this association")
		}
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to toggle rule")
	}
	return r, nil
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	tag, err := s.db.pool.Exec(ctx, `DELETE FROM donation_rules WHERE id = $1`, id)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to delete rule")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("rule", id)
	}
	return nil
}

// Update runs fn in a serializable transaction; see DB.InTransaction.
func (s *Store) Update(ctx context.Context, fn func(repository.Tx) error) error {
	return s.db.InTransaction(ctx, func(tx pgx.Tx) error {
		return fn(&txStore{tx: tx})
	})
}
