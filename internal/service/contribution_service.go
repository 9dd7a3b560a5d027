package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ataa-platform/be-aid-ledger/internal/apperr"
	"github.com/ataa-platform/be-aid-ledger/internal/metrics"
	"github.com/ataa-platform/be-aid-ledger/internal/repository"
)

// ContributionService handles donor money entering an association.
type ContributionService struct {
	store repository.Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewContributionService creates a new contribution service.
func NewContributionService(store repository.Store, log zerolog.Logger) *ContributionService {
	return &ContributionService{store: store, log: log, now: time.Now}
}

// CreateContributionRequest represents a create contribution request.
// A donor is either an identified user (DonorID) or an anonymous name/email.
type CreateContributionRequest struct {
	AssociationID string
	Amount        int64
	Currency      string
	DonorID       *string
	DonorName     *string
	DonorEmail    *string
	Type          *string
	Method        *string
	Notes         *string
}

// Create records a new contribution in PENDING state. The association
// balance is untouched until approval.
func (s *ContributionService) Create(ctx context.Context, req *CreateContributionRequest) (*repository.Contribution, error) {
	if req.Amount <= 0 {
		return nil, apperr.InvalidInput("amount", "amount must be positive")
	}

	assoc, err := s.store.Association(ctx, req.AssociationID)
	if err != nil {
		return nil, err
	}
	currency := req.Currency
	if currency == "" {
		currency = assoc.Currency
	}

	c := &repository.Contribution{
		AssociationID: req.AssociationID,
		Amount:        req.Amount,
		Currency:      currency,
		Status:        repository.ContributionPending,
		DonorID:       req.DonorID,
		DonorName:     req.DonorName,
		DonorEmail:    req.DonorEmail,
		Type:          req.Type,
		Method:        req.Method,
		Notes:         req.Notes,
	}
	if err := s.store.CreateContribution(ctx, c); err != nil {
		return nil, err
	}

	metrics.Contributions.WithLabelValues(string(repository.ContributionPending)).Inc()
	s.log.Info().
		Str("contribution_id", c.ID).
		Str("association_id", c.AssociationID).
		Int64("amount", c.Amount).
		Str("currency", c.Currency).
		Msg("Contribution created")

	return c, nil
}

// Approve transitions a PENDING contribution to APPROVED and credits the
// association balance, atomically and exactly once. A second call for the
// same contribution fails with InvalidState.
func (s *ContributionService) Approve(ctx context.Context, id string) (*repository.Contribution, error) {
	var out *repository.Contribution
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		c, err := tx.ContributionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if c.Status != repository.ContributionPending {
			return apperr.InvalidState("only pending contributions can be approved")
		}

		now := s.now().UTC()
		if err := tx.SetContributionStatus(ctx, id, repository.ContributionApproved, &now, nil); err != nil {
			return err
		}
		if err := tx.AddAssociationBalance(ctx, c.AssociationID, c.Amount); err != nil {
			return err
		}

		c.Status = repository.ContributionApproved
		c.ApprovedAt = &now
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Contributions.WithLabelValues(string(repository.ContributionApproved)).Inc()
	s.log.Info().
		Str("contribution_id", out.ID).
		Str("association_id", out.AssociationID).
		Int64("amount", out.Amount).
		Msg("Contribution approved")

	return out, nil
}

// Reject transitions a PENDING contribution to REJECTED, appending the
// optional reason to its notes. The balance is never touched.
func (s *ContributionService) Reject(ctx context.Context, id string, reason *string) (*repository.Contribution, error) {
	var out *repository.Contribution
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		c, err := tx.ContributionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if c.Status != repository.ContributionPending {
			return apperr.InvalidState("only pending contributions can be rejected")
		}

		var notes *string
		if reason != nil {
			appended := "rejected: " + *reason
			if c.Notes != nil && *c.Notes != "" {
				appended = *c.Notes + "\n" + appended
			}
			notes = &appended
		}
		if err := tx.SetContributionStatus(ctx, id, repository.ContributionRejected, nil, notes); err != nil {
			return err
		}

		c.Status = repository.ContributionRejected
		if notes != nil {
			c.Notes = notes
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Contributions.WithLabelValues(string(repository.ContributionRejected)).Inc()
	s.log.Info().
		Str("contribution_id", out.ID).
		Str("association_id", out.AssociationID).
		Msg("Contribution rejected")

	return out, nil
}

// Get retrieves a contribution by ID.
func (s *ContributionService) Get(ctx context.Context, id string) (*repository.Contribution, error) {
	return s.store.Contribution(ctx, id)
}

// List lists an association's contributions with filtering and pagination.
func (s *ContributionService) List(ctx context.Context, associationID string, status *repository.ContributionStatus, page, pageSize int) ([]*repository.Contribution, int64, error) {
	filter := repository.ContributionFilter{
		Status: status,
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}
	return s.store.Contributions(ctx, associationID, filter)
}
