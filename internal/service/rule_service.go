package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ataa-platform/be-aid-ledger/internal/apperr"
	"github.com/ataa-platform/be-aid-ledger/internal/repository"
)

// RuleService manages per-association donation rules. The dispatch engine
// only reads rules; operators create, toggle and delete them here.
type RuleService struct {
	store repository.Store
	log   zerolog.Logger
}

// NewRuleService creates a new rule service.
func NewRuleService(store repository.Store, log zerolog.Logger) *RuleService {
	return &RuleService{store: store, log: log}
}

// CreateRuleRequest represents a create rule request.
type CreateRuleRequest struct {
	AssociationID string
	Type          repository.RuleType
	Value         int64
	Unit          *string
	IsActive      *bool // defaults to true
}

// Create validates and stores a donation rule. At most one active rule per
// type may exist for an association; the store rejects a second one with
// InvalidState, so rule selection never depends on an undefined ordering.
func (s *RuleService) Create(ctx context.Context, req *CreateRuleRequest) (*repository.DonationRule, error) {
	if !repository.ValidRuleType(req.Type) {
		return nil, apperr.InvalidInput("type", "unknown rule type")
	}
	if req.Value <= 0 {
		return nil, apperr.InvalidInput("value", "value must be positive")
	}
	if req.Type == repository.RuleEligibility {
		if req.Unit == nil || *req.Unit != repository.RuleUnitMembers {
			return nil, apperr.InvalidInput("unit", `eligibility rules require unit "members"`)
		}
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	r := &repository.DonationRule{
		AssociationID: req.AssociationID,
		Type:          req.Type,
		Value:         req.Value,
		Unit:          req.Unit,
		IsActive:      active,
	}
	if err := s.store.CreateRule(ctx, r); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("rule_id", r.ID).
		Str("association_id", r.AssociationID).
		Str("type", string(r.Type)).
		Int64("value", r.Value).
		Bool("active", r.IsActive).
		Msg("Donation rule created")

	return r, nil
}

// List returns all rules for an association, active or not.
func (s *RuleService) List(ctx context.Context, associationID string) ([]*repository.DonationRule, error) {
	return s.store.Rules(ctx, associationID)
}

// Toggle activates or deactivates a rule. Activation is subject to the same
// one-active-rule-per-type invariant as creation.
func (s *RuleService) Toggle(ctx context.Context, id string, active bool) (*repository.DonationRule, error) {
	r, err := s.store.SetRuleActive(ctx, id, active)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("rule_id", r.ID).
		Str("association_id", r.AssociationID).
		Str("type", string(r.Type)).
		Bool("active", r.IsActive).
		Msg("Donation rule toggled")

	return r, nil
}

// Delete removes a rule.
func (s *RuleService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteRule(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("rule_id", id).Msg("Donation rule deleted")
	return nil
}
