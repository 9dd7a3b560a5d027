package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ataa-platform/be-aid-ledger/internal/apperr"
	"github.com/ataa-platform/be-aid-ledger/internal/metrics"
	"github.com/ataa-platform/be-aid-ledger/internal/repository"
	"github.com/ataa-platform/be-aid-ledger/internal/rules"
)

// DispatchService is the dispatch engine: it validates a requested aid
// disbursement against the association's active rules and applies it as one
// atomic transition across balance, dispatch record, beneficiary totals and
// family cooldown state.
type DispatchService struct {
	store repository.Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewDispatchService creates a new dispatch service.
func NewDispatchService(store repository.Store, log zerolog.Logger) *DispatchService {
	return &DispatchService{store: store, log: log, now: time.Now}
}

// DispatchAidRequest represents a dispatch aid request.
type DispatchAidRequest struct {
	AssociationID string
	BeneficiaryID string
	Amount        int64
	AidType       repository.AidType
	FamilyID      *string
	Notes         *string
	ActorID       string
}

// BudgetReport is an association's spendable balance.
type BudgetReport struct {
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

// StatsReport aggregates completed dispatches alongside the current budget.
type StatsReport struct {
	Budget      BudgetReport             `json:"budget"`
	TotalCount  int64                    `json:"total_count"`
	TotalAmount int64                    `json:"total_amount"`
	ByAidType   []repository.AidTypeStat `json:"by_aid_type"`
}

// EligibleBeneficiary annotates an eligible beneficiary with the household
// cooldown verdict. CooldownEndsAt is set only when currently ineligible.
type EligibleBeneficiary struct {
	Beneficiary    *repository.Beneficiary `json:"beneficiary"`
	CanReceiveNow  bool                    `json:"can_receive_now"`
	CooldownEndsAt *time.Time              `json:"cooldown_ends_at,omitempty"`
}

// DispatchAid validates and commits an aid disbursement. Preconditions are
// checked in a fixed order and fail fast with no partial effects; the commit
// runs as one serializable transaction scoped to the association. A commit
// that loses against a concurrent writer returns a Conflict error the caller
// may retry with fresh reads.
func (s *DispatchService) DispatchAid(ctx context.Context, req *DispatchAidRequest) (*repository.Dispatch, error) {
	if req.Amount <= 0 {
		return nil, apperr.InvalidInput("amount", "amount must be positive")
	}
	if req.ActorID == "" {
		return nil, apperr.InvalidInput("actor_id", "actor id is required")
	}
	aidType := req.AidType
	if aidType == "" {
		aidType = repository.AidCash
	}
	if !repository.ValidAidType(aidType) {
		return nil, apperr.InvalidInput("aid_type", "unknown aid type")
	}

	var dispatch *repository.Dispatch
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		now := s.now().UTC()

		assoc, err := tx.AssociationForUpdate(ctx, req.AssociationID)
		if err != nil {
			return err
		}
		if assoc.Balance < req.Amount {
			return apperr.InsufficientBudget(assoc.Balance, req.Amount)
		}

		ben, err := tx.Beneficiary(ctx, req.BeneficiaryID)
		if err != nil {
			return err
		}
		if ben.AssociationID != req.AssociationID {
			return apperr.CrossTenant("beneficiary", ben.ID)
		}
		if ben.Status != repository.BeneficiaryEligible {
			return apperr.InvalidState("beneficiary is not eligible for aid")
		}

		// Operative family: the explicit request argument wins, otherwise the
		// beneficiary's own household.
		familyID := req.FamilyID
		if familyID == nil {
			familyID = ben.FamilyID
		}

		var family *repository.Family
		if familyID != nil {
			family, err = tx.FamilyForUpdate(ctx, *familyID)
			if err != nil {
				return err
			}
			if family.AssociationID != req.AssociationID {
				return apperr.CrossTenant("family", family.ID)
			}
		}

		active, err := tx.ActiveRules(ctx, req.AssociationID)
		if err != nil {
			return err
		}
		sel := rules.Select(active)

		if sel.Frequency != nil && family != nil {
			days := int(sel.Frequency.Value)
			if !rules.IsEligible(family.LastDonationDate, days, now) {
				return apperr.CooldownActive(rules.DaysRemaining(*family.LastDonationDate, days, now))
			}
		}
		if sel.Amount != nil && req.Amount > sel.Amount.Value {
			return apperr.AmountExceedsLimit(sel.Amount.Value)
		}
		if sel.Eligibility != nil && family != nil && int64(family.MemberCount) < sel.Eligibility.Value {
			return apperr.FamilyTooSmall(sel.Eligibility.Value)
		}

		d := &repository.Dispatch{
			AssociationID: req.AssociationID,
			BeneficiaryID: req.BeneficiaryID,
			FamilyID:      familyID,
			Amount:        req.Amount,
			AidType:       aidType,
			Status:        repository.DispatchCompleted,
			Notes:         req.Notes,
			ProcessedByID: req.ActorID,
			CompletedAt:   now,
		}
		if err := tx.InsertDispatch(ctx, d); err != nil {
			return err
		}
		if err := tx.AddAssociationBalance(ctx, req.AssociationID, -req.Amount); err != nil {
			return err
		}
		if err := tx.ApplyDispatchToBeneficiary(ctx, req.BeneficiaryID, req.Amount, now); err != nil {
			return err
		}
		// Completing a dispatch always re-arms the household cooldown clock,
		// even when no FREQUENCY rule is active.
		if familyID != nil {
			if err := tx.ApplyDispatchToFamily(ctx, *familyID, req.Amount, now); err != nil {
				return err
			}
		}

		dispatch = d
		return nil
	})
	if err != nil {
		if apperr.IsRuleViolation(err) {
			metrics.DispatchRejections.WithLabelValues(string(apperr.CodeOf(err))).Inc()
		}
		return nil, err
	}

	metrics.Dispatches.WithLabelValues(string(dispatch.AidType)).Inc()
	s.log.Info().
		Str("dispatch_id", dispatch.ID).
		Str("association_id", dispatch.AssociationID).
		Str("beneficiary_id", dispatch.BeneficiaryID).
		Str("aid_type", string(dispatch.AidType)).
		Int64("amount", dispatch.Amount).
		Str("processed_by", dispatch.ProcessedByID).
		Msg("Aid dispatched")

	return dispatch, nil
}

// GetBudget returns the association's current balance and currency.
func (s *DispatchService) GetBudget(ctx context.Context, associationID string) (*BudgetReport, error) {
	assoc, err := s.store.Association(ctx, associationID)
	if err != nil {
		return nil, err
	}
	return &BudgetReport{Balance: assoc.Balance, Currency: assoc.Currency}, nil
}

// GetDispatchStats returns the per-aid-type dispatch aggregate plus the
// current budget.
func (s *DispatchService) GetDispatchStats(ctx context.Context, associationID string) (*StatsReport, error) {
	assoc, err := s.store.Association(ctx, associationID)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.DispatchStats(ctx, associationID)
	if err != nil {
		return nil, err
	}
	return &StatsReport{
		Budget:      BudgetReport{Balance: assoc.Balance, Currency: assoc.Currency},
		TotalCount:  stats.TotalCount,
		TotalAmount: stats.TotalAmount,
		ByAidType:   stats.ByAidType,
	}, nil
}

// ListEligible returns one pass over the association's ELIGIBLE beneficiaries,
// each annotated by re-running the cooldown evaluator against the active
// FREQUENCY rule and the beneficiary's family. Read-only; may reflect a
// snapshot that is stale relative to in-flight dispatches.
func (s *DispatchService) ListEligible(ctx context.Context, associationID string) ([]*EligibleBeneficiary, error) {
	if _, err := s.store.Association(ctx, associationID); err != nil {
		return nil, err
	}
	active, err := s.store.ActiveRules(ctx, associationID)
	if err != nil {
		return nil, err
	}
	sel := rules.Select(active)

	bens, err := s.store.EligibleBeneficiaries(ctx, associationID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	families := make(map[string]*repository.Family)
	out := make([]*EligibleBeneficiary, 0, len(bens))
	for _, ben := range bens {
		entry := &EligibleBeneficiary{Beneficiary: ben, CanReceiveNow: true}
		if sel.Frequency != nil && ben.FamilyID != nil {
			family, ok := families[*ben.FamilyID]
			if !ok {
				family, err = s.store.Family(ctx, *ben.FamilyID)
				if err != nil {
					return nil, err
				}
				families[*ben.FamilyID] = family
			}
			days := int(sel.Frequency.Value)
			if !rules.IsEligible(family.LastDonationDate, days, now) {
				entry.CanReceiveNow = false
				end := rules.CooldownEnd(*family.LastDonationDate, days)
				entry.CooldownEndsAt = &end
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// VerifyLedger recomputes the ledger equality for an association and returns
// the stored balance against the net of approved contributions minus
// completed dispatches.
func (s *DispatchService) VerifyLedger(ctx context.Context, associationID string) (*repository.LedgerReport, error) {
	report, err := s.store.VerifyLedger(ctx, associationID)
	if err != nil {
		return nil, err
	}
	if !report.Consistent() {
		s.log.Error().
			Str("association_id", associationID).
			Int64("balance", report.Balance).
			Int64("approved_contributions", report.ApprovedContributions).
			Int64("completed_dispatches", report.CompletedDispatches).
			Msg("Ledger drift detected")
	}
	return report, nil
}
