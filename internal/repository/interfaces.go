package repository

import (
	"context"
	"time"
)

// Store is the persistence surface consumed by the services. Snapshot reads
// may lag in-flight writers; Update runs its function inside one serializable
// transaction so the balance check and every dependent write commit or roll
// back together.
type Store interface {
	Association(ctx context.Context, id string) (*Association, error)
	Contribution(ctx context.Context, id string) (*Contribution, error)
	Family(ctx context.Context, id string) (*Family, error)
	ActiveRules(ctx context.Context, associationID string) ([]*DonationRule, error)
	Rules(ctx context.Context, associationID string) ([]*DonationRule, error)
	EligibleBeneficiaries(ctx context.Context, associationID string) ([]*Beneficiary, error)
	Contributions(ctx context.Context, associationID string, filter ContributionFilter) ([]*Contribution, int64, error)
	DispatchStats(ctx context.Context, associationID string) (*DispatchStats, error)
	VerifyLedger(ctx context.Context, associationID string) (*LedgerReport, error)

	CreateContribution(ctx context.Context, c *Contribution) error
	CreateRule(ctx context.Context, r *DonationRule) error
	SetRuleActive(ctx context.Context, id string, active bool) (*DonationRule, error)
	DeleteRule(ctx context.Context, id string) error

	// Update executes fn within a single serializable transaction. A commit
	// that cannot be serialized against a concurrent writer fails with a
	// Conflict error and leaves no partial state.
	Update(ctx context.Context, fn func(Tx) error) error
}

// Tx is the transactional view handed to Update. ForUpdate reads take row
// locks, serializing all dispatch and approval work per association while
// leaving other associations fully parallel.
type Tx interface {
	AssociationForUpdate(ctx context.Context, id string) (*Association, error)
	ContributionForUpdate(ctx context.Context, id string) (*Contribution, error)
	Beneficiary(ctx context.Context, id string) (*Beneficiary, error)
	FamilyForUpdate(ctx context.Context, id string) (*Family, error)
	ActiveRules(ctx context.Context, associationID string) ([]*DonationRule, error)

	InsertDispatch(ctx context.Context, d *Dispatch) error
	AddAssociationBalance(ctx context.Context, id string, delta int64) error
	ApplyDispatchToBeneficiary(ctx context.Context, id string, amount int64, at time.Time) error
	ApplyDispatchToFamily(ctx context.Context, id string, amount int64, at time.Time) error
	SetContributionStatus(ctx context.Context, id string, status ContributionStatus, approvedAt *time.Time, notes *string) error
}
