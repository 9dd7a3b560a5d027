package repository

import "time"

// ── Domain types for the aid ledger ──────────────────────────────────────────

// AssociationStatus is the lifecycle state of a tenant association.
type AssociationStatus string

const (
	AssociationActive    AssociationStatus = "ACTIVE"
	AssociationPending   AssociationStatus = "PENDING"
	AssociationSuspended AssociationStatus = "SUSPENDED"
)

// ContributionStatus is the one-way lifecycle of donor money entering an
// association: PENDING -> APPROVED or PENDING -> REJECTED, never back.
type ContributionStatus string

const (
	ContributionPending  ContributionStatus = "PENDING"
	ContributionApproved ContributionStatus = "APPROVED"
	ContributionRejected ContributionStatus = "REJECTED"
)

// AidType categorizes what a dispatch paid for.
type AidType string

const (
	AidCash      AidType = "CASH"
	AidFood      AidType = "FOOD"
	AidClothing  AidType = "CLOTHING"
	AidMedical   AidType = "MEDICAL"
	AidEducation AidType = "EDUCATION"
	AidOther     AidType = "OTHER"
)

// ValidAidType reports whether t is a known aid type.
func ValidAidType(t AidType) bool {
	switch t {
	case AidCash, AidFood, AidClothing, AidMedical, AidEducation, AidOther:
		return true
	}
	return false
}

// BeneficiaryStatus is set by an operator review process outside this core.
type BeneficiaryStatus string

const (
	BeneficiaryEligible      BeneficiaryStatus = "ELIGIBLE"
	BeneficiaryIneligible    BeneficiaryStatus = "INELIGIBLE"
	BeneficiaryPendingReview BeneficiaryStatus = "PENDING_REVIEW"
)

// FamilyStatus tracks the household-level cooldown state.
type FamilyStatus string

const (
	FamilyEligible   FamilyStatus = "ELIGIBLE"
	FamilyIneligible FamilyStatus = "INELIGIBLE"
	FamilyCooldown   FamilyStatus = "COOLDOWN"
)

// RuleType classifies a donation rule.
type RuleType string

const (
	RuleFrequency   RuleType = "FREQUENCY"   // value = cooldown days
	RuleAmount      RuleType = "AMOUNT"      // value = max per-dispatch amount
	RuleEligibility RuleType = "ELIGIBILITY" // value = min family members when unit == "members"
)

// ValidRuleType reports whether t is a known rule type.
func ValidRuleType(t RuleType) bool {
	switch t {
	case RuleFrequency, RuleAmount, RuleEligibility:
		return true
	}
	return false
}

// RuleUnitMembers is the unit an ELIGIBILITY rule must carry to be enforced.
const RuleUnitMembers = "members"

// Association is a tenant organization holding a spendable balance.
// Balance is in minor units and is mutated only by contribution approval
// (credit) and dispatch creation (debit), never outside a transaction.
type Association struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Status    AssociationStatus `json:"status"`
	Balance   int64             `json:"balance"`
	Currency  string            `json:"currency"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Contribution is money flowing from a donor into an association.
type Contribution struct {
	ID            string             `json:"id"`
	AssociationID string             `json:"association_id"`
	Amount        int64              `json:"amount"`
	Currency      string             `json:"currency"`
	Status        ContributionStatus `json:"status"`
	DonorID       *string            `json:"donor_id,omitempty"`
	DonorName     *string            `json:"donor_name,omitempty"`
	DonorEmail    *string            `json:"donor_email,omitempty"`
	Type          *string            `json:"type,omitempty"`
	Method        *string            `json:"method,omitempty"`
	Notes         *string            `json:"notes,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	ApprovedAt    *time.Time         `json:"approved_at,omitempty"`
}

// Dispatch is money flowing out to a beneficiary. Dispatches are created
// directly COMPLETED and are immutable afterwards.
type Dispatch struct {
	ID            string    `json:"id"`
	AssociationID string    `json:"association_id"`
	BeneficiaryID string    `json:"beneficiary_id"`
	FamilyID      *string   `json:"family_id,omitempty"`
	Amount        int64     `json:"amount"`
	AidType       AidType   `json:"aid_type"`
	Status        string    `json:"status"` // always "COMPLETED"
	Notes         *string   `json:"notes,omitempty"`
	ProcessedByID string    `json:"processed_by_id"`
	CompletedAt   time.Time `json:"completed_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// DispatchCompleted is the only dispatch status this core produces.
const DispatchCompleted = "COMPLETED"

// Beneficiary is a registered aid recipient.
type Beneficiary struct {
	ID               string            `json:"id"`
	AssociationID    string            `json:"association_id"`
	FamilyID         *string           `json:"family_id,omitempty"`
	FullName         string            `json:"full_name"`
	Status           BeneficiaryStatus `json:"status"`
	TotalReceived    int64             `json:"total_received"`
	LastDonationDate *time.Time        `json:"last_donation_date,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Family is a household. Cooldown is tracked here, not per beneficiary:
// any completed dispatch re-arms the household cooldown clock.
type Family struct {
	ID               string       `json:"id"`
	AssociationID    string       `json:"association_id"`
	Name             string       `json:"name"`
	MemberCount      int          `json:"member_count"`
	Status           FamilyStatus `json:"status"`
	TotalReceived    int64        `json:"total_received"`
	LastDonationDate *time.Time   `json:"last_donation_date,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// DonationRule is a configurable per-association constraint. At most one
// active rule per type exists for an association; rule creation enforces it.
type DonationRule struct {
	ID            string    `json:"id"`
	AssociationID string    `json:"association_id"`
	Type          RuleType  `json:"type"`
	Value         int64     `json:"value"`
	Unit          *string   `json:"unit,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AidTypeStat is one row of the per-aid-type dispatch aggregate.
type AidTypeStat struct {
	AidType AidType `json:"aid_type"`
	Count   int64   `json:"count"`
	Amount  int64   `json:"amount"`
}

// DispatchStats aggregates completed dispatches for an association.
type DispatchStats struct {
	TotalCount  int64         `json:"total_count"`
	TotalAmount int64         `json:"total_amount"`
	ByAidType   []AidTypeStat `json:"by_aid_type"`
}

// LedgerReport is the recomputed ledger equality for an association:
// Balance must equal ApprovedContributions - CompletedDispatches.
type LedgerReport struct {
	Balance               int64
	ApprovedContributions int64
	CompletedDispatches   int64
}

// Consistent reports whether the stored balance matches the recomputed net.
func (r LedgerReport) Consistent() bool {
	return r.Balance == r.ApprovedContributions-r.CompletedDispatches
}

// ContributionFilter narrows contribution listings.
type ContributionFilter struct {
	Status *ContributionStatus
	Limit  int
	Offset int
}
