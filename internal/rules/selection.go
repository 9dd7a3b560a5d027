package rules

import "github.com/ataa-platform/be-aid-ledger/internal/repository"

// Selected holds at most one applicable rule per type. A nil field means that
// constraint is not enforced for the association.
type Selected struct {
	Frequency   *repository.DonationRule
	Amount      *repository.DonationRule
	Eligibility *repository.DonationRule
}

// Select picks the applicable rule per type from an association's active rule
// set. Rule creation guarantees at most one active rule per type, so the
// first active rule of each type is the rule. An ELIGIBILITY rule only
// participates when its unit is "members".
func Select(active []*repository.DonationRule) Selected {
	var sel Selected
	for _, r := range active {
		if !r.IsActive {
			continue
		}
		switch r.Type {
		case repository.RuleFrequency:
			if sel.Frequency == nil {
				sel.Frequency = r
			}
		case repository.RuleAmount:
			if sel.Amount == nil {
				sel.Amount = r
			}
		case repository.RuleEligibility:
			if sel.Eligibility == nil && r.Unit != nil && *r.Unit == repository.RuleUnitMembers {
				sel.Eligibility = r
			}
		}
	}
	return sel
}
