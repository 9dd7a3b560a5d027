// Package memory is an in-memory Store implementation. A single mutex
// serializes Update transactions, giving the same isolation the postgres
// store gets from row locks; staged copies make a failed transaction leave
// no partial state. Used by tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ataa-platform/be-aid-ledger/internal/apperr"
	"github.com/ataa-platform/be-aid-ledger/internal/repository"
)

// Store holds all entities in maps guarded by one RWMutex.
type Store struct {
	mu            sync.RWMutex
	associations  map[string]*repository.Association
	beneficiaries map[string]*repository.Beneficiary
	families      map[string]*repository.Family
	contributions map[string]*repository.Contribution
	dispatches    map[string]*repository.Dispatch
	rules         map[string]*repository.DonationRule
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		associations:  make(map[string]*repository.Association),
		beneficiaries: make(map[string]*repository.Beneficiary),
		families:      make(map[string]*repository.Family),
		contributions: make(map[string]*repository.Contribution),
		dispatches:    make(map[string]*repository.Dispatch),
		rules:         make(map[string]*repository.DonationRule),
	}
}

// ── seed helpers ─────────────────────────────────────────────────────────────

// PutAssociation inserts or replaces an association, assigning an ID when
// absent. Returns the stored ID.
func (s *Store) PutAssociation(a *repository.Association) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	cp := *a
	s.associations[a.ID] = &cp
	return a.ID
}

// PutBeneficiary inserts or replaces a beneficiary.
func (s *Store) PutBeneficiary(b *repository.Beneficiary) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	cp := *b
	s.beneficiaries[b.ID] = &cp
	return b.ID
}

// PutFamily inserts or replaces a family.
func (s *Store) PutFamily(f *repository.Family) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	cp := *f
	s.families[f.ID] = &cp
	return f.ID
}

// ── snapshot reads ───────────────────────────────────────────────────────────

func (s *Store) Association(ctx context.Context, id string) (*repository.Association, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.associations[id]
	if !ok {
		return nil, apperr.NotFound("association", id)
	}
	cp := *a
	return &cp, nil
}

func (s *Store) Contribution(ctx context.Context, id string) (*repository.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contributions[id]
	if !ok {
		return nil, apperr.NotFound("contribution", id)
	}
	cp := *c
	return &cp, nil
}

func (s *Store) Family(ctx context.Context, id string) (*repository.Family, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.families[id]
	if !ok {
		return nil, apperr.NotFound("family", id)
	}
	cp := *f
	return &cp, nil
}

func (s *Store) ActiveRules(ctx context.Context, associationID string) ([]*repository.DonationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeRulesLocked(associationID), nil
}

func (s *Store) activeRulesLocked(associationID string) []*repository.DonationRule {
	var out []*repository.DonationRule
	for _, r := range s.rules {
		if r.AssociationID == associationID && r.IsActive {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) Rules(ctx context.Context, associationID string) ([]*repository.DonationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*repository.DonationRule
	for _, r := range s.rules {
		if r.AssociationID == associationID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) EligibleBeneficiaries(ctx context.Context, associationID string) ([]*repository.Beneficiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*repository.Beneficiary
	for _, b := range s.beneficiaries {
		if b.AssociationID == associationID && b.Status == repository.BeneficiaryEligible {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (s *Store) Contributions(ctx context.Context, associationID string, filter repository.ContributionFilter) ([]*repository.Contribution, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []*repository.Contribution
	for _, c := range s.contributions {
		if c.AssociationID != associationID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	if filter.Offset >= len(all) {
		return []*repository.Contribution{}, total, nil
	}
	all = all[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}
	return all, total, nil
}

func (s *Store) DispatchStats(ctx context.Context, associationID string) (*repository.DispatchStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &repository.DispatchStats{}
	byType := make(map[repository.AidType]*repository.AidTypeStat)
	for _, d := range s.dispatches {
		if d.AssociationID != associationID {
			continue
		}
		stats.TotalCount++
		stats.TotalAmount += d.Amount
		st, ok := byType[d.AidType]
		if !ok {
			st = &repository.AidTypeStat{AidType: d.AidType}
			byType[d.AidType] = st
		}
		st.Count++
		st.Amount += d.Amount
	}
	for _, st := range byType {
		stats.ByAidType = append(stats.ByAidType, *st)
	}
	sort.Slice(stats.ByAidType, func(i, j int) bool {
		return stats.ByAidType[i].AidType < stats.ByAidType[j].AidType
	})
	return stats, nil
}

func (s *Store) VerifyLedger(ctx context.Context, associationID string) (*repository.LedgerReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.associations[associationID]
	if !ok {
		return nil, apperr.NotFound("association", associationID)
	}
	report := &repository.LedgerReport{Balance: a.Balance}
	for _, c := range s.contributions {
		if c.AssociationID == associationID && c.Status == repository.ContributionApproved {
			report.ApprovedContributions += c.Amount
		}
	}
	for _, d := range s.dispatches {
		if d.AssociationID == associationID {
			report.CompletedDispatches += d.Amount
		}
	}
	return report, nil
}

// ── direct writes ────────────────────────────────────────────────────────────

func (s *Store) CreateContribution(ctx context.Context, c *repository.Contribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.associations[c.AssociationID]; !ok {
		return apperr.NotFound("association", c.AssociationID)
	}
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	cp := *c
	s.contributions[c.ID] = &cp
	return nil
}

func (s *Store) CreateRule(ctx context.Context, r *repository.DonationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.associations[r.AssociationID]; !ok {
		return apperr.NotFound("association", r.AssociationID)
	}
	if r.IsActive {
		for _, existing := range s.rules {
			if existing.AssociationID == r.AssociationID && existing.Type == r.Type && existing.IsActive {
				return apperr.InvalidState(fmt.Sprintf("an active %s rule already exists for this association", r.Type))
			}
		}
	}
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now().UTC()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	s.rules[r.ID] = &cp
	return nil
}

func (s *Store) SetRuleActive(ctx context.Context, id string, active bool) (*repository.DonationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, apperr.NotFound("rule", id)
	}
	if active && !r.IsActive {
		for _, existing := range s.rules {
			if existing.ID != id && existing.AssociationID == r.AssociationID && existing.Type == r.Type && existing.IsActive {
				return nil, apperr.InvalidState(fmt.Sprintf("an active %s rule already exists for this association", r.Type))
			}
		}
	}
	r.IsActive = active
	r.UpdatedAt = time.Now().UTC()
	cp := *r
	return &cp, nil
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return apperr.NotFound("rule", id)
	}
	delete(s.rules, id)
	return nil
}

// ── transactions ─────────────────────────────────────────────────────────────

// Update serializes all writers behind the store mutex and applies staged
// copies only when fn succeeds, so a failing step leaves nothing behind.
func (s *Store) Update(ctx context.Context, fn func(repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{
		s:             s,
		associations:  make(map[string]*repository.Association),
		beneficiaries: make(map[string]*repository.Beneficiary),
		families:      make(map[string]*repository.Family),
		contributions: make(map[string]*repository.Contribution),
	}
	if err := fn(t); err != nil {
		return err
	}
	t.commit()
	return nil
}

type tx struct {
	s             *Store
	associations  map[string]*repository.Association
	beneficiaries map[string]*repository.Beneficiary
	families      map[string]*repository.Family
	contributions map[string]*repository.Contribution
	dispatches    []*repository.Dispatch
}

func (t *tx) commit() {
	for id, a := range t.associations {
		t.s.associations[id] = a
	}
	for id, b := range t.beneficiaries {
		t.s.beneficiaries[id] = b
	}
	for id, f := range t.families {
		t.s.families[id] = f
	}
	for id, c := range t.contributions {
		t.s.contributions[id] = c
	}
	for _, d := range t.dispatches {
		t.s.dispatches[d.ID] = d
	}
}

func (t *tx) AssociationForUpdate(ctx context.Context, id string) (*repository.Association, error) {
	if a, ok := t.associations[id]; ok {
		cp := *a
		return &cp, nil
	}
	a, ok := t.s.associations[id]
	if !ok {
		return nil, apperr.NotFound("association", id)
	}
	cp := *a
	t.associations[id] = &cp
	out := cp
	return &out, nil
}

func (t *tx) ContributionForUpdate(ctx context.Context, id string) (*repository.Contribution, error) {
	if c, ok := t.contributions[id]; ok {
		cp := *c
		return &cp, nil
	}
	c, ok := t.s.contributions[id]
	if !ok {
		return nil, apperr.NotFound("contribution", id)
	}
	cp := *c
	t.contributions[id] = &cp
	out := cp
	return &out, nil
}

func (t *tx) Beneficiary(ctx context.Context, id string) (*repository.Beneficiary, error) {
	if b, ok := t.beneficiaries[id]; ok {
		cp := *b
		return &cp, nil
	}
	b, ok := t.s.beneficiaries[id]
	if !ok {
		return nil, apperr.NotFound("beneficiary", id)
	}
	cp := *b
	t.beneficiaries[id] = &cp
	out := cp
	return &out, nil
}

func (t *tx) FamilyForUpdate(ctx context.Context, id string) (*repository.Family, error) {
	if f, ok := t.families[id]; ok {
		cp := *f
		return &cp, nil
	}
	f, ok := t.s.families[id]
	if !ok {
		return nil, apperr.NotFound("family", id)
	}
	cp := *f
	t.families[id] = &cp
	out := cp
	return &out, nil
}

func (t *tx) ActiveRules(ctx context.Context, associationID string) ([]*repository.DonationRule, error) {
	return t.s.activeRulesLocked(associationID), nil
}

func (t *tx) InsertDispatch(ctx context.Context, d *repository.Dispatch) error {
	d.ID = uuid.NewString()
	d.CreatedAt = time.Now().UTC()
	cp := *d
	t.dispatches = append(t.dispatches, &cp)
	return nil
}

func (t *tx) AddAssociationBalance(ctx context.Context, id string, delta int64) error {
	a, ok := t.associations[id]
	if !ok {
		stored, found := t.s.associations[id]
		if !found {
			return apperr.NotFound("association", id)
		}
		cp := *stored
		a = &cp
		t.associations[id] = a
	}
	if a.Balance+delta < 0 {
		return apperr.Conflict("association balance would go negative")
	}
	a.Balance += delta
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *tx) ApplyDispatchToBeneficiary(ctx context.Context, id string, amount int64, at time.Time) error {
	b, ok := t.beneficiaries[id]
	if !ok {
		stored, found := t.s.beneficiaries[id]
		if !found {
			return apperr.NotFound("beneficiary", id)
		}
		cp := *stored
		b = &cp
		t.beneficiaries[id] = b
	}
	b.TotalReceived += amount
	ts := at
	b.LastDonationDate = &ts
	b.UpdatedAt = at
	return nil
}

func (t *tx) ApplyDispatchToFamily(ctx context.Context, id string, amount int64, at time.Time) error {
	f, ok := t.families[id]
	if !ok {
		stored, found := t.s.families[id]
		if !found {
			return apperr.NotFound("family", id)
		}
		cp := *stored
		f = &cp
		t.families[id] = f
	}
	f.TotalReceived += amount
	ts := at
	f.LastDonationDate = &ts
	f.Status = repository.FamilyCooldown
	f.UpdatedAt = at
	return nil
}

func (t *tx) SetContributionStatus(ctx context.Context, id string, status repository.ContributionStatus, approvedAt *time.Time, notes *string) error {
	c, ok := t.contributions[id]
	if !ok {
		stored, found := t.s.contributions[id]
		if !found {
			return apperr.NotFound("contribution", id)
		}
		cp := *stored
		c = &cp
		t.contributions[id] = c
	}
	c.Status = status
	c.ApprovedAt = approvedAt
	if notes != nil {
		c.Notes = notes
	}
	return nil
}
