package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ataa-platform/be-aid-ledger/internal/apperr"
	"github.com/ataa-platform/be-aid-ledger/internal/repository"
)

func TestCreateRuleValidation(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	members := repository.RuleUnitMembers

	tests := []struct {
		name string
		req  CreateRuleRequest
	}{
		{"unknown type", CreateRuleRequest{AssociationID: f.associationID, Type: "WEATHER", Value: 1}},
		{"zero value", CreateRuleRequest{AssociationID: f.associationID, Type: repository.RuleFrequency, Value: 0}},
		{"negative value", CreateRuleRequest{AssociationID: f.associationID, Type: repository.RuleAmount, Value: -10}},
		{"eligibility without unit", CreateRuleRequest{AssociationID: f.associationID, Type: repository.RuleEligibility, Value: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.rules.Create(ctx, &req)
			require.Error(t, err)
			assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))
		})
	}

	_, err := f.rules.Create(ctx, &CreateRuleRequest{
		AssociationID: f.associationID,
		Type:          repository.RuleEligibility,
		Value:         3,
		Unit:          &members,
	})
	require.NoError(t, err)
}

func TestOneActiveRulePerType(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	first, err := f.rules.Create(ctx, &CreateRuleRequest{
		AssociationID: f.associationID,
		Type:          repository.RuleAmount,
		Value:         500,
	})
	require.NoError(t, err)

	// a second active AMOUNT rule is rejected
	_, err = f.rules.Create(ctx, &CreateRuleRequest{
		AssociationID: f.associationID,
		Type:          repository.RuleAmount,
		Value:         900,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))

	// an inactive duplicate is fine
	inactive := false
	second, err := f.rules.Create(ctx, &CreateRuleRequest{
		AssociationID: f.associationID,
		Type:          repository.RuleAmount,
		Value:         900,
		IsActive:      &inactive,
	})
	require.NoError(t, err)

	// activating it while the first is active is rejected
	_, err = f.rules.Toggle(ctx, second.ID, true)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))

	// deactivate the first, then the swap works
	_, err = f.rules.Toggle(ctx, first.ID, false)
	require.NoError(t, err)
	toggled, err := f.rules.Toggle(ctx, second.ID, true)
	require.NoError(t, err)
	assert.True(t, toggled.IsActive)

	// a different type can coexist
	days := "days"
	_, err = f.rules.Create(ctx, &CreateRuleRequest{
		AssociationID: f.associationID,
		Type:          repository.RuleFrequency,
		Value:         30,
		Unit:          &days,
	})
	require.NoError(t, err)
}

func TestDeleteRule(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	r, err := f.rules.Create(ctx, &CreateRuleRequest{
		AssociationID: f.associationID,
		Type:          repository.RuleAmount,
		Value:         500,
	})
	require.NoError(t, err)

	require.NoError(t, f.rules.Delete(ctx, r.ID))

	err = f.rules.Delete(ctx, r.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	list, err := f.rules.List(ctx, f.associationID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestInactiveRulesAreNotEnforced(t *testing.T) {
	f := newFixture(t, 10_000)
	ctx := context.Background()

	inactive := false
	_, err := f.rules.Create(ctx, &CreateRuleRequest{
		AssociationID: f.associationID,
		Type:          repository.RuleAmount,
		Value:         100,
		IsActive:      &inactive,
	})
	require.NoError(t, err)

	// the inactive limit does not block a bigger dispatch
	_, err = f.dispatches.DispatchAid(ctx, f.dispatchRequest(5000))
	require.NoError(t, err)
}
