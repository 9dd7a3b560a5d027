package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ataa-platform/be-aid-ledger/internal/apperr"
	"github.com/ataa-platform/be-aid-ledger/internal/repository"
)

func TestCreateContribution(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	donor := "Karim"
	c, err := f.contributions.Create(ctx, &CreateContributionRequest{
		AssociationID: f.associationID,
		Amount:        500,
		DonorName:     &donor,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, repository.ContributionPending, c.Status)
	assert.Equal(t, "TND", c.Currency, "currency defaults from the association")
	assert.Nil(t, c.ApprovedAt)

	budget, err := f.dispatches.GetBudget(ctx, f.associationID)
	require.NoError(t, err)
	assert.Zero(t, budget.Balance, "pending contributions never touch the balance")
}

func TestCreateContributionValidation(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.contributions.Create(ctx, &CreateContributionRequest{
		AssociationID: f.associationID,
		Amount:        0,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))

	_, err = f.contributions.Create(ctx, &CreateContributionRequest{
		AssociationID: "missing",
		Amount:        100,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestApproveContributionCreditsExactlyOnce(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	c, err := f.contributions.Create(ctx, &CreateContributionRequest{
		AssociationID: f.associationID,
		Amount:        750,
	})
	require.NoError(t, err)

	approved, err := f.contributions.Approve(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ContributionApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, testNow, *approved.ApprovedAt)

	budget, err := f.dispatches.GetBudget(ctx, f.associationID)
	require.NoError(t, err)
	assert.Equal(t, int64(750), budget.Balance)

	// second approval is rejected and the balance stays put
	_, err = f.contributions.Approve(ctx, c.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))

	budget, err = f.dispatches.GetBudget(ctx, f.associationID)
	require.NoError(t, err)
	assert.Equal(t, int64(750), budget.Balance)
}

func TestRejectContribution(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	notes := "first donation"
	c, err := f.contributions.Create(ctx, &CreateContributionRequest{
		AssociationID: f.associationID,
		Amount:        300,
		Notes:         &notes,
	})
	require.NoError(t, err)

	reason := "duplicate transfer"
	rejected, err := f.contributions.Reject(ctx, c.ID, &reason)
	require.NoError(t, err)
	assert.Equal(t, repository.ContributionRejected, rejected.Status)
	require.NotNil(t, rejected.Notes)
	assert.Equal(t, "first donation\nrejected: duplicate transfer", *rejected.Notes)

	budget, err := f.dispatches.GetBudget(ctx, f.associationID)
	require.NoError(t, err)
	assert.Zero(t, budget.Balance, "rejection has no balance effect")

	// terminal states are never re-entered
	_, err = f.contributions.Approve(ctx, c.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))
	_, err = f.contributions.Reject(ctx, c.ID, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))
}

func TestListContributions(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		c, err := f.contributions.Create(ctx, &CreateContributionRequest{
			AssociationID: f.associationID,
			Amount:        100,
		})
		require.NoError(t, err)
		if i == 0 {
			_, err = f.contributions.Approve(ctx, c.ID)
			require.NoError(t, err)
		}
	}

	all, total, err := f.contributions.List(ctx, f.associationID, nil, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)

	pending := repository.ContributionPending
	filtered, total, err := f.contributions.List(ctx, f.associationID, &pending, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, filtered, 2)

	paged, total, err := f.contributions.List(ctx, f.associationID, nil, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, paged, 1)
}
