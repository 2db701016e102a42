package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerniceZTT/leadops/models"
)

func planFixture(statusA, statusB models.LeadStatus) (*models.DuplicateAlert, *models.Lead, *models.Lead) {
	a := &models.Lead{ID: "L1", Status: statusA, CreditShare: 100, CreditOwner: true, Version: 3}
	b := &models.Lead{ID: "L2", Status: statusB, CreditShare: 100, CreditOwner: true, Version: 1}
	alert := &models.DuplicateAlert{ID: "A1", LeadAID: "L1", LeadBID: "L2", Status: models.AlertStatusPending}
	return alert, a, b
}

func TestPlanResolution_EffectTable(t *testing.T) {
	tests := []struct {
		action   models.ResolutionAction
		statusA  models.LeadStatus
		statusB  models.LeadStatus
		shareA   int
		shareB   int
		changed  int
		assignee string
	}{
		{models.ActionAssignToA, models.LeadStatusNew, models.LeadStatusRejected, 100, 0, 1, "L1"},
		{models.ActionAssignToB, models.LeadStatusRejected, models.LeadStatusNew, 0, 100, 1, "L2"},
		{models.ActionSplitCredit, models.LeadStatusNew, models.LeadStatusNew, 50, 50, 2, ""},
		{models.ActionDifferent, models.LeadStatusNew, models.LeadStatusNew, 100, 100, 0, ""},
		{models.ActionMerge, models.LeadStatusNew, models.LeadStatusArchived, 100, 0, 1, ""},
		{models.ActionDuplicate, models.LeadStatusNew, models.LeadStatusRejected, 100, 0, 1, ""},
		{models.ActionRejectBoth, models.LeadStatusRejected, models.LeadStatusRejected, 0, 0, 2, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			alert, a, b := planFixture(models.LeadStatusNew, models.LeadStatusNew)
			plan, err := PlanResolution(alert, a, b, tt.action, testNow)
			require.NoError(t, err)
			assert.Len(t, plan.Changes, tt.changed)
			assert.Equal(t, tt.assignee, plan.CreditAssignedTo)

			after := map[string]*models.Lead{"L1": a, "L2": b}
			for _, c := range plan.Changes {
				after[c.After.ID] = c.After
				assert.Equal(t, c.Before.Version+1, c.After.Version)
				assert.Equal(t, testNow, c.After.UpdatedAt)
				assert.Equal(t, "A1", c.After.ResolvedByAlert)
			}
			assert.Equal(t, tt.statusA, after["L1"].Status)
			assert.Equal(t, tt.statusB, after["L2"].Status)
			assert.Equal(t, tt.shareA, after["L1"].CreditShare)
			assert.Equal(t, tt.shareB, after["L2"].CreditShare)
		})
	}
}

func TestPlanResolution_DoesNotMutateInputs(t *testing.T) {
	alert, a, b := planFixture(models.LeadStatusNew, models.LeadStatusNew)
	_, err := PlanResolution(alert, a, b, models.ActionRejectBoth, testNow)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusNew, a.Status)
	assert.Equal(t, models.LeadStatusNew, b.Status)
	assert.Equal(t, int64(3), a.Version)
}

func TestPlanResolution_LinksDuplicateToCanonical(t *testing.T) {
	for _, action := range []models.ResolutionAction{models.ActionMerge, models.ActionDuplicate} {
		alert, a, b := planFixture(models.LeadStatusNew, models.LeadStatusNew)
		plan, err := PlanResolution(alert, a, b, action, testNow)
		require.NoError(t, err)
		require.Len(t, plan.Changes, 1)
		assert.Equal(t, "L1", plan.Changes[0].After.DuplicateOf)
		assert.Equal(t, "L1", plan.CanonicalLeadID)
		assert.Equal(t, "L2", plan.DuplicateLeadID)
	}
}

func TestPlanResolution_LeadUpdatesCarryExpectedVersion(t *testing.T) {
	alert, a, b := planFixture(models.LeadStatusNew, models.LeadStatusNew)
	plan, err := PlanResolution(alert, a, b, models.ActionAssignToB, testNow)
	require.NoError(t, err)

	updates := plan.LeadUpdates()
	require.Len(t, updates, 1)
	assert.Equal(t, int64(3), updates[0].ExpectedVersion)
	assert.Equal(t, int64(4), updates[0].Lead.Version)
}

func TestPlanResolution_Errors(t *testing.T) {
	alert, a, b := planFixture(models.LeadStatusNew, models.LeadStatusNew)

	_, err := PlanResolution(alert, a, b, "approve", testNow)
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = PlanResolution(alert, a, nil, models.ActionMerge, testNow)
	assert.ErrorIs(t, err, ErrNotFound)

	resolved := *alert
	resolved.Status = models.AlertStatusResolved
	_, err = PlanResolution(&resolved, a, b, models.ActionMerge, testNow)
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestPlanResolution_Guards(t *testing.T) {
	tests := []struct {
		name    string
		statusA models.LeadStatus
		statusB models.LeadStatus
		action  models.ResolutionAction
		guard   string
	}{
		{"reject closed a", models.LeadStatusClosed, models.LeadStatusNew, models.ActionRejectBoth, GuardClosedWonLead},
		{"assign away from closed a", models.LeadStatusClosed, models.LeadStatusNew, models.ActionAssignToB, GuardClosedWonLead},
		{"merge closed b", models.LeadStatusNew, models.LeadStatusClosed, models.ActionMerge, GuardClosedWonLead},
		{"reject archived b", models.LeadStatusNew, models.LeadStatusArchived, models.ActionDuplicate, GuardArchivedLead},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert, a, b := planFixture(tt.statusA, tt.statusB)
			_, err := PlanResolution(alert, a, b, tt.action, testNow)
			var terr *TransitionError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, tt.guard, terr.Guard)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestPlanResolution_ClosedLeadAllowedWhenNotRejected(t *testing.T) {
	for _, action := range []models.ResolutionAction{models.ActionSplitCredit, models.ActionDifferent, models.ActionAssignToA} {
		alert, a, b := planFixture(models.LeadStatusClosed, models.LeadStatusNew)
		_, err := PlanResolution(alert, a, b, action, testNow)
		assert.NoError(t, err, action)
	}
}

func TestPlanResolution_InactiveLeadCannotGainCredit(t *testing.T) {
	tests := []struct {
		name    string
		statusA models.LeadStatus
		statusB models.LeadStatus
		action  models.ResolutionAction
		leadID  string
		guard   string
	}{
		{"assign to archived a", models.LeadStatusArchived, models.LeadStatusNew, models.ActionAssignToA, "L1", GuardArchivedLead},
		{"assign to archived b", models.LeadStatusNew, models.LeadStatusArchived, models.ActionAssignToB, "L2", GuardArchivedLead},
		{"split with archived b", models.LeadStatusNew, models.LeadStatusArchived, models.ActionSplitCredit, "L2", GuardArchivedLead},
		{"assign to rejected a", models.LeadStatusRejected, models.LeadStatusNew, models.ActionAssignToA, "L1", GuardRejectedLead},
		{"split with rejected a", models.LeadStatusRejected, models.LeadStatusNew, models.ActionSplitCredit, "L1", GuardRejectedLead},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert, a, b := planFixture(tt.statusA, tt.statusB)
			for _, l := range []*models.Lead{a, b} {
				if l.Status == models.LeadStatusArchived || l.Status == models.LeadStatusRejected {
					l.CreditShare, l.CreditOwner = 0, false
				}
			}

			_, err := PlanResolution(alert, a, b, tt.action, testNow)
			var terr *TransitionError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, tt.guard, terr.Guard)
			assert.Equal(t, tt.leadID, terr.LeadID)
			assert.Contains(t, terr.Error(), "cannot receive credit")
		})
	}
}

func TestPlanResolution_InactiveLeadUntouchedIsAllowed(t *testing.T) {
	for _, action := range []models.ResolutionAction{models.ActionAssignToB, models.ActionDifferent} {
		alert, a, b := planFixture(models.LeadStatusRejected, models.LeadStatusNew)
		a.CreditShare, a.CreditOwner = 0, false

		plan, err := PlanResolution(alert, a, b, action, testNow)
		require.NoError(t, err, action)
		for _, c := range plan.Changes {
			assert.NotEqual(t, "L1", c.After.ID, action)
		}
	}
}
