package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerniceZTT/leadops/models"
)

func TestLeadService_CreateAndGet(t *testing.T) {
	st := newTestStore(t)
	svc := NewLeadService(st)
	svc.now = func() time.Time { return testNow }
	rep := models.Actor{ID: "u-7", Name: "Asha", Role: models.UserRoleSALES_EXECUTIVE}

	lead, err := svc.CreateLead(context.Background(), models.LeadCreateRequest{
		CompanyName:   "  Acme Learning ",
		ContactPerson: "Ravi",
		ContactEmail:  "ravi@acme.test",
		Course:        "Data Science",
		Value:         5000,
	}, rep)
	require.NoError(t, err)
	assert.NotEmpty(t, lead.ID)
	assert.Equal(t, "Acme Learning", lead.CompanyName)
	assert.Equal(t, models.LeadStatusNew, lead.Status)
	assert.Equal(t, models.FullCreditShare, lead.CreditShare)
	assert.True(t, lead.CreditOwner)
	assert.Equal(t, "u-7", lead.SubmittedByID)
	assert.Equal(t, "SALES_EXECUTIVE", lead.SubmittedByRole)

	got, err := svc.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.ID, got.ID)
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, testNow.Equal(got.CreatedAt))
}

func TestLeadService_Validation(t *testing.T) {
	svc := NewLeadService(newTestStore(t))
	rep := models.Actor{ID: "u-7", Role: models.UserRoleSALES_EXECUTIVE}

	tests := []struct {
		name  string
		req   models.LeadCreateRequest
		actor models.Actor
		field string
	}{
		{"missing company", models.LeadCreateRequest{ContactPerson: "Ravi"}, rep, "companyName"},
		{"blank contact", models.LeadCreateRequest{CompanyName: "Acme", ContactPerson: "   "}, rep, "contactPerson"},
		{"bad email", models.LeadCreateRequest{CompanyName: "Acme", ContactPerson: "Ravi", ContactEmail: "not-an-email"}, rep, "contactEmail"},
		{"negative value", models.LeadCreateRequest{CompanyName: "Acme", ContactPerson: "Ravi", Value: -1}, rep, "value"},
		{"no actor", models.LeadCreateRequest{CompanyName: "Acme", ContactPerson: "Ravi"}, models.Actor{}, "actor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateLead(context.Background(), tt.req, tt.actor)
			require.ErrorIs(t, err, ErrInvalidInput)
			var ierr *InputError
			require.ErrorAs(t, err, &ierr)
			assert.Equal(t, tt.field, ierr.Field)
		})
	}
}

func TestLeadService_GetMissing(t *testing.T) {
	svc := NewLeadService(newTestStore(t))
	_, err := svc.GetLead(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetLead(context.Background(), " ")
	assert.ErrorIs(t, err, ErrNotFound)
}
