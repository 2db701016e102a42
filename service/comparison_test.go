package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerniceZTT/leadops/models"
)

func rowByField(t *testing.T, rows []models.ComparisonRow, field string) models.ComparisonRow {
	t.Helper()
	for _, r := range rows {
		if r.Field == field {
			return r
		}
	}
	require.Failf(t, "missing row", "field %s", field)
	return models.ComparisonRow{}
}

func TestBuildComparison(t *testing.T) {
	a := &models.LeadSnapshot{
		CompanyName:     "Acme Learning",
		ContactPerson:   "Ravi",
		ContactMobile:   "9876543210",
		Value:           5000,
		SubmittedByName: "Asha",
		SubmittedByRole: "SALES_EXECUTIVE",
		Status:          models.LeadStatusNew,
		CreatedAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	b := &models.LeadSnapshot{
		CompanyName:   "ACME LEARNING",
		ContactPerson: "Ravi K",
		ContactEmail:  "ravi@acme.test",
		Value:         5200,
		Status:        models.LeadStatusNew,
	}

	rows := BuildComparison(a, b)
	assert.Len(t, rows, 9)

	company := rowByField(t, rows, "companyName")
	assert.False(t, company.Differs)

	email := rowByField(t, rows, "contactEmail")
	assert.Equal(t, NotAvailable, email.LeadA)
	assert.Equal(t, "ravi@acme.test", email.LeadB)
	assert.True(t, email.Differs)

	value := rowByField(t, rows, "value")
	assert.Equal(t, "5000.00", value.LeadA)
	assert.Equal(t, "5200.00", value.LeadB)

	submitter := rowByField(t, rows, "submittedBy")
	assert.Equal(t, "Asha (SALES_EXECUTIVE)", submitter.LeadA)
	assert.Equal(t, NotAvailable, submitter.LeadB)

	created := rowByField(t, rows, "createdAt")
	assert.Equal(t, "2026-01-02T03:04:05Z", created.LeadA)
	assert.Equal(t, NotAvailable, created.LeadB)

	course := rowByField(t, rows, "course")
	assert.Equal(t, NotAvailable, course.LeadA)
	assert.False(t, course.Differs)
}

func TestBuildComparison_NilSnapshot(t *testing.T) {
	rows := BuildComparison(nil, &models.LeadSnapshot{CompanyName: "Acme"})
	for _, r := range rows {
		assert.Equal(t, NotAvailable, r.LeadA)
	}
	assert.Equal(t, "Acme", rowByField(t, rows, "companyName").LeadB)
}
