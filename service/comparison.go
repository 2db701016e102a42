package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BerniceZTT/leadops/models"
)

// NotAvailable 缺失字段的占位符
const NotAvailable = "N/A"

type comparisonField struct {
	field string
	label string
	value func(s *models.LeadSnapshot) string
}

var comparisonFields = []comparisonField{
	{"companyName", "Company", func(s *models.LeadSnapshot) string { return s.CompanyName }},
	{"contactPerson", "Contact Person", func(s *models.LeadSnapshot) string { return s.ContactPerson }},
	{"contactMobile", "Mobile", func(s *models.LeadSnapshot) string { return s.ContactMobile }},
	{"contactEmail", "Email", func(s *models.LeadSnapshot) string { return s.ContactEmail }},
	{"course", "Course / Requirement", func(s *models.LeadSnapshot) string { return s.Course }},
	{"value", "Value", func(s *models.LeadSnapshot) string {
		return strconv.FormatFloat(s.Value, 'f', 2, 64)
	}},
	{"submittedBy", "Submitted By", func(s *models.LeadSnapshot) string {
		name := strings.TrimSpace(s.SubmittedByName)
		role := strings.TrimSpace(s.SubmittedByRole)
		switch {
		case name == "":
			return ""
		case role == "":
			return name
		default:
			return fmt.Sprintf("%s (%s)", name, role)
		}
	}},
	{"createdAt", "Submitted At", func(s *models.LeadSnapshot) string {
		if s.CreatedAt.IsZero() {
			return ""
		}
		return s.CreatedAt.UTC().Format(time.RFC3339)
	}},
	{"status", "Status", func(s *models.LeadSnapshot) string { return string(s.Status) }},
}

// BuildComparison 生成两条线索的逐字段对比，缺失的值显示为 N/A
func BuildComparison(a, b *models.LeadSnapshot) []models.ComparisonRow {
	rows := make([]models.ComparisonRow, 0, len(comparisonFields))
	for _, f := range comparisonFields {
		left := displayValue(a, f.value)
		right := displayValue(b, f.value)
		rows = append(rows, models.ComparisonRow{
			Field:   f.field,
			Label:   f.label,
			LeadA:   left,
			LeadB:   right,
			Differs: !strings.EqualFold(left, right),
		})
	}
	return rows
}

func displayValue(s *models.LeadSnapshot, get func(*models.LeadSnapshot) string) string {
	if s == nil {
		return NotAvailable
	}
	v := strings.TrimSpace(get(s))
	if v == "" {
		return NotAvailable
	}
	return v
}
