package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerniceZTT/leadops/models"
	"github.com/BerniceZTT/leadops/service"
	"github.com/BerniceZTT/leadops/utils"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("%w: alert A1", service.ErrNotFound), http.StatusNotFound, "RESOURCE_NOT_FOUND"},
		{"already resolved", fmt.Errorf("%w: alert A1", service.ErrAlreadyResolved), http.StatusConflict, "ALREADY_RESOLVED"},
		{"lead changed", fmt.Errorf("%w: alert A1", service.ErrConflict), http.StatusConflict, "LEAD_CHANGED"},
		{"invalid action", fmt.Errorf("%w: \"approve\"", service.ErrInvalidAction), http.StatusBadRequest, "INVALID_ACTION"},
		{"transition", &service.TransitionError{Guard: service.GuardClosedWonLead, LeadID: "L2", Status: models.LeadStatusClosed, Target: models.LeadStatusRejected}, http.StatusUnprocessableEntity, "INVALID_TRANSITION"},
		{"invalid input", &service.InputError{Field: "notes", Reason: "too long"}, http.StatusBadRequest, "BAD_REQUEST"},
		{"api error passthrough", utils.CreateForbiddenError(), http.StatusForbidden, "FORBIDDEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var apiErr *utils.ApiError
			require.True(t, errors.As(MapError(tt.err), &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.code, apiErr.ErrorCode)
		})
	}
}

func TestMapErrorTransitionNamesGuard(t *testing.T) {
	err := MapError(&service.TransitionError{Guard: service.GuardArchivedLead, LeadID: "L9", Status: models.LeadStatusArchived, Target: models.LeadStatusRejected})
	assert.Contains(t, err.Error(), service.GuardArchivedLead)
}

func TestMapErrorUnknown(t *testing.T) {
	boom := errors.New("disk full")
	assert.Same(t, boom, MapError(boom))
}
