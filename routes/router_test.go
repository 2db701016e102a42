package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerniceZTT/leadops/models"
	"github.com/BerniceZTT/leadops/repository"
	"github.com/BerniceZTT/leadops/service"
	"github.com/BerniceZTT/leadops/utils"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type testServer struct {
	router *gin.Engine
	store  *repository.SQLiteStore
	tokens map[models.UserRole]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("router-test-secret")

	st, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "router.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close(context.Background()) }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	router := NewRouter(Dependencies{
		Store:      st,
		Duplicates: service.NewDuplicateService(st, nil),
		Leads:      service.NewLeadService(st),
	}, nil)

	tokens := map[models.UserRole]string{}
	for _, role := range []models.UserRole{models.UserRoleSALES_HEAD, models.UserRoleSALES_EXECUTIVE, models.UserRoleDETECTOR, models.UserRoleSUPER_ADMIN} {
		tok, err := utils.GenerateToken(models.Actor{ID: "u-" + string(role), Name: string(role), Role: role})
		require.NoError(t, err)
		tokens[role] = tok
	}

	return &testServer{router: router, store: st, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path string, role models.UserRole, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[role])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w.Code, env
}

func (s *testServer) createLead(t *testing.T, company string, value float64) models.Lead {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/leads", models.UserRoleSALES_EXECUTIVE, models.LeadCreateRequest{
		CompanyName:   company,
		ContactPerson: "Ravi",
		ContactMobile: "9876543210",
		Value:         value,
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var lead models.Lead
	require.NoError(t, json.Unmarshal(env.Data, &lead))
	return lead
}

func (s *testServer) ingest(t *testing.T, a, b string) models.DuplicateAlert {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/duplicate-alerts", models.UserRoleDETECTOR, map[string]interface{}{
		"lead_a_id":          a,
		"lead_b_id":          b,
		"similarity_score":   93,
		"similarity_factors": []string{"same mobile"},
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var alert models.DuplicateAlert
	require.NoError(t, json.Unmarshal(env.Data, &alert))
	return alert
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestDBStatusRequiresSuperAdmin(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodGet, "/api/db-status", models.UserRoleSALES_HEAD, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env := s.do(t, http.MethodGet, "/api/db-status", models.UserRoleSUPER_ADMIN, nil)
	require.Equal(t, http.StatusOK, code)
	var status models.DatabaseStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "sqlite", status.Driver)
}

func TestDuplicateWorkflow(t *testing.T) {
	s := newTestServer(t)

	first := s.createLead(t, "Acme Learning", 5000)
	time.Sleep(2 * time.Millisecond)
	second := s.createLead(t, "ACME Learning Pvt", 5200)

	alert := s.ingest(t, second.ID, first.ID)
	assert.Equal(t, first.ID, alert.LeadAID)
	assert.Equal(t, second.ID, alert.LeadBID)

	// 同一对线索重复推送
	code, env := s.do(t, http.MethodPost, "/api/duplicate-alerts", models.UserRoleDETECTOR, map[string]interface{}{
		"lead_a_id": first.ID, "lead_b_id": second.ID, "similarity_score": 90,
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), alert.ID)

	code, env = s.do(t, http.MethodGet, "/api/duplicate-alerts/pending", models.UserRoleSALES_HEAD, nil)
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Items []models.DuplicateAlert `json:"items"`
		Total int                     `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 1, list.Total)

	code, env = s.do(t, http.MethodGet, "/api/duplicate-alerts/"+alert.ID, models.UserRoleSALES_HEAD, nil)
	require.Equal(t, http.StatusOK, code)
	var detail models.AlertDetail
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, first.ID, detail.LeadA.ID)
	assert.Len(t, detail.Comparison, 9)

	code, env = s.do(t, http.MethodPost, "/api/duplicate-alerts/"+alert.ID+"/resolve", models.UserRoleSALES_HEAD, models.ResolveRequest{Action: "assign_to_a", Notes: "first come"})
	require.Equal(t, http.StatusOK, code, env.Error)
	var res models.Resolution
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, first.ID, res.CreditAssignedTo)
	assert.Equal(t, "u-SALES_HEAD", res.Actor.ID)

	code, env = s.do(t, http.MethodPost, "/api/duplicate-alerts/"+alert.ID+"/resolve", models.UserRoleSALES_HEAD, models.ResolveRequest{Action: "assign_to_b"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ALREADY_RESOLVED", env.Code)

	code, env = s.do(t, http.MethodGet, "/api/leads/"+second.ID, models.UserRoleSALES_EXECUTIVE, nil)
	require.Equal(t, http.StatusOK, code)
	var lead models.Lead
	require.NoError(t, json.Unmarshal(env.Data, &lead))
	assert.Equal(t, models.LeadStatusRejected, lead.Status)

	code, env = s.do(t, http.MethodGet, "/api/duplicate-alerts/"+alert.ID+"/resolution", models.UserRoleSALES_HEAD, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "first come")

	code, env = s.do(t, http.MethodGet, "/api/duplicate-alerts/resolved", models.UserRoleSUPER_ADMIN, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 1, list.Total)
}

func TestResolveErrors(t *testing.T) {
	s := newTestServer(t)
	a := s.createLead(t, "Acme", 1)
	b := s.createLead(t, "Acme", 2)
	alert := s.ingest(t, a.ID, b.ID)
	resolvePath := "/api/duplicate-alerts/" + alert.ID + "/resolve"

	code, env := s.do(t, http.MethodPost, resolvePath, models.UserRoleSALES_HEAD, models.ResolveRequest{Action: "approve"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_ACTION", env.Code)

	code, env = s.do(t, http.MethodPost, resolvePath, models.UserRoleSALES_HEAD, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "BAD_REQUEST", env.Code)

	code, env = s.do(t, http.MethodPost, "/api/duplicate-alerts/missing/resolve", models.UserRoleSALES_HEAD, models.ResolveRequest{Action: "merge"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "RESOURCE_NOT_FOUND", env.Code)

	code, _ = s.do(t, http.MethodPost, resolvePath, models.UserRoleSALES_EXECUTIVE, models.ResolveRequest{Action: "merge"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodPost, resolvePath, "", models.ResolveRequest{Action: "merge"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestResolveClosedLeadReturnsUnprocessable(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	now := time.Now().UTC()

	won := &models.Lead{CompanyName: "Acme", ContactPerson: "Ravi", Status: models.LeadStatusClosed, CreditShare: 100, CreditOwner: true, Version: 1, CreatedAt: now.Add(-time.Hour), UpdatedAt: now}
	fresh := &models.Lead{CompanyName: "Acme", ContactPerson: "Ravi", Status: models.LeadStatusNew, CreditShare: 100, CreditOwner: true, Version: 1, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.store.CreateLead(ctx, won))
	require.NoError(t, s.store.CreateLead(ctx, fresh))
	alert := s.ingest(t, won.ID, fresh.ID)

	code, env := s.do(t, http.MethodPost, "/api/duplicate-alerts/"+alert.ID+"/resolve", models.UserRoleSALES_HEAD, models.ResolveRequest{Action: "reject_both"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "INVALID_TRANSITION", env.Code)
	assert.Contains(t, env.Error, "closed_won_lead")

	stored, err := s.store.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPending())
}

func TestIngestRequiresDetectorRole(t *testing.T) {
	s := newTestServer(t)
	code, _ := s.do(t, http.MethodPost, "/api/duplicate-alerts", models.UserRoleSALES_HEAD, map[string]string{"lead_a_id": "x", "lead_b_id": "y"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env := s.do(t, http.MethodPost, "/api/duplicate-alerts", models.UserRoleDETECTOR, map[string]string{"lead_a_id": "x", "lead_b_id": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "BAD_REQUEST", env.Code)
}
