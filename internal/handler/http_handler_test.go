package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ataa-platform/be-aid-ledger/internal/repository"
	"github.com/ataa-platform/be-aid-ledger/internal/repository/memory"
	"github.com/ataa-platform/be-aid-ledger/internal/service"
)

type env struct {
	handler       http.Handler
	store         *memory.Store
	associationID string
	beneficiaryID string
}

func newEnv(t *testing.T, balance int64) *env {
	t.Helper()
	store := memory.New()

	assocID := store.PutAssociation(&repository.Association{
		Name:     "Espoir",
		Status:   repository.AssociationActive,
		Balance:  balance,
		Currency: "TND",
	})
	famID := store.PutFamily(&repository.Family{
		AssociationID: assocID,
		Name:          "Ben Salah",
		MemberCount:   4,
		Status:        repository.FamilyEligible,
	})
	benID := store.PutBeneficiary(&repository.Beneficiary{
		AssociationID: assocID,
		FamilyID:      &famID,
		FullName:      "Amal Ben Salah",
		Status:        repository.BeneficiaryEligible,
	})

	log := zerolog.Nop()
	h := NewHTTPHandler(
		service.NewDispatchService(store, log),
		service.NewContributionService(store, log),
		service.NewRuleService(store, log),
		log,
	)
	return &env{handler: h.Handler(), store: store, associationID: assocID, beneficiaryID: benID}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestDispatchEndpoint(t *testing.T) {
	e := newEnv(t, 1000)

	rec := e.do(t, http.MethodPost, "/api/v1/dispatches", map[string]any{
		"association_id": e.associationID,
		"beneficiary_id": e.beneficiaryID,
		"amount":         200,
		"aid_type":       "FOOD",
		"actor_id":       "operator-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var d repository.Dispatch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, repository.AidFood, d.AidType)
	assert.Equal(t, "COMPLETED", d.Status)

	rec = e.do(t, http.MethodGet, "/api/v1/associations/"+e.associationID+"/budget", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var budget service.BudgetReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &budget))
	assert.Equal(t, int64(800), budget.Balance)
}

func TestDispatchEndpointActorHeader(t *testing.T) {
	e := newEnv(t, 1000)

	body, _ := json.Marshal(map[string]any{
		"association_id": e.associationID,
		"beneficiary_id": e.beneficiaryID,
		"amount":         100,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatches", bytes.NewReader(body))
	req.Header.Set("X-Actor-ID", "gateway-user-7")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var d repository.Dispatch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, "gateway-user-7", d.ProcessedByID)
}

func TestErrorStatusMapping(t *testing.T) {
	e := newEnv(t, 50)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:   "insufficient budget",
			method: http.MethodPost, path: "/api/v1/dispatches",
			body: map[string]any{
				"association_id": e.associationID,
				"beneficiary_id": e.beneficiaryID,
				"amount":         100,
				"actor_id":       "op",
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "INSUFFICIENT_BUDGET",
		},
		{
			name:   "unknown association",
			method: http.MethodGet, path: "/api/v1/associations/missing/budget",
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:   "bad rule",
			method: http.MethodPost, path: "/api/v1/rules",
			body:       map[string]any{"association_id": e.associationID, "type": "AMOUNT", "value": 0},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, tt.method, tt.path, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			errBody := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, errBody["code"])
		})
	}
}

func TestContributionLifecycleEndpoints(t *testing.T) {
	e := newEnv(t, 0)

	rec := e.do(t, http.MethodPost, "/api/v1/contributions", map[string]any{
		"association_id": e.associationID,
		"amount":         500,
		"donor_name":     "Karim",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c repository.Contribution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Equal(t, repository.ContributionPending, c.Status)

	rec = e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/contributions/%s/approve", c.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// second approval conflicts
	rec = e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/contributions/%s/approve", c.ID), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_STATE", decodeError(t, rec)["code"])

	rec = e.do(t, http.MethodGet, "/api/v1/associations/"+e.associationID+"/ledger", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, true, report["consistent"])
	assert.Equal(t, float64(500), report["balance"])
}

func TestEligibleBeneficiariesEndpoint(t *testing.T) {
	e := newEnv(t, 1000)

	rec := e.do(t, http.MethodGet, "/api/v1/associations/"+e.associationID+"/eligible-beneficiaries", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Beneficiaries []service.EligibleBeneficiary `json:"beneficiaries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Beneficiaries, 1)
	assert.True(t, body.Beneficiaries[0].CanReceiveNow)
}

func TestHealthEndpoint(t *testing.T) {
	e := newEnv(t, 0)
	rec := e.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}
