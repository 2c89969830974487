package alert

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-ids-console/internal/alert/alerttest"
	"github.com/ovaphlow/pitchfork/service-ids-console/internal/alert/entity"
	"github.com/ovaphlow/pitchfork/service-ids-console/internal/auth"
)

func newTestHandler(t *testing.T) (*Handler, *alerttest.MemoryRepo) {
	t.Helper()
	svc, repo := newTestService(t)
	return NewHandler(svc, zap.NewNop().Sugar()), repo
}

// serve routes through a mux so path values are populated.
func serve(h *Handler, method, target, body string, claims *auth.Claims) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/ids-logs", h.Logs)
	mux.HandleFunc("GET /api/alerts", h.Alerts)
	mux.HandleFunc("PUT /api/alerts/change-owner", h.ChangeOwner)
	mux.HandleFunc("PUT /api/alerts/status", h.UpdateStatus)
	mux.HandleFunc("PUT /api/alerts/{id}/status", h.UpdateStatus)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if claims != nil {
		req = req.WithContext(auth.WithClaims(req.Context(), claims))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

var alice = &auth.Claims{Username: "alice", Role: "User"}

func TestHandler_Logs(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := serve(h, http.MethodGet, "/api/ids-logs?sourceIP=172.16", "", alice)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []entity.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "c3", out[0].ConnectionID)

	rec = serve(h, http.MethodGet, "/api/ids-logs?dstIP=nowhere", "", alice)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandler_Alerts(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := serve(h, http.MethodGet, "/api/alerts", "", alice)
	require.Equal(t, http.StatusOK, rec.Code)
	var out []entity.AlertView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out, 2)

	rec = serve(h, http.MethodGet, "/api/alerts?label=neptune", "", alice)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "c2", out[0].ConnectionID)
}

func TestHandler_ChangeOwner(t *testing.T) {
	h, repo := newTestHandler(t)

	rec := serve(h, http.MethodPut, "/api/alerts/change-owner",
		`{"alerts":[{"ConnectionID":"c1","SrcIP":"192.168.1.10"}],"newOwner":"alice"}`, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Alert owner updated successfully"}`, rec.Body.String())

	r, _ := repo.Record(entity.Key{ConnectionID: "c1", SrcIP: "192.168.1.10"})
	require.NotNil(t, r.Owner)
	assert.Equal(t, "alice", *r.Owner)
}

func TestHandler_ChangeOwnerRejectsLegacyIDs(t *testing.T) {
	h, repo := newTestHandler(t)

	rec := serve(h, http.MethodPut, "/api/alerts/change-owner", `{"alertIds":[1,2],"newOwner":"alice"}`, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, repo.Calls)

	rec = serve(h, http.MethodPut, "/api/alerts/change-owner", `{"alerts":[],"newOwner":"alice"}`, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid alerts array provided."}`, rec.Body.String())
}

func TestHandler_UpdateStatus(t *testing.T) {
	h, repo := newTestHandler(t)

	rec := serve(h, http.MethodPut, "/api/alerts/status",
		`{"ConnectionID":"c2","SrcIP":"192.168.1.20","status":"Resolved"}`, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Alert status updated successfully"}`, rec.Body.String())

	r, _ := repo.Record(entity.Key{ConnectionID: "c2", SrcIP: "192.168.1.20"})
	assert.Equal(t, entity.StatusResolved, r.Status)
	assert.Equal(t, "alice", *r.LastUpdatedBy)
}

func TestHandler_UpdateStatusPathID(t *testing.T) {
	h, repo := newTestHandler(t)

	rec := serve(h, http.MethodPut, "/api/alerts/c2/status",
		`{"ConnectionID":"ignored","SrcIP":"192.168.1.20","status":"Unresolved"}`, alice)
	require.Equal(t, http.StatusOK, rec.Code)

	r, _ := repo.Record(entity.Key{ConnectionID: "c2", SrcIP: "192.168.1.20"})
	assert.Equal(t, entity.StatusUnresolved, r.Status)
}

func TestHandler_UpdateStatusErrors(t *testing.T) {
	h, _ := newTestHandler(t)
	body := `{"ConnectionID":"c2","SrcIP":"192.168.1.20","status":"Resolved"}`

	rec := serve(h, http.MethodPut, "/api/alerts/status", body, &auth.Claims{Username: "bob"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"You are not the owner of this alert."}`, rec.Body.String())

	rec = serve(h, http.MethodPut, "/api/alerts/status", `{"ConnectionID":"c2","SrcIP":"192.168.1.20","status":"Done"}`, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid status value"}`, rec.Body.String())

	rec = serve(h, http.MethodPut, "/api/alerts/status", `{"ConnectionID":"zz","SrcIP":"1.1.1.1","status":"Resolved"}`, alice)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, http.MethodPut, "/api/alerts/status", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_OversizedBodyRejected(t *testing.T) {
	h, repo := newTestHandler(t)
	pad := strings.Repeat("x", 2<<20)

	rec := serve(h, http.MethodPut, "/api/alerts/change-owner", `{"newOwner":"`+pad+`"}`, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, http.MethodPut, "/api/alerts/status", `{"SrcIP":"`+pad+`","status":"Resolved"}`, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, repo.Calls)
}
