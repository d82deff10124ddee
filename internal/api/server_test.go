package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/brain-access/internal/api"
	"github.com/ajitpratap0/brain-access/internal/brainaccess"
	"github.com/ajitpratap0/brain-access/internal/models"
	"github.com/ajitpratap0/brain-access/internal/notify"
	"github.com/ajitpratap0/brain-access/internal/quota"
	"github.com/ajitpratap0/brain-access/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testEnv struct {
	ts       *httptest.Server
	store    store.Store
	workflow *brainaccess.Workflow
}

// newTestServer wires the API over a MemoryStore, or over st when given.
func newTestServer(t *testing.T, authToken string, st store.Store) *testEnv {
	t.Helper()
	logger := testLogger()
	if st == nil {
		st = store.NewMemoryStore()
	}
	checker := quota.NewChecker(st, st, quota.FailClosed, logger)
	wf := brainaccess.NewWorkflow(st, notify.NewLogNotifier(logger), brainaccess.DefaultPolicy(), logger)
	srv := api.NewServer(st, checker, wf, logger, authToken)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		wf.Wait()
	})
	return &testEnv{ts: ts, store: st, workflow: wf}
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func doRequest(t *testing.T, method, url string, body *bytes.Buffer, token string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(context.Background(), method, url, body)
	} else {
		req, err = http.NewRequestWithContext(context.Background(), method, url, http.NoBody)
	}
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestAPI_Healthz(t *testing.T) {
	env := newTestServer(t, "secret", nil)

	resp := doRequest(t, http.MethodGet, env.ts.URL+"/healthz", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]string
	decodeBody(t, resp, &result)
	assert.Equal(t, "ok", result["status"])
}

func TestAPI_AuthRequired(t *testing.T) {
	env := newTestServer(t, "secret", nil)

	resp := doRequest(t, http.MethodGet, env.ts.URL+"/v1/plans", nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, env.ts.URL+"/v1/plans", nil, "wrong")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, env.ts.URL+"/v1/plans", nil, "secret")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_Plans(t *testing.T) {
	env := newTestServer(t, "", nil)

	resp := doRequest(t, http.MethodGet, env.ts.URL+"/v1/plans", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Plans []struct {
			Plan        string           `json:"plan"`
			UploadQuota json.RawMessage  `json:"upload_quota"`
			Features    []models.Feature `json:"features"`
		} `json:"plans"`
	}
	decodeBody(t, resp, &result)
	require.Len(t, result.Plans, 4)
	assert.Equal(t, "free", result.Plans[0].Plan)
	assert.JSONEq(t, `3`, string(result.Plans[0].UploadQuota))
	assert.JSONEq(t, `"unlimited"`, string(result.Plans[2].UploadQuota))
	assert.Contains(t, result.Plans[3].Features, models.FeatureSSO)
}

func TestAPI_Entitlement(t *testing.T) {
	env := newTestServer(t, "", nil)

	resp := doRequest(t, http.MethodGet, env.ts.URL+"/v1/entitlements/free/upload_photos", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]any
	decodeBody(t, resp, &result)
	assert.Equal(t, false, result["allowed"])
	assert.Equal(t, "solo", result["required_plan"])
	assert.Equal(t, true, result["can_upgrade"])
	assert.Equal(t, "solo", result["next_plan"])
}

func TestAPI_EntitlementUnknownPlanFailsClosed(t *testing.T) {
	env := newTestServer(t, "", nil)

	resp := doRequest(t, http.MethodGet, env.ts.URL+"/v1/entitlements/bogus/upload_tips", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]any
	decodeBody(t, resp, &result)
	assert.Equal(t, false, result["allowed"])
}

func TestAPI_Upgrade(t *testing.T) {
	env := newTestServer(t, "", nil)

	resp := doRequest(t, http.MethodGet, env.ts.URL+"/v1/upgrade?from=team&to=team", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var same struct {
		Features []any `json:"features"`
	}
	decodeBody(t, resp, &same)
	assert.NotNil(t, same.Features)
	assert.Empty(t, same.Features)

	resp = doRequest(t, http.MethodGet, env.ts.URL+"/v1/upgrade?from=free", nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Prompt(t *testing.T) {
	env := newTestServer(t, "", nil)

	resp := doRequest(t, http.MethodGet, env.ts.URL+"/v1/prompt/solo/organization_sharing", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		UpgradeNeeded bool `json:"upgrade_needed"`
		Prompt        struct {
			RequiredPlan struct {
				Plan string `json:"plan"`
			} `json:"required_plan"`
		} `json:"prompt"`
	}
	decodeBody(t, resp, &result)
	assert.True(t, result.UpgradeNeeded)
	assert.Equal(t, "team", result.Prompt.RequiredPlan.Plan)
}

func TestAPI_SharingOptionsFree(t *testing.T) {
	env := newTestServer(t, "", nil)

	resp := doRequest(t, http.MethodGet, env.ts.URL+"/v1/sharing/free", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Options map[string]bool `json:"options"`
	}
	decodeBody(t, resp, &result)
	assert.Equal(t, map[string]bool{
		"community":    true,
		"private":      false,
		"organization": false,
		"teamAccess":   false,
		"forced":       true,
	}, result.Options)
}

func TestAPI_SharingApplyExclusive(t *testing.T) {
	env := newTestServer(t, "", nil)

	body := jsonBody(t, map[string]any{
		"plan":        "team",
		"current":     []string{"community"},
		"destination": "organization",
	})
	resp := doRequest(t, http.MethodPost, env.ts.URL+"/v1/sharing/apply", body, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Selection []string `json:"selection"`
	}
	decodeBody(t, resp, &result)
	assert.Equal(t, []string{"organization"}, result.Selection)
}

func TestAPI_SharingApplyUnavailable(t *testing.T) {
	env := newTestServer(t, "", nil)

	body := jsonBody(t, map[string]any{"plan": "free", "destination": "private"})
	resp := doRequest(t, http.MethodPost, env.ts.URL+"/v1/sharing/apply", body, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_SharingValidation(t *testing.T) {
	env := newTestServer(t, "", nil)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"unknown plan", map[string]any{"plan": "gold", "selection": []string{"community"}}, http.StatusBadRequest},
		{"unknown destination", map[string]any{"plan": "team", "selection": []string{"moon"}}, http.StatusBadRequest},
		{"empty selection", map[string]any{"plan": "solo", "selection": []string{}}, http.StatusBadRequest},
		{"two exclusives", map[string]any{"plan": "team", "selection": []string{"community", "private"}}, http.StatusBadRequest},
		{"private on solo", map[string]any{"plan": "solo", "selection": []string{"private"}}, http.StatusOK},
		{"free forced community", map[string]any{"plan": "free", "selection": []string{}}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodPost, env.ts.URL+"/v1/sharing/validate", jsonBody(t, tt.body), "")
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAPI_UploadQuotaFlow(t *testing.T) {
	env := newTestServer(t, "", nil)
	url := env.ts.URL + "/v1/users/u1/uploads"

	for i := 0; i < 3; i++ {
		resp := doRequest(t, http.MethodPost, url, nil, "")
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := doRequest(t, http.MethodPost, url, nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, env.ts.URL+"/v1/users/u1/quota", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var d map[string]any
	decodeBody(t, resp, &d)
	assert.Equal(t, false, d["allowed"])
	assert.Equal(t, float64(3), d["used"])
}

func TestAPI_SetPlanAndContext(t *testing.T) {
	env := newTestServer(t, "", nil)

	resp := doRequest(t, http.MethodPut, env.ts.URL+"/v1/users/u1/plan", jsonBody(t, map[string]string{"plan": "Solo"}), "")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, env.ts.URL+"/v1/users/u1/context", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var c map[string]any
	decodeBody(t, resp, &c)
	assert.Equal(t, "solo", c["plan"])
	assert.Equal(t, false, c["degraded"])
	assert.Contains(t, c["features"], "brain_private_storage")

	resp = doRequest(t, http.MethodPut, env.ts.URL+"/v1/users/u1/plan", jsonBody(t, map[string]string{"plan": "gold"}), "")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_GetUserNotFound(t *testing.T) {
	env := newTestServer(t, "", nil)
	resp := doRequest(t, http.MethodGet, env.ts.URL+"/v1/users/ghost", nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_BrainAccessLifecycle(t *testing.T) {
	env := newTestServer(t, "", nil)
	base := env.ts.URL + "/v1/users/u1/brain-access"

	resp := doRequest(t, http.MethodGet, base, nil, "")
	var status struct {
		BrainAccess models.BrainAccessRequest `json:"brain_access"`
		Degraded    bool                      `json:"degraded"`
	}
	decodeBody(t, resp, &status)
	assert.Equal(t, models.BrainAccessNone, status.BrainAccess.Status)
	assert.False(t, status.Degraded)

	req := map[string]string{"name": "Ada", "email": "ada@example.com"}
	resp = doRequest(t, http.MethodPost, base, jsonBody(t, req), "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var res struct {
		Request        models.BrainAccessRequest `json:"request"`
		EstimatedHours float64                   `json:"estimated_turnaround_hours"`
	}
	decodeBody(t, resp, &res)
	assert.Equal(t, models.BrainAccessRequested, res.Request.Status)
	assert.Equal(t, brainaccess.DefaultTurnaround.Hours(), res.EstimatedHours)

	resp = doRequest(t, http.MethodPost, base, jsonBody(t, req), "")
	var conflict map[string]any
	decodeBody(t, resp, &conflict)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_requested", conflict["error"])

	resp = doRequest(t, http.MethodPost, base+"/reject", jsonBody(t, map[string]string{"approver_id": "eng-1"}), "")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "reason is required")

	resp = doRequest(t, http.MethodPost, base+"/approve", jsonBody(t, map[string]string{"approver_id": "eng-1"}), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var approved models.BrainAccessRequest
	decodeBody(t, resp, &approved)
	assert.Equal(t, models.BrainAccessApproved, approved.Status)
	assert.Equal(t, res.Request.RequestedAt.Unix(), approved.RequestedAt.Unix())

	resp = doRequest(t, http.MethodPost, base+"/reject", jsonBody(t, map[string]string{"approver_id": "eng-1", "reason": "late"}), "")
	var bad map[string]any
	decodeBody(t, resp, &bad)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_transition", bad["error"])
}

func TestAPI_BrainAccessRequestValidation(t *testing.T) {
	env := newTestServer(t, "", nil)
	resp := doRequest(t, http.MethodPost, env.ts.URL+"/v1/users/u1/brain-access",
		jsonBody(t, map[string]string{"name": "Ada", "email": "not-an-email"}), "")
	var result map[string]string
	decodeBody(t, resp, &result)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, result["error"], "email")
}

// failingStore fails every brain access and counter read.
type failingStore struct{ *store.MemoryStore }

func (failingStore) ReadBrainAccess(_ context.Context, _ string) (*models.BrainAccessRequest, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) ReadUploadCount(_ context.Context, _ string, _ time.Time) (int, error) {
	return 0, errors.New("connection refused")
}

func TestAPI_PersistenceFailures(t *testing.T) {
	env := newTestServer(t, "", failingStore{store.NewMemoryStore()})

	resp := doRequest(t, http.MethodGet, env.ts.URL+"/v1/users/u1/brain-access", nil, "")
	var status map[string]any
	decodeBody(t, resp, &status)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, status["degraded"])

	resp = doRequest(t, http.MethodPost, env.ts.URL+"/v1/users/u1/brain-access",
		jsonBody(t, map[string]string{"name": "Ada", "email": "ada@example.com"}), "")
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, env.ts.URL+"/v1/users/u1/uploads", nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "fail closed surfaces storage failure")

	resp = doRequest(t, http.MethodGet, env.ts.URL+"/v1/users/u1/quota", nil, "")
	var d map[string]any
	decodeBody(t, resp, &d)
	assert.Equal(t, false, d["allowed"])
	assert.Equal(t, true, d["degraded"])
}
