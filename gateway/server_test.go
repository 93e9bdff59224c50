// Copyright 2025 LinqGate
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linqgate/gateway/linq"
	"linqgate/gateway/shared/logger"
)

func testServer(t *testing.T, h *testHarness) (http.Handler, string) {
	t.Helper()
	auth := NewAuthenticator("test-secret")
	token, err := auth.IssueToken(jwt.MapClaims{"team_id": "team-a", "api_key": "key-1"})
	require.NoError(t, err)

	srv := NewServer(h.service, h.queue, h.execs, h.registry, auth,
		prometheus.NewRegistry(), logger.New("server-test"))
	return srv.Handler(), token
}

func TestHealthEndpointIsOpen(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {})
	handler, _ := testServer(t, h)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "healthy")
}

func TestLinqEndpointRequiresAuth(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {})
	handler, _ := testServer(t, h)

	body := bytes.NewBufferString(`{"link":{"target":"x","action":"fetch"},"query":{"intent":"y"}}`)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/linq", body))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLinqEndpointProcessesRequest(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	})
	h.store.Grant("team-a", "inventory-service")
	handler, token := testServer(t, h)

	body := bytes.NewBufferString(`{"link":{"target":"inventory-service","action":"fetch"},"query":{"intent":"api/items"}}`)
	req := httptest.NewRequest(http.MethodPost, "/linq", body)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp linq.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, linq.StatusSuccess, resp.Metadata.Status)
	assert.Equal(t, "team-a", resp.Metadata.Team)
}

func TestLinqEndpointForbiddenMapsTo403(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {})
	handler, token := testServer(t, h)

	body := bytes.NewBufferString(`{"link":{"target":"secret-service","action":"fetch"},"query":{"intent":"api/x"}}`)
	req := httptest.NewRequest(http.MethodPost, "/linq", body)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestLinqEndpointUnsupportedActionMapsTo400(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {})
	h.store.Grant("team-a", "inventory-service")
	handler, token := testServer(t, h)

	body := bytes.NewBufferString(`{"link":{"target":"inventory-service","action":"explode"},"query":{"intent":"api/items"}}`)
	req := httptest.NewRequest(http.MethodPost, "/linq", body)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "unsupported action")
}

func TestLinqEndpointBackendErrorTextStays200(t *testing.T) {
	// A downstream body that happens to contain "not found" is a degraded
	// result, not a protocol failure; the envelope comes back 200.
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`resource not found upstream`))
	})
	h.store.Grant("team-a", "inventory-service")
	handler, token := testServer(t, h)

	body := bytes.NewBufferString(`{"link":{"target":"inventory-service","action":"fetch"},"query":{"intent":"api/items"}}`)
	req := httptest.NewRequest(http.MethodPost, "/linq", body)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp linq.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, linq.StatusError, resp.Metadata.Status)
}

func TestLinqEndpointRequiresIntentForSingleRequests(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("backend must not be reached")
	})
	h.store.Grant("team-a", "inventory-service")
	handler, token := testServer(t, h)

	body := bytes.NewBufferString(`{"link":{"target":"inventory-service","action":"fetch"},"query":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/linq", body)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "query.intent is required")
}

func TestLinqEndpointRejectsMalformedBody(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {})
	handler, token := testServer(t, h)

	req := httptest.NewRequest(http.MethodPost, "/linq", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStepStatusEndpoints(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	})
	h.store.Grant("team-a", "orders-service")
	handler, token := testServer(t, h)

	// Run a workflow with an async step to get a task ID.
	body := bytes.NewBufferString(`{
		"link":{"target":"workflow","action":"execute"},
		"query":{"workflowId":"wf-http","workflow":[
			{"step":1,"target":"orders-service","action":"create","intent":"api/orders","async":true}
		]}}`)
	req := httptest.NewRequest(http.MethodPost, "/linq", body)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Result struct {
			Steps []struct {
				Result map[string]interface{} `json:"result"`
			} `json:"steps"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Result.Steps, 1)
	taskID := resp.Result.Steps[0].Result["taskId"].(string)

	// Status lookup.
	req = httptest.NewRequest(http.MethodGet, "/linq/async/steps/"+taskID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"queued"`)

	// Cancel while still queued.
	req = httptest.NewRequest(http.MethodDelete, "/linq/async/steps/"+taskID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"cancelled"`)

	// Cancelling again is idempotent.
	req = httptest.NewRequest(http.MethodDelete, "/linq/async/steps/"+taskID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"cancelled"`)

	// Status and cancel also resolve by workflow ID and step number.
	req = httptest.NewRequest(http.MethodGet, "/linq/workflows/wf-http/steps/1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), taskID)

	req = httptest.NewRequest(http.MethodDelete, "/linq/workflows/wf-http/steps/1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"cancelled"`)

	// A step number that is not a number is a 400.
	req = httptest.NewRequest(http.MethodGet, "/linq/workflows/wf-http/steps/abc", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// An unknown step number is a 404.
	req = httptest.NewRequest(http.MethodGet, "/linq/workflows/wf-http/steps/9", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// Unknown task is a 404.
	req = httptest.NewRequest(http.MethodGet, "/linq/async/steps/nope", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestToolEndpoints(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {})
	handler, token := testServer(t, h)

	payload := `{"target":"openai","endpoint":"https://api.openai.com/v1/chat/completions","method":"POST","authType":"bearer","apiKey":"sk-1","supportedIntents":["generate"]}`
	req := httptest.NewRequest(http.MethodPost, "/linq/tools", bytes.NewBufferString(payload))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/linq/tools", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "openai")

	req = httptest.NewRequest(http.MethodDelete, "/linq/tools/openai", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
