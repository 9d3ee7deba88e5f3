package httpapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hashnet666/hydra-scanner-backend/internal/httpapi"
	"github.com/hashnet666/hydra-scanner-backend/internal/probe"
	"github.com/hashnet666/hydra-scanner-backend/internal/ratelimit"
	"github.com/hashnet666/hydra-scanner-backend/internal/scans"
	"github.com/hashnet666/hydra-scanner-backend/internal/session"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, quota int) *httptest.Server {
	t.Helper()
	sessions := session.NewStore(24 * time.Hour)
	limiter := ratelimit.New(quota, time.Hour)
	sim := probe.Simulated{SuccessRatio: 1}
	mgr := scans.New(sessions, sim.Probe, 1000)
	t.Cleanup(mgr.Close)

	srv := httptest.NewServer(httpapi.New(mgr, sessions, limiter).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, url, rd)
	require.NoError(t, err)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, 100)

	code, body := doJSON(t, http.MethodGet, srv.URL+"/", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Hydra Scanner API", body["status"])
	require.Equal(t, "2.0", body["version"])
}

func TestScanFlow(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, 1000)

	code, body := doJSON(t, http.MethodPost, srv.URL+"/session", nil)
	require.Equal(t, http.StatusOK, code)
	sid, _ := body["session_id"].(string)
	require.NotEmpty(t, sid)

	code, body = doJSON(t, http.MethodPost, srv.URL+"/scan", map[string]any{
		"session_id": sid,
		"hosts":      []string{"a", "b", "c"},
		"protocol":   "http",
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(3), body["total_targets"])
	require.Equal(t, "http", body["protocol"])
	require.Equal(t, "started", body["status"])
	scanID, _ := body["scan_id"].(string)
	require.NotEmpty(t, scanID)

	require.Eventually(t, func() bool {
		code, body = doJSON(t, http.MethodGet, srv.URL+"/scan/"+scanID, nil)
		require.Equal(t, http.StatusOK, code)
		return body["status"] == "completed"
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, float64(3), body["total"])
	require.Equal(t, float64(3), body["processed"])
	require.Equal(t, float64(100), body["progress"])
	require.Equal(t, body["processed"], body["successful"].(float64)+body["failed"].(float64))

	code, body = doJSON(t, http.MethodGet, srv.URL+"/session/"+sid+"/scans", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(1), body["jobs_created"])
	require.Empty(t, body["active_jobs"])

	code, body = doJSON(t, http.MethodDelete, srv.URL+"/scan/"+scanID, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "cancelled", body["status"])

	code, body = doJSON(t, http.MethodDelete, srv.URL+"/scan/"+scanID, nil)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "not_found", body["error"])
}

func TestErrors(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, 100)

	t.Run("unknown scan", func(t *testing.T) {
		code, body := doJSON(t, http.MethodGet, srv.URL+"/scan/scan_0_deadbeef", nil)
		require.Equal(t, http.StatusNotFound, code)
		require.Equal(t, "not_found", body["error"])
	})

	t.Run("invalid session", func(t *testing.T) {
		code, body := doJSON(t, http.MethodPost, srv.URL+"/scan", map[string]any{
			"session_id": "nope",
			"hosts":      []string{"a"},
		})
		require.Equal(t, http.StatusUnauthorized, code)
		require.Equal(t, "invalid_session", body["error"])
	})

	t.Run("too many targets", func(t *testing.T) {
		_, body := doJSON(t, http.MethodPost, srv.URL+"/session", nil)
		sid := body["session_id"].(string)

		hosts := make([]string, 1001)
		for i := range hosts {
			hosts[i] = "h"
		}
		code, body := doJSON(t, http.MethodPost, srv.URL+"/scan", map[string]any{
			"session_id": sid,
			"hosts":      hosts,
		})
		require.Equal(t, http.StatusBadRequest, code)
		require.Equal(t, "bad_request", body["error"])
	})

	t.Run("malformed body", func(t *testing.T) {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, srv.URL+"/scan", bytes.NewReader([]byte("{")))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("invalid session listing", func(t *testing.T) {
		code, body := doJSON(t, http.MethodGet, srv.URL+"/session/nope/scans", nil)
		require.Equal(t, http.StatusUnauthorized, code)
		require.Equal(t, "invalid_session", body["error"])
	})
}

func TestRateLimitGatesBeforeSessionValidation(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, 2)

	// every request consumes a slot, even ones that fail validation
	for range 2 {
		code, body := doJSON(t, http.MethodPost, srv.URL+"/scan", map[string]any{
			"session_id": "nope",
			"hosts":      []string{"a"},
		})
		require.Equal(t, http.StatusUnauthorized, code)
		require.Equal(t, "invalid_session", body["error"])
	}

	code, body := doJSON(t, http.MethodPost, srv.URL+"/scan", map[string]any{
		"session_id": "nope",
		"hosts":      []string{"a"},
	})
	require.Equal(t, http.StatusTooManyRequests, code)
	require.Equal(t, "rate_limited", body["error"])
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, 100)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodOptions, srv.URL+"/scan", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
