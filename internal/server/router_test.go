package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/bootstrapr/internal/process"
	"github.com/loykin/bootstrapr/internal/supervise"
)

type fakeSource struct {
	statuses []supervise.ChildStatus
}

func (f fakeSource) Statuses() []supervise.ChildStatus { return f.statuses }

func testSource() fakeSource {
	return fakeSource{statuses: []supervise.ChildStatus{
		{Status: process.Status{Name: "postgres", Running: true, PID: 100}},
		{Status: process.Status{Name: "web", Running: true, PID: 200}, Restarts: 3},
	}}
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(testSource(), "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusListsAllProcesses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(testSource(), "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Processes []supervise.ChildStatus `json:"processes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Processes, 2)
	assert.Equal(t, "postgres", body.Processes[0].Name)
	assert.Equal(t, 3, body.Processes[1].Restarts)
}

func TestStatusByName(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(testSource(), "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status/web", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var st supervise.ChildStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, "web", st.Name)
	assert.Equal(t, 3, st.Restarts)
}

func TestStatusUnknownName(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(testSource(), "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status/ghost", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBasePathMount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(testSource(), "/bootstrapr")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bootstrapr/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(testSource(), "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
