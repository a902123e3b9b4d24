package observe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/dftd-labeler/pkg/logging"
	"github.com/psantana5/dftd-labeler/pkg/models"
)

func testRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "dftdlabel_structures_processed_total", Help: "test"})
	c.Add(3)
	reg.MustRegister(c)
	return reg
}

func testStatus() models.JobResult {
	return models.JobResult{JobID: "abc", State: models.StateProcessing, Total: 5, LastIndex: 2}
}

func TestRouter(t *testing.T) {
	r := NewRouter(testRegistry(), testStatus)

	tests := []struct {
		path        string
		contentType string
		contains    string
	}{
		{"/health", "application/json", `"status":"healthy"`},
		{"/progress", "application/json", `"state":"processing"`},
		{"/metrics", "text/plain", "dftdlabel_structures_processed_total 3"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), tt.contentType)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/progress", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerLifecycle(t *testing.T) {
	s, err := Start("127.0.0.1:0", NewRouter(testRegistry(), testStatus), logging.Nop())
	require.NoError(t, err)

	resp, err := http.Get("http://" + s.Addr() + "/progress")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	var st models.JobResult
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, "abc", st.JobID)
	assert.Equal(t, 2, st.LastIndex)

	require.NoError(t, s.Shutdown(context.Background()))
	_, err = http.Get("http://" + s.Addr() + "/health")
	assert.Error(t, err)
}

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dftdlabel.prom")
	require.NoError(t, WriteTextfile(path, testRegistry()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# TYPE dftdlabel_structures_processed_total counter")
	assert.Contains(t, string(data), "dftdlabel_structures_processed_total 3")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestWriteTextfileBadDir(t *testing.T) {
	err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"), testRegistry())
	assert.Error(t, err)
}
