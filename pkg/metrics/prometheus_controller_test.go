package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusController_Register(t *testing.T) {
	c := NewPrometheusController("")
	assert.Equal(t, "/debug/prometheus", c.Key())

	r := mux.NewRouter()
	c.Register(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/prometheus", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/debug/prometheus", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
