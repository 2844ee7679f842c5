package parameter

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParameterHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d := NewDictionary(nil)
	d.Load(map[uint8]string{30: "UTC"})
	e := gin.New()
	InstallHandler(e.Group("/api/v1"), d)

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/parameters", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"parameters":{"30":"UTC"}}`, w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/parameters", strings.NewReader(`{"30":null,"31":"2025-01-01 12:00:00"}`))
	req.Header.Set("Content-Type", "application/merge-patch+json")
	e.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"parameters":{"31":"2025-01-01 12:00:00"}}`, w.Body.String())

	w = httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/api/v1/parameters", strings.NewReader(`{"999":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "10008")
}
