package generic

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"emsgateway/pkg/apis"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	e := Default()
	e.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(apis.RequestID))
	})

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get(apis.RequestID))
	assert.Equal(t, w.Header().Get(apis.RequestID), w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(apis.RequestID, "abc")
	e.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(apis.RequestID))
}
