package httpgin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONWithCache(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/thing", func(c *gin.Context) {
		writeJSONWithCache(c, http.StatusOK, gin.H{"id": 7}, "public, max-age=60", true)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/thing", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":7}`, w.Body.String())
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))

	tag := w.Header().Get("ETag")
	require.NotEmpty(t, tag)

	// Same payload revalidated with If-None-Match gets a 304 and no body.
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/thing", nil)
	req2.Header.Set("If-None-Match", tag)
	r.ServeHTTP(w2, req2)

	assert.Equal(t, http.StatusNotModified, w2.Code)
	assert.Empty(t, w2.Body.String())
	assert.Equal(t, tag, w2.Header().Get("ETag"))
}

func TestStaffAuthRejectsMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/guarded", StaffAuth("secret"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req2.Header.Set("Authorization", "Bearer not-a-jwt")
	r.ServeHTTP(w2, req2)

	assert.Equal(t, http.StatusUnauthorized, w2.Code)
}
