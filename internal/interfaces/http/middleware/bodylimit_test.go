package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newEngine := func(limit int64) *gin.Engine {
		engine := gin.New()
		engine.Use(BodyLimit(limit))
		engine.POST("/resource", func(c *gin.Context) {
			if _, err := io.ReadAll(c.Request.Body); err != nil {
				c.String(http.StatusRequestEntityTooLarge, "too large")
				return
			}
			c.String(http.StatusOK, "ok")
		})
		engine.GET("/resource", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
		return engine
	}

	t.Run("small bodies pass", func(t *testing.T) {
		engine := newEngine(1024)
		req := httptest.NewRequest(http.MethodPost, "/resource", strings.NewReader(`{"amount": 100}`))
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("a declared oversize length is rejected before reading", func(t *testing.T) {
		engine := newEngine(64)
		req := httptest.NewRequest(http.MethodPost, "/resource", strings.NewReader(strings.Repeat("x", 200)))
		req.ContentLength = 200
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), "REQUEST_TOO_LARGE")
	})

	t.Run("bodiless requests are unaffected", func(t *testing.T) {
		engine := newEngine(8)
		req := httptest.NewRequest(http.MethodGet, "/resource", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("a chunked body hits the cap while reading", func(t *testing.T) {
		engine := newEngine(32)
		req := httptest.NewRequest(http.MethodPost, "/resource", strings.NewReader(strings.Repeat("x", 100)))
		req.ContentLength = -1 // unknown length, as with chunked transfer
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}
