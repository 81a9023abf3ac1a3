// file: internal/transport/http/middleware/middleware_test.go
package middleware

import (
	"LiteLens/internal/core/port"
	"LiteLens/internal/service"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestErrorHandlingMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		bind     bool
		wantCode int
		wantMsg  string
	}{
		{"execution error is verbatim", port.NewExecutionError("SELEC 1", errors.New(`near "SELEC": syntax error`)), false, http.StatusUnprocessableEntity, `near "SELEC": syntax error`},
		{"unknown table", fmt.Errorf("表 'x': %w", port.ErrUnknownTable), false, http.StatusNotFound, ""},
		{"connection", port.ErrConnection, false, http.StatusConflict, ""},
		{"bad credentials", service.ErrBadCredentials, false, http.StatusUnauthorized, ""},
		{"bind error", errors.New("unexpected EOF"), true, http.StatusBadRequest, ""},
		{"unknown error", errors.New("boom"), false, http.StatusInternalServerError, "服务器内部错误"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(ErrorHandlingMiddleware())
			r.GET("/x", func(c *gin.Context) {
				e := c.Error(tt.err)
				if tt.bind {
					e.SetType(gin.ErrorTypeBind)
				}
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
			assert.Equal(t, tt.wantCode, w.Code)

			if tt.wantMsg != "" {
				var body map[string]any
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tt.wantMsg, body["error"])
			}
		})
	}
}

func TestErrorHandlingMiddleware_NoErrorPassThrough(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "fine") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fine", w.Body.String())
}

func TestRateLimiter_PerIP(t *testing.T) {
	rl := NewRateLimiter(1000, 1000, 0.0001, 2)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"), "第三个请求应超出突发上限")
	assert.True(t, rl.Allow("10.0.0.2"), "其他 IP 不受影响")
}

func TestRateLimiter_GlobalAndMiddleware(t *testing.T) {
	rl := NewRateLimiter(0.0001, 1, 1000, 1000)

	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	generated := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(generated)
	require.NoError(t, err)
	assert.Equal(t, generated, w.Body.String())

	given := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, given)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, given, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "not-a-uuid", w.Header().Get(RequestIDHeader))
}
