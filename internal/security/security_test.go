package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(config Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	m := NewMiddleware(config)

	r := gin.New()
	r.Use(m.SecurityHeaders)
	r.Use(m.RequestTimeout)
	r.Use(m.ValidateContentType)
	r.Use(m.LimitBodySize)
	r.POST("/echo", func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"bytes": len(body)})
	})
	return r
}

func TestSecurityHeaders(t *testing.T) {
	r := testRouter(DefaultConfig())

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodPost, "/echo", strings.NewReader("{}"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("Referrer-Policy"))
	// No TLS in tests, so no HSTS.
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestValidateContentType(t *testing.T) {
	r := testRouter(DefaultConfig())

	tests := []struct {
		name        string
		contentType string
		wantStatus  int
	}{
		{"json accepted", "application/json", http.StatusOK},
		{"json with charset accepted", "application/json; charset=utf-8", http.StatusOK},
		{"form accepted", "application/x-www-form-urlencoded", http.StatusOK},
		{"xml rejected", "application/xml", http.StatusUnsupportedMediaType},
		{"plain text rejected", "text/plain", http.StatusUnsupportedMediaType},
		{"empty passes through", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, err := http.NewRequest(http.MethodPost, "/echo", strings.NewReader("{}"))
			require.NoError(t, err)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestLimitBodySize(t *testing.T) {
	config := DefaultConfig()
	config.MaxBodyBytes = 16
	r := testRouter(config)

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("x", 100)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRequestTimeoutHeader(t *testing.T) {
	config := DefaultConfig()
	config.RequestTimeout = 5 * time.Second
	r := testRouter(config)

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodPost, "/echo", strings.NewReader("{}"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, "5", w.Header().Get("X-Timeout"))
}
