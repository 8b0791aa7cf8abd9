package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumetric/edumetric/internal/monitoring"
)

func fallbackLimiter(t *testing.T, config Config) *RateLimiter {
	t.Helper()
	client, err := NewRedisClient("", "", 0)
	require.NoError(t, err)
	return NewRateLimiter(client, config, monitoring.NewMetrics())
}

func TestFallbackAllowsWithinLimit(t *testing.T) {
	rl := fallbackLimiter(t, DefaultConfig())

	result, err := rl.AllowIP(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 60, result.Limit)
}

func TestFallbackBlocksAfterBurst(t *testing.T) {
	config := Config{IPLimitPerMin: 2, HeavyLimitPerMin: 1, BurstMultiplier: 1}
	rl := fallbackLimiter(t, config)
	ctx := context.Background()

	// Burst floor is 5 tokens.
	blocked := false
	for i := 0; i < 10; i++ {
		result, err := rl.AllowIP(ctx, "10.0.0.2")
		require.NoError(t, err)
		if !result.Allowed {
			blocked = true
			assert.Greater(t, result.RetryAfter.Seconds(), 0.0)
			break
		}
	}
	assert.True(t, blocked)
}

func TestFallbackKeysAreIndependent(t *testing.T) {
	config := Config{IPLimitPerMin: 1, HeavyLimitPerMin: 1, BurstMultiplier: 1}
	rl := fallbackLimiter(t, config)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := rl.AllowIP(ctx, "10.0.0.3")
		require.NoError(t, err)
	}

	// A fresh IP still passes.
	result, err := rl.AllowIP(ctx, "10.0.0.4")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	// The heavy bucket for the exhausted IP is separate too.
	result, err = rl.AllowHeavy(ctx, "10.0.0.3")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestMiddlewareSetsHeadersAndBlocks(t *testing.T) {
	gin.SetMode(gin.TestMode)

	config := Config{IPLimitPerMin: 1, HeavyLimitPerMin: 1, BurstMultiplier: 1}
	rl := fallbackLimiter(t, config)

	r := gin.New()
	r.Use(rl.Middleware(monitoring.NewMetrics()))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	var lastCode int
	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		req, err := http.NewRequest(http.MethodGet, "/ping", nil)
		require.NoError(t, err)
		req.RemoteAddr = "10.0.0.5:1234"
		r.ServeHTTP(w, req)

		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
		lastCode = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}
