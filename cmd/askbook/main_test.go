package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/liliang-cn/askbook/internal/api/middleware"
	"github.com/liliang-cn/askbook/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "ingest", "reset"} {
		assert.True(t, names[want], want)
	}

	assert.NotNil(t, ingestCmd.Flags().Lookup("dir"))
	assert.NotNil(t, ingestCmd.Flags().Lookup("watch"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestIngestHelp(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"ingest", "--help"})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "--watch")
}

func TestNewRateLimiter(t *testing.T) {
	ctx := context.Background()

	limiter, closeLimiter, err := newRateLimiter(ctx, &config.Config{})
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.NoError(t, closeLimiter())

	limiter, closeLimiter, err = newRateLimiter(ctx, &config.Config{
		RateLimit: config.RateLimitConfig{Enabled: true, Backend: "memory", RequestsPerHour: 10, Burst: 2},
	})
	require.NoError(t, err)
	assert.IsType(t, &middleware.LocalLimiter{}, limiter)
	assert.NoError(t, closeLimiter())
}

func TestNewRateLimiter_RedisClosesClient(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	limiter, closeLimiter, err := newRateLimiter(ctx, &config.Config{
		RateLimit: config.RateLimitConfig{Enabled: true, Backend: "redis", RequestsPerHour: 2},
		Redis:     config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "askbook:"},
	})
	require.NoError(t, err)
	require.IsType(t, &middleware.RedisLimiter{}, limiter)

	ok, err := limiter.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, closeLimiter())
	_, err = limiter.Allow(ctx, "ip")
	assert.Error(t, err, "client is closed")
}
