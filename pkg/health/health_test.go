package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	name string
	err  error
}

func (c stubChecker) Name() string                    { return c.name }
func (c stubChecker) Check(ctx context.Context) error { return c.err }

func TestCheckAllHealthy(t *testing.T) {
	registry := NewCheckerRegistry()
	registry.Register(stubChecker{name: "postgresql"})
	registry.RegisterOptional(stubChecker{name: "redis"})

	h := registry.Check(context.Background())

	assert.Equal(t, StatusHealthy, h.Status)
	require.Len(t, h.Checks, 2)
	assert.Equal(t, StatusHealthy, h.Checks["postgresql"].Status)
	assert.Equal(t, StatusHealthy, h.Checks["redis"].Status)
}

func TestCheckOptionalFailureDegrades(t *testing.T) {
	registry := NewCheckerRegistry()
	registry.Register(stubChecker{name: "postgresql"})
	registry.RegisterOptional(stubChecker{name: "redis", err: errors.New("redis ping failed")})

	h := registry.Check(context.Background())

	assert.Equal(t, StatusDegraded, h.Status)
	assert.Equal(t, StatusDegraded, h.Checks["redis"].Status)
	assert.Equal(t, "redis ping failed", h.Checks["redis"].Message)
	assert.Equal(t, StatusHealthy, h.Checks["postgresql"].Status)
}

func TestCheckRequiredFailureWins(t *testing.T) {
	registry := NewCheckerRegistry()
	registry.Register(stubChecker{name: "postgresql", err: errors.New("connection refused")})
	registry.RegisterOptional(stubChecker{name: "redis", err: errors.New("redis ping failed")})

	h := registry.Check(context.Background())

	assert.Equal(t, StatusUnhealthy, h.Status)
	assert.Equal(t, StatusUnhealthy, h.Checks["postgresql"].Status)
	assert.Equal(t, StatusDegraded, h.Checks["redis"].Status)
}
