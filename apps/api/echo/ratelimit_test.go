package echoapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPRateLimiter(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	rl := newIPRateLimiter(1, 2)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"), "burst exhausted")
	assert.True(t, rl.allow("10.0.0.2"), "limits are per IP")

	now = now.Add(time.Second)
	assert.True(t, rl.allow("10.0.0.1"), "refilled")
	assert.False(t, rl.allow("10.0.0.1"))
}

func TestIPRateLimiter_sweepsIdleVisitors(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	rl := newIPRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	rl.allow("10.0.0.1")
	rl.allow("10.0.0.2")
	assert.Len(t, rl.visitors, 2)

	now = now.Add(visitorTTL + time.Second)
	rl.allow("10.0.0.2")
	assert.Len(t, rl.visitors, 1)
	assert.Contains(t, rl.visitors, "10.0.0.2")
}

func TestIPRateLimiter_disabled(t *testing.T) {
	rl := newIPRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.allow("10.0.0.1"))
	}
	assert.Empty(t, rl.visitors)
}
