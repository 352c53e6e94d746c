package sink

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThrottleGatesWithinInterval(t *testing.T) {
	th := NewThrottle(1.0)

	assert.True(t, th.Allow(0.0))
	assert.False(t, th.Allow(0.4))
	assert.False(t, th.Allow(0.99))
	assert.True(t, th.Allow(1.0))
	assert.False(t, th.Allow(1.5))
	assert.True(t, th.Allow(2.01))
}

func TestThrottleDisabledWhenNonPositive(t *testing.T) {
	th := NewThrottle(0)
	assert.True(t, th.Allow(0.0))
	assert.True(t, th.Allow(0.0))
	assert.True(t, th.Allow(0.01))
}
