package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayGrowsByFactor(t *testing.T) {
	policy := RetryPolicy{Base: time.Second, Cap: time.Minute, Factor: 2}

	assert.Equal(t, time.Second, policy.Delay(1))
	assert.Equal(t, 2*time.Second, policy.Delay(2))
	assert.Equal(t, 4*time.Second, policy.Delay(3))
	assert.Equal(t, 16*time.Second, policy.Delay(5))
}

func TestDelayClampsToCap(t *testing.T) {
	policy := RetryPolicy{Base: time.Second, Cap: 10 * time.Second, Factor: 2}

	assert.Equal(t, 10*time.Second, policy.Delay(5))
	assert.Equal(t, 10*time.Second, policy.Delay(50))
}

func TestDelayZeroPolicyUsesDefaults(t *testing.T) {
	var policy RetryPolicy

	assert.Equal(t, 2*time.Second, policy.Delay(0))
	assert.Equal(t, 2*time.Second, policy.Delay(1))
	assert.Equal(t, 4*time.Second, policy.Delay(2))
	assert.Equal(t, time.Minute, policy.Delay(20))
}

func TestExhausted(t *testing.T) {
	policy := RetryPolicy{Attempts: 3}

	assert.False(t, policy.Exhausted(0))
	assert.False(t, policy.Exhausted(1))
	assert.True(t, policy.Exhausted(2))
	assert.True(t, policy.Exhausted(7))
}
