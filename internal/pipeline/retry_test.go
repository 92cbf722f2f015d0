package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_DelayFor(t *testing.T) {
	policy := DefaultPolicy()

	assert.Equal(t, 1*time.Second, policy.DelayFor(1))
	assert.Equal(t, 5*time.Second, policy.DelayFor(2))
	assert.Equal(t, 15*time.Second, policy.DelayFor(3))
}

func TestPolicy_DelayFor_ClampsToLastEntry(t *testing.T) {
	policy := DefaultPolicy()

	assert.Equal(t, 15*time.Second, policy.DelayFor(4))
	assert.Equal(t, 15*time.Second, policy.DelayFor(100))
}

func TestPolicy_DelayFor_BelowOne(t *testing.T) {
	policy := DefaultPolicy()

	assert.Equal(t, 1*time.Second, policy.DelayFor(0))
	assert.Equal(t, 1*time.Second, policy.DelayFor(-5))
}

func TestPolicy_DelayFor_EmptySchedule(t *testing.T) {
	policy := Policy{MaxAttempts: 3}

	assert.Equal(t, time.Duration(0), policy.DelayFor(1))
}

func TestPolicy_Exhausted(t *testing.T) {
	policy := DefaultPolicy()

	assert.False(t, policy.Exhausted(0))
	assert.False(t, policy.Exhausted(2))
	assert.True(t, policy.Exhausted(3))
	assert.True(t, policy.Exhausted(4))
}

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()

	assert.Equal(t, []time.Duration{1 * time.Second, 5 * time.Second, 15 * time.Second}, policy.Schedule)
	assert.Equal(t, 3, policy.MaxAttempts)
}
