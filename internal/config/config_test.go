package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySchedule(t *testing.T) {
	var cfg Config
	cfg.Pipeline.RetrySchedule = "1s,5s,15s"

	schedule, err := cfg.RetrySchedule()

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 15 * time.Second}, schedule)
}

func TestRetrySchedule_TrimsWhitespace(t *testing.T) {
	var cfg Config
	cfg.Pipeline.RetrySchedule = " 500ms , 2s "

	schedule, err := cfg.RetrySchedule()

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 2 * time.Second}, schedule)
}

func TestRetrySchedule_InvalidEntry(t *testing.T) {
	var cfg Config
	cfg.Pipeline.RetrySchedule = "1s,soon,15s"

	_, err := cfg.RetrySchedule()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), `"soon"`)
}

func TestRetrySchedule_Empty(t *testing.T) {
	var cfg Config
	cfg.Pipeline.RetrySchedule = ""

	_, err := cfg.RetrySchedule()

	assert.Error(t, err)
}
