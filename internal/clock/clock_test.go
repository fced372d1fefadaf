package clock_test

import (
	"testing"
	"time"

	"github.com/BradenHooton/loginguard/internal/clock"
	"github.com/stretchr/testify/assert"
)

func TestFake_AdvanceAndSet(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := clock.NewFake(start)

	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())

	c.Set(start.Add(-time.Hour))
	assert.Equal(t, start.Add(-time.Hour), c.Now())
}

func TestSystem_NowIsMonotonic(t *testing.T) {
	var c clock.Clock = clock.System{}
	first := c.Now()
	second := c.Now()
	assert.False(t, second.Before(first))
}
