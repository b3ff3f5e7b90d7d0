package camera

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleReplaceNotStack(t *testing.T) {
	s := NewPresetScheduler()
	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)

	s.Schedule(now, 1, 10, "TRIGGER")
	replaced := s.Schedule(now, 2, 5, "TRIGGER")
	assert.True(t, replaced)

	// Only B remains; it fires once, A never does.
	assert.Nil(t, s.TakeDue(now.Add(4*time.Second)))
	due := s.TakeDue(now.Add(5*time.Second))
	require.NotNil(t, due)
	assert.Equal(t, 2, due.Preset)
	assert.Nil(t, s.TakeDue(now.Add(time.Minute)))
}

func TestScheduleSamePresetAbsorbed(t *testing.T) {
	s := NewPresetScheduler()
	now := time.Now()

	s.Schedule(now, 4, 5, "TRIGGER")
	first := s.Pending().DueAt
	replaced := s.Schedule(now.Add(2*time.Second), 4, 5, "TRIGGER")

	assert.False(t, replaced)
	assert.Equal(t, first, s.Pending().DueAt)
}

func TestDelayClamp(t *testing.T) {
	assert.Equal(t, 0, ClampDelay(-5))
	assert.Equal(t, 0, ClampDelay(0))
	assert.Equal(t, 17, ClampDelay(17))
	assert.Equal(t, 30, ClampDelay(95))
}

func TestCancelClearsPending(t *testing.T) {
	s := NewPresetScheduler()
	now := time.Now()

	s.Schedule(now, 9, 30, "TRIGGER")
	s.Cancel("camera sleep")
	assert.Nil(t, s.Pending())
	assert.Nil(t, s.TakeDue(now.Add(time.Minute)))

	// Cancelling again is a no-op.
	s.Cancel("again")
}
