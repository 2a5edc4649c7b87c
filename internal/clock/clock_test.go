package clock

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	c := &RealClock{}
	before := time.Now()
	got := c.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestFakeClock(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewFakeClock(fixed)

	if got := c.Now(); !got.Equal(fixed) {
		t.Errorf("Now() = %v, want %v", got, fixed)
	}

	c.Advance(2 * time.Hour)
	if got := c.Now(); !got.Equal(fixed.Add(2 * time.Hour)) {
		t.Errorf("after Advance, Now() = %v, want %v", got, fixed.Add(2*time.Hour))
	}

	other := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Set(other)
	if got := c.Now(); !got.Equal(other) {
		t.Errorf("after Set, Now() = %v, want %v", got, other)
	}
}
