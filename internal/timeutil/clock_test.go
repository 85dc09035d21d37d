package timeutil

import (
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	c := OrReal(nil)
	if _, ok := c.(RealClock); !ok {
		t.Fatalf("OrReal(nil) = %T, want RealClock", c)
	}
	start := c.Now()
	if c.Since(start) < 0 {
		t.Error("Since went backwards")
	}
	tk := c.NewTicker(time.Millisecond)
	defer tk.Stop()
	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("real ticker did not fire")
	}
}

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	if OrReal(c) != Clock(c) {
		t.Fatal("OrReal should keep a non-nil clock")
	}

	tk := c.NewTicker(time.Minute)
	if c.Tickers() != 1 {
		t.Fatalf("Tickers() = %d, want 1", c.Tickers())
	}

	c.Advance(30 * time.Second)
	select {
	case <-tk.C():
		t.Fatal("ticker fired early")
	default:
	}

	c.Advance(30 * time.Second)
	select {
	case got := <-tk.C():
		if !got.Equal(start.Add(time.Minute)) {
			t.Errorf("tick = %v, want %v", got, start.Add(time.Minute))
		}
	default:
		t.Fatal("ticker did not fire at its period")
	}

	if got := c.Since(start); got != time.Minute {
		t.Errorf("Since = %v, want 1m", got)
	}
}

func TestMockTicker_Stop(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	tk := c.NewTicker(time.Second)
	tk.Stop()
	c.Advance(time.Hour)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}
