package clock

import (
	"testing"
	"time"
)

func TestManual_AdvanceAndSet(t *testing.T) {
	start := time.Unix(1000, 0)
	c := NewManual(start)

	if !c.Now().Equal(start) {
		t.Fatalf("Now() = %v, want %v", c.Now(), start)
	}

	c.Advance(1500 * time.Millisecond)
	if got := c.Now().Sub(start); got != 1500*time.Millisecond {
		t.Errorf("after Advance: elapsed = %v, want 1.5s", got)
	}

	later := time.Unix(5000, 0)
	c.Set(later)
	if !c.Now().Equal(later) {
		t.Errorf("after Set: Now() = %v, want %v", c.Now(), later)
	}
}

func TestReal_Moves(t *testing.T) {
	var c Clock = Real{}
	a := c.Now()
	if a.IsZero() {
		t.Fatal("Real.Now() returned zero time")
	}
}
