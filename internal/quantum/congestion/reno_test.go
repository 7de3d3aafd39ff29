package congestion

import (
	"testing"

	"github.com/quantumxfer/quantumxfer/internal/quantum/seqnum"
)

func TestNewInitialState(t *testing.T) {
	c := New()
	if c.WindowSize() != 1 {
		t.Errorf("initial window size = %d, want 1", c.WindowSize())
	}
	if c.OptimalWindowSize() != seqnum.W {
		t.Errorf("initial optimal window size = %d, want %d", c.OptimalWindowSize(), seqnum.W)
	}
}

func TestSlowStart(t *testing.T) {
	c := New()
	for i := 0; i < 5; i++ {
		c.Increase()
	}
	before := c.WindowSize()

	c.SlowStart()
	if c.WindowSize() != 1 {
		t.Errorf("window size after SlowStart = %d, want 1", c.WindowSize())
	}
	wantOptimal := before / 2
	if wantOptimal < 1 {
		wantOptimal = 1
	}
	if c.OptimalWindowSize() != wantOptimal {
		t.Errorf("optimal window size after SlowStart = %d, want %d", c.OptimalWindowSize(), wantOptimal)
	}
}

func TestSlowStartFloorsAtOne(t *testing.T) {
	c := New()
	c.windowSize = 1
	c.SlowStart()
	if c.OptimalWindowSize() != 1 {
		t.Errorf("optimal window size = %d, want floor of 1", c.OptimalWindowSize())
	}
}

func TestFastRecovery(t *testing.T) {
	c := New()
	for i := 0; i < 5; i++ {
		c.Increase()
	}
	before := c.WindowSize()

	c.FastRecovery()
	wantHalved := before / 2
	if wantHalved < 1 {
		wantHalved = 1
	}
	if c.WindowSize() != wantHalved {
		t.Errorf("window size after FastRecovery = %d, want %d", c.WindowSize(), wantHalved)
	}
	if c.OptimalWindowSize() != c.WindowSize() {
		t.Errorf("FastRecovery should set window == optimal, got %d != %d", c.WindowSize(), c.OptimalWindowSize())
	}
}

func TestIncreaseExponentialBelowThreshold(t *testing.T) {
	c := New()
	c.optimalWindowSize = 32

	c.Increase() // 1 -> 2 (exponential, below threshold)
	if c.WindowSize() != 2 {
		t.Errorf("window size = %d, want 2", c.WindowSize())
	}
	c.Increase() // 2 -> 4
	if c.WindowSize() != 4 {
		t.Errorf("window size = %d, want 4", c.WindowSize())
	}
}

func TestIncreaseAdditiveAtOrAboveThreshold(t *testing.T) {
	c := New()
	c.optimalWindowSize = 2
	c.windowSize = 2

	c.Increase() // at threshold: additive
	if c.WindowSize() != 3 {
		t.Errorf("window size = %d, want 3", c.WindowSize())
	}
	c.Increase()
	if c.WindowSize() != 4 {
		t.Errorf("window size = %d, want 4", c.WindowSize())
	}
}

func TestIncreaseClampsToW(t *testing.T) {
	c := New()
	c.windowSize = seqnum.W
	c.optimalWindowSize = 1

	c.Increase()
	if c.WindowSize() != seqnum.W {
		t.Errorf("window size = %d, want clamp at %d", c.WindowSize(), seqnum.W)
	}
}

func TestIncreaseStrictlyIncreasesUntilClamped(t *testing.T) {
	c := New()
	prev := c.WindowSize()
	for i := 0; i < 200; i++ {
		c.Increase()
		cur := c.WindowSize()
		if cur < prev {
			t.Fatalf("window size decreased: %d -> %d", prev, cur)
		}
		if prev < seqnum.W && cur == prev {
			t.Fatalf("window size did not increase below W: stayed at %d", cur)
		}
		if cur > seqnum.W {
			t.Fatalf("window size %d exceeded W=%d", cur, seqnum.W)
		}
		prev = cur
	}
	if prev != seqnum.W {
		t.Errorf("window size should converge to W=%d, got %d", seqnum.W, prev)
	}
}
