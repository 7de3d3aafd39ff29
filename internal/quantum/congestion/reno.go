// Package congestion implements the sender's TCP-Reno-style congestion
// controller: slow start, additive increase, and fast retransmit/fast
// recovery, adapted to the fixed W=64 packet window of this protocol.
package congestion

import (
	"sync"

	"github.com/quantumxfer/quantumxfer/internal/quantum/seqnum"
)

// Controller holds the sender's congestion window and slow-start threshold.
// A single Controller is owned by one sender; its accessors are guarded so
// an observability goroutine can read them without racing the burst loop.
type Controller struct {
	mu sync.RWMutex

	windowSize        int // current congestion window, in packets
	optimalWindowSize int // slow-start threshold, in packets
}

// New returns a Controller in its initial state: window size 1, threshold
// at the maximum window W (matching the reference implementation, which
// starts optimistic and only shrinks the threshold on the first loss).
func New() *Controller {
	return &Controller{
		windowSize:        1,
		optimalWindowSize: seqnum.W,
	}
}

// WindowSize returns the current congestion window, in packets.
func (c *Controller) WindowSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.windowSize
}

// OptimalWindowSize returns the current slow-start threshold, in packets.
func (c *Controller) OptimalWindowSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.optimalWindowSize
}

// SlowStart transitions on a burst-wide timeout: the threshold halves
// (floor 1) and the window collapses to 1.
func (c *Controller) SlowStart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.optimalWindowSize = halve(c.windowSize)
	c.windowSize = 1
}

// FastRecovery transitions on the second duplicate ack within a burst: both
// the threshold and the window drop to half the pre-loss window (floor 1).
func (c *Controller) FastRecovery() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.optimalWindowSize = halve(c.windowSize)
	c.windowSize = c.optimalWindowSize
}

// Increase is the normal-path transition: additive increase once the
// window has reached the threshold, exponential increase (slow start)
// while still below it. The result is clamped to W.
func (c *Controller) Increase() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.windowSize >= c.optimalWindowSize {
		c.windowSize++
	} else {
		c.windowSize *= 2
	}

	if c.windowSize > seqnum.W {
		c.windowSize = seqnum.W
	}
}

// Statistics returns a snapshot suitable for logging or metrics export.
func (c *Controller) Statistics() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return map[string]int{
		"window_size":         c.windowSize,
		"optimal_window_size": c.optimalWindowSize,
	}
}

func halve(n int) int {
	n /= 2
	if n < 1 {
		return 1
	}
	return n
}
