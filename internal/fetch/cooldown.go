package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CoolDown tracks consecutive challenge detections for a crawl sequence and
// enforces an escalating pause before further fetches. A success resets the
// escalation count; crossing the ceiling signals the caller to abandon the
// current task instead of hammering a host that has clearly flagged us.
type CoolDown struct {
	mu          sync.Mutex
	base        time.Duration
	max         time.Duration
	ceiling     int
	escalations int
	until       time.Time

	now func() time.Time
}

// NewCoolDown builds a controller with the given base window, window cap and
// escalation ceiling. Non-positive arguments fall back to defaults.
func NewCoolDown(base, max time.Duration, ceiling int) *CoolDown {
	if base <= 0 {
		base = time.Minute
	}
	if max <= 0 {
		max = 15 * time.Minute
	}
	if ceiling <= 0 {
		ceiling = 3
	}
	return &CoolDown{
		base:    base,
		max:     max,
		ceiling: ceiling,
		now:     time.Now,
	}
}

// Wait blocks until the current cool-down window has elapsed or the context
// is cancelled.
func (c *CoolDown) Wait(ctx context.Context) error {
	c.mu.Lock()
	remaining := c.until.Sub(c.now())
	c.mu.Unlock()
	if remaining <= 0 {
		return nil
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// OnBlocked records a challenge detection. It doubles the cool-down window
// per consecutive block, capped at max, and returns ErrBlockCeiling once the
// escalation ceiling is exceeded.
func (c *CoolDown) OnBlocked() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.escalations++
	if c.escalations > c.ceiling {
		return fmt.Errorf("%d consecutive blocks: %w", c.escalations, ErrBlockCeiling)
	}
	window := c.base << (c.escalations - 1)
	if window > c.max {
		window = c.max
	}
	c.until = c.now().Add(window)
	return nil
}

// OnSuccess resets the escalation count after a clear response.
func (c *CoolDown) OnSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.escalations = 0
	c.until = time.Time{}
}

// Escalations reports the current consecutive block count.
func (c *CoolDown) Escalations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.escalations
}

// Window reports how long the current cool-down has left.
func (c *CoolDown) Window() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining := c.until.Sub(c.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
