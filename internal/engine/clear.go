package engine

import "time"

// clearScheduler is a single-shot deadline for wiping the clipboard.
// Arming always replaces the previous deadline; there is no way to disable
// it other than letting it fire.
type clearScheduler struct {
	after    time.Duration
	deadline time.Time
	armed    bool
}

func (c *clearScheduler) arm(now time.Time) {
	c.deadline = now.Add(c.after)
	c.armed = true
}

func (c *clearScheduler) due(now time.Time) bool {
	return c.armed && !now.Before(c.deadline)
}

// fired disarms the scheduler after the clear was attempted.
func (c *clearScheduler) fired() {
	c.armed = false
	c.deadline = time.Time{}
}
