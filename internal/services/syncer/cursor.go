package syncer

// Cursor is the per-exchange high-water mark of imported history, in epoch
// milliseconds. It only moves forward, and only after a pass completed
// without error; Reset returns it to the configured start timestamp, which
// happens when a maintenance outage interrupts the initial backfill.
type Cursor struct {
	start int64
	value int64
}

// NewCursor starts the cursor at the configured start timestamp.
func NewCursor(start int64) *Cursor {
	return &Cursor{start: start, value: start}
}

// Value returns the current position.
func (c *Cursor) Value() int64 {
	return c.value
}

// Advance moves the cursor forward. A target at or behind the current
// position is ignored.
func (c *Cursor) Advance(to int64) {
	if to > c.value {
		c.value = to
	}
}

// Reset returns the cursor to the configured start timestamp.
func (c *Cursor) Reset() {
	c.value = c.start
}
