package batch

import (
	"strconv"
	"sync"
	"time"
)

// ClockCRN issues challan reference numbers of the form CRN<unix-seconds>.
// Numbers never repeat within a process: two requests in the same second get
// consecutive values.
type ClockCRN struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewClockCRN returns a generator reading now. A nil now uses time.Now.
func NewClockCRN(now func() time.Time) *ClockCRN {
	if now == nil {
		now = time.Now
	}
	return &ClockCRN{now: now}
}

// NextCRN returns the next reference number.
func (c *ClockCRN) NextCRN() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.now().Unix()
	if n <= c.last {
		n = c.last + 1
	}
	c.last = n
	return "CRN" + strconv.FormatInt(n, 10)
}
