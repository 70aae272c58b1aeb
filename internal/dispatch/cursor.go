package dispatch

import "sync"

// Cursor holds the next partition index across dispatches. Its zero value
// starts at partition 0. Update serializes read-modify-write so overlapping
// cycles keep the rotation intact.
type Cursor struct {
	mu    sync.Mutex
	value int
}

func (c *Cursor) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Update calls fn with the current value while holding the lock and stores
// whatever fn returns, error or not.
func (c *Cursor) Update(fn func(current int) (int, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := fn(c.value)
	c.value = next
	return err
}
