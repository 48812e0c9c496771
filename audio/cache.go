package audio

import "sync"

// tableCache stores process-wide sine tables keyed by size
type tableCache struct {
	mu    sync.RWMutex
	store map[int]*Wavetable
}

var sharedTables = &tableCache{store: make(map[int]*Wavetable)}

// SineTable returns the shared sine table of the given size, building it once
func SineTable(size int) (*Wavetable, error) {
	return sharedTables.get(size)
}

// get returns cached table or generates on demand
func (c *tableCache) get(size int) (*Wavetable, error) {
	c.mu.RLock()
	if wt, ok := c.store[size]; ok {
		c.mu.RUnlock()
		return wt, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if wt, ok := c.store[size]; ok {
		return wt, nil
	}

	wt, err := NewSineTable(size)
	if err != nil {
		return nil, err
	}
	c.store[size] = wt
	return wt, nil
}
