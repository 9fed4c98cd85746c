package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryDeduper remembers claimed keys in process until their TTL passes.
type MemoryDeduper struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{expires: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDeduper) WithClock(now func() time.Time) *MemoryDeduper {
	d.now = now
	return d
}

// Claim returns true when key was not claimed within ttl.
func (d *MemoryDeduper) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if exp, ok := d.expires[key]; ok && now.Before(exp) {
		return false, nil
	}
	d.expires[key] = now.Add(ttl)

	if len(d.expires) > 1024 {
		d.sweep(now)
	}
	return true, nil
}

func (d *MemoryDeduper) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.expires, key)
	return nil
}

func (d *MemoryDeduper) sweep(now time.Time) {
	for k, exp := range d.expires {
		if !now.Before(exp) {
			delete(d.expires, k)
		}
	}
}

func (d *MemoryDeduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.expires)
}
