package repository

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"agendum/internal/interval"
)

// MemorySlotCache keeps generated slots in-process. It is the fallback
// behind Redis and the default when no Redis address is configured.
type MemorySlotCache struct {
	slots      sync.Map
	rateLimits sync.Map
	genMu      sync.Mutex
	gens       map[string]uint64
	ttl        time.Duration
}

type slotEntry struct {
	slots     []interval.Interval
	expiresAt time.Time
}

func NewMemorySlotCache(ttl time.Duration) *MemorySlotCache {
	return &MemorySlotCache{
		gens: make(map[string]uint64),
		ttl:  ttl,
	}
}

func slotKey(professionalID string, gen uint64, date time.Time) string {
	return professionalID + ":" + strconv.FormatUint(gen, 10) + ":" + date.UTC().Format("2006-01-02")
}

func (r *MemorySlotCache) generation(professionalID string) uint64 {
	r.genMu.Lock()
	defer r.genMu.Unlock()
	return r.gens[professionalID]
}

func (r *MemorySlotCache) GetSlots(ctx context.Context, professionalID string, date time.Time) ([]interval.Interval, bool, uint64, error) {
	gen := r.generation(professionalID)
	key := slotKey(professionalID, gen, date)
	val, ok := r.slots.Load(key)
	if !ok {
		return nil, false, gen, nil
	}
	entry := val.(*slotEntry)
	if time.Now().After(entry.expiresAt) {
		r.slots.Delete(key)
		return nil, false, gen, nil
	}
	return entry.slots, true, gen, nil
}

func (r *MemorySlotCache) SetSlots(ctx context.Context, professionalID string, date time.Time, gen uint64, slots []interval.Interval) error {
	r.slots.Store(slotKey(professionalID, gen, date), &slotEntry{
		slots:     slots,
		expiresAt: time.Now().Add(r.ttl),
	})
	return nil
}

// InvalidateSlots drops every cached date for the professional at once and
// advances the generation so in-flight writes miss.
func (r *MemorySlotCache) InvalidateSlots(ctx context.Context, professionalID string) error {
	r.genMu.Lock()
	r.gens[professionalID]++
	r.genMu.Unlock()

	prefix := professionalID + ":"
	r.slots.Range(func(key, _ any) bool {
		if strings.HasPrefix(key.(string), prefix) {
			r.slots.Delete(key)
		}
		return true
	})
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemorySlotCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(key)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(key, entry)
	return entry.count <= limit, nil
}
