package repository

import (
	"context"
	"sync/atomic"
	"time"

	"agendum/internal/domain"
	"agendum/internal/interval"

	"github.com/rs/zerolog"
)

// FailoverSlotCache serves from Redis until it fails, then degrades to the
// in-process cache and probes the primary once a minute.
type FailoverSlotCache struct {
	primary   domain.SlotCache
	fallback  domain.SlotCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverSlotCache(primary, fallback domain.SlotCache, logger *zerolog.Logger) *FailoverSlotCache {
	return &FailoverSlotCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSlotCache) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary slot cache failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck = time.Now()
}

func (r *FailoverSlotCache) GetSlots(ctx context.Context, professionalID string, date time.Time) ([]interval.Interval, bool, uint64, error) {
	if !r.isDown.Load() {
		slots, ok, gen, err := r.primary.GetSlots(ctx, professionalID, date)
		if err == nil {
			return slots, ok, gen, nil
		}
		r.markDown(err)
	}

	// Probe the primary again after a minute.
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		slots, ok, gen, err := r.primary.GetSlots(ctx, professionalID, date)
		if err == nil {
			r.isDown.Store(false)
			return slots, ok, gen, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetSlots(ctx, professionalID, date)
}

func (r *FailoverSlotCache) SetSlots(ctx context.Context, professionalID string, date time.Time, gen uint64, slots []interval.Interval) error {
	if !r.isDown.Load() {
		err := r.primary.SetSlots(ctx, professionalID, date, gen, slots)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetSlots(ctx, professionalID, date, gen, slots)
}

func (r *FailoverSlotCache) InvalidateSlots(ctx context.Context, professionalID string) error {
	if !r.isDown.Load() {
		err := r.primary.InvalidateSlots(ctx, professionalID)
		if err == nil {
			// Keep both tiers consistent on invalidation.
			return r.fallback.InvalidateSlots(ctx, professionalID)
		}
		r.markDown(err)
	}

	return r.fallback.InvalidateSlots(ctx, professionalID)
}

func (r *FailoverSlotCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
