package service

import (
	"context"
	"time"

	"agendum/internal/domain"
	"agendum/internal/interval"
	"agendum/internal/metrics"
	"agendum/internal/models"

	"github.com/rs/zerolog"
)

// SlotService generates bookable slots for a professional and date by
// walking the weekly template window and dropping every slot that overlaps
// a busy interval. Busy intervals come from one ranged query covering
// Requested and Confirmed appointments plus blocks.
type SlotService struct {
	store  domain.Store
	cache  domain.SlotCache
	logger *zerolog.Logger
}

func NewSlotService(store domain.Store, cache domain.SlotCache, logger *zerolog.Logger) *SlotService {
	return &SlotService{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// GenerateSlots returns the free slots for a date, earliest first. A date
// outside the template's weekdays yields an empty list; a professional with
// no template yields ErrNotConfigured.
func (s *SlotService) GenerateSlots(ctx context.Context, professionalID string, date time.Time) ([]interval.Interval, error) {
	tpl, err := s.store.GetTemplate(ctx, professionalID)
	if err != nil {
		return nil, err
	}

	if !tpl.AllowsWeekday(date.Weekday()) {
		return []interval.Interval{}, nil
	}

	var gen uint64
	if s.cache != nil {
		slots, ok, g, err := s.cache.GetSlots(ctx, professionalID, date)
		if err == nil && ok {
			metrics.IncSlotQuery("hit")
			return slots, nil
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("professional_id", professionalID).Msg("slot cache read failed")
		}
		gen = g
	}

	windowStart, windowEnd, err := tpl.Window(date)
	if err != nil {
		return nil, err
	}

	busy, err := s.store.BusyIntervals(ctx, professionalID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	slots := carveSlots(windowStart, windowEnd, tpl.SlotDuration(), busy)

	if s.cache != nil {
		// The write carries the generation observed before the busy query; an
		// invalidation racing with it leaves this entry unreadable instead of
		// resurrecting pre-mutation slots.
		if err := s.cache.SetSlots(ctx, professionalID, date, gen, slots); err != nil {
			s.logger.Warn().Err(err).Str("professional_id", professionalID).Msg("slot cache write failed")
		}
	}
	metrics.IncSlotQuery("miss")

	return slots, nil
}

// SetTemplate validates and stores a professional's weekly template, then
// drops every cached day for them so slots never outlive the template they
// were carved from.
func (s *SlotService) SetTemplate(ctx context.Context, tpl *models.AvailabilityTemplate) error {
	if err := s.store.SetTemplate(ctx, tpl); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateSlots(ctx, tpl.ProfessionalID); err != nil {
			s.logger.Warn().Err(err).Str("professional_id", tpl.ProfessionalID).Msg("slot cache invalidation failed")
		}
	}
	return nil
}

func (s *SlotService) GetTemplate(ctx context.Context, professionalID string) (*models.AvailabilityTemplate, error) {
	return s.store.GetTemplate(ctx, professionalID)
}

// carveSlots walks the window in fixed steps. A slot survives only when it
// fits entirely inside the window and overlaps no busy interval. Intervals
// are half-open, so a slot may end exactly where a busy interval starts.
func carveSlots(windowStart, windowEnd time.Time, step time.Duration, busy []interval.Interval) []interval.Interval {
	slots := []interval.Interval{}
	for at := windowStart; !at.Add(step).After(windowEnd); at = at.Add(step) {
		candidate := interval.Interval{Start: at, End: at.Add(step)}
		free := true
		for _, b := range busy {
			if candidate.Overlaps(b) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, candidate)
		}
	}
	return slots
}
