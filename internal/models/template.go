package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AvailabilityTemplate is a professional's recurring weekly working window.
// DayStart and DayEnd are wall-clock values like "09:00"; weekdays use
// time.Weekday numbering (Sunday = 0).
type AvailabilityTemplate struct {
	ProfessionalID string         `yaml:"professional_id" json:"professional_id"`
	Weekdays       []time.Weekday `yaml:"weekdays" json:"weekdays"`
	DayStart       string         `yaml:"day_start" json:"day_start"`
	DayEnd         string         `yaml:"day_end" json:"day_end"`
	SlotMinutes    int            `yaml:"slot_minutes" json:"slot_minutes"`
}

// Validate checks the template invariants: day_start < day_end, a positive
// slot duration no longer than the working window, and known weekdays.
func (t *AvailabilityTemplate) Validate() error {
	start, err := ParseClock(t.DayStart)
	if err != nil {
		return fmt.Errorf("day_start: %w", err)
	}
	end, err := ParseClock(t.DayEnd)
	if err != nil {
		return fmt.Errorf("day_end: %w", err)
	}
	if start >= end {
		return errors.New("day_start must be before day_end")
	}
	if t.SlotMinutes <= 0 {
		return errors.New("slot_minutes must be positive")
	}
	if t.SlotMinutes > end-start {
		return errors.New("slot_minutes exceeds the working window")
	}
	if len(t.Weekdays) == 0 {
		return errors.New("at least one weekday is required")
	}
	for _, wd := range t.Weekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return fmt.Errorf("invalid weekday %d", wd)
		}
	}
	return nil
}

// AllowsWeekday reports whether the template enables the given weekday.
func (t *AvailabilityTemplate) AllowsWeekday(wd time.Weekday) bool {
	for _, w := range t.Weekdays {
		if w == wd {
			return true
		}
	}
	return false
}

// SlotDuration returns the slot length as a duration.
func (t *AvailabilityTemplate) SlotDuration() time.Duration {
	return time.Duration(t.SlotMinutes) * time.Minute
}

// Window anchors the daily working window onto a concrete date, keeping the
// date's location.
func (t *AvailabilityTemplate) Window(date time.Time) (time.Time, time.Time, error) {
	startMin, err := ParseClock(t.DayStart)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endMin, err := ParseClock(t.DayEnd)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return day.Add(time.Duration(startMin) * time.Minute),
		day.Add(time.Duration(endMin) * time.Minute), nil
}

// ParseClock parses an "HH:MM" wall-clock value into minutes since midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock value %q out of range", s)
	}
	return h*60 + m, nil
}

// WeekdaysCSV serializes weekdays for storage, e.g. "1,3,5".
func (t *AvailabilityTemplate) WeekdaysCSV() string {
	out := ""
	for i, wd := range t.Weekdays {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%d", int(wd))
	}
	return out
}

// ParseWeekdaysCSV is the inverse of WeekdaysCSV.
func ParseWeekdaysCSV(s string) ([]time.Weekday, error) {
	if s == "" {
		return nil, nil
	}
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid weekday %q", part)
		}
		days = append(days, time.Weekday(d))
	}
	return days, nil
}
