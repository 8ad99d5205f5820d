package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agendum/internal/models"
)

// SetTemplate validates and upserts a professional's weekly availability
// template.
func (db *DB) SetTemplate(ctx context.Context, tpl *models.AvailabilityTemplate) error {
	if err := tpl.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}

	query := `INSERT INTO availability_templates (professional_id, weekdays, day_start, day_end, slot_minutes, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?)
	          ON CONFLICT(professional_id) DO UPDATE SET
	              weekdays = excluded.weekdays,
	              day_start = excluded.day_start,
	              day_end = excluded.day_end,
	              slot_minutes = excluded.slot_minutes,
	              updated_at = excluded.updated_at`
	_, err := db.db.ExecContext(ctx, query,
		tpl.ProfessionalID, tpl.WeekdaysCSV(), tpl.DayStart, tpl.DayEnd, tpl.SlotMinutes, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set template: %w", err)
	}
	return nil
}

// GetTemplate loads a professional's template; a missing row is
// ErrNotConfigured and a stored row failing validation is ErrInvalidTemplate.
func (db *DB) GetTemplate(ctx context.Context, professionalID string) (*models.AvailabilityTemplate, error) {
	query := `SELECT professional_id, weekdays, day_start, day_end, slot_minutes
	          FROM availability_templates WHERE professional_id = ?`
	var (
		tpl      models.AvailabilityTemplate
		weekdays string
	)
	err := db.db.QueryRowContext(ctx, query, professionalID).Scan(
		&tpl.ProfessionalID, &weekdays, &tpl.DayStart, &tpl.DayEnd, &tpl.SlotMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}

	tpl.Weekdays, err = models.ParseWeekdaysCSV(weekdays)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if err := tpl.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return &tpl, nil
}
