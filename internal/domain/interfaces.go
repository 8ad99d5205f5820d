package domain

import (
	"context"
	"time"

	"agendum/internal/database"
	"agendum/internal/interval"
	"agendum/internal/models"
)

// Store is the durable appointment collection for all professionals. The
// transactional methods live on database.Tx and are reached through WithTx;
// this interface covers the non-transactional surface the services consume.
type Store interface {
	CreateAppointment(ctx context.Context, appt *models.Appointment) error
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	ListAppointments(ctx context.Context, professionalID string, from, to time.Time) ([]*models.Appointment, error)
	FindOverlapping(ctx context.Context, professionalID string, iv interval.Interval, statuses []models.Status, excludeID string) ([]database.OverlapHit, error)
	BusyIntervals(ctx context.Context, professionalID string, from, to time.Time) ([]interval.Interval, error)

	GetRescheduleRequest(ctx context.Context, id string) (*models.RescheduleRequest, error)

	CreateBlock(ctx context.Context, block *models.Block) error
	GetBlock(ctx context.Context, id string) (*models.Block, error)
	DeleteBlock(ctx context.Context, id string) error
	ListBlocks(ctx context.Context, professionalID string, from, to time.Time) ([]*models.Block, error)

	SetTemplate(ctx context.Context, tpl *models.AvailabilityTemplate) error
	GetTemplate(ctx context.Context, professionalID string) (*models.AvailabilityTemplate, error)

	AppendNote(ctx context.Context, note *models.Note) error
	ListNotes(ctx context.Context, appointmentID string) ([]*models.Note, error)

	WithTx(ctx context.Context, fn func(tx *database.Tx) error) error
}

// EventPublisher fans out domain events on state transitions.
type EventPublisher interface {
	PublishJSON(eventType string, payload any) error
}

// SlotCache caches generated slots per professional and date, and throttles
// anonymous booking traffic. Entries are keyed by a per-professional
// generation: GetSlots reports the generation the caller must hand back to
// SetSlots, and InvalidateSlots bumps it, so a write computed against
// pre-invalidation data lands on a key nobody reads anymore.
type SlotCache interface {
	GetSlots(ctx context.Context, professionalID string, date time.Time) ([]interval.Interval, bool, uint64, error)
	SetSlots(ctx context.Context, professionalID string, date time.Time, gen uint64, slots []interval.Interval) error
	InvalidateSlots(ctx context.Context, professionalID string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SyncWorker queues agenda-mirror tasks so lifecycle operations never block
// on the external spreadsheet.
type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, appointmentID string, appt *models.Appointment, status models.Status) error
}

// SheetsWriter mirrors appointments into the external spreadsheet agenda.
type SheetsWriter interface {
	UpsertAppointment(ctx context.Context, appt *models.Appointment) error
	UpdateAppointmentStatus(ctx context.Context, appointmentID string, status models.Status) error
}
