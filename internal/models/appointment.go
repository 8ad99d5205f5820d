package models

import (
	"time"

	"agendum/internal/interval"
)

// Appointment is a requested or booked time window between a client and a
// professional. ID and ProfessionalID are immutable after creation; the
// interval may only change through an accepted reschedule.
type Appointment struct {
	ID             string `json:"id"`
	ProfessionalID string `json:"professional_id"`

	// ClientID is empty for anonymous public bookings; name and phone are
	// captured at request time either way.
	ClientID    string `json:"client_id,omitempty"`
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone"`

	Service string    `json:"service,omitempty"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Status  Status    `json:"status"`

	HasPendingReschedule bool `json:"has_pending_reschedule"`

	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Version     int64      `json:"version"`
}

// Interval returns the appointment window as a half-open interval.
func (a *Appointment) Interval() interval.Interval {
	return interval.Interval{Start: a.Start, End: a.End}
}

// RescheduleRequest proposes a new interval for an appointment. It is owned
// by its appointment and resolved exactly once.
type RescheduleRequest struct {
	ID            string        `json:"id"`
	AppointmentID string        `json:"appointment_id"`
	Start         time.Time     `json:"start"`
	End           time.Time     `json:"end"`
	Reason        string        `json:"reason,omitempty"`
	Status        RequestStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	ResolvedAt    *time.Time    `json:"resolved_at,omitempty"`
}

// ProposedInterval returns the proposed window as a half-open interval.
func (r *RescheduleRequest) ProposedInterval() interval.Interval {
	return interval.Interval{Start: r.Start, End: r.End}
}

// Note is an append-only annotation on an appointment.
type Note struct {
	ID            int64     `json:"id"`
	AppointmentID string    `json:"appointment_id"`
	Text          string    `json:"text"`
	Author        string    `json:"author"`
	CreatedAt     time.Time `json:"created_at"`
}
