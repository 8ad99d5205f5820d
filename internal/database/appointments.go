package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agendum/internal/models"
)

const appointmentColumns = `id, professional_id, client_id, client_name, client_phone, service,
       start_at, end_at, status, has_pending_reschedule,
       created_at, confirmed_at, cancelled_at, updated_at, version`

// CreateAppointment inserts a new requested appointment. The caller assigns
// the ID; CreatedAt/UpdatedAt/Version are stamped here.
func (db *DB) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	query := `INSERT INTO appointments (
				id, professional_id, client_id, client_name, client_phone, service,
				start_at, end_at, status, has_pending_reschedule,
				created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	_, err := db.db.ExecContext(ctx, query,
		appt.ID,
		appt.ProfessionalID,
		nullString(appt.ClientID),
		appt.ClientName,
		appt.ClientPhone,
		appt.Service,
		appt.Start.UTC(),
		appt.End.UTC(),
		string(appt.Status),
		appt.HasPendingReschedule,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}

	appt.CreatedAt = now
	appt.UpdatedAt = now
	appt.Version = 1
	return nil
}

// GetAppointment loads one appointment by id.
func (db *DB) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = ?`
	return scanAppointment(db.db.QueryRowContext(ctx, query, id))
}

// GetAppointment is the transaction-scoped read used by atomic operations.
func (tx *Tx) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = ?`
	return scanAppointment(tx.tx.QueryRowContext(ctx, query, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	var (
		appt        models.Appointment
		clientID    sql.NullString
		status      string
		confirmedAt sql.NullTime
		cancelledAt sql.NullTime
	)
	err := row.Scan(
		&appt.ID, &appt.ProfessionalID, &clientID, &appt.ClientName, &appt.ClientPhone, &appt.Service,
		&appt.Start, &appt.End, &status, &appt.HasPendingReschedule,
		&appt.CreatedAt, &confirmedAt, &cancelledAt, &appt.UpdatedAt, &appt.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan appointment: %w", err)
	}

	appt.ClientID = clientID.String
	appt.Status, err = models.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		appt.ConfirmedAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		appt.CancelledAt = &t
	}
	return &appt, nil
}

// ConfirmAppointment performs the version-checked transition to confirmed,
// stamping confirmed_at exactly once. Zero rows affected means a concurrent
// writer advanced the version first.
func (tx *Tx) ConfirmAppointment(ctx context.Context, id string, fromVersion int64, at time.Time) error {
	query := `UPDATE appointments
	          SET status = ?, confirmed_at = COALESCE(confirmed_at, ?), version = version + 1, updated_at = ?
	          WHERE id = ? AND version = ?`
	return tx.versionedExec(ctx, query, string(models.StatusConfirmed), at.UTC(), at.UTC(), id, fromVersion)
}

// CancelAppointment performs the version-checked transition to cancelled.
func (tx *Tx) CancelAppointment(ctx context.Context, id string, fromVersion int64, at time.Time) error {
	query := `UPDATE appointments
	          SET status = ?, cancelled_at = COALESCE(cancelled_at, ?), has_pending_reschedule = 0,
	              version = version + 1, updated_at = ?
	          WHERE id = ? AND version = ?`
	return tx.versionedExec(ctx, query, string(models.StatusCancelled), at.UTC(), at.UTC(), id, fromVersion)
}

// SetPendingReschedule flips the pending-reschedule flag under version check.
func (tx *Tx) SetPendingReschedule(ctx context.Context, id string, fromVersion int64, pending bool) error {
	query := `UPDATE appointments
	          SET has_pending_reschedule = ?, version = version + 1, updated_at = ?
	          WHERE id = ? AND version = ?`
	return tx.versionedExec(ctx, query, pending, time.Now().UTC(), id, fromVersion)
}

// ApplyReschedule replaces the appointment interval with an accepted proposal
// and clears the pending flag, under version check.
func (tx *Tx) ApplyReschedule(ctx context.Context, id string, fromVersion int64, start, end time.Time) error {
	query := `UPDATE appointments
	          SET start_at = ?, end_at = ?, has_pending_reschedule = 0, version = version + 1, updated_at = ?
	          WHERE id = ? AND version = ?`
	return tx.versionedExec(ctx, query, start.UTC(), end.UTC(), time.Now().UTC(), id, fromVersion)
}

func (tx *Tx) versionedExec(ctx context.Context, query string, args ...any) error {
	result, err := tx.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("versioned update: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrTransactionAborted
	}
	return nil
}

// ListAppointments returns a professional's appointments whose interval
// intersects [from, to), ordered chronologically.
func (db *DB) ListAppointments(ctx context.Context, professionalID string, from, to time.Time) ([]*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
	          FROM appointments
	          WHERE professional_id = ? AND start_at < ? AND end_at > ?
	          ORDER BY start_at ASC, created_at ASC`
	rows, err := db.db.QueryContext(ctx, query, professionalID, to.UTC(), from.UTC())
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var appts []*models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
