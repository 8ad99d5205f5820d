package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agendum/internal/models"
)

const rescheduleColumns = `id, appointment_id, start_at, end_at, reason, status, created_at, resolved_at`

// CreateRescheduleRequest inserts a pending proposal inside the transaction
// that also flips the appointment's pending flag.
func (tx *Tx) CreateRescheduleRequest(ctx context.Context, req *models.RescheduleRequest) error {
	query := `INSERT INTO reschedule_requests (id, appointment_id, start_at, end_at, reason, status, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	_, err := tx.tx.ExecContext(ctx, query,
		req.ID, req.AppointmentID, req.Start.UTC(), req.End.UTC(), req.Reason, string(models.RequestPending), now)
	if err != nil {
		return fmt.Errorf("create reschedule request: %w", err)
	}
	req.Status = models.RequestPending
	req.CreatedAt = now
	return nil
}

func (db *DB) GetRescheduleRequest(ctx context.Context, id string) (*models.RescheduleRequest, error) {
	query := `SELECT ` + rescheduleColumns + ` FROM reschedule_requests WHERE id = ?`
	return scanReschedule(db.db.QueryRowContext(ctx, query, id))
}

func (tx *Tx) GetRescheduleRequest(ctx context.Context, id string) (*models.RescheduleRequest, error) {
	query := `SELECT ` + rescheduleColumns + ` FROM reschedule_requests WHERE id = ?`
	return scanReschedule(tx.tx.QueryRowContext(ctx, query, id))
}

// PendingRescheduleExists reports whether the appointment already carries an
// unresolved proposal.
func (tx *Tx) PendingRescheduleExists(ctx context.Context, appointmentID string) (bool, error) {
	query := `SELECT COUNT(*) FROM reschedule_requests WHERE appointment_id = ? AND status = ?`
	var count int
	err := tx.tx.QueryRowContext(ctx, query, appointmentID, string(models.RequestPending)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count pending reschedules: %w", err)
	}
	return count > 0, nil
}

// ResolveRescheduleRequest moves a pending request to accepted or rejected,
// stamping resolved_at exactly once. Resolving an already-resolved request
// fails with ErrAlreadyResolved.
func (tx *Tx) ResolveRescheduleRequest(ctx context.Context, id string, to models.RequestStatus, at time.Time) error {
	if !to.Resolved() {
		return fmt.Errorf("cannot resolve reschedule request to %q", to)
	}
	query := `UPDATE reschedule_requests SET status = ?, resolved_at = ?
	          WHERE id = ? AND status = ?`
	result, err := tx.tx.ExecContext(ctx, query, string(to), at.UTC(), id, string(models.RequestPending))
	if err != nil {
		return fmt.Errorf("resolve reschedule request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyResolved
	}
	return nil
}

// RejectPendingReschedules rejects every unresolved proposal for an
// appointment. Used when the appointment is cancelled.
func (tx *Tx) RejectPendingReschedules(ctx context.Context, appointmentID string, at time.Time) error {
	query := `UPDATE reschedule_requests SET status = ?, resolved_at = ?
	          WHERE appointment_id = ? AND status = ?`
	_, err := tx.tx.ExecContext(ctx, query, string(models.RequestRejected), at.UTC(), appointmentID, string(models.RequestPending))
	if err != nil {
		return fmt.Errorf("reject pending reschedules: %w", err)
	}
	return nil
}

func scanReschedule(row rowScanner) (*models.RescheduleRequest, error) {
	var (
		req        models.RescheduleRequest
		status     string
		reason     sql.NullString
		resolvedAt sql.NullTime
	)
	err := row.Scan(&req.ID, &req.AppointmentID, &req.Start, &req.End, &reason, &status, &req.CreatedAt, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan reschedule request: %w", err)
	}

	req.Reason = reason.String
	req.Status, err = models.ParseRequestStatus(status)
	if err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		req.ResolvedAt = &t
	}
	return &req, nil
}
