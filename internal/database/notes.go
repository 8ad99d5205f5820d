package database

import (
	"context"
	"fmt"
	"time"

	"agendum/internal/models"
)

// AppendNote adds a note to an appointment. Notes are append-only; there is
// no update or delete path.
func (db *DB) AppendNote(ctx context.Context, note *models.Note) error {
	query := `INSERT INTO notes (appointment_id, text, author, created_at) VALUES (?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.db.ExecContext(ctx, query, note.AppointmentID, note.Text, note.Author, now)
	if err != nil {
		return fmt.Errorf("append note: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	note.ID = id
	note.CreatedAt = now
	return nil
}

// ListNotes returns an appointment's notes in insertion order.
func (db *DB) ListNotes(ctx context.Context, appointmentID string) ([]*models.Note, error) {
	query := `SELECT id, appointment_id, text, author, created_at
	          FROM notes WHERE appointment_id = ? ORDER BY id ASC`
	rows, err := db.db.QueryContext(ctx, query, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []*models.Note
	for rows.Next() {
		var note models.Note
		if err := rows.Scan(&note.ID, &note.AppointmentID, &note.Text, &note.Author, &note.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, &note)
	}
	return notes, rows.Err()
}
