package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"agendum/internal/interval"
	"agendum/internal/models"
)

// OverlapHit is one appointment or block intersecting a probed interval.
type OverlapHit struct {
	ID       string
	Kind     string // "appointment" or "block"
	Interval interval.Interval
	Status   models.Status // empty for blocks
}

// FindOverlapping returns appointments in the given statuses plus all blocks
// whose interval intersects iv within one professional's partition. The SQL
// range predicate narrows candidates; the definitive check is
// interval.Overlaps so boundary semantics stay consistent everywhere.
// excludeID drops the probed appointment itself from the result.
func (db *DB) FindOverlapping(ctx context.Context, professionalID string, iv interval.Interval, statuses []models.Status, excludeID string) ([]OverlapHit, error) {
	return findOverlapping(ctx, db.db, professionalID, iv, statuses, excludeID)
}

// FindOverlapping is the transaction-scoped conflict query used by atomic
// confirm and reschedule acceptance.
func (tx *Tx) FindOverlapping(ctx context.Context, professionalID string, iv interval.Interval, statuses []models.Status, excludeID string) ([]OverlapHit, error) {
	return findOverlapping(ctx, tx.tx, professionalID, iv, statuses, excludeID)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func findOverlapping(ctx context.Context, q querier, professionalID string, iv interval.Interval, statuses []models.Status, excludeID string) ([]OverlapHit, error) {
	var hits []OverlapHit

	if len(statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
		query := fmt.Sprintf(`SELECT id, start_at, end_at, status
		          FROM appointments
		          WHERE professional_id = ? AND id != ? AND start_at < ? AND end_at > ? AND status IN (%s)`, placeholders)

		args := []any{professionalID, excludeID, iv.End.UTC(), iv.Start.UTC()}
		for _, s := range statuses {
			args = append(args, string(s))
		}

		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query overlapping appointments: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				hit    OverlapHit
				status string
			)
			if err := rows.Scan(&hit.ID, &hit.Interval.Start, &hit.Interval.End, &status); err != nil {
				return nil, fmt.Errorf("scan overlap hit: %w", err)
			}
			hit.Kind = "appointment"
			hit.Status, err = models.ParseStatus(status)
			if err != nil {
				return nil, err
			}
			if interval.Overlaps(hit.Interval, iv) {
				hits = append(hits, hit)
			}
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	blockQuery := `SELECT id, start_at, end_at
	               FROM blocks
	               WHERE professional_id = ? AND start_at < ? AND end_at > ?`
	rows, err := q.QueryContext(ctx, blockQuery, professionalID, iv.End.UTC(), iv.Start.UTC())
	if err != nil {
		return nil, fmt.Errorf("query overlapping blocks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		hit := OverlapHit{Kind: "block"}
		if err := rows.Scan(&hit.ID, &hit.Interval.Start, &hit.Interval.End); err != nil {
			return nil, fmt.Errorf("scan block hit: %w", err)
		}
		if interval.Overlaps(hit.Interval, iv) {
			hits = append(hits, hit)
		}
	}
	return hits, rows.Err()
}

// BusyIntervals fetches every requested/confirmed appointment and block for
// one professional within [from, to) in a single ranged query per kind. Slot
// generation filters candidates against this set in memory instead of
// issuing one conflict query per slot.
func (db *DB) BusyIntervals(ctx context.Context, professionalID string, from, to time.Time) ([]interval.Interval, error) {
	window := interval.Interval{Start: from, End: to}
	hits, err := db.FindOverlapping(ctx, professionalID, window,
		[]models.Status{models.StatusRequested, models.StatusConfirmed}, "")
	if err != nil {
		return nil, err
	}

	busy := make([]interval.Interval, 0, len(hits))
	for _, h := range hits {
		busy = append(busy, h.Interval)
	}
	return busy, nil
}
