package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agendum/internal/models"
)

// CreateBlock inserts a professional-side unavailability window.
func (db *DB) CreateBlock(ctx context.Context, block *models.Block) error {
	query := `INSERT INTO blocks (id, professional_id, start_at, end_at, reason, created_at)
	          VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	_, err := db.db.ExecContext(ctx, query,
		block.ID, block.ProfessionalID, block.Start.UTC(), block.End.UTC(), block.Reason, now)
	if err != nil {
		return fmt.Errorf("create block: %w", err)
	}
	block.CreatedAt = now
	return nil
}

func (db *DB) GetBlock(ctx context.Context, id string) (*models.Block, error) {
	query := `SELECT id, professional_id, start_at, end_at, reason, created_at FROM blocks WHERE id = ?`
	var (
		block  models.Block
		reason sql.NullString
	)
	err := db.db.QueryRowContext(ctx, query, id).Scan(
		&block.ID, &block.ProfessionalID, &block.Start, &block.End, &reason, &block.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get block: %w", err)
	}
	block.Reason = reason.String
	return &block, nil
}

// DeleteBlock removes a block; unknown ids fail with ErrNotFound.
func (db *DB) DeleteBlock(ctx context.Context, id string) error {
	result, err := db.db.ExecContext(ctx, `DELETE FROM blocks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBlocks returns a professional's blocks intersecting [from, to).
func (db *DB) ListBlocks(ctx context.Context, professionalID string, from, to time.Time) ([]*models.Block, error) {
	query := `SELECT id, professional_id, start_at, end_at, reason, created_at
	          FROM blocks
	          WHERE professional_id = ? AND start_at < ? AND end_at > ?
	          ORDER BY start_at ASC`
	rows, err := db.db.QueryContext(ctx, query, professionalID, to.UTC(), from.UTC())
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*models.Block
	for rows.Next() {
		var (
			block  models.Block
			reason sql.NullString
		)
		if err := rows.Scan(&block.ID, &block.ProfessionalID, &block.Start, &block.End, &reason, &block.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		block.Reason = reason.String
		blocks = append(blocks, &block)
	}
	return blocks, rows.Err()
}
