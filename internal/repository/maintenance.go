package repository

import (
	"context"
	"fmt"

	"github.com/carlog/carlog/internal/model"
	"github.com/jackc/pgx/v5"
)

// CreateMaintenanceRecord inserts a record and fills in the generated ID and CreatedAt.
// Empty notes are stored as NULL.
func (r *Repository) CreateMaintenanceRecord(ctx context.Context, rec *model.MaintenanceRecord) error {
	query := `
		INSERT INTO maintenance_records (user_id, date, service_type, cost, notes)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		rec.UserID,
		model.TruncateToDate(rec.Date),
		rec.ServiceType,
		rec.Cost,
		rec.Notes,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create maintenance record: %w", err)
	}

	return nil
}

// ListMaintenanceRecordsByOwner returns the records owned by userID,
// newest date first. Records sharing a date are ordered by descending ID.
func (r *Repository) ListMaintenanceRecordsByOwner(ctx context.Context, userID int64) ([]*model.MaintenanceRecord, error) {
	query := `
		SELECT id, user_id, date, service_type, cost, COALESCE(notes, ''), created_at
		FROM maintenance_records
		WHERE user_id = $1
		ORDER BY date DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list maintenance records: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.MaintenanceRecord, error) {
		var rec model.MaintenanceRecord
		err := row.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.Date,
			&rec.ServiceType,
			&rec.Cost,
			&rec.Notes,
			&rec.CreatedAt,
		)
		return &rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan maintenance records: %w", err)
	}

	return records, nil
}
