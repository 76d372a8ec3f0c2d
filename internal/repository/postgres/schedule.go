package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medisched/scheduling-api/internal/model"
	apperrors "github.com/medisched/scheduling-api/pkg/errors"
)

func (r *scheduleRepository) Create(ctx context.Context, block *model.ScheduleBlock) error {
	query := `
		INSERT INTO schedule_blocks (id, doctor_id, weekday, start_time, end_time, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	block.ID = uuid.New()
	block.CreatedAt = time.Now()
	block.UpdatedAt = block.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		block.ID,
		block.DoctorID,
		int(block.Weekday),
		block.StartTime,
		block.EndTime,
		block.Active,
		block.CreatedAt,
		block.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create schedule block: %w", err)
	}
	return nil
}

func (r *scheduleRepository) BlocksFor(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) ([]*model.ScheduleBlock, error) {
	query := `
		SELECT id, doctor_id, weekday, start_time, end_time, active, created_at, updated_at
		FROM schedule_blocks
		WHERE doctor_id = $1 AND weekday = $2 AND active = true
		ORDER BY start_time ASC
	`
	var blocks []*model.ScheduleBlock
	err := r.db.SelectContext(ctx, &blocks, query, doctorID, int(weekday))
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule blocks: %w", err)
	}
	return blocks, nil
}

func (r *scheduleRepository) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.ScheduleBlock, error) {
	query := `
		SELECT id, doctor_id, weekday, start_time, end_time, active, created_at, updated_at
		FROM schedule_blocks
		WHERE doctor_id = $1
		ORDER BY weekday ASC, start_time ASC
	`
	var blocks []*model.ScheduleBlock
	err := r.db.SelectContext(ctx, &blocks, query, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule blocks: %w", err)
	}
	return blocks, nil
}

func (r *scheduleRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE schedule_blocks SET active = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update schedule block: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("schedule block", nil)
	}
	return nil
}
