package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medisched/scheduling-api/internal/model"
	apperrors "github.com/medisched/scheduling-api/pkg/errors"
)

const doctorColumns = `
	id, clinic_id, user_id, full_name, specialization, consultation_room,
	max_daily_appointments, available, created_at, updated_at
`

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (
			id, clinic_id, user_id, full_name, specialization, consultation_room,
			max_daily_appointments, available, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	doctor.ID = uuid.New()
	doctor.CreatedAt = time.Now()
	doctor.UpdatedAt = doctor.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		doctor.ID,
		doctor.ClinicID,
		doctor.UserID,
		doctor.FullName,
		doctor.Specialization,
		doctor.ConsultationRoom,
		doctor.MaxDailyAppointments,
		doctor.Available,
		doctor.CreatedAt,
		doctor.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE id = $1`

	var doctor model.Doctor
	err := r.db.GetContext(ctx, &doctor, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("doctor", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE user_id = $1`

	var doctor model.Doctor
	err := r.db.GetContext(ctx, &doctor, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("doctor for user", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor by user: %w", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	query := `
		UPDATE doctors
		SET full_name = $1, specialization = $2, consultation_room = $3,
		    max_daily_appointments = $4, available = $5, updated_at = $6
		WHERE id = $7
	`
	doctor.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		doctor.FullName,
		doctor.Specialization,
		doctor.ConsultationRoom,
		doctor.MaxDailyAppointments,
		doctor.Available,
		doctor.UpdatedAt,
		doctor.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update doctor: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("doctor", nil)
	}
	return nil
}

func (r *doctorRepository) List(ctx context.Context, clinicID uuid.UUID) ([]*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE clinic_id = $1 ORDER BY full_name ASC`

	var doctors []*model.Doctor
	err := r.db.SelectContext(ctx, &doctors, query, clinicID)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}
