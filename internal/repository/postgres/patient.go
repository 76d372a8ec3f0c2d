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

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (id, clinic_id, user_id, full_name, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	patient.ID = uuid.New()
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = patient.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.ClinicID,
		patient.UserID,
		patient.FullName,
		patient.Email,
		patient.Phone,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `
		SELECT id, clinic_id, user_id, full_name, email, phone, created_at, updated_at
		FROM patients
		WHERE id = $1
	`
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("patient", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error) {
	query := `
		SELECT id, clinic_id, user_id, full_name, email, phone, created_at, updated_at
		FROM patients
		WHERE user_id = $1
	`
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("patient for user", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient by user: %w", err)
	}
	return &patient, nil
}
