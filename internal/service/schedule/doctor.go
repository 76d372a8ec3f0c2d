package schedule

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medisched/scheduling-api/internal/model"
	"github.com/medisched/scheduling-api/internal/tenant"
)

// DefaultDailyCap bounds a doctor's active appointments per day when the
// registration does not set its own limit.
const DefaultDailyCap = 20

// CreateDoctor registers a doctor in the caller's clinic.
func (s *Service) CreateDoctor(ctx context.Context, req *model.CreateDoctorRequest) (*model.Doctor, error) {
	clinicID, err := tenant.ClinicID(ctx)
	if err != nil {
		return nil, err
	}

	limit := req.MaxDailyAppointments
	if limit <= 0 {
		limit = s.defaultDailyCap
	}

	doctor := &model.Doctor{
		ClinicID:             clinicID,
		UserID:               req.UserID,
		FullName:             req.FullName,
		Specialization:       req.Specialization,
		ConsultationRoom:     req.ConsultationRoom,
		MaxDailyAppointments: limit,
		Available:            true,
	}
	if err := s.doctors.Create(ctx, doctor); err != nil {
		return nil, fmt.Errorf("failed to create doctor: %w", err)
	}

	log.Info().
		Str("doctor_id", doctor.ID.String()).
		Str("clinic_id", clinicID.String()).
		Msg("doctor registered")
	return doctor, nil
}

// GetDoctor resolves a doctor within the caller's clinic.
func (s *Service) GetDoctor(ctx context.Context, doctorID uuid.UUID) (*model.Doctor, error) {
	return s.doctorInClinic(ctx, doctorID)
}

// ListDoctors lists the caller's clinic roster.
func (s *Service) ListDoctors(ctx context.Context) ([]*model.Doctor, error) {
	clinicID, err := tenant.ClinicID(ctx)
	if err != nil {
		return nil, err
	}
	return s.doctors.List(ctx, clinicID)
}

// SetDoctorAvailable toggles whether the doctor accepts bookings at all,
// independent of their schedule blocks.
func (s *Service) SetDoctorAvailable(ctx context.Context, doctorID uuid.UUID, available bool) (*model.Doctor, error) {
	doctor, err := s.doctorInClinic(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	doctor.Available = available
	if err := s.doctors.Update(ctx, doctor); err != nil {
		return nil, fmt.Errorf("failed to update doctor: %w", err)
	}
	return doctor, nil
}
