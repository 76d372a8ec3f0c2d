package model

import (
	"github.com/google/uuid"
)

// Doctor carries the per-doctor booking rules: the weekly schedule blocks
// hang off doctor_id, and max_daily_appointments caps active bookings per day.
type Doctor struct {
	Base
	ClinicID             uuid.UUID `db:"clinic_id" json:"clinic_id"`
	UserID               uuid.UUID `db:"user_id" json:"user_id"`
	FullName             string    `db:"full_name" json:"full_name"`
	Specialization       string    `db:"specialization" json:"specialization"`
	ConsultationRoom     string    `db:"consultation_room" json:"consultation_room,omitempty"`
	MaxDailyAppointments int       `db:"max_daily_appointments" json:"max_daily_appointments"`
	Available            bool      `db:"available" json:"available"`
}

type CreateDoctorRequest struct {
	UserID               uuid.UUID `json:"user_id" binding:"required"`
	FullName             string    `json:"full_name" binding:"required"`
	Specialization       string    `json:"specialization" binding:"required"`
	ConsultationRoom     string    `json:"consultation_room"`
	MaxDailyAppointments int       `json:"max_daily_appointments" binding:"omitempty,min=1"`
}
