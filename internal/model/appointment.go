package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "PENDING"
	AppointmentStatusConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentStatusCheckedIn AppointmentStatus = "CHECKED_IN"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
	AppointmentStatusCancelled AppointmentStatus = "CANCELLED"
	AppointmentStatusNoShow    AppointmentStatus = "NO_SHOW"
)

// ActiveAppointmentStatuses are the statuses that occupy a slot and count
// against a doctor's daily cap.
var ActiveAppointmentStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusConfirmed,
	AppointmentStatusCheckedIn,
}

// Active reports whether the status holds a slot.
func (s AppointmentStatus) Active() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusCheckedIn:
		return true
	}
	return false
}

// Appointment rows are never deleted; cancellations and no-shows are status
// transitions so the booking history stays auditable.
type Appointment struct {
	Base
	ClinicID           uuid.UUID         `db:"clinic_id" json:"clinic_id"`
	PatientID          uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID           uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	Date               time.Time         `db:"appointment_date" json:"date"`
	Time               ClockTime         `db:"appointment_time" json:"time"`
	Status             AppointmentStatus `db:"status" json:"status"`
	Reason             string            `db:"reason" json:"reason,omitempty"`
	ReminderSent       bool              `db:"reminder_sent" json:"reminder_sent"`
	CancellationReason *string           `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
}

type BookAppointmentRequest struct {
	DoctorID uuid.UUID `json:"doctor_id" binding:"required"`
	Date     string    `json:"date" binding:"required,datetime=2006-01-02"`
	Time     ClockTime `json:"time" binding:"required,clocktime"`
	Reason   string    `json:"reason" binding:"max=500"`
}

type RescheduleAppointmentRequest struct {
	NewDate string    `json:"new_date" binding:"required,datetime=2006-01-02"`
	NewTime ClockTime `json:"new_time" binding:"required,clocktime"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}
