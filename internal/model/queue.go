package model

import (
	"time"

	"github.com/google/uuid"
)

type QueueStatus string

const (
	QueueStatusWaiting   QueueStatus = "WAITING"
	QueueStatusInConsult QueueStatus = "IN_CONSULT"
	QueueStatusDone      QueueStatus = "DONE"
	QueueStatusSkipped   QueueStatus = "SKIPPED"
)

// ActiveQueueStatuses are the statuses that count as "in the queue" when
// rejecting duplicate check-ins for a patient.
var ActiveQueueStatuses = []QueueStatus{QueueStatusWaiting, QueueStatusInConsult}

// QueueEntry is a patient's position in one doctor's physical queue for one
// calendar day. QueueNumber is assigned once at insert and never reused, even
// when the entry is skipped.
type QueueEntry struct {
	Base
	ClinicID         uuid.UUID   `db:"clinic_id" json:"clinic_id"`
	PatientID        uuid.UUID   `db:"patient_id" json:"patient_id"`
	DoctorID         uuid.UUID   `db:"doctor_id" json:"doctor_id"`
	AppointmentID    *uuid.UUID  `db:"appointment_id" json:"appointment_id,omitempty"`
	QueueDate        time.Time   `db:"queue_date" json:"queue_date"`
	QueueNumber      int         `db:"queue_number" json:"queue_number"`
	Status           QueueStatus `db:"status" json:"status"`
	CheckInTime      *time.Time  `db:"check_in_time" json:"check_in_time,omitempty"`
	ConsultStartTime *time.Time  `db:"consult_start_time" json:"consult_start_time,omitempty"`
	ConsultEndTime   *time.Time  `db:"consult_end_time" json:"consult_end_time,omitempty"`
	WalkIn           bool        `db:"walk_in" json:"walk_in"`
}

// QueueEntryStatus is the pull-based view a waiting patient polls: the entry
// plus its live position and wait estimate.
type QueueEntryStatus struct {
	QueueEntry
	PatientsAhead        int `json:"patients_ahead"`
	EstimatedWaitMinutes int `json:"estimated_wait_minutes"`
}

type AddWalkInRequest struct {
	DoctorID  uuid.UUID `json:"doctor_id" binding:"required"`
	PatientID uuid.UUID `json:"patient_id" binding:"required"`
}
