package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medisched/scheduling-api/internal/model"
)

// All repository interfaces in one file
type (
	ClinicRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
		Create(ctx context.Context, clinic *model.Clinic) error
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Doctor, error)
		Update(ctx context.Context, doctor *model.Doctor) error
		List(ctx context.Context, clinicID uuid.UUID) ([]*model.Doctor, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error)
	}

	// ScheduleRepository owns the read-mostly weekly availability blocks.
	ScheduleRepository interface {
		Create(ctx context.Context, block *model.ScheduleBlock) error
		BlocksFor(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) ([]*model.ScheduleBlock, error)
		ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.ScheduleBlock, error)
		SetActive(ctx context.Context, id uuid.UUID, active bool) error
	}

	// AppointmentRepository owns appointment rows. Book and Reschedule are
	// transactional composites: the conflict and capacity checks run inside
	// the same transaction as the write, serialized per (doctor, date) so a
	// concurrent attempt on the same slot cannot interleave between the
	// check and the insert.
	AppointmentRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Book(ctx context.Context, appt *model.Appointment, maxDaily int) error
		Reschedule(ctx context.Context, id uuid.UUID, newDate time.Time, newTime model.ClockTime, maxDaily int) error
		Update(ctx context.Context, appt *model.Appointment) error

		BookedTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]model.ClockTime, error)
		ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error)
		UpcomingForPatient(ctx context.Context, patientID uuid.UUID, from time.Time) ([]*model.Appointment, error)
		ListForDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*model.Appointment, error)
		ListForDoctorRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
		ListForClinicRange(ctx context.Context, clinicID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)

		ReminderCandidates(ctx context.Context, windowStart, windowEnd time.Time) ([]*model.Appointment, error)
		MarkReminderSent(ctx context.Context, id uuid.UUID) error
		MarkNoShows(ctx context.Context, before time.Time) (int64, error)
	}

	// QueueRepository owns queue entries and the per-(doctor, date) ticket
	// sequence. EnqueueCheckIn additionally flips the source appointment to
	// CHECKED_IN inside the same transaction as the ticket insert, so a
	// failed insert rolls back the status change.
	QueueRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error)
		EnqueueCheckIn(ctx context.Context, entry *model.QueueEntry) error
		EnqueueWalkIn(ctx context.Context, entry *model.QueueEntry) error
		ActiveEntryForPatient(ctx context.Context, patientID uuid.UUID, date time.Time) (*model.QueueEntry, error)
		CountAhead(ctx context.Context, doctorID uuid.UUID, date time.Time, queueNumber int) (int, error)
		ListForDoctor(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*model.QueueEntry, error)
		CallNext(ctx context.Context, doctorID uuid.UUID, date time.Time, now time.Time) (*model.QueueEntry, error)
		Skip(ctx context.Context, id uuid.UUID) error
		CompleteConsultation(ctx context.Context, id uuid.UUID, now time.Time) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		PendingWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
