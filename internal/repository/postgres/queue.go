package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medisched/scheduling-api/internal/model"
	apperrors "github.com/medisched/scheduling-api/pkg/errors"
)

const queueColumns = `
	id, clinic_id, patient_id, doctor_id, appointment_id, queue_date, queue_number,
	status, check_in_time, consult_start_time, consult_end_time, walk_in, created_at, updated_at
`

func (r *queueRepository) Get(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_entries WHERE id = $1`

	var entry model.QueueEntry
	err := r.db.GetContext(ctx, &entry, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("queue entry", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	return &entry, nil
}

// EnqueueCheckIn flips the source appointment to CHECKED_IN and inserts the
// queue entry with the next ticket number, all in one transaction. If the
// ticket insert fails the status change rolls back with it.
func (r *queueRepository) EnqueueCheckIn(ctx context.Context, entry *model.QueueEntry) error {
	if entry.AppointmentID == nil {
		return apperrors.BadRequest("check-in requires an appointment", nil)
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE appointments SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
			model.AppointmentStatusCheckedIn, time.Now(), *entry.AppointmentID, model.AppointmentStatusConfirmed,
		)
		if err != nil {
			return fmt.Errorf("failed to mark appointment checked in: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return apperrors.InvalidState("only CONFIRMED appointments can check in")
		}

		return r.insertWithNextNumber(ctx, tx, entry)
	})
}

// EnqueueWalkIn inserts a walk-in entry with the next ticket number.
func (r *queueRepository) EnqueueWalkIn(ctx context.Context, entry *model.QueueEntry) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		return r.insertWithNextNumber(ctx, tx, entry)
	})
}

// insertWithNextNumber assigns max(queue_number)+1 for (doctor, date) and
// inserts, under the per-(doctor, day) advisory lock. The unique index on
// (doctor_id, queue_date, queue_number) is the backstop against writers that
// bypass the lock; on a violation the number is re-read and the insert
// retried once.
func (r *queueRepository) insertWithNextNumber(ctx context.Context, tx *sqlx.Tx, entry *model.QueueEntry) error {
	day := entry.QueueDate.Format(dateFormat)
	if err := lockDoctorDay(ctx, tx, entry.DoctorID.String(), day); err != nil {
		return fmt.Errorf("failed to lock doctor day: %w", err)
	}

	if err := r.checkNotQueued(ctx, tx, entry.PatientID, entry.QueueDate); err != nil {
		return err
	}

	entry.ID = uuid.New()
	entry.Status = model.QueueStatusWaiting
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt

	for attempt := 0; attempt < 2; attempt++ {
		var next int
		err := tx.GetContext(ctx, &next,
			`SELECT COALESCE(MAX(queue_number), 0) + 1 FROM queue_entries WHERE doctor_id = $1 AND queue_date = $2`,
			entry.DoctorID, entry.QueueDate,
		)
		if err != nil {
			return fmt.Errorf("failed to read next queue number: %w", err)
		}
		entry.QueueNumber = next

		query := `
			INSERT INTO queue_entries (
				id, clinic_id, patient_id, doctor_id, appointment_id, queue_date, queue_number,
				status, check_in_time, walk_in, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`
		_, err = tx.ExecContext(ctx, query,
			entry.ID,
			entry.ClinicID,
			entry.PatientID,
			entry.DoctorID,
			entry.AppointmentID,
			entry.QueueDate,
			entry.QueueNumber,
			entry.Status,
			entry.CheckInTime,
			entry.WalkIn,
			entry.CreatedAt,
			entry.UpdatedAt,
		)
		if isUniqueViolation(err) && attempt == 0 {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to insert queue entry: %w", err)
		}
		return nil
	}
	return apperrors.Conflict("queue number contention, retry check-in", nil)
}

func (r *queueRepository) checkNotQueued(ctx context.Context, tx *sqlx.Tx, patientID uuid.UUID, date time.Time) error {
	var existing int
	err := tx.GetContext(ctx, &existing,
		`SELECT queue_number FROM queue_entries
		 WHERE patient_id = $1 AND queue_date = $2 AND status IN ('WAITING', 'IN_CONSULT')
		 LIMIT 1`,
		patientID, date,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check queue membership: %w", err)
	}
	return apperrors.AlreadyQueued(existing)
}

func (r *queueRepository) ActiveEntryForPatient(ctx context.Context, patientID uuid.UUID, date time.Time) (*model.QueueEntry, error) {
	query := `
		SELECT ` + queueColumns + `
		FROM queue_entries
		WHERE patient_id = $1 AND queue_date = $2 AND status IN ('WAITING', 'IN_CONSULT')
		LIMIT 1
	`
	var entry model.QueueEntry
	err := r.db.GetContext(ctx, &entry, query, patientID, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active queue entry: %w", err)
	}
	return &entry, nil
}

func (r *queueRepository) CountAhead(ctx context.Context, doctorID uuid.UUID, date time.Time, queueNumber int) (int, error) {
	query := `
		SELECT COUNT(*) FROM queue_entries
		WHERE doctor_id = $1 AND queue_date = $2 AND status = 'WAITING' AND queue_number < $3
	`
	var count int
	err := r.db.GetContext(ctx, &count, query, doctorID, date, queueNumber)
	if err != nil {
		return 0, fmt.Errorf("failed to count patients ahead: %w", err)
	}
	return count, nil
}

func (r *queueRepository) ListForDoctor(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*model.QueueEntry, error) {
	query := `
		SELECT ` + queueColumns + `
		FROM queue_entries
		WHERE doctor_id = $1 AND queue_date = $2
		ORDER BY queue_number ASC
	`
	var entries []*model.QueueEntry
	err := r.db.SelectContext(ctx, &entries, query, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	return entries, nil
}

// CallNext finishes the patient currently IN_CONSULT and pulls the lowest
// WAITING ticket, in one transaction. When no one is waiting the finish step
// still commits and a not-found error is returned, so the doctor is never
// stuck "serving" a patient who already left the room.
func (r *queueRepository) CallNext(ctx context.Context, doctorID uuid.UUID, date time.Time, now time.Time) (*model.QueueEntry, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	day := date.Format(dateFormat)
	if err := lockDoctorDay(ctx, tx, doctorID.String(), day); err != nil {
		return nil, fmt.Errorf("failed to lock doctor day: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE queue_entries
		 SET status = 'DONE', consult_end_time = $1, updated_at = $1
		 WHERE doctor_id = $2 AND queue_date = $3 AND status = 'IN_CONSULT'`,
		now, doctorID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to finish current consultation: %w", err)
	}

	var next model.QueueEntry
	err = tx.GetContext(ctx, &next,
		`SELECT `+queueColumns+`
		 FROM queue_entries
		 WHERE doctor_id = $1 AND queue_date = $2 AND status = 'WAITING'
		 ORDER BY queue_number ASC
		 LIMIT 1
		 FOR UPDATE`,
		doctorID, date,
	)
	if errors.Is(err, sql.ErrNoRows) {
		if commitErr := tx.Commit(); commitErr != nil {
			return nil, fmt.Errorf("failed to commit call-next: %w", commitErr)
		}
		return nil, apperrors.NotFound("no waiting patients", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select next waiting entry: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE queue_entries
		 SET status = 'IN_CONSULT', consult_start_time = $1, updated_at = $1
		 WHERE id = $2`,
		now, next.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start consultation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit call-next: %w", err)
	}

	next.Status = model.QueueStatusInConsult
	next.ConsultStartTime = &now
	return &next, nil
}

func (r *queueRepository) Skip(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE queue_entries SET status = 'SKIPPED', updated_at = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to skip queue entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("queue entry", nil)
	}
	return nil
}

func (r *queueRepository) CompleteConsultation(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `UPDATE queue_entries SET status = 'DONE', consult_end_time = $1, updated_at = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, now, id)
	if err != nil {
		return fmt.Errorf("failed to complete consultation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("queue entry", nil)
	}
	return nil
}
