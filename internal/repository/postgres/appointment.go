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

const appointmentColumns = `
	id, clinic_id, patient_id, doctor_id, appointment_date, appointment_time,
	status, reason, reminder_sent, cancellation_reason, created_at, updated_at
`

const dateFormat = "2006-01-02"

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appt model.Appointment
	err := r.db.GetContext(ctx, &appt, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("appointment", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appt, nil
}

// Book inserts a CONFIRMED appointment after re-running the conflict and
// capacity checks inside one transaction. The per-(doctor, day) advisory
// lock serializes concurrent attempts on the same key; the partial unique
// index on active slots is the commit-time backstop.
func (r *appointmentRepository) Book(ctx context.Context, appt *model.Appointment, maxDaily int) error {
	appt.ID = uuid.New()
	appt.CreatedAt = time.Now()
	appt.UpdatedAt = appt.CreatedAt

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		day := appt.Date.Format(dateFormat)
		if err := lockDoctorDay(ctx, tx, appt.DoctorID.String(), day); err != nil {
			return fmt.Errorf("failed to lock doctor day: %w", err)
		}

		if err := checkSlotFree(ctx, tx, appt.DoctorID, appt.Date, appt.Time, nil); err != nil {
			return err
		}
		if err := checkDailyCap(ctx, tx, appt.DoctorID, appt.Date, nil, maxDaily); err != nil {
			return err
		}

		query := `
			INSERT INTO appointments (
				id, clinic_id, patient_id, doctor_id, appointment_date, appointment_time,
				status, reason, reminder_sent, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		_, err := tx.ExecContext(ctx, query,
			appt.ID,
			appt.ClinicID,
			appt.PatientID,
			appt.DoctorID,
			appt.Date,
			appt.Time,
			appt.Status,
			appt.Reason,
			appt.ReminderSent,
			appt.CreatedAt,
			appt.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return slotTakenError(appt.Date, appt.Time, err)
		}
		if err != nil {
			return fmt.Errorf("failed to insert appointment: %w", err)
		}
		return nil
	})
}

// Reschedule moves an appointment to a new slot as a single atomic update.
// The appointment being moved is excluded from both the conflict and the
// capacity check, so a same-day move never counts itself. There is no
// intermediate state where the old slot is released and the new one not yet
// held.
func (r *appointmentRepository) Reschedule(ctx context.Context, id uuid.UUID, newDate time.Time, newTime model.ClockTime, maxDaily int) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var current struct {
			DoctorID uuid.UUID `db:"doctor_id"`
		}
		err := tx.GetContext(ctx, &current,
			`SELECT doctor_id FROM appointments WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NotFound("appointment", err)
		}
		if err != nil {
			return fmt.Errorf("failed to lock appointment: %w", err)
		}

		day := newDate.Format(dateFormat)
		if err := lockDoctorDay(ctx, tx, current.DoctorID.String(), day); err != nil {
			return fmt.Errorf("failed to lock doctor day: %w", err)
		}

		if err := checkSlotFree(ctx, tx, current.DoctorID, newDate, newTime, &id); err != nil {
			return err
		}
		if err := checkDailyCap(ctx, tx, current.DoctorID, newDate, &id, maxDaily); err != nil {
			return err
		}

		query := `
			UPDATE appointments
			SET appointment_date = $1, appointment_time = $2, reminder_sent = false, updated_at = $3
			WHERE id = $4
		`
		_, err = tx.ExecContext(ctx, query, newDate, newTime, time.Now(), id)
		if isUniqueViolation(err) {
			return slotTakenError(newDate, newTime, err)
		}
		if err != nil {
			return fmt.Errorf("failed to reschedule appointment: %w", err)
		}
		return nil
	})
}

func (r *appointmentRepository) Update(ctx context.Context, appt *model.Appointment) error {
	query := `
		UPDATE appointments
		SET status = $1, reason = $2, reminder_sent = $3, cancellation_reason = $4, updated_at = $5
		WHERE id = $6
	`
	appt.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		appt.Status,
		appt.Reason,
		appt.ReminderSent,
		appt.CancellationReason,
		appt.UpdatedAt,
		appt.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("appointment", nil)
	}
	return nil
}

func (r *appointmentRepository) BookedTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]model.ClockTime, error) {
	query := `
		SELECT appointment_time
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date = $2
		  AND status IN ('PENDING', 'CONFIRMED', 'CHECKED_IN')
		ORDER BY appointment_time ASC
	`
	var times []model.ClockTime
	err := r.db.SelectContext(ctx, &times, query, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list booked times: %w", err)
	}
	return times, nil
}

func (r *appointmentRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE patient_id = $1
		ORDER BY appointment_date DESC, appointment_time DESC
	`
	var appts []*model.Appointment
	err := r.db.SelectContext(ctx, &appts, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patient appointments: %w", err)
	}
	return appts, nil
}

func (r *appointmentRepository) UpcomingForPatient(ctx context.Context, patientID uuid.UUID, from time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE patient_id = $1 AND appointment_date >= $2
		ORDER BY appointment_date ASC, appointment_time ASC
	`
	var appts []*model.Appointment
	err := r.db.SelectContext(ctx, &appts, query, patientID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming appointments: %w", err)
	}
	return appts, nil
}

func (r *appointmentRepository) ListForDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1 AND appointment_date = $2
		ORDER BY appointment_time ASC
	`
	var appts []*model.Appointment
	err := r.db.SelectContext(ctx, &appts, query, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctor day appointments: %w", err)
	}
	return appts, nil
}

func (r *appointmentRepository) ListForDoctorRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1 AND appointment_date BETWEEN $2 AND $3
		ORDER BY appointment_date ASC, appointment_time ASC
	`
	var appts []*model.Appointment
	err := r.db.SelectContext(ctx, &appts, query, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctor range appointments: %w", err)
	}
	return appts, nil
}

func (r *appointmentRepository) ListForClinicRange(ctx context.Context, clinicID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE clinic_id = $1 AND appointment_date BETWEEN $2 AND $3
		ORDER BY appointment_date ASC, appointment_time ASC
	`
	var appts []*model.Appointment
	err := r.db.SelectContext(ctx, &appts, query, clinicID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list clinic appointments: %w", err)
	}
	return appts, nil
}

func (r *appointmentRepository) ReminderCandidates(ctx context.Context, windowStart, windowEnd time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE status = 'CONFIRMED'
		  AND reminder_sent = false
		  AND appointment_date + appointment_time::time BETWEEN $1 AND $2
		ORDER BY appointment_date ASC, appointment_time ASC
	`
	var appts []*model.Appointment
	err := r.db.SelectContext(ctx, &appts, query, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder candidates: %w", err)
	}
	return appts, nil
}

func (r *appointmentRepository) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE appointments SET reminder_sent = true, updated_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return nil
}

// MarkNoShows only touches CONFIRMED rows, so reruns are safe.
func (r *appointmentRepository) MarkNoShows(ctx context.Context, before time.Time) (int64, error) {
	query := `
		UPDATE appointments
		SET status = 'NO_SHOW', updated_at = $1
		WHERE status = 'CONFIRMED' AND appointment_date < $2
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), before)
	if err != nil {
		return 0, fmt.Errorf("failed to mark no-shows: %w", err)
	}
	return result.RowsAffected()
}

func checkSlotFree(ctx context.Context, tx *sqlx.Tx, doctorID uuid.UUID, date time.Time, t model.ClockTime, excludeID *uuid.UUID) error {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			  AND appointment_date = $2
			  AND appointment_time = $3
			  AND status IN ('PENDING', 'CONFIRMED', 'CHECKED_IN')
			  AND ($4::uuid IS NULL OR id <> $4)
		)
	`
	var taken bool
	if err := tx.GetContext(ctx, &taken, query, doctorID, date, t, excludeID); err != nil {
		return fmt.Errorf("failed to check slot conflict: %w", err)
	}
	if taken {
		return slotTakenError(date, t, nil)
	}
	return nil
}

func checkDailyCap(ctx context.Context, tx *sqlx.Tx, doctorID uuid.UUID, date time.Time, excludeID *uuid.UUID, maxDaily int) error {
	query := `
		SELECT COUNT(*) FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date = $2
		  AND status IN ('PENDING', 'CONFIRMED', 'CHECKED_IN')
		  AND ($3::uuid IS NULL OR id <> $3)
	`
	var count int
	if err := tx.GetContext(ctx, &count, query, doctorID, date, excludeID); err != nil {
		return fmt.Errorf("failed to count daily appointments: %w", err)
	}
	if count >= maxDaily {
		return apperrors.Capacity(
			fmt.Sprintf("daily appointment limit reached for %s", date.Format(dateFormat)), nil)
	}
	return nil
}

func slotTakenError(date time.Time, t model.ClockTime, err error) error {
	return apperrors.Conflict(
		fmt.Sprintf("slot %s %s is already booked", date.Format(dateFormat), t), err)
}
