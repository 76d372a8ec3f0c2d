package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medisched/scheduling-api/internal/config"
	"github.com/medisched/scheduling-api/internal/model"
	"github.com/medisched/scheduling-api/internal/repository"
	"github.com/medisched/scheduling-api/internal/service/notification"
	"github.com/medisched/scheduling-api/internal/service/schedule"
	"github.com/medisched/scheduling-api/internal/tenant"
	apperrors "github.com/medisched/scheduling-api/pkg/errors"
	"github.com/medisched/scheduling-api/pkg/metrics"
)

const dateFormat = "2006-01-02"

// Service owns the appointment lifecycle: booking, reschedule, cancellation,
// completion and the two background sweeps. All slot-occupancy writes go
// through the repository's transactional composites; this layer does the
// lookups, ownership checks and state-machine guards, then notifies once the
// write has committed.
type Service struct {
	appointments repository.AppointmentRepository
	doctors      repository.DoctorRepository
	patients     repository.PatientRepository
	schedule     *schedule.Service
	notifier     notification.Notifier
	cfg          config.SchedulingConfig
	metrics      *metrics.Metrics
	now          func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source, used by sweep tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics wires the booking outcome counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(
	appointments repository.AppointmentRepository,
	doctors repository.DoctorRepository,
	patients repository.PatientRepository,
	scheduleSvc *schedule.Service,
	notifier notification.Notifier,
	cfg config.SchedulingConfig,
	opts ...Option,
) *Service {
	s := &Service{
		appointments: appointments,
		doctors:      doctors,
		patients:     patients,
		schedule:     scheduleSvc,
		notifier:     notifier,
		cfg:          cfg,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book validates the requested slot and creates the appointment as
// CONFIRMED. The conflict and capacity checks run inside the booking
// transaction, so of N concurrent attempts on one slot exactly one wins.
func (s *Service) Book(ctx context.Context, patientUserID uuid.UUID, req *model.BookAppointmentRequest) (*model.Appointment, error) {
	clinicID, err := tenant.ClinicID(ctx)
	if err != nil {
		return nil, err
	}

	patient, err := s.patients.GetByUserID(ctx, patientUserID)
	if err != nil {
		return nil, err
	}
	doctor, err := s.doctorInClinic(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Available {
		return nil, apperrors.InvalidState("doctor is not accepting appointments")
	}

	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if !req.Time.Valid() {
		return nil, apperrors.BadRequest("invalid appointment time, expected HH:MM", nil)
	}

	appt := &model.Appointment{
		ClinicID:     clinicID,
		PatientID:    patient.ID,
		DoctorID:     doctor.ID,
		Date:         date,
		Time:         req.Time,
		Status:       model.AppointmentStatusConfirmed,
		Reason:       req.Reason,
		ReminderSent: false,
	}

	if err := s.appointments.Book(ctx, appt, doctor.MaxDailyAppointments); err != nil {
		return nil, s.describeBookingError(err, doctor, date, req.Time)
	}

	log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("patient_id", patient.ID.String()).
		Str("doctor_id", doctor.ID.String()).
		Str("date", req.Date).
		Msg("appointment booked")
	if s.metrics != nil {
		s.metrics.BookingsTotal.Inc()
	}

	s.notify(ctx, model.NotificationConfirmation, patient.Email, appt)
	return appt, nil
}

// Reschedule moves an appointment the requesting patient owns to a new slot.
// The move is one atomic update; a failed validation leaves the original
// slot untouched, and there is no window where the old slot is free before
// the new one is held.
func (s *Service) Reschedule(ctx context.Context, appointmentID, patientUserID uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.Appointment, error) {
	appt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	patient, err := s.patients.GetByUserID(ctx, patientUserID)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != patient.ID {
		return nil, apperrors.Unauthorized(fmt.Errorf("appointment %s is not owned by patient %s", appointmentID, patient.ID))
	}

	if appt.Status != model.AppointmentStatusPending && appt.Status != model.AppointmentStatusConfirmed {
		return nil, apperrors.InvalidState("only PENDING or CONFIRMED appointments can be rescheduled")
	}

	doctor, err := s.doctors.Get(ctx, appt.DoctorID)
	if err != nil {
		return nil, err
	}

	newDate, err := parseDate(req.NewDate)
	if err != nil {
		return nil, err
	}
	if !req.NewTime.Valid() {
		return nil, apperrors.BadRequest("invalid appointment time, expected HH:MM", nil)
	}

	if err := s.appointments.Reschedule(ctx, appointmentID, newDate, req.NewTime, doctor.MaxDailyAppointments); err != nil {
		return nil, s.describeBookingError(err, doctor, newDate, req.NewTime)
	}

	log.Info().
		Str("appointment_id", appointmentID.String()).
		Str("new_date", req.NewDate).
		Str("new_time", string(req.NewTime)).
		Msg("appointment rescheduled")

	moved, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, model.NotificationReschedule, patient.Email, moved)
	return moved, nil
}

// Cancel marks the appointment CANCELLED and records the reason. Any prior
// status may be cancelled; cancelling an already-cancelled appointment is a
// no-op success.
func (s *Service) Cancel(ctx context.Context, appointmentID, requestingUserID uuid.UUID, reason string) error {
	appt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return err
	}

	if appt.Status == model.AppointmentStatusCancelled {
		return nil
	}

	appt.Status = model.AppointmentStatusCancelled
	appt.CancellationReason = &reason
	if err := s.appointments.Update(ctx, appt); err != nil {
		return err
	}

	log.Info().
		Str("appointment_id", appointmentID.String()).
		Str("user_id", requestingUserID.String()).
		Msg("appointment cancelled")

	if patient, err := s.patients.Get(ctx, appt.PatientID); err == nil {
		s.notify(ctx, model.NotificationCancellation, patient.Email, appt)
	}
	return nil
}

// Complete marks the appointment COMPLETED. Only the doctor the appointment
// belongs to may complete it.
func (s *Service) Complete(ctx context.Context, appointmentID, doctorUserID uuid.UUID) (*model.Appointment, error) {
	appt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	doctor, err := s.doctors.GetByUserID(ctx, doctorUserID)
	if err != nil {
		return nil, err
	}
	if appt.DoctorID != doctor.ID {
		return nil, apperrors.Unauthorized(fmt.Errorf("appointment %s does not belong to doctor %s", appointmentID, doctor.ID))
	}

	appt.Status = model.AppointmentStatusCompleted
	if err := s.appointments.Update(ctx, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) Get(ctx context.Context, appointmentID uuid.UUID) (*model.Appointment, error) {
	return s.appointments.Get(ctx, appointmentID)
}

// PatientHistory lists all of a patient's appointments, newest first.
func (s *Service) PatientHistory(ctx context.Context, patientUserID uuid.UUID) ([]*model.Appointment, error) {
	patient, err := s.patients.GetByUserID(ctx, patientUserID)
	if err != nil {
		return nil, err
	}
	return s.appointments.ListForPatient(ctx, patient.ID)
}

// PatientUpcoming lists a patient's appointments from today forward.
func (s *Service) PatientUpcoming(ctx context.Context, patientUserID uuid.UUID) ([]*model.Appointment, error) {
	patient, err := s.patients.GetByUserID(ctx, patientUserID)
	if err != nil {
		return nil, err
	}
	return s.appointments.UpcomingForPatient(ctx, patient.ID, model.DateOnly(s.now()))
}

// DoctorDailySchedule lists a doctor's appointments for one day in time order.
func (s *Service) DoctorDailySchedule(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*model.Appointment, error) {
	if _, err := s.doctorInClinic(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.appointments.ListForDoctorDay(ctx, doctorID, model.DateOnly(date))
}

// DoctorWeeklySchedule lists a doctor's appointments for the week starting
// at weekStart.
func (s *Service) DoctorWeeklySchedule(ctx context.Context, doctorID uuid.UUID, weekStart time.Time) ([]*model.Appointment, error) {
	if _, err := s.doctorInClinic(ctx, doctorID); err != nil {
		return nil, err
	}
	from := model.DateOnly(weekStart)
	return s.appointments.ListForDoctorRange(ctx, doctorID, from, from.AddDate(0, 0, 6))
}

// ClinicSchedule lists every appointment in the caller's clinic for a date
// range.
func (s *Service) ClinicSchedule(ctx context.Context, from, to time.Time) ([]*model.Appointment, error) {
	clinicID, err := tenant.ClinicID(ctx)
	if err != nil {
		return nil, err
	}
	return s.appointments.ListForClinicRange(ctx, clinicID, model.DateOnly(from), model.DateOnly(to))
}

// describeBookingError rewrites repository conflict/capacity errors so the
// caller sees which doctor, date and time were unavailable.
func (s *Service) describeBookingError(err error, doctor *model.Doctor, date time.Time, t model.ClockTime) error {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrConflict:
		if s.metrics != nil {
			s.metrics.BookingConflicts.Inc()
		}
		return apperrors.Conflict(fmt.Sprintf(
			"this time slot is already booked for Dr. %s on %s at %s",
			doctor.FullName, date.Format(dateFormat), t), err)
	case apperrors.ErrCapacity:
		if s.metrics != nil {
			s.metrics.CapacityRejections.Inc()
		}
		return apperrors.Capacity(fmt.Sprintf(
			"Dr. %s has reached the maximum appointments for %s",
			doctor.FullName, date.Format(dateFormat)), err)
	}
	return err
}

func (s *Service) doctorInClinic(ctx context.Context, doctorID uuid.UUID) (*model.Doctor, error) {
	clinicID, err := tenant.ClinicID(ctx)
	if err != nil {
		return nil, err
	}
	doctor, err := s.doctors.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if doctor.ClinicID != clinicID {
		return nil, apperrors.NotFound("doctor", nil)
	}
	return doctor, nil
}

// notify hands the event to the notifier after the owning write has
// committed. Failures are logged and swallowed.
func (s *Service) notify(ctx context.Context, kind model.NotificationKind, recipient string, appt *model.Appointment) {
	err := s.notifier.Notify(ctx, &notification.Event{
		Kind:        kind,
		Recipient:   recipient,
		Appointment: appt,
	})
	if err != nil {
		log.Warn().Err(err).
			Str("kind", string(kind)).
			Str("appointment_id", appt.ID.String()).
			Msg("failed to record notification")
	}
}

func parseDate(s string) (time.Time, error) {
	date, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}, apperrors.BadRequest("invalid date, expected YYYY-MM-DD", err)
	}
	return date, nil
}
