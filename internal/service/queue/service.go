package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medisched/scheduling-api/internal/model"
	"github.com/medisched/scheduling-api/internal/repository"
	"github.com/medisched/scheduling-api/internal/service/notification"
	"github.com/medisched/scheduling-api/internal/tenant"
	apperrors "github.com/medisched/scheduling-api/pkg/errors"
	"github.com/medisched/scheduling-api/pkg/metrics"
)

// DefaultAvgMinutesPerPatient is the wait-estimate multiplier used when the
// configuration does not override it.
const DefaultAvgMinutesPerPatient = 15

// Service runs one live queue per doctor per day. Ticket numbers are
// assigned inside the repository's transactional composites; this layer does
// the state-machine guards, tenant scoping and the position/wait arithmetic.
type Service struct {
	queue        repository.QueueRepository
	appointments repository.AppointmentRepository
	doctors      repository.DoctorRepository
	patients     repository.PatientRepository
	notifier     notification.Notifier
	avgMinutes   int
	metrics      *metrics.Metrics
	now          func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics wires the ticket counter.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(
	queue repository.QueueRepository,
	appointments repository.AppointmentRepository,
	doctors repository.DoctorRepository,
	patients repository.PatientRepository,
	notifier notification.Notifier,
	avgMinutesPerPatient int,
	opts ...Option,
) *Service {
	if avgMinutesPerPatient <= 0 {
		avgMinutesPerPatient = DefaultAvgMinutesPerPatient
	}
	s := &Service{
		queue:        queue,
		appointments: appointments,
		doctors:      doctors,
		patients:     patients,
		notifier:     notifier,
		avgMinutes:   avgMinutesPerPatient,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckIn turns a CONFIRMED appointment into today's next queue ticket. The
// appointment transition to CHECKED_IN and the ticket insert commit as one
// unit. A patient already WAITING or IN_CONSULT today is rejected.
func (s *Service) CheckIn(ctx context.Context, appointmentID uuid.UUID) (*model.QueueEntryStatus, error) {
	clinicID, err := tenant.ClinicID(ctx)
	if err != nil {
		return nil, err
	}
	appt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.ClinicID != clinicID {
		return nil, apperrors.NotFound("appointment", nil)
	}
	if appt.Status != model.AppointmentStatusConfirmed {
		return nil, apperrors.InvalidState("only CONFIRMED appointments can check in")
	}

	now := s.now()
	today := model.DateOnly(now)

	if existing, err := s.queue.ActiveEntryForPatient(ctx, appt.PatientID, today); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, apperrors.AlreadyQueued(existing.QueueNumber)
	}

	entry := &model.QueueEntry{
		ClinicID:      appt.ClinicID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		AppointmentID: &appt.ID,
		QueueDate:     today,
		CheckInTime:   &now,
		WalkIn:        false,
	}
	if err := s.queue.EnqueueCheckIn(ctx, entry); err != nil {
		return nil, err
	}

	log.Info().
		Str("appointment_id", appointmentID.String()).
		Int("queue_number", entry.QueueNumber).
		Msg("patient checked in")
	if s.metrics != nil {
		s.metrics.TicketsIssued.Inc()
	}

	return s.withWaitEstimate(ctx, entry)
}

// AddWalkIn queues a patient with no prior appointment. Walk-ins share the
// same ticket sequence as check-ins.
func (s *Service) AddWalkIn(ctx context.Context, doctorID, patientID uuid.UUID) (*model.QueueEntryStatus, error) {
	doctor, err := s.doctorInClinic(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := model.DateOnly(now)

	if existing, err := s.queue.ActiveEntryForPatient(ctx, patient.ID, today); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, apperrors.AlreadyQueued(existing.QueueNumber)
	}

	entry := &model.QueueEntry{
		ClinicID:    doctor.ClinicID,
		PatientID:   patient.ID,
		DoctorID:    doctor.ID,
		QueueDate:   today,
		CheckInTime: &now,
		WalkIn:      true,
	}
	if err := s.queue.EnqueueWalkIn(ctx, entry); err != nil {
		return nil, err
	}

	log.Info().
		Str("patient_id", patient.ID.String()).
		Str("doctor_id", doctor.ID.String()).
		Int("queue_number", entry.QueueNumber).
		Msg("walk-in added to queue")
	if s.metrics != nil {
		s.metrics.TicketsIssued.Inc()
	}

	return s.withWaitEstimate(ctx, entry)
}

// Position counts the WAITING entries with smaller ticket numbers ahead of
// the entry.
func (s *Service) Position(ctx context.Context, entryID uuid.UUID) (int, error) {
	entry, err := s.queue.Get(ctx, entryID)
	if err != nil {
		return 0, err
	}
	return s.queue.CountAhead(ctx, entry.DoctorID, entry.QueueDate, entry.QueueNumber)
}

// MyStatus is the pull-based view a waiting patient polls: their active
// entry plus position and wait estimate.
func (s *Service) MyStatus(ctx context.Context, patientUserID uuid.UUID, date time.Time) (*model.QueueEntryStatus, error) {
	patient, err := s.patients.GetByUserID(ctx, patientUserID)
	if err != nil {
		return nil, err
	}
	entry, err := s.queue.ActiveEntryForPatient(ctx, patient.ID, model.DateOnly(date))
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, apperrors.NotFound("active queue entry", nil)
	}
	return s.withWaitEstimate(ctx, entry)
}

// DoctorQueue lists a doctor's full queue for the day in ticket order, each
// entry carrying its live wait estimate.
func (s *Service) DoctorQueue(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*model.QueueEntryStatus, error) {
	if _, err := s.doctorInClinic(ctx, doctorID); err != nil {
		return nil, err
	}

	entries, err := s.queue.ListForDoctor(ctx, doctorID, model.DateOnly(date))
	if err != nil {
		return nil, err
	}

	statuses := make([]*model.QueueEntryStatus, 0, len(entries))
	for _, entry := range entries {
		status, err := s.withWaitEstimate(ctx, entry)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// CallNext finishes the doctor's current consultation and calls the lowest
// waiting ticket. When nobody is waiting the current consultation is still
// finished and a not-found error is returned.
func (s *Service) CallNext(ctx context.Context, doctorID uuid.UUID) (*model.QueueEntry, error) {
	doctor, err := s.doctorInClinic(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	next, err := s.queue.CallNext(ctx, doctor.ID, model.DateOnly(now), now)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("doctor_id", doctor.ID.String()).
		Int("queue_number", next.QueueNumber).
		Msg("next patient called")

	if patient, err := s.patients.Get(ctx, next.PatientID); err == nil {
		s.notifyQueueUpdate(ctx, patient.Email, next)
	}
	return next, nil
}

// Skip marks an entry SKIPPED. Ticket numbers are never reassigned, so
// skipping does not move anyone else.
func (s *Service) Skip(ctx context.Context, entryID uuid.UUID) (*model.QueueEntry, error) {
	if err := s.queue.Skip(ctx, entryID); err != nil {
		return nil, err
	}
	return s.queue.Get(ctx, entryID)
}

// CompleteConsultation marks an entry DONE directly, for walk-ins served out
// of band without a call-next.
func (s *Service) CompleteConsultation(ctx context.Context, entryID uuid.UUID) (*model.QueueEntry, error) {
	if err := s.queue.CompleteConsultation(ctx, entryID, s.now()); err != nil {
		return nil, err
	}
	return s.queue.Get(ctx, entryID)
}

// withWaitEstimate decorates an entry with its live position and the
// patients-ahead x avg-minutes estimate.
func (s *Service) withWaitEstimate(ctx context.Context, entry *model.QueueEntry) (*model.QueueEntryStatus, error) {
	ahead, err := s.queue.CountAhead(ctx, entry.DoctorID, entry.QueueDate, entry.QueueNumber)
	if err != nil {
		return nil, err
	}
	return &model.QueueEntryStatus{
		QueueEntry:           *entry,
		PatientsAhead:        ahead,
		EstimatedWaitMinutes: ahead * s.avgMinutes,
	}, nil
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

func (s *Service) notifyQueueUpdate(ctx context.Context, recipient string, entry *model.QueueEntry) {
	err := s.notifier.Notify(ctx, &notification.Event{
		Kind:       model.NotificationQueueUpdate,
		Recipient:  recipient,
		QueueEntry: entry,
	})
	if err != nil {
		log.Warn().Err(err).
			Str("entry_id", entry.ID.String()).
			Msg("failed to record queue update notification")
	}
}
