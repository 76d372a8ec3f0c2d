package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medisched/scheduling-api/internal/config"
	"github.com/medisched/scheduling-api/internal/model"
	"github.com/medisched/scheduling-api/internal/service/notification"
	"github.com/medisched/scheduling-api/internal/service/schedule"
	"github.com/medisched/scheduling-api/internal/tenant"
	apperrors "github.com/medisched/scheduling-api/pkg/errors"
	"github.com/medisched/scheduling-api/pkg/metrics"
)

// In-memory repositories backing the service tests. The fakes mirror the
// postgres composites' behavior: Book and Reschedule run the slot-conflict
// and daily-cap checks before writing, and return the same error codes.

type fakeAppointmentRepo struct {
	appointments map[uuid.UUID]*model.Appointment

	reminderSent []uuid.UUID
	candidateErr error
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (r *fakeAppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	appt, ok := r.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	clone := *appt
	return &clone, nil
}

func (r *fakeAppointmentRepo) Book(_ context.Context, appt *model.Appointment, maxDaily int) error {
	if err := r.checkSlot(appt.DoctorID, appt.Date, appt.Time, maxDaily, uuid.Nil); err != nil {
		return err
	}
	appt.ID = uuid.New()
	clone := *appt
	r.appointments[appt.ID] = &clone
	return nil
}

func (r *fakeAppointmentRepo) Reschedule(_ context.Context, id uuid.UUID, newDate time.Time, newTime model.ClockTime, maxDaily int) error {
	appt, ok := r.appointments[id]
	if !ok {
		return apperrors.NotFound("appointment", nil)
	}
	if err := r.checkSlot(appt.DoctorID, newDate, newTime, maxDaily, id); err != nil {
		return err
	}
	appt.Date = newDate
	appt.Time = newTime
	appt.ReminderSent = false
	return nil
}

func (r *fakeAppointmentRepo) checkSlot(doctorID uuid.UUID, date time.Time, t model.ClockTime, maxDaily int, exclude uuid.UUID) error {
	count := 0
	for _, other := range r.appointments {
		if other.ID == exclude || other.DoctorID != doctorID || !other.Date.Equal(date) || !other.Status.Active() {
			continue
		}
		if other.Time == t {
			return apperrors.Conflict("slot already booked", nil)
		}
		count++
	}
	if maxDaily > 0 && count >= maxDaily {
		return apperrors.Capacity("daily limit reached", nil)
	}
	return nil
}

func (r *fakeAppointmentRepo) Update(_ context.Context, appt *model.Appointment) error {
	if _, ok := r.appointments[appt.ID]; !ok {
		return apperrors.NotFound("appointment", nil)
	}
	clone := *appt
	r.appointments[appt.ID] = &clone
	return nil
}

func (r *fakeAppointmentRepo) BookedTimes(_ context.Context, doctorID uuid.UUID, date time.Time) ([]model.ClockTime, error) {
	var times []model.ClockTime
	for _, appt := range r.appointments {
		if appt.DoctorID == doctorID && appt.Date.Equal(date) && appt.Status.Active() {
			times = append(times, appt.Time)
		}
	}
	return times, nil
}

func (r *fakeAppointmentRepo) ListForPatient(_ context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, appt := range r.appointments {
		if appt.PatientID == patientID {
			clone := *appt
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeAppointmentRepo) UpcomingForPatient(_ context.Context, patientID uuid.UUID, from time.Time) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, appt := range r.appointments {
		if appt.PatientID == patientID && !appt.Date.Before(from) {
			clone := *appt
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeAppointmentRepo) ListForDoctorDay(_ context.Context, doctorID uuid.UUID, date time.Time) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, appt := range r.appointments {
		if appt.DoctorID == doctorID && appt.Date.Equal(date) {
			clone := *appt
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeAppointmentRepo) ListForDoctorRange(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, appt := range r.appointments {
		if appt.DoctorID == doctorID && !appt.Date.Before(from) && !appt.Date.After(to) {
			clone := *appt
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeAppointmentRepo) ListForClinicRange(_ context.Context, clinicID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, appt := range r.appointments {
		if appt.ClinicID == clinicID && !appt.Date.Before(from) && !appt.Date.After(to) {
			clone := *appt
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeAppointmentRepo) ReminderCandidates(_ context.Context, windowStart, windowEnd time.Time) ([]*model.Appointment, error) {
	if r.candidateErr != nil {
		return nil, r.candidateErr
	}
	var out []*model.Appointment
	for _, appt := range r.appointments {
		if appt.Status != model.AppointmentStatusConfirmed || appt.ReminderSent {
			continue
		}
		at, err := appt.Time.At(appt.Date)
		if err != nil {
			return nil, err
		}
		if !at.Before(windowStart) && !at.After(windowEnd) {
			clone := *appt
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeAppointmentRepo) MarkReminderSent(_ context.Context, id uuid.UUID) error {
	appt, ok := r.appointments[id]
	if !ok {
		return apperrors.NotFound("appointment", nil)
	}
	appt.ReminderSent = true
	r.reminderSent = append(r.reminderSent, id)
	return nil
}

func (r *fakeAppointmentRepo) MarkNoShows(_ context.Context, before time.Time) (int64, error) {
	var marked int64
	for _, appt := range r.appointments {
		if appt.Status == model.AppointmentStatusConfirmed && appt.Date.Before(before) {
			appt.Status = model.AppointmentStatusNoShow
			marked++
		}
	}
	return marked, nil
}

type fakeDoctorRepo struct {
	doctors map[uuid.UUID]*model.Doctor
}

func newFakeDoctorRepo() *fakeDoctorRepo {
	return &fakeDoctorRepo{doctors: make(map[uuid.UUID]*model.Doctor)}
}

func (r *fakeDoctorRepo) Create(_ context.Context, doctor *model.Doctor) error {
	if doctor.ID == uuid.Nil {
		doctor.ID = uuid.New()
	}
	r.doctors[doctor.ID] = doctor
	return nil
}

func (r *fakeDoctorRepo) Get(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	doctor, ok := r.doctors[id]
	if !ok {
		return nil, apperrors.NotFound("doctor", nil)
	}
	return doctor, nil
}

func (r *fakeDoctorRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*model.Doctor, error) {
	for _, doctor := range r.doctors {
		if doctor.UserID == userID {
			return doctor, nil
		}
	}
	return nil, apperrors.NotFound("doctor", nil)
}

func (r *fakeDoctorRepo) Update(_ context.Context, doctor *model.Doctor) error {
	r.doctors[doctor.ID] = doctor
	return nil
}

func (r *fakeDoctorRepo) List(_ context.Context, clinicID uuid.UUID) ([]*model.Doctor, error) {
	var out []*model.Doctor
	for _, doctor := range r.doctors {
		if doctor.ClinicID == clinicID {
			out = append(out, doctor)
		}
	}
	return out, nil
}

type fakePatientRepo struct {
	patients map[uuid.UUID]*model.Patient
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{patients: make(map[uuid.UUID]*model.Patient)}
}

func (r *fakePatientRepo) Create(_ context.Context, patient *model.Patient) error {
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	r.patients[patient.ID] = patient
	return nil
}

func (r *fakePatientRepo) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	patient, ok := r.patients[id]
	if !ok {
		return nil, apperrors.NotFound("patient", nil)
	}
	return patient, nil
}

func (r *fakePatientRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*model.Patient, error) {
	for _, patient := range r.patients {
		if patient.UserID == userID {
			return patient, nil
		}
	}
	return nil, apperrors.NotFound("patient", nil)
}

type fakeScheduleRepo struct {
	blocks []*model.ScheduleBlock
}

func (r *fakeScheduleRepo) Create(_ context.Context, block *model.ScheduleBlock) error {
	if block.ID == uuid.Nil {
		block.ID = uuid.New()
	}
	r.blocks = append(r.blocks, block)
	return nil
}

func (r *fakeScheduleRepo) BlocksFor(_ context.Context, doctorID uuid.UUID, weekday time.Weekday) ([]*model.ScheduleBlock, error) {
	var out []*model.ScheduleBlock
	for _, block := range r.blocks {
		if block.DoctorID == doctorID && block.Weekday == weekday && block.Active {
			out = append(out, block)
		}
	}
	return out, nil
}

func (r *fakeScheduleRepo) ListForDoctor(_ context.Context, doctorID uuid.UUID) ([]*model.ScheduleBlock, error) {
	var out []*model.ScheduleBlock
	for _, block := range r.blocks {
		if block.DoctorID == doctorID {
			out = append(out, block)
		}
	}
	return out, nil
}

func (r *fakeScheduleRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	for _, block := range r.blocks {
		if block.ID == id {
			block.Active = active
			return nil
		}
	}
	return apperrors.NotFound("schedule block", nil)
}

// recordingNotifier captures notification events; failOn forces a delivery
// error for one recipient.
type recordingNotifier struct {
	events []*notification.Event
	failOn string
}

func (n *recordingNotifier) Notify(_ context.Context, event *notification.Event) error {
	if n.failOn != "" && event.Recipient == n.failOn {
		return errors.New("delivery refused")
	}
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) kinds() []model.NotificationKind {
	out := make([]model.NotificationKind, 0, len(n.events))
	for _, event := range n.events {
		out = append(out, event.Kind)
	}
	return out
}

type fixture struct {
	svc          *Service
	appointments *fakeAppointmentRepo
	doctors      *fakeDoctorRepo
	patients     *fakePatientRepo
	blocks       *fakeScheduleRepo
	notifier     *recordingNotifier

	ctx       context.Context
	clinicID  uuid.UUID
	doctor    *model.Doctor
	patient   *model.Patient
	userID    uuid.UUID
	docUserID uuid.UUID
}

func testConfig() config.SchedulingConfig {
	return config.SchedulingConfig{
		SlotDurationMinutes:  30,
		AvgMinutesPerPatient: 15,
		ReminderHoursBefore:  24,
		DefaultDailyCap:      20,
	}
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	f := &fixture{
		appointments: newFakeAppointmentRepo(),
		doctors:      newFakeDoctorRepo(),
		patients:     newFakePatientRepo(),
		blocks:       &fakeScheduleRepo{},
		notifier:     &recordingNotifier{},
		clinicID:     uuid.New(),
		userID:       uuid.New(),
		docUserID:    uuid.New(),
	}
	f.ctx = tenant.WithClinic(context.Background(), f.clinicID)

	f.doctor = &model.Doctor{
		Base:                 model.Base{ID: uuid.New()},
		ClinicID:             f.clinicID,
		UserID:               f.docUserID,
		FullName:             "Asha Rao",
		MaxDailyAppointments: 3,
		Available:            true,
	}
	require.NoError(t, f.doctors.Create(f.ctx, f.doctor))

	f.patient = &model.Patient{
		Base:     model.Base{ID: uuid.New()},
		ClinicID: f.clinicID,
		UserID:   f.userID,
		FullName: "Ravi Menon",
		Email:    "ravi@example.com",
	}
	require.NoError(t, f.patients.Create(f.ctx, f.patient))

	scheduleSvc := schedule.NewService(f.doctors, f.blocks)
	f.svc = NewService(f.appointments, f.doctors, f.patients, scheduleSvc, f.notifier, testConfig(), opts...)
	return f
}

func (f *fixture) book(t *testing.T, date, at string) *model.Appointment {
	t.Helper()
	appt, err := f.svc.Book(f.ctx, f.userID, &model.BookAppointmentRequest{
		DoctorID: f.doctor.ID,
		Date:     date,
		Time:     model.ClockTime(at),
		Reason:   "checkup",
	})
	require.NoError(t, err)
	return appt
}

func TestBookAppointment(t *testing.T) {
	f := newFixture(t)

	appt := f.book(t, "2026-09-07", "09:30")
	assert.Equal(t, model.AppointmentStatusConfirmed, appt.Status)
	assert.Equal(t, f.patient.ID, appt.PatientID)
	assert.Equal(t, f.clinicID, appt.ClinicID)
	assert.Equal(t, []model.NotificationKind{model.NotificationConfirmation}, f.notifier.kinds())
}

func TestBookSlotConflict(t *testing.T) {
	f := newFixture(t)
	f.book(t, "2026-09-07", "09:30")

	otherUser := uuid.New()
	require.NoError(t, f.patients.Create(f.ctx, &model.Patient{
		Base: model.Base{ID: uuid.New()}, ClinicID: f.clinicID, UserID: otherUser, Email: "b@example.com",
	}))

	_, err := f.svc.Book(f.ctx, otherUser, &model.BookAppointmentRequest{
		DoctorID: f.doctor.ID,
		Date:     "2026-09-07",
		Time:     "09:30",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "Dr. Asha Rao")
	// The losing attempt must not send a confirmation.
	assert.Len(t, f.notifier.events, 1)
}

func TestBookRejectsNonCanonicalTime(t *testing.T) {
	f := newFixture(t)
	f.book(t, "2026-09-07", "09:30")

	// "9:30" and "09:30" are different strings; if the single-digit form got
	// through, both could occupy the same wall-clock slot.
	_, err := f.svc.Book(f.ctx, f.userID, &model.BookAppointmentRequest{
		DoctorID: f.doctor.ID,
		Date:     "2026-09-07",
		Time:     "9:30",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))
	assert.Len(t, f.appointments.appointments, 1)

	_, err = f.svc.Reschedule(f.ctx, f.book(t, "2026-09-07", "10:00").ID, f.userID, &model.RescheduleAppointmentRequest{
		NewDate: "2026-09-07",
		NewTime: "9:30",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))
}

func TestBookingMetrics(t *testing.T) {
	m := metrics.NewMetrics("test", "api", prometheus.NewRegistry())
	f := newFixture(t, WithMetrics(m))

	f.book(t, "2026-09-07", "09:00")

	otherUser := uuid.New()
	require.NoError(t, f.patients.Create(f.ctx, &model.Patient{
		Base: model.Base{ID: uuid.New()}, ClinicID: f.clinicID, UserID: otherUser, Email: "b@example.com",
	}))
	_, err := f.svc.Book(f.ctx, otherUser, &model.BookAppointmentRequest{
		DoctorID: f.doctor.ID,
		Date:     "2026-09-07",
		Time:     "09:00",
	})
	require.Error(t, err)

	f.book(t, "2026-09-07", "09:30")
	f.book(t, "2026-09-07", "10:00")
	_, err = f.svc.Book(f.ctx, f.userID, &model.BookAppointmentRequest{
		DoctorID: f.doctor.ID,
		Date:     "2026-09-07",
		Time:     "10:30",
	})
	require.Error(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.BookingsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BookingConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CapacityRejections))
}

func TestBookDailyCap(t *testing.T) {
	f := newFixture(t)
	f.book(t, "2026-09-07", "09:00")
	f.book(t, "2026-09-07", "09:30")
	f.book(t, "2026-09-07", "10:00")

	_, err := f.svc.Book(f.ctx, f.userID, &model.BookAppointmentRequest{
		DoctorID: f.doctor.ID,
		Date:     "2026-09-07",
		Time:     "10:30",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCapacity, apperrors.CodeOf(err))

	// A different day is unaffected by the cap.
	f.book(t, "2026-09-08", "09:00")
}

func TestBookCancelledSlotReopens(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "2026-09-07", "09:30")

	require.NoError(t, f.svc.Cancel(f.ctx, appt.ID, f.userID, "feeling better"))

	rebooked := f.book(t, "2026-09-07", "09:30")
	assert.NotEqual(t, appt.ID, rebooked.ID)
}

func TestBookRequiresClinicContext(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Book(context.Background(), f.userID, &model.BookAppointmentRequest{
		DoctorID: f.doctor.ID,
		Date:     "2026-09-07",
		Time:     "09:30",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrConfiguration, apperrors.CodeOf(err))
}

func TestBookDoctorFromAnotherClinic(t *testing.T) {
	f := newFixture(t)

	foreign := &model.Doctor{
		Base:     model.Base{ID: uuid.New()},
		ClinicID: uuid.New(),
		UserID:   uuid.New(),
		FullName: "Elsewhere",
	}
	require.NoError(t, f.doctors.Create(f.ctx, foreign))

	_, err := f.svc.Book(f.ctx, f.userID, &model.BookAppointmentRequest{
		DoctorID: foreign.ID,
		Date:     "2026-09-07",
		Time:     "09:30",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}

func TestBookUnavailableDoctor(t *testing.T) {
	f := newFixture(t)
	f.doctor.Available = false

	_, err := f.svc.Book(f.ctx, f.userID, &model.BookAppointmentRequest{
		DoctorID: f.doctor.ID,
		Date:     "2026-09-07",
		Time:     "09:30",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidState, apperrors.CodeOf(err))
}

func TestReschedule(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "2026-09-07", "09:30")

	moved, err := f.svc.Reschedule(f.ctx, appt.ID, f.userID, &model.RescheduleAppointmentRequest{
		NewDate: "2026-09-08",
		NewTime: "10:00",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ClockTime("10:00"), moved.Time)
	assert.Equal(t, "2026-09-08", moved.Date.Format("2006-01-02"))
	assert.False(t, moved.ReminderSent)

	// The old slot is free again.
	f.book(t, "2026-09-07", "09:30")
}

func TestRescheduleConflictKeepsOriginalSlot(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "2026-09-07", "09:30")
	f.book(t, "2026-09-08", "10:00")

	_, err := f.svc.Reschedule(f.ctx, appt.ID, f.userID, &model.RescheduleAppointmentRequest{
		NewDate: "2026-09-08",
		NewTime: "10:00",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))

	kept, err := f.svc.Get(f.ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClockTime("09:30"), kept.Time)
	assert.Equal(t, "2026-09-07", kept.Date.Format("2006-01-02"))
}

func TestRescheduleNotOwner(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "2026-09-07", "09:30")

	stranger := uuid.New()
	require.NoError(t, f.patients.Create(f.ctx, &model.Patient{
		Base: model.Base{ID: uuid.New()}, ClinicID: f.clinicID, UserID: stranger,
	}))

	_, err := f.svc.Reschedule(f.ctx, appt.ID, stranger, &model.RescheduleAppointmentRequest{
		NewDate: "2026-09-08",
		NewTime: "10:00",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))
}

func TestRescheduleCancelledAppointment(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "2026-09-07", "09:30")
	require.NoError(t, f.svc.Cancel(f.ctx, appt.ID, f.userID, "conflict"))

	_, err := f.svc.Reschedule(f.ctx, appt.ID, f.userID, &model.RescheduleAppointmentRequest{
		NewDate: "2026-09-08",
		NewTime: "10:00",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidState, apperrors.CodeOf(err))
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "2026-09-07", "09:30")

	require.NoError(t, f.svc.Cancel(f.ctx, appt.ID, f.userID, "conflict"))
	require.NoError(t, f.svc.Cancel(f.ctx, appt.ID, f.userID, "again"))

	cancelled, err := f.svc.Get(f.ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "conflict", *cancelled.CancellationReason)

	// Confirmation + one cancellation; the no-op repeat sends nothing.
	assert.Equal(t, []model.NotificationKind{
		model.NotificationConfirmation,
		model.NotificationCancellation,
	}, f.notifier.kinds())
}

func TestCompleteRequiresOwningDoctor(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "2026-09-07", "09:30")

	otherDoctor := &model.Doctor{
		Base: model.Base{ID: uuid.New()}, ClinicID: f.clinicID, UserID: uuid.New(),
	}
	require.NoError(t, f.doctors.Create(f.ctx, otherDoctor))

	_, err := f.svc.Complete(f.ctx, appt.ID, otherDoctor.UserID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))

	done, err := f.svc.Complete(f.ctx, appt.ID, f.docUserID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, done.Status)
}

func TestAvailableSlots(t *testing.T) {
	f := newFixture(t)

	// Monday 2026-09-07, 09:00-11:00 at 30 minutes => 4 candidates.
	require.NoError(t, f.blocks.Create(f.ctx, &model.ScheduleBlock{
		DoctorID:  f.doctor.ID,
		Weekday:   time.Monday,
		StartTime: "09:00",
		EndTime:   "11:00",
		Active:    true,
	}))

	f.book(t, "2026-09-07", "09:30")

	day := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	slots, err := f.svc.AvailableSlots(f.ctx, f.doctor.ID, day)
	require.NoError(t, err)

	require.Len(t, slots, 4)
	assert.Equal(t, model.Slot{Time: "09:00", Available: true}, slots[0])
	assert.Equal(t, model.Slot{Time: "09:30", Available: false}, slots[1])
	assert.Equal(t, model.Slot{Time: "10:00", Available: true}, slots[2])
	assert.Equal(t, model.Slot{Time: "10:30", Available: true}, slots[3])
}

func TestAvailableSlotsOverlappingBlocksDeduped(t *testing.T) {
	f := newFixture(t)

	for _, window := range [][2]model.ClockTime{{"09:00", "10:00"}, {"09:30", "11:00"}} {
		require.NoError(t, f.blocks.Create(f.ctx, &model.ScheduleBlock{
			DoctorID:  f.doctor.ID,
			Weekday:   time.Monday,
			StartTime: window[0],
			EndTime:   window[1],
			Active:    true,
		}))
	}

	day := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	slots, err := f.svc.AvailableSlots(f.ctx, f.doctor.ID, day)
	require.NoError(t, err)

	seen := make(map[model.ClockTime]int)
	for _, slot := range slots {
		seen[slot.Time]++
	}
	for at, count := range seen {
		assert.Equal(t, 1, count, "slot %s emitted more than once", at)
	}
	assert.Contains(t, seen, model.ClockTime("10:30"))
}

func TestAvailableSlotsPartialSlotExcluded(t *testing.T) {
	f := newFixture(t)

	// 09:00-09:45 fits exactly one 30-minute slot.
	require.NoError(t, f.blocks.Create(f.ctx, &model.ScheduleBlock{
		DoctorID:  f.doctor.ID,
		Weekday:   time.Monday,
		StartTime: "09:00",
		EndTime:   "09:45",
		Active:    true,
	}))

	day := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	slots, err := f.svc.AvailableSlots(f.ctx, f.doctor.ID, day)
	require.NoError(t, err)

	require.Len(t, slots, 1)
	assert.Equal(t, model.ClockTime("09:00"), slots[0].Time)
}

func TestMarkNoShows(t *testing.T) {
	now := time.Date(2026, 9, 10, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return now }))

	past := f.book(t, "2026-09-07", "09:30")
	today := f.book(t, "2026-09-10", "09:30")
	cancelled := f.book(t, "2026-09-08", "10:00")
	require.NoError(t, f.svc.Cancel(f.ctx, cancelled.ID, f.userID, "skip"))

	marked, err := f.svc.MarkNoShows(f.ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	got, _ := f.svc.Get(f.ctx, past.ID)
	assert.Equal(t, model.AppointmentStatusNoShow, got.Status)

	got, _ = f.svc.Get(f.ctx, today.ID)
	assert.Equal(t, model.AppointmentStatusConfirmed, got.Status)

	got, _ = f.svc.Get(f.ctx, cancelled.ID)
	assert.Equal(t, model.AppointmentStatusCancelled, got.Status)

	// Rerunning the sweep finds nothing new.
	marked, err = f.svc.MarkNoShows(f.ctx, now)
	require.NoError(t, err)
	assert.Zero(t, marked)
}

func TestDispatchReminders(t *testing.T) {
	f := newFixture(t)

	due := f.book(t, "2026-09-08", "10:00")
	f.book(t, "2026-09-09", "10:00") // outside the window

	// 24h before 2026-09-08 10:00.
	now := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	sent, err := f.svc.DispatchReminders(f.ctx, now, 24)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []uuid.UUID{due.ID}, f.appointments.reminderSent)

	// The reminder_sent flag keeps a rerun from sending twice.
	sent, err = f.svc.DispatchReminders(f.ctx, now, 24)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestDispatchRemindersFailureDoesNotStarveOthers(t *testing.T) {
	f := newFixture(t)

	f.book(t, "2026-09-08", "10:00")

	otherUser := uuid.New()
	require.NoError(t, f.patients.Create(f.ctx, &model.Patient{
		Base: model.Base{ID: uuid.New()}, ClinicID: f.clinicID, UserID: otherUser, Email: "flaky@example.com",
	}))
	other, err := f.svc.Book(f.ctx, otherUser, &model.BookAppointmentRequest{
		DoctorID: f.doctor.ID,
		Date:     "2026-09-08",
		Time:     "10:30",
	})
	require.NoError(t, err)

	f.notifier.failOn = "flaky@example.com"

	now := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	sent, err := f.svc.DispatchReminders(f.ctx, now, 24)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.NotContains(t, f.appointments.reminderSent, other.ID)

	// The failed reminder stays eligible for the next run.
	f.notifier.failOn = ""
	sent, err = f.svc.DispatchReminders(f.ctx, now, 24)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestDispatchRemindersStorageFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.appointments.candidateErr = errors.New("connection reset")

	_, err := f.svc.DispatchReminders(f.ctx, time.Now(), 24)
	require.Error(t, err)
}
