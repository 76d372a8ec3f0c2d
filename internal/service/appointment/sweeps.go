package appointment

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/medisched/scheduling-api/internal/model"
	"github.com/medisched/scheduling-api/internal/service/notification"
)

// MarkNoShows transitions every CONFIRMED appointment dated before asOf to
// NO_SHOW. Safe to rerun: it only ever touches CONFIRMED rows. The caller
// owns the timer; the engine just exposes the sweep.
func (s *Service) MarkNoShows(ctx context.Context, asOf time.Time) (int64, error) {
	marked, err := s.appointments.MarkNoShows(ctx, model.DateOnly(asOf))
	if err != nil {
		return 0, err
	}
	if marked > 0 {
		log.Info().Int64("marked", marked).Msg("no-show sweep completed")
	}
	return marked, nil
}

// DispatchReminders notifies patients whose CONFIRMED, not-yet-reminded
// appointments fall inside [now+hoursBefore-1h, now+hoursBefore+1h]. The
// two-hour window catches every appointment due in ~hoursBefore no matter
// where in the hour the caller's timer fires; the reminder_sent flag keeps
// reruns from sending twice.
//
// One patient's notifier failure must not starve the rest: failures are
// logged and the loop continues. Returns the number of reminders recorded.
func (s *Service) DispatchReminders(ctx context.Context, now time.Time, hoursBefore int) (int, error) {
	windowStart := now.Add(time.Duration(hoursBefore-1) * time.Hour)
	windowEnd := now.Add(time.Duration(hoursBefore+1) * time.Hour)

	candidates, err := s.appointments.ReminderCandidates(ctx, windowStart, windowEnd)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, appt := range candidates {
		patient, err := s.patients.Get(ctx, appt.PatientID)
		if err != nil {
			log.Error().Err(err).
				Str("appointment_id", appt.ID.String()).
				Msg("failed to resolve reminder recipient")
			continue
		}

		err = s.notifier.Notify(ctx, &notification.Event{
			Kind:        model.NotificationReminder,
			Recipient:   patient.Email,
			Appointment: appt,
		})
		if err != nil {
			log.Error().Err(err).
				Str("appointment_id", appt.ID.String()).
				Msg("failed to send reminder")
			continue
		}

		if err := s.appointments.MarkReminderSent(ctx, appt.ID); err != nil {
			log.Error().Err(err).
				Str("appointment_id", appt.ID.String()).
				Msg("failed to flag reminder as sent")
			continue
		}
		sent++
	}

	log.Info().
		Int("candidates", len(candidates)).
		Int("sent", sent).
		Msg("reminder sweep completed")
	return sent, nil
}
