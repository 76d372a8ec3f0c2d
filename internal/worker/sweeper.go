package worker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/medisched/scheduling-api/internal/repository"
	"github.com/medisched/scheduling-api/internal/service/appointment"
	"github.com/medisched/scheduling-api/pkg/metrics"
)

type SweeperConfig struct {
	ReminderInterval    time.Duration
	ReminderHoursBefore int
	NoShowInterval      time.Duration
	OutboxRetention     time.Duration
}

// Sweeper owns the timers for the engine's background passes: hourly
// reminders, the daily no-show sweep and outbox table cleanup. The engine
// exposes the sweeps as plain functions; scheduling lives here. A failed run
// is logged and retried on the next tick, never fatal.
type Sweeper struct {
	appointments *appointment.Service
	outbox       repository.OutboxRepository
	config       SweeperConfig
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewSweeper(
	appointments *appointment.Service,
	outbox repository.OutboxRepository,
	config SweeperConfig,
	m *metrics.Metrics,
) *Sweeper {
	if config.ReminderInterval <= 0 {
		config.ReminderInterval = time.Hour
	}
	if config.ReminderHoursBefore <= 0 {
		config.ReminderHoursBefore = 24
	}
	if config.NoShowInterval <= 0 {
		config.NoShowInterval = 24 * time.Hour
	}
	if config.OutboxRetention <= 0 {
		config.OutboxRetention = 7 * 24 * time.Hour
	}

	return &Sweeper{
		appointments: appointments,
		outbox:       outbox,
		config:       config,
		metrics:      m,
		now:          time.Now,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	reminders := time.NewTicker(s.config.ReminderInterval)
	noShows := time.NewTicker(s.config.NoShowInterval)
	cleanup := time.NewTicker(s.config.OutboxRetention / 7)
	defer reminders.Stop()
	defer noShows.Stop()
	defer cleanup.Stop()

	log.Info().
		Dur("reminder_interval", s.config.ReminderInterval).
		Dur("no_show_interval", s.config.NoShowInterval).
		Msg("starting sweeper")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down sweeper")
			return
		case <-reminders.C:
			s.runReminders(ctx)
		case <-noShows.C:
			s.runNoShows(ctx)
		case <-cleanup.C:
			s.runOutboxCleanup(ctx)
		}
	}
}

func (s *Sweeper) runReminders(ctx context.Context) {
	timer := prometheus.NewTimer(s.metrics.SweepDuration.WithLabelValues("reminders"))
	defer timer.ObserveDuration()

	sent, err := s.appointments.DispatchReminders(ctx, s.now(), s.config.ReminderHoursBefore)
	if err != nil {
		log.Error().Err(err).Msg("reminder sweep failed, will retry next tick")
		return
	}
	s.metrics.SweepRows.WithLabelValues("reminders").Add(float64(sent))
}

func (s *Sweeper) runNoShows(ctx context.Context) {
	timer := prometheus.NewTimer(s.metrics.SweepDuration.WithLabelValues("no_shows"))
	defer timer.ObserveDuration()

	marked, err := s.appointments.MarkNoShows(ctx, s.now())
	if err != nil {
		log.Error().Err(err).Msg("no-show sweep failed, will retry next tick")
		return
	}
	s.metrics.SweepRows.WithLabelValues("no_shows").Add(float64(marked))
}

func (s *Sweeper) runOutboxCleanup(ctx context.Context) {
	deleted, err := s.outbox.DeleteProcessedBefore(ctx, s.now().Add(-s.config.OutboxRetention))
	if err != nil {
		log.Error().Err(err).Msg("outbox cleanup failed, will retry next tick")
		return
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Msg("outbox cleanup completed")
	}
}
