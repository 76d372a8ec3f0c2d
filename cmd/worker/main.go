package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/medisched/scheduling-api/internal/config"
	"github.com/medisched/scheduling-api/internal/email"
	"github.com/medisched/scheduling-api/internal/repository/postgres"
	appointmentService "github.com/medisched/scheduling-api/internal/service/appointment"
	"github.com/medisched/scheduling-api/internal/service/notification"
	scheduleService "github.com/medisched/scheduling-api/internal/service/schedule"
	sweepWorker "github.com/medisched/scheduling-api/internal/worker"
	"github.com/medisched/scheduling-api/pkg/logger"
	"github.com/medisched/scheduling-api/pkg/messaging/redis"
	"github.com/medisched/scheduling-api/pkg/metrics"
	"github.com/medisched/scheduling-api/pkg/worker"
)

// WorkerConfig is read from the environment; the worker runs headless and
// carries no yaml file.
type WorkerConfig struct {
	DatabaseHost     string `envconfig:"DB_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DB_PORT" default:"5432"`
	DatabaseUser     string `envconfig:"DB_USER" default:"postgres"`
	DatabasePassword string `envconfig:"DB_PASSWORD" required:"true"`
	DatabaseName     string `envconfig:"DB_NAME" default:"scheduling"`
	DatabaseSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	RedisURL string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`

	SMTPHost     string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	EmailFrom    string `envconfig:"EMAIL_FROM" default:"noreply@medisched.io"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	HealthPort int `envconfig:"HEALTH_PORT" default:"8081"`

	OutboxBatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE" default:"50"`
	OutboxPollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"5s"`
	OutboxMaxRetries   int           `envconfig:"OUTBOX_MAX_RETRIES" default:"5"`

	ReminderInterval     time.Duration `envconfig:"REMINDER_INTERVAL" default:"1h"`
	ReminderHoursBefore  int           `envconfig:"REMINDER_HOURS_BEFORE" default:"24"`
	NoShowInterval       time.Duration `envconfig:"NO_SHOW_INTERVAL" default:"24h"`
	AvgMinutesPerPatient int           `envconfig:"AVG_MINUTES_PER_PATIENT" default:"15"`
	SlotDurationMinutes  int           `envconfig:"SLOT_DURATION_MINUTES" default:"30"`
}

func main() {
	var cfg WorkerConfig
	if err := envconfig.Process("scheduling", &cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load worker configuration")
	}

	logger.Setup(logger.Config{Level: cfg.LogLevel})

	db, err := postgres.NewDB(config.DatabaseConfig{
		Host:     cfg.DatabaseHost,
		Port:     cfg.DatabasePort,
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Name:     cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewBroker(redis.Config{URL: cfg.RedisURL})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer broker.Close()

	doctorRepo := postgres.NewDoctorRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	scheduleRepo := postgres.NewScheduleRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	outboxRepo := postgres.NewOutboxRepository(postgres.NewBaseRepository(db))

	notifier := notification.NewOutboxNotifier(outboxRepo)
	scheduleSvc := scheduleService.NewService(doctorRepo, scheduleRepo)
	appointmentSvc := appointmentService.NewService(
		appointmentRepo, doctorRepo, patientRepo, scheduleSvc, notifier,
		config.SchedulingConfig{
			SlotDurationMinutes:  cfg.SlotDurationMinutes,
			AvgMinutesPerPatient: cfg.AvgMinutesPerPatient,
			ReminderHoursBefore:  cfg.ReminderHoursBefore,
		})

	m := metrics.NewMetrics("scheduling", "worker", prometheus.DefaultRegisterer)

	mailer := email.NewSender(config.EmailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.EmailFrom,
	})

	processor := worker.NewOutboxProcessor(outboxRepo, broker, mailer, worker.OutboxProcessorConfig{
		BatchSize:    cfg.OutboxBatchSize,
		PollInterval: cfg.OutboxPollInterval,
		MaxRetries:   cfg.OutboxMaxRetries,
	}, m)

	sweeper := sweepWorker.NewSweeper(appointmentSvc, outboxRepo, sweepWorker.SweeperConfig{
		ReminderInterval:    cfg.ReminderInterval,
		ReminderHoursBefore: cfg.ReminderHoursBefore,
		NoShowInterval:      cfg.NoShowInterval,
	}, m)

	serveHealth(cfg.HealthPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("shutting down worker...")
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		sweeper.Start(ctx)
	}()
	wg.Wait()

	log.Info().Msg("worker exited properly")
}

func serveHealth(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		addr := fmt.Sprintf(":%d", port)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Msg("health server failed")
			os.Exit(1)
		}
	}()
}
