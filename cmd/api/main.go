package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/medisched/scheduling-api/internal/config"
	"github.com/medisched/scheduling-api/internal/handler"
	appointmentHandler "github.com/medisched/scheduling-api/internal/handler/appointment"
	queueHandler "github.com/medisched/scheduling-api/internal/handler/queue"
	scheduleHandler "github.com/medisched/scheduling-api/internal/handler/schedule"
	"github.com/medisched/scheduling-api/internal/middleware"
	"github.com/medisched/scheduling-api/internal/repository/postgres"
	"github.com/medisched/scheduling-api/internal/router"
	appointmentService "github.com/medisched/scheduling-api/internal/service/appointment"
	"github.com/medisched/scheduling-api/internal/service/notification"
	queueService "github.com/medisched/scheduling-api/internal/service/queue"
	scheduleService "github.com/medisched/scheduling-api/internal/service/schedule"
	"github.com/medisched/scheduling-api/pkg/metrics"
	"github.com/medisched/scheduling-api/pkg/validator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if err := validator.RegisterRules(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validation rules")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	clinicRepo := postgres.NewClinicRepository(db)
	doctorRepo := postgres.NewDoctorRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	scheduleRepo := postgres.NewScheduleRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	queueRepo := postgres.NewQueueRepository(db)
	outboxRepo := postgres.NewOutboxRepository(postgres.NewBaseRepository(db))

	notifier := notification.NewOutboxNotifier(outboxRepo)
	m := metrics.NewMetrics("scheduling", "api", prometheus.DefaultRegisterer)

	scheduleSvc := scheduleService.NewService(doctorRepo, scheduleRepo,
		scheduleService.WithDefaultDailyCap(cfg.Scheduling.DefaultDailyCap))
	appointmentSvc := appointmentService.NewService(
		appointmentRepo, doctorRepo, patientRepo, scheduleSvc, notifier, cfg.Scheduling,
		appointmentService.WithMetrics(m))
	queueSvc := queueService.NewService(
		queueRepo, appointmentRepo, doctorRepo, patientRepo, notifier,
		cfg.Scheduling.AvgMinutesPerPatient,
		queueService.WithMetrics(m))

	bookingLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RPS:   50,
		Burst: 100,
	})

	r := router.NewRouter(
		handler.NewHandler(db),
		clinicRepo,
		appointmentHandler.NewHandler(appointmentSvc,
			appointmentHandler.WithThrottle(bookingLimiter.RateLimit())),
		queueHandler.NewHandler(queueSvc),
		scheduleHandler.NewHandler(scheduleSvc),
		router.Config{
			MetricsPrefix: "scheduling_api",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting scheduling API")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
