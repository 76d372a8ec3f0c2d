package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/medisched/scheduling-api/internal/model"
	"github.com/medisched/scheduling-api/internal/repository"
	"github.com/medisched/scheduling-api/internal/service/notification"
	"github.com/medisched/scheduling-api/pkg/messaging"
	"github.com/medisched/scheduling-api/pkg/metrics"
)

// EmailSender is the mail half of outbox delivery.
type EmailSender interface {
	Send(event *notification.Event) error
}

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	MaxRetries    int
}

// OutboxProcessor drains the notification outbox: each claimed event is
// published on the broker and, when it carries a recipient, mailed. An event
// that keeps failing is parked as failed after MaxRetries rather than
// clogging the queue.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	mailer  EmailSender
	config  OutboxProcessorConfig
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	mailer EmailSender,
	config OutboxProcessorConfig,
	m *metrics.Metrics,
) *OutboxProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 5
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		mailer:  mailer,
		config:  config,
		metrics: m,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	log.Info().Msg("starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.processEvents(ctx); err != nil {
				log.Error().Err(err).Msg("failed to drain outbox")
			}
		}
	}
}

func (p *OutboxProcessor) processEvents(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.PendingWithLock(ctx, p.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending events: %w", err)
	}

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			log.Error().Err(err).
				Str("event_id", event.ID.String()).
				Str("event_type", event.EventType).
				Msg("failed to deliver outbox event")
		}
	}
	return nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	err := p.deliver(ctx, event)
	if err == nil {
		p.metrics.OutboxEventsProcessed.Inc()
		return p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusProcessed, nil, nil)
	}

	errStr := err.Error()
	if event.RetryCount+1 >= p.config.MaxRetries {
		p.metrics.OutboxEventsFailed.Inc()
		if updateErr := p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusFailed, &errStr, nil); updateErr != nil {
			log.Error().Err(updateErr).Str("event_id", event.ID.String()).Msg("failed to park event")
		}
		return err
	}

	p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	retryAt := time.Now().Add(p.config.RetryDelay * time.Duration(event.RetryCount+1))
	if updateErr := p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusRetry, &errStr, &retryAt); updateErr != nil {
		log.Error().Err(updateErr).Str("event_id", event.ID.String()).Msg("failed to schedule retry")
	}
	return err
}

// deliver publishes on the broker and mails the recipient. Both legs retry
// in-process before the event goes back to the table.
func (p *OutboxProcessor) deliver(ctx context.Context, event *model.OutboxEvent) error {
	if err := retry(p.config.RetryAttempts, p.config.RetryDelay, func() error {
		return p.broker.Publish(ctx, channelFor(event.EventType), event.Payload)
	}); err != nil {
		return fmt.Errorf("broker publish: %w", err)
	}

	if p.mailer == nil {
		return nil
	}

	var notif notification.Event
	if err := json.Unmarshal(event.Payload, &notif); err != nil {
		return fmt.Errorf("malformed event payload: %w", err)
	}

	if err := retry(p.config.RetryAttempts, p.config.RetryDelay, func() error {
		return p.mailer.Send(&notif)
	}); err != nil {
		return fmt.Errorf("email delivery: %w", err)
	}
	return nil
}

func channelFor(eventType string) string {
	return "scheduling." + eventType
}

func retry(attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
