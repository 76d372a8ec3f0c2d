package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NotificationKind classifies the engine events handed to the notifier.
type NotificationKind string

const (
	NotificationConfirmation NotificationKind = "CONFIRMATION"
	NotificationReschedule   NotificationKind = "RESCHEDULE"
	NotificationCancellation NotificationKind = "CANCELLATION"
	NotificationReminder     NotificationKind = "REMINDER"
	NotificationQueueUpdate  NotificationKind = "QUEUE_UPDATE"
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusRetry      OutboxStatus = "retry"
	OutboxStatusProcessed  OutboxStatus = "processed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// OutboxEvent is a pending notification recorded after the owning engine
// transaction commits. The worker drains the table and fans events out to the
// broker and the mailer; delivery failures never propagate into bookings.
type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}
