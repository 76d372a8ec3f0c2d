package email

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/medisched/scheduling-api/internal/config"
	"github.com/medisched/scheduling-api/internal/model"
	"github.com/medisched/scheduling-api/internal/service/notification"
)

// Sender delivers notification emails over SMTP.
type Sender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSender(cfg config.EmailConfig) *Sender {
	return &Sender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send renders and delivers one notification event. Events without a
// recipient (queue board updates consumed via the broker) are skipped.
func (s *Sender) Send(event *notification.Event) error {
	if event.Recipient == "" {
		return nil
	}

	subject, body := render(event)
	if subject == "" {
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", event.Recipient)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send %s email: %w", event.Kind, err)
	}
	return nil
}

func render(event *notification.Event) (subject, body string) {
	appt := event.Appointment

	switch event.Kind {
	case model.NotificationConfirmation:
		return "Your appointment is confirmed",
			fmt.Sprintf("Your appointment on %s at %s is confirmed.",
				appt.Date.Format("2006-01-02"), appt.Time)
	case model.NotificationReschedule:
		return "Your appointment was rescheduled",
			fmt.Sprintf("Your appointment has been moved to %s at %s.",
				appt.Date.Format("2006-01-02"), appt.Time)
	case model.NotificationCancellation:
		return "Your appointment was cancelled",
			fmt.Sprintf("Your appointment on %s at %s has been cancelled.",
				appt.Date.Format("2006-01-02"), appt.Time)
	case model.NotificationReminder:
		return "Appointment reminder",
			fmt.Sprintf("Reminder: you have an appointment on %s at %s.",
				appt.Date.Format("2006-01-02"), appt.Time)
	case model.NotificationQueueUpdate:
		return "It's your turn",
			fmt.Sprintf("Ticket %d: the doctor is ready to see you.",
				event.QueueEntry.QueueNumber)
	}
	return "", ""
}
