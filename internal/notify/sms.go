package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/clinic-intake/internal/events"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// SMSSender sends SMS messages to operators.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// SMSSink texts every booking to the clinic's alert numbers.
type SMSSink struct {
	sender     SMSSender
	recipients []string
	logger     *logging.Logger
}

// NewSMSSink returns nil when there is no sender or nobody to text.
func NewSMSSink(sender SMSSender, recipients []string, logger *logging.Logger) *SMSSink {
	if sender == nil || len(recipients) == 0 {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SMSSink{sender: sender, recipients: recipients, logger: logger}
}

func (s *SMSSink) Name() string { return "sms" }

func (s *SMSSink) Notify(ctx context.Context, evt events.AppointmentBookedV1) error {
	body := fmt.Sprintf("📅 New booking %s: %s with %s, %s %s. Phone: %s. Concern: %s",
		evt.AppointmentID, evt.PatientName, evt.DoctorName, evt.Date, evt.Time, evt.Phone, orDash(evt.Concern))

	var errs []error
	for _, to := range s.recipients {
		if err := s.sender.SendSMS(ctx, to, body); err != nil {
			s.logger.Error("notify: failed to send operator SMS", "error", err, "to", to)
			errs = append(errs, err)
			continue
		}
		s.logger.Info("notify: booking SMS sent to operator", "to", to, "appointment_id", evt.AppointmentID)
	}
	return errors.Join(errs...)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
