package notify

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/clinic-intake/internal/events"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// EmailSender sends a single email. SendGrid, SES and the stub all
// satisfy it.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string // Plain text body
	HTML    string // Optional HTML body
}

// SendGridSender sends emails via SendGrid API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

const defaultFromName = "PinkHealth Clinic"

// NewSendGridSender returns nil without an API key.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)
	htmlBody := msg.HTML
	if htmlBody == "" {
		htmlBody = msg.Body
	}
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, htmlBody)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", msg.To)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}
	s.logger.Info("email sent via sendgrid", "to", msg.To, "subject", msg.Subject, "status", response.StatusCode)
	return nil
}

// StubEmailSender logs instead of sending.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	s.logger.Info("stub email sender: would send email", "to", msg.To, "subject", msg.Subject)
	return nil
}

// EmailSink mails each booking to the clinic inbox.
type EmailSink struct {
	sender     EmailSender
	recipients []string
	clinicName string
}

// NewEmailSink returns nil when there is no sender or recipient.
func NewEmailSink(sender EmailSender, recipients []string, clinicName string) *EmailSink {
	if sender == nil || len(recipients) == 0 {
		return nil
	}
	if clinicName == "" {
		clinicName = defaultFromName
	}
	return &EmailSink{sender: sender, recipients: recipients, clinicName: clinicName}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Notify(ctx context.Context, evt events.AppointmentBookedV1) error {
	msg := BookingEmail(evt, s.clinicName)
	var errs []error
	for _, to := range s.recipients {
		msg.To = to
		if err := s.sender.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", to, err))
		}
	}
	return errors.Join(errs...)
}

// BookingEmail renders the clinic-facing booking notice.
func BookingEmail(evt events.AppointmentBookedV1, clinicName string) EmailMessage {
	subject := fmt.Sprintf("New Appointment: %s with %s", evt.PatientName, evt.DoctorName)
	body := fmt.Sprintf(`New appointment booked

Appointment ID: %s
Patient: %s
Phone: %s
Doctor: %s
Date: %s
Time: %s
Concern: %s
Fee: ₹%d
Status: %s

— %s`, evt.AppointmentID, evt.PatientName, evt.Phone, evt.DoctorName, evt.Date, evt.Time, orDash(evt.Concern), evt.Fee, evt.Status, clinicName)

	row := func(label, value string) string {
		return fmt.Sprintf(`<tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>%s:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>`,
			label, html.EscapeString(value))
	}
	htmlBody := `<div style="font-family: sans-serif; max-width: 600px;">
<h2 style="color: #db2777;">📅 New Appointment</h2>
<table style="border-collapse: collapse; margin: 20px 0;">` +
		row("Appointment ID", evt.AppointmentID) +
		row("Patient", evt.PatientName) +
		row("Phone", evt.Phone) +
		row("Doctor", evt.DoctorName) +
		row("Date", evt.Date) +
		row("Time", evt.Time) +
		row("Concern", orDash(evt.Concern)) +
		row("Fee", fmt.Sprintf("₹%d", evt.Fee)) +
		`</table>
<p style="color: #6b7280; font-size: 12px; margin-top: 20px;">— ` + html.EscapeString(clinicName) + `</p>
</div>`

	return EmailMessage{Subject: subject, Body: body, HTML: htmlBody}
}
