// Package events defines the immutable payloads that leave the booking
// engine.
package events

import "time"

// AppointmentBookedV1 is emitted exactly once per newly created
// appointment, after the appointment store write.
type AppointmentBookedV1 struct {
	EventID       string    `json:"event_id"`
	AppointmentID string    `json:"appointment_id"`
	PatientName   string    `json:"patient_name"`
	DoctorName    string    `json:"doctor_name"`
	Specialty     string    `json:"specialty,omitempty"`
	Time          string    `json:"time"`
	Date          string    `json:"date"`
	Concern       string    `json:"concern"`
	Phone         string    `json:"phone"`
	Status        string    `json:"status"`
	Fee           int       `json:"fee,omitempty"`
	PaymentLink   string    `json:"payment_link,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// AppointmentChangedV1 describes a later change to an existing booking.
type AppointmentChangedV1 struct {
	EventID       string    `json:"event_id"`
	AppointmentID string    `json:"appointment_id"`
	Phone         string    `json:"phone"`
	Change        string    `json:"change"`
	Date          string    `json:"date,omitempty"`
	Time          string    `json:"time,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Appointment change kinds.
const (
	ChangeRescheduled = "rescheduled"
	ChangeCancelled   = "cancelled"
	ChangePaid        = "paid"
)

// StaffEscalationV1 asks a human to step in.
type StaffEscalationV1 struct {
	EventID      string    `json:"event_id"`
	EscalationID string    `json:"escalation_id"`
	UserID       string    `json:"user_id"`
	DisplayName  string    `json:"display_name,omitempty"`
	Reason       string    `json:"reason"`
	Priority     string    `json:"priority"`
	Message      string    `json:"message"`
	OccurredAt   time.Time `json:"occurred_at"`
}
