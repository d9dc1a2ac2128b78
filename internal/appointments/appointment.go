// Package appointments holds the authoritative appointment records and
// the read-side reconciliation that merges every appointment-bearing
// source into one deduplicated list.
package appointments

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when no appointment has the requested id.
var ErrNotFound = errors.New("appointments: not found")

// Status is the booking lifecycle state.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// PaymentStatus tracks the consultation fee separately from Status.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// Appointment is a booked consultation.
type Appointment struct {
	ID            string        `json:"id" bson:"id"`
	PatientName   string        `json:"patient_name" bson:"patient_name"`
	Phone         string        `json:"phone" bson:"phone"`
	DoctorID      string        `json:"doctor_id" bson:"doctor_id"`
	DoctorName    string        `json:"doctor_name" bson:"doctor_name"`
	Specialty     string        `json:"specialty" bson:"specialty"`
	Concern       string        `json:"concern" bson:"concern"`
	Date          string        `json:"date" bson:"date"`
	SlotLabel     string        `json:"slot_label,omitempty" bson:"slot_label"`
	Time          string        `json:"time" bson:"time"`
	Fee           int           `json:"fee" bson:"fee"`
	Status        Status        `json:"status" bson:"status"`
	PaymentStatus PaymentStatus `json:"payment_status,omitempty" bson:"payment_status"`
	PaymentLink   string        `json:"payment_link,omitempty" bson:"payment_link"`
	PaymentRef    string        `json:"payment_ref,omitempty" bson:"payment_ref"`
	ScheduledFor  time.Time     `json:"scheduled_for,omitempty" bson:"scheduled_for"`
	CreatedAt     time.Time     `json:"created_at" bson:"created_at"`
	Source        string        `json:"source,omitempty" bson:"source"`
	IsPlaceholder bool          `json:"is_placeholder,omitempty" bson:"is_placeholder"`
}

// Active reports whether the appointment still holds its slot.
func (a Appointment) Active() bool {
	return a.Status != StatusCancelled
}

// When renders "2026-10-15 2:00 PM" style text for replies and logs.
func (a Appointment) When() string {
	day := a.Date
	if day == "" {
		day = a.SlotLabel
	}
	return strings.TrimSpace(day + " " + a.Time)
}

// DedupKey is the (phone, time, doctor) identity used when two sightings
// carry different or missing ids. It is empty when any part is unknown.
func (a Appointment) DedupKey() string {
	phone := NormalizePhone(a.Phone)
	doctor := a.DoctorID
	if doctor == "" {
		doctor = strings.ToLower(strings.TrimSpace(a.DoctorName))
	}
	day := strings.ToLower(strings.TrimSpace(a.Date))
	if day == "" {
		day = strings.ToLower(strings.TrimSpace(a.SlotLabel))
	}
	clock := strings.ToUpper(strings.Join(strings.Fields(a.Time), " "))
	if phone == "" || doctor == "" || clock == "" {
		return ""
	}
	return phone + "|" + day + "|" + clock + "|" + doctor
}

// NormalizePhone reduces a phone number to its last ten digits so
// "+91 98765-43210", "919876543210" and "9876543210" compare equal.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return digits
}
