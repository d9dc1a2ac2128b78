// Package session owns per-user conversation state: the Session type,
// its stores, the per-key lock that serialises dispatch, and the idle
// sweeper.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/clinic-intake/internal/patients"
)

// ErrNotFound is returned when a user has no live session.
var ErrNotFound = errors.New("session: not found")

// Data is the free-form bag the step handlers fill in.
type Data struct {
	PatientName    string `json:"patient_name,omitempty"`
	PatientDetails string `json:"patient_details,omitempty"`
	BookingForSelf bool   `json:"booking_for_self"`
	HealthConcern  string `json:"health_concern,omitempty"`
	// ConcernFollowUp is set while the "not sure" sub-menu is showing.
	ConcernFollowUp bool   `json:"concern_follow_up,omitempty"`
	Specialty       string `json:"specialty,omitempty"`
	DoctorID        string `json:"doctor_id,omitempty"`
	DoctorName      string `json:"doctor_name,omitempty"`
	Fee             int    `json:"fee,omitempty"`
	SlotOption      int    `json:"slot_option,omitempty"`
	SlotLabel       string `json:"slot_label,omitempty"`
	SlotTime        string `json:"slot_time,omitempty"`
	SlotDate        string `json:"slot_date,omitempty"`
	AppointmentID   string `json:"appointment_id,omitempty"`
	// TargetAppointmentID is the existing booking a reschedule or cancel
	// flow acts on.
	TargetAppointmentID string `json:"target_appointment_id,omitempty"`
}

// HasSlot reports whether a doctor and slot have been chosen.
func (d Data) HasSlot() bool {
	return d.DoctorID != "" && d.SlotOption > 0
}

// Session is one user's live conversation.
type Session struct {
	UserID       string           `json:"user_id"`
	DisplayName  string           `json:"display_name,omitempty"`
	Step         Step             `json:"step"`
	Data         Data             `json:"data"`
	Status       *patients.Status `json:"status,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	LastActivity time.Time        `json:"last_activity"`
}

// New starts a session at the welcome step.
func New(userID, displayName string, status patients.Status, now time.Time) *Session {
	return &Session{
		UserID:       userID,
		DisplayName:  displayName,
		Step:         StepWelcomeResponse,
		Status:       &status,
		StartedAt:    now,
		LastActivity: now,
	}
}

// Clone returns a deep copy so stores never share mutable state with
// callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Status != nil {
		st := *s.Status
		st.Appointments = append(st.Appointments[:0:0], s.Status.Appointments...)
		out.Status = &st
	}
	return &out
}

// Idle reports whether the session has seen no activity for timeout.
func (s *Session) Idle(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity) >= timeout
}

// Store persists sessions keyed by user identifier.
type Store interface {
	Get(ctx context.Context, userID string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID string) error
	List(ctx context.Context) ([]*Session, error)
}
