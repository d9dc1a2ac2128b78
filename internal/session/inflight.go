package session

import (
	"context"

	"github.com/wolfman30/clinic-intake/internal/appointments"
)

// InFlightSource exposes bookings still attached to live sessions to the
// reconciliation view.
type InFlightSource struct {
	store Store
}

// NewInFlightSource wraps store.
func NewInFlightSource(store Store) *InFlightSource {
	return &InFlightSource{store: store}
}

// Appointments lists one sighting per session that sits in post_booking
// or already references an appointment id.
func (s *InFlightSource) Appointments(ctx context.Context) ([]appointments.Appointment, error) {
	sessions, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []appointments.Appointment
	for _, sess := range sessions {
		if sess.Step != StepPostBooking && sess.Data.AppointmentID == "" {
			continue
		}
		if !sess.Data.HasSlot() {
			continue
		}
		out = append(out, appointments.Appointment{
			ID:          sess.Data.AppointmentID,
			PatientName: sess.Data.PatientName,
			Phone:       sess.UserID,
			DoctorID:    sess.Data.DoctorID,
			DoctorName:  sess.Data.DoctorName,
			Specialty:   sess.Data.Specialty,
			Concern:     sess.Data.HealthConcern,
			Date:        sess.Data.SlotDate,
			SlotLabel:   sess.Data.SlotLabel,
			Time:        sess.Data.SlotTime,
			Fee:         sess.Data.Fee,
			Status:      appointments.StatusConfirmed,
			Source:      "session",
		})
	}
	return out, nil
}
