package bookings

import (
	"errors"
	"time"

	"github.com/wolfman30/clinic-intake/internal/session"
)

// ErrIncompleteSession is returned when a session has no doctor or slot.
var ErrIncompleteSession = errors.New("bookings: session has no doctor or slot selected")

// RequestFromSession builds a booking request from a conversation that
// reached confirmation. scheduledFor may be zero when the slot time could
// not be resolved.
func RequestFromSession(sess *session.Session, scheduledFor time.Time) (Request, error) {
	if sess == nil || !sess.Data.HasSlot() {
		return Request{}, ErrIncompleteSession
	}
	d := sess.Data
	name := d.PatientName
	if name == "" {
		name = sess.DisplayName
	}
	return Request{
		Phone:        sess.UserID,
		PatientName:  name,
		DoctorID:     d.DoctorID,
		DoctorName:   d.DoctorName,
		Specialty:    d.Specialty,
		Concern:      d.HealthConcern,
		Fee:          d.Fee,
		Date:         d.SlotDate,
		SlotLabel:    d.SlotLabel,
		Time:         d.SlotTime,
		ScheduledFor: scheduledFor,
		Source:       "store",
	}, nil
}
