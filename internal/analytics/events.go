package analytics

import (
	"github.com/wolfman30/clinic-intake/internal/events"
)

// FromBooked maps a booking notification to an analytics event.
func FromBooked(evt events.AppointmentBookedV1) Event {
	return Event{
		Kind:          KindAppointmentBooked,
		UserID:        evt.Phone,
		DisplayName:   evt.PatientName,
		Specialty:     evt.Specialty,
		DoctorName:    evt.DoctorName,
		AppointmentID: evt.AppointmentID,
		At:            evt.OccurredAt,
	}
}

// FromChange maps a reschedule, cancellation or payment. Unknown change
// kinds report false.
func FromChange(evt events.AppointmentChangedV1) (Event, bool) {
	var kind Kind
	switch evt.Change {
	case events.ChangeRescheduled:
		kind = KindRescheduled
	case events.ChangeCancelled:
		kind = KindCancelled
	case events.ChangePaid:
		kind = KindPaymentReceived
	default:
		return Event{}, false
	}
	return Event{
		Kind:          kind,
		UserID:        evt.Phone,
		AppointmentID: evt.AppointmentID,
		At:            evt.OccurredAt,
	}, true
}

// FromEscalation maps a staff escalation.
func FromEscalation(evt events.StaffEscalationV1) Event {
	return Event{
		Kind:        KindEscalation,
		UserID:      evt.UserID,
		DisplayName: evt.DisplayName,
		Detail:      evt.Reason,
		At:          evt.OccurredAt,
	}
}
