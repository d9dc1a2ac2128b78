package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/clinic-intake/internal/events"
)

func TestFromBooked(t *testing.T) {
	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	evt := FromBooked(events.AppointmentBookedV1{
		AppointmentID: "APT-1",
		PatientName:   "Asha",
		DoctorName:    "Dr. John Carter",
		Specialty:     "Cardiology",
		Phone:         "+919876543210",
		OccurredAt:    at,
	})
	assert.Equal(t, KindAppointmentBooked, evt.Kind)
	assert.Equal(t, "+919876543210", evt.UserID)
	assert.Equal(t, "Cardiology", evt.Specialty)
	assert.Equal(t, at, evt.At)
}

func TestFromChange(t *testing.T) {
	tests := map[string]Kind{
		events.ChangeRescheduled: KindRescheduled,
		events.ChangeCancelled:   KindCancelled,
		events.ChangePaid:        KindPaymentReceived,
	}
	for change, want := range tests {
		evt, ok := FromChange(events.AppointmentChangedV1{AppointmentID: "APT-1", Change: change})
		assert.True(t, ok, change)
		assert.Equal(t, want, evt.Kind)
		assert.Equal(t, "APT-1", evt.AppointmentID)
	}

	_, ok := FromChange(events.AppointmentChangedV1{Change: "archived"})
	assert.False(t, ok)
}

func TestBookedEventsFeedTheCollector(t *testing.T) {
	c := NewCollector()
	c.Record(Event{Kind: KindConversationStarted, UserID: "u1"})
	c.Record(FromBooked(events.AppointmentBookedV1{Phone: "u1", Specialty: "Dental", DoctorName: "Dr. Emma Davis", OccurredAt: time.Now()}))
	c.Record(FromEscalation(events.StaffEscalationV1{UserID: "u1", Reason: "help_request", OccurredAt: time.Now()}))

	m := c.Snapshot()
	assert.Equal(t, 1, m.AppointmentsBooked)
	assert.Equal(t, 1, m.Escalations)
	assert.InDelta(t, 100.0, m.ConversionRate, 0.001)
}
