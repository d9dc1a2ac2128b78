package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/internal/appointments"
	"github.com/wolfman30/clinic-intake/internal/patients"
	"github.com/wolfman30/clinic-intake/internal/session"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

func bookedSession(t *testing.T, store session.Store, id, name string, now time.Time) {
	t.Helper()
	sess := session.New(patientPhone, name, patients.Status{}, now)
	sess.Step = session.StepPostBooking
	sess.Data = session.Data{
		PatientName:   name,
		DoctorID:      "dr_john",
		DoctorName:    "Dr. John Carter",
		SlotOption:    1,
		SlotDate:      "Today",
		SlotTime:      "2:00 PM",
		AppointmentID: id,
	}
	require.NoError(t, store.Put(context.Background(), sess))
}

func historyAppointment(id, name string) appointments.Appointment {
	return appointments.Appointment{
		ID:          id,
		PatientName: name,
		Phone:       patientPhone,
		DoctorID:    "dr_john",
		DoctorName:  "Dr. John Carter",
		Date:        "Today",
		Time:        "2:00 PM",
		Status:      appointments.StatusConfirmed,
	}
}

func TestReconciliationSourcesPrecedence(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := appointments.NewMemoryStore()
	sessions := session.NewMemoryStore()
	history := patients.NewMemoryRepository()
	durable := patients.NewMemoryRepository()

	bookedSession(t, sessions, "APT-X", "Session Name", now)
	require.NoError(t, history.CreateAppointment(ctx, historyAppointment("APT-X", "History Name")))
	require.NoError(t, durable.CreateAppointment(ctx, historyAppointment("APT-X", "Database Name")))

	sources := reconciliationSources(store, sessions, history, durable)
	names := make([]string, 0, len(sources))
	for _, src := range sources {
		names = append(names, src.Name)
	}
	assert.Equal(t, []string{"store", "sessions", "history", "database"}, names)

	view := appointments.NewView(sources, time.UTC, logging.Discard(), appointments.WithClock(clock))
	listing := view.List(ctx)
	require.Len(t, listing.Today, 1)
	assert.Equal(t, "Session Name", listing.Today[0].PatientName, "live sessions outrank patient history")

	stored := historyAppointment("APT-X", "Store Name")
	stored.CreatedAt = now
	_, _, err := store.Create(ctx, stored)
	require.NoError(t, err)

	listing = view.List(ctx)
	require.Len(t, listing.Today, 1)
	assert.Equal(t, "Store Name", listing.Today[0].PatientName, "the appointment store outranks everything")
}

func TestReconciliationSourcesWithoutDurableStore(t *testing.T) {
	sources := reconciliationSources(appointments.NewMemoryStore(), session.NewMemoryStore(), patients.NewMemoryRepository(), nil)
	require.Len(t, sources, 3)
	assert.Equal(t, "history", sources[2].Name)
}
