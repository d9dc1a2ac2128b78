package patients

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/internal/appointments"
)

var now = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func appt(id, date string, created time.Time) appointments.Appointment {
	return appointments.Appointment{
		ID:          id,
		PatientName: "Ravi",
		Phone:       "+919811112222",
		DoctorID:    "dr_brown",
		DoctorName:  "Dr. Michael Brown",
		Date:        date,
		Time:        "10:30 AM",
		Status:      appointments.StatusConfirmed,
		CreatedAt:   created,
	}
}

func TestDeriveStatusNewPatient(t *testing.T) {
	st := DeriveStatus(nil, nil, now, time.UTC)
	assert.True(t, st.IsNew)
	assert.False(t, st.IsReturning)
	assert.False(t, st.HasActiveAppointments)
	assert.Zero(t, st.AppointmentCount)
	assert.NotNil(t, st.Appointments)
}

func TestDeriveStatusReturningWithoutUpcoming(t *testing.T) {
	past := appt("APT-old", "2026-09-01", now.AddDate(0, -2, 0))
	st := DeriveStatus(nil, []appointments.Appointment{past}, now, time.UTC)
	assert.True(t, st.IsReturning)
	assert.False(t, st.HasActiveAppointments)
	assert.Equal(t, 1, st.AppointmentCount)
	assert.Equal(t, "dr_brown", st.LastDoctorID)
	assert.Equal(t, "Ravi", st.PatientName)
}

func TestDeriveStatusActiveAppointmentsSorted(t *testing.T) {
	later := appt("APT-2", "2026-10-17", now.Add(-time.Hour))
	later.ScheduledFor = time.Date(2026, 10, 17, 11, 0, 0, 0, time.UTC)
	sooner := appt("APT-1", "2026-10-16", now.Add(-2*time.Hour))
	sooner.ScheduledFor = time.Date(2026, 10, 16, 10, 30, 0, 0, time.UTC)
	cancelled := appt("APT-3", "2026-10-16", now)
	cancelled.Status = appointments.StatusCancelled

	p := &Patient{Name: "Ravi Kumar", Phone: "+919811112222"}
	st := DeriveStatus(p, []appointments.Appointment{later, sooner, cancelled}, now, time.UTC)
	require.True(t, st.HasActiveAppointments)
	require.Len(t, st.Appointments, 2)
	assert.Equal(t, "APT-1", st.Appointments[0].ID)
	assert.Equal(t, 2, st.AppointmentCount)
	assert.Equal(t, "Ravi Kumar", st.PatientName)
	assert.True(t, st.IsReturning)
	assert.False(t, st.IsNew)
}

func TestDeriveStatusKnownPatientNoAppointments(t *testing.T) {
	st := DeriveStatus(&Patient{Name: "Meera"}, nil, now, time.UTC)
	assert.True(t, st.IsReturning)
	assert.Equal(t, "Meera", st.PatientName)
	assert.Empty(t, st.LastDoctorID)
}
