package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInFlightSource(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	booked := sampleSession("+911")
	booked.Step = StepPostBooking
	booked.Data = Data{
		PatientName:   "Asha",
		DoctorID:      "dr_john",
		DoctorName:    "Dr. John Carter",
		SlotOption:    1,
		SlotLabel:     "Today",
		SlotTime:      "2:00 PM",
		SlotDate:      "2026-10-15",
		Fee:           800,
		AppointmentID: "APT-1",
	}
	require.NoError(t, store.Put(ctx, booked))

	browsing := sampleSession("+912")
	browsing.Step = StepTimeSelection
	browsing.Data.SlotOption = 1
	require.NoError(t, store.Put(ctx, browsing))

	list, err := NewInFlightSource(store).Appointments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "APT-1", list[0].ID)
	assert.Equal(t, "+911", list[0].Phone)
	assert.Equal(t, 800, list[0].Fee)
	assert.Equal(t, "session", list[0].Source)
}
