package appointments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeByIDPrefersEarlierSource(t *testing.T) {
	store := sampleAppointment("APT-1")
	store.PatientName = "Asha Rao"
	store.PaymentLink = ""

	session := sampleAppointment("APT-1")
	session.PatientName = "asha"
	session.PaymentLink = "https://pay/1"

	merged := Merge([]Appointment{store}, []Appointment{session})
	require.Len(t, merged, 1)
	assert.Equal(t, "Asha Rao", merged[0].PatientName)
	assert.Equal(t, "https://pay/1", merged[0].PaymentLink)
}

func TestMergeByTripleWhenIDsDiffer(t *testing.T) {
	store := sampleAppointment("APT-1")
	history := sampleAppointment("")
	history.Phone = "9876543210"
	history.Concern = "chest pain on stairs"

	merged := Merge([]Appointment{store}, nil, []Appointment{history})
	require.Len(t, merged, 1)
	assert.Equal(t, "APT-1", merged[0].ID)
	assert.Equal(t, "chest pain on stairs", merged[0].Concern)
}

func TestMergeKeepsDistinctSlots(t *testing.T) {
	a := sampleAppointment("APT-1")
	b := sampleAppointment("APT-2")
	b.Time = "10:30 AM"
	merged := Merge([]Appointment{a, b})
	assert.Len(t, merged, 2)
}

func TestMergeCancelledOnlyMatchesByID(t *testing.T) {
	cancelled := sampleAppointment("APT-1")
	cancelled.Status = StatusCancelled
	rebooked := sampleAppointment("APT-2")
	rebooked.Status = StatusConfirmed

	merged := Merge([]Appointment{cancelled, rebooked})
	require.Len(t, merged, 2)

	// history still shows the old one as confirmed, the store wins
	stale := sampleAppointment("APT-1")
	stale.Status = StatusConfirmed
	merged = Merge([]Appointment{cancelled}, []Appointment{stale})
	require.Len(t, merged, 1)
	assert.Equal(t, StatusCancelled, merged[0].Status)
}

func TestMergeSameSourceDuplicates(t *testing.T) {
	a := sampleAppointment("APT-1")
	b := sampleAppointment("APT-1")
	c := sampleAppointment("")
	merged := Merge([]Appointment{a, b, c})
	assert.Len(t, merged, 1)
}

func TestMergeEmpty(t *testing.T) {
	assert.Empty(t, Merge())
	assert.Empty(t, Merge(nil, []Appointment{}))
}
