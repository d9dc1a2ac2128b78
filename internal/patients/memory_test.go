package patients

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryPatients(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.FindPatientByPhone(ctx, "+919811112222")
	assert.ErrorIs(t, err, ErrPatientNotFound)

	created, err := repo.CreatePatient(ctx, Patient{Name: "Ravi", Phone: "+91 98111 12222"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	again, err := repo.CreatePatient(ctx, Patient{Name: "Ravi Kumar", Phone: "9811112222"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, "Ravi Kumar", again.Name)

	found, err := repo.FindPatientByPhone(ctx, "919811112222")
	require.NoError(t, err)
	assert.Equal(t, "Ravi Kumar", found.Name)

	_, err = repo.CreatePatient(ctx, Patient{Name: "No Phone"})
	assert.Error(t, err)
}

func TestMemoryRepositoryAppointmentsUpsert(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	_, err := repo.CreatePatient(ctx, Patient{Name: "Ravi", Phone: "+919811112222"})
	require.NoError(t, err)

	a := appt("APT-1", "2026-10-16", now)
	require.NoError(t, repo.CreateAppointment(ctx, a))
	a.Time = "11:00 AM"
	require.NoError(t, repo.CreateAppointment(ctx, a))

	list, err := repo.GetPatientAppointments(ctx, "9811112222")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "11:00 AM", list[0].Time)

	all, err := repo.ListAppointments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	p, err := repo.FindPatientByPhone(ctx, "9811112222")
	require.NoError(t, err)
	assert.Equal(t, now, p.LastVisit)
}

func TestMemoryRepositorySearch(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	for _, p := range []Patient{
		{Name: "Ravi", Phone: "+919811112222"},
		{Name: "Meera", Phone: "+919833334444"},
		{Name: "Ravina", Phone: "+15550001111"},
	} {
		_, err := repo.CreatePatient(ctx, p)
		require.NoError(t, err)
	}

	byName, _ := repo.Search(ctx, "rav")
	require.Len(t, byName, 2)
	assert.Equal(t, "Ravi", byName[0].Name)

	byPhone, _ := repo.Search(ctx, "3333")
	require.Len(t, byPhone, 1)
	assert.Equal(t, "Meera", byPhone[0].Name)

	everyone, _ := repo.Search(ctx, "")
	assert.Len(t, everyone, 3)
}
