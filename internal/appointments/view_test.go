package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/pkg/logging"
)

func fixedNow() time.Time {
	return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
}

func staticSource(appts ...Appointment) Source {
	return SourceFunc(func(context.Context) ([]Appointment, error) {
		return appts, nil
	})
}

func TestViewBucketsAndStats(t *testing.T) {
	today := sampleAppointment("APT-1")
	today.PaymentStatus = PaymentPaid

	tomorrow := sampleAppointment("APT-2")
	tomorrow.Date = "2026-10-16"
	tomorrow.Time = "10:30 AM"

	later := sampleAppointment("APT-3")
	later.Date = "2026-10-17"
	later.Time = "11:00 AM"

	cancelled := sampleAppointment("APT-4")
	cancelled.Time = "5:00 PM"
	cancelled.Status = StatusCancelled

	// same booking seen again by the session store
	inflight := sampleAppointment("APT-1")

	view := NewView([]NamedSource{
		{Name: "store", Source: staticSource(today, tomorrow, later, cancelled)},
		{Name: "sessions", Source: staticSource(inflight)},
	}, time.UTC, logging.Discard(), WithClock(fixedNow))

	listing := view.List(context.Background())
	require.Len(t, listing.Today, 1)
	require.Len(t, listing.Tomorrow, 1)
	require.Len(t, listing.Upcoming, 1)
	assert.Equal(t, "APT-1", listing.Today[0].ID)
	assert.Equal(t, PaymentPaid, listing.Today[0].PaymentStatus)
	assert.False(t, listing.IsPlaceholder)

	assert.Equal(t, 4, listing.Stats.Total)
	assert.Equal(t, 3, listing.Stats.Confirmed)
	assert.Equal(t, 1, listing.Stats.Cancelled)
	assert.Equal(t, 1, listing.Stats.Paid)
	assert.Equal(t, 800, listing.Stats.Revenue)
	assert.Equal(t, 2, listing.Stats.PendingPayment)
}

func TestViewSkipsFailingSource(t *testing.T) {
	broken := SourceFunc(func(context.Context) ([]Appointment, error) {
		return nil, errors.New("down")
	})
	view := NewView([]NamedSource{
		{Name: "history", Source: broken},
		{Name: "store", Source: staticSource(sampleAppointment("APT-1"))},
	}, time.UTC, logging.Discard(), WithClock(fixedNow))

	listing := view.List(context.Background())
	assert.Len(t, listing.Today, 1)
}

func TestViewEmptyListing(t *testing.T) {
	view := NewView(nil, time.UTC, logging.Discard(), WithClock(fixedNow))
	listing := view.List(context.Background())
	assert.False(t, listing.IsPlaceholder)
	assert.Empty(t, listing.Today)
	assert.NotNil(t, listing.Today)

	demo := NewView(nil, time.UTC, logging.Discard(), WithClock(fixedNow), WithPlaceholder(true))
	listing = demo.List(context.Background())
	assert.True(t, listing.IsPlaceholder)
	require.Len(t, listing.Today, 1)
	assert.True(t, listing.Today[0].IsPlaceholder)
	assert.Zero(t, listing.Stats.Total)
}

func TestBucketOf(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	// 20:00 UTC is already the next day in IST
	now := time.Date(2026, 10, 14, 20, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		appt Appointment
		want Day
	}{
		{"literal today", Appointment{Date: "Today"}, DayToday},
		{"literal tomorrow", Appointment{Date: " tomorrow "}, DayTomorrow},
		{"iso today in clinic zone", Appointment{Date: "2026-10-15"}, DayToday},
		{"iso tomorrow in clinic zone", Appointment{Date: "2026-10-16"}, DayTomorrow},
		{"iso yesterday", Appointment{Date: "2026-10-14"}, DayOther},
		{"long form", Appointment{Date: "October 16, 2026"}, DayTomorrow},
		{"scheduled for", Appointment{ScheduledFor: time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)}, DayToday},
		{"slot label only", Appointment{SlotLabel: "Tomorrow"}, DayTomorrow},
		{"garbage", Appointment{Date: "someday"}, DayOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BucketOf(tt.appt, now, loc))
		})
	}
}

func TestIsPast(t *testing.T) {
	now := fixedNow()
	assert.True(t, IsPast(Appointment{Date: "2026-10-14"}, now, nil))
	assert.False(t, IsPast(Appointment{Date: "2026-10-15"}, now, nil))
	assert.False(t, IsPast(Appointment{Date: "Today"}, now, nil))
	assert.False(t, IsPast(Appointment{}, now, nil))
	assert.True(t, IsPast(Appointment{ScheduledFor: now.AddDate(0, 0, -2)}, now, time.UTC))
}
