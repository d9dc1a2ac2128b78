package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClinicIsOpenAt(t *testing.T) {
	c := DefaultClinic("", time.UTC)
	assert.Equal(t, "PinkHealth Clinic", c.Name)

	// 2026-10-12 is a Monday, 2026-10-18 a Sunday.
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"weekday morning", time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC), true},
		{"weekday before open", time.Date(2026, 10, 12, 8, 59, 0, 0, time.UTC), false},
		{"weekday close is exclusive", time.Date(2026, 10, 12, 20, 0, 0, 0, time.UTC), false},
		{"sunday opens late", time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC), false},
		{"sunday afternoon", time.Date(2026, 10, 18, 17, 59, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsOpenAt(tt.at))
		})
	}
}

func TestClinicClosedDay(t *testing.T) {
	c := DefaultClinic("Test Clinic", nil)
	c.Hours.Sunday = nil
	assert.False(t, c.IsOpenAt(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Test Clinic", c.AddressLines[0])
}
