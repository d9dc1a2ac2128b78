package catalog

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format stored on appointments.
const DateLayout = "2006-01-02"

// Slot is one entry of a doctor's fixed three-slot menu, expressed
// relative to the day the patient books.
type Slot struct {
	DayOffset int    `json:"day_offset"`
	Label     string `json:"label"`
	Time      string `json:"time"`
}

// StandardSlots is the menu every doctor offers.
func StandardSlots() [3]Slot {
	return [3]Slot{
		{DayOffset: 0, Label: "Today", Time: "2:00 PM"},
		{DayOffset: 1, Label: "Tomorrow", Time: "10:30 AM"},
		{DayOffset: 2, Label: "Day After", Time: "11:00 AM"},
	}
}

// String renders "Today at 2:00 PM".
func (s Slot) String() string {
	return fmt.Sprintf("%s at %s", s.Label, s.Time)
}

// Date is the calendar date of the slot relative to now in loc.
func (s Slot) Date(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, s.DayOffset)
	return day.Format(DateLayout)
}

// At is the wall-clock start of the slot relative to now in loc. A slot
// time that fails to parse yields midnight of the slot's day.
func (s Slot) At(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, s.DayOffset)
	clock, err := time.Parse("3:04 PM", strings.ToUpper(strings.TrimSpace(s.Time)))
	if err != nil {
		return day
	}
	return day.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute)
}
