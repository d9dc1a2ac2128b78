package catalog

import "time"

// DayHours is the opening window for one weekday in 24-hour "15:04" form.
// A nil *DayHours means closed.
type DayHours struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// BusinessHours maps weekdays to opening windows.
type BusinessHours struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

// Clinic carries the static facts quoted in replies.
type Clinic struct {
	Name             string
	AddressLines     []string
	Room             string
	Phone            string
	MapsURL          string
	NearestHospital  string
	HospitalAddress  string
	HospitalPhone    string
	EmergencyNumber  string
	PaymentLinkBase  string
	Hours            BusinessHours
	Location         *time.Location
	CancellationNote []string
}

// DefaultClinic returns PinkHealth's details in the given timezone.
func DefaultClinic(name string, loc *time.Location) Clinic {
	if name == "" {
		name = "PinkHealth Clinic"
	}
	if loc == nil {
		loc = time.UTC
	}
	weekday := &DayHours{Open: "09:00", Close: "20:00"}
	return Clinic{
		Name:            name,
		AddressLines:    []string{name, "Sector 18, Noida - 201301", "Uttar Pradesh, India"},
		Room:            "Room 205, 2nd Floor",
		Phone:           "+91-120-4567890",
		MapsURL:         "https://maps.google.com/?q=PinkHealth+Clinic+Sector+18+Noida",
		NearestHospital: "Apollo Hospital, Sector 26, Noida",
		HospitalAddress: "Plot No 1, Sector 26, Noida - 201301",
		HospitalPhone:   "+91-120-4566999",
		EmergencyNumber: "108",
		PaymentLinkBase: "https://razorpay.me/pinkhealth",
		Hours: BusinessHours{
			Monday:    weekday,
			Tuesday:   weekday,
			Wednesday: weekday,
			Thursday:  weekday,
			Friday:    weekday,
			Saturday:  weekday,
			Sunday:    &DayHours{Open: "10:00", Close: "18:00"},
		},
		Location: loc,
		CancellationNote: []string{
			"⏰ 24+ hours notice: No fee",
			"⏰ Less than 24 hours: ₹100 fee",
			"⏰ Same day: Full consultation fee",
		},
	}
}

// ForDay returns the hours for a weekday.
func (b BusinessHours) ForDay(weekday time.Weekday) *DayHours {
	switch weekday {
	case time.Sunday:
		return b.Sunday
	case time.Monday:
		return b.Monday
	case time.Tuesday:
		return b.Tuesday
	case time.Wednesday:
		return b.Wednesday
	case time.Thursday:
		return b.Thursday
	case time.Friday:
		return b.Friday
	case time.Saturday:
		return b.Saturday
	default:
		return nil
	}
}

// IsOpenAt reports whether the clinic is open at t in the clinic's
// timezone.
func (c Clinic) IsOpenAt(t time.Time) bool {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	hours := c.Hours.ForDay(local.Weekday())
	if hours == nil {
		return false
	}
	openTime, err := time.Parse("15:04", hours.Open)
	if err != nil {
		return false
	}
	closeTime, err := time.Parse("15:04", hours.Close)
	if err != nil {
		return false
	}
	current := local.Hour()*60 + local.Minute()
	return current >= openTime.Hour()*60+openTime.Minute() && current < closeTime.Hour()*60+closeTime.Minute()
}
