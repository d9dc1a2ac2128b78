package appointments

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// Source yields appointment sightings for the reconciliation view.
type Source interface {
	Appointments(ctx context.Context) ([]Appointment, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Appointment, error)

func (f SourceFunc) Appointments(ctx context.Context) ([]Appointment, error) {
	return f(ctx)
}

// NamedSource labels a source for logging.
type NamedSource struct {
	Name   string
	Source Source
}

// Day is a reconciliation bucket.
type Day int

const (
	DayOther Day = iota
	DayToday
	DayTomorrow
)

// Stats summarises the merged list.
type Stats struct {
	Total          int `json:"total"`
	Confirmed      int `json:"confirmed"`
	Cancelled      int `json:"cancelled"`
	Today          int `json:"today"`
	Tomorrow       int `json:"tomorrow"`
	Upcoming       int `json:"upcoming"`
	Paid           int `json:"paid"`
	PendingPayment int `json:"pending_payment"`
	Revenue        int `json:"revenue"`
}

// Listing is the operator-facing result of View.List.
type Listing struct {
	Today         []Appointment `json:"today"`
	Tomorrow      []Appointment `json:"tomorrow"`
	Upcoming      []Appointment `json:"upcoming"`
	Stats         Stats         `json:"stats"`
	IsPlaceholder bool          `json:"is_placeholder"`
	GeneratedAt   time.Time     `json:"generated_at"`
}

// ViewOption customises a View.
type ViewOption func(*View)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) ViewOption {
	return func(v *View) {
		if now != nil {
			v.now = now
		}
	}
}

// WithPlaceholder makes an empty listing carry one sample record, flagged
// as such, for demo dashboards.
func WithPlaceholder(enabled bool) ViewOption {
	return func(v *View) { v.placeholder = enabled }
}

// View is the read-side merge of every appointment-bearing store.
type View struct {
	sources     []NamedSource
	loc         *time.Location
	now         func() time.Time
	placeholder bool
	logger      *logging.Logger
}

// NewView builds a view over sources given in precedence order.
func NewView(sources []NamedSource, loc *time.Location, logger *logging.Logger, opts ...ViewOption) *View {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	v := &View{
		sources: sources,
		loc:     loc,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Merged returns the deduplicated list across all sources, cancelled
// records included. A failing source is skipped with a warning.
func (v *View) Merged(ctx context.Context) []Appointment {
	lists := make([][]Appointment, 0, len(v.sources))
	for _, src := range v.sources {
		appts, err := src.Source.Appointments(ctx)
		if err != nil {
			v.logger.Warn("appointment source unavailable", "source", src.Name, "error", err)
			continue
		}
		lists = append(lists, appts)
	}
	return Merge(lists...)
}

// List buckets the merged appointments into today, tomorrow and later.
func (v *View) List(ctx context.Context) Listing {
	now := v.now()
	merged := v.Merged(ctx)

	listing := Listing{
		Today:       []Appointment{},
		Tomorrow:    []Appointment{},
		Upcoming:    []Appointment{},
		GeneratedAt: now.UTC(),
	}
	for _, appt := range merged {
		listing.Stats.Total++
		if !appt.Active() {
			listing.Stats.Cancelled++
			continue
		}
		listing.Stats.Confirmed++
		if appt.PaymentStatus == PaymentPaid {
			listing.Stats.Paid++
			listing.Stats.Revenue += appt.Fee
		} else {
			listing.Stats.PendingPayment++
		}
		switch BucketOf(appt, now, v.loc) {
		case DayToday:
			listing.Today = append(listing.Today, appt)
		case DayTomorrow:
			listing.Tomorrow = append(listing.Tomorrow, appt)
		default:
			if isUpcoming(appt, now, v.loc) {
				listing.Upcoming = append(listing.Upcoming, appt)
			}
		}
	}
	sortByTime(listing.Today)
	sortByTime(listing.Tomorrow)
	sortByTime(listing.Upcoming)
	listing.Stats.Today = len(listing.Today)
	listing.Stats.Tomorrow = len(listing.Tomorrow)
	listing.Stats.Upcoming = len(listing.Upcoming)

	if listing.Stats.Confirmed == 0 && v.placeholder {
		listing.IsPlaceholder = true
		listing.Today = []Appointment{placeholderAppointment(now, v.loc)}
	}
	return listing
}

// BucketOf places an appointment on a calendar day relative to now in
// loc. A literal "Today" or "Tomorrow" date is taken at face value.
func BucketOf(appt Appointment, now time.Time, loc *time.Location) Day {
	if day, ok := tokenDay(appt.Date); ok {
		return day
	}
	if d, ok := parseDate(appt.Date, loc); ok {
		return dayRelative(d, now, loc)
	}
	if !appt.ScheduledFor.IsZero() {
		return dayRelative(appt.ScheduledFor.In(loc), now, loc)
	}
	if appt.Date == "" {
		if day, ok := tokenDay(appt.SlotLabel); ok {
			return day
		}
	}
	return DayOther
}

func tokenDay(s string) (Day, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "today":
		return DayToday, true
	case "tomorrow":
		return DayTomorrow, true
	}
	return DayOther, false
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"02/01/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Monday, January 2, 2006",
}

func parseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func dayRelative(d, now time.Time, loc *time.Location) Day {
	today := startOfDay(now, loc)
	day := startOfDay(d, loc)
	switch {
	case day.Equal(today):
		return DayToday
	case day.Equal(today.AddDate(0, 0, 1)):
		return DayTomorrow
	}
	return DayOther
}

func isUpcoming(appt Appointment, now time.Time, loc *time.Location) bool {
	if d, ok := parseDate(appt.Date, loc); ok {
		return d.After(startOfDay(now, loc))
	}
	if !appt.ScheduledFor.IsZero() {
		return appt.ScheduledFor.After(now)
	}
	return strings.EqualFold(strings.TrimSpace(appt.SlotLabel), "day after")
}

func sortByTime(list []Appointment) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].ScheduledFor, list[j].ScheduledFor
		if !a.IsZero() && !b.IsZero() && !a.Equal(b) {
			return a.Before(b)
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

func placeholderAppointment(now time.Time, loc *time.Location) Appointment {
	return Appointment{
		ID:            "PLACEHOLDER",
		PatientName:   "Sample Patient",
		DoctorName:    "Dr. Sarah Smith",
		Specialty:     "General Medicine",
		Date:          startOfDay(now, loc).Format("2006-01-02"),
		Time:          "2:00 PM",
		Status:        StatusConfirmed,
		IsPlaceholder: true,
	}
}

// IsPast reports whether the appointment's day is before today in loc.
// Relative tokens and undated records are never past.
func IsPast(appt Appointment, now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	if _, ok := tokenDay(appt.Date); ok {
		return false
	}
	today := startOfDay(now, loc)
	if d, ok := parseDate(appt.Date, loc); ok {
		return startOfDay(d, loc).Before(today)
	}
	if !appt.ScheduledFor.IsZero() {
		return appt.ScheduledFor.Before(today)
	}
	return false
}
