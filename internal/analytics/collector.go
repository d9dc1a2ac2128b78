// Package analytics counts what happens in conversations and keeps a
// short activity feed for the dashboard.
package analytics

import (
	"sort"
	"sync"
	"time"
)

// Kind names an analytics event.
type Kind string

const (
	KindMessageReceived     Kind = "message_received"
	KindConversationStarted Kind = "conversation_started"
	KindStepChanged         Kind = "step_changed"
	KindCommand             Kind = "command"
	KindInvalidInput        Kind = "invalid_input"
	KindEmergency           Kind = "emergency"
	KindEscalation          Kind = "escalation"
	KindAppointmentBooked   Kind = "appointment_booked"
	KindRescheduled         Kind = "appointment_rescheduled"
	KindCancelled           Kind = "appointment_cancelled"
	KindPaymentReceived     Kind = "payment_received"
	KindSessionExpired      Kind = "session_expired"
	KindNotificationFailed  Kind = "notification_failed"
	KindOutboundFailed      Kind = "outbound_failed"
)

// Event is one observation. Only the fields relevant to Kind are set.
type Event struct {
	Kind          Kind      `json:"kind"`
	UserID        string    `json:"user_id,omitempty"`
	DisplayName   string    `json:"display_name,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	Specialty     string    `json:"specialty,omitempty"`
	DoctorName    string    `json:"doctor_name,omitempty"`
	AppointmentID string    `json:"appointment_id,omitempty"`
	At            time.Time `json:"at"`
}

// Activity is one dashboard feed entry.
type Activity struct {
	Phone         string    `json:"phone"`
	Patient       string    `json:"patient,omitempty"`
	Action        string    `json:"action"`
	AppointmentID string    `json:"appointment_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Count is a labelled tally.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Metrics is a point-in-time copy of the counters.
type Metrics struct {
	TotalMessages        int       `json:"total_messages"`
	UniqueUsers          int       `json:"unique_users"`
	ConversationsStarted int       `json:"conversations_started"`
	AppointmentsBooked   int       `json:"appointments_booked"`
	Cancellations        int       `json:"cancellations"`
	Reschedules          int       `json:"reschedules"`
	PaymentsReceived     int       `json:"payments_received"`
	Emergencies          int       `json:"emergencies"`
	Escalations          int       `json:"escalations"`
	InvalidInputs        int       `json:"invalid_inputs"`
	ExpiredSessions      int       `json:"expired_sessions"`
	NotificationFailures int       `json:"notification_failures"`
	OutboundFailures     int       `json:"outbound_failures"`
	ConversionRate       float64   `json:"conversion_rate"`
	CancellationRate     float64   `json:"cancellation_rate"`
	PopularSpecialties   []Count   `json:"popular_specialties"`
	PopularDoctors       []Count   `json:"popular_doctors"`
	Commands             []Count   `json:"commands"`
	StepVisits           []Count   `json:"step_visits"`
	HourlyMessages       [24]int   `json:"hourly_messages"`
	HourlyBookings       [24]int   `json:"hourly_bookings"`
	StartedAt            time.Time `json:"started_at"`
	UptimeSeconds        int64     `json:"uptime_seconds"`
}

// Option configures a Collector.
type Option func(*Collector)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLocation sets the zone used for the hourly histogram.
func WithLocation(loc *time.Location) Option {
	return func(c *Collector) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithFeedLimit bounds the activity feed.
func WithFeedLimit(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.feedLimit = n
		}
	}
}

// Collector is safe for concurrent use.
type Collector struct {
	now       func() time.Time
	loc       *time.Location
	feedLimit int
	startedAt time.Time

	mu          sync.Mutex
	counts      map[Kind]int
	users       map[string]struct{}
	specialties map[string]int
	doctors     map[string]int
	commands    map[string]int
	steps       map[string]int
	hourlyMsgs  [24]int
	hourlyBooks [24]int
	feed        []Activity
	listeners   []func(Activity)
}

func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		now:         time.Now,
		loc:         time.UTC,
		feedLimit:   50,
		counts:      make(map[Kind]int),
		users:       make(map[string]struct{}),
		specialties: make(map[string]int),
		doctors:     make(map[string]int),
		commands:    make(map[string]int),
		steps:       make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.startedAt = c.now()
	return c
}

// Subscribe registers fn for every new activity entry. fn runs on the
// recording goroutine and must not block.
func (c *Collector) Subscribe(fn func(Activity)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Record counts evt and appends a feed entry when the event is worth
// showing.
func (c *Collector) Record(evt Event) {
	if evt.At.IsZero() {
		evt.At = c.now()
	}
	hour := evt.At.In(c.loc).Hour()

	c.mu.Lock()
	c.counts[evt.Kind]++
	switch evt.Kind {
	case KindMessageReceived:
		if evt.UserID != "" {
			c.users[evt.UserID] = struct{}{}
		}
		c.hourlyMsgs[hour]++
	case KindAppointmentBooked:
		c.hourlyBooks[hour]++
		if evt.Specialty != "" {
			c.specialties[evt.Specialty]++
		}
		if evt.DoctorName != "" {
			c.doctors[evt.DoctorName]++
		}
	case KindCommand:
		c.commands[evt.Detail]++
	case KindStepChanged:
		c.steps[evt.Detail]++
	}

	var listeners []func(Activity)
	act, ok := activityFor(evt)
	if ok {
		c.feed = append(c.feed, act)
		if len(c.feed) > c.feedLimit {
			c.feed = append([]Activity(nil), c.feed[len(c.feed)-c.feedLimit:]...)
		}
		listeners = append(listeners, c.listeners...)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(act)
	}
}

// Activity returns up to limit feed entries, newest first. limit <= 0
// returns the whole feed.
func (c *Collector) Activity(limit int) []Activity {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.feed)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Activity, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, c.feed[i])
	}
	return out
}

// Snapshot returns the current counters.
func (c *Collector) Snapshot() Metrics {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	m := Metrics{
		TotalMessages:        c.counts[KindMessageReceived],
		UniqueUsers:          len(c.users),
		ConversationsStarted: c.counts[KindConversationStarted],
		AppointmentsBooked:   c.counts[KindAppointmentBooked],
		Cancellations:        c.counts[KindCancelled],
		Reschedules:          c.counts[KindRescheduled],
		PaymentsReceived:     c.counts[KindPaymentReceived],
		Emergencies:          c.counts[KindEmergency],
		Escalations:          c.counts[KindEscalation],
		InvalidInputs:        c.counts[KindInvalidInput],
		ExpiredSessions:      c.counts[KindSessionExpired],
		NotificationFailures: c.counts[KindNotificationFailed],
		OutboundFailures:     c.counts[KindOutboundFailed],
		PopularSpecialties:   ranked(c.specialties),
		PopularDoctors:       ranked(c.doctors),
		Commands:             ranked(c.commands),
		StepVisits:           ranked(c.steps),
		HourlyMessages:       c.hourlyMsgs,
		HourlyBookings:       c.hourlyBooks,
		StartedAt:            c.startedAt,
		UptimeSeconds:        int64(now.Sub(c.startedAt).Seconds()),
	}
	if m.ConversationsStarted > 0 {
		m.ConversionRate = percent(m.AppointmentsBooked, m.ConversationsStarted)
	}
	if m.AppointmentsBooked > 0 {
		m.CancellationRate = percent(m.Cancellations, m.AppointmentsBooked)
	}
	return m
}

func percent(n, d int) float64 {
	return float64(int(float64(n)/float64(d)*1000+0.5)) / 10
}

func ranked(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for name, n := range m {
		out = append(out, Count{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func activityFor(evt Event) (Activity, bool) {
	var action string
	switch evt.Kind {
	case KindConversationStarted:
		action = "Started conversation"
	case KindStepChanged:
		action = stepActions[evt.Detail]
	case KindAppointmentBooked:
		action = "Booking completed"
	case KindRescheduled:
		action = "Appointment rescheduled"
	case KindCancelled:
		action = "Appointment cancelled"
	case KindPaymentReceived:
		action = "Payment received"
	case KindEmergency:
		action = "Emergency reported"
	case KindEscalation:
		action = "Staff escalation: " + evt.Detail
	}
	if action == "" {
		return Activity{}, false
	}
	return Activity{
		Phone:         evt.UserID,
		Patient:       evt.DisplayName,
		Action:        action,
		AppointmentID: evt.AppointmentID,
		Timestamp:     evt.At,
	}, true
}

var stepActions = map[string]string{
	"patient_details":  "Sharing patient details",
	"health_concern":   "Describing concern",
	"doctor_selection": "Choosing doctor",
	"time_selection":   "Choosing time slot",
	"confirmation":     "Confirming appointment",
	"reschedule":       "Rescheduling",
	"cancel":           "Cancelling",
}
