// Package dashboard is the operator read surface: the reconciled
// appointment list, patient search, the activity feed, metrics and a live
// websocket stream.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/clinic-intake/internal/analytics"
	"github.com/wolfman30/clinic-intake/internal/appointments"
	"github.com/wolfman30/clinic-intake/internal/catalog"
	"github.com/wolfman30/clinic-intake/internal/observability/metrics"
	"github.com/wolfman30/clinic-intake/internal/patients"
	"github.com/wolfman30/clinic-intake/internal/session"
	"github.com/wolfman30/clinic-intake/internal/support"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// PatientSearcher finds patients by name or phone fragment.
type PatientSearcher interface {
	Search(ctx context.Context, query string) ([]patients.Patient, error)
}

// HistoryLookup returns every appointment sighting for a phone.
type HistoryLookup interface {
	Appointments(ctx context.Context, phone string) []appointments.Appointment
}

// EscalationLister lists escalations still waiting for staff.
type EscalationLister interface {
	GetPendingEscalations(ctx context.Context) ([]*support.Escalation, error)
}

// Deps wires a Service. View, Analytics and Catalog are required.
type Deps struct {
	View        *appointments.View
	Patients    PatientSearcher
	History     HistoryLookup
	Analytics   *analytics.Collector
	Catalog     *catalog.Catalog
	Clinic      catalog.Clinic
	Sessions    session.Store
	Escalations EscalationLister
	Gatherer    prometheus.Gatherer
	Sinks       func() []string
	Logger      *logging.Logger
	Now         func() time.Time
}

// Service answers dashboard queries. Every method is read-only.
type Service struct {
	view        *appointments.View
	patients    PatientSearcher
	history     HistoryLookup
	analytics   *analytics.Collector
	catalog     *catalog.Catalog
	clinic      catalog.Clinic
	sessions    session.Store
	escalations EscalationLister
	gatherer    prometheus.Gatherer
	sinks       func() []string
	logger      *logging.Logger
	now         func() time.Time
}

// NewService panics when a required dependency is missing.
func NewService(deps Deps) *Service {
	switch {
	case deps.View == nil:
		panic("dashboard: appointment view required")
	case deps.Analytics == nil:
		panic("dashboard: analytics collector required")
	case deps.Catalog == nil:
		panic("dashboard: catalog required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Clinic.Location == nil {
		deps.Clinic.Location = time.UTC
	}
	return &Service{
		view:        deps.View,
		patients:    deps.Patients,
		history:     deps.History,
		analytics:   deps.Analytics,
		catalog:     deps.Catalog,
		clinic:      deps.Clinic,
		sessions:    deps.Sessions,
		escalations: deps.Escalations,
		gatherer:    deps.Gatherer,
		sinks:       deps.Sinks,
		logger:      deps.Logger,
		now:         deps.Now,
	}
}

// ListAppointments is the reconciled today/tomorrow/upcoming listing.
func (s *Service) ListAppointments(ctx context.Context) appointments.Listing {
	return s.view.List(ctx)
}

// PatientResult is one patient search hit with their bookings.
type PatientResult struct {
	Name             string                     `json:"name"`
	Phone            string                     `json:"phone"`
	LastActivity     *time.Time                 `json:"last_activity,omitempty"`
	AppointmentCount int                        `json:"appointment_count"`
	Appointments     []appointments.Appointment `json:"appointments"`
}

// SearchResponse wraps patient search hits.
type SearchResponse struct {
	Query     string          `json:"query"`
	Results   []PatientResult `json:"results"`
	Count     int             `json:"count"`
	Timestamp time.Time       `json:"timestamp"`
}

// ErrEmptyQuery is returned for a blank patient search.
var ErrEmptyQuery = errors.New("dashboard: query parameter required")

// SearchPatients matches registered patients by name or phone fragment.
func (s *Service) SearchPatients(ctx context.Context, query string) (SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResponse{}, ErrEmptyQuery
	}
	resp := SearchResponse{Query: query, Results: []PatientResult{}, Timestamp: s.now().UTC()}
	if s.patients == nil {
		return resp, nil
	}
	found, err := s.patients.Search(ctx, query)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("dashboard: search patients: %w", err)
	}
	for _, p := range found {
		r := PatientResult{Name: p.Name, Phone: p.Phone, Appointments: []appointments.Appointment{}}
		if !p.LastVisit.IsZero() {
			last := p.LastVisit
			r.LastActivity = &last
		}
		if s.history != nil {
			r.Appointments = s.history.Appointments(ctx, p.Phone)
		}
		r.AppointmentCount = len(r.Appointments)
		resp.Results = append(resp.Results, r)
	}
	resp.Count = len(resp.Results)
	return resp, nil
}

// Activity is the most recent feed entries, newest first.
func (s *Service) Activity(limit int) []analytics.Activity {
	return s.analytics.Activity(limit)
}

// MetricsResponse joins the analytics snapshot with live gauges.
type MetricsResponse struct {
	analytics.Metrics
	ActiveSessions     int                     `json:"active_sessions"`
	PendingEscalations int                     `json:"pending_escalations"`
	HandleLatency      metrics.LatencySnapshot `json:"handle_latency"`
}

// Metrics reports counters, rates and message handling latency.
func (s *Service) Metrics(ctx context.Context) MetricsResponse {
	return MetricsResponse{
		Metrics:            s.analytics.Snapshot(),
		ActiveSessions:     s.activeSessions(ctx),
		PendingEscalations: s.pendingEscalations(ctx),
		HandleLatency:      metrics.HandleLatency(s.gatherer),
	}
}

// DoctorView is a roster entry with today's load.
type DoctorView struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Specialty         string  `json:"specialty"`
	Experience        int     `json:"experience"`
	Rating            float64 `json:"rating"`
	Fee               int     `json:"fee"`
	Available         bool    `json:"available"`
	NextSlot          string  `json:"next_slot"`
	TodayAppointments int     `json:"today_appointments"`
}

// Doctors lists the roster with each doctor's next open slot and the
// number of active bookings they have today.
func (s *Service) Doctors(ctx context.Context) []DoctorView {
	now := s.now()
	listing := s.view.List(ctx)
	today := make(map[string]int)
	for _, a := range listing.Today {
		if !a.IsPlaceholder {
			today[a.DoctorID]++
		}
	}

	var out []DoctorView
	for _, d := range s.catalog.Doctors() {
		v := DoctorView{
			ID:                d.ID,
			Name:              d.Name,
			Specialty:         d.SpecialtyName(),
			Experience:        d.Experience,
			Rating:            d.Rating,
			Fee:               d.Fee,
			TodayAppointments: today[d.ID],
		}
		for _, slot := range d.Slots {
			if slot.At(now, s.clinic.Location).After(now) {
				v.NextSlot = slot.String()
				v.Available = slot.DayOffset == 0
				break
			}
		}
		out = append(out, v)
	}
	return out
}

// StatusResponse is the system overview.
type StatusResponse struct {
	System             string    `json:"system"`
	Status             string    `json:"status"`
	ClinicOpen         bool      `json:"clinic_open"`
	Timezone           string    `json:"timezone"`
	ActiveSessions     int       `json:"active_sessions"`
	PendingEscalations int       `json:"pending_escalations"`
	Sinks              []string  `json:"sinks"`
	UptimeSeconds      int64     `json:"uptime_seconds"`
	Timestamp          time.Time `json:"timestamp"`
}

// Status summarises the running system.
func (s *Service) Status(ctx context.Context) StatusResponse {
	now := s.now()
	snap := s.analytics.Snapshot()
	sinks := []string{}
	if s.sinks != nil {
		sinks = append(sinks, s.sinks()...)
		sort.Strings(sinks)
	}
	return StatusResponse{
		System:             s.clinic.Name,
		Status:             "running",
		ClinicOpen:         s.clinic.IsOpenAt(now),
		Timezone:           s.clinic.Location.String(),
		ActiveSessions:     s.activeSessions(ctx),
		PendingEscalations: s.pendingEscalations(ctx),
		Sinks:              sinks,
		UptimeSeconds:      snap.UptimeSeconds,
		Timestamp:          now.UTC(),
	}
}

func (s *Service) activeSessions(ctx context.Context) int {
	if s.sessions == nil {
		return 0
	}
	list, err := s.sessions.List(ctx)
	if err != nil {
		s.logger.Warn("session count unavailable", "error", err)
		return 0
	}
	return len(list)
}

func (s *Service) pendingEscalations(ctx context.Context) int {
	if s.escalations == nil {
		return 0
	}
	list, err := s.escalations.GetPendingEscalations(ctx)
	if err != nil {
		s.logger.Warn("escalation count unavailable", "error", err)
		return 0
	}
	return len(list)
}
