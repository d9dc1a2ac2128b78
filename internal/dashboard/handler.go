package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-intake/internal/appointments"
	"github.com/wolfman30/clinic-intake/internal/bookings"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

const defaultActivityLimit = 50

// Booker creates operator bookings. *bookings.Service satisfies it.
type Booker interface {
	CreateAppointment(ctx context.Context, req bookings.Request) (appointments.Appointment, bool, error)
}

// Handler serves the dashboard JSON API and the live feed.
type Handler struct {
	svc    *Service
	booker Booker
	feed   http.Handler
	logger *logging.Logger
}

// NewHandler builds the dashboard handler. booker and feed are optional;
// without them the booking and feed routes answer 503.
func NewHandler(svc *Service, booker Booker, feed http.Handler, logger *logging.Logger) *Handler {
	if svc == nil {
		panic("dashboard: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, booker: booker, feed: feed, logger: logger}
}

// Routes returns a router with every dashboard endpoint.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

// Register adds the dashboard endpoints to r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/appointments", h.ListAppointments)
	r.Post("/appointments", h.CreateAppointment)
	r.Get("/patients/search", h.SearchPatients)
	r.Get("/activity", h.Activity)
	r.Get("/metrics", h.Metrics)
	r.Get("/doctors", h.Doctors)
	r.Get("/status", h.Status)
	r.Get("/feed", h.Feed)
}

// ListAppointments returns the reconciled listing.
// GET /api/appointments
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ListAppointments(r.Context()))
}

// SearchPatients matches patients by name or phone fragment.
// GET /api/patients/search?query=
func (h *Handler) SearchPatients(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.SearchPatients(r.Context(), r.URL.Query().Get("query"))
	if errors.Is(err, ErrEmptyQuery) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter required"})
		return
	}
	if err != nil {
		h.logger.Error("patient search failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "search failed"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Activity returns the newest feed entries.
// GET /api/activity?limit=
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	limit := defaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": h.svc.Activity(limit)})
}

// GET /api/metrics
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Metrics(r.Context()))
}

// GET /api/doctors
func (h *Handler) Doctors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"doctors": h.svc.Doctors(r.Context())})
}

// GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status(r.Context()))
}

// Feed upgrades to the websocket stream.
// GET /api/feed
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "live feed not configured"})
		return
	}
	h.feed.ServeHTTP(w, r)
}

// BookingRequest is the JSON body of POST /api/appointments. Slot is the
// 1-based option from the doctor's menu.
type BookingRequest struct {
	Phone       string `json:"phone"`
	PatientName string `json:"patient_name"`
	DoctorID    string `json:"doctor_id"`
	Slot        int    `json:"slot"`
	Concern     string `json:"concern"`
}

// BookingResponse reports the appointment and whether it was new.
type BookingResponse struct {
	Appointment appointments.Appointment `json:"appointment"`
	Created     bool                     `json:"created"`
}

// CreateAppointment books on behalf of a patient through the same
// service, and the same duplicate rules, as the conversation.
// POST /api/appointments
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	if h.booker == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "booking not configured"})
		return
	}
	var body BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	req, err := h.svc.bookingRequest(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	appt, created, err := h.booker.CreateAppointment(r.Context(), req)
	if errors.Is(err, bookings.ErrInvalidRequest) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("operator booking failed", "phone", req.Phone, "doctor_id", req.DoctorID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "booking failed"})
		return
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	h.logger.Info("operator booking", "appointment_id", appt.ID, "created", created)
	writeJSON(w, status, BookingResponse{Appointment: appt, Created: created})
}

var (
	errUnknownDoctor = errors.New("unknown doctor_id")
	errBadSlot       = errors.New("slot must be 1, 2 or 3")
)

func (s *Service) bookingRequest(body BookingRequest) (bookings.Request, error) {
	doc, ok := s.catalog.Doctor(strings.TrimSpace(body.DoctorID))
	if !ok {
		return bookings.Request{}, errUnknownDoctor
	}
	slot, ok := doc.Slot(body.Slot)
	if !ok {
		return bookings.Request{}, errBadSlot
	}
	now := s.now()
	name := strings.TrimSpace(body.PatientName)
	if name == "" {
		name = "Patient"
	}
	concern := strings.TrimSpace(body.Concern)
	if concern == "" {
		concern = "Operator booking"
	}
	return bookings.Request{
		Phone:        strings.TrimSpace(body.Phone),
		PatientName:  name,
		DoctorID:     doc.ID,
		DoctorName:   doc.Name,
		Specialty:    doc.SpecialtyName(),
		Concern:      concern,
		Fee:          doc.Fee,
		Date:         slot.Date(now, s.clinic.Location),
		SlotLabel:    slot.Label,
		Time:         slot.Time,
		ScheduledFor: slot.At(now, s.clinic.Location),
		Source:       "dashboard",
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
