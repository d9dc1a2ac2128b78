// Package bookings turns completed conversations into confirmed
// appointments and fans the result out to history, durable storage and
// notification sinks.
package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-intake/internal/appointments"
	"github.com/wolfman30/clinic-intake/internal/events"
	"github.com/wolfman30/clinic-intake/internal/patients"
	"github.com/wolfman30/clinic-intake/internal/payments"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

var bookingsTracer = otel.Tracer("clinic.internal.bookings")

// ErrInvalidRequest is returned when a request lacks a phone, doctor or
// slot.
var ErrInvalidRequest = errors.New("bookings: phone, doctor and slot required")

// Request is everything needed to book one consultation.
type Request struct {
	Phone        string
	PatientName  string
	DoctorID     string
	DoctorName   string
	Specialty    string
	Concern      string
	Fee          int
	Date         string
	SlotLabel    string
	Time         string
	ScheduledFor time.Time
	Source       string
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Phone) == "" || r.DoctorID == "" || strings.TrimSpace(r.Time) == "" {
		return ErrInvalidRequest
	}
	return nil
}

// Publisher receives the booking event. notify.Dispatcher satisfies it.
type Publisher interface {
	Publish(evt events.AppointmentBookedV1)
}

// Option configures a Service.
type Option func(*Service)

// WithHistory sets the patient history written synchronously on every
// booking.
func WithHistory(repo patients.Repository) Option {
	return func(s *Service) { s.history = repo }
}

// WithDurable sets the persistent patient repository. Writes to it run in
// the background and only log on failure.
func WithDurable(repo patients.Repository) Option {
	return func(s *Service) { s.durable = repo }
}

func WithLinker(l payments.Linker) Option {
	return func(s *Service) { s.linker = l }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPersistTimeout bounds each background durable write.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

// Service creates and changes appointments.
type Service struct {
	store          appointments.Store
	history        patients.Repository
	durable        patients.Repository
	linker         payments.Linker
	publisher      Publisher
	logger         *logging.Logger
	now            func() time.Time
	persistTimeout time.Duration

	seq atomic.Uint64
	wg  sync.WaitGroup

	// pending holds, per appointment id, the completion channel of the
	// newest queued durable write.
	pendingMu sync.Mutex
	pending   map[string]chan struct{}

	mu          sync.Mutex
	changeHooks []func(events.AppointmentChangedV1)
}

// NewService constructs a bookings service around the authoritative
// appointment store.
func NewService(store appointments.Store, logger *logging.Logger, opts ...Option) *Service {
	if store == nil {
		panic("bookings: appointment store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		store:          store,
		logger:         logger,
		now:            time.Now,
		persistTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers a hook for reschedules, cancellations and payments.
func (s *Service) OnChange(fn func(events.AppointmentChangedV1)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changeHooks = append(s.changeHooks, fn)
}

// CreateAppointment books req. When an active appointment with the same
// phone, day, time and doctor already exists it is returned with
// created=false and no event is published.
func (s *Service) CreateAppointment(ctx context.Context, req Request) (appointments.Appointment, bool, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.create")
	defer span.End()

	if err := req.validate(); err != nil {
		span.RecordError(err)
		return appointments.Appointment{}, false, err
	}
	now := s.now()
	id := s.newID(req.Phone, now)
	span.SetAttributes(
		attribute.String("clinic.appointment_id", id),
		attribute.String("clinic.doctor_id", req.DoctorID),
	)

	appt := appointments.Appointment{
		ID:            id,
		PatientName:   req.PatientName,
		Phone:         req.Phone,
		DoctorID:      req.DoctorID,
		DoctorName:    req.DoctorName,
		Specialty:     req.Specialty,
		Concern:       req.Concern,
		Date:          req.Date,
		SlotLabel:     req.SlotLabel,
		Time:          req.Time,
		Fee:           req.Fee,
		Status:        appointments.StatusConfirmed,
		PaymentStatus: appointments.PaymentPending,
		ScheduledFor:  req.ScheduledFor,
		CreatedAt:     now.UTC(),
		Source:        req.Source,
	}
	if appt.Source == "" {
		appt.Source = "store"
	}
	stored, created, err := s.store.Create(ctx, appt)
	if err != nil {
		span.RecordError(err)
		return appointments.Appointment{}, false, fmt.Errorf("bookings: store appointment: %w", err)
	}
	if !created {
		span.SetAttributes(attribute.Bool("clinic.duplicate", true))
		s.logger.Info("duplicate booking collapsed", "appointment_id", stored.ID, "phone", req.Phone, "doctor_id", req.DoctorID)
		return stored, false, nil
	}

	stored = s.attachPaymentLink(ctx, stored)

	s.recordHistory(ctx, stored)
	s.persist(stored, true)

	if s.publisher != nil {
		s.publisher.Publish(BookedEvent(stored, now))
	}
	s.logger.Info("appointment booked",
		"appointment_id", stored.ID,
		"phone", stored.Phone,
		"doctor_id", stored.DoctorID,
		"when", stored.When(),
	)
	return stored, true, nil
}

// attachPaymentLink asks the linker for a checkout link once the booking
// is known to be new. A linker or store failure leaves the booking
// without a link.
func (s *Service) attachPaymentLink(ctx context.Context, appt appointments.Appointment) appointments.Appointment {
	if s.linker == nil {
		return appt
	}
	link, err := s.linker.PaymentLink(ctx, payments.LinkRequest{
		AppointmentID: appt.ID,
		PatientName:   appt.PatientName,
		Phone:         appt.Phone,
		DoctorName:    appt.DoctorName,
		Fee:           appt.Fee,
	})
	if err != nil {
		s.logger.Warn("payment link unavailable", "appointment_id", appt.ID, "error", err)
	}
	if link == "" {
		return appt
	}
	updated, err := s.store.SetPaymentLink(ctx, appt.ID, link)
	if err != nil {
		s.logger.Warn("payment link not stored", "appointment_id", appt.ID, "error", err)
		appt.PaymentLink = link
		return appt
	}
	return updated
}

// Cancel cancels an appointment.
func (s *Service) Cancel(ctx context.Context, id string) (appointments.Appointment, error) {
	appt, err := s.store.Cancel(ctx, id)
	if err != nil {
		return appointments.Appointment{}, fmt.Errorf("bookings: cancel %s: %w", id, err)
	}
	s.afterChange(ctx, appt, events.ChangeCancelled)
	return appt, nil
}

// Reschedule moves an appointment to a new slot.
func (s *Service) Reschedule(ctx context.Context, id string, change appointments.Change) (appointments.Appointment, error) {
	appt, err := s.store.Reschedule(ctx, id, change)
	if err != nil {
		return appointments.Appointment{}, fmt.Errorf("bookings: reschedule %s: %w", id, err)
	}
	s.afterChange(ctx, appt, events.ChangeRescheduled)
	return appt, nil
}

// MarkPaid records a completed payment. The booking status is unchanged.
func (s *Service) MarkPaid(ctx context.Context, id, reference string) (appointments.Appointment, error) {
	appt, err := s.store.MarkPaid(ctx, id, reference)
	if err != nil {
		return appointments.Appointment{}, fmt.Errorf("bookings: mark paid %s: %w", id, err)
	}
	s.afterChange(ctx, appt, events.ChangePaid)
	return appt, nil
}

// Wait blocks until background persistence finishes.
func (s *Service) Wait() {
	s.wg.Wait()
}

// BookedEvent builds the notification payload for appt.
func BookedEvent(appt appointments.Appointment, at time.Time) events.AppointmentBookedV1 {
	date := appt.Date
	if date == "" {
		date = appt.SlotLabel
	}
	return events.AppointmentBookedV1{
		EventID:       uuid.NewString(),
		AppointmentID: appt.ID,
		PatientName:   appt.PatientName,
		DoctorName:    appt.DoctorName,
		Specialty:     appt.Specialty,
		Time:          appt.Time,
		Date:          date,
		Concern:       appt.Concern,
		Phone:         appt.Phone,
		Status:        string(appt.Status),
		Fee:           appt.Fee,
		PaymentLink:   appt.PaymentLink,
		OccurredAt:    at.UTC(),
	}
}

func (s *Service) afterChange(ctx context.Context, appt appointments.Appointment, kind string) {
	s.recordHistory(ctx, appt)
	s.persist(appt, false)

	evt := events.AppointmentChangedV1{
		EventID:       uuid.NewString(),
		AppointmentID: appt.ID,
		Phone:         appt.Phone,
		Change:        kind,
		Date:          appt.Date,
		Time:          appt.Time,
		OccurredAt:    s.now().UTC(),
	}
	s.mu.Lock()
	hooks := append([]func(events.AppointmentChangedV1){}, s.changeHooks...)
	s.mu.Unlock()
	for _, hook := range hooks {
		hook(evt)
	}
	s.logger.Info("appointment changed", "appointment_id", appt.ID, "change", kind)
}

func (s *Service) recordHistory(ctx context.Context, appt appointments.Appointment) {
	if s.history == nil {
		return
	}
	if err := savePatientAppointment(ctx, s.history, appt, true); err != nil {
		s.logger.Warn("patient history not updated", "appointment_id", appt.ID, "error", err)
	}
}

// persist writes appt to the durable repository in the background. Writes
// for one appointment run in call order, so a slow create cannot land
// after the cancel that followed it.
func (s *Service) persist(appt appointments.Appointment, withPatient bool) {
	if s.durable == nil {
		return
	}
	done := make(chan struct{})
	s.pendingMu.Lock()
	if s.pending == nil {
		s.pending = make(map[string]chan struct{})
	}
	prev := s.pending[appt.ID]
	s.pending[appt.ID] = done
	s.pendingMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			close(done)
			s.pendingMu.Lock()
			if s.pending[appt.ID] == done {
				delete(s.pending, appt.ID)
			}
			s.pendingMu.Unlock()
		}()
		if prev != nil {
			<-prev
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
		defer cancel()
		if err := savePatientAppointment(ctx, s.durable, appt, withPatient); err != nil {
			s.logger.Warn("durable store unavailable, appointment kept in memory", "appointment_id", appt.ID, "error", err)
		}
	}()
}

func savePatientAppointment(ctx context.Context, repo patients.Repository, appt appointments.Appointment, withPatient bool) error {
	if withPatient {
		_, err := repo.FindPatientByPhone(ctx, appt.Phone)
		switch {
		case errors.Is(err, patients.ErrPatientNotFound):
			if _, err := repo.CreatePatient(ctx, patients.Patient{Name: appt.PatientName, Phone: appt.Phone}); err != nil {
				return fmt.Errorf("create patient: %w", err)
			}
		case err != nil:
			return fmt.Errorf("find patient: %w", err)
		}
	}
	if err := repo.CreateAppointment(ctx, appt); err != nil {
		return fmt.Errorf("save appointment: %w", err)
	}
	return nil
}

// newID returns APT-<yyyymmdd>-<seq>-<last4>-<rand>. The sequence keeps
// ids from one process unique, the random suffix covers several processes.
func (s *Service) newID(phone string, now time.Time) string {
	n := s.seq.Add(1)
	digits := appointments.NormalizePhone(phone)
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	if digits == "" {
		digits = "0000"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("APT-%s-%06d-%s-%s", now.Format("20060102"), n, digits, suffix)
}
