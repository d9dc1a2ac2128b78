// Package conversation is the booking state machine: it routes each
// inbound message to the emergency override, a global command, a fresh
// start or the handler for the session's current step, and sends exactly
// one reply.
package conversation

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-intake/internal/analytics"
	"github.com/wolfman30/clinic-intake/internal/appointments"
	"github.com/wolfman30/clinic-intake/internal/bookings"
	"github.com/wolfman30/clinic-intake/internal/catalog"
	"github.com/wolfman30/clinic-intake/internal/patients"
	"github.com/wolfman30/clinic-intake/internal/session"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

var conversationTracer = otel.Tracer("clinic.internal.conversation")

// Sender delivers one reply. The messaging outbox satisfies it.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// Recorder receives analytics events.
type Recorder interface {
	Record(evt analytics.Event)
}

// Escalator hands a conversation to staff without blocking.
type Escalator interface {
	EscalateEmergency(phone, name, message string)
	EscalateHelpRequest(phone, name, message string)
	EscalatePatientQuestion(phone, name, message string)
}

// Booker creates and changes appointments.
type Booker interface {
	CreateAppointment(ctx context.Context, req bookings.Request) (appointments.Appointment, bool, error)
	Cancel(ctx context.Context, id string) (appointments.Appointment, error)
	Reschedule(ctx context.Context, id string, change appointments.Change) (appointments.Appointment, error)
}

// PatientLookup answers who a phone number belongs to.
type PatientLookup interface {
	Status(ctx context.Context, phone string) patients.Status
	Appointments(ctx context.Context, phone string) []appointments.Appointment
}

// LatencyObserver records how long one message took to handle.
type LatencyObserver interface {
	ObserveHandle(route string, seconds float64)
}

// Deps wires an Engine. Sessions, Locker, Catalog, Bookings,
// Appointments, Patients and Sender are required.
type Deps struct {
	Sessions     session.Store
	Locker       *session.Locker
	Catalog      *catalog.Catalog
	Clinic       catalog.Clinic
	Bookings     Booker
	Appointments appointments.Store
	Patients     PatientLookup
	Sender       Sender
	Escalations  Escalator
	Recorders    []Recorder
	Latency      LatencyObserver
	Logger       *logging.Logger
	Now          func() time.Time
}

type stepHandler func(ctx context.Context, sess *session.Session, input string) (outcome, error)

// Engine is safe for concurrent use. Messages for one user are handled
// one at a time; different users run in parallel.
type Engine struct {
	sessions     session.Store
	locker       *session.Locker
	catalog      *catalog.Catalog
	clinic       catalog.Clinic
	bookings     Booker
	appointments appointments.Store
	patients     PatientLookup
	sender       Sender
	escalations  Escalator
	recorders    []Recorder
	latency      LatencyObserver
	replies      replies
	logger       *logging.Logger
	now          func() time.Time
	handlers     map[session.Step]stepHandler
}

// NewEngine panics when a required dependency is missing.
func NewEngine(deps Deps) *Engine {
	switch {
	case deps.Sessions == nil:
		panic("conversation: session store required")
	case deps.Locker == nil:
		panic("conversation: locker required")
	case deps.Catalog == nil:
		panic("conversation: catalog required")
	case deps.Bookings == nil:
		panic("conversation: booking service required")
	case deps.Appointments == nil:
		panic("conversation: appointment store required")
	case deps.Patients == nil:
		panic("conversation: patient lookup required")
	case deps.Sender == nil:
		panic("conversation: sender required")
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
	e := &Engine{
		sessions:     deps.Sessions,
		locker:       deps.Locker,
		catalog:      deps.Catalog,
		clinic:       deps.Clinic,
		bookings:     deps.Bookings,
		appointments: deps.Appointments,
		patients:     deps.Patients,
		sender:       deps.Sender,
		escalations:  deps.Escalations,
		recorders:    deps.Recorders,
		latency:      deps.Latency,
		replies:      replies{catalog: deps.Catalog, clinic: deps.Clinic},
		logger:       deps.Logger,
		now:          deps.Now,
	}
	e.handlers = map[session.Step]stepHandler{
		session.StepWelcomeResponse: e.welcomeResponse,
		session.StepPatientDetails:  e.patientDetails,
		session.StepHealthConcern:   e.healthConcern,
		session.StepDoctorSelection: e.doctorSelection,
		session.StepTimeSelection:   e.timeSelection,
		session.StepConfirmation:    e.confirmation,
		session.StepPostBooking:     e.postBooking,
		session.StepReschedule:      e.reschedule,
		session.StepCancel:          e.cancel,
	}
	return e
}

// OnMessage handles one inbound message and sends exactly one reply. It
// holds the user's lock for the whole step; outbound delivery, staff
// alerts and notifications complete after it returns.
func (e *Engine) OnMessage(ctx context.Context, userID, text, displayName string) {
	started := time.Now()
	unlock := e.locker.Lock(userID)
	defer unlock()

	ctx, span := conversationTracer.Start(ctx, "conversation.on_message")
	defer span.End()

	e.record(analytics.Event{Kind: analytics.KindMessageReceived, UserID: userID, DisplayName: displayName})

	sess, err := e.sessions.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			span.RecordError(err)
			e.logger.Warn("session load failed, starting over", "user_id", userID, "error", err)
		}
		sess = nil
	}

	decision := Classify(text, sess != nil)
	span.SetAttributes(
		attribute.String("clinic.user_id", userID),
		attribute.String("clinic.route", decision.Route.String()),
	)
	e.logger.Debug("message routed", "user_id", userID, "route", decision.Route.String(), "command", string(decision.Command))

	switch decision.Route {
	case RouteEmergency:
		e.emergency(ctx, userID, displayName, text, decision.Keyword)
	case RouteCommand:
		e.command(ctx, sess, userID, displayName, text, decision.Command)
	case RouteStart:
		e.start(ctx, userID, displayName)
	default:
		e.continueStep(ctx, sess, text)
	}

	if e.latency != nil {
		e.latency.ObserveHandle(decision.Route.String(), time.Since(started).Seconds())
	}
}

// emergency always wins: the session goes, the user gets the emergency
// message and staff are alerted in the background.
func (e *Engine) emergency(ctx context.Context, userID, displayName, text, keyword string) {
	e.discard(ctx, userID)
	e.logger.Warn("emergency keyword detected", "user_id", userID, "keyword", keyword)
	e.record(analytics.Event{Kind: analytics.KindEmergency, UserID: userID, DisplayName: displayName, Detail: keyword})
	e.send(ctx, userID, e.replies.emergency())
	if e.escalations != nil {
		e.escalations.EscalateEmergency(userID, displayName, text)
	}
}

// start opens a fresh session at the welcome step, replacing any
// existing one.
func (e *Engine) start(ctx context.Context, userID, displayName string) {
	now := e.now()
	st := e.patients.Status(ctx, userID)
	sess := session.New(userID, displayName, st, now)
	if err := e.sessions.Put(ctx, sess); err != nil {
		e.logger.Error("session save failed", "user_id", userID, "error", err)
		e.send(ctx, userID, e.replies.apology())
		return
	}
	e.record(analytics.Event{Kind: analytics.KindConversationStarted, UserID: userID, DisplayName: displayName})
	e.record(analytics.Event{Kind: analytics.KindStepChanged, UserID: userID, DisplayName: displayName, Detail: sess.Step.String()})
	e.logger.Info("conversation started", "user_id", userID, "new_patient", st.IsNew, "active_appointments", len(st.Appointments))
	e.send(ctx, userID, e.welcome(st))
}

func (e *Engine) welcome(st patients.Status) string {
	switch {
	case st.HasActiveAppointments && len(st.Appointments) == 1:
		return e.replies.welcomeSingle(st.Appointments[0])
	case st.HasActiveAppointments:
		return e.replies.welcomeMultiple(st.Appointments)
	case st.IsReturning:
		return e.replies.welcomeReturning(st.PatientName)
	default:
		return e.replies.welcomeNew()
	}
}

func (e *Engine) continueStep(ctx context.Context, sess *session.Session, text string) {
	if sess.Status == nil || !sess.Step.Valid() {
		e.logger.Warn("session unusable, starting over", "user_id", sess.UserID, "step", sess.Step.String())
		e.start(ctx, sess.UserID, sess.DisplayName)
		return
	}
	handler, ok := e.handlers[sess.Step]
	if !ok {
		e.logger.Error("no handler for step", "user_id", sess.UserID, "step", sess.Step.String())
		e.start(ctx, sess.UserID, sess.DisplayName)
		return
	}

	work := sess.Clone()
	out, err := handler(ctx, work, normalizeInput(text))

	var inputErr *InputError
	switch {
	case errors.As(err, &inputErr):
		e.record(analytics.Event{Kind: analytics.KindInvalidInput, UserID: sess.UserID, Detail: sess.Step.String()})
		sess.LastActivity = e.now()
		if err := e.sessions.Put(ctx, sess); err != nil {
			e.logger.Warn("session touch failed", "user_id", sess.UserID, "error", err)
		}
		e.send(ctx, sess.UserID, inputErr.Prompt)
	case err != nil && needsRestart(err):
		e.logger.Warn("session state invalid, starting over", "user_id", sess.UserID, "step", sess.Step.String(), "error", err)
		e.start(ctx, sess.UserID, sess.DisplayName)
	case err != nil:
		e.logger.Error("step handler failed", "user_id", sess.UserID, "step", sess.Step.String(), "error", err)
		e.send(ctx, sess.UserID, e.replies.apology())
	default:
		e.apply(ctx, sess.Step, work, out)
	}
}

// apply stores the handler's decision and then sends its reply.
func (e *Engine) apply(ctx context.Context, from session.Step, sess *session.Session, out outcome) {
	if !allowed(from, out.next) {
		err := illegalTransition(from, out.next)
		e.logger.Error("step handler broke the transition table", "user_id", sess.UserID, "error", err)
		e.start(ctx, sess.UserID, sess.DisplayName)
		return
	}

	if out.next == stepEnd {
		e.discard(ctx, sess.UserID)
		e.logger.Info("conversation finished", "user_id", sess.UserID, "step", from.String())
		e.send(ctx, sess.UserID, out.reply)
		return
	}

	sess.Step = out.next
	sess.LastActivity = e.now()
	if err := e.sessions.Put(ctx, sess); err != nil {
		e.logger.Error("session save failed", "user_id", sess.UserID, "step", out.next.String(), "error", err)
		e.send(ctx, sess.UserID, e.replies.apology())
		return
	}
	if out.next != from {
		e.record(analytics.Event{Kind: analytics.KindStepChanged, UserID: sess.UserID, DisplayName: sess.DisplayName, Detail: out.next.String()})
		e.logger.Info("step changed", "user_id", sess.UserID, "from", from.String(), "to", out.next.String())
	}
	e.send(ctx, sess.UserID, out.reply)
}

// openAt stores a new session for a command that starts a flow.
func (e *Engine) openAt(ctx context.Context, userID, displayName string, st patients.Status, step session.Step, data session.Data) bool {
	sess := session.New(userID, displayName, st, e.now())
	sess.Step = step
	sess.Data = data
	if err := e.sessions.Put(ctx, sess); err != nil {
		e.logger.Error("session save failed", "user_id", userID, "step", step.String(), "error", err)
		e.send(ctx, userID, e.replies.apology())
		return false
	}
	e.record(analytics.Event{Kind: analytics.KindStepChanged, UserID: userID, DisplayName: displayName, Detail: step.String()})
	return true
}

func (e *Engine) discard(ctx context.Context, userID string) {
	if err := e.sessions.Delete(ctx, userID); err != nil && !errors.Is(err, session.ErrNotFound) {
		e.logger.Warn("session delete failed", "user_id", userID, "error", err)
	}
}

// send never fails the step; delivery errors are logged and counted.
func (e *Engine) send(ctx context.Context, userID, body string) {
	if err := e.sender.Send(ctx, userID, body); err != nil {
		e.logger.Warn("reply not sent", "user_id", userID, "error", err)
		e.record(analytics.Event{Kind: analytics.KindOutboundFailed, UserID: userID, Detail: err.Error()})
	}
}

func (e *Engine) record(evt analytics.Event) {
	if evt.At.IsZero() {
		evt.At = e.now()
	}
	for _, r := range e.recorders {
		r.Record(evt)
	}
}

func (e *Engine) location() *time.Location {
	return e.clinic.Location
}

// displayNameFor picks the best name known for the user.
func displayNameFor(sess *session.Session, fallback string) string {
	if sess == nil {
		return fallback
	}
	if sess.Data.PatientName != "" && sess.Data.BookingForSelf {
		return sess.Data.PatientName
	}
	if sess.Status != nil && sess.Status.PatientName != "" {
		return sess.Status.PatientName
	}
	if sess.DisplayName != "" {
		return sess.DisplayName
	}
	return fallback
}
