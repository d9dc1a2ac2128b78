package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/internal/analytics"
	"github.com/wolfman30/clinic-intake/internal/appointments"
	"github.com/wolfman30/clinic-intake/internal/bookings"
	"github.com/wolfman30/clinic-intake/internal/catalog"
	"github.com/wolfman30/clinic-intake/internal/events"
	"github.com/wolfman30/clinic-intake/internal/patients"
	"github.com/wolfman30/clinic-intake/internal/session"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

const testPhone = "+919876543210"

var testNow = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

type captureSender struct {
	mu      sync.Mutex
	replies map[string][]string
}

func (c *captureSender) Send(ctx context.Context, to, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.replies == nil {
		c.replies = make(map[string][]string)
	}
	c.replies[to] = append(c.replies[to], body)
	return nil
}

func (c *captureSender) last(to string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.replies[to]
	if len(list) == 0 {
		return ""
	}
	return list[len(list)-1]
}

func (c *captureSender) count(to string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.replies[to])
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.AppointmentBookedV1
}

func (c *capturePublisher) Publish(evt events.AppointmentBookedV1) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *capturePublisher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

type captureEscalator struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureEscalator) add(kind, phone string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, kind+":"+phone)
}

func (c *captureEscalator) EscalateEmergency(phone, name, message string) {
	c.add("emergency", phone)
}
func (c *captureEscalator) EscalateHelpRequest(phone, name, message string) {
	c.add("help", phone)
}
func (c *captureEscalator) EscalatePatientQuestion(phone, name, message string) {
	c.add("question", phone)
}

func (c *captureEscalator) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type captureRecorder struct {
	mu     sync.Mutex
	events []analytics.Event
}

func (c *captureRecorder) Record(evt analytics.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *captureRecorder) kinds(kind analytics.Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, evt := range c.events {
		if evt.Kind == kind {
			n++
		}
	}
	return n
}

type harness struct {
	engine    *Engine
	sessions  *session.MemoryStore
	store     *appointments.MemoryStore
	view      *appointments.View
	sender    *captureSender
	publisher *capturePublisher
	escalator *captureEscalator
	recorder  *captureRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := func() time.Time { return testNow }
	logger := logging.Discard()

	h := &harness{
		sessions:  session.NewMemoryStore(),
		store:     appointments.NewMemoryStore(),
		sender:    &captureSender{},
		publisher: &capturePublisher{},
		escalator: &captureEscalator{},
		recorder:  &captureRecorder{},
	}
	repo := patients.NewMemoryRepository()
	svc := bookings.NewService(h.store, logger,
		bookings.WithHistory(repo),
		bookings.WithPublisher(h.publisher),
		bookings.WithClock(clock),
	)
	resolver := patients.NewResolver(repo, h.store, time.UTC, logger).WithClock(clock)
	h.view = appointments.NewView(
		[]appointments.NamedSource{{Name: "store", Source: h.store}},
		time.UTC, logger, appointments.WithClock(clock),
	)
	h.engine = NewEngine(Deps{
		Sessions:     h.sessions,
		Locker:       session.NewLocker(),
		Catalog:      catalog.Default(),
		Clinic:       catalog.DefaultClinic("", time.UTC),
		Bookings:     svc,
		Appointments: h.store,
		Patients:     resolver,
		Sender:       h.sender,
		Escalations:  h.escalator,
		Recorders:    []Recorder{h.recorder},
		Logger:       logger,
		Now:          clock,
	})
	return h
}

func (h *harness) say(t *testing.T, texts ...string) string {
	t.Helper()
	for _, text := range texts {
		h.engine.OnMessage(context.Background(), testPhone, text, "Asha")
	}
	return h.sender.last(testPhone)
}

func (h *harness) step(t *testing.T) session.Step {
	t.Helper()
	sess, err := h.sessions.Get(context.Background(), testPhone)
	require.NoError(t, err)
	return sess.Step
}

func (h *harness) noSession(t *testing.T) {
	t.Helper()
	_, err := h.sessions.Get(context.Background(), testPhone)
	require.ErrorIs(t, err, session.ErrNotFound)
}

func (h *harness) only(t *testing.T) appointments.Appointment {
	t.Helper()
	list, err := h.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	return list[0]
}

func TestBookingHappyPath(t *testing.T) {
	h := newHarness(t)

	reply := h.say(t, "hi")
	assert.Contains(t, reply, "Welcome to PinkHealth Clinic")
	assert.Equal(t, session.StepWelcomeResponse, h.step(t))

	h.say(t, "1")
	assert.Equal(t, session.StepHealthConcern, h.step(t))

	reply = h.say(t, "4")
	assert.Contains(t, reply, "Dr. John Carter")
	assert.Equal(t, session.StepTimeSelection, h.step(t))

	reply = h.say(t, "1")
	assert.Contains(t, reply, "Confirm Your Appointment")
	assert.Contains(t, reply, "2026-10-15")
	assert.Equal(t, session.StepConfirmation, h.step(t))

	reply = h.say(t, "1")
	assert.Contains(t, reply, "Appointment Booked Successfully")
	assert.Equal(t, session.StepPostBooking, h.step(t))

	appt := h.only(t)
	assert.Contains(t, reply, appt.ID)
	assert.Equal(t, "dr_john", appt.DoctorID)
	assert.Equal(t, "Heart/Blood Pressure", appt.Concern)
	assert.Equal(t, "2026-10-15", appt.Date)
	assert.Equal(t, time.Date(2026, 10, 15, 14, 0, 0, 0, time.UTC), appt.ScheduledFor)
	assert.Equal(t, 1, h.publisher.count())

	listing := h.view.List(context.Background())
	require.Len(t, listing.Today, 1)
	assert.Equal(t, appt.ID, listing.Today[0].ID)

	assert.Equal(t, 5, h.sender.count(testPhone), "one reply per message")
	assert.Equal(t, 1, h.recorder.kinds(analytics.KindConversationStarted))

	reply = h.say(t, "5")
	assert.Contains(t, reply, "Thank")
	h.noSession(t)
}

func TestRepeatedBookingIsCollapsed(t *testing.T) {
	h := newHarness(t)
	h.say(t, "hi", "1", "4", "1", "1")
	first := h.only(t)

	reply := h.say(t, "book", "4", "1", "1")
	assert.Contains(t, reply, "already have this appointment")
	assert.Contains(t, reply, first.ID)
	h.only(t)
	assert.Equal(t, 1, h.publisher.count())
}

func TestConcurrentConfirmationsBookOnce(t *testing.T) {
	h := newHarness(t)
	h.say(t, "hi", "1", "4", "1")
	require.Equal(t, session.StepConfirmation, h.step(t))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.engine.OnMessage(context.Background(), testPhone, "1", "Asha")
		}()
	}
	wg.Wait()

	h.only(t)
	assert.Equal(t, 1, h.publisher.count())
	assert.Equal(t, session.StepPostBooking, h.step(t))
}

func TestEmergencyClearsSession(t *testing.T) {
	h := newHarness(t)
	h.say(t, "hi", "1", "4")
	require.Equal(t, session.StepTimeSelection, h.step(t))

	reply := h.say(t, "my father has chest pain")
	assert.Contains(t, reply, "EMERGENCY")
	assert.Contains(t, reply, "108")
	h.noSession(t)
	assert.Equal(t, []string{"emergency:" + testPhone}, h.escalator.snapshot())
	assert.Equal(t, 1, h.recorder.kinds(analytics.KindEmergency))

	reply = h.say(t, "hi")
	assert.Contains(t, reply, "Welcome to PinkHealth Clinic")
	assert.Equal(t, session.StepWelcomeResponse, h.step(t))
	assert.Empty(t, mustList(t, h.store))
}

func TestInvalidInputKeepsStep(t *testing.T) {
	h := newHarness(t)
	h.say(t, "hi", "1")

	reply := h.say(t, "12")
	assert.Contains(t, reply, "Please choose an option from 1 to 11")
	assert.Equal(t, session.StepHealthConcern, h.step(t))

	h.say(t, "4")
	reply = h.say(t, "7")
	assert.Contains(t, reply, "valid slot number")
	assert.Equal(t, session.StepTimeSelection, h.step(t))

	h.say(t, "2")
	reply = h.say(t, "maybe")
	assert.Contains(t, reply, "Please reply 1 to confirm")
	assert.Equal(t, session.StepConfirmation, h.step(t))
	assert.Equal(t, 3, h.recorder.kinds(analytics.KindInvalidInput))
}

func TestGlobalCommandBeatsStep(t *testing.T) {
	h := newHarness(t)
	h.say(t, "hi", "1", "4", "1")
	require.Equal(t, session.StepConfirmation, h.step(t))

	reply := h.say(t, "menu")
	assert.Contains(t, reply, "Main Menu")
	h.noSession(t)
	assert.Empty(t, mustList(t, h.store))

	reply = h.say(t, "doctors")
	assert.Contains(t, reply, "Dr. Emma Davis")
	assert.Equal(t, session.StepDoctorSelection, h.step(t))

	reply = h.say(t, "davis")
	assert.Contains(t, reply, "Dr. Emma Davis")
	assert.Equal(t, session.StepTimeSelection, h.step(t))
}

func TestStatusAndCancelCommands(t *testing.T) {
	h := newHarness(t)
	h.say(t, "hi", "1", "4", "1", "1")
	appt := h.only(t)

	reply := h.say(t, "status")
	assert.Contains(t, reply, appt.ID)
	h.noSession(t)

	reply = h.say(t, "cancel")
	assert.Contains(t, reply, "Cancel Appointment")
	assert.Equal(t, session.StepCancel, h.step(t))

	reply = h.say(t, "1")
	assert.Contains(t, reply, "Appointment Cancelled")
	assert.Contains(t, reply, "same day")
	h.noSession(t)

	stored := h.only(t)
	assert.Equal(t, appointments.StatusCancelled, stored.Status)

	reply = h.say(t, "cancel")
	assert.Contains(t, reply, "don't have any upcoming appointments")
}

func TestRescheduleFromWelcome(t *testing.T) {
	h := newHarness(t)
	h.say(t, "hi", "1", "4", "1", "1", "5")

	reply := h.say(t, "hi")
	assert.Contains(t, reply, "Your Upcoming Appointment")

	reply = h.say(t, "2")
	assert.Contains(t, reply, "reschedule")
	assert.Equal(t, session.StepReschedule, h.step(t))

	reply = h.say(t, "2")
	assert.Contains(t, reply, "Appointment Rescheduled")
	h.noSession(t)

	stored := h.only(t)
	assert.Equal(t, "2026-10-16", stored.Date)
	assert.Equal(t, "10:30 AM", stored.Time)
	assert.True(t, stored.Active())
}

func TestBookingForSomeoneElse(t *testing.T) {
	h := newHarness(t)
	h.say(t, "hi", "2")
	require.Equal(t, session.StepPatientDetails, h.step(t))

	reply := h.say(t, "Full Name: Ravi Kumar\nAge: 40\nRelationship: father")
	assert.Contains(t, reply, "Ravi Kumar")
	assert.Equal(t, session.StepHealthConcern, h.step(t))

	h.say(t, "my knee hurts", "1", "1")
	appt := h.only(t)
	assert.Equal(t, "Ravi Kumar", appt.PatientName)
	assert.Equal(t, "dr_brown", appt.DoctorID)
	assert.Equal(t, "my knee hurts", appt.Concern)
}

func TestNotSureEscalatesToStaff(t *testing.T) {
	h := newHarness(t)
	h.say(t, "hi", "1")

	reply := h.say(t, "11")
	assert.Contains(t, reply, "No worries")
	assert.Equal(t, session.StepHealthConcern, h.step(t))

	reply = h.say(t, "2")
	assert.Contains(t, reply, "Connecting you to our clinic staff")
	h.noSession(t)
	assert.Equal(t, []string{"help:" + testPhone}, h.escalator.snapshot())
}

func TestBrokenSessionRestarts(t *testing.T) {
	h := newHarness(t)
	sess := session.New(testPhone, "Asha", patients.Status{IsNew: true}, testNow)
	sess.Step = session.StepConfirmation
	require.NoError(t, h.sessions.Put(context.Background(), sess))

	reply := h.say(t, "1")
	assert.Contains(t, reply, "Welcome to PinkHealth Clinic")
	assert.Equal(t, session.StepWelcomeResponse, h.step(t))
	assert.Empty(t, mustList(t, h.store))
}

func TestUsersAreIndependent(t *testing.T) {
	h := newHarness(t)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		phone := fmt.Sprintf("+9198765000%02d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, text := range []string{"hi", "1", "7", "1", "1"} {
				h.engine.OnMessage(context.Background(), phone, text, "")
			}
		}()
	}
	wg.Wait()

	list := mustList(t, h.store)
	assert.Len(t, list, 5)
	for _, a := range list {
		assert.Equal(t, "dr_davis", a.DoctorID)
	}
	assert.Equal(t, 5, h.publisher.count())
}

func TestPostBookingCalendarStays(t *testing.T) {
	h := newHarness(t)
	h.say(t, "hi", "1", "4", "1", "1")

	reply := h.say(t, "1")
	assert.True(t, strings.Contains(reply, "calendar.google.com") || strings.Contains(reply, "Add to Calendar"))
	assert.Equal(t, session.StepPostBooking, h.step(t))
}

func mustList(t *testing.T, store *appointments.MemoryStore) []appointments.Appointment {
	t.Helper()
	list, err := store.List(context.Background())
	require.NoError(t, err)
	return list
}

type stalledPatients struct {
	patients.Repository
}

func (stalledPatients) FindPatientByPhone(ctx context.Context, phone string) (*patients.Patient, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledPatients) GetPatientAppointments(ctx context.Context, phone string) ([]appointments.Appointment, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestUnreachablePatientStoreStillWelcomes(t *testing.T) {
	logger := logging.Discard()
	clock := func() time.Time { return testNow }
	store := appointments.NewMemoryStore()
	sender := &captureSender{}
	engine := NewEngine(Deps{
		Sessions:     session.NewMemoryStore(),
		Locker:       session.NewLocker(),
		Catalog:      catalog.Default(),
		Clinic:       catalog.DefaultClinic("", time.UTC),
		Bookings:     bookings.NewService(store, logger, bookings.WithClock(clock)),
		Appointments: store,
		Patients: patients.NewResolver(stalledPatients{}, store, time.UTC, logger).
			WithClock(clock).
			WithTimeout(50 * time.Millisecond),
		Sender: sender,
		Logger: logger,
		Now:    clock,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.OnMessage(context.Background(), testPhone, "hi", "Asha")
		engine.OnMessage(context.Background(), testPhone, "status", "Asha")
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("a stalled patient store held the user's conversation")
	}
	assert.Equal(t, 2, sender.count(testPhone))
	assert.Contains(t, sender.replies[testPhone][0], "Welcome to PinkHealth Clinic")
}
