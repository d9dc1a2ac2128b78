package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/clinic-intake/internal/appointments"
	"github.com/wolfman30/clinic-intake/internal/bookings"
	"github.com/wolfman30/clinic-intake/internal/catalog"
	"github.com/wolfman30/clinic-intake/internal/session"
)

func (e *Engine) welcomeResponse(ctx context.Context, sess *session.Session, input string) (outcome, error) {
	st := *sess.Status
	n, isNumber := number(input)
	if !isNumber {
		return outcome{}, retry(sess.Step, e.replies.welcomeRetry())
	}

	switch {
	case st.HasActiveAppointments && len(st.Appointments) == 1:
		appt := st.Appointments[0]
		switch n {
		case 1:
			sess.Data.TargetAppointmentID = appt.ID
			return moveTo(session.StepWelcomeResponse, e.replies.appointmentDetails(appt)), nil
		case 2:
			return e.openReschedule(sess, appt)
		case 3:
			sess.Data.TargetAppointmentID = appt.ID
			return moveTo(session.StepCancel, e.replies.cancelPrompt(appt)), nil
		case 4:
			return moveTo(session.StepWelcomeResponse, e.replies.directions()), nil
		case 5:
			return e.beginBooking(sess, "")
		}

	case st.HasActiveAppointments:
		count := len(st.Appointments)
		switch {
		case n >= 1 && n <= count:
			appt := st.Appointments[n-1]
			sess.Data.TargetAppointmentID = appt.ID
			return moveTo(session.StepWelcomeResponse, e.replies.appointmentDetails(appt)), nil
		case n == count+1:
			return e.beginBooking(sess, "")
		case n == count+2:
			return moveTo(session.StepWelcomeResponse, e.replies.directions()), nil
		}

	case st.IsReturning:
		switch n {
		case 1:
			return e.beginBooking(sess, "")
		case 2:
			return e.followUp(sess)
		case 3:
			all := e.patients.Appointments(ctx, sess.UserID)
			return moveTo(session.StepWelcomeResponse, e.replies.history(st.PatientName, all)), nil
		case 4:
			return moveTo(session.StepDoctorSelection, e.replies.doctorList()), nil
		}

	default:
		switch n {
		case 1:
			return e.beginBooking(sess, "")
		case 2:
			sess.Data = session.Data{BookingForSelf: false}
			return moveTo(session.StepPatientDetails, e.replies.patientDetailsPrompt()), nil
		case 3:
			if e.escalations != nil {
				e.escalations.EscalatePatientQuestion(sess.UserID, sess.DisplayName, "New patient chose 'I Have Questions' from the welcome menu.")
			}
			return moveTo(session.StepWelcomeResponse, e.replies.escalation("New patient question")), nil
		}
	}
	return outcome{}, retry(sess.Step, e.replies.welcomeRetry())
}

// beginBooking resets the booking data, keeping who the booking is for.
func (e *Engine) beginBooking(sess *session.Session, header string) (outcome, error) {
	name := sess.Data.PatientName
	forSelf := sess.Data.BookingForSelf || name == ""
	details := sess.Data.PatientDetails
	if forSelf {
		name = displayNameFor(sess, "")
		details = ""
	}
	sess.Data = session.Data{
		PatientName:    name,
		PatientDetails: details,
		BookingForSelf: forSelf,
	}
	return moveTo(session.StepHealthConcern, e.replies.concernMenu(header)), nil
}

// followUp books with the doctor of the patient's latest appointment,
// falling back to the concern menu when that doctor is unknown.
func (e *Engine) followUp(sess *session.Session) (outcome, error) {
	d, ok := e.catalog.Doctor(sess.Status.LastDoctorID)
	if !ok {
		return e.beginBooking(sess, "I couldn't find your previous doctor, so let's start with your concern.")
	}
	if _, err := e.beginBooking(sess, ""); err != nil {
		return outcome{}, err
	}
	sess.Data.HealthConcern = "Follow-up"
	selectDoctor(&sess.Data, d)
	return moveTo(session.StepTimeSelection, "I can help you follow up with your previous doctor.\n\n"+e.replies.doctorSlots(d)), nil
}

func (e *Engine) patientDetails(ctx context.Context, sess *session.Session, input string) (outcome, error) {
	if input == "" {
		return outcome{}, retry(sess.Step, e.replies.patientDetailsPrompt())
	}
	name := patientNameFrom(input)
	sess.Data.PatientDetails = input
	sess.Data.PatientName = name
	sess.Data.BookingForSelf = false
	header := fmt.Sprintf("Thank you for providing the details. Let's proceed with booking for %s.", name)
	return moveTo(session.StepHealthConcern, e.replies.concernMenu(header)), nil
}

// patientNameFrom takes the first line of the details, dropping a
// "Full Name:" style label.
func patientNameFrom(details string) string {
	first := strings.TrimSpace(strings.SplitN(details, "\n", 2)[0])
	if label, value, ok := strings.Cut(first, ":"); ok && strings.Contains(strings.ToLower(label), "name") {
		first = strings.TrimSpace(value)
	}
	if first == "" {
		return "Patient"
	}
	return first
}

func (e *Engine) healthConcern(ctx context.Context, sess *session.Session, input string) (outcome, error) {
	if sess.Data.ConcernFollowUp {
		return e.notSureFollowUp(sess, input)
	}

	concern, ok := catalog.ClassifyConcern(input)
	if !ok {
		return outcome{}, retry(sess.Step, e.replies.concernRetry())
	}
	if concern.Option > 0 {
		sess.Data.HealthConcern = catalog.ConcernMenu()[concern.Option-1].Label
	} else {
		sess.Data.HealthConcern = input
	}

	switch concern.Action {
	case catalog.ConcernListDoctors:
		return moveTo(session.StepDoctorSelection, e.replies.doctorList()), nil
	case catalog.ConcernNotSure:
		sess.Data.ConcernFollowUp = true
		return moveTo(session.StepHealthConcern, e.replies.notSure()), nil
	default:
		return e.recommend(sess, concern.Specialty)
	}
}

func (e *Engine) notSureFollowUp(sess *session.Session, input string) (outcome, error) {
	n, _ := number(input)
	switch n {
	case 1:
		sess.Data.ConcernFollowUp = false
		return e.recommend(sess, catalog.SpecialtyGeneral)
	case 2:
		if e.escalations != nil {
			e.escalations.EscalateHelpRequest(sess.UserID, displayNameFor(sess, sess.DisplayName), "Patient is unsure of their concern and asked to talk to staff first.")
		}
		return finish(e.replies.escalation("Talk to staff before booking")), nil
	case 3:
		sess.Data.ConcernFollowUp = false
		sess.Data.HealthConcern = ""
		return moveTo(session.StepHealthConcern, e.replies.concernMenu("")), nil
	}
	return outcome{}, retry(sess.Step, e.replies.notSureRetry())
}

func (e *Engine) recommend(sess *session.Session, s catalog.Specialty) (outcome, error) {
	d, ok := e.catalog.Recommend(s)
	if !ok {
		return outcome{}, fmt.Errorf("conversation: no doctor available for %s", s)
	}
	selectDoctor(&sess.Data, d)
	return moveTo(session.StepTimeSelection, e.replies.recommendation(d)), nil
}

func (e *Engine) doctorSelection(ctx context.Context, sess *session.Session, input string) (outcome, error) {
	var (
		d  catalog.Doctor
		ok bool
	)
	if n, isNumber := number(input); isNumber {
		d, ok = e.catalog.ByListNumber(n)
	} else {
		d, ok = e.catalog.FindByName(input)
	}
	if !ok {
		return outcome{}, retry(sess.Step, e.replies.doctorRetry())
	}
	if sess.Data.HealthConcern == "" {
		sess.Data.HealthConcern = "Specific Doctor Request"
	}
	selectDoctor(&sess.Data, d)
	return moveTo(session.StepTimeSelection, e.replies.doctorSlots(d)), nil
}

func (e *Engine) timeSelection(ctx context.Context, sess *session.Session, input string) (outcome, error) {
	d, ok := e.catalog.Doctor(sess.Data.DoctorID)
	if sess.Data.DoctorID == "" || !ok {
		return outcome{}, ErrMissingSessionData
	}
	n, _ := number(input)
	slot, ok := d.Slot(n)
	if !ok {
		return outcome{}, retry(sess.Step, e.replies.slotRetry())
	}
	sess.Data.SlotOption = n
	sess.Data.SlotLabel = slot.Label
	sess.Data.SlotTime = slot.Time
	sess.Data.SlotDate = slot.Date(e.now(), e.location())
	return moveTo(session.StepConfirmation, e.replies.confirmation(sess)), nil
}

func (e *Engine) confirmation(ctx context.Context, sess *session.Session, input string) (outcome, error) {
	if !sess.Data.HasSlot() {
		return outcome{}, ErrMissingSessionData
	}
	lower := strings.ToLower(input)
	switch {
	case input == "1" || strings.Contains(lower, "confirm"):
		return e.book(ctx, sess)
	case input == "2" || strings.Contains(lower, "edit"):
		return e.beginBooking(sess, "")
	case input == "3" || strings.Contains(lower, "cancel"):
		return finish(e.replies.bookingDropped()), nil
	}
	return outcome{}, retry(sess.Step, e.replies.confirmationRetry(sess))
}

func (e *Engine) book(ctx context.Context, sess *session.Session) (outcome, error) {
	req, err := bookings.RequestFromSession(sess, scheduledFor(sess.Data, e.location()))
	if err != nil {
		return outcome{}, fmt.Errorf("%w: %v", ErrMissingSessionData, err)
	}
	appt, created, err := e.bookings.CreateAppointment(ctx, req)
	if errors.Is(err, bookings.ErrInvalidRequest) {
		return outcome{}, fmt.Errorf("%w: %v", ErrMissingSessionData, err)
	}
	if err != nil {
		return outcome{}, fmt.Errorf("conversation: book: %w", err)
	}
	sess.Data.AppointmentID = appt.ID
	return moveTo(session.StepPostBooking, e.replies.booked(appt, created)), nil
}

func (e *Engine) postBooking(ctx context.Context, sess *session.Session, input string) (outcome, error) {
	appt, err := e.lookupAppointment(ctx, sess.Data.AppointmentID)
	if err != nil {
		return outcome{}, err
	}
	n, _ := number(input)
	switch n {
	case 1:
		return moveTo(session.StepPostBooking, e.replies.calendar(appt)), nil
	case 2:
		return moveTo(session.StepPostBooking, e.replies.directions()+"\n\nNeed anything else?\n\n"+postBookingOptions()), nil
	case 3:
		return moveTo(session.StepPostBooking, e.replies.instructions(appt)), nil
	case 4:
		return e.beginBooking(sess, "📅 **Book Another Appointment**")
	case 5:
		return finish(e.replies.thankYou(appt)), nil
	}
	return outcome{}, retry(sess.Step, e.replies.postBookingRetry())
}

func (e *Engine) reschedule(ctx context.Context, sess *session.Session, input string) (outcome, error) {
	appt, err := e.lookupAppointment(ctx, sess.Data.TargetAppointmentID)
	if err != nil {
		return outcome{}, err
	}
	if !appt.Active() {
		return finish(e.replies.noActiveAppointment()), nil
	}
	d, ok := e.doctorFor(appt)
	if !ok {
		return outcome{}, fmt.Errorf("conversation: doctor %q not in catalog", appt.DoctorID)
	}

	n, _ := number(input)
	if n == 4 {
		return finish(e.replies.kept(appt)), nil
	}
	slot, ok := d.Slot(n)
	if !ok {
		return outcome{}, retry(sess.Step, e.replies.rescheduleRetry())
	}
	now := e.now()
	updated, err := e.bookings.Reschedule(ctx, appt.ID, appointments.Change{
		Date:         slot.Date(now, e.location()),
		SlotLabel:    slot.Label,
		Time:         slot.Time,
		ScheduledFor: slot.At(now, e.location()),
	})
	if err != nil {
		return outcome{}, fmt.Errorf("conversation: reschedule %s: %w", appt.ID, err)
	}
	return finish(e.replies.rescheduled(appt, updated)), nil
}

func (e *Engine) cancel(ctx context.Context, sess *session.Session, input string) (outcome, error) {
	appt, err := e.lookupAppointment(ctx, sess.Data.TargetAppointmentID)
	if err != nil {
		return outcome{}, err
	}
	if !appt.Active() {
		return finish(e.replies.noActiveAppointment()), nil
	}

	n, _ := number(input)
	switch n {
	case 1:
		updated, err := e.bookings.Cancel(ctx, appt.ID)
		if err != nil {
			return outcome{}, fmt.Errorf("conversation: cancel %s: %w", appt.ID, err)
		}
		return finish(e.replies.cancelled(updated, e.cancellationFee(appt))), nil
	case 2:
		return e.openReschedule(sess, appt)
	case 3:
		return finish(e.replies.kept(appt)), nil
	}
	return outcome{}, retry(sess.Step, e.replies.cancelRetry())
}

func (e *Engine) openReschedule(sess *session.Session, appt appointments.Appointment) (outcome, error) {
	d, ok := e.doctorFor(appt)
	if !ok {
		return outcome{}, fmt.Errorf("conversation: doctor %q not in catalog", appt.DoctorID)
	}
	sess.Data.TargetAppointmentID = appt.ID
	return moveTo(session.StepReschedule, e.replies.rescheduleMenu(appt, d)), nil
}

// lookupAppointment treats a missing id or record as broken session
// state.
func (e *Engine) lookupAppointment(ctx context.Context, id string) (appointments.Appointment, error) {
	if id == "" {
		return appointments.Appointment{}, ErrMissingSessionData
	}
	appt, err := e.appointments.Get(ctx, id)
	if errors.Is(err, appointments.ErrNotFound) {
		return appointments.Appointment{}, fmt.Errorf("%w: appointment %s", ErrMissingSessionData, id)
	}
	if err != nil {
		return appointments.Appointment{}, fmt.Errorf("conversation: load appointment %s: %w", id, err)
	}
	return appt, nil
}

func (e *Engine) doctorFor(appt appointments.Appointment) (catalog.Doctor, bool) {
	if d, ok := e.catalog.Doctor(appt.DoctorID); ok {
		return d, true
	}
	return e.catalog.FindByName(appt.DoctorName)
}

// cancellationFee applies the clinic policy: same day costs the full
// fee, under 24 hours costs ₹100, otherwise free.
func (e *Engine) cancellationFee(appt appointments.Appointment) string {
	if appt.ScheduledFor.IsZero() {
		return "Cancellation fee: as per clinic policy"
	}
	now := e.now().In(e.location())
	at := appt.ScheduledFor.In(e.location())
	switch {
	case now.Year() == at.Year() && now.YearDay() == at.YearDay():
		return fmt.Sprintf("Cancellation fee: ₹%d (same day cancellation)", appt.Fee)
	case at.Sub(now) < 24*time.Hour:
		return "Cancellation fee: ₹100 (less than 24 hours notice)"
	default:
		return "No cancellation fee (24+ hours notice)"
	}
}

func selectDoctor(d *session.Data, doc catalog.Doctor) {
	d.DoctorID = doc.ID
	d.DoctorName = doc.Name
	d.Specialty = doc.SpecialtyName()
	d.Fee = doc.Fee
	d.SlotOption = 0
	d.SlotLabel = ""
	d.SlotTime = ""
	d.SlotDate = ""
}

// scheduledFor resolves the chosen slot to a wall-clock time. It is zero
// when the date or time does not parse.
func scheduledFor(d session.Data, loc *time.Location) time.Time {
	day, err := time.ParseInLocation(catalog.DateLayout, d.SlotDate, loc)
	if err != nil {
		return time.Time{}
	}
	clock, err := time.Parse("3:04 PM", strings.ToUpper(strings.TrimSpace(d.SlotTime)))
	if err != nil {
		return time.Time{}
	}
	return day.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute)
}

func normalizeInput(text string) string {
	return strings.TrimSpace(text)
}

// number parses a menu reply such as "2" or "2.".
func number(input string) (int, bool) {
	n, err := strconv.Atoi(normalize(input))
	if err != nil {
		return 0, false
	}
	return n, true
}
