package conversation

import (
	"context"

	"github.com/wolfman30/clinic-intake/internal/analytics"
	"github.com/wolfman30/clinic-intake/internal/appointments"
	"github.com/wolfman30/clinic-intake/internal/session"
)

// command runs a global command. Informational commands end the current
// flow; book, doctors, cancel and reschedule open a new one at the step
// they need.
func (e *Engine) command(ctx context.Context, prior *session.Session, userID, displayName, text string, cmd Command) {
	e.record(analytics.Event{Kind: analytics.KindCommand, UserID: userID, DisplayName: displayName, Detail: string(cmd)})
	e.logger.Info("global command", "user_id", userID, "command", string(cmd))

	st := e.patients.Status(ctx, userID)
	name := st.PatientName
	if name == "" {
		name = displayNameFor(prior, displayName)
	}
	e.discard(ctx, userID)

	switch cmd {
	case CommandMenu:
		e.send(ctx, userID, e.replies.mainMenu(name))

	case CommandStatus:
		e.send(ctx, userID, e.replies.status(name, st.Appointments))

	case CommandDirections:
		e.send(ctx, userID, e.replies.directions())

	case CommandHelp:
		if e.escalations != nil {
			e.escalations.EscalateHelpRequest(userID, name, text)
		}
		e.send(ctx, userID, e.replies.escalation("Help requested"))

	case CommandToday:
		now := e.now()
		var mine []appointments.Appointment
		for _, a := range st.Appointments {
			if appointments.BucketOf(a, now, e.location()) == appointments.DayToday {
				mine = append(mine, a)
			}
		}
		e.send(ctx, userID, e.replies.today(mine, e.clinic.IsOpenAt(now), now))

	case CommandTomorrow:
		e.send(ctx, userID, e.replies.tomorrow())

	case CommandHistory:
		e.send(ctx, userID, e.replies.history(name, e.patients.Appointments(ctx, userID)))

	case CommandFees:
		e.send(ctx, userID, e.replies.fees())

	case CommandBook:
		data := session.Data{PatientName: name, BookingForSelf: true}
		if e.openAt(ctx, userID, displayName, st, session.StepHealthConcern, data) {
			e.send(ctx, userID, e.replies.concernMenu(""))
		}

	case CommandDoctors:
		data := session.Data{PatientName: name, BookingForSelf: true}
		if e.openAt(ctx, userID, displayName, st, session.StepDoctorSelection, data) {
			e.send(ctx, userID, e.replies.doctorList())
		}

	case CommandCancel, CommandReschedule:
		appt, ok := pickTarget(prior, st.Appointments)
		if !ok {
			e.send(ctx, userID, e.replies.noActiveAppointment())
			return
		}
		data := session.Data{PatientName: name, BookingForSelf: true, TargetAppointmentID: appt.ID}
		if cmd == CommandCancel {
			if e.openAt(ctx, userID, displayName, st, session.StepCancel, data) {
				e.send(ctx, userID, e.replies.cancelPrompt(appt))
			}
			return
		}
		d, found := e.doctorFor(appt)
		if !found {
			e.logger.Error("doctor not in catalog", "user_id", userID, "appointment_id", appt.ID, "doctor_id", appt.DoctorID)
			e.send(ctx, userID, e.replies.apology())
			return
		}
		if e.openAt(ctx, userID, displayName, st, session.StepReschedule, data) {
			e.send(ctx, userID, e.replies.rescheduleMenu(appt, d))
		}

	default:
		e.send(ctx, userID, e.replies.mainMenu(name))
	}
}

// pickTarget prefers the appointment the previous flow was looking at and
// otherwise takes the soonest upcoming one.
func pickTarget(prior *session.Session, upcoming []appointments.Appointment) (appointments.Appointment, bool) {
	if len(upcoming) == 0 {
		return appointments.Appointment{}, false
	}
	if prior != nil && prior.Data.TargetAppointmentID != "" {
		for _, a := range upcoming {
			if a.ID == prior.Data.TargetAppointmentID {
				return a, true
			}
		}
	}
	return upcoming[0], true
}
