package conversation

import "github.com/wolfman30/clinic-intake/internal/session"

// stepEnd is the pseudo-step that deletes the session. It is never
// stored.
const stepEnd session.Step = -1

// transitions lists the steps each step may hand over to. Re-prompting
// on bad input keeps the step and is not a transition.
var transitions = map[session.Step][]session.Step{
	session.StepWelcomeResponse: {
		session.StepWelcomeResponse,
		session.StepPatientDetails,
		session.StepHealthConcern,
		session.StepDoctorSelection,
		session.StepTimeSelection,
		session.StepReschedule,
		session.StepCancel,
	},
	session.StepPatientDetails:  {session.StepHealthConcern},
	session.StepHealthConcern:   {session.StepHealthConcern, session.StepDoctorSelection, session.StepTimeSelection, stepEnd},
	session.StepDoctorSelection: {session.StepTimeSelection},
	session.StepTimeSelection:   {session.StepConfirmation},
	session.StepConfirmation:    {session.StepPostBooking, session.StepHealthConcern, stepEnd},
	session.StepPostBooking:     {session.StepPostBooking, session.StepHealthConcern, stepEnd},
	session.StepReschedule:      {stepEnd},
	session.StepCancel:          {session.StepReschedule, stepEnd},
}

func allowed(from, to session.Step) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// outcome is what a step handler decided: the reply to send and the
// step to move to.
type outcome struct {
	next  session.Step
	reply string
}

func moveTo(next session.Step, reply string) outcome {
	return outcome{next: next, reply: reply}
}

func finish(reply string) outcome {
	return outcome{next: stepEnd, reply: reply}
}
