package session

import (
	"fmt"
	"strings"
)

// Step is a stage of the booking conversation. The zero value is not a
// valid step so a decoded session with a missing step is detectable.
type Step int

const (
	StepWelcomeResponse Step = iota + 1
	StepPatientDetails
	StepHealthConcern
	StepDoctorSelection
	StepTimeSelection
	StepConfirmation
	StepPostBooking
	StepReschedule
	StepCancel
)

var stepNames = map[Step]string{
	StepWelcomeResponse: "welcome_response",
	StepPatientDetails:  "patient_details",
	StepHealthConcern:   "health_concern",
	StepDoctorSelection: "doctor_selection",
	StepTimeSelection:   "time_selection",
	StepConfirmation:    "confirmation",
	StepPostBooking:     "post_booking",
	StepReschedule:      "reschedule",
	StepCancel:          "cancel",
}

// Steps lists every valid step in declaration order.
func Steps() []Step {
	out := make([]Step, 0, len(stepNames))
	for s := StepWelcomeResponse; s <= StepCancel; s++ {
		out = append(out, s)
	}
	return out
}

// Valid reports whether s is one of the declared steps.
func (s Step) Valid() bool {
	_, ok := stepNames[s]
	return ok
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// ParseStep is the inverse of String.
func ParseStep(name string) (Step, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range stepNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("session: unknown step %q", name)
}

func (s Step) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("session: invalid step %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Step) UnmarshalText(text []byte) error {
	parsed, err := ParseStep(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
