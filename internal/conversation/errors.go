package conversation

import (
	"errors"
	"fmt"

	"github.com/wolfman30/clinic-intake/internal/session"
)

// ErrMissingSessionData is returned by a step handler that finds the
// session without the data its step needs. The engine restarts the
// conversation.
var ErrMissingSessionData = errors.New("conversation: session is missing required data")

// ErrIllegalTransition is returned when a handler asks for a step the
// transition table does not allow from the current one.
var ErrIllegalTransition = errors.New("conversation: illegal transition")

// InputError is an unrecognised reply. The engine answers with Prompt and
// leaves the step unchanged.
type InputError struct {
	Step   session.Step
	Prompt string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("conversation: unrecognised input at %s", e.Step)
}

func retry(step session.Step, prompt string) error {
	return &InputError{Step: step, Prompt: prompt}
}

// illegalTransition wraps ErrIllegalTransition with the offending pair.
func illegalTransition(from, to session.Step) error {
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

// needsRestart reports whether err belongs to the session-state class.
func needsRestart(err error) bool {
	return errors.Is(err, ErrMissingSessionData) || errors.Is(err, ErrIllegalTransition)
}
