package conversation

import (
	"strings"
)

// Route is where an inbound message is sent.
type Route int

const (
	RouteStep Route = iota
	RouteEmergency
	RouteCommand
	RouteStart
)

func (r Route) String() string {
	switch r {
	case RouteEmergency:
		return "emergency"
	case RouteCommand:
		return "command"
	case RouteStart:
		return "start"
	default:
		return "step"
	}
}

// Command is a global command that works from any step.
type Command string

const (
	CommandMenu       Command = "menu"
	CommandBook       Command = "book"
	CommandStatus     Command = "status"
	CommandCancel     Command = "cancel"
	CommandReschedule Command = "reschedule"
	CommandDoctors    Command = "doctors"
	CommandDirections Command = "directions"
	CommandHelp       Command = "help"
	CommandToday      Command = "today"
	CommandTomorrow   Command = "tomorrow"
	CommandHistory    Command = "history"
	CommandFees       Command = "fees"
)

var commandAliases = map[string]Command{
	"menu":            CommandMenu,
	"options":         CommandMenu,
	"book":            CommandBook,
	"appointment":     CommandBook,
	"status":          CommandStatus,
	"my appointments": CommandStatus,
	"cancel":          CommandCancel,
	"reschedule":      CommandReschedule,
	"doctors":         CommandDoctors,
	"doctor list":     CommandDoctors,
	"directions":      CommandDirections,
	"location":        CommandDirections,
	"help":            CommandHelp,
	"support":         CommandHelp,
	"today":           CommandToday,
	"tomorrow":        CommandTomorrow,
	"history":         CommandHistory,
	"fees":            CommandFees,
	"charges":         CommandFees,
}

// Phrases are matched as substrings. Bare "help" is a command, not an
// emergency.
var emergencyPhrases = []string{
	"emergency",
	"urgent",
	"critical",
	"chest pain",
	"heart attack",
	"stroke",
	"bleeding",
	"accident",
	"unconscious",
	"breathing problem",
	"severe pain",
	"ambulance",
}

// Numbers only match as whole tokens so a phone number containing "108"
// does not raise an alarm.
var emergencyNumbers = []string{"911", "108"}

var greetings = map[string]bool{
	"hi":    true,
	"hello": true,
	"start": true,
}

// Decision is the router's verdict for one message.
type Decision struct {
	Route   Route
	Command Command
	Keyword string
}

// Classify routes text. Emergencies beat commands, commands beat
// greetings, and a greeting or a missing session starts over.
func Classify(text string, hasSession bool) Decision {
	if kw, ok := DetectEmergency(text); ok {
		return Decision{Route: RouteEmergency, Keyword: kw}
	}
	if cmd, ok := ParseCommand(text); ok {
		return Decision{Route: RouteCommand, Command: cmd}
	}
	if !hasSession || IsGreeting(text) {
		return Decision{Route: RouteStart}
	}
	return Decision{Route: RouteStep}
}

// DetectEmergency reports the first emergency keyword found in text.
func DetectEmergency(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range emergencyPhrases {
		if strings.Contains(lower, phrase) {
			return phrase, true
		}
	}
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return r < '0' || r > '9'
	})
	for _, tok := range tokens {
		for _, n := range emergencyNumbers {
			if tok == n {
				return n, true
			}
		}
	}
	return "", false
}

// ParseCommand matches the whole message against the command table.
func ParseCommand(text string) (Command, bool) {
	cmd, ok := commandAliases[normalize(text)]
	return cmd, ok
}

// IsGreeting reports whether text restarts the conversation.
func IsGreeting(text string) bool {
	return greetings[normalize(text)]
}

// normalize lowercases, collapses whitespace and drops trailing
// punctuation so "Menu!" and "  my   appointments " match.
func normalize(text string) string {
	text = strings.ToLower(strings.Join(strings.Fields(text), " "))
	return strings.TrimRight(text, ".!?")
}
