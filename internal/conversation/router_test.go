package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/clinic-intake/internal/session"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		hasSession bool
		route      Route
		command    Command
	}{
		{"emergency beats session", "my father has chest pain", true, RouteEmergency, ""},
		{"emergency beats command", "URGENT cancel", true, RouteEmergency, ""},
		{"emergency without session", "call an ambulance", false, RouteEmergency, ""},
		{"emergency number token", "call 108 now", true, RouteEmergency, ""},
		{"phone number is not an emergency", "my number is 9810812345", true, RouteStep, ""},
		{"command mid flow", "Menu!", true, RouteCommand, CommandMenu},
		{"command alias", "  my   appointments ", true, RouteCommand, CommandStatus},
		{"help is a command", "help", true, RouteCommand, CommandHelp},
		{"command without session", "fees", false, RouteCommand, CommandFees},
		{"greeting restarts", "Hello", true, RouteStart, ""},
		{"no session starts", "2", false, RouteStart, ""},
		{"step input", "2", true, RouteStep, ""},
		{"command word inside sentence is step input", "I want to book with smith", true, RouteStep, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := Classify(tc.text, tc.hasSession)
			assert.Equal(t, tc.route, d.Route)
			assert.Equal(t, tc.command, d.Command)
		})
	}
}

func TestDetectEmergencyKeyword(t *testing.T) {
	kw, ok := DetectEmergency("Severe Pain in my back")
	assert.True(t, ok)
	assert.Equal(t, "severe pain", kw)

	kw, ok = DetectEmergency("dial 911")
	assert.True(t, ok)
	assert.Equal(t, "911", kw)

	_, ok = DetectEmergency("I need help with my booking")
	assert.False(t, ok)
}

func TestEveryStepHasHandlerAndTransitions(t *testing.T) {
	e := newHarness(t).engine
	for _, step := range session.Steps() {
		_, ok := e.handlers[step]
		assert.True(t, ok, "no handler for %s", step)
		_, ok = transitions[step]
		assert.True(t, ok, "no transitions for %s", step)
	}
}

func TestNumber(t *testing.T) {
	n, ok := number(" 3. ")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = number("three")
	assert.False(t, ok)
}

func TestPatientNameFrom(t *testing.T) {
	assert.Equal(t, "Ravi Kumar", patientNameFrom("Full Name: Ravi Kumar\nAge: 40"))
	assert.Equal(t, "Meena", patientNameFrom("Meena\n62, mother"))
	assert.Equal(t, "Patient", patientNameFrom("Name:"))
}
