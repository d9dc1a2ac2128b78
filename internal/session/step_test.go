package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepNamesRoundTrip(t *testing.T) {
	steps := Steps()
	require.Len(t, steps, 9)
	for _, s := range steps {
		parsed, err := ParseStep(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
}

func TestStepZeroIsInvalid(t *testing.T) {
	var s Step
	assert.False(t, s.Valid())
	_, err := s.MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "step(0)", s.String())
}

func TestStepJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Step Step `json:"step"`
	}{StepTimeSelection})
	require.NoError(t, err)
	assert.JSONEq(t, `{"step":"time_selection"}`, string(data))

	var decoded struct {
		Step Step `json:"step"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"step":"cancel"}`), &decoded))
	assert.Equal(t, StepCancel, decoded.Step)

	assert.Error(t, json.Unmarshal([]byte(`{"step":"limbo"}`), &decoded))
}
