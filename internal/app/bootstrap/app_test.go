package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/internal/appointments"
	appconfig "github.com/wolfman30/clinic-intake/internal/config"
	"github.com/wolfman30/clinic-intake/internal/messaging"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

const patientPhone = "+919876543210"

func memoryConfig() *appconfig.Config {
	return &appconfig.Config{
		ClinicName:           "PinkHealth Clinic",
		ClinicTimezone:       "UTC",
		SessionBackend:       "memory",
		SessionIdleTimeout:   30 * time.Minute,
		SessionSweepInterval: time.Minute,
		PatientStore:         "memory",
		EmailProvider:        "stub",
		PaymentTimeout:       time.Second,
	}
}

func buildApp(t *testing.T, cfg *appconfig.Config) *App {
	t.Helper()
	app, err := Build(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func inbound(t *testing.T, h http.Handler, text string) {
	t.Helper()
	body, _ := json.Marshal(messaging.InboundRequest{UserID: patientPhone, Text: text, DisplayName: "Asha"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/messages/inbound", bytes.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestBuildRequiresConfig(t *testing.T) {
	_, err := Build(context.Background(), nil, logging.Discard())
	assert.Error(t, err)
}

func TestBuildRejectsUnknownSessionBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.SessionBackend = "etcd"
	_, err := Build(context.Background(), cfg, logging.Discard())
	assert.ErrorContains(t, err, "unknown session backend")
}

func TestBuiltAppBooksThroughConversation(t *testing.T) {
	app := buildApp(t, memoryConfig())
	transport, ok := app.Transport.(*messaging.LogTransport)
	require.True(t, ok, "expected the log transport without twilio credentials")

	inbound(t, app.Handler, "hi")
	require.Eventually(t, func() bool {
		return len(transport.SentTo(patientPhone)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, transport.SentTo(patientPhone)[0], "Welcome to PinkHealth Clinic")

	for _, text := range []string{"1", "4", "1", "1"} {
		inbound(t, app.Handler, text)
	}
	require.Eventually(t, func() bool {
		return len(transport.SentTo(patientPhone)) == 5
	}, 2*time.Second, 10*time.Millisecond)

	rr := get(t, app.Handler, "/api/appointments")
	require.Equal(t, http.StatusOK, rr.Code)
	var listing appointments.Listing
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Stats.Confirmed)
	assert.False(t, listing.IsPlaceholder)

	require.Eventually(t, func() bool {
		return app.Analytics.Snapshot().AppointmentsBooked == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBuiltAppServesHealthStatusAndMetrics(t *testing.T) {
	app := buildApp(t, memoryConfig())

	assert.Equal(t, http.StatusOK, get(t, app.Handler, "/health").Code)

	rr := get(t, app.Handler, "/api/status")
	require.Equal(t, http.StatusOK, rr.Code)
	var status struct {
		System string   `json:"system"`
		Sinks  []string `json:"sinks"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, "PinkHealth Clinic", status.System)
	assert.Equal(t, []string{"analytics", "dashboard"}, status.Sinks)

	rr = get(t, app.Handler, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestRunStopsWithContext(t *testing.T) {
	app := buildApp(t, memoryConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		app.Run(ctx)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	app, err := Build(context.Background(), memoryConfig(), logging.Discard())
	require.NoError(t, err)
	app.Close()
	assert.NotPanics(t, app.Close)
}
