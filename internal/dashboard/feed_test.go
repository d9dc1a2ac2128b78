package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/internal/analytics"
	"github.com/wolfman30/clinic-intake/internal/events"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

func dialFeed(t *testing.T, hub *FeedHub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func TestFeedHubBroadcastsBookings(t *testing.T) {
	hub := NewFeedHub(nil, logging.Discard())
	defer hub.Close()
	conn := dialFeed(t, hub)

	require.NoError(t, hub.Notify(context.Background(), events.AppointmentBookedV1{
		AppointmentID: "APT1",
		DoctorName:    "Dr. John Carter",
		OccurredAt:    testNow,
	}))
	frame := readFrame(t, conn)
	assert.JSONEq(t, `"new-appointment"`, string(frame["type"]))

	var evt events.AppointmentBookedV1
	require.NoError(t, json.Unmarshal(frame["data"], &evt))
	assert.Equal(t, "APT1", evt.AppointmentID)
	assert.Equal(t, "dashboard", hub.Name())
}

func TestFeedHubStreamsActivity(t *testing.T) {
	hub := NewFeedHub(nil, logging.Discard())
	defer hub.Close()
	conn := dialFeed(t, hub)

	collector := analytics.NewCollector(analytics.WithClock(func() time.Time { return testNow }))
	collector.Subscribe(hub.PublishActivity)
	collector.Record(analytics.Event{Kind: analytics.KindEmergency, UserID: "+1"})

	frame := readFrame(t, conn)
	assert.JSONEq(t, `"activity"`, string(frame["type"]))
}

func TestFeedHubCloseDisconnects(t *testing.T) {
	hub := NewFeedHub(nil, logging.Discard())
	conn := dialFeed(t, hub)

	hub.Close()
	assert.Zero(t, hub.Clients())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestFeedOriginCheck(t *testing.T) {
	check := originChecker([]string{"https://ops.example.com/"})

	cases := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "api.example.com", true},
		{"https://ops.example.com", "api.example.com", true},
		{"https://evil.example.net", "api.example.com", false},
		{"http://api.example.com", "api.example.com", true},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
		r.Host = tc.host
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		assert.Equal(t, tc.want, check(r), tc.origin)
	}
}
