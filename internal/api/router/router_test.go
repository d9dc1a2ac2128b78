package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpmiddleware "github.com/wolfman30/clinic-intake/internal/http/middleware"
	"github.com/wolfman30/clinic-intake/internal/messaging"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

const testSecret = "router-test-secret"

type recordingInbound struct {
	mu    sync.Mutex
	users []string
}

func (r *recordingInbound) OnMessage(ctx context.Context, userID, text, displayName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
}

func (r *recordingInbound) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func newTestRouter(t *testing.T, inbound *recordingInbound, secret string) http.Handler {
	t.Helper()
	logger := logging.Discard()
	transport := messaging.NewLogTransport(10, logger)
	return New(&Config{
		Logger:           logger,
		MessagingHandler: messaging.NewHandler("", inbound, transport, logger),
		PaymentCallback: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics\n"))
		}),
		AdminJWTSecret: secret,
		InboundLimiter: httpmiddleware.NewRateLimiter(0.001, 1),
	})
}

func twilioRequest(from, body string) *http.Request {
	form := url.Values{}
	form.Set("MessageSid", "SM1")
	form.Set("From", from)
	form.Set("Body", body)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/messages", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, &recordingInbound{}, "")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRouterTwilioWebhookRateLimitedPerSender(t *testing.T) {
	inbound := &recordingInbound{}
	router := newTestRouter(t, inbound, "")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, twilioRequest("+919876543210", "hi"))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, twilioRequest("+919876543210", "1"))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, twilioRequest("+919800000000", "hi"))
	assert.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, 2, inbound.count())
}

func TestRouterPublicEndpoints(t *testing.T) {
	router := newTestRouter(t, &recordingInbound{}, testSecret)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/payments/callback", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRouterOperatorRoutesRequireToken(t *testing.T) {
	inbound := &recordingInbound{}
	router := newTestRouter(t, inbound, testSecret)
	body := `{"user_id":"+919876543210","text":"hi"}`

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/messages/inbound", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Zero(t, inbound.count())

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "operator",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/messages/inbound", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+signed)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, 1, inbound.count())

	req = httptest.NewRequest(http.MethodPost, "/api/send-message", strings.NewReader(`{"to":"+919876543210","message":"see you soon"}`))
	req.Header.Set("Authorization", "Bearer "+signed)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusAccepted, rr.Code)
}
