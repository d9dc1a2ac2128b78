package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-intake/pkg/logging"
)

var twilioTracer = otel.Tracer("clinic.internal.messaging.twilio")

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// InboundHandler processes one inbound message. The conversation engine
// satisfies it.
type InboundHandler interface {
	OnMessage(ctx context.Context, userID, text, displayName string)
}

// Handler handles messaging webhook requests.
type Handler struct {
	webhookSecret string
	inbound       InboundHandler
	outbound      Transport
	logger        *logging.Logger
}

// NewHandler creates a new messaging handler. outbound may be nil when
// operator sends are not exposed.
func NewHandler(webhookSecret string, inbound InboundHandler, outbound Transport, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if inbound == nil {
		panic("messaging: inbound handler cannot be nil")
	}
	return &Handler{
		webhookSecret: webhookSecret,
		inbound:       inbound,
		outbound:      outbound,
		logger:        logger,
	}
}

// TwilioWebhook handles POST /webhooks/twilio/messages. Replies go out
// through the outbox, so the response is an empty TwiML document.
func (h *Handler) TwilioWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := twilioTracer.Start(r.Context(), "messaging.twilio.webhook")
	defer span.End()

	if h.webhookSecret != "" {
		if !ValidateTwilioSignature(r, h.webhookSecret, buildAbsoluteURL(r)) {
			h.logger.Warn("invalid twilio signature")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			span.RecordError(errors.New("invalid twilio signature"))
			return
		}
	}

	webhook, err := ParseTwilioWebhook(r)
	if err != nil {
		h.logger.Error("failed to parse twilio webhook", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}
	from := NormalizeE164(webhook.From)
	span.SetAttributes(
		attribute.String("clinic.twilio.message_sid", webhook.MessageSid),
		attribute.String("clinic.twilio.from", from),
	)
	if from == "" || strings.TrimSpace(webhook.Body) == "" {
		err := errors.New("missing required twilio fields")
		h.logger.Error("invalid twilio payload", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}

	h.inbound.OnMessage(context.WithoutCancel(ctx), from, webhook.Body, webhook.ProfileName)
	h.logger.Debug("twilio webhook accepted", "from", from, "message_sid", webhook.MessageSid)

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}

// InboundRequest is the JSON body of POST /api/messages/inbound.
type InboundRequest struct {
	UserID      string `json:"user_id"`
	Text        string `json:"text"`
	DisplayName string `json:"display_name"`
}

// InboundJSON accepts a message without a provider, for local testing.
func (h *Handler) InboundJSON(w http.ResponseWriter, r *http.Request) {
	var req InboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id and text are required"})
		return
	}
	h.inbound.OnMessage(context.WithoutCancel(r.Context()), req.UserID, req.Text, req.DisplayName)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// SendRequest is the JSON body of POST /api/send-message.
type SendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// SendMessage queues an operator-written message.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	if h.outbound == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "outbound messaging not configured"})
		return
	}
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.To) == "" || strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to and message are required"})
		return
	}
	if err := h.outbound.Send(r.Context(), req.To, req.Message); err != nil {
		h.logger.Warn("operator message not queued", "to", req.To, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	h.logger.Info("operator message queued", "to", req.To)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// HealthCheck returns a simple health check response.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func buildAbsoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.Scheme != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}
