package payments

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/clinic-intake/internal/appointments"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// Recorder applies a completed payment to an appointment.
type Recorder interface {
	MarkPaid(ctx context.Context, appointmentID, reference string) (appointments.Appointment, error)
}

// CallbackRequest is the payment provider's completion notice.
type CallbackRequest struct {
	AppointmentID     string `json:"appointment_id"`
	ClientReferenceID string `json:"client_reference_id"`
	Reference         string `json:"reference"`
	Status            string `json:"status"`
}

// CallbackHandler handles POST /payments/callback. It moves an
// appointment's payment status from pending to paid; the booking status
// itself stays confirmed.
type CallbackHandler struct {
	recorder Recorder
	secret   string
	logger   *logging.Logger
}

// NewCallbackHandler builds the handler. A non-empty secret must be sent
// in the X-Callback-Secret header.
func NewCallbackHandler(recorder Recorder, secret string, logger *logging.Logger) *CallbackHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CallbackHandler{recorder: recorder, secret: secret, logger: logger}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get("X-Callback-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var req CallbackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	id := strings.TrimSpace(req.AppointmentID)
	if id == "" {
		id = strings.TrimSpace(req.ClientReferenceID)
	}
	if id == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status != "" && status != "paid" && status != "complete" && status != "succeeded" {
		h.logger.Info("payment callback ignored", "appointment_id", id, "status", status)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	appt, err := h.recorder.MarkPaid(r.Context(), id, req.Reference)
	if err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		h.logger.Error("payment callback failed", "appointment_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("payment recorded", "appointment_id", appt.ID, "reference", req.Reference)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"appointment_id": appt.ID,
		"status":         string(appt.Status),
		"payment_status": string(appt.PaymentStatus),
	})
}
