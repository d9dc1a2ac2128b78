// Package support raises staff escalations: emergencies, help requests
// and questions the bot cannot answer.
package support

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-intake/internal/events"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

var escalationTracer = otel.Tracer("clinic.internal.support")

// EscalationType represents the type of escalation.
type EscalationType string

const (
	EscalationEmergency       EscalationType = "EMERGENCY"
	EscalationHelpRequest     EscalationType = "HELP_REQUEST"
	EscalationPatientQuestion EscalationType = "PATIENT_QUESTION"
)

// EscalationPriority represents the urgency level.
type EscalationPriority string

const (
	PriorityHigh   EscalationPriority = "HIGH"
	PriorityMedium EscalationPriority = "MEDIUM"
	PriorityLow    EscalationPriority = "LOW"
)

// EscalationStatus represents the status of an escalation.
type EscalationStatus string

const (
	StatusPending      EscalationStatus = "PENDING"
	StatusAcknowledged EscalationStatus = "ACKNOWLEDGED"
	StatusResolved     EscalationStatus = "RESOLVED"
)

// Escalation represents a staff escalation record.
type Escalation struct {
	ID                uuid.UUID          `json:"id"`
	Type              EscalationType     `json:"type"`
	Priority          EscalationPriority `json:"priority"`
	Status            EscalationStatus   `json:"status"`
	CustomerPhone     string             `json:"customer_phone"`
	CustomerName      string             `json:"customer_name,omitempty"`
	Description       string             `json:"description"`
	RecommendedAction string             `json:"recommended_action,omitempty"`
	AcknowledgedAt    *time.Time         `json:"acknowledged_at,omitempty"`
	AcknowledgedBy    string             `json:"acknowledged_by,omitempty"`
	ResolvedAt        *time.Time         `json:"resolved_at,omitempty"`
	ResolvedBy        string             `json:"resolved_by,omitempty"`
	Resolution        string             `json:"resolution,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Event converts the escalation into its outbound payload.
func (e *Escalation) Event() events.StaffEscalationV1 {
	return events.StaffEscalationV1{
		EventID:      uuid.NewString(),
		EscalationID: e.ID.String(),
		UserID:       e.CustomerPhone,
		DisplayName:  e.CustomerName,
		Reason:       string(e.Type),
		Priority:     string(e.Priority),
		Message:      e.Description,
		OccurredAt:   e.CreatedAt,
	}
}

// EscalationRequest contains details for creating an escalation.
type EscalationRequest struct {
	Type          EscalationType
	Priority      EscalationPriority
	CustomerPhone string
	CustomerName  string
	Description   string
}

// SMSSender delivers staff alerts.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// EscalationService stores escalations and alerts staff.
type EscalationService struct {
	store       Store
	sms         SMSSender
	staffPhones []string
	logger      *logging.Logger
	timeout     time.Duration
	now         func() time.Time

	mu    sync.Mutex
	hooks []func(events.StaffEscalationV1)
	wg    sync.WaitGroup
}

// NewEscalationService builds a service. A nil store keeps escalations in
// memory.
func NewEscalationService(store Store, sms SMSSender, staffPhones []string, logger *logging.Logger) *EscalationService {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &EscalationService{
		store:       store,
		sms:         sms,
		staffPhones: staffPhones,
		logger:      logger,
		timeout:     10 * time.Second,
		now:         time.Now,
	}
}

// OnEscalation registers a hook called for every created escalation.
func (s *EscalationService) OnEscalation(fn func(events.StaffEscalationV1)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// CreateEscalation stores a new escalation and notifies staff. A storage
// failure is returned but staff are still alerted.
func (s *EscalationService) CreateEscalation(ctx context.Context, req EscalationRequest) (*Escalation, error) {
	ctx, span := escalationTracer.Start(ctx, "escalation.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("escalation.type", string(req.Type)),
		attribute.String("escalation.priority", string(req.Priority)),
	)

	now := s.now().UTC()
	escalation := &Escalation{
		ID:                uuid.New(),
		Type:              req.Type,
		Priority:          req.Priority,
		Status:            StatusPending,
		CustomerPhone:     req.CustomerPhone,
		CustomerName:      req.CustomerName,
		Description:       req.Description,
		RecommendedAction: recommendedAction(req.Type),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	var storeErr error
	if err := s.store.Save(ctx, escalation); err != nil {
		span.RecordError(err)
		storeErr = fmt.Errorf("support: store escalation: %w", err)
		s.logger.Warn("escalation not persisted", "error", err, "escalation_id", escalation.ID)
	}

	s.notifyStaff(ctx, escalation)

	s.mu.Lock()
	hooks := append([]func(events.StaffEscalationV1){}, s.hooks...)
	s.mu.Unlock()
	evt := escalation.Event()
	for _, hook := range hooks {
		hook(evt)
	}

	s.logger.Info("escalation created",
		"id", escalation.ID,
		"type", escalation.Type,
		"priority", escalation.Priority,
		"customer_phone", escalation.CustomerPhone,
	)
	return escalation, storeErr
}

// Raise creates the escalation in the background so the caller never
// waits on storage or SMS.
func (s *EscalationService) Raise(req EscalationRequest) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.CreateEscalation(ctx, req); err != nil {
			s.logger.Warn("background escalation incomplete", "type", req.Type, "error", err)
		}
	}()
}

// Wait blocks until background escalations finish.
func (s *EscalationService) Wait() {
	s.wg.Wait()
}

// EscalateEmergency raises a high-priority medical emergency.
func (s *EscalationService) EscalateEmergency(phone, name, message string) {
	s.Raise(EscalationRequest{
		Type:          EscalationEmergency,
		Priority:      PriorityHigh,
		CustomerPhone: phone,
		CustomerName:  name,
		Description:   fmt.Sprintf("Emergency keywords detected.\n\nMessage: %s", message),
	})
}

// EscalateHelpRequest asks staff to call the patient back.
func (s *EscalationService) EscalateHelpRequest(phone, name, message string) {
	s.Raise(EscalationRequest{
		Type:          EscalationHelpRequest,
		Priority:      PriorityMedium,
		CustomerPhone: phone,
		CustomerName:  name,
		Description:   fmt.Sprintf("Patient asked for help.\n\nMessage: %s", message),
	})
}

// EscalatePatientQuestion forwards a new patient's question.
func (s *EscalationService) EscalatePatientQuestion(phone, name, message string) {
	s.Raise(EscalationRequest{
		Type:          EscalationPatientQuestion,
		Priority:      PriorityLow,
		CustomerPhone: phone,
		CustomerName:  name,
		Description:   fmt.Sprintf("New patient has a question before booking.\n\nMessage: %s", message),
	})
}

// Acknowledge marks an escalation as acknowledged.
func (s *EscalationService) Acknowledge(ctx context.Context, id uuid.UUID, staffMember string) error {
	if err := s.store.Acknowledge(ctx, id, staffMember, s.now().UTC()); err != nil {
		return err
	}
	s.logger.Info("escalation acknowledged", "id", id, "by", staffMember)
	return nil
}

// Resolve marks an escalation as resolved.
func (s *EscalationService) Resolve(ctx context.Context, id uuid.UUID, staffMember, resolution string) error {
	if err := s.store.Resolve(ctx, id, staffMember, resolution, s.now().UTC()); err != nil {
		return err
	}
	s.logger.Info("escalation resolved", "id", id, "by", staffMember)
	return nil
}

// GetPendingEscalations returns unacknowledged escalations, most urgent
// first.
func (s *EscalationService) GetPendingEscalations(ctx context.Context) ([]*Escalation, error) {
	return s.store.Pending(ctx)
}

func (s *EscalationService) notifyStaff(ctx context.Context, e *Escalation) {
	if s.sms == nil || e.Priority == PriorityLow {
		return
	}
	msg := formatSMSNotification(e)
	for _, phone := range s.staffPhones {
		if err := s.sms.SendSMS(ctx, phone, msg); err != nil {
			s.logger.Error("failed to send escalation SMS", "error", err, "to", phone)
		}
	}
}

func formatSMSNotification(e *Escalation) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s\n", e.Priority, e.Type))
	if e.CustomerName != "" {
		sb.WriteString(fmt.Sprintf("Patient: %s\n", e.CustomerName))
	}
	if e.CustomerPhone != "" {
		sb.WriteString(fmt.Sprintf("Phone: %s\n", e.CustomerPhone))
	}
	if e.Type == EscalationEmergency {
		sb.WriteString("Call the patient now.")
	} else {
		sb.WriteString("Please call back within 30 minutes.")
	}
	return sb.String()
}

func recommendedAction(t EscalationType) string {
	switch t {
	case EscalationEmergency:
		return "1. Call the patient immediately\n2. Confirm they have reached emergency services (108)\n3. Notify the on-duty doctor"
	case EscalationHelpRequest:
		return "1. Call the patient back\n2. Resolve or book on their behalf"
	default:
		return "1. Review the question\n2. Reply by phone or message"
	}
}
