package support

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/internal/events"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

type recordingSMS struct {
	mu   sync.Mutex
	sent map[string][]string
}

func (r *recordingSMS) SendSMS(ctx context.Context, to, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == nil {
		r.sent = map[string][]string{}
	}
	r.sent[to] = append(r.sent[to], body)
	return nil
}

type failingStore struct{ MemoryStore }

func (f *failingStore) Save(ctx context.Context, e *Escalation) error {
	return errors.New("db down")
}

func TestCreateEscalationStoresAndAlerts(t *testing.T) {
	sms := &recordingSMS{}
	store := NewMemoryStore()
	svc := NewEscalationService(store, sms, []string{"+911111", "+912222"}, logging.Discard())

	var seen []events.StaffEscalationV1
	svc.OnEscalation(func(evt events.StaffEscalationV1) { seen = append(seen, evt) })

	e, err := svc.CreateEscalation(context.Background(), EscalationRequest{
		Type:          EscalationEmergency,
		Priority:      PriorityHigh,
		CustomerPhone: "+919876543210",
		CustomerName:  "Asha",
		Description:   "chest pain",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, e.Status)
	assert.NotEmpty(t, e.RecommendedAction)

	require.Len(t, sms.sent["+911111"], 1)
	assert.Contains(t, sms.sent["+911111"][0], "[HIGH] EMERGENCY")
	assert.Contains(t, sms.sent["+912222"][0], "Call the patient now.")

	require.Len(t, seen, 1)
	assert.Equal(t, "EMERGENCY", seen[0].Reason)
	assert.Equal(t, e.ID.String(), seen[0].EscalationID)

	pending, err := svc.GetPendingEscalations(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestLowPriorityDoesNotText(t *testing.T) {
	sms := &recordingSMS{}
	svc := NewEscalationService(nil, sms, []string{"+911111"}, logging.Discard())
	svc.EscalatePatientQuestion("+919876543210", "Asha", "do you take insurance?")
	svc.Wait()
	assert.Empty(t, sms.sent)

	pending, _ := svc.GetPendingEscalations(context.Background())
	require.Len(t, pending, 1)
	assert.Equal(t, EscalationPatientQuestion, pending[0].Type)
}

func TestStoreFailureStillAlerts(t *testing.T) {
	sms := &recordingSMS{}
	svc := NewEscalationService(&failingStore{}, sms, []string{"+911111"}, logging.Discard())
	_, err := svc.CreateEscalation(context.Background(), EscalationRequest{Type: EscalationHelpRequest, Priority: PriorityMedium})
	assert.Error(t, err)
	assert.Len(t, sms.sent["+911111"], 1)
}

func TestRaiseRunsInBackground(t *testing.T) {
	svc := NewEscalationService(nil, nil, nil, logging.Discard())
	svc.EscalateEmergency("+911", "", "stroke")
	svc.EscalateHelpRequest("+912", "", "help")
	svc.Wait()

	pending, err := svc.GetPendingEscalations(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, PriorityHigh, pending[0].Priority)
}

func TestAcknowledgeAndResolve(t *testing.T) {
	svc := NewEscalationService(nil, nil, nil, logging.Discard())
	svc.now = func() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) }
	e, err := svc.CreateEscalation(context.Background(), EscalationRequest{Type: EscalationHelpRequest, Priority: PriorityMedium})
	require.NoError(t, err)

	require.NoError(t, svc.Acknowledge(context.Background(), e.ID, "priya"))
	assert.ErrorIs(t, svc.Acknowledge(context.Background(), e.ID, "priya"), ErrEscalationNotFound)
	require.NoError(t, svc.Resolve(context.Background(), e.ID, "priya", "called back"))
	assert.ErrorIs(t, svc.Resolve(context.Background(), e.ID, "priya", "again"), ErrEscalationNotFound)

	pending, _ := svc.GetPendingEscalations(context.Background())
	assert.Empty(t, pending)
}
