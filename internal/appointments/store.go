package appointments

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Change moves an appointment to a new slot.
type Change struct {
	Date         string
	SlotLabel    string
	Time         string
	ScheduledFor time.Time
}

// Store is the authoritative appointment record.
type Store interface {
	// Create stores appt unless an active appointment with the same
	// dedup key exists, in which case that one is returned with
	// created=false.
	Create(ctx context.Context, appt Appointment) (Appointment, bool, error)
	Get(ctx context.Context, id string) (Appointment, error)
	List(ctx context.Context) ([]Appointment, error)
	ListByPhone(ctx context.Context, phone string) ([]Appointment, error)
	Cancel(ctx context.Context, id string) (Appointment, error)
	Reschedule(ctx context.Context, id string, change Change) (Appointment, error)
	MarkPaid(ctx context.Context, id string, reference string) (Appointment, error)
	SetPaymentLink(ctx context.Context, id string, link string) (Appointment, error)
}

// MemoryStore is an in-process Store safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]Appointment
	order []string
	now   func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]Appointment),
		now:  time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, appt Appointment) (Appointment, bool, error) {
	if appt.ID == "" {
		return Appointment{}, false, fmt.Errorf("appointments: id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byID[appt.ID]; ok {
		return existing, false, nil
	}
	if key := appt.DedupKey(); key != "" && appt.Active() {
		for _, id := range s.order {
			existing := s.byID[id]
			if existing.Active() && existing.DedupKey() == key {
				return existing, false, nil
			}
		}
	}
	if appt.Status == "" {
		appt.Status = StatusConfirmed
	}
	if appt.PaymentStatus == "" {
		appt.PaymentStatus = PaymentPending
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = s.now().UTC()
	}
	s.byID[appt.ID] = appt
	s.order = append(s.order, appt.ID)
	return appt, true, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	appt, ok := s.byID[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	return appt, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Appointment, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out, nil
}

// ListByPhone returns the phone's appointments, newest first.
func (s *MemoryStore) ListByPhone(ctx context.Context, phone string) ([]Appointment, error) {
	want := NormalizePhone(phone)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Appointment
	for _, id := range s.order {
		if appt := s.byID[id]; NormalizePhone(appt.Phone) == want {
			out = append(out, appt)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Cancel(ctx context.Context, id string) (Appointment, error) {
	return s.update(id, func(a *Appointment) {
		a.Status = StatusCancelled
	})
}

func (s *MemoryStore) Reschedule(ctx context.Context, id string, change Change) (Appointment, error) {
	return s.update(id, func(a *Appointment) {
		a.Date = change.Date
		a.SlotLabel = change.SlotLabel
		a.Time = change.Time
		a.ScheduledFor = change.ScheduledFor
		a.Status = StatusConfirmed
	})
}

// MarkPaid records a completed payment. Status stays confirmed.
func (s *MemoryStore) MarkPaid(ctx context.Context, id string, reference string) (Appointment, error) {
	return s.update(id, func(a *Appointment) {
		a.PaymentStatus = PaymentPaid
		if reference != "" {
			a.PaymentRef = reference
		}
	})
}

// SetPaymentLink attaches the checkout link issued after booking.
func (s *MemoryStore) SetPaymentLink(ctx context.Context, id string, link string) (Appointment, error) {
	return s.update(id, func(a *Appointment) {
		a.PaymentLink = link
	})
}

// Appointments lets the store feed the reconciliation view.
func (s *MemoryStore) Appointments(ctx context.Context) ([]Appointment, error) {
	return s.List(ctx)
}

func (s *MemoryStore) update(id string, fn func(*Appointment)) (Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.byID[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	fn(&appt)
	s.byID[id] = appt
	return appt, nil
}
