package patients

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-intake/internal/appointments"
)

// MemoryRepository keeps patients in process. It is the synchronous
// history source the reconciliation view reads.
type MemoryRepository struct {
	mu       sync.RWMutex
	patients map[string]*Patient
	appts    map[string][]appointments.Appointment
	now      func() time.Time
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients: make(map[string]*Patient),
		appts:    make(map[string][]appointments.Appointment),
		now:      time.Now,
	}
}

func (r *MemoryRepository) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	key := appointments.NormalizePhone(p.Phone)
	if key == "" {
		return nil, fmt.Errorf("patients: phone required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.patients[key]; ok {
		if p.Name != "" {
			existing.Name = p.Name
		}
		out := *existing
		return &out, nil
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now().UTC()
	}
	stored := p
	r.patients[key] = &stored
	return &p, nil
}

func (r *MemoryRepository) FindPatientByPhone(ctx context.Context, phone string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[appointments.NormalizePhone(phone)]
	if !ok {
		return nil, ErrPatientNotFound
	}
	out := *p
	return &out, nil
}

func (r *MemoryRepository) CreateAppointment(ctx context.Context, appt appointments.Appointment) error {
	key := appointments.NormalizePhone(appt.Phone)
	if key == "" {
		return fmt.Errorf("patients: appointment phone required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.appts[key]
	for i := range list {
		if list[i].ID == appt.ID {
			list[i] = appt
			return nil
		}
	}
	r.appts[key] = append(list, appt)
	if p, ok := r.patients[key]; ok && appt.CreatedAt.After(p.LastVisit) {
		p.LastVisit = appt.CreatedAt
	}
	return nil
}

func (r *MemoryRepository) GetPatientAppointments(ctx context.Context, phone string) ([]appointments.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]appointments.Appointment(nil), r.appts[appointments.NormalizePhone(phone)]...), nil
}

func (r *MemoryRepository) ListAppointments(ctx context.Context) ([]appointments.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []appointments.Appointment
	for _, list := range r.appts {
		out = append(out, list...)
	}
	return out, nil
}

func (r *MemoryRepository) Search(ctx context.Context, query string) ([]Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Patient
	for _, p := range r.patients {
		if matches(*p, query) {
			out = append(out, *p)
		}
	}
	sortPatients(out)
	return out, nil
}

func matches(p Patient, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(p.Name), q) {
		return true
	}
	digits := appointments.NormalizePhone(q)
	return digits != "" && strings.Contains(appointments.NormalizePhone(p.Phone), digits)
}
