package patients

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/wolfman30/clinic-intake/internal/appointments"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// HistorySource exposes a repository's appointments to the
// reconciliation view.
type HistorySource struct {
	repo Repository
}

// NewHistorySource wraps repo.
func NewHistorySource(repo Repository) *HistorySource {
	return &HistorySource{repo: repo}
}

func (h *HistorySource) Appointments(ctx context.Context) ([]appointments.Appointment, error) {
	return h.repo.ListAppointments(ctx)
}

// DefaultLookupTimeout bounds each patient repository call made while
// resolving a status.
const DefaultLookupTimeout = 2 * time.Second

// Resolver computes a phone's Status from the appointment store and the
// patient repository.
type Resolver struct {
	repo    Repository
	store   appointments.Store
	loc     *time.Location
	now     func() time.Time
	timeout time.Duration
	logger  *logging.Logger
}

// NewResolver builds a resolver. A nil store or repo is treated as empty.
func NewResolver(repo Repository, store appointments.Store, loc *time.Location, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{repo: repo, store: store, loc: loc, now: time.Now, timeout: DefaultLookupTimeout, logger: logger}
}

// WithTimeout overrides the repository deadline. A slow repository then
// counts as unavailable and the status comes from the store alone.
func (r *Resolver) WithTimeout(d time.Duration) *Resolver {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// WithClock overrides the wall clock.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	if now != nil {
		r.now = now
	}
	return r
}

// Status never fails: unreachable sources are logged and skipped.
func (r *Resolver) Status(ctx context.Context, phone string) Status {
	patient, merged := r.lookup(ctx, phone)
	return DeriveStatus(patient, merged, r.now(), r.loc)
}

// Appointments returns every sighting for phone, deduplicated, newest
// first. Cancelled bookings are included.
func (r *Resolver) Appointments(ctx context.Context, phone string) []appointments.Appointment {
	_, merged := r.lookup(ctx, phone)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged
}

func (r *Resolver) lookup(ctx context.Context, phone string) (*Patient, []appointments.Appointment) {
	var (
		patient *Patient
		stored  []appointments.Appointment
		history []appointments.Appointment
	)
	if r.store != nil {
		list, err := r.store.ListByPhone(ctx, phone)
		if err != nil {
			r.logger.Warn("appointment store lookup failed", "phone", phone, "error", err)
		}
		stored = list
	}
	if r.repo != nil {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		p, err := r.repo.FindPatientByPhone(ctx, phone)
		switch {
		case err == nil:
			patient = p
		case !errors.Is(err, ErrPatientNotFound):
			r.logger.Warn("patient lookup failed", "phone", phone, "error", err)
		}
		if ctx.Err() == nil {
			list, err := r.repo.GetPatientAppointments(ctx, phone)
			if err != nil {
				r.logger.Warn("patient history lookup failed", "phone", phone, "error", err)
			}
			history = list
		}
	}
	return patient, appointments.Merge(stored, history)
}

func sortPatients(list []Patient) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].Phone < list[j].Phone
	})
}
