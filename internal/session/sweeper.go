package session

import (
	"context"
	"time"

	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// Sweeper deletes sessions idle past a timeout. It takes the same
// per-user lock as message dispatch and re-reads the session under it,
// so a session touched by an in-flight message is never removed.
type Sweeper struct {
	store    Store
	locker   *Locker
	idle     time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *logging.Logger
	onExpire func(userID string)
}

// SweeperOption customises a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepClock overrides the wall clock.
func WithSweepClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithExpireHook is called after each expired session is deleted.
func WithExpireHook(fn func(userID string)) SweeperOption {
	return func(s *Sweeper) { s.onExpire = fn }
}

// NewSweeper builds a sweeper.
func NewSweeper(store Store, locker *Locker, idle, interval time.Duration, logger *logging.Logger, opts ...SweeperOption) *Sweeper {
	if store == nil || locker == nil {
		panic("session: sweeper needs a store and a locker")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	s := &Sweeper{
		store:    store,
		locker:   locker,
		idle:     idle,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep runs one pass and returns how many sessions it removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	sessions, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, candidate := range sessions {
		if !candidate.Idle(s.now(), s.idle) {
			continue
		}
		if s.expire(ctx, candidate.UserID) {
			removed++
		}
	}
	return removed, nil
}

func (s *Sweeper) expire(ctx context.Context, userID string) bool {
	unlock := s.locker.Lock(userID)
	defer unlock()

	current, err := s.store.Get(ctx, userID)
	if err != nil {
		return false
	}
	if !current.Idle(s.now(), s.idle) {
		return false
	}
	if err := s.store.Delete(ctx, userID); err != nil {
		s.logger.Warn("session sweep delete failed", "user_id", userID, "error", err)
		return false
	}
	s.logger.Debug("session expired", "user_id", userID, "step", current.Step.String())
	if s.onExpire != nil {
		s.onExpire(userID)
	}
	return true
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Warn("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("idle sessions swept", "count", n)
			}
		}
	}
}
