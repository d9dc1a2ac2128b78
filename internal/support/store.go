package support

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEscalationNotFound is returned when no pending escalation matches.
var ErrEscalationNotFound = errors.New("support: escalation not found")

// Store persists escalations.
type Store interface {
	Save(ctx context.Context, e *Escalation) error
	Pending(ctx context.Context) ([]*Escalation, error)
	Acknowledge(ctx context.Context, id uuid.UUID, by string, at time.Time) error
	Resolve(ctx context.Context, id uuid.UUID, by, resolution string, at time.Time) error
}

// MemoryStore keeps escalations in process.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Escalation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[uuid.UUID]*Escalation)}
}

func (m *MemoryStore) Save(ctx context.Context, e *Escalation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.items[e.ID] = &cp
	return nil
}

func (m *MemoryStore) Pending(ctx context.Context) ([]*Escalation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Escalation
	for _, e := range m.items {
		if e.Status == StatusPending {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := priorityRank(out[i].Priority), priorityRank(out[j].Priority)
		if pi != pj {
			return pi < pj
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) Acknowledge(ctx context.Context, id uuid.UUID, by string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok || e.Status != StatusPending {
		return ErrEscalationNotFound
	}
	e.Status = StatusAcknowledged
	e.AcknowledgedAt = &at
	e.AcknowledgedBy = by
	e.UpdatedAt = at
	return nil
}

func (m *MemoryStore) Resolve(ctx context.Context, id uuid.UUID, by, resolution string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok || e.Status == StatusResolved {
		return ErrEscalationNotFound
	}
	e.Status = StatusResolved
	e.ResolvedAt = &at
	e.ResolvedBy = by
	e.Resolution = resolution
	e.UpdatedAt = at
	return nil
}

func priorityRank(p EscalationPriority) int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// SQLStore persists escalations through database/sql (lib/pq driver).
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	if db == nil {
		panic("support: sql db required")
	}
	return &SQLStore{db: db}
}

func (s *SQLStore) Save(ctx context.Context, e *Escalation) error {
	query := `
		INSERT INTO escalations (
			id, type, priority, status, customer_phone, customer_name,
			description, recommended_action, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.Type, e.Priority, e.Status, e.CustomerPhone, e.CustomerName,
		e.Description, e.RecommendedAction, e.CreatedAt, e.UpdatedAt,
	)
	return err
}

func (s *SQLStore) Pending(ctx context.Context) ([]*Escalation, error) {
	query := `
		SELECT id, type, priority, status, customer_phone, customer_name,
			   description, recommended_action, acknowledged_at, acknowledged_by,
			   resolved_at, resolved_by, resolution, created_at, updated_at
		FROM escalations
		WHERE status = $1
		ORDER BY
			CASE priority WHEN 'HIGH' THEN 1 WHEN 'MEDIUM' THEN 2 ELSE 3 END,
			created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("support: query escalations: %w", err)
	}
	defer rows.Close()

	var escalations []*Escalation
	for rows.Next() {
		var e Escalation
		var name, ackBy, resBy, resolution sql.NullString
		var ackAt, resAt sql.NullTime

		if err := rows.Scan(
			&e.ID, &e.Type, &e.Priority, &e.Status, &e.CustomerPhone, &name,
			&e.Description, &e.RecommendedAction, &ackAt, &ackBy,
			&resAt, &resBy, &resolution, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("support: scan escalation: %w", err)
		}
		e.CustomerName = name.String
		e.AcknowledgedBy = ackBy.String
		e.ResolvedBy = resBy.String
		e.Resolution = resolution.String
		if ackAt.Valid {
			e.AcknowledgedAt = &ackAt.Time
		}
		if resAt.Valid {
			e.ResolvedAt = &resAt.Time
		}
		escalations = append(escalations, &e)
	}
	return escalations, rows.Err()
}

func (s *SQLStore) Acknowledge(ctx context.Context, id uuid.UUID, by string, at time.Time) error {
	query := `
		UPDATE escalations
		SET status = $1, acknowledged_at = $2, acknowledged_by = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`
	result, err := s.db.ExecContext(ctx, query, StatusAcknowledged, at, by, at, id, StatusPending)
	if err != nil {
		return fmt.Errorf("support: acknowledge escalation: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrEscalationNotFound
	}
	return nil
}

func (s *SQLStore) Resolve(ctx context.Context, id uuid.UUID, by, resolution string, at time.Time) error {
	query := `
		UPDATE escalations
		SET status = $1, resolved_at = $2, resolved_by = $3, resolution = $4, updated_at = $5
		WHERE id = $6 AND status != $7
	`
	result, err := s.db.ExecContext(ctx, query, StatusResolved, at, by, resolution, at, id, StatusResolved)
	if err != nil {
		return fmt.Errorf("support: resolve escalation: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrEscalationNotFound
	}
	return nil
}
