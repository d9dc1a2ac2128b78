package patients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/clinic-intake/internal/appointments"
)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores patients and their appointment history in
// Postgres (see migrations/).
type PostgresRepository struct {
	db pgQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("patients: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithQuerier(db pgQuerier) *PostgresRepository {
	if db == nil {
		panic("patients: querier required")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	digits := appointments.NormalizePhone(p.Phone)
	if digits == "" {
		return nil, fmt.Errorf("patients: phone required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	query := `
		INSERT INTO patients (id, name, phone, phone_digits)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (phone_digits) DO UPDATE
			SET name = COALESCE(NULLIF(EXCLUDED.name, ''), patients.name)
		RETURNING id, name, created_at
	`
	if err := r.db.QueryRow(ctx, query, p.ID, p.Name, p.Phone, digits).Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
		return nil, fmt.Errorf("patients: insert patient: %w", err)
	}
	return &p, nil
}

func (r *PostgresRepository) FindPatientByPhone(ctx context.Context, phone string) (*Patient, error) {
	query := `
		SELECT id, name, phone, created_at, last_visit
		FROM patients
		WHERE phone_digits = $1
	`
	var (
		p         Patient
		lastVisit *time.Time
	)
	err := r.db.QueryRow(ctx, query, appointments.NormalizePhone(phone)).Scan(&p.ID, &p.Name, &p.Phone, &p.CreatedAt, &lastVisit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("patients: find by phone: %w", err)
	}
	if lastVisit != nil {
		p.LastVisit = *lastVisit
	}
	return &p, nil
}

func (r *PostgresRepository) CreateAppointment(ctx context.Context, appt appointments.Appointment) error {
	digits := appointments.NormalizePhone(appt.Phone)
	if digits == "" {
		return fmt.Errorf("patients: appointment phone required")
	}
	var scheduledFor *time.Time
	if !appt.ScheduledFor.IsZero() {
		scheduledFor = &appt.ScheduledFor
	}
	query := `
		INSERT INTO patient_appointments (
			id, phone_digits, patient_name, phone, doctor_id, doctor_name, specialty, concern,
			appt_date, slot_label, appt_time, fee, status, payment_status, payment_link, scheduled_for, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			appt_date = EXCLUDED.appt_date,
			slot_label = EXCLUDED.slot_label,
			appt_time = EXCLUDED.appt_time,
			status = EXCLUDED.status,
			payment_status = EXCLUDED.payment_status,
			scheduled_for = EXCLUDED.scheduled_for
	`
	if _, err := r.db.Exec(ctx, query,
		appt.ID,
		digits,
		appt.PatientName,
		appt.Phone,
		appt.DoctorID,
		appt.DoctorName,
		appt.Specialty,
		appt.Concern,
		appt.Date,
		appt.SlotLabel,
		appt.Time,
		appt.Fee,
		string(appt.Status),
		string(appt.PaymentStatus),
		appt.PaymentLink,
		scheduledFor,
		appt.CreatedAt,
	); err != nil {
		return fmt.Errorf("patients: upsert appointment: %w", err)
	}
	if _, err := r.db.Exec(ctx, `UPDATE patients SET last_visit = GREATEST(COALESCE(last_visit, $2), $2) WHERE phone_digits = $1`, digits, appt.CreatedAt); err != nil {
		return fmt.Errorf("patients: touch last visit: %w", err)
	}
	return nil
}

const appointmentColumns = `id, patient_name, phone, doctor_id, doctor_name, specialty, concern,
	appt_date, slot_label, appt_time, fee, status, payment_status, payment_link, scheduled_for, created_at`

func (r *PostgresRepository) GetPatientAppointments(ctx context.Context, phone string) ([]appointments.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM patient_appointments WHERE phone_digits = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, appointments.NormalizePhone(phone))
	if err != nil {
		return nil, fmt.Errorf("patients: list appointments: %w", err)
	}
	return scanAppointments(rows)
}

func (r *PostgresRepository) ListAppointments(ctx context.Context) ([]appointments.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM patient_appointments ORDER BY created_at DESC LIMIT 500`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("patients: list all appointments: %w", err)
	}
	return scanAppointments(rows)
}

func (r *PostgresRepository) Search(ctx context.Context, query string) ([]Patient, error) {
	sql := `
		SELECT id, name, phone, created_at, last_visit
		FROM patients
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%' OR ($2 <> '' AND phone_digits LIKE '%' || $2 || '%')
		ORDER BY name, phone
		LIMIT 50
	`
	rows, err := r.db.Query(ctx, sql, query, appointments.NormalizePhone(query))
	if err != nil {
		return nil, fmt.Errorf("patients: search: %w", err)
	}
	defer rows.Close()

	var out []Patient
	for rows.Next() {
		var (
			p         Patient
			lastVisit *time.Time
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Phone, &p.CreatedAt, &lastVisit); err != nil {
			return nil, fmt.Errorf("patients: scan patient: %w", err)
		}
		if lastVisit != nil {
			p.LastVisit = *lastVisit
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("patients: search rows: %w", err)
	}
	return out, nil
}

func scanAppointments(rows pgx.Rows) ([]appointments.Appointment, error) {
	defer rows.Close()
	var out []appointments.Appointment
	for rows.Next() {
		var (
			a             appointments.Appointment
			status        string
			paymentStatus string
			scheduledFor  *time.Time
		)
		if err := rows.Scan(
			&a.ID,
			&a.PatientName,
			&a.Phone,
			&a.DoctorID,
			&a.DoctorName,
			&a.Specialty,
			&a.Concern,
			&a.Date,
			&a.SlotLabel,
			&a.Time,
			&a.Fee,
			&status,
			&paymentStatus,
			&a.PaymentLink,
			&scheduledFor,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("patients: scan appointment: %w", err)
		}
		a.Status = appointments.Status(status)
		a.PaymentStatus = appointments.PaymentStatus(paymentStatus)
		if scheduledFor != nil {
			a.ScheduledFor = *scheduledFor
		}
		a.Source = "postgres"
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("patients: appointment rows: %w", err)
	}
	return out, nil
}
