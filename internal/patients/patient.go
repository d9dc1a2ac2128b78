// Package patients keeps patient records and their appointment history,
// and derives the returning/new status a conversation starts from.
package patients

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/wolfman30/clinic-intake/internal/appointments"
)

// ErrPatientNotFound is returned when no patient matches a phone.
var ErrPatientNotFound = errors.New("patients: patient not found")

// Patient is a person known to the clinic, matched by phone.
type Patient struct {
	ID        string    `json:"id" bson:"id"`
	Name      string    `json:"name" bson:"name"`
	Phone     string    `json:"phone" bson:"phone"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	LastVisit time.Time `json:"last_visit,omitempty" bson:"last_visit,omitempty"`
}

// Repository persists patients and their appointment history.
type Repository interface {
	CreatePatient(ctx context.Context, p Patient) (*Patient, error)
	FindPatientByPhone(ctx context.Context, phone string) (*Patient, error)
	// CreateAppointment records appt against the phone's patient. Saving
	// an id that already exists replaces the stored copy.
	CreateAppointment(ctx context.Context, appt appointments.Appointment) error
	GetPatientAppointments(ctx context.Context, phone string) ([]appointments.Appointment, error)
	ListAppointments(ctx context.Context) ([]appointments.Appointment, error)
	Search(ctx context.Context, query string) ([]Patient, error)
}

// Status is the snapshot taken when a conversation starts.
type Status struct {
	IsNew                 bool                       `json:"is_new"`
	IsReturning           bool                       `json:"is_returning"`
	HasActiveAppointments bool                       `json:"has_active_appointments"`
	AppointmentCount      int                        `json:"appointment_count"`
	Appointments          []appointments.Appointment `json:"appointments"`
	PatientName           string                     `json:"patient_name,omitempty"`
	LastDoctorID          string                     `json:"last_doctor_id,omitempty"`
	LastDoctorName        string                     `json:"last_doctor_name,omitempty"`
}

// DeriveStatus computes a Status from the patient record (nil when
// unknown) and every appointment sighting for the phone. Appointments
// lists the active, not-yet-past bookings, soonest first.
func DeriveStatus(p *Patient, appts []appointments.Appointment, now time.Time, loc *time.Location) Status {
	st := Status{Appointments: []appointments.Appointment{}}
	if p != nil {
		st.PatientName = p.Name
	}

	var latest appointments.Appointment
	for _, a := range appts {
		if !a.Active() {
			continue
		}
		st.AppointmentCount++
		if latest.CreatedAt.IsZero() || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
		if st.PatientName == "" {
			st.PatientName = a.PatientName
		}
		if !appointments.IsPast(a, now, loc) {
			st.Appointments = append(st.Appointments, a)
		}
	}
	sort.SliceStable(st.Appointments, func(i, j int) bool {
		a, b := st.Appointments[i], st.Appointments[j]
		if !a.ScheduledFor.IsZero() && !b.ScheduledFor.IsZero() {
			return a.ScheduledFor.Before(b.ScheduledFor)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	st.LastDoctorID = latest.DoctorID
	st.LastDoctorName = latest.DoctorName
	st.HasActiveAppointments = len(st.Appointments) > 0
	st.IsReturning = p != nil || st.AppointmentCount > 0
	st.IsNew = !st.IsReturning
	return st
}
