// Package catalog is the static, read-only registry of the clinic's
// doctors, specialties, slot menus and opening hours.
package catalog

import (
	"fmt"
	"strings"
)

// Specialty groups doctors and drives concern routing.
type Specialty string

const (
	SpecialtyGeneral     Specialty = "general"
	SpecialtyCardiology  Specialty = "cardiology"
	SpecialtyOrthopedics Specialty = "orthopedics"
	SpecialtyDental      Specialty = "dental"
)

// DisplayName is the label patients see.
func (s Specialty) DisplayName() string {
	switch s {
	case SpecialtyCardiology:
		return "Cardiology"
	case SpecialtyOrthopedics:
		return "Orthopedics"
	case SpecialtyDental:
		return "Dental"
	default:
		return "General Medicine"
	}
}

// Doctor is an immutable catalog entry.
type Doctor struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Specialty      Specialty `json:"specialty"`
	Fee            int       `json:"fee"`
	Rating         float64   `json:"rating"`
	Experience     int       `json:"experience"`
	Qualifications string    `json:"qualifications"`
	Slots          [3]Slot   `json:"slots"`
}

// SpecialtyName is the display name of the doctor's specialty.
func (d Doctor) SpecialtyName() string {
	return d.Specialty.DisplayName()
}

// Slot returns the 1-based slot option, or false when out of range.
func (d Doctor) Slot(option int) (Slot, bool) {
	if option < 1 || option > len(d.Slots) {
		return Slot{}, false
	}
	return d.Slots[option-1], true
}

// Catalog is safe for concurrent reads; nothing mutates it after New.
type Catalog struct {
	doctors     []Doctor
	byID        map[string]Doctor
	bySpecialty map[Specialty][]Doctor
}

// New builds a catalog from the given doctors, preserving order.
func New(doctors []Doctor) *Catalog {
	c := &Catalog{
		doctors:     make([]Doctor, 0, len(doctors)),
		byID:        make(map[string]Doctor, len(doctors)),
		bySpecialty: make(map[Specialty][]Doctor),
	}
	for _, d := range doctors {
		c.doctors = append(c.doctors, d)
		c.byID[d.ID] = d
		c.bySpecialty[d.Specialty] = append(c.bySpecialty[d.Specialty], d)
	}
	return c
}

// Default returns the clinic's standing roster.
func Default() *Catalog {
	return New(defaultDoctors())
}

// Doctors returns every doctor in listing order.
func (c *Catalog) Doctors() []Doctor {
	out := make([]Doctor, len(c.doctors))
	copy(out, c.doctors)
	return out
}

// Doctor looks a doctor up by id.
func (c *Catalog) Doctor(id string) (Doctor, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// BySpecialty lists the doctors of a specialty.
func (c *Catalog) BySpecialty(s Specialty) []Doctor {
	return append([]Doctor(nil), c.bySpecialty[s]...)
}

// Recommend returns the first doctor for the specialty, falling back to
// general medicine when the specialty has nobody on the roster.
func (c *Catalog) Recommend(s Specialty) (Doctor, bool) {
	if list := c.bySpecialty[s]; len(list) > 0 {
		return list[0], true
	}
	if list := c.bySpecialty[SpecialtyGeneral]; len(list) > 0 {
		return list[0], true
	}
	if len(c.doctors) > 0 {
		return c.doctors[0], true
	}
	return Doctor{}, false
}

// ByListNumber resolves a 1-based position in the doctor list.
func (c *Catalog) ByListNumber(n int) (Doctor, bool) {
	if n < 1 || n > len(c.doctors) {
		return Doctor{}, false
	}
	return c.doctors[n-1], true
}

// FindByName matches a (partial, case-insensitive) doctor name such as
// "smith", "dr. smith" or "Book Dr Smith".
func (c *Catalog) FindByName(query string) (Doctor, bool) {
	q := normalizeName(query)
	q = strings.TrimPrefix(q, "book ")
	q = strings.TrimPrefix(q, "dr ")
	q = strings.TrimSpace(q)
	if q == "" {
		return Doctor{}, false
	}
	for _, d := range c.doctors {
		name := normalizeName(d.Name)
		if strings.Contains(name, q) {
			return d, true
		}
	}
	// "smith sarah" or surname-only queries with extra words
	for _, d := range c.doctors {
		name := normalizeName(d.Name)
		for _, word := range strings.Fields(q) {
			if len(word) > 2 && word != "dr" && strings.Contains(name, word) {
				return d, true
			}
		}
	}
	return Doctor{}, false
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ".", " ")
	return strings.Join(strings.Fields(s), " ")
}

// FeeFor reports the fee range of a specialty as text, e.g. "₹450 - ₹500".
func (c *Catalog) FeeFor(s Specialty) string {
	list := c.bySpecialty[s]
	if len(list) == 0 {
		return ""
	}
	lo, hi := list[0].Fee, list[0].Fee
	for _, d := range list[1:] {
		if d.Fee < lo {
			lo = d.Fee
		}
		if d.Fee > hi {
			hi = d.Fee
		}
	}
	if lo == hi {
		return fmt.Sprintf("₹%d", lo)
	}
	return fmt.Sprintf("₹%d - ₹%d", lo, hi)
}

// Specialties lists specialties that have at least one doctor, in
// roster order.
func (c *Catalog) Specialties() []Specialty {
	seen := make(map[Specialty]bool)
	var out []Specialty
	for _, d := range c.doctors {
		if !seen[d.Specialty] {
			seen[d.Specialty] = true
			out = append(out, d.Specialty)
		}
	}
	return out
}

func defaultDoctors() []Doctor {
	slots := StandardSlots()
	return []Doctor{
		{ID: "dr_smith", Name: "Dr. Sarah Smith", Specialty: SpecialtyGeneral, Fee: 500, Rating: 4.8, Experience: 12, Qualifications: "MBBS, MD (Internal Medicine)", Slots: slots},
		{ID: "dr_wilson", Name: "Dr. Lisa Wilson", Specialty: SpecialtyGeneral, Fee: 450, Rating: 4.6, Experience: 8, Qualifications: "MBBS, MD (Family Medicine)", Slots: slots},
		{ID: "dr_john", Name: "Dr. John Carter", Specialty: SpecialtyCardiology, Fee: 800, Rating: 4.9, Experience: 15, Qualifications: "MBBS, MD, DM (Cardiology)", Slots: slots},
		{ID: "dr_brown", Name: "Dr. Michael Brown", Specialty: SpecialtyOrthopedics, Fee: 700, Rating: 4.7, Experience: 20, Qualifications: "MBBS, MS (Orthopedics)", Slots: slots},
		{ID: "dr_davis", Name: "Dr. Emma Davis", Specialty: SpecialtyDental, Fee: 600, Rating: 4.8, Experience: 10, Qualifications: "BDS, MDS (Oral Surgery)", Slots: slots},
	}
}
