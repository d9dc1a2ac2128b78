package appointments

// Merge collapses appointment sightings from several sources into one
// list. Sources are given in precedence order: a field set by an earlier
// source is never overwritten, later sources only fill blanks.
//
// Two sightings are the same appointment when their ids match, or, when
// no id matches, when both are active and share a DedupKey. Cancelled
// records only ever match by id so a cancelled booking never swallows a
// later rebooking of the same slot.
func Merge(sources ...[]Appointment) []Appointment {
	var out []Appointment
	byID := make(map[string]int)
	byKey := make(map[string]int)

	for _, source := range sources {
		for _, appt := range source {
			idx, found := -1, false
			if appt.ID != "" {
				idx, found = byID[appt.ID]
			}
			key := appt.DedupKey()
			if !found && key != "" && appt.Active() {
				idx, found = byKey[key]
			}
			if found {
				fillMissing(&out[idx], appt)
			} else {
				out = append(out, appt)
				idx = len(out) - 1
			}

			merged := out[idx]
			if merged.ID != "" {
				if _, ok := byID[merged.ID]; !ok {
					byID[merged.ID] = idx
				}
			}
			if appt.ID != "" {
				if _, ok := byID[appt.ID]; !ok {
					byID[appt.ID] = idx
				}
			}
			if k := merged.DedupKey(); k != "" && merged.Active() {
				if _, ok := byKey[k]; !ok {
					byKey[k] = idx
				}
			}
		}
	}
	return out
}

func fillMissing(dst *Appointment, src Appointment) {
	fill := func(d *string, s string) {
		if *d == "" {
			*d = s
		}
	}
	fill(&dst.ID, src.ID)
	fill(&dst.PatientName, src.PatientName)
	fill(&dst.Phone, src.Phone)
	fill(&dst.DoctorID, src.DoctorID)
	fill(&dst.DoctorName, src.DoctorName)
	fill(&dst.Specialty, src.Specialty)
	fill(&dst.Concern, src.Concern)
	fill(&dst.Date, src.Date)
	fill(&dst.SlotLabel, src.SlotLabel)
	fill(&dst.Time, src.Time)
	fill(&dst.PaymentLink, src.PaymentLink)
	fill(&dst.PaymentRef, src.PaymentRef)
	fill(&dst.Source, src.Source)
	if dst.Fee == 0 {
		dst.Fee = src.Fee
	}
	if dst.Status == "" {
		dst.Status = src.Status
	}
	if dst.PaymentStatus == "" {
		dst.PaymentStatus = src.PaymentStatus
	}
	if dst.ScheduledFor.IsZero() {
		dst.ScheduledFor = src.ScheduledFor
	}
	if dst.CreatedAt.IsZero() {
		dst.CreatedAt = src.CreatedAt
	}
}
