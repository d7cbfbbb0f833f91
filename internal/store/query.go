package store

import (
	"strings"
	"time"

	"clinic-server/internal/model"
)

// ByPatient returns appointments whose patient name contains name,
// case-insensitively.
func (s *Store) ByPatient(name string) []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(name)
	var out []model.Appointment
	for _, a := range s.appts {
		if strings.Contains(strings.ToLower(a.PatientName), needle) {
			out = append(out, a)
		}
	}
	return out
}

// Pending returns appointments not yet confirmed.
func (s *Store) Pending() []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Appointment
	for _, a := range s.appts {
		if !a.Confirmed {
			out = append(out, a)
		}
	}
	return out
}

// AvailableSlots returns the free candidate start times for the calendar day
// of date, ascending. A candidate t is occupied when some appointment that
// day satisfies start <= t < start+duration; a candidate equal to an
// appointment's end is free (intervals are half-open).
func (s *Store) AvailableSlots(date time.Time) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.window
	y, m, d := date.Date()
	loc := date.Location()
	open := time.Date(y, m, d, w.OpenHour, w.OpenMinute, 0, 0, loc)
	close := time.Date(y, m, d, w.CloseHour, w.CloseMinute, 0, 0, loc)
	step := time.Duration(w.SlotMinutes) * time.Minute

	var dayAppts []model.Appointment
	for _, a := range s.appts {
		ay, am, ad := a.StartsAt.Date()
		if ay == y && am == m && ad == d {
			dayAppts = append(dayAppts, a)
		}
	}

	var slots []time.Time
	for t := open; t.Before(close); t = t.Add(step) {
		free := true
		for _, a := range dayAppts {
			if !t.Before(a.StartsAt) && t.Before(a.End()) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, t)
		}
	}
	return slots
}

// HasOverlap reports whether [start, start+duration) intersects an existing
// appointment, excluding the record with excludeID (0 for none). Callers
// check this before Create/Update; the store itself does not reject
// overlapping records.
func (s *Store) HasOverlap(start time.Time, durationMin int, excludeID int64) bool {
	if durationMin < 1 {
		durationMin = model.DefaultDurationMin
	}
	end := start.Add(time.Duration(durationMin) * time.Minute)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.appts {
		if a.ID == excludeID {
			continue
		}
		if start.Before(a.End()) && a.StartsAt.Before(end) {
			return true
		}
	}
	return false
}
