// Package store owns the canonical appointment collection: an in-memory
// slice guarded by one mutex and persisted as a JSON array file with a
// rolling backup of the previous version.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/labstack/gommon/log"

	"clinic-server/internal/model"
)

const appointmentsFile = "appointments.json"

// Window is the slot-generation policy: business hours are half-open
// [Open, Close), with candidate starts every SlotMinutes.
type Window struct {
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
	SlotMinutes int
}

var DefaultWindow = Window{OpenHour: 9, CloseHour: 17, SlotMinutes: 30}

type Option func(*Store)

func WithWindow(w Window) Option {
	return func(s *Store) { s.window = w }
}

// Store serializes every operation, reads included, behind one mutex. The
// mutex spans read-modify-persist, so callers get atomic mutations and a
// file that is never observed half-written.
type Store struct {
	mu     sync.Mutex
	path   string
	window Window
	appts  []model.Appointment
}

// Open loads the collection from dir, creating an empty file when none
// exists. An unreadable or corrupt file logs and degrades to an empty
// collection rather than failing startup.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store dir: %w", err)
	}
	s := &Store{
		path:   filepath.Join(dir, appointmentsFile),
		window: DefaultWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.appts = s.load()
	return s, nil
}

func (s *Store) load() []model.Appointment {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		if werr := os.WriteFile(s.path, []byte("[]"), 0o644); werr != nil {
			log.Errorf("store: seed %s: %v", s.path, werr)
		}
		return nil
	}
	if err != nil {
		log.Errorf("store: read %s: %v", s.path, err)
		return nil
	}
	var appts []model.Appointment
	if err := json.Unmarshal(raw, &appts); err != nil {
		log.Errorf("store: parse %s: %v", s.path, err)
		return nil
	}
	return appts
}

// persist writes appts to disk, keeping the previous file version as
// <file>.bak. The backup is copied before the overwrite and the new content
// lands via rename, so a crash at any point leaves either the old version or
// the new one plus the old backup.
func (s *Store) persist(appts []model.Appointment) error {
	raw, err := json.MarshalIndent(appts, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}
	if prev, err := os.ReadFile(s.path); err == nil {
		if err := os.WriteFile(s.path+".bak", prev, 0o644); err != nil {
			return fmt.Errorf("store: backup: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("store: read previous: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("store: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("store: replace: %w", err)
	}
	return nil
}

// All returns a snapshot of the collection.
func (s *Store) All() []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Appointment, len(s.appts))
	copy(out, s.appts)
	return out
}

// Get returns the appointment with the given id, if present.
func (s *Store) Get(id int64) (model.Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.appts {
		if a.ID == id {
			return a, true
		}
	}
	return model.Appointment{}, false
}

// Create assigns the next id (max existing + 1, or 1), appends and persists.
// The mutation is applied to a copy and swapped in only when the write
// succeeds, so a persist failure leaves memory and file untouched.
func (s *Store) Create(a model.Appointment) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var max int64
	for _, existing := range s.appts {
		if existing.ID > max {
			max = existing.ID
		}
	}
	a.ID = max + 1
	if a.DurationMin < 1 {
		a.DurationMin = model.DefaultDurationMin
	}
	if a.Status == "" {
		a.Status = model.StatusScheduled
	}

	next := make([]model.Appointment, len(s.appts), len(s.appts)+1)
	copy(next, s.appts)
	next = append(next, a)
	if err := s.persist(next); err != nil {
		return model.Appointment{}, err
	}
	s.appts = next
	return a, nil
}

// Update replaces the record with the same id and returns the stored form,
// defaults applied, so callers broadcast exactly what was persisted. Returns
// false when the id is unknown; the file is not rewritten in that case.
func (s *Store) Update(a model.Appointment) (model.Appointment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.appts {
		if s.appts[i].ID == a.ID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return model.Appointment{}, false, nil
	}
	if a.DurationMin < 1 {
		a.DurationMin = model.DefaultDurationMin
	}

	next := make([]model.Appointment, len(s.appts))
	copy(next, s.appts)
	next[idx] = a
	if err := s.persist(next); err != nil {
		return model.Appointment{}, false, err
	}
	s.appts = next
	return a, true, nil
}

// Delete removes every record with the given id (there is at most one).
// Returns false when nothing matched.
func (s *Store) Delete(id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]model.Appointment, 0, len(s.appts))
	for _, a := range s.appts {
		if a.ID != id {
			next = append(next, a)
		}
	}
	if len(next) == len(s.appts) {
		return false, nil
	}
	if err := s.persist(next); err != nil {
		return false, err
	}
	s.appts = next
	return true, nil
}
