package store_test

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"clinic-server/internal/model"
	"clinic-server/internal/store"
)

func setup(t *testing.T) (*store.Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s, dir
}

func appt(name string, starts time.Time, durationMin int) model.Appointment {
	return model.Appointment{
		PatientName:   name,
		ContactPhone:  "600123123",
		StartsAt:      starts,
		DurationMin:   durationMin,
		TreatmentType: "Cleaning",
	}
}

func readFile(t *testing.T, dir string) []byte {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(dir, "appointments.json"))
	if err != nil {
		t.Fatalf("read appointments file: %v", err)
	}
	return raw
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	s, _ := setup(t)
	base := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	first, err := s.Create(appt("Ana", base, 30))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ID != 1 {
		t.Fatalf("first id = %d, want 1", first.ID)
	}
	second, err := s.Create(appt("Bea", base.Add(time.Hour), 30))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if second.ID != 2 {
		t.Fatalf("second id = %d, want 2", second.ID)
	}

	// deleting the low id must not let ids be reused below max+1
	if ok, err := s.Delete(first.ID); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	third, err := s.Create(appt("Carla", base.Add(2*time.Hour), 30))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if third.ID != 3 {
		t.Fatalf("third id = %d, want 3", third.ID)
	}
}

func TestCreateDefaultsDurationAndStatus(t *testing.T) {
	s, _ := setup(t)
	a, err := s.Create(appt("Ana", time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), 0))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.DurationMin != 30 {
		t.Fatalf("duration = %d, want default 30", a.DurationMin)
	}
	if a.Status != model.StatusScheduled {
		t.Fatalf("status = %q, want %q", a.Status, model.StatusScheduled)
	}
}

func TestConcurrentCreatesUniqueIDs(t *testing.T) {
	s, _ := setup(t)
	base := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	const n = 20
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := s.Create(appt("P", base.Add(time.Duration(i)*time.Hour), 30))
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			ids <- a.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d unique ids, want %d", len(seen), n)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	s, dir := setup(t)
	want := model.Appointment{
		PatientName:   "Ana García",
		ContactPhone:  "600111222",
		Email:         "ana@example.com",
		StartsAt:      time.Date(2024, 3, 5, 11, 30, 0, 0, time.UTC),
		DurationMin:   45,
		TreatmentType: "Root canal",
		Notes:         "second visit",
		Confirmed:     true,
		Status:        model.StatusConfirmed,
	}
	created, err := s.Create(want)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	reopened, err := store.Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok := reopened.Get(created.ID)
	if !ok {
		t.Fatal("record missing after reload")
	}
	if got.PatientName != want.PatientName ||
		got.ContactPhone != want.ContactPhone ||
		got.Email != want.Email ||
		!got.StartsAt.Equal(want.StartsAt) ||
		got.DurationMin != want.DurationMin ||
		got.TreatmentType != want.TreatmentType ||
		got.Notes != want.Notes ||
		got.Confirmed != want.Confirmed ||
		got.Status != want.Status {
		t.Fatalf("reloaded record differs: %+v vs %+v", got, want)
	}
}

func TestUpdateAndDeleteMissingLeaveFileUntouched(t *testing.T) {
	s, dir := setup(t)
	if _, err := s.Create(appt("Ana", time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), 30)); err != nil {
		t.Fatalf("create: %v", err)
	}
	before := readFile(t, dir)

	_, ok, err := s.Update(model.Appointment{ID: 99, PatientName: "Ghost", StartsAt: time.Now()})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if ok {
		t.Fatal("update of missing id reported success")
	}
	ok, err = s.Delete(99)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok {
		t.Fatal("delete of missing id reported success")
	}

	after := readFile(t, dir)
	if !bytes.Equal(before, after) {
		t.Fatal("file changed by failed update/delete")
	}
}

func TestUpdateReplacesInPlace(t *testing.T) {
	s, _ := setup(t)
	a, err := s.Create(appt("Ana", time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), 30))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	a.Notes = "rescheduled"
	a.Confirmed = true
	_, ok, err := s.Update(a)
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	got, _ := s.Get(a.ID)
	if got.Notes != "rescheduled" || !got.Confirmed {
		t.Fatalf("update not applied: %+v", got)
	}
	if len(s.All()) != 1 {
		t.Fatal("update changed collection size")
	}
}

func TestUpdateReturnsStoredRecord(t *testing.T) {
	s, _ := setup(t)
	a, err := s.Create(appt("Ana", time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), 30))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// zero duration takes the default; the returned record must show it
	a.DurationMin = 0
	updated, ok, err := s.Update(a)
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	if updated.DurationMin != model.DefaultDurationMin {
		t.Fatalf("returned duration = %d, want %d", updated.DurationMin, model.DefaultDurationMin)
	}
	got, _ := s.Get(a.ID)
	if got.DurationMin != updated.DurationMin {
		t.Fatalf("stored duration %d differs from returned %d", got.DurationMin, updated.DurationMin)
	}
}

func TestBackupKeepsPreviousVersion(t *testing.T) {
	s, dir := setup(t)
	if _, err := s.Create(appt("Ana", time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), 30)); err != nil {
		t.Fatalf("create: %v", err)
	}
	afterFirst := readFile(t, dir)

	if _, err := s.Create(appt("Bea", time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC), 30)); err != nil {
		t.Fatalf("create: %v", err)
	}
	bak, err := os.ReadFile(filepath.Join(dir, "appointments.json.bak"))
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if !bytes.Equal(bak, afterFirst) {
		t.Fatal("backup is not the previous file version")
	}
}

func TestCorruptFileDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "appointments.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}
	s, err := store.Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := s.All(); len(got) != 0 {
		t.Fatalf("expected empty collection, got %d records", len(got))
	}
}

func TestAvailableSlotsSpacingAndWindow(t *testing.T) {
	s, _ := setup(t)
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	slots := s.AvailableSlots(day)
	if len(slots) != 16 {
		t.Fatalf("empty day: got %d slots, want 16 (09:00..16:30)", len(slots))
	}
	for i, slot := range slots {
		if slot.Hour() < 9 || !slot.Before(time.Date(2024, 1, 10, 17, 0, 0, 0, time.UTC)) {
			t.Fatalf("slot %v outside business window", slot)
		}
		if i > 0 && slots[i].Sub(slots[i-1]) != 30*time.Minute {
			t.Fatalf("slots not 30 minutes apart: %v -> %v", slots[i-1], slots[i])
		}
	}
}

func TestAvailableSlotsExcludesBookedRange(t *testing.T) {
	s, _ := setup(t)
	if _, err := s.Create(appt("Ana", time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), 30)); err != nil {
		t.Fatalf("create: %v", err)
	}

	slots := s.AvailableSlots(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	has := func(h, m int) bool {
		for _, slot := range slots {
			if slot.Hour() == h && slot.Minute() == m {
				return true
			}
		}
		return false
	}
	if has(9, 0) {
		t.Fatal("09:00 should be taken")
	}
	// candidate equal to appointment end is free (half-open interval)
	if !has(9, 30) {
		t.Fatal("09:30 should be free")
	}
	if has(8, 30) {
		t.Fatal("08:30 is before business hours")
	}
}

func TestAvailableSlotsLongAppointmentAndOtherDays(t *testing.T) {
	s, _ := setup(t)
	// 45-minute appointment blocks two candidates
	if _, err := s.Create(appt("Ana", time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC), 45)); err != nil {
		t.Fatalf("create: %v", err)
	}
	// a different day must not affect this one
	if _, err := s.Create(appt("Bea", time.Date(2024, 1, 11, 9, 0, 0, 0, time.UTC), 30)); err != nil {
		t.Fatalf("create: %v", err)
	}

	slots := s.AvailableSlots(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	for _, slot := range slots {
		if slot.Hour() == 10 {
			t.Fatalf("slot %v overlaps the 10:00-10:45 appointment", slot)
		}
	}
	found := false
	for _, slot := range slots {
		if slot.Hour() == 9 && slot.Minute() == 0 {
			found = true
		}
	}
	if !found {
		t.Fatal("09:00 should be free; the other appointment is on another day")
	}
}

func TestHasOverlap(t *testing.T) {
	s, _ := setup(t)
	created, err := s.Create(appt("Ana", time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC), 30))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		name    string
		start   time.Time
		dur     int
		exclude int64
		want    bool
	}{
		{"same range", time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC), 30, 0, true},
		{"straddles start", time.Date(2024, 1, 10, 9, 45, 0, 0, time.UTC), 30, 0, true},
		{"touches end", time.Date(2024, 1, 10, 10, 30, 0, 0, time.UTC), 30, 0, false},
		{"touches start", time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC), 30, 0, false},
		{"self excluded", time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC), 30, created.ID, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.HasOverlap(tt.start, tt.dur, tt.exclude); got != tt.want {
				t.Fatalf("HasOverlap = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestByPatientCaseInsensitive(t *testing.T) {
	s, _ := setup(t)
	if _, err := s.Create(appt("Ana García", time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), 30)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := s.ByPatient("ana"); len(got) != 1 {
		t.Fatalf("ByPatient(ana) = %d records, want 1", len(got))
	}
	if got := s.ByPatient("nobody"); len(got) != 0 {
		t.Fatalf("ByPatient(nobody) = %d records, want 0", len(got))
	}
}
