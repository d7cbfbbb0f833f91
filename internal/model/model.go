package model

import "time"

// Appointment is the canonical record persisted in the appointments file.
// The JSON tags are the on-disk and on-wire contract shared with the
// dashboard and the console clients.
type Appointment struct {
	ID            int64     `json:"id"`
	PatientName   string    `json:"patientName" validate:"required,max=128"`
	ContactPhone  string    `json:"contactPhone" validate:"required,max=32"`
	Email         string    `json:"email" validate:"omitempty,email"`
	StartsAt      time.Time `json:"appointmentDateTime" validate:"required"`
	DurationMin   int       `json:"durationMinutes" validate:"min=0,max=480"`
	TreatmentType string    `json:"treatmentType" validate:"max=128"`
	Notes         string    `json:"notes" validate:"max=2048"`
	Confirmed     bool      `json:"isConfirmed"`
	Status        string    `json:"status" validate:"max=32"`
}

// End returns the half-open end of the appointment interval.
func (a Appointment) End() time.Time {
	return a.StartsAt.Add(time.Duration(a.DurationMin) * time.Minute)
}

// DeletedAppointment is the identifier-only payload broadcast when a record
// is removed.
type DeletedAppointment struct {
	ID int64 `json:"id"`
}

type StaffUser struct {
	ID           string
	Username     string
	PasswordHash string
	DisplayName  string
	Role         string
	CreatedAt    time.Time
}

const (
	StatusScheduled = "Scheduled"
	StatusConfirmed = "Confirmed"
	StatusCanceled  = "Canceled"

	DefaultDurationMin = 30
)
