// Package mirror replicates the appointment collection into Postgres.
// The JSON file store stays authoritative; the replica only feeds
// reporting queries, so every write here is best effort and failures
// are logged rather than returned to the caller.
package mirror

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/gommon/log"

	"clinic-server/internal/model"
)

const schema = `CREATE TABLE IF NOT EXISTS appointments (
	id               BIGINT PRIMARY KEY,
	patient_name     TEXT NOT NULL,
	contact_phone    TEXT NOT NULL DEFAULT '',
	email            TEXT NOT NULL DEFAULT '',
	starts_at        TIMESTAMPTZ NOT NULL,
	duration_minutes INT NOT NULL,
	treatment_type   TEXT NOT NULL DEFAULT '',
	notes            TEXT NOT NULL DEFAULT '',
	is_confirmed     BOOLEAN NOT NULL DEFAULT FALSE,
	status           TEXT NOT NULL,
	mirrored_at      TIMESTAMPTZ NOT NULL
)`

type Mirror struct {
	pool *pgxpool.Pool
}

func Open(ctx context.Context, databaseURL string) (*Mirror, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, err
	}
	return &Mirror{pool: pool}, nil
}

func (m *Mirror) Close() {
	m.pool.Close()
}

// Upsert writes the current state of one appointment. Runs in its own
// goroutine off the request path.
func (m *Mirror) Upsert(a model.Appointment) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := m.pool.Exec(ctx,
			`INSERT INTO appointments
			   (id, patient_name, contact_phone, email, starts_at,
			    duration_minutes, treatment_type, notes, is_confirmed, status, mirrored_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())
			 ON CONFLICT (id) DO UPDATE SET
			   patient_name = EXCLUDED.patient_name,
			   contact_phone = EXCLUDED.contact_phone,
			   email = EXCLUDED.email,
			   starts_at = EXCLUDED.starts_at,
			   duration_minutes = EXCLUDED.duration_minutes,
			   treatment_type = EXCLUDED.treatment_type,
			   notes = EXCLUDED.notes,
			   is_confirmed = EXCLUDED.is_confirmed,
			   status = EXCLUDED.status,
			   mirrored_at = NOW()`,
			a.ID, a.PatientName, a.ContactPhone, a.Email, a.StartsAt,
			a.DurationMin, a.TreatmentType, a.Notes, a.Confirmed, a.Status,
		)
		if err != nil {
			log.Warnf("mirror upsert %d: %v", a.ID, err)
		}
	}()
}

func (m *Mirror) Delete(id int64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := m.pool.Exec(ctx,
			`DELETE FROM appointments WHERE id = $1`, id); err != nil {
			log.Warnf("mirror delete %d: %v", id, err)
		}
	}()
}
