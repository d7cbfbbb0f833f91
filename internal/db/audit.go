package db

import (
	"context"
	"time"
)

// AuditEntry is one CRUD operation recorded for the staff dashboard.
type AuditEntry struct {
	ID        int64     `db:"id" json:"id"`
	Timestamp time.Time `db:"ts" json:"timestamp"`
	Operation string    `db:"operation" json:"operation"`
	Resource  string    `db:"resource" json:"resource"`
	Actor     string    `db:"actor" json:"actor"`
	Details   string    `db:"details" json:"details"`
	IPAddress string    `db:"ip_address" json:"ipAddress"`
}

// LogOperation appends one audit entry.
func (d *DB) LogOperation(ctx context.Context, operation, resource, actor, details, ip string) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO audit_log (ts, operation, resource, actor, details, ip_address)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().UTC(), operation, resource, actor, details, ip,
	)
	return err
}

// RecentAuditEntries returns up to limit entries, newest first.
func (d *DB) RecentAuditEntries(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []AuditEntry
	err := d.conn.SelectContext(ctx, &out,
		`SELECT id, ts, operation, resource, actor, details, ip_address
		 FROM audit_log ORDER BY id DESC LIMIT ?`, limit,
	)
	return out, err
}
