package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"clinic-server/internal/auth"
	"clinic-server/internal/model"
)

var ErrNotFound = errors.New("not found")

// EnsureStaffUser creates the account when the username is new; existing
// accounts are left untouched so a redeploy never resets passwords.
func (d *DB) EnsureStaffUser(ctx context.Context, username, password, displayName, role string) error {
	var count int
	if err := d.conn.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM staff_users WHERE username = ?`, username); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = d.conn.ExecContext(ctx,
		`INSERT INTO staff_users (id, username, password_hash, display_name, role)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), username, hash, displayName, role,
	)
	return err
}

func (d *DB) StaffByUsername(ctx context.Context, username string) (*model.StaffUser, error) {
	return d.staffWhere(ctx, `username = ?`, username)
}

func (d *DB) StaffByID(ctx context.Context, id string) (*model.StaffUser, error) {
	return d.staffWhere(ctx, `id = ?`, id)
}

func (d *DB) staffWhere(ctx context.Context, cond string, arg any) (*model.StaffUser, error) {
	var row struct {
		ID           string `db:"id"`
		Username     string `db:"username"`
		PasswordHash string `db:"password_hash"`
		DisplayName  string `db:"display_name"`
		Role         string `db:"role"`
	}
	err := d.conn.GetContext(ctx, &row,
		`SELECT id, username, password_hash, display_name, role
		 FROM staff_users WHERE `+cond, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &model.StaffUser{
		ID:           row.ID,
		Username:     row.Username,
		PasswordHash: row.PasswordHash,
		DisplayName:  row.DisplayName,
		Role:         row.Role,
	}, nil
}
