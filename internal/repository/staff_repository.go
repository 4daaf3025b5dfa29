package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/iliyamo/campus-forum/internal/auth"
	"github.com/iliyamo/campus-forum/internal/model"
	"github.com/iliyamo/campus-forum/internal/utils"
)

// StaffRepo persists administrative-panel accounts.
type StaffRepo struct{ DB *sql.DB }

func NewStaffRepo(db *sql.DB) *StaffRepo { return &StaffRepo{DB: db} }

const staffCols = "id,email,username,password_hash,permission,status,created_at"

func scanStaff(row *sql.Row) (model.Staff, error) {
	var s model.Staff
	err := row.Scan(&s.ID, &s.Email, &s.Username, &s.PasswordHash, &s.Permission, &s.Status, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

// Create inserts a staff account with a bcrypt-hashed password.
func (r *StaffRepo) Create(ctx context.Context, email, username, password string, perm auth.Permission, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO staff (email, username, password_hash, permission, status) VALUES (?,?,?,?,1)",
		email, username, hash, perm)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a staff account by normalized email.
func (r *StaffRepo) GetByEmail(ctx context.Context, email string) (model.Staff, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanStaff(r.DB.QueryRowContext(ctx,
		"SELECT "+staffCols+" FROM staff WHERE email=? LIMIT 1", email))
}

// GetByID fetches a staff account by id.
func (r *StaffRepo) GetByID(ctx context.Context, id uint64) (model.Staff, error) {
	return scanStaff(r.DB.QueryRowContext(ctx,
		"SELECT "+staffCols+" FROM staff WHERE id=? LIMIT 1", id))
}

// SetPermission replaces an account's capability bitmask.
func (r *StaffRepo) SetPermission(ctx context.Context, id uint64, perm auth.Permission) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE staff SET permission=? WHERE id=?", perm, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SubjectByID adapts the repo to auth.SubjectStore for token validation.
// Staff subject ids are the decimal form of the primary key.
func (r *StaffRepo) SubjectByID(ctx context.Context, id string) (auth.Subject, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return nil, auth.ErrUnknownSubject
	}
	s, err := r.GetByID(ctx, n)
	if errors.Is(err, ErrNotFound) {
		return nil, auth.ErrUnknownSubject
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
