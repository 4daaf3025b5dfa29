package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/campus-forum/internal/auth"
	"github.com/iliyamo/campus-forum/internal/model"
)

// FrontUserRepo persists forum-facing user accounts.
type FrontUserRepo struct{ DB *sql.DB }

func NewFrontUserRepo(db *sql.DB) *FrontUserRepo { return &FrontUserRepo{DB: db} }

const frontUserCols = "id,open_id,union_id,username,signature,gender,avatar_url,permission,status,created_at"

func scanFrontUser(row *sql.Row) (model.FrontUser, error) {
	var u model.FrontUser
	err := row.Scan(&u.ID, &u.OpenID, &u.UnionID, &u.Username, &u.Signature,
		&u.Gender, &u.AvatarURL, &u.Permission, &u.Status, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *FrontUserRepo) GetByID(ctx context.Context, id string) (model.FrontUser, error) {
	return scanFrontUser(r.DB.QueryRowContext(ctx,
		"SELECT "+frontUserCols+" FROM front_users WHERE id=? LIMIT 1", id))
}

// GetByOpenID fetches a user by the third-party open id.
func (r *FrontUserRepo) GetByOpenID(ctx context.Context, openID string) (model.FrontUser, error) {
	return scanFrontUser(r.DB.QueryRowContext(ctx,
		"SELECT "+frontUserCols+" FROM front_users WHERE open_id=? LIMIT 1", openID))
}

// Create inserts a user with the default visitor permission and returns it.
func (r *FrontUserRepo) Create(ctx context.Context, openID, unionID, username, avatarURL string) (model.FrontUser, error) {
	id := uuid.NewString()
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO front_users (id, open_id, union_id, username, avatar_url, permission, status) VALUES (?,?,?,?,?,?,1)",
		id, openID, unionID, username, avatarURL, auth.Visitor)
	if err != nil {
		return model.FrontUser{}, err
	}
	return r.GetByID(ctx, id)
}

// UpdateProfile overwrites the mutable profile fields.
func (r *FrontUserRepo) UpdateProfile(ctx context.Context, id, username, signature, avatarURL string, gender int) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE front_users SET username=?, signature=?, avatar_url=?, gender=? WHERE id=?",
		username, signature, avatarURL, gender, id)
	return err
}

// SetStatus bans (0) or restores (1) an account.
func (r *FrontUserRepo) SetStatus(ctx context.Context, id string, status int) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE front_users SET status=? WHERE id=?", status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List pages through users for the administrative panel.
func (r *FrontUserRepo) List(ctx context.Context, offset, limit int) ([]model.FrontUser, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+frontUserCols+" FROM front_users ORDER BY created_at DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.FrontUser
	for rows.Next() {
		var u model.FrontUser
		if err := rows.Scan(&u.ID, &u.OpenID, &u.UnionID, &u.Username, &u.Signature,
			&u.Gender, &u.AvatarURL, &u.Permission, &u.Status, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SubjectByID adapts the repo to auth.SubjectStore for token validation.
func (r *FrontUserRepo) SubjectByID(ctx context.Context, id string) (auth.Subject, error) {
	u, err := r.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, auth.ErrUnknownSubject
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
