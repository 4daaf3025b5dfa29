package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/campus-forum/internal/model"
)

// BoardRepo persists the forum's boards.
type BoardRepo struct{ DB *sql.DB }

func NewBoardRepo(db *sql.DB) *BoardRepo { return &BoardRepo{DB: db} }

// GetByID fetches a live board.
func (r *BoardRepo) GetByID(ctx context.Context, id uint64) (model.Board, error) {
	var b model.Board
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,`desc`,avatar_url,status,created_at FROM boards WHERE id=? AND status=1 LIMIT 1",
		id).Scan(&b.ID, &b.Name, &b.Desc, &b.AvatarURL, &b.Status, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrNotFound
	}
	return b, err
}

// List returns all live boards.
func (r *BoardRepo) List(ctx context.Context) ([]model.Board, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,name,`desc`,avatar_url,status,created_at FROM boards WHERE status=1 ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Board
	for rows.Next() {
		var b model.Board
		if err := rows.Scan(&b.ID, &b.Name, &b.Desc, &b.AvatarURL, &b.Status, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Create inserts a board and returns its id.
func (r *BoardRepo) Create(ctx context.Context, name, desc, avatarURL string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO boards (name, `desc`, avatar_url, status) VALUES (?,?,?,1)",
		name, desc, avatarURL)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// SetStatus hides (0) or restores (1) a board.
func (r *BoardRepo) SetStatus(ctx context.Context, id uint64, status int) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE boards SET status=? WHERE id=?", status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
