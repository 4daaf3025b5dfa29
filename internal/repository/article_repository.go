package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/campus-forum/internal/model"
)

// ArticleRepo persists articles (posts).
type ArticleRepo struct{ DB *sql.DB }

func NewArticleRepo(db *sql.DB) *ArticleRepo { return &ArticleRepo{DB: db} }

const articleCols = "id,board_id,author_id,title,content,images,views,status,created_at"

// GetByID fetches a live article.
func (r *ArticleRepo) GetByID(ctx context.Context, id string) (model.Article, error) {
	var a model.Article
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+articleCols+" FROM articles WHERE id=? AND status=1 LIMIT 1", id).
		Scan(&a.ID, &a.BoardID, &a.AuthorID, &a.Title, &a.Content, &a.Images,
			&a.Views, &a.Status, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	return a, err
}

// Create inserts an article and returns its id.
func (r *ArticleRepo) Create(ctx context.Context, boardID uint64, authorID, title, content, images string) (string, error) {
	id := uuid.NewString()
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO articles (id, board_id, author_id, title, content, images, views, status) VALUES (?,?,?,?,?,?,0,1)",
		id, boardID, authorID, title, content, images)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListByBoard pages through a board's live articles, newest first.
func (r *ArticleRepo) ListByBoard(ctx context.Context, boardID uint64, offset, limit int) ([]model.Article, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+articleCols+" FROM articles WHERE board_id=? AND status=1 ORDER BY created_at DESC LIMIT ? OFFSET ?",
		boardID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Article
	for rows.Next() {
		var a model.Article
		if err := rows.Scan(&a.ID, &a.BoardID, &a.AuthorID, &a.Title, &a.Content,
			&a.Images, &a.Views, &a.Status, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SoftDelete flips an article's status; history and counters stay intact.
func (r *ArticleRepo) SoftDelete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE articles SET status=0 WHERE id=? AND status=1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
