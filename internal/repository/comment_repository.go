package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/campus-forum/internal/model"
)

// CommentRepo persists comments and their nested replies. Reads join the
// parent authors in so ownership checks need no follow-up queries.
type CommentRepo struct{ DB *sql.DB }

func NewCommentRepo(db *sql.DB) *CommentRepo { return &CommentRepo{DB: db} }

// GetByID fetches a live comment together with the root article's author.
func (r *CommentRepo) GetByID(ctx context.Context, id string) (model.Comment, error) {
	var c model.Comment
	err := r.DB.QueryRowContext(ctx, `
		SELECT c.id, c.article_id, c.author_id, a.author_id, c.content, c.images, c.status, c.created_at
		FROM comments c JOIN articles a ON a.id = c.article_id
		WHERE c.id=? AND c.status=1 LIMIT 1`, id).
		Scan(&c.ID, &c.ArticleID, &c.AuthorID, &c.ArticleAuthorID,
			&c.Content, &c.Images, &c.Status, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

// Create inserts a comment and returns its id.
func (r *CommentRepo) Create(ctx context.Context, articleID, authorID, content, images string) (string, error) {
	id := uuid.NewString()
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO comments (id, article_id, author_id, content, images, status) VALUES (?,?,?,?,?,1)",
		id, articleID, authorID, content, images)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListByArticle pages through an article's live comments, newest first.
func (r *CommentRepo) ListByArticle(ctx context.Context, articleID string, offset, limit int) ([]model.Comment, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT c.id, c.article_id, c.author_id, a.author_id, c.content, c.images, c.status, c.created_at
		FROM comments c JOIN articles a ON a.id = c.article_id
		WHERE c.article_id=? AND c.status=1
		ORDER BY c.created_at DESC LIMIT ? OFFSET ?`, articleID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.ArticleID, &c.AuthorID, &c.ArticleAuthorID,
			&c.Content, &c.Images, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SoftDelete flips a comment's status.
func (r *CommentRepo) SoftDelete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE comments SET status=0 WHERE id=? AND status=1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSubComment fetches a live reply with both parent authors joined in.
func (r *CommentRepo) GetSubComment(ctx context.Context, id string) (model.SubComment, error) {
	var s model.SubComment
	err := r.DB.QueryRowContext(ctx, `
		SELECT s.id, s.comment_id, s.author_id, c.author_id, a.author_id, s.content, s.status, s.created_at
		FROM sub_comments s
		JOIN comments c ON c.id = s.comment_id
		JOIN articles a ON a.id = c.article_id
		WHERE s.id=? AND s.status=1 LIMIT 1`, id).
		Scan(&s.ID, &s.CommentID, &s.AuthorID, &s.CommentAuthorID, &s.ArticleAuthorID,
			&s.Content, &s.Status, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

// CreateSubComment inserts a reply under a comment and returns its id.
func (r *CommentRepo) CreateSubComment(ctx context.Context, commentID, authorID, content string) (string, error) {
	id := uuid.NewString()
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO sub_comments (id, comment_id, author_id, content, status) VALUES (?,?,?,?,1)",
		id, commentID, authorID, content)
	if err != nil {
		return "", err
	}
	return id, nil
}

// SoftDeleteSubComment flips a reply's status.
func (r *CommentRepo) SoftDeleteSubComment(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE sub_comments SET status=0 WHERE id=? AND status=1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
