package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/campus-forum/internal/engagement"
)

// CounterRepo computes aggregate counters for the property cache. Each
// load is one round-trip of subquery aggregates keyed off the entity row,
// so a missing entity surfaces as ErrNotFound rather than a zero map.
type CounterRepo struct{ DB *sql.DB }

func NewCounterRepo(db *sql.DB) *CounterRepo { return &CounterRepo{DB: db} }

// LoadCounters implements engagement.CounterLoader.
func (r *CounterRepo) LoadCounters(ctx context.Context, kind engagement.ContentKind, entityID string) (map[string]int64, error) {
	switch kind {
	case engagement.ArticleKind:
		var views, likes, comments int64
		err := r.DB.QueryRowContext(ctx, `
			SELECT a.views,
			       (SELECT COUNT(*) FROM likes l WHERE l.article_id = a.id AND l.status = 1),
			       (SELECT COUNT(*) FROM comments c WHERE c.article_id = a.id AND c.status = 1)
			FROM articles a WHERE a.id=? AND a.status=1`, entityID).
			Scan(&views, &likes, &comments)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return map[string]int64{"views": views, "likes": likes, "comments": comments}, nil

	case engagement.CommentKind:
		var rates, subComments int64
		err := r.DB.QueryRowContext(ctx, `
			SELECT (SELECT COUNT(*) FROM rates t WHERE t.comment_id = c.id AND t.status = 1),
			       (SELECT COUNT(*) FROM sub_comments s WHERE s.comment_id = c.id AND s.status = 1)
			FROM comments c WHERE c.id=? AND c.status=1`, entityID).
			Scan(&rates, &subComments)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return map[string]int64{"rates": rates, "sub_comments": subComments}, nil
	}
	return nil, fmt.Errorf("unknown content kind %q", kind)
}
