package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/campus-forum/internal/model"
)

// NotificationRepo persists the notifications synthesized by the
// reconciliation jobs.
type NotificationRepo struct{ DB *sql.DB }

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{DB: db} }

// ListForUser pages through a user's notifications, newest first.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID string, offset, limit int) ([]model.Notification, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, category, link_id, sender_id, acceptor_id, sender_content, acceptor_content, `+"`read`"+`, created_at
		FROM notifications WHERE acceptor_id=?
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.Category, &n.LinkID, &n.SenderID, &n.AcceptorID,
			&n.SenderContent, &n.AcceptorContent, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountUnread returns the number of unread notifications, used to seed
// the unread counter cache on a miss.
func (r *NotificationRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE acceptor_id=? AND `read`=0", userID).Scan(&n)
	return n, err
}

// MarkRead flags a user's notifications as read and returns how many rows
// changed so the unread counter cache can be decremented to match.
func (r *NotificationRepo) MarkRead(ctx context.Context, userID string, ids []uint64) (int64, error) {
	if len(ids) == 0 {
		res, err := r.DB.ExecContext(ctx,
			"UPDATE notifications SET `read`=1 WHERE acceptor_id=? AND `read`=0", userID)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}
	var total int64
	for _, id := range ids {
		res, err := r.DB.ExecContext(ctx,
			"UPDATE notifications SET `read`=1 WHERE id=? AND acceptor_id=? AND `read`=0", id, userID)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
