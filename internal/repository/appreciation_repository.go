package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/campus-forum/internal/engagement"
	"github.com/iliyamo/campus-forum/internal/model"
)

// AppreciationRepo persists like and rate records and applies the drained
// reconciliation batches. It implements engagement.RecordStore and
// engagement.ReconcileStore.
type AppreciationRepo struct{ DB *sql.DB }

func NewAppreciationRepo(db *sql.DB) *AppreciationRepo { return &AppreciationRepo{DB: db} }

// table maps a kind onto its table and target column.
func table(kind engagement.Kind) (name, targetCol string, err error) {
	switch kind {
	case engagement.Like:
		return "likes", "article_id", nil
	case engagement.Rate:
		return "rates", "comment_id", nil
	}
	return "", "", fmt.Errorf("unknown appreciation kind %q", kind)
}

// PositiveRecords loads all of a user's status=1 records for a kind.
func (r *AppreciationRepo) PositiveRecords(ctx context.Context, kind engagement.Kind, userID string) ([]engagement.Record, error) {
	tbl, target, err := table(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx,
		fmt.Sprintf("SELECT id, %s, user_id, status, created_at FROM %s WHERE user_id=? AND status=1", target, tbl),
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []engagement.Record
	for rows.Next() {
		var rec engagement.Record
		var created time.Time
		if err := rows.Scan(&rec.ID, &rec.TargetID, &rec.UserID, &rec.Status, &created); err != nil {
			return nil, err
		}
		rec.CreatedAt = created.Unix()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AddViews adds drained view deltas to the persisted counters in one
// transaction. Missing articles are no-ops, not errors.
func (r *AppreciationRepo) AddViews(ctx context.Context, deltas map[string]int64) (int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	count := 0
	for id, delta := range deltas {
		res, err := tx.ExecContext(ctx, "UPDATE articles SET views = views + ? WHERE id=?", delta, id)
		if err != nil {
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			count++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// ApplyAppreciations commits one drained queue batch. Existing records get
// their status overwritten (a replay of an already-applied entry changes
// nothing); unknown records are inserted only when positive, creating a
// notification for the target's owner unless the actor is the owner.
func (r *AppreciationRepo) ApplyAppreciations(ctx context.Context, kind engagement.Kind, entries []engagement.Record) (engagement.ApplyResult, error) {
	tbl, targetCol, err := table(kind)
	if err != nil {
		return engagement.ApplyResult{}, err
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return engagement.ApplyResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var res engagement.ApplyResult
	for _, rec := range entries {
		created := time.Unix(rec.CreatedAt, 0).UTC()

		var exists int
		err := tx.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id=?", tbl), rec.ID).Scan(&exists)
		if err != nil {
			return engagement.ApplyResult{}, err
		}
		if exists > 0 {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("UPDATE %s SET status=?, created_at=? WHERE id=?", tbl),
				rec.Status, created, rec.ID); err != nil {
				return engagement.ApplyResult{}, err
			}
			res.Applied++
			continue
		}
		if rec.Status != 1 {
			continue // never-persisted record toggled back off: net no-op
		}

		ownerID, excerpt, ok, err := targetOwner(ctx, tx, kind, rec.TargetID)
		if err != nil {
			return engagement.ApplyResult{}, err
		}
		if !ok {
			continue // target vanished since the toggle
		}
		var userExists int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM front_users WHERE id=?", rec.UserID).Scan(&userExists); err != nil {
			return engagement.ApplyResult{}, err
		}
		if userExists == 0 {
			continue
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (id, user_id, %s, status, created_at) VALUES (?,?,?,1,?)", tbl, targetCol),
			rec.ID, rec.UserID, rec.TargetID, created); err != nil {
			return engagement.ApplyResult{}, err
		}
		res.Applied++

		if rec.UserID != ownerID {
			n := model.Notification{
				Category:        notifyCategory(kind),
				LinkID:          rec.TargetID,
				SenderID:        rec.UserID,
				AcceptorID:      ownerID,
				SenderContent:   notifyContent(kind),
				AcceptorContent: excerpt,
			}
			ins, err := tx.ExecContext(ctx,
				"INSERT INTO notifications (category, link_id, sender_id, acceptor_id, sender_content, acceptor_content, `read`) VALUES (?,?,?,?,?,?,0)",
				n.Category, n.LinkID, n.SenderID, n.AcceptorID, n.SenderContent, n.AcceptorContent)
			if err != nil {
				return engagement.ApplyResult{}, err
			}
			if id, err := ins.LastInsertId(); err == nil {
				n.ID = uint64(id)
			}
			res.Notifications = append(res.Notifications, n)
		}
	}

	if err := tx.Commit(); err != nil {
		return engagement.ApplyResult{}, err
	}
	return res, nil
}

// targetOwner resolves the owner and a short excerpt of the appreciated
// entity inside the batch transaction. ok=false means the target no
// longer exists.
func targetOwner(ctx context.Context, tx *sql.Tx, kind engagement.Kind, targetID string) (ownerID, excerpt string, ok bool, err error) {
	var row *sql.Row
	if kind == engagement.Rate {
		row = tx.QueryRowContext(ctx, "SELECT author_id, content FROM comments WHERE id=? AND status=1", targetID)
	} else {
		row = tx.QueryRowContext(ctx, "SELECT author_id, title FROM articles WHERE id=? AND status=1", targetID)
	}
	err = row.Scan(&ownerID, &excerpt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	return ownerID, excerpt, true, nil
}

func notifyCategory(kind engagement.Kind) int {
	if kind == engagement.Rate {
		return 2
	}
	return 1
}

func notifyContent(kind engagement.Kind) string {
	if kind == engagement.Rate {
		return "liked your comment"
	}
	return "liked your post"
}
