package engagement

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/iliyamo/campus-forum/internal/cache"
	"github.com/iliyamo/campus-forum/internal/model"
)

// ApplyResult reports what one appreciation batch changed in the store.
type ApplyResult struct {
	Applied       int
	Notifications []model.Notification
}

// ReconcileStore applies drained batches to the relational store. Each
// call commits as a single transaction; on error nothing is applied and
// the drained batch stays recoverable in the cache.
type ReconcileStore interface {
	// AddViews adds per-article view deltas to the persisted counters.
	// Articles missing from the store are skipped, not errors. Returns
	// the number of rows updated.
	AddViews(ctx context.Context, deltas map[string]int64) (int, error)
	// ApplyAppreciations overwrites the status of existing records and
	// inserts first-time positive ones, synthesizing a notification for
	// the target's owner when actor and owner differ.
	ApplyAppreciations(ctx context.Context, kind Kind, entries []Record) (ApplyResult, error)
}

// NotificationPublisher fans a created notification out to the message
// broker. Failures are logged and ignored: the notification row is
// already durable.
type NotificationPublisher interface {
	NotificationCreated(ctx context.Context, n model.Notification) error
}

// Reconciler owns the periodic jobs draining cache accumulation into the
// store. The drain/ack protocol guarantees a batch is cleared only after
// its transaction commits; concurrently-arriving toggles accumulate into
// a fresh cache entry and are picked up on the next tick.
type Reconciler struct {
	cache     cache.Store
	store     ReconcileStore
	publisher NotificationPublisher // may be nil
	log       zerolog.Logger
}

func NewReconciler(c cache.Store, store ReconcileStore, pub NotificationPublisher, log zerolog.Logger) *Reconciler {
	return &Reconciler{cache: c, store: store, publisher: pub, log: log}
}

func unreadKey(userID string) string { return "notify:" + userID }

// FlushViews drains the pending view map and adds each delta to the
// article's persisted counter. Returns the number of articles updated.
func (r *Reconciler) FlushViews(ctx context.Context) (int, error) {
	raw, err := r.cache.Drain(ctx, pendingViewsKey)
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, r.cache.Ack(ctx, pendingViewsKey)
	}
	deltas := make(map[string]int64, len(raw))
	for id, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			r.log.Warn().Str("article", id).Str("value", v).Msg("dropping unparsable view delta")
			continue
		}
		deltas[id] = n
	}
	count, err := r.store.AddViews(ctx, deltas)
	if err != nil {
		return 0, err // batch stays drained-but-unacked for retry
	}
	return count, r.cache.Ack(ctx, pendingViewsKey)
}

// FlushAppreciations drains one kind's queue and applies it. For every
// notification the transaction created, the owner's unread counter is
// bumped and the event is published. Returns rows applied.
func (r *Reconciler) FlushAppreciations(ctx context.Context, kind Kind) (int, error) {
	raw, err := r.cache.Drain(ctx, kind.queueKey())
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, r.cache.Ack(ctx, kind.queueKey())
	}
	entries := make([]Record, 0, len(raw))
	for id, v := range raw {
		rec, err := decodeRecord(v)
		if err != nil {
			r.log.Warn().Str("record", id).Msg("dropping unparsable queue entry")
			continue
		}
		entries = append(entries, rec)
	}
	res, err := r.store.ApplyAppreciations(ctx, kind, entries)
	if err != nil {
		return 0, err
	}
	for _, n := range res.Notifications {
		if _, err := r.cache.IncrField(ctx, unreadKey(n.AcceptorID), "unread", 1); err != nil {
			r.log.Warn().Err(err).Str("user", n.AcceptorID).Msg("unread counter bump failed")
		}
		if r.publisher != nil {
			if err := r.publisher.NotificationCreated(ctx, n); err != nil {
				r.log.Warn().Err(err).Str("user", n.AcceptorID).Msg("notification publish failed")
			}
		}
	}
	return res.Applied, r.cache.Ack(ctx, kind.queueKey())
}
