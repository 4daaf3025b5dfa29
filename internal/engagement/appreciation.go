package engagement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/campus-forum/internal/cache"
)

// RecordStore loads a user's persisted positive appreciation records, used
// to materialize the per-user cache entry on a miss.
type RecordStore interface {
	PositiveRecords(ctx context.Context, kind Kind, userID string) ([]Record, error)
}

// Engine holds the toggle state machine. Per (user, target) pair the
// states are absent, liked, and unliked; the per-user cache entry is the
// authoritative view between reconciliations.
type Engine struct {
	cache cache.Store
	props *PropertyCache
	store RecordStore
	now   func() time.Time
}

func NewEngine(c cache.Store, props *PropertyCache, store RecordStore) *Engine {
	return &Engine{cache: c, props: props, store: store, now: time.Now}
}

// SetClock overrides the time source for tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// GetAll returns the user's appreciation records for a kind, keyed by
// target id. On a cache miss all persisted positive records are loaded
// and written into one cache entry (one field per target) with a bounded
// TTL; set-if-absent keeps a concurrent toggle's write from being lost.
func (e *Engine) GetAll(ctx context.Context, kind Kind, userID string) (map[string]Record, error) {
	key := kind.userKey(userID)
	fields, err := e.cache.GetAll(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		records, err := e.store.PositiveRecords(ctx, kind, userID)
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			seed := make(map[string]string, len(records))
			for _, r := range records {
				seed[r.TargetID] = r.encode()
			}
			if _, err := e.cache.SetAllNX(ctx, key, seed, false); err != nil {
				return nil, err
			}
			if fields, err = e.cache.GetAll(ctx, key); err != nil {
				return nil, err
			}
		}
	}
	out := make(map[string]Record, len(fields))
	for target, raw := range fields {
		rec, err := decodeRecord(raw)
		if err != nil {
			continue // skip a corrupt field rather than failing the read
		}
		out[target] = rec
	}
	return out, nil
}

// ToggleOne flips the user's appreciation state for a target and returns
// the new record. The record write, the counter delta, and the queue
// append are issued as one pipelined batch so a torn update cannot leave
// the toggle recorded without its delta or queue entry.
//
// This is a true toggle, not set-to-true: two calls in a row restore the
// original state. Double-submission (e.g. a double-tap) therefore races
// as a known limitation, and request cancellation does not roll back
// already-applied cache mutations.
func (e *Engine) ToggleOne(ctx context.Context, kind Kind, userID, targetID string) (Record, error) {
	all, err := e.GetAll(ctx, kind, userID)
	if err != nil {
		return Record{}, err
	}

	rec, ok := all[targetID]
	if !ok {
		rec = Record{ID: uuid.NewString(), TargetID: targetID, UserID: userID}
	}
	rec.Status = 1 - rec.Status
	rec.CreatedAt = e.now().Unix()

	// Materializes the target's counters and verifies the target exists
	// before any delta is applied.
	if _, err := e.props.Get(ctx, kind.Target(), targetID); err != nil {
		return Record{}, err
	}

	delta := int64(-1)
	if rec.Status == 1 {
		delta = 1
	}
	payload := rec.encode()
	err = e.cache.Apply(ctx, func(b cache.Batch) {
		b.SetField(kind.userKey(userID), targetID, payload)
		b.Touch(kind.userKey(userID), false)
		e.props.AddDelta(b, kind.Target(), targetID, kind.CounterField(), delta)
		b.SetField(kind.queueKey(), rec.ID, payload)
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}
