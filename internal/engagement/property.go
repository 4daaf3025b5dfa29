package engagement

import (
	"context"
	"fmt"
	"strconv"

	"github.com/iliyamo/campus-forum/internal/cache"
)

// pendingViewsKey accumulates view deltas per article id until the
// FlushViews job drains them into the store.
const pendingViewsKey = "views:pending"

// CounterLoader computes an entity's counters from the store: the
// aggregate queries run once per cold entity and the result seeds the
// cache entry.
type CounterLoader interface {
	LoadCounters(ctx context.Context, kind ContentKind, entityID string) (map[string]int64, error)
}

// PropertyCache is the read-through cache of per-entity counters
// (likes/comments/views for articles, rates/sub_comments for comments).
// Entries are populated from the store on first access and afterwards
// mutated only through signed deltas until invalidated.
type PropertyCache struct {
	cache  cache.Store
	loader CounterLoader
}

func NewPropertyCache(c cache.Store, loader CounterLoader) *PropertyCache {
	return &PropertyCache{cache: c, loader: loader}
}

func propKey(kind ContentKind, entityID string) string {
	return "prop:" + string(kind) + ":" + entityID
}

// Get returns the entity's counter map, computing and caching it on a
// miss. Population uses set-if-absent so two concurrent first-touches
// cannot overwrite each other's deltas; both return the winner's entry.
func (p *PropertyCache) Get(ctx context.Context, kind ContentKind, entityID string) (map[string]int64, error) {
	key := propKey(kind, entityID)
	fields, err := p.cache.GetAll(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		counters, err := p.loader.LoadCounters(ctx, kind, entityID)
		if err != nil {
			return nil, err
		}
		seed := make(map[string]string, len(counters))
		for f, v := range counters {
			seed[f] = strconv.FormatInt(v, 10)
		}
		if _, err := p.cache.SetAllNX(ctx, key, seed, false); err != nil {
			return nil, err
		}
		if fields, err = p.cache.GetAll(ctx, key); err != nil {
			return nil, err
		}
	}
	return parseCounters(fields)
}

// Increase applies a signed delta to one counter field. The entry is
// materialized first via Get; the read and the increment are not atomic
// end-to-end, which is acceptable because population itself is
// set-if-absent. View deltas additionally accumulate into the pending
// map the FlushViews job drains.
func (p *PropertyCache) Increase(ctx context.Context, kind ContentKind, entityID, field string, delta int64) error {
	if _, err := p.Get(ctx, kind, entityID); err != nil {
		return err
	}
	if kind == ArticleKind && field == "views" {
		return p.cache.Apply(ctx, func(b cache.Batch) {
			b.IncrField(propKey(kind, entityID), field, delta)
			b.IncrField(pendingViewsKey, entityID, delta)
		})
	}
	_, err := p.cache.IncrField(ctx, propKey(kind, entityID), field, delta)
	return err
}

// AddDelta queues a counter increment onto an existing batch so callers
// can combine it with their own writes in one atomic apply. The caller
// must have materialized the entry (Get) beforehand.
func (p *PropertyCache) AddDelta(b cache.Batch, kind ContentKind, entityID, field string, delta int64) {
	b.IncrField(propKey(kind, entityID), field, delta)
}

// Invalidate drops the entry; the next Get recomputes from the store.
func (p *PropertyCache) Invalidate(ctx context.Context, kind ContentKind, entityID string) error {
	return p.cache.Delete(ctx, propKey(kind, entityID))
}

func parseCounters(fields map[string]string) (map[string]int64, error) {
	out := make(map[string]int64, len(fields))
	for f, v := range fields {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", f, err)
		}
		out[f] = n
	}
	return out, nil
}
