package engagement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/campus-forum/internal/cache"
	"github.com/iliyamo/campus-forum/internal/model"
)

type fakeReconcileStore struct {
	views      map[string]int64
	applied    []Record
	notify     []model.Notification
	viewsErr   error
	applyErr   error
	applyCalls int
}

func (f *fakeReconcileStore) AddViews(ctx context.Context, deltas map[string]int64) (int, error) {
	if f.viewsErr != nil {
		return 0, f.viewsErr
	}
	if f.views == nil {
		f.views = map[string]int64{}
	}
	for id, d := range deltas {
		f.views[id] += d
	}
	return len(deltas), nil
}

func (f *fakeReconcileStore) ApplyAppreciations(ctx context.Context, kind Kind, entries []Record) (ApplyResult, error) {
	f.applyCalls++
	if f.applyErr != nil {
		return ApplyResult{}, f.applyErr
	}
	f.applied = append(f.applied, entries...)
	return ApplyResult{Applied: len(entries), Notifications: f.notify}, nil
}

type fakePublisher struct {
	events []model.Notification
	err    error
}

func (f *fakePublisher) NotificationCreated(ctx context.Context, n model.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, n)
	return nil
}

func newTestReconciler() (*Reconciler, *cache.Memory, *fakeReconcileStore, *fakePublisher) {
	mem := cache.NewMemory(time.Hour, 24*time.Hour)
	store := &fakeReconcileStore{}
	pub := &fakePublisher{}
	return NewReconciler(mem, store, pub, zerolog.Nop()), mem, store, pub
}

func TestFlushViews(t *testing.T) {
	r, mem, store, _ := newTestReconciler()
	ctx := context.Background()

	if err := mem.SetAll(ctx, pendingViewsKey, map[string]string{"a-1": "5", "a-2": "1"}, false); err != nil {
		t.Fatalf("SetAll: %v", err)
	}

	n, err := r.FlushViews(ctx)
	if err != nil {
		t.Fatalf("FlushViews: %v", err)
	}
	if n != 2 {
		t.Errorf("flushed %d, want 2", n)
	}
	if store.views["a-1"] != 5 || store.views["a-2"] != 1 {
		t.Errorf("stored views = %v", store.views)
	}

	// A clean flush leaves nothing behind for the next run.
	n, err = r.FlushViews(ctx)
	if err != nil || n != 0 {
		t.Errorf("second flush = (%d, %v), want (0, nil)", n, err)
	}
}

func TestFlushViewsKeepsBacklogOnStoreError(t *testing.T) {
	r, mem, store, _ := newTestReconciler()
	ctx := context.Background()

	if err := mem.SetAll(ctx, pendingViewsKey, map[string]string{"a-1": "5"}, false); err != nil {
		t.Fatalf("SetAll: %v", err)
	}
	store.viewsErr = errors.New("deadlock")

	if _, err := r.FlushViews(ctx); err == nil {
		t.Fatal("FlushViews succeeded with a failing store")
	}

	// The drained batch was not acked; the next run retries it.
	store.viewsErr = nil
	n, err := r.FlushViews(ctx)
	if err != nil {
		t.Fatalf("retry flush: %v", err)
	}
	if n != 1 || store.views["a-1"] != 5 {
		t.Errorf("retry applied (%d, %v), want the original batch", n, store.views)
	}
}

func TestFlushViewsSkipsGarbage(t *testing.T) {
	r, mem, store, _ := newTestReconciler()
	ctx := context.Background()

	if err := mem.SetAll(ctx, pendingViewsKey, map[string]string{"a-1": "5", "a-2": "huh"}, false); err != nil {
		t.Fatalf("SetAll: %v", err)
	}
	n, err := r.FlushViews(ctx)
	if err != nil {
		t.Fatalf("FlushViews: %v", err)
	}
	if n != 1 || store.views["a-1"] != 5 {
		t.Errorf("flush = (%d, %v)", n, store.views)
	}
}

func TestFlushAppreciations(t *testing.T) {
	r, mem, store, pub := newTestReconciler()
	ctx := context.Background()

	recs := []Record{
		{ID: "r-1", TargetID: "a-1", UserID: "u-1", Status: 1, CreatedAt: 100},
		{ID: "r-2", TargetID: "a-2", UserID: "u-1", Status: 0, CreatedAt: 101},
	}
	fields := map[string]string{}
	for _, rec := range recs {
		fields[rec.ID] = rec.encode()
	}
	if err := mem.SetAll(ctx, Like.queueKey(), fields, false); err != nil {
		t.Fatalf("SetAll: %v", err)
	}
	store.notify = []model.Notification{{ID: 9, AcceptorID: "owner-1", SenderID: "u-1", Category: 1}}

	n, err := r.FlushAppreciations(ctx, Like)
	if err != nil {
		t.Fatalf("FlushAppreciations: %v", err)
	}
	if n != 2 {
		t.Errorf("applied %d, want 2", n)
	}
	if len(store.applied) != 2 {
		t.Errorf("store saw %d records", len(store.applied))
	}

	// The owner's unread counter moved and the event went out.
	if v, _ := mem.GetField(ctx, "notify:owner-1", "unread"); v != "1" {
		t.Errorf("unread = %q, want 1", v)
	}
	if len(pub.events) != 1 || pub.events[0].AcceptorID != "owner-1" {
		t.Errorf("published = %v", pub.events)
	}

	// Queue is clear afterwards.
	n, err = r.FlushAppreciations(ctx, Like)
	if err != nil || n != 0 {
		t.Errorf("second flush = (%d, %v), want (0, nil)", n, err)
	}
}

func TestFlushAppreciationsKeepsBacklogOnStoreError(t *testing.T) {
	r, mem, store, _ := newTestReconciler()
	ctx := context.Background()

	rec := Record{ID: "r-1", TargetID: "a-1", UserID: "u-1", Status: 1}
	if err := mem.SetAll(ctx, Like.queueKey(), map[string]string{rec.ID: rec.encode()}, false); err != nil {
		t.Fatalf("SetAll: %v", err)
	}
	store.applyErr = errors.New("deadlock")

	if _, err := r.FlushAppreciations(ctx, Like); err == nil {
		t.Fatal("flush succeeded with a failing store")
	}
	store.applyErr = nil
	n, err := r.FlushAppreciations(ctx, Like)
	if err != nil || n != 1 {
		t.Errorf("retry = (%d, %v), want (1, nil)", n, err)
	}
	if store.applyCalls != 2 {
		t.Errorf("store called %d times, want 2", store.applyCalls)
	}
}

func TestFlushAppreciationsPublishFailureDoesNotFailBatch(t *testing.T) {
	r, mem, store, pub := newTestReconciler()
	ctx := context.Background()

	rec := Record{ID: "r-1", TargetID: "a-1", UserID: "u-1", Status: 1}
	if err := mem.SetAll(ctx, Like.queueKey(), map[string]string{rec.ID: rec.encode()}, false); err != nil {
		t.Fatalf("SetAll: %v", err)
	}
	store.notify = []model.Notification{{ID: 9, AcceptorID: "owner-1"}}
	pub.err = errors.New("broker down")

	n, err := r.FlushAppreciations(ctx, Like)
	if err != nil {
		t.Fatalf("FlushAppreciations: %v", err)
	}
	if n != 1 {
		t.Errorf("applied %d, want 1", n)
	}
	// The notification row is durable; only the fan-out was lost.
	if v, _ := mem.GetField(ctx, "notify:owner-1", "unread"); v != "1" {
		t.Errorf("unread = %q, want 1", v)
	}
}

func TestFlushSeparatesConcurrentToggles(t *testing.T) {
	r, mem, store, _ := newTestReconciler()
	ctx := context.Background()

	first := Record{ID: "r-1", TargetID: "a-1", UserID: "u-1", Status: 1}
	if err := mem.SetAll(ctx, Like.queueKey(), map[string]string{first.ID: first.encode()}, false); err != nil {
		t.Fatalf("SetAll: %v", err)
	}

	// Drain, then a toggle lands mid-flush.
	if _, err := mem.Drain(ctx, Like.queueKey()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	late := Record{ID: "r-2", TargetID: "a-2", UserID: "u-2", Status: 1}
	if err := mem.SetField(ctx, Like.queueKey(), late.ID, late.encode(), false); err != nil {
		t.Fatalf("SetField: %v", err)
	}

	// The in-flight batch completes without the late arrival.
	n, err := r.FlushAppreciations(ctx, Like)
	if err != nil || n != 1 {
		t.Fatalf("flush = (%d, %v), want (1, nil)", n, err)
	}
	if store.applied[0].ID != "r-1" {
		t.Errorf("applied %q, want r-1", store.applied[0].ID)
	}

	// The late toggle is picked up on the next tick.
	n, err = r.FlushAppreciations(ctx, Like)
	if err != nil || n != 1 {
		t.Fatalf("second flush = (%d, %v), want (1, nil)", n, err)
	}
	if store.applied[1].ID != "r-2" {
		t.Errorf("applied %q, want r-2", store.applied[1].ID)
	}
}
