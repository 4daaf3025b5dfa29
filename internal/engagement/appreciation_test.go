package engagement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/campus-forum/internal/cache"
)

type fakeRecordStore struct {
	records map[string][]Record // userID -> positive records
	err     error
}

func (f *fakeRecordStore) PositiveRecords(ctx context.Context, kind Kind, userID string) ([]Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records[userID], nil
}

func newTestEngine() (*Engine, *cache.Memory, *fakeLoader, *fakeRecordStore) {
	mem := cache.NewMemory(time.Hour, 24*time.Hour)
	loader := &fakeLoader{counters: map[string]map[string]int64{
		"a-1": {"views": 0, "likes": 2, "comments": 0},
		"c-1": {"rates": 0, "sub_comments": 0},
	}}
	store := &fakeRecordStore{records: map[string][]Record{}}
	props := NewPropertyCache(mem, loader)
	return NewEngine(mem, props, store), mem, loader, store
}

func TestToggleCreatesRecord(t *testing.T) {
	engine, mem, _, _ := newTestEngine()
	ctx := context.Background()

	rec, err := engine.ToggleOne(ctx, Like, "u-1", "a-1")
	if err != nil {
		t.Fatalf("ToggleOne: %v", err)
	}
	if rec.Status != 1 {
		t.Errorf("status = %d, want 1", rec.Status)
	}
	if rec.ID == "" {
		t.Error("synthesized record has no id")
	}

	props := NewPropertyCache(mem, &fakeLoader{})
	counters, err := props.Get(ctx, ArticleKind, "a-1")
	if err != nil {
		t.Fatalf("Get counters: %v", err)
	}
	if counters["likes"] != 3 {
		t.Errorf("likes = %d, want 3", counters["likes"])
	}

	// The toggle is queued for reconciliation under the record id.
	if v, _ := mem.GetField(ctx, "like:queue", rec.ID); v == "" {
		t.Error("queue entry missing")
	}
}

func TestToggleIsItsOwnInverse(t *testing.T) {
	engine, mem, _, _ := newTestEngine()
	ctx := context.Background()

	first, err := engine.ToggleOne(ctx, Like, "u-1", "a-1")
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	second, err := engine.ToggleOne(ctx, Like, "u-1", "a-1")
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second toggle made a new record: %q != %q", second.ID, first.ID)
	}
	if second.Status != 0 {
		t.Errorf("status after double toggle = %d, want 0", second.Status)
	}

	// Net counter movement is zero.
	if v, _ := mem.GetField(ctx, "prop:article:a-1", "likes"); v != "2" {
		t.Errorf("likes after toggle pair = %q, want 2", v)
	}

	// One queue entry per logical record, holding the latest state.
	queued, _ := mem.GetAll(ctx, "like:queue")
	if len(queued) != 1 {
		t.Fatalf("queue holds %d entries, want 1", len(queued))
	}
	rec, err := decodeRecord(queued[first.ID])
	if err != nil {
		t.Fatalf("decode queued record: %v", err)
	}
	if rec.Status != 0 {
		t.Errorf("queued status = %d, want the final state 0", rec.Status)
	}
}

func TestToggleCountsIndependentUsers(t *testing.T) {
	engine, mem, _, _ := newTestEngine()
	ctx := context.Background()

	users := []string{"u-1", "u-2", "u-3"}
	for _, u := range users {
		if _, err := engine.ToggleOne(ctx, Like, u, "a-1"); err != nil {
			t.Fatalf("toggle %s: %v", u, err)
		}
	}
	// One of them changes their mind.
	if _, err := engine.ToggleOne(ctx, Like, "u-2", "a-1"); err != nil {
		t.Fatalf("untoggle: %v", err)
	}

	if v, _ := mem.GetField(ctx, "prop:article:a-1", "likes"); v != "4" {
		t.Errorf("likes = %q, want 4 (2 base + 3 - 1)", v)
	}
}

func TestToggleUnknownTarget(t *testing.T) {
	engine, _, _, _ := newTestEngine()
	if _, err := engine.ToggleOne(context.Background(), Like, "u-1", "missing"); err == nil {
		t.Error("toggle on missing target succeeded")
	}
}

func TestToggleCacheUnavailable(t *testing.T) {
	engine, mem, _, _ := newTestEngine()
	mem.Fail(cache.ErrUnavailable)
	if _, err := engine.ToggleOne(context.Background(), Like, "u-1", "a-1"); !errors.Is(err, cache.ErrUnavailable) {
		t.Errorf("toggle with cache down = %v, want ErrUnavailable", err)
	}
}

func TestGetAllSeedsFromStore(t *testing.T) {
	engine, _, _, store := newTestEngine()
	ctx := context.Background()

	store.records["u-1"] = []Record{
		{ID: "r-1", TargetID: "a-1", UserID: "u-1", Status: 1, CreatedAt: 100},
		{ID: "r-2", TargetID: "a-2", UserID: "u-1", Status: 1, CreatedAt: 200},
	}

	all, err := engine.GetAll(ctx, Like, "u-1")
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d records, want 2", len(all))
	}
	if all["a-1"].ID != "r-1" || all["a-2"].Status != 1 {
		t.Errorf("records = %v", all)
	}

	// A toggle on a seeded target reuses the persisted record id.
	rec, err := engine.ToggleOne(ctx, Like, "u-1", "a-1")
	if err != nil {
		t.Fatalf("ToggleOne: %v", err)
	}
	if rec.ID != "r-1" {
		t.Errorf("toggle made a new record %q, want r-1", rec.ID)
	}
	if rec.Status != 0 {
		t.Errorf("status = %d, want 0 (was liked)", rec.Status)
	}
}

func TestGetAllSkipsCorruptField(t *testing.T) {
	engine, mem, _, _ := newTestEngine()
	ctx := context.Background()

	good := Record{ID: "r-1", TargetID: "a-1", UserID: "u-1", Status: 1}
	if err := mem.SetAll(ctx, "like:user:u-1", map[string]string{
		"a-1": good.encode(),
		"a-9": "{not json",
	}, false); err != nil {
		t.Fatalf("SetAll: %v", err)
	}

	all, err := engine.GetAll(ctx, Like, "u-1")
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("got %d records, want the corrupt one skipped", len(all))
	}
}
