package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestMemory() *Memory {
	return NewMemory(time.Hour, 24*time.Hour)
}

func TestSetAllNX(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()

	set, err := m.SetAllNX(ctx, "k", map[string]string{"a": "1"}, false)
	if err != nil || !set {
		t.Fatalf("first SetAllNX = (%v, %v), want (true, nil)", set, err)
	}
	set, err = m.SetAllNX(ctx, "k", map[string]string{"a": "9", "b": "2"}, false)
	if err != nil || set {
		t.Fatalf("second SetAllNX = (%v, %v), want (false, nil)", set, err)
	}

	fields, err := m.GetAll(ctx, "k")
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if fields["a"] != "1" {
		t.Errorf("field a = %q, want the first writer's value", fields["a"])
	}
	if _, ok := fields["b"]; ok {
		t.Errorf("field b present, losing writer should not contribute")
	}
}

func TestExpiry(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()
	base := time.Now()
	m.SetClock(func() time.Time { return base })

	if err := m.SetAll(ctx, "k", map[string]string{"a": "1"}, false); err != nil {
		t.Fatalf("SetAll: %v", err)
	}

	m.SetClock(func() time.Time { return base.Add(2 * time.Hour) })
	fields, err := m.GetAll(ctx, "k")
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(fields) != 0 {
		t.Errorf("entry survived its TTL: %v", fields)
	}

	// An expired key is free again for set-if-absent.
	set, err := m.SetAllNX(ctx, "k", map[string]string{"a": "2"}, false)
	if err != nil || !set {
		t.Errorf("SetAllNX on expired key = (%v, %v), want (true, nil)", set, err)
	}
}

func TestTouchSlidesExpiry(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()
	base := time.Now()
	m.SetClock(func() time.Time { return base })

	if err := m.SetAll(ctx, "k", map[string]string{"a": "1"}, false); err != nil {
		t.Fatalf("SetAll: %v", err)
	}
	m.SetClock(func() time.Time { return base.Add(50 * time.Minute) })
	if err := m.Touch(ctx, "k", false); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	m.SetClock(func() time.Time { return base.Add(100 * time.Minute) })

	v, err := m.GetField(ctx, "k", "a")
	if err != nil {
		t.Fatalf("GetField: %v", err)
	}
	if v != "1" {
		t.Errorf("touched entry expired, GetField = %q", v)
	}
}

func TestIncrField(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()

	n, err := m.IncrField(ctx, "k", "c", 3)
	if err != nil || n != 3 {
		t.Fatalf("IncrField fresh = (%d, %v), want (3, nil)", n, err)
	}
	n, err = m.IncrField(ctx, "k", "c", -5)
	if err != nil || n != -2 {
		t.Fatalf("IncrField = (%d, %v), want (-2, nil)", n, err)
	}
}

func TestApplyBatch(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()

	err := m.Apply(ctx, func(b Batch) {
		b.SetField("user", "t1", "rec")
		b.IncrField("prop", "likes", 1)
		b.IncrField("queue", "id-1", 1)
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if v, _ := m.GetField(ctx, "user", "t1"); v != "rec" {
		t.Errorf("user field = %q, want rec", v)
	}
	if v, _ := m.GetField(ctx, "prop", "likes"); v != "1" {
		t.Errorf("likes = %q, want 1", v)
	}
	if v, _ := m.GetField(ctx, "queue", "id-1"); v != "1" {
		t.Errorf("queue field = %q, want 1", v)
	}
}

func TestDrainAck(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()

	if err := m.SetAll(ctx, "q", map[string]string{"a": "1", "b": "2"}, false); err != nil {
		t.Fatalf("SetAll: %v", err)
	}

	batch, err := m.Drain(ctx, "q")
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("drained %d fields, want 2", len(batch))
	}

	// Writes after the drain accumulate separately and do not join the
	// in-flight batch.
	if err := m.SetField(ctx, "q", "c", "3", false); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	again, err := m.Drain(ctx, "q")
	if err != nil {
		t.Fatalf("Drain unacked: %v", err)
	}
	if len(again) != 2 || again["a"] != "1" {
		t.Errorf("unacked drain = %v, want the original batch", again)
	}

	if err := m.Ack(ctx, "q"); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	next, err := m.Drain(ctx, "q")
	if err != nil {
		t.Fatalf("Drain after ack: %v", err)
	}
	if len(next) != 1 || next["c"] != "3" {
		t.Errorf("post-ack drain = %v, want only the new accumulation", next)
	}
}

func TestDrainEmpty(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()

	batch, err := m.Drain(ctx, "missing")
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(batch) != 0 {
		t.Errorf("drained %v from a missing key", batch)
	}
	if err := m.Ack(ctx, "missing"); err != nil {
		t.Fatalf("Ack on empty: %v", err)
	}
}

func TestDeleteField(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()

	if err := m.SetAll(ctx, "k", map[string]string{"a": "1", "b": "2"}, false); err != nil {
		t.Fatalf("SetAll: %v", err)
	}
	if err := m.DeleteField(ctx, "k", "a"); err != nil {
		t.Fatalf("DeleteField: %v", err)
	}
	fields, err := m.GetAll(ctx, "k")
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if _, ok := fields["a"]; ok {
		t.Error("deleted field still present")
	}
	if fields["b"] != "2" {
		t.Errorf("untouched field = %q, want 2", fields["b"])
	}
}

func TestFail(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()

	m.Fail(ErrUnavailable)
	if _, err := m.GetAll(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("GetAll with forced failure = %v, want ErrUnavailable", err)
	}
	if err := m.SetField(ctx, "k", "f", "v", false); !errors.Is(err, ErrUnavailable) {
		t.Errorf("SetField with forced failure = %v, want ErrUnavailable", err)
	}

	m.Fail(nil)
	if err := m.SetField(ctx, "k", "f", "v", false); err != nil {
		t.Errorf("SetField after recovery: %v", err)
	}
}
