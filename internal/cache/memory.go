package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process Store with the same observable semantics as the
// Redis implementation. It backs package tests across the repo and keeps
// single-binary deployments runnable without a cache server.
type Memory struct {
	mu            sync.Mutex
	entries       map[string]*memEntry
	defaultExpire time.Duration
	longExpire    time.Duration
	forced        error // when set, every call fails with it
	now           func() time.Time
}

type memEntry struct {
	fields    map[string]string
	expiresAt time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory(defaultExpire, longExpire time.Duration) *Memory {
	return &Memory{
		entries:       map[string]*memEntry{},
		defaultExpire: defaultExpire,
		longExpire:    longExpire,
		now:           time.Now,
	}
}

// Fail forces every subsequent call to return err; Fail(nil) clears it.
// Used by tests to simulate an unreachable cache.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forced = err
}

// SetClock overrides the time source, letting tests expire entries.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) ttl(permanent bool) time.Duration {
	if permanent {
		return m.longExpire
	}
	return m.defaultExpire
}

// live returns the entry for key, dropping it first if it has expired.
func (m *Memory) live(key string) *memEntry {
	e, ok := m.entries[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil
	}
	return e
}

func (m *Memory) upsert(key string, permanent bool) *memEntry {
	e := m.live(key)
	if e == nil {
		e = &memEntry{fields: map[string]string{}}
		m.entries[key] = e
	}
	e.expiresAt = m.now().Add(m.ttl(permanent))
	return e
}

func (m *Memory) SetAll(ctx context.Context, key string, fields map[string]string, permanent bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced != nil {
		return m.forced
	}
	e := m.upsert(key, permanent)
	for k, v := range fields {
		e.fields[k] = v
	}
	return nil
}

func (m *Memory) SetAllNX(ctx context.Context, key string, fields map[string]string, permanent bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced != nil {
		return false, m.forced
	}
	if m.live(key) != nil {
		return false, nil
	}
	e := m.upsert(key, permanent)
	for k, v := range fields {
		e.fields[k] = v
	}
	return true, nil
}

func (m *Memory) SetField(ctx context.Context, key, field, value string, permanent bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced != nil {
		return m.forced
	}
	m.upsert(key, permanent).fields[field] = value
	return nil
}

func (m *Memory) GetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced != nil {
		return nil, m.forced
	}
	out := map[string]string{}
	if e := m.live(key); e != nil {
		for k, v := range e.fields {
			out[k] = v
		}
	}
	return out, nil
}

func (m *Memory) GetField(ctx context.Context, key, field string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced != nil {
		return "", m.forced
	}
	if e := m.live(key); e != nil {
		return e.fields[field], nil
	}
	return "", nil
}

func (m *Memory) IncrField(ctx context.Context, key, field string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced != nil {
		return 0, m.forced
	}
	return m.incrLocked(key, field, delta), nil
}

func (m *Memory) incrLocked(key, field string, delta int64) int64 {
	e := m.live(key)
	if e == nil {
		e = m.upsert(key, false)
	}
	n, _ := strconv.ParseInt(e.fields[field], 10, 64)
	n += delta
	e.fields[field] = strconv.FormatInt(n, 10)
	return n
}

func (m *Memory) Touch(ctx context.Context, key string, permanent bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced != nil {
		return m.forced
	}
	if e := m.live(key); e != nil {
		e.expiresAt = m.now().Add(m.ttl(permanent))
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced != nil {
		return m.forced
	}
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *Memory) DeleteField(ctx context.Context, key string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced != nil {
		return m.forced
	}
	if e := m.live(key); e != nil {
		for _, f := range fields {
			delete(e.fields, f)
		}
	}
	return nil
}

// memBatch records operations and replays them under one lock hold.
type memBatch struct {
	ops []func(m *Memory)
}

func (b *memBatch) SetField(key, field, value string) {
	b.ops = append(b.ops, func(m *Memory) {
		m.upsert(key, false).fields[field] = value
	})
}

func (b *memBatch) IncrField(key, field string, delta int64) {
	b.ops = append(b.ops, func(m *Memory) {
		m.incrLocked(key, field, delta)
	})
}

func (b *memBatch) Touch(key string, permanent bool) {
	b.ops = append(b.ops, func(m *Memory) {
		if e := m.live(key); e != nil {
			e.expiresAt = m.now().Add(m.ttl(permanent))
		}
	})
}

func (m *Memory) Apply(ctx context.Context, fn func(b Batch)) error {
	b := &memBatch{}
	fn(b)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced != nil {
		return m.forced
	}
	for _, op := range b.ops {
		op(m)
	}
	return nil
}

func (m *Memory) Drain(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced != nil {
		return nil, m.forced
	}
	pkey := processingKey(key)
	if m.live(pkey) == nil {
		if e := m.live(key); e != nil {
			m.entries[pkey] = &memEntry{fields: e.fields, expiresAt: e.expiresAt}
			delete(m.entries, key)
		}
	}
	out := map[string]string{}
	if e := m.live(pkey); e != nil {
		for k, v := range e.fields {
			out[k] = v
		}
	}
	return out, nil
}

func (m *Memory) Ack(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced != nil {
		return m.forced
	}
	delete(m.entries, processingKey(key))
	return nil
}
