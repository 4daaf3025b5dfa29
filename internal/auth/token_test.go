package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/campus-forum/internal/cache"
)

type fakeSubject struct {
	id     string
	active bool
	perm   Permission
}

func (s fakeSubject) SubjectID() string { return s.id }

func (s fakeSubject) Active() bool { return s.active }

func (s fakeSubject) Capabilities() Permission { return s.perm }

type fakeSubjectStore struct {
	subjects map[string]fakeSubject
	err      error
}

func (f *fakeSubjectStore) SubjectByID(ctx context.Context, id string) (Subject, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.subjects[id]
	if !ok {
		return nil, ErrUnknownSubject
	}
	return s, nil
}

func newTestAuthority(t *testing.T) (*Authority, *cache.Memory, *fakeSubjectStore) {
	t.Helper()
	mem := cache.NewMemory(time.Hour, 30*24*time.Hour)
	store := &fakeSubjectStore{subjects: map[string]fakeSubject{
		"u-1": {id: "u-1", active: true, perm: Visitor},
	}}
	a := NewAuthority(mem, store, "test-secret", 30*time.Minute, 30*24*time.Hour)
	return a, mem, store
}

func TestIssueAndValidate(t *testing.T) {
	a, _, _ := newTestAuthority(t)
	ctx := context.Background()

	token, err := a.Issue(ctx, "u-1", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	subj, err := a.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if subj.SubjectID() != "u-1" {
		t.Errorf("subject = %q, want u-1", subj.SubjectID())
	}
}

func TestValidateExpiredSignatureNoCache(t *testing.T) {
	a, mem, _ := newTestAuthority(t)
	ctx := context.Background()

	token, err := a.Issue(ctx, "u-1", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	// Drop the cache entry and move past the signature expiry.
	if err := mem.Delete(ctx, "token:"+token); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	later := time.Now().Add(31 * time.Minute)
	a.SetClock(func() time.Time { return later })

	if _, err := a.Validate(ctx, token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Validate after expiry = %v, want ErrExpiredToken", err)
	}
}

func TestValidateCacheOutlivesSignature(t *testing.T) {
	a, mem, _ := newTestAuthority(t)
	ctx := context.Background()

	token, err := a.Issue(ctx, "u-1", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	// The signature window has passed but the cache entry is still warm,
	// as happens for an active session that keeps sliding its TTL.
	later := time.Now().Add(31 * time.Minute)
	a.SetClock(func() time.Time { return later })

	subj, err := a.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate with warm cache after expiry: %v", err)
	}
	if subj.SubjectID() != "u-1" {
		t.Errorf("subject = %q, want u-1", subj.SubjectID())
	}

	// Once the cache entry itself lapses, the expired signature is all
	// that remains and validation fails.
	mem.SetClock(func() time.Time { return later.Add(2 * time.Hour) })
	if _, err := a.Validate(ctx, token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Validate after cache lapse = %v, want ErrExpiredToken", err)
	}
}

func TestValidateRevoked(t *testing.T) {
	a, _, _ := newTestAuthority(t)
	ctx := context.Background()

	token, err := a.Issue(ctx, "u-1", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := a.Revoke(ctx, token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	// Within the signature window the token still validates; revocation
	// becomes effective once the signature expires.
	if _, err := a.Validate(ctx, token); err != nil {
		t.Fatalf("Validate inside signature window: %v", err)
	}
	if err := a.Revoke(ctx, token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	a.SetClock(func() time.Time { return time.Now().Add(31 * time.Minute) })
	if _, err := a.Validate(ctx, token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Validate revoked+expired = %v, want ErrExpiredToken", err)
	}
}

func TestValidateBlockedSubject(t *testing.T) {
	a, _, store := newTestAuthority(t)
	ctx := context.Background()

	store.subjects["u-2"] = fakeSubject{id: "u-2", active: true}
	token, err := a.Issue(ctx, "u-2", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	store.subjects["u-2"] = fakeSubject{id: "u-2", active: false}

	if _, err := a.Validate(ctx, token); !errors.Is(err, ErrBlocked) {
		t.Errorf("Validate blocked = %v, want ErrBlocked", err)
	}
}

func TestValidateUnknownSubject(t *testing.T) {
	a, _, _ := newTestAuthority(t)
	ctx := context.Background()

	token, err := a.Issue(ctx, "ghost", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := a.Validate(ctx, token); !errors.Is(err, ErrUnknownSubject) {
		t.Errorf("Validate unknown = %v, want ErrUnknownSubject", err)
	}
}

func TestValidateCacheDown(t *testing.T) {
	a, mem, _ := newTestAuthority(t)
	ctx := context.Background()

	token, err := a.Issue(ctx, "u-1", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	mem.Fail(cache.ErrUnavailable)

	// A valid signature still authenticates with the cache down.
	subj, err := a.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate with cache down: %v", err)
	}
	if subj.SubjectID() != "u-1" {
		t.Errorf("subject = %q, want u-1", subj.SubjectID())
	}

	// An expired signature with the cache down is indeterminate: the
	// cache might have vouched for it, so the failure must be retryable
	// rather than a logout.
	a.SetClock(func() time.Time { return time.Now().Add(31 * time.Minute) })
	if _, err := a.Validate(ctx, token); !errors.Is(err, ErrCacheUnavailable) {
		t.Errorf("Validate expired with cache down = %v, want ErrCacheUnavailable", err)
	}
}

func TestValidateStoreDown(t *testing.T) {
	a, _, store := newTestAuthority(t)
	ctx := context.Background()

	token, err := a.Issue(ctx, "u-1", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	store.err = errors.New("connection refused")
	if _, err := a.Validate(ctx, token); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Validate store down = %v, want ErrStoreUnavailable", err)
	}
}

func TestValidateGarbageToken(t *testing.T) {
	a, _, _ := newTestAuthority(t)
	if _, err := a.Validate(context.Background(), "not-a-token"); !errors.Is(err, ErrBadSignature) {
		t.Errorf("Validate garbage = %v, want ErrBadSignature", err)
	}
}
