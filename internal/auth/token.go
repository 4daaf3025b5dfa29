package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/campus-forum/internal/cache"
)

// Subject is the authenticated principal a token resolves to.
type Subject interface {
	SubjectID() string
	Active() bool
	Capabilities() Permission
}

// SubjectStore loads subjects from the durable store. Implementations
// return ErrUnknownSubject for a missing id; any other error is treated
// as store unavailability.
type SubjectStore interface {
	SubjectByID(ctx context.Context, id string) (Subject, error)
}

// Authority issues and validates session tokens. A token is an HS256 JWT
// that doubles as its own cache key: validation first looks the token up
// in the cache (fast path, also how a token outlives its signature when
// kept warm) and only parses the signature on a miss. Successful
// validation refreshes the cache entry so the session slides.
type Authority struct {
	cache  cache.Store
	store  SubjectStore
	secret []byte
	now    func() time.Time

	shortTTL time.Duration
	longTTL  time.Duration
}

// NewAuthority wires an Authority. shortTTL covers normal sessions,
// longTTL the "remember me" ones.
func NewAuthority(c cache.Store, s SubjectStore, secret string, shortTTL, longTTL time.Duration) *Authority {
	return &Authority{
		cache:    c,
		store:    s,
		secret:   []byte(secret),
		now:      time.Now,
		shortTTL: shortTTL,
		longTTL:  longTTL,
	}
}

// SetClock overrides the time source for tests.
func (a *Authority) SetClock(now func() time.Time) { a.now = now }

func tokenKey(token string) string { return "token:" + token }

// Issue signs a token for subjectID and warms the cache entry behind it.
// A cache failure is not fatal: the token stays valid through its
// signature alone.
func (a *Authority) Issue(ctx context.Context, subjectID string, permanent bool) (string, error) {
	ttl := a.shortTTL
	if permanent {
		ttl = a.longTTL
	}
	iat := a.now().UTC()
	claims := jwt.MapClaims{
		"sub": subjectID,
		"iat": iat.Unix(),
		"exp": iat.Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	_ = a.cache.SetAll(ctx, tokenKey(token), map[string]string{"uid": subjectID}, permanent)
	return token, nil
}

// Validate resolves a token to its subject. Cache hit wins; on a miss the
// signed payload is verified instead. The subject is then loaded from the
// store, its status checked, and the cache entry refreshed so the next
// request takes the fast path again.
func (a *Authority) Validate(ctx context.Context, token string) (Subject, error) {
	cacheDown := false
	uid, err := a.cache.GetField(ctx, tokenKey(token), "uid")
	if err != nil {
		cacheDown = true
	}

	if uid == "" {
		uid, err = a.decode(token)
		if err != nil {
			if cacheDown {
				// The cache might have vouched for this token; without it
				// the outcome is unknown, so report a retryable condition
				// instead of logging the user out.
				return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
			}
			return nil, err
		}
	}

	subj, err := a.store.SubjectByID(ctx, uid)
	if err != nil {
		if errors.Is(err, ErrUnknownSubject) {
			return nil, ErrUnknownSubject
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !subj.Active() {
		return nil, ErrBlocked
	}

	// Re-populate and slide the entry; a fallback hit becomes a cache hit
	// for the next request. Best effort.
	_ = a.cache.SetAll(ctx, tokenKey(token), map[string]string{"uid": uid}, false)
	return subj, nil
}

// Revoke drops the cache entry; the signature keeps its own expiry, so
// revocation of long-lived tokens relies on the short signature window
// plus the cache as source of truth for live sessions.
func (a *Authority) Revoke(ctx context.Context, token string) error {
	return a.cache.Delete(ctx, tokenKey(token))
}

func (a *Authority) decode(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadSignature
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return a.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrBadSignature
	}
	uid, _ := claims["sub"].(string)
	if uid == "" {
		return "", ErrBadSignature
	}
	return uid, nil
}
