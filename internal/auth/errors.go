// Package auth implements session tokens and the capability model every
// mutation is gated by. Validation failures split into two families:
// semantic ones (expired, bad signature, unknown or banned subject,
// missing capability) which are terminal for the request, and transient
// ones (cache or store unreachable) which callers may retry.
package auth

import "errors"

var (
	// ErrExpiredToken: the signed payload is past its expiry and no live
	// cache entry exists for the token.
	ErrExpiredToken = errors.New("token expired")
	// ErrBadSignature: the token could not be decoded or its signature
	// does not verify.
	ErrBadSignature = errors.New("bad token signature")
	// ErrUnknownSubject: the token decoded to a subject id that no longer
	// exists in the store.
	ErrUnknownSubject = errors.New("unknown subject")
	// ErrBlocked: the subject exists but is banned.
	ErrBlocked = errors.New("subject blocked")
	// ErrCacheUnavailable: the cache could not be reached and signature
	// validation alone could not settle the token. Retryable.
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrStoreUnavailable: the relational store could not be reached.
	// Retryable.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrUnauthorized: the subject holds no capability or ownership that
	// permits the operation.
	ErrUnauthorized = errors.New("unauthorized")
)
