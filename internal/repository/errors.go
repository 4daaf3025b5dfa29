// Package repository implements the relational store behind the forum:
// raw SQL over database/sql, one repo struct per aggregate. Sentinel
// errors let handlers map failures onto HTTP responses without peeking
// at driver errors.
package repository

import "errors"

// ErrNotFound is returned when a referenced entity does not exist or has
// been soft-deleted. Handlers translate this into an HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when a staff account with the same email
// already exists. Handlers translate this into an HTTP 409.
var ErrEmailExists = errors.New("email already exists")
