package model

import (
	"strconv"
	"time"

	"github.com/iliyamo/campus-forum/internal/auth"
)

// FrontUser mirrors the 'front_users' table. IDs are UUID strings so that
// records synthesized in the cache can be assigned an id before they ever
// reach the database.
type FrontUser struct {
	ID         string
	OpenID     string
	UnionID    string
	Username   string
	Signature  string
	Gender     int
	AvatarURL  string
	Permission auth.Permission
	Status     int // 0 = banned
	CreatedAt  time.Time
}

// Active reports whether the account may hold a session.
func (u FrontUser) Active() bool { return u.Status != 0 }

func (u FrontUser) SubjectID() string             { return u.ID }
func (u FrontUser) Capabilities() auth.Permission { return u.Permission }

// Staff mirrors the 'staff' table backing the administrative panel.
// Staff log in with email and password; front users arrive through the
// third-party OAuth exchange, which is out of scope here.
type Staff struct {
	ID           uint64
	Email        string
	Username     string
	PasswordHash string
	Permission   auth.Permission
	Status       int
	CreatedAt    time.Time
}

func (s Staff) Active() bool { return s.Status != 0 }

func (s Staff) SubjectID() string             { return strconv.FormatUint(s.ID, 10) }
func (s Staff) Capabilities() auth.Permission { return s.Permission }
