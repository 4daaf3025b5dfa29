package model

import (
	"time"

	"github.com/iliyamo/campus-forum/internal/auth"
)

// Board mirrors the 'boards' table.
type Board struct {
	ID        uint64
	Name      string
	Desc      string
	AvatarURL string
	Status    int
	CreatedAt time.Time
}

// Article mirrors the 'articles' table. Views holds the persisted counter;
// the live value additionally includes any deltas still sitting in the
// property cache.
type Article struct {
	ID        string
	BoardID   uint64
	AuthorID  string
	Title     string
	Content   string
	Images    string
	Views     int64
	Status    int
	CreatedAt time.Time
}

// OwnerCandidates: only the author owns an article.
func (a Article) OwnerCandidates() []string { return []string{a.AuthorID} }

// OwnedCapability: owning an article stands in for the poster bit.
func (a Article) OwnedCapability() auth.Permission { return auth.Poster }

// Comment mirrors the 'comments' table. ArticleAuthorID is joined in by
// the repository so ownership checks need no second query.
type Comment struct {
	ID              string
	ArticleID       string
	AuthorID        string
	ArticleAuthorID string
	Content         string
	Images          string
	Status          int
	CreatedAt       time.Time
}

// OwnerCandidates: the comment's author and the root article's author may
// both act on a comment.
func (c Comment) OwnerCandidates() []string {
	return []string{c.AuthorID, c.ArticleAuthorID}
}

func (c Comment) OwnedCapability() auth.Permission { return auth.Commenter }

// SubComment mirrors the 'sub_comments' table, a reply nested under a
// comment. Parent author ids are joined in by the repository.
type SubComment struct {
	ID              string
	CommentID       string
	AuthorID        string
	CommentAuthorID string
	ArticleAuthorID string
	Content         string
	Status          int
	CreatedAt       time.Time
}

// OwnerCandidates: the reply's author, the enclosing comment's author, and
// the root article's author may each act on a reply.
func (s SubComment) OwnerCandidates() []string {
	return []string{s.AuthorID, s.CommentAuthorID, s.ArticleAuthorID}
}

func (s SubComment) OwnedCapability() auth.Permission { return auth.Commenter }

// Notification mirrors the 'notifications' table. Category tells the
// client what LinkID points at: 1 = article, 2 = comment.
type Notification struct {
	ID              uint64
	Category        int
	LinkID          string
	SenderID        string
	AcceptorID      string
	SenderContent   string
	AcceptorContent string
	Read            bool
	CreatedAt       time.Time
}
