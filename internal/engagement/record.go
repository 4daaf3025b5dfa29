// Package engagement implements the write-back counter layer: per-entity
// counter maps, the like/rate toggle engine, and the batch jobs that
// reconcile cache-accumulated deltas into the relational store.
package engagement

import (
	"encoding/json"
	"fmt"
)

// Kind distinguishes the two appreciation flavours. They share all
// machinery and differ only in target entity and counter field.
type Kind string

const (
	// Like targets articles.
	Like Kind = "like"
	// Rate targets comments.
	Rate Kind = "rate"
)

// ContentKind names the entity families the property cache serves.
type ContentKind string

const (
	ArticleKind ContentKind = "article"
	CommentKind ContentKind = "comment"
)

// Target returns the content kind a toggle of this kind lands on.
func (k Kind) Target() ContentKind {
	if k == Rate {
		return CommentKind
	}
	return ArticleKind
}

// CounterField returns the property-cache field this kind increments.
func (k Kind) CounterField() string {
	if k == Rate {
		return "rates"
	}
	return "likes"
}

func (k Kind) userKey(userID string) string { return string(k) + ":user:" + userID }
func (k Kind) queueKey() string             { return string(k) + ":queue" }

// Record is the cache-resident state of one (user, target) appreciation
// pair. Exactly one logical record exists per pair; toggling flips Status
// and restamps CreatedAt. A record synthesized in the cache carries a
// fresh id and is persisted on first reconciliation.
type Record struct {
	ID        string `json:"id"`
	TargetID  string `json:"target_id"`
	UserID    string `json:"user_id"`
	Status    int    `json:"status"` // 1 = currently liked/rated
	CreatedAt int64  `json:"created_at"`
}

func (r Record) encode() string {
	b, _ := json.Marshal(r)
	return string(b)
}

func decodeRecord(s string) (Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return r, nil
}
