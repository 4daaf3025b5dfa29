// Package queue defines message payloads exchanged over the message
// broker and the publisher/consumer pair around them.
package queue

// NotificationCreatedEvent is published after a reconciliation batch
// commits a new notification. Downstream consumers (push delivery,
// analytics) get everything they need without touching the primary
// database.
type NotificationCreatedEvent struct {
	NotificationID  uint64 `json:"notification_id"`
	Category        int    `json:"category"` // 1 = article like, 2 = comment rate
	LinkID          string `json:"link_id"`
	SenderID        string `json:"sender_id"`
	AcceptorID      string `json:"acceptor_id"`
	SenderContent   string `json:"sender_content"`
	AcceptorContent string `json:"acceptor_content"`
	CreatedAt       string `json:"created_at"`
}
