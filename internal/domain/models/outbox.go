package models

import "time"

// EventKind identifies the side effect an outbox event stands for.
type EventKind string

const (
	EventListingPublish EventKind = "LISTING_PUBLISH"
	EventNotification   EventKind = "NOTIFICATION"
)

// OutboxEvent is a side effect staged in the same unit of work as the state
// change that caused it. Exactly one of Listing or Notification is set.
type OutboxEvent struct {
	ID           string        `json:"id"`
	Kind         EventKind     `json:"kind"`
	Listing      *Listing      `json:"listing,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	Attempts     int           `json:"attempts"`
	LastError    string        `json:"lastError,omitempty"`
	DeliveredAt  *time.Time    `json:"deliveredAt,omitempty"`
}
