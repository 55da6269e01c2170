package models

import "time"

// BroadcastRecipient addresses every user that holds the notification role.
const BroadcastRecipient = "ALL"

// Notification roles.
const (
	RoleFarmer      = "FARMER"
	RoleDistributor = "DISTRIBUTOR"
)

// NotificationType classifies notifications for the inbox UI.
type NotificationType string

const (
	NotificationBatchApproved  NotificationType = "BATCH_APPROVED"
	NotificationBatchRejected  NotificationType = "BATCH_REJECTED"
	NotificationBatchSubmitted NotificationType = "BATCH_SUBMITTED"
)

// Notification is a message addressed to a user, or to every user of a role
// when UserID is BroadcastRecipient.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	UserRole  string           `json:"userRole"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"notificationType"`
	EntityID  string           `json:"entityId,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

// IsBroadcast reports whether the notification targets a whole role.
func (n Notification) IsBroadcast() bool {
	return n.UserID == BroadcastRecipient
}
