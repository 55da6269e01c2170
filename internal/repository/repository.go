// Package repository declares the persistence contracts used by the services.
// Implementations live in the memory and mongodb subpackages.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mamadbah2/farmchain/internal/domain/models"
)

var (
	// ErrNotFound is returned when an entity id does not resolve.
	ErrNotFound = errors.New("entity not found")
	// ErrDuplicate is returned when inserting an entity whose id already exists.
	ErrDuplicate = errors.New("entity already exists")
	// ErrVersionConflict is returned when a batch was modified after it was read.
	ErrVersionConflict = errors.New("batch version conflict")
)

// BatchStore persists Batch aggregates.
//
// SaveBatch inserts the batch when Version is zero and otherwise updates it
// only if the stored version still equals batch.Version. On success the
// in-hand batch's Version is incremented to match the stored one.
type BatchStore interface {
	GetBatch(ctx context.Context, batchID string) (models.Batch, error)
	SaveBatch(ctx context.Context, batch *models.Batch) error
	FindBatchesByFarmer(ctx context.Context, farmerID string) ([]models.Batch, error)
	FindBatchesByStatusIn(ctx context.Context, statuses []models.Status) ([]models.Batch, error)
	FindBatchesByDistributorAndStatus(ctx context.Context, distributorID string, status models.Status) ([]models.Batch, error)
	FindActiveBatchesByFarmer(ctx context.Context, farmerID string) ([]models.Batch, error)
}

// CropStore persists crops. SaveCrop assigns an id when crop.ID is empty.
type CropStore interface {
	FindCropsByBatch(ctx context.Context, batchID string) ([]models.Crop, error)
	SaveCrop(ctx context.Context, crop *models.Crop) error
	SaveCrops(ctx context.Context, crops []models.Crop) error
}

// TraceLog is the append-only audit sink.
type TraceLog interface {
	AppendTrace(ctx context.Context, trace models.Trace) error
	// FindTracesByBatch returns entries ordered by timestamp, oldest first.
	FindTracesByBatch(ctx context.Context, batchID string) ([]models.Trace, error)
	// FindTracesBetween returns entries with from <= timestamp < to, oldest first.
	FindTracesBetween(ctx context.Context, from, to time.Time) ([]models.Trace, error)
}

// Outbox stages side effects alongside the state change that caused them.
type Outbox interface {
	EnqueueEvent(ctx context.Context, event models.OutboxEvent) error
}

// OutboxReader is used by the dispatcher to drain staged events.
type OutboxReader interface {
	// PendingEvents returns undelivered events with fewer than maxAttempts
	// attempts, oldest first.
	PendingEvents(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkEventDelivered(ctx context.Context, eventID string, at time.Time) error
	MarkEventFailed(ctx context.Context, eventID string, reason string) error
}

// ListingStore persists marketplace listings keyed by (batchID, cropID).
type ListingStore interface {
	UpsertListing(ctx context.Context, listing models.Listing) (models.Listing, error)
	FindListingsByBatch(ctx context.Context, batchID string) ([]models.Listing, error)
}

// NotificationStore persists user notifications.
type NotificationStore interface {
	SaveNotification(ctx context.Context, notification *models.Notification) error
	// FindNotificationsForUser returns the user's own notifications plus the
	// broadcasts for role, newest first. unreadOnly filters read ones out.
	FindNotificationsForUser(ctx context.Context, userID, role string, unreadOnly bool) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID string) error
	MarkNotificationsRead(ctx context.Context, ids []string) error
}

// Tx is the set of stores reachable inside a unit of work.
type Tx interface {
	BatchStore
	CropStore
	TraceLog
	Outbox
}

// Store is the root persistence handle. Reads made through the embedded Tx
// outside RunInTransaction see committed state only.
type Store interface {
	Tx
	OutboxReader
	ListingStore
	NotificationStore

	// RunInTransaction commits every write made through tx when fn returns
	// nil and discards all of them otherwise.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close(ctx context.Context) error
}
