package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/farmchain/internal/domain/models"
	"github.com/mamadbah2/farmchain/internal/repository"
)

// UpsertListing creates the listing for (batch, crop) or refreshes it,
// keeping the original creation time.
func (r *Repository) UpsertListing(ctx context.Context, listing models.Listing) (models.Listing, error) {
	doc := toListingDocument(listing)
	filter := bson.M{"batch_id": listing.BatchID, "crop_id": listing.CropID}
	update := bson.M{
		"$set": bson.M{
			"farmer_id":          doc.FarmerID,
			"distributor_id":     doc.DistributorID,
			"quantity":           doc.Quantity,
			"price":              doc.Price,
			"farmer_profit":      doc.FarmerProfit,
			"distributor_profit": doc.DistributorProfit,
			"status":             doc.Status,
			"updated_at":         doc.UpdatedAt,
		},
		"$setOnInsert": bson.M{"created_at": doc.CreatedAt},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved listingDocument
	err := r.collection(listingsCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&saved)
	if err != nil {
		return models.Listing{}, fmt.Errorf("failed to upsert listing %s/%s: %w", listing.BatchID, listing.CropID, err)
	}
	return saved.toModel(), nil
}

// FindListingsByBatch lists the listings derived from a batch.
func (r *Repository) FindListingsByBatch(ctx context.Context, batchID string) ([]models.Listing, error) {
	cursor, err := r.collection(listingsCollection).Find(ctx, bson.M{"batch_id": batchID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query listings of %s: %w", batchID, err)
	}
	var docs []listingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode listings: %w", err)
	}
	out := make([]models.Listing, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

// SaveNotification upserts a notification, assigning an id to new ones.
func (r *Repository) SaveNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = newID()
	}
	_, err := r.collection(notificationsCollection).ReplaceOne(ctx, bson.M{"_id": n.ID}, toNotificationDocument(*n),
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

// FindNotificationsForUser returns own and role-broadcast notifications, newest first.
func (r *Repository) FindNotificationsForUser(ctx context.Context, userID, role string, unreadOnly bool) ([]models.Notification, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"user_id": userID},
		bson.M{"user_id": models.BroadcastRecipient, "user_role": role},
	}}
	if unreadOnly {
		filter["read"] = false
	}

	cursor, err := r.collection(notificationsCollection).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	var docs []notificationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	out := make([]models.Notification, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

// MarkNotificationRead flags one notification as read.
func (r *Repository) MarkNotificationRead(ctx context.Context, notificationID string) error {
	res, err := r.collection(notificationsCollection).UpdateOne(ctx, bson.M{"_id": notificationID},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", notificationID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("notification %s: %w", notificationID, repository.ErrNotFound)
	}
	return nil
}

// MarkNotificationsRead flags the given notifications as read.
func (r *Repository) MarkNotificationsRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.collection(notificationsCollection).UpdateMany(ctx, bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("failed to mark %d notifications read: %w", len(ids), err)
	}
	return nil
}
