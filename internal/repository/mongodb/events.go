package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/farmchain/internal/domain/models"
	"github.com/mamadbah2/farmchain/internal/repository"
)

func newID() string {
	return uuid.NewString()
}

// AppendTrace inserts a trace entry.
func (r *Repository) AppendTrace(ctx context.Context, trace models.Trace) error {
	if _, err := r.collection(tracesCollection).InsertOne(ctx, toTraceDocument(trace)); err != nil {
		return fmt.Errorf("failed to append trace for %s: %w", trace.BatchID, err)
	}
	return nil
}

// FindTracesByBatch returns a batch's trace, oldest first.
func (r *Repository) FindTracesByBatch(ctx context.Context, batchID string) ([]models.Trace, error) {
	return r.findTraces(ctx, bson.M{"batch_id": batchID})
}

// FindTracesBetween returns traces in [from, to), oldest first.
func (r *Repository) FindTracesBetween(ctx context.Context, from, to time.Time) ([]models.Trace, error) {
	return r.findTraces(ctx, bson.M{"timestamp": bson.M{"$gte": from, "$lt": to}})
}

func (r *Repository) findTraces(ctx context.Context, filter bson.M) ([]models.Trace, error) {
	// ObjectIDs grow with insertion, so they break timestamp ties in write order.
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection(tracesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}
	var docs []traceDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode traces: %w", err)
	}
	out := make([]models.Trace, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

// EnqueueEvent stores an outbox event.
func (r *Repository) EnqueueEvent(ctx context.Context, event models.OutboxEvent) error {
	if event.ID == "" {
		event.ID = newID()
	}
	if _, err := r.collection(outboxCollection).InsertOne(ctx, toOutboxDocument(event)); err != nil {
		return fmt.Errorf("failed to enqueue %s event: %w", event.Kind, err)
	}
	return nil
}

// PendingEvents returns undelivered events below the attempt ceiling.
func (r *Repository) PendingEvents(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	filter := bson.M{"delivered_at": nil}
	if maxAttempts > 0 {
		filter["attempts"] = bson.M{"$lt": maxAttempts}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection(outboxCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	var docs []outboxDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode outbox: %w", err)
	}
	out := make([]models.OutboxEvent, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

// MarkEventDelivered records a successful delivery.
func (r *Repository) MarkEventDelivered(ctx context.Context, eventID string, at time.Time) error {
	return r.updateEvent(ctx, eventID, bson.M{
		"$set": bson.M{"delivered_at": at, "last_error": ""},
		"$inc": bson.M{"attempts": 1},
	})
}

// MarkEventFailed records a failed delivery attempt.
func (r *Repository) MarkEventFailed(ctx context.Context, eventID string, reason string) error {
	return r.updateEvent(ctx, eventID, bson.M{
		"$set": bson.M{"last_error": reason},
		"$inc": bson.M{"attempts": 1},
	})
}

func (r *Repository) updateEvent(ctx context.Context, eventID string, update bson.M) error {
	res, err := r.collection(outboxCollection).UpdateOne(ctx, bson.M{"_id": eventID}, update)
	if err != nil {
		return fmt.Errorf("failed to update outbox event %s: %w", eventID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("outbox event %s: %w", eventID, repository.ErrNotFound)
	}
	return nil
}
