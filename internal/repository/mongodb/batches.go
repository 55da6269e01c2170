package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/farmchain/internal/domain/models"
	"github.com/mamadbah2/farmchain/internal/repository"
)

// GetBatch loads a batch by id.
func (r *Repository) GetBatch(ctx context.Context, batchID string) (models.Batch, error) {
	var doc batchDocument
	err := r.collection(batchesCollection).FindOne(ctx, bson.M{"_id": batchID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Batch{}, fmt.Errorf("batch %s: %w", batchID, repository.ErrNotFound)
	}
	if err != nil {
		return models.Batch{}, fmt.Errorf("failed to load batch %s: %w", batchID, err)
	}
	return doc.toModel(), nil
}

// SaveBatch inserts a new batch or replaces an existing one when its version
// still matches.
func (r *Repository) SaveBatch(ctx context.Context, batch *models.Batch) error {
	coll := r.collection(batchesCollection)

	if batch.Version == 0 {
		doc := toBatchDocument(*batch)
		doc.Version = 1
		if _, err := coll.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("batch %s: %w", batch.BatchID, repository.ErrDuplicate)
			}
			return fmt.Errorf("failed to insert batch %s: %w", batch.BatchID, err)
		}
		batch.Version = 1
		return nil
	}

	doc := toBatchDocument(*batch)
	doc.Version = batch.Version + 1
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": batch.BatchID, "version": batch.Version}, doc)
	if err != nil {
		return fmt.Errorf("failed to update batch %s: %w", batch.BatchID, err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetBatch(ctx, batch.BatchID); err != nil {
			return err
		}
		return fmt.Errorf("batch %s at version %d: %w", batch.BatchID, batch.Version, repository.ErrVersionConflict)
	}
	batch.Version = doc.Version
	return nil
}

// FindBatchesByFarmer lists every batch of a farmer.
func (r *Repository) FindBatchesByFarmer(ctx context.Context, farmerID string) ([]models.Batch, error) {
	return r.findBatches(ctx, bson.M{"farmer_id": farmerID})
}

// FindBatchesByStatusIn lists batches whose status is one of statuses.
func (r *Repository) FindBatchesByStatusIn(ctx context.Context, statuses []models.Status) ([]models.Batch, error) {
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}
	return r.findBatches(ctx, bson.M{"status": bson.M{"$in": values}})
}

// FindBatchesByDistributorAndStatus lists a distributor's batches in status.
func (r *Repository) FindBatchesByDistributorAndStatus(ctx context.Context, distributorID string, status models.Status) ([]models.Batch, error) {
	return r.findBatches(ctx, bson.M{"distributor_id": distributorID, "status": string(status)})
}

// FindActiveBatchesByFarmer lists a farmer's batches that are not blocked.
func (r *Repository) FindActiveBatchesByFarmer(ctx context.Context, farmerID string) ([]models.Batch, error) {
	return r.findBatches(ctx, bson.M{"farmer_id": farmerID, "blocked": false})
}

func (r *Repository) findBatches(ctx context.Context, filter bson.M) ([]models.Batch, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection(batchesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	var docs []batchDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode batches: %w", err)
	}
	out := make([]models.Batch, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

// FindCropsByBatch lists the crops owned by a batch.
func (r *Repository) FindCropsByBatch(ctx context.Context, batchID string) ([]models.Crop, error) {
	cursor, err := r.collection(cropsCollection).Find(ctx, bson.M{"batch_id": batchID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query crops of %s: %w", batchID, err)
	}
	var docs []cropDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode crops: %w", err)
	}
	out := make([]models.Crop, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel(r.logger))
	}
	return out, nil
}

// SaveCrop upserts a crop, assigning an id to new ones.
func (r *Repository) SaveCrop(ctx context.Context, crop *models.Crop) error {
	if crop.ID == "" {
		crop.ID = newID()
	}
	_, err := r.collection(cropsCollection).ReplaceOne(ctx, bson.M{"_id": crop.ID}, toCropDocument(*crop),
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save crop %s: %w", crop.ID, err)
	}
	return nil
}

// SaveCrops upserts crops in one bulk write.
func (r *Repository) SaveCrops(ctx context.Context, crops []models.Crop) error {
	if len(crops) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(crops))
	for i := range crops {
		if crops[i].ID == "" {
			crops[i].ID = newID()
		}
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": crops[i].ID}).
			SetReplacement(toCropDocument(crops[i])).
			SetUpsert(true))
	}
	if _, err := r.collection(cropsCollection).BulkWrite(ctx, writes); err != nil {
		return fmt.Errorf("failed to save %d crops: %w", len(crops), err)
	}
	return nil
}
