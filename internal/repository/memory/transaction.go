package memory

import (
	"context"
	"time"

	"github.com/mamadbah2/farmchain/internal/domain/models"
	"github.com/mamadbah2/farmchain/internal/repository"
)

// transaction works on a private copy of the store state. The store lock is
// held by RunInTransaction for its whole lifetime.
type transaction struct {
	state state
}

var _ repository.Tx = (*transaction)(nil)

func (tx *transaction) GetBatch(_ context.Context, batchID string) (models.Batch, error) {
	return tx.state.getBatch(batchID)
}

func (tx *transaction) SaveBatch(_ context.Context, batch *models.Batch) error {
	return tx.state.saveBatch(batch)
}

func (tx *transaction) FindBatchesByFarmer(_ context.Context, farmerID string) ([]models.Batch, error) {
	return tx.state.filterBatches(func(b models.Batch) bool { return b.FarmerID == farmerID }), nil
}

func (tx *transaction) FindBatchesByStatusIn(_ context.Context, statuses []models.Status) ([]models.Batch, error) {
	return tx.state.filterBatches(func(b models.Batch) bool { return containsStatus(statuses, b.Status) }), nil
}

func (tx *transaction) FindBatchesByDistributorAndStatus(_ context.Context, distributorID string, status models.Status) ([]models.Batch, error) {
	return tx.state.filterBatches(func(b models.Batch) bool {
		return b.DistributorID == distributorID && b.Status == status
	}), nil
}

func (tx *transaction) FindActiveBatchesByFarmer(_ context.Context, farmerID string) ([]models.Batch, error) {
	return tx.state.filterBatches(func(b models.Batch) bool { return b.FarmerID == farmerID && !b.Blocked }), nil
}

func (tx *transaction) FindCropsByBatch(_ context.Context, batchID string) ([]models.Crop, error) {
	return tx.state.cropsByBatch(batchID), nil
}

func (tx *transaction) SaveCrop(_ context.Context, crop *models.Crop) error {
	tx.state.saveCrop(crop)
	return nil
}

func (tx *transaction) SaveCrops(_ context.Context, crops []models.Crop) error {
	tx.state.saveCrops(crops)
	return nil
}

func (tx *transaction) AppendTrace(_ context.Context, trace models.Trace) error {
	tx.state.traces = append(tx.state.traces, trace)
	return nil
}

func (tx *transaction) FindTracesByBatch(_ context.Context, batchID string) ([]models.Trace, error) {
	return tx.state.filterTraces(func(t models.Trace) bool { return t.BatchID == batchID }), nil
}

func (tx *transaction) FindTracesBetween(_ context.Context, from, to time.Time) ([]models.Trace, error) {
	return tx.state.filterTraces(func(t models.Trace) bool {
		return !t.Timestamp.Before(from) && t.Timestamp.Before(to)
	}), nil
}

func (tx *transaction) EnqueueEvent(_ context.Context, event models.OutboxEvent) error {
	tx.state.enqueue(event)
	return nil
}
