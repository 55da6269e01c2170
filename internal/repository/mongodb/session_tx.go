package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mamadbah2/farmchain/internal/domain/models"
	"github.com/mamadbah2/farmchain/internal/repository"
)

// sessionTx binds every call to the transaction's session context, whatever
// context the caller passes.
type sessionTx struct {
	r  *Repository
	sc mongo.SessionContext
}

var _ repository.Tx = (*sessionTx)(nil)

func (tx *sessionTx) GetBatch(_ context.Context, batchID string) (models.Batch, error) {
	return tx.r.GetBatch(tx.sc, batchID)
}

func (tx *sessionTx) SaveBatch(_ context.Context, batch *models.Batch) error {
	return tx.r.SaveBatch(tx.sc, batch)
}

func (tx *sessionTx) FindBatchesByFarmer(_ context.Context, farmerID string) ([]models.Batch, error) {
	return tx.r.FindBatchesByFarmer(tx.sc, farmerID)
}

func (tx *sessionTx) FindBatchesByStatusIn(_ context.Context, statuses []models.Status) ([]models.Batch, error) {
	return tx.r.FindBatchesByStatusIn(tx.sc, statuses)
}

func (tx *sessionTx) FindBatchesByDistributorAndStatus(_ context.Context, distributorID string, status models.Status) ([]models.Batch, error) {
	return tx.r.FindBatchesByDistributorAndStatus(tx.sc, distributorID, status)
}

func (tx *sessionTx) FindActiveBatchesByFarmer(_ context.Context, farmerID string) ([]models.Batch, error) {
	return tx.r.FindActiveBatchesByFarmer(tx.sc, farmerID)
}

func (tx *sessionTx) FindCropsByBatch(_ context.Context, batchID string) ([]models.Crop, error) {
	return tx.r.FindCropsByBatch(tx.sc, batchID)
}

func (tx *sessionTx) SaveCrop(_ context.Context, crop *models.Crop) error {
	return tx.r.SaveCrop(tx.sc, crop)
}

func (tx *sessionTx) SaveCrops(_ context.Context, crops []models.Crop) error {
	return tx.r.SaveCrops(tx.sc, crops)
}

func (tx *sessionTx) AppendTrace(_ context.Context, trace models.Trace) error {
	return tx.r.AppendTrace(tx.sc, trace)
}

func (tx *sessionTx) FindTracesByBatch(_ context.Context, batchID string) ([]models.Trace, error) {
	return tx.r.FindTracesByBatch(tx.sc, batchID)
}

func (tx *sessionTx) FindTracesBetween(_ context.Context, from, to time.Time) ([]models.Trace, error) {
	return tx.r.FindTracesBetween(tx.sc, from, to)
}

func (tx *sessionTx) EnqueueEvent(_ context.Context, event models.OutboxEvent) error {
	return tx.r.EnqueueEvent(tx.sc, event)
}
