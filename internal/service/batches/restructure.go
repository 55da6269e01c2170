package batches

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmchain/internal/domain/models"
	"github.com/mamadbah2/farmchain/internal/repository"
)

// maxChildIDAttempts bounds the search for an unused split child id.
const maxChildIDAttempts = 16

// SplitBatch moves splitQuantity out of a batch into a new child batch. Every
// crop gives up the same proportion of its quantity; the child lineage is
// recorded only in the trace log.
func (s *Service) SplitBatch(ctx context.Context, parentBatchID string, splitQuantity decimal.Decimal, actor string) (models.Batch, error) {
	const op = "split batch"

	var child models.Batch
	err := s.inTx(ctx, op, actor, func(ctx context.Context, u *unit) error {
		parent, err := u.loadBatch(ctx, parentBatchID)
		if err != nil {
			return err
		}

		parentTotal := parent.TotalQuantity
		if !splitQuantity.IsPositive() || splitQuantity.GreaterThan(parentTotal) {
			return invalid(op, "split quantity %s must be in (0, %s]", splitQuantity, parentTotal)
		}

		parentCrops, err := u.tx.FindCropsByBatch(ctx, parent.BatchID)
		if err != nil {
			return err
		}
		if len(parentCrops) == 0 {
			return invalid(op, "batch %s has no crops to split", parent.BatchID)
		}

		childID, err := u.freeChildID(ctx, s.childID, parent.BatchID)
		if err != nil {
			return err
		}

		child = models.Batch{
			BatchID:       childID,
			FarmerID:      parent.FarmerID,
			CropType:      parent.CropType,
			Status:        parent.Status,
			TotalQuantity: models.Round2(splitQuantity),
			CreatedAt:     u.now,
			UpdatedAt:     u.now,
		}
		if err := u.tx.SaveBatch(ctx, &child); err != nil {
			return err
		}

		childCrops := make([]models.Crop, 0, len(parentCrops))
		for i := range parentCrops {
			pc := &parentCrops[i]
			// q * split / total keeps full precision until the final rounding.
			childQty := models.Round2(pc.Quantity.Mul(splitQuantity).Div(parentTotal))
			pc.Quantity = models.Round2(pc.Quantity.Sub(childQty))

			if childQty.IsPositive() {
				childCrops = append(childCrops, models.Crop{
					BatchID:             child.BatchID,
					FarmerID:            parent.FarmerID,
					CropName:            pc.CropName,
					Quantity:            childQty,
					Location:            pc.Location,
					ExpectedHarvestDate: pc.ExpectedHarvestDate,
					QualityGrade:        pc.QualityGrade,
					Price:               pc.Price,
					Status:              child.Status,
				})
			}
		}
		if err := u.tx.SaveCrops(ctx, parentCrops); err != nil {
			return err
		}
		if err := u.tx.SaveCrops(ctx, childCrops); err != nil {
			return err
		}

		parent.TotalQuantity = models.Round2(parentTotal.Sub(splitQuantity))
		parent.UpdatedAt = u.now
		if err := u.tx.SaveBatch(ctx, &parent); err != nil {
			return err
		}

		if err := u.trace(ctx, parent, "SPLIT"); err != nil {
			return err
		}
		return u.trace(ctx, child, "CREATED_BY_SPLIT")
	})
	if err != nil {
		return models.Batch{}, err
	}

	s.logger.Info("batch split",
		zap.String("parent_id", parentBatchID),
		zap.String("child_id", child.BatchID),
		zap.String("quantity", child.TotalQuantity.String()))
	return child, nil
}

// freeChildID draws child ids until one is not taken by an existing batch.
func (u *unit) freeChildID(ctx context.Context, next func(string) string, parentID string) (string, error) {
	for i := 0; i < maxChildIDAttempts; i++ {
		id := next(parentID)
		_, err := u.tx.GetBatch(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free child id for %s after %d attempts", parentID, maxChildIDAttempts)
}

// MergeBatches moves every crop of the source batches into the target batch,
// blocks the sources and returns the farmer's remaining active batches. All
// sources are validated before anything is written.
func (s *Service) MergeBatches(ctx context.Context, targetBatchID string, sourceBatchIDs []string, actor string) ([]models.Batch, error) {
	const op = "merge batches"

	if len(sourceBatchIDs) == 0 {
		return nil, invalid(op, "no source batches provided")
	}

	var remaining []models.Batch
	err := s.inTx(ctx, op, actor, func(ctx context.Context, u *unit) error {
		target, err := u.loadBatch(ctx, targetBatchID)
		if err != nil {
			return err
		}

		seen := map[string]bool{target.BatchID: true}
		sources := make([]models.Batch, 0, len(sourceBatchIDs))
		for _, id := range sourceBatchIDs {
			if seen[id] {
				continue
			}
			seen[id] = true

			src, err := u.loadBatch(ctx, id)
			if err != nil {
				return err
			}
			if src.CropType != target.CropType {
				return invalid(op, "cannot merge %s (%s) into %s (%s): crop types differ",
					src.BatchID, src.CropType, target.BatchID, target.CropType)
			}
			sources = append(sources, src)
		}

		totalAdded := decimal.Zero
		for i := range sources {
			src := &sources[i]

			crops, err := u.tx.FindCropsByBatch(ctx, src.BatchID)
			if err != nil {
				return err
			}
			for j := range crops {
				crops[j].BatchID = target.BatchID
				totalAdded = totalAdded.Add(crops[j].Quantity)
			}
			if err := u.tx.SaveCrops(ctx, crops); err != nil {
				return err
			}

			src.Blocked = true
			src.Status = models.StatusMerged
			src.UpdatedAt = u.now
			if err := u.tx.SaveBatch(ctx, src); err != nil {
				return err
			}
			if err := u.trace(ctx, *src, "MERGED_INTO -> "+target.BatchID); err != nil {
				return err
			}
		}

		target.TotalQuantity = models.Round2(target.TotalQuantity.Add(models.Round2(totalAdded)))
		target.Status = models.StatusActive
		target.UpdatedAt = u.now
		if err := u.tx.SaveBatch(ctx, &target); err != nil {
			return err
		}
		if err := u.trace(ctx, target, "MERGED_FROM_SOURCES"); err != nil {
			return err
		}

		remaining, err = u.tx.FindActiveBatchesByFarmer(ctx, target.FarmerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("batches merged",
		zap.String("target_id", targetBatchID),
		zap.Strings("source_ids", sourceBatchIDs))
	return remaining, nil
}
