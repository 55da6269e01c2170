package batches

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmchain/internal/domain/models"
)

// ApproveBatch approves a batch for a distributor and stages one listing per
// crop. Approving an already approved batch returns it unchanged.
func (s *Service) ApproveBatch(ctx context.Context, batchID, distributorID string) (models.Batch, error) {
	const op = "approve batch"

	var out models.Batch
	err := s.inTx(ctx, op, distributorID, func(ctx context.Context, u *unit) error {
		batch, err := u.loadBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if batch.Status == models.StatusApproved {
			out = batch
			return nil
		}
		if err := s.checkTransition(op, batch.Status, models.StatusApproved); err != nil {
			return err
		}

		batch.Status = models.StatusApproved
		batch.DistributorID = distributorID
		batch.UpdatedAt = u.now

		crops, err := u.tx.FindCropsByBatch(ctx, batch.BatchID)
		if err != nil {
			return err
		}
		for _, crop := range crops {
			if err := u.publish(ctx, listingFor(batch, crop, distributorID, u.now)); err != nil {
				return err
			}
		}

		if err := u.tx.SaveBatch(ctx, &batch); err != nil {
			return err
		}
		if err := u.trace(ctx, batch, string(models.StatusApproved)); err != nil {
			return err
		}
		if err := u.notify(ctx, models.Notification{
			UserID:   batch.FarmerID,
			UserRole: models.RoleFarmer,
			Title:    "Batch Approved",
			Message:  fmt.Sprintf("Your batch %s has been approved and listed in the marketplace.", batch.BatchID),
			Type:     models.NotificationBatchApproved,
			EntityID: batch.BatchID,
		}); err != nil {
			return err
		}
		out = batch
		return nil
	})
	if err != nil {
		return models.Batch{}, err
	}

	s.logger.Info("batch approved", zap.String("batch_id", out.BatchID), zap.String("distributor_id", out.DistributorID))
	return out, nil
}

// RejectBatch rejects a batch and blocks it permanently.
func (s *Service) RejectBatch(ctx context.Context, batchID, distributorID, reason string) (models.Batch, error) {
	const op = "reject batch"
	reason = strings.TrimSpace(reason)

	var out models.Batch
	err := s.inTx(ctx, op, distributorID, func(ctx context.Context, u *unit) error {
		batch, err := u.loadBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if err := s.checkTransition(op, batch.Status, models.StatusRejected); err != nil {
			return err
		}

		batch.Status = models.StatusRejected
		batch.RejectedBy = distributorID
		batch.RejectionReason = reason
		batch.Blocked = true
		batch.UpdatedAt = u.now
		if err := u.tx.SaveBatch(ctx, &batch); err != nil {
			return err
		}

		if err := u.trace(ctx, batch, "REJECTED - Reason: "+orDefault(reason, "N/A")); err != nil {
			return err
		}
		if err := u.notify(ctx, models.Notification{
			UserID:   batch.FarmerID,
			UserRole: models.RoleFarmer,
			Title:    "Batch Rejected",
			Message:  fmt.Sprintf("Your batch %s was rejected. Reason: %s", batch.BatchID, orDefault(reason, "Not specified")),
			Type:     models.NotificationBatchRejected,
			EntityID: batch.BatchID,
		}); err != nil {
			return err
		}
		out = batch
		return nil
	})
	if err != nil {
		return models.Batch{}, err
	}

	s.logger.Info("batch rejected", zap.String("batch_id", out.BatchID), zap.String("rejected_by", distributorID))
	return out, nil
}

// SubmitForApproval moves a batch into the distributors' approval queue.
func (s *Service) SubmitForApproval(ctx context.Context, batchID, actor string) (models.Batch, error) {
	const op = "submit for approval"

	var out models.Batch
	err := s.inTx(ctx, op, actor, func(ctx context.Context, u *unit) error {
		batch, err := u.loadBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if err := s.checkTransition(op, batch.Status, models.StatusSubmittedForApproval); err != nil {
			return err
		}

		batch.Status = models.StatusSubmittedForApproval
		batch.UpdatedAt = u.now
		if err := u.tx.SaveBatch(ctx, &batch); err != nil {
			return err
		}
		out = batch
		return u.trace(ctx, batch, string(models.StatusSubmittedForApproval))
	})
	return out, err
}

// UpdateStatus writes a status label to the batch and all of its crops.
// Moving to HARVESTED broadcasts the batch to every distributor.
func (s *Service) UpdateStatus(ctx context.Context, batchID string, status models.Status, actor string) (models.Batch, error) {
	const op = "update status"

	status = trimStatus(status)
	if status == "" {
		return models.Batch{}, invalid(op, "status is required")
	}

	var out models.Batch
	err := s.inTx(ctx, op, actor, func(ctx context.Context, u *unit) error {
		batch, err := u.loadBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if err := s.checkTransition(op, batch.Status, status); err != nil {
			return err
		}

		batch.Status = status
		batch.UpdatedAt = u.now
		if isHarvested(status) && batch.HarvestDate == nil {
			batch.HarvestDate = today(u.now)
		}

		crops, err := u.tx.FindCropsByBatch(ctx, batch.BatchID)
		if err != nil {
			return err
		}
		for i := range crops {
			crops[i].Status = status
		}
		if err := u.tx.SaveCrops(ctx, crops); err != nil {
			return err
		}
		if err := u.tx.SaveBatch(ctx, &batch); err != nil {
			return err
		}
		if err := u.trace(ctx, batch, string(status)); err != nil {
			return err
		}

		if isHarvested(status) {
			if err := u.notify(ctx, models.Notification{
				UserID:   models.BroadcastRecipient,
				UserRole: models.RoleDistributor,
				Title:    "New Batch Ready for Approval",
				Message:  fmt.Sprintf("Batch %s is harvested and waiting for approval", batch.BatchID),
				Type:     models.NotificationBatchSubmitted,
				EntityID: batch.BatchID,
			}); err != nil {
				return err
			}
		}
		out = batch
		return nil
	})
	return out, err
}

// UpdateQualityGrade applies a grade to every crop of the batch and records
// the grading confidence as the batch's average quality score.
func (s *Service) UpdateQualityGrade(ctx context.Context, batchID, grade string, confidence *decimal.Decimal, actor string) (models.Batch, error) {
	const op = "update quality grade"

	var out models.Batch
	err := s.inTx(ctx, op, actor, func(ctx context.Context, u *unit) error {
		batch, err := u.loadBatch(ctx, batchID)
		if err != nil {
			return err
		}

		crops, err := u.tx.FindCropsByBatch(ctx, batch.BatchID)
		if err != nil {
			return err
		}
		if len(crops) > 0 {
			for i := range crops {
				crops[i].QualityGrade = grade
			}
			if err := u.tx.SaveCrops(ctx, crops); err != nil {
				return err
			}
		}

		if confidence != nil {
			score := models.Round2(*confidence)
			batch.AvgQualityScore = &score
		}
		batch.UpdatedAt = u.now
		if err := u.tx.SaveBatch(ctx, &batch); err != nil {
			return err
		}
		out = batch
		return u.trace(ctx, batch, "QUALITY_UPDATED")
	})
	return out, err
}

func (s *Service) checkTransition(op string, from, to models.Status) error {
	if err := s.policy.Check(from, to); err != nil {
		return invalid(op, "%v", err)
	}
	return nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
