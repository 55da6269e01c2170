// Package batches implements the batch lifecycle: intake, approval and
// rejection, status changes, quality grading, and quantity-conserving split
// and merge. Every mutation runs in one unit of work together with its trace
// entries and the outbox events for listings and notifications.
package batches

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmchain/internal/domain/lifecycle"
	"github.com/mamadbah2/farmchain/internal/domain/models"
	"github.com/mamadbah2/farmchain/internal/repository"
)

// Waker is nudged after a commit that staged outbox events.
type Waker interface {
	Wake()
}

// Service is the batch lifecycle engine.
type Service struct {
	store  repository.Store
	policy lifecycle.Policy
	waker  Waker
	logger *zap.Logger
	now    func() time.Time
	// childID proposes the id of a split child.
	childID func(parentID string) string
}

// NewService wires the engine. waker may be nil, in which case staged events
// wait for the scheduled outbox drain.
func NewService(store repository.Store, policy lifecycle.Policy, waker Waker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		policy: policy,
		waker:  waker,
		logger:  logger,
		now:     time.Now,
		childID: splitChildID,
	}
}

// CreateBatchInput carries the caller-supplied fields of a new batch.
type CreateBatchInput struct {
	BatchID       string
	FarmerID      string
	CropType      string
	Status        models.Status
	HarvestDate   *time.Time
	TotalQuantity *decimal.Decimal
}

// CropInput carries the fields of a crop taken in under a batch.
type CropInput struct {
	CropName            string
	Quantity            decimal.Decimal
	Location            string
	ExpectedHarvestDate string
	QualityGrade        string
	Price               decimal.Decimal
}

// CreateBatch validates and persists a new batch. No trace entry is written.
func (s *Service) CreateBatch(ctx context.Context, in CreateBatchInput) (models.Batch, error) {
	const op = "create batch"

	farmerID := strings.TrimSpace(in.FarmerID)
	cropType := strings.TrimSpace(in.CropType)
	if farmerID == "" {
		return models.Batch{}, invalid(op, "farmer id is required")
	}
	if cropType == "" {
		return models.Batch{}, invalid(op, "crop type is required")
	}

	now := s.now().UTC()
	batch := models.Batch{
		BatchID:       strings.TrimSpace(in.BatchID),
		FarmerID:      farmerID,
		CropType:      cropType,
		Status:        trimStatus(in.Status),
		HarvestDate:   in.HarvestDate,
		TotalQuantity: decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if batch.BatchID == "" {
		batch.BatchID = generateBatchID(cropType, now)
	}
	if batch.Status == "" {
		batch.Status = models.StatusPlanted
	}
	if isHarvested(batch.Status) && batch.HarvestDate == nil {
		batch.HarvestDate = today(now)
	}
	if in.TotalQuantity != nil {
		if in.TotalQuantity.IsNegative() {
			return models.Batch{}, invalid(op, "total quantity must not be negative")
		}
		batch.TotalQuantity = models.Round2(*in.TotalQuantity)
	}

	if err := s.store.SaveBatch(ctx, &batch); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return models.Batch{}, invalid(op, "batch %s already exists", batch.BatchID)
		}
		return models.Batch{}, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("batch created",
		zap.String("batch_id", batch.BatchID),
		zap.String("farmer_id", batch.FarmerID),
		zap.String("crop_type", batch.CropType))
	return batch, nil
}

// AddCrop takes a crop in under a batch and recomputes the batch total from
// its non-blocked crops.
func (s *Service) AddCrop(ctx context.Context, batchID string, in CropInput, actor string) (models.Crop, error) {
	const op = "add crop"

	if strings.TrimSpace(in.CropName) == "" {
		return models.Crop{}, invalid(op, "crop name is required")
	}
	if in.Quantity.IsNegative() {
		return models.Crop{}, invalid(op, "quantity must not be negative")
	}
	if in.Price.IsNegative() {
		return models.Crop{}, invalid(op, "price must not be negative")
	}

	var crop models.Crop
	err := s.inTx(ctx, op, actor, func(ctx context.Context, u *unit) error {
		batch, err := u.loadBatch(ctx, batchID)
		if err != nil {
			return err
		}

		crop = models.Crop{
			BatchID:             batch.BatchID,
			FarmerID:            batch.FarmerID,
			CropName:            strings.TrimSpace(in.CropName),
			Quantity:            models.Round2(in.Quantity),
			Location:            in.Location,
			ExpectedHarvestDate: in.ExpectedHarvestDate,
			QualityGrade:        in.QualityGrade,
			Price:               models.Round2(in.Price),
			Status:              batch.Status,
		}
		if err := u.tx.SaveCrop(ctx, &crop); err != nil {
			return err
		}

		crops, err := u.tx.FindCropsByBatch(ctx, batch.BatchID)
		if err != nil {
			return err
		}
		batch.TotalQuantity = models.SumQuantities(models.ActiveCrops(crops))
		batch.UpdatedAt = u.now
		if err := u.tx.SaveBatch(ctx, &batch); err != nil {
			return err
		}
		return u.trace(ctx, batch, "CROP_ADDED")
	})
	return crop, err
}

// GetBatch returns one batch.
func (s *Service) GetBatch(ctx context.Context, batchID string) (models.Batch, error) {
	b, err := s.store.GetBatch(ctx, batchID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Batch{}, notFound("get batch", batchID)
	}
	return b, err
}

// GetBatchesByFarmer returns every batch of a farmer, blocked ones included.
func (s *Service) GetBatchesByFarmer(ctx context.Context, farmerID string) ([]models.Batch, error) {
	return s.store.FindBatchesByFarmer(ctx, farmerID)
}

// GetCropsForBatch returns the crops currently owned by a batch.
func (s *Service) GetCropsForBatch(ctx context.Context, batchID string) ([]models.Crop, error) {
	return s.store.FindCropsByBatch(ctx, batchID)
}

// GetPendingBatchesForDistributor returns harvested or submitted batches that
// are not blocked and still own at least one active crop.
func (s *Service) GetPendingBatchesForDistributor(ctx context.Context) ([]models.Batch, error) {
	batches, err := s.store.FindBatchesByStatusIn(ctx, []models.Status{
		models.StatusHarvested,
		models.StatusSubmittedForApproval,
	})
	if err != nil {
		return nil, err
	}
	return s.visibleToDistributors(ctx, batches)
}

// GetApprovedBatches returns a distributor's approved batches under the same
// visibility rule as the pending queue.
func (s *Service) GetApprovedBatches(ctx context.Context, distributorID string) ([]models.Batch, error) {
	batches, err := s.store.FindBatchesByDistributorAndStatus(ctx, distributorID, models.StatusApproved)
	if err != nil {
		return nil, err
	}
	return s.visibleToDistributors(ctx, batches)
}

// GetBatchTrace returns the audit trail of a batch, oldest first.
func (s *Service) GetBatchTrace(ctx context.Context, batchID string) ([]models.Trace, error) {
	return s.store.FindTracesByBatch(ctx, batchID)
}

func (s *Service) visibleToDistributors(ctx context.Context, batches []models.Batch) ([]models.Batch, error) {
	out := make([]models.Batch, 0, len(batches))
	for _, b := range batches {
		if b.Blocked {
			continue
		}
		crops, err := s.store.FindCropsByBatch(ctx, b.BatchID)
		if err != nil {
			return nil, err
		}
		if len(models.ActiveCrops(crops)) == 0 {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// unit is the per-attempt state of one unit of work.
type unit struct {
	op     string
	actor  string
	now    time.Time
	tx     repository.Tx
	staged int
}

// inTx runs fn in a transaction and wakes the outbox once it commits with
// staged events. Store errors are wrapped with the operation name.
func (s *Service) inTx(ctx context.Context, op, actor string, fn func(ctx context.Context, u *unit) error) error {
	var staged int
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		u := &unit{op: op, actor: actor, now: s.now().UTC(), tx: tx}
		if err := fn(ctx, u); err != nil {
			return err
		}
		staged = u.staged
		return nil
	})
	if err != nil {
		var nf *NotFoundError
		var inv *InvalidOperationError
		if errors.As(err, &nf) || errors.As(err, &inv) {
			return err
		}
		s.logger.Error("batch transaction failed", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if staged > 0 && s.waker != nil {
		s.waker.Wake()
	}
	return nil
}

func (u *unit) loadBatch(ctx context.Context, batchID string) (models.Batch, error) {
	b, err := u.tx.GetBatch(ctx, batchID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Batch{}, notFound(u.op, batchID)
	}
	return b, err
}

func (u *unit) trace(ctx context.Context, batch models.Batch, label string) error {
	return u.tx.AppendTrace(ctx, models.Trace{
		BatchID:   batch.BatchID,
		FarmerID:  batch.FarmerID,
		Label:     label,
		ChangedBy: u.actor,
		Timestamp: u.now,
	})
}

func (u *unit) publish(ctx context.Context, listing models.Listing) error {
	u.staged++
	return u.tx.EnqueueEvent(ctx, models.OutboxEvent{
		Kind:      models.EventListingPublish,
		Listing:   &listing,
		CreatedAt: u.now,
	})
}

func (u *unit) notify(ctx context.Context, n models.Notification) error {
	n.CreatedAt = u.now
	u.staged++
	return u.tx.EnqueueEvent(ctx, models.OutboxEvent{
		Kind:         models.EventNotification,
		Notification: &n,
		CreatedAt:    u.now,
	})
}

// trimStatus keeps the caller's label as given apart from surrounding space.
func trimStatus(status models.Status) models.Status {
	return models.Status(strings.TrimSpace(string(status)))
}

func isHarvested(status models.Status) bool {
	return strings.EqualFold(string(status), string(models.StatusHarvested))
}

func today(now time.Time) *time.Time {
	d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
