// Package marketplace turns approved crops into marketplace listings.
package marketplace

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/farmchain/internal/domain/models"
	"github.com/mamadbah2/farmchain/internal/repository"
	client "github.com/mamadbah2/farmchain/pkg/clients/marketplace"
)

// Publisher creates or reactivates the listing of one approved crop. Calls
// are idempotent per (batchId, cropId).
type Publisher interface {
	CreateOrActivate(ctx context.Context, listing models.Listing) error
}

// StorePublisher keeps listings in the local ListingStore.
type StorePublisher struct {
	store  repository.ListingStore
	logger *zap.Logger
}

// NewStorePublisher builds a publisher backed by store.
func NewStorePublisher(store repository.ListingStore, logger *zap.Logger) *StorePublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StorePublisher{store: store, logger: logger}
}

// CreateOrActivate implements Publisher.
func (p *StorePublisher) CreateOrActivate(ctx context.Context, listing models.Listing) error {
	if listing.BatchID == "" || listing.CropID == "" {
		return errors.New("listing requires batch and crop ids")
	}
	listing.Status = models.ListingStatusActive

	stored, err := p.store.UpsertListing(ctx, listing)
	if err != nil {
		return fmt.Errorf("upsert listing %s/%s: %w", listing.BatchID, listing.CropID, err)
	}
	p.logger.Debug("listing active",
		zap.String("batch_id", stored.BatchID),
		zap.String("crop_id", stored.CropID),
		zap.String("price", stored.Price.StringFixed(2)))
	return nil
}

// ListingsForBatch returns the listings published for a batch.
func (p *StorePublisher) ListingsForBatch(ctx context.Context, batchID string) ([]models.Listing, error) {
	return p.store.FindListingsByBatch(ctx, batchID)
}

// RemoteClient is the subset of the marketplace HTTP client used here.
type RemoteClient interface {
	PutListing(ctx context.Context, req client.ListingRequest) (*client.ListingResponse, error)
}

// HTTPPublisher pushes listings to a remote marketplace.
type HTTPPublisher struct {
	remote RemoteClient
	logger *zap.Logger
}

// NewHTTPPublisher builds a publisher that calls remote.
func NewHTTPPublisher(remote RemoteClient, logger *zap.Logger) *HTTPPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPPublisher{remote: remote, logger: logger}
}

// CreateOrActivate implements Publisher.
func (p *HTTPPublisher) CreateOrActivate(ctx context.Context, listing models.Listing) error {
	resp, err := p.remote.PutListing(ctx, client.ListingRequest{
		BatchID:           listing.BatchID,
		CropID:            listing.CropID,
		FarmerID:          listing.FarmerID,
		DistributorID:     listing.DistributorID,
		Quantity:          models.FormatQuantity(listing.Quantity),
		Price:             listing.Price.StringFixed(2),
		FarmerProfit:      listing.FarmerProfit.StringFixed(2),
		DistributorProfit: listing.DistributorProfit.StringFixed(2),
		Status:            models.ListingStatusActive,
	})
	if err != nil {
		return err
	}
	p.logger.Debug("listing pushed to marketplace",
		zap.String("batch_id", listing.BatchID),
		zap.String("crop_id", listing.CropID),
		zap.String("remote_id", resp.ID))
	return nil
}

// Chain publishes to every publisher in order and stops at the first error.
// Re-running a chain is safe because each publisher is idempotent.
type Chain []Publisher

// CreateOrActivate implements Publisher.
func (c Chain) CreateOrActivate(ctx context.Context, listing models.Listing) error {
	for _, p := range c {
		if err := p.CreateOrActivate(ctx, listing); err != nil {
			return err
		}
	}
	return nil
}
