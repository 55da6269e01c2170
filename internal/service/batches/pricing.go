package batches

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/farmchain/internal/domain/models"
)

// profitShare is applied to the farmer's unit price once for the farmer and
// once for the distributor.
var profitShare = decimal.RequireFromString("0.10")

func listingFor(batch models.Batch, crop models.Crop, distributorID string, now time.Time) models.Listing {
	farmerProfit := models.Round2(crop.Price.Mul(profitShare))
	distributorProfit := models.Round2(crop.Price.Mul(profitShare))

	return models.Listing{
		BatchID:           batch.BatchID,
		CropID:            crop.ID,
		FarmerID:          batch.FarmerID,
		DistributorID:     distributorID,
		Quantity:          crop.Quantity,
		Price:             models.Round2(crop.Price.Add(farmerProfit).Add(distributorProfit)),
		FarmerProfit:      farmerProfit,
		DistributorProfit: distributorProfit,
		Status:            models.ListingStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
