package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the free-form lifecycle label carried by batches and crops.
type Status string

const (
	StatusPlanted              Status = "PLANTED"
	StatusHarvested            Status = "HARVESTED"
	StatusSubmittedForApproval Status = "SUBMITTED_FOR_APPROVAL"
	StatusApproved             Status = "APPROVED"
	StatusRejected             Status = "REJECTED"
	StatusMerged               Status = "MERGED"
	StatusActive               Status = "ACTIVE"
)

// Batch is one planted or harvested lot owned by a single farmer.
type Batch struct {
	BatchID         string           `json:"batchId"`
	FarmerID        string           `json:"farmerId"`
	DistributorID   string           `json:"distributorId,omitempty"`
	CropType        string           `json:"cropType"`
	TotalQuantity   decimal.Decimal  `json:"totalQuantity"`
	AvgQualityScore *decimal.Decimal `json:"avgQualityScore,omitempty"`
	HarvestDate     *time.Time       `json:"harvestDate,omitempty"`
	Status          Status           `json:"status"`
	Blocked         bool             `json:"blocked"`
	RejectedBy      string           `json:"rejectedBy,omitempty"`
	RejectionReason string           `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`

	// Version is checked and incremented by every store write.
	Version int64 `json:"version"`
}

// Crop is a quantity-bearing lot that belongs to exactly one batch.
type Crop struct {
	ID                  string          `json:"id"`
	BatchID             string          `json:"batchId"`
	FarmerID            string          `json:"farmerId"`
	CropName            string          `json:"cropName"`
	Quantity            decimal.Decimal `json:"quantity"`
	Location            string          `json:"location,omitempty"`
	ExpectedHarvestDate string          `json:"expectedHarvestDate,omitempty"`
	QualityGrade        string          `json:"qualityGrade,omitempty"`
	Price               decimal.Decimal `json:"price"`
	Status              Status          `json:"status"`
	Blocked             bool            `json:"blocked"`
}

// Trace is an immutable record of one lifecycle event.
type Trace struct {
	BatchID   string    `json:"batchId"`
	FarmerID  string    `json:"farmerId"`
	Label     string    `json:"label"`
	ChangedBy string    `json:"changedBy"`
	Timestamp time.Time `json:"timestamp"`
}

// ListingStatusActive marks a listing that is visible in the marketplace.
const ListingStatusActive = "ACTIVE"

// Listing is a sellable marketplace offer derived from an approved crop.
type Listing struct {
	BatchID           string          `json:"batchId"`
	CropID            string          `json:"cropId"`
	FarmerID          string          `json:"farmerId"`
	DistributorID     string          `json:"distributorId"`
	Quantity          decimal.Decimal `json:"quantity"`
	Price             decimal.Decimal `json:"price"`
	FarmerProfit      decimal.Decimal `json:"farmerProfit"`
	DistributorProfit decimal.Decimal `json:"distributorProfit"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// ActiveCrops returns the crops that are not blocked.
func ActiveCrops(crops []Crop) []Crop {
	out := make([]Crop, 0, len(crops))
	for _, c := range crops {
		if !c.Blocked {
			out = append(out, c)
		}
	}
	return out
}

// SumQuantities adds up crop quantities, rounding the result.
func SumQuantities(crops []Crop) decimal.Decimal {
	total := decimal.Zero
	for _, c := range crops {
		total = total.Add(c.Quantity)
	}
	return Round2(total)
}
