package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmchain/internal/domain/models"
	"github.com/mamadbah2/farmchain/internal/service/batches"
)

const dateLayout = "2006-01-02"

// ListingReader returns the marketplace listings of a batch.
type ListingReader interface {
	ListingsForBatch(ctx context.Context, batchID string) ([]models.Listing, error)
}

// BatchHandler exposes the batch lifecycle over HTTP.
type BatchHandler struct {
	svc      *batches.Service
	listings ListingReader
	logger   *zap.Logger
}

// NewBatchHandler constructs the HTTP handler adapter.
func NewBatchHandler(svc *batches.Service, listings ListingReader, logger *zap.Logger) *BatchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchHandler{svc: svc, listings: listings, logger: logger}
}

type createBatchRequest struct {
	BatchID       string           `json:"batchId"`
	FarmerID      string           `json:"farmerId" binding:"required"`
	CropType      string           `json:"cropType" binding:"required"`
	Status        string           `json:"status"`
	HarvestDate   string           `json:"harvestDate"`
	TotalQuantity *decimal.Decimal `json:"totalQuantity"`
}

type addCropRequest struct {
	CropName            string          `json:"cropName" binding:"required"`
	Quantity            decimal.Decimal `json:"quantity"`
	Location            string          `json:"location"`
	ExpectedHarvestDate string          `json:"expectedHarvestDate"`
	QualityGrade        string          `json:"qualityGrade"`
	Price               decimal.Decimal `json:"price"`
	Actor               string          `json:"actor"`
}

type decisionRequest struct {
	DistributorID string `json:"distributorId" binding:"required"`
	Reason        string `json:"reason"`
}

type actorRequest struct {
	Actor string `json:"actor"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Actor  string `json:"actor"`
}

type qualityRequest struct {
	Grade      string           `json:"grade" binding:"required"`
	Confidence *decimal.Decimal `json:"confidence"`
	Actor      string           `json:"actor"`
}

type splitRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
	Actor    string          `json:"actor"`
}

type mergeRequest struct {
	SourceBatchIDs []string `json:"sourceBatchIds" binding:"required"`
	Actor          string   `json:"actor"`
}

// Create handles POST /batches.
func (h *BatchHandler) Create(c *gin.Context) {
	var req createBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	in := batches.CreateBatchInput{
		BatchID:       req.BatchID,
		FarmerID:      req.FarmerID,
		CropType:      req.CropType,
		Status:        models.Status(req.Status),
		TotalQuantity: req.TotalQuantity,
	}
	if req.HarvestDate != "" {
		d, err := time.Parse(dateLayout, req.HarvestDate)
		if err != nil {
			badRequest(c, h.logger, err)
			return
		}
		in.HarvestDate = &d
	}

	batch, err := h.svc.CreateBatch(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, batch)
}

// Get handles GET /batches/:batchId.
func (h *BatchHandler) Get(c *gin.Context) {
	batch, err := h.svc.GetBatch(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// ListByFarmer handles GET /farmers/:farmerId/batches.
func (h *BatchHandler) ListByFarmer(c *gin.Context) {
	out, err := h.svc.GetBatchesByFarmer(c.Request.Context(), c.Param("farmerId"))
	respond(c, h.logger, out, err)
}

// Pending handles GET /pending-batches.
func (h *BatchHandler) Pending(c *gin.Context) {
	out, err := h.svc.GetPendingBatchesForDistributor(c.Request.Context())
	respond(c, h.logger, out, err)
}

// Approved handles GET /distributors/:distributorId/batches.
func (h *BatchHandler) Approved(c *gin.Context) {
	out, err := h.svc.GetApprovedBatches(c.Request.Context(), c.Param("distributorId"))
	respond(c, h.logger, out, err)
}

// AddCrop handles POST /batches/:batchId/crops.
func (h *BatchHandler) AddCrop(c *gin.Context) {
	var req addCropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	crop, err := h.svc.AddCrop(c.Request.Context(), c.Param("batchId"), batches.CropInput{
		CropName:            req.CropName,
		Quantity:            req.Quantity,
		Location:            req.Location,
		ExpectedHarvestDate: req.ExpectedHarvestDate,
		QualityGrade:        req.QualityGrade,
		Price:               req.Price,
	}, req.Actor)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, crop)
}

// Crops handles GET /batches/:batchId/crops.
func (h *BatchHandler) Crops(c *gin.Context) {
	out, err := h.svc.GetCropsForBatch(c.Request.Context(), c.Param("batchId"))
	respond(c, h.logger, out, err)
}

// Trace handles GET /batches/:batchId/trace.
func (h *BatchHandler) Trace(c *gin.Context) {
	out, err := h.svc.GetBatchTrace(c.Request.Context(), c.Param("batchId"))
	respond(c, h.logger, out, err)
}

// Listings handles GET /batches/:batchId/listings.
func (h *BatchHandler) Listings(c *gin.Context) {
	out, err := h.listings.ListingsForBatch(c.Request.Context(), c.Param("batchId"))
	respond(c, h.logger, out, err)
}

// Approve handles POST /batches/:batchId/approve.
func (h *BatchHandler) Approve(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	batch, err := h.svc.ApproveBatch(c.Request.Context(), c.Param("batchId"), req.DistributorID)
	respond(c, h.logger, batch, err)
}

// Reject handles POST /batches/:batchId/reject.
func (h *BatchHandler) Reject(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	batch, err := h.svc.RejectBatch(c.Request.Context(), c.Param("batchId"), req.DistributorID, req.Reason)
	respond(c, h.logger, batch, err)
}

// Submit handles POST /batches/:batchId/submit.
func (h *BatchHandler) Submit(c *gin.Context) {
	var req actorRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	batch, err := h.svc.SubmitForApproval(c.Request.Context(), c.Param("batchId"), req.Actor)
	respond(c, h.logger, batch, err)
}

// UpdateStatus handles PUT /batches/:batchId/status.
func (h *BatchHandler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	batch, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("batchId"), models.Status(req.Status), req.Actor)
	respond(c, h.logger, batch, err)
}

// UpdateQuality handles PUT /batches/:batchId/quality.
func (h *BatchHandler) UpdateQuality(c *gin.Context) {
	var req qualityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	batch, err := h.svc.UpdateQualityGrade(c.Request.Context(), c.Param("batchId"), req.Grade, req.Confidence, req.Actor)
	respond(c, h.logger, batch, err)
}

// Split handles POST /batches/:batchId/split.
func (h *BatchHandler) Split(c *gin.Context) {
	var req splitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	child, err := h.svc.SplitBatch(c.Request.Context(), c.Param("batchId"), req.Quantity, req.Actor)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, child)
}

// Merge handles POST /batches/:batchId/merge.
func (h *BatchHandler) Merge(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	out, err := h.svc.MergeBatches(c.Request.Context(), c.Param("batchId"), req.SourceBatchIDs, req.Actor)
	respond(c, h.logger, out, err)
}

func respond(c *gin.Context, logger *zap.Logger, body any, err error) {
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, body)
}

// bindOptionalJSON binds the body when one is present.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(dst)
}
