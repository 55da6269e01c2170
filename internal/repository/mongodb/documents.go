package mongodb

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmchain/internal/domain/models"
)

type batchDocument struct {
	ID              string                `bson:"_id"`
	FarmerID        string                `bson:"farmer_id"`
	DistributorID   string                `bson:"distributor_id,omitempty"`
	CropType        string                `bson:"crop_type"`
	TotalQuantity   primitive.Decimal128  `bson:"total_quantity"`
	AvgQualityScore *primitive.Decimal128 `bson:"avg_quality_score,omitempty"`
	HarvestDate     *time.Time            `bson:"harvest_date,omitempty"`
	Status          string                `bson:"status"`
	Blocked         bool                  `bson:"blocked"`
	RejectedBy      string                `bson:"rejected_by,omitempty"`
	RejectionReason string                `bson:"rejection_reason,omitempty"`
	CreatedAt       time.Time             `bson:"created_at"`
	UpdatedAt       time.Time             `bson:"updated_at"`
	Version         int64                 `bson:"version"`
}

// cropDocument keeps quantity in the legacy string format shared with the
// other services reading this collection.
type cropDocument struct {
	ID                  string               `bson:"_id"`
	BatchID             string               `bson:"batch_id"`
	FarmerID            string               `bson:"farmer_id"`
	CropName            string               `bson:"crop_name"`
	Quantity            string               `bson:"quantity"`
	Location            string               `bson:"location,omitempty"`
	ExpectedHarvestDate string               `bson:"expected_harvest_date,omitempty"`
	QualityGrade        string               `bson:"quality_grade,omitempty"`
	Price               primitive.Decimal128 `bson:"price"`
	Status              string               `bson:"status"`
	Blocked             bool                 `bson:"blocked"`
}

type traceDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	BatchID   string             `bson:"batch_id"`
	FarmerID  string             `bson:"farmer_id"`
	Label     string             `bson:"label"`
	ChangedBy string             `bson:"changed_by"`
	Timestamp time.Time          `bson:"timestamp"`
}

type listingDocument struct {
	BatchID           string               `bson:"batch_id"`
	CropID            string               `bson:"crop_id"`
	FarmerID          string               `bson:"farmer_id"`
	DistributorID     string               `bson:"distributor_id"`
	Quantity          primitive.Decimal128 `bson:"quantity"`
	Price             primitive.Decimal128 `bson:"price"`
	FarmerProfit      primitive.Decimal128 `bson:"farmer_profit"`
	DistributorProfit primitive.Decimal128 `bson:"distributor_profit"`
	Status            string               `bson:"status"`
	CreatedAt         time.Time            `bson:"created_at"`
	UpdatedAt         time.Time            `bson:"updated_at"`
}

type notificationDocument struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	UserRole  string    `bson:"user_role"`
	Title     string    `bson:"title"`
	Message   string    `bson:"message"`
	Type      string    `bson:"notification_type"`
	EntityID  string    `bson:"entity_id,omitempty"`
	Read      bool      `bson:"read"`
	CreatedAt time.Time `bson:"created_at"`
}

type outboxDocument struct {
	ID           string                `bson:"_id"`
	Kind         string                `bson:"kind"`
	Listing      *listingDocument      `bson:"listing,omitempty"`
	Notification *notificationDocument `bson:"notification,omitempty"`
	CreatedAt    time.Time             `bson:"created_at"`
	Attempts     int                   `bson:"attempts"`
	LastError    string                `bson:"last_error,omitempty"`
	DeliveredAt  *time.Time            `bson:"delivered_at"`
}

func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.NewDecimal128(0, 0)
	}
	return v
}

func fromDecimal128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func toBatchDocument(b models.Batch) batchDocument {
	doc := batchDocument{
		ID:              b.BatchID,
		FarmerID:        b.FarmerID,
		DistributorID:   b.DistributorID,
		CropType:        b.CropType,
		TotalQuantity:   toDecimal128(b.TotalQuantity),
		HarvestDate:     b.HarvestDate,
		Status:          string(b.Status),
		Blocked:         b.Blocked,
		RejectedBy:      b.RejectedBy,
		RejectionReason: b.RejectionReason,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
		Version:         b.Version,
	}
	if b.AvgQualityScore != nil {
		score := toDecimal128(*b.AvgQualityScore)
		doc.AvgQualityScore = &score
	}
	return doc
}

func (d batchDocument) toModel() models.Batch {
	b := models.Batch{
		BatchID:         d.ID,
		FarmerID:        d.FarmerID,
		DistributorID:   d.DistributorID,
		CropType:        d.CropType,
		TotalQuantity:   fromDecimal128(d.TotalQuantity),
		HarvestDate:     d.HarvestDate,
		Status:          models.Status(d.Status),
		Blocked:         d.Blocked,
		RejectedBy:      d.RejectedBy,
		RejectionReason: d.RejectionReason,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		Version:         d.Version,
	}
	if d.AvgQualityScore != nil {
		score := fromDecimal128(*d.AvgQualityScore)
		b.AvgQualityScore = &score
	}
	return b
}

func toCropDocument(c models.Crop) cropDocument {
	return cropDocument{
		ID:                  c.ID,
		BatchID:             c.BatchID,
		FarmerID:            c.FarmerID,
		CropName:            c.CropName,
		Quantity:            models.FormatQuantity(c.Quantity),
		Location:            c.Location,
		ExpectedHarvestDate: c.ExpectedHarvestDate,
		QualityGrade:        c.QualityGrade,
		Price:               toDecimal128(c.Price),
		Status:              string(c.Status),
		Blocked:             c.Blocked,
	}
}

// toModel parses the string quantity leniently: values that do not parse
// become zero and are logged.
func (d cropDocument) toModel(logger *zap.Logger) models.Crop {
	qty, ok := models.ParseQuantity(d.Quantity)
	if !ok && d.Quantity != "" {
		logger.Warn("unparsable crop quantity, using 0",
			zap.String("crop_id", d.ID),
			zap.String("batch_id", d.BatchID),
			zap.String("quantity", d.Quantity))
	}
	return models.Crop{
		ID:                  d.ID,
		BatchID:             d.BatchID,
		FarmerID:            d.FarmerID,
		CropName:            d.CropName,
		Quantity:            qty,
		Location:            d.Location,
		ExpectedHarvestDate: d.ExpectedHarvestDate,
		QualityGrade:        d.QualityGrade,
		Price:               fromDecimal128(d.Price),
		Status:              models.Status(d.Status),
		Blocked:             d.Blocked,
	}
}

func toTraceDocument(t models.Trace) traceDocument {
	return traceDocument{
		BatchID:   t.BatchID,
		FarmerID:  t.FarmerID,
		Label:     t.Label,
		ChangedBy: t.ChangedBy,
		Timestamp: t.Timestamp,
	}
}

func (d traceDocument) toModel() models.Trace {
	return models.Trace{
		BatchID:   d.BatchID,
		FarmerID:  d.FarmerID,
		Label:     d.Label,
		ChangedBy: d.ChangedBy,
		Timestamp: d.Timestamp,
	}
}

func toListingDocument(l models.Listing) listingDocument {
	return listingDocument{
		BatchID:           l.BatchID,
		CropID:            l.CropID,
		FarmerID:          l.FarmerID,
		DistributorID:     l.DistributorID,
		Quantity:          toDecimal128(l.Quantity),
		Price:             toDecimal128(l.Price),
		FarmerProfit:      toDecimal128(l.FarmerProfit),
		DistributorProfit: toDecimal128(l.DistributorProfit),
		Status:            l.Status,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

func (d listingDocument) toModel() models.Listing {
	return models.Listing{
		BatchID:           d.BatchID,
		CropID:            d.CropID,
		FarmerID:          d.FarmerID,
		DistributorID:     d.DistributorID,
		Quantity:          fromDecimal128(d.Quantity),
		Price:             fromDecimal128(d.Price),
		FarmerProfit:      fromDecimal128(d.FarmerProfit),
		DistributorProfit: fromDecimal128(d.DistributorProfit),
		Status:            d.Status,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func toNotificationDocument(n models.Notification) notificationDocument {
	return notificationDocument{
		ID:        n.ID,
		UserID:    n.UserID,
		UserRole:  n.UserRole,
		Title:     n.Title,
		Message:   n.Message,
		Type:      string(n.Type),
		EntityID:  n.EntityID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

func (d notificationDocument) toModel() models.Notification {
	return models.Notification{
		ID:        d.ID,
		UserID:    d.UserID,
		UserRole:  d.UserRole,
		Title:     d.Title,
		Message:   d.Message,
		Type:      models.NotificationType(d.Type),
		EntityID:  d.EntityID,
		Read:      d.Read,
		CreatedAt: d.CreatedAt,
	}
}

func toOutboxDocument(e models.OutboxEvent) outboxDocument {
	doc := outboxDocument{
		ID:          e.ID,
		Kind:        string(e.Kind),
		CreatedAt:   e.CreatedAt,
		Attempts:    e.Attempts,
		LastError:   e.LastError,
		DeliveredAt: e.DeliveredAt,
	}
	if e.Listing != nil {
		l := toListingDocument(*e.Listing)
		doc.Listing = &l
	}
	if e.Notification != nil {
		n := toNotificationDocument(*e.Notification)
		doc.Notification = &n
	}
	return doc
}

func (d outboxDocument) toModel() models.OutboxEvent {
	e := models.OutboxEvent{
		ID:          d.ID,
		Kind:        models.EventKind(d.Kind),
		CreatedAt:   d.CreatedAt,
		Attempts:    d.Attempts,
		LastError:   d.LastError,
		DeliveredAt: d.DeliveredAt,
	}
	if d.Listing != nil {
		l := d.Listing.toModel()
		e.Listing = &l
	}
	if d.Notification != nil {
		n := d.Notification.toModel()
		e.Notification = &n
	}
	return e
}
