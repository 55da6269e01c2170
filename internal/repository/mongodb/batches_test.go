package mongodb

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmchain/internal/domain/models"
	"github.com/mamadbah2/farmchain/internal/repository"
)

func mockRepository(mt *mtest.T) *Repository {
	return &Repository{client: mt.Client, db: mt.DB, logger: zap.NewNop()}
}

func TestSaveBatchVersioning(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	batch := func(version int64) models.Batch {
		return models.Batch{BatchID: "B1", FarmerID: "f1", CropType: "Maize", TotalQuantity: decimal.NewFromInt(40), Version: version}
	}

	mt.Run("new batch is inserted at version 1", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		b := batch(0)
		if err := mockRepository(mt).SaveBatch(ctx, &b); err != nil {
			mt.Fatalf("save: %v", err)
		}
		evt := mt.GetStartedEvent()
		if evt == nil || evt.CommandName != "insert" {
			mt.Fatalf("want insert command, got %+v", evt)
		}
		if b.Version != 1 {
			mt.Fatalf("version: want=1 got=%d", b.Version)
		}
	})

	mt.Run("existing id on insert is a duplicate", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}))
		b := batch(0)
		if err := mockRepository(mt).SaveBatch(ctx, &b); !errors.Is(err, repository.ErrDuplicate) {
			mt.Fatalf("want ErrDuplicate, got %v", err)
		}
	})

	mt.Run("update replaces only the read version", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		b := batch(3)
		if err := mockRepository(mt).SaveBatch(ctx, &b); err != nil {
			mt.Fatalf("save: %v", err)
		}
		evt := mt.GetStartedEvent()
		if evt == nil || evt.CommandName != "update" {
			mt.Fatalf("want update command, got %+v", evt)
		}
		filterVersion, ok := evt.Command.Lookup("updates", "0", "q", "version").AsInt64OK()
		if !ok || filterVersion != 3 {
			mt.Fatalf("filter version: want=3 got=%d", filterVersion)
		}
		if b.Version != 4 {
			mt.Fatalf("version: want=4 got=%d", b.Version)
		}
	})

	mt.Run("stale version is a conflict", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + batchesCollection
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "_id", Value: "B1"}, {Key: "version", Value: int64(5)}}),
		)
		b := batch(3)
		if err := mockRepository(mt).SaveBatch(ctx, &b); !errors.Is(err, repository.ErrVersionConflict) {
			mt.Fatalf("want ErrVersionConflict, got %v", err)
		}
		if b.Version != 3 {
			mt.Fatalf("version must stay at 3 after a conflict, got %d", b.Version)
		}
	})

	mt.Run("update of a missing batch is not found", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + batchesCollection
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
		)
		b := batch(3)
		if err := mockRepository(mt).SaveBatch(ctx, &b); !errors.Is(err, repository.ErrNotFound) {
			mt.Fatalf("want ErrNotFound, got %v", err)
		}
	})
}
