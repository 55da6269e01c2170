package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/farmchain/internal/domain/models"
	"github.com/mamadbah2/farmchain/internal/repository"
)

func seedBatch(t *testing.T, s *Store, id string) models.Batch {
	t.Helper()
	b := models.Batch{BatchID: id, FarmerID: "farmer-1", CropType: "Tomato", Status: models.StatusPlanted}
	if err := s.SaveBatch(context.Background(), &b); err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	return b
}

func TestTransactionRollbackDiscardsEveryWrite(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedBatch(t, s, "B1")

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		b, err := tx.GetBatch(ctx, "B1")
		if err != nil {
			return err
		}
		b.Status = models.StatusHarvested
		if err := tx.SaveBatch(ctx, &b); err != nil {
			return err
		}
		if err := tx.SaveCrop(ctx, &models.Crop{BatchID: "B1", Quantity: decimal.NewFromInt(5)}); err != nil {
			return err
		}
		if err := tx.AppendTrace(ctx, models.Trace{BatchID: "B1", Label: "HARVESTED"}); err != nil {
			return err
		}
		if err := tx.EnqueueEvent(ctx, models.OutboxEvent{Kind: models.EventNotification}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}

	b, _ := s.GetBatch(ctx, "B1")
	if b.Status != models.StatusPlanted || b.Version != 1 {
		t.Fatalf("batch mutated after rollback: %+v", b)
	}
	crops, _ := s.FindCropsByBatch(ctx, "B1")
	traces, _ := s.FindTracesByBatch(ctx, "B1")
	events, _ := s.PendingEvents(ctx, 0, 0)
	if len(crops) != 0 || len(traces) != 0 || len(events) != 0 {
		t.Fatalf("rollback leaked writes: crops=%d traces=%d events=%d", len(crops), len(traces), len(events))
	}
}

func TestTransactionCommit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedBatch(t, s, "B1")

	err := s.RunInTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		b, err := tx.GetBatch(ctx, "B1")
		if err != nil {
			return err
		}
		b.Status = models.StatusHarvested
		return tx.SaveBatch(ctx, &b)
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	b, _ := s.GetBatch(ctx, "B1")
	if b.Status != models.StatusHarvested || b.Version != 2 {
		t.Fatalf("unexpected batch after commit: %+v", b)
	}
}

func TestSaveBatchVersionChecks(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	b := seedBatch(t, s, "B1")

	dup := models.Batch{BatchID: "B1"}
	if err := s.SaveBatch(ctx, &dup); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}

	stale := b
	fresh := b
	if err := s.SaveBatch(ctx, &fresh); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if err := s.SaveBatch(ctx, &stale); !errors.Is(err, repository.ErrVersionConflict) {
		t.Fatalf("want ErrVersionConflict, got %v", err)
	}

	ghost := models.Batch{BatchID: "nope", Version: 3}
	if err := s.SaveBatch(ctx, &ghost); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestTracesOrderedByTimestamp(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	_ = s.AppendTrace(ctx, models.Trace{BatchID: "B1", Label: "late", Timestamp: base.Add(time.Hour)})
	_ = s.AppendTrace(ctx, models.Trace{BatchID: "B1", Label: "first", Timestamp: base})
	_ = s.AppendTrace(ctx, models.Trace{BatchID: "B1", Label: "second", Timestamp: base})
	_ = s.AppendTrace(ctx, models.Trace{BatchID: "B2", Label: "other", Timestamp: base})

	traces, err := s.FindTracesByBatch(ctx, "B1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	got := []string{}
	for _, tr := range traces {
		got = append(got, tr.Label)
	}
	want := []string{"first", "second", "late"}
	if len(got) != len(want) {
		t.Fatalf("want=%v got=%v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want=%v got=%v", want, got)
		}
	}

	window, _ := s.FindTracesBetween(ctx, base, base.Add(time.Hour))
	if len(window) != 3 {
		t.Fatalf("window: want 3 got %d", len(window))
	}
}

func TestOutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.EnqueueEvent(ctx, models.OutboxEvent{ID: "e1", Kind: models.EventNotification})
	_ = s.EnqueueEvent(ctx, models.OutboxEvent{ID: "e2", Kind: models.EventListingPublish})

	if err := s.MarkEventFailed(ctx, "e1", "timeout"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := s.MarkEventDelivered(ctx, "e2", time.Now()); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}

	pending, _ := s.PendingEvents(ctx, 10, 3)
	if len(pending) != 1 || pending[0].ID != "e1" || pending[0].Attempts != 1 {
		t.Fatalf("unexpected pending: %+v", pending)
	}
	exhausted, _ := s.PendingEvents(ctx, 10, 1)
	if len(exhausted) != 0 {
		t.Fatalf("events at max attempts must not be pending: %+v", exhausted)
	}
	if err := s.MarkEventFailed(ctx, "missing", "x"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestNotificationsForUser(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	own := models.Notification{UserID: "d1", UserRole: models.RoleDistributor, Title: "own", CreatedAt: base}
	broadcast := models.Notification{UserID: models.BroadcastRecipient, UserRole: models.RoleDistributor, Title: "all", CreatedAt: base.Add(time.Minute)}
	farmers := models.Notification{UserID: models.BroadcastRecipient, UserRole: models.RoleFarmer, Title: "farmers", CreatedAt: base}
	for _, n := range []*models.Notification{&own, &broadcast, &farmers} {
		if err := s.SaveNotification(ctx, n); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, _ := s.FindNotificationsForUser(ctx, "d1", models.RoleDistributor, false)
	if len(got) != 2 || got[0].Title != "all" || got[1].Title != "own" {
		t.Fatalf("unexpected inbox: %+v", got)
	}

	if err := s.MarkNotificationRead(ctx, own.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	unread, _ := s.FindNotificationsForUser(ctx, "d1", models.RoleDistributor, true)
	if len(unread) != 1 || unread[0].Title != "all" {
		t.Fatalf("unexpected unread: %+v", unread)
	}
	if err := s.MarkNotificationRead(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUpsertListingKeepsOnePerCrop(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	_, _ = s.UpsertListing(ctx, models.Listing{BatchID: "B1", CropID: "c1", Price: decimal.NewFromInt(12), CreatedAt: created})
	_, _ = s.UpsertListing(ctx, models.Listing{BatchID: "B1", CropID: "c1", Price: decimal.NewFromInt(13), CreatedAt: created.Add(time.Hour)})

	listings, _ := s.FindListingsByBatch(ctx, "B1")
	if len(listings) != 1 {
		t.Fatalf("want one listing, got %d", len(listings))
	}
	if !listings[0].Price.Equal(decimal.NewFromInt(13)) || !listings[0].CreatedAt.Equal(created) {
		t.Fatalf("unexpected listing: %+v", listings[0])
	}
}
