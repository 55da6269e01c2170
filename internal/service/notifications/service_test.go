package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mamadbah2/farmchain/internal/domain/models"
	"github.com/mamadbah2/farmchain/internal/repository/memory"
)

type recordingRelay struct {
	to   []string
	body []string
	err  error
}

func (r *recordingRelay) SendText(_ context.Context, to, body string) (string, error) {
	r.to = append(r.to, to)
	r.body = append(r.body, body)
	return "wamid", r.err
}

func at(minute int) time.Time {
	return time.Date(2025, 6, 14, 10, minute, 0, 0, time.UTC)
}

func TestNotifyIgnoresEmptyRecipient(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, nil, "", nil)
	ctx := context.Background()

	if err := svc.Notify(ctx, models.Notification{UserID: " ", Title: "x"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	list, _ := store.FindNotificationsForUser(ctx, " ", "", false)
	if len(list) != 0 {
		t.Fatalf("nothing should be stored, got %+v", list)
	}
}

func TestNotifyRelaysBroadcasts(t *testing.T) {
	relay := &recordingRelay{}
	svc := NewService(memory.NewStore(), relay, "group-1", nil)
	ctx := context.Background()

	if err := svc.Notify(ctx, models.Notification{UserID: "farmer-1", UserRole: models.RoleFarmer, Title: "Batch Approved"}); err != nil {
		t.Fatalf("notify direct: %v", err)
	}
	if len(relay.to) != 0 {
		t.Fatalf("direct notifications must not be relayed")
	}

	relay.err = errors.New("whatsapp down")
	err := svc.Notify(ctx, models.Notification{
		UserID:   models.BroadcastRecipient,
		UserRole: models.RoleDistributor,
		Title:    "New Batch Ready for Approval",
		Message:  "Batch B is harvested",
	})
	if err != nil {
		t.Fatalf("relay failures must not fail Notify: %v", err)
	}
	if len(relay.to) != 1 || relay.to[0] != "group-1" || relay.body[0] != "*New Batch Ready for Approval*\nBatch B is harvested" {
		t.Fatalf("unexpected relay: to=%v body=%v", relay.to, relay.body)
	}
}

func TestInbox(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, nil, "", nil)
	ctx := context.Background()

	seed := []models.Notification{
		{UserID: "dist-1", UserRole: models.RoleDistributor, Title: "own", CreatedAt: at(1)},
		{UserID: models.BroadcastRecipient, UserRole: models.RoleDistributor, Title: "broadcast", CreatedAt: at(2)},
		{UserID: models.BroadcastRecipient, UserRole: models.RoleFarmer, Title: "farmers only", CreatedAt: at(3)},
		{UserID: "dist-2", UserRole: models.RoleDistributor, Title: "someone else", CreatedAt: at(4)},
	}
	for _, n := range seed {
		if err := svc.Notify(ctx, n); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	list, err := svc.ListForUser(ctx, "dist-1", "distributor")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Title != "broadcast" || list[1].Title != "own" {
		t.Fatalf("want [broadcast own], got %+v", list)
	}

	count, _ := svc.UnreadCount(ctx, "dist-1", models.RoleDistributor)
	if count != 2 {
		t.Fatalf("unread: want 2, got %d", count)
	}

	if err := svc.MarkAsRead(ctx, list[1].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	count, _ = svc.UnreadCount(ctx, "dist-1", models.RoleDistributor)
	if count != 1 {
		t.Fatalf("unread after mark: want 1, got %d", count)
	}

	changed, err := svc.MarkAllAsRead(ctx, "dist-1", models.RoleDistributor)
	if err != nil || changed != 1 {
		t.Fatalf("mark all: changed=%d err=%v", changed, err)
	}
	count, _ = svc.UnreadCount(ctx, "dist-1", models.RoleDistributor)
	if count != 0 {
		t.Fatalf("unread after mark all: want 0, got %d", count)
	}

	other, _ := svc.UnreadCount(ctx, "dist-2", models.RoleDistributor)
	if other != 1 {
		t.Fatalf("dist-2 keeps its own unread entry, got %d", other)
	}
}

func TestMarkAsReadNotFound(t *testing.T) {
	svc := NewService(memory.NewStore(), nil, "", nil)
	if err := svc.MarkAsRead(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
