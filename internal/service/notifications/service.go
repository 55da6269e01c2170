// Package notifications stores user notifications, relays role broadcasts to
// WhatsApp and serves the notification inbox.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/farmchain/internal/domain/models"
	"github.com/mamadbah2/farmchain/internal/repository"
)

// ErrNotFound is returned when a notification id does not resolve.
var ErrNotFound = errors.New("notification not found")

// Relay forwards a message to an external channel.
type Relay interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

// Sink receives notifications produced by the batch lifecycle.
type Sink interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Service implements Sink and the inbox queries.
type Service struct {
	store   repository.NotificationStore
	relay   Relay
	groupID string
	logger  *zap.Logger
}

// NewService wires the notification service. relay may be nil; broadcasts are
// then only stored.
func NewService(store repository.NotificationStore, relay Relay, groupID string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, relay: relay, groupID: groupID, logger: logger}
}

// Notify persists n. Notifications without a user id are dropped. Broadcasts
// are also relayed to the configured WhatsApp group; relay failures are
// logged and do not fail the call.
func (s *Service) Notify(ctx context.Context, n models.Notification) error {
	if strings.TrimSpace(n.UserID) == "" {
		s.logger.Debug("notification without recipient ignored", zap.String("type", string(n.Type)))
		return nil
	}

	if err := s.store.SaveNotification(ctx, &n); err != nil {
		return fmt.Errorf("save notification: %w", err)
	}

	if n.IsBroadcast() && s.relay != nil && s.groupID != "" {
		msgID, err := s.relay.SendText(ctx, s.groupID, fmt.Sprintf("*%s*\n%s", n.Title, n.Message))
		if err != nil {
			s.logger.Warn("broadcast relay failed", zap.String("notification_id", n.ID), zap.Error(err))
		} else {
			s.logger.Info("broadcast relayed", zap.String("notification_id", n.ID), zap.String("message_id", msgID))
		}
	}
	return nil
}

// ListForUser returns the user's notifications plus the broadcasts for role,
// newest first.
func (s *Service) ListForUser(ctx context.Context, userID, role string) ([]models.Notification, error) {
	return s.store.FindNotificationsForUser(ctx, userID, normalizeRole(role), false)
}

// UnreadCount counts the unread entries ListForUser would return.
func (s *Service) UnreadCount(ctx context.Context, userID, role string) (int, error) {
	unread, err := s.store.FindNotificationsForUser(ctx, userID, normalizeRole(role), true)
	if err != nil {
		return 0, err
	}
	return len(unread), nil
}

// MarkAsRead flags one notification as read.
func (s *Service) MarkAsRead(ctx context.Context, notificationID string) error {
	err := s.store.MarkNotificationRead(ctx, notificationID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, notificationID)
	}
	return err
}

// MarkAllAsRead flags every unread notification visible to the user and
// returns how many were changed.
func (s *Service) MarkAllAsRead(ctx context.Context, userID, role string) (int, error) {
	unread, err := s.store.FindNotificationsForUser(ctx, userID, normalizeRole(role), true)
	if err != nil {
		return 0, err
	}
	if len(unread) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(unread))
	for _, n := range unread {
		ids = append(ids, n.ID)
	}
	if err := s.store.MarkNotificationsRead(ctx, ids); err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return len(ids), nil
}

func normalizeRole(role string) string {
	return strings.ToUpper(strings.TrimSpace(role))
}
