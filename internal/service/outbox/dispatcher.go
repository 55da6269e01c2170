// Package outbox delivers the listing and notification events staged by the
// batch lifecycle once their unit of work has committed.
package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/farmchain/internal/domain/models"
	"github.com/mamadbah2/farmchain/internal/repository"
	"github.com/mamadbah2/farmchain/internal/service/marketplace"
	"github.com/mamadbah2/farmchain/internal/service/notifications"
)

// Observer receives delivery outcomes. *metrics.Metrics satisfies it.
type Observer interface {
	EventDelivered(kind string)
	EventFailed(kind string)
	PendingEvents(n int)
}

type nopObserver struct{}

func (nopObserver) EventDelivered(string) {}
func (nopObserver) EventFailed(string)    {}
func (nopObserver) PendingEvents(int)     {}

// Options tunes a Dispatcher.
type Options struct {
	BatchSize   int
	MaxAttempts int
}

// Dispatcher drains pending outbox events. Delivery is best-effort: a failed
// event stays pending until it has been attempted MaxAttempts times.
type Dispatcher struct {
	reader    repository.OutboxReader
	publisher marketplace.Publisher
	sink      notifications.Sink
	observer  Observer
	opts      Options
	logger    *zap.Logger
	now       func() time.Time

	wake chan struct{}
	mu   sync.Mutex
}

// NewDispatcher wires a dispatcher. observer may be nil.
func NewDispatcher(reader repository.OutboxReader, publisher marketplace.Publisher, sink notifications.Sink, observer Observer, opts Options, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return &Dispatcher{
		reader:    reader,
		publisher: publisher,
		sink:      sink,
		observer:  observer,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		wake:      make(chan struct{}, 1),
	}
}

// Wake asks Run to drain soon. It never blocks.
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run drains on every wake-up until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("outbox dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopped")
			return
		case <-d.wake:
			if _, err := d.DrainOnce(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error("outbox drain failed", zap.Error(err))
			}
		}
	}
}

// DrainOnce delivers up to BatchSize pending events and reports how many were
// delivered. Only a failure to read the outbox is returned as an error.
func (d *Dispatcher) DrainOnce(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	events, err := d.reader.PendingEvents(ctx, d.opts.BatchSize, d.opts.MaxAttempts)
	if err != nil {
		return 0, fmt.Errorf("load pending events: %w", err)
	}
	d.observer.PendingEvents(len(events))

	delivered := 0
	for _, event := range events {
		if ctx.Err() != nil {
			return delivered, nil
		}
		if d.deliver(ctx, event) {
			delivered++
		}
	}
	return delivered, nil
}

func (d *Dispatcher) deliver(ctx context.Context, event models.OutboxEvent) bool {
	kind := string(event.Kind)
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("kind", kind),
		zap.Int("attempt", event.Attempts+1),
	}

	if err := d.dispatch(ctx, event); err != nil {
		d.observer.EventFailed(kind)
		d.logger.Warn("outbox delivery failed", append(fields, zap.Error(err))...)
		if markErr := d.reader.MarkEventFailed(ctx, event.ID, err.Error()); markErr != nil {
			d.logger.Error("record outbox failure", append(fields, zap.Error(markErr))...)
		}
		if event.Attempts+1 >= d.opts.MaxAttempts {
			d.logger.Error("outbox event abandoned", fields...)
		}
		return false
	}

	if err := d.reader.MarkEventDelivered(ctx, event.ID, d.now().UTC()); err != nil {
		d.logger.Error("record outbox delivery", append(fields, zap.Error(err))...)
		return false
	}
	d.observer.EventDelivered(kind)
	d.logger.Debug("outbox event delivered", fields...)
	return true
}

func (d *Dispatcher) dispatch(ctx context.Context, event models.OutboxEvent) error {
	switch event.Kind {
	case models.EventListingPublish:
		if event.Listing == nil {
			return fmt.Errorf("listing event %s has no payload", event.ID)
		}
		return d.publisher.CreateOrActivate(ctx, *event.Listing)
	case models.EventNotification:
		if event.Notification == nil {
			return fmt.Errorf("notification event %s has no payload", event.ID)
		}
		n := *event.Notification
		if n.ID == "" {
			// Redelivery overwrites the same record.
			n.ID = event.ID
		}
		return d.sink.Notify(ctx, n)
	default:
		return fmt.Errorf("unknown event kind %q", event.Kind)
	}
}
