// Package memory provides an in-process implementation of repository.Store.
// Transactions run against a cloned state that replaces the committed state
// only when the transaction function succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mamadbah2/farmchain/internal/domain/models"
	"github.com/mamadbah2/farmchain/internal/repository"
)

type listingKey struct {
	batchID string
	cropID  string
}

type state struct {
	batches       map[string]models.Batch
	crops         map[string]models.Crop
	cropOrder     []string
	traces        []models.Trace
	outbox        []models.OutboxEvent
	listings      map[listingKey]models.Listing
	listingOrder  []listingKey
	notifications []models.Notification
}

func newState() state {
	return state{
		batches:  make(map[string]models.Batch),
		crops:    make(map[string]models.Crop),
		listings: make(map[listingKey]models.Listing),
	}
}

func (s state) clone() state {
	out := state{
		batches:       make(map[string]models.Batch, len(s.batches)),
		crops:         make(map[string]models.Crop, len(s.crops)),
		cropOrder:     append([]string(nil), s.cropOrder...),
		traces:        append([]models.Trace(nil), s.traces...),
		outbox:        make([]models.OutboxEvent, len(s.outbox)),
		listings:      make(map[listingKey]models.Listing, len(s.listings)),
		listingOrder:  append([]listingKey(nil), s.listingOrder...),
		notifications: append([]models.Notification(nil), s.notifications...),
	}
	for id, b := range s.batches {
		out.batches[id] = cloneBatch(b)
	}
	for id, c := range s.crops {
		out.crops[id] = c
	}
	for i, e := range s.outbox {
		out.outbox[i] = cloneEvent(e)
	}
	for k, l := range s.listings {
		out.listings[k] = l
	}
	return out
}

func cloneBatch(b models.Batch) models.Batch {
	if b.AvgQualityScore != nil {
		v := *b.AvgQualityScore
		b.AvgQualityScore = &v
	}
	if b.HarvestDate != nil {
		v := *b.HarvestDate
		b.HarvestDate = &v
	}
	return b
}

func cloneEvent(e models.OutboxEvent) models.OutboxEvent {
	if e.Listing != nil {
		v := *e.Listing
		e.Listing = &v
	}
	if e.Notification != nil {
		v := *e.Notification
		e.Notification = &v
	}
	if e.DeliveredAt != nil {
		v := *e.DeliveredAt
		e.DeliveredAt = &v
	}
	return e
}

// Store is a mutex-guarded in-memory repository.Store.
type Store struct {
	mu    sync.RWMutex
	state state
}

var _ repository.Store = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{state: newState()}
}

// RunInTransaction serialises transactions and commits by swapping state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{state: s.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// Close is a no-op.
func (s *Store) Close(context.Context) error { return nil }

func (s *Store) read(fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&s.state)
}

func (s *Store) write(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.state)
}

// GetBatch implements repository.BatchStore.
func (s *Store) GetBatch(_ context.Context, batchID string) (b models.Batch, err error) {
	err = s.read(func(st *state) error {
		b, err = st.getBatch(batchID)
		return err
	})
	return b, err
}

// SaveBatch implements repository.BatchStore.
func (s *Store) SaveBatch(_ context.Context, batch *models.Batch) error {
	return s.write(func(st *state) error { return st.saveBatch(batch) })
}

// FindBatchesByFarmer implements repository.BatchStore.
func (s *Store) FindBatchesByFarmer(_ context.Context, farmerID string) (out []models.Batch, err error) {
	err = s.read(func(st *state) error {
		out = st.filterBatches(func(b models.Batch) bool { return b.FarmerID == farmerID })
		return nil
	})
	return out, err
}

// FindBatchesByStatusIn implements repository.BatchStore.
func (s *Store) FindBatchesByStatusIn(_ context.Context, statuses []models.Status) (out []models.Batch, err error) {
	err = s.read(func(st *state) error {
		out = st.filterBatches(func(b models.Batch) bool { return containsStatus(statuses, b.Status) })
		return nil
	})
	return out, err
}

// FindBatchesByDistributorAndStatus implements repository.BatchStore.
func (s *Store) FindBatchesByDistributorAndStatus(_ context.Context, distributorID string, status models.Status) (out []models.Batch, err error) {
	err = s.read(func(st *state) error {
		out = st.filterBatches(func(b models.Batch) bool {
			return b.DistributorID == distributorID && b.Status == status
		})
		return nil
	})
	return out, err
}

// FindActiveBatchesByFarmer implements repository.BatchStore.
func (s *Store) FindActiveBatchesByFarmer(_ context.Context, farmerID string) (out []models.Batch, err error) {
	err = s.read(func(st *state) error {
		out = st.filterBatches(func(b models.Batch) bool { return b.FarmerID == farmerID && !b.Blocked })
		return nil
	})
	return out, err
}

// FindCropsByBatch implements repository.CropStore.
func (s *Store) FindCropsByBatch(_ context.Context, batchID string) (out []models.Crop, err error) {
	err = s.read(func(st *state) error {
		out = st.cropsByBatch(batchID)
		return nil
	})
	return out, err
}

// SaveCrop implements repository.CropStore.
func (s *Store) SaveCrop(_ context.Context, crop *models.Crop) error {
	return s.write(func(st *state) error { st.saveCrop(crop); return nil })
}

// SaveCrops implements repository.CropStore.
func (s *Store) SaveCrops(_ context.Context, crops []models.Crop) error {
	return s.write(func(st *state) error { st.saveCrops(crops); return nil })
}

// AppendTrace implements repository.TraceLog.
func (s *Store) AppendTrace(_ context.Context, trace models.Trace) error {
	return s.write(func(st *state) error { st.traces = append(st.traces, trace); return nil })
}

// FindTracesByBatch implements repository.TraceLog.
func (s *Store) FindTracesByBatch(_ context.Context, batchID string) (out []models.Trace, err error) {
	err = s.read(func(st *state) error {
		out = st.filterTraces(func(t models.Trace) bool { return t.BatchID == batchID })
		return nil
	})
	return out, err
}

// FindTracesBetween implements repository.TraceLog.
func (s *Store) FindTracesBetween(_ context.Context, from, to time.Time) (out []models.Trace, err error) {
	err = s.read(func(st *state) error {
		out = st.filterTraces(func(t models.Trace) bool {
			return !t.Timestamp.Before(from) && t.Timestamp.Before(to)
		})
		return nil
	})
	return out, err
}

// EnqueueEvent implements repository.Outbox.
func (s *Store) EnqueueEvent(_ context.Context, event models.OutboxEvent) error {
	return s.write(func(st *state) error { st.enqueue(event); return nil })
}

// PendingEvents implements repository.OutboxReader.
func (s *Store) PendingEvents(_ context.Context, limit, maxAttempts int) (out []models.OutboxEvent, err error) {
	err = s.read(func(st *state) error {
		for _, e := range st.outbox {
			if e.DeliveredAt != nil || (maxAttempts > 0 && e.Attempts >= maxAttempts) {
				continue
			}
			out = append(out, cloneEvent(e))
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// MarkEventDelivered implements repository.OutboxReader.
func (s *Store) MarkEventDelivered(_ context.Context, eventID string, at time.Time) error {
	return s.write(func(st *state) error {
		e, err := st.event(eventID)
		if err != nil {
			return err
		}
		e.Attempts++
		e.LastError = ""
		e.DeliveredAt = &at
		return nil
	})
}

// MarkEventFailed implements repository.OutboxReader.
func (s *Store) MarkEventFailed(_ context.Context, eventID string, reason string) error {
	return s.write(func(st *state) error {
		e, err := st.event(eventID)
		if err != nil {
			return err
		}
		e.Attempts++
		e.LastError = reason
		return nil
	})
}

// UpsertListing implements repository.ListingStore.
func (s *Store) UpsertListing(_ context.Context, listing models.Listing) (out models.Listing, err error) {
	err = s.write(func(st *state) error {
		key := listingKey{batchID: listing.BatchID, cropID: listing.CropID}
		if existing, ok := st.listings[key]; ok {
			listing.CreatedAt = existing.CreatedAt
		} else {
			st.listingOrder = append(st.listingOrder, key)
		}
		st.listings[key] = listing
		out = listing
		return nil
	})
	return out, err
}

// FindListingsByBatch implements repository.ListingStore.
func (s *Store) FindListingsByBatch(_ context.Context, batchID string) (out []models.Listing, err error) {
	err = s.read(func(st *state) error {
		for _, key := range st.listingOrder {
			if key.batchID == batchID {
				out = append(out, st.listings[key])
			}
		}
		return nil
	})
	return out, err
}

// SaveNotification implements repository.NotificationStore.
func (s *Store) SaveNotification(_ context.Context, n *models.Notification) error {
	return s.write(func(st *state) error {
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		for i := range st.notifications {
			if st.notifications[i].ID == n.ID {
				st.notifications[i] = *n
				return nil
			}
		}
		st.notifications = append(st.notifications, *n)
		return nil
	})
}

// FindNotificationsForUser implements repository.NotificationStore.
func (s *Store) FindNotificationsForUser(_ context.Context, userID, role string, unreadOnly bool) (out []models.Notification, err error) {
	err = s.read(func(st *state) error {
		for i := len(st.notifications) - 1; i >= 0; i-- {
			n := st.notifications[i]
			mine := n.UserID == userID
			broadcast := n.IsBroadcast() && n.UserRole == role
			if !mine && !broadcast {
				continue
			}
			if unreadOnly && n.Read {
				continue
			}
			out = append(out, n)
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		return nil
	})
	return out, err
}

// MarkNotificationRead implements repository.NotificationStore.
func (s *Store) MarkNotificationRead(_ context.Context, notificationID string) error {
	return s.write(func(st *state) error {
		for i := range st.notifications {
			if st.notifications[i].ID == notificationID {
				st.notifications[i].Read = true
				return nil
			}
		}
		return fmt.Errorf("notification %s: %w", notificationID, repository.ErrNotFound)
	})
}

// MarkNotificationsRead implements repository.NotificationStore.
func (s *Store) MarkNotificationsRead(_ context.Context, ids []string) error {
	return s.write(func(st *state) error {
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		for i := range st.notifications {
			if _, ok := set[st.notifications[i].ID]; ok {
				st.notifications[i].Read = true
			}
		}
		return nil
	})
}

func (st *state) getBatch(batchID string) (models.Batch, error) {
	b, ok := st.batches[batchID]
	if !ok {
		return models.Batch{}, fmt.Errorf("batch %s: %w", batchID, repository.ErrNotFound)
	}
	return cloneBatch(b), nil
}

func (st *state) saveBatch(batch *models.Batch) error {
	existing, ok := st.batches[batch.BatchID]
	switch {
	case batch.Version == 0 && ok:
		return fmt.Errorf("batch %s: %w", batch.BatchID, repository.ErrDuplicate)
	case batch.Version != 0 && !ok:
		return fmt.Errorf("batch %s: %w", batch.BatchID, repository.ErrNotFound)
	case ok && existing.Version != batch.Version:
		return fmt.Errorf("batch %s at version %d, stored %d: %w",
			batch.BatchID, batch.Version, existing.Version, repository.ErrVersionConflict)
	}
	batch.Version++
	st.batches[batch.BatchID] = cloneBatch(*batch)
	return nil
}

func (st *state) filterBatches(keep func(models.Batch) bool) []models.Batch {
	out := make([]models.Batch, 0)
	for _, b := range st.batches {
		if keep(b) {
			out = append(out, cloneBatch(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].BatchID < out[j].BatchID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (st *state) cropsByBatch(batchID string) []models.Crop {
	out := make([]models.Crop, 0)
	for _, id := range st.cropOrder {
		if c := st.crops[id]; c.BatchID == batchID {
			out = append(out, c)
		}
	}
	return out
}

func (st *state) saveCrop(crop *models.Crop) {
	if crop.ID == "" {
		crop.ID = uuid.NewString()
	}
	if _, ok := st.crops[crop.ID]; !ok {
		st.cropOrder = append(st.cropOrder, crop.ID)
	}
	st.crops[crop.ID] = *crop
}

func (st *state) saveCrops(crops []models.Crop) {
	for i := range crops {
		st.saveCrop(&crops[i])
	}
}

func (st *state) filterTraces(keep func(models.Trace) bool) []models.Trace {
	out := make([]models.Trace, 0)
	for _, t := range st.traces {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (st *state) enqueue(event models.OutboxEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	st.outbox = append(st.outbox, cloneEvent(event))
}

func (st *state) event(eventID string) (*models.OutboxEvent, error) {
	for i := range st.outbox {
		if st.outbox[i].ID == eventID {
			return &st.outbox[i], nil
		}
	}
	return nil, fmt.Errorf("outbox event %s: %w", eventID, repository.ErrNotFound)
}

func containsStatus(statuses []models.Status, status models.Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
